package http

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/tofu-suite/tofu/internal/application/services"
	"github.com/tofu-suite/tofu/internal/domain/entities"
	"github.com/tofu-suite/tofu/internal/infrastructure/logger"
)

// EquipmentHandler handles process equipment and the other keyed
// process-design collections.
type EquipmentHandler struct {
	store  *services.Store
	logger *logger.Logger
}

// NewEquipmentHandler creates a new equipment handler
func NewEquipmentHandler(store *services.Store, logger *logger.Logger) *EquipmentHandler {
	return &EquipmentHandler{
		store:  store,
		logger: logger,
	}
}

// ListEquipment handles listing equipment. ?unique_code= narrows the result
// to the matching item.
func (h *EquipmentHandler) ListEquipment(c echo.Context) error {
	if code := c.QueryParam("unique_code"); code != "" {
		eq, ok := h.store.GetEquipmentByUniqueCode(code)
		if !ok {
			return c.JSON(http.StatusOK, ListResponse[entities.Equipment]{Data: []entities.Equipment{}})
		}
		return c.JSON(http.StatusOK, ListResponse[entities.Equipment]{Data: []entities.Equipment{eq}})
	}
	return c.JSON(http.StatusOK, ListResponse[entities.Equipment]{Data: h.store.GetEquipmentData()})
}

// GetEquipment handles getting equipment by id
func (h *EquipmentHandler) GetEquipment(c echo.Context) error {
	eq, ok := h.store.GetEquipmentByID(c.Param("id"))
	if !ok {
		return echo.NewHTTPError(http.StatusNotFound, "Equipment not found")
	}
	return c.JSON(http.StatusOK, eq)
}

// CreateEquipment handles equipment creation or replacement by equipment_id
func (h *EquipmentHandler) CreateEquipment(c echo.Context) error {
	fields, err := bindFields(c)
	if err != nil {
		return err
	}

	eq, err := h.store.AddEquipment(c.Request().Context(), fields)
	if err != nil {
		h.logger.Errorw("Create equipment failed", "error", err)
		return toHTTPError(err)
	}
	return c.JSON(http.StatusCreated, eq)
}

// UpdateEquipment handles a partial equipment update
func (h *EquipmentHandler) UpdateEquipment(c echo.Context) error {
	id := c.Param("id")
	fields, err := bindFields(c)
	if err != nil {
		return err
	}

	if err := h.store.UpdateEquipment(c.Request().Context(), id, fields); err != nil {
		h.logger.Errorw("Update equipment failed", "error", err, "equipment_id", id)
		return toHTTPError(err)
	}

	eq, _ := h.store.GetEquipmentByID(id)
	return c.JSON(http.StatusOK, eq)
}

// DeleteEquipment handles equipment removal
func (h *EquipmentHandler) DeleteEquipment(c echo.Context) error {
	id := c.Param("id")
	if err := h.store.DeleteEquipment(c.Request().Context(), id); err != nil {
		h.logger.Errorw("Delete equipment failed", "error", err, "equipment_id", id)
		return toHTTPError(err)
	}
	return c.NoContent(http.StatusNoContent)
}

// ListDesignItems handles listing materials, msds_documents, projects or streams
func (h *EquipmentHandler) ListDesignItems(c echo.Context) error {
	coll, err := collectionParam(c)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, ListResponse[entities.Attributes]{Data: h.store.DesignItems(coll)})
}

// GetDesignItem handles getting one keyed item
func (h *EquipmentHandler) GetDesignItem(c echo.Context) error {
	coll, err := collectionParam(c)
	if err != nil {
		return err
	}

	item, ok := h.store.DesignItem(coll, c.Param("key"))
	if !ok {
		return echo.NewHTTPError(http.StatusNotFound, "Item not found")
	}
	return c.JSON(http.StatusOK, item)
}

// CreateDesignItem handles keyed item creation or replacement
func (h *EquipmentHandler) CreateDesignItem(c echo.Context) error {
	coll, err := collectionParam(c)
	if err != nil {
		return err
	}
	fields, err := bindFields(c)
	if err != nil {
		return err
	}

	item, err := h.store.AddDesignItem(c.Request().Context(), coll, fields)
	if err != nil {
		h.logger.Errorw("Create item failed", "error", err, "collection", coll.Section)
		return toHTTPError(err)
	}
	return c.JSON(http.StatusCreated, item)
}

// UpdateDesignItem handles a partial keyed item update
func (h *EquipmentHandler) UpdateDesignItem(c echo.Context) error {
	coll, err := collectionParam(c)
	if err != nil {
		return err
	}
	key := c.Param("key")
	fields, err := bindFields(c)
	if err != nil {
		return err
	}

	if err := h.store.UpdateDesignItem(c.Request().Context(), coll, key, fields); err != nil {
		h.logger.Errorw("Update item failed", "error", err, "collection", coll.Section, "key", key)
		return toHTTPError(err)
	}

	item, _ := h.store.DesignItem(coll, key)
	return c.JSON(http.StatusOK, item)
}

// DeleteDesignItem handles keyed item removal
func (h *EquipmentHandler) DeleteDesignItem(c echo.Context) error {
	coll, err := collectionParam(c)
	if err != nil {
		return err
	}
	key := c.Param("key")

	if err := h.store.DeleteDesignItem(c.Request().Context(), coll, key); err != nil {
		h.logger.Errorw("Delete item failed", "error", err, "collection", coll.Section, "key", key)
		return toHTTPError(err)
	}
	return c.NoContent(http.StatusNoContent)
}

func collectionParam(c echo.Context) (services.DesignCollection, error) {
	coll, ok := services.DesignCollections[entities.Section(c.Param("collection"))]
	if !ok {
		return services.DesignCollection{}, echo.NewHTTPError(http.StatusNotFound, "Unknown collection")
	}
	return coll, nil
}
