package http

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/tofu-suite/tofu/internal/application/services"
	"github.com/tofu-suite/tofu/internal/domain/entities"
	"github.com/tofu-suite/tofu/internal/infrastructure/logger"
)

// SectionHandler serves read-only views of whole sections.
type SectionHandler struct {
	store  *services.Store
	logger *logger.Logger
}

// NewSectionHandler creates a new section handler
func NewSectionHandler(store *services.Store, logger *logger.Logger) *SectionHandler {
	return &SectionHandler{
		store:  store,
		logger: logger,
	}
}

// GetSection returns one top-level section, or one process-design collection.
func (h *SectionHandler) GetSection(c echo.Context) error {
	name := c.Param("section")

	value, ok, err := h.store.Section(name)
	if err != nil {
		h.logger.Errorw("Read section failed", "error", err, "section", name)
		return toHTTPError(err)
	}
	if !ok {
		return echo.NewHTTPError(http.StatusNotFound, "Unknown section")
	}
	return c.JSON(http.StatusOK, value)
}

// EntityHandler serves the generic id-keyed collections.
type EntityHandler struct {
	store  *services.Store
	logger *logger.Logger
}

// NewEntityHandler creates a new entity handler
func NewEntityHandler(store *services.Store, logger *logger.Logger) *EntityHandler {
	return &EntityHandler{
		store:  store,
		logger: logger,
	}
}

// ListEntities handles listing one collection
func (h *EntityHandler) ListEntities(c echo.Context) error {
	kind, err := kindParam(c)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, ListResponse[entities.Record]{Data: h.store.All(kind)})
}

// GetEntity handles getting one record by id
func (h *EntityHandler) GetEntity(c echo.Context) error {
	kind, err := kindParam(c)
	if err != nil {
		return err
	}
	id, err := idParam(c)
	if err != nil {
		return err
	}

	record, ok := h.store.Get(kind, id)
	if !ok {
		return echo.NewHTTPError(http.StatusNotFound, "Record not found")
	}
	return c.JSON(http.StatusOK, record)
}

// CreateEntity handles record creation
func (h *EntityHandler) CreateEntity(c echo.Context) error {
	kind, err := kindParam(c)
	if err != nil {
		return err
	}

	fields, err := bindFields(c)
	if err != nil {
		return err
	}

	record, err := h.store.Add(c.Request().Context(), kind, fields)
	if err != nil {
		h.logger.Errorw("Create record failed", "error", err, "kind", kind)
		return toHTTPError(err)
	}
	return c.JSON(http.StatusCreated, record)
}

// UpdateEntity handles a partial record update
func (h *EntityHandler) UpdateEntity(c echo.Context) error {
	kind, err := kindParam(c)
	if err != nil {
		return err
	}
	id, err := idParam(c)
	if err != nil {
		return err
	}

	fields, err := bindFields(c)
	if err != nil {
		return err
	}

	if err := h.store.Update(c.Request().Context(), kind, id, fields); err != nil {
		h.logger.Errorw("Update record failed", "error", err, "kind", kind, "id", id)
		return toHTTPError(err)
	}

	record, _ := h.store.Get(kind, id)
	return c.JSON(http.StatusOK, record)
}

// DeleteEntity handles record removal
func (h *EntityHandler) DeleteEntity(c echo.Context) error {
	kind, err := kindParam(c)
	if err != nil {
		return err
	}
	id, err := idParam(c)
	if err != nil {
		return err
	}

	if err := h.store.Delete(c.Request().Context(), kind, id); err != nil {
		h.logger.Errorw("Delete record failed", "error", err, "kind", kind, "id", id)
		return toHTTPError(err)
	}
	return c.NoContent(http.StatusNoContent)
}

// FolderHandler handles note folders
type FolderHandler struct {
	store  *services.Store
	logger *logger.Logger
}

// NewFolderHandler creates a new folder handler
func NewFolderHandler(store *services.Store, logger *logger.Logger) *FolderHandler {
	return &FolderHandler{
		store:  store,
		logger: logger,
	}
}

// ListFolders handles listing folder names
func (h *FolderHandler) ListFolders(c echo.Context) error {
	return c.JSON(http.StatusOK, ListResponse[string]{Data: h.store.GetFolders()})
}

// CreateFolder handles folder creation
func (h *FolderHandler) CreateFolder(c echo.Context) error {
	var req FolderRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request format")
	}

	if err := c.Validate(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	if err := h.store.AddFolder(c.Request().Context(), req.Name); err != nil {
		h.logger.Errorw("Create folder failed", "error", err, "folder", req.Name)
		return toHTTPError(err)
	}
	return c.JSON(http.StatusCreated, MessageResponse{Message: "Folder created"})
}

// DeleteFolder handles folder removal; its notes move to the uncategorized folder.
func (h *FolderHandler) DeleteFolder(c echo.Context) error {
	name := c.Param("name")
	if err := h.store.DeleteFolder(c.Request().Context(), name); err != nil {
		h.logger.Errorw("Delete folder failed", "error", err, "folder", name)
		return toHTTPError(err)
	}
	return c.NoContent(http.StatusNoContent)
}

// RenameFolder handles folder rename
func (h *FolderHandler) RenameFolder(c echo.Context) error {
	name := c.Param("name")

	var req RenameFolderRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request format")
	}

	if err := c.Validate(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	if err := h.store.RenameFolder(c.Request().Context(), name, req.NewName); err != nil {
		h.logger.Errorw("Rename folder failed", "error", err, "folder", name, "new_name", req.NewName)
		return toHTTPError(err)
	}
	return c.JSON(http.StatusOK, MessageResponse{Message: "Folder renamed"})
}

// Utility functions and helper types

func kindParam(c echo.Context) (entities.EntityKind, error) {
	kind := entities.EntityKind(c.Param("kind"))
	if !kind.IsValid() {
		return "", echo.NewHTTPError(http.StatusNotFound, "Unknown entity kind")
	}
	return kind, nil
}

func idParam(c echo.Context) (int, error) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		return 0, echo.NewHTTPError(http.StatusBadRequest, "Invalid record ID")
	}
	return id, nil
}

// bindFields decodes a JSON object body. Path parameters are not merged in.
func bindFields(c echo.Context) (map[string]any, error) {
	fields := map[string]any{}
	if err := (&echo.DefaultBinder{}).BindBody(c, &fields); err != nil {
		return nil, echo.NewHTTPError(http.StatusBadRequest, "Invalid request format")
	}
	return fields, nil
}

// toHTTPError maps store errors to status codes.
func toHTTPError(err error) error {
	switch {
	case errors.Is(err, entities.ErrRecordNotFound),
		errors.Is(err, entities.ErrEquipmentNotFound),
		errors.Is(err, entities.ErrFolderNotFound),
		errors.Is(err, entities.ErrUnknownKind):
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	case errors.Is(err, entities.ErrFolderExists):
		return echo.NewHTTPError(http.StatusConflict, err.Error())
	case errors.Is(err, entities.ErrValidation):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	case errors.Is(err, entities.ErrPersist):
		return echo.NewHTTPError(http.StatusServiceUnavailable, "Failed to save data").SetInternal(err)
	}
	return echo.NewHTTPError(http.StatusInternalServerError, "Internal error").SetInternal(err)
}

// Request/Response types

type FolderRequest struct {
	Name string `json:"name" validate:"required,max=100"`
}

type RenameFolderRequest struct {
	NewName string `json:"new_name" validate:"required,max=100"`
}

type ReportNumberRequest struct {
	Prefix string `json:"prefix" validate:"required,max=32"`
}

type ProjectInfoRequest struct {
	CompanyName    string `json:"company_name" validate:"max=200"`
	ProjectNumber  string `json:"project_number" validate:"max=100"`
	ProjectName    string `json:"project_name" validate:"max=200"`
	SubprojectName string `json:"subproject_name" validate:"max=200"`
}

type NameMappingRequest struct {
	Name        string `json:"name" validate:"required"`
	Translation string `json:"translation" validate:"required"`
}

type BackupRequest struct {
	Name string `json:"name" validate:"omitempty,max=100"`
}

type MessageResponse struct {
	Message string `json:"message"`
}

type ReportNumberResponse struct {
	Number string `json:"number"`
}

type ListResponse[T any] struct {
	Data []T `json:"data"`
}
