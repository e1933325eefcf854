package http

import (
	"encoding/json"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/tofu-suite/tofu/internal/application/services"
	"github.com/tofu-suite/tofu/internal/domain/entities"
	"github.com/tofu-suite/tofu/internal/infrastructure/logger"
)

// ProjectHandler handles the project header, report numbering, settings and
// the other singleton sections.
type ProjectHandler struct {
	store  *services.Store
	logger *logger.Logger
}

// NewProjectHandler creates a new project handler
func NewProjectHandler(store *services.Store, logger *logger.Logger) *ProjectHandler {
	return &ProjectHandler{
		store:  store,
		logger: logger,
	}
}

// GetProjectInfo handles getting the project header
func (h *ProjectHandler) GetProjectInfo(c echo.Context) error {
	return c.JSON(http.StatusOK, h.store.GetProjectInfo())
}

// UpdateProjectInfo replaces the project header. Omitted fields are stored empty.
func (h *ProjectHandler) UpdateProjectInfo(c echo.Context) error {
	var req ProjectInfoRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request format")
	}

	if err := c.Validate(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	info := entities.ProjectInfo{
		CompanyName:    req.CompanyName,
		ProjectNumber:  req.ProjectNumber,
		ProjectName:    req.ProjectName,
		SubprojectName: req.SubprojectName,
	}
	if err := h.store.UpdateProjectInfo(c.Request().Context(), info); err != nil {
		h.logger.Errorw("Update project info failed", "error", err)
		return toHTTPError(err)
	}
	return c.JSON(http.StatusOK, info)
}

// NextReportNumber handles allocating the next daily report number
func (h *ProjectHandler) NextReportNumber(c echo.Context) error {
	var req ReportNumberRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request format")
	}

	if err := c.Validate(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	number, err := h.store.NextReportNumber(c.Request().Context(), req.Prefix)
	if err != nil {
		h.logger.Errorw("Next report number failed", "error", err, "prefix", req.Prefix)
		return toHTTPError(err)
	}
	return c.JSON(http.StatusCreated, ReportNumberResponse{Number: number})
}

// GetSettings handles getting the settings object
func (h *ProjectHandler) GetSettings(c echo.Context) error {
	return c.JSON(http.StatusOK, h.store.GetSettings())
}

// UpdateSettings replaces the settings object
func (h *ProjectHandler) UpdateSettings(c echo.Context) error {
	settings, err := bindFields(c)
	if err != nil {
		return err
	}

	if err := h.store.UpdateSettings(c.Request().Context(), settings); err != nil {
		h.logger.Errorw("Update settings failed", "error", err)
		return toHTTPError(err)
	}
	return c.JSON(http.StatusOK, h.store.GetSettings())
}

// GetFlowDiagram handles getting the stored flow diagram
func (h *ProjectHandler) GetFlowDiagram(c echo.Context) error {
	diagram, ok := h.store.LoadFlowDiagram()
	if !ok {
		return echo.NewHTTPError(http.StatusNotFound, "No flow diagram saved")
	}
	return c.JSONBlob(http.StatusOK, diagram)
}

// SaveFlowDiagram stores the request body as the flow diagram
func (h *ProjectHandler) SaveFlowDiagram(c echo.Context) error {
	var diagram json.RawMessage
	if err := (&echo.DefaultBinder{}).BindBody(c, &diagram); err != nil || len(diagram) == 0 {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request format")
	}

	if err := h.store.SaveFlowDiagram(c.Request().Context(), diagram); err != nil {
		h.logger.Errorw("Save flow diagram failed", "error", err)
		return toHTTPError(err)
	}
	return c.JSON(http.StatusOK, MessageResponse{Message: "Flow diagram saved"})
}

// GetNameMapping handles getting the equipment name translations
func (h *ProjectHandler) GetNameMapping(c echo.Context) error {
	return c.JSON(http.StatusOK, h.store.GetEquipmentNameMapping())
}

// SetNameMapping handles adding or replacing one translation
func (h *ProjectHandler) SetNameMapping(c echo.Context) error {
	var req NameMappingRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request format")
	}

	if err := c.Validate(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	if err := h.store.AddEquipmentNameMapping(c.Request().Context(), req.Name, req.Translation); err != nil {
		h.logger.Errorw("Set name mapping failed", "error", err, "name", req.Name)
		return toHTTPError(err)
	}
	return c.JSON(http.StatusOK, MessageResponse{Message: "Mapping saved"})
}

// DeleteNameMapping handles removing one translation
func (h *ProjectHandler) DeleteNameMapping(c echo.Context) error {
	name := c.Param("name")
	if err := h.store.RemoveEquipmentNameMapping(c.Request().Context(), name); err != nil {
		h.logger.Errorw("Delete name mapping failed", "error", err, "name", name)
		return toHTTPError(err)
	}
	return c.NoContent(http.StatusNoContent)
}
