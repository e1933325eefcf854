package http

import (
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/tofu-suite/tofu/internal/adapters/backup"
	"github.com/tofu-suite/tofu/internal/adapters/export"
	"github.com/tofu-suite/tofu/internal/application/services"
	"github.com/tofu-suite/tofu/internal/infrastructure/logger"
	"github.com/tofu-suite/tofu/internal/ports"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// DataHandler serves whole-document operations: raw snapshot, XLSX export
// and backups.
type DataHandler struct {
	store   *services.Store
	backups ports.BackupRepository
	logger  *logger.Logger
}

// NewDataHandler creates a new data handler. backups may be nil, in which
// case the backup routes answer 404.
func NewDataHandler(store *services.Store, backups ports.BackupRepository, logger *logger.Logger) *DataHandler {
	return &DataHandler{
		store:   store,
		backups: backups,
		logger:  logger,
	}
}

// GetDocument returns the encoded document as stored.
func (h *DataHandler) GetDocument(c echo.Context) error {
	snapshot, err := h.store.Snapshot()
	if err != nil {
		h.logger.Errorw("Snapshot failed", "error", err)
		return toHTTPError(err)
	}
	return c.Blob(http.StatusOK, echo.MIMEApplicationJSONCharsetUTF8, snapshot)
}

// ExportWorkbook renders list sections as XLSX. ?sheets=Equipment,Todos
// selects sheets by name.
func (h *DataHandler) ExportWorkbook(c echo.Context) error {
	sheets, err := selectSheets(c.QueryParam("sheets"))
	if err != nil {
		return err
	}

	snapshot, err := h.store.Snapshot()
	if err != nil {
		h.logger.Errorw("Snapshot failed", "error", err)
		return toHTTPError(err)
	}
	data, err := export.Workbook(snapshot, sheets...)
	if err != nil {
		h.logger.Errorw("Export failed", "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "Export failed").SetInternal(err)
	}

	c.Response().Header().Set(echo.HeaderContentDisposition, `attachment; filename="tofu_data.xlsx"`)
	return c.Blob(http.StatusOK, xlsxContentType, data)
}

// ListBackups handles listing stored backups
func (h *DataHandler) ListBackups(c echo.Context) error {
	if h.backups == nil {
		return echo.NewHTTPError(http.StatusNotFound, "Backups are not configured")
	}

	infos, err := h.backups.List(c.Request().Context())
	if err != nil {
		h.logger.Errorw("List backups failed", "error", err)
		return echo.NewHTTPError(http.StatusServiceUnavailable, "Failed to list backups").SetInternal(err)
	}
	if infos == nil {
		infos = []ports.BackupInfo{}
	}
	return c.JSON(http.StatusOK, ListResponse[ports.BackupInfo]{Data: infos})
}

// CreateBackup handles writing a backup of the current document
func (h *DataHandler) CreateBackup(c echo.Context) error {
	if h.backups == nil {
		return echo.NewHTTPError(http.StatusNotFound, "Backups are not configured")
	}

	var req BackupRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request format")
	}

	if err := c.Validate(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	name := req.Name
	if name == "" {
		name = backup.NewName(time.Now())
	} else if !strings.HasSuffix(name, backup.Extension) {
		name += backup.Extension
	}

	snapshot, err := h.store.Snapshot()
	if err != nil {
		h.logger.Errorw("Snapshot failed", "error", err)
		return toHTTPError(err)
	}
	info, err := h.backups.Put(c.Request().Context(), name, snapshot)
	if err != nil {
		h.logger.Errorw("Create backup failed", "error", err, "name", name)
		return echo.NewHTTPError(http.StatusServiceUnavailable, "Failed to store backup").SetInternal(err)
	}

	h.logger.Infow("Backup created", "name", info.Name, "location", info.Location, "size", info.Size)
	return c.JSON(http.StatusCreated, info)
}

func selectSheets(param string) ([]export.Sheet, error) {
	if param == "" {
		return nil, nil
	}
	var out []export.Sheet
	for _, name := range strings.Split(param, ",") {
		sheet, ok := export.SheetByName(strings.TrimSpace(name))
		if !ok {
			return nil, echo.NewHTTPError(http.StatusBadRequest, "Unknown sheet: "+name)
		}
		out = append(out, sheet)
	}
	return out, nil
}
