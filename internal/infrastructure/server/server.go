package server

import (
	"context"
	"net/http"
	"runtime"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"

	httpHandlers "github.com/tofu-suite/tofu/internal/adapters/http"
	"github.com/tofu-suite/tofu/internal/application/services"
	"github.com/tofu-suite/tofu/internal/infrastructure/config"
	"github.com/tofu-suite/tofu/internal/infrastructure/database"
	"github.com/tofu-suite/tofu/internal/infrastructure/logger"
	"github.com/tofu-suite/tofu/internal/infrastructure/metrics"
	"github.com/tofu-suite/tofu/internal/ports"
)

// Server represents the HTTP server
type Server struct {
	echo    *echo.Echo
	config  *config.Config
	logger  *logger.Logger
	store   *services.Store
	db      *database.DB
	metrics *metrics.Recorder
}

// Dependencies are the collaborators the server exposes. Only Store is
// required.
type Dependencies struct {
	Store   *services.Store
	Backups ports.BackupRepository
	// DB is set when the document lives in a SQL backend; it feeds the
	// health checks.
	DB      *database.DB
	Metrics *metrics.Recorder
}

// CustomValidator wraps the validator
type CustomValidator struct {
	validator *validator.Validate
}

// Validate validates structs
func (cv *CustomValidator) Validate(i interface{}) error {
	return cv.validator.Struct(i)
}

// New creates a new server instance
func New(cfg *config.Config, deps Dependencies, appLogger *logger.Logger) (*Server, error) {
	e := echo.New()

	// Set custom validator
	e.Validator = &CustomValidator{validator: validator.New()}

	// Configure Echo
	e.HideBanner = true
	e.HidePort = true

	httpLogger := appLogger.WithComponent("http")

	// Custom error handler
	e.HTTPErrorHandler = customErrorHandler(httpLogger)

	// Initialize handlers
	sectionHandler := httpHandlers.NewSectionHandler(deps.Store, httpLogger)
	entityHandler := httpHandlers.NewEntityHandler(deps.Store, httpLogger)
	folderHandler := httpHandlers.NewFolderHandler(deps.Store, httpLogger)
	equipmentHandler := httpHandlers.NewEquipmentHandler(deps.Store, httpLogger)
	projectHandler := httpHandlers.NewProjectHandler(deps.Store, httpLogger)
	dataHandler := httpHandlers.NewDataHandler(deps.Store, deps.Backups, httpLogger)

	server := &Server{
		echo:    e,
		config:  cfg,
		logger:  httpLogger,
		store:   deps.Store,
		db:      deps.DB,
		metrics: deps.Metrics,
	}

	// Setup middleware
	server.setupMiddleware()

	// Setup metrics
	if cfg.Metrics.Enabled && deps.Metrics != nil {
		server.setupMetrics()
	}

	// Setup routes
	server.setupRoutes(sectionHandler, entityHandler, folderHandler, equipmentHandler, projectHandler, dataHandler)

	return server, nil
}

// setupRoutes configures all routes
func (s *Server) setupRoutes(
	sectionHandler *httpHandlers.SectionHandler,
	entityHandler *httpHandlers.EntityHandler,
	folderHandler *httpHandlers.FolderHandler,
	equipmentHandler *httpHandlers.EquipmentHandler,
	projectHandler *httpHandlers.ProjectHandler,
	dataHandler *httpHandlers.DataHandler,
) {
	// Health check routes
	s.echo.GET("/health", s.healthCheck)
	s.echo.GET("/health/detailed", s.detailedHealthCheck)
	s.echo.GET("/ready", s.readinessCheck)

	// API v1 routes
	v1 := s.echo.Group("/api/v1")

	v1.GET("/document", dataHandler.GetDocument)
	v1.GET("/sections/:section", sectionHandler.GetSection)

	// Equipment routes
	equipmentGroup := v1.Group("/equipment")
	equipmentGroup.GET("", equipmentHandler.ListEquipment)
	equipmentGroup.POST("", equipmentHandler.CreateEquipment)
	equipmentGroup.GET("/:id", equipmentHandler.GetEquipment)
	equipmentGroup.PUT("/:id", equipmentHandler.UpdateEquipment)
	equipmentGroup.DELETE("/:id", equipmentHandler.DeleteEquipment)

	// Process design collections
	designGroup := v1.Group("/design")
	designGroup.GET("/:collection", equipmentHandler.ListDesignItems)
	designGroup.POST("/:collection", equipmentHandler.CreateDesignItem)
	designGroup.GET("/:collection/:key", equipmentHandler.GetDesignItem)
	designGroup.PUT("/:collection/:key", equipmentHandler.UpdateDesignItem)
	designGroup.DELETE("/:collection/:key", equipmentHandler.DeleteDesignItem)
	designGroup.GET("/flow-diagram", projectHandler.GetFlowDiagram)
	designGroup.PUT("/flow-diagram", projectHandler.SaveFlowDiagram)

	// Note folder routes
	folderGroup := v1.Group("/folders")
	folderGroup.GET("", folderHandler.ListFolders)
	folderGroup.POST("", folderHandler.CreateFolder)
	folderGroup.DELETE("/:name", folderHandler.DeleteFolder)
	folderGroup.POST("/:name/rename", folderHandler.RenameFolder)

	// Generic entity routes
	entityGroup := v1.Group("/entities")
	entityGroup.GET("/:kind", entityHandler.ListEntities)
	entityGroup.POST("/:kind", entityHandler.CreateEntity)
	entityGroup.GET("/:kind/:id", entityHandler.GetEntity)
	entityGroup.PUT("/:kind/:id", entityHandler.UpdateEntity)
	entityGroup.DELETE("/:kind/:id", entityHandler.DeleteEntity)

	// Project and singleton sections
	v1.GET("/project-info", projectHandler.GetProjectInfo)
	v1.PUT("/project-info", projectHandler.UpdateProjectInfo)
	v1.POST("/report-numbers", projectHandler.NextReportNumber)
	v1.GET("/settings", projectHandler.GetSettings)
	v1.PUT("/settings", projectHandler.UpdateSettings)
	v1.GET("/name-mapping", projectHandler.GetNameMapping)
	v1.PUT("/name-mapping", projectHandler.SetNameMapping)
	v1.DELETE("/name-mapping/:name", projectHandler.DeleteNameMapping)

	// Export and backups
	v1.GET("/export.xlsx", dataHandler.ExportWorkbook)
	v1.GET("/backups", dataHandler.ListBackups)
	v1.POST("/backups", dataHandler.CreateBackup)
}

// setupMetrics installs the request collector and the scrape endpoint
func (s *Server) setupMetrics() {
	s.echo.Use(metricsMiddleware(s.metrics))

	s.echo.GET("/metrics", echo.WrapHandler(s.metrics.Handler()))
}

// Health check handlers
func (s *Server) healthCheck(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{
		"status": "ok",
		"time":   time.Now().UTC().Format(time.RFC3339),
	})
}

func (s *Server) detailedHealthCheck(c echo.Context) error {
	status := "ok"
	checks := make(map[string]interface{})

	// Document store check
	if _, err := s.store.Snapshot(); err != nil {
		status = "error"
		checks["document"] = map[string]interface{}{
			"status": "error",
			"error":  err.Error(),
		}
	} else {
		checks["document"] = map[string]interface{}{
			"status":   "ok",
			"location": s.store.Location(),
		}
	}

	// Database health check
	if s.db != nil {
		if err := s.db.HealthCheck(c.Request().Context()); err != nil {
			status = "error"
			checks["database"] = map[string]interface{}{
				"status": "error",
				"error":  err.Error(),
			}
		} else {
			checks["database"] = map[string]interface{}{
				"status": "ok",
				"stats":  s.db.GetConnectionInfo(),
			}
		}
	}

	response := map[string]interface{}{
		"status": status,
		"time":   time.Now().UTC().Format(time.RFC3339),
		"checks": checks,
		"version": map[string]string{
			"app": s.config.App.Version,
			"go":  runtime.Version(),
		},
	}

	if status == "ok" {
		return c.JSON(http.StatusOK, response)
	}
	return c.JSON(http.StatusServiceUnavailable, response)
}

func (s *Server) readinessCheck(c echo.Context) error {
	if s.db != nil {
		if err := s.db.HealthCheck(c.Request().Context()); err != nil {
			return c.JSON(http.StatusServiceUnavailable, map[string]string{
				"status": "not_ready",
				"reason": "database_not_ready",
			})
		}
	}

	return c.JSON(http.StatusOK, map[string]string{
		"status": "ready",
		"time":   time.Now().UTC().Format(time.RFC3339),
	})
}

// Handler exposes the router, mainly for tests
func (s *Server) Handler() http.Handler {
	return s.echo
}

// Start starts the HTTP server
func (s *Server) Start(address string) error {
	s.logger.Infow("Starting server", "address", address, "document", s.store.Location())
	s.echo.Server.ReadTimeout = s.config.Server.ReadTimeout
	s.echo.Server.WriteTimeout = s.config.Server.WriteTimeout
	s.echo.Server.IdleTimeout = s.config.Server.IdleTimeout
	return s.echo.Start(address)
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("Shutting down server")
	return s.echo.Shutdown(ctx)
}
