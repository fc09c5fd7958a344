package handler

import (
	"net/http"
	"time"

	"github.com/procost/enquiry-api/internal/database"
	"github.com/procost/enquiry-api/internal/datawarehouse"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// CatalogStatus reports when the rate catalog snapshot was last loaded
type CatalogStatus interface {
	LoadedAt() (time.Time, bool)
}

// HealthHandler serves the liveness and readiness probes
type HealthHandler struct {
	db        *gorm.DB
	warehouse *datawarehouse.Client
	catalog   CatalogStatus
	logger    *zap.Logger
}

// NewHealthHandler creates the probes. warehouse and catalog are optional.
func NewHealthHandler(db *gorm.DB, warehouse *datawarehouse.Client, catalog CatalogStatus, logger *zap.Logger) *HealthHandler {
	return &HealthHandler{
		db:        db,
		warehouse: warehouse,
		catalog:   catalog,
		logger:    logger,
	}
}

// Live godoc
// @Summary Liveness probe
// @Tags Health
// @Success 200 {string} string "OK"
// @Router /health [get]
func (h *HealthHandler) Live(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

// Database godoc
// @Summary Database probe
// @Description Pings the database and reports pool statistics
// @Tags Health
// @Produce json
// @Success 200 {object} map[string]interface{}
// @Failure 503 {object} map[string]interface{}
// @Router /health/db [get]
func (h *HealthHandler) Database(w http.ResponseWriter, r *http.Request) {
	stats, err := database.HealthCheckWithStats(r.Context(), h.db)
	if err != nil {
		h.logger.Error("Database health check failed", zap.Error(err))
		respondJSON(w, http.StatusServiceUnavailable, map[string]interface{}{
			"status":  "unhealthy",
			"error":   err.Error(),
			"service": "database",
		})
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"status":  "healthy",
		"service": "database",
		"stats":   stats,
	})
}

// Ready godoc
// @Summary Readiness probe
// @Description Checks the database, the data warehouse when enabled and the rate catalog snapshot when used
// @Tags Health
// @Produce json
// @Success 200 {object} map[string]interface{}
// @Failure 503 {object} map[string]interface{}
// @Router /health/ready [get]
func (h *HealthHandler) Ready(w http.ResponseWriter, r *http.Request) {
	checks := make(map[string]interface{})
	healthy := true

	if err := database.HealthCheck(r.Context(), h.db); err != nil {
		h.logger.Error("Database health check failed", zap.Error(err))
		checks["database"] = map[string]string{"status": "unhealthy", "error": err.Error()}
		healthy = false
	} else {
		checks["database"] = map[string]string{"status": "healthy"}
	}

	// The warehouse is reported but never fails readiness
	if h.warehouse.IsEnabled() {
		checks["dataWarehouse"] = h.warehouse.HealthCheck(r.Context())
	}

	if h.catalog != nil {
		loadedAt, ok := h.catalog.LoadedAt()
		if ok {
			checks["rateCatalog"] = map[string]string{"status": "healthy", "loadedAt": loadedAt.UTC().Format(time.RFC3339)}
		} else {
			checks["rateCatalog"] = map[string]string{"status": "unhealthy", "error": "snapshot not loaded"}
			healthy = false
		}
	}

	status, code := "healthy", http.StatusOK
	if !healthy {
		status, code = "unhealthy", http.StatusServiceUnavailable
	}
	respondJSON(w, code, map[string]interface{}{
		"status": status,
		"checks": checks,
	})
}
