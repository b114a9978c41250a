package handlers

import (
	"errors"
	"net/http"

	"kavaach/database"
	"kavaach/models"
	"kavaach/utils/geocode"
	"kavaach/utils/vision"

	"github.com/apex/log"
	"github.com/gin-gonic/gin"
)

// Handlers handles HTTP requests for the civic reporting service. The vision
// and geocoder clients are optional; nil disables those integrations.
type Handlers struct {
	users     *database.UserService
	admins    *database.AdminService
	reports   *database.ReportService
	fleet     *database.FleetService
	dashboard *database.DashboardService
	vision    *vision.Client
	geocoder  *geocode.Client
}

// NewHandlers creates a new handlers instance
func NewHandlers(
	users *database.UserService,
	admins *database.AdminService,
	reports *database.ReportService,
	fleet *database.FleetService,
	dashboard *database.DashboardService,
	visionClient *vision.Client,
	geocoder *geocode.Client,
) *Handlers {
	return &Handlers{
		users:     users,
		admins:    admins,
		reports:   reports,
		fleet:     fleet,
		dashboard: dashboard,
		vision:    visionClient,
		geocoder:  geocoder,
	}
}

// HealthCheck returns the service health status
func (h *Handlers) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "healthy",
		"service": "kavaach",
	})
}

// respondError maps service errors onto HTTP status codes. Unrecognized
// errors are logged and reported as a 500 with a generic message so
// internals never leak to clients.
func respondError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, database.ErrValidation):
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: err.Error()})
	case errors.Is(err, database.ErrReportNotFound),
		errors.Is(err, database.ErrTruckNotFound),
		errors.Is(err, database.ErrUserNotFound),
		errors.Is(err, database.ErrAdminNotFound):
		c.JSON(http.StatusNotFound, models.ErrorResponse{Error: err.Error()})
	case errors.Is(err, database.ErrTruckBusy),
		errors.Is(err, database.ErrReportClosed),
		errors.Is(err, database.ErrIllegalTransition),
		errors.Is(err, database.ErrDuplicateEmail),
		errors.Is(err, database.ErrDuplicateTruck):
		c.JSON(http.StatusConflict, models.ErrorResponse{Error: err.Error()})
	case errors.Is(err, database.ErrInvalidCredentials):
		c.JSON(http.StatusUnauthorized, models.ErrorResponse{Error: err.Error()})
	case errors.Is(err, database.ErrUpstream):
		c.JSON(http.StatusBadGateway, models.ErrorResponse{Error: err.Error()})
	default:
		log.WithError(err).Error("request failed")
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{Error: "internal server error"})
	}
}
