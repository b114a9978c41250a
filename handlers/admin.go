package handlers

import (
	"net/http"

	"kavaach/models"
	"kavaach/utils/mapaggr"

	"github.com/gin-gonic/gin"
)

// AdminLogin authenticates an admin user
func (h *Handlers) AdminLogin(c *gin.Context) {
	var req models.AdminLoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: err.Error()})
		return
	}

	resp, err := h.admins.Login(c.Request.Context(), &req)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

// CreateAdmin creates a new admin user. Restricted to super_admin by
// middleware.
func (h *Handlers) CreateAdmin(c *gin.Context) {
	var req models.CreateAdminRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: err.Error()})
		return
	}

	admin, err := h.admins.CreateAdmin(c.Request.Context(), &req)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, admin)
}

// DashboardStats returns the ops dashboard tiles
func (h *Handlers) DashboardStats(c *gin.Context) {
	stats, err := h.dashboard.Stats(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, stats)
}

// Analytics returns chart data for the admin console
func (h *Handlers) Analytics(c *gin.Context) {
	breakdown, err := h.dashboard.SeverityBreakdown(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, models.AnalyticsResponse{SeverityBreakdown: breakdown})
}

// LiveMap returns open report locations clustered for the requested viewport
func (h *Handlers) LiveMap(c *gin.Context) {
	var args models.MapArgs
	if err := c.ShouldBindJSON(&args); err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: err.Error()})
		return
	}

	points, err := h.reports.OpenReportLocations(c.Request.Context(), args.VPort)
	if err != nil {
		respondError(c, err)
		return
	}

	aggr := mapaggr.New(args.VPort, args.Center)
	for _, p := range points {
		aggr.AddPoint(p.Latitude, p.Longitude, p.ReportID)
	}

	c.JSON(http.StatusOK, aggr.ToArray())
}
