package handlers

import (
	"context"
	"net/http"
	"time"

	"kavaach/database"
	"kavaach/models"
	"kavaach/utils/geocode"

	"github.com/apex/log"
	"github.com/gin-gonic/gin"
)

// CreateReport handles a citizen road issue submission
func (h *Handlers) CreateReport(c *gin.Context) {
	userID := c.GetString("user_id")
	if userID == "" {
		c.JSON(http.StatusUnauthorized, models.ErrorResponse{Error: "unauthorized"})
		return
	}

	var req models.CreateReportRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: err.Error()})
		return
	}

	h.resolveAddress(c.Request.Context(), req.Location)

	report, err := h.reports.CreateReport(c.Request.Context(), userID, &req)
	if err != nil {
		respondError(c, err)
		return
	}

	if h.vision != nil {
		go h.analyzeImage(report.ReportID, req.Image, req.IssueType)
	}

	c.JSON(http.StatusCreated, report)
}

// resolveAddress fills in a missing address via the geocoder. Reverse
// geocoding is best-effort; on failure the report keeps a coordinate
// placeholder.
func (h *Handlers) resolveAddress(ctx context.Context, loc *models.Location) {
	if loc == nil || loc.Address != "" {
		return
	}
	if h.geocoder == nil {
		loc.Address = geocode.Placeholder(loc.Lat, loc.Lng)
		return
	}
	address, err := h.geocoder.Reverse(ctx, loc.Lat, loc.Lng)
	if err != nil {
		log.WithError(err).Warn("reverse geocoding failed")
		loc.Address = geocode.Placeholder(loc.Lat, loc.Lng)
		return
	}
	loc.Address = address
}

// analyzeImage runs the vision verdict in the background and moves the
// report to AI Analyzed when it lands.
func (h *Handlers) analyzeImage(reportID, image, issueType string) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	analysis, err := h.vision.Analyze(ctx, image, issueType)
	if err != nil {
		log.WithError(err).WithField("report_id", reportID).Warn("image analysis failed")
		return
	}
	if err := h.reports.SetAIAnalysis(ctx, reportID, analysis); err != nil {
		log.WithError(err).WithField("report_id", reportID).Error("failed to store image analysis")
	}
}

// MyReports lists the authenticated citizen's own submissions
func (h *Handlers) MyReports(c *gin.Context) {
	userID := c.GetString("user_id")
	if userID == "" {
		c.JSON(http.StatusUnauthorized, models.ErrorResponse{Error: "unauthorized"})
		return
	}

	reports, err := h.reports.ListReports(c.Request.Context(), database.ReportFilter{
		ReporterID: userID,
		Status:     c.Query("status"),
	})
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"reports": reports, "count": len(reports)})
}

// ReportQueue lists reports for the ops dashboard, filterable by status and
// severity
func (h *Handlers) ReportQueue(c *gin.Context) {
	reports, err := h.reports.ListReports(c.Request.Context(), database.ReportFilter{
		Status:   c.Query("status"),
		Severity: c.Query("severity"),
	})
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"reports": reports, "count": len(reports)})
}

// GetReport retrieves a single report with its full status history
func (h *Handlers) GetReport(c *gin.Context) {
	report, err := h.reports.GetReport(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, report)
}

// UpdateReportStatus moves a report through its lifecycle and appends an
// audit entry
func (h *Handlers) UpdateReportStatus(c *gin.Context) {
	actor := c.GetString("admin_id")
	if actor == "" {
		c.JSON(http.StatusUnauthorized, models.ErrorResponse{Error: "unauthorized"})
		return
	}

	var req models.UpdateStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: err.Error()})
		return
	}

	report, err := h.reports.UpdateStatus(c.Request.Context(), c.Param("id"), actor, &req)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, report)
}
