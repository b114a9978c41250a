package handlers

import (
	"net/http"

	"kavaach/models"

	"github.com/gin-gonic/gin"
)

// CreateTruck registers a new fleet unit
func (h *Handlers) CreateTruck(c *gin.Context) {
	var req models.CreateTruckRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: err.Error()})
		return
	}

	truck, err := h.fleet.CreateTruck(c.Request.Context(), &req)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, truck)
}

// ListTrucks returns the fleet, optionally filtered by status
func (h *Handlers) ListTrucks(c *gin.Context) {
	trucks, err := h.fleet.ListTrucks(c.Request.Context(), c.Query("status"))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"trucks": trucks, "count": len(trucks)})
}

// GetTruck retrieves a single truck
func (h *Handlers) GetTruck(c *gin.Context) {
	truck, err := h.fleet.GetTruck(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, truck)
}

// UpdateTruckStatus sets a truck's operational status directly, e.g. taking
// it into maintenance. Dispatch goes through AssignTruck, never here.
func (h *Handlers) UpdateTruckStatus(c *gin.Context) {
	var req struct {
		Status string `json:"status" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: err.Error()})
		return
	}

	status, err := models.ParseTruckStatus(req.Status)
	if err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: err.Error()})
		return
	}

	truck, err := h.fleet.SetStatus(c.Request.Context(), c.Param("id"), status, "")
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, truck)
}

// AssignTruck dispatches a truck to a report. A truck with an open task
// cannot take another one; callers get a 409 until it is freed.
func (h *Handlers) AssignTruck(c *gin.Context) {
	actor := c.GetString("admin_id")
	if actor == "" {
		c.JSON(http.StatusUnauthorized, models.ErrorResponse{Error: "unauthorized"})
		return
	}

	var req models.AssignRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: err.Error()})
		return
	}

	truck, report, err := h.fleet.Assign(c.Request.Context(), &req, actor)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, models.AssignResponse{
		Message: "truck assigned successfully",
		Truck:   truck,
		Report:  report,
	})
}
