package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Location is a geographic point with an optional human-readable address.
type Location struct {
	Lat     float64 `json:"lat"`
	Lng     float64 `json:"lng"`
	Address string  `json:"address,omitempty"`
}

// AIAnalysis holds the vision service verdict for a report image.
type AIAnalysis struct {
	Confidence    float64 `json:"confidence"`
	DetectedIssue string  `json:"detected_issue"`
	EstimatedSize string  `json:"estimated_size,omitempty"`
	SeverityScore float64 `json:"severity_score"`
	Explanation   string  `json:"explanation,omitempty"`
}

// MaterialsUsed records what a repair crew consumed on site. Only meaningful
// once a report is resolved.
type MaterialsUsed struct {
	AsphaltKg  decimal.Decimal `json:"asphalt_kg"`
	LaborHours decimal.Decimal `json:"labor_hours"`
	Cost       decimal.Decimal `json:"cost"`
}

// StatusHistoryEntry is one immutable line of a report's audit trail. The
// timestamp is assigned server-side at append time.
type StatusHistoryEntry struct {
	Status    ReportStatus `json:"status"`
	ChangedBy string       `json:"changed_by"`
	Timestamp time.Time    `json:"timestamp"`
	Notes     string       `json:"notes,omitempty"`
}

// Report is a citizen-submitted road issue tracked through its lifecycle.
type Report struct {
	ReportID         string               `json:"report_id"` // e.g. KVH-2026-0412
	ReporterID       string               `json:"reporter_id"`
	Image            string               `json:"image"`
	Location         *Location            `json:"location,omitempty"`
	IssueType        string               `json:"issue_type"`
	SubCategory      string               `json:"sub_category,omitempty"`
	Severity         Severity             `json:"severity"`
	Description      string               `json:"description,omitempty"`
	Status           ReportStatus         `json:"status"`
	AIAnalysis       *AIAnalysis          `json:"ai_analysis,omitempty"`
	AssignedTruck    string               `json:"assigned_truck,omitempty"`
	AssignedTeamLead string               `json:"assigned_team_lead,omitempty"`
	BeforePhoto      string               `json:"before_photo,omitempty"`
	AfterPhoto       string               `json:"after_photo,omitempty"`
	RepairNotes      string               `json:"repair_notes,omitempty"`
	MaterialsUsed    *MaterialsUsed       `json:"materials_used,omitempty"`
	StatusHistory    []StatusHistoryEntry `json:"status_history"`
	ResolvedAt       *time.Time           `json:"resolved_at,omitempty"`
	PointsAwarded    int                  `json:"points_awarded"`
	CreatedAt        time.Time            `json:"created_at"`
	UpdatedAt        time.Time            `json:"updated_at"`
}

// Equipment is the snapshot of what a truck carries.
type Equipment struct {
	AsphaltMixKg int  `json:"asphalt_mix_kg"`
	Compactor    bool `json:"compactor"`
	SafetyCones  bool `json:"safety_cones"`
}

// Truck is a dispatchable fleet unit. CurrentTask references the report code
// of its active assignment, if any.
type Truck struct {
	TruckID          string      `json:"truck_id"`
	DriverName       string      `json:"driver_name"`
	DriverPhone      string      `json:"driver_phone"`
	CurrentLocation  *Location   `json:"current_location,omitempty"`
	Status           TruckStatus `json:"status"`
	FuelLevel        int         `json:"fuel_level"`
	LastMaintenance  *time.Time  `json:"last_maintenance,omitempty"`
	AssignmentsToday int         `json:"assignments_today"`
	CurrentTask      string      `json:"current_task,omitempty"`
	Equipment        Equipment   `json:"equipment"`
	CreatedAt        time.Time   `json:"created_at"`
	UpdatedAt        time.Time   `json:"updated_at"`
}

// User is a citizen account with a gamified civic score.
type User struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	Email      string    `json:"email"`
	Phone      string    `json:"phone,omitempty"`
	City       string    `json:"city"`
	CivicID    string    `json:"civic_id"` // e.g. KAV-4821
	Role       string    `json:"role"`
	CivicScore int       `json:"civic_score"`
	Level      string    `json:"level"`
	JoinedDate time.Time `json:"joined_date"`
}

// AdminUser lives in a separate identity space from citizens.
type AdminUser struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Email       string    `json:"email"`
	Role        string    `json:"role"`
	City        string    `json:"city"`
	Permissions []string  `json:"permissions,omitempty"`
	LastActive  time.Time `json:"last_active"`
}

// Admin roles.
const (
	RoleSuperAdmin   = "super_admin"
	RoleOpsAdmin     = "ops_admin"
	RoleFleetManager = "fleet_manager"
	RoleGovtViewer   = "govt_viewer"
	RoleAnalyst      = "analyst"
)

// CreateReportRequest is the citizen submission payload.
type CreateReportRequest struct {
	Image       string    `json:"image" binding:"required"`
	Location    *Location `json:"location,omitempty"`
	IssueType   string    `json:"issue_type"`
	SubCategory string    `json:"sub_category"`
	Severity    string    `json:"severity" binding:"omitempty,oneof=Low Medium High"`
	Description string    `json:"description"`
}

// UpdateStatusRequest is the admin payload for report status changes and
// note-only audit entries.
type UpdateStatusRequest struct {
	Status           string         `json:"status" binding:"required"`
	Notes            string         `json:"notes"`
	AssignedTeamLead string         `json:"assigned_team_lead"`
	Priority         string         `json:"priority" binding:"omitempty,oneof=Low Medium High"`
	MaterialsUsed    *MaterialsUsed `json:"materials_used,omitempty"`
	BeforePhoto      string         `json:"before_photo"`
	AfterPhoto       string         `json:"after_photo"`
}

// AssignRequest binds a truck to a report.
type AssignRequest struct {
	TruckID  string `json:"truck_id" binding:"required"`
	ReportID string `json:"report_id" binding:"required"`
	TeamLead string `json:"team_lead"`
	Priority string `json:"priority" binding:"omitempty,oneof=Low Medium High"`
}

// AssignResponse returns both updated entities after a dispatch.
type AssignResponse struct {
	Message string  `json:"message"`
	Truck   *Truck  `json:"truck"`
	Report  *Report `json:"report"`
}

// CreateTruckRequest registers a new fleet unit.
type CreateTruckRequest struct {
	TruckID     string     `json:"truck_id" binding:"required"`
	DriverName  string     `json:"driver_name" binding:"required"`
	DriverPhone string     `json:"driver_phone" binding:"required"`
	Location    *Location  `json:"location,omitempty"`
	FuelLevel   *int       `json:"fuel_level,omitempty" binding:"omitempty,min=0,max=100"`
	Equipment   *Equipment `json:"equipment,omitempty"`
}

// SignupRequest registers a citizen account.
type SignupRequest struct {
	Name  string `json:"name" binding:"required,max=256"`
	Email string `json:"email" binding:"required,email"`
	Phone string `json:"phone"`
	City  string `json:"city"`
	Role  string `json:"role" binding:"omitempty,oneof=citizen authority"`
}

// SignupResponse carries the generated credentials back to the citizen.
type SignupResponse struct {
	ID                string `json:"id"`
	Name              string `json:"name"`
	Email             string `json:"email"`
	CivicID           string `json:"civic_id"`
	Role              string `json:"role"`
	Token             string `json:"token"`
	GeneratedPassword string `json:"generated_password"`
}

// LoginRequest authenticates by email or civic id.
type LoginRequest struct {
	UserID   string `json:"user_id" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// AuthResponse is the authenticated user profile plus a fresh token.
type AuthResponse struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Email       string    `json:"email"`
	Phone       string    `json:"phone,omitempty"`
	City        string    `json:"city,omitempty"`
	CivicID     string    `json:"civic_id"`
	Role        string    `json:"role"`
	KarmaPoints int       `json:"karma_points"`
	Level       string    `json:"level"`
	Token       string    `json:"token"`
	JoinedDate  time.Time `json:"joined_date"`
}

// UpdateProfileRequest updates citizen contact details.
type UpdateProfileRequest struct {
	Name  *string `json:"name,omitempty" binding:"omitempty,max=256"`
	Email *string `json:"email,omitempty" binding:"omitempty,email"`
	Phone *string `json:"phone,omitempty"`
	City  *string `json:"city,omitempty"`
}

// LeaderboardEntry is one row of the civic score leaderboard.
type LeaderboardEntry struct {
	Rank     int    `json:"rank"`
	Name     string `json:"name"`
	City     string `json:"city"`
	Score    int    `json:"score"`
	Level    string `json:"level"`
	Avatar   string `json:"avatar"`
	Reports  int    `json:"reports"`
	Resolved int    `json:"resolved"`
}

// AdminLoginRequest authenticates an admin.
type AdminLoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

// AdminAuthResponse is the admin profile plus a fresh token.
type AdminAuthResponse struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
	Role  string `json:"role"`
	City  string `json:"city"`
	Token string `json:"token"`
}

// CreateAdminRequest creates a new admin user (super_admin only).
type CreateAdminRequest struct {
	Name     string   `json:"name" binding:"required,max=256"`
	Email    string   `json:"email" binding:"required,email"`
	Password string   `json:"password" binding:"required,min=8"`
	Role     string   `json:"role" binding:"required,oneof=super_admin ops_admin fleet_manager govt_viewer analyst"`
	City     string   `json:"city"`
	Perms    []string `json:"permissions"`
}

// StatCard is one dashboard tile.
type StatCard struct {
	Count   int    `json:"count"`
	Label   string `json:"label"`
	Subtext string `json:"subtext,omitempty"`
}

// FleetStatusCard summarizes fleet availability.
type FleetStatusCard struct {
	Active int `json:"active"`
	Total  int `json:"total"`
}

// DashboardStats is the admin dashboard aggregate payload.
type DashboardStats struct {
	Pending       StatCard        `json:"pending"`
	InProgress    StatCard        `json:"in_progress"`
	ResolvedToday StatCard        `json:"resolved_today"`
	FleetStatus   FleetStatusCard `json:"fleet_status"`
}

// SeverityCount is one slice of the severity breakdown chart.
type SeverityCount struct {
	Severity Severity `json:"severity"`
	Count    int      `json:"count"`
}

// AnalyticsResponse feeds the admin charts.
type AnalyticsResponse struct {
	SeverityBreakdown []SeverityCount `json:"severity_breakdown"`
}

// ViewPort is a lat/lng bounding box for map queries.
type ViewPort struct {
	LatMin float64 `json:"latmin"`
	LonMin float64 `json:"lonmin"`
	LatMax float64 `json:"latmax"`
	LonMax float64 `json:"lonmax"`
}

// Point is a map center.
type Point struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// MapArgs requests a clustered view of open reports.
type MapArgs struct {
	VPort  ViewPort `json:"vport" binding:"required"`
	Center Point    `json:"center"`
}

// MapResult is one cluster (or single report when Count == 1).
type MapResult struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Count     int64   `json:"count"`
	ReportID  string  `json:"report_id,omitempty"` // Ignored if Count > 1
}

// ReportEvent is the lifecycle event published to the message bus.
type ReportEvent struct {
	Event      string    `json:"event"` // report.submitted, report.dispatched, ...
	ReportID   string    `json:"report_id"`
	ReporterID string    `json:"reporter_id"`
	Status     string    `json:"status"`
	Actor      string    `json:"actor,omitempty"`
	Points     int       `json:"points,omitempty"`
	Timestamp  time.Time `json:"timestamp"`
}

// MessageResponse is a simple message payload.
type MessageResponse struct {
	Message string `json:"message"`
}

// ErrorResponse is a simple error payload.
type ErrorResponse struct {
	Error string `json:"error"`
}
