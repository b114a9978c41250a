package database

import (
	"context"
	"database/sql"
	"fmt"

	"kavaach/models"
)

// DashboardService computes read-side aggregates for the admin dashboard.
// No invariants live here.
type DashboardService struct {
	db *sql.DB
}

// NewDashboardService creates a new dashboard service instance
func NewDashboardService(db *sql.DB) *DashboardService {
	return &DashboardService{db: db}
}

// Stats returns the dashboard tiles: queue depth, work in flight, today's
// resolutions and fleet availability.
func (s *DashboardService) Stats(ctx context.Context) (*models.DashboardStats, error) {
	var pending, inProgress, resolvedToday, activeTrucks, totalTrucks int

	err := s.db.QueryRowContext(ctx, `SELECT
		SUM(IF(status IN ('New', 'Pending', 'AI Analyzed'), 1, 0)),
		SUM(IF(status IN ('Dispatched', 'In Progress'), 1, 0)),
		SUM(IF(status = 'Resolved' AND resolved_at >= CURDATE(), 1, 0))
		FROM reports`).Scan(
		nullableCount{&pending}, nullableCount{&inProgress}, nullableCount{&resolvedToday})
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate report stats: %w", err)
	}

	err = s.db.QueryRowContext(ctx, `SELECT
		SUM(IF(status != 'Offline/Maintenance', 1, 0)), COUNT(*)
		FROM trucks`).Scan(nullableCount{&activeTrucks}, &totalTrucks)
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate fleet stats: %w", err)
	}

	return &models.DashboardStats{
		Pending:       models.StatCard{Count: pending, Label: "Awaiting Dispatch"},
		InProgress:    models.StatCard{Count: inProgress, Label: "Currently Being Fixed"},
		ResolvedToday: models.StatCard{Count: resolvedToday, Label: "Issues Resolved Today"},
		FleetStatus:   models.FleetStatusCard{Active: activeTrucks, Total: totalTrucks},
	}, nil
}

// SeverityBreakdown groups all reports by severity for the analytics chart.
func (s *DashboardService) SeverityBreakdown(ctx context.Context) ([]models.SeverityCount, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT severity, COUNT(*) FROM reports GROUP BY severity`)
	if err != nil {
		return nil, fmt.Errorf("failed to group by severity: %w", err)
	}
	defer rows.Close()

	breakdown := []models.SeverityCount{}
	for rows.Next() {
		var entry models.SeverityCount
		var severity string
		if err := rows.Scan(&severity, &entry.Count); err != nil {
			return nil, fmt.Errorf("failed to scan severity row: %w", err)
		}
		entry.Severity = models.Severity(severity)
		breakdown = append(breakdown, entry)
	}
	return breakdown, rows.Err()
}

// nullableCount scans a SUM() result that is NULL on empty tables as zero.
type nullableCount struct {
	dst *int
}

func (n nullableCount) Scan(value interface{}) error {
	var v sql.NullInt64
	if err := v.Scan(value); err != nil {
		return err
	}
	*n.dst = int(v.Int64)
	return nil
}
