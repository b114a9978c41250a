package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"kavaach/models"

	"github.com/apex/log"
)

// FleetService handles truck persistence and the dispatch coordinator.
type FleetService struct {
	db      *sql.DB
	reports *ReportService
	events  EventPublisher
}

// NewFleetService creates a new fleet service instance
func NewFleetService(db *sql.DB, reports *ReportService, events EventPublisher) *FleetService {
	return &FleetService{db: db, reports: reports, events: events}
}

const truckColumns = `truck_id, driver_name, driver_phone, lat, lng, address,
	status, fuel_level, last_maintenance, assignments_today, current_task,
	equip_asphalt_mix_kg, equip_compactor, equip_safety_cones, created_at, updated_at`

// CreateTruck registers a new fleet unit.
func (s *FleetService) CreateTruck(ctx context.Context, req *models.CreateTruckRequest) (*models.Truck, error) {
	fuel := 100
	if req.FuelLevel != nil {
		fuel = *req.FuelLevel
	}
	equip := models.Equipment{Compactor: true, SafetyCones: true}
	if req.Equipment != nil {
		equip = *req.Equipment
	}

	var lat, lng interface{}
	var address string
	if req.Location != nil {
		lat, lng = req.Location.Lat, req.Location.Lng
		address = req.Location.Address
	}

	_, err := s.db.ExecContext(ctx, `INSERT INTO trucks
		(truck_id, driver_name, driver_phone, lat, lng, address, status, fuel_level,
		 equip_asphalt_mix_kg, equip_compactor, equip_safety_cones)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		req.TruckID, req.DriverName, req.DriverPhone, lat, lng, address,
		string(models.TruckAvailable), fuel,
		equip.AsphaltMixKg, equip.Compactor, equip.SafetyCones)
	if err != nil {
		if isDuplicateKey(err) {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateTruck, req.TruckID)
		}
		return nil, fmt.Errorf("failed to insert truck: %w", err)
	}

	return s.GetTruck(ctx, req.TruckID)
}

// GetTruck retrieves a truck by its code.
func (s *FleetService) GetTruck(ctx context.Context, truckID string) (*models.Truck, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+truckColumns+` FROM trucks WHERE truck_id = ?`, truckID)
	truck, err := scanTruck(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("%w: %s", ErrTruckNotFound, truckID)
		}
		return nil, fmt.Errorf("failed to query truck: %w", err)
	}
	return truck, nil
}

// ListTrucks returns all trucks, optionally filtered by status.
func (s *FleetService) ListTrucks(ctx context.Context, statusFilter string) ([]*models.Truck, error) {
	query := `SELECT ` + truckColumns + ` FROM trucks`
	args := []interface{}{}
	if statusFilter != "" {
		status, err := models.ParseTruckStatus(statusFilter)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrValidation, err)
		}
		query += ` WHERE status = ?`
		args = append(args, string(status))
	}
	query += ` ORDER BY truck_id`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query trucks: %w", err)
	}
	defer rows.Close()

	trucks := []*models.Truck{}
	for rows.Next() {
		truck, err := scanTruck(rows)
		if err != nil {
			log.Errorf("Cannot scan a truck row: %v", err)
			continue
		}
		trucks = append(trucks, truck)
	}
	return trucks, rows.Err()
}

// SetStatus is the low-level truck mutator. It does not enforce the
// exclusivity invariant; that is Assign's job. Task may be empty to clear
// the current assignment.
func (s *FleetService) SetStatus(ctx context.Context, truckID string, status models.TruckStatus, task string) (*models.Truck, error) {
	var taskArg interface{}
	if task != "" {
		taskArg = task
	}
	result, err := s.db.ExecContext(ctx,
		`UPDATE trucks SET status = ?, current_task = ? WHERE truck_id = ?`,
		string(status), taskArg, truckID)
	if err != nil {
		return nil, fmt.Errorf("failed to update truck status: %w", err)
	}
	if rows, err := result.RowsAffected(); err == nil && rows == 0 {
		// Zero affected rows may also mean a no-op update; verify existence.
		if _, err := s.GetTruck(ctx, truckID); err != nil {
			return nil, err
		}
	}
	return s.GetTruck(ctx, truckID)
}

// Assign binds a truck to a report: the one operation with a genuine
// cross-entity invariant. The truck row is locked for the duration of the
// transaction, so of N concurrent assigns for one truck exactly one commits
// and the rest observe the binding and fail with ErrTruckBusy.
func (s *FleetService) Assign(ctx context.Context, req *models.AssignRequest, actor string) (*models.Truck, *models.Report, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	// Lock the report first, then the truck. UpdateStatus takes its locks in
	// the same order, so a concurrent resolve and assign on the same pair
	// cannot deadlock.
	var reportStatus string
	var assignedTruck sql.NullString
	err = tx.QueryRowContext(ctx, `SELECT status, assigned_truck FROM reports
		WHERE report_id = ? FOR UPDATE`, req.ReportID).
		Scan(&reportStatus, &assignedTruck)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil, fmt.Errorf("%w: %s", ErrReportNotFound, req.ReportID)
		}
		return nil, nil, fmt.Errorf("failed to lock report: %w", err)
	}

	current := models.ReportStatus(reportStatus)
	if current.IsTerminal() {
		return nil, nil, fmt.Errorf("%w: %s", ErrReportClosed, req.ReportID)
	}
	if !models.CanTransition(current, models.StatusDispatched) {
		return nil, nil, fmt.Errorf("%w: %s -> %s", ErrIllegalTransition, current, models.StatusDispatched)
	}

	var truckStatus string
	var currentTask sql.NullString
	err = tx.QueryRowContext(ctx, `SELECT status, current_task FROM trucks
		WHERE truck_id = ? FOR UPDATE`, req.TruckID).
		Scan(&truckStatus, &currentTask)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil, fmt.Errorf("%w: %s", ErrTruckNotFound, req.TruckID)
		}
		return nil, nil, fmt.Errorf("failed to lock truck: %w", err)
	}

	// A truck bound to an unresolved report cannot take another task.
	// Reassignment from a closed report is allowed.
	if currentTask.Valid && currentTask.String != "" && currentTask.String != req.ReportID {
		var taskStatus string
		err := tx.QueryRowContext(ctx, `SELECT status FROM reports WHERE report_id = ?`,
			currentTask.String).Scan(&taskStatus)
		if err != nil && err != sql.ErrNoRows {
			return nil, nil, fmt.Errorf("failed to check current task: %w", err)
		}
		if err == nil && models.ReportStatus(taskStatus).IsOpen() {
			return nil, nil, fmt.Errorf("%w: %s is on %s", ErrTruckBusy, req.TruckID, currentTask.String)
		}
	}

	// Re-dispatch: free the previously bound truck so it does not keep a
	// stale task reference.
	if assignedTruck.Valid && assignedTruck.String != "" && assignedTruck.String != req.TruckID {
		if _, err := tx.ExecContext(ctx, `UPDATE trucks
			SET status = ?, current_task = NULL
			WHERE truck_id = ? AND current_task = ?`,
			string(models.TruckAvailable), assignedTruck.String, req.ReportID); err != nil {
			return nil, nil, fmt.Errorf("failed to release previous truck: %w", err)
		}
	}

	if _, err := tx.ExecContext(ctx, `UPDATE trucks
		SET status = ?, current_task = ?, assignments_today = assignments_today + 1
		WHERE truck_id = ?`,
		string(models.TruckEnRoute), req.ReportID, req.TruckID); err != nil {
		return nil, nil, fmt.Errorf("failed to update truck: %w", err)
	}

	teamLead := req.TeamLead
	if teamLead == "" {
		teamLead = "General Team"
	}

	updates := `status = ?, assigned_truck = ?, assigned_team_lead = ?`
	args := []interface{}{string(models.StatusDispatched), req.TruckID, teamLead}
	if req.Priority != "" {
		severity, err := models.ParseSeverity(req.Priority)
		if err != nil {
			return nil, nil, fmt.Errorf("%w: %v", ErrValidation, err)
		}
		updates += `, severity = ?`
		args = append(args, string(severity))
	}
	args = append(args, req.ReportID)
	if _, err := tx.ExecContext(ctx,
		`UPDATE reports SET `+updates+` WHERE report_id = ?`, args...); err != nil {
		return nil, nil, fmt.Errorf("failed to update report: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `INSERT INTO report_status_history (report_id, status, changed_by, notes)
		VALUES (?, ?, ?, ?)`,
		req.ReportID, string(models.StatusDispatched), actor,
		fmt.Sprintf("Assigned to %s with Team Lead %s", req.TruckID, teamLead)); err != nil {
		return nil, nil, fmt.Errorf("failed to append status history: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	if s.events != nil {
		event := &models.ReportEvent{
			Event:     "report.dispatched",
			ReportID:  req.ReportID,
			Status:    string(models.StatusDispatched),
			Actor:     actor,
			Timestamp: time.Now().UTC(),
		}
		if err := s.events.Publish(event); err != nil {
			log.Errorf("Failed to publish %s event for %s: %v", event.Event, event.ReportID, err)
		}
	}

	truck, err := s.GetTruck(ctx, req.TruckID)
	if err != nil {
		return nil, nil, err
	}
	report, err := s.reports.GetReport(ctx, req.ReportID)
	if err != nil {
		return nil, nil, err
	}
	return truck, report, nil
}

func scanTruck(row rowScanner) (*models.Truck, error) {
	var (
		t               models.Truck
		lat, lng        sql.NullFloat64
		address         sql.NullString
		status          string
		lastMaintenance sql.NullTime
		currentTask     sql.NullString
	)

	err := row.Scan(&t.TruckID, &t.DriverName, &t.DriverPhone, &lat, &lng, &address,
		&status, &t.FuelLevel, &lastMaintenance, &t.AssignmentsToday, &currentTask,
		&t.Equipment.AsphaltMixKg, &t.Equipment.Compactor, &t.Equipment.SafetyCones,
		&t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		return nil, err
	}

	if lat.Valid && lng.Valid {
		t.CurrentLocation = &models.Location{Lat: lat.Float64, Lng: lng.Float64, Address: address.String}
	}
	t.Status = models.TruckStatus(status)
	if lastMaintenance.Valid {
		lm := lastMaintenance.Time
		t.LastMaintenance = &lm
	}
	t.CurrentTask = currentTask.String
	return &t, nil
}
