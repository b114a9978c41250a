package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"kavaach/models"
	"kavaach/scoring"

	"github.com/apex/log"
	"github.com/shopspring/decimal"
)

// EventPublisher publishes report lifecycle events to the message bus.
// A nil publisher disables publishing; events are best-effort and never
// fail the request path.
type EventPublisher interface {
	Publish(message interface{}) error
}

// ReportService handles all report persistence and the status machine.
type ReportService struct {
	db     *sql.DB
	events EventPublisher
}

// NewReportService creates a new report service instance
func NewReportService(db *sql.DB, events EventPublisher) *ReportService {
	return &ReportService{db: db, events: events}
}

const reportColumns = `report_id, reporter_id, image, lat, lng, address,
	issue_type, sub_category, severity, description, status,
	ai_confidence, ai_detected_issue, ai_estimated_size, ai_severity_score, ai_explanation,
	assigned_truck, assigned_team_lead, before_photo, after_photo, repair_notes,
	materials_asphalt_kg, materials_labor_hours, materials_cost,
	resolved_at, points_awarded, created_at, updated_at`

// CreateReport validates and persists a citizen submission. The report code,
// the submission reward on the reporter's civic score and the report row are
// committed in a single transaction so the reward is applied exactly once
// per report.
func (s *ReportService) CreateReport(ctx context.Context, reporterID string, req *models.CreateReportRequest) (*models.Report, error) {
	if reporterID == "" {
		return nil, fmt.Errorf("%w: missing reporter", ErrUserNotFound)
	}
	if req.Image == "" {
		return nil, fmt.Errorf("%w: image is required", ErrValidation)
	}

	severity, err := models.ParseSeverity(req.Severity)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrValidation, err)
	}

	issueType := req.IssueType
	if issueType == "" {
		issueType = "Pothole"
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	reportID, err := nextReportCode(ctx, tx, time.Now().Year())
	if err != nil {
		return nil, err
	}

	points := scoring.ForEvent(scoring.EventSubmitted)

	var lat, lng interface{}
	var address string
	if req.Location != nil {
		lat, lng = req.Location.Lat, req.Location.Lng
		address = req.Location.Address
	}

	_, err = tx.ExecContext(ctx, `INSERT INTO reports
		(report_id, reporter_id, image, lat, lng, address, issue_type, sub_category, severity, description, status, points_awarded)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		reportID, reporterID, req.Image, lat, lng, address,
		issueType, req.SubCategory, string(severity), req.Description,
		string(models.StatusNew), points)
	if err != nil {
		return nil, fmt.Errorf("failed to insert report: %w", err)
	}

	result, err := tx.ExecContext(ctx,
		`UPDATE users SET civic_score = civic_score + ? WHERE id = ?`, points, reporterID)
	if err != nil {
		return nil, fmt.Errorf("failed to award submission points: %w", err)
	}
	if rows, err := result.RowsAffected(); err == nil && rows != 1 {
		return nil, fmt.Errorf("%w: %s", ErrUserNotFound, reporterID)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	s.publishEvent(&models.ReportEvent{
		Event:      "report.submitted",
		ReportID:   reportID,
		ReporterID: reporterID,
		Status:     string(models.StatusNew),
		Points:     points,
		Timestamp:  time.Now().UTC(),
	})

	return s.GetReport(ctx, reportID)
}

// nextReportCode allocates the next year-scoped report code, e.g.
// KVH-2026-0412. The counter row is bumped atomically so codes are unique
// under concurrent submissions.
func nextReportCode(ctx context.Context, tx *sql.Tx, year int) (string, error) {
	result, err := tx.ExecContext(ctx, `INSERT INTO report_sequences (year, seq)
		VALUES (?, LAST_INSERT_ID(1))
		ON DUPLICATE KEY UPDATE seq = LAST_INSERT_ID(seq + 1)`, year)
	if err != nil {
		return "", fmt.Errorf("failed to allocate report sequence: %w", err)
	}
	seq, err := result.LastInsertId()
	if err != nil {
		return "", fmt.Errorf("failed to read report sequence: %w", err)
	}
	return fmt.Sprintf("KVH-%d-%04d", year, seq), nil
}

// GetReport retrieves a report with its full status history.
func (s *ReportService) GetReport(ctx context.Context, reportID string) (*models.Report, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+reportColumns+` FROM reports WHERE report_id = ?`, reportID)
	report, err := scanReport(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("%w: %s", ErrReportNotFound, reportID)
		}
		return nil, fmt.Errorf("failed to query report: %w", err)
	}

	history, err := s.loadHistory(ctx, reportID)
	if err != nil {
		return nil, err
	}
	report.StatusHistory = history
	return report, nil
}

// ReportFilter narrows ListReports results. Zero values mean no filtering.
type ReportFilter struct {
	Status     string
	Severity   string
	ReporterID string
}

// ListReports returns reports newest-first. History is not loaded for list
// views; fetch a single report for the audit trail.
func (s *ReportService) ListReports(ctx context.Context, filter ReportFilter) ([]*models.Report, error) {
	query := `SELECT ` + reportColumns + ` FROM reports`
	where := []string{}
	args := []interface{}{}

	if filter.Status != "" {
		status, err := models.ParseReportStatus(filter.Status)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrValidation, err)
		}
		where = append(where, "status = ?")
		args = append(args, string(status))
	}
	if filter.Severity != "" {
		severity, err := models.ParseSeverity(filter.Severity)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrValidation, err)
		}
		where = append(where, "severity = ?")
		args = append(args, string(severity))
	}
	if filter.ReporterID != "" {
		where = append(where, "reporter_id = ?")
		args = append(args, filter.ReporterID)
	}

	for i, cond := range where {
		if i == 0 {
			query += " WHERE " + cond
		} else {
			query += " AND " + cond
		}
	}
	query += " ORDER BY created_at DESC"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query reports: %w", err)
	}
	defer rows.Close()

	reports := []*models.Report{}
	for rows.Next() {
		report, err := scanReport(rows)
		if err != nil {
			log.Errorf("Cannot scan a report row: %v", err)
			continue
		}
		reports = append(reports, report)
	}
	return reports, rows.Err()
}

// OpenReportLocations returns the coordinates of unresolved reports inside a
// viewport, for the admin live map.
func (s *ReportService) OpenReportLocations(ctx context.Context, vp models.ViewPort) ([]models.MapResult, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT report_id, lat, lng
		FROM reports
		WHERE lat IS NOT NULL AND lng IS NOT NULL
			AND lat > ? AND lng > ? AND lat <= ? AND lng <= ?
			AND status NOT IN ('Resolved', 'Rejected')`,
		vp.LatMin, vp.LonMin, vp.LatMax, vp.LonMax)
	if err != nil {
		log.Errorf("Could not retrieve open reports: %v", err)
		return nil, err
	}
	defer rows.Close()

	results := make([]models.MapResult, 0, 100)
	for rows.Next() {
		var id string
		var lat, lng float64
		if err := rows.Scan(&id, &lat, &lng); err != nil {
			log.Errorf("Cannot scan a row: %v", err)
			continue
		}
		results = append(results, models.MapResult{Latitude: lat, Longitude: lng, Count: 1, ReportID: id})
	}
	return results, rows.Err()
}

// UpdateStatus is the only sanctioned way to mutate a report's status. It
// validates the transition table, always appends a history entry with a
// server-assigned timestamp (even for note-only same-status calls), sets
// resolved_at exactly once on the first Resolved transition, awards the
// resolution bonus idempotently, and frees the assigned truck on terminal
// transitions.
func (s *ReportService) UpdateStatus(ctx context.Context, reportID, actor string, req *models.UpdateStatusRequest) (*models.Report, error) {
	target, err := models.ParseReportStatus(req.Status)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrValidation, err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var (
		currentRaw    string
		reporterID    string
		assignedTruck sql.NullString
		resolvedAt    sql.NullTime
	)
	err = tx.QueryRowContext(ctx, `SELECT status, reporter_id, assigned_truck, resolved_at
		FROM reports WHERE report_id = ? FOR UPDATE`, reportID).
		Scan(&currentRaw, &reporterID, &assignedTruck, &resolvedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("%w: %s", ErrReportNotFound, reportID)
		}
		return nil, fmt.Errorf("failed to lock report: %w", err)
	}
	current := models.ReportStatus(currentRaw)

	if !models.CanTransition(current, target) {
		return nil, fmt.Errorf("%w: %s -> %s", ErrIllegalTransition, current, target)
	}

	updates := []string{"status = ?"}
	args := []interface{}{string(target)}

	if req.AssignedTeamLead != "" {
		updates = append(updates, "assigned_team_lead = ?")
		args = append(args, req.AssignedTeamLead)
	}
	if req.Priority != "" {
		severity, err := models.ParseSeverity(req.Priority)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrValidation, err)
		}
		updates = append(updates, "severity = ?")
		args = append(args, string(severity))
	}
	if req.BeforePhoto != "" {
		updates = append(updates, "before_photo = ?")
		args = append(args, req.BeforePhoto)
	}
	if req.AfterPhoto != "" {
		updates = append(updates, "after_photo = ?")
		args = append(args, req.AfterPhoto)
	}

	firstResolve := target == models.StatusResolved && !resolvedAt.Valid
	if firstResolve {
		updates = append(updates, "resolved_at = NOW(3)")
		if req.Notes != "" {
			updates = append(updates, "repair_notes = ?")
			args = append(args, req.Notes)
		}
		if req.MaterialsUsed != nil {
			updates = append(updates, "materials_asphalt_kg = ?", "materials_labor_hours = ?", "materials_cost = ?")
			args = append(args, req.MaterialsUsed.AsphaltKg, req.MaterialsUsed.LaborHours, req.MaterialsUsed.Cost)
		}
	}

	args = append(args, reportID)
	query := "UPDATE reports SET "
	for i, u := range updates {
		if i > 0 {
			query += ", "
		}
		query += u
	}
	query += " WHERE report_id = ?"
	if _, err := tx.ExecContext(ctx, query, args...); err != nil {
		return nil, fmt.Errorf("failed to update report: %w", err)
	}

	if firstResolve {
		bonus := scoring.ForEvent(scoring.EventResolved)
		if _, err := tx.ExecContext(ctx,
			`UPDATE users SET civic_score = civic_score + ? WHERE id = ?`, bonus, reporterID); err != nil {
			return nil, fmt.Errorf("failed to award resolution bonus: %w", err)
		}
	}

	// A closed report no longer holds its truck.
	if target.IsTerminal() && assignedTruck.Valid && assignedTruck.String != "" {
		if _, err := tx.ExecContext(ctx, `UPDATE trucks
			SET status = ?, current_task = NULL
			WHERE truck_id = ? AND current_task = ?`,
			string(models.TruckAvailable), assignedTruck.String, reportID); err != nil {
			return nil, fmt.Errorf("failed to release truck: %w", err)
		}
	}

	if _, err := tx.ExecContext(ctx, `INSERT INTO report_status_history (report_id, status, changed_by, notes)
		VALUES (?, ?, ?, ?)`, reportID, string(target), actor, req.Notes); err != nil {
		return nil, fmt.Errorf("failed to append status history: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	event := "report.status_changed"
	if firstResolve {
		event = "report.resolved"
	}
	s.publishEvent(&models.ReportEvent{
		Event:      event,
		ReportID:   reportID,
		ReporterID: reporterID,
		Status:     string(target),
		Actor:      actor,
		Timestamp:  time.Now().UTC(),
	})

	return s.GetReport(ctx, reportID)
}

func (s *ReportService) loadHistory(ctx context.Context, reportID string) ([]models.StatusHistoryEntry, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT status, changed_by, ts, notes
		FROM report_status_history WHERE report_id = ? ORDER BY seq`, reportID)
	if err != nil {
		return nil, fmt.Errorf("failed to query status history: %w", err)
	}
	defer rows.Close()

	history := []models.StatusHistoryEntry{}
	for rows.Next() {
		var entry models.StatusHistoryEntry
		var status string
		var notes sql.NullString
		if err := rows.Scan(&status, &entry.ChangedBy, &entry.Timestamp, &notes); err != nil {
			return nil, fmt.Errorf("failed to scan history entry: %w", err)
		}
		entry.Status = models.ReportStatus(status)
		entry.Notes = notes.String
		history = append(history, entry)
	}
	return history, rows.Err()
}

// SetAIAnalysis stores the vision service verdict and moves the report
// New -> AI Analyzed through the status machine. Called by the async
// pre-fill worker; actor is recorded as System.
func (s *ReportService) SetAIAnalysis(ctx context.Context, reportID string, analysis *models.AIAnalysis) error {
	_, err := s.db.ExecContext(ctx, `UPDATE reports
		SET ai_confidence = ?, ai_detected_issue = ?, ai_estimated_size = ?, ai_severity_score = ?, ai_explanation = ?
		WHERE report_id = ?`,
		analysis.Confidence, analysis.DetectedIssue, analysis.EstimatedSize,
		analysis.SeverityScore, analysis.Explanation, reportID)
	if err != nil {
		return fmt.Errorf("failed to store AI analysis: %w", err)
	}

	_, err = s.UpdateStatus(ctx, reportID, "System", &models.UpdateStatusRequest{
		Status: string(models.StatusAIAnalyzed),
		Notes:  fmt.Sprintf("AI detected %s (confidence %.2f)", analysis.DetectedIssue, analysis.Confidence),
	})
	return err
}

func (s *ReportService) publishEvent(event *models.ReportEvent) {
	if s.events == nil {
		return
	}
	if err := s.events.Publish(event); err != nil {
		log.Errorf("Failed to publish %s event for %s: %v", event.Event, event.ReportID, err)
	}
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanReport(row rowScanner) (*models.Report, error) {
	var (
		r                models.Report
		lat, lng         sql.NullFloat64
		address          sql.NullString
		subCategory      sql.NullString
		description      sql.NullString
		severity, status string
		aiConfidence     sql.NullFloat64
		aiDetected       sql.NullString
		aiSize           sql.NullString
		aiScore          sql.NullFloat64
		aiExplanation    sql.NullString
		assignedTruck    sql.NullString
		beforePhoto      sql.NullString
		afterPhoto       sql.NullString
		repairNotes      sql.NullString
		asphaltKg        decimal.NullDecimal
		laborHours       decimal.NullDecimal
		cost             decimal.NullDecimal
		resolvedAt       sql.NullTime
	)

	err := row.Scan(&r.ReportID, &r.ReporterID, &r.Image, &lat, &lng, &address,
		&r.IssueType, &subCategory, &severity, &description, &status,
		&aiConfidence, &aiDetected, &aiSize, &aiScore, &aiExplanation,
		&assignedTruck, &r.AssignedTeamLead, &beforePhoto, &afterPhoto, &repairNotes,
		&asphaltKg, &laborHours, &cost,
		&resolvedAt, &r.PointsAwarded, &r.CreatedAt, &r.UpdatedAt)
	if err != nil {
		return nil, err
	}

	if lat.Valid && lng.Valid {
		r.Location = &models.Location{Lat: lat.Float64, Lng: lng.Float64, Address: address.String}
	}
	r.SubCategory = subCategory.String
	r.Severity = models.Severity(severity)
	r.Description = description.String
	r.Status = models.ReportStatus(status)
	if aiDetected.Valid && aiDetected.String != "" {
		r.AIAnalysis = &models.AIAnalysis{
			Confidence:    aiConfidence.Float64,
			DetectedIssue: aiDetected.String,
			EstimatedSize: aiSize.String,
			SeverityScore: aiScore.Float64,
			Explanation:   aiExplanation.String,
		}
	}
	r.AssignedTruck = assignedTruck.String
	r.BeforePhoto = beforePhoto.String
	r.AfterPhoto = afterPhoto.String
	r.RepairNotes = repairNotes.String
	if asphaltKg.Valid || laborHours.Valid || cost.Valid {
		r.MaterialsUsed = &models.MaterialsUsed{
			AsphaltKg:  asphaltKg.Decimal,
			LaborHours: laborHours.Decimal,
			Cost:       cost.Decimal,
		}
	}
	if resolvedAt.Valid {
		t := resolvedAt.Time
		r.ResolvedAt = &t
	}
	return &r, nil
}
