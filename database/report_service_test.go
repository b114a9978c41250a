package database

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"testing"
	"time"

	"kavaach/models"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jknair0/beforeeach"
)

var (
	db   *sql.DB
	mock sqlmock.Sqlmock
)

func setUp() {
	db, mock, _ = sqlmock.New()
}

func tearDown() {
	db.Close()
}

var it = beforeeach.Create(setUp, tearDown)

var reportCols = []string{
	"report_id", "reporter_id", "image", "lat", "lng", "address",
	"issue_type", "sub_category", "severity", "description", "status",
	"ai_confidence", "ai_detected_issue", "ai_estimated_size", "ai_severity_score", "ai_explanation",
	"assigned_truck", "assigned_team_lead", "before_photo", "after_photo", "repair_notes",
	"materials_asphalt_kg", "materials_labor_hours", "materials_cost",
	"resolved_at", "points_awarded", "created_at", "updated_at",
}

var historyCols = []string{"status", "changed_by", "ts", "notes"}

// reportRow builds a full result row with sensible defaults.
func reportRow(reportID, status string, resolvedAt interface{}) []driver.Value {
	now := time.Now()
	return []driver.Value{
		reportID, "user1", "data:image/jpeg;base64,xyz", nil, nil, nil,
		"Pothole", nil, "Medium", nil, status,
		nil, nil, nil, nil, nil,
		nil, "Unassigned", nil, nil, nil,
		nil, nil, nil,
		resolvedAt, 100, now, now,
	}
}

func expectGetReport(reportID, status string, resolvedAt interface{}) {
	mock.ExpectQuery("SELECT report_id, reporter_id, image").
		WithArgs(reportID).
		WillReturnRows(sqlmock.NewRows(reportCols).AddRow(reportRow(reportID, status, resolvedAt)...))
	mock.ExpectQuery("SELECT status, changed_by, ts, notes FROM report_status_history").
		WithArgs(reportID).
		WillReturnRows(sqlmock.NewRows(historyCols))
}

func TestCreateReport(t *testing.T) {
	it(func() {
		service := NewReportService(db, nil)
		year := time.Now().Year()
		reportID := fmt.Sprintf("KVH-%d-0412", year)

		mock.ExpectBegin()
		mock.ExpectExec("INSERT INTO report_sequences").
			WithArgs(year).
			WillReturnResult(sqlmock.NewResult(412, 1))
		mock.ExpectExec("INSERT INTO reports").
			WithArgs(reportID, "user1", "data:image/jpeg;base64,xyz", nil, nil, "",
				"Pothole", "", "Medium", "", "New", 100).
			WillReturnResult(sqlmock.NewResult(1, 1))
		mock.ExpectExec("UPDATE users SET civic_score").
			WithArgs(100, "user1").
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectCommit()
		expectGetReport(reportID, "New", nil)

		// Severity omitted defaults to Medium; issue type defaults to Pothole.
		report, err := service.CreateReport(context.Background(), "user1", &models.CreateReportRequest{
			Image: "data:image/jpeg;base64,xyz",
		})
		if err != nil {
			t.Fatalf("CreateReport: unexpected error: %v", err)
		}
		if report.Status != models.StatusNew {
			t.Errorf("CreateReport: expected status New, got %s", report.Status)
		}
		if len(report.StatusHistory) != 0 {
			t.Errorf("CreateReport: expected empty history, got %d entries", len(report.StatusHistory))
		}
		if err := mock.ExpectationsWereMet(); err != nil {
			t.Errorf("unmet expectations: %v", err)
		}
	})
}

func TestCreateReportValidation(t *testing.T) {
	it(func() {
		service := NewReportService(db, nil)

		testCases := []struct {
			name        string
			reporterID  string
			req         *models.CreateReportRequest
			expectedErr error
		}{
			{
				name:        "missing image",
				reporterID:  "user1",
				req:         &models.CreateReportRequest{},
				expectedErr: ErrValidation,
			},
			{
				name:        "bad severity",
				reporterID:  "user1",
				req:         &models.CreateReportRequest{Image: "x", Severity: "Catastrophic"},
				expectedErr: ErrValidation,
			},
			{
				name:        "missing reporter",
				reporterID:  "",
				req:         &models.CreateReportRequest{Image: "x"},
				expectedErr: ErrUserNotFound,
			},
		}

		for _, testCase := range testCases {
			_, err := service.CreateReport(context.Background(), testCase.reporterID, testCase.req)
			if !errors.Is(err, testCase.expectedErr) {
				t.Errorf("%s: expected %v, got %v", testCase.name, testCase.expectedErr, err)
			}
		}
		if err := mock.ExpectationsWereMet(); err != nil {
			t.Errorf("unmet expectations: %v", err)
		}
	})
}

func TestCreateReportUnknownReporter(t *testing.T) {
	it(func() {
		service := NewReportService(db, nil)

		mock.ExpectBegin()
		mock.ExpectExec("INSERT INTO report_sequences").
			WillReturnResult(sqlmock.NewResult(1, 1))
		mock.ExpectExec("INSERT INTO reports").
			WillReturnResult(sqlmock.NewResult(1, 1))
		mock.ExpectExec("UPDATE users SET civic_score").
			WithArgs(100, "ghost").
			WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectRollback()

		_, err := service.CreateReport(context.Background(), "ghost", &models.CreateReportRequest{Image: "x"})
		if !errors.Is(err, ErrUserNotFound) {
			t.Errorf("expected ErrUserNotFound, got %v", err)
		}
		if err := mock.ExpectationsWereMet(); err != nil {
			t.Errorf("unmet expectations: %v", err)
		}
	})
}

func TestUpdateStatusIllegalTransition(t *testing.T) {
	it(func() {
		service := NewReportService(db, nil)

		testCases := []struct {
			name    string
			current string
			target  string
		}{
			{"new to resolved", "New", "Resolved"},
			{"rejected is terminal", "Rejected", "In Progress"},
			{"resolved cannot reopen", "Resolved", "New"},
			{"dispatch before crew starts", "New", "In Progress"},
		}

		for _, testCase := range testCases {
			mock.ExpectBegin()
			mock.ExpectQuery("SELECT status, reporter_id, assigned_truck, resolved_at").
				WithArgs("KVH-2026-0001").
				WillReturnRows(sqlmock.NewRows([]string{"status", "reporter_id", "assigned_truck", "resolved_at"}).
					AddRow(testCase.current, "user1", nil, nil))
			mock.ExpectRollback()

			_, err := service.UpdateStatus(context.Background(), "KVH-2026-0001", "admin1",
				&models.UpdateStatusRequest{Status: testCase.target})
			if !errors.Is(err, ErrIllegalTransition) {
				t.Errorf("%s: expected ErrIllegalTransition, got %v", testCase.name, err)
			}
		}
		if err := mock.ExpectationsWereMet(); err != nil {
			t.Errorf("unmet expectations: %v", err)
		}
	})
}

func TestUpdateStatusFirstResolve(t *testing.T) {
	it(func() {
		service := NewReportService(db, nil)
		resolvedAt := time.Now()

		mock.ExpectBegin()
		mock.ExpectQuery("SELECT status, reporter_id, assigned_truck, resolved_at").
			WithArgs("KVH-2026-0001").
			WillReturnRows(sqlmock.NewRows([]string{"status", "reporter_id", "assigned_truck", "resolved_at"}).
				AddRow("In Progress", "user1", "TRK-01", nil))
		mock.ExpectExec(`UPDATE reports SET status = \?, resolved_at = NOW\(3\), repair_notes = \? WHERE report_id = \?`).
			WithArgs("Resolved", "Filled and compacted", "KVH-2026-0001").
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectExec("UPDATE users SET civic_score").
			WithArgs(50, "user1").
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectExec("UPDATE trucks").
			WithArgs("Available", "TRK-01", "KVH-2026-0001").
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectExec("INSERT INTO report_status_history").
			WithArgs("KVH-2026-0001", "Resolved", "admin1", "Filled and compacted").
			WillReturnResult(sqlmock.NewResult(1, 1))
		mock.ExpectCommit()
		expectGetReport("KVH-2026-0001", "Resolved", resolvedAt)

		report, err := service.UpdateStatus(context.Background(), "KVH-2026-0001", "admin1",
			&models.UpdateStatusRequest{Status: "Resolved", Notes: "Filled and compacted"})
		if err != nil {
			t.Fatalf("UpdateStatus: unexpected error: %v", err)
		}
		if report.ResolvedAt == nil {
			t.Error("UpdateStatus: expected resolved_at to be set")
		}
		if err := mock.ExpectationsWereMet(); err != nil {
			t.Errorf("unmet expectations: %v", err)
		}
	})
}

func TestUpdateStatusResolveAgainKeepsTimestamp(t *testing.T) {
	it(func() {
		service := NewReportService(db, nil)
		resolvedAt := time.Now().Add(-time.Hour)

		// Same-status call on an already resolved report: the audit entry is
		// appended but resolved_at and the bonus stay untouched.
		mock.ExpectBegin()
		mock.ExpectQuery("SELECT status, reporter_id, assigned_truck, resolved_at").
			WithArgs("KVH-2026-0001").
			WillReturnRows(sqlmock.NewRows([]string{"status", "reporter_id", "assigned_truck", "resolved_at"}).
				AddRow("Resolved", "user1", nil, resolvedAt))
		mock.ExpectExec(`UPDATE reports SET status = \? WHERE report_id = \?`).
			WithArgs("Resolved", "KVH-2026-0001").
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectExec("INSERT INTO report_status_history").
			WithArgs("KVH-2026-0001", "Resolved", "admin2", "verified on site").
			WillReturnResult(sqlmock.NewResult(2, 1))
		mock.ExpectCommit()
		expectGetReport("KVH-2026-0001", "Resolved", resolvedAt)

		_, err := service.UpdateStatus(context.Background(), "KVH-2026-0001", "admin2",
			&models.UpdateStatusRequest{Status: "Resolved", Notes: "verified on site"})
		if err != nil {
			t.Fatalf("UpdateStatus: unexpected error: %v", err)
		}
		if err := mock.ExpectationsWereMet(); err != nil {
			t.Errorf("unmet expectations: %v", err)
		}
	})
}

func TestUpdateStatusNotFound(t *testing.T) {
	it(func() {
		service := NewReportService(db, nil)

		mock.ExpectBegin()
		mock.ExpectQuery("SELECT status, reporter_id, assigned_truck, resolved_at").
			WithArgs("KVH-2026-9999").
			WillReturnError(sql.ErrNoRows)
		mock.ExpectRollback()

		_, err := service.UpdateStatus(context.Background(), "KVH-2026-9999", "admin1",
			&models.UpdateStatusRequest{Status: "Pending"})
		if !errors.Is(err, ErrReportNotFound) {
			t.Errorf("expected ErrReportNotFound, got %v", err)
		}
		if err := mock.ExpectationsWereMet(); err != nil {
			t.Errorf("unmet expectations: %v", err)
		}
	})
}

func TestGetReportHistoryOrder(t *testing.T) {
	it(func() {
		service := NewReportService(db, nil)
		base := time.Now().Add(-2 * time.Hour)

		mock.ExpectQuery("SELECT report_id, reporter_id, image").
			WithArgs("KVH-2026-0001").
			WillReturnRows(sqlmock.NewRows(reportCols).AddRow(reportRow("KVH-2026-0001", "In Progress", nil)...))
		mock.ExpectQuery("SELECT status, changed_by, ts, notes FROM report_status_history").
			WithArgs("KVH-2026-0001").
			WillReturnRows(sqlmock.NewRows(historyCols).
				AddRow("Dispatched", "admin1", base, "Assigned to TRK-01 with Team Lead General Team").
				AddRow("In Progress", "admin1", base.Add(time.Hour), nil))

		report, err := service.GetReport(context.Background(), "KVH-2026-0001")
		if err != nil {
			t.Fatalf("GetReport: unexpected error: %v", err)
		}
		if len(report.StatusHistory) != 2 {
			t.Fatalf("GetReport: expected 2 history entries, got %d", len(report.StatusHistory))
		}
		if report.StatusHistory[0].Status != models.StatusDispatched ||
			report.StatusHistory[1].Status != models.StatusInProgress {
			t.Errorf("GetReport: history out of order: %+v", report.StatusHistory)
		}
		if err := mock.ExpectationsWereMet(); err != nil {
			t.Errorf("unmet expectations: %v", err)
		}
	})
}

func TestListReportsRejectsUnknownStatus(t *testing.T) {
	it(func() {
		service := NewReportService(db, nil)

		_, err := service.ListReports(context.Background(), ReportFilter{Status: "Fixed"})
		if !errors.Is(err, ErrValidation) {
			t.Errorf("expected ErrValidation, got %v", err)
		}
	})
}
