package database

import (
	"context"
	"database/sql/driver"
	"errors"
	"testing"
	"time"

	"kavaach/models"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/go-sql-driver/mysql"
)

var truckCols = []string{
	"truck_id", "driver_name", "driver_phone", "lat", "lng", "address",
	"status", "fuel_level", "last_maintenance", "assignments_today", "current_task",
	"equip_asphalt_mix_kg", "equip_compactor", "equip_safety_cones", "created_at", "updated_at",
}

func truckRow(truckID, status string, currentTask interface{}) []driver.Value {
	now := time.Now()
	return []driver.Value{
		truckID, "Ramesh Kumar", "+91-9876543210", nil, nil, nil,
		status, 85, nil, 1, currentTask,
		500, true, true, now, now,
	}
}

func newFleetService() *FleetService {
	reports := NewReportService(db, nil)
	return NewFleetService(db, reports, nil)
}

func TestAssignTruck(t *testing.T) {
	it(func() {
		service := newFleetService()

		mock.ExpectBegin()
		mock.ExpectQuery("SELECT status, assigned_truck FROM reports").
			WithArgs("KVH-2026-0001").
			WillReturnRows(sqlmock.NewRows([]string{"status", "assigned_truck"}).
				AddRow("New", nil))
		mock.ExpectQuery("SELECT status, current_task FROM trucks").
			WithArgs("TRK-01").
			WillReturnRows(sqlmock.NewRows([]string{"status", "current_task"}).
				AddRow("Available", nil))
		mock.ExpectExec(`UPDATE trucks SET status = \?, current_task = \?, assignments_today`).
			WithArgs("En Route", "KVH-2026-0001", "TRK-01").
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectExec(`UPDATE reports SET status = \?, assigned_truck = \?, assigned_team_lead = \?`).
			WithArgs("Dispatched", "TRK-01", "General Team", "KVH-2026-0001").
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectExec("INSERT INTO report_status_history").
			WithArgs("KVH-2026-0001", "Dispatched", "admin1", "Assigned to TRK-01 with Team Lead General Team").
			WillReturnResult(sqlmock.NewResult(1, 1))
		mock.ExpectCommit()
		mock.ExpectQuery("SELECT truck_id, driver_name").
			WithArgs("TRK-01").
			WillReturnRows(sqlmock.NewRows(truckCols).AddRow(truckRow("TRK-01", "En Route", "KVH-2026-0001")...))
		expectGetReport("KVH-2026-0001", "Dispatched", nil)

		truck, report, err := service.Assign(context.Background(),
			&models.AssignRequest{TruckID: "TRK-01", ReportID: "KVH-2026-0001"}, "admin1")
		if err != nil {
			t.Fatalf("Assign: unexpected error: %v", err)
		}
		if truck.Status != models.TruckEnRoute || truck.CurrentTask != "KVH-2026-0001" {
			t.Errorf("Assign: truck not bound: %+v", truck)
		}
		if report.Status != models.StatusDispatched {
			t.Errorf("Assign: expected Dispatched, got %s", report.Status)
		}
		if err := mock.ExpectationsWereMet(); err != nil {
			t.Errorf("unmet expectations: %v", err)
		}
	})
}

func TestAssignBusyTruck(t *testing.T) {
	it(func() {
		service := newFleetService()

		// TRK-01 is still on an open report, so the second dispatch loses.
		mock.ExpectBegin()
		mock.ExpectQuery("SELECT status, assigned_truck FROM reports").
			WithArgs("KVH-2026-0002").
			WillReturnRows(sqlmock.NewRows([]string{"status", "assigned_truck"}).
				AddRow("New", nil))
		mock.ExpectQuery("SELECT status, current_task FROM trucks").
			WithArgs("TRK-01").
			WillReturnRows(sqlmock.NewRows([]string{"status", "current_task"}).
				AddRow("En Route", "KVH-2026-0001"))
		mock.ExpectQuery("SELECT status FROM reports").
			WithArgs("KVH-2026-0001").
			WillReturnRows(sqlmock.NewRows([]string{"status"}).AddRow("In Progress"))
		mock.ExpectRollback()

		_, _, err := service.Assign(context.Background(),
			&models.AssignRequest{TruckID: "TRK-01", ReportID: "KVH-2026-0002"}, "admin1")
		if !errors.Is(err, ErrTruckBusy) {
			t.Errorf("expected ErrTruckBusy, got %v", err)
		}
		if err := mock.ExpectationsWereMet(); err != nil {
			t.Errorf("unmet expectations: %v", err)
		}
	})
}

func TestAssignFreedTruckAfterResolution(t *testing.T) {
	it(func() {
		service := newFleetService()

		// The previous task is closed, so the stale reference does not block
		// a new dispatch.
		mock.ExpectBegin()
		mock.ExpectQuery("SELECT status, assigned_truck FROM reports").
			WithArgs("KVH-2026-0002").
			WillReturnRows(sqlmock.NewRows([]string{"status", "assigned_truck"}).
				AddRow("Pending", nil))
		mock.ExpectQuery("SELECT status, current_task FROM trucks").
			WithArgs("TRK-01").
			WillReturnRows(sqlmock.NewRows([]string{"status", "current_task"}).
				AddRow("En Route", "KVH-2026-0001"))
		mock.ExpectQuery("SELECT status FROM reports").
			WithArgs("KVH-2026-0001").
			WillReturnRows(sqlmock.NewRows([]string{"status"}).AddRow("Resolved"))
		mock.ExpectExec(`UPDATE trucks SET status = \?, current_task = \?, assignments_today`).
			WithArgs("En Route", "KVH-2026-0002", "TRK-01").
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectExec(`UPDATE reports SET status = \?, assigned_truck = \?, assigned_team_lead = \?`).
			WithArgs("Dispatched", "TRK-01", "Team Alpha", "KVH-2026-0002").
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectExec("INSERT INTO report_status_history").
			WithArgs("KVH-2026-0002", "Dispatched", "admin1", "Assigned to TRK-01 with Team Lead Team Alpha").
			WillReturnResult(sqlmock.NewResult(1, 1))
		mock.ExpectCommit()
		mock.ExpectQuery("SELECT truck_id, driver_name").
			WithArgs("TRK-01").
			WillReturnRows(sqlmock.NewRows(truckCols).AddRow(truckRow("TRK-01", "En Route", "KVH-2026-0002")...))
		expectGetReport("KVH-2026-0002", "Dispatched", nil)

		_, _, err := service.Assign(context.Background(),
			&models.AssignRequest{TruckID: "TRK-01", ReportID: "KVH-2026-0002", TeamLead: "Team Alpha"}, "admin1")
		if err != nil {
			t.Fatalf("Assign: unexpected error: %v", err)
		}
		if err := mock.ExpectationsWereMet(); err != nil {
			t.Errorf("unmet expectations: %v", err)
		}
	})
}

func TestAssignClosedReport(t *testing.T) {
	it(func() {
		service := newFleetService()

		mock.ExpectBegin()
		mock.ExpectQuery("SELECT status, assigned_truck FROM reports").
			WithArgs("KVH-2026-0001").
			WillReturnRows(sqlmock.NewRows([]string{"status", "assigned_truck"}).
				AddRow("Rejected", nil))
		mock.ExpectRollback()

		_, _, err := service.Assign(context.Background(),
			&models.AssignRequest{TruckID: "TRK-01", ReportID: "KVH-2026-0001"}, "admin1")
		if !errors.Is(err, ErrReportClosed) {
			t.Errorf("expected ErrReportClosed, got %v", err)
		}
		if err := mock.ExpectationsWereMet(); err != nil {
			t.Errorf("unmet expectations: %v", err)
		}
	})
}

func TestAssignInProgressNotRedispatchable(t *testing.T) {
	it(func() {
		service := newFleetService()

		mock.ExpectBegin()
		mock.ExpectQuery("SELECT status, assigned_truck FROM reports").
			WithArgs("KVH-2026-0001").
			WillReturnRows(sqlmock.NewRows([]string{"status", "assigned_truck"}).
				AddRow("In Progress", "TRK-01"))
		mock.ExpectRollback()

		_, _, err := service.Assign(context.Background(),
			&models.AssignRequest{TruckID: "TRK-02", ReportID: "KVH-2026-0001"}, "admin1")
		if !errors.Is(err, ErrIllegalTransition) {
			t.Errorf("expected ErrIllegalTransition, got %v", err)
		}
		if err := mock.ExpectationsWereMet(); err != nil {
			t.Errorf("unmet expectations: %v", err)
		}
	})
}

func TestCreateTruckDuplicate(t *testing.T) {
	it(func() {
		service := newFleetService()

		// Two concurrent registrations race past any pre-check; the losing
		// INSERT surfaces the key collision.
		mock.ExpectExec("INSERT INTO trucks").
			WillReturnError(&mysql.MySQLError{Number: 1062,
				Message: "Duplicate entry 'TRK-01' for key 'trucks.PRIMARY'"})

		_, err := service.CreateTruck(context.Background(), &models.CreateTruckRequest{
			TruckID:     "TRK-01",
			DriverName:  "Ramesh Kumar",
			DriverPhone: "+91-9876543210",
		})
		if !errors.Is(err, ErrDuplicateTruck) {
			t.Errorf("expected ErrDuplicateTruck, got %v", err)
		}
		if err := mock.ExpectationsWereMet(); err != nil {
			t.Errorf("unmet expectations: %v", err)
		}
	})
}

func TestListTrucksRejectsUnknownStatus(t *testing.T) {
	it(func() {
		service := newFleetService()

		_, err := service.ListTrucks(context.Background(), "Parked")
		if !errors.Is(err, ErrValidation) {
			t.Errorf("expected ErrValidation, got %v", err)
		}
	})
}
