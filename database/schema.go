package database

import (
	"database/sql"
	"fmt"
	"log"
)

// Schema contains the database schema for the reporting and dispatch core.
const Schema = `
CREATE TABLE IF NOT EXISTS users (
    id VARCHAR(64) PRIMARY KEY,
    name VARCHAR(256) NOT NULL,
    email VARCHAR(256) NOT NULL,
    password_hash VARCHAR(256) NOT NULL,
    phone VARCHAR(32),
    city VARCHAR(128) NOT NULL DEFAULT 'Mumbai',
    civic_id VARCHAR(16) NOT NULL,
    role ENUM('citizen', 'admin', 'authority') NOT NULL DEFAULT 'citizen',
    civic_score INT NOT NULL DEFAULT 0,
    joined_date TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
    created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
    updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP ON UPDATE CURRENT_TIMESTAMP,
    UNIQUE KEY uniq_email (email),
    UNIQUE KEY uniq_civic_id (civic_id)
);

CREATE TABLE IF NOT EXISTS admin_users (
    id VARCHAR(64) PRIMARY KEY,
    name VARCHAR(256) NOT NULL,
    email VARCHAR(256) NOT NULL,
    password_hash VARCHAR(256) NOT NULL,
    role ENUM('super_admin', 'ops_admin', 'fleet_manager', 'govt_viewer', 'analyst') NOT NULL,
    city VARCHAR(128) NOT NULL DEFAULT 'All Cities',
    permissions TEXT,
    last_active TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
    created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
    UNIQUE KEY uniq_admin_email (email)
);

CREATE TABLE IF NOT EXISTS report_sequences (
    year INT PRIMARY KEY,
    seq INT NOT NULL
);

CREATE TABLE IF NOT EXISTS reports (
    report_id VARCHAR(16) PRIMARY KEY,
    reporter_id VARCHAR(64) NOT NULL,
    image TEXT NOT NULL,
    lat DOUBLE NULL,
    lng DOUBLE NULL,
    address VARCHAR(512),
    issue_type VARCHAR(64) NOT NULL DEFAULT 'Pothole',
    sub_category VARCHAR(64),
    severity ENUM('Low', 'Medium', 'High') NOT NULL DEFAULT 'Medium',
    description TEXT,
    status ENUM('New', 'Pending', 'AI Analyzed', 'Dispatched', 'In Progress', 'Resolved', 'Rejected') NOT NULL DEFAULT 'New',
    ai_confidence DOUBLE NULL,
    ai_detected_issue VARCHAR(128),
    ai_estimated_size VARCHAR(64),
    ai_severity_score DOUBLE NULL,
    ai_explanation TEXT,
    assigned_truck VARCHAR(32),
    assigned_team_lead VARCHAR(128) NOT NULL DEFAULT 'Unassigned',
    before_photo TEXT,
    after_photo TEXT,
    repair_notes TEXT,
    materials_asphalt_kg DECIMAL(10,2) NULL,
    materials_labor_hours DECIMAL(10,2) NULL,
    materials_cost DECIMAL(12,2) NULL,
    resolved_at TIMESTAMP(3) NULL,
    points_awarded INT NOT NULL DEFAULT 0,
    created_at TIMESTAMP(3) NOT NULL DEFAULT CURRENT_TIMESTAMP(3),
    updated_at TIMESTAMP(3) NOT NULL DEFAULT CURRENT_TIMESTAMP(3) ON UPDATE CURRENT_TIMESTAMP(3),
    INDEX idx_reporter (reporter_id),
    INDEX idx_status (status),
    INDEX idx_assigned_truck (assigned_truck)
);

CREATE TABLE IF NOT EXISTS report_status_history (
    seq BIGINT AUTO_INCREMENT PRIMARY KEY,
    report_id VARCHAR(16) NOT NULL,
    status VARCHAR(32) NOT NULL,
    changed_by VARCHAR(128) NOT NULL,
    ts TIMESTAMP(3) NOT NULL DEFAULT CURRENT_TIMESTAMP(3),
    notes TEXT,
    INDEX idx_history_report (report_id)
);

CREATE TABLE IF NOT EXISTS trucks (
    truck_id VARCHAR(32) PRIMARY KEY,
    driver_name VARCHAR(256) NOT NULL,
    driver_phone VARCHAR(32) NOT NULL,
    lat DOUBLE NULL,
    lng DOUBLE NULL,
    address VARCHAR(512),
    status ENUM('Available', 'En Route', 'On-Site', 'Offline/Maintenance') NOT NULL DEFAULT 'Available',
    fuel_level INT NOT NULL DEFAULT 100,
    last_maintenance TIMESTAMP NULL,
    assignments_today INT NOT NULL DEFAULT 0,
    current_task VARCHAR(16) NULL,
    equip_asphalt_mix_kg INT NOT NULL DEFAULT 0,
    equip_compactor BOOLEAN NOT NULL DEFAULT TRUE,
    equip_safety_cones BOOLEAN NOT NULL DEFAULT TRUE,
    created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
    updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP ON UPDATE CURRENT_TIMESTAMP,
    INDEX idx_truck_status (status)
);

CREATE TABLE IF NOT EXISTS schema_migrations (
    version INT PRIMARY KEY,
    applied_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
);
`

// Migration represents a database migration
type Migration struct {
	Version int
	Name    string
	Up      string
}

// Migrations list all database migrations
var Migrations = []Migration{
	{
		Version: 1,
		Name:    "add_resolved_at_index_to_reports",
		Up: `
			-- Migration 1: Index resolved_at for the resolved-today dashboard card
			SET @dbname = DATABASE();
			SET @tablename = 'reports';
			SET @preparedStatement = (SELECT IF(
				(SELECT COUNT(*) FROM INFORMATION_SCHEMA.STATISTICS
				WHERE TABLE_SCHEMA = @dbname
				AND TABLE_NAME = @tablename
				AND INDEX_NAME = 'idx_resolved_at') = 0,
				'ALTER TABLE reports ADD INDEX idx_resolved_at (resolved_at);',
				'SELECT 1;'
			));
			PREPARE addIndexIfNotExists FROM @preparedStatement;
			EXECUTE addIndexIfNotExists;
			DEALLOCATE PREPARE addIndexIfNotExists;
		`,
	},
}

// InitializeSchema creates the database schema and runs migrations
func InitializeSchema(db *sql.DB) error {
	if _, err := db.Exec(Schema); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}

	if err := RunMigrations(db); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	log.Println("Database schema initialized successfully")
	return nil
}

// RunMigrations applies all pending database migrations
func RunMigrations(db *sql.DB) error {
	rows, err := db.Query("SELECT version FROM schema_migrations ORDER BY version")
	if err != nil {
		return fmt.Errorf("failed to query migrations: %w", err)
	}
	defer rows.Close()

	applied := make(map[int]bool)
	for rows.Next() {
		var version int
		if err := rows.Scan(&version); err != nil {
			return fmt.Errorf("failed to scan migration version: %w", err)
		}
		applied[version] = true
	}

	for _, migration := range Migrations {
		if !applied[migration.Version] {
			log.Printf("Applying migration %d: %s", migration.Version, migration.Name)

			if _, err := db.Exec(migration.Up); err != nil {
				return fmt.Errorf("failed to apply migration %d: %w", migration.Version, err)
			}

			if _, err := db.Exec("INSERT INTO schema_migrations (version) VALUES (?)", migration.Version); err != nil {
				return fmt.Errorf("failed to record migration %d: %w", migration.Version, err)
			}

			log.Printf("Migration %d applied successfully", migration.Version)
		}
	}

	return nil
}
