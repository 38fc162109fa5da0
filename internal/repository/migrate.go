package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Dose events carry no foreign key so they outlive their medication.
var migrations = []string{
	`CREATE TABLE IF NOT EXISTS medications (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		dosage TEXT NOT NULL DEFAULT '',
		category TEXT NOT NULL DEFAULT 'other',
		color TEXT NOT NULL DEFAULT '',
		times TEXT[] NOT NULL,
		weekdays INTEGER[],
		start_date DATE NOT NULL,
		duration_days INTEGER NOT NULL DEFAULT 0 CHECK (duration_days >= 0),
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		deleted_on DATE
	)`,
	`ALTER TABLE medications ADD COLUMN IF NOT EXISTS past_schedules JSONB NOT NULL DEFAULT '[]'`,
	`CREATE TABLE IF NOT EXISTS dose_events (
		medication_id TEXT NOT NULL,
		dose_date DATE NOT NULL,
		scheduled_time TEXT NOT NULL,
		status TEXT NOT NULL CHECK (status IN ('taken', 'missed', 'late')),
		recorded_at TIMESTAMPTZ NOT NULL,
		PRIMARY KEY (medication_id, dose_date, scheduled_time)
	)`,
	`CREATE INDEX IF NOT EXISTS idx_dose_events_date ON dose_events (dose_date)`,
	`CREATE TABLE IF NOT EXISTS audit_logs (
		id BIGSERIAL PRIMARY KEY,
		operation_type TEXT NOT NULL,
		resource_type TEXT NOT NULL,
		resource_id TEXT NOT NULL,
		timestamp TIMESTAMPTZ NOT NULL,
		additional_data JSONB
	)`,
}

// Migrate creates the tables used by the PostgreSQL stores and the audit trail
func Migrate(ctx context.Context, db *pgxpool.Pool) error {
	for _, stmt := range migrations {
		if _, err := db.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("failed to run migration: %w", err)
		}
	}
	return nil
}
