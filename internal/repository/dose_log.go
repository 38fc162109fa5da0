package repository

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"time"

	"github.com/imsantiagopoli/pilly/pkg/model"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

// DoseLogRepository is the PostgreSQL dose log. The upsert on the
// (medication_id, dose_date, scheduled_time) key gives last-write-wins
// semantics per dose.
type DoseLogRepository struct {
	db     *pgxpool.Pool
	logger *zap.Logger
}

// NewDoseLogRepository creates a new DoseLogRepository
func NewDoseLogRepository(db *pgxpool.Pool, logger *zap.Logger) *DoseLogRepository {
	return &DoseLogRepository{
		db:     db,
		logger: logger,
	}
}

// Record stores event, overwriting any event with the same key
func (r *DoseLogRepository) Record(ctx context.Context, event model.DoseEvent) error {
	if err := ValidateEvent(event); err != nil {
		return err
	}

	query := `
		INSERT INTO dose_events (medication_id, dose_date, scheduled_time, status, recorded_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (medication_id, dose_date, scheduled_time)
		DO UPDATE SET status = EXCLUDED.status, recorded_at = EXCLUDED.recorded_at
	`

	_, err := r.db.Exec(ctx, query,
		event.MedicationID,
		event.Date.In(time.UTC),
		event.ScheduledTime.String(),
		string(event.Status),
		event.RecordedAt,
	)
	if err != nil {
		r.logger.Error("failed to record dose event",
			zap.Error(err),
			zap.String("medication_id", event.MedicationID),
			zap.String("date", event.Date.String()),
			zap.String("scheduled_time", event.ScheduledTime.String()),
		)
		return fmt.Errorf("failed to record dose event: %w", err)
	}

	return nil
}

// StatusOf returns the recorded status for a key; ok is false when nothing was recorded
func (r *DoseLogRepository) StatusOf(ctx context.Context, medicationID string, date model.Date, at model.TimeOfDay) (model.DoseStatus, bool, error) {
	query := `
		SELECT status FROM dose_events
		WHERE medication_id = $1 AND dose_date = $2 AND scheduled_time = $3
	`

	var status string
	err := r.db.QueryRow(ctx, query, medicationID, date.In(time.UTC), at.String()).Scan(&status)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", false, nil
		}
		r.logger.Error("failed to look up dose status", zap.Error(err), zap.String("medication_id", medicationID))
		return "", false, fmt.Errorf("failed to look up dose status: %w", err)
	}

	return model.DoseStatus(status), true, nil
}

// EventsInRange queries the events dated within [start, end] each time the
// returned sequence is iterated. Rows are streamed from the database.
func (r *DoseLogRepository) EventsInRange(ctx context.Context, start, end model.Date, filter []string) iter.Seq2[model.DoseEvent, error] {
	query := `
		SELECT medication_id, dose_date, scheduled_time, status, recorded_at
		FROM dose_events
		WHERE dose_date >= $1 AND dose_date <= $2
		  AND (cardinality($3::text[]) = 0 OR medication_id = ANY($3::text[]))
		ORDER BY dose_date, scheduled_time COLLATE "C", medication_id COLLATE "C"
	`

	return func(yield func(model.DoseEvent, error) bool) {
		ids := filter
		if ids == nil {
			ids = []string{}
		}
		rows, err := r.db.Query(ctx, query, start.In(time.UTC), end.In(time.UTC), ids)
		if err != nil {
			r.logger.Error("failed to query dose events", zap.Error(err))
			yield(model.DoseEvent{}, fmt.Errorf("failed to query dose events: %w", err))
			return
		}
		defer rows.Close()

		for rows.Next() {
			var (
				event     model.DoseEvent
				doseDate  time.Time
				scheduled string
				status    string
			)
			if err := rows.Scan(&event.MedicationID, &doseDate, &scheduled, &status, &event.RecordedAt); err != nil {
				yield(model.DoseEvent{}, fmt.Errorf("failed to scan dose event: %w", err))
				return
			}
			event.Date = model.DateOf(doseDate)
			event.Status = model.DoseStatus(status)
			if event.ScheduledTime, err = model.ParseTimeOfDay(scheduled); err != nil {
				yield(model.DoseEvent{}, fmt.Errorf("dose event for %s: %w", event.MedicationID, err))
				return
			}
			if !yield(event, nil) {
				return
			}
		}

		if err := rows.Err(); err != nil {
			r.logger.Error("error iterating dose events", zap.Error(err))
			yield(model.DoseEvent{}, fmt.Errorf("error iterating dose events: %w", err))
		}
	}
}

// Reset deletes every dose event
func (r *DoseLogRepository) Reset(ctx context.Context) error {
	if _, err := r.db.Exec(ctx, `DELETE FROM dose_events`); err != nil {
		r.logger.Error("failed to reset dose log", zap.Error(err))
		return fmt.Errorf("failed to reset dose log: %w", err)
	}
	return nil
}
