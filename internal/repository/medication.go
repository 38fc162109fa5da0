package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/imsantiagopoli/pilly/internal/apperr"
	"github.com/imsantiagopoli/pilly/pkg/model"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

// MedicationRepository manages medication data in PostgreSQL
type MedicationRepository struct {
	db     *pgxpool.Pool
	logger *zap.Logger
}

// NewMedicationRepository creates a new MedicationRepository
func NewMedicationRepository(db *pgxpool.Pool, logger *zap.Logger) *MedicationRepository {
	return &MedicationRepository{
		db:     db,
		logger: logger,
	}
}

const medicationColumns = `
	id, name, dosage, category, color,
	times, weekdays, past_schedules, start_date, duration_days,
	created_at, deleted_on`

// Create creates a new medication record
func (r *MedicationRepository) Create(ctx context.Context, med *model.Medication) error {
	if err := validateMedication(med); err != nil {
		return err
	}

	query := `
		INSERT INTO medications (` + medicationColumns + `
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`

	_, err := r.db.Exec(ctx, query,
		med.ID,
		med.Name,
		med.Dosage,
		string(med.Category),
		med.Color,
		timesToText(med.Schedule.Times),
		weekdaysToInts(med.Schedule.Weekdays),
		pastSchedules(med.PastSchedules),
		med.StartDate.In(time.UTC),
		med.DurationDays,
		med.CreatedAt,
		dateOrNil(med.DeletedOn),
	)

	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return apperr.Validation("medication already exists: %s", med.ID)
		}
		r.logger.Error("failed to create medication",
			zap.Error(err),
			zap.String("medication_id", med.ID),
		)
		return fmt.Errorf("failed to create medication: %w", err)
	}

	return nil
}

// Get retrieves a medication by ID, including removed ones
func (r *MedicationRepository) Get(ctx context.Context, id string) (*model.Medication, error) {
	query := `SELECT ` + medicationColumns + ` FROM medications WHERE id = $1`

	med, err := scanMedication(r.db.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperr.NotFound("medication", id)
		}
		r.logger.Error("failed to find medication", zap.Error(err), zap.String("medication_id", id))
		return nil, fmt.Errorf("failed to find medication: %w", err)
	}

	return med, nil
}

// List retrieves medications ordered by creation time
func (r *MedicationRepository) List(ctx context.Context, includeDeleted bool) ([]model.Medication, error) {
	query := `
		SELECT ` + medicationColumns + `
		FROM medications
		WHERE $1 OR deleted_on IS NULL
		ORDER BY created_at, id COLLATE "C"
	`

	rows, err := r.db.Query(ctx, query, includeDeleted)
	if err != nil {
		r.logger.Error("failed to list medications", zap.Error(err))
		return nil, fmt.Errorf("failed to list medications: %w", err)
	}
	defer rows.Close()

	var medications []model.Medication
	for rows.Next() {
		med, err := scanMedication(rows)
		if err != nil {
			r.logger.Error("failed to scan medication", zap.Error(err))
			return nil, fmt.Errorf("failed to scan medication: %w", err)
		}
		medications = append(medications, *med)
	}

	if err := rows.Err(); err != nil {
		r.logger.Error("error iterating medications", zap.Error(err))
		return nil, fmt.Errorf("error iterating medications: %w", err)
	}

	return medications, nil
}

// UpdateSchedule makes rule the schedule of a medication from the date from
// on. The row is locked while the previous rule is moved to past_schedules.
func (r *MedicationRepository) UpdateSchedule(ctx context.Context, id string, rule model.RecurrenceRule, from model.Date) error {
	err := pgx.BeginFunc(ctx, r.db, func(tx pgx.Tx) error {
		query := `SELECT ` + medicationColumns + ` FROM medications WHERE id = $1 FOR UPDATE`
		med, err := scanMedication(tx.QueryRow(ctx, query, id))
		if err != nil {
			return err
		}

		med.Reschedule(rule, from)

		_, err = tx.Exec(ctx,
			`UPDATE medications SET times = $1, weekdays = $2, past_schedules = $3 WHERE id = $4`,
			timesToText(med.Schedule.Times),
			weekdaysToInts(med.Schedule.Weekdays),
			pastSchedules(med.PastSchedules),
			id,
		)
		return err
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return apperr.NotFound("medication", id)
		}
		r.logger.Error("failed to update medication schedule",
			zap.Error(err),
			zap.String("medication_id", id),
		)
		return fmt.Errorf("failed to update medication schedule: %w", err)
	}

	return nil
}

// SoftDelete marks a medication removed as of on; an earlier removal date is kept
func (r *MedicationRepository) SoftDelete(ctx context.Context, id string, on model.Date) error {
	query := `UPDATE medications SET deleted_on = COALESCE(deleted_on, $1) WHERE id = $2`

	result, err := r.db.Exec(ctx, query, on.In(time.UTC), id)
	if err != nil {
		r.logger.Error("failed to delete medication",
			zap.Error(err),
			zap.String("medication_id", id),
		)
		return fmt.Errorf("failed to delete medication: %w", err)
	}

	if result.RowsAffected() == 0 {
		return apperr.NotFound("medication", id)
	}

	return nil
}

func scanMedication(row pgx.Row) (*model.Medication, error) {
	var (
		med       model.Medication
		category  string
		times     []string
		weekdays  []int32
		startDate time.Time
		deletedOn *time.Time
	)

	err := row.Scan(
		&med.ID,
		&med.Name,
		&med.Dosage,
		&category,
		&med.Color,
		&times,
		&weekdays,
		&med.PastSchedules,
		&startDate,
		&med.DurationDays,
		&med.CreatedAt,
		&deletedOn,
	)
	if err != nil {
		return nil, err
	}

	if len(med.PastSchedules) == 0 {
		med.PastSchedules = nil
	}
	med.Category = model.Category(category)
	med.StartDate = model.DateOf(startDate)
	if deletedOn != nil {
		d := model.DateOf(*deletedOn)
		med.DeletedOn = &d
	}
	for _, s := range times {
		t, err := model.ParseTimeOfDay(s)
		if err != nil {
			return nil, fmt.Errorf("medication %s: %w", med.ID, err)
		}
		med.Schedule.Times = append(med.Schedule.Times, t)
	}
	for _, wd := range weekdays {
		med.Schedule.Weekdays = append(med.Schedule.Weekdays, time.Weekday(wd))
	}

	return &med, nil
}

func timesToText(times []model.TimeOfDay) []string {
	out := make([]string, len(times))
	for i, t := range times {
		out[i] = t.String()
	}
	return out
}

func weekdaysToInts(weekdays []time.Weekday) []int32 {
	if len(weekdays) == 0 {
		return nil
	}
	out := make([]int32, len(weekdays))
	for i, wd := range weekdays {
		out[i] = int32(wd)
	}
	return out
}

// pastSchedules never hands pgx a nil slice, which it would write as NULL
func pastSchedules(past []model.ScheduleVersion) []model.ScheduleVersion {
	if past == nil {
		return []model.ScheduleVersion{}
	}
	return past
}

func dateOrNil(d *model.Date) *time.Time {
	if d == nil {
		return nil
	}
	t := d.In(time.UTC)
	return &t
}
