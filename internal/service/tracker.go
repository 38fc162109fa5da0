package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/imsantiagopoli/pilly/internal/apperr"
	"github.com/imsantiagopoli/pilly/internal/audit"
	"github.com/imsantiagopoli/pilly/internal/schedule"
	"github.com/imsantiagopoli/pilly/pkg/model"
	"go.uber.org/zap"
)

// DefaultDosage is used for medications added without a dosage
const DefaultDosage = "Standard"

// weeklyWindow is the number of days in the overview score
const weeklyWindow = 7

// MedicationInput holds the fields accepted when adding a medication
type MedicationInput struct {
	Name         string
	Dosage       string
	Schedule     model.RecurrenceRule
	Color        string
	Category     model.Category
	StartDate    model.Date
	DurationDays int
}

// Tracker is the single entry point for reading due doses, recording what
// happened to them and managing medications
type Tracker struct {
	meds       MedicationStore
	doseLog    DoseLog
	calculator *AdherenceCalculator
	policy     Policy
	location   *time.Location
	now        func() time.Time
	colors     ColorPicker
	auditor    Auditor
	metrics    Metrics
	logger     *zap.Logger
}

// Option configures a Tracker
type Option func(*Tracker)

// WithClock replaces time.Now
func WithClock(now func() time.Time) Option {
	return func(t *Tracker) { t.now = now }
}

// WithLocation sets the time zone calendar dates are evaluated in
func WithLocation(loc *time.Location) Option {
	return func(t *Tracker) { t.location = loc }
}

// WithPolicy sets the adherence policy
func WithPolicy(p Policy) Option {
	return func(t *Tracker) { t.policy = p }
}

// WithColorPicker sets the color policy for new medications
func WithColorPicker(p ColorPicker) Option {
	return func(t *Tracker) { t.colors = p }
}

// WithAuditor sets the audit trail
func WithAuditor(a Auditor) Option {
	return func(t *Tracker) { t.auditor = a }
}

// WithMetrics sets the metrics sink
func WithMetrics(m Metrics) Option {
	return func(t *Tracker) { t.metrics = m }
}

// NewTracker creates a new Tracker over the given stores
func NewTracker(meds MedicationStore, doseLog DoseLog, logger *zap.Logger, opts ...Option) *Tracker {
	t := &Tracker{
		meds:     meds,
		doseLog:  doseLog,
		policy:   DefaultPolicy(),
		location: time.Local,
		now:      time.Now,
		colors:   NewRoundRobinPicker(nil),
		auditor:  noopAuditor{},
		metrics:  noopMetrics{},
		logger:   logger,
	}
	for _, opt := range opts {
		opt(t)
	}
	t.calculator = NewAdherenceCalculator(meds, doseLog, t.policy, t.location, logger)
	return t
}

// Calculator returns the adherence calculator the tracker evaluates with
func (t *Tracker) Calculator() *AdherenceCalculator {
	return t.calculator
}

// Today returns the current calendar date in the tracker's location
func (t *Tracker) Today() model.Date {
	return model.DateOf(t.now().In(t.location))
}

// GetDueToday returns today's due doses with their current status
func (t *Tracker) GetDueToday(ctx context.Context) ([]model.TodayDose, error) {
	now := t.now()
	today := model.DateOf(now.In(t.location))

	meds, err := t.meds.List(ctx, false)
	if err != nil {
		t.logger.Error("failed to list medications", zap.Error(err))
		return nil, fmt.Errorf("failed to list medications: %w", err)
	}
	byID := make(map[string]model.Medication, len(meds))
	for _, m := range meds {
		byID[m.ID] = m
	}

	events := make(map[model.DoseKey]model.DoseEvent)
	for e, err := range t.doseLog.EventsInRange(ctx, today, today, nil) {
		if err != nil {
			t.logger.Error("failed to read today's dose events", zap.Error(err))
			return nil, fmt.Errorf("failed to read dose events: %w", err)
		}
		events[e.Key()] = e
	}

	doses := []model.TodayDose{}
	for _, due := range schedule.DueDosesFor(today, meds) {
		var event *model.DoseEvent
		if e, ok := events[due.Key()]; ok {
			event = &e
		}

		med := byID[due.MedicationID]
		doses = append(doses, model.TodayDose{
			DoseOutcome: t.calculator.Classify(due, event, now),
			Name:        med.Name,
			Dosage:      med.Dosage,
			Color:       med.Color,
			Category:    med.Category,
		})
	}

	return doses, nil
}

// MarkTaken records that the dose of medicationID scheduled at at today was taken now
func (t *Tracker) MarkTaken(ctx context.Context, medicationID string, at model.TimeOfDay) (*model.DoseEvent, error) {
	return t.recordToday(ctx, medicationID, at, model.StatusTaken)
}

// MarkSkipped records that the dose of medicationID scheduled at at today was skipped
func (t *Tracker) MarkSkipped(ctx context.Context, medicationID string, at model.TimeOfDay) (*model.DoseEvent, error) {
	return t.recordToday(ctx, medicationID, at, model.StatusMissed)
}

func (t *Tracker) recordToday(ctx context.Context, medicationID string, at model.TimeOfDay, status model.DoseStatus) (*model.DoseEvent, error) {
	if medicationID == "" {
		return nil, apperr.Validation("medication id is required")
	}
	if !at.Valid() {
		return nil, apperr.Validation("invalid time of day %02d:%02d", at.Hour, at.Minute)
	}

	med, err := t.meds.Get(ctx, medicationID)
	if err != nil {
		return nil, err
	}

	now := t.now()
	today := model.DateOf(now.In(t.location))
	if !schedule.IsDue(*med, today, at) {
		return nil, apperr.Validation("%s is not due at %s on %s", med.Name, at, today)
	}

	event := model.DoseEvent{
		MedicationID:  medicationID,
		Date:          today,
		ScheduledTime: at,
		Status:        status,
		RecordedAt:    now,
	}
	if err := t.doseLog.Record(ctx, event); err != nil {
		t.logger.Error("failed to record dose",
			zap.Error(err),
			zap.String("medication_id", medicationID),
			zap.String("scheduled_time", at.String()),
			zap.String("status", string(status)),
		)
		return nil, fmt.Errorf("failed to record dose: %w", err)
	}
	t.metrics.DoseRecorded(status)

	t.logger.Info("dose recorded",
		zap.String("medication_id", medicationID),
		zap.String("date", today.String()),
		zap.String("scheduled_time", at.String()),
		zap.String("status", string(status)),
	)

	return &event, nil
}

// StatusOf returns the recorded status of a dose; ok is false when nothing was recorded
func (t *Tracker) StatusOf(ctx context.Context, medicationID string, date model.Date, at model.TimeOfDay) (model.DoseStatus, bool, error) {
	return t.doseLog.StatusOf(ctx, medicationID, date, at)
}

// GetHistory returns the adherence snapshot of [start, end] for the
// medications in filter, or all medications when filter is empty
func (t *Tracker) GetHistory(ctx context.Context, start, end model.Date, filter []string) (*model.AdherenceSnapshot, error) {
	return t.calculator.Snapshot(ctx, start, end, filter, t.now())
}

// AddMedication validates and stores a new medication, assigning its id
// and, if none was given, a color
func (t *Tracker) AddMedication(ctx context.Context, input MedicationInput) (*model.Medication, error) {
	name := strings.TrimSpace(input.Name)
	if name == "" {
		return nil, apperr.Validation("medication name is required")
	}
	if err := schedule.ValidateRule(input.Schedule); err != nil {
		return nil, err
	}
	if input.Category == "" {
		input.Category = model.CategoryOther
	}
	if !input.Category.Valid() {
		return nil, apperr.Validation("invalid category %q", input.Category)
	}
	if input.DurationDays < 0 {
		return nil, apperr.Validation("duration must not be negative")
	}
	if input.DurationDays > schedule.MaxDurationDays {
		return nil, apperr.Validation("duration exceeds %d days", schedule.MaxDurationDays)
	}
	if !input.StartDate.IsZero() && !input.StartDate.Valid() {
		return nil, apperr.Validation("invalid start date")
	}

	now := t.now()
	med := &model.Medication{
		ID:           uuid.New().String(),
		Name:         name,
		Dosage:       strings.TrimSpace(input.Dosage),
		Schedule:     schedule.Normalize(input.Schedule),
		Color:        input.Color,
		Category:     input.Category,
		StartDate:    input.StartDate,
		DurationDays: input.DurationDays,
		CreatedAt:    now,
	}
	if med.Dosage == "" {
		med.Dosage = DefaultDosage
	}
	if med.Color == "" {
		med.Color = t.colors.Pick()
	}
	if med.StartDate.IsZero() {
		med.StartDate = model.DateOf(now.In(t.location))
	}

	if err := t.meds.Create(ctx, med); err != nil {
		t.logger.Error("failed to add medication",
			zap.Error(err),
			zap.String("medication_name", med.Name),
		)
		return nil, fmt.Errorf("failed to add medication: %w", err)
	}
	t.metrics.MedicationAdded()
	t.audit(ctx, audit.OperationCreate, audit.ResourceMedication, med.ID, map[string]any{"name": med.Name})

	t.logger.Info("medication added successfully",
		zap.String("medication_id", med.ID),
		zap.String("name", med.Name),
	)

	return med, nil
}

// UpdateSchedule replaces the recurrence rule of an active medication from
// today on. Past days are still evaluated against the rule they had.
func (t *Tracker) UpdateSchedule(ctx context.Context, id string, rule model.RecurrenceRule) (*model.Medication, error) {
	if err := schedule.ValidateRule(rule); err != nil {
		return nil, err
	}

	med, err := t.meds.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !med.Active() {
		return nil, apperr.Validation("medication %s has been removed", id)
	}

	rule = schedule.Normalize(rule)
	from := t.Today()
	if err := t.meds.UpdateSchedule(ctx, id, rule, from); err != nil {
		t.logger.Error("failed to update medication schedule",
			zap.Error(err),
			zap.String("medication_id", id),
		)
		return nil, fmt.Errorf("failed to update medication schedule: %w", err)
	}
	med.Reschedule(rule, from)
	t.audit(ctx, audit.OperationUpdate, audit.ResourceMedication, id, map[string]any{
		"times": len(rule.Times),
		"from":  from.String(),
	})

	t.logger.Info("medication schedule updated successfully",
		zap.String("medication_id", id),
	)

	return med, nil
}

// RemoveMedication removes a medication from today on. Its recorded dose
// events are kept and stay visible in history.
func (t *Tracker) RemoveMedication(ctx context.Context, id string) error {
	if _, err := t.meds.Get(ctx, id); err != nil {
		return err
	}

	today := t.Today()
	if err := t.meds.SoftDelete(ctx, id, today); err != nil {
		t.logger.Error("failed to delete medication",
			zap.Error(err),
			zap.String("medication_id", id),
		)
		return fmt.Errorf("failed to delete medication: %w", err)
	}
	t.metrics.MedicationRemoved()
	t.audit(ctx, audit.OperationDelete, audit.ResourceMedication, id, map[string]any{"deleted_on": today.String()})

	t.logger.Info("medication deleted successfully",
		zap.String("medication_id", id),
	)

	return nil
}

// ListMedications returns the medications, optionally including removed ones
func (t *Tracker) ListMedications(ctx context.Context, includeDeleted bool) ([]model.Medication, error) {
	meds, err := t.meds.List(ctx, includeDeleted)
	if err != nil {
		t.logger.Error("failed to list medications", zap.Error(err))
		return nil, fmt.Errorf("failed to list medications: %w", err)
	}
	if meds == nil {
		meds = []model.Medication{}
	}
	return meds, nil
}

// GetMedication returns a medication, removed or not
func (t *Tracker) GetMedication(ctx context.Context, id string) (*model.Medication, error) {
	return t.meds.Get(ctx, id)
}

// Overview returns today's doses, the current streak and the score of the last seven days
func (t *Tracker) Overview(ctx context.Context) (*model.Overview, error) {
	now := t.now()
	today := model.DateOf(now.In(t.location))

	doses, err := t.GetDueToday(ctx)
	if err != nil {
		return nil, err
	}

	week, err := t.calculator.Snapshot(ctx, today.AddDays(-(weeklyWindow - 1)), today, nil, now)
	if err != nil {
		return nil, err
	}

	allDone := true
	for _, d := range doses {
		if d.Status != model.StatusTaken && d.Status != model.StatusLate {
			allDone = false
			break
		}
	}

	return &model.Overview{
		Date:        today,
		Doses:       doses,
		AllDone:     allDone,
		Streak:      week.Streak,
		WeeklyScore: week.Score,
	}, nil
}

// ResetDoseLog deletes every recorded dose event
func (t *Tracker) ResetDoseLog(ctx context.Context) error {
	if err := t.doseLog.Reset(ctx); err != nil {
		t.logger.Error("failed to reset dose log", zap.Error(err))
		return fmt.Errorf("failed to reset dose log: %w", err)
	}
	t.audit(ctx, audit.OperationReset, audit.ResourceDoseLog, "all", nil)
	t.logger.Warn("dose log reset")
	return nil
}

// CloseOutDay records a missed event for every dose of a fully elapsed day
// that has no event yet, returning how many were recorded
func (t *Tracker) CloseOutDay(ctx context.Context, date model.Date) (int, error) {
	if !date.Valid() {
		return 0, apperr.Validation("invalid date")
	}
	now := t.now()
	if !date.Before(model.DateOf(now.In(t.location))) {
		return 0, apperr.Validation("day %s has not elapsed yet", date)
	}

	meds, err := t.meds.List(ctx, true)
	if err != nil {
		return 0, fmt.Errorf("failed to list medications: %w", err)
	}

	closed := 0
	for _, due := range schedule.DueDosesFor(date, meds) {
		_, ok, err := t.doseLog.StatusOf(ctx, due.MedicationID, due.Date, due.Time)
		if err != nil {
			return closed, fmt.Errorf("failed to look up dose status: %w", err)
		}
		if ok {
			continue
		}
		err = t.doseLog.Record(ctx, model.DoseEvent{
			MedicationID:  due.MedicationID,
			Date:          due.Date,
			ScheduledTime: due.Time,
			Status:        model.StatusMissed,
			RecordedAt:    now,
		})
		if err != nil {
			return closed, fmt.Errorf("failed to record missed dose: %w", err)
		}
		t.metrics.DoseRecorded(model.StatusMissed)
		closed++
	}

	t.logger.Info("day closed out",
		zap.String("date", date.String()),
		zap.Int("missed", closed),
	)

	return closed, nil
}

func (t *Tracker) audit(ctx context.Context, op audit.OperationType, resource audit.ResourceType, id string, data map[string]any) {
	err := t.auditor.Log(ctx, audit.Entry{
		OperationType:  op,
		ResourceType:   resource,
		ResourceID:     id,
		Timestamp:      t.now(),
		AdditionalData: data,
	})
	if err != nil {
		t.logger.Warn("failed to write audit entry", zap.Error(err), zap.String("resource_id", id))
	}
}
