package service

import (
	"context"
	"iter"

	"github.com/imsantiagopoli/pilly/internal/audit"
	"github.com/imsantiagopoli/pilly/pkg/model"
)

// MedicationStore defines the interface for medication data access
type MedicationStore interface {
	Create(ctx context.Context, med *model.Medication) error
	// Get returns removed medications too; an id never created is a NotFoundError
	Get(ctx context.Context, id string) (*model.Medication, error)
	List(ctx context.Context, includeDeleted bool) ([]model.Medication, error)
	// UpdateSchedule makes rule the schedule from the date from on; earlier
	// dates keep the rule that was in effect for them
	UpdateSchedule(ctx context.Context, id string, rule model.RecurrenceRule, from model.Date) error
	SoftDelete(ctx context.Context, id string, on model.Date) error
}

// DoseLog defines the interface for dose event storage
type DoseLog interface {
	Record(ctx context.Context, event model.DoseEvent) error
	StatusOf(ctx context.Context, medicationID string, date model.Date, at model.TimeOfDay) (model.DoseStatus, bool, error)
	EventsInRange(ctx context.Context, start, end model.Date, filter []string) iter.Seq2[model.DoseEvent, error]
	Reset(ctx context.Context) error
}

// Auditor records lifecycle changes of medications and dose data
type Auditor interface {
	Log(ctx context.Context, entry audit.Entry) error
}

// Metrics receives counters from the tracker
type Metrics interface {
	DoseRecorded(status model.DoseStatus)
	MedicationAdded()
	MedicationRemoved()
}

type noopAuditor struct{}

func (noopAuditor) Log(context.Context, audit.Entry) error { return nil }

type noopMetrics struct{}

func (noopMetrics) DoseRecorded(model.DoseStatus) {}
func (noopMetrics) MedicationAdded()              {}
func (noopMetrics) MedicationRemoved()            {}
