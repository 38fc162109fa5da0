package repository

import (
	"context"
	"iter"
	"slices"
	"sync"

	"github.com/imsantiagopoli/pilly/internal/apperr"
	"github.com/imsantiagopoli/pilly/pkg/model"
)

// MemoryMedicationStore keeps medications in process memory
type MemoryMedicationStore struct {
	mu   sync.RWMutex
	meds map[string]model.Medication
}

// NewMemoryMedicationStore creates an empty MemoryMedicationStore
func NewMemoryMedicationStore() *MemoryMedicationStore {
	return &MemoryMedicationStore{meds: make(map[string]model.Medication)}
}

// Create stores a new medication; the id must not exist yet
func (s *MemoryMedicationStore) Create(ctx context.Context, med *model.Medication) error {
	if err := validateMedication(med); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.meds[med.ID]; ok {
		return apperr.Validation("medication already exists: %s", med.ID)
	}
	s.meds[med.ID] = cloneMedication(*med)
	return nil
}

// Get returns a medication by id, including removed ones
func (s *MemoryMedicationStore) Get(ctx context.Context, id string) (*model.Medication, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	med, ok := s.meds[id]
	if !ok {
		return nil, apperr.NotFound("medication", id)
	}
	med = cloneMedication(med)
	return &med, nil
}

// List returns medications ordered by creation time
func (s *MemoryMedicationStore) List(ctx context.Context, includeDeleted bool) ([]model.Medication, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	meds := make([]model.Medication, 0, len(s.meds))
	for _, med := range s.meds {
		if !includeDeleted && !med.Active() {
			continue
		}
		meds = append(meds, cloneMedication(med))
	}
	sortMedications(meds)
	return meds, nil
}

// UpdateSchedule makes rule the schedule of a medication from the date from on
func (s *MemoryMedicationStore) UpdateSchedule(ctx context.Context, id string, rule model.RecurrenceRule, from model.Date) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	med, ok := s.meds[id]
	if !ok {
		return apperr.NotFound("medication", id)
	}
	med = cloneMedication(med)
	med.Reschedule(model.RecurrenceRule{
		Times:    slices.Clone(rule.Times),
		Weekdays: slices.Clone(rule.Weekdays),
	}, from)
	s.meds[id] = med
	return nil
}

// SoftDelete marks a medication removed as of on. A medication already
// removed keeps its original removal date.
func (s *MemoryMedicationStore) SoftDelete(ctx context.Context, id string, on model.Date) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	med, ok := s.meds[id]
	if !ok {
		return apperr.NotFound("medication", id)
	}
	if med.DeletedOn == nil {
		d := on
		med.DeletedOn = &d
		s.meds[id] = med
	}
	return nil
}

// MemoryDoseLog is a dose log guarded by a single store-wide lock.
// Writes to the same key serialize and the last write wins.
type MemoryDoseLog struct {
	mu     sync.RWMutex
	events map[model.DoseKey]model.DoseEvent
}

// NewMemoryDoseLog creates an empty MemoryDoseLog
func NewMemoryDoseLog() *MemoryDoseLog {
	return &MemoryDoseLog{events: make(map[model.DoseKey]model.DoseEvent)}
}

// Record stores event, overwriting any event with the same key
func (l *MemoryDoseLog) Record(ctx context.Context, event model.DoseEvent) error {
	if err := ValidateEvent(event); err != nil {
		return err
	}

	l.mu.Lock()
	l.events[event.Key()] = event
	l.mu.Unlock()
	return nil
}

// StatusOf returns the recorded status for a key; ok is false when nothing was recorded
func (l *MemoryDoseLog) StatusOf(ctx context.Context, medicationID string, date model.Date, at model.TimeOfDay) (model.DoseStatus, bool, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	event, ok := l.events[model.DoseKey{MedicationID: medicationID, Date: date, ScheduledTime: at}]
	if !ok {
		return "", false, nil
	}
	return event.Status, true, nil
}

// EventsInRange returns the events dated within [start, end], ordered by
// date, time and medication id. Nothing is read until the sequence is
// iterated and every iteration reads the log afresh.
func (l *MemoryDoseLog) EventsInRange(ctx context.Context, start, end model.Date, filter []string) iter.Seq2[model.DoseEvent, error] {
	return func(yield func(model.DoseEvent, error) bool) {
		l.mu.RLock()
		var events []model.DoseEvent
		for _, event := range l.events {
			if event.Date.Before(start) || event.Date.After(end) || !inFilter(filter, event.MedicationID) {
				continue
			}
			events = append(events, event)
		}
		l.mu.RUnlock()

		slices.SortFunc(events, model.CompareEvents)
		for _, event := range events {
			if err := ctx.Err(); err != nil {
				yield(model.DoseEvent{}, err)
				return
			}
			if !yield(event, nil) {
				return
			}
		}
	}
}

// Reset removes every recorded event
func (l *MemoryDoseLog) Reset(ctx context.Context) error {
	l.mu.Lock()
	clear(l.events)
	l.mu.Unlock()
	return nil
}
