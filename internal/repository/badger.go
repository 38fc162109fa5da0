package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"iter"
	"strings"

	"github.com/dgraph-io/badger/v4"
	"github.com/imsantiagopoli/pilly/internal/apperr"
	"github.com/imsantiagopoli/pilly/pkg/model"
	"go.uber.org/zap"
)

// Key layout:
//
//	med/{id}                           -> medication JSON
//	dose/{YYYY-MM-DD}/{HH:MM}/{med id} -> dose event JSON
//
// Badger iterates keys in byte order, so a dose range scan comes back sorted
// by date, time and medication id.
const (
	medicationPrefix = "med/"
	dosePrefix       = "dose/"
)

// OpenBadger opens (or creates) a Badger database at path.
// An empty path opens an in-memory database.
func OpenBadger(path string) (*badger.DB, error) {
	opts := badger.DefaultOptions(path).
		WithLogger(nil).
		WithNumVersionsToKeep(1).
		WithCompactL0OnClose(true).
		WithValueLogFileSize(16 << 20).
		WithMemTableSize(16 << 20)
	if path == "" {
		opts = opts.WithInMemory(true)
	}

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open badger: %w", err)
	}
	return db, nil
}

func medicationKey(id string) []byte {
	return []byte(medicationPrefix + id)
}

func doseKey(medicationID string, date model.Date, at model.TimeOfDay) []byte {
	return []byte(dosePrefix + date.String() + "/" + at.String() + "/" + medicationID)
}

// splitDoseKey returns the date and medication id parts of a dose key
func splitDoseKey(key string) (date, medicationID string, ok bool) {
	parts := strings.SplitN(strings.TrimPrefix(key, dosePrefix), "/", 3)
	if len(parts) != 3 {
		return "", "", false
	}
	return parts[0], parts[2], true
}

// BadgerMedicationStore keeps medications in an embedded Badger database
type BadgerMedicationStore struct {
	db     *badger.DB
	logger *zap.Logger
}

// NewBadgerMedicationStore creates a new BadgerMedicationStore
func NewBadgerMedicationStore(db *badger.DB, logger *zap.Logger) *BadgerMedicationStore {
	return &BadgerMedicationStore{db: db, logger: logger}
}

// Create stores a new medication; the id must not exist yet
func (s *BadgerMedicationStore) Create(ctx context.Context, med *model.Medication) error {
	if err := validateMedication(med); err != nil {
		return err
	}

	data, err := json.Marshal(med)
	if err != nil {
		return fmt.Errorf("failed to encode medication: %w", err)
	}

	err = s.db.Update(func(txn *badger.Txn) error {
		_, err := txn.Get(medicationKey(med.ID))
		if err == nil {
			return apperr.Validation("medication already exists: %s", med.ID)
		}
		if !errors.Is(err, badger.ErrKeyNotFound) {
			return err
		}
		return txn.Set(medicationKey(med.ID), data)
	})
	if err != nil && !apperr.IsValidation(err) {
		s.logger.Error("failed to create medication", zap.Error(err), zap.String("medication_id", med.ID))
		return fmt.Errorf("failed to create medication: %w", err)
	}
	return err
}

// Get returns a medication by id, including removed ones
func (s *BadgerMedicationStore) Get(ctx context.Context, id string) (*model.Medication, error) {
	var med model.Medication
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(medicationKey(id))
		if err != nil {
			return err
		}
		return item.Value(func(v []byte) error {
			return json.Unmarshal(v, &med)
		})
	})
	if err != nil {
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil, apperr.NotFound("medication", id)
		}
		s.logger.Error("failed to find medication", zap.Error(err), zap.String("medication_id", id))
		return nil, fmt.Errorf("failed to find medication: %w", err)
	}
	return &med, nil
}

// List returns medications ordered by creation time
func (s *BadgerMedicationStore) List(ctx context.Context, includeDeleted bool) ([]model.Medication, error) {
	var meds []model.Medication
	err := s.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		prefix := []byte(medicationPrefix)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			var med model.Medication
			if err := it.Item().Value(func(v []byte) error {
				return json.Unmarshal(v, &med)
			}); err != nil {
				return err
			}
			if includeDeleted || med.Active() {
				meds = append(meds, med)
			}
		}
		return nil
	})
	if err != nil {
		s.logger.Error("failed to list medications", zap.Error(err))
		return nil, fmt.Errorf("failed to list medications: %w", err)
	}

	sortMedications(meds)
	return meds, nil
}

// UpdateSchedule makes rule the schedule of a medication from the date from on
func (s *BadgerMedicationStore) UpdateSchedule(ctx context.Context, id string, rule model.RecurrenceRule, from model.Date) error {
	return s.modify(id, func(med *model.Medication) {
		med.Reschedule(rule, from)
	})
}

// SoftDelete marks a medication removed as of on; an earlier removal date is kept
func (s *BadgerMedicationStore) SoftDelete(ctx context.Context, id string, on model.Date) error {
	return s.modify(id, func(med *model.Medication) {
		if med.DeletedOn == nil {
			d := on
			med.DeletedOn = &d
		}
	})
}

// modify applies fn to the stored medication inside one read-write transaction
func (s *BadgerMedicationStore) modify(id string, fn func(*model.Medication)) error {
	err := s.db.Update(func(txn *badger.Txn) error {
		item, err := txn.Get(medicationKey(id))
		if err != nil {
			return err
		}
		var med model.Medication
		if err := item.Value(func(v []byte) error {
			return json.Unmarshal(v, &med)
		}); err != nil {
			return err
		}

		fn(&med)

		data, err := json.Marshal(&med)
		if err != nil {
			return err
		}
		return txn.Set(medicationKey(id), data)
	})
	if err != nil {
		if errors.Is(err, badger.ErrKeyNotFound) {
			return apperr.NotFound("medication", id)
		}
		s.logger.Error("failed to update medication", zap.Error(err), zap.String("medication_id", id))
		return fmt.Errorf("failed to update medication: %w", err)
	}
	return nil
}

// BadgerDoseLog is a dose log kept in an embedded Badger database.
// Each record is a single-key transaction, so writes to one dose are atomic
// and the last committed write wins.
type BadgerDoseLog struct {
	db     *badger.DB
	logger *zap.Logger
}

// NewBadgerDoseLog creates a new BadgerDoseLog
func NewBadgerDoseLog(db *badger.DB, logger *zap.Logger) *BadgerDoseLog {
	return &BadgerDoseLog{db: db, logger: logger}
}

// Record stores event, overwriting any event with the same key
func (l *BadgerDoseLog) Record(ctx context.Context, event model.DoseEvent) error {
	if err := ValidateEvent(event); err != nil {
		return err
	}

	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to encode dose event: %w", err)
	}

	err = l.db.Update(func(txn *badger.Txn) error {
		return txn.Set(doseKey(event.MedicationID, event.Date, event.ScheduledTime), data)
	})
	if err != nil {
		l.logger.Error("failed to record dose event",
			zap.Error(err),
			zap.String("medication_id", event.MedicationID),
			zap.String("date", event.Date.String()),
		)
		return fmt.Errorf("failed to record dose event: %w", err)
	}
	return nil
}

// StatusOf returns the recorded status for a key; ok is false when nothing was recorded
func (l *BadgerDoseLog) StatusOf(ctx context.Context, medicationID string, date model.Date, at model.TimeOfDay) (model.DoseStatus, bool, error) {
	var event model.DoseEvent
	err := l.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(doseKey(medicationID, date, at))
		if err != nil {
			return err
		}
		return item.Value(func(v []byte) error {
			return json.Unmarshal(v, &event)
		})
	})
	if err != nil {
		if errors.Is(err, badger.ErrKeyNotFound) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("failed to look up dose status: %w", err)
	}
	return event.Status, true, nil
}

// EventsInRange scans the dose keys between start and end each time the
// returned sequence is iterated
func (l *BadgerDoseLog) EventsInRange(ctx context.Context, start, end model.Date, filter []string) iter.Seq2[model.DoseEvent, error] {
	return func(yield func(model.DoseEvent, error) bool) {
		stopped := false
		last := end.String()

		err := l.db.View(func(txn *badger.Txn) error {
			it := txn.NewIterator(badger.DefaultIteratorOptions)
			defer it.Close()

			prefix := []byte(dosePrefix)
			for it.Seek([]byte(dosePrefix + start.String())); it.ValidForPrefix(prefix); it.Next() {
				if err := ctx.Err(); err != nil {
					return err
				}

				item := it.Item()
				date, medicationID, ok := splitDoseKey(string(item.Key()))
				if !ok {
					continue
				}
				if date > last {
					return nil
				}
				if !inFilter(filter, medicationID) {
					continue
				}

				var event model.DoseEvent
				if err := item.Value(func(v []byte) error {
					return json.Unmarshal(v, &event)
				}); err != nil {
					return err
				}
				if !yield(event, nil) {
					stopped = true
					return nil
				}
			}
			return nil
		})
		if err != nil && !stopped {
			l.logger.Error("failed to scan dose events", zap.Error(err))
			yield(model.DoseEvent{}, fmt.Errorf("failed to scan dose events: %w", err))
		}
	}
}

// Reset removes every dose event
func (l *BadgerDoseLog) Reset(ctx context.Context) error {
	if err := l.db.DropPrefix([]byte(dosePrefix)); err != nil {
		l.logger.Error("failed to reset dose log", zap.Error(err))
		return fmt.Errorf("failed to reset dose log: %w", err)
	}
	return nil
}
