package repository

import (
	"context"
	"iter"
	"sync"
	"testing"
	"time"

	"github.com/imsantiagopoli/pilly/internal/apperr"
	"github.com/imsantiagopoli/pilly/pkg/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type doseLog interface {
	Record(ctx context.Context, event model.DoseEvent) error
	StatusOf(ctx context.Context, medicationID string, date model.Date, at model.TimeOfDay) (model.DoseStatus, bool, error)
	EventsInRange(ctx context.Context, start, end model.Date, filter []string) iter.Seq2[model.DoseEvent, error]
	Reset(ctx context.Context) error
}

type medicationStore interface {
	Create(ctx context.Context, med *model.Medication) error
	Get(ctx context.Context, id string) (*model.Medication, error)
	List(ctx context.Context, includeDeleted bool) ([]model.Medication, error)
	UpdateSchedule(ctx context.Context, id string, rule model.RecurrenceRule, from model.Date) error
	SoftDelete(ctx context.Context, id string, on model.Date) error
}

var recordedAt = time.Date(2025, 10, 1, 8, 5, 0, 0, time.UTC)

func event(id, date, at string, status model.DoseStatus) model.DoseEvent {
	return model.DoseEvent{
		MedicationID:  id,
		Date:          model.MustParseDate(date),
		ScheduledTime: model.MustParseTimeOfDay(at),
		Status:        status,
		RecordedAt:    recordedAt,
	}
}

func collect(t *testing.T, seq iter.Seq2[model.DoseEvent, error]) []model.DoseEvent {
	t.Helper()
	var out []model.DoseEvent
	for e, err := range seq {
		require.NoError(t, err)
		out = append(out, e)
	}
	return out
}

func keys(events []model.DoseEvent) []string {
	out := make([]string, len(events))
	for i, e := range events {
		out[i] = e.Date.String() + " " + e.ScheduledTime.String() + " " + e.MedicationID
	}
	return out
}

// testDoseLogContract exercises the behaviour every dose log implementation shares
func testDoseLogContract(t *testing.T, newLog func(t *testing.T) doseLog) {
	ctx := context.Background()

	t.Run("read after write", func(t *testing.T) {
		log := newLog(t)
		require.NoError(t, log.Record(ctx, event("lexapro-id", "2025-10-01", "08:00", model.StatusTaken)))

		status, ok, err := log.StatusOf(ctx, "lexapro-id", model.MustParseDate("2025-10-01"), model.MustParseTimeOfDay("08:00"))
		require.NoError(t, err)
		assert.True(t, ok)
		assert.Equal(t, model.StatusTaken, status)
	})

	t.Run("absent key is not an error", func(t *testing.T) {
		log := newLog(t)
		status, ok, err := log.StatusOf(ctx, "unknown", model.MustParseDate("2025-10-01"), model.MustParseTimeOfDay("08:00"))
		require.NoError(t, err)
		assert.False(t, ok)
		assert.Empty(t, status)
	})

	t.Run("second write overwrites the first", func(t *testing.T) {
		log := newLog(t)
		require.NoError(t, log.Record(ctx, event("m1", "2025-10-01", "08:00", model.StatusMissed)))
		require.NoError(t, log.Record(ctx, event("m1", "2025-10-01", "08:00", model.StatusTaken)))

		status, ok, err := log.StatusOf(ctx, "m1", model.MustParseDate("2025-10-01"), model.MustParseTimeOfDay("08:00"))
		require.NoError(t, err)
		assert.True(t, ok)
		assert.Equal(t, model.StatusTaken, status)

		events := collect(t, log.EventsInRange(ctx, model.MustParseDate("2025-10-01"), model.MustParseDate("2025-10-01"), nil))
		assert.Len(t, events, 1)
	})

	t.Run("rejects malformed events", func(t *testing.T) {
		log := newLog(t)
		bad := []model.DoseEvent{
			event("", "2025-10-01", "08:00", model.StatusTaken),
			{MedicationID: "m1", ScheduledTime: model.MustParseTimeOfDay("08:00"), Status: model.StatusTaken},
			{MedicationID: "m1", Date: model.MustParseDate("2025-10-01"), ScheduledTime: model.TimeOfDay{Hour: 25}, Status: model.StatusTaken},
			event("m1", "2025-10-01", "08:00", model.StatusPending),
			event("m1", "2025-10-01", "08:00", "skipped"),
		}
		for _, e := range bad {
			err := log.Record(ctx, e)
			assert.True(t, apperr.IsValidation(err), "expected validation error for %+v, got %v", e, err)
		}
	})

	t.Run("range is ordered, inclusive and filtered", func(t *testing.T) {
		log := newLog(t)
		for _, e := range []model.DoseEvent{
			event("b", "2025-10-02", "08:00", model.StatusTaken),
			event("a", "2025-10-02", "08:00", model.StatusTaken),
			event("a", "2025-10-01", "21:00", model.StatusMissed),
			event("c", "2025-10-01", "09:00", model.StatusLate),
			event("a", "2025-09-30", "08:00", model.StatusTaken),
			event("a", "2025-10-03", "08:00", model.StatusTaken),
		} {
			require.NoError(t, log.Record(ctx, e))
		}

		start, end := model.MustParseDate("2025-10-01"), model.MustParseDate("2025-10-02")

		assert.Equal(t, []string{
			"2025-10-01 09:00 c",
			"2025-10-01 21:00 a",
			"2025-10-02 08:00 a",
			"2025-10-02 08:00 b",
		}, keys(collect(t, log.EventsInRange(ctx, start, end, nil))))

		assert.Equal(t, []string{
			"2025-10-01 21:00 a",
			"2025-10-02 08:00 a",
		}, keys(collect(t, log.EventsInRange(ctx, start, end, []string{"a", "deleted-or-unknown"}))))
	})

	t.Run("sequence is lazy and restartable", func(t *testing.T) {
		log := newLog(t)
		day := model.MustParseDate("2025-10-01")
		seq := log.EventsInRange(ctx, day, day, nil)

		require.NoError(t, log.Record(ctx, event("m1", "2025-10-01", "08:00", model.StatusTaken)))
		assert.Len(t, collect(t, seq), 1)

		require.NoError(t, log.Record(ctx, event("m2", "2025-10-01", "08:00", model.StatusTaken)))
		assert.Len(t, collect(t, seq), 2)
	})

	t.Run("sequence can be shared across goroutines", func(t *testing.T) {
		log := newLog(t)
		require.NoError(t, log.Record(ctx, event("m1", "2025-10-01", "08:00", model.StatusTaken)))
		day := model.MustParseDate("2025-10-01")
		seq := log.EventsInRange(ctx, day, day, nil)

		var wg sync.WaitGroup
		counts := make([]int, 4)
		for i := range counts {
			wg.Add(1)
			go func() {
				defer wg.Done()
				for _, err := range seq {
					if err == nil {
						counts[i]++
					}
				}
			}()
		}
		wg.Wait()
		assert.Equal(t, []int{1, 1, 1, 1}, counts)
	})

	t.Run("early break stops iteration", func(t *testing.T) {
		log := newLog(t)
		require.NoError(t, log.Record(ctx, event("m1", "2025-10-01", "08:00", model.StatusTaken)))
		require.NoError(t, log.Record(ctx, event("m2", "2025-10-01", "08:00", model.StatusTaken)))

		n := 0
		for _, err := range log.EventsInRange(ctx, model.MustParseDate("2025-10-01"), model.MustParseDate("2025-10-01"), nil) {
			require.NoError(t, err)
			n++
			break
		}
		assert.Equal(t, 1, n)
	})

	t.Run("reset clears the log", func(t *testing.T) {
		log := newLog(t)
		require.NoError(t, log.Record(ctx, event("m1", "2025-10-01", "08:00", model.StatusTaken)))
		require.NoError(t, log.Reset(ctx))

		_, ok, err := log.StatusOf(ctx, "m1", model.MustParseDate("2025-10-01"), model.MustParseTimeOfDay("08:00"))
		require.NoError(t, err)
		assert.False(t, ok)
	})
}

func testMedicationStoreContract(t *testing.T, newStore func(t *testing.T) medicationStore) {
	ctx := context.Background()
	created := time.Date(2025, 10, 1, 7, 0, 0, 0, time.UTC)

	med := func(id string, offset time.Duration) *model.Medication {
		return &model.Medication{
			ID:        id,
			Name:      "Lexapro",
			Dosage:    "10mg",
			Color:     "#ffcc00",
			Category:  model.CategoryTablet,
			Schedule:  model.RecurrenceRule{Times: []model.TimeOfDay{model.MustParseTimeOfDay("08:00")}},
			StartDate: model.MustParseDate("2025-10-01"),
			CreatedAt: created.Add(offset),
		}
	}

	t.Run("create and get", func(t *testing.T) {
		store := newStore(t)
		require.NoError(t, store.Create(ctx, med("lexapro-id", 0)))

		got, err := store.Get(ctx, "lexapro-id")
		require.NoError(t, err)
		assert.Equal(t, "Lexapro", got.Name)
		assert.Equal(t, model.CategoryTablet, got.Category)
		assert.Equal(t, model.MustParseDate("2025-10-01"), got.StartDate)
		assert.Equal(t, []model.TimeOfDay{model.MustParseTimeOfDay("08:00")}, got.Schedule.Times)
		assert.Nil(t, got.DeletedOn)
	})

	t.Run("duplicate id is rejected", func(t *testing.T) {
		store := newStore(t)
		require.NoError(t, store.Create(ctx, med("dup", 0)))
		assert.True(t, apperr.IsValidation(store.Create(ctx, med("dup", time.Minute))))
	})

	t.Run("missing name is rejected", func(t *testing.T) {
		store := newStore(t)
		m := med("nameless", 0)
		m.Name = ""
		assert.True(t, apperr.IsValidation(store.Create(ctx, m)))
	})

	t.Run("unknown id is not found", func(t *testing.T) {
		store := newStore(t)
		_, err := store.Get(ctx, "never-created")
		assert.True(t, apperr.IsNotFound(err))
		assert.True(t, apperr.IsNotFound(store.SoftDelete(ctx, "never-created", model.MustParseDate("2025-10-01"))))
		assert.True(t, apperr.IsNotFound(store.UpdateSchedule(ctx, "never-created", model.RecurrenceRule{}, model.MustParseDate("2025-10-01"))))
	})

	t.Run("update schedule", func(t *testing.T) {
		store := newStore(t)
		require.NoError(t, store.Create(ctx, med("m1", 0)))

		rule := model.RecurrenceRule{
			Times:    []model.TimeOfDay{model.MustParseTimeOfDay("08:00"), model.MustParseTimeOfDay("20:00")},
			Weekdays: []time.Weekday{time.Monday, time.Friday},
		}
		from := model.MustParseDate("2025-10-05")
		require.NoError(t, store.UpdateSchedule(ctx, "m1", rule, from))

		got, err := store.Get(ctx, "m1")
		require.NoError(t, err)
		assert.Equal(t, rule, got.Schedule)
		original := model.RecurrenceRule{Times: []model.TimeOfDay{model.MustParseTimeOfDay("08:00")}}
		assert.Equal(t, []model.ScheduleVersion{{Rule: original, Until: from}}, got.PastSchedules)
		assert.Equal(t, original, got.RuleOn(model.MustParseDate("2025-10-04")))
		assert.Equal(t, rule, got.RuleOn(from))

		// a second edit on the same day replaces the rule without adding a version
		evening := model.RecurrenceRule{Times: []model.TimeOfDay{model.MustParseTimeOfDay("21:00")}}
		require.NoError(t, store.UpdateSchedule(ctx, "m1", evening, from))

		got, err = store.Get(ctx, "m1")
		require.NoError(t, err)
		assert.Equal(t, evening, got.Schedule)
		assert.Len(t, got.PastSchedules, 1)
	})

	t.Run("update schedule on the start date keeps no version", func(t *testing.T) {
		store := newStore(t)
		require.NoError(t, store.Create(ctx, med("m2", 0)))

		rule := model.RecurrenceRule{Times: []model.TimeOfDay{model.MustParseTimeOfDay("09:00")}}
		require.NoError(t, store.UpdateSchedule(ctx, "m2", rule, model.MustParseDate("2025-10-01")))

		got, err := store.Get(ctx, "m2")
		require.NoError(t, err)
		assert.Equal(t, rule, got.Schedule)
		assert.Empty(t, got.PastSchedules)
	})

	t.Run("soft delete keeps the medication readable", func(t *testing.T) {
		store := newStore(t)
		require.NoError(t, store.Create(ctx, med("keep", 0)))
		require.NoError(t, store.Create(ctx, med("gone", time.Minute)))

		removed := model.MustParseDate("2025-10-05")
		require.NoError(t, store.SoftDelete(ctx, "gone", removed))
		require.NoError(t, store.SoftDelete(ctx, "gone", removed.AddDays(3)))

		got, err := store.Get(ctx, "gone")
		require.NoError(t, err)
		require.NotNil(t, got.DeletedOn)
		assert.Equal(t, removed, *got.DeletedOn)

		active, err := store.List(ctx, false)
		require.NoError(t, err)
		require.Len(t, active, 1)
		assert.Equal(t, "keep", active[0].ID)

		all, err := store.List(ctx, true)
		require.NoError(t, err)
		require.Len(t, all, 2)
		assert.Equal(t, "keep", all[0].ID)
		assert.Equal(t, "gone", all[1].ID)
	})
}
