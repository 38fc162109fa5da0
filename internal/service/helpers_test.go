package service

import (
	"context"
	"iter"
	"sync"
	"testing"
	"time"

	"github.com/imsantiagopoli/pilly/internal/audit"
	"github.com/imsantiagopoli/pilly/internal/repository"
	"github.com/imsantiagopoli/pilly/pkg/model"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// testClock is a settable clock for trackers under test
type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func newTestClock(s string) *testClock {
	now, err := time.Parse("2006-01-02T15:04", s)
	if err != nil {
		panic(err)
	}
	return &testClock{now: now}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Set(s string) {
	now, err := time.Parse("2006-01-02T15:04", s)
	if err != nil {
		panic(err)
	}
	c.mu.Lock()
	c.now = now
	c.mu.Unlock()
}

type trackerFixture struct {
	tracker *Tracker
	meds    *repository.MemoryMedicationStore
	doseLog *repository.MemoryDoseLog
	clock   *testClock
	audit   *recordingAuditor
	metrics *countingMetrics
}

func newTrackerFixture(t *testing.T, now string, opts ...Option) *trackerFixture {
	t.Helper()
	f := &trackerFixture{
		meds:    repository.NewMemoryMedicationStore(),
		doseLog: repository.NewMemoryDoseLog(),
		clock:   newTestClock(now),
		audit:   &recordingAuditor{},
		metrics: &countingMetrics{doses: map[model.DoseStatus]int{}},
	}
	opts = append([]Option{
		WithClock(f.clock.Now),
		WithLocation(time.UTC),
		WithAuditor(f.audit),
		WithMetrics(f.metrics),
	}, opts...)
	f.tracker = NewTracker(f.meds, f.doseLog, zap.NewNop(), opts...)
	return f
}

// addDaily adds a medication due every day at the given times from start on
func (f *trackerFixture) addDaily(t *testing.T, name, start string, times ...string) *model.Medication {
	t.Helper()
	rule := model.RecurrenceRule{}
	for _, s := range times {
		rule.Times = append(rule.Times, model.MustParseTimeOfDay(s))
	}
	med, err := f.tracker.AddMedication(context.Background(), MedicationInput{
		Name:      name,
		Dosage:    "10mg",
		Schedule:  rule,
		StartDate: model.MustParseDate(start),
	})
	require.NoError(t, err)
	return med
}

// record writes an event directly to the dose log
func (f *trackerFixture) record(t *testing.T, medID, date, at string, status model.DoseStatus, recordedAt string) {
	t.Helper()
	ts, err := time.Parse("2006-01-02T15:04", recordedAt)
	require.NoError(t, err)
	require.NoError(t, f.doseLog.Record(context.Background(), model.DoseEvent{
		MedicationID:  medID,
		Date:          model.MustParseDate(date),
		ScheduledTime: model.MustParseTimeOfDay(at),
		Status:        status,
		RecordedAt:    ts,
	}))
}

type recordingAuditor struct {
	mu      sync.Mutex
	entries []audit.Entry
}

func (a *recordingAuditor) Log(_ context.Context, entry audit.Entry) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.entries = append(a.entries, entry)
	return nil
}

func (a *recordingAuditor) operations() []audit.OperationType {
	a.mu.Lock()
	defer a.mu.Unlock()
	ops := make([]audit.OperationType, len(a.entries))
	for i, e := range a.entries {
		ops[i] = e.OperationType
	}
	return ops
}

type countingMetrics struct {
	mu      sync.Mutex
	doses   map[model.DoseStatus]int
	added   int
	removed int
}

func (m *countingMetrics) DoseRecorded(status model.DoseStatus) {
	m.mu.Lock()
	m.doses[status]++
	m.mu.Unlock()
}

func (m *countingMetrics) MedicationAdded() {
	m.mu.Lock()
	m.added++
	m.mu.Unlock()
}

func (m *countingMetrics) MedicationRemoved() {
	m.mu.Lock()
	m.removed++
	m.mu.Unlock()
}

// MockDoseLog is a testify mock of DoseLog
type MockDoseLog struct {
	mock.Mock
}

func (m *MockDoseLog) Record(ctx context.Context, event model.DoseEvent) error {
	args := m.Called(ctx, event)
	return args.Error(0)
}

func (m *MockDoseLog) StatusOf(ctx context.Context, medicationID string, date model.Date, at model.TimeOfDay) (model.DoseStatus, bool, error) {
	args := m.Called(ctx, medicationID, date, at)
	return args.Get(0).(model.DoseStatus), args.Bool(1), args.Error(2)
}

func (m *MockDoseLog) EventsInRange(ctx context.Context, start, end model.Date, filter []string) iter.Seq2[model.DoseEvent, error] {
	args := m.Called(ctx, start, end, filter)
	return args.Get(0).(iter.Seq2[model.DoseEvent, error])
}

func (m *MockDoseLog) Reset(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

// failingEvents yields a single error
func failingEvents(err error) iter.Seq2[model.DoseEvent, error] {
	return func(yield func(model.DoseEvent, error) bool) {
		yield(model.DoseEvent{}, err)
	}
}
