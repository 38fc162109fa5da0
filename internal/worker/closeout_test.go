package worker

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/imsantiagopoli/pilly/internal/repository"
	"github.com/imsantiagopoli/pilly/internal/service"
	"github.com/imsantiagopoli/pilly/pkg/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type MockDayCloser struct {
	mock.Mock
}

func (m *MockDayCloser) Today() model.Date {
	return m.Called().Get(0).(model.Date)
}

func (m *MockDayCloser) CloseOutDay(ctx context.Context, date model.Date) (int, error) {
	args := m.Called(ctx, date)
	return args.Int(0), args.Error(1)
}

type runRecord struct {
	missed int
	err    error
}

type recordingRecorder struct {
	runs []runRecord
}

func (r *recordingRecorder) CloseOutCompleted(missed int, err error) {
	r.runs = append(r.runs, runRecord{missed, err})
}

func TestCloseOut_RunClosesYesterday(t *testing.T) {
	closer := new(MockDayCloser)
	closer.On("Today").Return(model.MustParseDate("2025-10-02"))
	closer.On("CloseOutDay", mock.Anything, model.MustParseDate("2025-10-01")).Return(3, nil)
	rec := &recordingRecorder{}

	w, err := NewCloseOut(closer, "", time.UTC, rec, zap.NewNop())
	require.NoError(t, err)

	missed, err := w.Run(t.Context())
	require.NoError(t, err)
	assert.Equal(t, 3, missed)
	assert.Equal(t, []runRecord{{3, nil}}, rec.runs)
	closer.AssertExpectations(t)
}

func TestCloseOut_RunFailure(t *testing.T) {
	boom := errors.New("dose log unavailable")
	closer := new(MockDayCloser)
	closer.On("Today").Return(model.MustParseDate("2025-10-02"))
	closer.On("CloseOutDay", mock.Anything, mock.Anything).Return(1, boom)
	rec := &recordingRecorder{}

	w, err := NewCloseOut(closer, "", time.UTC, rec, zap.NewNop())
	require.NoError(t, err)

	missed, err := w.Run(t.Context())
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 1, missed)
	require.Len(t, rec.runs, 1)
	assert.ErrorIs(t, rec.runs[0].err, boom)
}

func TestNewCloseOut_InvalidSchedule(t *testing.T) {
	_, err := NewCloseOut(new(MockDayCloser), "every midnight", time.UTC, nil, zap.NewNop())
	assert.Error(t, err)
}

func TestCloseOut_StartStop(t *testing.T) {
	w, err := NewCloseOut(new(MockDayCloser), "@every 1h", time.UTC, nil, zap.NewNop())
	require.NoError(t, err)

	w.Start()
	ctx, cancel := context.WithTimeout(t.Context(), time.Second)
	defer cancel()
	assert.NoError(t, w.Stop(ctx))
}

func TestCloseOut_WithTracker(t *testing.T) {
	now := time.Date(2025, 10, 2, 0, 5, 0, 0, time.UTC)
	tracker := service.NewTracker(
		repository.NewMemoryMedicationStore(),
		repository.NewMemoryDoseLog(),
		zap.NewNop(),
		service.WithClock(func() time.Time { return now }),
		service.WithLocation(time.UTC),
	)
	_, err := tracker.AddMedication(t.Context(), service.MedicationInput{
		Name:      "Lexapro",
		StartDate: model.MustParseDate("2025-10-01"),
		Schedule: model.RecurrenceRule{Times: []model.TimeOfDay{
			model.MustParseTimeOfDay("08:00"),
			model.MustParseTimeOfDay("20:00"),
		}},
	})
	require.NoError(t, err)

	w, err := NewCloseOut(tracker, DefaultCloseOutSchedule, time.UTC, nil, zap.NewNop())
	require.NoError(t, err)

	missed, err := w.Run(t.Context())
	require.NoError(t, err)
	assert.Equal(t, 2, missed)

	missed, err = w.Run(t.Context())
	require.NoError(t, err)
	assert.Equal(t, 0, missed)
}
