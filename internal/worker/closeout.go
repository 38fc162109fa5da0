// Package worker runs the scheduled background jobs of the server.
package worker

import (
	"context"
	"fmt"
	"time"

	"github.com/imsantiagopoli/pilly/pkg/model"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// DefaultCloseOutSchedule runs the close-out five minutes after midnight
const DefaultCloseOutSchedule = "5 0 * * *"

// DayCloser records missed events for the doses of an elapsed day
type DayCloser interface {
	Today() model.Date
	CloseOutDay(ctx context.Context, date model.Date) (int, error)
}

// Recorder receives the outcome of every close-out run
type Recorder interface {
	CloseOutCompleted(missed int, err error)
}

type noopRecorder struct{}

func (noopRecorder) CloseOutCompleted(int, error) {}

// CloseOut closes out the previous day on a cron schedule
type CloseOut struct {
	cron     *cron.Cron
	closer   DayCloser
	recorder Recorder
	timeout  time.Duration
	logger   *zap.Logger
}

// NewCloseOut schedules the close-out job. expr is a standard five-field
// cron expression evaluated in loc; recorder may be nil.
func NewCloseOut(closer DayCloser, expr string, loc *time.Location, recorder Recorder, logger *zap.Logger) (*CloseOut, error) {
	if expr == "" {
		expr = DefaultCloseOutSchedule
	}
	if loc == nil {
		loc = time.Local
	}
	if recorder == nil {
		recorder = noopRecorder{}
	}

	cl := cronLogger{logger: logger.Sugar()}
	w := &CloseOut{
		cron: cron.New(
			cron.WithLocation(loc),
			cron.WithLogger(cl),
			cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
		),
		closer:   closer,
		recorder: recorder,
		timeout:  time.Minute,
		logger:   logger,
	}

	if _, err := w.cron.AddFunc(expr, func() {
		ctx, cancel := context.WithTimeout(context.Background(), w.timeout)
		defer cancel()
		_, _ = w.Run(ctx)
	}); err != nil {
		return nil, fmt.Errorf("invalid close-out schedule %q: %w", expr, err)
	}

	return w, nil
}

// Start begins running the schedule in the background
func (w *CloseOut) Start() {
	w.cron.Start()
	for _, e := range w.cron.Entries() {
		w.logger.Info("close-out job scheduled", zap.Time("next_run", e.Next))
	}
}

// Stop halts the schedule and waits for a running job until ctx is done
func (w *CloseOut) Stop(ctx context.Context) error {
	done := w.cron.Stop()
	select {
	case <-done.Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Run closes out yesterday and returns how many doses were marked missed
func (w *CloseOut) Run(ctx context.Context) (int, error) {
	yesterday := w.closer.Today().AddDays(-1)

	missed, err := w.closer.CloseOutDay(ctx, yesterday)
	w.recorder.CloseOutCompleted(missed, err)
	if err != nil {
		w.logger.Error("close-out failed",
			zap.Error(err),
			zap.String("date", yesterday.String()),
			zap.Int("missed", missed),
		)
		return missed, err
	}

	w.logger.Info("close-out completed",
		zap.String("date", yesterday.String()),
		zap.Int("missed", missed),
	)
	return missed, nil
}

// cronLogger adapts zap to cron.Logger
type cronLogger struct {
	logger *zap.SugaredLogger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.logger.Debugw(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.logger.Errorw(msg, append(keysAndValues, "error", err)...)
}
