package service

import (
	"context"
	"fmt"
	"math"
	"slices"
	"time"

	"github.com/imsantiagopoli/pilly/internal/apperr"
	"github.com/imsantiagopoli/pilly/internal/schedule"
	"github.com/imsantiagopoli/pilly/pkg/model"
	"go.uber.org/zap"
)

const (
	// MaxRangeDays is the longest date range a snapshot covers
	MaxRangeDays = 366
	// maxStreakDays bounds the backward walk of the current streak
	maxStreakDays = 10 * 366
)

// DefaultGraceWindow is how long after the scheduled time a dose still counts as on time
const DefaultGraceWindow = 2 * time.Hour

// Policy holds the adherence rules left open by the domain
type Policy struct {
	// GraceWindow is capped at the end of the scheduled day; zero or
	// negative means the rest of the scheduled day.
	GraceWindow time.Duration
	// LateCountsTowardStreak lets days with late doses extend the streak.
	// Late doses never break a streak either way.
	LateCountsTowardStreak bool
}

// DefaultPolicy returns the policy used when none is configured
func DefaultPolicy() Policy {
	return Policy{GraceWindow: DefaultGraceWindow}
}

// AdherenceCalculator reconciles due doses with recorded dose events.
// It owns no state: every call reads the stores as they are at call time.
type AdherenceCalculator struct {
	meds     MedicationStore
	doseLog  DoseLog
	policy   Policy
	location *time.Location
	logger   *zap.Logger
}

// NewAdherenceCalculator creates a new AdherenceCalculator evaluating calendar dates in loc
func NewAdherenceCalculator(meds MedicationStore, doseLog DoseLog, policy Policy, loc *time.Location, logger *zap.Logger) *AdherenceCalculator {
	if loc == nil {
		loc = time.Local
	}
	return &AdherenceCalculator{
		meds:     meds,
		doseLog:  doseLog,
		policy:   policy,
		location: loc,
		logger:   logger,
	}
}

// Policy returns the calculator's adherence policy
func (c *AdherenceCalculator) Policy() Policy {
	return c.policy
}

// Deadline returns the instant after which an unrecorded dose is missed
// and a taken record is late
func (c *AdherenceCalculator) Deadline(dose model.DueDose) time.Time {
	endOfDay := dose.Date.AddDays(1).In(c.location)
	if c.policy.GraceWindow <= 0 {
		return endOfDay
	}
	deadline := dose.Date.At(dose.Time, c.location).Add(c.policy.GraceWindow)
	if deadline.After(endOfDay) {
		return endOfDay
	}
	return deadline
}

// Classify derives the status of one due dose from its event (nil when none
// was recorded) as seen at now
func (c *AdherenceCalculator) Classify(dose model.DueDose, event *model.DoseEvent, now time.Time) model.DoseOutcome {
	outcome := model.DoseOutcome{DueDose: dose}
	deadline := c.Deadline(dose)

	if event == nil {
		if now.Before(deadline) {
			outcome.Status = model.StatusPending
		} else {
			outcome.Status = model.StatusMissed
		}
		return outcome
	}

	recorded := event.RecordedAt
	outcome.RecordedAt = &recorded

	switch event.Status {
	case model.StatusTaken:
		if recorded.After(deadline) {
			outcome.Status = model.StatusLate
		} else {
			outcome.Status = model.StatusTaken
		}
	default:
		outcome.Status = event.Status
	}
	return outcome
}

// Snapshot computes the adherence of the medications in filter (all when
// empty) over [start, end] as seen at now. Unknown ids in filter are
// ignored so removed medications stay queryable.
func (c *AdherenceCalculator) Snapshot(ctx context.Context, start, end model.Date, filter []string, now time.Time) (*model.AdherenceSnapshot, error) {
	if !start.Valid() || !end.Valid() {
		return nil, apperr.Validation("start and end must be valid dates")
	}
	if end.Before(start) {
		return nil, apperr.Validation("end date %s is before start date %s", end, start)
	}
	if start.DaysUntil(end) >= MaxRangeDays {
		return nil, apperr.Validation("date range exceeds %d days", MaxRangeDays)
	}

	meds, err := c.medications(ctx, filter)
	if err != nil {
		return nil, err
	}

	events, byKey, err := c.loadEvents(ctx, start, end, filter)
	if err != nil {
		return nil, err
	}

	snapshot := &model.AdherenceSnapshot{
		Start:       start,
		End:         end,
		EvaluatedAt: now,
		Events:      events,
	}

	eventsByDate := make(map[model.Date][]model.DoseEvent)
	for _, e := range events {
		eventsByDate[e.Date] = append(eventsByDate[e.Date], e)
	}

	for d := start; !d.After(end); d = d.AddDays(1) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		day := c.summarizeDay(d, schedule.DueDosesFor(d, meds), byKey, eventsByDate[d], now)
		snapshot.Taken += day.Taken
		snapshot.Late += day.Late
		snapshot.Missed += day.Missed
		snapshot.Pending += day.Pending
		snapshot.Days = append(snapshot.Days, day)
	}

	snapshot.Score = Score(snapshot.Taken, snapshot.Taken+snapshot.Late+snapshot.Missed)
	snapshot.LongestStreak = c.longestStreak(snapshot.Days, c.today(now))

	snapshot.Streak, err = c.streak(ctx, meds, filter, now)
	if err != nil {
		return nil, err
	}

	return snapshot, nil
}

// Streak returns the number of consecutive fully adherent days ending at
// the most recent fully elapsed day (yesterday) as seen at now. A miss on
// that day still shows the run it ended; the streak drops to zero once the
// following day has elapsed without extending it.
func (c *AdherenceCalculator) Streak(ctx context.Context, filter []string, now time.Time) (int, error) {
	meds, err := c.medications(ctx, filter)
	if err != nil {
		return 0, err
	}
	return c.streak(ctx, meds, filter, now)
}

func (c *AdherenceCalculator) streak(ctx context.Context, meds []model.Medication, filter []string, now time.Time) (int, error) {
	yesterday := c.today(now).AddDays(-1)
	earliest, ok := c.earliestDate(meds)
	if !ok || yesterday.Before(earliest) {
		return 0, nil
	}
	if floor := yesterday.AddDays(-maxStreakDays); earliest.Before(floor) {
		earliest = floor
	}

	_, byKey, err := c.loadEvents(ctx, earliest, yesterday, filter)
	if err != nil {
		return 0, err
	}

	streak := 0
	latest := true
	for d := yesterday; !d.Before(earliest); d = d.AddDays(-1) {
		if err := ctx.Err(); err != nil {
			return 0, err
		}
		day := c.summarizeDay(d, schedule.DueDosesFor(d, meds), byKey, nil, now)
		switch {
		case day.Due() == 0:
			continue
		case day.Missed > 0 || day.Pending > 0:
			if !latest {
				return streak, nil
			}
		case day.Late == 0 || c.policy.LateCountsTowardStreak:
			streak++
		}
		latest = false
	}
	return streak, nil
}

// longestStreak finds the longest run of adherent days among the elapsed days of a snapshot
func (c *AdherenceCalculator) longestStreak(days []model.DaySummary, today model.Date) int {
	longest, run := 0, 0
	for _, day := range days {
		if !day.Date.Before(today) {
			break
		}
		switch {
		case day.Due() == 0:
			continue
		case day.Missed > 0 || day.Pending > 0:
			run = 0
		case day.Late == 0 || c.policy.LateCountsTowardStreak:
			run++
			longest = max(longest, run)
		}
	}
	return longest
}

// summarizeDay classifies the due doses of one day. Events on the day that
// match no due dose are reported as unscheduled outcomes and left out of
// the counts.
func (c *AdherenceCalculator) summarizeDay(date model.Date, due []model.DueDose, byKey map[model.DoseKey]model.DoseEvent, dayEvents []model.DoseEvent, now time.Time) model.DaySummary {
	day := model.DaySummary{Date: date}
	seen := make(map[model.DoseKey]bool, len(due))

	for _, dose := range due {
		seen[dose.Key()] = true
		var event *model.DoseEvent
		if e, ok := byKey[dose.Key()]; ok {
			event = &e
		}
		outcome := c.Classify(dose, event, now)
		switch outcome.Status {
		case model.StatusTaken:
			day.Taken++
		case model.StatusLate:
			day.Late++
		case model.StatusMissed:
			day.Missed++
		case model.StatusPending:
			day.Pending++
		}
		day.Outcomes = append(day.Outcomes, outcome)
	}

	for _, e := range dayEvents {
		if seen[e.Key()] {
			continue
		}
		outcome := c.Classify(model.DueDose{MedicationID: e.MedicationID, Date: e.Date, Time: e.ScheduledTime}, &e, now)
		outcome.Unscheduled = true
		day.Outcomes = append(day.Outcomes, outcome)
	}
	slices.SortStableFunc(day.Outcomes, func(a, b model.DoseOutcome) int {
		if c := a.Time.Compare(b.Time); c != 0 {
			return c
		}
		switch {
		case a.MedicationID < b.MedicationID:
			return -1
		case a.MedicationID > b.MedicationID:
			return 1
		}
		return 0
	})

	day.Status = dayStatus(day)
	day.Score = Score(day.Taken, day.Taken+day.Late+day.Missed)
	return day
}

func dayStatus(day model.DaySummary) model.DayStatus {
	switch {
	case day.Due() == 0:
		return model.DayNone
	case day.Missed > 0:
		return model.DayMissed
	case day.Pending > 0:
		return model.DayPending
	case day.Late > 0:
		return model.DayLate
	default:
		return model.DayTaken
	}
}

// Score returns taken/due as a rounded percentage; no due doses scores 100
func Score(taken, due int) int {
	if due <= 0 {
		return 100
	}
	return int(math.Round(float64(taken) / float64(due) * 100))
}

func (c *AdherenceCalculator) today(now time.Time) model.Date {
	return model.DateOf(now.In(c.location))
}

// medications returns every medication, removed ones included, restricted to filter
func (c *AdherenceCalculator) medications(ctx context.Context, filter []string) ([]model.Medication, error) {
	meds, err := c.meds.List(ctx, true)
	if err != nil {
		c.logger.Error("failed to list medications for adherence", zap.Error(err))
		return nil, fmt.Errorf("failed to list medications: %w", err)
	}
	if len(filter) == 0 {
		return meds, nil
	}
	return slices.DeleteFunc(meds, func(m model.Medication) bool {
		return !slices.Contains(filter, m.ID)
	}), nil
}

func (c *AdherenceCalculator) loadEvents(ctx context.Context, start, end model.Date, filter []string) ([]model.DoseEvent, map[model.DoseKey]model.DoseEvent, error) {
	var events []model.DoseEvent
	byKey := make(map[model.DoseKey]model.DoseEvent)
	for e, err := range c.doseLog.EventsInRange(ctx, start, end, filter) {
		if err != nil {
			c.logger.Error("failed to read dose events",
				zap.Error(err),
				zap.String("start", start.String()),
				zap.String("end", end.String()),
			)
			return nil, nil, fmt.Errorf("failed to read dose events: %w", err)
		}
		events = append(events, e)
		byKey[e.Key()] = e
	}
	return events, byKey, nil
}

// earliestDate is the first date any of meds can be due
func (c *AdherenceCalculator) earliestDate(meds []model.Medication) (model.Date, bool) {
	var earliest model.Date
	found := false
	for _, m := range meds {
		d := m.StartDate
		if d.IsZero() {
			if m.CreatedAt.IsZero() {
				continue
			}
			d = model.DateOf(m.CreatedAt.In(c.location))
		}
		if !found || d.Before(earliest) {
			earliest, found = d, true
		}
	}
	return earliest, found
}
