// Package schedule turns recurrence rules into the doses due on a date.
package schedule

import (
	"cmp"
	"slices"
	"time"

	"github.com/imsantiagopoli/pilly/internal/apperr"
	"github.com/imsantiagopoli/pilly/pkg/model"
)

// ValidateRule checks the recurrence rule invariants: at least one time of
// day, valid clock values, and a non-empty weekday subset of 0..6 if given.
func ValidateRule(rule model.RecurrenceRule) error {
	if len(rule.Times) == 0 {
		return apperr.Validation("schedule requires at least one time of day")
	}
	for _, t := range rule.Times {
		if !t.Valid() {
			return apperr.Validation("invalid time of day %02d:%02d", t.Hour, t.Minute)
		}
	}
	if rule.Weekdays != nil && len(rule.Weekdays) == 0 {
		return apperr.Validation("weekday set must not be empty")
	}
	for _, wd := range rule.Weekdays {
		if wd < time.Sunday || wd > time.Saturday {
			return apperr.Validation("invalid weekday index %d", int(wd))
		}
	}
	return nil
}

// Normalize returns a copy of rule with times and weekdays sorted and deduplicated
func Normalize(rule model.RecurrenceRule) model.RecurrenceRule {
	times := slices.Clone(rule.Times)
	slices.SortFunc(times, model.TimeOfDay.Compare)
	times = slices.Compact(times)

	var weekdays []time.Weekday
	if len(rule.Weekdays) > 0 {
		weekdays = slices.Clone(rule.Weekdays)
		slices.Sort(weekdays)
		weekdays = slices.Compact(weekdays)
		if len(weekdays) == 7 {
			weekdays = nil
		}
	}

	return model.RecurrenceRule{Times: times, Weekdays: weekdays}
}

// DueDosesFor returns the doses due on date, ordered by time of day and then
// medication id. Each medication contributes the rule in effect on date;
// medications outside their lifetime on date, or whose rule does not select
// date's weekday, contribute nothing.
func DueDosesFor(date model.Date, medications []model.Medication) []model.DueDose {
	var due []model.DueDose
	for i := range medications {
		med := &medications[i]
		if !med.InEffectOn(date) {
			continue
		}
		rule := med.RuleOn(date)
		if !rule.AppliesOn(date) {
			continue
		}
		for _, t := range rule.Times {
			due = append(due, model.DueDose{MedicationID: med.ID, Date: date, Time: t})
		}
	}

	slices.SortStableFunc(due, func(a, b model.DueDose) int {
		if c := a.Time.Compare(b.Time); c != 0 {
			return c
		}
		return cmp.Compare(a.MedicationID, b.MedicationID)
	})
	return slices.CompactFunc(due, func(a, b model.DueDose) bool {
		return a.Key() == b.Key()
	})
}

// DueDosesBetween returns the due doses of every date in [start, end]
func DueDosesBetween(start, end model.Date, medications []model.Medication) []model.DueDose {
	var due []model.DueDose
	for d := start; !d.After(end); d = d.AddDays(1) {
		due = append(due, DueDosesFor(d, medications)...)
	}
	return due
}

// IsDue reports whether medication is due at t on date
func IsDue(med model.Medication, date model.Date, t model.TimeOfDay) bool {
	if !med.InEffectOn(date) {
		return false
	}
	rule := med.RuleOn(date)
	return rule.AppliesOn(date) && slices.Contains(rule.Times, t)
}
