package schedule

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/imsantiagopoli/pilly/internal/apperr"
	"github.com/imsantiagopoli/pilly/pkg/model"
)

// maxDailyDoses bounds "N times daily" expansions
const maxDailyDoses = 6

// MaxDurationDays is the longest fixed course a medication can be given
const MaxDurationDays = 10 * 365

var (
	weekdayNames = map[string]time.Weekday{
		"sun": time.Sunday, "sunday": time.Sunday, "sundays": time.Sunday,
		"mon": time.Monday, "monday": time.Monday, "mondays": time.Monday,
		"tue": time.Tuesday, "tues": time.Tuesday, "tuesday": time.Tuesday, "tuesdays": time.Tuesday,
		"wed": time.Wednesday, "wednesday": time.Wednesday, "wednesdays": time.Wednesday,
		"thu": time.Thursday, "thur": time.Thursday, "thurs": time.Thursday, "thursday": time.Thursday, "thursdays": time.Thursday,
		"fri": time.Friday, "friday": time.Friday, "fridays": time.Friday,
		"sat": time.Saturday, "saturday": time.Saturday, "saturdays": time.Saturday,
	}

	timesDailyPattern = regexp.MustCompile(`^(\d+)\s*(?:x|times)\s*(?:daily|a day|per day)$`)
	durationPattern   = regexp.MustCompile(`^(\d+)\s*(d|day|days|w|wk|week|weeks|month|months)?$`)
	listSeparators    = regexp.MustCompile(`[/,;&\s]+|\band\b`)
)

// ParseFrequency maps the free-text frequency of the medication form
// ("Daily", "Twice Daily", "Mon/Wed/Fri", ...) onto a recurrence rule.
// times holds the doses entered by the user; multi-dose frequencies with a
// single entered time are expanded across the following twelve hours.
func ParseFrequency(text string, times []model.TimeOfDay) (model.RecurrenceRule, error) {
	if len(times) == 0 {
		return model.RecurrenceRule{}, apperr.Validation("at least one time of day is required")
	}

	freq := strings.ToLower(strings.TrimSpace(text))
	rule := model.RecurrenceRule{Times: times}

	switch freq {
	case "", "daily", "every day", "everyday", "once daily", "once a day", "1x daily":
		return finish(rule)
	case "twice daily", "twice a day", "bid":
		rule.Times = expandDaily(times, 2)
		return finish(rule)
	case "three times daily", "three times a day", "tid":
		rule.Times = expandDaily(times, 3)
		return finish(rule)
	case "weekdays", "every weekday":
		rule.Weekdays = []time.Weekday{time.Monday, time.Tuesday, time.Wednesday, time.Thursday, time.Friday}
		return finish(rule)
	case "weekends", "every weekend":
		rule.Weekdays = []time.Weekday{time.Saturday, time.Sunday}
		return finish(rule)
	}

	if m := timesDailyPattern.FindStringSubmatch(freq); m != nil {
		n, _ := strconv.Atoi(m[1])
		if n < 1 || n > maxDailyDoses {
			return model.RecurrenceRule{}, apperr.Validation("unsupported dose count %d per day", n)
		}
		rule.Times = expandDaily(times, n)
		return finish(rule)
	}

	days, ok := parseWeekdayList(freq)
	if !ok {
		return model.RecurrenceRule{}, apperr.Validation("unrecognised frequency %q", text)
	}
	rule.Weekdays = days
	return finish(rule)
}

func finish(rule model.RecurrenceRule) (model.RecurrenceRule, error) {
	rule = Normalize(rule)
	if err := ValidateRule(rule); err != nil {
		return model.RecurrenceRule{}, err
	}
	return rule, nil
}

// expandDaily spreads n doses over twelve hours from the single given time
func expandDaily(times []model.TimeOfDay, n int) []model.TimeOfDay {
	if len(times) != 1 || n < 2 {
		return times
	}
	first := times[0].Minutes()
	step := 12 * 60 / (n - 1)
	out := make([]model.TimeOfDay, 0, n)
	for i := 0; i < n; i++ {
		m := (first + i*step) % (24 * 60)
		out = append(out, model.TimeOfDay{Hour: m / 60, Minute: m % 60})
	}
	return out
}

func parseWeekdayList(freq string) ([]time.Weekday, bool) {
	freq = strings.TrimPrefix(freq, "every ")
	freq = strings.TrimPrefix(freq, "on ")

	var days []time.Weekday
	for _, tok := range listSeparators.Split(freq, -1) {
		if tok == "" {
			continue
		}
		wd, ok := weekdayNames[tok]
		if !ok {
			return nil, false
		}
		days = append(days, wd)
	}
	return days, len(days) > 0
}

// ParseDuration maps "7 days", "2 weeks", "1 month" or "Ongoing" to a day
// count; 0 means open-ended.
func ParseDuration(text string) (int, error) {
	s := strings.ToLower(strings.TrimSpace(text))
	switch s {
	case "", "ongoing", "open-ended", "open ended", "indefinite", "indefinitely", "forever":
		return 0, nil
	}

	m := durationPattern.FindStringSubmatch(s)
	if m == nil {
		return 0, apperr.Validation("unrecognised duration %q", text)
	}
	n, err := strconv.Atoi(m[1])
	if err != nil || n <= 0 {
		return 0, apperr.Validation("duration must be a positive number of days: %q", text)
	}
	if n > MaxDurationDays {
		return 0, apperr.Validation("duration exceeds %d days: %q", MaxDurationDays, text)
	}

	switch m[2] {
	case "w", "wk", "week", "weeks":
		n *= 7
	case "month", "months":
		n *= 30
	}
	if n > MaxDurationDays {
		return 0, apperr.Validation("duration exceeds %d days: %q", MaxDurationDays, text)
	}
	return n, nil
}
