package model

import (
	"slices"
	"time"
)

// Category is the physical form of a medication
type Category string

const (
	CategoryTablet    Category = "tablet"
	CategoryCapsule   Category = "capsule"
	CategoryInjection Category = "injection"
	CategoryOther     Category = "other"
)

// Valid reports whether c is one of the known categories
func (c Category) Valid() bool {
	switch c {
	case CategoryTablet, CategoryCapsule, CategoryInjection, CategoryOther:
		return true
	}
	return false
}

// RecurrenceRule describes when a medication is due.
// An empty Weekdays set means every day.
type RecurrenceRule struct {
	Times    []TimeOfDay    `json:"times"`
	Weekdays []time.Weekday `json:"weekdays,omitempty"`
}

// EveryDay reports whether the rule applies to all weekdays
func (r RecurrenceRule) EveryDay() bool {
	return len(r.Weekdays) == 0
}

// AppliesOn reports whether the rule's day selector includes d
func (r RecurrenceRule) AppliesOn(d Date) bool {
	return r.EveryDay() || slices.Contains(r.Weekdays, d.Weekday())
}

// ScheduleVersion is a replaced recurrence rule. It applied to the dates
// before Until that no earlier version covers.
type ScheduleVersion struct {
	Rule  RecurrenceRule `json:"rule"`
	Until Date           `json:"until"`
}

// Medication represents a tracked medication
type Medication struct {
	ID       string         `json:"id"`
	Name     string         `json:"name"`
	Dosage   string         `json:"dosage"`
	Schedule RecurrenceRule `json:"schedule"`
	// PastSchedules are the earlier rules, oldest first
	PastSchedules []ScheduleVersion `json:"past_schedules,omitempty"`
	Color        string         `json:"color"`
	Category     Category       `json:"category"`
	StartDate    Date           `json:"start_date"`
	DurationDays int            `json:"duration_days,omitempty"` // 0 = ongoing
	CreatedAt    time.Time      `json:"created_at"`
	DeletedOn    *Date          `json:"deleted_on,omitempty"`
}

// RuleOn returns the recurrence rule in effect on d
func (m *Medication) RuleOn(d Date) RecurrenceRule {
	for _, v := range m.PastSchedules {
		if d.Before(v.Until) {
			return v.Rule
		}
	}
	return m.Schedule
}

// Reschedule makes rule the schedule from the date from on. Earlier dates
// keep the rule that was in effect for them; a rule replaced before it
// covered any day is dropped.
func (m *Medication) Reschedule(rule RecurrenceRule, from Date) {
	since := m.StartDate
	if n := len(m.PastSchedules); n > 0 {
		since = m.PastSchedules[n-1].Until
	}
	if from.After(since) {
		m.PastSchedules = append(m.PastSchedules, ScheduleVersion{Rule: m.Schedule, Until: from})
	}
	m.Schedule = rule
}

// Active reports whether the medication has not been removed
func (m *Medication) Active() bool {
	return m.DeletedOn == nil
}

// InEffectOn reports whether d falls inside the medication's lifetime:
// on or after the start date, inside the duration and before removal.
func (m *Medication) InEffectOn(d Date) bool {
	if !m.StartDate.IsZero() && d.Before(m.StartDate) {
		return false
	}
	if m.DurationDays > 0 && !m.StartDate.IsZero() && !d.Before(m.StartDate.AddDays(m.DurationDays)) {
		return false
	}
	if m.DeletedOn != nil && !d.Before(*m.DeletedOn) {
		return false
	}
	return true
}

// DoseStatus is the outcome of a scheduled dose
type DoseStatus string

const (
	StatusTaken  DoseStatus = "taken"
	StatusMissed DoseStatus = "missed"
	StatusLate   DoseStatus = "late"
	// StatusPending is derived only and never stored
	StatusPending DoseStatus = "pending"
)

// Recordable reports whether s may be stored in a dose event
func (s DoseStatus) Recordable() bool {
	switch s {
	case StatusTaken, StatusMissed, StatusLate:
		return true
	}
	return false
}

// DoseKey identifies one scheduled dose
type DoseKey struct {
	MedicationID  string
	Date          Date
	ScheduledTime TimeOfDay
}

// DoseEvent records what happened to a scheduled dose
type DoseEvent struct {
	MedicationID  string     `json:"medication_id"`
	Date          Date       `json:"date"`
	ScheduledTime TimeOfDay  `json:"scheduled_time"`
	Status        DoseStatus `json:"status"`
	RecordedAt    time.Time  `json:"recorded_at"`
}

// Key returns the identity of the event
func (e DoseEvent) Key() DoseKey {
	return DoseKey{MedicationID: e.MedicationID, Date: e.Date, ScheduledTime: e.ScheduledTime}
}

// CompareEvents orders events by date, scheduled time, then medication id
func CompareEvents(a, b DoseEvent) int {
	if c := a.Date.Compare(b.Date); c != 0 {
		return c
	}
	if c := a.ScheduledTime.Compare(b.ScheduledTime); c != 0 {
		return c
	}
	switch {
	case a.MedicationID < b.MedicationID:
		return -1
	case a.MedicationID > b.MedicationID:
		return 1
	}
	return 0
}

// DueDose is one occurrence of a recurrence rule
type DueDose struct {
	MedicationID string    `json:"medication_id"`
	Date         Date      `json:"date"`
	Time         TimeOfDay `json:"time"`
}

// Key returns the dose key of the due dose
func (d DueDose) Key() DoseKey {
	return DoseKey{MedicationID: d.MedicationID, Date: d.Date, ScheduledTime: d.Time}
}

// DoseOutcome is a due dose together with its classification
type DoseOutcome struct {
	DueDose
	Status     DoseStatus `json:"status"`
	RecordedAt *time.Time `json:"recorded_at,omitempty"`
	// Unscheduled marks a recorded event that no longer matches a due dose
	Unscheduled bool `json:"unscheduled,omitempty"`
}

// DayStatus summarises every outcome of one day
type DayStatus string

const (
	DayTaken   DayStatus = "taken"
	DayLate    DayStatus = "late"
	DayMissed  DayStatus = "missed"
	DayPending DayStatus = "pending"
	DayNone    DayStatus = "none"
)

// DaySummary is the per-day part of an adherence snapshot
type DaySummary struct {
	Date     Date          `json:"date"`
	Status   DayStatus     `json:"status"`
	Taken    int           `json:"taken"`
	Late     int           `json:"late"`
	Missed   int           `json:"missed"`
	Pending  int           `json:"pending"`
	Score    int           `json:"score"`
	Outcomes []DoseOutcome `json:"outcomes"`
}

// Due returns the number of outcomes on the day
func (s DaySummary) Due() int {
	return s.Taken + s.Late + s.Missed + s.Pending
}

// AdherenceSnapshot is derived adherence data for a date range.
// It is recomputed on demand and never stored.
type AdherenceSnapshot struct {
	Start         Date         `json:"start"`
	End           Date         `json:"end"`
	EvaluatedAt   time.Time    `json:"evaluated_at"`
	Days          []DaySummary `json:"days"`
	Events        []DoseEvent  `json:"events"`
	Taken         int          `json:"taken"`
	Late          int          `json:"late"`
	Missed        int          `json:"missed"`
	Pending       int          `json:"pending"`
	Score         int          `json:"score"`
	Streak        int          `json:"streak"`
	LongestStreak int          `json:"longest_streak"`
}

// Overview is the home screen view of today
type Overview struct {
	Date        Date        `json:"date"`
	Doses       []TodayDose `json:"doses"`
	AllDone     bool        `json:"all_done"`
	Streak      int         `json:"streak"`
	WeeklyScore int         `json:"weekly_score"`
}

// TodayDose is a due dose today with medication details attached
type TodayDose struct {
	DoseOutcome
	Name     string   `json:"name"`
	Dosage   string   `json:"dosage"`
	Color    string   `json:"color"`
	Category Category `json:"category"`
}

// ChatRole identifies the sender of a chat message
type ChatRole string

const (
	ChatRoleUser  ChatRole = "user"
	ChatRoleModel ChatRole = "model"
)

// ChatMessage is one turn of an assistant conversation
type ChatMessage struct {
	Role ChatRole `json:"role"`
	Text string   `json:"text"`
}
