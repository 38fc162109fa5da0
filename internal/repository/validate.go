// Package repository holds the medication store and dose log implementations:
// in-memory, PostgreSQL (pgx) and embedded Badger.
package repository

import (
	"slices"

	"github.com/imsantiagopoli/pilly/internal/apperr"
	"github.com/imsantiagopoli/pilly/pkg/model"
)

// ValidateEvent checks the key triple and status of a dose event before it is stored
func ValidateEvent(event model.DoseEvent) error {
	if event.MedicationID == "" {
		return apperr.Validation("medication id is required")
	}
	if !event.Date.Valid() {
		return apperr.Validation("invalid dose date %q", event.Date.String())
	}
	if !event.ScheduledTime.Valid() {
		return apperr.Validation("invalid scheduled time %02d:%02d", event.ScheduledTime.Hour, event.ScheduledTime.Minute)
	}
	if !event.Status.Recordable() {
		return apperr.Validation("invalid dose status %q", event.Status)
	}
	return nil
}

func validateMedication(med *model.Medication) error {
	if med == nil {
		return apperr.Validation("medication is required")
	}
	if med.ID == "" {
		return apperr.Validation("medication id is required")
	}
	if med.Name == "" {
		return apperr.Validation("medication name is required")
	}
	return nil
}

// inFilter reports whether id passes the medication filter; an empty filter passes everything
func inFilter(filter []string, id string) bool {
	return len(filter) == 0 || slices.Contains(filter, id)
}

func sortMedications(meds []model.Medication) {
	slices.SortFunc(meds, func(a, b model.Medication) int {
		if c := a.CreatedAt.Compare(b.CreatedAt); c != 0 {
			return c
		}
		switch {
		case a.ID < b.ID:
			return -1
		case a.ID > b.ID:
			return 1
		}
		return 0
	})
}

func cloneMedication(med model.Medication) model.Medication {
	med.Schedule.Times = slices.Clone(med.Schedule.Times)
	med.Schedule.Weekdays = slices.Clone(med.Schedule.Weekdays)
	if med.PastSchedules != nil {
		past := make([]model.ScheduleVersion, len(med.PastSchedules))
		for i, v := range med.PastSchedules {
			past[i] = model.ScheduleVersion{
				Rule: model.RecurrenceRule{
					Times:    slices.Clone(v.Rule.Times),
					Weekdays: slices.Clone(v.Rule.Weekdays),
				},
				Until: v.Until,
			}
		}
		med.PastSchedules = past
	}
	if med.DeletedOn != nil {
		d := *med.DeletedOn
		med.DeletedOn = &d
	}
	return med
}
