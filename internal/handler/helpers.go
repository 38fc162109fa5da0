package handler

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/imsantiagopoli/pilly/internal/apperr"
	"github.com/imsantiagopoli/pilly/internal/schedule"
	"github.com/imsantiagopoli/pilly/pkg/api"
	"github.com/imsantiagopoli/pilly/pkg/model"
	"github.com/oapi-codegen/runtime/types"
	"go.uber.org/zap"
)

// Helper functions for type conversions between API types and internal models

// stringPtr creates a pointer to a string
func stringPtr(s string) *string {
	return &s
}

// intPtr creates a pointer to an int
func intPtr(i int) *int {
	return &i
}

// boolPtr creates a pointer to a bool
func boolPtr(b bool) *bool {
	return &b
}

// toAPIDate converts a calendar date to types.Date
func toAPIDate(d model.Date) types.Date {
	return types.Date{Time: d.In(time.UTC)}
}

// fromAPIDate converts types.Date to a calendar date; the zero value stays zero
func fromAPIDate(d types.Date) model.Date {
	if d.Time.IsZero() {
		return model.Date{}
	}
	return model.DateOf(d.Time)
}

// invalidBody answers a request whose body could not be bound
func invalidBody(c *gin.Context, logger *zap.Logger, err error) {
	logger.Error("invalid request body", zap.Error(err))
	c.JSON(http.StatusBadRequest, api.ErrorResponse{
		Code:    api.CodeValidationError,
		Message: "Invalid request body",
		Details: stringPtr(err.Error()),
	})
}

// respondError maps err onto a status code and ErrorResponse. message is
// used for unexpected failures, which are also logged.
func respondError(c *gin.Context, logger *zap.Logger, err error, message string, fields ...zap.Field) {
	var appErr *apperr.Error
	if errors.As(err, &appErr) {
		switch appErr.Kind {
		case apperr.KindValidation:
			logger.Warn(message, append(fields, zap.Error(err))...)
			c.JSON(http.StatusBadRequest, api.ErrorResponse{
				Code:    api.CodeValidationError,
				Message: appErr.Message,
			})
			return
		case apperr.KindNotFound:
			c.JSON(http.StatusNotFound, api.ErrorResponse{
				Code:    api.CodeNotFound,
				Message: appErr.Message,
			})
			return
		}
	}

	logger.Error(message, append(fields, zap.Error(err))...)
	_ = c.Error(err)
	c.JSON(http.StatusInternalServerError, api.ErrorResponse{
		Code:    api.CodeInternalError,
		Message: message,
		Details: stringPtr(err.Error()),
	})
}

// parseTimes parses HH:MM entries
func parseTimes(raw []string) ([]model.TimeOfDay, error) {
	times := make([]model.TimeOfDay, 0, len(raw))
	for _, s := range raw {
		t, err := model.ParseTimeOfDay(strings.TrimSpace(s))
		if err != nil {
			return nil, apperr.WrapValidation(err, "invalid time of day: "+s)
		}
		times = append(times, t)
	}
	return times, nil
}

// buildRule turns the schedule fields of a request into a recurrence rule.
// A frequency phrase and an explicit weekday list are mutually exclusive.
func buildRule(rawTimes []string, frequency *string, weekdays *[]int) (model.RecurrenceRule, error) {
	times, err := parseTimes(rawTimes)
	if err != nil {
		return model.RecurrenceRule{}, err
	}

	if frequency != nil && strings.TrimSpace(*frequency) != "" {
		if weekdays != nil {
			return model.RecurrenceRule{}, apperr.Validation("frequency and weekdays cannot both be set")
		}
		return schedule.ParseFrequency(*frequency, times)
	}

	rule := model.RecurrenceRule{Times: times}
	if weekdays != nil {
		rule.Weekdays = make([]time.Weekday, 0, len(*weekdays))
		for _, wd := range *weekdays {
			if wd < int(time.Sunday) || wd > int(time.Saturday) {
				return model.RecurrenceRule{}, apperr.Validation("weekday out of range: %d", wd)
			}
			rule.Weekdays = append(rule.Weekdays, time.Weekday(wd))
		}
	}
	return rule, nil
}

func timesToStrings(times []model.TimeOfDay) []string {
	out := make([]string, len(times))
	for i, t := range times {
		out[i] = t.String()
	}
	return out
}

func toMedicationResponse(m *model.Medication) api.MedicationResponse {
	resp := api.MedicationResponse{
		Id:        m.ID,
		Name:      m.Name,
		Dosage:    m.Dosage,
		Times:     timesToStrings(m.Schedule.Times),
		Color:     m.Color,
		Category:  api.MedicationCategory(m.Category),
		StartDate: toAPIDate(m.StartDate),
		Active:    m.Active(),
		CreatedAt: m.CreatedAt,
	}
	if !m.Schedule.EveryDay() {
		days := make([]int, len(m.Schedule.Weekdays))
		for i, wd := range m.Schedule.Weekdays {
			days[i] = int(wd)
		}
		resp.Weekdays = &days
	}
	if m.DurationDays > 0 {
		resp.DurationDays = intPtr(m.DurationDays)
	}
	if m.DeletedOn != nil {
		d := toAPIDate(*m.DeletedOn)
		resp.DeletedOn = &d
	}
	return resp
}

func toEventResponse(e model.DoseEvent) api.DoseEventResponse {
	return api.DoseEventResponse{
		MedicationId:  e.MedicationID,
		Date:          toAPIDate(e.Date),
		ScheduledTime: e.ScheduledTime.String(),
		Status:        string(e.Status),
		RecordedAt:    e.RecordedAt,
	}
}

func toOutcomeResponse(o model.DoseOutcome) api.DoseOutcomeResponse {
	resp := api.DoseOutcomeResponse{
		MedicationId:  o.MedicationID,
		ScheduledTime: o.Time.String(),
		Status:        string(o.Status),
		RecordedAt:    o.RecordedAt,
	}
	if o.Unscheduled {
		resp.Unscheduled = boolPtr(true)
	}
	return resp
}

func toTodayDoseResponses(doses []model.TodayDose) []api.TodayDoseResponse {
	out := make([]api.TodayDoseResponse, 0, len(doses))
	for _, d := range doses {
		out = append(out, api.TodayDoseResponse{
			MedicationId:  d.MedicationID,
			Name:          d.Name,
			Dosage:        d.Dosage,
			Color:         d.Color,
			Category:      api.MedicationCategory(d.Category),
			ScheduledTime: d.Time.String(),
			Status:        string(d.Status),
			RecordedAt:    d.RecordedAt,
		})
	}
	return out
}

func toHistoryResponse(s *model.AdherenceSnapshot) api.HistoryResponse {
	resp := api.HistoryResponse{
		StartDate:     toAPIDate(s.Start),
		EndDate:       toAPIDate(s.End),
		EvaluatedAt:   s.EvaluatedAt,
		Score:         s.Score,
		Streak:        s.Streak,
		LongestStreak: s.LongestStreak,
		Taken:         s.Taken,
		Late:          s.Late,
		Missed:        s.Missed,
		Pending:       s.Pending,
		Days:          make([]api.DaySummaryResponse, 0, len(s.Days)),
		Events:        make([]api.DoseEventResponse, 0, len(s.Events)),
	}
	for _, day := range s.Days {
		doses := make([]api.DoseOutcomeResponse, 0, len(day.Outcomes))
		for _, o := range day.Outcomes {
			doses = append(doses, toOutcomeResponse(o))
		}
		resp.Days = append(resp.Days, api.DaySummaryResponse{
			Date:    toAPIDate(day.Date),
			Status:  string(day.Status),
			Taken:   day.Taken,
			Late:    day.Late,
			Missed:  day.Missed,
			Pending: day.Pending,
			Score:   day.Score,
			Doses:   doses,
		})
	}
	for _, e := range s.Events {
		resp.Events = append(resp.Events, toEventResponse(e))
	}
	return resp
}
