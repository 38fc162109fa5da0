// Package api holds the request and response bodies of the HTTP API.
package api

import (
	"time"

	openapi_types "github.com/oapi-codegen/runtime/types"
)

// Error codes returned in ErrorResponse.Code
const (
	CodeValidationError = "VALIDATION_ERROR"
	CodeNotFound        = "NOT_FOUND"
	CodeInternalError   = "INTERNAL_ERROR"
)

// ErrorResponse defines model for ErrorResponse.
type ErrorResponse struct {
	Code    string  `json:"code"`
	Message string  `json:"message"`
	Details *string `json:"details,omitempty"`
}

// MedicationCategory defines model for MedicationCategory.
type MedicationCategory string

// Defines values for MedicationCategory.
const (
	Tablet    MedicationCategory = "tablet"
	Capsule   MedicationCategory = "capsule"
	Injection MedicationCategory = "injection"
	Other     MedicationCategory = "other"
)

// MedicationRequest defines model for MedicationRequest.
type MedicationRequest struct {
	Name   string  `json:"name" binding:"required"`
	Dosage *string `json:"dosage,omitempty"`

	// Times are HH:MM entries; with Frequency "Twice Daily" a single time gets a second dose 12h later.
	Times     []string `json:"times" binding:"required,min=1"`
	Frequency *string  `json:"frequency,omitempty"`
	Weekdays  *[]int   `json:"weekdays,omitempty"`

	Color     *string             `json:"color,omitempty"`
	Category  *MedicationCategory `json:"category,omitempty"`
	StartDate *openapi_types.Date `json:"start_date,omitempty"`

	// DurationDays takes precedence over Duration ("7 days", "2 weeks", "Ongoing").
	DurationDays *int    `json:"duration_days,omitempty"`
	Duration     *string `json:"duration,omitempty"`
}

// ScheduleRequest defines model for ScheduleRequest.
type ScheduleRequest struct {
	Times     []string `json:"times" binding:"required,min=1"`
	Frequency *string  `json:"frequency,omitempty"`
	Weekdays  *[]int   `json:"weekdays,omitempty"`
}

// MedicationResponse defines model for MedicationResponse.
type MedicationResponse struct {
	Id           string              `json:"id"`
	Name         string              `json:"name"`
	Dosage       string              `json:"dosage"`
	Times        []string            `json:"times"`
	Weekdays     *[]int              `json:"weekdays,omitempty"`
	Color        string              `json:"color"`
	Category     MedicationCategory  `json:"category"`
	StartDate    openapi_types.Date  `json:"start_date"`
	DurationDays *int                `json:"duration_days,omitempty"`
	Active       bool                `json:"active"`
	DeletedOn    *openapi_types.Date `json:"deleted_on,omitempty"`
	CreatedAt    time.Time           `json:"created_at"`
}

// DoseRequest defines model for DoseRequest.
type DoseRequest struct {
	MedicationId string `json:"medication_id" binding:"required"`
	Time         string `json:"time" binding:"required"`
}

// DoseEventResponse defines model for DoseEventResponse.
type DoseEventResponse struct {
	MedicationId  string             `json:"medication_id"`
	Date          openapi_types.Date `json:"date"`
	ScheduledTime string             `json:"scheduled_time"`
	Status        string             `json:"status"`
	RecordedAt    time.Time          `json:"recorded_at"`
}

// DoseStatusResponse defines model for DoseStatusResponse.
type DoseStatusResponse struct {
	MedicationId  string             `json:"medication_id"`
	Date          openapi_types.Date `json:"date"`
	ScheduledTime string             `json:"scheduled_time"`
	Recorded      bool               `json:"recorded"`
	Status        *string            `json:"status,omitempty"`
}

// DoseOutcomeResponse defines model for DoseOutcomeResponse.
type DoseOutcomeResponse struct {
	MedicationId  string     `json:"medication_id"`
	ScheduledTime string     `json:"scheduled_time"`
	Status        string     `json:"status"`
	RecordedAt    *time.Time `json:"recorded_at,omitempty"`
	Unscheduled   *bool      `json:"unscheduled,omitempty"`
}

// TodayDoseResponse defines model for TodayDoseResponse.
type TodayDoseResponse struct {
	MedicationId  string             `json:"medication_id"`
	Name          string             `json:"name"`
	Dosage        string             `json:"dosage"`
	Color         string             `json:"color"`
	Category      MedicationCategory `json:"category"`
	ScheduledTime string             `json:"scheduled_time"`
	Status        string             `json:"status"`
	RecordedAt    *time.Time         `json:"recorded_at,omitempty"`
}

// DaySummaryResponse defines model for DaySummaryResponse.
type DaySummaryResponse struct {
	Date    openapi_types.Date    `json:"date"`
	Status  string                `json:"status"`
	Taken   int                   `json:"taken"`
	Late    int                   `json:"late"`
	Missed  int                   `json:"missed"`
	Pending int                   `json:"pending"`
	Score   int                   `json:"score"`
	Doses   []DoseOutcomeResponse `json:"doses"`
}

// HistoryResponse defines model for HistoryResponse.
type HistoryResponse struct {
	StartDate     openapi_types.Date   `json:"start_date"`
	EndDate       openapi_types.Date   `json:"end_date"`
	EvaluatedAt   time.Time            `json:"evaluated_at"`
	Score         int                  `json:"score"`
	Streak        int                  `json:"streak"`
	LongestStreak int                  `json:"longest_streak"`
	Taken         int                  `json:"taken"`
	Late          int                  `json:"late"`
	Missed        int                  `json:"missed"`
	Pending       int                  `json:"pending"`
	Days          []DaySummaryResponse `json:"days"`
	Events        []DoseEventResponse  `json:"events"`
}

// OverviewResponse defines model for OverviewResponse.
type OverviewResponse struct {
	Date        openapi_types.Date  `json:"date"`
	Doses       []TodayDoseResponse `json:"doses"`
	AllDone     bool                `json:"all_done"`
	Streak      int                 `json:"streak"`
	WeeklyScore int                 `json:"weekly_score"`
}

// ReportRequest defines model for ReportRequest.
type ReportRequest struct {
	StartDate     openapi_types.Date `json:"start_date"`
	EndDate       openapi_types.Date `json:"end_date"`
	MedicationIds *[]string          `json:"medication_ids,omitempty"`
}

// ReportResponse defines model for ReportResponse.
type ReportResponse struct {
	Id          string             `json:"id"`
	DownloadUrl string             `json:"download_url"`
	StartDate   openapi_types.Date `json:"start_date"`
	EndDate     openapi_types.Date `json:"end_date"`
	Score       int                `json:"score"`
	GeneratedAt time.Time          `json:"generated_at"`
}

// ChatRequest defines model for ChatRequest.
type ChatRequest struct {
	Message string `json:"message" binding:"required"`
}

// ChatResponse defines model for ChatResponse.
type ChatResponse struct {
	Role string `json:"role"`
	Text string `json:"text"`
}

// MessageResponse defines model for MessageResponse.
type MessageResponse struct {
	Message string `json:"message"`
}

// HealthResponse defines model for HealthResponse.
type HealthResponse struct {
	Status    string `json:"status"`
	Storage   string `json:"storage"`
	Assistant string `json:"assistant"`
	Version   string `json:"version"`
	Error     string `json:"error,omitempty"`
}

// GetApiV1MedicationsParams defines parameters for GetApiV1Medications.
type GetApiV1MedicationsParams struct {
	IncludeDeleted *bool `form:"include_deleted,omitempty" json:"include_deleted,omitempty"`
}

// GetApiV1DosesStatusParams defines parameters for GetApiV1DosesStatus.
type GetApiV1DosesStatusParams struct {
	MedicationId string  `form:"medication_id" json:"medication_id"`
	Time         string  `form:"time" json:"time"`
	Date         *string `form:"date,omitempty" json:"date,omitempty"`
}

// GetApiV1HistoryParams defines parameters for GetApiV1History.
type GetApiV1HistoryParams struct {
	Start        string    `form:"start" json:"start"`
	End          string    `form:"end" json:"end"`
	MedicationId *[]string `form:"medication_id,omitempty" json:"medication_id,omitempty"`
}
