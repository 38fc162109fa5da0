package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/imsantiagopoli/pilly/internal/schedule"
	"github.com/imsantiagopoli/pilly/internal/service"
	"github.com/imsantiagopoli/pilly/pkg/api"
	"github.com/imsantiagopoli/pilly/pkg/model"
	"go.uber.org/zap"
)

// MedicationHandler implements medication API endpoints
type MedicationHandler struct {
	tracker *service.Tracker
	logger  *zap.Logger
}

// NewMedicationHandler creates a new MedicationHandler
func NewMedicationHandler(tracker *service.Tracker, logger *zap.Logger) *MedicationHandler {
	return &MedicationHandler{
		tracker: tracker,
		logger:  logger,
	}
}

// PostApiV1Medications adds a new medication
func (h *MedicationHandler) PostApiV1Medications(c *gin.Context) {
	var req api.MedicationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		invalidBody(c, h.logger, err)
		return
	}

	rule, err := buildRule(req.Times, req.Frequency, req.Weekdays)
	if err != nil {
		respondError(c, h.logger, err, "Failed to add medication")
		return
	}

	input := service.MedicationInput{
		Name:     req.Name,
		Schedule: rule,
	}
	if req.Dosage != nil {
		input.Dosage = *req.Dosage
	}
	if req.Color != nil {
		input.Color = *req.Color
	}
	if req.Category != nil {
		input.Category = model.Category(*req.Category)
	}
	if req.StartDate != nil {
		input.StartDate = fromAPIDate(*req.StartDate)
	}
	switch {
	case req.DurationDays != nil:
		input.DurationDays = *req.DurationDays
	case req.Duration != nil:
		days, err := schedule.ParseDuration(*req.Duration)
		if err != nil {
			respondError(c, h.logger, err, "Failed to add medication")
			return
		}
		input.DurationDays = days
	}

	med, err := h.tracker.AddMedication(c.Request.Context(), input)
	if err != nil {
		respondError(c, h.logger, err, "Failed to add medication", zap.String("name", req.Name))
		return
	}

	h.logger.Info("medication added",
		zap.String("medication_id", med.ID),
		zap.String("name", med.Name),
	)

	c.JSON(http.StatusCreated, toMedicationResponse(med))
}

// GetApiV1Medications lists medications, active ones unless include_deleted is set
func (h *MedicationHandler) GetApiV1Medications(c *gin.Context, params api.GetApiV1MedicationsParams) {
	includeDeleted := params.IncludeDeleted != nil && *params.IncludeDeleted

	meds, err := h.tracker.ListMedications(c.Request.Context(), includeDeleted)
	if err != nil {
		respondError(c, h.logger, err, "Failed to list medications")
		return
	}

	response := make([]api.MedicationResponse, 0, len(meds))
	for i := range meds {
		response = append(response, toMedicationResponse(&meds[i]))
	}

	h.logger.Info("medications retrieved",
		zap.Int("count", len(response)),
		zap.Bool("include_deleted", includeDeleted),
	)

	c.JSON(http.StatusOK, response)
}

// GetApiV1MedicationsId returns one medication, removed or not
func (h *MedicationHandler) GetApiV1MedicationsId(c *gin.Context, id string) {
	med, err := h.tracker.GetMedication(c.Request.Context(), id)
	if err != nil {
		respondError(c, h.logger, err, "Failed to get medication", zap.String("medication_id", id))
		return
	}

	c.JSON(http.StatusOK, toMedicationResponse(med))
}

// PutApiV1MedicationsIdSchedule replaces the recurrence rule of a medication
func (h *MedicationHandler) PutApiV1MedicationsIdSchedule(c *gin.Context, id string) {
	var req api.ScheduleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		invalidBody(c, h.logger, err)
		return
	}

	rule, err := buildRule(req.Times, req.Frequency, req.Weekdays)
	if err != nil {
		respondError(c, h.logger, err, "Failed to update schedule", zap.String("medication_id", id))
		return
	}

	med, err := h.tracker.UpdateSchedule(c.Request.Context(), id, rule)
	if err != nil {
		respondError(c, h.logger, err, "Failed to update schedule", zap.String("medication_id", id))
		return
	}

	h.logger.Info("medication schedule updated",
		zap.String("medication_id", id),
		zap.Int("times", len(med.Schedule.Times)),
	)

	c.JSON(http.StatusOK, toMedicationResponse(med))
}

// DeleteApiV1MedicationsId removes a medication from today onward, keeping its history
func (h *MedicationHandler) DeleteApiV1MedicationsId(c *gin.Context, id string) {
	if err := h.tracker.RemoveMedication(c.Request.Context(), id); err != nil {
		respondError(c, h.logger, err, "Failed to remove medication", zap.String("medication_id", id))
		return
	}

	h.logger.Info("medication removed", zap.String("medication_id", id))

	c.Status(http.StatusNoContent)
}
