package handler

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/imsantiagopoli/pilly/internal/service"
	"github.com/imsantiagopoli/pilly/pkg/api"
	"github.com/imsantiagopoli/pilly/pkg/model"
	"go.uber.org/zap"
)

// DoseHandler implements dose tracking and adherence endpoints
type DoseHandler struct {
	tracker *service.Tracker
	logger  *zap.Logger
}

// NewDoseHandler creates a new DoseHandler
func NewDoseHandler(tracker *service.Tracker, logger *zap.Logger) *DoseHandler {
	return &DoseHandler{
		tracker: tracker,
		logger:  logger,
	}
}

// GetApiV1DosesToday lists the doses due today with their current status
func (h *DoseHandler) GetApiV1DosesToday(c *gin.Context) {
	doses, err := h.tracker.GetDueToday(c.Request.Context())
	if err != nil {
		respondError(c, h.logger, err, "Failed to get today's doses")
		return
	}

	c.JSON(http.StatusOK, toTodayDoseResponses(doses))
}

// PostApiV1DosesTaken marks one of today's doses as taken
func (h *DoseHandler) PostApiV1DosesTaken(c *gin.Context) {
	h.record(c, model.StatusTaken)
}

// PostApiV1DosesSkipped marks one of today's doses as missed
func (h *DoseHandler) PostApiV1DosesSkipped(c *gin.Context) {
	h.record(c, model.StatusMissed)
}

func (h *DoseHandler) record(c *gin.Context, status model.DoseStatus) {
	var req api.DoseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		invalidBody(c, h.logger, err)
		return
	}

	at, err := model.ParseTimeOfDay(strings.TrimSpace(req.Time))
	if err != nil {
		c.JSON(http.StatusBadRequest, api.ErrorResponse{
			Code:    api.CodeValidationError,
			Message: "Invalid time of day",
			Details: stringPtr(err.Error()),
		})
		return
	}

	var event *model.DoseEvent
	if status == model.StatusTaken {
		event, err = h.tracker.MarkTaken(c.Request.Context(), req.MedicationId, at)
	} else {
		event, err = h.tracker.MarkSkipped(c.Request.Context(), req.MedicationId, at)
	}
	if err != nil {
		respondError(c, h.logger, err, "Failed to record dose",
			zap.String("medication_id", req.MedicationId),
			zap.String("time", req.Time),
		)
		return
	}

	h.logger.Info("dose recorded",
		zap.String("medication_id", event.MedicationID),
		zap.String("scheduled_time", event.ScheduledTime.String()),
		zap.String("status", string(event.Status)),
	)

	c.JSON(http.StatusOK, toEventResponse(*event))
}

// GetApiV1DosesStatus returns the recorded status of a dose; date defaults to today
func (h *DoseHandler) GetApiV1DosesStatus(c *gin.Context, params api.GetApiV1DosesStatusParams) {
	at, err := model.ParseTimeOfDay(params.Time)
	if err != nil {
		c.JSON(http.StatusBadRequest, api.ErrorResponse{
			Code:    api.CodeValidationError,
			Message: "Invalid time of day",
			Details: stringPtr(err.Error()),
		})
		return
	}

	date := h.tracker.Today()
	if params.Date != nil {
		date, err = model.ParseDate(*params.Date)
		if err != nil {
			c.JSON(http.StatusBadRequest, api.ErrorResponse{
				Code:    api.CodeValidationError,
				Message: "Invalid date",
				Details: stringPtr(err.Error()),
			})
			return
		}
	}

	status, recorded, err := h.tracker.StatusOf(c.Request.Context(), params.MedicationId, date, at)
	if err != nil {
		respondError(c, h.logger, err, "Failed to get dose status", zap.String("medication_id", params.MedicationId))
		return
	}

	response := api.DoseStatusResponse{
		MedicationId:  params.MedicationId,
		Date:          toAPIDate(date),
		ScheduledTime: at.String(),
		Recorded:      recorded,
	}
	if recorded {
		response.Status = stringPtr(string(status))
	}

	c.JSON(http.StatusOK, response)
}

// DeleteApiV1Doses clears the dose log, leaving medications in place
func (h *DoseHandler) DeleteApiV1Doses(c *gin.Context) {
	if err := h.tracker.ResetDoseLog(c.Request.Context()); err != nil {
		respondError(c, h.logger, err, "Failed to reset dose log")
		return
	}

	h.logger.Info("dose log reset")

	c.JSON(http.StatusOK, api.MessageResponse{Message: "Dose log cleared"})
}

// GetApiV1Overview returns the home screen summary of today
func (h *DoseHandler) GetApiV1Overview(c *gin.Context) {
	overview, err := h.tracker.Overview(c.Request.Context())
	if err != nil {
		respondError(c, h.logger, err, "Failed to build overview")
		return
	}

	c.JSON(http.StatusOK, api.OverviewResponse{
		Date:        toAPIDate(overview.Date),
		Doses:       toTodayDoseResponses(overview.Doses),
		AllDone:     overview.AllDone,
		Streak:      overview.Streak,
		WeeklyScore: overview.WeeklyScore,
	})
}

// GetApiV1History returns the adherence snapshot of a date range
func (h *DoseHandler) GetApiV1History(c *gin.Context, params api.GetApiV1HistoryParams) {
	start, err := model.ParseDate(params.Start)
	if err != nil {
		c.JSON(http.StatusBadRequest, api.ErrorResponse{
			Code:    api.CodeValidationError,
			Message: "Invalid start date",
			Details: stringPtr(err.Error()),
		})
		return
	}
	end, err := model.ParseDate(params.End)
	if err != nil {
		c.JSON(http.StatusBadRequest, api.ErrorResponse{
			Code:    api.CodeValidationError,
			Message: "Invalid end date",
			Details: stringPtr(err.Error()),
		})
		return
	}

	var filter []string
	if params.MedicationId != nil {
		filter = *params.MedicationId
	}

	snapshot, err := h.tracker.GetHistory(c.Request.Context(), start, end, filter)
	if err != nil {
		respondError(c, h.logger, err, "Failed to get history",
			zap.String("start", params.Start),
			zap.String("end", params.End),
		)
		return
	}

	h.logger.Info("history retrieved",
		zap.String("start", params.Start),
		zap.String("end", params.End),
		zap.Int("score", snapshot.Score),
	)

	c.JSON(http.StatusOK, toHistoryResponse(snapshot))
}
