package handler

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/imsantiagopoli/pilly/internal/service"
	"github.com/imsantiagopoli/pilly/pkg/api"
	"go.uber.org/zap"
)

// ReportHandler implements report API endpoints
type ReportHandler struct {
	service *service.ReportService
	logger  *zap.Logger
}

// NewReportHandler creates a new ReportHandler
func NewReportHandler(service *service.ReportService, logger *zap.Logger) *ReportHandler {
	return &ReportHandler{
		service: service,
		logger:  logger,
	}
}

// PostApiV1Reports generates an adherence report PDF
func (h *ReportHandler) PostApiV1Reports(c *gin.Context) {
	var req api.ReportRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		invalidBody(c, h.logger, err)
		return
	}

	start := fromAPIDate(req.StartDate)
	end := fromAPIDate(req.EndDate)
	if start.IsZero() || end.IsZero() {
		c.JSON(http.StatusBadRequest, api.ErrorResponse{
			Code:    api.CodeValidationError,
			Message: "start_date and end_date are required",
		})
		return
	}

	var filter []string
	if req.MedicationIds != nil {
		filter = *req.MedicationIds
	}

	report, err := h.service.GenerateReport(c.Request.Context(), start, end, filter)
	if err != nil {
		respondError(c, h.logger, err, "Failed to generate report",
			zap.String("start", start.String()),
			zap.String("end", end.String()),
		)
		return
	}

	h.logger.Info("report generated",
		zap.String("report_id", report.ID),
		zap.Int("score", report.Score),
	)

	c.JSON(http.StatusCreated, api.ReportResponse{
		Id:          report.ID,
		DownloadUrl: "/api/v1/reports/" + report.ID,
		StartDate:   toAPIDate(report.Start),
		EndDate:     toAPIDate(report.End),
		Score:       report.Score,
		GeneratedAt: report.GeneratedAt,
	})
}

// GetApiV1ReportsId downloads a report
func (h *ReportHandler) GetApiV1ReportsId(c *gin.Context, id string) {
	h.logger.Info("downloading report",
		zap.String("report_id", id),
	)

	pdfBytes, err := h.service.GetReport(c.Request.Context(), id)
	if err != nil {
		respondError(c, h.logger, err, "Failed to get report", zap.String("report_id", id))
		return
	}

	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=adherence_report_%s.pdf", id))
	c.Data(http.StatusOK, "application/pdf", pdfBytes)

	h.logger.Info("report downloaded",
		zap.String("report_id", id),
		zap.Int("size_bytes", len(pdfBytes)),
	)
}
