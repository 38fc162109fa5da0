package service

import (
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/google/uuid"
	"github.com/imsantiagopoli/pilly/internal/apperr"
	"github.com/imsantiagopoli/pilly/internal/audit"
	"github.com/imsantiagopoli/pilly/internal/blob"
	"github.com/imsantiagopoli/pilly/internal/pdf"
	"github.com/imsantiagopoli/pilly/pkg/model"
	"go.uber.org/zap"
)

// Report describes a generated adherence report
type Report struct {
	ID          string
	BlobName    string
	Start       model.Date
	End         model.Date
	Score       int
	GeneratedAt time.Time
}

// ReportService manages adherence report generation
type ReportService struct {
	tracker *Tracker
	storage blob.Storage
	pdfGen  *pdf.PDFGenerator
	logger  *zap.Logger
}

// NewReportService creates a new ReportService
func NewReportService(tracker *Tracker, storage blob.Storage, pdfGen *pdf.PDFGenerator, logger *zap.Logger) *ReportService {
	return &ReportService{
		tracker: tracker,
		storage: storage,
		pdfGen:  pdfGen,
		logger:  logger,
	}
}

// GenerateReport renders the adherence of [start, end] to a PDF and stores it
func (s *ReportService) GenerateReport(ctx context.Context, start, end model.Date, filter []string) (*Report, error) {
	s.logger.Info("generating adherence report",
		zap.String("start_date", start.String()),
		zap.String("end_date", end.String()),
		zap.Int("medication_filter", len(filter)),
	)

	snapshot, err := s.tracker.GetHistory(ctx, start, end, filter)
	if err != nil {
		return nil, err
	}

	meds, err := s.tracker.ListMedications(ctx, true)
	if err != nil {
		return nil, err
	}
	if len(filter) > 0 {
		meds = slices.DeleteFunc(meds, func(m model.Medication) bool {
			return !slices.Contains(filter, m.ID)
		})
	}

	reportID := uuid.New().String()
	generatedAt := s.tracker.now()

	pdfBytes, err := s.pdfGen.Generate(&pdf.ReportData{
		Snapshot:    snapshot,
		Medications: meds,
		GeneratedAt: generatedAt,
	})
	if err != nil {
		s.logger.Error("failed to generate PDF",
			zap.Error(err),
			zap.String("report_id", reportID),
		)
		return nil, fmt.Errorf("failed to generate PDF: %w", err)
	}

	blobName, err := s.storage.UploadPDF(ctx, reportID+".pdf", pdfBytes)
	if err != nil {
		s.logger.Error("failed to upload PDF to blob storage",
			zap.Error(err),
			zap.String("report_id", reportID),
		)
		return nil, fmt.Errorf("failed to upload PDF: %w", err)
	}

	report := &Report{
		ID:          reportID,
		BlobName:    blobName,
		Start:       start,
		End:         end,
		Score:       snapshot.Score,
		GeneratedAt: generatedAt,
	}
	s.tracker.audit(ctx, audit.OperationCreate, audit.ResourceReport, reportID, map[string]any{
		"start_date": start.String(),
		"end_date":   end.String(),
		"blob_name":  blobName,
	})

	s.logger.Info("adherence report generated successfully",
		zap.String("report_id", reportID),
		zap.String("blob_name", blobName),
		zap.Int("score", snapshot.Score),
	)

	return report, nil
}

// GetReport retrieves a report PDF for download
func (s *ReportService) GetReport(ctx context.Context, reportID string) ([]byte, error) {
	if err := uuid.Validate(reportID); err != nil {
		return nil, apperr.NotFound("report", reportID)
	}

	pdfBytes, err := s.storage.DownloadPDF(ctx, blob.ReportBlobName(reportID+".pdf"))
	if err != nil {
		if apperr.IsNotFound(err) {
			return nil, err
		}
		s.logger.Error("failed to download PDF from blob storage",
			zap.Error(err),
			zap.String("report_id", reportID),
		)
		return nil, fmt.Errorf("failed to download PDF: %w", err)
	}

	s.logger.Info("report retrieved successfully",
		zap.String("report_id", reportID),
		zap.Int("size_bytes", len(pdfBytes)),
	)

	return pdfBytes, nil
}
