package blob

import (
	"bytes"
	"context"
	"sync"

	"github.com/imsantiagopoli/pilly/internal/apperr"
	"go.uber.org/zap"
)

// MemoryStorage keeps report files in process memory. It backs reports
// when no Azure account is configured.
type MemoryStorage struct {
	mu      sync.RWMutex
	storage map[string][]byte
	logger  *zap.Logger
}

// NewMemoryStorage creates an empty MemoryStorage
func NewMemoryStorage(logger *zap.Logger) *MemoryStorage {
	return &MemoryStorage{
		storage: make(map[string][]byte),
		logger:  logger,
	}
}

// UploadPDF stores a PDF file
func (s *MemoryStorage) UploadPDF(ctx context.Context, filename string, data []byte) (string, error) {
	if filename == "" {
		return "", apperr.Validation("filename is required")
	}

	blobName := ReportBlobName(filename)

	s.mu.Lock()
	s.storage[blobName] = bytes.Clone(data)
	s.mu.Unlock()

	s.logger.Debug("PDF stored in memory",
		zap.String("blob_name", blobName),
		zap.Int("size_bytes", len(data)),
	)

	return blobName, nil
}

// DownloadPDF returns a stored PDF file
func (s *MemoryStorage) DownloadPDF(ctx context.Context, blobName string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	data, ok := s.storage[blobName]
	if !ok {
		return nil, apperr.NotFound("report", blobName)
	}
	return bytes.Clone(data), nil
}
