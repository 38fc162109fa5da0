package blob

import (
	"context"
	"testing"

	"github.com/imsantiagopoli/pilly/internal/apperr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestNewAzureStorage(t *testing.T) {
	logger := zap.NewNop()

	tests := []struct {
		name          string
		accountName   string
		accountKey    string
		containerName string
		wantErr       bool
	}{
		{
			name:          "valid configuration",
			accountName:   "testaccount",
			accountKey:    "dGVzdGtleQ==", // base64 encoded "testkey"
			containerName: "reports",
		},
		{name: "missing account name", accountKey: "dGVzdGtleQ==", containerName: "reports", wantErr: true},
		{name: "missing account key", accountName: "testaccount", containerName: "reports", wantErr: true},
		{name: "missing container name", accountName: "testaccount", accountKey: "dGVzdGtleQ==", wantErr: true},
		{name: "invalid account key format", accountName: "testaccount", accountKey: "invalid-key-format", containerName: "reports", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			storage, err := NewAzureStorage(tt.accountName, tt.accountKey, tt.containerName, logger)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.containerName, storage.containerName)
		})
	}
}

func TestAzureStorage_UploadPDF_RequiresFilename(t *testing.T) {
	storage, err := NewAzureStorage("testaccount", "dGVzdGtleQ==", "reports", zap.NewNop())
	require.NoError(t, err)

	_, err = storage.UploadPDF(context.Background(), "", []byte("%PDF"))
	assert.True(t, apperr.IsValidation(err))
}

func TestMemoryStorage_RoundTrip(t *testing.T) {
	ctx := context.Background()
	storage := NewMemoryStorage(zap.NewNop())

	name, err := storage.UploadPDF(ctx, "report-1.pdf", []byte("%PDF-1.3"))
	require.NoError(t, err)
	assert.Equal(t, "reports/report-1.pdf", name)

	data, err := storage.DownloadPDF(ctx, name)
	require.NoError(t, err)
	assert.Equal(t, "%PDF-1.3", string(data))

	data[0] = 'X'
	again, err := storage.DownloadPDF(ctx, name)
	require.NoError(t, err)
	assert.Equal(t, byte('%'), again[0], "stored data must not alias returned slices")
}

func TestMemoryStorage_NotFound(t *testing.T) {
	_, err := NewMemoryStorage(zap.NewNop()).DownloadPDF(context.Background(), "reports/missing.pdf")
	assert.True(t, apperr.IsNotFound(err))
}
