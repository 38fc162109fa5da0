package audit

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestLogger_LogWithoutDatabase(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	auditor := NewLogger(nil, zap.New(core))

	err := auditor.Log(context.Background(), Entry{
		OperationType:  OperationDelete,
		ResourceType:   ResourceMedication,
		ResourceID:     "lexapro-id",
		AdditionalData: map[string]any{"deleted_on": "2025-10-01"},
	})
	require.NoError(t, err)

	entries := logs.FilterMessage("Audit log entry").All()
	require.Len(t, entries, 1)
	fields := entries[0].ContextMap()
	assert.Equal(t, "DELETE", fields["operation"])
	assert.Equal(t, "medication", fields["resource_type"])
	assert.Equal(t, "lexapro-id", fields["resource_id"])
}

func TestLogger_RecentWithoutDatabase(t *testing.T) {
	entries, err := NewLogger(nil, zap.NewNop()).Recent(context.Background(), ResourceMedication, 10)
	require.NoError(t, err)
	assert.Empty(t, entries)
}
