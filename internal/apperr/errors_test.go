package apperr

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKindDetectionThroughWrapping(t *testing.T) {
	tests := []struct {
		name         string
		err          error
		wantValid    bool
		wantNotFound bool
		wantKind     Kind
	}{
		{
			name:      "validation",
			err:       Validation("invalid time %q", "25:00"),
			wantValid: true,
			wantKind:  KindValidation,
		},
		{
			name:      "wrapped validation",
			err:       fmt.Errorf("failed to record dose: %w", Validation("status is required")),
			wantValid: true,
			wantKind:  KindValidation,
		},
		{
			name:         "not found",
			err:          NotFound("medication", "abc"),
			wantNotFound: true,
			wantKind:     KindNotFound,
		},
		{
			name: "plain error",
			err:  errors.New("connection refused"),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.wantValid, IsValidation(tt.err))
			assert.Equal(t, tt.wantNotFound, IsNotFound(tt.err))
			assert.Equal(t, tt.wantKind, KindOf(tt.err))
		})
	}
}

func TestErrorMessageIncludesInternal(t *testing.T) {
	err := WrapValidation(errors.New("bad layout"), "invalid date")
	assert.Contains(t, err.Error(), "invalid date")
	assert.Contains(t, err.Error(), "bad layout")
	assert.Equal(t, "medication not found: x", NotFound("medication", "x").Message)
}
