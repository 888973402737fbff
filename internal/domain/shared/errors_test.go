package shared

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDomainError_IsMatchesKindAndCause(t *testing.T) {
	cause := errors.New("dial tcp: refused")
	err := WrapError("albion", "GetGuildMembers", ErrServiceUnavailable, "request failed", cause)

	assert.ErrorIs(t, err, ErrServiceUnavailable)
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, "albion.GetGuildMembers: request failed: dial tcp: refused", err.Error())
}

func TestDomainError_WrappedSentinel(t *testing.T) {
	err := fmt.Errorf("run: %w", ErrCycleInProgress)

	assert.ErrorIs(t, err, ErrCycleInProgress)
	assert.ErrorIs(t, err, ErrConcurrentModification)
	assert.True(t, IsRetryable(err))
	assert.False(t, IsExternalService(err))
}

func TestClassifiers(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		validation bool
		external   bool
	}{
		{name: "validation", err: ErrValidation, validation: true},
		{name: "out of range", err: fmt.Errorf("%w: top", ErrValueOutOfRange), validation: true},
		{name: "albion down", err: ErrAlbionAPIUnavailable, external: true},
		{name: "albion throttled", err: ErrAlbionAPIRateLimited, external: true},
		{name: "telegram", err: ErrTelegramAPIFailed, external: true},
		{name: "plain", err: errors.New("boom")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.validation, IsValidation(tt.err))
			assert.Equal(t, tt.external, IsExternalService(tt.err))
		})
	}
}
