package chain

import (
	"context"
	"errors"
	"testing"

	domainerrors "github.com/kuya-relay/kuya_relay/internal/domain/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfirmWaitError_DeadlineBecomesTimeout(t *testing.T) {
	err := confirmWaitError("0xabc", context.DeadlineExceeded)
	require.Error(t, err)
	assert.True(t, domainerrors.IsTimeout(err))
	assert.True(t, domainerrors.IsRetryable(err))
}

func TestConfirmWaitError_CancellationStaysGeneric(t *testing.T) {
	err := confirmWaitError("0xabc", context.Canceled)
	require.Error(t, err)
	assert.False(t, domainerrors.IsTimeout(err))
	assert.True(t, errors.Is(err, context.Canceled))
}
