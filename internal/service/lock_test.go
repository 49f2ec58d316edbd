package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/confirming/marketplace/internal/domain"
)

func TestLocalSubmissionLock(t *testing.T) {
	lock := NewLocalSubmissionLock()
	ctx := context.Background()
	key := submissionLockKey(newID(), newID())

	release, err := lock.Acquire(ctx, key)
	require.NoError(t, err)

	_, err = lock.Acquire(ctx, key)
	assert.ErrorIs(t, err, domain.ErrConcurrentModification)

	other, err := lock.Acquire(ctx, submissionLockKey(newID(), newID()))
	require.NoError(t, err)
	other()

	release()
	release()

	again, err := lock.Acquire(ctx, key)
	require.NoError(t, err)
	again()
}
