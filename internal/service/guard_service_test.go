package service

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/school-manager-reports/internal/repository"
	appErrors "github.com/noah-isme/school-manager-reports/pkg/errors"
)

type failingTokenStore struct{}

func (failingTokenStore) Put(ctx context.Context, key, token string, ttl time.Duration) error {
	return errors.New("redis down")
}

func (failingTokenStore) Consume(ctx context.Context, key, token string) (bool, error) {
	return false, errors.New("redis down")
}

func TestSubmissionGuardAcceptsTokenOnce(t *testing.T) {
	guard := NewSubmissionGuard(repository.NewMemoryTokenStore(), time.Minute, nil)
	ctx := context.Background()

	token, err := guard.Issue(ctx, "session-1")
	require.NoError(t, err)
	require.NotEmpty(t, token)

	require.NoError(t, guard.Redeem(ctx, "session-1", token))
	assert.ErrorIs(t, guard.Redeem(ctx, "session-1", token), appErrors.ErrDuplicateSubmission)
}

func TestSubmissionGuardRejectsForeignSession(t *testing.T) {
	guard := NewSubmissionGuard(repository.NewMemoryTokenStore(), time.Minute, nil)
	ctx := context.Background()

	token, err := guard.Issue(ctx, "session-1")
	require.NoError(t, err)
	assert.ErrorIs(t, guard.Redeem(ctx, "session-2", token), appErrors.ErrDuplicateSubmission)
	assert.NoError(t, guard.Redeem(ctx, "session-1", token))
}

func TestSubmissionGuardReissueInvalidatesPreviousToken(t *testing.T) {
	guard := NewSubmissionGuard(repository.NewMemoryTokenStore(), time.Minute, nil)
	ctx := context.Background()

	first, err := guard.Issue(ctx, "session-1")
	require.NoError(t, err)
	second, err := guard.Issue(ctx, "session-1")
	require.NoError(t, err)

	assert.ErrorIs(t, guard.Redeem(ctx, "session-1", first), appErrors.ErrDuplicateSubmission)
	assert.NoError(t, guard.Redeem(ctx, "session-1", second))
}

func TestSubmissionGuardMissingToken(t *testing.T) {
	guard := NewSubmissionGuard(repository.NewMemoryTokenStore(), time.Minute, nil)

	assert.ErrorIs(t, guard.Redeem(context.Background(), "session-1", "  "), appErrors.ErrValidation)
	_, err := guard.Issue(context.Background(), "")
	assert.ErrorIs(t, err, appErrors.ErrValidation)
}

func TestSubmissionGuardConcurrentRedeem(t *testing.T) {
	guard := NewSubmissionGuard(repository.NewMemoryTokenStore(), time.Minute, nil)
	ctx := context.Background()
	token, err := guard.Issue(ctx, "session-1")
	require.NoError(t, err)

	var accepted int32
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if guard.Redeem(ctx, "session-1", token) == nil {
				atomic.AddInt32(&accepted, 1)
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(1), accepted)
}

func TestSubmissionGuardStoreFailure(t *testing.T) {
	guard := NewSubmissionGuard(failingTokenStore{}, time.Minute, nil)

	_, err := guard.Issue(context.Background(), "session-1")
	assert.ErrorIs(t, err, appErrors.ErrInternal)
	assert.ErrorIs(t, guard.Redeem(context.Background(), "session-1", "x"), appErrors.ErrInternal)
}
