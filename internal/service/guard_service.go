package service

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	appErrors "github.com/noah-isme/school-manager-reports/pkg/errors"
)

type tokenStore interface {
	Put(ctx context.Context, key, token string, ttl time.Duration) error
	Consume(ctx context.Context, key, token string) (bool, error)
}

// SubmissionGuard issues one-shot form tokens so a resubmitted upload is not processed twice.
type SubmissionGuard struct {
	store  tokenStore
	ttl    time.Duration
	logger *zap.Logger
}

// NewSubmissionGuard constructs a SubmissionGuard.
func NewSubmissionGuard(store tokenStore, ttl time.Duration, logger *zap.Logger) *SubmissionGuard {
	if logger == nil {
		logger = zap.NewNop()
	}
	if ttl <= 0 {
		ttl = 30 * time.Minute
	}
	return &SubmissionGuard{store: store, ttl: ttl, logger: logger}
}

// Issue stores a fresh token for the session, invalidating any earlier one.
func (g *SubmissionGuard) Issue(ctx context.Context, sessionID string) (string, error) {
	if sessionID == "" {
		return "", appErrors.Clone(appErrors.ErrValidation, "session is required")
	}
	token := uuid.NewString()
	if err := g.store.Put(ctx, sessionID, token, g.ttl); err != nil {
		return "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to issue upload token")
	}
	return token, nil
}

// Redeem consumes the token. A missing token is a validation error; an unknown,
// expired or already used token is a duplicate submission.
func (g *SubmissionGuard) Redeem(ctx context.Context, sessionID, token string) error {
	token = strings.TrimSpace(token)
	if sessionID == "" || token == "" {
		return appErrors.Clone(appErrors.ErrValidation, "upload token is required")
	}
	ok, err := g.store.Consume(ctx, sessionID, token)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to verify upload token")
	}
	if !ok {
		g.logger.Info("duplicate submission rejected", zap.String("session_id", sessionID))
		return appErrors.ErrDuplicateSubmission
	}
	return nil
}
