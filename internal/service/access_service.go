package service

import (
	"context"

	"go.uber.org/zap"

	"github.com/noah-isme/school-manager-reports/internal/models"
	appErrors "github.com/noah-isme/school-manager-reports/pkg/errors"
)

type tenantResolver interface {
	IsSchoolManager(ctx context.Context, userID int64) (bool, error)
	ManagedTenant(ctx context.Context, userID int64) (*models.Tenant, error)
}

// AccessService decides whether a user may open the school manager pages.
type AccessService struct {
	tenants tenantResolver
	logger  *zap.Logger
}

// NewAccessService constructs an AccessService.
func NewAccessService(tenants tenantResolver, logger *zap.Logger) *AccessService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AccessService{tenants: tenants, logger: logger}
}

// ResolveManager returns the tenant the user manages, or ErrNotSchoolManager / ErrNoTenant.
func (s *AccessService) ResolveManager(ctx context.Context, userID int64) (*models.ManagerContext, error) {
	ok, err := s.tenants.IsSchoolManager(ctx, userID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check manager role")
	}
	if !ok {
		s.logger.Info("school manager access denied", zap.Int64("user_id", userID))
		return nil, appErrors.ErrNotSchoolManager
	}
	tenant, err := s.tenants.ManagedTenant(ctx, userID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to resolve school")
	}
	if tenant == nil {
		s.logger.Info("school manager without school", zap.Int64("user_id", userID))
		return nil, appErrors.ErrNoTenant
	}
	return &models.ManagerContext{UserID: userID, Tenant: *tenant}, nil
}
