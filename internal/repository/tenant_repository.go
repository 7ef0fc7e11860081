package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/school-manager-reports/internal/models"
)

// TenantRepository answers role and tenant questions over the IOMAD company tables.
type TenantRepository struct {
	db *sqlx.DB
}

// NewTenantRepository constructs a TenantRepository.
func NewTenantRepository(db *sqlx.DB) *TenantRepository {
	return &TenantRepository{db: db}
}

// IsSchoolManager reports whether the user holds a manager role or a manager membership.
func (r *TenantRepository) IsSchoolManager(ctx context.Context, userID int64) (bool, error) {
	const query = `SELECT EXISTS (
    SELECT 1 FROM mdl_role_assignments ra
    JOIN mdl_role r ON r.id = ra.roleid
    WHERE ra.userid = $1 AND r.shortname IN ($2, $3)
) OR EXISTS (
    SELECT 1 FROM mdl_company_users cu
    WHERE cu.userid = $1 AND cu.managertype > 0
)`
	var ok bool
	if err := r.db.GetContext(ctx, &ok, query, userID, models.RoleCompanyManager, models.RoleDepartmentManager); err != nil {
		return false, fmt.Errorf("check school manager: %w", err)
	}
	return ok, nil
}

// ManagedTenant resolves the school the user manages. It returns nil when there is none.
func (r *TenantRepository) ManagedTenant(ctx context.Context, userID int64) (*models.Tenant, error) {
	const query = `SELECT c.id, c.name, c.shortname
FROM mdl_company c
JOIN mdl_company_users cu ON cu.companyid = c.id
WHERE cu.userid = $1 AND cu.managertype > 0 AND cu.suspended = 0
ORDER BY cu.managertype, c.id
LIMIT 1`
	var tenant models.Tenant
	if err := r.db.GetContext(ctx, &tenant, query, userID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("resolve managed tenant: %w", err)
	}
	return &tenant, nil
}
