package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/school-manager-reports/internal/models"
)

// CohortRepository reads the class cohorts used as report filters.
type CohortRepository struct {
	db *sqlx.DB
}

// NewCohortRepository constructs a CohortRepository.
func NewCohortRepository(db *sqlx.DB) *CohortRepository {
	return &CohortRepository{db: db}
}

// A cohort belongs to a tenant when it has members and every member is a
// company user of that tenant. Site-wide cohorts and cohorts of other schools
// are never listed, resolved or cleared. $1 is the tenant id.
const tenantCohortScope = `EXISTS (SELECT 1 FROM mdl_cohort_members m WHERE m.cohortid = ch.id)
AND NOT EXISTS (SELECT 1 FROM mdl_cohort_members o
	WHERE o.cohortid = ch.id
	AND NOT EXISTS (SELECT 1 FROM mdl_company_users cu WHERE cu.userid = o.userid AND cu.companyid = $1))`

// ListTenantCohorts returns the cohorts owned by the tenant.
func (r *CohortRepository) ListTenantCohorts(ctx context.Context, tenantID int64) ([]models.Cohort, error) {
	const query = `SELECT ch.id, ch.name, COALESCE(ch.idnumber, '') AS idnumber
FROM mdl_cohort ch
WHERE ` + tenantCohortScope + `
ORDER BY ch.name, ch.id`
	var cohorts []models.Cohort
	if err := r.db.SelectContext(ctx, &cohorts, query, tenantID); err != nil {
		return nil, fmt.Errorf("list cohorts: %w", err)
	}
	return cohorts, nil
}

// FindByName resolves a tenant cohort by its name or idnumber, case-insensitively.
func (r *CohortRepository) FindByName(ctx context.Context, tenantID int64, name string) (*models.Cohort, error) {
	const query = `SELECT ch.id, ch.name, COALESCE(ch.idnumber, '') AS idnumber FROM mdl_cohort ch
WHERE (LOWER(ch.name) = LOWER($2) OR LOWER(ch.idnumber) = LOWER($2))
AND ` + tenantCohortScope + `
ORDER BY ch.id LIMIT 1`
	return r.find(ctx, query, tenantID, name)
}

// FindByID fetches a tenant cohort by id. It returns nil when absent or foreign.
func (r *CohortRepository) FindByID(ctx context.Context, tenantID, id int64) (*models.Cohort, error) {
	const query = `SELECT ch.id, ch.name, COALESCE(ch.idnumber, '') AS idnumber FROM mdl_cohort ch
WHERE ch.id = $2 AND ` + tenantCohortScope
	return r.find(ctx, query, tenantID, id)
}

func (r *CohortRepository) find(ctx context.Context, query string, args ...interface{}) (*models.Cohort, error) {
	var cohort models.Cohort
	if err := r.db.GetContext(ctx, &cohort, query, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("find cohort: %w", err)
	}
	return &cohort, nil
}
