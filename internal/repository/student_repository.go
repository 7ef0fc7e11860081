package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/school-manager-reports/internal/models"
)

const studentColumns = `u.id, u.username, u.firstname, u.lastname, u.email, u.suspended, u.picture,
    u.timecreated, u.timemodified, u.lastaccess, coh.id AS cohort_id, coh.name AS cohort_name`

const studentFrom = `FROM mdl_user u
JOIN mdl_company_users cu ON cu.userid = u.id AND cu.companyid = $1 AND cu.managertype = 0
LEFT JOIN LATERAL (
    SELECT ch.id, ch.name FROM mdl_cohort_members chm
    JOIN mdl_cohort ch ON ch.id = chm.cohortid
    WHERE chm.userid = u.id ORDER BY ch.name LIMIT 1
) coh ON true
WHERE u.deleted = 0 AND EXISTS (
    SELECT 1 FROM mdl_role_assignments ra JOIN mdl_role r ON r.id = ra.roleid
    WHERE ra.userid = u.id AND r.shortname = $2
)`

// StudentRepository manages student accounts inside a tenant.
type StudentRepository struct {
	db *sqlx.DB
}

// NewStudentRepository constructs a StudentRepository.
func NewStudentRepository(db *sqlx.DB) *StudentRepository {
	return &StudentRepository{db: db}
}

// List returns tenant students matching the filter ordered by name.
func (r *StudentRepository) List(ctx context.Context, tenantID int64, filter models.StudentFilter) ([]models.Student, int, error) {
	var b strings.Builder
	b.WriteString(studentFrom)
	args := []interface{}{tenantID, models.RoleStudent}
	if filter.CohortID != nil {
		args = append(args, *filter.CohortID)
		fmt.Fprintf(&b, " AND EXISTS (SELECT 1 FROM mdl_cohort_members m WHERE m.userid = u.id AND m.cohortid = $%d)", len(args))
	}
	if strings.TrimSpace(filter.Search) != "" {
		args = append(args, likePattern(filter.Search))
		n := len(args)
		fmt.Fprintf(&b, " AND (LOWER(u.username) LIKE $%d OR LOWER(u.firstname) LIKE $%d OR LOWER(u.lastname) LIKE $%d OR LOWER(u.email) LIKE $%d)", n, n, n, n)
	}
	base := b.String()
	limit, offset := limitOffset(filter.Page, filter.PageSize)

	query := fmt.Sprintf("SELECT %s\n%s ORDER BY u.lastname, u.firstname, u.id LIMIT %d OFFSET %d", studentColumns, base, limit, offset)
	var students []models.Student
	if err := r.db.SelectContext(ctx, &students, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list students: %w", err)
	}

	var total int
	if err := r.db.GetContext(ctx, &total, "SELECT COUNT(*)\n"+base, args...); err != nil {
		return nil, 0, fmt.Errorf("count students: %w", err)
	}
	return students, total, nil
}

// FindByID fetches one tenant student. It returns nil when the user is not a student of the tenant.
func (r *StudentRepository) FindByID(ctx context.Context, tenantID, id int64) (*models.Student, error) {
	query := fmt.Sprintf("SELECT %s\n%s AND u.id = $3", studentColumns, studentFrom)
	var student models.Student
	if err := r.db.GetContext(ctx, &student, query, tenantID, models.RoleStudent, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("find student: %w", err)
	}
	return &student, nil
}

// FindByUsername looks up any non-deleted account by username.
func (r *StudentRepository) FindByUsername(ctx context.Context, username string) (*models.User, error) {
	const query = `SELECT id, username, firstname, lastname, email, suspended, picture, timecreated, timemodified, lastaccess
FROM mdl_user WHERE username = $1 AND deleted = 0`
	var user models.User
	if err := r.db.GetContext(ctx, &user, query, strings.ToLower(username)); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("find user by username: %w", err)
	}
	return &user, nil
}

// IsTenantMember reports whether the user belongs to the tenant.
func (r *StudentRepository) IsTenantMember(ctx context.Context, tenantID, userID int64) (bool, error) {
	const query = `SELECT EXISTS (SELECT 1 FROM mdl_company_users WHERE companyid = $1 AND userid = $2)`
	var ok bool
	if err := r.db.GetContext(ctx, &ok, query, tenantID, userID); err != nil {
		return false, fmt.Errorf("check tenant membership: %w", err)
	}
	return ok, nil
}

// ExistsByEmail checks whether another live account already uses the email.
func (r *StudentRepository) ExistsByEmail(ctx context.Context, email string, excludeID int64) (bool, error) {
	const query = `SELECT EXISTS (SELECT 1 FROM mdl_user WHERE LOWER(email) = LOWER($1) AND deleted = 0 AND id <> $2)`
	var ok bool
	if err := r.db.GetContext(ctx, &ok, query, email, excludeID); err != nil {
		return false, fmt.Errorf("check email: %w", err)
	}
	return ok, nil
}

// Update writes the profile fields and the tenant cohort membership in one transaction.
func (r *StudentRepository) Update(ctx context.Context, tenantID, id int64, update models.StudentUpdate) (err error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin student update: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	now := time.Now().Unix()
	const updateQuery = `UPDATE mdl_user SET firstname = $1, lastname = $2, email = $3, suspended = $4, timemodified = $5 WHERE id = $6`
	if _, err = tx.ExecContext(ctx, updateQuery, update.FirstName, update.LastName, update.Email, boolToInt(update.Suspended), now, id); err != nil {
		return fmt.Errorf("update student: %w", err)
	}
	if err = replaceCohort(ctx, tx, tenantID, id, update.CohortID, now); err != nil {
		return err
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit student update: %w", err)
	}
	return nil
}

// CreateWithMembership inserts the account, its tenant membership, the student
// role and the optional cohort membership. Nothing persists if any step fails.
func (r *StudentRepository) CreateWithMembership(ctx context.Context, tenantID int64, student models.NewStudent) (id int64, err error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin student import: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	now := time.Now().Unix()
	const insertUser = `INSERT INTO mdl_user (auth, confirmed, mnethostid, username, password, firstname, lastname, email, timecreated, timemodified)
VALUES ('manual', 1, 1, $1, $2, $3, $4, $5, $6, $6) RETURNING id`
	if err = tx.GetContext(ctx, &id, insertUser, strings.ToLower(student.Username), student.PasswordHash, student.FirstName, student.LastName, student.Email, now); err != nil {
		return 0, fmt.Errorf("insert user: %w", err)
	}

	const insertMember = `INSERT INTO mdl_company_users (companyid, userid, managertype, departmentid, suspended) VALUES ($1, $2, 0, 0, 0)`
	if _, err = tx.ExecContext(ctx, insertMember, tenantID, id); err != nil {
		return 0, fmt.Errorf("insert tenant membership: %w", err)
	}

	const insertRole = `INSERT INTO mdl_role_assignments (roleid, contextid, userid, timemodified)
SELECT r.id, 1, $1, $2 FROM mdl_role r WHERE r.shortname = $3`
	res, err := tx.ExecContext(ctx, insertRole, id, now, models.RoleStudent)
	if err != nil {
		return 0, fmt.Errorf("assign student role: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		err = fmt.Errorf("assign student role: role %q not found", models.RoleStudent)
		return 0, err
	}

	if student.CohortID != nil {
		if err = replaceCohort(ctx, tx, tenantID, id, student.CohortID, now); err != nil {
			return 0, err
		}
	}

	if err = tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit student import: %w", err)
	}
	return id, nil
}

// UpdateImported refreshes an existing account from an import row. An empty
// password hash keeps the current password and a nil cohort keeps memberships.
func (r *StudentRepository) UpdateImported(ctx context.Context, tenantID, id int64, student models.NewStudent) (err error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin student reimport: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	now := time.Now().Unix()
	if student.PasswordHash != "" {
		const query = `UPDATE mdl_user SET firstname = $1, lastname = $2, email = $3, password = $4, timemodified = $5 WHERE id = $6`
		_, err = tx.ExecContext(ctx, query, student.FirstName, student.LastName, student.Email, student.PasswordHash, now, id)
	} else {
		const query = `UPDATE mdl_user SET firstname = $1, lastname = $2, email = $3, timemodified = $4 WHERE id = $5`
		_, err = tx.ExecContext(ctx, query, student.FirstName, student.LastName, student.Email, now, id)
	}
	if err != nil {
		return fmt.Errorf("update imported user: %w", err)
	}
	if student.CohortID != nil {
		if err = replaceCohort(ctx, tx, tenantID, id, student.CohortID, now); err != nil {
			return err
		}
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit student reimport: %w", err)
	}
	return nil
}

// SetPicture records the stored picture revision on the account.
func (r *StudentRepository) SetPicture(ctx context.Context, id, picture int64) error {
	const query = `UPDATE mdl_user SET picture = $1, timemodified = $2 WHERE id = $3`
	if _, err := r.db.ExecContext(ctx, query, picture, time.Now().Unix(), id); err != nil {
		return fmt.Errorf("update user picture: %w", err)
	}
	return nil
}

// replaceCohort swaps the user's tenant cohort for cohortID. Memberships in
// cohorts that hold anyone outside the tenant are left alone.
func replaceCohort(ctx context.Context, tx *sqlx.Tx, tenantID, userID int64, cohortID *int64, now int64) error {
	const clear = `DELETE FROM mdl_cohort_members cm WHERE cm.userid = $2
AND NOT EXISTS (SELECT 1 FROM mdl_cohort_members o
	WHERE o.cohortid = cm.cohortid AND o.userid <> $2
	AND NOT EXISTS (SELECT 1 FROM mdl_company_users cu WHERE cu.userid = o.userid AND cu.companyid = $1))`
	if _, err := tx.ExecContext(ctx, clear, tenantID, userID); err != nil {
		return fmt.Errorf("clear cohort membership: %w", err)
	}
	if cohortID == nil {
		return nil
	}
	const insert = `INSERT INTO mdl_cohort_members (cohortid, userid, timeadded) VALUES ($1, $2, $3)`
	if _, err := tx.ExecContext(ctx, insert, *cohortID, userID, now); err != nil {
		return fmt.Errorf("add cohort membership: %w", err)
	}
	return nil
}

func boolToInt(v bool) int {
	if v {
		return 1
	}
	return 0
}
