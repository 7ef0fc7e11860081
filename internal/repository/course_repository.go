package repository

import (
	"context"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/school-manager-reports/internal/models"
)

// CourseRepository reads the courses linked to a tenant.
type CourseRepository struct {
	db *sqlx.DB
}

// NewCourseRepository constructs a CourseRepository.
func NewCourseRepository(db *sqlx.DB) *CourseRepository {
	return &CourseRepository{db: db}
}

// ListTenantCourses returns the tenant's courses, optionally narrowed to one course.
func (r *CourseRepository) ListTenantCourses(ctx context.Context, tenantID int64, courseID *int64) ([]models.Course, error) {
	var b strings.Builder
	b.WriteString(`SELECT c.id, c.fullname, c.shortname, c.visible, c.startdate
FROM mdl_course c
JOIN mdl_company_course cc ON cc.courseid = c.id
WHERE cc.companyid = $1`)
	args := []interface{}{tenantID}
	if courseID != nil {
		args = append(args, *courseID)
		fmt.Fprintf(&b, " AND c.id = $%d", len(args))
	}
	b.WriteString(" ORDER BY c.fullname, c.id")

	var courses []models.Course
	if err := r.db.SelectContext(ctx, &courses, b.String(), args...); err != nil {
		return nil, fmt.Errorf("list tenant courses: %w", err)
	}
	return courses, nil
}

// StudentCourses returns the tenant courses in which the student holds an active enrolment.
func (r *CourseRepository) StudentCourses(ctx context.Context, tenantID, studentID int64) ([]models.Course, error) {
	const query = `SELECT DISTINCT c.id, c.fullname, c.shortname, c.visible, c.startdate
FROM mdl_course c
JOIN mdl_company_course cc ON cc.courseid = c.id AND cc.companyid = $1
JOIN mdl_enrol e ON e.courseid = c.id
JOIN mdl_user_enrolments ue ON ue.enrolid = e.id AND ue.status = 0
WHERE ue.userid = $2
ORDER BY c.fullname, c.id`
	var courses []models.Course
	if err := r.db.SelectContext(ctx, &courses, query, tenantID, studentID); err != nil {
		return nil, fmt.Errorf("list student courses: %w", err)
	}
	return courses, nil
}
