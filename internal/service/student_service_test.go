package service

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/school-manager-reports/internal/models"
	appErrors "github.com/noah-isme/school-manager-reports/pkg/errors"
)

type mockStudentRepo struct {
	students   map[int64]models.Student
	emailTaken bool
	updated    *models.StudentUpdate
	updateErr  error
	filter     models.StudentFilter
}

func (m *mockStudentRepo) List(ctx context.Context, tenantID int64, filter models.StudentFilter) ([]models.Student, int, error) {
	m.filter = filter
	var out []models.Student
	for _, st := range m.students {
		out = append(out, st)
	}
	return out, len(out), nil
}

func (m *mockStudentRepo) FindByID(ctx context.Context, tenantID, id int64) (*models.Student, error) {
	st, ok := m.students[id]
	if !ok {
		return nil, nil
	}
	return &st, nil
}

func (m *mockStudentRepo) ExistsByEmail(ctx context.Context, email string, excludeID int64) (bool, error) {
	return m.emailTaken, nil
}

func (m *mockStudentRepo) Update(ctx context.Context, tenantID, id int64, update models.StudentUpdate) error {
	if m.updateErr != nil {
		return m.updateErr
	}
	m.updated = &update
	st := m.students[id]
	st.FirstName, st.LastName, st.Email, st.Suspended = update.FirstName, update.LastName, update.Email, update.Suspended
	st.CohortID = update.CohortID
	m.students[id] = st
	return nil
}

func newStudentFixture() (*StudentService, *mockStudentRepo) {
	repo := &mockStudentRepo{students: map[int64]models.Student{
		9: {User: models.User{ID: 9, Username: "citra", FirstName: "Citra", LastName: "Dewi", Email: "citra@example.com"}},
	}}
	cohorts := &stubCohorts{tenantID: 3, cohorts: []models.Cohort{{ID: 4, Name: "XI IPS 2"}}}
	return NewStudentService(repo, cohorts, nil, 25, 100, nil), repo
}

func TestStudentServiceListClampsPaging(t *testing.T) {
	svc, repo := newStudentFixture()

	students, pagination, err := svc.List(context.Background(), 3, models.StudentFilter{Search: "  cit ", Page: -1, PageSize: 1000})
	require.NoError(t, err)
	assert.Len(t, students, 1)
	assert.Equal(t, 1, pagination.Page)
	assert.Equal(t, 100, repo.filter.PageSize)
	assert.Equal(t, "cit", repo.filter.Search)
}

func TestStudentServiceGetNotFound(t *testing.T) {
	svc, _ := newStudentFixture()

	_, err := svc.Get(context.Background(), 3, 404)
	assert.ErrorIs(t, err, appErrors.ErrNotFound)
}

func TestStudentServiceUpdate(t *testing.T) {
	svc, repo := newStudentFixture()
	cohort := int64(4)

	student, err := svc.Update(context.Background(), 3, 9, UpdateStudentRequest{
		FirstName: " Citra ",
		LastName:  "Lestari",
		Email:     "citra.lestari@example.com",
		Suspended: true,
		CohortID:  &cohort,
	})
	require.NoError(t, err)
	require.NotNil(t, repo.updated)
	assert.Equal(t, "Citra", repo.updated.FirstName)
	assert.Equal(t, "Lestari", student.LastName)
	assert.True(t, student.Suspended)
	require.NotNil(t, student.CohortID)
	assert.Equal(t, int64(4), *student.CohortID)
}

func TestStudentServiceUpdateValidation(t *testing.T) {
	svc, repo := newStudentFixture()

	_, err := svc.Update(context.Background(), 3, 9, UpdateStudentRequest{FirstName: "Citra", LastName: "Dewi", Email: "not-an-email"})
	assert.ErrorIs(t, err, appErrors.ErrValidation)
	assert.Nil(t, repo.updated)
}

func TestStudentServiceUpdateDuplicateEmail(t *testing.T) {
	svc, repo := newStudentFixture()
	repo.emailTaken = true

	_, err := svc.Update(context.Background(), 3, 9, UpdateStudentRequest{FirstName: "Citra", LastName: "Dewi", Email: "taken@example.com"})
	assert.ErrorIs(t, err, appErrors.ErrConflict)
}

func TestStudentServiceUpdateUnknownCohort(t *testing.T) {
	svc, _ := newStudentFixture()
	cohort := int64(99)

	_, err := svc.Update(context.Background(), 3, 9, UpdateStudentRequest{FirstName: "Citra", LastName: "Dewi", Email: "citra@example.com", CohortID: &cohort})
	assert.ErrorIs(t, err, appErrors.ErrValidation)
}

func TestStudentServiceUpdateRejectsOtherSchoolCohort(t *testing.T) {
	svc, repo := newStudentFixture()
	cohort := int64(4)

	_, err := svc.Update(context.Background(), 5, 9, UpdateStudentRequest{FirstName: "Citra", LastName: "Dewi", Email: "citra@example.com", CohortID: &cohort})
	assert.ErrorIs(t, err, appErrors.ErrValidation)
	assert.Nil(t, repo.updated)
}

func TestStudentServiceUpdateForeignStudent(t *testing.T) {
	svc, _ := newStudentFixture()

	_, err := svc.Update(context.Background(), 3, 10, UpdateStudentRequest{FirstName: "X", LastName: "Y", Email: "x@example.com"})
	assert.ErrorIs(t, err, appErrors.ErrNotFound)
}

func TestStudentServiceUpdateRepositoryError(t *testing.T) {
	svc, repo := newStudentFixture()
	repo.updateErr = errors.New("deadlock")

	_, err := svc.Update(context.Background(), 3, 9, UpdateStudentRequest{FirstName: "Citra", LastName: "Dewi", Email: "citra@example.com"})
	assert.ErrorIs(t, err, appErrors.ErrInternal)
}
