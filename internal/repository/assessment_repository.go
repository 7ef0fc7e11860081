package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/school-manager-reports/internal/models"
)

// AssessmentRepository reads quizzes and assignments for one course and student.
type AssessmentRepository struct {
	db *sqlx.DB
}

// NewAssessmentRepository constructs an AssessmentRepository.
func NewAssessmentRepository(db *sqlx.DB) *AssessmentRepository {
	return &AssessmentRepository{db: db}
}

// Quizzes lists the quizzes of a course.
func (r *AssessmentRepository) Quizzes(ctx context.Context, courseID int64) ([]models.Quiz, error) {
	const query = `SELECT id, course, name, COALESCE(sumgrades, 0) AS sumgrades FROM mdl_quiz WHERE course = $1 ORDER BY id`
	var quizzes []models.Quiz
	if err := r.db.SelectContext(ctx, &quizzes, query, courseID); err != nil {
		return nil, fmt.Errorf("list quizzes: %w", err)
	}
	return quizzes, nil
}

// QuizAttempts lists the student's attempts on the course quizzes.
func (r *AssessmentRepository) QuizAttempts(ctx context.Context, courseID, userID int64) ([]models.QuizAttempt, error) {
	const query = `SELECT qa.quiz, qa.userid, qa.state, qa.sumgrades, qa.timestart, qa.timefinish
FROM mdl_quiz_attempts qa
JOIN mdl_quiz q ON q.id = qa.quiz
WHERE q.course = $1 AND qa.userid = $2
ORDER BY qa.quiz, qa.timestart`
	var attempts []models.QuizAttempt
	if err := r.db.SelectContext(ctx, &attempts, query, courseID, userID); err != nil {
		return nil, fmt.Errorf("list quiz attempts: %w", err)
	}
	return attempts, nil
}

// Assignments lists the assignments of a course.
func (r *AssessmentRepository) Assignments(ctx context.Context, courseID int64) ([]models.Assignment, error) {
	const query = `SELECT id, course, name, duedate, grade FROM mdl_assign WHERE course = $1 ORDER BY duedate, id`
	var assignments []models.Assignment
	if err := r.db.SelectContext(ctx, &assignments, query, courseID); err != nil {
		return nil, fmt.Errorf("list assignments: %w", err)
	}
	return assignments, nil
}

// Submissions lists the student's latest submission per course assignment.
func (r *AssessmentRepository) Submissions(ctx context.Context, courseID, userID int64) ([]models.AssignmentSubmission, error) {
	const query = `SELECT s.assignment, s.userid, s.status, s.timemodified
FROM mdl_assign_submission s
JOIN mdl_assign a ON a.id = s.assignment
WHERE a.course = $1 AND s.userid = $2 AND s.latest = 1`
	var submissions []models.AssignmentSubmission
	if err := r.db.SelectContext(ctx, &submissions, query, courseID, userID); err != nil {
		return nil, fmt.Errorf("list submissions: %w", err)
	}
	return submissions, nil
}

// Grades lists the student's most recent grade per course assignment.
func (r *AssessmentRepository) Grades(ctx context.Context, courseID, userID int64) ([]models.AssignmentGrade, error) {
	const query = `SELECT DISTINCT ON (g.assignment) g.assignment, g.userid, g.grade
FROM mdl_assign_grades g
JOIN mdl_assign a ON a.id = g.assignment
WHERE a.course = $1 AND g.userid = $2
ORDER BY g.assignment, g.attemptnumber DESC`
	var grades []models.AssignmentGrade
	if err := r.db.SelectContext(ctx, &grades, query, courseID, userID); err != nil {
		return nil, fmt.Errorf("list grades: %w", err)
	}
	return grades, nil
}
