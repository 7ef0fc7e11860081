package analytics

import "github.com/noah-isme/school-manager-reports/internal/models"

// SummarizeQuiz rolls one student's attempts at a quiz into a summary.
// A finished attempt makes the quiz attempted even when another attempt is
// still open. The best percentage is absent when the quiz has no maximum
// score or no finished attempt carries a score.
func SummarizeQuiz(quiz models.Quiz, attempts []models.QuizAttempt) models.QuizSummary {
	summary := models.QuizSummary{
		QuizID: quiz.ID,
		Name:   quiz.Name,
		Status: models.QuizStatusNotAttempted,
	}
	var best *float64
	finished, open := false, false
	for _, attempt := range attempts {
		if attempt.QuizID != quiz.ID {
			continue
		}
		summary.Attempts++
		switch attempt.State {
		case models.AttemptStateFinished:
			finished = true
			if attempt.TimeFinish > summary.LastFinished {
				summary.LastFinished = attempt.TimeFinish
			}
			if attempt.TimeFinish > attempt.TimeStart && attempt.TimeStart > 0 {
				summary.DurationSeconds += attempt.TimeFinish - attempt.TimeStart
			}
			if attempt.SumGrades != nil && (best == nil || *attempt.SumGrades > *best) {
				v := *attempt.SumGrades
				best = &v
			}
		case models.AttemptStateInProgress:
			open = true
		}
	}
	switch {
	case finished:
		summary.Status = models.QuizStatusAttempted
	case open:
		summary.Status = models.QuizStatusInProgress
	}
	if best != nil && quiz.SumGrades > 0 {
		pct := Round1(ClampPercent(*best / quiz.SumGrades * 100))
		summary.BestPct = &pct
	}
	return summary
}

// SummarizeAssignment derives submission and grading status for one student.
// submission and grade may be nil. now is unix seconds.
func SummarizeAssignment(assignment models.Assignment, submission *models.AssignmentSubmission, grade *models.AssignmentGrade, now int64) models.AssignmentSummary {
	summary := models.AssignmentSummary{
		AssignmentID: assignment.ID,
		Name:         assignment.Name,
		DueDate:      assignment.DueDate,
		Status:       models.AssignmentStatusNotSubmitted,
		Grading:      models.GradingStatusNotGraded,
	}

	submitted := submission != nil && submission.Status == models.SubmissionStatusSubmitted
	switch {
	case submitted && assignment.DueDate > 0 && submission.TimeModified > assignment.DueDate:
		summary.Status = models.AssignmentStatusLateSubmitted
		summary.SubmittedAt = submission.TimeModified
	case submitted:
		summary.Status = models.AssignmentStatusSubmitted
		summary.SubmittedAt = submission.TimeModified
	case assignment.DueDate > now:
		summary.Status = models.AssignmentStatusDue
	}

	if grade != nil && grade.Grade >= 0 {
		summary.Grading = models.GradingStatusGraded
		g := grade.Grade
		summary.Grade = &g
		if assignment.Grade > 0 {
			pct := Round1(ClampPercent(g / assignment.Grade * 100))
			summary.Pct = &pct
		}
	}
	return summary
}

// CourseAssessments builds the quiz and assignment rollup for one course.
// Submissions and grades are matched by assignment id.
func CourseAssessments(
	quizzes []models.Quiz,
	attempts []models.QuizAttempt,
	assignments []models.Assignment,
	submissions []models.AssignmentSubmission,
	grades []models.AssignmentGrade,
	now int64,
) models.QuizAssignmentStatus {
	out := models.QuizAssignmentStatus{
		Quizzes:     make([]models.QuizSummary, 0, len(quizzes)),
		Assignments: make([]models.AssignmentSummary, 0, len(assignments)),
	}
	for _, quiz := range quizzes {
		out.Quizzes = append(out.Quizzes, SummarizeQuiz(quiz, attempts))
	}

	subs := make(map[int64]*models.AssignmentSubmission, len(submissions))
	for i := range submissions {
		subs[submissions[i].AssignmentID] = &submissions[i]
	}
	gradeByAssign := make(map[int64]*models.AssignmentGrade, len(grades))
	for i := range grades {
		gradeByAssign[grades[i].AssignmentID] = &grades[i]
	}
	for _, assignment := range assignments {
		out.Assignments = append(out.Assignments, SummarizeAssignment(assignment, subs[assignment.ID], gradeByAssign[assignment.ID], now))
	}
	return out
}
