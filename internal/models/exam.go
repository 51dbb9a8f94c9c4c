package models

import "time"

// MockExam is a multiple-choice self-assessment assigned to a class.
type MockExam struct {
	ID        string    `db:"id" json:"id"`
	Title     string    `db:"title" json:"title"`
	ClassID   string    `db:"class_id" json:"class_id"`
	Active    bool      `db:"active" json:"active"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// ChoiceLabels are the valid answer labels for a question.
var ChoiceLabels = []string{"A", "B", "C", "D", "E"}

// Question is one five-choice question belonging to a mock exam.
type Question struct {
	ID      string `db:"id" json:"id"`
	ExamID  string `db:"exam_id" json:"exam_id"`
	Prompt  string `db:"prompt" json:"prompt"`
	ChoiceA string `db:"choice_a" json:"choice_a"`
	ChoiceB string `db:"choice_b" json:"choice_b"`
	ChoiceC string `db:"choice_c" json:"choice_c"`
	ChoiceD string `db:"choice_d" json:"choice_d"`
	ChoiceE string `db:"choice_e" json:"choice_e"`
	Correct string `db:"correct" json:"-"`
}

// QuestionView is the student-facing projection without the correct label.
type QuestionView struct {
	ID      string `json:"id"`
	Prompt  string `json:"prompt"`
	ChoiceA string `json:"choice_a"`
	ChoiceB string `json:"choice_b"`
	ChoiceC string `json:"choice_c"`
	ChoiceD string `json:"choice_d"`
	ChoiceE string `json:"choice_e"`
}

// View strips the answer from a question.
func (q Question) View() QuestionView {
	return QuestionView{
		ID:      q.ID,
		Prompt:  q.Prompt,
		ChoiceA: q.ChoiceA,
		ChoiceB: q.ChoiceB,
		ChoiceC: q.ChoiceC,
		ChoiceD: q.ChoiceD,
		ChoiceE: q.ChoiceE,
	}
}

// ExamResult records one scored attempt. Rows are append-only; a student may
// attempt the same exam multiple times.
type ExamResult struct {
	ID           string    `db:"id" json:"id"`
	StudentID    string    `db:"student_id" json:"student_id"`
	ExamID       string    `db:"exam_id" json:"exam_id"`
	CorrectCount int       `db:"correct_count" json:"correct_count"`
	TotalCount   int       `db:"total_count" json:"total_count"`
	Percentage   float64   `db:"percentage" json:"percentage"`
	TakenAt      time.Time `db:"taken_at" json:"taken_at"`
}

// ExamResultDetail joins a result with its exam title for history listings.
type ExamResultDetail struct {
	ExamResult
	ExamTitle string `db:"exam_title" json:"exam_title"`
}
