package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/escola-api/internal/models"
)

// ExamRepository manages mock exams, their questions, and attempt results.
type ExamRepository struct {
	db *sqlx.DB
}

// NewExamRepository constructs an ExamRepository.
func NewExamRepository(db *sqlx.DB) *ExamRepository {
	return &ExamRepository{db: db}
}

// Create persists a mock exam.
func (r *ExamRepository) Create(ctx context.Context, exam *models.MockExam) error {
	if exam.ID == "" {
		exam.ID = uuid.NewString()
	}
	if exam.CreatedAt.IsZero() {
		exam.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO mock_exams (id, title, class_id, active, created_at) VALUES (:id, :title, :class_id, :active, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, exam); err != nil {
		return fmt.Errorf("create exam: %w", err)
	}
	return nil
}

// FindByID returns an exam by ID.
func (r *ExamRepository) FindByID(ctx context.Context, id string) (*models.MockExam, error) {
	const query = `SELECT id, title, class_id, active, created_at FROM mock_exams WHERE id = $1`
	var exam models.MockExam
	if err := r.db.GetContext(ctx, &exam, query, id); err != nil {
		return nil, err
	}
	return &exam, nil
}

// List returns all exams, newest first.
func (r *ExamRepository) List(ctx context.Context) ([]models.MockExam, error) {
	const query = `SELECT id, title, class_id, active, created_at FROM mock_exams ORDER BY created_at DESC`
	var exams []models.MockExam
	if err := r.db.SelectContext(ctx, &exams, query); err != nil {
		return nil, fmt.Errorf("list exams: %w", err)
	}
	return exams, nil
}

// ListActiveByClass returns active exams assigned to a class, newest first.
func (r *ExamRepository) ListActiveByClass(ctx context.Context, classID string) ([]models.MockExam, error) {
	const query = `SELECT id, title, class_id, active, created_at FROM mock_exams WHERE class_id = $1 AND active = TRUE ORDER BY created_at DESC`
	var exams []models.MockExam
	if err := r.db.SelectContext(ctx, &exams, query, classID); err != nil {
		return nil, fmt.Errorf("list class exams: %w", err)
	}
	return exams, nil
}

// SetActive toggles exam visibility for students.
func (r *ExamRepository) SetActive(ctx context.Context, id string, active bool) error {
	if _, err := r.db.ExecContext(ctx, `UPDATE mock_exams SET active = $2 WHERE id = $1`, id, active); err != nil {
		return fmt.Errorf("set exam active: %w", err)
	}
	return nil
}

// Delete removes an exam; questions cascade at the store level.
func (r *ExamRepository) Delete(ctx context.Context, id string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM mock_exams WHERE id = $1`, id); err != nil {
		return fmt.Errorf("delete exam: %w", err)
	}
	return nil
}

// CreateQuestion appends a question to an exam.
func (r *ExamRepository) CreateQuestion(ctx context.Context, question *models.Question) error {
	if question.ID == "" {
		question.ID = uuid.NewString()
	}
	const query = `INSERT INTO questions (id, exam_id, prompt, choice_a, choice_b, choice_c, choice_d, choice_e, correct)
        VALUES (:id, :exam_id, :prompt, :choice_a, :choice_b, :choice_c, :choice_d, :choice_e, :correct)`
	if _, err := r.db.NamedExecContext(ctx, query, question); err != nil {
		return fmt.Errorf("create question: %w", err)
	}
	return nil
}

// ListQuestions returns every question of an exam, answers included.
func (r *ExamRepository) ListQuestions(ctx context.Context, examID string) ([]models.Question, error) {
	const query = `SELECT id, exam_id, prompt, choice_a, choice_b, choice_c, choice_d, choice_e, correct FROM questions WHERE exam_id = $1 ORDER BY id`
	var questions []models.Question
	if err := r.db.SelectContext(ctx, &questions, query, examID); err != nil {
		return nil, fmt.Errorf("list questions: %w", err)
	}
	return questions, nil
}

// CreateResult appends one attempt result row.
func (r *ExamRepository) CreateResult(ctx context.Context, result *models.ExamResult) error {
	if result.ID == "" {
		result.ID = uuid.NewString()
	}
	const query = `INSERT INTO exam_results (id, student_id, exam_id, correct_count, total_count, percentage, taken_at)
        VALUES (:id, :student_id, :exam_id, :correct_count, :total_count, :percentage, :taken_at)`
	if _, err := r.db.NamedExecContext(ctx, query, result); err != nil {
		return fmt.Errorf("create exam result: %w", err)
	}
	return nil
}

// ListResultsByStudent returns the attempt history, most recent first.
func (r *ExamRepository) ListResultsByStudent(ctx context.Context, studentID string) ([]models.ExamResultDetail, error) {
	const query = `SELECT r.id, r.student_id, r.exam_id, r.correct_count, r.total_count, r.percentage, r.taken_at, e.title AS exam_title
        FROM exam_results r JOIN mock_exams e ON e.id = r.exam_id
        WHERE r.student_id = $1 ORDER BY r.taken_at DESC, r.id DESC`
	var results []models.ExamResultDetail
	if err := r.db.SelectContext(ctx, &results, query, studentID); err != nil {
		return nil, fmt.Errorf("list exam results: %w", err)
	}
	return results, nil
}
