package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/escola-api/internal/models"
	appErrors "github.com/noah-isme/escola-api/pkg/errors"
)

type examRepository interface {
	Create(ctx context.Context, exam *models.MockExam) error
	FindByID(ctx context.Context, id string) (*models.MockExam, error)
	List(ctx context.Context) ([]models.MockExam, error)
	ListActiveByClass(ctx context.Context, classID string) ([]models.MockExam, error)
	SetActive(ctx context.Context, id string, active bool) error
	Delete(ctx context.Context, id string) error
	CreateQuestion(ctx context.Context, question *models.Question) error
	ListQuestions(ctx context.Context, examID string) ([]models.Question, error)
	CreateResult(ctx context.Context, result *models.ExamResult) error
	ListResultsByStudent(ctx context.Context, studentID string) ([]models.ExamResultDetail, error)
}

type examClassReader interface {
	FindByID(ctx context.Context, id string) (*models.Class, error)
}

// CreateExamRequest is the payload for creating a mock exam.
type CreateExamRequest struct {
	Title   string `json:"title" validate:"required,min=2,max=200"`
	ClassID string `json:"class_id" validate:"required,uuid"`
}

// CreateQuestionRequest is the payload for adding a question to an exam.
type CreateQuestionRequest struct {
	Prompt  string `json:"prompt" validate:"required,min=2"`
	ChoiceA string `json:"choice_a" validate:"required"`
	ChoiceB string `json:"choice_b" validate:"required"`
	ChoiceC string `json:"choice_c" validate:"required"`
	ChoiceD string `json:"choice_d" validate:"required"`
	ChoiceE string `json:"choice_e" validate:"required"`
	Correct string `json:"correct" validate:"required,oneof=A B C D E"`
}

// SubmitAttemptRequest carries the student's answers keyed by question ID.
type SubmitAttemptRequest struct {
	Answers map[string]string `json:"answers" validate:"required"`
}

// ExamView is the student-facing exam with answer-stripped questions.
type ExamView struct {
	Exam      models.MockExam       `json:"exam"`
	Questions []models.QuestionView `json:"questions"`
}

// ExamService manages mock exams, questions and scoring.
type ExamService struct {
	repo      examRepository
	classes   examClassReader
	validator *validator.Validate
	logger    *zap.Logger
}

// NewExamService constructs an ExamService instance.
func NewExamService(repo examRepository, classes examClassReader, validate *validator.Validate, logger *zap.Logger) *ExamService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	return &ExamService{repo: repo, classes: classes, validator: validate, logger: logger}
}

// Create registers a new mock exam for a class. Exams start active.
func (s *ExamService) Create(ctx context.Context, req CreateExamRequest) (*models.MockExam, error) {
	req.Title = strings.TrimSpace(req.Title)
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid exam payload")
	}

	if _, err := s.classes.FindByID(ctx, req.ClassID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "class not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to fetch class")
	}

	exam := &models.MockExam{
		Title:     req.Title,
		ClassID:   req.ClassID,
		Active:    true,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.repo.Create(ctx, exam); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create exam")
	}

	s.logger.Info("mock exam created", zap.String("exam_id", exam.ID), zap.String("class_id", exam.ClassID))
	return exam, nil
}

// Get returns a mock exam by ID.
func (s *ExamService) Get(ctx context.Context, id string) (*models.MockExam, error) {
	exam, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "exam not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to fetch exam")
	}
	return exam, nil
}

// List returns all mock exams for administrators.
func (s *ExamService) List(ctx context.Context) ([]models.MockExam, error) {
	exams, err := s.repo.List(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list exams")
	}
	return exams, nil
}

// ListForStudent returns the active exams of the student's class.
func (s *ExamService) ListForStudent(ctx context.Context, student *models.User) ([]models.MockExam, error) {
	if student.ClassID == nil {
		return []models.MockExam{}, nil
	}
	exams, err := s.repo.ListActiveByClass(ctx, *student.ClassID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list class exams")
	}
	return exams, nil
}

// SetActive toggles whether students can see and take an exam.
func (s *ExamService) SetActive(ctx context.Context, id string, active bool) error {
	if _, err := s.Get(ctx, id); err != nil {
		return err
	}
	if err := s.repo.SetActive(ctx, id, active); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update exam state")
	}
	return nil
}

// Delete removes an exam along with its questions.
func (s *ExamService) Delete(ctx context.Context, id string) error {
	if _, err := s.Get(ctx, id); err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete exam")
	}
	s.logger.Info("mock exam deleted", zap.String("exam_id", id))
	return nil
}

// Questions returns an exam's questions with their correct labels, for
// administrator review.
func (s *ExamService) Questions(ctx context.Context, examID string) ([]models.Question, error) {
	if _, err := s.Get(ctx, examID); err != nil {
		return nil, err
	}
	questions, err := s.repo.ListQuestions(ctx, examID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list exam questions")
	}
	return questions, nil
}

// AddQuestion appends a question to an exam.
func (s *ExamService) AddQuestion(ctx context.Context, examID string, req CreateQuestionRequest) (*models.Question, error) {
	req.Correct = strings.ToUpper(strings.TrimSpace(req.Correct))
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid question payload")
	}

	if _, err := s.Get(ctx, examID); err != nil {
		return nil, err
	}

	question := &models.Question{
		ExamID:  examID,
		Prompt:  req.Prompt,
		ChoiceA: req.ChoiceA,
		ChoiceB: req.ChoiceB,
		ChoiceC: req.ChoiceC,
		ChoiceD: req.ChoiceD,
		ChoiceE: req.ChoiceE,
		Correct: req.Correct,
	}
	if err := s.repo.CreateQuestion(ctx, question); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create question")
	}
	return question, nil
}

// View returns the exam with questions stripped of the correct label, for a
// student of the exam's class. Inactive exams and exams of other classes are
// not visible.
func (s *ExamService) View(ctx context.Context, examID string, student *models.User) (*ExamView, error) {
	exam, err := s.Get(ctx, examID)
	if err != nil {
		return nil, err
	}
	if !exam.Active || student.ClassID == nil || *student.ClassID != exam.ClassID {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "exam not found")
	}

	questions, err := s.repo.ListQuestions(ctx, examID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list questions")
	}

	views := make([]models.QuestionView, 0, len(questions))
	for _, q := range questions {
		views = append(views, q.View())
	}
	return &ExamView{Exam: *exam, Questions: views}, nil
}

// ScoreAttempt grades the submitted answers and records the result. Answer
// keys that do not match a question are ignored; unanswered questions count
// as wrong. An exam with zero questions scores 0%.
func (s *ExamService) ScoreAttempt(ctx context.Context, examID string, student *models.User, req SubmitAttemptRequest) (*models.ExamResult, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid attempt payload")
	}

	exam, err := s.Get(ctx, examID)
	if err != nil {
		return nil, err
	}
	if !exam.Active {
		return nil, appErrors.Clone(appErrors.ErrPreconditionFailed, "exam is not active")
	}
	if student.ClassID == nil || *student.ClassID != exam.ClassID {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "exam does not belong to your class")
	}

	questions, err := s.repo.ListQuestions(ctx, examID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list questions")
	}

	correct := 0
	for _, q := range questions {
		answer, ok := req.Answers[q.ID]
		if !ok {
			continue
		}
		if strings.EqualFold(strings.TrimSpace(answer), q.Correct) {
			correct++
		}
	}

	total := len(questions)
	percentage := 0.0
	if total > 0 {
		percentage = math.Round(float64(correct)/float64(total)*100*100) / 100
	}

	result := &models.ExamResult{
		StudentID:    student.ID,
		ExamID:       examID,
		CorrectCount: correct,
		TotalCount:   total,
		Percentage:   percentage,
		TakenAt:      time.Now().UTC(),
	}
	if err := s.repo.CreateResult(ctx, result); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to record result")
	}

	s.logger.Info("exam attempt scored",
		zap.String("exam_id", examID),
		zap.String("student_id", student.ID),
		zap.String("score", fmt.Sprintf("%d/%d", correct, total)))
	return result, nil
}

// History returns a student's past results, newest first.
func (s *ExamService) History(ctx context.Context, studentID string) ([]models.ExamResultDetail, error) {
	results, err := s.repo.ListResultsByStudent(ctx, studentID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list results")
	}
	return results, nil
}
