package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/noah-isme/escola-api/internal/models"
	appErrors "github.com/noah-isme/escola-api/pkg/errors"
)

type studentUserRepository interface {
	FindByID(ctx context.Context, id string) (*models.User, error)
	ExistsByLogin(ctx context.Context, login string) (bool, error)
	Create(ctx context.Context, user *models.User) error
	ListStudents(ctx context.Context, filter models.UserFilter) ([]models.StudentDetail, int, error)
	Deactivate(ctx context.Context, id string) error
}

type studentClassReader interface {
	FindByID(ctx context.Context, id string) (*models.Class, error)
}

type scheduleGenerator interface {
	GenerateSchedule(ctx context.Context, userID string, enrolledAt time.Time) ([]models.Installment, error)
}

// EnrollStudentRequest is the payload for enrolling a new student.
type EnrollStudentRequest struct {
	FullName   string     `json:"full_name" validate:"required,min=2,max=160"`
	Login      string     `json:"login" validate:"required,min=3,max=60"`
	Password   string     `json:"password" validate:"required,min=6"`
	ClassID    string     `json:"class_id" validate:"required,uuid"`
	EnrolledAt *time.Time `json:"enrolled_at,omitempty"`
}

// EnrollStudentResponse returns the created student and its tuition schedule.
type EnrollStudentResponse struct {
	Student      *models.User         `json:"student"`
	Installments []models.Installment `json:"installments"`
}

// StudentService manages student enrollment and listing.
type StudentService struct {
	users     studentUserRepository
	classes   studentClassReader
	billing   scheduleGenerator
	validator *validator.Validate
	logger    *zap.Logger
}

// NewStudentService constructs a StudentService instance.
func NewStudentService(users studentUserRepository, classes studentClassReader, billing scheduleGenerator, validate *validator.Validate, logger *zap.Logger) *StudentService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	return &StudentService{users: users, classes: classes, billing: billing, validator: validate, logger: logger}
}

// Enroll creates a student account inside a class and generates the tuition
// schedule anchored on the enrollment date.
func (s *StudentService) Enroll(ctx context.Context, req EnrollStudentRequest) (*EnrollStudentResponse, error) {
	req.FullName = strings.TrimSpace(req.FullName)
	req.Login = strings.TrimSpace(strings.ToLower(req.Login))
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid enrollment payload")
	}

	if _, err := s.classes.FindByID(ctx, req.ClassID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "class not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to fetch class")
	}

	exists, err := s.users.ExistsByLogin(ctx, req.Login)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check login")
	}
	if exists {
		return nil, appErrors.Clone(appErrors.ErrConflict, fmt.Sprintf("login %q is already taken", req.Login))
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to hash password")
	}

	enrolledAt := time.Now().UTC()
	if req.EnrolledAt != nil {
		enrolledAt = req.EnrolledAt.UTC()
	}

	now := time.Now().UTC()
	student := &models.User{
		FullName:     req.FullName,
		Login:        req.Login,
		PasswordHash: string(hash),
		Role:         models.RoleStudent,
		ClassID:      &req.ClassID,
		EnrolledAt:   &enrolledAt,
		Active:       true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := s.users.Create(ctx, student); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create student")
	}

	installments, err := s.billing.GenerateSchedule(ctx, student.ID, enrolledAt)
	if err != nil {
		return nil, err
	}

	s.logger.Info("student enrolled",
		zap.String("student_id", student.ID),
		zap.String("class_id", req.ClassID),
		zap.Int("installments", len(installments)))

	return &EnrollStudentResponse{Student: student, Installments: installments}, nil
}

// List returns students matching the filter with pagination metadata.
func (s *StudentService) List(ctx context.Context, filter models.UserFilter) ([]models.StudentDetail, *models.Pagination, error) {
	if filter.Page < 1 {
		filter.Page = 1
	}
	if filter.PageSize < 1 || filter.PageSize > 100 {
		filter.PageSize = 20
	}
	role := models.RoleStudent
	filter.Role = &role

	students, total, err := s.users.ListStudents(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list students")
	}

	return students, &models.Pagination{Page: filter.Page, PageSize: filter.PageSize, TotalCount: total}, nil
}

// Get returns a student by ID.
func (s *StudentService) Get(ctx context.Context, id string) (*models.User, error) {
	user, err := s.users.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to fetch student")
	}
	if user.Role != models.RoleStudent {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "student not found")
	}
	return user, nil
}

// Deactivate disables a student account without deleting its history.
func (s *StudentService) Deactivate(ctx context.Context, id string) error {
	if _, err := s.Get(ctx, id); err != nil {
		return err
	}
	if err := s.users.Deactivate(ctx, id); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to deactivate student")
	}
	s.logger.Info("student deactivated", zap.String("student_id", id))
	return nil
}
