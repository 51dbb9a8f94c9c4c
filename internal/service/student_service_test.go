package service

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/noah-isme/escola-api/internal/models"
	appErrors "github.com/noah-isme/escola-api/pkg/errors"
)

type mockStudentRepo struct {
	created     *models.User
	loginTaken  bool
	students    []models.StudentDetail
	deactivated []string
	byID        map[string]*models.User
}

func (m *mockStudentRepo) FindByID(_ context.Context, id string) (*models.User, error) {
	user, ok := m.byID[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	copied := *user
	return &copied, nil
}

func (m *mockStudentRepo) ExistsByLogin(_ context.Context, _ string) (bool, error) {
	return m.loginTaken, nil
}

func (m *mockStudentRepo) Create(_ context.Context, user *models.User) error {
	user.ID = "student-new"
	m.created = user
	return nil
}

func (m *mockStudentRepo) ListStudents(_ context.Context, _ models.UserFilter) ([]models.StudentDetail, int, error) {
	return m.students, len(m.students), nil
}

func (m *mockStudentRepo) Deactivate(_ context.Context, id string) error {
	m.deactivated = append(m.deactivated, id)
	return nil
}

type mockScheduleGenerator struct {
	userID     string
	enrolledAt time.Time
	calls      int
}

func (m *mockScheduleGenerator) GenerateSchedule(_ context.Context, userID string, enrolledAt time.Time) ([]models.Installment, error) {
	m.calls++
	m.userID = userID
	m.enrolledAt = enrolledAt
	return BuildSchedule(userID, enrolledAt, 12, 30), nil
}

func TestEnrollCreatesStudentWithSchedule(t *testing.T) {
	repo := &mockStudentRepo{}
	gen := &mockScheduleGenerator{}
	svc := NewStudentService(repo, stubClassReader{}, gen, nil, zap.NewNop())

	enrolledAt := date(2024, time.January, 15)
	res, err := svc.Enroll(context.Background(), EnrollStudentRequest{
		FullName:   "Maria Silva",
		Login:      "Maria.Silva",
		Password:   "senha123",
		ClassID:    "6fa459ea-ee8a-3ca4-894e-db77e160355e",
		EnrolledAt: &enrolledAt,
	})
	require.NoError(t, err)

	assert.Equal(t, models.RoleStudent, res.Student.Role)
	assert.Equal(t, "maria.silva", res.Student.Login)
	require.NotNil(t, res.Student.EnrolledAt)
	assert.Equal(t, enrolledAt, *res.Student.EnrolledAt)

	require.Len(t, res.Installments, 12)
	assert.Equal(t, enrolledAt, res.Installments[0].DueDate)
	assert.Equal(t, 1, gen.calls)
	assert.Equal(t, "student-new", gen.userID)

	// Password must be stored hashed, never verbatim.
	assert.NotEqual(t, "senha123", repo.created.PasswordHash)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(repo.created.PasswordHash), []byte("senha123")))
}

func TestEnrollRejectsDuplicateLogin(t *testing.T) {
	repo := &mockStudentRepo{loginTaken: true}
	gen := &mockScheduleGenerator{}
	svc := NewStudentService(repo, stubClassReader{}, gen, nil, zap.NewNop())

	_, err := svc.Enroll(context.Background(), EnrollStudentRequest{
		FullName: "Maria Silva",
		Login:    "maria.silva",
		Password: "senha123",
		ClassID:  "6fa459ea-ee8a-3ca4-894e-db77e160355e",
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrConflict.Code, appErrors.FromError(err).Code)
	assert.Nil(t, repo.created)
	assert.Equal(t, 0, gen.calls)
}

func TestEnrollRejectsShortPassword(t *testing.T) {
	svc := NewStudentService(&mockStudentRepo{}, stubClassReader{}, &mockScheduleGenerator{}, nil, zap.NewNop())

	_, err := svc.Enroll(context.Background(), EnrollStudentRequest{
		FullName: "Maria Silva",
		Login:    "maria.silva",
		Password: "123",
		ClassID:  "6fa459ea-ee8a-3ca4-894e-db77e160355e",
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestGetRejectsAdminAccounts(t *testing.T) {
	repo := &mockStudentRepo{byID: map[string]*models.User{
		"admin-1": {ID: "admin-1", Role: models.RoleAdmin},
	}}
	svc := NewStudentService(repo, stubClassReader{}, &mockScheduleGenerator{}, nil, zap.NewNop())

	_, err := svc.Get(context.Background(), "admin-1")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestDeactivateStudent(t *testing.T) {
	classID := "class-1"
	repo := &mockStudentRepo{byID: map[string]*models.User{
		"student-1": {ID: "student-1", Role: models.RoleStudent, ClassID: &classID, Active: true},
	}}
	svc := NewStudentService(repo, stubClassReader{}, &mockScheduleGenerator{}, nil, zap.NewNop())

	require.NoError(t, svc.Deactivate(context.Background(), "student-1"))
	assert.Equal(t, []string{"student-1"}, repo.deactivated)
}
