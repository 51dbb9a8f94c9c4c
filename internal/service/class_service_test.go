package service

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/escola-api/internal/models"
	appErrors "github.com/noah-isme/escola-api/pkg/errors"
)

type mockClassRepo struct {
	classes   map[string]*models.Class
	nameTaken bool
	exams     int
	materials int
	deleted   []string
}

func (m *mockClassRepo) List(_ context.Context, _ models.ClassFilter) ([]models.Class, int, error) {
	out := make([]models.Class, 0, len(m.classes))
	for _, c := range m.classes {
		out = append(out, *c)
	}
	return out, len(out), nil
}

func (m *mockClassRepo) FindByID(_ context.Context, id string) (*models.Class, error) {
	class, ok := m.classes[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	copied := *class
	return &copied, nil
}

func (m *mockClassRepo) ExistsByName(_ context.Context, _ string, _ string) (bool, error) {
	return m.nameTaken, nil
}

func (m *mockClassRepo) Create(_ context.Context, class *models.Class) error {
	class.ID = "class-new"
	if m.classes == nil {
		m.classes = make(map[string]*models.Class)
	}
	m.classes[class.ID] = class
	return nil
}

func (m *mockClassRepo) Update(_ context.Context, class *models.Class) error {
	m.classes[class.ID] = class
	return nil
}

func (m *mockClassRepo) Delete(_ context.Context, id string) error {
	m.deleted = append(m.deleted, id)
	delete(m.classes, id)
	return nil
}

func (m *mockClassRepo) CountExams(_ context.Context, _ string) (int, error) {
	return m.exams, nil
}

func (m *mockClassRepo) CountMaterials(_ context.Context, _ string) (int, error) {
	return m.materials, nil
}

type stubUserCounter struct {
	students int
}

func (s stubUserCounter) CountByClass(_ context.Context, _ string) (int, error) {
	return s.students, nil
}

func seededClassRepo() *mockClassRepo {
	return &mockClassRepo{classes: map[string]*models.Class{
		"class-1": {ID: "class-1", Name: "Turma A", CreatedAt: time.Now(), UpdatedAt: time.Now()},
	}}
}

func TestClassCreateRejectsDuplicateName(t *testing.T) {
	repo := seededClassRepo()
	repo.nameTaken = true
	svc := NewClassService(repo, stubUserCounter{}, nil, zap.NewNop())

	_, err := svc.Create(context.Background(), ClassRequest{Name: "Turma A"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrConflict.Code, appErrors.FromError(err).Code)
}

func TestClassCreateTrimsName(t *testing.T) {
	repo := seededClassRepo()
	svc := NewClassService(repo, stubUserCounter{}, nil, zap.NewNop())

	class, err := svc.Create(context.Background(), ClassRequest{Name: "  Turma B  "})
	require.NoError(t, err)
	assert.Equal(t, "Turma B", class.Name)
	assert.NotEmpty(t, class.ID)
}

func TestClassDeleteRejectedWithStudents(t *testing.T) {
	repo := seededClassRepo()
	svc := NewClassService(repo, stubUserCounter{students: 3}, nil, zap.NewNop())

	err := svc.Delete(context.Background(), "class-1")
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrPreconditionFailed.Code, appErr.Code)
	assert.Empty(t, repo.deleted)
}

func TestClassDeleteRejectedWithExamsOrMaterials(t *testing.T) {
	repo := seededClassRepo()
	repo.exams = 2
	svc := NewClassService(repo, stubUserCounter{}, nil, zap.NewNop())

	err := svc.Delete(context.Background(), "class-1")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrPreconditionFailed.Code, appErrors.FromError(err).Code)

	repo.exams = 0
	repo.materials = 1
	err = svc.Delete(context.Background(), "class-1")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrPreconditionFailed.Code, appErrors.FromError(err).Code)
}

func TestClassDeleteEmptyClass(t *testing.T) {
	repo := seededClassRepo()
	svc := NewClassService(repo, stubUserCounter{}, nil, zap.NewNop())

	err := svc.Delete(context.Background(), "class-1")
	require.NoError(t, err)
	assert.Equal(t, []string{"class-1"}, repo.deleted)
}

func TestClassDeleteUnknownClass(t *testing.T) {
	svc := NewClassService(&mockClassRepo{}, stubUserCounter{}, nil, zap.NewNop())

	err := svc.Delete(context.Background(), "missing")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}
