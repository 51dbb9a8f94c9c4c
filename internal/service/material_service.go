package service

import (
	"context"
	"database/sql"
	"errors"
	"io"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/escola-api/internal/models"
	appErrors "github.com/noah-isme/escola-api/pkg/errors"
	"github.com/noah-isme/escola-api/pkg/storage"
)

type materialRepository interface {
	Create(ctx context.Context, material *models.Material) error
	FindByID(ctx context.Context, id string) (*models.Material, error)
	List(ctx context.Context) ([]models.MaterialDetail, error)
	ListByClass(ctx context.Context, classID string) ([]models.Material, error)
	Delete(ctx context.Context, id string) error
}

type materialClassReader interface {
	FindByID(ctx context.Context, id string) (*models.Class, error)
}

// UploadMaterialRequest describes an incoming material upload.
type UploadMaterialRequest struct {
	Title    string `validate:"required,min=2,max=200"`
	ClassID  string `validate:"required,uuid"`
	Filename string `validate:"required"`
}

// MaterialService manages study material uploads and downloads.
type MaterialService struct {
	repo      materialRepository
	classes   materialClassReader
	store     *storage.UploadStore
	validator *validator.Validate
	logger    *zap.Logger
}

// NewMaterialService constructs a MaterialService instance.
func NewMaterialService(repo materialRepository, classes materialClassReader, store *storage.UploadStore, validate *validator.Validate, logger *zap.Logger) *MaterialService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	return &MaterialService{repo: repo, classes: classes, store: store, validator: validate, logger: logger}
}

// Upload stores the file on disk then records the material row. The stored
// name is sanitized and timestamp-prefixed so uploads never collide or
// escape the storage directory. If the database insert fails the file is
// removed again.
func (s *MaterialService) Upload(ctx context.Context, req UploadMaterialRequest, content io.Reader) (*models.Material, error) {
	req.Title = strings.TrimSpace(req.Title)
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid material payload")
	}

	if !s.store.Allowed(req.Filename) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "file type is not allowed")
	}

	if _, err := s.classes.FindByID(ctx, req.ClassID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "class not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to fetch class")
	}

	storedName := s.store.Sanitize(req.Filename, time.Now().UTC())
	if _, err := s.store.SaveStream(storedName, content); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to store file")
	}

	material := &models.Material{
		Title:      req.Title,
		StoredFile: storedName,
		ClassID:    req.ClassID,
		UploadedAt: time.Now().UTC(),
	}
	if err := s.repo.Create(ctx, material); err != nil {
		if removeErr := s.store.Delete(storedName); removeErr != nil {
			s.logger.Warn("failed to remove orphaned upload", zap.String("file", storedName), zap.Error(removeErr))
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to record material")
	}

	s.logger.Info("material uploaded",
		zap.String("material_id", material.ID),
		zap.String("class_id", material.ClassID),
		zap.String("file", storedName))
	return material, nil
}

// Get returns a material by ID.
func (s *MaterialService) Get(ctx context.Context, id string) (*models.Material, error) {
	material, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "material not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to fetch material")
	}
	return material, nil
}

// List returns all materials with class names for administrators.
func (s *MaterialService) List(ctx context.Context) ([]models.MaterialDetail, error) {
	materials, err := s.repo.List(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list materials")
	}
	return materials, nil
}

// ListForStudent returns the materials of the student's class.
func (s *MaterialService) ListForStudent(ctx context.Context, student *models.User) ([]models.Material, error) {
	if student.ClassID == nil {
		return []models.Material{}, nil
	}
	materials, err := s.repo.ListByClass(ctx, *student.ClassID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list class materials")
	}
	return materials, nil
}

// OpenFile resolves the material and opens its stored file for streaming.
// Students may only open materials of their own class.
func (s *MaterialService) OpenFile(ctx context.Context, id string, requester *models.User) (*models.Material, *os.File, error) {
	material, err := s.Get(ctx, id)
	if err != nil {
		return nil, nil, err
	}

	if requester.Role == models.RoleStudent {
		if requester.ClassID == nil || *requester.ClassID != material.ClassID {
			return nil, nil, appErrors.Clone(appErrors.ErrNotFound, "material not found")
		}
	}

	file, err := s.store.Open(material.StoredFile)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil, appErrors.Clone(appErrors.ErrNotFound, "stored file is missing")
		}
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to open file")
	}
	return material, file, nil
}

// Delete removes a material row and its stored file.
func (s *MaterialService) Delete(ctx context.Context, id string) error {
	material, err := s.Get(ctx, id)
	if err != nil {
		return err
	}

	if err := s.repo.Delete(ctx, id); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete material")
	}

	if err := s.store.Delete(material.StoredFile); err != nil && !errors.Is(err, os.ErrNotExist) {
		s.logger.Warn("failed to remove stored file", zap.String("file", material.StoredFile), zap.Error(err))
	}

	s.logger.Info("material deleted", zap.String("material_id", id))
	return nil
}
