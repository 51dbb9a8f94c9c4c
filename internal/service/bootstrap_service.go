package service

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/noah-isme/escola-api/internal/models"
	appErrors "github.com/noah-isme/escola-api/pkg/errors"
)

type schemaRepository interface {
	EnsureSchema(ctx context.Context) error
}

type bootstrapUserRepository interface {
	FindByLogin(ctx context.Context, login string) (*models.User, error)
	Create(ctx context.Context, user *models.User) error
}

// BootstrapConfig holds the seed credentials for the first administrator.
type BootstrapConfig struct {
	AdminLogin    string
	AdminName     string
	AdminPassword string
}

// BootstrapResult reports what the initialization call did.
type BootstrapResult struct {
	SchemaEnsured bool   `json:"schema_ensured"`
	AdminCreated  bool   `json:"admin_created"`
	AdminLogin    string `json:"admin_login"`
}

// BootstrapService prepares the database schema and seeds the initial
// administrator account. Every operation is idempotent so the endpoint can
// be called repeatedly without side effects.
type BootstrapService struct {
	schema schemaRepository
	users  bootstrapUserRepository
	logger *zap.Logger
	config BootstrapConfig
}

// NewBootstrapService constructs a BootstrapService instance.
func NewBootstrapService(schema schemaRepository, users bootstrapUserRepository, logger *zap.Logger, config BootstrapConfig) *BootstrapService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &BootstrapService{schema: schema, users: users, logger: logger, config: config}
}

// Initialize creates missing tables and seeds the administrator account.
// The seeded admin is flagged for mandatory password rotation on first login.
func (s *BootstrapService) Initialize(ctx context.Context) (*BootstrapResult, error) {
	if err := s.schema.EnsureSchema(ctx); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to ensure schema")
	}

	result := &BootstrapResult{SchemaEnsured: true, AdminLogin: s.config.AdminLogin}

	_, err := s.users.FindByLogin(ctx, s.config.AdminLogin)
	if err == nil {
		s.logger.Info("bootstrap admin already present", zap.String("login", s.config.AdminLogin))
		return result, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check admin account")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(s.config.AdminPassword), bcrypt.DefaultCost)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to hash admin password")
	}

	now := time.Now().UTC()
	admin := &models.User{
		FullName:           s.config.AdminName,
		Login:              s.config.AdminLogin,
		PasswordHash:       string(hash),
		Role:               models.RoleAdmin,
		Active:             true,
		MustChangePassword: true,
		CreatedAt:          now,
		UpdatedAt:          now,
	}

	if err := s.users.Create(ctx, admin); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create admin account")
	}

	result.AdminCreated = true
	s.logger.Info("seeded bootstrap admin account",
		zap.String("login", s.config.AdminLogin),
		zap.Bool("must_change_password", true))
	return result, nil
}
