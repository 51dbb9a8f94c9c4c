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

type mockAuthRepo struct {
	users          map[string]*models.User
	refreshTokens  map[string]*models.RefreshToken
	passwordSet    string
	revokedAll     []string
	auditLogs      []*models.AuditLog
	lastLoginSetAt *time.Time
}

func newMockAuthRepo() *mockAuthRepo {
	return &mockAuthRepo{
		users:         make(map[string]*models.User),
		refreshTokens: make(map[string]*models.RefreshToken),
	}
}

func (m *mockAuthRepo) addUser(user *models.User) {
	m.users[user.ID] = user
}

func (m *mockAuthRepo) FindByLogin(_ context.Context, login string) (*models.User, error) {
	for _, u := range m.users {
		if u.Login == login {
			copied := *u
			return &copied, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (m *mockAuthRepo) FindByID(_ context.Context, id string) (*models.User, error) {
	user, ok := m.users[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	copied := *user
	return &copied, nil
}

func (m *mockAuthRepo) UpdateLastLogin(_ context.Context, _ string, ts time.Time) error {
	m.lastLoginSetAt = &ts
	return nil
}

func (m *mockAuthRepo) UpdatePassword(_ context.Context, id, passwordHash string, _ time.Time) error {
	m.passwordSet = passwordHash
	if user, ok := m.users[id]; ok {
		user.PasswordHash = passwordHash
		user.MustChangePassword = false
	}
	return nil
}

func (m *mockAuthRepo) RevokeUserRefreshTokens(_ context.Context, userID string) error {
	m.revokedAll = append(m.revokedAll, userID)
	return nil
}

func (m *mockAuthRepo) CreateRefreshToken(_ context.Context, token *models.RefreshToken) error {
	m.refreshTokens[token.Token] = token
	return nil
}

func (m *mockAuthRepo) FindRefreshToken(_ context.Context, token string) (*models.RefreshToken, error) {
	stored, ok := m.refreshTokens[token]
	if !ok {
		return nil, sql.ErrNoRows
	}
	copied := *stored
	return &copied, nil
}

func (m *mockAuthRepo) RevokeRefreshToken(_ context.Context, id string, revokedAt time.Time) error {
	for _, token := range m.refreshTokens {
		if token.ID == id {
			token.Revoked = true
			token.RevokedAt = &revokedAt
		}
	}
	return nil
}

func (m *mockAuthRepo) CreateAuditLog(_ context.Context, log *models.AuditLog) error {
	m.auditLogs = append(m.auditLogs, log)
	return nil
}

func testAuthConfig() AuthConfig {
	return AuthConfig{
		AccessTokenSecret:  "test-secret",
		AccessTokenExpiry:  time.Hour,
		RefreshTokenExpiry: 24 * time.Hour,
		Issuer:             "escola-api",
	}
}

func seedUser(t *testing.T, repo *mockAuthRepo, login, password string, mustChange bool) *models.User {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	require.NoError(t, err)
	user := &models.User{
		ID:                 "user-" + login,
		Login:              login,
		FullName:           "Test User",
		PasswordHash:       string(hash),
		Role:               models.RoleStudent,
		Active:             true,
		MustChangePassword: mustChange,
	}
	repo.addUser(user)
	return user
}

func TestLoginSuccess(t *testing.T) {
	repo := newMockAuthRepo()
	seedUser(t, repo, "maria", "senha123", false)
	svc := NewAuthService(repo, nil, zap.NewNop(), testAuthConfig())

	res, err := svc.Login(context.Background(), models.LoginRequest{Login: "maria", Password: "senha123"})
	require.NoError(t, err)

	assert.NotEmpty(t, res.AccessToken)
	assert.NotEmpty(t, res.RefreshToken)
	assert.Equal(t, "maria", res.User.Login)
	assert.False(t, res.User.MustChangePassword)
	assert.NotNil(t, repo.lastLoginSetAt)
	require.Len(t, repo.auditLogs, 1)
	assert.Equal(t, models.AuditActionLogin, repo.auditLogs[0].Action)

	claims, err := svc.ValidateToken(res.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, "user-maria", claims.UserID)
	assert.Equal(t, models.RoleStudent, claims.Role)
}

func TestLoginUnknownAndWrongPasswordLookAlike(t *testing.T) {
	repo := newMockAuthRepo()
	seedUser(t, repo, "maria", "senha123", false)
	svc := NewAuthService(repo, nil, zap.NewNop(), testAuthConfig())

	_, errUnknown := svc.Login(context.Background(), models.LoginRequest{Login: "ghost", Password: "senha123"})
	_, errWrongPass := svc.Login(context.Background(), models.LoginRequest{Login: "maria", Password: "wrong"})

	require.Error(t, errUnknown)
	require.Error(t, errWrongPass)
	assert.Equal(t, appErrors.FromError(errUnknown).Code, appErrors.FromError(errWrongPass).Code)
	assert.Equal(t, appErrors.FromError(errUnknown).Message, appErrors.FromError(errWrongPass).Message)
}

func TestLoginInactiveAccount(t *testing.T) {
	repo := newMockAuthRepo()
	user := seedUser(t, repo, "maria", "senha123", false)
	user.Active = false
	svc := NewAuthService(repo, nil, zap.NewNop(), testAuthConfig())

	_, err := svc.Login(context.Background(), models.LoginRequest{Login: "maria", Password: "senha123"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrInactiveAccount.Code, appErrors.FromError(err).Code)
}

func TestLoginCarriesRotationFlagInClaims(t *testing.T) {
	repo := newMockAuthRepo()
	seedUser(t, repo, "admin", "123456", true)
	svc := NewAuthService(repo, nil, zap.NewNop(), testAuthConfig())

	res, err := svc.Login(context.Background(), models.LoginRequest{Login: "admin", Password: "123456"})
	require.NoError(t, err)
	assert.True(t, res.User.MustChangePassword)

	claims, err := svc.ValidateToken(res.AccessToken)
	require.NoError(t, err)
	assert.True(t, claims.MustChangePassword)
}

func TestRefreshRotatesToken(t *testing.T) {
	repo := newMockAuthRepo()
	seedUser(t, repo, "maria", "senha123", false)
	svc := NewAuthService(repo, nil, zap.NewNop(), testAuthConfig())

	login, err := svc.Login(context.Background(), models.LoginRequest{Login: "maria", Password: "senha123"})
	require.NoError(t, err)

	refreshed, err := svc.RefreshToken(context.Background(), models.RefreshTokenRequest{RefreshToken: login.RefreshToken})
	require.NoError(t, err)
	assert.NotEqual(t, login.RefreshToken, refreshed.RefreshToken)

	// The used token is revoked and cannot be replayed.
	_, err = svc.RefreshToken(context.Background(), models.RefreshTokenRequest{RefreshToken: login.RefreshToken})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrUnauthorized.Code, appErrors.FromError(err).Code)
}

func TestChangePasswordClearsRotationFlag(t *testing.T) {
	repo := newMockAuthRepo()
	user := seedUser(t, repo, "admin", "123456", true)
	svc := NewAuthService(repo, nil, zap.NewNop(), testAuthConfig())

	err := svc.ChangePassword(context.Background(), user.ID, models.ChangePasswordRequest{
		OldPassword: "123456",
		NewPassword: "new-password",
	})
	require.NoError(t, err)

	assert.False(t, repo.users[user.ID].MustChangePassword)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(repo.passwordSet), []byte("new-password")))
	assert.Contains(t, repo.revokedAll, user.ID)
}

func TestChangePasswordWrongOldPassword(t *testing.T) {
	repo := newMockAuthRepo()
	user := seedUser(t, repo, "admin", "123456", true)
	svc := NewAuthService(repo, nil, zap.NewNop(), testAuthConfig())

	err := svc.ChangePassword(context.Background(), user.ID, models.ChangePasswordRequest{
		OldPassword: "wrong",
		NewPassword: "new-password",
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)
	assert.True(t, repo.users[user.ID].MustChangePassword)
}

func TestValidateTokenRejectsTampered(t *testing.T) {
	repo := newMockAuthRepo()
	seedUser(t, repo, "maria", "senha123", false)
	svc := NewAuthService(repo, nil, zap.NewNop(), testAuthConfig())

	res, err := svc.Login(context.Background(), models.LoginRequest{Login: "maria", Password: "senha123"})
	require.NoError(t, err)

	otherSvc := NewAuthService(repo, nil, zap.NewNop(), AuthConfig{
		AccessTokenSecret: "different-secret",
		AccessTokenExpiry: time.Hour,
	})
	_, err = otherSvc.ValidateToken(res.AccessToken)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrUnauthorized.Code, appErrors.FromError(err).Code)
}
