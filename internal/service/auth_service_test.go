package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/noah-isme/campus-activity-api/internal/models"
	appErrors "github.com/noah-isme/campus-activity-api/pkg/errors"
)

type userRepoMock struct {
	users map[string]models.User
}

func newUserRepoMock() *userRepoMock {
	return &userRepoMock{users: make(map[string]models.User)}
}

func (m *userRepoMock) addUser(t *testing.T, username, password string, role models.UserRole, active bool) models.User {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	require.NoError(t, err)
	user := models.User{
		ID:           "user-" + username,
		Username:     username,
		PasswordHash: string(hash),
		Role:         role,
		Active:       active,
	}
	m.users[user.ID] = user
	return user
}

func (m *userRepoMock) FindByUsername(ctx context.Context, username string) (*models.User, error) {
	for _, u := range m.users {
		if u.Username == username {
			copy := u
			return &copy, nil
		}
	}
	return nil, nil
}

func (m *userRepoMock) FindByID(ctx context.Context, id string) (*models.User, error) {
	if u, ok := m.users[id]; ok {
		return &u, nil
	}
	return nil, nil
}

func (m *userRepoMock) Create(ctx context.Context, user *models.User) error {
	if user.ID == "" {
		user.ID = "user-" + user.Username
	}
	m.users[user.ID] = *user
	return nil
}

func (m *userRepoMock) UpdateLastLogin(ctx context.Context, id string, at time.Time) error {
	u := m.users[id]
	u.LastLogin = &at
	m.users[id] = u
	return nil
}

type auditMock struct {
	entries []models.AuditLog
}

func (m *auditMock) Create(ctx context.Context, entry *models.AuditLog) error {
	m.entries = append(m.entries, *entry)
	return nil
}

func newAuthService(users *userRepoMock, audit *auditMock) *AuthService {
	return NewAuthService(users, audit, "test-secret", time.Hour, "campus-activity-api", nil, nil)
}

func TestLoginIssuesToken(t *testing.T) {
	users := newUserRepoMock()
	users.addUser(t, "alice", "correct horse", models.RoleStudent, true)
	audit := &auditMock{}
	svc := newAuthService(users, audit)

	resp, err := svc.Login(context.Background(), models.LoginRequest{Username: "alice", Password: "correct horse"})
	require.NoError(t, err)
	assert.NotEmpty(t, resp.AccessToken)
	assert.Equal(t, models.RoleStudent, resp.User.Role)
	assert.Equal(t, int64(3600), resp.ExpiresIn)
	require.Len(t, audit.entries, 1)
	assert.Equal(t, models.AuditActionLogin, audit.entries[0].Action)

	claims, err := svc.ValidateToken(resp.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, "alice", claims.Username)
	assert.Equal(t, models.RoleStudent, claims.Role)
}

func TestLoginRejectsWrongPassword(t *testing.T) {
	users := newUserRepoMock()
	users.addUser(t, "alice", "correct horse", models.RoleStudent, true)
	svc := newAuthService(users, nil)

	_, err := svc.Login(context.Background(), models.LoginRequest{Username: "alice", Password: "wrong"})
	assert.True(t, appErrors.Is(err, appErrors.ErrInvalidCredentials))
}

func TestLoginRejectsUnknownUser(t *testing.T) {
	svc := newAuthService(newUserRepoMock(), nil)

	_, err := svc.Login(context.Background(), models.LoginRequest{Username: "ghost", Password: "whatever"})
	assert.True(t, appErrors.Is(err, appErrors.ErrInvalidCredentials))
}

func TestLoginRejectsInactiveAccount(t *testing.T) {
	users := newUserRepoMock()
	users.addUser(t, "alice", "correct horse", models.RoleStudent, false)
	svc := newAuthService(users, nil)

	_, err := svc.Login(context.Background(), models.LoginRequest{Username: "alice", Password: "correct horse"})
	assert.True(t, appErrors.Is(err, appErrors.ErrInactiveAccount))
}

func TestValidateTokenRejectsGarbage(t *testing.T) {
	svc := newAuthService(newUserRepoMock(), nil)

	_, err := svc.ValidateToken("not-a-token")
	assert.True(t, appErrors.Is(err, appErrors.ErrUnauthorized))
}

func TestRegisterHashesPassword(t *testing.T) {
	users := newUserRepoMock()
	svc := newAuthService(users, &auditMock{})

	user, err := svc.Register(context.Background(), "admin-1", RegisterRequest{
		Username: "newstudent", Password: "longenough", Role: models.RoleStudent,
	})
	require.NoError(t, err)
	assert.NotEqual(t, "longenough", user.PasswordHash)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte("longenough")))
	assert.True(t, user.Active)
}

func TestRegisterRejectsDuplicateUsername(t *testing.T) {
	users := newUserRepoMock()
	users.addUser(t, "alice", "correct horse", models.RoleStudent, true)
	svc := newAuthService(users, nil)

	_, err := svc.Register(context.Background(), "admin-1", RegisterRequest{
		Username: "alice", Password: "longenough", Role: models.RoleStudent,
	})
	assert.True(t, appErrors.Is(err, appErrors.ErrConflict))
}

func TestRegisterRejectsUnknownRole(t *testing.T) {
	svc := newAuthService(newUserRepoMock(), nil)

	_, err := svc.Register(context.Background(), "admin-1", RegisterRequest{
		Username: "bob", Password: "longenough", Role: "SUPERUSER",
	})
	assert.True(t, appErrors.Is(err, appErrors.ErrValidation))
}
