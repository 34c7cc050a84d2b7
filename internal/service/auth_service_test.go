package service

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/atz-edu/enroll-api/internal/models"
	"github.com/atz-edu/enroll-api/pkg/config"
)

type stubOperatorStore struct {
	operator *models.Operator
}

func (s *stubOperatorStore) FindByEmail(_ context.Context, email string) (*models.Operator, error) {
	if s.operator == nil || s.operator.Email != email {
		return nil, sql.ErrNoRows
	}
	return s.operator, nil
}

func testJWTConfig() config.JWTConfig {
	return config.JWTConfig{Secret: "test-secret", Expiration: time.Hour, Issuer: "enroll-api"}
}

func testOperator(t *testing.T, password string) *models.Operator {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	require.NoError(t, err)
	return &models.Operator{
		ID:           "op-1",
		Email:        "admin@example.com",
		FullName:     "Admin",
		PasswordHash: string(hash),
		Role:         models.RoleAdmin,
		Active:       true,
	}
}

func TestLoginSuccess(t *testing.T) {
	store := &stubOperatorStore{operator: testOperator(t, "s3cret")}
	svc := NewAuthService(store, nil, testJWTConfig(), nil)

	resp, err := svc.Login(context.Background(), models.LoginRequest{
		Email:    "admin@example.com",
		Password: "s3cret",
	})
	require.NoError(t, err)
	assert.NotEmpty(t, resp.AccessToken)
	assert.Equal(t, "op-1", resp.Operator.ID)

	claims, err := svc.ValidateToken(resp.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, "op-1", claims.OperatorID)
	assert.Equal(t, models.RoleAdmin, claims.Role)
}

func TestLoginWrongPassword(t *testing.T) {
	store := &stubOperatorStore{operator: testOperator(t, "s3cret")}
	svc := NewAuthService(store, nil, testJWTConfig(), nil)

	_, err := svc.Login(context.Background(), models.LoginRequest{
		Email:    "admin@example.com",
		Password: "nope",
	})
	require.Error(t, err)
}

func TestLoginUnknownEmail(t *testing.T) {
	svc := NewAuthService(&stubOperatorStore{}, nil, testJWTConfig(), nil)
	_, err := svc.Login(context.Background(), models.LoginRequest{
		Email:    "ghost@example.com",
		Password: "whatever",
	})
	require.Error(t, err)
}

func TestLoginInactiveAccount(t *testing.T) {
	op := testOperator(t, "s3cret")
	op.Active = false
	svc := NewAuthService(&stubOperatorStore{operator: op}, nil, testJWTConfig(), nil)

	_, err := svc.Login(context.Background(), models.LoginRequest{
		Email:    "admin@example.com",
		Password: "s3cret",
	})
	require.Error(t, err)
}

func TestValidateTokenRejectsTampering(t *testing.T) {
	store := &stubOperatorStore{operator: testOperator(t, "s3cret")}
	svc := NewAuthService(store, nil, testJWTConfig(), nil)

	resp, err := svc.Login(context.Background(), models.LoginRequest{
		Email:    "admin@example.com",
		Password: "s3cret",
	})
	require.NoError(t, err)

	other := NewAuthService(store, nil, config.JWTConfig{Secret: "different", Expiration: time.Hour}, nil)
	_, err = other.ValidateToken(resp.AccessToken)
	assert.Error(t, err)
}
