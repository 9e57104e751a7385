package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newAuthService() (*AuthService, *memStore) {
	st := newMemStore()
	return NewAuthService(st, "test-secret", time.Hour), st
}

func TestRegisterAndLogin(t *testing.T) {
	svc, _ := newAuthService()
	ctx := context.Background()

	user, err := svc.Register(ctx, &RegisterRequest{
		Username: "jdoe",
		Email:    "jdoe@example.com",
		FullName: "Jane Doe",
		Password: "s3cret-pass",
	})
	require.NoError(t, err)
	assert.NotZero(t, user.ID)
	assert.NotEqual(t, "s3cret-pass", user.PasswordHash)

	token, err := svc.Login(ctx, &LoginRequest{Email: "jdoe@example.com", Password: "s3cret-pass"})
	require.NoError(t, err)
	require.NotEmpty(t, token)

	userID, err := svc.VerifyToken(token)
	require.NoError(t, err)
	assert.Equal(t, user.ID, userID)
}

func TestRegisterDuplicateEmail(t *testing.T) {
	svc, _ := newAuthService()
	ctx := context.Background()

	_, err := svc.Register(ctx, &RegisterRequest{Email: "jdoe@example.com", Password: "s3cret-pass"})
	require.NoError(t, err)

	_, err = svc.Register(ctx, &RegisterRequest{Email: "jdoe@example.com", Password: "other-pass"})
	assert.ErrorIs(t, err, ErrBusinessRule)
}

func TestLoginBadCredentials(t *testing.T) {
	svc, _ := newAuthService()
	ctx := context.Background()

	_, err := svc.Register(ctx, &RegisterRequest{Email: "jdoe@example.com", Password: "s3cret-pass"})
	require.NoError(t, err)

	// unknown email and wrong password are indistinguishable
	_, err = svc.Login(ctx, &LoginRequest{Email: "nobody@example.com", Password: "s3cret-pass"})
	wrongEmail := err
	assert.ErrorIs(t, err, ErrUnauthorized)

	_, err = svc.Login(ctx, &LoginRequest{Email: "jdoe@example.com", Password: "wrong"})
	assert.ErrorIs(t, err, ErrUnauthorized)
	assert.Equal(t, wrongEmail.Error(), err.Error())
}

func TestVerifyTokenRejectsGarbage(t *testing.T) {
	svc, _ := newAuthService()

	_, err := svc.VerifyToken("not-a-token")
	assert.ErrorIs(t, err, ErrUnauthorized)
}

func TestVerifyTokenRejectsForeignSecret(t *testing.T) {
	svc, _ := newAuthService()
	other := NewAuthService(newMemStore(), "different-secret", time.Hour)
	ctx := context.Background()

	_, err := other.Register(ctx, &RegisterRequest{Email: "jdoe@example.com", Password: "s3cret-pass"})
	require.NoError(t, err)
	token, err := other.Login(ctx, &LoginRequest{Email: "jdoe@example.com", Password: "s3cret-pass"})
	require.NoError(t, err)

	_, err = svc.VerifyToken(token)
	assert.ErrorIs(t, err, ErrUnauthorized)
}

func TestVerifyTokenRejectsExpired(t *testing.T) {
	st := newMemStore()
	svc := NewAuthService(st, "test-secret", -time.Minute)
	ctx := context.Background()

	_, err := svc.Register(ctx, &RegisterRequest{Email: "jdoe@example.com", Password: "s3cret-pass"})
	require.NoError(t, err)
	token, err := svc.Login(ctx, &LoginRequest{Email: "jdoe@example.com", Password: "s3cret-pass"})
	require.NoError(t, err)

	_, err = svc.VerifyToken(token)
	assert.ErrorIs(t, err, ErrUnauthorized)
}

func TestGetUser(t *testing.T) {
	svc, _ := newAuthService()
	ctx := context.Background()

	user, err := svc.Register(ctx, &RegisterRequest{Email: "jdoe@example.com", Password: "s3cret-pass"})
	require.NoError(t, err)

	got, err := svc.GetUser(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, user.Email, got.Email)

	_, err = svc.GetUser(ctx, 9999)
	assert.ErrorIs(t, err, ErrNotFound)
}
