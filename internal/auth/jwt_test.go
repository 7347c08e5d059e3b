package auth

import (
	"context"
	"testing"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/minimeet/backend/internal/models"
)

func testUser(role models.Role) *models.User {
	return &models.User{ID: uuid.New(), Email: "ada@example.com", FullName: "Ada", Role: role}
}

func TestJWTRoundTrip(t *testing.T) {
	s := NewJWTService("secret", 1)
	u := testUser(models.RoleTeacher)

	token, err := s.Generate(u)
	require.NoError(t, err)

	claims, err := s.Validate(token)
	require.NoError(t, err)
	assert.Equal(t, u.ID, claims.UserID)
	assert.Equal(t, "Ada", claims.Name)
	assert.Equal(t, models.RoleTeacher, claims.Role)
	assert.Equal(t, issuer, claims.Issuer)
}

func TestJWTRejectsForeignAndExpiredTokens(t *testing.T) {
	token, err := NewJWTService("other", 1).Generate(testUser(models.RoleStudent))
	require.NoError(t, err)
	_, err = NewJWTService("secret", 1).Validate(token)
	assert.ErrorIs(t, err, ErrInvalidToken)

	expired := NewJWTService("secret", -1)
	token, err = expired.Generate(testUser(models.RoleStudent))
	require.NoError(t, err)
	_, err = expired.Validate(token)
	assert.ErrorIs(t, err, ErrTokenExpired)

	_, err = expired.Validate("not.a.token")
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestJWTRejectsOtherIssuerAndAlgorithm(t *testing.T) {
	s := NewJWTService("secret", 1)

	foreign := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		UserID:           uuid.New(),
		RegisteredClaims: jwt.RegisteredClaims{Issuer: "someone-else"},
	})
	token, err := foreign.SignedString([]byte("secret"))
	require.NoError(t, err)
	_, err = s.Validate(token)
	assert.ErrorIs(t, err, ErrInvalidToken)

	hs512 := jwt.NewWithClaims(jwt.SigningMethodHS512, Claims{
		UserID:           uuid.New(),
		RegisteredClaims: jwt.RegisteredClaims{Issuer: issuer},
	})
	token, err = hs512.SignedString([]byte("secret"))
	require.NoError(t, err)
	_, err = s.Validate(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

type stubUsers struct {
	UserStore
	users map[uuid.UUID]*models.User
}

func (s stubUsers) GetByID(_ context.Context, id uuid.UUID) (*models.User, error) {
	if u, ok := s.users[id]; ok {
		return u, nil
	}
	return nil, models.ErrNotFound
}

func TestIdentify(t *testing.T) {
	s := NewJWTService("secret", 1)
	u := testUser(models.RoleStudent)
	identify := Identify(s, stubUsers{users: map[uuid.UUID]*models.User{u.ID: u}})

	token, err := s.Generate(u)
	require.NoError(t, err)
	id, err := identify(context.Background(), token)
	require.NoError(t, err)
	assert.Equal(t, models.Identity{ID: u.ID, Name: "Ada", Email: "ada@example.com"}, id)

	ghost, err := s.Generate(testUser(models.RoleStudent))
	require.NoError(t, err)
	_, err = identify(context.Background(), ghost)
	assert.ErrorIs(t, err, models.ErrNotFound)

	_, err = identify(context.Background(), "bogus")
	assert.ErrorIs(t, err, ErrInvalidToken)
}
