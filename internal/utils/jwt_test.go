package utils

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateAndParseToken(t *testing.T) {
	service := NewJWTService("тестовый-секрет")
	userID := uuid.New()

	token, err := service.GenerateToken(userID, "Alice", "user")
	require.NoError(t, err)
	require.NotEmpty(t, token)

	claims, err := service.ParseClaims(token)
	require.NoError(t, err)

	assert.Equal(t, userID.String(), claims.UserID)
	assert.Equal(t, "Alice", claims.Name)
	assert.Equal(t, "user", claims.Role)
}

func TestParseClaimsWrongSecret(t *testing.T) {
	service := NewJWTService("секрет-один")
	token, err := service.GenerateToken(uuid.New(), "Alice", "user")
	require.NoError(t, err)

	other := NewJWTService("секрет-два")
	_, err = other.ParseClaims(token)
	assert.Error(t, err)
}

func TestParseClaimsGarbage(t *testing.T) {
	service := NewJWTService("секрет")

	_, err := service.ParseClaims("не-токен")
	assert.Error(t, err)
}

func TestExtractUserID(t *testing.T) {
	service := NewJWTService("секрет")
	userID := uuid.New()

	token, err := service.GenerateToken(userID, "Alice", "user")
	require.NoError(t, err)

	extracted, err := service.ExtractUserID(token)
	require.NoError(t, err)
	assert.Equal(t, userID.String(), extracted)
}
