package auth

import (
	"context"
	"net/http/httptest"
	"testing"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func signedToken(t *testing.T, claims jwt.MapClaims) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	s, err := token.SignedString([]byte("test-key"))
	require.NoError(t, err)
	return s
}

func TestExtractTokenFromRequest(t *testing.T) {
	r := httptest.NewRequest("GET", "/tickets", nil)
	r.Header.Set("Authorization", "Bearer abc.def.ghi")

	token, err := ExtractTokenFromRequest(r)
	require.NoError(t, err)
	assert.Equal(t, "abc.def.ghi", token)

	r.Header.Set("Authorization", "Basic dXNlcg==")
	_, err = ExtractTokenFromRequest(r)
	assert.Error(t, err)

	r.Header.Del("Authorization")
	_, err = ExtractTokenFromRequest(r)
	assert.Error(t, err)
}

func TestExtractUserIDFromJWT(t *testing.T) {
	token := signedToken(t, jwt.MapClaims{"sub": "user-42"})

	sub, err := ExtractUserIDFromJWT(token)
	require.NoError(t, err)
	assert.Equal(t, "user-42", sub)

	_, err = ExtractUserIDFromJWT(signedToken(t, jwt.MapClaims{"aud": "x"}))
	assert.Error(t, err)

	_, err = ExtractUserIDFromJWT("not-a-token")
	assert.Error(t, err)
}

func TestHasRoleIsCaseInsensitive(t *testing.T) {
	ctx := WithUser(context.Background(), "user-1", "Staff", "scanner")

	assert.True(t, HasRole(ctx, "staff"))
	assert.True(t, HasRole(ctx, "SCANNER"))
	assert.False(t, HasRole(ctx, "admin"))
	assert.False(t, HasRole(context.Background(), "staff"))

	assert.Equal(t, "user-1", UserID(ctx))
	assert.Empty(t, UserID(context.Background()))
}
