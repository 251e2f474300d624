package auth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestIssuer_RoundTrip(t *testing.T) {
	issuer, err := NewIssuer("test-secret", time.Hour)
	require.NoError(t, err)

	token, id, err := issuer.GenerateToken(7, "ana@example.org", "ADMIN")
	require.NoError(t, err)
	require.NotEmpty(t, id)

	claims, err := issuer.ValidateToken(token)
	require.NoError(t, err)
	require.Equal(t, int64(7), claims.UserID)
	require.Equal(t, "ana@example.org", claims.Email)
	require.Equal(t, "ADMIN", claims.Role)
	require.Equal(t, id, claims.ID)
}

func TestIssuer_RejectsForeignAndExpiredTokens(t *testing.T) {
	issuer, err := NewIssuer("secret-a", time.Minute)
	require.NoError(t, err)
	other, err := NewIssuer("secret-b", time.Minute)
	require.NoError(t, err)

	token, _, err := other.GenerateToken(1, "a@b.c", "USER")
	require.NoError(t, err)
	_, err = issuer.ValidateToken(token)
	require.Error(t, err)

	token, _, err = issuer.GenerateToken(1, "a@b.c", "USER")
	require.NoError(t, err)
	issuer.now = func() time.Time { return time.Now().Add(2 * time.Minute) }
	_, err = issuer.ValidateToken(token)
	require.Error(t, err)

	_, err = issuer.ValidateToken("not-a-token")
	require.Error(t, err)
}

func TestNewIssuer_RequiresSecret(t *testing.T) {
	_, err := NewIssuer("", time.Hour)
	require.Error(t, err)
}

func TestPasswordHash(t *testing.T) {
	hash, err := HashPassword("s3cret!")
	require.NoError(t, err)
	require.NotEqual(t, "s3cret!", hash)

	require.True(t, VerifyPassword(hash, "s3cret!"))
	require.False(t, VerifyPassword(hash, "wrong"))
	require.False(t, VerifyPassword("garbage", "s3cret!"))
}
