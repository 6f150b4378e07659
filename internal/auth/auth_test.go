package auth_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tunonalves/sysprov/internal/auth"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(p, []byte(content), 0600))
	return p
}

func newTestAuthenticator(t *testing.T, shadow, group string) *auth.Authenticator {
	t.Helper()
	dir := t.TempDir()
	return &auth.Authenticator{
		ShadowPath: writeFile(t, dir, "shadow", shadow),
		GroupPath:  writeFile(t, dir, "group", group),
	}
}

func TestVerifyPasswordRoundTrip(t *testing.T) {
	hash, err := auth.HashPassword("s3cret")
	require.NoError(t, err)
	assert.Contains(t, hash, "$6$")

	a := newTestAuthenticator(t,
		"alice:"+hash+":19000:0:99999:7:::\n",
		"sudo:x:27:alice\n")

	assert.NoError(t, a.VerifyPassword("alice", "s3cret"))
	assert.ErrorIs(t, a.VerifyPassword("alice", "wrong"), auth.ErrInvalidCredentials)
	assert.ErrorIs(t, a.VerifyPassword("mallory", "s3cret"), auth.ErrInvalidCredentials)
}

func TestVerifyPasswordLocked(t *testing.T) {
	a := newTestAuthenticator(t,
		"locked:!$6$s$h:19000:0:99999:7:::\nstarred:*:19000:0:99999:7:::\nempty::19000:0:99999:7:::\n",
		"sudo:x:27:\n")

	assert.ErrorIs(t, a.VerifyPassword("locked", "x"), auth.ErrUserLocked)
	assert.ErrorIs(t, a.VerifyPassword("starred", "x"), auth.ErrUserLocked)
	assert.ErrorIs(t, a.VerifyPassword("empty", "x"), auth.ErrUserLocked)
}

func TestIsAdmin(t *testing.T) {
	a := newTestAuthenticator(t,
		"alice:*:19000:0:99999:7:::\n",
		"sudo:x:27:alice\nwheel:x:10:bob\nusers:x:100:carol\n")

	admin, err := a.IsAdmin("alice")
	require.NoError(t, err)
	assert.True(t, admin)

	admin, err = a.IsAdmin("bob")
	require.NoError(t, err)
	assert.True(t, admin)

	admin, err = a.IsAdmin("carol")
	require.NoError(t, err)
	assert.False(t, admin)
}

func TestJWTRoundTrip(t *testing.T) {
	secret := []byte("test-secret")
	tok, err := auth.SignHS256(secret, "alice", true, time.Hour)
	require.NoError(t, err)

	claims, err := auth.ParseHS256(secret, tok)
	require.NoError(t, err)
	assert.Equal(t, "alice", claims.Username)
	assert.True(t, claims.Admin)
	assert.Equal(t, auth.DefaultIssuer, claims.Issuer)
}

func TestJWTWrongSecret(t *testing.T) {
	tok, err := auth.SignHS256([]byte("right"), "alice", false, time.Hour)
	require.NoError(t, err)

	_, err = auth.ParseHS256([]byte("wrong"), tok)
	assert.Error(t, err)
}

func TestJWTExpired(t *testing.T) {
	secret := []byte("test-secret")
	// Past the 30s parse leeway.
	tok, err := auth.SignHS256(secret, "alice", false, -time.Minute)
	require.NoError(t, err)

	_, err = auth.ParseHS256(secret, tok)
	assert.Error(t, err)
}

func TestNewRandomSecretB64(t *testing.T) {
	a, err := auth.NewRandomSecretB64(32)
	require.NoError(t, err)
	b, err := auth.NewRandomSecretB64(32)
	require.NoError(t, err)
	assert.NotEqual(t, a, b)
	assert.NotEmpty(t, a)
}
