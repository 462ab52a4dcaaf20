package password

import (
	"crypto/sha256"
	"encoding/hex"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/pbkdf2"
)

func TestNew_EmptySecret(t *testing.T) {
	_, err := New("")
	assert.Error(t, err)
}

func TestDerive(t *testing.T) {
	s, err := New("secret")
	require.NoError(t, err)

	digest := s.Derive("abc")
	assert.Len(t, digest, 2*KeyLength)
	assert.NotEqual(t, "abc", digest)
	assert.Equal(t, digest, s.Derive("abc"), "derivation must be deterministic")

	expected := hex.EncodeToString(pbkdf2.Key([]byte("abc"), []byte("secret"), 1024, 64, sha256.New))
	assert.Equal(t, expected, digest)

	other, err := New("other secret")
	require.NoError(t, err)
	assert.NotEqual(t, digest, other.Derive("abc"), "the secret salts the digest")
}

func TestVerify(t *testing.T) {
	s, err := New("secret")
	require.NoError(t, err)
	digest := s.Derive("password1")

	assert.True(t, s.Verify("password1", digest))
	for _, candidate := range []string{"", "password2", "Password1", "password1 ", "password"} {
		assert.False(t, s.Verify(candidate, digest), "candidate %q", candidate)
	}
	assert.False(t, s.Verify("password1", ""))
	assert.False(t, s.Verify("password1", digest[:len(digest)-1]))
}
