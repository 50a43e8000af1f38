package auth

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func TestHashPassword_Deterministic(t *testing.T) {
	p1, p2 := "secret1", "secret2"

	assert.Equal(t, HashPassword(p1), HashPassword(p1))
	assert.NotEqual(t, HashPassword(p1), HashPassword(p2))
	assert.Len(t, HashPassword(p1), 64)
	assert.NotContains(t, HashPassword(p1), p1)

	// sha256("secret1")
	assert.Equal(t, "5b11618c2e44027877d0cd0921ed166b9f176f50587fc91e7534dd2946db77d6", HashPassword(p1))
}

func TestVerifyPassword(t *testing.T) {
	digest := HashPassword("secret1")
	assert.True(t, VerifyPassword("secret1", digest))
	assert.True(t, VerifyPassword("secret1", strings.ToUpper(digest)))
	assert.False(t, VerifyPassword("secret2", digest))
	assert.False(t, VerifyPassword("", digest))
	assert.False(t, VerifyPassword("secret1", ""))
}

func TestHasher_Schemes(t *testing.T) {
	def, err := NewHasher("", 0)
	require.NoError(t, err)
	assert.Equal(t, SchemeSHA256, def.Scheme())
	digest, err := def.Hash("secret1")
	require.NoError(t, err)
	assert.Equal(t, HashPassword("secret1"), digest)

	bc, err := NewHasher("bcrypt", bcrypt.MinCost)
	require.NoError(t, err)
	bDigest, err := bc.Hash("secret1")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(bDigest, "$2"))
	assert.True(t, bc.Verify("secret1", bDigest))
	assert.False(t, bc.Verify("secret2", bDigest))

	// Both kinds verify regardless of the configured scheme.
	assert.True(t, def.Verify("secret1", bDigest))
	assert.True(t, bc.Verify("secret1", digest))

	_, err = NewHasher("md5", 0)
	require.Error(t, err)
}
