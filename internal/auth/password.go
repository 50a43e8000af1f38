package auth

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

// Password schemes understood by Hasher.
const (
	SchemeSHA256 = "sha256"
	SchemeBcrypt = "bcrypt"
)

// HashPassword returns the unsalted SHA-256 hex digest of password. This is
// the default scheme and is deterministic: equal passwords give equal
// digests.
func HashPassword(password string) string {
	sum := sha256.Sum256([]byte(password))
	return hex.EncodeToString(sum[:])
}

// VerifyPassword recomputes the digest of password and compares it with
// digest in constant time. Bcrypt digests are recognised by their prefix.
func VerifyPassword(password, digest string) bool {
	if isBcrypt(digest) {
		return bcrypt.CompareHashAndPassword([]byte(digest), []byte(password)) == nil
	}
	got := HashPassword(password)
	return subtle.ConstantTimeCompare([]byte(got), []byte(strings.ToLower(digest))) == 1
}

// Hasher produces digests for new passwords with the configured scheme.
type Hasher struct {
	scheme     string
	bcryptCost int
}

// NewHasher builds a Hasher. An empty scheme means sha256.
func NewHasher(scheme string, bcryptCost int) (*Hasher, error) {
	switch strings.ToLower(strings.TrimSpace(scheme)) {
	case "", SchemeSHA256:
		return &Hasher{scheme: SchemeSHA256}, nil
	case SchemeBcrypt:
		if bcryptCost < bcrypt.MinCost || bcryptCost > bcrypt.MaxCost {
			bcryptCost = bcrypt.DefaultCost
		}
		return &Hasher{scheme: SchemeBcrypt, bcryptCost: bcryptCost}, nil
	}
	return nil, fmt.Errorf("unknown password scheme %q", scheme)
}

// Scheme returns the scheme used for new digests.
func (h *Hasher) Scheme() string { return h.scheme }

// Hash returns the digest of password for storage.
func (h *Hasher) Hash(password string) (string, error) {
	if h == nil || h.scheme == SchemeSHA256 {
		return HashPassword(password), nil
	}
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), h.bcryptCost)
	if err != nil {
		return "", err
	}
	return string(hashed), nil
}

// Verify checks password against a stored digest of either scheme.
func (h *Hasher) Verify(password, digest string) bool {
	return VerifyPassword(password, digest)
}

func isBcrypt(digest string) bool {
	return strings.HasPrefix(digest, "$2a$") || strings.HasPrefix(digest, "$2b$") || strings.HasPrefix(digest, "$2y$")
}
