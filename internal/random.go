package internal

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"math/big"
	"strings"

	"github.com/google/uuid"
)

const (
	// PKCEVerifierMinLength and PKCEVerifierMaxLength bound RFC 7636 verifiers.
	PKCEVerifierMinLength = 43
	PKCEVerifierMaxLength = 128

	// VerificationCodeLength is the number of characters in an emailed code.
	VerificationCodeLength = 6

	sessionKeyLength = 36

	// RFC 7636 section 4.1 unreserved characters.
	pkceAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789-._~"
	// Upper-case alphanumerics without 0/O and 1/I so codes survive retyping.
	codeAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"
)

// PKCE challenge methods.
const (
	PKCEMethodPlain = "plain"
	PKCEMethodS256  = "S256"
)

// NewSessionKey returns a random v4 UUID in canonical form.
func NewSessionKey() string {
	return uuid.NewString()
}

// ValidateSessionKeyFormat reports whether s is a canonical hyphenated UUID.
// It does not check that the key exists anywhere.
func ValidateSessionKeyFormat(s string) bool {
	if len(s) != sessionKeyLength {
		return false
	}
	_, err := uuid.Parse(s)
	return err == nil
}

// NewPKCEVerifier returns a random code verifier of the given length.
func NewPKCEVerifier(length int) (string, error) {
	if length < PKCEVerifierMinLength || length > PKCEVerifierMaxLength {
		return "", errors.New("invalid pkce verifier length")
	}
	return randomString(pkceAlphabet, length)
}

// PKCEChallenge derives the code challenge for verifier.
func PKCEChallenge(verifier, method string) (string, error) {
	switch method {
	case PKCEMethodPlain, "":
		return verifier, nil
	case PKCEMethodS256:
		sum := sha256.Sum256([]byte(verifier))
		return base64.RawURLEncoding.EncodeToString(sum[:]), nil
	default:
		return "", errors.New("unsupported pkce challenge method")
	}
}

// NewVerificationCode returns a short human-typable code for email
// verification.
func NewVerificationCode() (string, error) {
	return randomString(codeAlphabet, VerificationCodeLength)
}

func randomString(alphabet string, length int) (string, error) {
	var b strings.Builder
	b.Grow(length)

	max := big.NewInt(int64(len(alphabet)))
	for i := 0; i < length; i++ {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", err
		}
		b.WriteByte(alphabet[n.Int64()])
	}
	return b.String(), nil
}
