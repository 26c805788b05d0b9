// Package auth provides concrete implementations for credential-related domain services.
package auth

import (
	"context"
	"strings"

	"userapi/internal/domain/service"
	"userapi/internal/errors"

	"golang.org/x/crypto/bcrypt"
)

// MaxPasswordBytes is the bcrypt input limit. Longer inputs are rejected instead of truncated.
const MaxPasswordBytes = 72

const (
	digestLength = 60
	// "$2a$12$" precedes the 22-character salt and 31-character hash.
	digestHeaderLength = 7
	bcryptAlphabet     = "./ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"
)

// BcryptHasher implements service.PasswordHasher with bcrypt.
// Digests use the modular crypt format ($2a$<cost>$<salt><hash>, 60 characters),
// so cost and salt travel with the digest and no separate salt storage exists.
type BcryptHasher struct {
	cost int
}

// NewBcryptHasher returns a hasher using cost as the bcrypt work factor.
func NewBcryptHasher(cost int) (*BcryptHasher, error) {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		return nil, errors.Errorf("bcrypt cost %d outside [%d, %d]", cost, bcrypt.MinCost, bcrypt.MaxCost)
	}

	return &BcryptHasher{cost: cost}, nil
}

// Cost returns the work factor new digests are produced with.
func (h *BcryptHasher) Cost() int {
	return h.cost
}

// Hash generates a salted digest of password. bcrypt draws a fresh random salt per call.
// The empty string is hashed like any other input.
func (h *BcryptHasher) Hash(_ context.Context, password string) (string, error) {
	if strings.IndexByte(password, 0) >= 0 {
		return "", errors.Wrap(service.ErrEncoding, "password contains a NUL byte")
	}
	if len(password) > MaxPasswordBytes {
		return "", errors.Wrapf(service.ErrEncoding, "password is longer than %d bytes", MaxPasswordBytes)
	}

	digest, err := bcrypt.GenerateFromPassword([]byte(password), h.cost)
	if err != nil {
		if errors.Is(err, bcrypt.ErrPasswordTooLong) {
			return "", errors.Wrap(service.ErrEncoding, err.Error())
		}

		return "", errors.Wrap(err, "bcrypt generate")
	}

	return string(digest), nil
}

// Verify re-derives the hash with the cost and salt embedded in digest and compares
// in constant time. Inputs longer than MaxPasswordBytes never match, since Hash refuses them.
func (h *BcryptHasher) Verify(_ context.Context, password, digest string) (bool, error) {
	if err := checkDigestShape(digest); err != nil {
		return false, err
	}

	err := bcrypt.CompareHashAndPassword([]byte(digest), []byte(password))
	switch {
	case err == nil:
		return len(password) <= MaxPasswordBytes, nil
	case errors.IsAny(err, bcrypt.ErrMismatchedHashAndPassword, bcrypt.ErrPasswordTooLong):
		return false, nil
	default:
		return false, errors.Wrap(service.ErrMalformedDigest, err.Error())
	}
}

// checkDigestShape rejects digests bcrypt would still parse: a truncated tail or a hash
// segment outside the bcrypt base64 alphabet.
func checkDigestShape(digest string) error {
	if len(digest) != digestLength {
		return errors.Wrapf(service.ErrMalformedDigest, "digest is %d characters, want %d", len(digest), digestLength)
	}

	if i := strings.IndexFunc(digest[digestHeaderLength:], func(r rune) bool {
		return !strings.ContainsRune(bcryptAlphabet, r)
	}); i >= 0 {
		return errors.Wrapf(service.ErrMalformedDigest, "invalid character at offset %d", digestHeaderLength+i)
	}

	return nil
}

// NeedsRehash reports whether digest was produced with a cost other than the configured one.
// Unparsable digests report false; Verify surfaces those.
func (h *BcryptHasher) NeedsRehash(digest string) bool {
	cost, err := bcrypt.Cost([]byte(digest))
	if err != nil {
		return false
	}

	return cost != h.cost
}
