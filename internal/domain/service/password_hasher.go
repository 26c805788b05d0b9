package service

import (
	"context"
	"errors"
)

var (
	// ErrEncoding is returned when a plaintext cannot be processed by the hashing primitive,
	// for example because it contains a NUL byte or exceeds the primitive's input limit.
	ErrEncoding = errors.New("credential cannot be encoded")

	// ErrMalformedDigest is returned when a stored digest cannot be parsed.
	// It signals storage corruption, not a wrong password.
	ErrMalformedDigest = errors.New("credential digest is malformed")
)

// PasswordHasher defines the interface for password hashing and verification.
//
// Hash returns a self-contained digest embedding algorithm, cost and a fresh
// random salt, so hashing the same password twice yields different digests.
//
// Verify reports whether password matches digest. A mismatch is (false, nil);
// an unparsable digest is (false, ErrMalformedDigest).
//
// NeedsRehash reports whether a digest was produced with parameters other than
// the current ones, so callers can upgrade it after a successful Verify.
type PasswordHasher interface {
	Hash(ctx context.Context, password string) (string, error)
	Verify(ctx context.Context, password, digest string) (bool, error)
	NeedsRehash(digest string) bool
}
