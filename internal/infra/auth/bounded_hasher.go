package auth

import (
	"context"
	"log/slog"
	"runtime"

	"userapi/config"
	"userapi/internal/domain/service"
	"userapi/internal/errors"

	"go.uber.org/fx"
	"golang.org/x/sync/semaphore"
)

// BoundedHasher caps the number of concurrent hash and verify computations.
// ctx only bounds the wait for a slot; a computation runs to completion once started.
type BoundedHasher struct {
	next  service.PasswordHasher
	slots *semaphore.Weighted
	limit int
}

// NewBoundedHasher wraps next so that at most limit computations run at once.
// A non-positive limit means runtime.NumCPU().
func NewBoundedHasher(next service.PasswordHasher, limit int) *BoundedHasher {
	if limit <= 0 {
		limit = runtime.NumCPU()
	}

	return &BoundedHasher{
		next:  next,
		slots: semaphore.NewWeighted(int64(limit)),
		limit: limit,
	}
}

// Limit returns the maximum number of concurrent computations.
func (h *BoundedHasher) Limit() int {
	return h.limit
}

func (h *BoundedHasher) Hash(ctx context.Context, password string) (string, error) {
	if err := h.slots.Acquire(ctx, 1); err != nil {
		return "", errors.Wrap(err, "wait for hashing slot")
	}
	defer h.slots.Release(1)

	return h.next.Hash(ctx, password)
}

func (h *BoundedHasher) Verify(ctx context.Context, password, digest string) (bool, error) {
	if err := h.slots.Acquire(ctx, 1); err != nil {
		return false, errors.Wrap(err, "wait for hashing slot")
	}
	defer h.slots.Release(1)

	return h.next.Verify(ctx, password, digest)
}

func (h *BoundedHasher) NeedsRehash(digest string) bool {
	return h.next.NeedsRehash(digest)
}

// HasherParams holds dependencies for the password hasher, injected by Fx.
type HasherParams struct {
	fx.In

	Config *config.Config
	Logger *slog.Logger
}

// NewPasswordHasher builds the bcrypt hasher from auth configuration behind a bounded pool.
func NewPasswordHasher(params HasherParams) (service.PasswordHasher, error) {
	cost := config.DefaultBcryptCost
	concurrency := 0
	if params.Config.Auth != nil {
		if params.Config.Auth.BcryptCost != 0 {
			cost = params.Config.Auth.BcryptCost
		}
		concurrency = params.Config.Auth.HashConcurrency
	}

	hasher, err := NewBcryptHasher(cost)
	if err != nil {
		return nil, err
	}

	bounded := NewBoundedHasher(hasher, concurrency)
	params.Logger.Info("Password hasher initialized",
		slog.Int("bcrypt_cost", hasher.Cost()),
		slog.Int("concurrency", bounded.Limit()),
	)

	return bounded, nil
}
