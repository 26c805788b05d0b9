// Package repository defines the interfaces for the persistence layer.
// These interfaces act as a contract between the domain/application layers and the infrastructure layer.
package repository

import (
	"context"
	"errors"

	"userapi/internal/domain/entity"
)

// ErrUserNotFound is a domain-specific error returned when a user is not found.
var ErrUserNotFound = errors.New("user not found")

// UserRepository defines the standard operations for user persistence.
// The application layer will depend on this interface, not the concrete implementation.
type UserRepository interface {
	// FindByID retrieves a single user by their identifier.
	FindByID(ctx context.Context, id int64) (*entity.User, error)

	// FindByUsername retrieves a single user by their exact username.
	FindByUsername(ctx context.Context, username string) (*entity.User, error)

	// FindByEmail retrieves a single user by their email address.
	FindByEmail(ctx context.Context, email string) (*entity.User, error)

	// List returns at most limit users ordered by id, skipping the first skip rows.
	List(ctx context.Context, skip, limit int) ([]*entity.User, error)

	// Create persists a new user and fills in the generated ID and timestamps.
	Create(ctx context.Context, user *entity.User) error

	// Update applies changes to the user with the given id and returns the stored result.
	Update(ctx context.Context, id int64, changes entity.UserChanges) (*entity.User, error)
}
