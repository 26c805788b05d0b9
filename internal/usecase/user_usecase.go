// Package usecase contains the application-specific business rules.
// It orchestrates the domain layer to perform tasks.
package usecase

import (
	"context"
	"time"

	"userapi/internal/domain/entity"
)

// --- Input DTOs ---

// CreateUserInput defines the data required to register a new user.
type CreateUserInput struct {
	Username string `json:"username" validate:"required,min=3,max=50,username"`
	Email    string `json:"email" validate:"required,email,max=100"`
	Password string `json:"password" validate:"required,min=8,max=100,password"`
}

// UpdateUserInput carries optional changes; nil fields are left untouched.
type UpdateUserInput struct {
	Email    *string `json:"email" validate:"omitempty,email,max=100"`
	Password *string `json:"password" validate:"omitempty,min=8,max=100,password"`
}

// VerifyCredentialsInput is a username and candidate password pair.
type VerifyCredentialsInput struct {
	Username string `json:"username" validate:"required,max=50"`
	Password string `json:"password" validate:"required,max=100"`
}

// ListUsersInput selects a page of users ordered by id.
type ListUsersInput struct {
	Skip  int
	Limit int
}

// --- Output DTOs ---

// UserOutput is the public view of a user. It never carries the password digest.
type UserOutput struct {
	ID        int64     `json:"id"`
	Username  string    `json:"username"`
	Email     string    `json:"email"`
	CreatedAt time.Time `json:"created_at"`
}

// NewUserOutput maps a user entity to its public view.
func NewUserOutput(user *entity.User) *UserOutput {
	return &UserOutput{
		ID:        user.ID,
		Username:  user.Username,
		Email:     user.Email,
		CreatedAt: user.CreatedAt,
	}
}

// UserUsecase defines the interface for user-related business operations.
type UserUsecase interface {
	CreateUser(ctx context.Context, input *CreateUserInput) (*UserOutput, error)
	ListUsers(ctx context.Context, input *ListUsersInput) ([]*UserOutput, error)
	GetUser(ctx context.Context, id int64) (*UserOutput, error)
	UpdateUser(ctx context.Context, id int64, input *UpdateUserInput) (*UserOutput, error)
	VerifyCredentials(ctx context.Context, input *VerifyCredentialsInput) (*UserOutput, error)
}
