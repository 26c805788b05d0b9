package validator

import (
	"strings"
	"testing"

	domainerrors "userapi/internal/domain/errors"
	"userapi/internal/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type createInput struct {
	Username string  `json:"username" validate:"required,min=3,max=50,username"`
	Email    string  `json:"email" validate:"required,email,max=100"`
	Password string  `json:"password" validate:"required,min=8,max=100,password"`
	Nickname *string `json:"nickname,omitempty" validate:"omitempty,min=3"`
}

func fieldErrors(t *testing.T, err error) map[string]string {
	t.Helper()

	var validationErr *domainerrors.ValidationError
	require.True(t, errors.As(err, &validationErr), "err = %v", err)

	return validationErr.FieldErrors()
}

func TestValidator_Valid(t *testing.T) {
	v, err := New()
	require.NoError(t, err)

	tests := []createInput{
		{Username: "john_doe", Email: "john@example.com", Password: "s3cret-passw0rd"},
		{Username: "José_2", Email: "jose@example.com", Password: "contraseña-larga"},
		{Username: "abc", Email: "a@b.co", Password: strings.Repeat("x", 72)},
	}

	for _, input := range tests {
		assert.NoError(t, v.Validate(input), "input %+v", input)
	}
}

func TestValidator_UsesJSONFieldNames(t *testing.T) {
	v, err := New()
	require.NoError(t, err)

	fields := fieldErrors(t, v.Validate(createInput{}))
	assert.Contains(t, fields, "username")
	assert.Contains(t, fields, "email")
	assert.Contains(t, fields, "password")
	assert.Equal(t, "username is a required field", fields["username"])
}

func TestValidator_Username(t *testing.T) {
	v, err := New()
	require.NoError(t, err)

	tests := []struct {
		name     string
		username string
	}{
		{name: "too short", username: "ab"},
		{name: "too long", username: strings.Repeat("a", 51)},
		{name: "punctuation", username: "john.doe"},
		{name: "space", username: "john doe"},
		{name: "underscores only", username: "___"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fields := fieldErrors(t, v.Validate(createInput{
				Username: tt.username,
				Email:    "john@example.com",
				Password: "s3cret-passw0rd",
			}))
			assert.Len(t, fields, 1)
			assert.Contains(t, fields, "username")
		})
	}
}

func TestValidator_Password(t *testing.T) {
	v, err := New()
	require.NoError(t, err)

	tests := []struct {
		name     string
		password string
	}{
		{name: "too short", password: "short"},
		{name: "over 72 bytes", password: strings.Repeat("é", 40)},
		{name: "nul byte", password: "passw\x00rd-long"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fields := fieldErrors(t, v.Validate(createInput{
				Username: "john_doe",
				Email:    "john@example.com",
				Password: tt.password,
			}))
			assert.Contains(t, fields, "password")
		})
	}

	fields := fieldErrors(t, v.Validate(createInput{
		Username: "john_doe",
		Email:    "john@example.com",
		Password: strings.Repeat("é", 40),
	}))
	assert.Equal(t, "password must be at most 72 bytes and must not contain NUL characters", fields["password"])
}

func TestValidator_OptionalPointer(t *testing.T) {
	v, err := New()
	require.NoError(t, err)

	base := createInput{Username: "john_doe", Email: "john@example.com", Password: "s3cret-passw0rd"}
	assert.NoError(t, v.Validate(base))

	short := "ab"
	base.Nickname = &short
	fields := fieldErrors(t, v.Validate(base))
	assert.Contains(t, fields, "nickname")
}
