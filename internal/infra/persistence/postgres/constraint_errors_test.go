package postgres

import (
	"testing"

	"userapi/internal/errors"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"gorm.io/gorm"
)

func TestUniqueViolationConstraint(t *testing.T) {
	tests := []struct {
		name           string
		err            error
		wantConstraint string
		wantOK         bool
	}{
		{
			name:           "pg unique violation",
			err:            errors.Wrap(&pgconn.PgError{Code: "23505", ConstraintName: "idx_users_email"}, "insert"),
			wantConstraint: "idx_users_email",
			wantOK:         true,
		},
		{
			name:   "pg not null violation",
			err:    &pgconn.PgError{Code: "23502", ColumnName: "email"},
			wantOK: false,
		},
		{
			name:   "translated gorm error",
			err:    gorm.ErrDuplicatedKey,
			wantOK: true,
		},
		{
			name:   "unrelated",
			err:    errors.New("connection refused"),
			wantOK: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			constraint, ok := uniqueViolationConstraint(tt.err)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.wantConstraint, constraint)
		})
	}
}

func TestIsIntegrityViolation(t *testing.T) {
	assert.True(t, isIntegrityViolation(&pgconn.PgError{Code: "23502"}))
	assert.True(t, isIntegrityViolation(&pgconn.PgError{Code: "23514"}))
	assert.True(t, isIntegrityViolation(gorm.ErrForeignKeyViolated))
	assert.False(t, isIntegrityViolation(&pgconn.PgError{Code: "40001"}))
	assert.False(t, isIntegrityViolation(errors.New("timeout")))
}
