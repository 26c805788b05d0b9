package postgres

import (
	"strings"

	"userapi/internal/errors"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
)

// PostgreSQL SQLSTATE values, see https://www.postgresql.org/docs/current/errcodes-appendix.html
const (
	pgUniqueViolation       = "23505"
	pgIntegrityViolationCls = "23"
)

// uniqueViolationConstraint reports whether err is a unique violation and,
// when the driver exposes it, the name of the violated index.
func uniqueViolationConstraint(err error) (string, bool) {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.ConstraintName, pgErr.Code == pgUniqueViolation
	}

	// Only reachable when error translation is enabled on the session.
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return "", true
	}

	return "", false
}

// isIntegrityViolation reports any integrity constraint failure: unique, foreign key, not null or check.
func isIntegrityViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return strings.HasPrefix(pgErr.Code, pgIntegrityViolationCls)
	}

	return errors.IsAny(err,
		gorm.ErrDuplicatedKey,
		gorm.ErrForeignKeyViolated,
		gorm.ErrCheckConstraintViolated,
	)
}
