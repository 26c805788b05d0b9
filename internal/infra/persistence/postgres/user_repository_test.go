package postgres

import (
	"context"
	"regexp"
	"testing"
	"time"

	"userapi/internal/domain/entity"
	domainerrors "userapi/internal/domain/errors"
	"userapi/internal/domain/repository"
	"userapi/internal/errors"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	pgdriver "gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var userColumns = []string{"id", "username", "email", "password_hash", "created_at", "updated_at"}

func setupMockDB(t *testing.T) (*gorm.DB, sqlmock.Sqlmock) {
	t.Helper()

	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlDB.Close() })

	db, err := gorm.Open(pgdriver.New(pgdriver.Config{Conn: sqlDB}), &gorm.Config{
		SkipDefaultTransaction: true,
		Logger:                 logger.Discard,
	})
	require.NoError(t, err)

	return db, mock
}

func TestUserRepository_FindByID(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := NewUserRepository(db)
	createdAt := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "users" WHERE "users"."id" = $1`)).
		WillReturnRows(sqlmock.NewRows(userColumns).
			AddRow(int64(1), "john_doe", "john@example.com", "$2a$04$digest", createdAt, createdAt))

	user, err := repo.FindByID(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, &entity.User{
		ID:           1,
		Username:     "john_doe",
		Email:        "john@example.com",
		PasswordHash: "$2a$04$digest",
		CreatedAt:    createdAt,
		UpdatedAt:    createdAt,
	}, user)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUserRepository_FindByID_NotFound(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := NewUserRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "users" WHERE "users"."id" = $1`)).
		WillReturnRows(sqlmock.NewRows(userColumns))

	user, err := repo.FindByID(context.Background(), 99999)
	assert.Nil(t, user)
	assert.True(t, errors.Is(err, repository.ErrUserNotFound))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUserRepository_FindByUsername(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := NewUserRepository(db)
	now := time.Now().UTC()

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "users" WHERE username = $1`)).
		WithArgs("john_doe", 1).
		WillReturnRows(sqlmock.NewRows(userColumns).
			AddRow(int64(3), "john_doe", "john@example.com", "digest", now, now))

	user, err := repo.FindByUsername(context.Background(), "john_doe")
	require.NoError(t, err)
	assert.Equal(t, int64(3), user.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUserRepository_FindByEmail_DatabaseError(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := NewUserRepository(db)
	cause := errors.New("connection reset by peer")

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "users" WHERE email = $1`)).
		WillReturnError(cause)

	user, err := repo.FindByEmail(context.Background(), "john@example.com")
	assert.Nil(t, user)
	assert.False(t, errors.Is(err, repository.ErrUserNotFound))

	var appErr domainerrors.AppError
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, "DATABASE_EXECUTE_FAILED", appErr.ErrorCode())
	assert.True(t, errors.Is(err, cause))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUserRepository_List(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := NewUserRepository(db)
	now := time.Now().UTC()

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "users" ORDER BY id LIMIT $1 OFFSET $2`)).
		WithArgs(2, 2).
		WillReturnRows(sqlmock.NewRows(userColumns).
			AddRow(int64(3), "user2", "user2@example.com", "digest", now, now).
			AddRow(int64(4), "user3", "user3@example.com", "digest", now, now))

	users, err := repo.List(context.Background(), 2, 2)
	require.NoError(t, err)
	require.Len(t, users, 2)
	assert.Equal(t, "user2", users[0].Username)
	assert.Equal(t, "user3", users[1].Username)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUserRepository_List_ZeroLimitSkipsQuery(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := NewUserRepository(db)

	users, err := repo.List(context.Background(), 0, 0)
	require.NoError(t, err)
	assert.Empty(t, users)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUserRepository_Create(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := NewUserRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta(`INSERT INTO "users" ("username","email","password_hash","created_at","updated_at") VALUES ($1,$2,$3,$4,$5) RETURNING "id"`)).
		WithArgs("john_doe", "john@example.com", "digest", sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(7)))

	user := &entity.User{Username: "john_doe", Email: "john@example.com", PasswordHash: "digest"}
	require.NoError(t, repo.Create(context.Background(), user))

	assert.Equal(t, int64(7), user.ID)
	assert.False(t, user.CreatedAt.IsZero())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUserRepository_Create_UniqueViolations(t *testing.T) {
	tests := []struct {
		name       string
		constraint string
		want       error
	}{
		{name: "username", constraint: "idx_users_username", want: domainerrors.ErrUsernameTaken},
		{name: "email", constraint: "idx_users_email", want: domainerrors.ErrEmailTaken},
		{name: "unknown index", constraint: "users_pkey", want: domainerrors.ErrUserConstraintViolation},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db, mock := setupMockDB(t)
			repo := NewUserRepository(db)

			mock.ExpectQuery(regexp.QuoteMeta(`INSERT INTO "users"`)).
				WillReturnError(&pgconn.PgError{Code: "23505", ConstraintName: tt.constraint})

			err := repo.Create(context.Background(), &entity.User{Username: "john_doe", Email: "john@example.com", PasswordHash: "digest"})
			assert.True(t, errors.Is(err, tt.want), "err = %v", err)
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestUserRepository_Update(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := NewUserRepository(db)
	now := time.Now().UTC()
	email := "new@example.com"

	mock.ExpectExec(regexp.QuoteMeta(`UPDATE "users" SET`)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "users" WHERE "users"."id" = $1`)).
		WillReturnRows(sqlmock.NewRows(userColumns).
			AddRow(int64(5), "john_doe", email, "digest", now, now))

	user, err := repo.Update(context.Background(), 5, entity.UserChanges{Email: &email})
	require.NoError(t, err)
	assert.Equal(t, email, user.Email)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUserRepository_Update_NotFound(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := NewUserRepository(db)
	email := "new@example.com"

	mock.ExpectExec(regexp.QuoteMeta(`UPDATE "users" SET`)).
		WillReturnResult(sqlmock.NewResult(0, 0))

	user, err := repo.Update(context.Background(), 404, entity.UserChanges{Email: &email})
	assert.Nil(t, user)
	assert.True(t, errors.Is(err, repository.ErrUserNotFound))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUserRepository_Update_EmailTaken(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := NewUserRepository(db)
	email := "taken@example.com"

	mock.ExpectExec(regexp.QuoteMeta(`UPDATE "users" SET`)).
		WillReturnError(&pgconn.PgError{Code: "23505", ConstraintName: "idx_users_email"})

	_, err := repo.Update(context.Background(), 5, entity.UserChanges{Email: &email})
	assert.True(t, errors.Is(err, domainerrors.ErrEmailTaken))
	assert.NoError(t, mock.ExpectationsWereMet())
}
