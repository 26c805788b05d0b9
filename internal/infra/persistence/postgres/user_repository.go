package postgres

import (
	"context"
	"time"

	"userapi/internal/domain/constants"
	"userapi/internal/domain/entity"
	domainerrors "userapi/internal/domain/errors"
	"userapi/internal/domain/repository"
	"userapi/internal/errors"
	"userapi/internal/infra/persistence/model"

	"gorm.io/gorm"
)

// userRepository implements the domain.UserRepository interface using GORM.
type userRepository struct {
	db *gorm.DB
}

// NewUserRepository is the constructor for userRepository.
func NewUserRepository(db *gorm.DB) repository.UserRepository {
	return &userRepository{db: db}
}

// FindByID retrieves a single user by their identifier.
func (repo *userRepository) FindByID(ctx context.Context, id int64) (*entity.User, error) {
	var userM model.UserModel
	if err := repo.db.WithContext(ctx).First(&userM, id).Error; err != nil {
		return nil, mapFindError(err, "failed to find user by id")
	}

	return toUserDomain(&userM), nil
}

// FindByUsername retrieves a single user by exact username.
func (repo *userRepository) FindByUsername(ctx context.Context, username string) (*entity.User, error) {
	var userM model.UserModel
	if err := repo.db.WithContext(ctx).Where("username = ?", username).First(&userM).Error; err != nil {
		return nil, mapFindError(err, "failed to find user by username")
	}

	return toUserDomain(&userM), nil
}

// FindByEmail retrieves a single user by their email address.
func (repo *userRepository) FindByEmail(ctx context.Context, email string) (*entity.User, error) {
	var userM model.UserModel
	if err := repo.db.WithContext(ctx).Where("email = ?", email).First(&userM).Error; err != nil {
		return nil, mapFindError(err, "failed to find user by email")
	}

	return toUserDomain(&userM), nil
}

// List returns a page of users ordered by id.
func (repo *userRepository) List(ctx context.Context, skip, limit int) ([]*entity.User, error) {
	if limit == 0 {
		return []*entity.User{}, nil
	}

	var userMs []*model.UserModel
	if err := repo.db.WithContext(ctx).Order("id").Offset(skip).Limit(limit).Find(&userMs).Error; err != nil {
		return nil, domainerrors.NewDatabaseExecuteError(err, "failed to list users")
	}

	users := make([]*entity.User, 0, len(userMs))
	for _, userM := range userMs {
		users = append(users, toUserDomain(userM))
	}

	return users, nil
}

// Create persists a new user and copies the generated ID and timestamps back onto it.
func (repo *userRepository) Create(ctx context.Context, user *entity.User) error {
	userM := fromUserDomain(user)

	if err := repo.db.WithContext(ctx).Create(userM).Error; err != nil {
		return mapWriteError(err, "failed to create user")
	}

	user.ID = userM.ID
	user.CreatedAt = userM.CreatedAt
	user.UpdatedAt = userM.UpdatedAt

	return nil
}

// Update applies the non-nil fields of changes and returns the stored row.
func (repo *userRepository) Update(ctx context.Context, id int64, changes entity.UserChanges) (*entity.User, error) {
	values := map[string]any{
		"updated_at": time.Now().UTC(),
	}
	if changes.Email != nil {
		values["email"] = *changes.Email
	}
	if changes.PasswordHash != nil {
		values["password_hash"] = *changes.PasswordHash
	}

	result := repo.db.WithContext(ctx).Model(&model.UserModel{ID: id}).Updates(values)
	if result.Error != nil {
		return nil, mapWriteError(result.Error, "failed to update user")
	}
	if result.RowsAffected == 0 {
		return nil, repository.ErrUserNotFound
	}

	return repo.FindByID(ctx, id)
}

func mapFindError(err error, message string) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return repository.ErrUserNotFound
	}

	return domainerrors.NewDatabaseExecuteError(err, message)
}

// mapWriteError converts constraint failures into the matching domain errors.
func mapWriteError(err error, message string) error {
	if constraint, ok := uniqueViolationConstraint(err); ok {
		switch constraint {
		case constants.UsersUsernameIndex:
			return domainerrors.ErrUsernameTaken.WrapMessage("unique index " + constraint)
		case constants.UsersEmailIndex:
			return domainerrors.ErrEmailTaken.WrapMessage("unique index " + constraint)
		}
	}
	if isIntegrityViolation(err) {
		return domainerrors.ErrUserConstraintViolation.WrapMessage(err.Error())
	}

	return domainerrors.NewDatabaseExecuteError(err, message)
}

func toUserDomain(userM *model.UserModel) *entity.User {
	return &entity.User{
		ID:           userM.ID,
		Username:     userM.Username,
		Email:        userM.Email,
		PasswordHash: userM.PasswordHash,
		CreatedAt:    userM.CreatedAt,
		UpdatedAt:    userM.UpdatedAt,
	}
}

func fromUserDomain(user *entity.User) *model.UserModel {
	return &model.UserModel{
		ID:           user.ID,
		Username:     user.Username,
		Email:        user.Email,
		PasswordHash: user.PasswordHash,
		CreatedAt:    user.CreatedAt,
		UpdatedAt:    user.UpdatedAt,
	}
}
