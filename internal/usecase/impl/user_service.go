// Package impl contains the implementation of the application's business logic.
package impl

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"userapi/config"
	deliverycontext "userapi/internal/delivery/context"
	"userapi/internal/domain/constants"
	"userapi/internal/domain/entity"
	domainerrors "userapi/internal/domain/errors"
	"userapi/internal/domain/repository"
	"userapi/internal/domain/service"
	"userapi/internal/errors"
	"userapi/internal/usecase"

	"go.uber.org/fx"
)

// dummyPassword seeds the digest verified for unknown usernames.
const dummyPassword = "timing-equalisation-placeholder"

// userService implements the UserUsecase interface.
type userService struct {
	txManager repository.TransactionManager
	userRepo  repository.UserRepository
	hasher    service.PasswordHasher
	publisher service.EventPublisher
	maxLimit  int
	logger    *slog.Logger
	now       func() time.Time

	dummyMu     sync.Mutex
	dummyDigest string

	// events tracks publishes still running after their request returned.
	events sync.WaitGroup
}

// UserServiceParams holds dependencies for UserService, injected by Fx.
type UserServiceParams struct {
	fx.In

	Lc        fx.Lifecycle `optional:"true"`
	TxManager repository.TransactionManager
	UserRepo  repository.UserRepository
	Hasher    service.PasswordHasher
	Publisher service.EventPublisher
	Config    *config.Config
	Logger    *slog.Logger
}

// NewUserService is the constructor for userService. It receives all dependencies as interfaces.
func NewUserService(params UserServiceParams) usecase.UserUsecase {
	maxLimit := constants.MaxListLimit
	if params.Config != nil && params.Config.Pagination != nil && params.Config.Pagination.MaxLimit > 0 {
		maxLimit = params.Config.Pagination.MaxLimit
	}

	srv := &userService{
		txManager: params.TxManager,
		userRepo:  params.UserRepo,
		hasher:    params.Hasher,
		publisher: params.Publisher,
		maxLimit:  maxLimit,
		logger:    params.Logger,
		now:       time.Now,
	}

	if params.Lc != nil {
		params.Lc.Append(fx.Hook{
			OnStart: srv.warmUp,
			OnStop:  srv.drainEvents,
		})
	}

	return srv
}

// warmUp computes the dummy digest before the first request, so an unknown username
// never pays for a Hash on top of its Verify. A failure is retried lazily.
func (srv *userService) warmUp(ctx context.Context) error {
	if _, err := srv.dummy(ctx); err != nil {
		srv.logger.Warn("Dummy digest not precomputed", slog.String("error", err.Error()))
	}

	return nil
}

// drainEvents waits for in-flight publishes until ctx expires.
func (srv *userService) drainEvents(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		srv.events.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return errors.Wrap(ctx.Err(), "user events still in flight")
	}
}

// log returns a request-scoped logger if available, otherwise falls back to the service's logger.
func (srv *userService) log(ctx context.Context) *slog.Logger {
	return deliverycontext.GetLoggerOrDefault(ctx, srv.logger)
}

// CreateUser hashes the password, then checks username and email and inserts the row in one transaction.
func (srv *userService) CreateUser(ctx context.Context, input *usecase.CreateUserInput) (*usecase.UserOutput, error) {
	srv.log(ctx).Info("Creating user", slog.String("username", input.Username))

	digest, err := srv.hashPassword(ctx, input.Password)
	if err != nil {
		return nil, err
	}

	user := &entity.User{
		Username:     input.Username,
		Email:        input.Email,
		PasswordHash: digest,
	}

	err = srv.txManager.Execute(ctx, func(repoFactory repository.RepositoryFactory) error {
		userRepo := repoFactory.NewUserRepository()

		if err := ensureAbsent(userRepo.FindByUsername(ctx, input.Username)); err != nil {
			if errors.Is(err, errUserExists) {
				return domainerrors.ErrUsernameTaken.WrapMessage("username " + input.Username)
			}

			return errors.Wrap(err, "failed to check username")
		}

		if err := ensureAbsent(userRepo.FindByEmail(ctx, input.Email)); err != nil {
			if errors.Is(err, errUserExists) {
				return domainerrors.ErrEmailTaken.WrapMessage("email already in use")
			}

			return errors.Wrap(err, "failed to check email")
		}

		return userRepo.Create(ctx, user)
	})
	if err != nil {
		return nil, err
	}

	srv.log(ctx).Info("User created", slog.Int64("user_id", user.ID))
	srv.publish(ctx, entity.UserEventCreated, user)

	return usecase.NewUserOutput(user), nil
}

// ListUsers returns a page of users ordered by id.
func (srv *userService) ListUsers(ctx context.Context, input *usecase.ListUsersInput) ([]*usecase.UserOutput, error) {
	if input.Skip < 0 {
		return nil, domainerrors.ErrInvalidParameter.WrapMessage("skip must not be negative")
	}
	if input.Limit < 0 || input.Limit > srv.maxLimit {
		return nil, domainerrors.ErrInvalidParameter.WrapMessage("limit out of range")
	}

	users, err := srv.userRepo.List(ctx, input.Skip, input.Limit)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list users")
	}

	outputs := make([]*usecase.UserOutput, 0, len(users))
	for _, user := range users {
		outputs = append(outputs, usecase.NewUserOutput(user))
	}

	return outputs, nil
}

// GetUser returns a single user by id.
func (srv *userService) GetUser(ctx context.Context, id int64) (*usecase.UserOutput, error) {
	user, err := srv.userRepo.FindByID(ctx, id)
	if err != nil {
		return nil, mapUserLookupError(err)
	}

	return usecase.NewUserOutput(user), nil
}

// UpdateUser applies an optional email and password change.
func (srv *userService) UpdateUser(ctx context.Context, id int64, input *usecase.UpdateUserInput) (*usecase.UserOutput, error) {
	changes := entity.UserChanges{Email: input.Email}

	if input.Password != nil {
		digest, err := srv.hashPassword(ctx, *input.Password)
		if err != nil {
			return nil, err
		}
		changes.PasswordHash = &digest
	}

	if changes.IsEmpty() {
		return srv.GetUser(ctx, id)
	}

	var updated *entity.User
	err := srv.txManager.Execute(ctx, func(repoFactory repository.RepositoryFactory) error {
		userRepo := repoFactory.NewUserRepository()

		if _, err := userRepo.FindByID(ctx, id); err != nil {
			return mapUserLookupError(err)
		}

		if changes.Email != nil {
			existing, err := userRepo.FindByEmail(ctx, *changes.Email)
			switch {
			case err == nil && existing.ID != id:
				return domainerrors.ErrEmailTaken.WrapMessage("email already in use")
			case err != nil && !errors.Is(err, repository.ErrUserNotFound):
				return errors.Wrap(err, "failed to check email")
			}
		}

		user, err := userRepo.Update(ctx, id, changes)
		if err != nil {
			return mapUserLookupError(err)
		}
		updated = user

		return nil
	})
	if err != nil {
		return nil, err
	}

	srv.log(ctx).Info("User updated",
		slog.Int64("user_id", id),
		slog.Bool("email_changed", changes.Email != nil),
		slog.Bool("password_changed", changes.PasswordHash != nil),
	)
	srv.publish(ctx, entity.UserEventUpdated, updated)

	return usecase.NewUserOutput(updated), nil
}

// VerifyCredentials checks a username and password pair. Unknown usernames cost the same bcrypt run
// as a wrong password and produce the same error.
func (srv *userService) VerifyCredentials(ctx context.Context, input *usecase.VerifyCredentialsInput) (*usecase.UserOutput, error) {
	user, err := srv.userRepo.FindByUsername(ctx, input.Username)
	if errors.Is(err, repository.ErrUserNotFound) {
		srv.verifyAgainstDummy(ctx, input.Password)

		return nil, domainerrors.ErrInvalidCredentials.WrapMessage("unknown username")
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to find user by username")
	}

	ok, err := srv.hasher.Verify(ctx, input.Password, user.PasswordHash)
	if err != nil {
		if errors.Is(err, service.ErrMalformedDigest) {
			srv.log(ctx).Error("Stored credential digest is malformed",
				slog.Int64("user_id", user.ID),
				slog.String("error", err.Error()),
			)

			return nil, domainerrors.ErrCredentialDigestCorrupt.WrapMessage("stored digest rejected")
		}

		return nil, errors.Wrap(err, "failed to verify password")
	}
	if !ok {
		return nil, domainerrors.ErrInvalidCredentials.WrapMessage("password mismatch")
	}

	if srv.hasher.NeedsRehash(user.PasswordHash) {
		srv.rehash(ctx, user, input.Password)
	}

	return usecase.NewUserOutput(user), nil
}

func (srv *userService) hashPassword(ctx context.Context, password string) (string, error) {
	digest, err := srv.hasher.Hash(ctx, password)
	if err == nil {
		return digest, nil
	}

	switch {
	case errors.Is(err, service.ErrEncoding):
		// Request validation rejects these inputs first; reaching here means the rules drifted.
		srv.log(ctx).Error("Password rejected by hasher", slog.String("error", err.Error()))

		return "", domainerrors.ErrPasswordHashFailed.WrapMessage("password cannot be encoded")
	case errors.IsAny(err, context.Canceled, context.DeadlineExceeded):
		return "", errors.Wrap(err, "password hashing aborted")
	default:
		return "", domainerrors.ErrPasswordHashFailed.WrapMessage(err.Error())
	}
}

// verifyAgainstDummy spends one verification on a throwaway digest.
func (srv *userService) verifyAgainstDummy(ctx context.Context, password string) {
	digest, err := srv.dummy(ctx)
	if err != nil {
		srv.log(ctx).Warn("Dummy digest unavailable", slog.String("error", err.Error()))

		return
	}

	_, _ = srv.hasher.Verify(ctx, password, digest)
}

// dummy computes the throwaway digest on first use. Failures are not cached.
func (srv *userService) dummy(ctx context.Context) (string, error) {
	srv.dummyMu.Lock()
	defer srv.dummyMu.Unlock()

	if srv.dummyDigest != "" {
		return srv.dummyDigest, nil
	}

	digest, err := srv.hasher.Hash(ctx, dummyPassword)
	if err != nil {
		return "", errors.Wrap(err, "failed to hash dummy password")
	}
	srv.dummyDigest = digest

	return digest, nil
}

// rehash upgrades a digest produced with a different cost. Failures only get logged.
func (srv *userService) rehash(ctx context.Context, user *entity.User, password string) {
	digest, err := srv.hasher.Hash(ctx, password)
	if err != nil {
		srv.log(ctx).Warn("Credential rehash skipped",
			slog.Int64("user_id", user.ID),
			slog.String("error", err.Error()),
		)

		return
	}

	if _, err := srv.userRepo.Update(ctx, user.ID, entity.UserChanges{PasswordHash: &digest}); err != nil {
		srv.log(ctx).Warn("Credential rehash not stored",
			slog.Int64("user_id", user.ID),
			slog.String("error", err.Error()),
		)

		return
	}

	user.PasswordHash = digest
	srv.log(ctx).Info("Credential digest upgraded", slog.Int64("user_id", user.ID))
}

// publish sends a user event after commit without holding up the response. Delivery is best-effort.
func (srv *userService) publish(ctx context.Context, eventType entity.UserEventType, user *entity.User) {
	if srv.publisher == nil {
		return
	}

	event := entity.NewUserEvent(eventType, deliverycontext.GetRequestIDFromContext(ctx), user, srv.now())
	logger := srv.log(ctx)
	publishCtx := context.WithoutCancel(ctx)

	srv.events.Add(1)
	go func() {
		defer srv.events.Done()

		if err := srv.publisher.PublishUserEvent(publishCtx, event); err != nil {
			logger.Warn("Failed to publish user event",
				slog.String("type", string(eventType)),
				slog.Int64("user_id", event.UserID),
				slog.String("error", err.Error()),
			)
		}
	}()
}

var errUserExists = errors.New("user exists")

// ensureAbsent turns a lookup result into nil when no user was found.
func ensureAbsent(_ *entity.User, err error) error {
	switch {
	case err == nil:
		return errUserExists
	case errors.Is(err, repository.ErrUserNotFound):
		return nil
	default:
		return err
	}
}

func mapUserLookupError(err error) error {
	if errors.Is(err, repository.ErrUserNotFound) {
		return domainerrors.ErrUserNotFound.WrapMessage(err.Error())
	}

	return errors.WithStack(err)
}
