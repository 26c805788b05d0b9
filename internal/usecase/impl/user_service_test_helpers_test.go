package impl

import (
	"bytes"
	"context"
	"log/slog"
	"testing"

	"userapi/config"
	"userapi/internal/domain/repository"
	mockRepo "userapi/internal/mocks/repository"
	mockSvc "userapi/internal/mocks/service"
	"userapi/internal/usecase"

	"github.com/stretchr/testify/mock"
	"go.uber.org/fx"
)

// userServiceFixtures holds all test dependencies for user service tests.
type userServiceFixtures struct {
	service    usecase.UserUsecase
	impl       *userService
	txManager  *mockRepo.MockTransactionManager
	userRepo   *mockRepo.MockUserRepository
	txUserRepo *mockRepo.MockUserRepository
	hasher     *mockSvc.MockPasswordHasher
	publisher  *mockSvc.MockEventPublisher
	logs       *bytes.Buffer
}

func newTestConfig() *config.Config {
	return &config.Config{
		Auth: &config.AuthConfig{
			BcryptCost: 12,
		},
		Pagination: &config.PaginationConfig{
			DefaultLimit: 100,
			MaxLimit:     1000,
		},
	}
}

func createTestUserService(t *testing.T) userServiceFixtures {
	t.Helper()

	return createTestUserServiceWithLifecycle(t, nil)
}

func createTestUserServiceWithLifecycle(t *testing.T, lc fx.Lifecycle) userServiceFixtures {
	t.Helper()

	logs := &bytes.Buffer{}
	fixtures := userServiceFixtures{
		txManager:  mockRepo.NewMockTransactionManager(t),
		userRepo:   mockRepo.NewMockUserRepository(t),
		txUserRepo: mockRepo.NewMockUserRepository(t),
		hasher:     mockSvc.NewMockPasswordHasher(t),
		publisher:  mockSvc.NewMockEventPublisher(t),
		logs:       logs,
	}

	fixtures.service = NewUserService(UserServiceParams{
		Lc:        lc,
		TxManager: fixtures.txManager,
		UserRepo:  fixtures.userRepo,
		Hasher:    fixtures.hasher,
		Publisher: fixtures.publisher,
		Config:    newTestConfig(),
		Logger:    slog.New(slog.NewJSONHandler(logs, &slog.HandlerOptions{Level: slog.LevelDebug})),
	})
	fixtures.impl = fixtures.service.(*userService)

	// Registered after the mocks, so it runs before their expectations are asserted.
	t.Cleanup(fixtures.waitForEvents)

	return fixtures
}

// waitForEvents blocks until every background publish has returned.
func (f userServiceFixtures) waitForEvents() {
	f.impl.events.Wait()
}

// expectTransaction runs the transactional callback against txUserRepo.
func (f userServiceFixtures) expectTransaction(t *testing.T) {
	t.Helper()

	f.txManager.EXPECT().
		Execute(mock.Anything, mock.AnythingOfType("func(repository.RepositoryFactory) error")).
		RunAndReturn(func(_ context.Context, fn func(repository.RepositoryFactory) error) error {
			factory := mockRepo.NewMockRepositoryFactory(t)
			factory.EXPECT().NewUserRepository().Return(f.txUserRepo)

			return fn(factory)
		}).
		Once()
}
