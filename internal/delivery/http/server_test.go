package http

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"userapi/config"
	deliverycontext "userapi/internal/delivery/context"
	"userapi/internal/delivery/http/router"
	"userapi/internal/delivery/http/router/handler"
	domainerrors "userapi/internal/domain/errors"
	"userapi/internal/errors"
	"userapi/internal/usecase"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeUserUsecase struct {
	createFn func(ctx context.Context, input *usecase.CreateUserInput) (*usecase.UserOutput, error)
	listFn   func(ctx context.Context, input *usecase.ListUsersInput) ([]*usecase.UserOutput, error)
	getFn    func(ctx context.Context, id int64) (*usecase.UserOutput, error)
	updateFn func(ctx context.Context, id int64, input *usecase.UpdateUserInput) (*usecase.UserOutput, error)
	verifyFn func(ctx context.Context, input *usecase.VerifyCredentialsInput) (*usecase.UserOutput, error)
}

func (f *fakeUserUsecase) CreateUser(ctx context.Context, input *usecase.CreateUserInput) (*usecase.UserOutput, error) {
	return f.createFn(ctx, input)
}

func (f *fakeUserUsecase) ListUsers(ctx context.Context, input *usecase.ListUsersInput) ([]*usecase.UserOutput, error) {
	return f.listFn(ctx, input)
}

func (f *fakeUserUsecase) GetUser(ctx context.Context, id int64) (*usecase.UserOutput, error) {
	return f.getFn(ctx, id)
}

func (f *fakeUserUsecase) UpdateUser(ctx context.Context, id int64, input *usecase.UpdateUserInput) (*usecase.UserOutput, error) {
	return f.updateFn(ctx, id, input)
}

func (f *fakeUserUsecase) VerifyCredentials(ctx context.Context, input *usecase.VerifyCredentialsInput) (*usecase.UserOutput, error) {
	return f.verifyFn(ctx, input)
}

var createdAt = time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)

func sampleUser(id int64) *usecase.UserOutput {
	return &usecase.UserOutput{ID: id, Username: "john_doe", Email: "john@example.com", CreatedAt: createdAt}
}

func newTestServer(t *testing.T, uc usecase.UserUsecase) *echo.Echo {
	t.Helper()

	cfg := &config.Config{
		Pagination: &config.PaginationConfig{DefaultLimit: 100, MaxLimit: 1000},
	}
	cfg.App.Name = "User API"
	cfg.App.Version = "1.0.0"
	cfg.HTTP.MaxRequestBodySize = "1KB"

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	r := router.NewRouter(router.RouterParams{
		RootHandler: handler.NewRootHandler(cfg),
		UserHandler: handler.NewUserHandler(uc, cfg),
	})

	e, err := newEcho(cfg, logger, r)
	require.NoError(t, err)

	return e
}

type envelope struct {
	Data  json.RawMessage `json:"data"`
	Error *struct {
		Code    string            `json:"code"`
		Message string            `json:"message"`
		Details map[string]string `json:"details"`
	} `json:"error"`
	Meta struct {
		RequestID string `json:"request_id"`
	} `json:"meta"`
}

func doRequest(t *testing.T, e *echo.Echo, method, target, body string) (*httptest.ResponseRecorder, envelope) {
	t.Helper()

	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, reader)
	if body != "" {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	var env envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env), rec.Body.String())

	return rec, env
}

func TestServer_RootAndHealth(t *testing.T) {
	e := newTestServer(t, &fakeUserUsecase{})

	rec, env := doRequest(t, e, http.MethodGet, "/", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"message":"Welcome to User API","version":"1.0.0"}`, string(env.Data))
	assert.NotEmpty(t, env.Meta.RequestID)
	assert.Equal(t, env.Meta.RequestID, rec.Header().Get(deliverycontext.HeaderXRequestID))

	rec, env = doRequest(t, e, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"healthy"}`, string(env.Data))
}

func TestServer_CreateUser(t *testing.T) {
	var got *usecase.CreateUserInput
	e := newTestServer(t, &fakeUserUsecase{
		createFn: func(_ context.Context, input *usecase.CreateUserInput) (*usecase.UserOutput, error) {
			got = input

			return sampleUser(1), nil
		},
	})

	rec, env := doRequest(t, e, http.MethodPost, "/users",
		`{"username":"john_doe","email":"john@example.com","password":"s3cret-passw0rd"}`)

	assert.Equal(t, http.StatusCreated, rec.Code)
	require.NotNil(t, got)
	assert.Equal(t, "s3cret-passw0rd", got.Password)
	assert.JSONEq(t, `{"id":1,"username":"john_doe","email":"john@example.com","created_at":"2024-05-01T10:00:00Z"}`, string(env.Data))
	assert.NotContains(t, rec.Body.String(), "password")
}

func TestServer_CreateUser_TrailingSlash(t *testing.T) {
	e := newTestServer(t, &fakeUserUsecase{
		createFn: func(context.Context, *usecase.CreateUserInput) (*usecase.UserOutput, error) {
			return sampleUser(1), nil
		},
	})

	rec, _ := doRequest(t, e, http.MethodPost, "/users/",
		`{"username":"john_doe","email":"john@example.com","password":"s3cret-passw0rd"}`)
	assert.Equal(t, http.StatusCreated, rec.Code)
}

func TestServer_CreateUser_Errors(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		ucErr      error
		wantStatus int
		wantCode   string
		wantFields []string
	}{
		{
			name:       "malformed json",
			body:       `{"username":`,
			wantStatus: http.StatusBadRequest,
			wantCode:   "INVALID_INPUT",
		},
		{
			name:       "validation failure",
			body:       `{"username":"ab","email":"not-an-email","password":"short"}`,
			wantStatus: http.StatusUnprocessableEntity,
			wantCode:   "VALIDATION_FAILED",
			wantFields: []string{"username", "email", "password"},
		},
		{
			name:       "username with punctuation",
			body:       `{"username":"john.doe","email":"john@example.com","password":"s3cret-passw0rd"}`,
			wantStatus: http.StatusUnprocessableEntity,
			wantCode:   "VALIDATION_FAILED",
			wantFields: []string{"username"},
		},
		{
			name:       "duplicate username",
			body:       `{"username":"john_doe","email":"john@example.com","password":"s3cret-passw0rd"}`,
			ucErr:      domainerrors.ErrUsernameTaken.WrapMessage("username john_doe"),
			wantStatus: http.StatusBadRequest,
			wantCode:   "USERNAME_TAKEN",
		},
		{
			name:       "duplicate email",
			body:       `{"username":"john_doe","email":"john@example.com","password":"s3cret-passw0rd"}`,
			ucErr:      domainerrors.ErrEmailTaken.WrapMessage("email already in use"),
			wantStatus: http.StatusBadRequest,
			wantCode:   "EMAIL_TAKEN",
		},
		{
			name:       "unexpected failure",
			body:       `{"username":"john_doe","email":"john@example.com","password":"s3cret-passw0rd"}`,
			ucErr:      errors.New("connection refused"),
			wantStatus: http.StatusInternalServerError,
			wantCode:   "INTERNAL_ERROR",
		},
		{
			name:       "body over limit",
			body:       `{"username":"` + strings.Repeat("a", 2048) + `"}`,
			wantStatus: http.StatusRequestEntityTooLarge,
			wantCode:   "REQUEST_ENTITY_TOO_LARGE",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := newTestServer(t, &fakeUserUsecase{
				createFn: func(context.Context, *usecase.CreateUserInput) (*usecase.UserOutput, error) {
					if tt.ucErr != nil {
						return nil, tt.ucErr
					}

					return sampleUser(1), nil
				},
			})

			rec, env := doRequest(t, e, http.MethodPost, "/users", tt.body)

			assert.Equal(t, tt.wantStatus, rec.Code)
			require.NotNil(t, env.Error)
			assert.Equal(t, tt.wantCode, env.Error.Code)
			for _, field := range tt.wantFields {
				assert.Contains(t, env.Error.Details, field)
			}
			assert.NotContains(t, rec.Body.String(), "connection refused")
		})
	}
}

func TestServer_ListUsers(t *testing.T) {
	var got *usecase.ListUsersInput
	e := newTestServer(t, &fakeUserUsecase{
		listFn: func(_ context.Context, input *usecase.ListUsersInput) ([]*usecase.UserOutput, error) {
			got = input

			return []*usecase.UserOutput{sampleUser(3), sampleUser(4)}, nil
		},
	})

	rec, env := doRequest(t, e, http.MethodGet, "/users", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, &usecase.ListUsersInput{Skip: 0, Limit: 100}, got)

	var users []usecase.UserOutput
	require.NoError(t, json.Unmarshal(env.Data, &users))
	assert.Len(t, users, 2)

	rec, _ = doRequest(t, e, http.MethodGet, "/users?skip=2&limit=2", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, &usecase.ListUsersInput{Skip: 2, Limit: 2}, got)
}

func TestServer_ListUsers_InvalidQuery(t *testing.T) {
	e := newTestServer(t, &fakeUserUsecase{})

	rec, env := doRequest(t, e, http.MethodGet, "/users?limit=abc", "")
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Equal(t, "INVALID_PARAMETER", env.Error.Code)
}

func TestServer_GetUser(t *testing.T) {
	e := newTestServer(t, &fakeUserUsecase{
		getFn: func(_ context.Context, id int64) (*usecase.UserOutput, error) {
			if id == 99999 {
				return nil, domainerrors.ErrUserNotFound.WrapMessage("user not found")
			}

			return sampleUser(id), nil
		},
	})

	rec, env := doRequest(t, e, http.MethodGet, "/users/1", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, string(env.Data), `"id":1`)

	rec, env = doRequest(t, e, http.MethodGet, "/users/99999", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "USER_NOT_FOUND", env.Error.Code)
	assert.Equal(t, "User not found", env.Error.Message)

	rec, env = doRequest(t, e, http.MethodGet, "/users/abc", "")
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Equal(t, "INVALID_PARAMETER", env.Error.Code)
}

func TestServer_UpdateUser(t *testing.T) {
	var gotID int64
	var gotInput *usecase.UpdateUserInput
	e := newTestServer(t, &fakeUserUsecase{
		updateFn: func(_ context.Context, id int64, input *usecase.UpdateUserInput) (*usecase.UserOutput, error) {
			gotID, gotInput = id, input
			user := sampleUser(id)
			user.Email = *input.Email

			return user, nil
		},
	})

	rec, env := doRequest(t, e, http.MethodPatch, "/users/5", `{"email":"new@example.com"}`)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, int64(5), gotID)
	require.NotNil(t, gotInput.Email)
	assert.Nil(t, gotInput.Password)
	assert.Contains(t, string(env.Data), "new@example.com")

	rec, env = doRequest(t, e, http.MethodPatch, "/users/5", `{"password":"short"}`)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Contains(t, env.Error.Details, "password")
}

func TestServer_VerifyCredentials(t *testing.T) {
	e := newTestServer(t, &fakeUserUsecase{
		verifyFn: func(_ context.Context, input *usecase.VerifyCredentialsInput) (*usecase.UserOutput, error) {
			switch input.Username {
			case "john_doe":
				return sampleUser(1), nil
			case "broken":
				return nil, domainerrors.ErrCredentialDigestCorrupt.WrapMessage("stored digest rejected")
			default:
				return nil, domainerrors.ErrInvalidCredentials.WrapMessage("unknown username")
			}
		},
	})

	rec, _ := doRequest(t, e, http.MethodPost, "/users/verify", `{"username":"john_doe","password":"s3cret-passw0rd"}`)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec, env := doRequest(t, e, http.MethodPost, "/users/verify", `{"username":"ghost","password":"s3cret-passw0rd"}`)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "INVALID_CREDENTIALS", env.Error.Code)
	assert.Nil(t, env.Error.Details)

	rec, env = doRequest(t, e, http.MethodPost, "/users/verify", `{"username":"broken","password":"s3cret-passw0rd"}`)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "CREDENTIAL_DIGEST_CORRUPT", env.Error.Code)
}

func TestServer_UnknownRoute(t *testing.T) {
	e := newTestServer(t, &fakeUserUsecase{})

	rec, env := doRequest(t, e, http.MethodGet, "/nowhere", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "NOT_FOUND", env.Error.Code)

	rec, env = doRequest(t, e, http.MethodDelete, "/users/1", "")
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
	assert.Equal(t, "METHOD_NOT_ALLOWED", env.Error.Code)
}

func TestServer_RecoversFromPanic(t *testing.T) {
	e := newTestServer(t, &fakeUserUsecase{
		getFn: func(context.Context, int64) (*usecase.UserOutput, error) {
			panic("unexpected nil pointer")
		},
	})

	rec, env := doRequest(t, e, http.MethodGet, "/users/1", "")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "INTERNAL_ERROR", env.Error.Code)
}
