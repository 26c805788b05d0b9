// Package handler contains the HTTP handlers for the application.
package handler

import (
	"net/http"

	"userapi/config"
	"userapi/internal/delivery/http/response"
	domainerrors "userapi/internal/domain/errors"
	"userapi/internal/errors"
	"userapi/internal/usecase"

	"github.com/labstack/echo/v4"
)

// UserHandler holds dependencies for user-related handlers.
type UserHandler struct {
	uc           usecase.UserUsecase
	defaultLimit int
}

// NewUserHandler is the constructor for UserHandler, injected by Fx.
func NewUserHandler(uc usecase.UserUsecase, cfg *config.Config) *UserHandler {
	return &UserHandler{
		uc:           uc,
		defaultLimit: cfg.Pagination.DefaultLimit,
	}
}

// CreateUser handles POST /users.
func (h *UserHandler) CreateUser(c echo.Context) error {
	var input usecase.CreateUserInput
	if err := bindAndValidate(c, &input); err != nil {
		return err
	}

	output, err := h.uc.CreateUser(c.Request().Context(), &input)
	if err != nil {
		return errors.WithStack(err)
	}

	return response.Success(c, http.StatusCreated, output)
}

// ListUsers handles GET /users?skip=&limit=.
func (h *UserHandler) ListUsers(c echo.Context) error {
	input := usecase.ListUsersInput{Limit: h.defaultLimit}
	if err := echo.QueryParamsBinder(c).
		Int("skip", &input.Skip).
		Int("limit", &input.Limit).
		BindError(); err != nil {
		return domainerrors.ErrInvalidParameter.WrapMessage(err.Error())
	}

	outputs, err := h.uc.ListUsers(c.Request().Context(), &input)
	if err != nil {
		return errors.WithStack(err)
	}

	return response.Success(c, http.StatusOK, outputs)
}

// GetUser handles GET /users/:id.
func (h *UserHandler) GetUser(c echo.Context) error {
	id, err := userIDParam(c)
	if err != nil {
		return err
	}

	output, err := h.uc.GetUser(c.Request().Context(), id)
	if err != nil {
		return errors.WithStack(err)
	}

	return response.Success(c, http.StatusOK, output)
}

// UpdateUser handles PATCH /users/:id.
func (h *UserHandler) UpdateUser(c echo.Context) error {
	id, err := userIDParam(c)
	if err != nil {
		return err
	}

	var input usecase.UpdateUserInput
	if err := bindAndValidate(c, &input); err != nil {
		return err
	}

	output, err := h.uc.UpdateUser(c.Request().Context(), id, &input)
	if err != nil {
		return errors.WithStack(err)
	}

	return response.Success(c, http.StatusOK, output)
}

// VerifyCredentials handles POST /users/verify.
func (h *UserHandler) VerifyCredentials(c echo.Context) error {
	var input usecase.VerifyCredentialsInput
	if err := bindAndValidate(c, &input); err != nil {
		return err
	}

	output, err := h.uc.VerifyCredentials(c.Request().Context(), &input)
	if err != nil {
		return errors.WithStack(err)
	}

	return response.Success(c, http.StatusOK, output)
}

func bindAndValidate(c echo.Context, input any) error {
	if err := (&echo.DefaultBinder{}).BindBody(c, input); err != nil {
		return domainerrors.ErrInvalidInput.WrapMessage(err.Error())
	}

	return errors.WithStack(c.Validate(input))
}

func userIDParam(c echo.Context) (int64, error) {
	var id int64
	if err := echo.PathParamsBinder(c).MustInt64("id", &id).BindError(); err != nil {
		return 0, domainerrors.ErrInvalidParameter.WrapMessage(err.Error())
	}

	return id, nil
}
