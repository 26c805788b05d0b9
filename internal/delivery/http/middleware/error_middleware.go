package middleware

import (
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	deliverycontext "userapi/internal/delivery/context"
	"userapi/internal/delivery/http/response"
	domainerrors "userapi/internal/domain/errors"
	"userapi/internal/errors"

	"github.com/labstack/echo/v4"
)

// ErrorMiddleware renders every handler error as the JSON error envelope
type ErrorMiddleware struct {
	logger *slog.Logger
}

// NewErrorMiddleware creates a new error handling middleware
func NewErrorMiddleware(logger *slog.Logger) *ErrorMiddleware {
	return &ErrorMiddleware{
		logger: logger,
	}
}

// HandleHTTPError handles errors as Echo's HTTPErrorHandler
func (m *ErrorMiddleware) HandleHTTPError(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}

	var appErr domainerrors.AppError
	if errors.As(err, &appErr) {
		status := appErr.HTTPCode()
		if status >= http.StatusInternalServerError {
			m.log(c).Error("Request failed",
				slog.String("code", appErr.ErrorCode()),
				slog.String("error", err.Error()),
				slog.String("path", c.Request().URL.Path),
				slog.String("method", c.Request().Method),
			)
		}

		var details any
		var fieldErr domainerrors.FieldErrors
		if errors.As(err, &fieldErr) {
			details = fieldErr.FieldErrors()
		}

		_ = response.Error(c, status, appErr.ErrorCode(), appErr.Message(), details)

		return
	}

	var httpErr *echo.HTTPError
	if errors.As(err, &httpErr) {
		message := http.StatusText(httpErr.Code)
		if msg, ok := httpErr.Message.(string); ok && msg != "" {
			message = msg
		}

		_ = response.Error(c, httpErr.Code, httpErrorCode(httpErr.Code), message, nil)

		return
	}

	m.log(c).Error("Unhandled error",
		slog.String("error", err.Error()),
		slog.String("path", c.Request().URL.Path),
		slog.String("method", c.Request().Method),
	)

	_ = response.InternalServerError(c, domainerrors.ErrInternalError.ErrorCode(), domainerrors.ErrInternalError.Message())
}

func (m *ErrorMiddleware) log(c echo.Context) *slog.Logger {
	return deliverycontext.GetLoggerOrDefault(c.Request().Context(), m.logger)
}

// httpErrorCode turns a status such as 405 into METHOD_NOT_ALLOWED.
func httpErrorCode(status int) string {
	text := http.StatusText(status)
	if text == "" {
		return "HTTP_" + strconv.Itoa(status)
	}

	return strings.ToUpper(strings.NewReplacer(" ", "_", "-", "_", "'", "").Replace(text))
}
