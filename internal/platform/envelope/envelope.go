// Package envelope renders every API response in the {success, data|message, error?}
// shape and translates errors raised anywhere in the stack into it.
package envelope

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/oxycare/oxycare/internal/platform/apperror"
)

// Response is the JSON body of every API response.
type Response struct {
	Success bool                 `json:"success"`
	Data    interface{}          `json:"data,omitempty"`
	Message string               `json:"message,omitempty"`
	Error   string               `json:"error,omitempty"`
	Details []apperror.Violation `json:"details,omitempty"`
}

// OK writes a successful response.
func OK(c echo.Context, status int, data interface{}, message string) error {
	return c.JSON(status, Response{Success: true, Data: data, Message: message})
}

// Message writes a successful response without a payload.
func Message(c echo.Context, status int, message string) error {
	return c.JSON(status, Response{Success: true, Message: message})
}

// ErrorHandler returns an echo.HTTPErrorHandler that renders *apperror.Error and
// *echo.HTTPError values as envelopes. Internal error causes are logged and
// replaced by a generic message.
func ErrorHandler(logger zerolog.Logger) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}

		status, body := render(err)
		if status >= http.StatusInternalServerError {
			rid, _ := c.Get("request_id").(string)
			logger.Error().Err(err).
				Str("request_id", rid).
				Str("method", c.Request().Method).
				Str("path", c.Request().URL.Path).
				Msg("request failed")
		}

		var writeErr error
		if c.Request().Method == http.MethodHead {
			writeErr = c.NoContent(status)
		} else {
			writeErr = c.JSON(status, body)
		}
		if writeErr != nil {
			logger.Error().Err(writeErr).Msg("failed to write error response")
		}
	}
}

func render(err error) (int, Response) {
	var httpErr *echo.HTTPError
	if errors.As(err, &httpErr) {
		msg := http.StatusText(httpErr.Code)
		if s, ok := httpErr.Message.(string); ok && s != "" {
			msg = s
		}
		if httpErr.Code >= http.StatusInternalServerError {
			msg = "internal server error"
		}
		return httpErr.Code, Response{Success: false, Message: msg, Error: http.StatusText(httpErr.Code)}
	}

	appErr := apperror.As(err)
	resp := Response{
		Success: false,
		Message: appErr.Message,
		Error:   appErr.Kind.String(),
		Details: appErr.Violations,
	}
	if appErr.Kind == apperror.KindMalformed && appErr.Err != nil {
		resp.Message = appErr.Message + ": " + appErr.Err.Error()
	}
	return appErr.Status(), resp
}
