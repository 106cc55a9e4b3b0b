package echoapi

import (
	"fmt"
	"net/http"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/pkg/errors"

	"github.com/trezcool/elimu/core"
	"github.com/trezcool/elimu/core/user"
)

var (
	errUnauthorized    = echo.NewHTTPError(http.StatusUnauthorized, "user not authenticated")
	errHttpForbidden   = echo.NewHTTPError(http.StatusForbidden, "permission denied")
	errTooManyRequests = echo.NewHTTPError(http.StatusTooManyRequests, "too many requests, try again later")
)

// errorResponse maps a handler error to its status code and body.
// known is false for unexpected errors, which are answered with a bare 500.
func errorResponse(err error, translator ut.Translator) (code int, body interface{}, known bool) {
	cause := errors.Cause(err)
	switch e := cause.(type) {
	case *echo.HTTPError:
		if e == middleware.ErrJWTMissing {
			return http.StatusUnauthorized, e.Message, true
		}
		// the JWT middleware wraps the parsing error of an invalid token
		if inner, ok := e.Internal.(*echo.HTTPError); ok {
			e = inner
		}
		return e.Code, e.Message, true
	case validator.ValidationErrors:
		return http.StatusBadRequest, core.FieldErrors(e, translator), true
	case *core.ValidationError:
		if len(e.Fields) == 0 {
			return http.StatusBadRequest, e.Error(), true
		}
		fields := make(map[string]string, len(e.Fields))
		for _, fe := range e.Fields {
			fields[fe.Field] = fe.Error
		}
		return http.StatusBadRequest, fields, true
	case *core.NotFoundError:
		return http.StatusNotFound, e.Error(), true
	case *core.InvalidOperationError:
		return http.StatusBadRequest, e.Error(), true
	case *core.UnsupportedFileTypeError:
		return http.StatusBadRequest, map[string]string{e.Field: fmt.Sprintf("unsupported file type %q", e.ContentType)}, true
	case *core.FileTooLargeError:
		return http.StatusRequestEntityTooLarge, map[string]string{e.Field: fmt.Sprintf("file exceeds the %d bytes limit", e.Limit)}, true
	}
	if cause == user.ErrInvalidCredentials {
		return http.StatusUnauthorized, cause.Error(), true
	}
	return http.StatusInternalServerError, http.StatusText(http.StatusInternalServerError), false
}

// newAppHTTPErrorHandler answers errors with a JSON body, logs the unexpected ones
// and calls signalShutdown when a core shutdown error comes through.
func newAppHTTPErrorHandler(logger core.Logger, translator ut.Translator, signalShutdown func(error)) echo.HTTPErrorHandler {
	return func(err error, ctx echo.Context) {
		code, body, known := errorResponse(err, translator)
		if !known {
			var usr core.LogUser
			if claims, cErr := getContextClaims(ctx); cErr == nil {
				usr = core.LogUser{ID: claims.ID, Email: claims.Email}
			}
			logger.Error(fmt.Sprintf("%s %s: %v", ctx.Request().Method, ctx.Path(), err), errors.WithStack(err), usr)

			if core.IsShutdown(err) {
				signalShutdown(err)
			}
		}

		if ctx.Echo().Debug {
			body = err.Error()
		}
		if msg, ok := body.(string); ok {
			body = echo.Map{"error": msg}
		}
		if ctx.Response().Committed {
			return
		}

		var sendErr error
		if ctx.Request().Method == http.MethodHead {
			sendErr = ctx.NoContent(code)
		} else {
			sendErr = ctx.JSON(code, body)
		}
		if sendErr != nil {
			logger.Error(fmt.Sprintf("sending error response: %v", sendErr), sendErr)
		}
	}
}
