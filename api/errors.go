package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/pkg/errors"

	"github.com/daruliman/pondok/core"
)

var (
	errUnauthorized         = echo.NewHTTPError(http.StatusUnauthorized, "operator not authenticated")
	errAuthenticationFailed = echo.NewHTTPError(http.StatusBadRequest, "authentication failed")
	errHttpForbidden        = echo.NewHTTPError(http.StatusForbidden, "permission denied")
	errHttpNotFound         = echo.NewHTTPError(http.StatusNotFound, "not found")
)

// newAppHTTPErrorHandler returns a custom echo.HTTPErrorHandler that maps our
// error taxonomy to responses. signalShutdown is called whenever a
// core.shutdown error is caught so the server can stop gracefully.
func newAppHTTPErrorHandler(logger core.Logger, signalShutdown func()) echo.HTTPErrorHandler {
	return func(err error, ctx echo.Context) {
		var code int
		var message interface{}

		switch origErr := errors.Cause(err).(type) {
		case *echo.HTTPError:
			if origErr == middleware.ErrJWTMissing {
				code = http.StatusUnauthorized
				message = origErr.Message
				break
			}
			if origErr.Internal != nil {
				if herr, ok := origErr.Internal.(*echo.HTTPError); ok {
					origErr = herr
				}
			}
			code = origErr.Code
			message = origErr.Message
		case validator.ValidationErrors:
			fldErrs := make(map[string]string, len(origErr))
			for _, vErr := range origErr {
				fldErrs[vErr.Field()] = vErr.Translate(core.Translator)
			}
			code = http.StatusBadRequest
			message = fldErrs
		case *core.ValidationError:
			code = http.StatusBadRequest
			message = validationFields(origErr)
		default: // any other error is a server error
			if core.IsPartialWrite(err) {
				// surfaced distinctly so operators know which transaction to reconcile
				pwErr := errors.Cause(err).(*core.PartialWriteError)
				code = http.StatusInternalServerError
				message = echo.Map{
					"error":          "partial write",
					"transaction_id": pwErr.TransactionID,
					"step":           pwErr.Step,
				}
				logger.Error("partial write", pwErr)
				break
			}

			code = http.StatusInternalServerError
			msg := http.StatusText(http.StatusInternalServerError)
			message = msg

			logger.Error(msg, errors.Wrap(err, msg))

			if core.IsShutdown(err) {
				signalShutdown()
			}
		}

		if ctx.Echo().Debug {
			message = err.Error()
		} else if m, ok := message.(string); ok {
			message = echo.Map{"error": m}
		}

		if ctx.Response().Committed {
			return
		}
		if ctx.Request().Method == http.MethodHead {
			err = ctx.NoContent(code)
		} else {
			err = ctx.JSON(code, message)
		}
		if err != nil {
			ctx.Echo().Logger.Error(err)
		}
	}
}

func validationFields(verr *core.ValidationError) interface{} {
	if verr.Fields == nil {
		return verr.Error()
	}
	fldErrs := make(map[string]string, len(verr.Fields))
	for _, fErr := range verr.Fields {
		fldErrs[fErr.Field] = fErr.Error
	}
	return fldErrs
}
