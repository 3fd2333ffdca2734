package echoapi

import (
	"fmt"
	"net/http"

	ut "github.com/go-playground/universal-translator"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/pkg/errors"

	"github.com/smkgaleri/galeri/core"
	"github.com/smkgaleri/galeri/core/akademik"
	"github.com/smkgaleri/galeri/core/penilaian"
	"github.com/smkgaleri/galeri/core/proyek"
	"github.com/smkgaleri/galeri/core/user"
)

var (
	errUnauthorized         = echo.NewHTTPError(http.StatusUnauthorized, "user not authenticated")
	errAuthenticationFailed = echo.NewHTTPError(http.StatusUnauthorized, "invalid credentials")
	errAccountDeactivated   = echo.NewHTTPError(http.StatusForbidden, "account deactivated")
	errRefreshExpired       = echo.NewHTTPError(http.StatusForbidden, "refresh has expired")
	errHttpForbidden        = echo.NewHTTPError(http.StatusForbidden, "permission denied")
	errHttpNotFound         = echo.NewHTTPError(http.StatusNotFound, "not found")

	validationFailedMsg = "the given data was invalid"

	// domain errors by response status
	errorStatuses = []struct {
		err  error
		code int
	}{
		{user.ErrNotFound, http.StatusNotFound},
		{user.ErrNISNotFound, http.StatusNotFound},
		{akademik.ErrJurusanNotFound, http.StatusNotFound},
		{akademik.ErrKelasNotFound, http.StatusNotFound},
		{proyek.ErrNotFound, http.StatusNotFound},
		{penilaian.ErrNotFound, http.StatusNotFound},
		{user.ErrAlreadyClaimed, http.StatusForbidden},
		{user.ErrAccountDeactivated, http.StatusForbidden},
		{proyek.ErrSiswaOnly, http.StatusForbidden},
		{proyek.ErrNotOwner, http.StatusForbidden},
		{proyek.ErrMissingJurusan, http.StatusForbidden},
		{penilaian.ErrCrossJurusan, http.StatusForbidden},
		{penilaian.ErrRoleNotAllowed, http.StatusForbidden},
		{penilaian.ErrNotGrader, http.StatusForbidden},
		{proyek.ErrAlreadyGraded, http.StatusConflict},
		{penilaian.ErrAlreadyGraded, http.StatusConflict},
		{penilaian.ErrConflict, http.StatusConflict},
		{user.ErrEmailExists, http.StatusConflict},
		{user.ErrNISExists, http.StatusConflict},
		{user.ErrNIPExists, http.StatusConflict},
		{user.ErrHasPenilaian, http.StatusConflict},
		{akademik.ErrKodeExists, http.StatusConflict},
	}
)

// ErrorResponse is the body of every failed request.
type ErrorResponse struct {
	Success bool                `json:"success"`
	Message string              `json:"message"`
	Errors  map[string][]string `json:"errors,omitempty"`
}

// newAppHTTPErrorHandler returns a custom echo.HTTPErrorHandler that knows how to handle our errors.
// signalShutdown is called in order to gracefully shutdown the Server whenever a core.shutdown error is caught.
func newAppHTTPErrorHandler(logger core.Logger, translator ut.Translator, signalShutdown func()) echo.HTTPErrorHandler {
	return func(err error, ctx echo.Context) {
		resp := ErrorResponse{}
		var code int

		origErr := errors.Cause(err)
		if fldErrs, ok := core.FieldErrors(origErr, translator); ok {
			code = http.StatusUnprocessableEntity
			resp.Message = validationFailedMsg
			if vErr, isVErr := origErr.(*core.ValidationError); isVErr && vErr.Err != nil {
				resp.Message = vErr.Err.Error()
			}
			resp.Errors = fldErrs
		} else if status, ok := domainErrorStatus(origErr); ok {
			code = status
			resp.Message = origErr.Error()
		} else {
			switch e := origErr.(type) {
			case *echo.HTTPError:
				if e == middleware.ErrJWTMissing {
					code = http.StatusUnauthorized
					resp.Message = fmt.Sprint(e.Message)
					break
				}
				if e.Internal != nil {
					if herr, ok := e.Internal.(*echo.HTTPError); ok {
						e = herr
					}
				}
				code = e.Code
				resp.Message = fmt.Sprint(e.Message)
			case *core.ArgumentError:
				code = http.StatusBadRequest
				resp.Message = e.Error()
			default: // any other error is a server error
				code = http.StatusInternalServerError
				resp.Message = http.StatusText(http.StatusInternalServerError)

				args := []interface{}{errors.Wrap(err, resp.Message)}
				if usr, uErr := getContextUser(ctx); uErr == nil {
					args = append(args, usr)
				}
				logger.Error(err.Error(), args...)

				if ctx.Echo().Debug {
					resp.Message = err.Error()
				}
				// shutting down...
				if core.IsShutdown(err) {
					signalShutdown()
				}
			}
		}

		// Send response
		if !ctx.Response().Committed {
			if ctx.Request().Method == http.MethodHead { // Issue #608
				err = ctx.NoContent(code)
			} else {
				err = ctx.JSON(code, resp)
			}
			if err != nil {
				ctx.Echo().Logger.Error(err)
			}
		}
	}
}

func domainErrorStatus(err error) (int, bool) {
	for _, es := range errorStatuses {
		if err == es.err {
			return es.code, true
		}
	}
	return 0, false
}
