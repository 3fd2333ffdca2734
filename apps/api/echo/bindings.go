package echoapi

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/smkgaleri/galeri/core"
	"github.com/smkgaleri/galeri/core/user"
)

var orderingParam = "ordering"

type Ordering struct {
	Orderings []core.DBOrdering
}

func (ord *Ordering) Bind(ctx echo.Context) {
	ord.Orderings = core.ParseOrderings(ctx.QueryParam(orderingParam))
}

// queryBool parses an optional boolean query param; invalid values are reported as an ArgumentError.
func queryBool(ctx echo.Context, name string) (*bool, error) {
	val := strings.TrimSpace(ctx.QueryParam(name))
	if val == "" {
		return nil, nil
	}
	b, err := strconv.ParseBool(val)
	if err != nil {
		return nil, core.NewArgumentError(name + " must be a boolean")
	}
	return &b, nil
}

type (
	// Response is the envelope of every successful request.
	Response struct {
		Success bool        `json:"success"`
		Data    interface{} `json:"data"`
		Message string      `json:"message,omitempty"`
	}

	// AuthResponse is returned by login, claim, register and refresh.
	AuthResponse struct {
		Success bool      `json:"success"`
		Token   string    `json:"token"`
		User    user.User `json:"user"`
		Message string    `json:"message,omitempty"`
	}

	MessageResponse struct {
		Success bool   `json:"success"`
		Message string `json:"message"`
	}
)

func respond(ctx echo.Context, code int, data interface{}, message ...string) error {
	resp := Response{Success: true, Data: data}
	if len(message) > 0 {
		resp.Message = message[0]
	}
	return ctx.JSON(code, resp)
}

func ok(ctx echo.Context, data interface{}, message ...string) error {
	return respond(ctx, http.StatusOK, data, message...)
}

func created(ctx echo.Context, data interface{}, message ...string) error {
	return respond(ctx, http.StatusCreated, data, message...)
}

// bind decodes the request body; malformed payloads are a 400.
func bind(ctx echo.Context, dst interface{}) error {
	if err := ctx.Bind(dst); err != nil {
		if herr, isHTTPErr := err.(*echo.HTTPError); isHTTPErr {
			return herr
		}
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return nil
}
