package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/spacebook/internal/booking"
	"github.com/iliyamo/spacebook/internal/middleware"
	"github.com/iliyamo/spacebook/internal/model"
)

// RequestValidator adapts go-playground/validator to echo.Validator.
type RequestValidator struct {
	v *validator.Validate
}

// NewValidator returns a validator that reads `validate` struct tags.
func NewValidator() *RequestValidator {
	return &RequestValidator{v: validator.New(validator.WithRequiredStructEnabled())}
}

// Validate implements echo.Validator.
func (rv *RequestValidator) Validate(i interface{}) error {
	return rv.v.Struct(i)
}

// bindValid binds the JSON body into dst and validates it.  It writes the
// 400 response itself and reports whether the handler should continue.
func bindValid(c echo.Context, dst interface{}) (bool, error) {
	if err := c.Bind(dst); err != nil {
		return false, c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}
	if err := c.Validate(dst); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			fe := verrs[0]
			return false, c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid field " + fe.Field() + ": " + fe.Tag()})
		}
		return false, c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
	}
	return true, nil
}

// currentActor returns the authenticated caller or writes 401.
func currentActor(c echo.Context) (model.Actor, bool, error) {
	actor, ok := middleware.ActorFrom(c)
	if !ok {
		return model.Actor{}, false, c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	return actor, true, nil
}

// matchesActor enforces that an optional identity field in the body names
// the token subject.
func matchesActor(c echo.Context, actor model.Actor, claimed *uint64) (bool, error) {
	if claimed != nil && *claimed != actor.ID {
		return false, c.JSON(http.StatusForbidden, echo.Map{"error": "actor does not match authenticated user"})
	}
	return true, nil
}

// pathID parses a positive integer path parameter or writes 400.
func pathID(c echo.Context, name string) (uint64, bool, error) {
	id, err := strconv.ParseUint(c.Param(name), 10, 64)
	if err != nil || id == 0 {
		return 0, false, c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid " + name})
	}
	return id, true, nil
}

// paging reads limit and offset query parameters.  Invalid values fall back
// to the defaults applied downstream.
func paging(c echo.Context) (int, int) {
	limit, _ := strconv.Atoi(c.QueryParam("limit"))
	offset, _ := strconv.Atoi(c.QueryParam("offset"))
	return limit, offset
}

// StatusFor maps a booking error onto an HTTP status.
func StatusFor(err error) int {
	switch {
	case errors.Is(err, booking.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, booking.ErrUnauthorized):
		return http.StatusForbidden
	case errors.Is(err, booking.ErrConflict), errors.Is(err, booking.ErrInvalidState):
		return http.StatusConflict
	case errors.Is(err, booking.ErrInvalidInput):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// writeError renders err as {"error": ...}.  Infrastructure failures are
// logged and hidden behind a generic message.
func writeError(c echo.Context, err error) error {
	status := StatusFor(err)
	if status == http.StatusInternalServerError {
		c.Logger().Error(err)
		return c.JSON(status, echo.Map{"error": "internal error"})
	}
	return c.JSON(status, echo.Map{"error": err.Error()})
}
