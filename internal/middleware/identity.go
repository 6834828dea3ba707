package middleware

import (
    "strconv"

    "github.com/labstack/echo/v4"
)

// userKey identifies the caller for rate limit keys: the JWT subject when
// authenticated, "anon" otherwise.
func userKey(c echo.Context) string {
    if actor, ok := ActorFrom(c); ok {
        return strconv.FormatUint(actor.ID, 10)
    }
    return "anon"
}
