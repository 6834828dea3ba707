package middleware // reusable HTTP middleware

import (
    "fmt"
    "net/http"
    "strconv"
    "strings"

    "github.com/golang-jwt/jwt/v5"
    "github.com/labstack/echo/v4"

    "github.com/iliyamo/spacebook/internal/model"
)

// Context keys set by JWTAuth.
const (
    ctxUserID = "user_id"
    ctxRole   = "role"
)

// JWTAuth returns an Echo middleware that validates a Bearer access token
// and stores the subject (as uint64) and role in the request context.
// Tokens are issued elsewhere; the secret must match the issuer's.
func JWTAuth(secret string) echo.MiddlewareFunc {
    return func(next echo.HandlerFunc) echo.HandlerFunc {
        return func(c echo.Context) error {
            auth := c.Request().Header.Get("Authorization")
            if !strings.HasPrefix(auth, "Bearer ") {
                return c.JSON(http.StatusUnauthorized, echo.Map{"error": "missing bearer token"})
            }
            raw := strings.TrimPrefix(auth, "Bearer ")

            // Only HMAC-signed tokens are accepted.
            tok, err := jwt.Parse(raw, func(t *jwt.Token) (interface{}, error) {
                if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
                    return nil, echo.ErrUnauthorized
                }
                return []byte(secret), nil
            }, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
            if err != nil || !tok.Valid {
                return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid token"})
            }

            claims, ok := tok.Claims.(jwt.MapClaims)
            if !ok {
                return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid claims"})
            }
            id, err := subjectID(claims["sub"])
            if err != nil {
                return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid subject"})
            }
            role, _ := claims["role"].(string)
            switch role {
            case model.RoleGuest, model.RoleHost, model.RoleSystem:
            default:
                return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid role"})
            }

            c.Set(ctxUserID, id)
            c.Set(ctxRole, role)
            return next(c)
        }
    }
}

// subjectID accepts "sub" as a JSON number or a decimal string.
func subjectID(v interface{}) (uint64, error) {
    switch t := v.(type) {
    case float64:
        if t < 0 || t != float64(uint64(t)) {
            return 0, fmt.Errorf("bad subject %v", t)
        }
        return uint64(t), nil
    case string:
        return strconv.ParseUint(t, 10, 64)
    default:
        return 0, fmt.Errorf("bad subject type %T", v)
    }
}

// ActorFrom returns the authenticated actor stored by JWTAuth.
func ActorFrom(c echo.Context) (model.Actor, bool) {
    id, ok := c.Get(ctxUserID).(uint64)
    if !ok {
        return model.Actor{}, false
    }
    role, _ := c.Get(ctxRole).(string)
    return model.Actor{ID: id, Role: role}, true
}
