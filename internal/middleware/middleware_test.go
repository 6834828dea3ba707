package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/iliyamo/spacebook/internal/config"
	"github.com/iliyamo/spacebook/internal/model"
)

const secret = "mw-secret"

func sign(t *testing.T, method jwt.SigningMethod, key interface{}, claims jwt.MapClaims) string {
	t.Helper()
	s, err := jwt.NewWithClaims(method, claims).SignedString(key)
	require.NoError(t, err)
	return s
}

func validClaims(sub interface{}, role string) jwt.MapClaims {
	return jwt.MapClaims{"sub": sub, "role": role, "exp": time.Now().Add(time.Hour).Unix()}
}

// whoami echoes the actor stored by JWTAuth.
func whoami(c echo.Context) error {
	actor, ok := ActorFrom(c)
	if !ok {
		return c.NoContent(http.StatusTeapot)
	}
	return c.String(http.StatusOK, actor.Role+":"+strconv.FormatUint(actor.ID, 10))
}

func serve(e *echo.Echo, method, path, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	if token != "" {
		req.Header.Set(echo.HeaderAuthorization, "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func TestJWTAuth(t *testing.T) {
	e := echo.New()
	e.GET("/me", whoami, JWTAuth(secret))

	tests := []struct {
		name   string
		token  string
		status int
		body   string
	}{
		{"string subject", sign(t, jwt.SigningMethodHS256, []byte(secret), validClaims("12", model.RoleGuest)), http.StatusOK, "GUEST:12"},
		{"numeric subject", sign(t, jwt.SigningMethodHS256, []byte(secret), validClaims(7, model.RoleHost)), http.StatusOK, "HOST:7"},
		{"missing token", "", http.StatusUnauthorized, ""},
		{"wrong secret", sign(t, jwt.SigningMethodHS256, []byte("other"), validClaims("12", model.RoleGuest)), http.StatusUnauthorized, ""},
		{"expired", sign(t, jwt.SigningMethodHS256, []byte(secret), jwt.MapClaims{"sub": "1", "role": model.RoleGuest, "exp": time.Now().Add(-time.Minute).Unix()}), http.StatusUnauthorized, ""},
		{"wrong algorithm", sign(t, jwt.SigningMethodHS512, []byte(secret), validClaims("12", model.RoleGuest)), http.StatusUnauthorized, ""},
		{"unknown role", sign(t, jwt.SigningMethodHS256, []byte(secret), validClaims("12", "ADMIN")), http.StatusUnauthorized, ""},
		{"fractional subject", sign(t, jwt.SigningMethodHS256, []byte(secret), validClaims(1.5, model.RoleGuest)), http.StatusUnauthorized, ""},
		{"negative subject", sign(t, jwt.SigningMethodHS256, []byte(secret), validClaims("-3", model.RoleGuest)), http.StatusUnauthorized, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := serve(e, http.MethodGet, "/me", tt.token)
			assert.Equal(t, tt.status, rec.Code)
			if tt.body != "" {
				assert.Equal(t, tt.body, rec.Body.String())
			}
		})
	}
}

func TestRequireRole(t *testing.T) {
	e := echo.New()
	e.GET("/host-only", whoami, JWTAuth(secret), RequireRole(model.RoleHost, model.RoleSystem))
	e.GET("/no-auth", whoami, RequireRole(model.RoleGuest))

	host := sign(t, jwt.SigningMethodHS256, []byte(secret), validClaims("2", model.RoleHost))
	guest := sign(t, jwt.SigningMethodHS256, []byte(secret), validClaims("1", model.RoleGuest))

	assert.Equal(t, http.StatusOK, serve(e, http.MethodGet, "/host-only", host).Code)
	assert.Equal(t, http.StatusForbidden, serve(e, http.MethodGet, "/host-only", guest).Code)
	assert.Equal(t, http.StatusForbidden, serve(e, http.MethodGet, "/no-auth", "").Code)
}

func limitConfig(capacity int) config.RateLimitConfig {
	return config.RateLimitConfig{
		Enabled:        true,
		Capacity:       capacity,
		RefillTokens:   1,
		RefillInterval: time.Hour,
		TTL:            5 * time.Hour,
		KeyStrategy:    "user",
		Prefix:         "rl",
	}
}

func TestTokenBucketLocal(t *testing.T) {
	e := echo.New()
	e.GET("/ping", func(c echo.Context) error { return c.NoContent(http.StatusNoContent) }, NewTokenBucket(limitConfig(2), nil))

	for i := 0; i < 2; i++ {
		assert.Equal(t, http.StatusNoContent, serve(e, http.MethodGet, "/ping", "").Code)
	}
	rec := serve(e, http.MethodGet, "/ping", "")
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "0", rec.Header().Get("X-RateLimit-Remaining"))
	assert.NotEmpty(t, rec.Header().Get("Retry-After"))
}

func TestTokenBucketRedisKeysPerUser(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	e := echo.New()
	e.GET("/ping", func(c echo.Context) error { return c.NoContent(http.StatusNoContent) },
		JWTAuth(secret), NewTokenBucket(limitConfig(1), rdb))

	alice := sign(t, jwt.SigningMethodHS256, []byte(secret), validClaims("1", model.RoleGuest))
	bob := sign(t, jwt.SigningMethodHS256, []byte(secret), validClaims("2", model.RoleGuest))

	assert.Equal(t, http.StatusNoContent, serve(e, http.MethodGet, "/ping", alice).Code)
	assert.Equal(t, http.StatusTooManyRequests, serve(e, http.MethodGet, "/ping", alice).Code)
	assert.Equal(t, http.StatusNoContent, serve(e, http.MethodGet, "/ping", bob).Code)
	assert.True(t, mr.Exists("rl:user:1"))
}

func TestTokenBucketDisabled(t *testing.T) {
	e := echo.New()
	e.GET("/ping", func(c echo.Context) error { return c.NoContent(http.StatusNoContent) },
		NewTokenBucket(config.RateLimitConfig{Enabled: false}, nil))
	for i := 0; i < 5; i++ {
		assert.Equal(t, http.StatusNoContent, serve(e, http.MethodGet, "/ping", "").Code)
	}
}

func TestRedisCache(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	calls := 0
	cfg := config.CacheConfig{Enabled: true, Methods: map[string]bool{"GET": true}, TTL: time.Minute, Prefix: "cache"}
	e := echo.New()
	e.GET("/spaces/:id/busy", func(c echo.Context) error {
		calls++
		return c.JSON(http.StatusOK, echo.Map{"space": c.Param("id"), "calls": calls})
	}, NewResponseCache(cfg, rdb).Middleware())

	first := serve(e, http.MethodGet, "/spaces/1/busy?from=a", "")
	require.Equal(t, http.StatusOK, first.Code)
	assert.Equal(t, "MISS", first.Header().Get("X-Cache"))

	second := serve(e, http.MethodGet, "/spaces/1/busy?from=a", "")
	require.Equal(t, http.StatusOK, second.Code)
	assert.Equal(t, "HIT", second.Header().Get("X-Cache"))
	assert.Equal(t, first.Body.String(), second.Body.String())

	other := serve(e, http.MethodGet, "/spaces/2/busy?from=a", "")
	assert.Equal(t, "MISS", other.Header().Get("X-Cache"))
	assert.Equal(t, 2, calls)

	mr.FastForward(2 * time.Minute)
	serve(e, http.MethodGet, "/spaces/1/busy?from=a", "")
	assert.Equal(t, 3, calls)
}

func TestResponseCacheInvalidateSpace(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	cache := NewResponseCache(config.CacheConfig{Enabled: true, Methods: map[string]bool{"GET": true}, TTL: time.Minute, Prefix: "cache"}, rdb)
	calls := map[string]int{}
	e := echo.New()
	e.GET("/v1/spaces/:id/busy", func(c echo.Context) error {
		calls[c.Param("id")]++
		return c.JSON(http.StatusOK, echo.Map{"calls": calls[c.Param("id")]})
	}, cache.Middleware())

	serve(e, http.MethodGet, "/v1/spaces/1/busy?from=a", "")
	serve(e, http.MethodGet, "/v1/spaces/1/busy?from=b", "")
	serve(e, http.MethodGet, "/v1/spaces/2/busy?from=a", "")
	require.Len(t, mr.Keys(), 3)

	require.NoError(t, cache.InvalidateSpace(context.Background(), 1))
	assert.Len(t, mr.Keys(), 1, "only space 2 stays cached")

	rec := serve(e, http.MethodGet, "/v1/spaces/1/busy?from=a", "")
	assert.Equal(t, "MISS", rec.Header().Get("X-Cache"))
	assert.Equal(t, 3, calls["1"])
	rec = serve(e, http.MethodGet, "/v1/spaces/2/busy?from=a", "")
	assert.Equal(t, "HIT", rec.Header().Get("X-Cache"))

	require.NoError(t, cache.InvalidateSpace(context.Background(), 42))
	assert.NoError(t, NewResponseCache(config.CacheConfig{}, nil).InvalidateSpace(context.Background(), 1))
}

func TestResponseCacheSkipsOversizedBodies(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	cfg := config.CacheConfig{Enabled: true, Methods: map[string]bool{"GET": true}, TTL: time.Minute, MaxBodyBytes: 4}
	e := echo.New()
	e.GET("/big", func(c echo.Context) error { return c.String(http.StatusOK, "0123456789") }, NewResponseCache(cfg, rdb).Middleware())

	rec := serve(e, http.MethodGet, "/big", "")
	assert.Equal(t, "0123456789", rec.Body.String())
	assert.Empty(t, mr.Keys())
}

func TestCachePayloadRoundTrip(t *testing.T) {
	hdr := http.Header{"Content-Type": {"application/json"}}
	bs, err := encodePayload(http.StatusOK, hdr, []byte(`{"ok":true}`))
	require.NoError(t, err)

	status, got, body, ok := decodePayload(bs)
	require.True(t, ok)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, hdr, got)
	assert.JSONEq(t, `{"ok":true}`, string(body))

	_, _, _, ok = decodePayload(bs[:5])
	assert.False(t, ok)
}

func TestRequestLoggerRequestID(t *testing.T) {
	e := echo.New()
	e.Use(RequestLogger(zap.NewNop()))
	e.GET("/ok", func(c echo.Context) error { return c.NoContent(http.StatusOK) })
	e.GET("/boom", func(c echo.Context) error { return echo.NewHTTPError(http.StatusBadGateway, "upstream") })

	rec := serve(e, http.MethodGet, "/ok", "")
	assert.Len(t, rec.Header().Get(RequestIDHeader), 36)

	req := httptest.NewRequest(http.MethodGet, "/boom", nil)
	req.Header.Set(RequestIDHeader, "req-123")
	rec = httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadGateway, rec.Code)
	assert.Equal(t, "req-123", rec.Header().Get(RequestIDHeader))
}
