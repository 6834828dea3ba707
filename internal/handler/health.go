package handler // HTTP handlers

import (
    "context"
    "net/http"
    "time"

    "github.com/labstack/echo/v4"
)

// HealthCheck probes one dependency.  A nil error means healthy.
type HealthCheck struct {
    Name  string
    Probe func(ctx context.Context) error
}

// Health returns the /healthz handler used by load balancers.  With no
// checks it always answers 200; otherwise any failing probe turns the
// answer into 503 with per-check detail.
func Health(checks ...HealthCheck) echo.HandlerFunc {
    return func(c echo.Context) error {
        ctx, cancel := context.WithTimeout(c.Request().Context(), 2*time.Second)
        defer cancel()

        status := http.StatusOK
        detail := make(map[string]string, len(checks))
        for _, chk := range checks {
            if err := chk.Probe(ctx); err != nil {
                status = http.StatusServiceUnavailable
                detail[chk.Name] = err.Error()
                continue
            }
            detail[chk.Name] = "ok"
        }
        state := "ok"
        if status != http.StatusOK {
            state = "degraded"
        }
        return c.JSON(status, echo.Map{"status": state, "checks": detail})
    }
}
