package api

import (
	"context"
	"database/sql"
	"net/http"
	"time"

	"github.com/alejandrogutier/claro-data-ai-sub003/internal/pkg/httputil"
	"github.com/redis/go-redis/v9"
)

// HealthChecker reports liveness of the process dependencies. The endpoint is
// unauthenticated; it never leaks connection strings or errors verbatim.
type HealthChecker struct {
	db        *sql.DB
	redis     *redis.Client
	startTime time.Time
}

// NewHealthChecker wires the health endpoint. Redis may be nil when the
// advisory lock is not configured.
func NewHealthChecker(db *sql.DB, redisClient *redis.Client) *HealthChecker {
	return &HealthChecker{db: db, redis: redisClient, startTime: time.Now()}
}

type componentCheck struct {
	Status  string `json:"status"`
	Latency string `json:"latency,omitempty"`
}

// HandleHealth pings the database and, when configured, Redis.
//
//	GET /health
func (hc *HealthChecker) HandleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	checks := map[string]componentCheck{
		"database": hc.checkDB(ctx),
	}
	if hc.redis != nil {
		checks["redis"] = hc.checkRedis(ctx)
	}

	status := "healthy"
	code := http.StatusOK
	if checks["database"].Status != "up" {
		status = "unhealthy"
		code = http.StatusServiceUnavailable
	} else if c, ok := checks["redis"]; ok && c.Status != "up" {
		status = "degraded"
	}

	httputil.JSON(w, code, map[string]any{
		"status": status,
		"uptime": time.Since(hc.startTime).Round(time.Second).String(),
		"checks": checks,
	})
}

func (hc *HealthChecker) checkDB(ctx context.Context) componentCheck {
	if hc.db == nil {
		return componentCheck{Status: "not_configured"}
	}
	start := time.Now()
	if err := hc.db.PingContext(ctx); err != nil {
		return componentCheck{Status: "down"}
	}
	return componentCheck{Status: "up", Latency: time.Since(start).Round(time.Millisecond).String()}
}

func (hc *HealthChecker) checkRedis(ctx context.Context) componentCheck {
	start := time.Now()
	if err := hc.redis.Ping(ctx).Err(); err != nil {
		return componentCheck{Status: "down"}
	}
	return componentCheck{Status: "up", Latency: time.Since(start).Round(time.Millisecond).String()}
}
