package middleware

import (
	"sync"

	"github.com/ansrivas/fiberprometheus/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RedisErrors counts Redis errors by command name.
	RedisErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "sit_redis_errors_total",
		Help: "Total number of Redis errors by command",
	}, []string{"operation"})

	// ToggleRetries counts optimistic-concurrency retries on toggle
	// operations by entity and outcome ("retried" or "exhausted").
	ToggleRetries = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "sit_toggle_retries_total",
		Help: "Optimistic concurrency retries on membership toggles",
	}, []string{"entity", "outcome"})

	// CascadeScrubbedRows counts rows rewritten by reference scrubs after
	// an entity delete.
	CascadeScrubbedRows = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "sit_cascade_scrubbed_rows_total",
		Help: "Rows rewritten while scrubbing references of deleted entities",
	}, []string{"entity"})
)

var (
	promOnce sync.Once
	promHTTP *fiberprometheus.FiberPrometheus
)

// InitMetrics creates the Prometheus HTTP middleware for the given service
// name. The underlying collectors register once per process; repeated calls
// return the same instance.
func InitMetrics(serviceName string) *fiberprometheus.FiberPrometheus {
	promOnce.Do(func() {
		promHTTP = fiberprometheus.New(serviceName)
	})
	return promHTTP
}

// MetricsMiddleware returns the Fiber handler recording per-route HTTP metrics.
func MetricsMiddleware(prom *fiberprometheus.FiberPrometheus) fiber.Handler {
	return prom.Middleware
}
