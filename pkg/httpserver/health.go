package httpserver

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/dmitrymomot/iapkit/pkg/logger"
)

// Check is a named dependency probe.
type Check struct {
	Name string
	Func func(ctx context.Context) error
}

const checkTimeout = 3 * time.Second

// HealthHandler reports liveness when no checks are given and readiness
// otherwise. The body maps each check name to "ok" or its error; any failed
// check yields 503.
func HealthHandler(log *slog.Logger, checks ...Check) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		status := http.StatusOK
		body := map[string]string{"status": "alive"}
		if len(checks) > 0 {
			body["status"] = "ready"
		}

		ctx, cancel := context.WithTimeout(r.Context(), checkTimeout)
		defer cancel()
		for _, c := range checks {
			if err := c.Func(ctx); err != nil {
				log.ErrorContext(ctx, "readiness check failed", slog.String("check", c.Name), logger.Error(err))
				body[c.Name] = err.Error()
				body["status"] = "not_ready"
				status = http.StatusServiceUnavailable
				continue
			}
			body[c.Name] = "ok"
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_ = json.NewEncoder(w).Encode(body)
	}
}
