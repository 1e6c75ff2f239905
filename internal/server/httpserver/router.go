package httpserver

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/yndnr/corslight-go/internal/telemetry/metric"
)

// RouterConfig holds configuration for the admin router.
type RouterConfig struct {
	// Metrics is exposed on /metrics. Nil answers 404.
	Metrics *metric.Registry

	// Ready reports whether the server can take connections. Nil means
	// always ready.
	Ready func() error

	// Status returns the /admin/v1/status document. Nil answers 404.
	Status func() any

	// AllowList restricts every endpoint except /healthz.
	AllowList []string

	Logger *slog.Logger
}

// NewRouter creates the admin router.
func NewRouter(cfg *RouterConfig) http.Handler {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	base := []Middleware{RequestID(), Recover(logger), AccessLog(logger)}
	guarded := append(append([]Middleware(nil), base...), NetworkACL(cfg.AllowList, logger))

	mux := http.NewServeMux()

	mux.Handle("GET /healthz", Chain(http.HandlerFunc(handleHealth), base...))

	mux.Handle("GET /readyz", Chain(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if cfg.Ready != nil {
			if err := cfg.Ready(); err != nil {
				writeError(w, http.StatusServiceUnavailable, CodeNotReady, err.Error())
				return
			}
		}
		writeJSON(w, http.StatusOK, map[string]string{
			"status": "ready",
			"time":   time.Now().UTC().Format(time.RFC3339),
		})
	}), guarded...))

	if cfg.Metrics != nil {
		mux.Handle("GET /metrics", Chain(cfg.Metrics.Handler(), guarded...))
	}

	if cfg.Status != nil {
		mux.Handle("GET /admin/v1/status", Chain(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, http.StatusOK, cfg.Status())
		}), guarded...))
	}

	return mux
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status": "healthy",
		"time":   time.Now().UTC().Format(time.RFC3339),
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
