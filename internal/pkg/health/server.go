package health

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/Vodeneev/matchscraper/internal/pkg/health/handlers"
)

// Sources feeds the health endpoints. Nil fields disable their endpoint.
type Sources struct {
	// Ready reports whether the run is still healthy; nil means always ready.
	Ready func() error
	// Metrics serves /metrics in Prometheus format.
	Metrics http.Handler
	// Progress is encoded as JSON on /progress.
	Progress func() any
	// Performance is encoded as JSON on /performance.
	Performance func() any
}

// NewMux builds the handler tree served by Run.
func NewMux(src Sources) *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("/ping", handlers.HandlePing)
	mux.HandleFunc("/health", handlers.HandleHealth(src.Ready))

	if src.Metrics != nil {
		mux.Handle("/metrics", src.Metrics)
	}
	if src.Progress != nil {
		mux.HandleFunc("/progress", handlers.HandleJSON(src.Progress))
	}
	if src.Performance != nil {
		mux.HandleFunc("/performance", handlers.HandleJSON(src.Performance))
	}
	return mux
}

// Run serves the health endpoints on addr until ctx is done. It does not block.
func Run(ctx context.Context, addr string, service string, src Sources, readHeaderTimeout time.Duration) {
	if readHeaderTimeout <= 0 {
		readHeaderTimeout = 5 * time.Second
	}

	srv := &http.Server{
		Addr:              addr,
		Handler:           NewMux(src),
		ReadHeaderTimeout: readHeaderTimeout,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	go func() {
		slog.Info("Health server listening", "service", service, "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("Health server error", "service", service, "error", err)
		}
	}()
}
