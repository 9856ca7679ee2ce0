package metrics

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const shutdownTimeout = 5 * time.Second

// ErrInvalidPort is returned by Config.Check when Port is out of range.
var ErrInvalidPort = errors.New("metrics: invalid port")

// Config describes the metrics HTTP listener.
type Config struct {
	Enabled bool
	Host    string
	Port    int
}

// Check validates the config when metrics are enabled; a disabled config is
// always valid regardless of Host/Port.
func (c Config) Check() error {
	if !c.Enabled {
		return nil
	}
	if c.Port < 0 || c.Port > 65535 {
		return fmt.Errorf("%w: %d", ErrInvalidPort, c.Port)
	}
	return nil
}

// ListenAndServe starts an HTTP server exposing m's registry at /metrics. It
// blocks until ctx is done, then shuts the server down gracefully.
func ListenAndServe(ctx context.Context, m *Metrics, cfg Config) error {
	addr := net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port))
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.InstrumentMetricHandler(
		m.Registry(), promhttp.HandlerFor(m.Registry(), promhttp.HandlerOpts{}),
	))
	server := &http.Server{Addr: addr, Handler: mux}

	errCh := make(chan error, 1)
	go func() { errCh <- server.ListenAndServe() }()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	}
}
