package observability

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"

	"github.com/labstack/echo/v4"

	"github.com/tphakala/challenge-migration/internal/conf"
	"github.com/tphakala/challenge-migration/internal/logger"
	metricspkg "github.com/tphakala/challenge-migration/internal/observability/metrics"
)

// Endpoint serves /metrics and /healthz while a run is in progress.
type Endpoint struct {
	echo          *echo.Echo
	listenAddress string
	metrics       *Metrics
	log           logger.Logger
}

// NewEndpoint creates the metrics endpoint. It returns an error when metrics
// are disabled in the settings.
func NewEndpoint(settings conf.MetricsSettings, metrics *Metrics, log logger.Logger) (*Endpoint, error) {
	if !settings.Enabled {
		return nil, fmt.Errorf("metrics endpoint not enabled in settings")
	}
	if log == nil {
		log = logger.NewNopLogger()
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.GET("/metrics", echo.WrapHandler(metrics.Handler()))
	e.GET("/healthz", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
	})

	return &Endpoint{
		echo:          e,
		listenAddress: settings.Listen,
		metrics:       metrics,
		log:           log,
	}, nil
}

// Start runs the HTTP server until ctx is cancelled, then shuts it down.
func (e *Endpoint) Start(ctx context.Context, wg *sync.WaitGroup) {
	wg.Go(func() {
		e.log.Info("metrics endpoint starting", logger.String("address", e.listenAddress))
		if err := e.echo.Start(e.listenAddress); err != nil && !errors.Is(err, http.ErrServerClosed) {
			e.log.Error("metrics HTTP server error", logger.Error(err))
		}
	})

	wg.Go(func() {
		<-ctx.Done()
		e.log.Info("stopping metrics endpoint")
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), metricspkg.ShutdownTimeout)
		defer cancel()
		if err := e.echo.Shutdown(shutdownCtx); err != nil {
			e.log.Error("metrics endpoint shutdown error", logger.Error(err))
		}
	})
}

// ServeHTTP lets tests exercise the routes without a listener.
func (e *Endpoint) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	e.echo.ServeHTTP(w, r)
}

// GetMetrics returns the Metrics instance associated with this Endpoint.
func (e *Endpoint) GetMetrics() *Metrics {
	return e.metrics
}
