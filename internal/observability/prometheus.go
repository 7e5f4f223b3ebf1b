package observability

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"time"

	"resumegate/internal/config"
	"resumegate/internal/errors"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	otelprom "go.opentelemetry.io/otel/exporters/prometheus"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
)

// PrometheusConfig holds Prometheus-specific configuration
type PrometheusConfig struct {
	Enabled  bool
	Endpoint string
	Port     string
}

// PrometheusExporter bundles the OTel reader with the scrape handler serving it.
// Each exporter has its own registry so several managers can coexist in one process.
type PrometheusExporter struct {
	Reader   sdkmetric.Reader
	Registry *prometheus.Registry
	Mux      *http.ServeMux
}

// SetupPrometheusExporter creates an OTel reader backed by a private registry
// and a mux serving that registry on cfg.Endpoint. It returns nil when disabled.
func SetupPrometheusExporter(cfg PrometheusConfig) (*PrometheusExporter, error) {
	if !cfg.Enabled {
		return nil, nil
	}

	endpoint := cfg.Endpoint
	if endpoint == "" {
		endpoint = "/metrics"
	}

	registry := prometheus.NewRegistry()
	reader, err := otelprom.New(otelprom.WithRegisterer(registry))
	if err != nil {
		return nil, fmt.Errorf("failed to create Prometheus exporter: %w", err)
	}

	mux := http.NewServeMux()
	mux.Handle(endpoint, promhttp.HandlerFor(registry, promhttp.HandlerOpts{
		ErrorHandling: promhttp.ContinueOnError,
	}))

	return &PrometheusExporter{Reader: reader, Registry: registry, Mux: mux}, nil
}

// StartPrometheusServer serves mux on port in the background. The returned
// function shuts the server down. Bind errors are reported synchronously.
func StartPrometheusServer(mux *http.ServeMux, port string, logger *errors.Logger) (func(context.Context) error, error) {
	if mux == nil {
		return func(context.Context) error { return nil }, nil
	}

	listener, err := net.Listen("tcp", ":"+port)
	if err != nil {
		return nil, fmt.Errorf("failed to listen for Prometheus scrapes on port %s: %w", port, err)
	}

	server := &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	if logger != nil {
		logger.Info("Prometheus metrics server started", "address", listener.Addr().String())
	}

	go func() {
		if err := server.Serve(listener); err != nil && err != http.ErrServerClosed && logger != nil {
			logger.LogError(err, "Prometheus metrics server stopped")
		}
	}()

	return server.Shutdown, nil
}

// GetPrometheusConfig creates Prometheus configuration from provided config
func GetPrometheusConfig(cfg *config.Config) PrometheusConfig {
	if cfg != nil {
		return PrometheusConfig{
			Enabled:  cfg.Observability.Prometheus.Enabled,
			Endpoint: cfg.Observability.Prometheus.Endpoint,
			Port:     cfg.Observability.Prometheus.Port,
		}
	}

	return PrometheusConfig{
		Enabled:  false,
		Endpoint: "/metrics",
		Port:     "9464",
	}
}
