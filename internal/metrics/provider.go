package metrics

import (
	"net/http"

	reducto "github.com/gxo-labs/reducto/pkg/reducto/v1/metrics"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// PrometheusRegistryProvider implements the RegistryProvider interface
// using a dedicated Prometheus registry.
type PrometheusRegistryProvider struct {
	registry *prometheus.Registry
}

// NewPrometheusRegistryProvider creates a new metrics provider backed by an
// empty Prometheus registry.
func NewPrometheusRegistryProvider() *PrometheusRegistryProvider {
	return &PrometheusRegistryProvider{
		registry: prometheus.NewRegistry(),
	}
}

// NewProcessRegistryProvider creates a provider whose registry also carries
// the Go runtime and process collectors. Used by the long-running server.
func NewProcessRegistryProvider() *PrometheusRegistryProvider {
	p := NewPrometheusRegistryProvider()
	p.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return p
}

// Registry returns the underlying Prometheus registry.
func (p *PrometheusRegistryProvider) Registry() *prometheus.Registry {
	return p.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (p *PrometheusRegistryProvider) Handler() http.Handler {
	return promhttp.HandlerFor(p.registry, promhttp.HandlerOpts{Registry: p.registry})
}

var _ reducto.RegistryProvider = (*PrometheusRegistryProvider)(nil)
