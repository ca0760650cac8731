package metrics

import "github.com/prometheus/client_golang/prometheus"

// RegistryProvider gives stores and decorators the Prometheus registry their
// collectors are registered on. Several stores may share one provider.
type RegistryProvider interface {
	Registry() *prometheus.Registry
}
