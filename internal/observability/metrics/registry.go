// Package metrics defines the Prometheus collectors for the visit
// service: database work, visit aggregation, the HTTP surface and
// application errors. Each collector set registers against the shared
// registry owned by the observability package.
package metrics

import "github.com/prometheus/client_golang/prometheus"

// registerAll registers collectors one at a time so a duplicate
// registration surfaces as an error instead of a panic.
func registerAll(registry *prometheus.Registry, collectors ...prometheus.Collector) error {
	for _, c := range collectors {
		if err := registry.Register(c); err != nil {
			return err
		}
	}
	return nil
}
