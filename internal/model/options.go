package model

// Option configures a Bridge.
type Option func(*Bridge)

// WithMetricsCollector sets the metrics collector.
func WithMetricsCollector(mc MetricsCollector) Option {
	return func(b *Bridge) {
		if mc != nil {
			b.metrics = mc
		}
	}
}
