package chromaffi

type options struct {
	logger           *Logger
	metricsCollector MetricsCollector
	lockOSThread     bool
}

// Option configures client construction.
type Option func(*options)

// WithLogger sets the logger of the client and its engine.
// If nil is passed, a logger is built from the log configuration.
func WithLogger(l *Logger) Option {
	return func(o *options) {
		o.logger = l
	}
}

// WithMetricsCollector sets the collector that records every call.
//
// Without this option the client uses a PrometheusCollector when metrics are
// enabled in the configuration, and NoopMetricsCollector otherwise.
func WithMetricsCollector(mc MetricsCollector) Option {
	return func(o *options) {
		o.metricsCollector = mc
	}
}

// WithLockOSThread pins the client's executor goroutine to one OS thread.
// This is the same as setting executor.lock_os_thread in the configuration.
func WithLockOSThread() Option {
	return func(o *options) {
		o.lockOSThread = true
	}
}
