// Package metrics holds the small set of instrumentation primitives shared by
// the dispatch packages. Every package declares its own metrics interface in
// terms of these types and ships a no-op implementation, so the core never
// depends on a concrete backend. See adapters/prometheus for the Prometheus
// implementations.
package metrics

// Counter only goes up.
type Counter interface {
	Inc()
	Add(delta float64)
}

// Gauge tracks a value that can go up and down, e.g. the number of open
// senders or pending scheduler callbacks.
type Gauge interface {
	Set(value float64)
	Inc()
	Dec()
}

// Timer measures one operation. Call ObserveDuration when it completes:
//
//	defer m.DispatchDuration().ObserveDuration()
type Timer interface {
	ObserveDuration()
}
