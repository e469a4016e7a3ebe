package plugin

// PluginMetrics receives registry events.
type PluginMetrics interface {
	// Resolved counts a discovery attempt and its outcome.
	Resolved(capability string, success bool)
	// Ambiguous counts discoveries that found more than one candidate.
	Ambiguous(capability string)
	// Overridden counts registrations that replaced an instance.
	Overridden(capability string)
}

type nopPluginMetrics struct{}

func (nopPluginMetrics) Resolved(string, bool) {}
func (nopPluginMetrics) Ambiguous(string)      {}
func (nopPluginMetrics) Overridden(string)     {}

func NopPluginMetrics() PluginMetrics { return nopPluginMetrics{} }
