package transport

// TransportMetrics receives sender lifecycle events. All methods must be safe
// for concurrent use.
type TransportMetrics interface {
	SenderCreated(transport string)
	SenderCreateFailed(transport string)
	SenderClosed(transport string)
	SendersOpen(transport string, count int)
}

type nopTransportMetrics struct{}

func (nopTransportMetrics) SenderCreated(string)      {}
func (nopTransportMetrics) SenderCreateFailed(string) {}
func (nopTransportMetrics) SenderClosed(string)       {}
func (nopTransportMetrics) SendersOpen(string, int)   {}

// NopTransportMetrics returns a TransportMetrics that discards everything.
func NopTransportMetrics() TransportMetrics { return nopTransportMetrics{} }
