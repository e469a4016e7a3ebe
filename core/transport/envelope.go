package transport

// Envelope is what a Sender transmits: the routed message plus the routing
// facts the receiving node needs to hand it to the right shard.
type Envelope struct {
	Shard   int               `json:"shard"`
	Key     string            `json:"key,omitempty"`
	Type    string            `json:"type,omitempty"`
	Payload any               `json:"payload"`
	Headers map[string]string `json:"headers,omitempty"`
}

type EnvelopeOption func(*Envelope)

func WithHeader(key, value string) EnvelopeOption {
	return func(e *Envelope) {
		if e.Headers == nil {
			e.Headers = make(map[string]string)
		}
		e.Headers[key] = value
	}
}

func WithType(msgType string) EnvelopeOption {
	return func(e *Envelope) {
		e.Type = msgType
	}
}

func (e Envelope) GetHeader(key string) (string, bool) {
	if e.Headers == nil {
		return "", false
	}
	v, ok := e.Headers[key]
	return v, ok
}
