package invocation

// Message is the unit a client exchanges with the cluster. The payload is
// opaque to this layer; only the correlation id and the Retryable flag are
// interpreted here.
type Message struct {
	Type    string            `json:"type"`
	Data    []byte            `json:"data,omitempty"`
	Headers map[string]string `json:"headers,omitempty"`

	// CorrelationID tags the request so its asynchronous reply can be
	// matched to the waiting invocation. Assigned per attempt by Invoke.
	CorrelationID int64 `json:"correlation_id"`

	// Retryable marks the operation idempotent: safe to redo on another
	// member after the original target disconnected.
	Retryable bool `json:"retryable,omitempty"`
}

func (m *Message) GetHeader(key string) (string, bool) {
	if m.Headers == nil {
		return "", false
	}
	v, ok := m.Headers[key]
	return v, ok
}
