package protocol

// SessionWriter delivers outbound events to one connected session.
// wsutils.ThreadSafeWriter satisfies it in production; tests substitute
// capturing doubles.
type SessionWriter interface {
	WriteJSON(v any) error
	Close() error
}
