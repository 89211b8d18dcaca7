package protocol

import "errors"

// Error kinds. Every failure returned by the client wraps exactly one of these.
var (
	ErrCommunication    = errors.New("protocol: communication error")
	ErrProtocolMismatch = errors.New("protocol: reply shape mismatch")
	ErrSink             = errors.New("protocol: sink error")
	ErrEncoding         = errors.New("protocol: encoding error")
)

// Kind returns the short name of the error kind wrapped by err.
func Kind(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrCommunication):
		return "communication"
	case errors.Is(err, ErrProtocolMismatch):
		return "protocol_mismatch"
	case errors.Is(err, ErrSink):
		return "sink"
	case errors.Is(err, ErrEncoding):
		return "encoding"
	default:
		return "unknown"
	}
}
