package domain

import (
	"errors"
	"fmt"
)

// ErrRetriesExhausted is the only error that halts the ingestion component:
// the stream is permanently down and must be surfaced to the operator, not
// retried forever.
var ErrRetriesExhausted = errors.New("reconnect attempts exhausted")

// TransportError is a connection-level failure. Non-fatal: it triggers the
// backoff path.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("transport %s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// ProtocolError marks a malformed inbound message. The message is dropped
// and processing continues.
type ProtocolError struct {
	Reason string
	Err    error
}

func (e *ProtocolError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("protocol: %s: %v", e.Reason, e.Err)
	}
	return fmt.Sprintf("protocol: %s", e.Reason)
}

func (e *ProtocolError) Unwrap() error { return e.Err }

// GeometryError marks a malformed geofence. Only that geofence is skipped,
// never the whole evaluation batch.
type GeometryError struct {
	GeofenceID string
	Reason     string
}

func (e *GeometryError) Error() string {
	return fmt.Sprintf("geometry: geofence %s: %s", e.GeofenceID, e.Reason)
}

// GatewayError marks a failed persistence call. Logged only; in-memory
// state is never rolled back.
type GatewayError struct {
	Record string
	Err    error
}

func (e *GatewayError) Error() string {
	return fmt.Sprintf("gateway %s: %v", e.Record, e.Err)
}

func (e *GatewayError) Unwrap() error { return e.Err }
