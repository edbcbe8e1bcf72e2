// Package transport defines the capability surface the orchestrator needs
// from an underlying messaging protocol client. The wire protocol, handshake
// and presence mechanics live entirely behind this interface; the
// orchestrator only sees typed events and a handful of verbs.
package transport

import "context"

// Transport is one tenant's live protocol connection.
//
// Events() delivers events in the order the remote side produced them and is
// closed when the connection shuts down for good. Send returns the
// protocol-assigned message id used as the persistence dedup key.
type Transport interface {
	Connect(ctx context.Context) error
	Events() <-chan Event
	Send(ctx context.Context, to, body string) (string, error)
	SendPresence(ctx context.Context, to string, composing bool) error
	Logout(ctx context.Context) error
	Close() error
}

// HistoryProvider is an optional capability: transports that can replay the
// remote conversation history implement it, and the orchestrator backfills
// from it after a successful connect.
type HistoryProvider interface {
	History(ctx context.Context) ([]MessageEvent, error)
}

// Dialer constructs a Transport for a tenant. A nil credentials slice means
// no prior auth state exists and the transport must start a fresh pairing
// flow; credential rotations come back as CredentialsEvent values.
type Dialer interface {
	Dial(ctx context.Context, tenantID string, credentials []byte) (Transport, error)
}
