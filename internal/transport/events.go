package transport

import (
	"encoding/json"
	"time"
)

// Event is the closed set of things a transport can report. Payloads are
// decoded once at the transport boundary into these variants; nothing
// downstream touches raw protocol frames.
type Event interface {
	isEvent()
}

// PairingCodeEvent carries a fresh single-use pairing artifact for the
// remote device to consume.
type PairingCodeEvent struct {
	Code string
}

// ConnectedEvent is emitted once the session is authenticated and live.
type ConnectedEvent struct {
	PhoneNumber string
}

// CredentialsEvent is a credential rotation. The orchestrator must persist
// the blob before processing any further events for the tenant.
type CredentialsEvent struct {
	Credentials []byte
}

// MessageEvent is a single inbound or self-authored message.
type MessageEvent struct {
	ExternalID string
	From       string
	To         string
	FromSelf   bool
	PushName   string
	Body       string
	SentAt     time.Time
	Raw        json.RawMessage
}

// DisconnectedEvent reports a closed connection. LoggedOut means the remote
// side invalidated the session; reconnecting is pointless and auth state
// must be wiped.
type DisconnectedEvent struct {
	Reason    string
	LoggedOut bool
}

func (PairingCodeEvent) isEvent()  {}
func (ConnectedEvent) isEvent()    {}
func (CredentialsEvent) isEvent()  {}
func (MessageEvent) isEvent()      {}
func (DisconnectedEvent) isEvent() {}
