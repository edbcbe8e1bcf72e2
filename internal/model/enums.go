package model

// ConnectionStatus is the durable status of a tenant's messaging session.
// The durable row is authoritative whenever no live connection exists.
type ConnectionStatus string

const (
	StatusDisconnected ConnectionStatus = "disconnected"
	StatusPairing      ConnectionStatus = "pairing"
	StatusConnected    ConnectionStatus = "connected"
	StatusLoggedOut    ConnectionStatus = "logged_out"
	StatusExpired      ConnectionStatus = "expired"
)

type MessageDirection string

const (
	DirectionIn  MessageDirection = "in"
	DirectionOut MessageDirection = "out"
)
