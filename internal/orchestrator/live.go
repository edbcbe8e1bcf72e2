package orchestrator

import (
	"sync"
	"time"

	"github.com/wavelink/gateway-server-go/internal/transport"
)

// liveSession is the in-memory half of one tenant's connection. The durable
// TenantSession row stays authoritative for status whenever no liveSession
// exists for the tenant.
type liveSession struct {
	tenantID  string
	sessionID string
	transport transport.Transport

	mu          sync.Mutex
	connected   bool
	phoneNumber string
	pairingCode string
	reconnect   *time.Timer
}

func (ls *liveSession) markConnected(phoneNumber string) {
	ls.mu.Lock()
	defer ls.mu.Unlock()
	ls.connected = true
	ls.phoneNumber = phoneNumber
	ls.pairingCode = ""
}

func (ls *liveSession) markDisconnected() {
	ls.mu.Lock()
	defer ls.mu.Unlock()
	ls.connected = false
}

func (ls *liveSession) isConnected() bool {
	ls.mu.Lock()
	defer ls.mu.Unlock()
	return ls.connected
}

func (ls *liveSession) phone() string {
	ls.mu.Lock()
	defer ls.mu.Unlock()
	return ls.phoneNumber
}

func (ls *liveSession) setPairingCode(code string) {
	ls.mu.Lock()
	defer ls.mu.Unlock()
	ls.pairingCode = code
}

func (ls *liveSession) currentPairingCode() string {
	ls.mu.Lock()
	defer ls.mu.Unlock()
	return ls.pairingCode
}

// scheduleReconnect arms the retry timer, replacing any pending one.
func (ls *liveSession) scheduleReconnect(delay time.Duration, fn func()) {
	ls.mu.Lock()
	defer ls.mu.Unlock()
	if ls.reconnect != nil {
		ls.reconnect.Stop()
	}
	ls.reconnect = time.AfterFunc(delay, fn)
}

// cancelReconnect stops a pending retry so logout or restart cannot race a
// zombie reconnect.
func (ls *liveSession) cancelReconnect() {
	ls.mu.Lock()
	defer ls.mu.Unlock()
	if ls.reconnect != nil {
		ls.reconnect.Stop()
		ls.reconnect = nil
	}
}
