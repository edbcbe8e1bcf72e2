package transport

import (
	"context"
	"crypto/rand"
	"fmt"
	"math/big"
	"sync"
	"time"
)

const (
	memoryEventBuffer = 64
	pairingCodeChars  = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"
)

// MemoryDialer hands out in-process transports. It backs the dev-mode
// TRANSPORT=memory configuration and every orchestrator test; events are
// injected with (*MemoryTransport).Push.
type MemoryDialer struct {
	mu         sync.Mutex
	transports map[string]*MemoryTransport

	// OnDial, when set, is invoked with each freshly dialed transport
	// before it is returned. Tests use it to script connection behavior.
	OnDial func(*MemoryTransport)
}

func NewMemoryDialer() *MemoryDialer {
	return &MemoryDialer{
		transports: make(map[string]*MemoryTransport),
	}
}

func (d *MemoryDialer) Dial(ctx context.Context, tenantID string, credentials []byte) (Transport, error) {
	t := newMemoryTransport(tenantID, credentials)

	d.mu.Lock()
	d.transports[tenantID] = t
	d.mu.Unlock()

	if d.OnDial != nil {
		d.OnDial(t)
	}
	return t, nil
}

// Transport returns the most recently dialed transport for a tenant.
func (d *MemoryDialer) Transport(tenantID string) *MemoryTransport {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.transports[tenantID]
}

// SentMessage records one Send call for inspection.
type SentMessage struct {
	ExternalID string
	To         string
	Body       string
	SentAt     time.Time
}

type MemoryTransport struct {
	tenantID    string
	credentials []byte

	mu         sync.Mutex
	events     chan Event
	closed     bool
	loggedOut  bool
	sendErr    error
	sent       []SentMessage
	composing  map[string]bool
	history    []MessageEvent
	historyErr error
	nextID     int
}

var _ HistoryProvider = (*MemoryTransport)(nil)

func newMemoryTransport(tenantID string, credentials []byte) *MemoryTransport {
	return &MemoryTransport{
		tenantID:    tenantID,
		credentials: credentials,
		events:      make(chan Event, memoryEventBuffer),
		composing:   make(map[string]bool),
	}
}

// Connect emits a pairing code when no credentials were supplied, mirroring
// a real transport's fresh-pairing flow, and a connected event otherwise.
func (t *MemoryTransport) Connect(ctx context.Context) error {
	if t.credentials == nil {
		t.Push(PairingCodeEvent{Code: generatePairingCode()})
		return nil
	}
	t.Push(CredentialsEvent{Credentials: t.credentials})
	t.Push(ConnectedEvent{PhoneNumber: fmt.Sprintf("mem-%s", t.tenantID)})
	return nil
}

func (t *MemoryTransport) Events() <-chan Event {
	return t.events
}

func (t *MemoryTransport) Send(ctx context.Context, to, body string) (string, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.sendErr != nil {
		return "", t.sendErr
	}
	if t.closed {
		return "", fmt.Errorf("transport closed")
	}
	t.nextID++
	id := fmt.Sprintf("mem-%s-%d", t.tenantID, t.nextID)
	t.sent = append(t.sent, SentMessage{
		ExternalID: id,
		To:         to,
		Body:       body,
		SentAt:     time.Now(),
	})
	return id, nil
}

func (t *MemoryTransport) SendPresence(ctx context.Context, to string, composing bool) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.composing[to] = composing
	return nil
}

func (t *MemoryTransport) Logout(ctx context.Context) error {
	t.mu.Lock()
	t.loggedOut = true
	t.mu.Unlock()
	return nil
}

func (t *MemoryTransport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.closed {
		t.closed = true
		close(t.events)
	}
	return nil
}

// Push injects an event as if the remote side produced it. Pushing to a
// closed transport is a silent no-op so racing shutdowns stay harmless.
func (t *MemoryTransport) Push(ev Event) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return
	}
	t.events <- ev
}

// SeedHistory sets the remote conversation history replayed by History.
// Tests seed it through the dialer's OnDial hook before the transport
// connects.
func (t *MemoryTransport) SeedHistory(events ...MessageEvent) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.history = append(t.history, events...)
}

// FailHistory makes History return err instead of the seeded events.
func (t *MemoryTransport) FailHistory(err error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.historyErr = err
}

func (t *MemoryTransport) History(ctx context.Context) ([]MessageEvent, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.historyErr != nil {
		return nil, t.historyErr
	}
	out := make([]MessageEvent, len(t.history))
	copy(out, t.history)
	return out, nil
}

// FailSends makes subsequent Send calls return err (nil restores normal
// behavior).
func (t *MemoryTransport) FailSends(err error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.sendErr = err
}

func (t *MemoryTransport) Sent() []SentMessage {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]SentMessage, len(t.sent))
	copy(out, t.sent)
	return out
}

func (t *MemoryTransport) Composing(to string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.composing[to]
}

func (t *MemoryTransport) LoggedOut() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.loggedOut
}

func generatePairingCode() string {
	chars := []byte(pairingCodeChars)
	code := make([]byte, 9)
	for i := 0; i < 9; i++ {
		if i == 4 {
			code[i] = '-'
			continue
		}
		n, _ := rand.Int(rand.Reader, big.NewInt(int64(len(chars))))
		code[i] = chars[n.Int64()]
	}
	return string(code)
}
