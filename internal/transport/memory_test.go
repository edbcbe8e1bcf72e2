package transport

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryTransport(t *testing.T) {
	ctx := context.Background()

	t.Run("connect without credentials starts pairing", func(t *testing.T) {
		d := NewMemoryDialer()
		tr, err := d.Dial(ctx, "tenant-1", nil)
		require.NoError(t, err)

		require.NoError(t, tr.Connect(ctx))

		ev := <-tr.Events()
		pairing, ok := ev.(PairingCodeEvent)
		require.True(t, ok)
		assert.Len(t, pairing.Code, 9)
		assert.Equal(t, byte('-'), pairing.Code[4])
	})

	t.Run("connect with credentials goes straight to connected", func(t *testing.T) {
		d := NewMemoryDialer()
		tr, err := d.Dial(ctx, "tenant-1", []byte("creds"))
		require.NoError(t, err)

		require.NoError(t, tr.Connect(ctx))

		ev := <-tr.Events()
		creds, ok := ev.(CredentialsEvent)
		require.True(t, ok)
		assert.Equal(t, []byte("creds"), creds.Credentials)

		ev = <-tr.Events()
		_, ok = ev.(ConnectedEvent)
		assert.True(t, ok)
	})

	t.Run("send assigns unique ids", func(t *testing.T) {
		d := NewMemoryDialer()
		tr, _ := d.Dial(ctx, "tenant-1", []byte("creds"))

		id1, err := tr.Send(ctx, "+15551234567", "one")
		require.NoError(t, err)
		id2, err := tr.Send(ctx, "+15551234567", "two")
		require.NoError(t, err)

		assert.NotEqual(t, id1, id2)

		mem := d.Transport("tenant-1")
		sent := mem.Sent()
		require.Len(t, sent, 2)
		assert.Equal(t, "one", sent[0].Body)
	})

	t.Run("replays seeded history", func(t *testing.T) {
		d := NewMemoryDialer()
		_, err := d.Dial(ctx, "tenant-1", []byte("creds"))
		require.NoError(t, err)

		mem := d.Transport("tenant-1")
		mem.SeedHistory(
			MessageEvent{ExternalID: "hist-1", From: "+15551234567", Body: "one"},
			MessageEvent{ExternalID: "hist-2", From: "+15551234567", Body: "two"},
		)

		events, err := mem.History(ctx)
		require.NoError(t, err)
		require.Len(t, events, 2)
		assert.Equal(t, "hist-1", events[0].ExternalID)

		mem.FailHistory(assert.AnError)
		_, err = mem.History(ctx)
		assert.Error(t, err)
	})

	t.Run("push after close is a no-op", func(t *testing.T) {
		d := NewMemoryDialer()
		tr, _ := d.Dial(ctx, "tenant-1", nil)
		mem := d.Transport("tenant-1")

		require.NoError(t, tr.Close())
		mem.Push(ConnectedEvent{PhoneNumber: "x"})

		_, open := <-tr.Events()
		assert.False(t, open)
	})

	t.Run("send after close fails", func(t *testing.T) {
		d := NewMemoryDialer()
		tr, _ := d.Dial(ctx, "tenant-1", nil)
		require.NoError(t, tr.Close())

		_, err := tr.Send(ctx, "+15551234567", "late")
		assert.Error(t, err)
	})
}
