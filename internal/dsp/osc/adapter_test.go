package osc

import (
	"errors"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/hypebeast/go-osc/osc"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Youpit44/camillamix/internal/domain"
)

type recordingSender struct {
	mu      sync.Mutex
	packets []osc.Packet
	err     error
}

func (r *recordingSender) Send(p osc.Packet) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.packets = append(r.packets, p)
	return r.err
}

func newTestAdapter() (*Adapter, *recordingSender) {
	rec := &recordingSender{}
	return &Adapter{client: rec, endpoint: "udp://test:9000", prefix: "/mixer"}, rec
}

func TestAdapter_Messages(t *testing.T) {
	a, rec := newTestAdapter()

	require.NoError(t, a.SetLevel(2, -6.5))
	require.NoError(t, a.SetMute(0, true))
	require.NoError(t, a.SetFilterGain("ch1_eq_mid", 3))

	require.Len(t, rec.packets, 3)
	level := rec.packets[0].(*osc.Message)
	assert.Equal(t, "/mixer/fader/2/level", level.Address)
	assert.Equal(t, []any{float32(-6.5)}, level.Arguments)

	mute := rec.packets[1].(*osc.Message)
	assert.Equal(t, "/mixer/fader/0/mute", mute.Address)
	assert.Equal(t, []any{true}, mute.Arguments)

	filter := rec.packets[2].(*osc.Message)
	assert.Equal(t, "/mixer/filter/ch1_eq_mid/gain", filter.Address)
}

func TestAdapter_SetMutesSendsOneBundle(t *testing.T) {
	a, rec := newTestAdapter()
	batch := []domain.MuteCommand{{Target: 0, Mute: false}, {Target: 1, Mute: true}, {Target: 2, Mute: true}}

	require.NoError(t, a.SetMutes(batch))

	require.Len(t, rec.packets, 1)
	bundle, ok := rec.packets[0].(*osc.Bundle)
	require.True(t, ok)
	require.Len(t, bundle.Messages, 3)
	for i, msg := range bundle.Messages {
		assert.Equal(t, []any{batch[i].Mute}, msg.Arguments)
	}
	assert.Equal(t, "/mixer/fader/1/mute", bundle.Messages[1].Address)
}

func TestAdapter_Status(t *testing.T) {
	a, rec := newTestAdapter()
	assert.False(t, a.Status().Connected)

	require.NoError(t, a.SetLevel(0, 0))
	assert.True(t, a.Status().Connected)

	rec.err = errors.New("network unreachable")
	require.Error(t, a.SetLevel(0, 0))
	status := a.Status()
	assert.False(t, status.Connected)
	assert.Equal(t, "network unreachable", status.LastError)
	assert.Equal(t, "osc", status.Backend)
}

func TestAdapter_SendsOverUDP(t *testing.T) {
	conn, err := net.ListenPacket("udp", "127.0.0.1:0")
	require.NoError(t, err)
	defer conn.Close()
	port := conn.LocalAddr().(*net.UDPAddr).Port

	a := New("127.0.0.1", port, "/mixer")
	require.NoError(t, a.SetLevel(1, -3))

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	buf := make([]byte, 1024)
	n, _, err := conn.ReadFrom(buf)
	require.NoError(t, err)

	packet, err := osc.ParsePacket(string(buf[:n]))
	require.NoError(t, err)
	msg, ok := packet.(*osc.Message)
	require.True(t, ok)
	assert.Equal(t, "/mixer/fader/1/level", msg.Address)
	assert.Equal(t, []any{float32(-3)}, msg.Arguments)
}
