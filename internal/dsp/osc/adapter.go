// Package osc is a one-way DSP adapter that sends Open Sound Control
// messages over UDP. Mute batches go out as a single bundle.
package osc

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/hypebeast/go-osc/osc"

	"github.com/Youpit44/camillamix/internal/domain"
)

const backendName = "osc"

type sender interface {
	Send(packet osc.Packet) error
}

type Adapter struct {
	client   sender
	endpoint string
	prefix   string

	mu      sync.Mutex
	lastErr error
	sent    bool
}

// New returns an adapter addressing host:port. Addresses are rooted at
// prefix, e.g. "/mixer".
func New(host string, port int, prefix string) *Adapter {
	return &Adapter{
		client:   osc.NewClient(host, port),
		endpoint: fmt.Sprintf("udp://%s:%d", host, port),
		prefix:   prefix,
	}
}

func (a *Adapter) levelMessage(target int, db float64) *osc.Message {
	return osc.NewMessage(fmt.Sprintf("%s/fader/%d/level", a.prefix, target), float32(db))
}

func (a *Adapter) muteMessage(target int, mute bool) *osc.Message {
	return osc.NewMessage(fmt.Sprintf("%s/fader/%d/mute", a.prefix, target), mute)
}

func (a *Adapter) filterMessage(filter string, db float64) *osc.Message {
	return osc.NewMessage(fmt.Sprintf("%s/filter/%s/gain", a.prefix, filter), float32(db))
}

func (a *Adapter) send(p osc.Packet) error {
	err := a.client.Send(p)
	a.mu.Lock()
	a.lastErr = err
	a.sent = true
	a.mu.Unlock()
	if err != nil {
		return fmt.Errorf("osc send: %w", err)
	}
	return nil
}

func (a *Adapter) SetLevel(target int, db float64) error {
	return a.send(a.levelMessage(target, db))
}

func (a *Adapter) SetMute(target int, mute bool) error {
	return a.send(a.muteMessage(target, mute))
}

func (a *Adapter) SetMutes(batch []domain.MuteCommand) error {
	bundle := osc.NewBundle(time.Now())
	for _, cmd := range batch {
		if err := bundle.Append(a.muteMessage(cmd.Target, cmd.Mute)); err != nil {
			return fmt.Errorf("osc bundle: %w", err)
		}
	}
	return a.send(bundle)
}

func (a *Adapter) SetFilterGain(filter string, db float64) error {
	return a.send(a.filterMessage(filter, db))
}

// CurrentState is unsupported; OSC is send-only here.
func (a *Adapter) CurrentState(context.Context) (*domain.DSPState, error) {
	return nil, nil
}

func (a *Adapter) PlaybackLevels(context.Context) (*domain.PlaybackLevels, error) {
	return nil, nil
}

// Status reports connected once a send has succeeded; UDP gives no
// stronger signal.
func (a *Adapter) Status() domain.DSPStatus {
	a.mu.Lock()
	defer a.mu.Unlock()
	status := domain.DSPStatus{
		Backend:   backendName,
		Connected: a.sent && a.lastErr == nil,
		Endpoint:  a.endpoint,
	}
	if a.lastErr != nil {
		status.LastError = a.lastErr.Error()
	}
	return status
}

func (a *Adapter) Close() error {
	return nil
}
