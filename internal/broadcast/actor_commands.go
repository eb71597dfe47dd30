package broadcast

import (
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/Youpit44/camillamix/internal/domain"
)

// broadcasterCmd is the command interface for the Broadcaster actor.
type broadcasterCmd interface{ isBroadcasterCmd() }

type baseBroadcasterCmd struct{}

func (baseBroadcasterCmd) isBroadcasterCmd() {}

type result[T any] struct {
	value T
	err   error
}

type registerReply struct {
	id  uuid.UUID
	err error
}

type registerCmd struct {
	baseBroadcasterCmd
	connection *websocket.Conn
	reply      chan registerReply
}

type unregisterCmd struct {
	baseBroadcasterCmd
	id uuid.UUID
}

// inboundCmd carries either a decoded command or its decode error.
type inboundCmd struct {
	baseBroadcasterCmd
	id      uuid.UUID
	kind    string
	command Command
	err     error
}

type snapshotCmd struct {
	baseBroadcasterCmd
	reply chan domain.MixerSnapshot
}

type importCmd struct {
	baseBroadcasterCmd
	request ImportRequest
	reply   chan result[ImportResult]
}

type savePresetCmd struct {
	baseBroadcasterCmd
	name  string
	state *domain.MixerSnapshot
	reply chan result[PresetSavedPayload]
}

// autosaveCmd reads the settings, applying update first when set.
type autosaveCmd struct {
	baseBroadcasterCmd
	update *AutosaveUpdate
	reply  chan AutosaveSettings
}

type sessionCountCmd struct {
	baseBroadcasterCmd
	reply chan int
}

type levelsResultCmd struct {
	baseBroadcasterCmd
	levels *domain.PlaybackLevels
	err    error
}

type spectrumResultCmd struct {
	baseBroadcasterCmd
	samples []float64
	err     error
}

type reconcileResultCmd struct {
	baseBroadcasterCmd
	fetch uint64
	state *domain.DSPState
	err   error
}

type stopCmd struct {
	baseBroadcasterCmd
}
