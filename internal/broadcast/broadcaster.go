package broadcast

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/jonboulle/clockwork"
	"golang.org/x/sync/singleflight"

	"github.com/Youpit44/camillamix/internal/domain"
	"github.com/Youpit44/camillamix/internal/importer"
	"github.com/Youpit44/camillamix/internal/metrics"
	"github.com/Youpit44/camillamix/internal/mixer"
	"github.com/Youpit44/camillamix/internal/platform/logging"
)

const (
	commandTimeout     = 5 * time.Second
	queryTimeout       = 2 * time.Second
	stopTimeout        = 10 * time.Second
	commandChannelSize = 256
	defaultMaxSessions = 64
	autosavePreset     = "autosave"
)

var (
	ErrTooManySessions = errors.New("max sessions reached")
	ErrStopped         = errors.New("broadcaster stopped")
)

// PresetStore is the persistence the actor needs. *preset.Store satisfies it.
type PresetStore interface {
	Save(name string, state domain.MixerSnapshot) (string, error)
	Load(name string) (domain.MixerSnapshot, bool, error)
}

// Options tunes the scheduler loops. Zero values take defaults.
type Options struct {
	Channels         int
	LevelTick        time.Duration
	StatusEveryTicks int
	SpectrumTick     time.Duration
	Autosave         AutosaveSettings
	MaxSessions      int
}

func (o Options) withDefaults() Options {
	if o.Channels <= 0 {
		o.Channels = domain.DefaultChannelCount
	}
	if o.LevelTick <= 0 {
		o.LevelTick = 200 * time.Millisecond
	}
	if o.StatusEveryTicks <= 0 {
		o.StatusEveryTicks = 10
	}
	if o.SpectrumTick <= 0 {
		o.SpectrumTick = 33 * time.Millisecond
	}
	if o.Autosave.IntervalSec <= 0 {
		o.Autosave.IntervalSec = DefaultAutosaveIntervalSec
	}
	if o.MaxSessions <= 0 {
		o.MaxSessions = defaultMaxSessions
	}
	return o
}

type session struct {
	id       uuid.UUID
	ctx      context.Context
	writer   *clientWriter
	spectrum bool
}

// Broadcaster owns the mixer state and every connected session. All
// mutation happens on the run goroutine; public methods only post commands.
type Broadcaster struct {
	cmdCh     chan broadcasterCmd
	done      chan struct{}
	stopOnce  sync.Once
	ctx       context.Context
	cancel    context.CancelFunc
	helpers   sync.WaitGroup
	clock     clockwork.Clock
	adapter   domain.Adapter
	presets   PresetStore
	opts      Options
	newWriter func(*websocket.Conn) *clientWriter
	queries   singleflight.Group
	fetches   atomic.Uint64

	// Owned by the run goroutine.
	state          *mixer.State
	sessions       map[uuid.UUID]*session
	sched          scheduler
	autosave       AutosaveSettings
	levelTicker    clockwork.Ticker
	autosaveTicker clockwork.Ticker
	spectrumTicker clockwork.Ticker
}

// New creates a broadcaster and starts its loop.
func New(adapter domain.Adapter, presets PresetStore, clock clockwork.Clock, opts Options) *Broadcaster {
	b := newBroadcaster(adapter, presets, clock, opts)
	b.levelTicker = clock.NewTicker(b.opts.LevelTick)
	b.autosaveTicker = clock.NewTicker(b.autosave.Interval())
	go b.run()
	return b
}

func newBroadcaster(adapter domain.Adapter, presets PresetStore, clock clockwork.Clock, opts Options) *Broadcaster {
	opts = opts.withDefaults()
	ctx, cancel := context.WithCancel(context.Background())
	b := &Broadcaster{
		cmdCh:    make(chan broadcasterCmd, commandChannelSize),
		done:     make(chan struct{}),
		ctx:      ctx,
		cancel:   cancel,
		clock:    clock,
		adapter:  adapter,
		presets:  presets,
		opts:     opts,
		state:    mixer.NewState(opts.Channels),
		sessions: make(map[uuid.UUID]*session),
		autosave: opts.Autosave.normalized(),
	}
	b.newWriter = func(conn *websocket.Conn) *clientWriter {
		return newClientWriter(conn, clock)
	}
	return b
}

// Register adds a connection as a new session and queues its initial
// messages. The returned id is used for Dispatch and Unregister.
func (b *Broadcaster) Register(conn *websocket.Conn) (uuid.UUID, error) {
	reply, err := request(b, func(ch chan registerReply) broadcasterCmd {
		return registerCmd{connection: conn, reply: ch}
	})
	if err != nil {
		return uuid.Nil, err
	}
	return reply.id, reply.err
}

// Unregister removes a session. It never blocks past shutdown.
func (b *Broadcaster) Unregister(id uuid.UUID) {
	b.post(unregisterCmd{id: id})
}

// Dispatch decodes one inbound frame on the caller's goroutine and hands
// the result to the actor. Frames from one session are processed in order.
func (b *Broadcaster) Dispatch(id uuid.UUID, data []byte) {
	cmd, err := DecodeCommand(data, b.opts.Channels)
	kind := "invalid"
	if cmd != nil {
		kind = cmd.Kind()
	}
	b.post(inboundCmd{id: id, kind: kind, command: cmd, err: err})
}

// Snapshot returns a copy of the live mixer state.
func (b *Broadcaster) Snapshot(ctx context.Context) (domain.MixerSnapshot, error) {
	return requestCtx(ctx, b, func(ch chan domain.MixerSnapshot) broadcasterCmd {
		return snapshotCmd{reply: ch}
	})
}

// ImportRequest carries a mapped config document into the live state.
type ImportRequest struct {
	Snapshot   domain.MixerSnapshot
	Provenance importer.Provenance
	Name       string
}

type ImportResult struct {
	ImportedAs string               `json:"imported_as"`
	Path       string               `json:"path,omitempty"`
	Mapping    importer.Provenance  `json:"mapping"`
	State      domain.MixerSnapshot `json:"state"`
}

// ApplyImport replaces the live channels with the imported ones, pushes
// the result to the DSP and saves it as a preset.
func (b *Broadcaster) ApplyImport(ctx context.Context, req ImportRequest) (ImportResult, error) {
	res, err := requestCtx(ctx, b, func(ch chan result[ImportResult]) broadcasterCmd {
		return importCmd{request: req, reply: ch}
	})
	if err != nil {
		return ImportResult{}, err
	}
	return res.value, res.err
}

// SavePreset writes state under name, or the live state when state is nil.
func (b *Broadcaster) SavePreset(ctx context.Context, name string, state *domain.MixerSnapshot) (PresetSavedPayload, error) {
	res, err := requestCtx(ctx, b, func(ch chan result[PresetSavedPayload]) broadcasterCmd {
		return savePresetCmd{name: name, state: state, reply: ch}
	})
	if err != nil {
		return PresetSavedPayload{}, err
	}
	return res.value, res.err
}

func (b *Broadcaster) AutosaveSettings(ctx context.Context) (AutosaveSettings, error) {
	return requestCtx(ctx, b, func(ch chan AutosaveSettings) broadcasterCmd {
		return autosaveCmd{reply: ch}
	})
}

// UpdateAutosave applies update and returns the resulting settings.
func (b *Broadcaster) UpdateAutosave(ctx context.Context, update AutosaveUpdate) (AutosaveSettings, error) {
	return requestCtx(ctx, b, func(ch chan AutosaveSettings) broadcasterCmd {
		return autosaveCmd{update: &update, reply: ch}
	})
}

// SessionCount returns the number of open sessions, or -1 if the actor
// does not answer in time.
func (b *Broadcaster) SessionCount() int {
	n, err := request(b, func(ch chan int) broadcasterCmd {
		return sessionCountCmd{reply: ch}
	})
	if err != nil {
		slog.Warn("SessionCount timed out", "error", err)
		return -1
	}
	return n
}

// Ping reports whether the actor loop is responsive.
func (b *Broadcaster) Ping(ctx context.Context) error {
	_, err := requestCtx(ctx, b, func(ch chan int) broadcasterCmd {
		return sessionCountCmd{reply: ch}
	})
	return err
}

// Stop closes every session, ends the loops and waits for helper
// goroutines. Safe to call more than once.
func (b *Broadcaster) Stop() {
	b.stopOnce.Do(func() {
		select {
		case b.cmdCh <- stopCmd{}:
		case <-b.done:
		}

		timeout := time.NewTimer(stopTimeout)
		defer timeout.Stop()
		select {
		case <-b.done:
			slog.Info("Broadcaster stopped gracefully")
		case <-timeout.C:
			slog.Warn("Broadcaster stop timeout exceeded", "timeout", stopTimeout)
		}

		b.cancel()
		b.helpers.Wait()
	})
}

// post delivers cmd unless the actor has already exited.
func (b *Broadcaster) post(cmd broadcasterCmd) {
	select {
	case b.cmdCh <- cmd:
	case <-b.done:
	case <-b.ctx.Done():
	}
}

func request[T any](b *Broadcaster, build func(chan T) broadcasterCmd) (T, error) {
	return requestCtx(context.Background(), b, build)
}

// requestCtx sends a command with a buffered reply channel and waits for
// the answer, the caller's context, shutdown or commandTimeout.
func requestCtx[T any](ctx context.Context, b *Broadcaster, build func(chan T) broadcasterCmd) (T, error) {
	var zero T
	reply := make(chan T, 1)

	timer := b.clock.NewTimer(commandTimeout)
	defer timer.Stop()

	select {
	case b.cmdCh <- build(reply):
	case <-b.done:
		return zero, ErrStopped
	case <-ctx.Done():
		return zero, ctx.Err()
	case <-timer.Chan():
		return zero, fmt.Errorf("command timed out after %v", commandTimeout)
	}

	select {
	case v := <-reply:
		return v, nil
	case <-b.done:
		return zero, ErrStopped
	case <-ctx.Done():
		return zero, ctx.Err()
	case <-timer.Chan():
		return zero, fmt.Errorf("command timed out after %v", commandTimeout)
	}
}

// goHelper runs fn off the actor and tracks it for Stop.
func (b *Broadcaster) goHelper(fn func(ctx context.Context)) {
	b.helpers.Add(1)
	go func() {
		defer b.helpers.Done()
		fn(b.ctx)
	}()
}

func (b *Broadcaster) run() {
	defer close(b.done)
	defer b.stopTickers()

	for {
		if stop := b.step(); stop {
			return
		}
	}
}

// step handles one event. A panicking handler is logged and the loop
// carries on with the state it had.
func (b *Broadcaster) step() (stop bool) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("Broadcaster panic recovered", "panic", r, "stack", string(debug.Stack()))
			metrics.BroadcasterPanicsTotal.Inc()
		}
	}()

	select {
	case cmd := <-b.cmdCh:
		return b.handleCommand(cmd)
	case <-tickerChan(b.levelTicker):
		b.handleLevelTick()
	case <-tickerChan(b.autosaveTicker):
		b.handleAutosaveTick()
	case <-tickerChan(b.spectrumTicker):
		b.handleSpectrumTick()
	}
	return false
}

func (b *Broadcaster) handleCommand(cmd broadcasterCmd) (stop bool) {
	switch c := cmd.(type) {
	case registerCmd:
		b.handleRegister(c)
	case unregisterCmd:
		b.handleUnregister(c)
	case inboundCmd:
		b.handleInbound(c)
	case snapshotCmd:
		c.reply <- b.state.Snapshot()
	case importCmd:
		c.reply <- b.handleImport(c.request)
	case savePresetCmd:
		c.reply <- b.handleSavePreset(c.name, c.state)
	case autosaveCmd:
		if c.update != nil {
			b.applyAutosave(*c.update)
		}
		c.reply <- b.autosave
	case sessionCountCmd:
		c.reply <- len(b.sessions)
	case levelsResultCmd:
		b.handleLevelsResult(c)
	case spectrumResultCmd:
		b.handleSpectrumResult(c)
	case reconcileResultCmd:
		b.handleReconcileResult(c)
	case stopCmd:
		b.handleStop()
		return true
	default:
		slog.Warn("Broadcaster received unknown command type", "command_type", fmt.Sprintf("%T", cmd))
	}
	return false
}

func (b *Broadcaster) handleRegister(c registerCmd) {
	if len(b.sessions) >= b.opts.MaxSessions {
		slog.Warn("Rejecting session: max sessions reached", "max_sessions", b.opts.MaxSessions)
		c.reply <- registerReply{err: fmt.Errorf("%w (%d)", ErrTooManySessions, b.opts.MaxSessions)}
		return
	}

	id := uuid.New()
	s := &session{
		id:     id,
		ctx:    logging.WithSessionID(context.Background(), id.String()),
		writer: b.newWriter(c.connection),
	}
	b.sessions[id] = s
	metrics.SessionsActive.Set(float64(len(b.sessions)))
	slog.DebugContext(s.ctx, "Session registered", "total_sessions", len(b.sessions))

	snap := b.state.Snapshot()
	b.send(s, MsgState, snap)
	b.send(s, MsgLevels, simulatedLevels(snap))
	b.send(s, MsgAutosaveSettings, b.autosave)
	b.send(s, MsgDSPStatus, b.adapter.Status())

	b.startReconcile()
	c.reply <- registerReply{id: id}
}

func (b *Broadcaster) handleUnregister(c unregisterCmd) {
	s, ok := b.sessions[c.id]
	if !ok {
		return
	}
	b.removeSession(s)
	slog.DebugContext(s.ctx, "Session unregistered", "remaining_sessions", len(b.sessions))
}

func (b *Broadcaster) removeSession(s *session) {
	delete(b.sessions, s.id)
	s.writer.stop()
	metrics.SessionsActive.Set(float64(len(b.sessions)))
	if s.spectrum {
		b.updateSpectrumTicker()
	}
}

// send delivers one message to one session, evicting it if it cannot
// take the message.
func (b *Broadcaster) send(s *session, msgType string, payload any) {
	data, err := encode(msgType, payload)
	if err != nil {
		slog.ErrorContext(s.ctx, "Failed to marshal message", "type", msgType, "error", err)
		return
	}
	if !b.deliver(s, msgType, data) {
		b.evict(s)
	}
}

// broadcast fans a message out to every session accepted by filter (nil
// means all). Slow sessions are collected and evicted after the loop.
func (b *Broadcaster) broadcast(msgType string, payload any, filter func(*session) bool) {
	if len(b.sessions) == 0 {
		return
	}
	data, err := encode(msgType, payload)
	if err != nil {
		slog.Error("Failed to marshal broadcast message", "type", msgType, "error", err)
		return
	}

	var slow []*session
	for _, s := range b.sessions {
		if filter != nil && !filter(s) {
			continue
		}
		if !b.deliver(s, msgType, data) {
			slow = append(slow, s)
		}
	}
	for _, s := range slow {
		b.evict(s)
	}
}

func (b *Broadcaster) deliver(s *session, msgType string, data []byte) bool {
	if !s.writer.enqueue(data) {
		return false
	}
	metrics.BroadcastMessagesTotal.WithLabelValues(msgType).Inc()
	return true
}

func (b *Broadcaster) evict(s *session) {
	if _, ok := b.sessions[s.id]; !ok {
		return
	}
	slog.WarnContext(s.ctx, "Disconnecting slow session")
	metrics.SessionsEvictedTotal.Inc()
	b.removeSession(s)
}

func (b *Broadcaster) handleStop() {
	slog.Info("Broadcaster shutting down", "sessions", len(b.sessions))
	b.closeAllSessions("Server shutting down")
}

// closeAllSessions stops every writer concurrently, so shutdown waits for
// the slowest in-flight write once rather than once per session.
func (b *Broadcaster) closeAllSessions(reason string) {
	var wg sync.WaitGroup
	for id, s := range b.sessions {
		wg.Add(1)
		go func(w *clientWriter) {
			defer wg.Done()
			w.stopGraceful(reason)
		}(s.writer)
		delete(b.sessions, id)
	}
	wg.Wait()
	metrics.SessionsActive.Set(0)
}

func (b *Broadcaster) stopTickers() {
	for _, t := range []clockwork.Ticker{b.levelTicker, b.autosaveTicker, b.spectrumTicker} {
		if t != nil {
			t.Stop()
		}
	}
}

// tickerChan returns nil for a nil ticker so its select case never fires.
func tickerChan(t clockwork.Ticker) <-chan time.Time {
	if t == nil {
		return nil
	}
	return t.Chan()
}
