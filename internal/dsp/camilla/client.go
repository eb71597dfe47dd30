// Package camilla is a DSP adapter speaking the CamillaDSP websocket
// protocol. Commands are queued and written by a single connection loop
// that reconnects with backoff; queries wait for their in-order reply.
package camilla

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/Youpit44/camillamix/internal/domain"
	"github.com/Youpit44/camillamix/internal/metrics"
	apperrors "github.com/Youpit44/camillamix/internal/platform/errors"
	"github.com/Youpit44/camillamix/internal/platform/retry"
	"github.com/Youpit44/camillamix/internal/platform/version"
)

const backendName = "camilla"

var (
	ErrNotConnected = errors.New("camilla: not connected")
	ErrQueueFull    = errors.New("camilla: send queue full")
	ErrClosed       = errors.New("camilla: client closed")
)

type Config struct {
	URL            string
	QueueSize      int
	QueryTimeout   time.Duration
	WriteTimeout   time.Duration
	ReconnectDelay time.Duration
	Dial           retry.Policy
}

func DefaultConfig(url string) Config {
	return Config{
		URL:            url,
		QueueSize:      256,
		QueryTimeout:   time.Second,
		WriteTimeout:   2 * time.Second,
		ReconnectDelay: 2 * time.Second,
		Dial: retry.Policy{
			MaxAttempts:    5,
			InitialBackoff: 250 * time.Millisecond,
			MaxBackoff:     4 * time.Second,
		},
	}
}

type request struct {
	name  string
	body  []byte
	reply chan result
}

type result struct {
	resp response
	err  error
}

type Client struct {
	cfg    Config
	dialer *websocket.Dialer
	queue  chan request

	connected atomic.Bool
	mu        sync.Mutex
	lastErr   string
	state     string

	ctx       context.Context
	cancel    context.CancelFunc
	wg        sync.WaitGroup
	startOnce sync.Once
	closeOnce sync.Once
}

func New(cfg Config) *Client {
	ctx, cancel := context.WithCancel(context.Background())
	return &Client{
		cfg:    cfg,
		dialer: &websocket.Dialer{HandshakeTimeout: 5 * time.Second},
		queue:  make(chan request, cfg.QueueSize),
		ctx:    ctx,
		cancel: cancel,
	}
}

// Start launches the connection loop.
func (c *Client) Start() {
	c.startOnce.Do(func() {
		c.wg.Add(1)
		go c.run()
	})
}

func (c *Client) Close() error {
	c.closeOnce.Do(func() {
		c.cancel()
		c.wg.Wait()
		c.connected.Store(false)
	})
	return nil
}

func (c *Client) run() {
	defer c.wg.Done()

	for c.ctx.Err() == nil {
		conn, err := retry.Do(c.ctx, c.cfg.Dial, retry.Always, c.dial)
		if err != nil {
			if c.ctx.Err() != nil {
				return
			}
			c.setError(err)
			slog.Warn("CamillaDSP unreachable, retrying", "url", c.cfg.URL, "delay", c.cfg.ReconnectDelay, "error", err)
			select {
			case <-time.After(c.cfg.ReconnectDelay):
				continue
			case <-c.ctx.Done():
				return
			}
		}

		slog.Info("Connected to CamillaDSP", "url", c.cfg.URL)
		metrics.AdapterReconnectsTotal.Inc()
		c.connected.Store(true)
		c.setError(nil)
		c.wg.Add(1)
		go c.probe()

		err = c.serve(conn)
		c.connected.Store(false)
		c.mu.Lock()
		c.state = ""
		c.mu.Unlock()
		if err != nil && c.ctx.Err() == nil {
			c.setError(err)
			slog.Warn("CamillaDSP connection lost", "url", c.cfg.URL, "error", err)
		}
	}
}

func (c *Client) dial(ctx context.Context) (*websocket.Conn, error) {
	header := http.Header{"User-Agent": []string{version.UserAgent()}}
	conn, _, err := c.dialer.DialContext(ctx, c.cfg.URL, header)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", c.cfg.URL, err)
	}
	return conn, nil
}

// serve owns one connection. It writes queued requests and hands each
// reply to the oldest outstanding request.
func (c *Client) serve(conn *websocket.Conn) error {
	pending := make(chan request, c.cfg.QueueSize)
	readErr := make(chan error, 1)
	go func() { readErr <- c.readLoop(conn, pending) }()

	shutdown := func(err error) error {
		_ = conn.Close()
		<-readErr
		failPending(pending, ErrNotConnected)
		return err
	}

	for {
		select {
		case <-c.ctx.Done():
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(time.Second))
			failPending(c.queue, ErrClosed)
			return shutdown(nil)
		case err := <-readErr:
			readErr <- err
			return shutdown(err)
		case req := <-c.queue:
			select {
			case pending <- req:
			case err := <-readErr:
				readErr <- err
				req.fail(ErrNotConnected)
				return shutdown(err)
			}
			_ = conn.SetWriteDeadline(time.Now().Add(c.cfg.WriteTimeout))
			if err := conn.WriteMessage(websocket.TextMessage, req.body); err != nil {
				return shutdown(fmt.Errorf("write %s: %w", req.name, err))
			}
		}
	}
}

func (c *Client) readLoop(conn *websocket.Conn, pending chan request) error {
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return fmt.Errorf("read: %w", err)
		}

		name, resp, err := decodeResponse(data)
		if err != nil {
			slog.Warn("Ignoring CamillaDSP reply", "error", err)
			continue
		}

		select {
		case req := <-pending:
			if req.name != name {
				req.fail(fmt.Errorf("camilla: expected %s reply, got %s", req.name, name))
				continue
			}
			if req.reply != nil {
				req.reply <- result{resp: resp}
			} else if resp.Result != resultOK {
				slog.Warn("CamillaDSP rejected command", "command", name, "result", resp.Result)
			}
		default:
			slog.Debug("Unsolicited CamillaDSP reply", "command", name)
		}
	}
}

func (r request) fail(err error) {
	if r.reply != nil {
		r.reply <- result{err: err}
	}
}

func failPending(pending chan request, err error) {
	for {
		select {
		case req := <-pending:
			req.fail(err)
		default:
			return
		}
	}
}

// probe logs the backend version and records its processing state.
func (c *Client) probe() {
	defer c.wg.Done()

	ctx, cancel := context.WithTimeout(c.ctx, c.cfg.QueryTimeout)
	defer cancel()

	var ver, state string
	if err := c.query(ctx, cmdGetVersion, nil, &ver); err != nil {
		slog.Debug("CamillaDSP version query failed", "error", err)
	}
	if err := c.query(ctx, cmdGetState, nil, &state); err != nil {
		slog.Debug("CamillaDSP state query failed", "error", err)
		return
	}
	c.mu.Lock()
	c.state = state
	c.mu.Unlock()
	slog.Info("CamillaDSP ready", "version", ver, "state", state)
}

func (c *Client) enqueue(name string, args any) error {
	body, err := encodeRequest(name, args)
	if err != nil {
		return fmt.Errorf("encode %s: %w", name, err)
	}
	if c.ctx.Err() != nil {
		return ErrClosed
	}
	select {
	case c.queue <- request{name: name, body: body}:
		return nil
	default:
		return ErrQueueFull
	}
}

func (c *Client) query(ctx context.Context, name string, args any, out any) error {
	if !c.connected.Load() {
		return ErrNotConnected
	}
	body, err := encodeRequest(name, args)
	if err != nil {
		return fmt.Errorf("encode %s: %w", name, err)
	}

	ctx, cancel := context.WithTimeout(ctx, c.cfg.QueryTimeout)
	defer cancel()

	req := request{name: name, body: body, reply: make(chan result, 1)}
	select {
	case c.queue <- req:
	case <-ctx.Done():
		return fmt.Errorf("%s: %w", name, ctx.Err())
	}

	select {
	case r := <-req.reply:
		if r.err != nil {
			return r.err
		}
		if r.resp.Result != resultOK {
			return apperrors.Adapter("camilla rejected "+name, nil).WithContext("result", r.resp.Result)
		}
		if out == nil {
			return nil
		}
		if err := json.Unmarshal(r.resp.Value, out); err != nil {
			return fmt.Errorf("decode %s value: %w", name, err)
		}
		return nil
	case <-ctx.Done():
		return fmt.Errorf("%s: %w", name, ctx.Err())
	}
}

func (c *Client) SetLevel(target int, db float64) error {
	return c.enqueue(cmdSetFaderVolume, []any{target, db})
}

func (c *Client) SetMute(target int, mute bool) error {
	return c.enqueue(cmdSetFaderMute, []any{target, mute})
}

func (c *Client) SetFilterGain(filter string, db float64) error {
	return c.enqueue(cmdPatchConfig, filterGainPatch(filter, db))
}

// CurrentState maps fader 0 to master and fader i+1 to channel i. Filter
// gains are not reported.
func (c *Client) CurrentState(ctx context.Context) (*domain.DSPState, error) {
	var faders []fader
	if err := c.query(ctx, cmdGetFaders, nil, &faders); err != nil {
		return nil, err
	}
	if len(faders) == 0 {
		return nil, nil
	}

	state := &domain.DSPState{
		Master:   &domain.DSPChannelState{LevelDB: faders[0].Volume, Mute: faders[0].Mute},
		Channels: make(map[int]domain.DSPChannelState, len(faders)-1),
	}
	for i, f := range faders[1:] {
		state.Channels[i] = domain.DSPChannelState{LevelDB: f.Volume, Mute: f.Mute}
	}
	return state, nil
}

func (c *Client) PlaybackLevels(ctx context.Context) (*domain.PlaybackLevels, error) {
	var rms, peak []float64
	if err := c.query(ctx, cmdGetPlaybackRms, nil, &rms); err != nil {
		return nil, err
	}
	if err := c.query(ctx, cmdGetPlaybackPeak, nil, &peak); err != nil {
		return nil, err
	}
	return &domain.PlaybackLevels{
		RMS:  withMasterLevel(rms),
		Peak: withMasterLevel(peak),
	}, nil
}

func (c *Client) Status() domain.DSPStatus {
	c.mu.Lock()
	defer c.mu.Unlock()
	return domain.DSPStatus{
		Backend:   backendName,
		Connected: c.connected.Load(),
		Endpoint:  c.cfg.URL,
		State:     c.state,
		LastError: c.lastErr,
	}
}

func (c *Client) setError(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err == nil {
		c.lastErr = ""
		return
	}
	c.lastErr = err.Error()
}
