package broadcast

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/jonboulle/clockwork"
)

const (
	writeDeadline      = 5 * time.Second
	closeFrameDeadline = time.Second
	pingInterval       = 30 * time.Second
	pongDeadline       = 60 * time.Second
	messageBufferSize  = 64
)

// clientWriter owns all writes to one connection. The actor only ever
// enqueues; a full queue or a dead writer means the session is evicted.
type clientWriter struct {
	connection  *websocket.Conn
	clock       clockwork.Clock
	sendChannel chan []byte
	doneChannel chan struct{}
	deadChannel chan struct{}
	stopOnce    sync.Once
	wg          sync.WaitGroup
}

func newClientWriter(connection *websocket.Conn, clock clockwork.Clock) *clientWriter {
	cw := &clientWriter{
		connection:  connection,
		clock:       clock,
		sendChannel: make(chan []byte, messageBufferSize),
		doneChannel: make(chan struct{}),
		deadChannel: make(chan struct{}),
	}
	if connection == nil {
		return cw
	}
	cw.configurePongHandler()
	cw.wg.Add(1)
	go cw.run()
	return cw
}

func (cw *clientWriter) run() {
	ticker := cw.clock.NewTicker(pingInterval)
	defer ticker.Stop()
	defer cw.wg.Done()
	defer close(cw.deadChannel)

	for {
		select {
		case msg := <-cw.sendChannel:
			cw.updateWriteDeadline()
			if err := cw.connection.WriteMessage(websocket.TextMessage, msg); err != nil {
				_ = cw.connection.Close()
				return
			}
		case <-ticker.Chan():
			cw.updateWriteDeadline()
			if err := cw.connection.WriteMessage(websocket.PingMessage, nil); err != nil {
				_ = cw.connection.Close()
				return
			}
		case <-cw.doneChannel:
			return
		}
	}
}

// enqueue never blocks. It reports false when the buffer is full or the
// writer has already exited after a write error.
func (cw *clientWriter) enqueue(msg []byte) bool {
	select {
	case <-cw.deadChannel:
		return false
	default:
	}
	select {
	case cw.sendChannel <- msg:
		return true
	default:
		return false
	}
}

func (cw *clientWriter) stop() {
	cw.stopOnce.Do(func() {
		close(cw.doneChannel)
		if cw.connection != nil {
			_ = cw.connection.Close()
		}
	})
	cw.wg.Wait()
}

// stopGraceful flushes nothing further and sends a close frame with reason.
func (cw *clientWriter) stopGraceful(reason string) {
	cw.stopOnce.Do(func() {
		close(cw.doneChannel)
		cw.wg.Wait()
		if cw.connection == nil {
			return
		}

		closeMsg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, reason)
		_ = cw.connection.SetWriteDeadline(time.Now().Add(closeFrameDeadline))
		_ = cw.connection.WriteMessage(websocket.CloseMessage, closeMsg)
		_ = cw.connection.Close()
	})
}

func (cw *clientWriter) configurePongHandler() {
	cw.updateReadDeadline()
	cw.connection.SetPongHandler(func(string) error {
		cw.updateReadDeadline()
		return nil
	})
}

// Deadlines are wall-clock; the injected clock only drives the ping ticker.
func (cw *clientWriter) updateWriteDeadline() {
	_ = cw.connection.SetWriteDeadline(time.Now().Add(writeDeadline))
}

func (cw *clientWriter) updateReadDeadline() {
	_ = cw.connection.SetReadDeadline(time.Now().Add(pongDeadline))
}
