package httpserver

import (
	"log/slog"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
)

const maxInboundMessageBytes = 64 << 10

// handleWebSocket upgrades the request and runs the session read pump on
// the request goroutine until the peer goes away.
func (s *Server) handleWebSocket(c echo.Context) error {
	conn, err := s.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		// Upgrade has already written the HTTP error.
		slog.DebugContext(c.Request().Context(), "WebSocket upgrade failed", "error", err)
		return nil
	}

	id, err := s.mixer.Register(conn)
	if err != nil {
		slog.WarnContext(c.Request().Context(), "Session rejected", "error", err)
		msg := websocket.FormatCloseMessage(websocket.CloseTryAgainLater, "session rejected")
		_ = conn.WriteMessage(websocket.CloseMessage, msg)
		_ = conn.Close()
		return nil
	}
	defer s.mixer.Unregister(id)

	conn.SetReadLimit(maxInboundMessageBytes)
	for {
		msgType, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseNoStatusReceived) {
				slog.DebugContext(c.Request().Context(), "Session read ended", "session_id", id.String(), "error", err)
			}
			return nil
		}
		if msgType != websocket.TextMessage && msgType != websocket.BinaryMessage {
			continue
		}
		s.mixer.Dispatch(id, data)
	}
}
