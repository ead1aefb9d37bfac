package agent

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/nerrad567/ghosttube/internal/infrastructure/config"
	"github.com/nerrad567/ghosttube/internal/playback"
)

// hostSendBufferSize is the outbound message buffer of the host connection.
const hostSendBufferSize = 64

// upgrader configures the WebSocket upgrader. The host page is served from
// the video site's origin, so origins are not checked.
var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(_ *http.Request) bool {
		return true
	},
}

// hostConn is the WebSocket connection of one playback host.
type hostConn struct {
	srv  *Server
	conn *websocket.Conn
	send chan []byte

	done      chan struct{}
	closeOnce sync.Once
}

// handleWebSocket upgrades the HTTP connection and makes it the active host.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	if !s.authorizeHost(w, r) {
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Error("websocket upgrade failed", "error", err)
		return
	}

	h := &hostConn{
		srv:  s,
		conn: conn,
		send: make(chan []byte, hostSendBufferSize),
		done: make(chan struct{}),
	}

	s.attachHost(h)

	go h.writePump(s.cfg.WebSocket)
	go h.readPump(s.cfg.WebSocket)
}

// close stops the pumps. Safe to call more than once.
func (h *hostConn) close() {
	h.closeOnce.Do(func() {
		close(h.done)
		h.conn.Close()
	})
}

// readPump reads messages from the host until the connection fails.
func (h *hostConn) readPump(cfg config.WebSocketConfig) {
	defer func() {
		h.srv.detachHost(h)
		h.close()
	}()

	h.conn.SetReadLimit(int64(cfg.MaxMessageSize))
	pingInterval := time.Duration(cfg.PingInterval) * time.Second
	pongWait := time.Duration(cfg.PongTimeout) * time.Second
	//nolint:errcheck // Best-effort deadline on connection setup
	h.conn.SetReadDeadline(time.Now().Add(pingInterval + pongWait))
	h.conn.SetPongHandler(func(string) error {
		return h.conn.SetReadDeadline(time.Now().Add(pingInterval + pongWait))
	})

	for {
		_, message, err := h.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.srv.logger.Warn("host websocket read error", "error", err)
			} else {
				h.srv.logger.Debug("host websocket closed", "error", err)
			}
			return
		}
		//nolint:errcheck // Best-effort deadline reset
		h.conn.SetReadDeadline(time.Now().Add(pingInterval + pongWait))
		h.handleMessage(message)
	}
}

// writePump writes queued messages and keepalive pings to the host.
func (h *hostConn) writePump(cfg config.WebSocketConfig) {
	ticker := time.NewTicker(time.Duration(cfg.PingInterval) * time.Second)
	defer func() {
		ticker.Stop()
		h.close()
	}()

	writeWait := time.Duration(cfg.PongTimeout) * time.Second

	for {
		select {
		case <-h.done:
			//nolint:errcheck // Best-effort close message
			h.conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(time.Second))
			return
		case message := <-h.send:
			//nolint:errcheck // Best-effort deadline; write error caught below
			h.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := h.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}
		case <-ticker.C:
			//nolint:errcheck // Best-effort deadline; ping error caught below
			h.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := h.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// sendMessage queues msg without blocking.
func (h *hostConn) sendMessage(msg WSMessage) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return err
	}

	select {
	case <-h.done:
		return ErrNoHost
	default:
	}

	select {
	case h.send <- data:
		return nil
	default:
		return ErrSendBufferFull
	}
}

func (h *hostConn) sendError(id, message string) {
	//nolint:errcheck // Best-effort reply to a bad message
	h.sendMessage(newMessage(TypeError, id, ErrorPayload{Message: message}))
}

// handleMessage dispatches one host message.
func (h *hostConn) handleMessage(data []byte) {
	var msg WSMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		h.sendError("", "invalid JSON message")
		return
	}

	page := h.srv.hostPage

	switch msg.Type {
	case TypeNavigate:
		var p NavigatePayload
		if !h.decode(msg, &p) {
			return
		}
		h.srv.logger.Debug("host navigated", "location", p.Location)
		page.navigated(p.Location)

	case TypeVisibility:
		var p VisibilityPayload
		if !h.decode(msg, &p) {
			return
		}
		if h.srv.visibility != nil {
			h.srv.visibility.Publish(p.Visible)
		}

	case TypePlayerReady, TypePlayerState:
		var p PlayerStatePayload
		if !h.decode(msg, &p) {
			return
		}
		page.setPlayerState(playback.PlayerState(p.State))

	case TypeElementReady:
		var p ElementPayload
		if !h.decode(msg, &p) {
			return
		}
		p.Event = ""
		page.elementUpdate(p)

	case TypeElement:
		var p ElementPayload
		if !h.decode(msg, &p) {
			return
		}
		if p.Event == "" {
			h.sendError(msg.ID, "element: event is required")
			return
		}
		page.elementUpdate(p)

	case TypeMetadata:
		var p MetadataPayload
		if !h.decode(msg, &p) {
			return
		}
		if p.ContentID == "" {
			h.sendError(msg.ID, "metadata: content_id is required")
			return
		}
		page.mergeMetadata(p)

	case TypePing:
		//nolint:errcheck // Best-effort pong
		h.sendMessage(newMessage(TypePong, msg.ID, nil))

	default:
		h.sendError(msg.ID, "unknown message type: "+msg.Type)
	}
}

// decode unpacks the payload of msg, replying with an error on failure.
func (h *hostConn) decode(msg WSMessage, dst any) bool {
	if err := decodePayload(msg, dst); err != nil {
		h.srv.logger.Debug("invalid host message", "type", msg.Type, "error", err)
		h.sendError(msg.ID, err.Error())
		return false
	}
	return true
}
