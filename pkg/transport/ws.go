package transport

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/voxhire/voxhire/pkg/logging"
)

const (
	writeWait    = 10 * time.Second
	pongWait     = 60 * time.Second
	pingInterval = 25 * time.Second
	sendBuffer   = 128
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  8192,
	WriteBufferSize: 8192,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// Handler receives decoded frames from one room connection.
type Handler interface {
	OnTranscript(text string, final bool)
	OnManual(text string)
	OnControl(action string)
	OnAudio(p []byte)
	OnClose()
}

// Conn is one websocket room connection. Writes are serialized through a
// buffered channel; a full buffer drops the frame rather than stalling the
// turn path.
type Conn struct {
	ws     *websocket.Conn
	send   chan outFrame
	closed chan struct{}
	once   sync.Once
	logger *slog.Logger
}

type outFrame struct {
	messageType int
	data        []byte
}

func newConn(ws *websocket.Conn, logger *slog.Logger) *Conn {
	return &Conn{
		ws:     ws,
		send:   make(chan outFrame, sendBuffer),
		closed: make(chan struct{}),
		logger: logger,
	}
}

// Send queues a JSON frame for the client.
func (c *Conn) Send(msg ServerMessage) {
	data, err := json.Marshal(msg)
	if err != nil {
		c.logger.Error("marshal server message", "err", err)
		return
	}
	c.enqueue(outFrame{messageType: websocket.TextMessage, data: data})
}

// SendAudio queues a binary audio frame for the client.
func (c *Conn) SendAudio(p []byte) {
	c.enqueue(outFrame{messageType: websocket.BinaryMessage, data: p})
}

func (c *Conn) enqueue(f outFrame) {
	select {
	case <-c.closed:
	case c.send <- f:
	default:
		c.logger.Warn("send buffer full, dropping frame")
	}
}

// Close tears the connection down. Idempotent.
func (c *Conn) Close() {
	c.once.Do(func() {
		close(c.closed)
		_ = c.ws.Close()
	})
}

func (c *Conn) writeLoop() {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-c.closed:
			return
		case f := <-c.send:
			_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.ws.WriteMessage(f.messageType, f.data); err != nil {
				c.logger.Debug("write failed", "err", err)
				c.Close()
				return
			}
		case <-ticker.C:
			_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.Close()
				return
			}
		}
	}
}

func (c *Conn) readLoop(handler Handler) {
	defer func() {
		c.Close()
		handler.OnClose()
	}()
	_ = c.ws.SetReadDeadline(time.Now().Add(pongWait))
	c.ws.SetPongHandler(func(string) error {
		return c.ws.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		messageType, data, err := c.ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				c.logger.Debug("read failed", "err", err)
			}
			return
		}
		if messageType == websocket.BinaryMessage {
			handler.OnAudio(data)
			continue
		}
		var msg ClientMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			c.logger.Warn("malformed client frame", "err", err)
			continue
		}
		switch msg.Type {
		case ClientTranscript:
			handler.OnTranscript(msg.Text, msg.Final)
		case ClientManual:
			handler.OnManual(msg.Text)
		case ClientControl:
			handler.OnControl(msg.Action)
		default:
			c.logger.Warn("unknown client frame type", "type", msg.Type)
		}
	}
}

// HandlerFactory builds the room handler for a newly accepted connection.
type HandlerFactory func(conn *Conn, r *http.Request) (Handler, error)

// Server upgrades HTTP requests into room connections.
type Server struct {
	factory HandlerFactory
	logger  *slog.Logger
}

func NewServer(factory HandlerFactory, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		factory: factory,
		logger:  logging.NewComponentLogger(logger, "transport"),
	}
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ws, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("upgrade failed", "err", err)
		return
	}
	conn := newConn(ws, s.logger)
	go conn.writeLoop()
	handler, err := s.factory(conn, r)
	if err != nil {
		s.logger.Warn("room setup failed", "err", err)
		conn.Send(ServerMessage{Type: ServerError, Code: "room_setup", Message: err.Error()})
		conn.Close()
		return
	}
	conn.readLoop(handler)
}
