package ws

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/cwrk-planet/glasschat/internal/call"
	"github.com/cwrk-planet/glasschat/internal/chat"
	"github.com/cwrk-planet/glasschat/internal/domain"
	"github.com/cwrk-planet/glasschat/internal/ident"
)

// Verifier resolves an access token to a user id.
type Verifier interface {
	VerifyAccessToken(token string) (string, error)
}

// Session reports the user signed in to this daemon.
type Session interface {
	UserID() string
}

type Server struct {
	upgrader websocket.Upgrader
	hub      *Hub
	verifier Verifier
	session  Session
	state    func() any

	pingEvery    time.Duration
	writeTimeout time.Duration
}

// NewServer serves the UI stream to the signed-in user; state builds the
// snapshot sent on connect.
func NewServer(hub *Hub, verifier Verifier, session Session, state func() any, allowedOrigins []string) *Server {
	return &Server{
		hub:      hub,
		verifier: verifier,
		session:  session,
		state:    state,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     checkOrigin(allowedOrigins),
		},
		pingEvery:    15 * time.Second,
		writeTimeout: 5 * time.Second,
	}
}

func checkOrigin(allowed []string) func(r *http.Request) bool {
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" || len(allowed) == 0 {
			return true
		}
		for _, a := range allowed {
			if a == "*" || strings.EqualFold(a, origin) {
				return true
			}
		}
		return false
	}
}

// HandleWS upgrades GET /ws?access_token=... (or a bearer header).
func (s *Server) HandleWS(w http.ResponseWriter, r *http.Request) {
	token := strings.TrimSpace(r.URL.Query().Get("access_token"))
	if token == "" {
		if h := r.Header.Get("Authorization"); len(h) > 7 && strings.EqualFold(h[:7], "bearer ") {
			token = strings.TrimSpace(h[7:])
		}
	}
	if token == "" {
		http.Error(w, "missing access_token", http.StatusUnauthorized)
		return
	}
	userID, err := s.verifier.VerifyAccessToken(token)
	if err != nil {
		http.Error(w, "invalid access_token", http.StatusUnauthorized)
		return
	}
	// The stream carries the signed-in user's state, so only their token opens it.
	if current := s.session.UserID(); current == "" || userID != current {
		slog.Warn("ws rejected token of another user", slog.String("user_id", userID))
		http.Error(w, "access_token does not match the signed-in user", http.StatusUnauthorized)
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Warn("ws upgrade failed", slog.Any("err", err))
		return
	}

	c := newWsConn(conn, userID, s.writeTimeout)
	s.hub.Add(c)
	slog.Info("ws connected", slog.String("conn_id", c.id), slog.String("user_id", userID))

	if err := c.Send(Message{Type: TypeState, Payload: s.state()}); err != nil {
		slog.Warn("ws send initial state failed", slog.String("conn_id", c.id), slog.Any("err", err))
	}

	go s.writeLoop(c)
	s.readLoop(c)

	s.hub.Remove(c)
	if err := c.Close(); err != nil {
		slog.Debug("ws close failed", slog.String("conn_id", c.id), slog.Any("err", err))
	}
	slog.Info("ws disconnected", slog.String("conn_id", c.id))
}

// readLoop only answers pings; intents go through the HTTP API.
func (s *Server) readLoop(c *wsConn) {
	defer func() { _ = c.Close() }()

	c.conn.SetReadLimit(1 << 16)
	_ = c.conn.SetReadDeadline(time.Now().Add(2 * s.pingEvery))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(2 * s.pingEvery))
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			return
		}
		var msg Message
		if err := json.Unmarshal(data, &msg); err != nil {
			continue
		}
		switch msg.Type {
		case TypePing:
			_ = c.Send(Message{Type: TypePong})
		case TypeState:
			_ = c.Send(Message{Type: TypeState, Payload: s.state()})
		}
	}
}

func (s *Server) writeLoop(c *wsConn) {
	ticker := time.NewTicker(s.pingEvery)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if err := c.ping(); err != nil {
				_ = c.Close()
				return
			}
		case <-c.closed:
			return
		}
	}
}

// ChatChanged forwards a room/message store change.
func (s *Server) ChatChanged(ch chat.Change) {
	switch ch.Type {
	case chat.ChangeReset:
		s.hub.Broadcast(Message{Type: TypeState, Payload: s.state()})
	case chat.ChangeMessage:
		s.hub.Broadcast(Message{Type: TypeMessage, Payload: ChangePayload{RoomID: ch.RoomID, Data: ch.Payload}})
	case chat.ChangeReaction:
		s.hub.Broadcast(Message{Type: TypeReaction, Payload: ChangePayload{RoomID: ch.RoomID, Data: ch.Payload}})
	case chat.ChangeRoom:
		s.hub.Broadcast(Message{Type: TypeRoom, Payload: ChangePayload{RoomID: ch.RoomID, Data: ch.Payload}})
	case chat.ChangeUser:
		s.hub.Broadcast(Message{Type: TypeUser, Payload: ChangePayload{Data: ch.Payload}})
	}
}

func (s *Server) CallChanged(st call.State) {
	s.hub.Broadcast(Message{Type: TypeCall, Payload: st})
}

// SessionChanged forwards the signed-in user; nil means signed out.
func (s *Server) SessionChanged(u *domain.User) {
	s.hub.Broadcast(Message{Type: TypeSession, Payload: map[string]any{"user": u}})
}

type wsConn struct {
	id      string
	userID  string
	conn    *websocket.Conn
	timeout time.Duration

	sendMu    sync.Mutex
	closed    chan struct{}
	closeOnce sync.Once
}

func newWsConn(c *websocket.Conn, userID string, timeout time.Duration) *wsConn {
	return &wsConn{
		id:      ident.New(),
		userID:  userID,
		conn:    c,
		timeout: timeout,
		closed:  make(chan struct{}),
	}
}

func (c *wsConn) Send(msg Message) error {
	c.sendMu.Lock()
	defer c.sendMu.Unlock()
	_ = c.conn.SetWriteDeadline(time.Now().Add(c.timeout))
	return c.conn.WriteJSON(msg)
}

func (c *wsConn) ping() error {
	c.sendMu.Lock()
	defer c.sendMu.Unlock()
	return c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(c.timeout))
}

func (c *wsConn) Close() error {
	var err error
	c.closeOnce.Do(func() {
		close(c.closed)
		err = c.conn.Close()
	})
	return err
}

func (c *wsConn) ID() string { return c.id }
