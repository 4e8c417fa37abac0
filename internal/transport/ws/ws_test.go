package ws

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/cwrk-planet/glasschat/internal/chat"
	"github.com/cwrk-planet/glasschat/internal/notify"
)

type tokenVerifier map[string]string

func (v tokenVerifier) VerifyAccessToken(token string) (string, error) {
	if id, ok := v[token]; ok {
		return id, nil
	}
	return "", errors.New("bad token")
}

type signedIn string

func (s signedIn) UserID() string { return string(s) }

func startServer(t *testing.T) (*Server, *Hub, string) {
	t.Helper()
	hub := NewHub()
	verifier := tokenVerifier{"good": "u1", "mallory-token": "mallory"}
	srv := NewServer(hub, verifier, signedIn("u1"), func() any { return map[string]string{"active_room": "r1"} }, nil)
	ts := httptest.NewServer(http.HandlerFunc(srv.HandleWS))
	t.Cleanup(func() {
		hub.CloseAll()
		ts.Close()
	})
	return srv, hub, "ws" + strings.TrimPrefix(ts.URL, "http")
}

func read(t *testing.T, c *websocket.Conn) Message {
	t.Helper()
	_ = c.SetReadDeadline(time.Now().Add(2 * time.Second))
	var m Message
	if err := c.ReadJSON(&m); err != nil {
		t.Fatalf("read: %v", err)
	}
	return m
}

func TestHandleWS_StateThenBroadcasts(t *testing.T) {
	srv, hub, url := startServer(t)

	c, _, err := websocket.DefaultDialer.Dial(url+"?access_token=good", nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer c.Close()

	if m := read(t, c); m.Type != TypeState {
		t.Fatalf("first message = %+v", m)
	}
	for deadline := time.Now().Add(time.Second); hub.Len() != 1; {
		if time.Now().After(deadline) {
			t.Fatal("connection not registered")
		}
		time.Sleep(5 * time.Millisecond)
	}

	hub.Notify(notify.Info("Call started", "Video call"))
	if m := read(t, c); m.Type != TypeNotification {
		t.Fatalf("got %+v", m)
	}

	srv.ChatChanged(chat.Change{Type: chat.ChangeMessage, RoomID: "r1"})
	m := read(t, c)
	payload, _ := m.Payload.(map[string]any)
	if m.Type != TypeMessage || payload["room_id"] != "r1" {
		t.Fatalf("got %+v", m)
	}

	if err := c.WriteJSON(Message{Type: TypePing}); err != nil {
		t.Fatal(err)
	}
	if m := read(t, c); m.Type != TypePong {
		t.Fatalf("got %+v", m)
	}
}

func TestHandleWS_RejectsOtherUsersToken(t *testing.T) {
	_, hub, url := startServer(t)
	_, resp, err := websocket.DefaultDialer.Dial(url+"?access_token=mallory-token", nil)
	if err == nil {
		t.Fatal("expected dial failure")
	}
	if resp == nil || resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("resp = %+v", resp)
	}
	if hub.Len() != 0 {
		t.Fatalf("hub has %d connections", hub.Len())
	}
}

func TestHandleWS_RejectsWhenSignedOut(t *testing.T) {
	hub := NewHub()
	srv := NewServer(hub, tokenVerifier{"good": "u1"}, signedIn(""), func() any { return nil }, nil)
	ts := httptest.NewServer(http.HandlerFunc(srv.HandleWS))
	defer ts.Close()

	_, resp, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(ts.URL, "http")+"?access_token=good", nil)
	if err == nil {
		t.Fatal("expected dial failure")
	}
	if resp == nil || resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("resp = %+v", resp)
	}
}

func TestHandleWS_RejectsBadToken(t *testing.T) {
	_, _, url := startServer(t)
	_, resp, err := websocket.DefaultDialer.Dial(url+"?access_token=nope", nil)
	if err == nil {
		t.Fatal("expected dial failure")
	}
	if resp == nil || resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("resp = %+v", resp)
	}
}

func TestCheckOrigin(t *testing.T) {
	check := checkOrigin([]string{"http://localhost:5173"})
	r := httptest.NewRequest(http.MethodGet, "/ws", nil)
	if !check(r) {
		t.Fatal("no origin rejected")
	}
	r.Header.Set("Origin", "http://evil.example")
	if check(r) {
		t.Fatal("foreign origin accepted")
	}
	r.Header.Set("Origin", "http://localhost:5173")
	if !check(r) {
		t.Fatal("allowed origin rejected")
	}
}
