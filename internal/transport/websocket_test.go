// SPDX-License-Identifier: MIT
package transport

import (
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

type testFrame struct {
	TotalEnergy float64   `json:"total_energy"`
	Bands       []float64 `json:"bands"`
}

func dialVoice(t *testing.T, wst *WebSocketTransport) (*websocket.Conn, Hello) {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial("ws://"+wst.Addr()+VoicePath, nil)
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() })

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var hello Hello
	if err := conn.ReadJSON(&hello); err != nil {
		t.Fatalf("reading hello: %v", err)
	}
	return conn, hello
}

func waitForClients(t *testing.T, wst *WebSocketTransport, want int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for wst.Clients() != want {
		if time.Now().After(deadline) {
			t.Fatalf("Clients() = %d, want %d", wst.Clients(), want)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestWebSocketBroadcast(t *testing.T) {
	wst, err := NewWebSocketTransport("127.0.0.1:0")
	if err != nil {
		t.Fatalf("NewWebSocketTransport: %v", err)
	}
	defer wst.Close()

	connA, helloA := dialVoice(t, wst)
	connB, helloB := dialVoice(t, wst)
	waitForClients(t, wst, 2)

	for _, h := range []Hello{helloA, helloB} {
		if h.Type != "hello" {
			t.Errorf("hello type = %q", h.Type)
		}
		if _, err := uuid.Parse(h.ClientID); err != nil {
			t.Errorf("client id %q is not a uuid: %v", h.ClientID, err)
		}
	}
	if helloA.ClientID == helloB.ClientID {
		t.Error("clients share an id")
	}

	want := testFrame{TotalEnergy: 9, Bands: []float64{1, 0, 0.5}}
	if err := wst.Send(want); err != nil {
		t.Fatalf("Send: %v", err)
	}

	for name, conn := range map[string]*websocket.Conn{"A": connA, "B": connB} {
		conn.SetReadDeadline(time.Now().Add(2 * time.Second))
		var got testFrame
		if err := conn.ReadJSON(&got); err != nil {
			t.Fatalf("client %s: ReadJSON: %v", name, err)
		}
		if got.TotalEnergy != want.TotalEnergy || len(got.Bands) != len(want.Bands) || got.Bands[2] != 0.5 {
			t.Errorf("client %s got %+v, want %+v", name, got, want)
		}
	}
}

func TestWebSocketClientDisconnect(t *testing.T) {
	wst, err := NewWebSocketTransport("127.0.0.1:0")
	if err != nil {
		t.Fatalf("NewWebSocketTransport: %v", err)
	}
	defer wst.Close()

	conn, _ := dialVoice(t, wst)
	waitForClients(t, wst, 1)

	conn.Close()
	waitForClients(t, wst, 0)
}

func TestWebSocketSendAfterClose(t *testing.T) {
	wst, err := NewWebSocketTransport("127.0.0.1:0")
	if err != nil {
		t.Fatalf("NewWebSocketTransport: %v", err)
	}
	if err := wst.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := wst.Close(); err != nil {
		t.Errorf("second Close: %v", err)
	}
	if err := wst.Send("late"); !errors.Is(err, ErrTransportClosed) {
		t.Errorf("Send after Close = %v, want ErrTransportClosed", err)
	}
}

func TestWebSocketInvalidAddress(t *testing.T) {
	if _, err := NewWebSocketTransport("256.0.0.1:bad"); err == nil {
		t.Fatal("expected listen error")
	}
}
