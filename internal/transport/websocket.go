// SPDX-License-Identifier: MIT
package transport

import (
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// VoicePath is the HTTP path clients upgrade on.
const VoicePath = "/voice"

const (
	broadcastQueue = 256
	writeWait      = time.Second
)

// ErrTransportClosed is returned by Send after Close.
var ErrTransportClosed = errors.New("transport closed")

// Hello is the first message a client receives after connecting.
type Hello struct {
	Type     string `json:"type"`
	ClientID string `json:"client_id"`
}

// WebSocketTransport broadcasts every value passed to Send as a JSON text
// message to all connected clients. Values are queued and dropped when the
// queue is full so Send never blocks the audio path.
type WebSocketTransport struct {
	upgrader  websocket.Upgrader
	clients   map[uuid.UUID]*websocket.Conn
	clientsMu sync.Mutex
	broadcast chan any
	done      chan struct{}
	closeOnce sync.Once
	dropped   atomic.Uint64

	listener net.Listener
	server   *http.Server
}

// NewWebSocketTransport starts a WebSocket server on addr ("host:port", port
// 0 picks a free one) and begins accepting clients on VoicePath.
func NewWebSocketTransport(addr string) (*WebSocketTransport, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("failed to listen on '%s': %w", addr, err)
	}

	wst := &WebSocketTransport{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return true // local visualizers connect from arbitrary origins
			},
		},
		clients:   make(map[uuid.UUID]*websocket.Conn),
		broadcast: make(chan any, broadcastQueue),
		done:      make(chan struct{}),
		listener:  ln,
	}
	wst.server = &http.Server{
		Handler:           wst.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		transportLog.Infof("websocket server listening on %s%s", ln.Addr(), VoicePath)
		if err := wst.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			transportLog.Errorf("websocket server error: %v", err)
		}
	}()
	go wst.handleBroadcasts()

	return wst, nil
}

// Addr returns the address the server is listening on.
func (wst *WebSocketTransport) Addr() string {
	return wst.listener.Addr().String()
}

// Handler returns the HTTP handler serving VoicePath.
func (wst *WebSocketTransport) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc(VoicePath, wst.handleWebSocket)
	return mux
}

// Clients returns the number of connected clients.
func (wst *WebSocketTransport) Clients() int {
	wst.clientsMu.Lock()
	defer wst.clientsMu.Unlock()
	return len(wst.clients)
}

// Dropped returns the number of values discarded because the queue was full.
func (wst *WebSocketTransport) Dropped() uint64 { return wst.dropped.Load() }

func (wst *WebSocketTransport) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := wst.upgrader.Upgrade(w, r, nil)
	if err != nil {
		transportLog.Warnf("websocket upgrade error: %v", err)
		return
	}

	id := uuid.New()

	// The hello is written before registration so the broadcast loop is the
	// only writer afterwards.
	conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := conn.WriteJSON(Hello{Type: "hello", ClientID: id.String()}); err != nil {
		transportLog.Warnf("websocket hello to %s failed: %v", id, err)
		conn.Close()
		return
	}

	wst.clientsMu.Lock()
	select {
	case <-wst.done:
		wst.clientsMu.Unlock()
		conn.Close()
		return
	default:
	}
	wst.clients[id] = conn
	total := len(wst.clients)
	wst.clientsMu.Unlock()
	transportLog.Infof("client %s connected from %s, total: %d", id, r.RemoteAddr, total)

	go wst.readUntilClosed(id, conn)
}

// readUntilClosed drains client frames so control messages are handled and
// unregisters the client once the connection fails.
func (wst *WebSocketTransport) readUntilClosed(id uuid.UUID, conn *websocket.Conn) {
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}
	if wst.removeClient(id) {
		transportLog.Infof("client %s disconnected, total: %d", id, wst.Clients())
	}
}

func (wst *WebSocketTransport) removeClient(id uuid.UUID) bool {
	wst.clientsMu.Lock()
	defer wst.clientsMu.Unlock()
	conn, ok := wst.clients[id]
	if !ok {
		return false
	}
	delete(wst.clients, id)
	conn.Close()
	return true
}

func (wst *WebSocketTransport) handleBroadcasts() {
	for {
		select {
		case <-wst.done:
			return
		case data := <-wst.broadcast:
			wst.clientsMu.Lock()
			for id, conn := range wst.clients {
				conn.SetWriteDeadline(time.Now().Add(writeWait))
				if err := conn.WriteJSON(data); err != nil {
					transportLog.Warnf("error sending to client %s: %v", id, err)
					conn.Close()
					delete(wst.clients, id)
				}
			}
			wst.clientsMu.Unlock()
		}
	}
}

// Send queues data for broadcast. A full queue drops the value.
func (wst *WebSocketTransport) Send(data any) error {
	select {
	case <-wst.done:
		return ErrTransportClosed
	default:
	}
	select {
	case wst.broadcast <- data:
	default:
		if n := wst.dropped.Add(1); n%broadcastQueue == 1 {
			transportLog.Warnf("broadcast queue full, %d messages dropped so far", n)
		}
	}
	return nil
}

// Close disconnects every client and shuts the server down.
func (wst *WebSocketTransport) Close() error {
	var err error
	wst.closeOnce.Do(func() {
		transportLog.Infof("closing websocket server")
		wst.clientsMu.Lock()
		close(wst.done)
		for id, conn := range wst.clients {
			conn.Close()
			delete(wst.clients, id)
		}
		wst.clientsMu.Unlock()
		err = wst.server.Close()
	})
	return err
}

// Ensure WebSocketTransport satisfies the interface.
var _ Transport = (*WebSocketTransport)(nil)
