// SPDX-License-Identifier: MIT
package transport

import (
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"sync"
	"time"

	"audioviz/internal/log"

	"github.com/gorilla/websocket"
)

const (
	// FramesPath is the endpoint clients connect to.
	FramesPath = "/frames"

	broadcastQueue = 256
	writeTimeout   = time.Second
)

// WebSocketTransport broadcasts every payload as JSON to all clients
// connected on FramesPath.
type WebSocketTransport struct {
	upgrader  websocket.Upgrader
	clients   map[*websocket.Conn]bool
	clientsMu sync.Mutex
	broadcast chan any
	done      chan struct{}
	closeOnce sync.Once
	wg        sync.WaitGroup

	// Frames arriving sooner than minInterval after the last accepted one
	// are dropped. Zero accepts everything.
	minInterval time.Duration
	lastSend    time.Time
	rateMu      sync.Mutex

	listener net.Listener
	server   *http.Server
}

func newWebSocketTransport() *WebSocketTransport {
	return &WebSocketTransport{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return true // Renderers are usually served from a different origin
			},
		},
		clients:   make(map[*websocket.Conn]bool),
		broadcast: make(chan any, broadcastQueue),
		done:      make(chan struct{}),
	}
}

// NewWebSocketHub starts broadcasting without a server of its own. Mount
// Handler on an existing server.
func NewWebSocketHub() *WebSocketTransport {
	wst := newWebSocketTransport()
	wst.start()
	return wst
}

// NewWebSocketTransport listens on addr and starts serving. Use ":0" to pick
// a free port and Addr to find it.
func NewWebSocketTransport(addr string) (*WebSocketTransport, error) {
	wst := newWebSocketTransport()

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}
	wst.listener = ln
	wst.server = &http.Server{
		Handler:           wst.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	wst.wg.Add(1)
	go func() {
		defer wst.wg.Done()
		log.Infof("WebSocketTransport: serving %s on %s", FramesPath, ln.Addr())
		if err := wst.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Errorf("WebSocketTransport: Server error: %v", err)
		}
	}()

	wst.start()
	return wst, nil
}

// Addr returns the listen address, or nil when no server was started.
func (wst *WebSocketTransport) Addr() net.Addr {
	if wst.listener == nil {
		return nil
	}
	return wst.listener.Addr()
}

// Handler returns the HTTP handler serving FramesPath.
func (wst *WebSocketTransport) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc(FramesPath, wst.handleWebSocket)
	return mux
}

func (wst *WebSocketTransport) start() {
	wst.wg.Add(1)
	go wst.handleBroadcasts()
}

// handleWebSocket upgrades HTTP connections to WebSocket
func (wst *WebSocketTransport) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := wst.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warnf("WebSocketTransport: Upgrade error: %v", err)
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
	wst.clients[conn] = true
	total := len(wst.clients)
	wst.clientsMu.Unlock()
	log.Infof("WebSocketTransport: Client connected, total: %d", total)

	// Clients only listen; the read loop notices disconnects.
	go func() {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				wst.drop(conn)
				return
			}
		}
	}()
}

func (wst *WebSocketTransport) drop(conn *websocket.Conn) {
	wst.clientsMu.Lock()
	_, ok := wst.clients[conn]
	delete(wst.clients, conn)
	total := len(wst.clients)
	wst.clientsMu.Unlock()

	if ok {
		conn.Close()
		log.Infof("WebSocketTransport: Client disconnected, total: %d", total)
	}
}

// handleBroadcasts sends messages to all connected clients
func (wst *WebSocketTransport) handleBroadcasts() {
	defer wst.wg.Done()
	for {
		select {
		case <-wst.done:
			return
		case data := <-wst.broadcast:
			// Encode once for every client.
			payload, err := json.Marshal(data)
			if err != nil {
				log.Warnf("WebSocketTransport: cannot encode %T: %v", data, err)
				continue
			}
			msg, err := websocket.NewPreparedMessage(websocket.TextMessage, payload)
			if err != nil {
				log.Warnf("WebSocketTransport: %v", err)
				continue
			}

			wst.clientsMu.Lock()
			for client := range wst.clients {
				client.SetWriteDeadline(time.Now().Add(writeTimeout))
				if err := client.WritePreparedMessage(msg); err != nil {
					log.Warnf("WebSocketTransport: Error sending to client: %v", err)
					client.Close()
					delete(wst.clients, client)
				}
			}
			wst.clientsMu.Unlock()
		}
	}
}

// SetMinInterval rate-limits broadcasts to at most one per d.
func (wst *WebSocketTransport) SetMinInterval(d time.Duration) {
	wst.rateMu.Lock()
	defer wst.rateMu.Unlock()
	wst.minInterval = d
}

// Send queues data for broadcast. Payloads over the rate limit or arriving
// while the queue is full are dropped.
func (wst *WebSocketTransport) Send(data any) error {
	select {
	case <-wst.done:
		return ErrClosed
	default:
	}

	wst.rateMu.Lock()
	now := time.Now()
	if wst.minInterval > 0 && now.Sub(wst.lastSend) < wst.minInterval {
		wst.rateMu.Unlock()
		return nil
	}
	wst.lastSend = now
	wst.rateMu.Unlock()
	select {
	case wst.broadcast <- data:
	default:
		log.Debug("WebSocketTransport: broadcast queue full, dropping frame")
	}
	return nil
}

// Clients returns the number of connected clients.
func (wst *WebSocketTransport) Clients() int {
	wst.clientsMu.Lock()
	defer wst.clientsMu.Unlock()
	return len(wst.clients)
}

// Close disconnects every client and shuts down the server.
func (wst *WebSocketTransport) Close() error {
	var err error
	wst.closeOnce.Do(func() {
		log.Info("WebSocketTransport: Closing server")

		wst.clientsMu.Lock()
		close(wst.done)
		for client := range wst.clients {
			client.Close()
		}
		wst.clients = make(map[*websocket.Conn]bool)
		wst.clientsMu.Unlock()

		if wst.server != nil {
			err = wst.server.Close()
		}
		wst.wg.Wait()
	})
	return err
}

// Ensure WebSocketTransport satisfies the interface
var _ Transport = (*WebSocketTransport)(nil)
