package core

import (
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	reloadMessage     = "reload"
	reloadWriteWindow = time.Second
)

// LiveReloaderInterface is what the dev server needs from a reloader.
type LiveReloaderInterface interface {
	BroadcastReload()
	Handler(http.ResponseWriter, *http.Request)
}

// LiveReloader keeps the dev browsers' websockets and tells them to reload
// after a source change.
type LiveReloader struct {
	mu       sync.Mutex
	clients  map[*websocket.Conn]struct{}
	upgrader websocket.Upgrader
}

var NewLiveReloader = func() LiveReloaderInterface {
	return &LiveReloader{
		clients: make(map[*websocket.Conn]struct{}),
		upgrader: websocket.Upgrader{
			// dev only; the page and socket share a host
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

func (lr *LiveReloader) Handler(w http.ResponseWriter, r *http.Request) {
	conn, err := lr.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	lr.add(conn)

	go func() {
		defer lr.drop(conn)
		for {
			if _, _, err := conn.NextReader(); err != nil {
				return
			}
		}
	}()
}

func (lr *LiveReloader) add(conn *websocket.Conn) {
	lr.mu.Lock()
	lr.clients[conn] = struct{}{}
	lr.mu.Unlock()
}

func (lr *LiveReloader) drop(conn *websocket.Conn) {
	lr.mu.Lock()
	delete(lr.clients, conn)
	lr.mu.Unlock()
	conn.Close()
}

// BroadcastReload writes the reload message to every client and drops the
// ones that cannot take it within the write window.
func (lr *LiveReloader) BroadcastReload() {
	lr.mu.Lock()
	defer lr.mu.Unlock()

	deadline := time.Now().Add(reloadWriteWindow)
	for conn := range lr.clients {
		conn.SetWriteDeadline(deadline)
		if err := conn.WriteMessage(websocket.TextMessage, []byte(reloadMessage)); err != nil {
			delete(lr.clients, conn)
			conn.Close()
		}
	}
}

// Count reports the number of connected browsers.
func (lr *LiveReloader) Count() int {
	lr.mu.Lock()
	defer lr.mu.Unlock()
	return len(lr.clients)
}
