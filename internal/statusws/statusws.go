// Package statusws broadcasts a JSON channel-status snapshot to any
// connected monitor clients, using the same upgrader and
// write-mutex-guarded connection wrapper style as other websocket
// broadcasters in this codebase, but carrying a small diagnostic
// snapshot instead of audio/spectrum binary frames.
package statusws

import (
	"encoding/json"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:    4096,
	WriteBufferSize:   65536,
	EnableCompression: false,
	CheckOrigin:       func(r *http.Request) bool { return true },
}

// ChannelStatus is one channel's state in a status snapshot.
type ChannelStatus struct {
	ID           int     `json:"id"`
	Synchronised bool    `json:"synchronised"`
	StartFound   bool    `json:"start_found"`
	Level        float64 `json:"level"`
	PhaseDelta   float64 `json:"phase_delta"`
	BufferLen    int     `json:"buffer_len"`
}

// Snapshot is broadcast verbatim as JSON to every connected client.
type Snapshot struct {
	Timestamp int64           `json:"timestamp"`
	Channels  []ChannelStatus `json:"channels"`
}

// SnapshotFunc produces the current snapshot on demand.
type SnapshotFunc func() Snapshot

// wsConn wraps a connection with a write mutex, since the broadcast
// goroutine and the server's read loop both touch it.
type wsConn struct {
	conn    *websocket.Conn
	writeMu sync.Mutex
}

func (wc *wsConn) writeJSON(v interface{}) error {
	wc.writeMu.Lock()
	defer wc.writeMu.Unlock()

	payload, err := json.Marshal(v)
	if err != nil {
		return err
	}
	wc.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
	return wc.conn.WriteMessage(websocket.TextMessage, payload)
}

// Broadcaster periodically pushes a Snapshot to every connected
// client at broadcastInterval.
type Broadcaster struct {
	snapshot SnapshotFunc
	interval time.Duration

	mu    sync.Mutex
	conns map[*wsConn]struct{}
}

// NewBroadcaster constructs a Broadcaster that calls snapshot on every
// tick of interval.
func NewBroadcaster(snapshot SnapshotFunc, interval time.Duration) *Broadcaster {
	return &Broadcaster{
		snapshot: snapshot,
		interval: interval,
		conns:    make(map[*wsConn]struct{}),
	}
}

// Handler upgrades the HTTP request to a websocket connection and
// registers it for broadcast until the client disconnects.
func (b *Broadcaster) Handler(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("statusws: upgrade failed: %v", err)
		return
	}

	wc := &wsConn{conn: conn}
	b.register(wc)
	defer b.unregister(wc)

	initial := b.snapshot()
	initial.Timestamp = time.Now().Unix()
	_ = wc.writeJSON(initial)

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (b *Broadcaster) register(wc *wsConn) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.conns[wc] = struct{}{}
}

func (b *Broadcaster) unregister(wc *wsConn) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.conns, wc)
	wc.conn.Close()
}

// Run broadcasts snapshots on a ticker until ctx-like stop is closed.
func (b *Broadcaster) Run(stop <-chan struct{}) {
	ticker := time.NewTicker(b.interval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			s := b.snapshot()
			s.Timestamp = time.Now().Unix()
			b.broadcast(s)
		}
	}
}

func (b *Broadcaster) broadcast(s Snapshot) {
	b.mu.Lock()
	targets := make([]*wsConn, 0, len(b.conns))
	for wc := range b.conns {
		targets = append(targets, wc)
	}
	b.mu.Unlock()

	for _, wc := range targets {
		if err := wc.writeJSON(s); err != nil {
			b.unregister(wc)
		}
	}
}
