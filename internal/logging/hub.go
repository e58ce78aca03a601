package logging

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	log "github.com/sirupsen/logrus"
)

// StreamEntry is one log line as delivered to panel watchers.
type StreamEntry struct {
	Seq       uint64    `json:"seq"`
	Timestamp time.Time `json:"timestamp"`
	Level     string    `json:"level"`
	Message   string    `json:"message"`
	Fields    log.Fields `json:"fields,omitempty"`
}

type watcher struct {
	conn     *websocket.Conn
	send     chan StreamEntry
	lastSeen time.Time
}

// Hub fans structured log lines out to connected panel websockets and
// keeps a bounded in-memory tail for catch-up on connect.
type Hub struct {
	mu       sync.RWMutex
	watchers map[*websocket.Conn]*watcher

	historyMu sync.RWMutex
	history   []StreamEntry
	maxTail   int

	seq  uint64
	feed chan StreamEntry

	maxWatchers int
	idleTimeout time.Duration

	stopOnce sync.Once
	stop     chan struct{}
}

const (
	defaultMaxTail     = 500
	defaultMaxWatchers = 100
	defaultIdleTimeout = 30 * time.Minute
	watcherSendBuffer  = 64
)

var (
	hubOnce sync.Once
	hub     *Hub
)

// GetHub returns the process-wide log hub, starting it on first use.
func GetHub() *Hub {
	hubOnce.Do(func() {
		hub = &Hub{
			watchers:    make(map[*websocket.Conn]*watcher),
			history:     make([]StreamEntry, 0, defaultMaxTail),
			maxTail:     defaultMaxTail,
			feed:        make(chan StreamEntry, 256),
			maxWatchers: defaultMaxWatchers,
			idleTimeout: defaultIdleTimeout,
			stop:        make(chan struct{}),
		}
		go hub.run()
		go hub.reap()
	})
	return hub
}

func (h *Hub) run() {
	for {
		select {
		case entry := <-h.feed:
			h.mu.RLock()
			for _, w := range h.watchers {
				select {
				case w.send <- entry:
				default:
					// Slow watcher; drop rather than block the hub.
				}
			}
			h.mu.RUnlock()
		case <-h.stop:
			return
		}
	}
}

func (h *Hub) reap() {
	ticker := time.NewTicker(2 * time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			cutoff := time.Now().Add(-h.idleTimeout)
			h.mu.Lock()
			for conn, w := range h.watchers {
				if w.lastSeen.Before(cutoff) {
					close(w.send)
					delete(h.watchers, conn)
					conn.Close()
				}
			}
			h.mu.Unlock()
		case <-h.stop:
			return
		}
	}
}

// Publish records a log line and pushes it to all watchers. Never blocks.
func (h *Hub) Publish(level, message string, fields log.Fields) {
	entry := StreamEntry{
		Seq:       atomic.AddUint64(&h.seq, 1),
		Timestamp: time.Now(),
		Level:     level,
		Message:   message,
		Fields:    fields,
	}

	h.historyMu.Lock()
	h.history = append(h.history, entry)
	if len(h.history) > h.maxTail {
		h.history = h.history[len(h.history)-h.maxTail:]
	}
	h.historyMu.Unlock()

	select {
	case h.feed <- entry:
	default:
	}
}

// TailSince returns buffered entries with Seq greater than cursor, oldest
// first. A cursor of zero returns the whole retained tail.
func (h *Hub) TailSince(cursor uint64) []StreamEntry {
	h.historyMu.RLock()
	defer h.historyMu.RUnlock()
	out := make([]StreamEntry, 0, len(h.history))
	for _, e := range h.history {
		if e.Seq > cursor {
			out = append(out, e)
		}
	}
	return out
}

// Attach registers a websocket watcher and starts its writer goroutine.
// Returns false when the hub is at capacity.
func (h *Hub) Attach(conn *websocket.Conn) bool {
	h.mu.Lock()
	if len(h.watchers) >= h.maxWatchers {
		h.mu.Unlock()
		return false
	}
	w := &watcher{
		conn:     conn,
		send:     make(chan StreamEntry, watcherSendBuffer),
		lastSeen: time.Now(),
	}
	h.watchers[conn] = w
	h.mu.Unlock()

	go func() {
		for entry := range w.send {
			conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := conn.WriteJSON(entry); err != nil {
				h.Detach(conn)
				return
			}
		}
	}()
	return true
}

// Touch refreshes the idle clock for a watcher, typically from its read loop.
func (h *Hub) Touch(conn *websocket.Conn) {
	h.mu.Lock()
	if w, ok := h.watchers[conn]; ok {
		w.lastSeen = time.Now()
	}
	h.mu.Unlock()
}

// Detach removes a watcher and closes its connection.
func (h *Hub) Detach(conn *websocket.Conn) {
	h.mu.Lock()
	if w, ok := h.watchers[conn]; ok {
		close(w.send)
		delete(h.watchers, conn)
	}
	h.mu.Unlock()
	conn.Close()
}

// WatcherCount reports connected watchers, for the health endpoint.
func (h *Hub) WatcherCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.watchers)
}

// Stop terminates the hub goroutines and disconnects all watchers.
func (h *Hub) Stop() {
	h.stopOnce.Do(func() {
		close(h.stop)
		h.mu.Lock()
		for conn, w := range h.watchers {
			close(w.send)
			delete(h.watchers, conn)
			conn.Close()
		}
		h.mu.Unlock()
	})
}

// hubHook mirrors logrus output into the hub.
type hubHook struct {
	hub *Hub
}

func (hubHook) Levels() []log.Level {
	return []log.Level{
		log.PanicLevel, log.FatalLevel, log.ErrorLevel,
		log.WarnLevel, log.InfoLevel,
	}
}

func (hk hubHook) Fire(entry *log.Entry) error {
	fields := make(log.Fields, len(entry.Data))
	for k, v := range entry.Data {
		if err, ok := v.(error); ok {
			fields[k] = err.Error()
			continue
		}
		fields[k] = v
	}
	hk.hub.Publish(entry.Level.String(), entry.Message, fields)
	return nil
}

// InstallHook mirrors all Info-and-above logrus entries into the hub so
// panel watchers see the same stream as stdout.
func InstallHook() {
	log.AddHook(hubHook{hub: GetHub()})
}
