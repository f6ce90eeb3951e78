// Package sse implements a Server-Sent Events broker that streams calendar
// renders and entry changes to connected clients.
package sse

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/starford/jera/internal/viewsync"
)

// Event types sent to clients.
const (
	TypeViewRendered    = "view.rendered"
	TypeEntryCreated    = "entry.created"
	TypeEntryUpdated    = "entry.updated"
	TypeEntryDeleted    = "entry.deleted"
	TypeCalendarChanged = "calendar.changed"
)

var entryTypes = map[string]string{
	"created": TypeEntryCreated,
	"updated": TypeEntryUpdated,
	"deleted": TypeEntryDeleted,
}

// Event represents an SSE event to broadcast.
type Event struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

// frame is an encoded SSE message. id is set for view renders only and carries
// the view revision, so a client can tell it missed one.
func frame(id, typ string, data any) ([]byte, bool) {
	payload, err := json.Marshal(data)
	if err != nil {
		return nil, false
	}
	if id != "" {
		return []byte(fmt.Sprintf("id: %s\nevent: %s\ndata: %s\n\n", id, typ, payload)), true
	}
	return []byte(fmt.Sprintf("event: %s\ndata: %s\n\n", typ, payload)), true
}

// hub is the state owned by the broker goroutine.
type hub struct {
	clients     map[chan []byte]struct{}
	view        []byte // last view.rendered frame, replayed to new clients
	lastChanged time.Time
	changedMin  time.Duration
}

func (h *hub) send(msg []byte) {
	for ch := range h.clients {
		select {
		case ch <- msg:
		default:
			// Client buffer full; a slow client must not stall the loop.
		}
	}
}

// op is one request handled on the broker goroutine.
type op interface{ apply(h *hub) }

type subscribeOp struct{ ch chan []byte }

func (o subscribeOp) apply(h *hub) {
	h.clients[o.ch] = struct{}{}
	if h.view != nil {
		o.ch <- h.view
	}
}

type unsubscribeOp struct{ ch chan []byte }

func (o unsubscribeOp) apply(h *hub) {
	if _, ok := h.clients[o.ch]; ok {
		delete(h.clients, o.ch)
		close(o.ch)
	}
}

type countOp struct{ resp chan int }

func (o countOp) apply(h *hub) { o.resp <- len(h.clients) }

type publishOp struct{ ev Event }

func (o publishOp) apply(h *hub) {
	if msg, ok := frame("", o.ev.Type, o.ev.Data); ok {
		h.send(msg)
	}
}

type renderOp struct{ v viewsync.View }

func (o renderOp) apply(h *hub) {
	msg, ok := frame(strconv.FormatUint(o.v.Revision, 10), TypeViewRendered, o.v)
	if !ok {
		return
	}
	h.view = msg
	h.send(msg)
}

type entryOp struct{ kind, id string }

func (o entryOp) apply(h *hub) {
	if typ, ok := entryTypes[o.kind]; ok {
		if msg, ok := frame("", typ, map[string]string{"id": o.id}); ok {
			h.send(msg)
		}
	}
	now := time.Now()
	if now.Sub(h.lastChanged) >= h.changedMin {
		h.lastChanged = now
		if msg, ok := frame("", TypeCalendarChanged, map[string]string{}); ok {
			h.send(msg)
		}
	}
}

// Broker fans view renders and entry changes out to SSE clients.
//
// All client bookkeeping lives in a hub owned by one goroutine; every public
// method is an op sent to it, so no mutexes are needed. The latest render is
// kept and replayed to each new client so it can paint immediately.
type Broker struct {
	ops     chan op
	stopCh  chan struct{}
	stopped chan struct{}
	closed  atomic.Bool
}

// NewBroker creates a broker that emits calendar.changed at most once per
// changedThrottle.
func NewBroker(changedThrottle time.Duration) *Broker {
	if changedThrottle <= 0 {
		changedThrottle = 2 * time.Second
	}
	b := &Broker{
		ops:     make(chan op, 256),
		stopCh:  make(chan struct{}),
		stopped: make(chan struct{}),
	}
	go b.run(&hub{
		clients:    make(map[chan []byte]struct{}),
		changedMin: changedThrottle,
	})
	return b
}

func (b *Broker) run(h *hub) {
	defer close(b.stopped)
	for {
		select {
		case <-b.stopCh:
			for ch := range h.clients {
				close(ch)
			}
			return
		case o := <-b.ops:
			o.apply(h)
		}
	}
}

// submit hands o to the loop. It reports false once the broker is closed.
func (b *Broker) submit(o op) bool {
	if b.closed.Load() {
		return false
	}
	select {
	case b.ops <- o:
		return true
	case <-b.stopped:
		return false
	}
}

// Close gracefully stops broker loop and closes all client channels.
func (b *Broker) Close() {
	if b.closed.CompareAndSwap(false, true) {
		close(b.stopCh)
	}
	<-b.stopped
}

// Subscribe adds a new client and returns its channel. The channel is closed
// when the client unsubscribes or the broker stops.
func (b *Broker) Subscribe() chan []byte {
	ch := make(chan []byte, 64)
	if !b.submit(subscribeOp{ch: ch}) {
		close(ch)
	}
	return ch
}

// Unsubscribe removes a client and closes its channel.
func (b *Broker) Unsubscribe(ch chan []byte) {
	b.submit(unsubscribeOp{ch: ch})
}

// ClientCount returns the number of connected clients.
func (b *Broker) ClientCount() int {
	resp := make(chan int, 1)
	if !b.submit(countOp{resp: resp}) {
		return 0
	}
	select {
	case n := <-resp:
		return n
	case <-b.stopped:
		return 0
	}
}

// Publish sends an event to all connected clients.
func (b *Broker) Publish(event Event) {
	b.submit(publishOp{ev: event})
}

// Render publishes v as view.rendered. It makes the broker a viewsync.Renderer.
func (b *Broker) Render(v viewsync.View) {
	b.submit(renderOp{v: v})
}

// PublishEntryEvent publishes an entry change ("created", "updated" or
// "deleted") and a throttled calendar.changed event.
func (b *Broker) PublishEntryEvent(kind, id string) {
	b.submit(entryOp{kind: kind, id: id})
}

// ServeHTTP is the SSE endpoint handler (GET /api/events).
func (b *Broker) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	ch := b.Subscribe()
	defer b.Unsubscribe(ch)

	for {
		select {
		case <-r.Context().Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			_, _ = w.Write(msg)
			flusher.Flush()
		}
	}
}

var _ viewsync.Renderer = (*Broker)(nil)
