package server

import (
	"context"
	"sync"
	"time"
)

const (
	RealtimeEventDesignChanged = "design-change"
	RealtimeEventAddedToCart   = "added-to-cart"
	RealtimeEventClosed        = "editor-closed"
	realtimeEventHeartbeat     = "heartbeat"
	realtimeHeartbeatInterval  = 25 * time.Second
	realtimeStreamBuffer       = 16
)

// RealtimeMessage announces a change to one editor.
type RealtimeMessage struct {
	EditorID  string    `json:"editor_id"`
	EventType string    `json:"-"`
	Version   int64     `json:"version"`
	Timestamp time.Time `json:"timestamp"`
}

// editorTopic holds the open streams of one editor, keyed by subscription number.
type editorTopic map[uint64]chan RealtimeMessage

// RealtimeDispatcher fans editor events out to the browser tabs watching that editor.
// Delivery never blocks: a stream whose buffer is full misses the message and
// resynchronizes from the version carried by the next one.
type RealtimeDispatcher struct {
	mu     sync.RWMutex
	topics map[string]editorTopic
	serial uint64
}

func NewRealtimeDispatcher() *RealtimeDispatcher {
	return &RealtimeDispatcher{topics: make(map[string]editorTopic)}
}

// Subscribe opens a stream for editorID. The stream is released when ctx ends or the
// returned cancel func runs, and closed when the editor is closed.
func (d *RealtimeDispatcher) Subscribe(ctx context.Context, editorID string) (<-chan RealtimeMessage, func()) {
	stream := make(chan RealtimeMessage, realtimeStreamBuffer)
	if editorID == "" {
		close(stream)
		return stream, func() {}
	}

	d.mu.Lock()
	d.serial++
	serial := d.serial
	topic, ok := d.topics[editorID]
	if !ok {
		topic = make(editorTopic)
		d.topics[editorID] = topic
	}
	topic[serial] = stream
	d.mu.Unlock()

	var once sync.Once
	release := func() {
		once.Do(func() { d.drop(editorID, serial) })
	}
	go func() {
		<-ctx.Done()
		release()
	}()
	return stream, release
}

// Publish delivers message to every stream of its editor. Messages without an editor or
// event type are ignored.
func (d *RealtimeDispatcher) Publish(message RealtimeMessage) {
	if message.EditorID == "" || message.EventType == "" {
		return
	}
	if message.Timestamp.IsZero() {
		message.Timestamp = time.Now().UTC()
	}
	d.mu.RLock()
	defer d.mu.RUnlock()
	for _, stream := range d.topics[message.EditorID] {
		select {
		case stream <- message:
		default:
		}
	}
}

// Close sends the closed event to the editor's streams and ends them.
func (d *RealtimeDispatcher) Close(editorID string, version int64) {
	d.mu.Lock()
	topic := d.topics[editorID]
	delete(d.topics, editorID)
	d.mu.Unlock()

	closing := RealtimeMessage{
		EditorID:  editorID,
		EventType: RealtimeEventClosed,
		Version:   version,
		Timestamp: time.Now().UTC(),
	}
	for _, stream := range topic {
		select {
		case stream <- closing:
		default:
		}
		close(stream)
	}
}

// SubscriberCount returns the number of open streams for editorID.
func (d *RealtimeDispatcher) SubscriberCount(editorID string) int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.topics[editorID])
}

func (d *RealtimeDispatcher) drop(editorID string, serial uint64) {
	d.mu.Lock()
	defer d.mu.Unlock()
	topic, ok := d.topics[editorID]
	if !ok {
		return
	}
	delete(topic, serial)
	if len(topic) == 0 {
		delete(d.topics, editorID)
	}
}
