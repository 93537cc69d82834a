package tunnel

import (
	"sync"

	"golang.org/x/exp/slices"
)

// MessageQueue is the transcript and send queue of a session. It keeps at most
// capacity messages and drops the oldest one when a new message would exceed
// that bound. Messages are visited newest first.
type MessageQueue struct {
	mu sync.RWMutex
	// stored oldest first so Enqueue is an append
	messages []*Message
	capacity int
	version  uint64
}

// NewMessageQueue creates an empty queue. A capacity below one is treated as one.
func NewMessageQueue(capacity int) *MessageQueue {
	return &MessageQueue{capacity: max(capacity, 1)}
}

// Enqueue adds a new message at the head of the queue and evicts from the tail
// until the queue fits its capacity again.
func (q *MessageQueue) Enqueue(content string, owner string, state MessageState) *Message {
	m := NewMessage(content, owner, state)
	q.mu.Lock()
	defer q.mu.Unlock()
	q.messages = append(q.messages, m)
	q.evict()
	q.version++
	return m
}

// SetCapacity updates the number of retained messages. Shrinking does not drop
// anything until the next Enqueue.
func (q *MessageQueue) SetCapacity(capacity int) {
	q.mu.Lock()
	q.capacity = max(capacity, 1)
	q.mu.Unlock()
}

// Capacity is the most messages the queue keeps.
func (q *MessageQueue) Capacity() int {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return q.capacity
}

func (q *MessageQueue) evict() {
	if excess := len(q.messages) - q.capacity; excess > 0 {
		for i := 0; i < excess; i++ {
			q.messages[i] = nil
		}
		q.messages = slices.Delete(q.messages, 0, excess)
	}
}

// VisitInOrder calls fn for every message from the most recent to the oldest.
// The visit stops at the first error, which is returned.
func (q *MessageQueue) VisitInOrder(fn func(*Message) error) error {
	q.mu.RLock()
	defer q.mu.RUnlock()
	for i := len(q.messages) - 1; i >= 0; i-- {
		if err := fn(q.messages[i]); err != nil {
			return err
		}
	}
	return nil
}

// Len is the number of messages currently held.
func (q *MessageQueue) Len() int {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return len(q.messages)
}

// Messages returns a snapshot of the queue, most recent first.
func (q *MessageQueue) Messages() []*Message {
	q.mu.RLock()
	snapshot := slices.Clone(q.messages)
	q.mu.RUnlock()
	for i, j := 0, len(snapshot)-1; i < j; i, j = i+1, j-1 {
		snapshot[i], snapshot[j] = snapshot[j], snapshot[i]
	}
	return snapshot
}

// Version changes every time a message is enqueued.
func (q *MessageQueue) Version() uint64 {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return q.version
}
