package tunnel

import "sync/atomic"

// MessageState tells whether a Message still has to be forwarded to the peer.
type MessageState int32

const (
	// PendingSend is the state of a locally authored message that was not written to the peer yet.
	PendingSend MessageState = iota
	// Delivered is the state of a message that needs no further forwarding.
	Delivered
)

func (s MessageState) String() string {
	switch s {
	case PendingSend:
		return "pending"
	case Delivered:
		return "delivered"
	default:
		return "unknown"
	}
}

// Message is a single line of chat text tagged with the label of its author.
type Message struct {
	content string
	owner   string
	state   atomic.Int32
}

// NewMessage creates a Message in the given initial state.
func NewMessage(content string, owner string, state MessageState) *Message {
	m := &Message{content: content, owner: owner}
	m.state.Store(int32(state))
	return m
}

// Content is the text of the message.
func (m *Message) Content() string {
	return m.content
}

// Owner is the label of the author, PeerMarker or LocalMarker.
func (m *Message) Owner() string {
	return m.owner
}

// State reports whether the message still waits to be sent.
func (m *Message) State() MessageState {
	return MessageState(m.state.Load())
}

// MarkSent moves the message from PendingSend to Delivered. It returns true only
// for the call that performed the transition, so callers can use it to forward
// each message exactly once.
func (m *Message) MarkSent() bool {
	return m.state.CompareAndSwap(int32(PendingSend), int32(Delivered))
}
