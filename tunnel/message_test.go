package tunnel

import (
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMarkSentFiresOnce(t *testing.T) {
	m := NewMessage("hello", LocalMarker, PendingSend)
	assert.Equal(t, PendingSend, m.State())

	assert.True(t, m.MarkSent())
	assert.Equal(t, Delivered, m.State())
	assert.False(t, m.MarkSent())
	assert.False(t, m.MarkSent())
}

func TestMarkSentOnDeliveredMessage(t *testing.T) {
	m := NewMessage("hi", PeerMarker, Delivered)
	assert.False(t, m.MarkSent())
	assert.Equal(t, "hi", m.Content())
	assert.Equal(t, PeerMarker, m.Owner())
}

func TestMarkSentConcurrent(t *testing.T) {
	m := NewMessage("race", LocalMarker, PendingSend)
	var fired atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if m.MarkSent() {
				fired.Add(1)
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(1), fired.Load())
}
