package devserver

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeSession builds a session without a connection; only the outbound
// queue matters for hub semantics.
func fakeSession(buffer int) *session {
	return &session{
		id:   uuid.New(),
		send: make(chan []byte, buffer),
		done: make(chan struct{}),
	}
}

func TestHub_AddRemoveCount(t *testing.T) {
	h := NewHub(nil)
	require.Equal(t, 0, h.count())

	s1 := fakeSession(4)
	s2 := fakeSession(4)
	require.True(t, h.add(s1))
	require.True(t, h.add(s2))
	assert.Equal(t, 2, h.count())

	h.remove(s1.id)
	assert.Equal(t, 1, h.count())

	// Removing an unknown ID is a no-op.
	h.remove(uuid.New())
	assert.Equal(t, 1, h.count())
}

func TestHub_BroadcastReachesAllSessions(t *testing.T) {
	h := NewHub(nil)
	s1 := fakeSession(4)
	s2 := fakeSession(4)
	require.True(t, h.add(s1))
	require.True(t, h.add(s2))

	h.broadcast([]byte(`{"type":"full-reload"}`))

	require.Len(t, s1.send, 1)
	require.Len(t, s2.send, 1)
	assert.Equal(t, `{"type":"full-reload"}`, string(<-s1.send))
}

func TestHub_BroadcastDropsSlowClient(t *testing.T) {
	h := NewHub(nil)
	slow := fakeSession(1)
	fast := fakeSession(4)
	require.True(t, h.add(slow))
	require.True(t, h.add(fast))

	// The slow client's queue holds one frame; the second broadcast cannot
	// be enqueued and drops the session.
	h.broadcast([]byte(`1`))
	h.broadcast([]byte(`2`))

	assert.Equal(t, 1, h.count())
	assert.Len(t, fast.send, 2)

	// The dropped session was closed.
	select {
	case <-slow.done:
	default:
		t.Fatal("slow session was not closed")
	}
}

func TestHub_ShutdownClosesSessionsAndRejectsAdds(t *testing.T) {
	h := NewHub(nil)
	s := fakeSession(4)
	require.True(t, h.add(s))

	h.shutdown()

	select {
	case <-s.done:
	default:
		t.Fatal("session was not closed on shutdown")
	}

	assert.False(t, h.add(fakeSession(4)))
	assert.Equal(t, 0, h.count())

	// Broadcast after shutdown is a no-op.
	h.broadcast([]byte(`1`))
	assert.Len(t, s.send, 0)
}
