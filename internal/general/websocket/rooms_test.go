package websocket_test

import (
	"errors"
	"sync"
	"testing"

	"delivery-track/internal/domain/user"
	"delivery-track/internal/general/websocket"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSubscriber struct {
	id   string
	role user.Role
	fail bool

	mu       sync.Mutex
	received [][]byte
}

func (f *fakeSubscriber) ID() string      { return f.id }
func (f *fakeSubscriber) Role() user.Role { return f.role }

func (f *fakeSubscriber) Send(payload []byte) error {
	if f.fail {
		return errors.New("broken pipe")
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.received = append(f.received, payload)
	return nil
}

func (f *fakeSubscriber) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.received)
}

func TestRooms_BroadcastExcludesSender(t *testing.T) {
	rooms := websocket.NewRooms()
	driver := &fakeSubscriber{id: "conn-driver", role: user.RoleDriver}
	receiver := &fakeSubscriber{id: "conn-receiver", role: user.RoleReceiver}

	rooms.Join("delivery-1", driver)
	rooms.Join("delivery-1", receiver)
	require.Equal(t, 2, rooms.Members("delivery-1"))

	rooms.Broadcast("delivery-1", []byte(`{"type":"driver_location_update"}`), driver.ID())

	assert.Zero(t, driver.count())
	assert.Equal(t, 1, receiver.count())
}

func TestRooms_BroadcastWholeRoom(t *testing.T) {
	rooms := websocket.NewRooms()
	a := &fakeSubscriber{id: "a"}
	b := &fakeSubscriber{id: "b"}
	rooms.Join("delivery-1", a)
	rooms.Join("delivery-1", b)

	rooms.Broadcast("delivery-1", []byte(`{"type":"delivery_status_update"}`), "")

	assert.Equal(t, 1, a.count())
	assert.Equal(t, 1, b.count())
}

func TestRooms_IndependentRooms(t *testing.T) {
	rooms := websocket.NewRooms()
	a := &fakeSubscriber{id: "a"}
	b := &fakeSubscriber{id: "b"}
	rooms.Join("delivery-1", a)
	rooms.Join("delivery-2", b)

	rooms.Broadcast("delivery-1", []byte(`x`), "")

	assert.Equal(t, 1, a.count())
	assert.Zero(t, b.count(), "other deliveries must not see the frame")
}

func TestRooms_Leave(t *testing.T) {
	rooms := websocket.NewRooms()
	a := &fakeSubscriber{id: "a"}
	rooms.Join("delivery-1", a)

	assert.True(t, rooms.Leave("delivery-1", "a"))
	assert.False(t, rooms.Leave("delivery-1", "a"), "second leave finds nothing")
	assert.Zero(t, rooms.Members("delivery-1"))

	// broadcasting into an empty/absent room is a no-op
	rooms.Broadcast("delivery-1", []byte(`x`), "")
	assert.Zero(t, a.count())
}

func TestRooms_FailedSendDropsMember(t *testing.T) {
	rooms := websocket.NewRooms()
	dead := &fakeSubscriber{id: "dead", fail: true}
	live := &fakeSubscriber{id: "live"}
	rooms.Join("delivery-1", dead)
	rooms.Join("delivery-1", live)

	rooms.Broadcast("delivery-1", []byte(`x`), "")

	assert.Equal(t, 1, rooms.Members("delivery-1"))
	assert.Equal(t, 1, live.count())
}

func TestRooms_ConcurrentJoinBroadcast(t *testing.T) {
	rooms := websocket.NewRooms()
	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			sub := &fakeSubscriber{id: string(rune('a' + n%26))}
			rooms.Join("delivery-1", sub)
			rooms.Broadcast("delivery-1", []byte(`x`), sub.ID())
		}(i)
	}
	wg.Wait()
	assert.Positive(t, rooms.Members("delivery-1"))
}

// A Leave that empties the room can drop it from the registry while a Join is
// between fetching the room and inserting into it. The joiner must still end
// up in the registered room, reachable by Broadcast.
func TestRooms_JoinNotLostToConcurrentLeave(t *testing.T) {
	rooms := websocket.NewRooms()
	for i := 0; i < 2000; i++ {
		churn := &fakeSubscriber{id: "churn"}
		rooms.Join("delivery-1", churn)

		done := make(chan struct{})
		go func() {
			rooms.Leave("delivery-1", "churn")
			close(done)
		}()

		stay := &fakeSubscriber{id: "stay"}
		rooms.Join("delivery-1", stay)
		<-done

		rooms.Broadcast("delivery-1", []byte(`x`), "")
		require.Equal(t, 1, stay.count(), "joiner stranded in an orphaned room")
		require.True(t, rooms.Leave("delivery-1", "stay"))
	}
}
