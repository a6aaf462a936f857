package realtime_test

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/notifyhub/pkg/realtime"
)

func TestRegistry_Register(t *testing.T) {
	t.Parallel()

	reg := realtime.NewRegistry[string](4)
	defer reg.Close()

	conn := reg.Register()
	require.NotNil(t, conn)
	assert.NotEmpty(t, conn.ID())
	assert.False(t, conn.CreatedAt().IsZero())
	assert.Equal(t, 1, reg.ConnectionCount())
	assert.Empty(t, reg.Rooms())
}

func TestRegistry_Join(t *testing.T) {
	t.Parallel()

	t.Run("adds connection to room", func(t *testing.T) {
		t.Parallel()

		reg := realtime.NewRegistry[string](4)
		defer reg.Close()

		conn := reg.Register()
		reg.Join(conn.ID(), "user-1")

		members := reg.MembersOf("user-1")
		require.Len(t, members, 1)
		assert.Equal(t, conn.ID(), members[0].ID())
		assert.Equal(t, []string{"user-1"}, reg.Rooms())
	})

	t.Run("idempotent", func(t *testing.T) {
		t.Parallel()

		reg := realtime.NewRegistry[string](4)
		defer reg.Close()

		conn := reg.Register()
		reg.Join(conn.ID(), "user-1")
		reg.Join(conn.ID(), "user-1")

		assert.Len(t, reg.MembersOf("user-1"), 1)
	})

	t.Run("multiple rooms per connection", func(t *testing.T) {
		t.Parallel()

		reg := realtime.NewRegistry[string](4)
		defer reg.Close()

		conn := reg.Register()
		reg.Join(conn.ID(), "user-1")
		reg.Join(conn.ID(), "user-2")

		assert.Len(t, reg.MembersOf("user-1"), 1)
		assert.Len(t, reg.MembersOf("user-2"), 1)
		assert.ElementsMatch(t, []string{"user-1", "user-2"}, reg.Rooms())
	})

	t.Run("silent on unknown connection", func(t *testing.T) {
		t.Parallel()

		reg := realtime.NewRegistry[string](4)
		defer reg.Close()

		assert.NotPanics(t, func() {
			reg.Join("no-such-connection", "user-1")
		})
		assert.Empty(t, reg.MembersOf("user-1"))
	})
}

func TestRegistry_Unregister(t *testing.T) {
	t.Parallel()

	t.Run("removes connection from every room", func(t *testing.T) {
		t.Parallel()

		reg := realtime.NewRegistry[string](4)
		defer reg.Close()

		conn := reg.Register()
		reg.Join(conn.ID(), "user-1")
		reg.Join(conn.ID(), "user-2")

		reg.Unregister(conn.ID())

		assert.Empty(t, reg.MembersOf("user-1"))
		assert.Empty(t, reg.MembersOf("user-2"))
		assert.Zero(t, reg.ConnectionCount())
		assert.Empty(t, reg.Rooms())
	})

	t.Run("closes the event channel", func(t *testing.T) {
		t.Parallel()

		reg := realtime.NewRegistry[string](4)
		defer reg.Close()

		conn := reg.Register()
		reg.Unregister(conn.ID())

		_, open := <-conn.Events()
		assert.False(t, open)
	})

	t.Run("unknown connection is a no-op", func(t *testing.T) {
		t.Parallel()

		reg := realtime.NewRegistry[string](4)
		defer reg.Close()

		assert.NotPanics(t, func() {
			reg.Unregister("no-such-connection")
		})
	})

	t.Run("other members keep the room alive", func(t *testing.T) {
		t.Parallel()

		reg := realtime.NewRegistry[string](4)
		defer reg.Close()

		first := reg.Register()
		second := reg.Register()
		reg.Join(first.ID(), "user-1")
		reg.Join(second.ID(), "user-1")

		reg.Unregister(first.ID())

		members := reg.MembersOf("user-1")
		require.Len(t, members, 1)
		assert.Equal(t, second.ID(), members[0].ID())
	})
}

func TestRegistry_Close(t *testing.T) {
	t.Parallel()

	reg := realtime.NewRegistry[string](4)

	conn := reg.Register()
	reg.Join(conn.ID(), "user-1")

	reg.Close()

	assert.Zero(t, reg.ConnectionCount())
	_, open := <-conn.Events()
	assert.False(t, open)

	// Registration after Close yields a closed connection.
	late := reg.Register()
	_, open = <-late.Events()
	assert.False(t, open)
}

func TestRegistry_ConcurrentChurn(t *testing.T) {
	t.Parallel()

	reg := realtime.NewRegistry[int](8)
	defer reg.Close()

	const workers = 32
	var wg sync.WaitGroup
	wg.Add(workers)
	for range workers {
		go func() {
			defer wg.Done()
			conn := reg.Register()
			reg.Join(conn.ID(), "shared")
			reg.Join(conn.ID(), conn.ID())
			reg.Unregister(conn.ID())
		}()
	}
	wg.Wait()

	assert.Zero(t, reg.ConnectionCount())
	assert.Empty(t, reg.MembersOf("shared"))
}
