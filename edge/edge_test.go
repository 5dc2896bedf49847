package edge

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c360/flowkit/datum"
	"github.com/c360/flowkit/errors"
)

func stamp(i uint64) datum.Stamp {
	return datum.Stamp{Index: i, Increment: 1}
}

func TestCompatible(t *testing.T) {
	tests := []struct {
		name string
		a, b string
		want bool
	}{
		{"identical", "image", "image", true},
		{"different", "image", "audio", false},
		{"left wildcard", TypeAny, "image", true},
		{"right wildcard", "image", TypeAny, true},
		{"both wildcard", TypeAny, TypeAny, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Compatible(tt.a, tt.b))
		})
	}
}

func TestEdge_FIFOOrder(t *testing.T) {
	e := New("a.out->b.in", "int", 0, true)

	for i := 0; i < 5; i++ {
		require.NoError(t, e.Push(datum.New(stamp(uint64(i)), i)))
	}
	assert.Equal(t, 5, e.Len())

	for i := 0; i < 5; i++ {
		d, err := e.Pop()
		require.NoError(t, err)
		assert.Equal(t, i, d.Value)
		assert.Equal(t, uint64(i), d.Stamp.Index)
	}
}

func TestEdge_TryPushFullAtCapacity(t *testing.T) {
	e := New("a.out->b.in", "int", 2, true)

	require.NoError(t, e.TryPush(datum.New(stamp(0), 0)))
	require.NoError(t, e.TryPush(datum.New(stamp(1), 1)))
	assert.True(t, e.Full())

	err := e.TryPush(datum.New(stamp(2), 2))
	require.Error(t, err)
	assert.ErrorIs(t, err, errors.ErrEdgeFull)
	assert.True(t, errors.IsFlowControl(err))
	assert.Equal(t, 2, e.Len())
}

func TestEdge_PushBlocksUntilPop(t *testing.T) {
	e := New("a.out->b.in", "int", 1, true)
	require.NoError(t, e.Push(datum.New(stamp(0), 0)))

	pushed := make(chan error, 1)
	go func() {
		pushed <- e.Push(datum.New(stamp(1), 1))
	}()

	select {
	case <-pushed:
		t.Fatal("push returned while the edge was full")
	case <-time.After(50 * time.Millisecond):
	}

	d, err := e.Pop()
	require.NoError(t, err)
	assert.Equal(t, 0, d.Value)

	select {
	case err := <-pushed:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("push did not unblock after pop")
	}
	assert.Equal(t, 1, e.Len())
}

func TestEdge_TryPopEmpty(t *testing.T) {
	e := New("a.out->b.in", "int", 0, true)

	_, err := e.TryPop()
	require.Error(t, err)
	assert.ErrorIs(t, err, errors.ErrEdgeEmpty)
	assert.True(t, errors.IsFlowControl(err))
}

func TestEdge_CompleteClosesAndDrains(t *testing.T) {
	e := New("a.out->b.in", "int", 0, true)

	require.NoError(t, e.Push(datum.New(stamp(0), 0)))
	require.NoError(t, e.Push(datum.New(stamp(1), 1)))
	require.NoError(t, e.Push(datum.NewComplete(stamp(2))))
	assert.True(t, e.Closed())

	// Pushes after closure fail
	err := e.Push(datum.New(stamp(3), 3))
	assert.ErrorIs(t, err, errors.ErrEdgeClosed)
	err = e.TryPush(datum.New(stamp(3), 3))
	assert.ErrorIs(t, err, errors.ErrEdgeClosed)

	// Queued data drains, then the marker is yielded exactly once
	d, err := e.Pop()
	require.NoError(t, err)
	assert.Equal(t, 0, d.Value)
	d, err = e.Pop()
	require.NoError(t, err)
	assert.Equal(t, 1, d.Value)
	d, err = e.Pop()
	require.NoError(t, err)
	assert.True(t, d.IsComplete())

	_, err = e.Pop()
	assert.ErrorIs(t, err, errors.ErrEdgeClosed)
	_, err = e.TryPop()
	assert.ErrorIs(t, err, errors.ErrEdgeClosed)
}

func TestEdge_PeekDoesNotConsume(t *testing.T) {
	e := New("a.out->b.in", "int", 0, true)
	require.NoError(t, e.Push(datum.New(stamp(4), "x")))

	d, err := e.Peek()
	require.NoError(t, err)
	assert.Equal(t, "x", d.Value)
	assert.Equal(t, 1, e.Len())

	again, err := e.Peek()
	require.NoError(t, err)
	assert.Equal(t, d, again)
}

func TestEdge_PeekWaitBlocksForData(t *testing.T) {
	e := New("a.out->b.in", "int", 0, true)

	got := make(chan datum.Datum, 1)
	go func() {
		d, err := e.PeekWait()
		if err == nil {
			got <- d
		}
	}()

	time.Sleep(20 * time.Millisecond)
	require.NoError(t, e.Push(datum.New(stamp(0), 9)))

	select {
	case d := <-got:
		assert.Equal(t, 9, d.Value)
		assert.Equal(t, 1, e.Len())
	case <-time.After(time.Second):
		t.Fatal("PeekWait did not observe the push")
	}
}

func TestEdge_ShutdownWakesBlockedPeers(t *testing.T) {
	e := New("a.out->b.in", "int", 1, true)
	require.NoError(t, e.Push(datum.New(stamp(0), 0)))

	errs := make(chan error, 1)
	go func() {
		errs <- e.Push(datum.New(stamp(1), 1)) // blocks: full
	}()

	time.Sleep(20 * time.Millisecond)
	e.Shutdown()

	select {
	case err := <-errs:
		assert.ErrorIs(t, err, errors.ErrEdgeShutdown)
	case <-time.After(time.Second):
		t.Fatal("blocked push did not observe shutdown")
	}

	_, err := e.Pop()
	assert.ErrorIs(t, err, errors.ErrEdgeShutdown)
	assert.True(t, e.Closed())
}

func TestEdge_DownstreamDoneReleasesBlockedProducer(t *testing.T) {
	e := New("a.out->b.in", "int", 1, true)
	require.NoError(t, e.Push(datum.New(stamp(0), 0)))

	pushed := make(chan error, 1)
	go func() {
		pushed <- e.Push(datum.New(stamp(1), 1)) // blocks: full
	}()

	time.Sleep(20 * time.Millisecond)
	e.MarkDownstreamDone()

	select {
	case err := <-pushed:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("blocked push did not observe consumer completion")
	}
	assert.True(t, e.DownstreamDone())
	assert.Equal(t, 0, e.Len())
}

func TestEdge_DownstreamDoneDropsPushes(t *testing.T) {
	e := New("a.out->b.in", "int", 2, true)
	e.MarkDownstreamDone()

	// Data and markers alike vanish without queueing or closing the edge
	require.NoError(t, e.Push(datum.New(stamp(0), 0)))
	require.NoError(t, e.TryPush(datum.New(stamp(1), 1)))
	require.NoError(t, e.Push(datum.NewComplete(stamp(2))))
	assert.Equal(t, 0, e.Len())
	assert.False(t, e.Closed())
	assert.False(t, e.Full())

	e.Reset()
	assert.False(t, e.DownstreamDone())
	require.NoError(t, e.Push(datum.New(stamp(0), 0)))
	assert.Equal(t, 1, e.Len())
}

func TestEdge_ResetReopens(t *testing.T) {
	e := New("a.out->b.in", "int", 2, true)
	require.NoError(t, e.Push(datum.NewComplete(stamp(0))))
	e.Shutdown()

	e.Reset()
	assert.False(t, e.Closed())
	assert.Equal(t, 0, e.Len())
	require.NoError(t, e.Push(datum.New(stamp(0), 1)))
}

func TestEdge_UnboundedNeverFull(t *testing.T) {
	e := New("a.out->b.in", "int", 0, true)
	for i := 0; i < 100; i++ {
		require.NoError(t, e.TryPush(datum.New(stamp(uint64(i)), i)))
	}
	assert.False(t, e.Full())
	assert.Equal(t, 100, e.Len())
}

func TestEdgeName(t *testing.T) {
	assert.Equal(t, "a.out->b.in", EdgeName("a", "out", "b", "in"))
}
