package scheduler

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c360/flowkit/errors"
	"github.com/c360/flowkit/pipeline"
	"github.com/c360/flowkit/process"
	"github.com/c360/flowkit/testutil"
)

// gatedSink refuses to consume until released, so a test can observe how
// far a producer gets ahead of a stalled consumer.
type gatedSink struct {
	*process.Base
	release chan struct{}
	mu      sync.Mutex
	values  []any
}

func newGatedSink(name, typ string) *gatedSink {
	g := &gatedSink{
		Base:    process.NewBase(name, "test-gated-sink"),
		release: make(chan struct{}),
	}
	g.DeclareInputPort("in", typ, true, "held until released")
	return g
}

func (g *gatedSink) Release() { close(g.release) }

func (g *gatedSink) Step() (process.StepStatus, error) {
	<-g.release
	in, err := g.SyncInputs()
	if err != nil {
		return process.StepOK, err
	}
	g.mu.Lock()
	g.values = append(g.values, in["in"].Value)
	g.mu.Unlock()
	return process.StepOK, nil
}

func (g *gatedSink) Count() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.values)
}

func TestThreaded_RunLinearToCompletion(t *testing.T) {
	p, snk := buildLinear(t, 5, 1)
	sched := NewThreaded(p)

	require.NoError(t, sched.Run(context.Background()))
	assert.Equal(t, StateStopped, sched.State())
	assert.Equal(t, []any{0, 1, 2, 3, 4}, snk.Values())

	// Delivery preserved stamp order through the bounded edges
	var last uint64
	for i, d := range snk.Received() {
		if i > 0 {
			assert.Greater(t, d.Stamp.Index, last)
		}
		last = d.Stamp.Index
	}
}

func TestThreaded_SynchronizedAdder(t *testing.T) {
	lhs := testutil.NewSource("lhs", "int", 4, nil)
	rhs := testutil.NewSource("rhs", "int", 4, func(i int) any { return 100 - i })
	p, snk := buildAdder(t, lhs, rhs)
	sched := NewThreaded(p)

	require.NoError(t, sched.Run(context.Background()))
	assert.Equal(t, []any{100, 100, 100, 100}, snk.Values())
}

func TestThreaded_UnevenSourcesUnwindAfterCompletion(t *testing.T) {
	// The short input closes after two datums while the long producer is
	// still pushing into a tiny edge. Completion of the adder must release
	// that producer, or its worker blocks forever and Run never returns.
	lhs := testutil.NewSource("lhs", "int", 2, nil)
	rhs := testutil.NewSource("rhs", "int", 100, nil)
	p, snk := buildAdderWithCapacity(t, lhs, rhs, 2)
	sched := NewThreaded(p)

	done := make(chan error, 1)
	go func() { done <- sched.Run(context.Background()) }()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("pipeline did not complete after the short input closed")
	}
	assert.Equal(t, StateStopped, sched.State())
	assert.Equal(t, []any{0, 2}, snk.Values())
	for _, proc := range p.Processes() {
		assert.Equal(t, process.StateComplete, proc.State(), proc.Name())
	}
}

func TestThreaded_ProducerLeadBoundedByCapacity(t *testing.T) {
	const capacity = 2
	src := testutil.NewSource("src", "int", 40, nil)
	snk := newGatedSink("snk", "int")
	p := pipeline.New("lead")
	require.NoError(t, p.AddProcess(src))
	require.NoError(t, p.AddProcess(snk))
	require.NoError(t, p.ConnectWithCapacity("src", "out", "snk", "in", capacity))
	_, err := p.Setup()
	require.NoError(t, err)
	for _, proc := range p.Processes() {
		require.NoError(t, proc.Configure(nil))
	}
	require.NoError(t, p.Initialize())

	sched := NewThreaded(p)
	done := make(chan error, 1)
	go func() { done <- sched.Run(context.Background()) }()

	// With the consumer held, the producer fills the edge and then blocks:
	// it can never run more than the edge capacity ahead.
	require.Eventually(t, func() bool { return src.Emitted() == capacity },
		2*time.Second, time.Millisecond)
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, capacity, src.Emitted())

	snk.Release()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("pipeline did not complete after the consumer was released")
	}
	assert.Equal(t, 40, snk.Count())
}

func TestThreaded_StallPolicyExceeded(t *testing.T) {
	lhs := testutil.NewSource("lhs", "int", 4, nil)
	rhs := newSkewedSource("rhs", 4)
	p, _ := buildAdder(t, lhs, rhs)
	sched := NewThreaded(p, WithThreadedStallPolicy(StallPolicy{
		MaxConsecutiveStalls: 3,
		StallDelay:           time.Millisecond,
	}))

	err := sched.Run(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, errors.ErrStampMismatch)
	assert.Equal(t, StateFailed, sched.State())
}

func TestThreaded_StopBeforeRun(t *testing.T) {
	p, snk := buildLinear(t, 1000, 1)
	sched := NewThreaded(p)
	sched.Stop()

	require.NoError(t, sched.Run(context.Background()))
	assert.Equal(t, StateStopped, sched.State())
	assert.Empty(t, snk.Values())
}

func TestThreaded_StopDuringRun(t *testing.T) {
	p, _ := buildLinear(t, 1<<30, 1)
	sched := NewThreaded(p)

	done := make(chan error, 1)
	go func() { done <- sched.Run(context.Background()) }()

	time.Sleep(20 * time.Millisecond)
	sched.Stop()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("scheduler did not unwind after stop")
	}
	assert.Equal(t, StateStopped, sched.State())
}

func TestThreaded_ContextCancellationUnwinds(t *testing.T) {
	p, _ := buildLinear(t, 1<<30, 1)
	sched := NewThreaded(p)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- sched.Run(ctx) }()

	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("scheduler did not unwind after cancellation")
	}
}

func TestThreaded_CompletionMarksProcessesComplete(t *testing.T) {
	p, _ := buildLinear(t, 2, 1)
	sched := NewThreaded(p)
	require.NoError(t, sched.Run(context.Background()))
	for _, proc := range p.Processes() {
		assert.Equal(t, process.StateComplete, proc.State(), proc.Name())
	}
}
