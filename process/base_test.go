package process

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c360/flowkit/config"
	"github.com/c360/flowkit/datum"
	"github.com/c360/flowkit/edge"
	"github.com/c360/flowkit/errors"
)

func newTestBase(t *testing.T) *Base {
	t.Helper()
	b := NewBase("worker", "test-type")
	b.DeclareInputPort("in", "int", true, "values in")
	b.DeclareInputPort("aux", "int", false, "optional side input")
	b.DeclareOutputPort("out", "int", true, "values out")
	return b
}

func TestBase_Identity(t *testing.T) {
	b := NewBase("worker", "test-type", WithProperty(PropertyUnsynchronized))
	assert.Equal(t, "worker", b.Name())
	assert.Equal(t, "test-type", b.TypeName())
	assert.Equal(t, StateCreated, b.State())
	assert.True(t, b.HasProperty(PropertyUnsynchronized))
	assert.False(t, b.HasProperty(PropertyCluster))
}

func TestBase_PortDeclaration(t *testing.T) {
	b := newTestBase(t)

	ports := b.Ports()
	require.Len(t, ports, 3)
	assert.Equal(t, "in", ports[0].Name)
	assert.Equal(t, DirectionInput, ports[0].Direction)
	assert.True(t, ports[0].Required)
	assert.False(t, ports[1].Required)

	info, ok := b.Port(DirectionOutput, "out")
	require.True(t, ok)
	assert.Equal(t, "int", info.Type)

	_, ok = b.Port(DirectionInput, "out")
	assert.False(t, ok)

	// Redeclaring the same port is a no-op
	b.DeclareInputPort("in", "other", false, "changed")
	info, _ = b.Port(DirectionInput, "in")
	assert.Equal(t, "int", info.Type)
}

func TestBase_ConfigureValidatesDeclarations(t *testing.T) {
	b := NewBase("worker", "test-type")
	b.DeclareConfigKey("path", "", "input path", true)
	b.DeclareConfigKey("rate", "30", "frame rate", false)

	err := b.Configure(config.New())
	require.Error(t, err)
	assert.ErrorIs(t, err, errors.ErrMissingConfig)
	assert.Equal(t, StateCreated, b.State())

	cfg := config.New()
	cfg.Set("path", "/data")
	require.NoError(t, b.Configure(cfg))
	assert.Equal(t, StateConfigured, b.State())

	// Defaults were applied to the absorbed copy
	assert.Equal(t, "30", b.Config().GetDefault("rate", ""))
	// The caller's config was not mutated
	assert.False(t, cfg.Has("rate"))
}

func TestBase_ConfigureAccumulatesAllProblems(t *testing.T) {
	b := NewBase("worker", "test-type")
	b.DeclareConfigKey("path", "", "input path", true)
	b.DeclareConfigKey("name", "", "name", true)

	err := b.Configure(config.New())
	require.Error(t, err)
	assert.ErrorIs(t, err, errors.ErrMissingConfig)
	assert.Contains(t, err.Error(), "path")
	assert.Contains(t, err.Error(), "name")
}

func TestBase_ConfigureTwiceFails(t *testing.T) {
	b := NewBase("worker", "test-type")
	require.NoError(t, b.Configure(nil))

	err := b.Configure(nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, errors.ErrBadLifecycle)
}

func TestBase_LifecycleSequence(t *testing.T) {
	b := NewBase("worker", "test-type")
	require.NoError(t, b.Configure(nil))
	require.NoError(t, b.Initialize())
	assert.Equal(t, StateInitialized, b.State())

	require.NoError(t, b.SetState(StateStepping))
	require.NoError(t, b.SetState(StateIdle))
	require.NoError(t, b.SetState(StateComplete))

	err := b.SetState(StateStepping)
	require.Error(t, err)
	assert.ErrorIs(t, err, errors.ErrBadLifecycle)
	assert.True(t, errors.IsFatal(err))
}

func TestBase_InitializeBeforeConfigureFails(t *testing.T) {
	b := NewBase("worker", "test-type")
	err := b.Initialize()
	require.Error(t, err)
	assert.ErrorIs(t, err, errors.ErrBadLifecycle)
}

func TestBase_ResetRestampsAndReturnsToInitialized(t *testing.T) {
	b := NewBase("worker", "test-type")
	require.NoError(t, b.Configure(nil))
	require.NoError(t, b.Initialize())

	b.AdvanceStamp()
	b.AdvanceStamp()
	assert.Equal(t, uint64(2), b.OutputStamp().Index)

	require.NoError(t, b.SetState(StateComplete))
	require.NoError(t, b.Reset())
	assert.Equal(t, StateInitialized, b.State())
	assert.Equal(t, uint64(0), b.OutputStamp().Index)
}

func TestBase_BindInputSingleEdgeOnly(t *testing.T) {
	b := newTestBase(t)
	e1 := edge.New("x", "int", 0, true)
	e2 := edge.New("y", "int", 0, true)

	require.NoError(t, b.BindInput("in", e1))

	err := b.BindInput("in", e2)
	require.Error(t, err)
	assert.ErrorIs(t, err, errors.ErrPortConnected)

	got, ok := b.InputEdge("in")
	require.True(t, ok)
	assert.Same(t, e1, got)
}

func TestBase_BindInputUnknownPortFails(t *testing.T) {
	b := newTestBase(t)
	err := b.BindInput("nope", edge.New("x", "int", 0, true))
	require.Error(t, err)
	assert.ErrorIs(t, err, errors.ErrNoSuchPort)
}

func TestBase_BindOutputFansOut(t *testing.T) {
	b := newTestBase(t)
	e1 := edge.New("x", "int", 0, true)
	e2 := edge.New("y", "int", 0, true)

	require.NoError(t, b.BindOutput("out", e1))
	require.NoError(t, b.BindOutput("out", e2))
	assert.Len(t, b.OutputEdges("out"), 2)
}

func TestBase_PushToPortDuplicatesAcrossFanOut(t *testing.T) {
	b := newTestBase(t)
	e1 := edge.New("x", "int", 0, true)
	e2 := edge.New("y", "int", 0, true)
	require.NoError(t, b.BindOutput("out", e1))
	require.NoError(t, b.BindOutput("out", e2))

	d := datum.New(datum.Stamp{Index: 1}, 7)
	require.NoError(t, b.PushToPort("out", d))

	assert.Equal(t, 1, e1.Len())
	assert.Equal(t, 1, e2.Len())
}

func TestBase_PushToPortUnconnectedIsNoOp(t *testing.T) {
	b := newTestBase(t)
	assert.NoError(t, b.PushToPort("out", datum.New(datum.Stamp{}, 1)))
}

func TestBase_PushToPortCooperativeFull(t *testing.T) {
	b := newTestBase(t)
	e := edge.New("x", "int", 1, true)
	require.NoError(t, b.BindOutput("out", e))
	b.SetBlockingStepMode(false)

	require.NoError(t, b.PushToPort("out", datum.New(datum.Stamp{Index: 0}, 0)))
	err := b.PushToPort("out", datum.New(datum.Stamp{Index: 1}, 1))
	require.Error(t, err)
	assert.ErrorIs(t, err, errors.ErrEdgeFull)
}

func TestBase_ConnectedPortsInDeclarationOrder(t *testing.T) {
	b := newTestBase(t)
	require.NoError(t, b.BindInput("aux", edge.New("a", "int", 0, false)))
	require.NoError(t, b.BindInput("in", edge.New("b", "int", 0, true)))

	assert.Equal(t, []string{"in", "aux"}, b.ConnectedInputs())
	assert.Empty(t, b.ConnectedOutputs())
}

func TestBase_MarkCompletePushesMarkerAndCompletes(t *testing.T) {
	b := newTestBase(t)
	e := edge.New("x", "int", 0, true)
	require.NoError(t, b.BindOutput("out", e))
	require.NoError(t, b.Configure(nil))
	require.NoError(t, b.Initialize())

	require.NoError(t, b.MarkComplete())
	assert.Equal(t, StateComplete, b.State())

	d, err := e.Pop()
	require.NoError(t, err)
	assert.True(t, d.IsComplete())
	assert.True(t, e.Closed())
}

func TestBase_MarkCompleteReleasesInputEdges(t *testing.T) {
	b := newTestBase(t)
	in := edge.New("in", "int", 1, true)
	aux := edge.New("aux", "int", 1, false)
	require.NoError(t, b.BindInput("in", in))
	require.NoError(t, b.BindInput("aux", aux))
	require.NoError(t, b.Configure(nil))
	require.NoError(t, b.Initialize())

	require.NoError(t, in.Push(datum.New(datum.Stamp{Index: 1, Increment: 1}, 0)))
	require.NoError(t, b.MarkComplete())

	// Upstream producers must not block on a consumer that completed:
	// both input edges now drop pushes instead of enforcing capacity.
	assert.True(t, in.DownstreamDone())
	assert.True(t, aux.DownstreamDone())
	assert.Equal(t, 0, in.Len())
	require.NoError(t, in.Push(datum.New(datum.Stamp{Index: 2, Increment: 1}, 1)))
	require.NoError(t, in.Push(datum.New(datum.Stamp{Index: 3, Increment: 1}, 2)))
	assert.Equal(t, 0, in.Len())
}

func TestBase_StepGuard(t *testing.T) {
	b := NewBase("worker", "test-type")
	status, err := b.Step()
	assert.Equal(t, StepError, status)
	require.Error(t, err)
	assert.True(t, errors.IsFatal(err))
}
