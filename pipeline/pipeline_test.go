package pipeline

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c360/flowkit/config"
	"github.com/c360/flowkit/datum"
	"github.com/c360/flowkit/edge"
	"github.com/c360/flowkit/errors"
	"github.com/c360/flowkit/process"
	"github.com/c360/flowkit/testutil"
)

func linearPipeline(t *testing.T) (*Pipeline, *testutil.Source, *testutil.Sink) {
	t.Helper()
	p := New("linear")
	src := testutil.NewSource("src", "int", 3, nil)
	snk := testutil.NewSink("snk", "int")
	require.NoError(t, p.AddProcess(src))
	require.NoError(t, p.AddProcess(snk))
	require.NoError(t, p.Connect("src", "out", "snk", "in"))
	return p, src, snk
}

func TestPipeline_AddProcess(t *testing.T) {
	p := New("test")
	require.NoError(t, p.AddProcess(testutil.NewSource("src", "int", 1, nil)))

	err := p.AddProcess(testutil.NewSource("src", "int", 1, nil))
	require.Error(t, err)
	assert.ErrorIs(t, err, errors.ErrDuplicateName)

	assert.Error(t, p.AddProcess(nil))

	got, ok := p.Process("src")
	require.True(t, ok)
	assert.Equal(t, "src", got.Name())
	assert.Len(t, p.Processes(), 1)
}

func TestPipeline_ConnectValidation(t *testing.T) {
	build := func(t *testing.T) *Pipeline {
		t.Helper()
		p := New("test")
		require.NoError(t, p.AddProcess(testutil.NewSource("src", "int", 1, nil)))
		require.NoError(t, p.AddProcess(testutil.NewSink("snk", "int")))
		return p
	}

	tests := []struct {
		name    string
		connect [4]string
		wantErr error
	}{
		{"unknown upstream", [4]string{"ghost", "out", "snk", "in"}, errors.ErrNoSuchProcess},
		{"unknown downstream", [4]string{"src", "out", "ghost", "in"}, errors.ErrNoSuchProcess},
		{"unknown upstream port", [4]string{"src", "nope", "snk", "in"}, errors.ErrNoSuchPort},
		{"unknown downstream port", [4]string{"src", "out", "snk", "nope"}, errors.ErrNoSuchPort},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := build(t)
			err := p.Connect(tt.connect[0], tt.connect[1], tt.connect[2], tt.connect[3])
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.wantErr)
			// A failed connect never mutates the graph
			assert.Empty(t, p.Connections())
		})
	}
}

func TestPipeline_ConnectTypeMismatch(t *testing.T) {
	p := New("test")
	require.NoError(t, p.AddProcess(testutil.NewSource("src", "int", 1, nil)))
	require.NoError(t, p.AddProcess(testutil.NewSink("snk", "string")))

	err := p.Connect("src", "out", "snk", "in")
	require.Error(t, err)
	assert.ErrorIs(t, err, errors.ErrTypeMismatch)
	assert.Empty(t, p.Connections())
}

func TestPipeline_ConnectWildcardResolvesConcreteType(t *testing.T) {
	p := New("test")
	require.NoError(t, p.AddProcess(testutil.NewSource("src", "int", 1, nil)))
	require.NoError(t, p.AddProcess(testutil.NewSink("snk", edge.TypeAny)))

	require.NoError(t, p.Connect("src", "out", "snk", "in"))
	conns := p.Connections()
	require.Len(t, conns, 1)
	assert.Equal(t, "int", conns[0].Edge.Type())
}

func TestPipeline_ConnectInputAlreadyConnected(t *testing.T) {
	p := New("test")
	require.NoError(t, p.AddProcess(testutil.NewSource("a", "int", 1, nil)))
	require.NoError(t, p.AddProcess(testutil.NewSource("b", "int", 1, nil)))
	require.NoError(t, p.AddProcess(testutil.NewSink("snk", "int")))

	require.NoError(t, p.Connect("a", "out", "snk", "in"))
	err := p.Connect("b", "out", "snk", "in")
	require.Error(t, err)
	assert.ErrorIs(t, err, errors.ErrPortConnected)
	assert.Len(t, p.Connections(), 1)
}

func TestPipeline_OutputFanOut(t *testing.T) {
	p := New("test")
	require.NoError(t, p.AddProcess(testutil.NewSource("src", "int", 1, nil)))
	require.NoError(t, p.AddProcess(testutil.NewSink("s1", "int")))
	require.NoError(t, p.AddProcess(testutil.NewSink("s2", "int")))

	require.NoError(t, p.Connect("src", "out", "s1", "in"))
	require.NoError(t, p.Connect("src", "out", "s2", "in"))
	assert.Len(t, p.Connections(), 2)
}

func TestPipeline_ConnectWithCapacity(t *testing.T) {
	p := New("test", WithDefaultEdgeCapacity(4))
	require.NoError(t, p.AddProcess(testutil.NewSource("src", "int", 1, nil)))
	require.NoError(t, p.AddProcess(testutil.NewSink("snk", "int")))

	require.NoError(t, p.ConnectWithCapacity("src", "out", "snk", "in", 2))
	assert.Equal(t, 2, p.Connections()[0].Edge.Cap())
}

func TestPipeline_ConfigOverridesDefaultCapacity(t *testing.T) {
	cfg := config.New()
	cfg.Set("edge.capacity", "3")
	p := New("test", WithConfig(cfg))

	require.NoError(t, p.AddProcess(testutil.NewSource("src", "int", 1, nil)))
	require.NoError(t, p.AddProcess(testutil.NewSink("snk", "int")))
	require.NoError(t, p.Connect("src", "out", "snk", "in"))
	assert.Equal(t, 3, p.Connections()[0].Edge.Cap())
}

func TestPipeline_SetupFreezesTopology(t *testing.T) {
	p, _, _ := linearPipeline(t)

	result, err := p.Setup()
	require.NoError(t, err)
	assert.Equal(t, "valid", result.Status)

	// All mutation is rejected once the topology is frozen
	err = p.AddProcess(testutil.NewSink("late", "int"))
	assert.ErrorIs(t, err, errors.ErrTopologyFrozen)
	err = p.Connect("src", "out", "late", "in")
	assert.ErrorIs(t, err, errors.ErrTopologyFrozen)
	_, err = p.Setup()
	assert.ErrorIs(t, err, errors.ErrTopologyFrozen)
}

func TestPipeline_SetupDanglingRequiredPort(t *testing.T) {
	p := New("test")
	require.NoError(t, p.AddProcess(testutil.NewSource("src", "int", 1, nil)))
	require.NoError(t, p.AddProcess(testutil.NewSink("snk", "int")))
	// src.out and snk.in both left unconnected

	result, err := p.Setup()
	require.Error(t, err)
	assert.ErrorIs(t, err, errors.ErrTopology)
	require.NotNil(t, result)
	assert.Equal(t, "errors", result.Status)
	assert.Len(t, result.Errors, 2)
	assert.Equal(t, "dangling_port", result.Errors[0].Type)

	// Failed setup leaves the topology open
	require.NoError(t, p.Connect("src", "out", "snk", "in"))
	_, err = p.Setup()
	require.NoError(t, err)
}

func TestPipeline_SetupUnreachableProcessWarns(t *testing.T) {
	p, _, _ := linearPipeline(t)
	loner := process.NewBase("loner", "test-loner")
	require.NoError(t, p.AddProcess(loner))

	result, err := p.Setup()
	require.NoError(t, err)
	assert.Equal(t, "warnings", result.Status)
	require.Len(t, result.Warnings, 1)
	assert.Equal(t, "unreachable_process", result.Warnings[0].Type)
	assert.Equal(t, "loner", result.Warnings[0].Process)
}

func TestPipeline_SetupRejectsCycleOfUnsafeProcesses(t *testing.T) {
	p := New("test")
	require.NoError(t, p.AddProcess(testutil.NewPassThrough("a", "int")))
	require.NoError(t, p.AddProcess(testutil.NewPassThrough("b", "int")))
	require.NoError(t, p.Connect("a", "out", "b", "in"))
	require.NoError(t, p.Connect("b", "out", "a", "in"))

	result, err := p.Setup()
	require.Error(t, err)
	assert.ErrorIs(t, err, errors.ErrTopology)
	require.Len(t, result.Errors, 2)
	assert.Equal(t, "illegal_cycle", result.Errors[0].Type)
}

func newCycleSafePass(name string) *testutil.PassThrough {
	p := testutil.NewPassThrough(name, "int")
	p.SetProperty(process.PropertyCycleSafe)
	return p
}

func TestPipeline_SetupAllowsCycleOfCycleSafeProcesses(t *testing.T) {
	p := New("test")
	require.NoError(t, p.AddProcess(newCycleSafePass("a")))
	require.NoError(t, p.AddProcess(newCycleSafePass("b")))
	require.NoError(t, p.Connect("a", "out", "b", "in"))
	require.NoError(t, p.Connect("b", "out", "a", "in"))

	result, err := p.Setup()
	require.NoError(t, err)
	assert.Empty(t, result.Errors)
}

func TestPipeline_ExecutionOrderProducersFirst(t *testing.T) {
	p := New("test")
	// Added in reverse: consumers before producers
	snk := testutil.NewSink("snk", "int")
	mid := testutil.NewPassThrough("mid", "int")
	src := testutil.NewSource("src", "int", 1, nil)
	require.NoError(t, p.AddProcess(snk))
	require.NoError(t, p.AddProcess(mid))
	require.NoError(t, p.AddProcess(src))
	require.NoError(t, p.Connect("src", "out", "mid", "in"))
	require.NoError(t, p.Connect("mid", "out", "snk", "in"))

	assert.Empty(t, p.ExecutionOrder())

	_, err := p.Setup()
	require.NoError(t, err)

	var names []string
	for _, proc := range p.ExecutionOrder() {
		names = append(names, proc.Name())
	}
	assert.Equal(t, []string{"src", "mid", "snk"}, names)
}

func TestPipeline_InitializeRequiresSetup(t *testing.T) {
	p, _, _ := linearPipeline(t)
	err := p.Initialize()
	require.Error(t, err)
	assert.ErrorIs(t, err, errors.ErrTopology)

	for _, proc := range p.Processes() {
		require.NoError(t, proc.Configure(nil))
	}
	_, err = p.Setup()
	require.NoError(t, err)
	require.NoError(t, p.Initialize())
	for _, proc := range p.Processes() {
		assert.Equal(t, process.StateInitialized, proc.State())
	}
}

func TestPipeline_TerminalProcesses(t *testing.T) {
	p, _, _ := linearPipeline(t)
	assert.Equal(t, []string{"snk"}, p.TerminalProcesses())
}

func TestPipeline_AttachExternalInput(t *testing.T) {
	p := New("inner")
	require.NoError(t, p.AddProcess(testutil.NewSink("snk", "int")))

	relay := edge.New("relay", "int", 4, true)
	require.NoError(t, p.AttachExternalInput("snk", "in", relay))

	// The port counts as connected for validation
	result, err := p.Setup()
	require.NoError(t, err)
	assert.Empty(t, result.Errors)

	// The relay is reachable for shutdown
	assert.Contains(t, p.Edges(), relay)

	err = p.AttachExternalInput("snk", "in", edge.New("dup", "int", 4, true))
	assert.ErrorIs(t, err, errors.ErrTopologyFrozen)
}

func TestPipeline_AttachExternalInputValidation(t *testing.T) {
	p := New("inner")
	require.NoError(t, p.AddProcess(testutil.NewSink("snk", "int")))
	relay := edge.New("relay", "int", 4, true)

	err := p.AttachExternalInput("ghost", "in", relay)
	assert.ErrorIs(t, err, errors.ErrNoSuchProcess)
	err = p.AttachExternalInput("snk", "nope", relay)
	assert.ErrorIs(t, err, errors.ErrNoSuchPort)

	require.NoError(t, p.AttachExternalInput("snk", "in", relay))
	err = p.AttachExternalInput("snk", "in", edge.New("dup", "int", 4, true))
	assert.ErrorIs(t, err, errors.ErrPortConnected)
}

func TestPipeline_AttachExternalOutput(t *testing.T) {
	p := New("inner")
	require.NoError(t, p.AddProcess(testutil.NewSource("src", "int", 1, nil)))

	relay := edge.New("relay", "int", 4, true)
	require.NoError(t, p.AttachExternalOutput("src", "out", relay))

	result, err := p.Setup()
	require.NoError(t, err)
	assert.Empty(t, result.Errors)
	assert.Contains(t, p.Edges(), relay)
}

func TestPipeline_ShutdownEdges(t *testing.T) {
	p, _, _ := linearPipeline(t)
	p.ShutdownEdges()
	for _, e := range p.Edges() {
		err := e.Push(datum.New(datum.Stamp{}, 1))
		assert.ErrorIs(t, err, errors.ErrEdgeShutdown)
	}
}
