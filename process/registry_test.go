package process

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c360/flowkit/config"
	"github.com/c360/flowkit/errors"
)

func testRegistration(typeName string) *Registration {
	return &Registration{
		TypeName:    typeName,
		Description: "test process",
		Version:     "1.0.0",
		Factory: func(name string) (Process, error) {
			b := NewBase(name, typeName)
			b.DeclareConfigKey("rate", "30", "frame rate", false)
			return b, nil
		},
	}
}

func TestRegistry_CreateConfiguresInstance(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.RegisterFactory(testRegistration("frame-reader")))

	cfg := config.New()
	cfg.Set("rate", "60")
	p, err := r.Create("frame-reader", "reader1", cfg)
	require.NoError(t, err)

	assert.Equal(t, "reader1", p.Name())
	assert.Equal(t, "frame-reader", p.TypeName())
	assert.Equal(t, StateConfigured, p.State())
}

func TestRegistry_CreateUnknownType(t *testing.T) {
	r := NewRegistry()
	_, err := r.Create("nope", "x", nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, errors.ErrUnknownType)
}

func TestRegistry_CreateRequiresInstanceName(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.RegisterFactory(testRegistration("frame-reader")))
	_, err := r.Create("frame-reader", "", nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, errors.ErrBadConfiguration)
}

func TestRegistry_CreateSurfacesConfigureFailure(t *testing.T) {
	r := NewRegistry()
	reg := &Registration{
		TypeName: "strict",
		Factory: func(name string) (Process, error) {
			b := NewBase(name, "strict")
			b.DeclareConfigKey("path", "", "required path", true)
			return b, nil
		},
	}
	require.NoError(t, r.RegisterFactory(reg))

	_, err := r.Create("strict", "s1", config.New())
	require.Error(t, err)
	assert.ErrorIs(t, err, errors.ErrMissingConfig)
}

func TestRegistry_InstantiateSkipsConfigure(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.RegisterFactory(testRegistration("frame-reader")))

	p, err := r.Instantiate("frame-reader", "raw")
	require.NoError(t, err)
	assert.Equal(t, StateCreated, p.State())

	_, err = r.Instantiate("missing", "raw")
	assert.ErrorIs(t, err, errors.ErrUnknownType)
}

func TestRegistry_DuplicateRegistrationFails(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.RegisterFactory(testRegistration("frame-reader")))
	err := r.RegisterFactory(testRegistration("frame-reader"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already registered")
}

func TestRegistry_RejectsInvalidRegistrations(t *testing.T) {
	r := NewRegistry()
	assert.Error(t, r.RegisterFactory(nil))
	assert.Error(t, r.RegisterFactory(&Registration{TypeName: ""}))
	assert.Error(t, r.RegisterFactory(&Registration{TypeName: "no-factory"}))
}

func TestRegistry_TypesSorted(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.RegisterFactory(testRegistration("zeta")))
	require.NoError(t, r.RegisterFactory(testRegistration("alpha")))

	assert.Equal(t, []string{"alpha", "zeta"}, r.Types())

	reg, ok := r.Lookup("alpha")
	require.True(t, ok)
	assert.Equal(t, "alpha", reg.TypeName)
	_, ok = r.Lookup("missing")
	assert.False(t, ok)
}
