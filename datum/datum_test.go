package datum

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStamp_NextAdvancesByIncrement(t *testing.T) {
	s := NewStamp(1)
	assert.Equal(t, uint64(0), s.Index)

	s = s.Next()
	assert.Equal(t, uint64(1), s.Index)

	wide := NewStamp(3)
	assert.Equal(t, uint64(3), wide.Next().Index)
}

func TestStamp_ZeroIncrementTreatedAsOne(t *testing.T) {
	var s Stamp // zero value, increment 0
	assert.Equal(t, uint64(1), s.Next().Index)
	assert.Equal(t, uint64(1), NewStamp(0).Increment)
}

func TestStamp_EqualIgnoresIncrement(t *testing.T) {
	a := Stamp{Index: 5, Increment: 1}
	b := Stamp{Index: 5, Increment: 3}
	assert.True(t, a.Equal(b))
	assert.False(t, a.Equal(b.Next()))
}

func TestStamp_Compare(t *testing.T) {
	tests := []struct {
		name string
		a, b Stamp
		want int
	}{
		{"before", Stamp{Index: 1}, Stamp{Index: 2}, -1},
		{"same", Stamp{Index: 2}, Stamp{Index: 2}, 0},
		{"after", Stamp{Index: 3}, Stamp{Index: 2}, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.a.Compare(tt.b))
		})
	}
}

func TestDatum_Constructors(t *testing.T) {
	s := Stamp{Index: 7, Increment: 1}

	d := New(s, 42)
	assert.Equal(t, Data, d.Type)
	assert.Equal(t, 42, d.Value)
	assert.Equal(t, s, d.Stamp)
	assert.False(t, d.IsComplete())

	assert.Equal(t, Empty, NewEmpty(s).Type)
	assert.Equal(t, Flush, NewFlush(s).Type)
	assert.True(t, NewComplete(s).IsComplete())

	cause := errors.New("boom")
	e := NewError(s, cause)
	assert.Equal(t, Error, e.Type)
	assert.Equal(t, cause, e.Err)
}

func TestDatum_String(t *testing.T) {
	d := New(Stamp{Index: 3}, "x")
	assert.Equal(t, "data@3", d.String())
	assert.Equal(t, "complete@0", NewComplete(Stamp{}).String())
}
