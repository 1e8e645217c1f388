package telemetry

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/irtelemetry/pitcam/pkg/irsdk"
)

func connectedLive(t *testing.T, vars map[string]any) *LiveStore {
	t.Helper()
	s := NewLiveStore(&fakeHandle{up: true, vars: vars}, nil)
	require.True(t, s.Connect())
	return s
}

func TestTypedReads(t *testing.T) {
	s := connectedLive(t, map[string]any{
		"Int":     float64(7),
		"Float":   "1.5",
		"Bool":    1,
		"String":  42,
		"Surface": []any{3.0, 2.0, 1.0},
		"Bad":     map[string]any{},
	})

	i, ok := ReadInt(s, "Int")
	assert.True(t, ok)
	assert.Equal(t, 7, i)

	f, ok := ReadFloat(s, "Float")
	assert.True(t, ok)
	assert.Equal(t, 1.5, f)

	b, ok := ReadBool(s, "Bool")
	assert.True(t, ok)
	assert.True(t, b)

	str, ok := ReadString(s, "String")
	assert.True(t, ok)
	assert.Equal(t, "42", str)

	surfaces, ok := ReadIntSlice(s, "Surface")
	assert.True(t, ok)
	assert.Equal(t, []int{3, 2, 1}, surfaces)

	v, ok := ReadIntAt(s, "Surface", 1)
	assert.True(t, ok)
	assert.Equal(t, 2, v)

	_, ok = ReadIntAt(s, "Surface", 3)
	assert.False(t, ok)
	_, ok = ReadIntAt(s, "Surface", -1)
	assert.False(t, ok)

	_, ok = ReadInt(s, "Bad")
	assert.False(t, ok)
	_, ok = ReadInt(s, "Missing")
	assert.False(t, ok)
}

func TestCapture(t *testing.T) {
	s := connectedLive(t, map[string]any{irsdk.VarSessionTime: 3.0, irsdk.VarLap: 2})
	got := Capture(s, []string{irsdk.VarSessionTime, irsdk.VarLap, irsdk.VarLat})
	assert.Equal(t, map[string]any{irsdk.VarSessionTime: 3.0, irsdk.VarLap: 2}, got)
}
