package value

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestBooleanRoundTripsWithoutDegradingToInteger(t *testing.T) {
	v := NewMapping().WithField("active", Bool(true)).WithField("archived", Bool(false))

	data, err := json.Marshal(v)
	require.NoError(t, err)
	require.JSONEq(t, `{"active":true,"archived":false}`, string(data))

	var decoded Value
	require.NoError(t, json.Unmarshal(data, &decoded))

	active, ok := decoded.Field("active")
	require.True(t, ok)
	b, isBool := active.Bool()
	require.True(t, isBool)
	require.True(t, b)
}

func TestIntegerDoesNotWidenToFloat(t *testing.T) {
	var decoded Value
	require.NoError(t, json.Unmarshal([]byte(`{"count": 3}`), &decoded))
	count, _ := decoded.Field("count")
	require.Equal(t, KindInt, count.Kind())
	i, ok := count.Int()
	require.True(t, ok)
	require.Equal(t, int64(3), i)
}

func TestSequenceEqual(t *testing.T) {
	a := Sequence(Int(1), Int(2), Int(3))
	b := Sequence(Int(1), Int(2), Int(3))
	c := Sequence(Int(3), Int(2), Int(1))
	require.True(t, Equal(a, b))
	require.False(t, Equal(a, c))
}

func TestTypeLabel(t *testing.T) {
	require.Equal(t, "boolean", Bool(true).Kind().TypeLabel())
	require.Equal(t, "sequence", Sequence().Kind().TypeLabel())
	require.Equal(t, "null", Null.Kind().TypeLabel())
}
