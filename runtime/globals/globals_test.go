package globals

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/aro-lang/aro/value"
)

func TestPublishThenLookup(t *testing.T) {
	r := New()
	_, ok := r.Lookup("config")
	require.False(t, ok)

	r.Publish("config", value.NewMapping().WithField("mode", value.String("test")))
	v, ok := r.Lookup("config")
	require.True(t, ok)
	mode, _ := v.Field("mode")
	s, _ := mode.Str()
	require.Equal(t, "test", s)
}

func TestPublishOverwritesPreviousValue(t *testing.T) {
	r := New()
	r.Publish("config", value.Int(1))
	r.Publish("config", value.Int(2))
	v, _ := r.Lookup("config")
	i, _ := v.Int()
	require.Equal(t, int64(2), i)
}
