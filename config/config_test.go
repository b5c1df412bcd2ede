package config

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseConfigInjectsID(t *testing.T) {
	c, err := ParseConfig([]byte(`labels:
  region: us-east
`), "order-service")
	require.NoError(t, err)
	require.Equal(t, "order-service", c.Labels["id"])
	require.Equal(t, "us-east", c.Labels["region"])
}

func TestParseConfigEmpty(t *testing.T) {
	c, err := ParseConfig(nil, "app-1")
	require.NoError(t, err)
	require.Equal(t, "app-1", c.Labels["id"])
	require.Nil(t, c.Plugins)
}

func TestParseConfigPlugins(t *testing.T) {
	c, err := ParseConfig([]byte(`plugins:
  payments:
    api_key: "test-key"
`), "app-1")
	require.NoError(t, err)
	raw, ok := c.PluginConfig("payments")
	require.True(t, ok)
	require.Contains(t, string(raw), "test-key")

	_, ok = c.PluginConfig("missing")
	require.False(t, ok)
}

func TestParseConfigMalformedYAML(t *testing.T) {
	_, err := ParseConfig([]byte("labels: [unterminated"), "app-1")
	require.Error(t, err)
}
