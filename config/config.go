// Package config parses the application-level configuration file
// (aro.yaml) an ARO application may carry alongside its source files.
package config

import (
	"fmt"

	"encoding/json"

	"gopkg.in/yaml.v3"
)

// Config is the application configuration file, aro.yaml. Plugin and
// service sub-documents are kept as raw JSON so each consumer (a
// plugin host, the HTTP router) can decode them into its own shape
// without config needing to know every plugin's schema up front.
type Config struct {
	Labels    map[string]string `yaml:"labels" json:"labels"`
	Services  RawDoc            `yaml:"services" json:"services"`
	Plugins   map[string]RawDoc `yaml:"plugins" json:"plugins"`
	Keepalive *KeepaliveConfig  `yaml:"keepalive" json:"keepalive"`
}

// RawDoc is a YAML sub-document kept undecoded as JSON bytes, the way
// config.Config's teacher keeps plugin/service blocks as
// json.RawMessage. yaml.v3 doesn't unmarshal directly into
// json.RawMessage (it only satisfies json.Unmarshaler, not
// yaml.Unmarshaler), so RawDoc implements UnmarshalYAML itself:
// decode into a generic value, then re-encode as JSON.
type RawDoc json.RawMessage

// UnmarshalYAML decodes n into a generic value and stores its JSON
// encoding.
func (d *RawDoc) UnmarshalYAML(n *yaml.Node) error {
	var v interface{}
	if err := n.Decode(&v); err != nil {
		return err
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return err
	}
	*d = raw
	return nil
}

// MarshalJSON satisfies json.Marshaler so a RawDoc serializes as the
// JSON document it holds rather than as a base64 byte string.
func (d RawDoc) MarshalJSON() ([]byte, error) {
	if d == nil {
		return []byte("null"), nil
	}
	return d, nil
}

// KeepaliveConfig is aro.yaml's keepalive block. It is parsed but not
// consulted: the Application Driver waits for shutdown with no time
// limit whatever TimeoutSeconds holds.
type KeepaliveConfig struct {
	TimeoutSeconds int `yaml:"timeout_seconds" json:"timeout_seconds"`
}

// ParseConfig unmarshals raw (the contents of aro.yaml) into a Config,
// injecting the application id into Labels the way every ARO runtime
// component identifies itself in logs and metrics.
func ParseConfig(raw []byte, id string) (*Config, error) {
	var c Config
	if len(raw) > 0 {
		if err := yaml.Unmarshal(raw, &c); err != nil {
			return nil, fmt.Errorf("config: parsing aro.yaml: %w", err)
		}
	}
	c.injectDefaults(id)
	return &c, nil
}

func (c *Config) injectDefaults(id string) {
	if c.Labels == nil {
		c.Labels = map[string]string{}
	}
	c.Labels["id"] = id
}

// PluginConfig returns the raw configuration block for a managed
// plugin by name, and whether one was present.
func (c *Config) PluginConfig(name string) (RawDoc, bool) {
	if c.Plugins == nil {
		return nil, false
	}
	raw, ok := c.Plugins[name]
	return raw, ok
}
