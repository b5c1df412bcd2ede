// Package restclient implements the HTTP client the Call action uses
// to reach named external services, modeled on the teacher's
// plugins/rest client: a named, pre-configured client carrying its
// own bearer credentials and TLS policy rather than per-call options.
package restclient

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/aro-lang/aro/value"
)

// Config is one named service entry of aro.yaml's services block.
type Config struct {
	Name           string            `json:"name"`
	URL            string            `json:"url"`
	Headers        map[string]string `json:"headers"`
	AllowInsecure  bool              `json:"allow_insecure_tls,omitempty"`
	TimeoutSeconds int               `json:"timeout_seconds,omitempty"`
	Credentials    struct {
		Bearer *struct {
			Scheme string `json:"scheme,omitempty"`
			Token  string `json:"token"`
		} `json:"bearer,omitempty"`
	} `json:"credentials"`
}

func (c *Config) validateAndInjectDefaults() (*tls.Config, error) {
	c.URL = strings.TrimRight(c.URL, "/")
	u, err := url.Parse(c.URL)
	if err != nil {
		return nil, fmt.Errorf("restclient: invalid url %q: %w", c.URL, err)
	}
	if c.Credentials.Bearer != nil && c.Credentials.Bearer.Scheme == "" {
		c.Credentials.Bearer.Scheme = "Bearer"
	}
	tlsConfig := &tls.Config{}
	if u.Scheme == "https" {
		tlsConfig.InsecureSkipVerify = c.AllowInsecure
	}
	return tlsConfig, nil
}

// Client is a configured, named HTTP client for one external service.
type Client struct {
	name    string
	baseURL string
	headers map[string]string
	bearer  string
	http    *http.Client
}

// New builds a Client from a parsed Config.
func New(name string, cfg Config) (*Client, error) {
	cfg.Name = name
	tlsConfig, err := cfg.validateAndInjectDefaults()
	if err != nil {
		return nil, err
	}
	timeout := 30 * time.Second
	if cfg.TimeoutSeconds > 0 {
		timeout = time.Duration(cfg.TimeoutSeconds) * time.Second
	}
	c := &Client{
		name:    name,
		baseURL: cfg.URL,
		headers: cfg.Headers,
		http: &http.Client{
			Timeout:   timeout,
			Transport: &http.Transport{TLSClientConfig: tlsConfig},
		},
	}
	if cfg.Credentials.Bearer != nil {
		c.bearer = cfg.Credentials.Bearer.Scheme + " " + cfg.Credentials.Bearer.Token
	}
	return c, nil
}

// Name returns the service name the client was registered under.
func (c *Client) Name() string { return c.name }

// Do performs method against path (appended to the configured base
// URL), sending body (when non-null) as a JSON request body, and
// decodes a JSON response body back into a RuntimeValue. A per-call
// deadline is always in force via the underlying http.Client's
// Timeout (spec §5: "external service calls carry a per-call
// deadline").
func (c *Client) Do(ctx context.Context, method, path string, body value.Value) (value.Value, error) {
	var reader io.Reader
	if !body.IsNull() {
		raw, err := body.MarshalJSON()
		if err != nil {
			return value.Null, fmt.Errorf("restclient: encoding request body: %w", err)
		}
		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return value.Null, fmt.Errorf("restclient: building request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range c.headers {
		req.Header.Set(k, v)
	}
	if c.bearer != "" {
		req.Header.Set("Authorization", c.bearer)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return value.Null, fmt.Errorf("restclient: %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return value.Null, fmt.Errorf("restclient: reading response: %w", err)
	}
	if resp.StatusCode >= 400 {
		return value.Null, fmt.Errorf("restclient: %s %s: status %d: %s", method, path, resp.StatusCode, string(raw))
	}
	if len(raw) == 0 {
		return value.Null, nil
	}
	var decoded interface{}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	if err := dec.Decode(&decoded); err != nil {
		return value.Null, fmt.Errorf("restclient: decoding response: %w", err)
	}
	return value.FromInterface(decoded), nil
}

// ParseServices decodes aro.yaml's services block (an array or a
// map, matching the teacher's parseServicesConfig tolerance for both
// shapes) into named Clients.
func ParseServices(raw []byte) (map[string]*Client, error) {
	clients := map[string]*Client{}
	if len(raw) == 0 {
		return clients, nil
	}

	var arr []json.RawMessage
	if err := json.Unmarshal(raw, &arr); err == nil {
		for _, entry := range arr {
			var cfg Config
			if err := json.Unmarshal(entry, &cfg); err != nil {
				return nil, fmt.Errorf("restclient: parsing service entry: %w", err)
			}
			if cfg.Name == "" {
				return nil, fmt.Errorf("restclient: service entry missing name")
			}
			client, err := New(cfg.Name, cfg)
			if err != nil {
				return nil, err
			}
			clients[cfg.Name] = client
		}
		return clients, nil
	}

	var obj map[string]json.RawMessage
	if err := json.Unmarshal(raw, &obj); err != nil {
		return nil, fmt.Errorf("restclient: parsing services block: %w", err)
	}
	for name, entry := range obj {
		var cfg Config
		if err := json.Unmarshal(entry, &cfg); err != nil {
			return nil, fmt.Errorf("restclient: parsing service %q: %w", name, err)
		}
		client, err := New(name, cfg)
		if err != nil {
			return nil, err
		}
		clients[name] = client
	}
	return clients, nil
}
