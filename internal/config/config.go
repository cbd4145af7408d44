package config

import (
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Defaults applied by Validate when a field is omitted.
const (
	DefaultListenAddr      = ":8080"
	DefaultCallerHeader    = "X-Account-Id"
	DefaultInstanceName    = "default"
	DefaultCallTimeout     = 30 * time.Second
	DefaultCallbackTimeout = 10 * time.Second
	DefaultShutdownTimeout = 15 * time.Second

	// TargetPlaceholder is substituted with the target service id in
	// endpoint_template.
	TargetPlaceholder = "{target}"
)

// MinstaConfig represents the top-level minsta.yml configuration
type MinstaConfig struct {
	Version          string                  `yaml:"version"`
	ContractID       string                  `yaml:"contract_id"` // The proxy's own account; callbacks must come from it
	Server           *ServerConfig           `yaml:"server,omitempty"`
	Redis            RedisConfig             `yaml:"redis"`
	Timeouts         *TimeoutsConfig         `yaml:"timeouts,omitempty"`
	Targets          map[string]TargetConfig `yaml:"targets,omitempty"`           // target service id → endpoint
	EndpointTemplate string                  `yaml:"endpoint_template,omitempty"` // e.g. "https://{target}/rpc"
}

// ServerConfig specifies the HTTP API listener
type ServerConfig struct {
	ListenAddr   string `yaml:"listen_addr,omitempty"`
	CallerHeader string `yaml:"caller_header,omitempty"` // Header carrying the authenticated caller account
}

// RedisConfig specifies where the latest-minter registry lives
type RedisConfig struct {
	URL          string `yaml:"url"`
	InstanceName string `yaml:"instance_name,omitempty"`
}

// TimeoutsConfig bounds remote calls and callbacks
type TimeoutsConfig struct {
	Call     time.Duration `yaml:"call,omitempty"`
	Callback time.Duration `yaml:"callback,omitempty"`
	Shutdown time.Duration `yaml:"shutdown,omitempty"`
}

// TargetConfig describes one collectible-issuing service
type TargetConfig struct {
	Endpoint string            `yaml:"endpoint"`
	Headers  map[string]string `yaml:"headers,omitempty"` // Extra headers sent with every call
}

// Validate performs strict validation on the configuration and applies defaults
func (c *MinstaConfig) Validate() error {
	if c.Version != "1.0" {
		return fmt.Errorf("unsupported version: %s (expected: 1.0)", c.Version)
	}

	if c.ContractID == "" {
		return fmt.Errorf("contract_id is required")
	}
	if strings.ContainsAny(c.ContractID, " \t\r\n") {
		return fmt.Errorf("contract_id must not contain whitespace: %q", c.ContractID)
	}

	if c.Redis.URL == "" {
		return fmt.Errorf("redis.url is required")
	}
	if c.Redis.InstanceName == "" {
		c.Redis.InstanceName = DefaultInstanceName
	}

	if c.Server == nil {
		c.Server = &ServerConfig{}
	}
	if c.Server.ListenAddr == "" {
		c.Server.ListenAddr = DefaultListenAddr
	}
	if c.Server.CallerHeader == "" {
		c.Server.CallerHeader = DefaultCallerHeader
	}

	if c.Timeouts == nil {
		c.Timeouts = &TimeoutsConfig{}
	}
	if c.Timeouts.Call == 0 {
		c.Timeouts.Call = DefaultCallTimeout
	}
	if c.Timeouts.Callback == 0 {
		c.Timeouts.Callback = DefaultCallbackTimeout
	}
	if c.Timeouts.Shutdown == 0 {
		c.Timeouts.Shutdown = DefaultShutdownTimeout
	}
	if c.Timeouts.Call < 0 || c.Timeouts.Callback < 0 || c.Timeouts.Shutdown < 0 {
		return fmt.Errorf("timeouts must be positive")
	}

	for name, target := range c.Targets {
		if err := target.Validate(name); err != nil {
			return err
		}
	}

	if c.EndpointTemplate != "" {
		if !strings.Contains(c.EndpointTemplate, TargetPlaceholder) {
			return fmt.Errorf("endpoint_template must contain %s: %s", TargetPlaceholder, c.EndpointTemplate)
		}
		probe := strings.ReplaceAll(c.EndpointTemplate, TargetPlaceholder, "probe")
		if err := validateEndpoint(probe); err != nil {
			return fmt.Errorf("endpoint_template: %w", err)
		}
	}

	if len(c.Targets) == 0 && c.EndpointTemplate == "" {
		return fmt.Errorf("no targets defined: set targets or endpoint_template")
	}

	return nil
}

// Validate performs validation on a single target configuration
func (t *TargetConfig) Validate(name string) error {
	if strings.TrimSpace(name) == "" {
		return fmt.Errorf("target name cannot be empty")
	}
	if t.Endpoint == "" {
		return fmt.Errorf("target '%s': endpoint is required", name)
	}
	if err := validateEndpoint(t.Endpoint); err != nil {
		return fmt.Errorf("target '%s': %w", name, err)
	}
	return nil
}

func validateEndpoint(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("invalid endpoint %q: %w", raw, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("invalid endpoint %q: scheme must be http or https", raw)
	}
	if u.Host == "" {
		return fmt.Errorf("invalid endpoint %q: missing host", raw)
	}
	return nil
}

// ApplyEnv overrides file settings with REDIS_URL, MINSTA_INSTANCE_NAME and
// MINSTA_LISTEN_ADDR when they are set.
func (c *MinstaConfig) ApplyEnv() {
	if v := os.Getenv("REDIS_URL"); v != "" {
		c.Redis.URL = v
	}
	if v := os.Getenv("MINSTA_INSTANCE_NAME"); v != "" {
		c.Redis.InstanceName = v
	}
	if v := os.Getenv("MINSTA_LISTEN_ADDR"); v != "" {
		if c.Server == nil {
			c.Server = &ServerConfig{}
		}
		c.Server.ListenAddr = v
	}
}

// Load reads minsta.yml from the specified path, applies environment
// overrides and validates the result
func Load(path string) (*MinstaConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var config MinstaConfig
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	config.ApplyEnv()

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}
