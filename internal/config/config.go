// Package config loads and validates the gateway configuration.
//
// DESIGN: Configuration comes from YAML with ${VAR:-default} environment
// expansion, so secrets stay out of the file. A named profile bundles
// everything one Façade construction needs: adapter, target, auth,
// timeout, transport options.
package config

import (
	"fmt"
	"os"
	"regexp"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/protogate/protogate/internal/monitoring"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// Duration decodes yaml duration strings ("30s", "2m") as well as raw
// nanosecond integers.
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err == nil {
		parsed, err := time.ParseDuration(s)
		if err != nil {
			return fmt.Errorf("invalid duration %q: %w", s, err)
		}
		*d = Duration(parsed)
		return nil
	}
	var n int64
	if err := value.Decode(&n); err != nil {
		return fmt.Errorf("invalid duration %q", value.Value)
	}
	*d = Duration(n)
	return nil
}

// Std returns the wrapped time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

// Config is the root configuration.
type Config struct {
	Logging  monitoring.LoggerConfig `yaml:"logging"`
	Plugins  PluginsConfig           `yaml:"plugins"`
	Profiles map[string]Profile      `yaml:"profiles" validate:"required,min=1,dive"`
	Auth     AuthConfig              `yaml:"auth"`
	Fallback FallbackConfig          `yaml:"fallback"`
}

// PluginsConfig locates installed extensions.
type PluginsConfig struct {
	// Dirs are scanned for plugin manifests.
	Dirs []string `yaml:"dirs"`

	// Watch enables hot reload of plugin manifests.
	Watch bool `yaml:"watch"`
}

// Profile is one named Façade construction input. Transport peer
// verification is on unless the profile opts out with insecure: true.
type Profile struct {
	Adapter  string   `yaml:"adapter" validate:"required"`
	Target   string   `yaml:"target" validate:"required"`
	Auth     string   `yaml:"auth"`
	Timeout  Duration `yaml:"timeout"`
	Insecure bool     `yaml:"insecure"`
}

// AuthConfig carries the credentials for the built-in providers. Only
// the providers with configuration present get registered.
type AuthConfig struct {
	Basic  *BasicAuth  `yaml:"basic"`
	Bearer *BearerAuth `yaml:"bearer"`
	APIKey *APIKeyAuth `yaml:"apikey"`
	JWT    *JWTAuth    `yaml:"jwt"`
	SigV4  *SigV4Auth  `yaml:"sigv4"`
}

type BasicAuth struct {
	Username string `yaml:"username" validate:"required"`
	Password string `yaml:"password" validate:"required"`
}

type BearerAuth struct {
	Token string `yaml:"token" validate:"required"`
}

type APIKeyAuth struct {
	Header string `yaml:"header"`
	Key    string `yaml:"key" validate:"required"`
}

type JWTAuth struct {
	Secret   string   `yaml:"secret" validate:"required"`
	Issuer   string   `yaml:"issuer"`
	Subject  string   `yaml:"subject"`
	Lifetime Duration `yaml:"lifetime"`
}

type SigV4Auth struct {
	Service string `yaml:"service" validate:"required"`
	Region  string `yaml:"region" validate:"required"`
	Host    string `yaml:"host"`
}

// FallbackConfig controls the stale-response cache hook.
type FallbackConfig struct {
	Enabled bool     `yaml:"enabled"`
	TTL     Duration `yaml:"ttl"`
}

// expandEnvWithDefaults expands environment variables with support for
// default values. Supports both ${VAR} and ${VAR:-default} syntax.
func expandEnvWithDefaults(s string) string {
	re := regexp.MustCompile(`\$\{([^}:]+)(?::-([^}]*))?\}`)

	return re.ReplaceAllStringFunc(s, func(match string) string {
		parts := re.FindStringSubmatch(match)
		if len(parts) < 2 {
			return match
		}

		varName := parts[1]
		defaultValue := ""
		if len(parts) > 2 {
			defaultValue = parts[2]
		}

		if value := os.Getenv(varName); value != "" {
			return value
		}
		return defaultValue
	})
}

// Load reads configuration from a YAML file.
func Load(path string) (*Config, error) {
	if path == "" {
		return nil, fmt.Errorf("config file path is required")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file '%s': %w", path, err)
	}
	return LoadFromBytes(data)
}

// LoadFromBytes parses configuration from raw YAML bytes with env var
// expansion and validation.
func LoadFromBytes(data []byte) (*Config, error) {
	expanded := expandEnvWithDefaults(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

// Validate checks structural constraints.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return err
	}
	for name, p := range c.Profiles {
		if p.Timeout < 0 {
			return fmt.Errorf("profile %q: negative timeout", name)
		}
	}
	return nil
}

// Profile returns the named profile, defaulting to "default".
func (c *Config) Profile(name string) (Profile, error) {
	if name == "" {
		name = "default"
	}
	p, ok := c.Profiles[name]
	if !ok {
		return Profile{}, fmt.Errorf("profile %q not configured", name)
	}
	return p, nil
}
