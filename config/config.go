// Package config provides configuration management for the AWS VPN client
// CLI. It handles loading, saving, and validating application settings.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/jgoulard/awsvpnclient-cli/common"
)

// Duration is a time.Duration that YAML-encodes as a string like "30s".
// A bare integer is accepted and interpreted as seconds.
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	var seconds int64
	if err := node.Decode(&seconds); err == nil {
		*d = Duration(time.Duration(seconds) * time.Second)
		return nil
	}

	var s string
	if err := node.Decode(&s); err != nil {
		return fmt.Errorf("invalid duration value: %w", err)
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	*d = Duration(parsed)
	return nil
}

// MarshalYAML implements yaml.Marshaler.
func (d Duration) MarshalYAML() (interface{}, error) {
	return time.Duration(d).String(), nil
}

// Std returns the value as a time.Duration.
func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

// Config represents the application configuration.
// All settings are optional; a missing config file yields the defaults and
// nothing is written to disk.
type Config struct {
	// OpenVPNPath is the openvpn binary to run. Empty means PATH lookup.
	OpenVPNPath string `yaml:"openvpn_path"`
	// ManagementHost is the address the tunnel's management interface
	// binds to.
	ManagementHost string `yaml:"management_host"`
	// ManagementPort is the management interface TCP port.
	ManagementPort int `yaml:"management_port"`
	// ACSPorts are the local ports acceptable for the SAML assertion
	// consumer listener, tried in order.
	ACSPorts []int `yaml:"acs_ports"`
	// BrowserCommand overrides the command used to open the sign-on URL.
	// Empty means the OS default opener.
	BrowserCommand string `yaml:"browser_command"`
	// ProbeTimeout bounds the SAML challenge probe.
	ProbeTimeout Duration `yaml:"probe_timeout"`
	// AuthTimeout bounds the wait for the browser sign-on to complete.
	AuthTimeout Duration `yaml:"auth_timeout"`
	// ConnectTimeout bounds the whole connect attempt. Zero means no limit.
	ConnectTimeout Duration `yaml:"connect_timeout"`
	// LogLevel sets the minimum log level: "debug", "info", "warn", "error".
	LogLevel string `yaml:"log_level"`
	// LogFormat sets the log output format: "auto", "text", or "json".
	LogFormat string `yaml:"log_format"`
}

// DefaultConfig returns the default configuration.
// These are sensible defaults for AWS Client VPN endpoints.
func DefaultConfig() *Config {
	return &Config{
		ManagementHost: common.DefaultManagementHost,
		ManagementPort: common.DefaultManagementPort,
		ACSPorts:       []int{common.DefaultACSPort},
		ProbeTimeout:   Duration(common.ProbeTimeout),
		AuthTimeout:    Duration(common.AuthTimeout),
		LogLevel:       "info",
		LogFormat:      common.LogFormatAuto,
	}
}

// DefaultPath returns the default config file location inside the per-user
// application directory.
func DefaultPath() (string, error) {
	dir, err := common.GetConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, common.ConfigFileName), nil
}

// Load loads the configuration from the given file. An empty path means the
// default location. A missing file is not an error: the defaults are
// returned and nothing is written.
func Load(path string) (*Config, error) {
	if path == "" {
		var err error
		path, err = DefaultPath()
		if err != nil {
			return nil, err
		}
	}

	if _, err := os.Stat(path); os.IsNotExist(err) {
		return DefaultConfig(), nil
	}

	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("error opening configuration: %w", err)
	}
	defer file.Close()

	decoder := yaml.NewDecoder(file)
	decoder.KnownFields(true) // Strict validation: reject unknown fields

	config := DefaultConfig()
	if err := decoder.Decode(config); err != nil {
		return nil, fmt.Errorf("%w: error parsing configuration %s: %v", common.ErrInvalidInput, path, err)
	}

	config.validate()

	return config, nil
}

// validate verifies configuration values, falling back to the default for
// each invalid field.
func (c *Config) validate() {
	if c.ManagementHost == "" {
		c.ManagementHost = common.DefaultManagementHost
	}
	if !validPort(c.ManagementPort) {
		c.ManagementPort = common.DefaultManagementPort
	}

	ports := make([]int, 0, len(c.ACSPorts))
	for _, p := range c.ACSPorts {
		if validPort(p) {
			ports = append(ports, p)
		}
	}
	if len(ports) == 0 {
		ports = []int{common.DefaultACSPort}
	}
	c.ACSPorts = ports

	if c.ProbeTimeout <= 0 {
		c.ProbeTimeout = Duration(common.ProbeTimeout)
	}
	if c.AuthTimeout <= 0 {
		c.AuthTimeout = Duration(common.AuthTimeout)
	}
	if c.ConnectTimeout < 0 {
		c.ConnectTimeout = 0
	}

	if _, err := common.ParseLevel(c.LogLevel); err != nil {
		c.LogLevel = "info"
	}
	switch c.LogFormat {
	case common.LogFormatAuto, common.LogFormatText, common.LogFormatJSON:
	default:
		c.LogFormat = common.LogFormatAuto
	}
}

// Save saves the configuration to the given file.
func (c *Config) Save(path string) error {
	if path == "" {
		var err error
		path, err = DefaultPath()
		if err != nil {
			return err
		}
	}

	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("error creating config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("error serializing configuration: %w", err)
	}

	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("error saving configuration: %w", err)
	}

	return nil
}

func validPort(p int) bool {
	return p > 0 && p < 65536
}
