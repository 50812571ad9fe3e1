// Package vpn provides profile storage and connection orchestration.
// This file contains the Profile type and OpenVPN config file checks.
package vpn

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/jgoulard/awsvpnclient-cli/common"
)

// Profile represents a named VPN connection profile. The name is the
// identity key; the config path points at an OpenVPN configuration file
// exported from the Client VPN endpoint.
type Profile struct {
	// Name is the unique, case-sensitive profile name.
	Name string
	// ConfigPath is the path to the OpenVPN configuration file.
	ConfigPath string
	// CreatedAt is when the profile was added.
	CreatedAt time.Time
	// LastUsedAt is when the profile last established a connection.
	// Zero when the profile has never been used.
	LastUsedAt time.Time
}

// Validate checks if the profile has all required fields.
func (p *Profile) Validate() error {
	if strings.TrimSpace(p.Name) == "" {
		return fmt.Errorf("%w: profile name is required", common.ErrInvalidInput)
	}
	if strings.TrimSpace(p.ConfigPath) == "" {
		return fmt.Errorf("%w: config file path is required", common.ErrInvalidInput)
	}
	return nil
}

// ValidateConfigFile checks whether the given file looks like an OpenVPN
// client configuration. Profiles referencing files that fail this check can
// still be added; callers use the result to warn, not to reject.
func ValidateConfigFile(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("file not found: %w", err)
	}

	if info.IsDir() {
		return fmt.Errorf("%s is a directory, not a config file", path)
	}

	ext := strings.ToLower(filepath.Ext(path))
	if ext != ".ovpn" && ext != ".conf" {
		return fmt.Errorf("expected .ovpn or .conf extension, got %q", ext)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read file: %w", err)
	}

	// A client config exported from an endpoint always carries at least
	// one of these directives.
	content := string(data)
	for _, directive := range []string{"remote", "client"} {
		if strings.Contains(content, directive) {
			return nil
		}
	}

	return fmt.Errorf("missing required OpenVPN directives (remote or client)")
}
