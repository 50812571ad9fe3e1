// Package common provides shared constants, types, and utilities
// used across the AWS VPN client CLI.
package common

import "time"

// Application metadata.
const (
	// AppName is the command name of the application.
	AppName = "awsvpn"
	// ConfigDirName is the name of the per-user configuration directory.
	ConfigDirName = "awsvpn"
)

// File names used by the application.
const (
	ProfilesDBFileName = "profiles.db"
	ConfigFileName     = "config.yaml"
	EngineLogFileName  = "openvpn.log"
)

// Default network endpoints.
const (
	// DefaultManagementHost is where the tunnel's management interface
	// listens. The fixed address doubles as the single-tunnel guard.
	DefaultManagementHost = "127.0.0.1"
	// DefaultManagementPort is the management interface TCP port.
	DefaultManagementPort = 7505
	// DefaultACSPort is the assertion consumer port Client VPN endpoints
	// expect the SAML response to be delivered to.
	DefaultACSPort = 35001
)

// Default timeouts.
const (
	// ProbeTimeout bounds the challenge probe against the endpoint.
	ProbeTimeout = 30 * time.Second
	// AuthTimeout bounds the browser flow; an abandoned sign-on page
	// otherwise blocks the connect forever.
	AuthTimeout = 3 * time.Minute
	// ManagementTimeout is the timeout for management interface commands.
	ManagementTimeout = 5 * time.Second
)
