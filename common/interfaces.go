// Package common provides shared constants, types, and utilities
// used across the AWS VPN client CLI.
package common

import (
	"context"
	"time"
)

// Challenge is the SAML challenge issued by the Client VPN endpoint when a
// connection is probed without valid credentials. The endpoint answers with
// an AUTH_FAILED control message carrying a CRV1 challenge: an opaque state
// id and the identity provider's single sign-on URL.
type Challenge struct {
	// SID is the CRV1 state id. It is bound to the endpoint node that
	// issued it and must be echoed back in the credential response.
	SID string
	// URL is the identity provider sign-on URL to open in a browser.
	URL string
}

// Credentials is the result of a completed authentication flow.
// The engine encodes it as the CRV1 response expected by the endpoint.
type Credentials struct {
	// SID is the state id from the challenge that produced this assertion.
	SID string
	// Assertion is the base64 SAML response posted by the identity provider.
	Assertion string
}

// TunnelState describes a running tunnel as reported by the OpenVPN
// management interface.
type TunnelState struct {
	// State is the management state name, e.g. "CONNECTED" or "WAIT".
	State string
	// Description is the detail field, e.g. "SUCCESS".
	Description string
	// LocalAddr is the address assigned inside the tunnel, if any.
	LocalAddr string
	// RemoteAddr is the endpoint address, if reported.
	RemoteAddr string
	// Since is when the reported state was entered.
	Since time.Time
}

// Connected reports whether the tunnel has completed initialization.
func (t *TunnelState) Connected() bool {
	return t != nil && t.State == "CONNECTED"
}

// Handle represents an in-flight tunnel establishment started by the engine.
// Done is closed exactly once when the establishment succeeds or fails;
// afterwards Err reports the outcome (nil on success).
type Handle interface {
	// Done returns a channel closed when establishment finishes.
	Done() <-chan struct{}
	// Err returns the establishment outcome once Done is closed.
	Err() error
	// PID returns the tunnel process id.
	PID() int
}

// Engine is the contract the connection orchestrator needs from the
// OpenVPN driver. Implementations must classify endpoint-reported
// authentication rejections with ErrAuthFailed and everything else with
// ErrEngine so callers can map failures without parsing messages.
type Engine interface {
	// Probe contacts the endpoint with throwaway credentials advertising
	// the local assertion consumer port and returns the SAML challenge.
	Probe(ctx context.Context, configPath string, acsPort int) (*Challenge, error)
	// Start launches the tunnel process with the credential response and
	// returns a handle resolving when establishment succeeds or fails.
	Start(ctx context.Context, configPath string, creds *Credentials) (Handle, error)
	// Status reports the live tunnel, or ErrNoActiveConnection.
	Status(ctx context.Context) (*TunnelState, error)
	// Stop tears down the live tunnel, or returns ErrNoActiveConnection.
	Stop(ctx context.Context) error
}

// Authenticator is the contract for the browser-based SAML flow. Listen
// must be called before the endpoint is probed so the advertised callback
// port is already bound when the identity provider redirects to it.
type Authenticator interface {
	// Listen binds the assertion consumer listener on the first available
	// configured port and returns the bound port.
	Listen(ctx context.Context) (int, error)
	// Authenticate opens the challenge URL and waits for the identity
	// provider to deliver the assertion to the bound listener.
	Authenticate(ctx context.Context, challenge *Challenge) (*Credentials, error)
	// Close releases the listener. Safe to call more than once.
	Close() error
}
