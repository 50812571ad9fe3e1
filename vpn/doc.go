// Package vpn provides profile storage and connection orchestration for the
// AWS VPN client CLI.
//
// The package is organized around three types:
//
//   - Store: persists named profiles in a SQLite database owned by the
//     current user
//   - Manager: drives a single connection attempt through the SAML
//     authenticator and the OpenVPN engine driver
//   - Session: one attempt, observed through its done channel
//
// # Connection Flow
//
// A typical connect walks the session through its states:
//
//  1. The command facade resolves a profile name through the Store
//  2. Manager.Connect checks the config file and creates a Session
//  3. Authenticating: the callback listener is bound, the endpoint is
//     probed for the SAML challenge, and the browser flow runs
//  4. Connecting: the engine starts the tunnel process with the credential
//     response
//  5. Established once the management interface reports the tunnel up, or
//     Failed with the classified error
//
// The tunnel process is detached and outlives the CLI; Disconnect from a
// later invocation finds it through the engine's management interface.
//
// # Thread Safety
//
// Store relies on its single database connection; Manager and Session use
// internal locking and are safe for concurrent use.
package vpn
