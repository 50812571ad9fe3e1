// Package common provides shared constants, types, utilities, and interfaces
// used throughout the AWS VPN client CLI.
//
// This package serves as the foundation for cross-cutting concerns:
//
//   - Constants: Application-wide constants like timeouts, file names, and ports
//   - Errors: Sentinel errors and exit-code mapping for consistent failure handling
//   - Interfaces: Contracts the orchestrator consumes from the OpenVPN engine
//     driver and the SAML authenticator
//   - Logger: Construction of the slog logger handed to each component
//   - Utils: Per-user directory resolution and file checks
//
// # Usage
//
// Import the package to access shared functionality:
//
//	import "github.com/jgoulard/awsvpnclient-cli/common"
//
//	// Build the logger once at startup
//	logger := common.NewLogger(common.DefaultLogConfig())
//
//	// Check errors
//	if errors.Is(err, common.ErrProfileNotFound) {
//	    // Handle missing profile
//	}
//
//	// Map a failure to its exit code
//	os.Exit(common.ExitCode(err))
//
// # Design Principles
//
// There is no package-level mutable state: the logger is constructed
// explicitly and passed to each component, and every failure kind is a
// sentinel checked with errors.Is rather than string matching.
package common
