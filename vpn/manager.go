// Package vpn provides profile storage and connection orchestration.
// This file contains the Manager type which drives a single connection
// attempt through the SAML authenticator and the OpenVPN engine driver.
package vpn

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/jgoulard/awsvpnclient-cli/common"
)

// State represents the phase of a connection attempt.
type State int

const (
	// StateIdle indicates no attempt is in progress.
	StateIdle State = iota
	// StateAuthenticating indicates the SAML browser flow is running.
	StateAuthenticating
	// StateConnecting indicates the tunnel process is establishing.
	StateConnecting
	// StateEstablished indicates the tunnel is up.
	StateEstablished
	// StateFailed indicates the attempt ended with an error.
	StateFailed
)

// String returns a human-readable representation of the state.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "Idle"
	case StateAuthenticating:
		return "Authenticating..."
	case StateConnecting:
		return "Connecting..."
	case StateEstablished:
		return "Connected"
	case StateFailed:
		return "Failed"
	default:
		return "Unknown"
	}
}

// Session is a single connection attempt. It is created by Manager.Connect
// and lives until the attempt reaches a terminal state. The done channel is
// closed exactly once; afterwards Err reports the outcome.
type Session struct {
	// ID uniquely identifies the attempt in logs.
	ID string
	// Profile is the profile being connected.
	Profile *Profile

	mu       sync.Mutex
	state    State
	err      error
	finished bool
	done     chan struct{}
}

func newSession(profile *Profile) *Session {
	return &Session{
		ID:      uuid.NewString(),
		Profile: profile,
		state:   StateIdle,
		done:    make(chan struct{}),
	}
}

// State returns the current state of the attempt.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Done returns a channel closed when the attempt reaches a terminal state.
func (s *Session) Done() <-chan struct{} {
	return s.done
}

// Err returns the attempt outcome once Done is closed: nil on an
// established tunnel, the classified failure otherwise.
func (s *Session) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// Wait blocks until the attempt reaches a terminal state and returns the
// outcome. Cancellation is observed by the attempt itself, which tears the
// engine down before finishing, so Wait does not return until any teardown
// has completed.
func (s *Session) Wait() error {
	<-s.done
	return s.Err()
}

func (s *Session) setState(state State) State {
	s.mu.Lock()
	old := s.state
	s.state = state
	s.mu.Unlock()
	return old
}

func (s *Session) finish(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.finished {
		return
	}
	s.finished = true
	s.err = err
	close(s.done)
}

// Manager orchestrates VPN connection attempts. It owns at most one live
// session; a second Connect while one is active is rejected with
// ErrAlreadyConnected. The actual authentication and tunnel work is
// delegated to the collaborators passed at construction time.
type Manager struct {
	engine common.Engine
	auth   common.Authenticator
	logger *slog.Logger

	mu           sync.Mutex
	session      *Session
	stateHandler func(old, new State)
}

// NewManager creates a connection manager over the given collaborators.
func NewManager(engine common.Engine, auth common.Authenticator, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Manager{
		engine: engine,
		auth:   auth,
		logger: logger.With("component", "manager"),
	}
}

// SetStateHandler registers a callback invoked on every state transition of
// the active session. The callback runs on the attempt goroutine and must
// not block.
func (m *Manager) SetStateHandler(handler func(old, new State)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stateHandler = handler
}

// Active returns the live session, or nil when idle.
func (m *Manager) Active() *Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.session
}

// Connect starts a connection attempt for the profile and returns its
// session without blocking on the attempt itself. The config file is
// checked before any collaborator is touched; a missing file reports
// ErrConfigNotFound and leaves the manager idle.
func (m *Manager) Connect(ctx context.Context, profile *Profile) (*Session, error) {
	if profile == nil {
		return nil, fmt.Errorf("%w: profile is required", common.ErrInvalidInput)
	}
	if !common.IsRegularFile(profile.ConfigPath) {
		return nil, common.Failure(common.ErrConfigNotFound, "Config file not found: %s", profile.ConfigPath)
	}

	m.mu.Lock()
	if m.session != nil {
		name := m.session.Profile.Name
		m.mu.Unlock()
		return nil, fmt.Errorf("%w: %s", common.ErrAlreadyConnected, name)
	}
	session := newSession(profile)
	m.session = session
	m.mu.Unlock()

	m.logger.Info("starting connection attempt",
		"session", session.ID, "profile", profile.Name, "config", profile.ConfigPath)

	go m.run(ctx, session)

	return session, nil
}

// Disconnect tears down the active tunnel. With a live in-process session
// the engine is stopped and the manager returns to idle even when teardown
// fails (the error is still reported). Without one, a tunnel left behind by
// a previous invocation is looked up through the engine; if none is found
// the engine is never asked to tear anything down.
func (m *Manager) Disconnect(ctx context.Context) error {
	m.mu.Lock()
	session := m.session
	m.session = nil
	m.mu.Unlock()

	if session != nil {
		m.logger.Info("disconnecting", "session", session.ID, "profile", session.Profile.Name)
		if err := m.engine.Stop(ctx); err != nil && !errors.Is(err, common.ErrNoActiveConnection) {
			return fmt.Errorf("teardown failed: %w", err)
		}
		return nil
	}

	// The tunnel process outlives the CLI, so a fresh invocation has no
	// session to consult. Ask the engine whether one is running.
	if _, err := m.engine.Status(ctx); err != nil {
		return err
	}

	m.logger.Info("disconnecting tunnel from previous invocation")
	if err := m.engine.Stop(ctx); err != nil && !errors.Is(err, common.ErrNoActiveConnection) {
		return fmt.Errorf("teardown failed: %w", err)
	}
	return nil
}

// run drives one attempt: bind the callback listener, probe the endpoint
// for the SAML challenge, authenticate, then hand the credentials to the
// engine and wait for establishment.
func (m *Manager) run(ctx context.Context, s *Session) {
	m.transition(s, StateAuthenticating)

	port, err := m.auth.Listen(ctx)
	if err != nil {
		m.fail(s, classify(err, common.ErrAuthFailed))
		return
	}
	defer m.auth.Close()

	challenge, err := m.engine.Probe(ctx, s.Profile.ConfigPath, port)
	if err != nil {
		m.fail(s, classify(err, common.ErrEngine))
		return
	}

	creds, err := m.auth.Authenticate(ctx, challenge)
	if err != nil {
		m.fail(s, classify(err, common.ErrAuthFailed))
		return
	}

	m.transition(s, StateConnecting)

	handle, err := m.engine.Start(ctx, s.Profile.ConfigPath, creds)
	if err != nil {
		m.fail(s, classify(err, common.ErrEngine))
		return
	}

	select {
	case <-handle.Done():
		if err := handle.Err(); err != nil {
			m.fail(s, classify(err, common.ErrEngine))
			return
		}
	case <-ctx.Done():
		// Tear down whatever the engine already brought up.
		stopCtx, cancel := context.WithTimeout(context.Background(), common.ManagementTimeout)
		if err := m.engine.Stop(stopCtx); err != nil && !errors.Is(err, common.ErrNoActiveConnection) {
			m.logger.Warn("teardown after cancellation failed", "session", s.ID, "error", err)
		}
		cancel()
		m.fail(s, ctx.Err())
		return
	}

	m.transition(s, StateEstablished)
	m.logger.Info("tunnel established", "session", s.ID, "profile", s.Profile.Name, "pid", handle.PID())
	s.finish(nil)
}

func (m *Manager) transition(s *Session, state State) {
	old := s.setState(state)

	m.mu.Lock()
	handler := m.stateHandler
	m.mu.Unlock()

	m.logger.Debug("state transition", "session", s.ID, "from", old, "to", state)
	if handler != nil {
		handler(old, state)
	}
}

func (m *Manager) fail(s *Session, err error) {
	m.transition(s, StateFailed)

	m.mu.Lock()
	if m.session == s {
		m.session = nil
	}
	m.mu.Unlock()

	m.logger.Error("connection attempt failed", "session", s.ID, "profile", s.Profile.Name, "error", err)
	s.finish(err)
}

// classify wraps a collaborator error with the failure kind of its origin
// unless it already carries one, so AuthFailed reported by the engine (the
// endpoint rejecting the assertion) is not masked as an engine error and
// cancellation stays recognizable.
func classify(err error, kind error) error {
	switch {
	case errors.Is(err, common.ErrAuthFailed),
		errors.Is(err, common.ErrEngine),
		errors.Is(err, context.Canceled),
		errors.Is(err, context.DeadlineExceeded):
		return err
	default:
		return fmt.Errorf("%w: %w", kind, err)
	}
}
