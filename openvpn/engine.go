// Package openvpn drives the OpenVPN process for AWS Client VPN endpoints:
// probing for the SAML challenge, starting the detached tunnel process, and
// controlling it through the management interface.
package openvpn

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/jgoulard/awsvpnclient-cli/common"
)

// Options configures the engine.
type Options struct {
	// BinaryPath is the openvpn binary. Empty means PATH lookup.
	BinaryPath string
	// ManagementHost is where the tunnel's management interface binds.
	ManagementHost string
	// ManagementPort is the management interface TCP port. The fixed port
	// doubles as the at-most-one-tunnel guard across CLI invocations.
	ManagementPort int
	// ProbeTimeout bounds the SAML challenge probe.
	ProbeTimeout time.Duration
	// LogPath is where the tunnel process output is appended. Empty means
	// the output is discarded.
	LogPath string
}

// Engine implements common.Engine over the openvpn binary.
type Engine struct {
	binary       string
	mgmt         *ManagementClient
	probeTimeout time.Duration
	logPath      string
	logger       *slog.Logger
}

// NewEngine builds an engine, resolving the openvpn binary if no explicit
// path is configured.
func NewEngine(opts Options, logger *slog.Logger) (*Engine, error) {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	logger = logger.With("component", "openvpn")

	binary := opts.BinaryPath
	if binary == "" {
		path, err := exec.LookPath("openvpn")
		if err != nil {
			return nil, fmt.Errorf("%w: openvpn binary not found in PATH", common.ErrEngine)
		}
		binary = path
	}

	host := opts.ManagementHost
	if host == "" {
		host = common.DefaultManagementHost
	}
	port := opts.ManagementPort
	if port == 0 {
		port = common.DefaultManagementPort
	}
	probeTimeout := opts.ProbeTimeout
	if probeTimeout <= 0 {
		probeTimeout = common.ProbeTimeout
	}

	return &Engine{
		binary:       binary,
		mgmt:         NewManagementClient(host, port, common.ManagementTimeout, logger),
		probeTimeout: probeTimeout,
		logPath:      opts.LogPath,
		logger:       logger,
	}, nil
}

// Probe contacts the endpoint with throwaway credentials that advertise the
// local assertion consumer port. The endpoint rejects them with an
// AUTH_FAILED control message carrying the CRV1 challenge, so a non-zero
// exit is the expected outcome as long as the challenge is in the output.
func (e *Engine) Probe(ctx context.Context, configPath string, acsPort int) (*common.Challenge, error) {
	ctx, cancel := context.WithTimeout(ctx, e.probeTimeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, e.binary,
		"--config", configPath,
		"--verb", "3",
		"--auth-retry", "none",
		"--auth-user-pass", "/dev/stdin",
	)
	cmd.Stdin = newRepeatingReader(fmt.Sprintf("N/A\nACS::%d\n", acsPort))

	output := &bytes.Buffer{}
	cmd.Stdout = output
	cmd.Stderr = output

	e.logger.Debug("probing endpoint for SAML challenge", "config", configPath, "acs_port", acsPort)

	runErr := cmd.Run()

	challenge, err := ParseChallenge(output.String())
	if err != nil {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("%w: challenge probe timed out: %w", common.ErrEngine, ctx.Err())
		}
		if runErr != nil {
			return nil, fmt.Errorf("%w: challenge probe failed: %w", common.ErrEngine, runErr)
		}
		return nil, err
	}

	e.logger.Debug("challenge received", "sid", challenge.SID)

	return challenge, nil
}

// Start launches the tunnel process with the credential response and returns
// a handle resolving when the management interface reports the tunnel up or
// the process exits. The process is detached so the tunnel survives the CLI
// exiting; the credentials file is removed once the outcome is known.
func (e *Engine) Start(ctx context.Context, configPath string, creds *common.Credentials) (common.Handle, error) {
	if creds == nil || creds.Assertion == "" {
		return nil, fmt.Errorf("%w: missing credentials", common.ErrEngine)
	}

	credDir, err := os.MkdirTemp("", "awsvpn-")
	if err != nil {
		return nil, fmt.Errorf("%w: failed to create credentials directory: %w", common.ErrEngine, err)
	}
	credFile := filepath.Join(credDir, "credentials")
	response := fmt.Sprintf("N/A\nCRV1::%s::%s\n", creds.SID, creds.Assertion)
	if err := os.WriteFile(credFile, []byte(response), 0600); err != nil {
		os.RemoveAll(credDir)
		return nil, fmt.Errorf("%w: failed to write credentials file: %w", common.ErrEngine, err)
	}

	logSink, err := e.openLogSink()
	if err != nil {
		os.RemoveAll(credDir)
		return nil, err
	}
	// The log is appended to across invocations; remember where this run's
	// output begins so an exit is classified from it alone.
	var logOffset int64
	if fi, err := logSink.Stat(); err == nil {
		logOffset = fi.Size()
	}

	cmd := exec.Command(e.binary,
		"--config", configPath,
		"--verb", "3",
		"--auth-nocache",
		"--auth-user-pass", credFile,
		"--management", e.mgmt.host, strconv.Itoa(e.mgmt.port),
	)
	cmd.Stdout = logSink
	cmd.Stderr = logSink
	// Detach from the CLI's session so the tunnel outlives this process.
	cmd.SysProcAttr = &syscall.SysProcAttr{Setsid: true}

	if err := cmd.Start(); err != nil {
		logSink.Close()
		os.RemoveAll(credDir)
		return nil, fmt.Errorf("%w: failed to start openvpn: %w", common.ErrEngine, err)
	}

	e.logger.Info("openvpn started", "pid", cmd.Process.Pid, "config", configPath)

	h := &Handle{pid: cmd.Process.Pid, done: make(chan struct{})}
	go e.watch(ctx, h, cmd, credDir, logSink, logOffset)

	return h, nil
}

// Status reports the live tunnel through the management interface.
func (e *Engine) Status(ctx context.Context) (*common.TunnelState, error) {
	return e.mgmt.State(ctx)
}

// Stop asks the live tunnel to terminate through the management interface.
func (e *Engine) Stop(ctx context.Context) error {
	return e.mgmt.Signal(ctx, "SIGTERM")
}

// watch resolves the handle: establishment reported over the management
// socket wins, an early process exit is classified from the log output, and
// cancellation tears the process down.
func (e *Engine) watch(ctx context.Context, h *Handle, cmd *exec.Cmd, credDir string, logSink *os.File, logOffset int64) {
	defer os.RemoveAll(credDir)
	defer logSink.Close()

	exitCh := make(chan error, 1)
	go func() { exitCh <- cmd.Wait() }()

	watchCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	connCh := make(chan error, 1)
	go func() { connCh <- e.mgmt.WaitEstablished(watchCtx) }()

	select {
	case exitErr := <-exitCh:
		h.finish(e.classifyExit(exitErr, logOffset))
	case err := <-connCh:
		if err != nil {
			// No tunnel came up; don't leave the process lingering.
			_ = cmd.Process.Signal(syscall.SIGTERM)
			h.finish(err)
			return
		}
		h.finish(nil)
	case <-ctx.Done():
		_ = cmd.Process.Signal(syscall.SIGTERM)
		h.finish(ctx.Err())
	}
}

func (e *Engine) openLogSink() (*os.File, error) {
	path := e.logPath
	if path == "" {
		path = os.DevNull
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0600)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to open engine log %s: %w", common.ErrEngine, path, err)
	}
	return f, nil
}

// classifyExit decides whether an early process exit was an authentication
// rejection or an engine failure, from the output this run appended to the
// log. Earlier invocations share the file, so anything before logOffset is
// ignored.
func (e *Engine) classifyExit(exitErr error, logOffset int64) error {
	if e.logPath != "" {
		if data, err := os.ReadFile(e.logPath); err == nil && int64(len(data)) > logOffset {
			if strings.Contains(string(data[logOffset:]), "AUTH_FAILED") {
				return fmt.Errorf("%w: endpoint rejected the SAML assertion", common.ErrAuthFailed)
			}
		}
	}
	if exitErr != nil {
		return fmt.Errorf("%w: openvpn exited: %w", common.ErrEngine, exitErr)
	}
	return fmt.Errorf("%w: openvpn exited before the tunnel was established", common.ErrEngine)
}

// Handle is an in-flight tunnel establishment. It implements common.Handle.
type Handle struct {
	pid  int
	mu   sync.Mutex
	err  error
	done chan struct{}
	set  bool
}

// Done returns a channel closed when establishment finishes.
func (h *Handle) Done() <-chan struct{} {
	return h.done
}

// Err returns the establishment outcome once Done is closed.
func (h *Handle) Err() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.err
}

// PID returns the tunnel process id.
func (h *Handle) PID() int {
	return h.pid
}

func (h *Handle) finish(err error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.set {
		return
	}
	h.set = true
	h.err = err
	close(h.done)
}

// repeatingReader yields its content over and over. The probe feeds it to
// openvpn's stdin so every credential prompt sees the same two lines.
type repeatingReader struct {
	data []byte
	off  int
}

func newRepeatingReader(s string) *repeatingReader {
	return &repeatingReader{data: []byte(s)}
}

func (r *repeatingReader) Read(p []byte) (int, error) {
	for i := range p {
		p[i] = r.data[r.off]
		r.off = (r.off + 1) % len(r.data)
	}
	return len(p), nil
}
