package openvpn

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/jgoulard/awsvpnclient-cli/common"
)

// ManagementClient speaks the line-oriented OpenVPN management protocol over
// TCP. A refused dial means no tunnel process is listening, which maps to
// ErrNoActiveConnection.
type ManagementClient struct {
	host    string
	port    int
	timeout time.Duration
	logger  *slog.Logger
}

// NewManagementClient builds a client for the management interface at
// host:port. The timeout bounds dials and single-command exchanges.
func NewManagementClient(host string, port int, timeout time.Duration, logger *slog.Logger) *ManagementClient {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &ManagementClient{
		host:    host,
		port:    port,
		timeout: timeout,
		logger:  logger.With("component", "management"),
	}
}

func (c *ManagementClient) addr() string {
	return net.JoinHostPort(c.host, strconv.Itoa(c.port))
}

func (c *ManagementClient) dial(ctx context.Context) (net.Conn, error) {
	d := net.Dialer{Timeout: c.timeout}
	conn, err := d.DialContext(ctx, "tcp", c.addr())
	if err != nil {
		return nil, fmt.Errorf("%w: management interface %s not reachable", common.ErrNoActiveConnection, c.addr())
	}
	return conn, nil
}

// State queries the current tunnel state with the "state" command.
func (c *ManagementClient) State(ctx context.Context) (*common.TunnelState, error) {
	conn, err := c.dial(ctx)
	if err != nil {
		return nil, err
	}
	defer conn.Close()
	conn.SetDeadline(time.Now().Add(c.timeout))

	if _, err := fmt.Fprint(conn, "state\n"); err != nil {
		return nil, fmt.Errorf("%w: management write failed: %w", common.ErrEngine, err)
	}

	var last *common.TunnelState
	reader := bufio.NewReader(conn)
	for {
		line, err := reader.ReadString('\n')
		if err != nil {
			return nil, fmt.Errorf("%w: management read failed: %w", common.ErrEngine, err)
		}
		line = strings.TrimSpace(line)

		switch {
		case line == "END":
			if last == nil {
				return nil, fmt.Errorf("%w: empty state reply", common.ErrEngine)
			}
			return last, nil
		case strings.HasPrefix(line, ">"):
			// Greeting banner or async notification; not part of the reply.
		case strings.HasPrefix(line, "ERROR"):
			return nil, fmt.Errorf("%w: management error: %s", common.ErrEngine, line)
		default:
			if state, ok := parseStateLine(line); ok {
				last = state
			}
		}
	}
}

// Signal sends a "signal" command (e.g. SIGTERM) to the tunnel process.
func (c *ManagementClient) Signal(ctx context.Context, name string) error {
	conn, err := c.dial(ctx)
	if err != nil {
		return err
	}
	defer conn.Close()
	conn.SetDeadline(time.Now().Add(c.timeout))

	if _, err := fmt.Fprintf(conn, "signal %s\n", name); err != nil {
		return fmt.Errorf("%w: management write failed: %w", common.ErrEngine, err)
	}

	reader := bufio.NewReader(conn)
	for {
		line, err := reader.ReadString('\n')
		if err != nil {
			return fmt.Errorf("%w: management read failed: %w", common.ErrEngine, err)
		}
		line = strings.TrimSpace(line)

		switch {
		case strings.HasPrefix(line, "SUCCESS"):
			c.logger.Debug("signal delivered", "signal", name)
			return nil
		case strings.HasPrefix(line, "ERROR"):
			return fmt.Errorf("%w: management error: %s", common.ErrEngine, line)
		}
	}
}

// WaitEstablished blocks until the tunnel reports CONNECTED, the endpoint
// rejects the credentials, or ctx is cancelled. The management listener
// appears shortly after process start, so refused dials and dropped streams
// are retried.
func (c *ManagementClient) WaitEstablished(ctx context.Context) error {
	ticker := time.NewTicker(500 * time.Millisecond)
	defer ticker.Stop()

	for {
		err := c.watchOnce(ctx)
		switch {
		case err == nil:
			return nil
		case errors.Is(err, common.ErrAuthFailed):
			return err
		case ctx.Err() != nil:
			return ctx.Err()
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

func (c *ManagementClient) watchOnce(ctx context.Context) error {
	d := net.Dialer{Timeout: c.timeout}
	conn, err := d.DialContext(ctx, "tcp", c.addr())
	if err != nil {
		return fmt.Errorf("%w: %w", common.ErrNoActiveConnection, err)
	}
	defer conn.Close()

	// Unblock the read below when the caller gives up.
	stop := context.AfterFunc(ctx, func() { conn.Close() })
	defer stop()

	// Subscribe to state pushes and ask for the current state in case the
	// tunnel came up before we attached.
	if _, err := fmt.Fprint(conn, "state on\nstate\n"); err != nil {
		return fmt.Errorf("%w: management write failed: %w", common.ErrEngine, err)
	}

	reader := bufio.NewReader(conn)
	for {
		line, err := reader.ReadString('\n')
		if err != nil {
			return fmt.Errorf("%w: management stream closed: %w", common.ErrEngine, err)
		}

		state, ok := parseStateUpdate(strings.TrimSpace(line))
		if !ok {
			continue
		}
		c.logger.Debug("tunnel state", "state", state.State, "description", state.Description)

		switch {
		case state.Connected():
			return nil
		case state.Description == "auth-failure":
			return fmt.Errorf("%w: endpoint rejected the SAML assertion", common.ErrAuthFailed)
		case state.State == "EXITING":
			return fmt.Errorf("%w: tunnel exiting: %s", common.ErrEngine, state.Description)
		}
	}
}

// parseStateUpdate accepts both pushed ">STATE:" notifications and the bare
// history lines a "state" query returns.
func parseStateUpdate(line string) (*common.TunnelState, bool) {
	const prefix = ">STATE:"
	if strings.HasPrefix(line, prefix) {
		return parseStateLine(strings.TrimPrefix(line, prefix))
	}
	if len(line) > 0 && line[0] >= '0' && line[0] <= '9' {
		return parseStateLine(line)
	}
	return nil, false
}

// parseStateLine parses "<unix-ts>,<state>,<description>,<local>,<remote>,...".
func parseStateLine(line string) (*common.TunnelState, bool) {
	fields := strings.Split(line, ",")
	if len(fields) < 2 {
		return nil, false
	}
	ts, err := strconv.ParseInt(fields[0], 10, 64)
	if err != nil {
		return nil, false
	}

	state := &common.TunnelState{
		State: fields[1],
		Since: time.Unix(ts, 0),
	}
	if len(fields) > 2 {
		state.Description = fields[2]
	}
	if len(fields) > 3 {
		state.LocalAddr = fields[3]
	}
	if len(fields) > 4 {
		state.RemoteAddr = fields[4]
	}
	return state, true
}
