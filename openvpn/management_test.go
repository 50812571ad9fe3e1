package openvpn

import (
	"bufio"
	"context"
	"errors"
	"net"
	"strings"
	"testing"
	"time"

	"github.com/jgoulard/awsvpnclient-cli/common"
)

// scriptedManagement runs a fake management interface that serves a single
// connection with the given script and returns a client pointed at it.
func scriptedManagement(t *testing.T, script func(t *testing.T, conn net.Conn)) *ManagementClient {
	t.Helper()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("Listen() error = %v", err)
	}
	t.Cleanup(func() { ln.Close() })

	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		script(t, conn)
	}()

	addr := ln.Addr().(*net.TCPAddr)
	return NewManagementClient("127.0.0.1", addr.Port, 2*time.Second, nil)
}

// closedPortClient returns a client pointed at a port nothing listens on.
func closedPortClient(t *testing.T) *ManagementClient {
	t.Helper()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("Listen() error = %v", err)
	}
	port := ln.Addr().(*net.TCPAddr).Port
	ln.Close()

	return NewManagementClient("127.0.0.1", port, 500*time.Millisecond, nil)
}

func expectLine(t *testing.T, r *bufio.Reader, want string) {
	t.Helper()
	line, err := r.ReadString('\n')
	if err != nil {
		t.Errorf("script read error: %v", err)
		return
	}
	if got := strings.TrimSpace(line); got != want {
		t.Errorf("management received %q, want %q", got, want)
	}
}

func TestManagementState(t *testing.T) {
	client := scriptedManagement(t, func(t *testing.T, conn net.Conn) {
		conn.Write([]byte(">INFO:OpenVPN Management Interface Version 3 -- type 'help' for more info\r\n"))
		r := bufio.NewReader(conn)
		expectLine(t, r, "state")
		conn.Write([]byte("1724500000,CONNECTED,SUCCESS,10.0.0.2,3.1.2.3\r\nEND\r\n"))
	})

	state, err := client.State(context.Background())
	if err != nil {
		t.Fatalf("State() error = %v", err)
	}

	if !state.Connected() {
		t.Errorf("Connected() = false, want true (state %q)", state.State)
	}
	if state.Description != "SUCCESS" {
		t.Errorf("Description = %q, want SUCCESS", state.Description)
	}
	if state.LocalAddr != "10.0.0.2" || state.RemoteAddr != "3.1.2.3" {
		t.Errorf("addrs = %q/%q, want 10.0.0.2/3.1.2.3", state.LocalAddr, state.RemoteAddr)
	}
	if got := state.Since.Unix(); got != 1724500000 {
		t.Errorf("Since = %d, want 1724500000", got)
	}
}

func TestManagementStateRefusedDial(t *testing.T) {
	client := closedPortClient(t)

	_, err := client.State(context.Background())
	if !errors.Is(err, common.ErrNoActiveConnection) {
		t.Errorf("State() error = %v, want %v", err, common.ErrNoActiveConnection)
	}
}

func TestManagementStateEmptyReply(t *testing.T) {
	client := scriptedManagement(t, func(t *testing.T, conn net.Conn) {
		conn.Write([]byte(">INFO:greeting\r\nEND\r\n"))
	})

	_, err := client.State(context.Background())
	if !errors.Is(err, common.ErrEngine) {
		t.Errorf("State() error = %v, want %v", err, common.ErrEngine)
	}
}

func TestManagementSignal(t *testing.T) {
	client := scriptedManagement(t, func(t *testing.T, conn net.Conn) {
		conn.Write([]byte(">INFO:greeting\r\n"))
		r := bufio.NewReader(conn)
		expectLine(t, r, "signal SIGTERM")
		conn.Write([]byte("SUCCESS: signal SIGTERM thrown\r\n"))
	})

	if err := client.Signal(context.Background(), "SIGTERM"); err != nil {
		t.Errorf("Signal() error = %v", err)
	}
}

func TestManagementSignalError(t *testing.T) {
	client := scriptedManagement(t, func(t *testing.T, conn net.Conn) {
		conn.Write([]byte("ERROR: unknown command\r\n"))
	})

	err := client.Signal(context.Background(), "SIGTERM")
	if !errors.Is(err, common.ErrEngine) {
		t.Errorf("Signal() error = %v, want %v", err, common.ErrEngine)
	}
}

func TestManagementSignalRefusedDial(t *testing.T) {
	client := closedPortClient(t)

	err := client.Signal(context.Background(), "SIGTERM")
	if !errors.Is(err, common.ErrNoActiveConnection) {
		t.Errorf("Signal() error = %v, want %v", err, common.ErrNoActiveConnection)
	}
}

func TestWaitEstablishedConnected(t *testing.T) {
	client := scriptedManagement(t, func(t *testing.T, conn net.Conn) {
		conn.Write([]byte(">INFO:greeting\r\n"))
		conn.Write([]byte("SUCCESS: real-time state notification set to ON\r\n"))
		conn.Write([]byte(">STATE:1724500000,WAIT,,,\r\n"))
		conn.Write([]byte(">STATE:1724500001,AUTH,,,\r\n"))
		conn.Write([]byte(">STATE:1724500002,CONNECTED,SUCCESS,10.0.0.2,3.1.2.3\r\n"))
		// Keep the connection open until the client is done.
		buf := make([]byte, 64)
		conn.Read(buf)
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.WaitEstablished(ctx); err != nil {
		t.Errorf("WaitEstablished() error = %v", err)
	}
}

func TestWaitEstablishedAuthFailure(t *testing.T) {
	client := scriptedManagement(t, func(t *testing.T, conn net.Conn) {
		conn.Write([]byte(">INFO:greeting\r\n"))
		conn.Write([]byte(">STATE:1724500000,WAIT,,,\r\n"))
		conn.Write([]byte(">STATE:1724500001,RECONNECTING,auth-failure,,\r\n"))
		buf := make([]byte, 64)
		conn.Read(buf)
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	err := client.WaitEstablished(ctx)
	if !errors.Is(err, common.ErrAuthFailed) {
		t.Errorf("WaitEstablished() error = %v, want %v", err, common.ErrAuthFailed)
	}
}

func TestWaitEstablishedCancelled(t *testing.T) {
	client := closedPortClient(t)

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	err := client.WaitEstablished(ctx)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("WaitEstablished() error = %v, want %v", err, context.DeadlineExceeded)
	}
}

func TestParseStateLine(t *testing.T) {
	tests := []struct {
		name string
		line string
		ok   bool
		want string
	}{
		{"connected", "1724500000,CONNECTED,SUCCESS,10.0.0.2,3.1.2.3", true, "CONNECTED"},
		{"minimal", "1724500000,WAIT", true, "WAIT"},
		{"no timestamp", "CONNECTED,SUCCESS", false, ""},
		{"empty", "", false, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			state, ok := parseStateLine(tt.line)
			if ok != tt.ok {
				t.Fatalf("parseStateLine(%q) ok = %v, want %v", tt.line, ok, tt.ok)
			}
			if ok && state.State != tt.want {
				t.Errorf("State = %q, want %q", state.State, tt.want)
			}
		})
	}
}

func TestParseStateUpdate(t *testing.T) {
	if state, ok := parseStateUpdate(">STATE:1724500000,CONNECTED,SUCCESS,10.0.0.2,3.1.2.3"); !ok || state.State != "CONNECTED" {
		t.Errorf("parseStateUpdate(push) = %v, %v", state, ok)
	}
	if state, ok := parseStateUpdate("1724500000,CONNECTED,SUCCESS,10.0.0.2,3.1.2.3"); !ok || state.State != "CONNECTED" {
		t.Errorf("parseStateUpdate(bare) = %v, %v", state, ok)
	}
	if _, ok := parseStateUpdate("SUCCESS: real-time state notification set to ON"); ok {
		t.Error("parseStateUpdate should ignore command replies")
	}
}
