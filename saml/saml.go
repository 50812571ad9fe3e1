// Package saml implements the browser-based SAML authentication flow for
// AWS Client VPN: a local assertion consumer listener receives the response
// the identity provider posts back after the user signs in.
package saml

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"os/exec"
	"runtime"
	"strconv"
	"sync"
	"time"

	"github.com/jgoulard/awsvpnclient-cli/common"
)

const completedPage = `<!DOCTYPE html>
<html>
<head><title>awsvpn</title></head>
<body><p>Authentication complete. You may close this window.</p></body>
</html>
`

// Options configures the authenticator.
type Options struct {
	// Ports are the local callback ports to try, in order. The endpoint
	// only redirects to ports it was told about in the probe, so these must
	// match what the engine advertises. Port 0 binds an ephemeral port
	// (useful in tests).
	Ports []int
	// BrowserCommand overrides the command used to open the sign-on URL.
	// Empty means the OS default opener.
	BrowserCommand string
	// Timeout bounds the wait for the identity provider's response.
	Timeout time.Duration
}

// Authenticator implements common.Authenticator. Listen must be called
// before Authenticate so the callback port is bound when the identity
// provider redirects to it.
type Authenticator struct {
	ports          []int
	browserCommand string
	timeout        time.Duration
	logger         *slog.Logger

	mu       sync.Mutex
	listener net.Listener
	server   *http.Server
	port     int

	assertions chan string
}

// New builds an authenticator.
func New(opts Options, logger *slog.Logger) *Authenticator {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	ports := opts.Ports
	if len(ports) == 0 {
		ports = []int{common.DefaultACSPort}
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = common.AuthTimeout
	}

	return &Authenticator{
		ports:          ports,
		browserCommand: opts.BrowserCommand,
		timeout:        timeout,
		logger:         logger.With("component", "saml"),
		// Buffered so the handler never blocks; the first response wins.
		assertions: make(chan string, 1),
	}
}

// Listen binds the assertion consumer listener on the first available
// configured port and returns the bound port.
func (a *Authenticator) Listen(ctx context.Context) (int, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.listener != nil {
		return a.port, nil
	}

	var lc net.ListenConfig
	for _, port := range a.ports {
		ln, err := lc.Listen(ctx, "tcp", net.JoinHostPort("127.0.0.1", strconv.Itoa(port)))
		if err != nil {
			a.logger.Debug("callback port unavailable", "port", port, "error", err)
			continue
		}

		mux := http.NewServeMux()
		mux.HandleFunc("/", a.handleAssertion)
		server := &http.Server{Handler: mux}
		go server.Serve(ln)

		a.listener = ln
		a.server = server
		a.port = ln.Addr().(*net.TCPAddr).Port
		a.logger.Info("assertion consumer listening", "port", a.port)
		return a.port, nil
	}

	return 0, fmt.Errorf("%w: no callback port available (tried %v)", common.ErrAuthFailed, a.ports)
}

// Authenticate opens the challenge URL in a browser and waits for the
// identity provider to deliver the assertion to the bound listener.
func (a *Authenticator) Authenticate(ctx context.Context, challenge *common.Challenge) (*common.Credentials, error) {
	a.mu.Lock()
	listening := a.listener != nil
	a.mu.Unlock()
	if !listening {
		return nil, fmt.Errorf("%w: callback listener not bound", common.ErrAuthFailed)
	}
	if challenge == nil || challenge.URL == "" {
		return nil, fmt.Errorf("%w: empty challenge", common.ErrAuthFailed)
	}

	if err := a.openBrowser(challenge.URL); err != nil {
		a.logger.Warn("could not open browser; open the sign-on URL manually",
			"url", challenge.URL, "error", err)
	} else {
		a.logger.Info("waiting for sign-on to complete in the browser")
	}

	timer := time.NewTimer(a.timeout)
	defer timer.Stop()

	select {
	case assertion := <-a.assertions:
		a.logger.Info("assertion received")
		return &common.Credentials{SID: challenge.SID, Assertion: assertion}, nil
	case <-timer.C:
		return nil, fmt.Errorf("%w: sign-on not completed within %s", common.ErrAuthFailed, a.timeout)
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Close releases the listener. Safe to call more than once.
func (a *Authenticator) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	server := a.server
	a.server = nil
	a.listener = nil
	if server == nil {
		return nil
	}
	return server.Close()
}

func (a *Authenticator) handleAssertion(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if err := r.ParseForm(); err != nil {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}

	assertion := r.PostFormValue("SAMLResponse")
	if assertion == "" {
		http.Error(w, "missing SAMLResponse", http.StatusBadRequest)
		return
	}

	select {
	case a.assertions <- assertion:
	default:
		a.logger.Debug("duplicate assertion ignored")
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	fmt.Fprint(w, completedPage)
}

func (a *Authenticator) openBrowser(url string) error {
	var cmd *exec.Cmd
	if a.browserCommand != "" {
		cmd = exec.Command(a.browserCommand, url)
	} else {
		switch runtime.GOOS {
		case "darwin":
			cmd = exec.Command("open", url)
		case "windows":
			cmd = exec.Command("rundll32", "url.dll,FileProtocolHandler", url)
		default:
			cmd = exec.Command("xdg-open", url)
		}
	}
	return cmd.Start()
}
