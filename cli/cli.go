// Package cli implements the command facade for the AWS VPN client CLI.
// It validates user input and translates each subcommand into calls on the
// profile store and the connection manager; it holds no state of its own.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/jgoulard/awsvpnclient-cli/common"
	"github.com/jgoulard/awsvpnclient-cli/vpn"
)

// CLI translates subcommands into store and manager calls. Output goes to
// the injected writer so tests can capture it. The manager and engine are
// only needed for connection commands and may be nil for profile CRUD.
type CLI struct {
	store   *vpn.Store
	manager *vpn.Manager
	engine  common.Engine
	out     io.Writer
	logger  *slog.Logger
}

// New creates a command facade.
func New(store *vpn.Store, manager *vpn.Manager, engine common.Engine, out io.Writer, logger *slog.Logger) *CLI {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &CLI{
		store:   store,
		manager: manager,
		engine:  engine,
		out:     out,
		logger:  logger.With("component", "cli"),
	}
}

// ListProfiles prints the profile names, one per line, in insertion order.
func (c *CLI) ListProfiles() error {
	profiles, err := c.store.List()
	if err != nil {
		return err
	}

	if len(profiles) == 0 {
		fmt.Fprintln(c.out, "No VPN profiles configured.")
		return nil
	}

	for _, p := range profiles {
		fmt.Fprintln(c.out, p.Name)
	}
	return nil
}

// AddProfile validates the pair and persists it. Validation order: name,
// path, file existence, each short-circuiting. A file that does not look
// like an OpenVPN client config is logged as a warning but still accepted.
func (c *CLI) AddProfile(name, configPath string) error {
	if strings.TrimSpace(name) == "" {
		return common.Failure(common.ErrInvalidInput, "Profile name is required")
	}
	if strings.TrimSpace(configPath) == "" {
		return common.Failure(common.ErrInvalidInput, "Config file path is required")
	}
	if !common.IsRegularFile(configPath) {
		return common.Failure(common.ErrInvalidInput, "Config file not found: %s", configPath)
	}

	if err := vpn.ValidateConfigFile(configPath); err != nil {
		c.logger.Warn("file does not look like an OpenVPN client config",
			"path", configPath, "reason", err)
	}

	profile, err := c.store.Add(name, configPath)
	if err != nil {
		return err
	}

	fmt.Fprintf(c.out, "Profile %q added.\n", profile.Name)
	return nil
}

// RemoveProfile deletes the named profile.
func (c *CLI) RemoveProfile(name string) error {
	if strings.TrimSpace(name) == "" {
		return common.Failure(common.ErrInvalidInput, "Profile name is required")
	}

	if err := c.store.Remove(name); err != nil {
		return err
	}

	fmt.Fprintf(c.out, "Profile %q removed.\n", name)
	return nil
}

// Connect resolves the profile by exact name, re-verifies its config file,
// and drives a connection attempt to completion, printing state
// transitions as they happen.
func (c *CLI) Connect(ctx context.Context, name string) error {
	if strings.TrimSpace(name) == "" {
		return common.Failure(common.ErrInvalidInput, "Profile name is required")
	}

	profiles, err := c.store.List()
	if err != nil {
		return err
	}
	var profile *vpn.Profile
	for i := range profiles {
		if profiles[i].Name == name {
			profile = &profiles[i]
			break
		}
	}
	if profile == nil {
		return common.Failure(common.ErrProfileNotFound, "Profile not found: %s", name)
	}

	// The file existed when the profile was added; check again in case it
	// moved since.
	if !common.IsRegularFile(profile.ConfigPath) {
		return common.Failure(common.ErrConfigNotFound, "Config file not found: %s", profile.ConfigPath)
	}

	c.manager.SetStateHandler(func(_, state vpn.State) {
		fmt.Fprintln(c.out, state)
	})

	fmt.Fprintf(c.out, "Connecting to %s...\n", profile.Name)

	session, err := c.manager.Connect(ctx, profile)
	if err != nil {
		return err
	}
	if err := session.Wait(); err != nil {
		return err
	}

	fmt.Fprintf(c.out, "✓ Connected to %s\n", profile.Name)

	if err := c.store.MarkUsed(profile.Name); err != nil {
		c.logger.Warn("could not record profile use", "name", profile.Name, "error", err)
	}
	return nil
}

// Disconnect tears down the active tunnel.
func (c *CLI) Disconnect(ctx context.Context) error {
	if err := c.manager.Disconnect(ctx); err != nil {
		return err
	}

	fmt.Fprintln(c.out, "✓ Disconnected")
	return nil
}

// Status reports the live tunnel state, or that no connection is active.
// Informational: an absent tunnel is not an error.
func (c *CLI) Status(ctx context.Context) error {
	state, err := c.engine.Status(ctx)
	if errors.Is(err, common.ErrNoActiveConnection) {
		fmt.Fprintln(c.out, "No active VPN connection.")
		return nil
	}
	if err != nil {
		return err
	}

	uptime := "-"
	if state.Connected() && !state.Since.IsZero() {
		uptime = formatDuration(time.Since(state.Since))
	}
	local := state.LocalAddr
	if local == "" {
		local = "-"
	}
	remote := state.RemoteAddr
	if remote == "" {
		remote = "-"
	}

	w := tabwriter.NewWriter(c.out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "STATE\tDESCRIPTION\tLOCAL\tREMOTE\tUPTIME")
	fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", state.State, state.Description, local, remote, uptime)
	return w.Flush()
}

// formatDuration formats a duration in a human-readable format.
func formatDuration(d time.Duration) string {
	hours := int(d.Hours())
	minutes := int(d.Minutes()) % 60
	seconds := int(d.Seconds()) % 60

	if hours > 0 {
		return fmt.Sprintf("%dh %dm %ds", hours, minutes, seconds)
	}
	if minutes > 0 {
		return fmt.Sprintf("%dm %ds", minutes, seconds)
	}
	return fmt.Sprintf("%ds", seconds)
}
