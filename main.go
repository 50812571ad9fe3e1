// Command awsvpn manages AWS Client VPN connection profiles and drives a
// single OpenVPN connection with SAML single sign-on from the terminal.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/urfave/cli/v2"

	vpncli "github.com/jgoulard/awsvpnclient-cli/cli"
	"github.com/jgoulard/awsvpnclient-cli/common"
	"github.com/jgoulard/awsvpnclient-cli/config"
	"github.com/jgoulard/awsvpnclient-cli/openvpn"
	"github.com/jgoulard/awsvpnclient-cli/saml"
	"github.com/jgoulard/awsvpnclient-cli/vpn"
)

// Build-time variables injected via ldflags (-X main.version=x.y.z).
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newApp().RunContext(ctx, os.Args); err != nil {
		// cli.Exit errors are handled by urfave before this; anything else
		// still gets one readable line and the taxonomy exit code.
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(common.ExitCode(err))
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:    common.AppName,
		Usage:   "manage AWS Client VPN profiles and connections",
		Version: fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date),
		Flags:   globalFlags(),
		Before:  setup,
		After:   teardown,
		Commands: []*cli.Command{
			listProfilesCommand(),
			addProfileCommand(),
			removeProfileCommand(),
			connectCommand(),
			disconnectCommand(),
			statusCommand(),
		},
	}
}

func globalFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "config",
			Aliases: []string{"c"},
			Usage:   "settings file (default: config.yaml in the per-user directory)",
		},
		&cli.StringFlag{
			Name:  "data-dir",
			Usage: "directory holding the profile database (default: per-user directory)",
		},
		&cli.StringFlag{
			Name:  "log-level",
			Usage: "minimum log level: debug, info, warn, error",
		},
		&cli.StringFlag{
			Name:  "log-format",
			Usage: "log output format: auto, text, json",
		},
		&cli.BoolFlag{
			Name:  "no-color",
			Usage: "disable colored log output",
		},
	}
}

// setup loads the settings, builds the logger, and opens the profile store.
// Everything the subcommands share lives in App.Metadata.
func setup(c *cli.Context) error {
	cfg, err := config.Load(c.String("config"))
	if err != nil {
		return exitErr(err)
	}
	if c.IsSet("log-level") {
		cfg.LogLevel = c.String("log-level")
	}
	if c.IsSet("log-format") {
		cfg.LogFormat = c.String("log-format")
	}

	logger := common.NewLogger(common.LogConfig{
		Level:   cfg.LogLevel,
		Format:  cfg.LogFormat,
		NoColor: c.Bool("no-color"),
	})

	dataDir := c.String("data-dir")
	if dataDir == "" {
		dataDir, err = common.GetConfigDir()
		if err != nil {
			return exitErr(err)
		}
	}

	store, err := vpn.OpenStore(filepath.Join(dataDir, common.ProfilesDBFileName), logger)
	if err != nil {
		return exitErr(err)
	}

	c.App.Metadata["config"] = cfg
	c.App.Metadata["logger"] = logger
	c.App.Metadata["store"] = store
	c.App.Metadata["dataDir"] = dataDir
	return nil
}

func teardown(c *cli.Context) error {
	if store, ok := c.App.Metadata["store"].(*vpn.Store); ok {
		return store.Close()
	}
	return nil
}

func listProfilesCommand() *cli.Command {
	return &cli.Command{
		Name:  "list-profiles",
		Usage: "list the configured profile names",
		Action: func(c *cli.Context) error {
			front := newProfileFacade(c)
			if err := front.ListProfiles(); err != nil {
				return exitErr(err)
			}
			return nil
		},
	}
}

func addProfileCommand() *cli.Command {
	return &cli.Command{
		Name:      "add-profile",
		Usage:     "add a named profile for an OpenVPN config file",
		ArgsUsage: "<profile-name> <config-file>",
		Action: func(c *cli.Context) error {
			if c.NArg() != 2 {
				return cli.Exit("Usage: awsvpn add-profile <profile-name> <config-file>", common.ExitInvalidInput)
			}
			front := newProfileFacade(c)
			if err := front.AddProfile(c.Args().Get(0), c.Args().Get(1)); err != nil {
				return exitErr(err)
			}
			return nil
		},
	}
}

func removeProfileCommand() *cli.Command {
	return &cli.Command{
		Name:      "remove-profile",
		Usage:     "remove a named profile",
		ArgsUsage: "<profile-name>",
		Action: func(c *cli.Context) error {
			if c.NArg() != 1 {
				return cli.Exit("Usage: awsvpn remove-profile <profile-name>", common.ExitInvalidInput)
			}
			front := newProfileFacade(c)
			if err := front.RemoveProfile(c.Args().First()); err != nil {
				return exitErr(err)
			}
			return nil
		},
	}
}

func connectCommand() *cli.Command {
	return &cli.Command{
		Name:      "connect",
		Usage:     "authenticate and establish the tunnel for a profile",
		ArgsUsage: "<profile-name>",
		Action: func(c *cli.Context) error {
			if c.NArg() != 1 {
				return cli.Exit("Usage: awsvpn connect <profile-name>", common.ExitInvalidInput)
			}
			front, err := newConnectionFacade(c)
			if err != nil {
				return exitErr(err)
			}

			ctx := c.Context
			if d := getConfig(c).ConnectTimeout.Std(); d > 0 {
				var cancel context.CancelFunc
				ctx, cancel = context.WithTimeout(ctx, d)
				defer cancel()
			}

			if err := front.Connect(ctx, c.Args().First()); err != nil {
				return exitErr(err)
			}
			return nil
		},
	}
}

func disconnectCommand() *cli.Command {
	return &cli.Command{
		Name:  "disconnect",
		Usage: "tear down the active tunnel",
		Action: func(c *cli.Context) error {
			front, err := newConnectionFacade(c)
			if err != nil {
				return exitErr(err)
			}
			if err := front.Disconnect(c.Context); err != nil {
				return exitErr(err)
			}
			return nil
		},
	}
}

func statusCommand() *cli.Command {
	return &cli.Command{
		Name:  "status",
		Usage: "report the live tunnel state",
		Action: func(c *cli.Context) error {
			front, err := newConnectionFacade(c)
			if err != nil {
				return exitErr(err)
			}
			if err := front.Status(c.Context); err != nil {
				return exitErr(err)
			}
			return nil
		},
	}
}

// newProfileFacade builds a facade for the profile CRUD commands, which
// never touch the openvpn binary.
func newProfileFacade(c *cli.Context) *vpncli.CLI {
	return vpncli.New(getStore(c), nil, nil, c.App.Writer, getLogger(c))
}

// newConnectionFacade additionally wires the engine driver, the SAML
// authenticator, and the connection manager.
func newConnectionFacade(c *cli.Context) (*vpncli.CLI, error) {
	cfg := getConfig(c)
	logger := getLogger(c)
	dataDir, _ := c.App.Metadata["dataDir"].(string)

	engine, err := openvpn.NewEngine(openvpn.Options{
		BinaryPath:     cfg.OpenVPNPath,
		ManagementHost: cfg.ManagementHost,
		ManagementPort: cfg.ManagementPort,
		ProbeTimeout:   cfg.ProbeTimeout.Std(),
		LogPath:        filepath.Join(dataDir, common.EngineLogFileName),
	}, logger)
	if err != nil {
		return nil, err
	}

	auth := saml.New(saml.Options{
		Ports:          cfg.ACSPorts,
		BrowserCommand: cfg.BrowserCommand,
		Timeout:        cfg.AuthTimeout.Std(),
	}, logger)

	manager := vpn.NewManager(engine, auth, logger)

	return vpncli.New(getStore(c), manager, engine, c.App.Writer, logger), nil
}

func getConfig(c *cli.Context) *config.Config {
	if cfg, ok := c.App.Metadata["config"].(*config.Config); ok {
		return cfg
	}
	return config.DefaultConfig()
}

func getLogger(c *cli.Context) *slog.Logger {
	if logger, ok := c.App.Metadata["logger"].(*slog.Logger); ok {
		return logger
	}
	return nil
}

func getStore(c *cli.Context) *vpn.Store {
	store, _ := c.App.Metadata["store"].(*vpn.Store)
	return store
}

// exitErr converts a typed failure into a cli exit: one readable line on
// stderr and the taxonomy exit code.
func exitErr(err error) error {
	return cli.Exit(fmt.Sprintf("Error: %v", err), common.ExitCode(err))
}
