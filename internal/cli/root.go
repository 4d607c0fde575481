// Package cli implements the goportal command line client.
package cli

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	goPortal "github.com/MrEthical07/goPortal"
)

// app carries the state shared by every subcommand of one invocation.
type app struct {
	cfgFile     string
	baseURL     string
	credentials string
	verbose     bool
	noColor     bool

	cfg     goPortal.Config
	logger  *slog.Logger
	printer *printer
	client  *goPortal.Client

	// build is replaced in tests to inject an HTTP client.
	build func(*goPortal.Builder) *goPortal.Builder
}

// NewRootCommand returns the goportal command tree.
func NewRootCommand() *cobra.Command {
	a := &app{}

	root := &cobra.Command{
		Use:   "goportal",
		Short: "Waste-management portal session client",
		Long: `goportal signs in to the portal backend, keeps the credential pair on
disk between invocations and issues authenticated calls with automatic renewal.

Example usage:
  goportal login -u clerk          # Sign in and store credentials
  goportal whoami --permissions    # Show the resolved session
  goportal roles                   # List the role catalog
  goportal call GET /api/pickups/  # Authenticated request
  goportal logout                  # Forget stored credentials`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.init(cmd)
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			return a.close()
		},
	}

	flags := root.PersistentFlags()
	flags.StringVar(&a.cfgFile, "config", "", "config file (default is .goportal.yaml)")
	flags.StringVar(&a.baseURL, "base-url", "", "backend base URL (overrides config)")
	flags.StringVar(&a.credentials, "credentials", defaultCredentialsPath(), "credential file used when the config selects the memory store")
	flags.BoolVarP(&a.verbose, "verbose", "v", false, "verbose output")
	flags.BoolVar(&a.noColor, "no-color", false, "disable colored output")

	root.AddCommand(
		newLoginCommand(a),
		newWhoamiCommand(a),
		newRolesCommand(a),
		newCallCommand(a),
		newLogoutCommand(a),
		newVersionCommand(),
	)
	return root
}

// Execute runs the command tree with ctx.
func Execute(ctx context.Context) error {
	return NewRootCommand().ExecuteContext(ctx)
}

func defaultCredentialsPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return ".goportal-credentials.json"
	}
	return filepath.Join(dir, "goportal", "credentials.json")
}

// init loads configuration and the logger.
func (a *app) init(cmd *cobra.Command) error {
	a.printer = newPrinter(cmd.OutOrStdout(), cmd.ErrOrStderr(), a.noColor)

	cfg, err := goPortal.LoadConfig(a.cfgFile)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	if a.baseURL != "" {
		cfg.Backend.BaseURL = a.baseURL
	}
	if a.verbose {
		cfg.Logging.Level = "debug"
	}
	// A memory store forgets the session when the process exits.
	if cfg.Store.Kind == goPortal.StoreMemory {
		cfg.Store.Kind = goPortal.StoreFile
		cfg.Store.FilePath = a.credentials
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("validating config: %w", err)
	}
	a.cfg = cfg

	logger, err := goPortal.NewLogger(cfg.Logging, cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	a.logger = logger
	a.logger.Debug("configuration loaded",
		"base_url", cfg.Backend.BaseURL,
		"store", cfg.Store.Kind,
		"credentials", cfg.Store.FilePath,
	)
	return nil
}

// portal builds the client on first use.
func (a *app) portal() (*goPortal.Client, error) {
	if a.client != nil {
		return a.client, nil
	}
	b := goPortal.New().WithConfig(a.cfg).WithLogger(a.logger)
	if a.build != nil {
		b = a.build(b)
	}
	client, err := b.Build()
	if err != nil {
		return nil, fmt.Errorf("building client: %w", err)
	}
	a.client = client
	return client, nil
}

func (a *app) close() error {
	if a.client == nil {
		return nil
	}
	err := a.client.Close()
	a.client = nil
	return err
}

// readLine reads one line from r without the trailing newline.
func readLine(r io.Reader) (string, error) {
	line, err := bufio.NewReader(r).ReadString('\n')
	if err != nil && err != io.EOF {
		return "", err
	}
	return strings.TrimRight(line, "\r\n"), nil
}
