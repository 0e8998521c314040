package main

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/filecrate/filecrate-go/internal/api"
	"github.com/filecrate/filecrate-go/internal/cache"
	"github.com/filecrate/filecrate-go/internal/config"
	"github.com/filecrate/filecrate-go/internal/state"
	"github.com/filecrate/filecrate-go/internal/tokenstore"
)

// version is set at build time via ldflags.
var version = "dev"

// Global persistent flags, bound in newRootCmd().
var (
	flagConfigPath string
	flagServerURL  string
	flagDataDir    string
	flagJSON       bool
	flagVerbose    bool
	flagQuiet      bool
)

// resolvedCfg holds the effective configuration loaded by PersistentPreRunE.
// It is available to all subcommands after the root pre-run phase completes.
var resolvedCfg *config.Config

// httpClientTimeout is the default timeout for HTTP requests.
// Prevents hung connections from blocking CLI commands indefinitely.
const httpClientTimeout = 30 * time.Second

// defaultHTTPClient returns an HTTP client with a sensible timeout.
func defaultHTTPClient() *http.Client {
	return &http.Client{Timeout: httpClientTimeout}
}

// newRootCmd builds and returns the fully-assembled root command with all
// subcommands registered. Called once from main().
func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "filecrate",
		Short:   "File storage CLI client",
		Long:    "A CLI client for the filecrate storage service: upload, download, share, and watch.",
		Version: version,
		// Silence Cobra's default error/usage printing — we handle it ourselves.
		SilenceErrors: true,
		SilenceUsage:  true,
		PersistentPreRunE: func(_ *cobra.Command, _ []string) error {
			return loadConfig()
		},
	}

	cmd.PersistentFlags().StringVar(&flagConfigPath, "config", "", "config file path")
	cmd.PersistentFlags().StringVar(&flagServerURL, "server", "", "storage service base URL")
	cmd.PersistentFlags().StringVar(&flagDataDir, "data-dir", "", "data directory for the token and listing cache")
	cmd.PersistentFlags().BoolVar(&flagJSON, "json", false, "output in JSON format")
	cmd.PersistentFlags().BoolVarP(&flagVerbose, "verbose", "v", false, "enable debug logging")
	cmd.PersistentFlags().BoolVarP(&flagQuiet, "quiet", "q", false, "suppress informational output")

	// Register subcommands.
	cmd.AddCommand(newRegisterCmd())
	cmd.AddCommand(newLoginCmd())
	cmd.AddCommand(newLogoutCmd())
	cmd.AddCommand(newWhoamiCmd())
	cmd.AddCommand(newLsCmd())
	cmd.AddCommand(newStatsCmd())
	cmd.AddCommand(newPutCmd())
	cmd.AddCommand(newGetCmd())
	cmd.AddCommand(newRmCmd())
	cmd.AddCommand(newLinkCmd())
	cmd.AddCommand(newWatchCmd())
	cmd.AddCommand(newConfigCmd())

	return cmd
}

// loadConfig resolves the effective configuration from the override chain and
// stores the result in resolvedCfg for use by subcommands.
func loadConfig() error {
	cli := config.CLIOverrides{
		ConfigPath: flagConfigPath,
		ServerURL:  flagServerURL,
		DataDir:    flagDataDir,
	}

	resolved, err := config.Resolve(config.ReadEnvOverrides(), cli)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	resolvedCfg = resolved

	return nil
}

// buildLogger creates an slog.Logger configured by the resolved config and
// CLI flags. Config-file log level provides the baseline; --verbose and
// --quiet override it because CLI flags always win. Interactive terminals get
// the text handler; pipes and redirects get JSON for machine consumption.
func buildLogger() *slog.Logger {
	level := slog.LevelInfo

	if resolvedCfg != nil {
		switch resolvedCfg.LogLevel {
		case "debug":
			level = slog.LevelDebug
		case "warn":
			level = slog.LevelWarn
		case "error":
			level = slog.LevelError
		}
	}

	if flagVerbose {
		level = slog.LevelDebug
	}

	if flagQuiet {
		level = slog.LevelError
	}

	opts := &slog.HandlerOptions{Level: level}

	if isatty.IsTerminal(os.Stderr.Fd()) {
		return slog.New(slog.NewTextHandler(os.Stderr, opts))
	}

	return slog.New(slog.NewJSONHandler(os.Stderr, opts))
}

// app bundles the wired client-side components for one command invocation.
type app struct {
	cfg    *config.Config
	logger *slog.Logger
	store  *state.Store
	mgr    *state.Manager
	sync   *state.Synchronizer
	coord  *state.Coordinator
	cache  *cache.Cache
}

// newApp wires the session manager, API client, synchronizer, coordinator,
// and listing cache over the resolved config, then restores any persisted
// token. The returned app must be closed.
func newApp() (*app, error) {
	cfg := resolvedCfg
	logger := buildLogger()

	store := state.NewStore()
	mgr := state.NewManager(store, tokenstore.Path(cfg.DataDir), cfg.ScopedPaths, logger)

	client := api.NewClient(cfg.ServerURL, defaultHTTPClient(), mgr, logger)
	mgr.BindClient(client)

	if err := os.MkdirAll(cfg.DataDir, tokenstore.DirPerms); err != nil {
		return nil, fmt.Errorf("creating data directory %s: %w", cfg.DataDir, err)
	}

	listingCache, err := cache.Open(filepath.Join(cfg.DataDir, cache.FileName), logger)
	if err != nil {
		return nil, err
	}

	sync := state.NewSynchronizer(mgr, store, client, listingCache, logger)
	coord := state.NewCoordinator(mgr, store, sync, client, logger)

	if err := mgr.Restore(); err != nil {
		listingCache.Close()
		return nil, err
	}

	return &app{
		cfg:    cfg,
		logger: logger,
		store:  store,
		mgr:    mgr,
		sync:   sync,
		coord:  coord,
		cache:  listingCache,
	}, nil
}

// Close releases the app's resources.
func (a *app) Close() error {
	return a.cache.Close()
}

// errNotLoggedIn rewrites the internal sentinel into an actionable message.
func errNotLoggedIn(err error) error {
	if errors.Is(err, state.ErrNotAuthenticated) {
		return errors.New("not logged in (run 'filecrate login')")
	}

	return err
}

// exitOnError prints a user-friendly error message to stderr and exits.
func exitOnError(err error) {
	fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	os.Exit(1)
}
