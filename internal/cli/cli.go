// Package cli implements the lineage command-line interface.
//
// Commands render headless frames of the apostolic lineage graph, trace a
// node's ancestry, search the backend interactively, and host the HTTP
// API. Settings come from config.toml under the XDG config directory and
// are overridden by flags.
package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/matzehuels/lineage/pkg/backend"
	"github.com/matzehuels/lineage/pkg/buildinfo"
	"github.com/matzehuels/lineage/pkg/cache"
	"github.com/matzehuels/lineage/pkg/pipeline"
	"github.com/matzehuels/lineage/pkg/render/images"
	"github.com/matzehuels/lineage/pkg/snapshot"
)

// =============================================================================
// Constants
// =============================================================================

const (
	// appName is the application name used for directories and display.
	appName = "lineage"
)

// Log levels exported for use in main.go.
const (
	LogDebug = log.DebugLevel
	LogInfo  = log.InfoLevel
)

// =============================================================================
// CLI - Central CLI State
// =============================================================================

// CLI holds shared state for all commands.
type CLI struct {
	Logger *log.Logger
	Config *Config

	configFile string
	backendURL string
	token      string
	noCache    bool
	refresh    bool
}

// New creates a new CLI instance with a default logger.
func New(w io.Writer, level log.Level) *CLI {
	return &CLI{
		Logger: newLogger(w, level),
		Config: DefaultConfig(),
	}
}

// SetLogLevel updates the logger's level.
func (c *CLI) SetLogLevel(level log.Level) {
	c.Logger.SetLevel(level)
}

// RootCommand creates the root cobra command with all subcommands registered.
func (c *CLI) RootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:          appName,
		Short:        "Lineage explores the apostolic succession as a force graph",
		Long:         `Lineage renders the chain of popes and bishops as a force-directed graph, traces any clergy member back to the root, and serves interactive views over HTTP.`,
		Version:      buildinfo.Current(),
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cmd.SetContext(withLogger(cmd.Context(), c.Logger))
			return c.loadConfig()
		},
	}

	root.SetVersionTemplate(buildinfo.Template())

	flags := root.PersistentFlags()
	flags.StringVar(&c.configFile, "config", "", "config file (default $XDG_CONFIG_HOME/lineage/config.toml)")
	flags.StringVar(&c.backendURL, "backend", "", "backend API base URL")
	flags.StringVar(&c.token, "token", "", "backend bearer token")
	flags.BoolVar(&c.noCache, "no-cache", false, "disable the response cache")
	flags.BoolVar(&c.refresh, "refresh", false, "bypass cached backend responses")

	// Register all subcommands
	root.AddCommand(c.renderCommand())
	root.AddCommand(c.traceCommand())
	root.AddCommand(c.searchCommand())
	root.AddCommand(c.erasCommand())
	root.AddCommand(c.nodeCommand())
	root.AddCommand(c.statsCommand())
	root.AddCommand(c.serveCommand())
	root.AddCommand(c.cacheCommand())
	root.AddCommand(c.completionCommand())

	return root
}

func (c *CLI) loadConfig() error {
	path := c.configFile
	if path == "" {
		if p, err := configPath(); err == nil {
			path = p
		}
	}
	cfg, err := LoadConfig(path)
	if err != nil {
		return err
	}
	if c.backendURL != "" {
		cfg.Backend.URL = c.backendURL
	}
	if c.token != "" {
		cfg.Backend.Token = c.token
	}
	if env := os.Getenv("LINEAGE_TOKEN"); cfg.Backend.Token == "" && env != "" {
		cfg.Backend.Token = env
	}
	c.Config = cfg
	c.Logger.Debug("configuration loaded", "path", path, "backend", cfg.Backend.URL)
	return nil
}

// =============================================================================
// Factories
// =============================================================================

// newCache opens the configured byte cache: redis, then the cache
// directory, then nothing.
func (c *CLI) newCache(ctx context.Context) (cache.Cache, error) {
	if c.noCache {
		return cache.NewNullCache(), nil
	}
	if addr := c.Config.Cache.Redis; addr != "" {
		rc, err := cache.NewRedisCache(ctx, addr)
		if err != nil {
			return nil, fmt.Errorf("connect redis: %w", err)
		}
		return rc, nil
	}
	dir := c.Config.Cache.Dir
	if dir == "" {
		d, err := cacheDir()
		if err != nil {
			c.Logger.Warn("no cache directory, caching disabled", "error", err)
			return cache.NewNullCache(), nil
		}
		dir = d
	}
	return cache.NewFileCache(dir)
}

// keyer returns the cache keyer, scoped when a prefix is configured.
func (c *CLI) keyer() cache.Keyer {
	if p := c.Config.Cache.Prefix; p != "" {
		return cache.NewScopedKeyer(cache.NewDefaultKeyer(), p)
	}
	return cache.NewDefaultKeyer()
}

func (c *CLI) newClient(store cache.Cache) *backend.Client {
	return backend.New(backend.Options{
		BaseURL: c.Config.Backend.URL,
		Token:   c.Config.Backend.Token,
		RootID:  c.Config.Lineage.RootID,
		Cache:   store,
		Keyer:   c.keyer(),
		Logger:  c.Logger,
		Refresh: c.refresh,
	})
}

// newSnapshots returns the Mongo store when configured, else snapshots in
// the byte cache. The returned func releases the store.
func (c *CLI) newSnapshots(ctx context.Context, store cache.Cache) (snapshot.Store, func(), error) {
	if uri := c.Config.Mongo.URI; uri != "" {
		ms, err := snapshot.NewMongoStore(ctx, uri, c.Config.Mongo.Database)
		if err != nil {
			return nil, nil, fmt.Errorf("connect mongo: %w", err)
		}
		return ms, func() { _ = ms.Close(context.Background()) }, nil
	}
	return snapshot.NewCacheStore(store, c.keyer()), func() {}, nil
}

// newRunner creates a pipeline runner for CLI use. The returned func
// releases the runner and its stores.
func (c *CLI) newRunner(ctx context.Context) (*pipeline.Runner, func(), error) {
	store, err := c.newCache(ctx)
	if err != nil {
		return nil, nil, err
	}
	snaps, closeSnaps, err := c.newSnapshots(ctx, store)
	if err != nil {
		store.Close()
		return nil, nil, err
	}
	r := pipeline.NewRunner(c.newClient(store), store, c.keyer(), c.Logger)
	r.Snapshots = snaps
	r.Images = images.New(images.Options{Store: store, Keyer: c.keyer(), Logger: c.Logger})
	return r, func() {
		closeSnaps()
		_ = r.Close()
	}, nil
}

// =============================================================================
// Paths
// =============================================================================

// cacheDir returns the cache directory using XDG standard (~/.cache/lineage/).
func cacheDir() (string, error) {
	if cacheHome := os.Getenv("XDG_CACHE_HOME"); cacheHome != "" {
		return filepath.Join(cacheHome, appName), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".cache", appName), nil
}

// parseFormats parses a comma-separated format string into a slice.
func parseFormats(s string) []string {
	if s == "" {
		return []string{pipeline.FormatPNG}
	}
	var out []string
	for _, f := range strings.Split(s, ",") {
		if f = strings.TrimSpace(strings.ToLower(f)); f != "" {
			out = append(out, f)
		}
	}
	return out
}
