package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/matzehuels/lineage/internal/server"
	"github.com/matzehuels/lineage/pkg/render"
	"github.com/matzehuels/lineage/pkg/render/images"
	"github.com/matzehuels/lineage/pkg/session"
	"github.com/matzehuels/lineage/pkg/snapshot"
)

func (c *CLI) serveCommand() *cobra.Command {
	var (
		addr string
		idle time.Duration
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve interactive lineage sessions over HTTP",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if addr == "" {
				addr = firstNonEmpty(c.Config.Server.Addr, server.DefaultAddr)
			}

			store, err := c.newCache(ctx)
			if err != nil {
				return err
			}
			defer store.Close()

			snaps, closeSnaps, err := c.newSnapshots(ctx, store)
			if err != nil {
				return err
			}
			defer closeSnaps()

			portraits := images.New(images.Options{Store: store, Keyer: c.keyer(), Logger: c.Logger})
			defer portraits.Close()

			client := c.newClient(store)
			sessions := session.NewManager(session.ManagerOptions{
				Backend: client,
				Viewer:      c.viewerOptions(snaps, portraits),
				IdleTimeout: idle,
				Logger:      c.Logger,
			})

			printInfo("Listening on %s", addr)
			printDetail("Backend: %s", c.Config.Backend.URL)
			srv := server.New(server.Options{Backend: client, Sessions: sessions, Logger: c.Logger})
			if err := srv.ListenAndServe(ctx, addr); err != nil {
				return fmt.Errorf("serve: %w", err)
			}
			printSuccess("Server stopped")
			return nil
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "listen address (default from config, else :8080)")
	cmd.Flags().DurationVar(&idle, "idle", session.DefaultIdleTimeout, "close sessions idle for this long")
	return cmd
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}

// viewerOptions builds the options of every served viewer from the config.
func (c *CLI) viewerOptions(snaps snapshot.Store, portraits render.ImageSource) session.Options {
	return session.Options{
		Config:    c.Config.LineageConfig(),
		Width:     float64(c.Config.Frame.Width),
		Height:    float64(c.Config.Frame.Height),
		Snapshots: snaps,
		Images:    portraits,
		Logger:    c.Logger,
	}
}
