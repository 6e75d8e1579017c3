package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/apoxy-dev/webserver/config"
	"github.com/apoxy-dev/webserver/pkg/handler"
	"github.com/apoxy-dev/webserver/pkg/log"
	"github.com/apoxy-dev/webserver/pkg/server"
)

var serveCmd = &cobra.Command{
	Use:   "serve [config]",
	Short: "Run the servers described by a config file",
	Long: `Run every server block of the config file until interrupted. On SIGINT or
SIGTERM the servers stop accepting, let in-flight requests finish within their
shutdown grace, and exit.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := configFromArgs(args)
		if err != nil {
			return err
		}
		cmd.SilenceUsage = true
		return serve(cmd.Context(), cfg, handler.NewDefaultRegistry())
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

// serve builds every configured server and runs them until ctx is canceled
// or one of them fails.
func serve(ctx context.Context, cfg *config.Config, reg *handler.Registry) error {
	servers := make([]*server.Server, 0, len(cfg.Servers))
	defer func() {
		for _, srv := range servers {
			if err := srv.Close(); err != nil {
				log.Errorf("failed to close server: %v", err)
			}
		}
	}()
	for i, sc := range cfg.Servers {
		table, err := server.BuildTable(reg, sc.Routes)
		if err != nil {
			return fmt.Errorf("server %d (port %d): %w", i, sc.Port, err)
		}
		servers = append(servers, server.New(server.OptionsFromConfig(sc), table))
	}

	g, ctx := errgroup.WithContext(ctx)
	for i, srv := range servers {
		srv := srv
		port := cfg.Servers[i].Port
		g.Go(func() error {
			log.Infof("Server starting up on port %d", port)
			if err := srv.ListenAndServe(ctx); err != nil {
				return fmt.Errorf("server on port %d: %w", port, err)
			}
			log.Infof("Server on port %d shut down", port)
			return nil
		})
	}
	return g.Wait()
}
