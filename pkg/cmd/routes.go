package cmd

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/apoxy-dev/webserver/config"
	"github.com/apoxy-dev/webserver/pkg/handler"
	"github.com/apoxy-dev/webserver/pkg/router"
	"github.com/apoxy-dev/webserver/pretty"
)

var routesCmd = &cobra.Command{
	Use:   "routes [config]",
	Short: "Print the routing table of every configured server",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := configFromArgs(args)
		if err != nil {
			return err
		}
		cmd.SilenceUsage = true
		return printRoutes(cmd.OutOrStdout(), cfg, handler.NewDefaultRegistry())
	},
}

func init() {
	rootCmd.AddCommand(routesCmd)
}

// printRoutes lists routes in declaration order. Handler tags the registry
// does not know are flagged and reported as an error after printing.
func printRoutes(w io.Writer, cfg *config.Config, reg *handler.Registry) error {
	t := pretty.Table{
		Header: pretty.Header{"PORT", "PREFIX", "HANDLER", "PARAMS"},
	}
	var unknown []string
	for _, s := range cfg.Servers {
		for _, r := range s.Routes {
			name := r.Handler
			if !reg.Has(name) {
				unknown = append(unknown, name)
				name += " (unknown)"
			}
			t.Rows = append(t.Rows, []interface{}{s.Port, router.Clean(r.Prefix), name, fmtParams(r.Params)})
		}
	}
	t.Render(w)
	if len(unknown) > 0 {
		return fmt.Errorf("%w: %s", handler.ErrUnknownHandler, strings.Join(unknown, ", "))
	}
	return nil
}

func fmtParams(params map[string]string) string {
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+"="+params[k])
	}
	return strings.Join(parts, " ")
}
