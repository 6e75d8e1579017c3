package server

import (
	"io"
	"log/slog"

	"github.com/apoxy-dev/webserver/config"
	"github.com/apoxy-dev/webserver/pkg/handler"
	"github.com/apoxy-dev/webserver/pkg/router"
)

// BuildTable creates a handler for every configured route. If any handler
// fails to build, the ones already created are closed and the error returned.
func BuildTable(reg *handler.Registry, routes []config.Route) (*router.Table, error) {
	built := make([]router.Route, 0, len(routes))
	for _, r := range routes {
		prefix := router.Clean(r.Prefix)
		h, err := reg.Create(r.Handler, prefix, handler.Params(r.Params))
		if err != nil {
			closeHandlers(built)
			return nil, err
		}
		built = append(built, router.Route{
			Prefix:      prefix,
			HandlerType: r.Handler,
			Params:      r.Params,
			Handler:     h,
		})
	}
	return router.New(built), nil
}

func closeHandlers(routes []router.Route) {
	for _, r := range routes {
		if c, ok := r.Handler.(io.Closer); ok {
			if err := c.Close(); err != nil {
				slog.Warn("failed to close handler", slog.String("prefix", r.Prefix), slog.Any("error", err))
			}
		}
	}
}
