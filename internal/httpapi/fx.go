package httpapi

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/orgball2608/fary-stories/pkg/config"
	"github.com/orgball2608/fary-stories/pkg/logger"
	"go.uber.org/fx"
)

// NewHTTPServer binds the API on APP_PORT for the lifetime of the app.
func NewHTTPServer(lc fx.Lifecycle, srv *Server, cfg *config.Config, log logger.Logger) *http.Server {
	httpServer := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.App.Port),
		Handler:           srv.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			ln, err := net.Listen("tcp", httpServer.Addr)
			if err != nil {
				return fmt.Errorf("failed to listen on %s: %w", httpServer.Addr, err)
			}

			log.Info("Starting HTTP server", "addr", httpServer.Addr)
			go func() {
				if err := httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
					log.Error("HTTP server stopped", "error", err)
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			log.Info("Stopping HTTP server")
			return httpServer.Shutdown(ctx)
		},
	})

	return httpServer
}

var Module = fx.Module("httpapi",
	fx.Provide(New),
	fx.Provide(NewHTTPServer),
	fx.Invoke(func(*http.Server) {}),
)
