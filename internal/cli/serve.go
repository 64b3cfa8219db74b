package cli

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"golang.org/x/sync/errgroup"
)

// ShutdownTimeout bounds the completion of in-flight requests on shutdown.
const ShutdownTimeout = 5 * time.Second

// Serve runs the HTTP API, and the realtime hub when enabled, until ctx is
// done. In-flight requests are given ShutdownTimeout to complete.
func Serve(ctx context.Context, app *App) error {
	ln, err := net.Listen("tcp", app.Config.Server.Addr)
	if err != nil {
		return err
	}
	return ServeListener(ctx, app, ln)
}

// ServeListener is Serve on an open listener.
func ServeListener(ctx context.Context, app *App, ln net.Listener) error {
	srv := &http.Server{
		Handler:           app.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	g, ctx := errgroup.WithContext(ctx)
	if app.Hub != nil {
		g.Go(func() error {
			return app.Hub.Run(ctx)
		})
	}
	g.Go(func() error {
		app.Logger.Info("Starting Botpress Server", "addr", ln.Addr().String(), "flows", app.Config.Flows.Dir)
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), ShutdownTimeout)
		defer cancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			app.Logger.Warn("Graceful shutdown did not complete", "timeout", ShutdownTimeout, "err", err)
			return srv.Close()
		}
		app.Logger.Info("Botpress Server stopped gracefully")
		return nil
	})
	return g.Wait()
}
