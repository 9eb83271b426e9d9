package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/pomokey/pomokey/internal/server"
	"github.com/urfave/cli/v3"
)

// Serve runs the web client and session API.
//
// The session handler owns the pipeline worker; the static handler serves the
// browser client from the configured directory.
func (r *Runner) Serve(ctx context.Context, cmd *cli.Command) error {
	p, err := r.openPipeline()
	if err != nil {
		return err
	}
	defer p.Close()

	port := r.config.Server.Port
	if cmd.Int("port") > 0 {
		port = int(cmd.Int("port"))
	}

	sessionHandler := server.NewSessionHandler(
		p.engine,
		r.config.Credentials.Spotify.ClientID,
		r.config.Credentials.Spotify.RedirectURI,
		r.logger,
	)

	router := server.NewBasicRouter()
	router.Use(server.RequestLogger(r.logger))
	router.Handler(sessionHandler)
	router.Handler(server.NewNoCacheStatic(r.config.Server.StaticDir))

	addr := fmt.Sprintf("%s:%d", r.config.Server.Host, port)
	httpServer := &http.Server{
		Addr:    addr,
		Handler: router,
	}

	serverErrors := make(chan error, 1)
	go func() {
		r.logger.Info("listening", "addr", addr, "static", r.config.Server.StaticDir)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErrors <- err
		}
	}()

	select {
	case err := <-serverErrors:
		return fmt.Errorf("server error: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("failed to shut down server: %w", err)
	}
	return nil
}
