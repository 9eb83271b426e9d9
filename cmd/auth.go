package main

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/pomokey/pomokey/internal/repositories"
	"github.com/pomokey/pomokey/internal/server"
	"github.com/pomokey/pomokey/internal/services"
	"github.com/pomokey/pomokey/internal/shared"
	"github.com/pomokey/pomokey/internal/tasks"
	"github.com/urfave/cli/v3"
	"golang.org/x/oauth2"
)

// AuthLogin performs the OAuth2 authorization flow and caches the token.
//
// Starts a local HTTP server, opens the browser for user authorization, and
// stores the exchanged token in the cache database.
func (r *Runner) AuthLogin(ctx context.Context, cmd *cli.Command) error {
	p, err := r.openPipeline()
	if err != nil {
		return err
	}
	defer p.Close()

	oauthSrv, ok := r.client.(services.OAuthService)
	if !ok {
		return fmt.Errorf("%w: client does not support browser authorization", shared.ErrInvalidConfig)
	}

	token, err := r.doOAuth(oauthSrv, "authorization")
	if err != nil {
		return err
	}

	r.client.SetToken(token)
	creds := repositories.Credentials{AccessToken: token.AccessToken, ExpiresAt: token.Expiry}
	if err := p.credentials.Save(creds); err != nil {
		return fmt.Errorf("failed to cache access token: %w", err)
	}

	session, err := p.engine.Authenticate(ctx, nil, tasks.AuthRequest{})
	if err != nil {
		return err
	}

	r.writePlainln("✓ Authorization successful")
	r.writePlain("✓ Logged in as %s\n\n", session.DisplayName)
	r.writePlain("You can now use: pomokey load\n")
	return nil
}

// AuthStatus reports whether a usable cached token exists.
func (r *Runner) AuthStatus(ctx context.Context, cmd *cli.Command) error {
	p, err := r.openPipeline()
	if err != nil {
		return err
	}
	defer p.Close()

	creds := p.credentials.Load()
	switch {
	case creds.AccessToken == "":
		r.writePlain("No cached token. Run 'pomokey auth login' to authorize.\n")
	case !creds.Valid():
		r.writePlain("Cached token expired at %s. Run 'pomokey auth login' to reauthorize.\n", creds.ExpiresAt.Format(time.RFC1123))
	default:
		r.writePlain("Cached token valid until %s.\n", creds.ExpiresAt.Format(time.RFC1123))
	}
	return nil
}

// AuthLogout discards the cached token.
func (r *Runner) AuthLogout(ctx context.Context, cmd *cli.Command) error {
	p, err := r.openPipeline()
	if err != nil {
		return err
	}
	defer p.Close()

	if err := p.credentials.Clear(); err != nil {
		return err
	}
	r.writePlain("✓ Cached token cleared\n")
	return nil
}

// doOAuth executes the OAuth2 authorization flow with a local HTTP server
func (r *Runner) doOAuth(oauthSrv services.OAuthService, prefix string) (*oauth2.Token, error) {
	state, err := shared.GenerateState()
	if err != nil {
		return nil, fmt.Errorf("failed to generate state token: %w", err)
	}

	authURL := oauthSrv.GetAuthURL(state)
	oauthHandler := server.NewOAuthHandler(oauthSrv.GetOAuthConfig(), state)
	router := server.NewBasicRouter()
	router.Handler(oauthHandler)

	serverAddr := fmt.Sprintf("%s:%d", r.config.Server.Host, r.config.Server.Port)
	httpServer := &http.Server{
		Addr:    serverAddr,
		Handler: router,
	}

	serverErrors := make(chan error, 1)
	go func() {
		r.logger.Infof("starting OAuth server for %s at %v", prefix, serverAddr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErrors <- err
		}
	}()

	time.Sleep(100 * time.Millisecond)

	r.writePlain("→ Opening browser for Spotify %s...\n", prefix)
	if err := shared.OpenBrowser(authURL); err != nil {
		r.logger.Warnf("failed to open browser automatically %v", err)
		r.writePlainln("⚠ Could not open browser automatically.")
		r.writePlain("Please open this URL in your browser:\n%s\n\n", authURL)
	}

	r.writePlain("→ Waiting for authorization (2 minute timeout)...\n")

	timeout := time.NewTimer(2 * time.Minute)
	defer timeout.Stop()

	var result server.OAuthResult

	select {
	case result = <-oauthHandler.Result():
		// Got result from callback
	case err := <-serverErrors:
		return nil, fmt.Errorf("server error: %w", err)
	case <-timeout.C:
		return nil, fmt.Errorf("%w: authorization timed out after 2 minutes", shared.ErrTimeout)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		r.logger.Warn("error shutting down server", "error", err)
	}

	if result.Error() != nil {
		return nil, fmt.Errorf("authorization failed: %w", result.Error())
	}

	if result.Token == nil {
		return nil, fmt.Errorf("no token received")
	}

	return result.Token, nil
}
