package main

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"time"

	"github.com/urfave/cli/v3"
	"golang.org/x/oauth2"

	"github.com/desertthunder/ytsched/internal/server"
	"github.com/desertthunder/ytsched/internal/services"
	"github.com/desertthunder/ytsched/internal/shared"
)

// loginTimeout bounds how long `auth login` waits for the browser callback.
var loginTimeout = 2 * time.Minute

// AuthURL prints the consent URL for a manual code exchange.
func (r *Runner) AuthURL(ctx context.Context, cmd *cli.Command) error {
	auth, _, err := r.authenticator()
	if err != nil {
		return err
	}
	state, err := shared.GenerateState()
	if err != nil {
		return fmt.Errorf("failed to generate state token: %w", err)
	}
	return r.writePlain("%s\n", auth.AuthURL(state))
}

// AuthExchange trades the code from the callback URL for tokens.
func (r *Runner) AuthExchange(ctx context.Context, cmd *cli.Command) error {
	code := cmd.StringArg("code")
	if code == "" {
		return fmt.Errorf("%w: authorization code", shared.ErrMissingArgument)
	}

	auth, _, err := r.authenticator()
	if err != nil {
		return err
	}

	token, err := auth.Exchange(ctx, code)
	if err != nil {
		return err
	}
	return r.reportToken(token, cmd.Bool("save"))
}

// AuthLogin opens the consent page and captures the callback on the redirect URI's host.
func (r *Runner) AuthLogin(ctx context.Context, cmd *cli.Command) error {
	auth, _, err := r.authenticator()
	if err != nil {
		return err
	}

	token, err := r.doOAuth(ctx, auth, r.config.YouTube.RedirectURI)
	if err != nil {
		return err
	}
	return r.reportToken(token, cmd.Bool("save"))
}

// doOAuth runs a one-shot callback server and waits for the authorization result.
func (r *Runner) doOAuth(ctx context.Context, auth services.Authenticator, redirectURI string) (*oauth2.Token, error) {
	u, err := url.Parse(redirectURI)
	if err != nil || u.Host == "" {
		return nil, fmt.Errorf("%w: youtube redirect_uri %q", shared.ErrInvalidConfig, redirectURI)
	}

	state, err := shared.GenerateState()
	if err != nil {
		return nil, fmt.Errorf("failed to generate state token: %w", err)
	}

	oauthHandler, err := server.NewOAuthHandler(auth, state, redirectURI)
	if err != nil {
		return nil, err
	}
	router := server.NewBasicRouter()
	router.Handler(oauthHandler)

	httpServer := &http.Server{
		Addr:              u.Host,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	serverErrors := make(chan error, 1)
	go func() {
		r.logger.Infof("starting OAuth callback server at %v", u.Host)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErrors <- err
		}
	}()

	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			r.logger.Warn("error shutting down server", "error", err)
		}
	}()

	authURL := auth.AuthURL(state)
	r.writePlain("→ Opening browser for YouTube consent...\n")
	if err := shared.OpenBrowser(authURL); err != nil {
		r.logger.Warnf("failed to open browser automatically %v", err)
		r.writePlainln("⚠ Could not open browser automatically.")
		r.writePlain("Please open this URL in your browser:\n%s\n\n", authURL)
	}

	r.writePlain("→ Waiting for authorization (%v timeout)...\n", loginTimeout)

	timeout := time.NewTimer(loginTimeout)
	defer timeout.Stop()

	var result server.OAuthResult
	select {
	case result = <-oauthHandler.Result():
	case err := <-serverErrors:
		return nil, fmt.Errorf("server error: %w", err)
	case <-timeout.C:
		return nil, fmt.Errorf("%w: authorization timed out after %v", shared.ErrTimeout, loginTimeout)
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	if result.Error() != nil {
		return nil, fmt.Errorf("authorization failed: %w", result.Error())
	}
	if result.Token == nil {
		return nil, fmt.Errorf("%w: no token received", shared.ErrAuthFailed)
	}
	return result.Token, nil
}

// reportToken prints the refresh token and optionally persists it.
func (r *Runner) reportToken(token *oauth2.Token, save bool) error {
	if token.RefreshToken == "" {
		return fmt.Errorf("%w: revoke the app's access and consent again", shared.ErrNoRefreshToken)
	}

	r.writePlain("✓ %s\n", server.CallbackMessage)
	r.writePlain("YOUTUBE_REFRESH_TOKEN=%s\n", token.RefreshToken)

	if !save {
		return nil
	}
	if err := r.saveRefreshToken(token.RefreshToken); err != nil {
		return err
	}
	return r.writePlain("✓ Refresh token saved to %s\n", r.configPath)
}

// saveRefreshToken writes the token into the config file.
//
// The file is re-read rather than saving r.config so environment overrides are not persisted.
func (r *Runner) saveRefreshToken(refreshToken string) error {
	config := shared.DefaultConfig()
	if _, err := os.Stat(r.configPath); err == nil {
		if config, err = shared.LoadConfig(r.configPath); err != nil {
			return err
		}
	}
	config.YouTube.RefreshToken = refreshToken
	if err := shared.SaveConfig(r.configPath, config); err != nil {
		return err
	}
	r.config.YouTube.RefreshToken = refreshToken
	return nil
}
