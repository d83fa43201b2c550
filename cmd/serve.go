package main

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v3"

	"github.com/desertthunder/ytsched/internal/blobstore"
	"github.com/desertthunder/ytsched/internal/server"
	"github.com/desertthunder/ytsched/internal/services"
	"github.com/desertthunder/ytsched/internal/shared"
	"github.com/desertthunder/ytsched/internal/tasks"
	"github.com/desertthunder/ytsched/internal/web"
)

// Serve runs the HTTP API until SIGINT or SIGTERM.
func (r *Runner) Serve(ctx context.Context, cmd *cli.Command) error {
	cfg := r.config
	if host := cmd.String("host"); host != "" {
		cfg.Server.Host = host
	}
	if port := int(cmd.Int("port")); port > 0 {
		cfg.Server.Port = port
	}
	if cmd.Bool("cron") {
		cfg.Cron.Enabled = true
	}
	if spec := cmd.String("cron-spec"); spec != "" {
		cfg.Cron.Spec = spec
	}

	a, err := r.openApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	if cfg.Server.CronSecret == "" {
		r.logger.Warn("cron secret is empty, trigger routes will reject every request")
	}

	handler, err := r.apiHandler(a)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.Cron.Enabled {
		trigger, err := tasks.NewDailyTrigger(cfg.Cron.Spec, a.dispatcher, r.logger)
		if err != nil {
			return err
		}
		trigger.Start()
		defer func() { <-trigger.Stop().Done() }()
	}

	return server.ListenAndServe(ctx, cfg.Server.Addr(), handler, r.logger)
}

// apiHandler assembles the routes for a, mounting local blobs when that backend is in use.
func (r *Runner) apiHandler(a *app) (http.Handler, error) {
	cfg := r.config
	page, err := web.NewPage(web.PageData{
		MaxUploadMB: cfg.Server.MaxUploadBytes() >> 20,
		CronEnabled: cfg.Cron.Enabled,
		CronSpec:    cfg.Cron.Spec,
	})
	if err != nil {
		return nil, err
	}

	opts := []server.APIOption{server.WithPage(page)}
	if local, ok := a.blobs.(*blobstore.LocalStore); ok {
		prefix, err := blobPrefix(cfg.Blob.PublicURL)
		if err != nil {
			return nil, err
		}
		opts = append(opts, server.WithBlobFiles(prefix, local.Handler()))
		r.logger.Info("serving local blobs", "dir", local.Dir(), "prefix", prefix)
	}

	var auth services.Authenticator
	if r.auth != nil {
		auth = r.auth
	} else if a.youtube != nil {
		auth = a.youtube
	}

	return server.NewAPI(cfg.Server, auth, a.intake, a.dispatcher, r.logger, opts...).Handler(), nil
}

// blobPrefix returns the URL path local blobs are served under.
func blobPrefix(publicURL string) (string, error) {
	u, err := url.Parse(publicURL)
	if err != nil {
		return "", fmt.Errorf("%w: blob public_url %q: %v", shared.ErrInvalidConfig, publicURL, err)
	}
	if u.Path == "" || u.Path == "/" {
		return "", fmt.Errorf("%w: blob public_url %q needs a path such as /blobs", shared.ErrInvalidConfig, publicURL)
	}
	return u.Path, nil
}
