package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"

	"github.com/desertthunder/ytsched/internal/blobstore"
	"github.com/desertthunder/ytsched/internal/kvstore"
	"github.com/desertthunder/ytsched/internal/repositories"
	"github.com/desertthunder/ytsched/internal/services"
	"github.com/desertthunder/ytsched/internal/shared"
	"github.com/desertthunder/ytsched/internal/tasks"
)

// app is the wired object graph shared by the serve, schedule, dispatch and tui commands.
type app struct {
	blobs      blobstore.Store
	videos     *repositories.VideoRepository
	selector   *tasks.Selector
	intake     *tasks.Intake
	dispatcher *tasks.Dispatcher
	youtube    *services.YouTubeService
	closers    []io.Closer
}

// Close releases the backend clients opened for the app.
func (a *app) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i].Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// failingUploader stands in for YouTube when no OAuth client is configured, so each due entry
// is recorded as failed instead of the whole run aborting.
type failingUploader struct {
	err error
}

func (f failingUploader) Upload(context.Context, io.Reader, services.VideoMetadata) (string, error) {
	return "", f.err
}

// openApp builds the stores, repository and tasks from the runner's config and injected overrides.
func (r *Runner) openApp(ctx context.Context) (*app, error) {
	cfg := r.config
	a := &app{}

	if r.blobs == nil && r.kv == nil {
		if err := cfg.Validate(); err != nil {
			return nil, err
		}
	}

	kv := r.kv
	if kv == nil {
		var db *sql.DB
		if cfg.KV.Backend == shared.KVSQLite {
			opened, err := shared.OpenDatabase(cfg.Database)
			if err != nil {
				return nil, err
			}
			db = opened
			a.closers = append(a.closers, db)
		}
		store, err := kvstore.New(ctx, cfg.KV, db)
		if err != nil {
			a.Close()
			return nil, err
		}
		if c, ok := store.(io.Closer); ok {
			a.closers = append(a.closers, c)
		}
		kv = store
	}

	blobs := r.blobs
	if blobs == nil {
		store, err := blobstore.New(ctx, cfg.Blob)
		if err != nil {
			a.Close()
			return nil, err
		}
		if c, ok := store.(io.Closer); ok {
			a.closers = append(a.closers, c)
		}
		blobs = store
	}

	uploader := r.uploader
	yt, err := services.NewYouTubeService(cfg.YouTube)
	switch {
	case err == nil:
		a.youtube = yt
		if uploader == nil {
			uploader = yt
		}
	case uploader == nil:
		r.logger.Warn("youtube uploads disabled", "error", err)
		uploader = failingUploader{err: err}
	}

	a.blobs = blobs
	a.videos = repositories.NewVideoRepository(kv, r.logger)
	a.selector = tasks.NewSelector(blobs, a.videos, r.logger, tasks.WithPrefix(cfg.Dispatch.Prefix))
	a.intake = tasks.NewIntake(blobs, a.videos, r.logger, tasks.WithIntakePrefix(cfg.Dispatch.Prefix))
	a.dispatcher = tasks.NewDispatcher(a.selector, blobs, a.videos, uploader, cfg.Dispatch.LeaseDuration(), r.logger)
	return a, nil
}

// authenticator returns the injected authenticator or one built from the [youtube] section.
func (r *Runner) authenticator() (services.Authenticator, *services.YouTubeService, error) {
	if r.auth != nil {
		return r.auth, nil, nil
	}
	yt, err := services.NewYouTubeService(r.config.YouTube)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: set youtube client_id and client_secret", err)
	}
	return yt, yt, nil
}
