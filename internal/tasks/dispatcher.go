package tasks

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/charmbracelet/log"

	"github.com/desertthunder/ytsched/internal/blobstore"
	"github.com/desertthunder/ytsched/internal/models"
	"github.com/desertthunder/ytsched/internal/repositories"
	"github.com/desertthunder/ytsched/internal/services"
	"github.com/desertthunder/ytsched/internal/shared"
)

// BatchRunner runs one dispatch pass. [Dispatcher] implements it.
type BatchRunner interface {
	Run(ctx context.Context, progress chan<- ProgressUpdate) (models.BatchReport, error)
}

// Dispatcher publishes due videos sequentially.
type Dispatcher struct {
	selector *Selector
	blobs    blobstore.Store
	videos   VideoStore
	uploader services.Uploader
	leaseTTL time.Duration
	logger   *log.Logger
}

// NewDispatcher creates a Dispatcher. A non-positive leaseTTL uses [repositories.DefaultLeaseTTL].
func NewDispatcher(selector *Selector, blobs blobstore.Store, videos VideoStore, uploader services.Uploader, leaseTTL time.Duration, logger *log.Logger) *Dispatcher {
	if logger == nil {
		logger = shared.NewLogger(nil)
	}
	if leaseTTL <= 0 {
		leaseTTL = repositories.DefaultLeaseTTL
	}
	return &Dispatcher{
		selector: selector,
		blobs:    blobs,
		videos:   videos,
		uploader: uploader,
		leaseTTL: leaseTTL,
		logger:   shared.WithLogger(logger, "component", "dispatcher"),
	}
}

// Run selects today's videos and publishes each one.
//
// Per-entry failures are recorded in the report. Only a selection failure or
// cancellation of ctx is returned as an error.
func (d *Dispatcher) Run(ctx context.Context, progress chan<- ProgressUpdate) (models.BatchReport, error) {
	report := models.BatchReport{Results: []models.DispatchResult{}}

	sendProgress(progress, selectingUpdate(d.selector.Today()))
	due, today, err := d.selector.DueToday(ctx)
	if err != nil {
		return report, err
	}
	sendProgress(progress, selectedUpdate(due, today))

	total := len(due)
	for i, v := range due {
		if err := ctx.Err(); err != nil {
			d.logger.Warn("dispatch interrupted", "processed", report.Processed, "remaining", total-i)
			return report, err
		}

		result, published := d.dispatch(ctx, i+1, total, v, progress)
		if published {
			continue
		}
		report.Add(result)
		sendProgress(progress, resultUpdate(i+1, total, result))
	}

	d.logger.Info("dispatch finished", "today", today, "processed", report.Processed, "uploaded", report.Uploaded)
	sendProgress(progress, doneUpdate(report))
	return report, nil
}

// dispatch publishes one entry under its lease.
//
// published is true when another run finished the entry between selection and the claim;
// such an entry is neither uploaded nor reported.
func (d *Dispatcher) dispatch(ctx context.Context, step, total int, v models.ScheduledVideo, progress chan<- ProgressUpdate) (result models.DispatchResult, published bool) {
	result = models.DispatchResult{Title: v.Title, Pathname: v.Pathname}
	logger := d.logger.With("pathname", v.Pathname)

	lease, err := d.videos.Claim(ctx, v.Pathname, d.leaseTTL)
	if err != nil {
		if errors.Is(err, shared.ErrLeaseHeld) {
			logger.Warn("skipping leased entry")
			result.Error = shared.ErrLeaseHeld.Error()
		} else {
			logger.Error("failed to claim entry", "error", err)
			result.Error = err.Error()
		}
		return result, false
	}
	defer func() {
		if err := lease.Release(context.WithoutCancel(ctx)); err != nil {
			logger.Warn("failed to release lease", "error", err)
		}
	}()

	// The selection is stale once the lease is ours: re-read the record under it.
	current, err := d.videos.Get(ctx, v.Pathname)
	if repositories.IsNotFound(err) {
		logger.Info("entry already published by another run")
		return result, true
	}
	if err != nil {
		logger.Error("failed to re-read entry", "error", err)
		result.Error = upstream("failed to read metadata", err).Error()
		return result, false
	}
	if current.URL != "" {
		v = *current
		result.Title = v.Title
	}

	videoID, err := d.publish(ctx, step, total, v, progress)
	if err != nil {
		logger.Error("failed to upload video", "error", err)
		result.Error = err.Error()
		return result, false
	}

	sendProgress(progress, cleanupUpdate(step, total, v))
	if err := d.blobs.Delete(ctx, v.URL); err != nil {
		logger.Error("uploaded but failed to delete blob", "videoId", videoID, "error", err)
		result.Error = fmt.Sprintf("uploaded as %s but failed to delete blob: %v", videoID, err)
		return result, false
	}
	if err := d.videos.Delete(ctx, v.Pathname); err != nil {
		logger.Warn("failed to delete metadata", "error", err)
	}

	result.Success = true
	result.YouTubeURL = models.WatchURL(videoID)
	logger.Info("published video", "title", v.Title, "url", result.YouTubeURL)
	return result, false
}

// publish streams the blob into the uploader.
func (d *Dispatcher) publish(ctx context.Context, step, total int, v models.ScheduledVideo, progress chan<- ProgressUpdate) (string, error) {
	sendProgress(progress, downloadUpdate(step, total, v))
	media, err := d.blobs.Open(ctx, v.URL)
	if err != nil {
		return "", fmt.Errorf("failed to download video: %w", err)
	}
	defer media.Close()

	sendProgress(progress, uploadUpdate(step, total, v))
	return d.uploader.Upload(ctx, media, services.VideoMetadata{Title: v.Title, Description: v.Description})
}
