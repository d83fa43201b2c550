package main

import (
	"context"
	"errors"
	"fmt"
	"mime"
	"os"
	"path/filepath"

	"github.com/urfave/cli/v3"

	"github.com/desertthunder/ytsched/internal/formatter"
	"github.com/desertthunder/ytsched/internal/models"
	"github.com/desertthunder/ytsched/internal/repositories"
	"github.com/desertthunder/ytsched/internal/shared"
	"github.com/desertthunder/ytsched/internal/tasks"
)

// ScheduleAdd stores a local file and its metadata for upload on --date.
func (r *Runner) ScheduleAdd(ctx context.Context, cmd *cli.Command) error {
	path := cmd.StringArg("file")
	if path == "" {
		return fmt.Errorf("%w: video file", shared.ErrMissingArgument)
	}

	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("%w: %v", shared.ErrInvalidArgument, err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return fmt.Errorf("failed to stat %s: %w", path, err)
	}
	if info.IsDir() {
		return fmt.Errorf("%w: %s is a directory", shared.ErrInvalidArgument, path)
	}

	a, err := r.openApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	contentType := mime.TypeByExtension(filepath.Ext(path))
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	r.logger.Info("scheduling video", "file", path, "size", info.Size(), "date", cmd.String("date"))

	receipt, err := a.intake.Schedule(ctx, tasks.Submission{
		Filename:      filepath.Base(path),
		Content:       f,
		Size:          info.Size(),
		ContentType:   contentType,
		Title:         cmd.String("title"),
		Description:   cmd.String("description"),
		ScheduledDate: cmd.String("date"),
	})
	if err != nil {
		return err
	}

	if cmd.Bool("json") {
		return r.writeJSON(receipt, true)
	}

	r.writePlain("✓ Scheduled %s for %s\n", receipt.Pathname, receipt.ScheduledDate)
	r.writePlain("Blob: %s\n", receipt.BlobURL)
	return nil
}

// ScheduleList prints the queue, or only today's entries with --today.
func (r *Runner) ScheduleList(ctx context.Context, cmd *cli.Command) error {
	format, err := formatter.ParseFormat(cmd.String("format"))
	if err != nil {
		return err
	}
	output := cmd.String("output")
	if output != "" && !cmd.IsSet("format") {
		if format, err = formatter.FormatFromPath(output); err != nil {
			return err
		}
	}

	a, err := r.openApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	today := a.selector.Today()
	var videos []models.ScheduledVideo
	if cmd.Bool("today") {
		videos, _, err = a.selector.DueToday(ctx)
	} else {
		videos, err = a.selector.Scheduled(ctx)
	}
	if err != nil {
		return err
	}

	data, err := formatter.RenderQueue(format, videos, today)
	if err != nil {
		return err
	}

	if output != "" {
		if err := formatter.WriteExport(output, data); err != nil {
			return err
		}
		r.logger.Info("queue exported", "path", output, "entries", len(videos))
		return r.writePlain("✓ Wrote %d entries to %s\n", len(videos), output)
	}

	_, err = r.output.Write(data)
	return err
}

// ScheduleRemove deletes a scheduled blob and its metadata without uploading it.
func (r *Runner) ScheduleRemove(ctx context.Context, cmd *cli.Command) error {
	pathname := cmd.StringArg("pathname")
	if pathname == "" {
		return fmt.Errorf("%w: pathname", shared.ErrMissingArgument)
	}

	a, err := r.openApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	video, err := a.videos.Get(ctx, pathname)
	if err != nil {
		if repositories.IsNotFound(err) {
			return fmt.Errorf("%w: no scheduled video at %s", shared.ErrNotFound, pathname)
		}
		return err
	}

	if err := a.blobs.Delete(ctx, video.URL); err != nil && !errors.Is(err, shared.ErrNotFound) {
		return fmt.Errorf("failed to delete blob: %w", err)
	}
	if err := a.videos.Delete(ctx, pathname); err != nil {
		return fmt.Errorf("failed to delete metadata: %w", err)
	}

	r.logger.Info("removed scheduled video", "pathname", pathname)
	return r.writePlain("✓ Removed %s (%s)\n", pathname, video.Title)
}
