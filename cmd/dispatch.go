package main

import (
	"context"
	"fmt"

	"github.com/urfave/cli/v3"

	"github.com/desertthunder/ytsched/internal/formatter"
	"github.com/desertthunder/ytsched/internal/tasks"
)

// DispatchRun uploads every video due today, printing progress as it goes.
func (r *Runner) DispatchRun(ctx context.Context, cmd *cli.Command) error {
	format, err := formatter.ParseFormat(cmd.String("format"))
	if err != nil {
		return err
	}
	output := cmd.String("output")
	fileFormat := format
	if output != "" {
		if fileFormat, err = formatter.FormatFromPath(output); err != nil {
			return err
		}
	}

	a, err := r.openApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	if format == formatter.Text {
		r.writePlainHeader(fmt.Sprintf("Dispatching videos for %s", a.selector.Today()))
	}

	progress := make(chan tasks.ProgressUpdate, 16)
	done := make(chan struct{})
	go func() {
		defer close(done)
		for update := range progress {
			if format == formatter.Text {
				r.printProgress(update)
			}
			r.logger.Debug("dispatch progress", "phase", update.Phase, "step", update.Step, "total", update.Total)
		}
	}()

	report, err := a.dispatcher.Run(ctx, progress)
	close(progress)
	<-done
	if err != nil {
		return err
	}

	data, err := formatter.RenderReport(format, report)
	if err != nil {
		return err
	}
	if format == formatter.Text {
		r.writePlainln("Summary")
	}
	if _, err := r.output.Write(data); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}

	if output != "" {
		fileData, err := formatter.RenderReport(fileFormat, report)
		if err != nil {
			return err
		}
		if err := formatter.WriteExport(output, fileData); err != nil {
			return err
		}
		r.logger.Info("report written", "path", output)
	}

	if failed := report.Failed(); failed > 0 {
		r.logger.Warn("some uploads failed", "failed", failed, "processed", report.Processed)
	}
	return nil
}

func (r *Runner) printProgress(update tasks.ProgressUpdate) {
	switch update.Phase {
	case tasks.Select, tasks.Done:
		r.writePlain("→ %s\n", update.Message)
	default:
		r.writePlain("  [%d/%d] %s\n", update.Step, update.Total, update.Message)
	}
}
