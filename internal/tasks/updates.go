package tasks

import (
	"fmt"

	"github.com/desertthunder/ytsched/internal/models"
)

// ProgressUpdate represents a progress event during a dispatch run.
//
// Used to send real-time updates to the CLI or UI layer for display.
type ProgressUpdate struct {
	Phase   Phase  // Operation phase
	Step    int    // Current entry number
	Total   int    // Entries in this run
	Message string // Human-readable message for display
	Data    any    // Optional phase-specific data for advanced UIs
}

// Phase of a dispatch run.
type Phase int

const (
	Select Phase = iota
	Download
	Upload
	Cleanup
	Done
)

func (p Phase) String() string {
	switch p {
	case Select:
		return "select"
	case Download:
		return "download"
	case Upload:
		return "upload"
	case Cleanup:
		return "cleanup"
	case Done:
		return "done"
	default:
		return ""
	}
}

func selectingUpdate(today string) ProgressUpdate {
	return ProgressUpdate{
		Phase:   Select,
		Message: fmt.Sprintf("Selecting videos scheduled for %s...", today),
	}
}

func selectedUpdate(due []models.ScheduledVideo, today string) ProgressUpdate {
	return ProgressUpdate{
		Phase:   Select,
		Total:   len(due),
		Message: fmt.Sprintf("Found %d videos scheduled for %s", len(due), today),
		Data:    due,
	}
}

func downloadUpdate(step, total int, v models.ScheduledVideo) ProgressUpdate {
	return ProgressUpdate{
		Phase:   Download,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("[%d/%d] Downloading %s...", step, total, v.Pathname),
	}
}

func uploadUpdate(step, total int, v models.ScheduledVideo) ProgressUpdate {
	return ProgressUpdate{
		Phase:   Upload,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("[%d/%d] Uploading %q...", step, total, v.Title),
	}
}

func cleanupUpdate(step, total int, v models.ScheduledVideo) ProgressUpdate {
	return ProgressUpdate{
		Phase:   Cleanup,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("[%d/%d] Removing %s...", step, total, v.Pathname),
	}
}

func resultUpdate(step, total int, r models.DispatchResult) ProgressUpdate {
	msg := fmt.Sprintf("[%d/%d] ✓ %s %s", step, total, r.Title, r.YouTubeURL)
	if !r.Success {
		msg = fmt.Sprintf("[%d/%d] ✗ %s: %s", step, total, r.Title, r.Error)
	}
	return ProgressUpdate{
		Phase:   Cleanup,
		Step:    step,
		Total:   total,
		Message: msg,
		Data:    r,
	}
}

func doneUpdate(report models.BatchReport) ProgressUpdate {
	return ProgressUpdate{
		Phase:   Done,
		Step:    report.Processed,
		Total:   report.Processed,
		Message: report.Message(),
		Data:    report,
	}
}
