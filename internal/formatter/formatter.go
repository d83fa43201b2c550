// package formatter renders the schedule queue and dispatch reports as JSON, CSV, Markdown or plain text
package formatter

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"

	"github.com/desertthunder/ytsched/internal/models"
	"github.com/desertthunder/ytsched/internal/shared"
)

// Format is an output format name.
type Format string

const (
	JSON     Format = "json"
	CSV      Format = "csv"
	Markdown Format = "markdown"
	Text     Format = "txt"
)

// Formats lists the accepted format names in help-text order.
var Formats = []Format{Text, JSON, CSV, Markdown}

// ParseFormat maps a flag value or file extension to a [Format].
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimPrefix(s, ".")) {
	case "", "txt", "text":
		return Text, nil
	case "json":
		return JSON, nil
	case "csv":
		return CSV, nil
	case "md", "markdown":
		return Markdown, nil
	default:
		return "", fmt.Errorf("%w: unknown format %q", shared.ErrInvalidArgument, s)
	}
}

// FormatFromPath picks a format from the file extension of path.
func FormatFromPath(path string) (Format, error) {
	return ParseFormat(filepath.Ext(path))
}

// QueueToCSV writes one row per scheduled video with columns: Pathname, Title, ScheduledDate, URL, Description
func QueueToCSV(videos []models.ScheduledVideo) ([]byte, error) {
	rows := make([][]string, 0, len(videos))
	for _, v := range videos {
		rows = append(rows, []string{v.Pathname, v.Title, v.ScheduledDate, v.URL, v.Description})
	}
	return writeCSV([]string{"Pathname", "Title", "ScheduledDate", "URL", "Description"}, rows)
}

// QueueToMarkdown groups the queue by date; entries due on today are marked.
func QueueToMarkdown(videos []models.ScheduledVideo, today string) ([]byte, error) {
	var buf bytes.Buffer

	buf.WriteString("# Scheduled videos\n\n")
	fmt.Fprintf(&buf, "**Today (UTC)**: %s\n", today)
	fmt.Fprintf(&buf, "**Queued**: %d\n\n", len(videos))

	for i, date := range groupDates(videos) {
		if i > 0 {
			buf.WriteString("\n")
		}
		heading := date
		if date == today {
			heading += " (today)"
		}
		fmt.Fprintf(&buf, "## %s\n\n", heading)
		for _, v := range videos {
			if v.ScheduledDate != date {
				continue
			}
			fmt.Fprintf(&buf, "- **%s** `%s`", v.Title, v.Pathname)
			if v.Description != "" {
				fmt.Fprintf(&buf, ": %s", oneLine(v.Description))
			}
			buf.WriteString("\n")
		}
	}

	return buf.Bytes(), nil
}

// QueueToText renders a plain listing of the queue.
func QueueToText(videos []models.ScheduledVideo, today string) ([]byte, error) {
	var buf bytes.Buffer

	fmt.Fprintf(&buf, "Today (UTC): %s\n", today)
	fmt.Fprintf(&buf, "Queued: %d\n\n", len(videos))
	for i, v := range videos {
		marker := " "
		if v.DueOn(today) {
			marker = "*"
		}
		fmt.Fprintf(&buf, "%s %d. [%s] %s (%s)\n", marker, i+1, v.ScheduledDate, v.Title, v.Pathname)
	}

	return buf.Bytes(), nil
}

// ReportToCSV writes one row per dispatch result with columns: Title, Pathname, Success, YouTubeURL, Error
func ReportToCSV(report models.BatchReport) ([]byte, error) {
	rows := make([][]string, 0, len(report.Results))
	for _, r := range report.Results {
		rows = append(rows, []string{r.Title, r.Pathname, strconv.FormatBool(r.Success), r.YouTubeURL, r.Error})
	}
	return writeCSV([]string{"Title", "Pathname", "Success", "YouTubeURL", "Error"}, rows)
}

// ReportToMarkdown renders a dispatch report.
func ReportToMarkdown(report models.BatchReport) ([]byte, error) {
	var buf bytes.Buffer

	buf.WriteString("# Dispatch report\n\n")
	fmt.Fprintf(&buf, "%s\n\n", report.Message())
	if len(report.Results) == 0 {
		return buf.Bytes(), nil
	}

	buf.WriteString("| Title | Status | Link |\n")
	buf.WriteString("|---|---|---|\n")
	for _, r := range report.Results {
		status, link := "uploaded", fmt.Sprintf("[watch](%s)", r.YouTubeURL)
		if !r.Success {
			status, link = "failed: "+oneLine(r.Error), ""
		}
		fmt.Fprintf(&buf, "| %s | %s | %s |\n", escapeCell(r.Title), escapeCell(status), link)
	}

	return buf.Bytes(), nil
}

// ReportToText renders a dispatch report as plain lines.
func ReportToText(report models.BatchReport) ([]byte, error) {
	var buf bytes.Buffer

	for i, r := range report.Results {
		if r.Success {
			fmt.Fprintf(&buf, "%d. ✓ %s %s\n", i+1, r.Title, r.YouTubeURL)
		} else {
			fmt.Fprintf(&buf, "%d. ✗ %s: %s\n", i+1, r.Title, r.Error)
		}
	}
	if len(report.Results) > 0 {
		buf.WriteString("\n")
	}
	buf.WriteString(report.Message() + "\n")

	return buf.Bytes(), nil
}

// RenderQueue renders the queue in format.
func RenderQueue(format Format, videos []models.ScheduledVideo, today string) ([]byte, error) {
	switch format {
	case JSON:
		if videos == nil {
			videos = []models.ScheduledVideo{}
		}
		return shared.MarshalJSON(videos, true)
	case CSV:
		return QueueToCSV(videos)
	case Markdown:
		return QueueToMarkdown(videos, today)
	case Text, "":
		return QueueToText(videos, today)
	default:
		return nil, fmt.Errorf("%w: unknown format %q", shared.ErrInvalidArgument, format)
	}
}

// RenderReport renders a dispatch report in format.
func RenderReport(format Format, report models.BatchReport) ([]byte, error) {
	switch format {
	case JSON:
		return shared.MarshalJSON(report, true)
	case CSV:
		return ReportToCSV(report)
	case Markdown:
		return ReportToMarkdown(report)
	case Text, "":
		return ReportToText(report)
	default:
		return nil, fmt.Errorf("%w: unknown format %q", shared.ErrInvalidArgument, format)
	}
}

// WriteExport writes data to path, creating parent directories.
func WriteExport(path string, data []byte) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create directory: %w", err)
		}
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}

func writeCSV(headers []string, rows [][]string) ([]byte, error) {
	var buf bytes.Buffer
	writer := csv.NewWriter(&buf)

	if err := writer.Write(headers); err != nil {
		return nil, fmt.Errorf("failed to write CSV headers: %w", err)
	}
	for _, row := range rows {
		if err := writer.Write(row); err != nil {
			return nil, fmt.Errorf("failed to write CSV record: %w", err)
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, fmt.Errorf("CSV writer error: %w", err)
	}
	return buf.Bytes(), nil
}

// groupDates returns the distinct scheduled dates in ascending order.
func groupDates(videos []models.ScheduledVideo) []string {
	seen := map[string]bool{}
	var dates []string
	for _, v := range videos {
		if !seen[v.ScheduledDate] {
			seen[v.ScheduledDate] = true
			dates = append(dates, v.ScheduledDate)
		}
	}
	slices.Sort(dates)
	return dates
}

func oneLine(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func escapeCell(s string) string {
	return strings.ReplaceAll(s, "|", `\|`)
}
