package models

import (
	"fmt"
	"strings"
	"time"
)

// DateLayout is the ISO calendar date format used for scheduled dates.
const DateLayout = "2006-01-02"

const (
	videoKeyPrefix = "video:"
	leaseKeyPrefix = "lease:"
)

// WatchURLBase prefixes a platform video id to form its public watch URL.
const WatchURLBase = "https://www.youtube.com/watch?v="

// ScheduledVideo is a pending upload: a stored blob plus the metadata needed to publish it.
type ScheduledVideo struct {
	URL           string `json:"url"`
	Title         string `json:"title"`
	Description   string `json:"description"`
	ScheduledDate string `json:"scheduledDate"`
	Pathname      string `json:"pathname"`
	BlobURL       string `json:"blobUrl"`
}

// Key returns the metadata store key for v.
func (v ScheduledVideo) Key() string {
	return VideoKey(v.Pathname)
}

// Validate checks the fields every stored record must carry.
func (v ScheduledVideo) Validate() error {
	var missing []string
	if v.Pathname == "" {
		missing = append(missing, "pathname")
	}
	if v.URL == "" {
		missing = append(missing, "url")
	}
	if v.Title == "" {
		missing = append(missing, "title")
	}
	if v.ScheduledDate == "" {
		missing = append(missing, "scheduledDate")
	}
	if len(missing) > 0 {
		return fmt.Errorf("invalid scheduled video: missing %s", strings.Join(missing, ", "))
	}
	return nil
}

// DueOn reports whether v is scheduled for the given date string.
func (v ScheduledVideo) DueOn(date string) bool {
	return v.ScheduledDate == date
}

// VideoKey returns the metadata key for the blob at pathname.
func VideoKey(pathname string) string {
	return videoKeyPrefix + pathname
}

// LeaseKey returns the key guarding a dispatch of the blob at pathname.
func LeaseKey(pathname string) string {
	return leaseKeyPrefix + VideoKey(pathname)
}

// ParseDate parses an ISO calendar date.
func ParseDate(s string) (time.Time, error) {
	return time.Parse(DateLayout, s)
}

// DateOf formats t's UTC calendar date.
func DateOf(t time.Time) string {
	return t.UTC().Format(DateLayout)
}

// WatchURL returns the public URL of the platform video with the given id.
func WatchURL(videoID string) string {
	return WatchURLBase + videoID
}

// DispatchResult records the outcome of dispatching one entry.
type DispatchResult struct {
	Title      string `json:"title"`
	Pathname   string `json:"pathname,omitempty"`
	Success    bool   `json:"success"`
	YouTubeURL string `json:"youtubeUrl,omitempty"`
	Error      string `json:"error,omitempty"`
}

// BatchReport summarizes one dispatch run.
type BatchReport struct {
	Processed int              `json:"processed"`
	Uploaded  int              `json:"uploaded"`
	Results   []DispatchResult `json:"results"`
}

// Add appends r and updates the counters.
func (b *BatchReport) Add(r DispatchResult) {
	b.Results = append(b.Results, r)
	b.Processed = len(b.Results)
	if r.Success {
		b.Uploaded++
	}
}

// Failed returns the number of unsuccessful results.
func (b BatchReport) Failed() int {
	return b.Processed - b.Uploaded
}

// Message renders the summary line returned by the trigger routes.
func (b BatchReport) Message() string {
	if b.Processed == 0 {
		return "No videos scheduled for today"
	}
	return fmt.Sprintf("Processed %d videos, %d uploaded successfully", b.Processed, b.Uploaded)
}
