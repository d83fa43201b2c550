package tasks

import (
	"context"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/charmbracelet/log"

	"github.com/desertthunder/ytsched/internal/models"
	"github.com/desertthunder/ytsched/internal/repositories"
	th "github.com/desertthunder/ytsched/internal/testing"
)

type fixture struct {
	blobs    *th.MemoryBlobStore
	kv       *th.MemoryKV
	videos   *repositories.VideoRepository
	uploader *th.FakeUploader
	now      time.Time
}

func quietLogger() *log.Logger {
	return log.New(io.Discard)
}

func newFixture(t *testing.T, now time.Time) *fixture {
	t.Helper()
	kv := th.NewMemoryKV()
	return &fixture{
		blobs:    th.NewMemoryBlobStore(),
		kv:       kv,
		videos:   repositories.NewVideoRepository(kv, quietLogger()),
		uploader: &th.FakeUploader{},
		now:      now,
	}
}

func (f *fixture) clock() time.Time { return f.now }

func (f *fixture) selector() *Selector {
	return NewSelector(f.blobs, f.videos, quietLogger(), WithClock(f.clock))
}

func (f *fixture) dispatcher() *Dispatcher {
	return NewDispatcher(f.selector(), f.blobs, f.videos, f.uploader, time.Minute, quietLogger())
}

// seed stores a blob and its record directly.
func (f *fixture) seed(t *testing.T, pathname, title, date string) models.ScheduledVideo {
	t.Helper()
	b := f.blobs.Seed(pathname, []byte("bytes of "+title))
	v := models.ScheduledVideo{
		URL:           b.URL,
		BlobURL:       b.URL,
		Pathname:      pathname,
		Title:         title,
		Description:   "about " + title,
		ScheduledDate: date,
	}
	if err := f.videos.Save(context.Background(), &v); err != nil {
		t.Fatalf("seed %s: %v", pathname, err)
	}
	return v
}

func mustTime(t *testing.T, s string) time.Time {
	t.Helper()
	ts, err := time.Parse(time.RFC3339, s)
	if err != nil {
		t.Fatalf("parse %s: %v", s, err)
	}
	return ts
}

func TestUTCToday(t *testing.T) {
	t.Run("uses UTC calendar date", func(t *testing.T) {
		// 23:30 on the 4th in New York is already the 5th in UTC.
		ny := time.FixedZone("EST", -5*60*60)
		now := time.Date(2025, 3, 4, 23, 30, 0, 0, ny)
		if got := UTCToday(func() time.Time { return now }); got != "2025-03-05" {
			t.Errorf("expected 2025-03-05, got %s", got)
		}
	})
}

func TestPhaseString(t *testing.T) {
	cases := map[Phase]string{Select: "select", Download: "download", Upload: "upload", Cleanup: "cleanup", Done: "done", Phase(99): ""}
	for p, want := range cases {
		if got := p.String(); got != want {
			t.Errorf("Phase(%d).String() = %q, want %q", p, got, want)
		}
	}
}

func TestSendProgress(t *testing.T) {
	t.Run("nil channel is ignored", func(t *testing.T) {
		sendProgress(nil, ProgressUpdate{Message: "x"})
	})

	t.Run("full channel does not block", func(t *testing.T) {
		ch := make(chan ProgressUpdate, 1)
		sendProgress(ch, ProgressUpdate{Message: "first"})
		sendProgress(ch, ProgressUpdate{Message: "second"})
		if got := (<-ch).Message; got != "first" {
			t.Errorf("expected first update to be kept, got %s", got)
		}
	})

	t.Run("result update marks failures", func(t *testing.T) {
		u := resultUpdate(1, 2, models.DispatchResult{Title: "a", Error: "boom"})
		if !strings.Contains(u.Message, "✗") || !strings.Contains(u.Message, "boom") {
			t.Errorf("unexpected message %q", u.Message)
		}
	})
}
