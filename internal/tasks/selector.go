package tasks

import (
	"context"
	"time"

	"github.com/charmbracelet/log"

	"github.com/desertthunder/ytsched/internal/blobstore"
	"github.com/desertthunder/ytsched/internal/models"
	"github.com/desertthunder/ytsched/internal/repositories"
	"github.com/desertthunder/ytsched/internal/shared"
)

// Selector finds the videos due for publication.
type Selector struct {
	blobs  blobstore.Store
	videos VideoStore
	prefix string
	now    Clock
	logger *log.Logger
}

// SelectorOption configures a [Selector].
type SelectorOption func(*Selector)

// WithClock pins the time source.
func WithClock(now Clock) SelectorOption {
	return func(s *Selector) { s.now = now }
}

// WithPrefix changes the blob namespace that is scanned.
func WithPrefix(prefix string) SelectorOption {
	return func(s *Selector) {
		if prefix != "" {
			s.prefix = prefix
		}
	}
}

// NewSelector creates a Selector scanning [VideoPrefix] with the system clock.
func NewSelector(blobs blobstore.Store, videos VideoStore, logger *log.Logger, opts ...SelectorOption) *Selector {
	if logger == nil {
		logger = shared.NewLogger(nil)
	}
	s := &Selector{
		blobs:  blobs,
		videos: videos,
		prefix: VideoPrefix,
		now:    time.Now,
		logger: shared.WithLogger(logger, "component", "selector"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Today returns the UTC date the selector matches against.
func (s *Selector) Today() string {
	return UTCToday(s.now)
}

// Scheduled returns the record of every listed blob that has one, in listing order.
func (s *Selector) Scheduled(ctx context.Context) ([]models.ScheduledVideo, error) {
	blobs, err := s.blobs.List(ctx, s.prefix)
	if err != nil {
		return nil, upstream("failed to list videos", err)
	}

	var videos []models.ScheduledVideo
	for _, b := range blobs {
		v, err := s.videos.Get(ctx, b.Pathname)
		if repositories.IsNotFound(err) {
			s.logger.Debug("blob has no metadata", "pathname", b.Pathname)
			continue
		}
		if err != nil {
			s.logger.Warn("skipping unreadable metadata", "pathname", b.Pathname, "error", err)
			continue
		}
		videos = append(videos, *v)
	}
	return videos, nil
}

// DueToday returns the scheduled videos whose date equals today's UTC date.
func (s *Selector) DueToday(ctx context.Context) ([]models.ScheduledVideo, string, error) {
	today := s.Today()

	all, err := s.Scheduled(ctx)
	if err != nil {
		return nil, today, err
	}

	var due []models.ScheduledVideo
	for _, v := range all {
		if v.DueOn(today) {
			due = append(due, v)
		}
	}

	s.logger.Info("selected due videos", "today", today, "scheduled", len(all), "due", len(due))
	return due, today, nil
}
