package tasks

import (
	"context"
	"errors"
	"fmt"
	"io"
	"reflect"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/go-playground/validator/v10"

	"github.com/desertthunder/ytsched/internal/blobstore"
	"github.com/desertthunder/ytsched/internal/models"
	"github.com/desertthunder/ytsched/internal/shared"
)

// VideoPrefix is the blob namespace holding scheduled videos.
const VideoPrefix = "videos/"

// Submission is one scheduling request.
type Submission struct {
	Filename      string    `form:"video" validate:"required"`
	Content       io.Reader `form:"video" validate:"required"`
	Size          int64     `form:"-"`
	ContentType   string    `form:"-"`
	Title         string    `form:"title" validate:"required"`
	Description   string    `form:"description"`
	ScheduledDate string    `form:"scheduledDate" validate:"required"`
}

// Receipt describes a stored submission.
type Receipt struct {
	BlobURL       string `json:"blobUrl"`
	Pathname      string `json:"pathname"`
	ScheduledDate string `json:"scheduledDate"`
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name, _, _ := strings.Cut(fld.Tag.Get("form"), ",")
		if name == "-" || name == "" {
			return fld.Name
		}
		return name
	})
	return v
}

// Validate reports missing fields as [shared.ErrValidation] and a malformed date as [shared.ErrInvalidInput].
func (s Submission) Validate() error {
	if err := validate.Struct(s); err != nil {
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) {
			return fmt.Errorf("%w: %v", shared.ErrValidation, err)
		}

		var fields []string
		seen := map[string]bool{}
		for _, fe := range verrs {
			if !seen[fe.Field()] {
				seen[fe.Field()] = true
				fields = append(fields, fe.Field())
			}
		}
		return fmt.Errorf("%w: %s", shared.ErrValidation, strings.Join(fields, ", "))
	}

	if _, err := models.ParseDate(s.ScheduledDate); err != nil {
		return fmt.Errorf("%w: scheduledDate %q is not a YYYY-MM-DD date", shared.ErrInvalidInput, s.ScheduledDate)
	}
	return nil
}

// baseName strips any client-side directory from a filename.
func baseName(filename string) string {
	if i := strings.LastIndexAny(filename, `/\`); i >= 0 {
		filename = filename[i+1:]
	}
	return filename
}

// Intake accepts submissions and persists them.
type Intake struct {
	blobs  blobstore.Store
	videos VideoStore
	logger *log.Logger
	prefix string
}

// IntakeOption configures an [Intake].
type IntakeOption func(*Intake)

// WithIntakePrefix changes the blob namespace new videos are written under.
// It should match the prefix the [Selector] scans.
func WithIntakePrefix(prefix string) IntakeOption {
	return func(in *Intake) {
		if prefix != "" {
			in.prefix = prefix
		}
	}
}

// NewIntake creates an Intake writing under [VideoPrefix].
func NewIntake(blobs blobstore.Store, videos VideoStore, logger *log.Logger, opts ...IntakeOption) *Intake {
	if logger == nil {
		logger = shared.NewLogger(nil)
	}
	in := &Intake{
		blobs:  blobs,
		videos: videos,
		logger: shared.WithLogger(logger, "component", "intake"),
		prefix: VideoPrefix,
	}
	for _, opt := range opts {
		opt(in)
	}
	return in
}

// Schedule stores the payload and then its record.
//
// When the record cannot be written the blob is deleted again so no orphan is left behind.
func (in *Intake) Schedule(ctx context.Context, sub Submission) (*Receipt, error) {
	if err := sub.Validate(); err != nil {
		return nil, err
	}

	name := baseName(sub.Filename)
	if name == "" || name == "." || name == ".." {
		return nil, fmt.Errorf("%w: filename %q", shared.ErrInvalidInput, sub.Filename)
	}

	blob, err := in.blobs.Put(ctx, in.prefix+name, sub.Content, blobstore.PutOptions{
		ContentType: sub.ContentType,
		Size:        sub.Size,
	})
	if err != nil {
		return nil, upstream("failed to store video", err)
	}

	record := &models.ScheduledVideo{
		URL:           blob.URL,
		Title:         sub.Title,
		Description:   sub.Description,
		ScheduledDate: sub.ScheduledDate,
		Pathname:      blob.Pathname,
		BlobURL:       blob.URL,
	}

	if err := in.videos.Save(ctx, record); err != nil {
		if derr := in.blobs.Delete(ctx, blob.URL); derr != nil {
			in.logger.Error("failed to remove orphaned blob", "pathname", blob.Pathname, "error", derr)
		} else {
			in.logger.Warn("removed blob after metadata write failed", "pathname", blob.Pathname)
		}
		return nil, upstream("failed to save metadata", err)
	}

	in.logger.Info("scheduled video", "pathname", blob.Pathname, "title", sub.Title, "scheduledDate", sub.ScheduledDate)
	return &Receipt{BlobURL: blob.URL, Pathname: blob.Pathname, ScheduledDate: sub.ScheduledDate}, nil
}
