package services

import (
	"context"
	"io"

	"golang.org/x/oauth2"
)

// VideoMetadata is the publish-time description of an upload.
type VideoMetadata struct {
	Title       string
	Description string
}

// Uploader publishes a video and returns the platform's id for it.
type Uploader interface {
	Upload(ctx context.Context, media io.Reader, meta VideoMetadata) (string, error)
}

// Authenticator drives the one-time OAuth2 consent flow.
type Authenticator interface {
	AuthURL(state string) string
	Exchange(ctx context.Context, code string) (*oauth2.Token, error)
}
