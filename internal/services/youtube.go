package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
	"google.golang.org/api/youtube/v3"

	"github.com/desertthunder/ytsched/internal/shared"
)

const (
	// PeopleAndBlogsCategoryID is the default upload category.
	PeopleAndBlogsCategoryID = "22"
	// DefaultPrivacy is the default upload privacy status.
	DefaultPrivacy = "public"
)

var categories = map[string]string{
	"1":  "Film & Animation",
	"2":  "Autos & Vehicles",
	"10": "Music",
	"15": "Pets & Animals",
	"17": "Sports",
	"19": "Travel & Events",
	"20": "Gaming",
	"22": "People & Blogs",
	"23": "Comedy",
	"24": "Entertainment",
	"25": "News & Politics",
	"26": "Howto & Style",
	"27": "Education",
	"28": "Science & Technology",
	"29": "Nonprofits & Activism",
}

var privacyStatuses = map[string]bool{"public": true, "unlisted": true, "private": true}

// CategoryID resolves a category id or name to its id, or "" when unknown.
func CategoryID(cat string) string {
	for id, name := range categories {
		if id == cat || name == cat {
			return id
		}
	}
	return ""
}

// ValidPrivacy reports whether privacy is an accepted privacy status.
func ValidPrivacy(privacy string) bool {
	return privacyStatuses[privacy]
}

// VideoUploadOption customizes the inserted video resource.
type VideoUploadOption func(*youtube.Video) error

// WithTitle sets the title, which the platform requires.
func WithTitle(title string) VideoUploadOption {
	return func(video *youtube.Video) error {
		if title == "" {
			return fmt.Errorf("%w: title cannot be empty", shared.ErrInvalidInput)
		}
		video.Snippet.Title = title
		return nil
	}
}

// WithDescription sets the description. Empty descriptions are allowed.
func WithDescription(description string) VideoUploadOption {
	return func(video *youtube.Video) error {
		video.Snippet.Description = description
		return nil
	}
}

// WithCategory sets the category by id or name.
func WithCategory(category string) VideoUploadOption {
	return func(video *youtube.Video) error {
		id := CategoryID(category)
		if id == "" {
			return fmt.Errorf("%w: invalid category ID or name: %s", shared.ErrInvalidInput, category)
		}
		video.Snippet.CategoryId = id
		return nil
	}
}

// WithPrivacy sets the privacy status.
func WithPrivacy(privacy string) VideoUploadOption {
	return func(video *youtube.Video) error {
		if !ValidPrivacy(privacy) {
			return fmt.Errorf("%w: invalid privacy status: %s", shared.ErrInvalidInput, privacy)
		}
		video.Status.PrivacyStatus = privacy
		return nil
	}
}

// YouTubeService uploads videos with the YouTube Data API v3 and runs the OAuth2 bootstrap.
type YouTubeService struct {
	config       *oauth2.Config
	refreshToken string
	categoryID   string
	privacy      string
	httpClient   *http.Client
	endpoint     string
}

// YouTubeOption configures a [YouTubeService].
type YouTubeOption func(*YouTubeService)

// WithHTTPClient uses client for API calls instead of one built from the refresh token.
func WithHTTPClient(client *http.Client) YouTubeOption {
	return func(y *YouTubeService) { y.httpClient = client }
}

// WithEndpoint overrides the API base URL.
func WithEndpoint(endpoint string) YouTubeOption {
	return func(y *YouTubeService) { y.endpoint = endpoint }
}

// WithOAuthEndpoint overrides the OAuth2 authorization and token URLs.
func WithOAuthEndpoint(endpoint oauth2.Endpoint) YouTubeOption {
	return func(y *YouTubeService) { y.config.Endpoint = endpoint }
}

// NewYouTubeService creates the service from the [youtube] config section.
//
// Client id and secret are required; the refresh token is only needed for uploads.
func NewYouTubeService(cfg shared.YouTubeConfig, opts ...YouTubeOption) (*YouTubeService, error) {
	if cfg.ClientID == "" {
		return nil, fmt.Errorf("%w: YOUTUBE_CLIENT_ID", shared.ErrMissingCredentials)
	}
	if cfg.ClientSecret == "" {
		return nil, fmt.Errorf("%w: YOUTUBE_CLIENT_SECRET", shared.ErrMissingCredentials)
	}

	category := cfg.CategoryID
	if category == "" {
		category = PeopleAndBlogsCategoryID
	}
	privacy := cfg.PrivacyStatus
	if privacy == "" {
		privacy = DefaultPrivacy
	}

	y := &YouTubeService{
		config: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.RedirectURI,
			Scopes:       []string{youtube.YoutubeUploadScope},
			Endpoint:     google.Endpoint,
		},
		refreshToken: cfg.RefreshToken,
		categoryID:   category,
		privacy:      privacy,
	}
	for _, opt := range opts {
		opt(y)
	}
	return y, nil
}

// AuthURL returns the consent URL requesting offline access so the exchange yields a refresh token.
func (y *YouTubeService) AuthURL(state string) string {
	return y.config.AuthCodeURL(state, oauth2.AccessTypeOffline, oauth2.ApprovalForce)
}

// Exchange trades an authorization code for tokens.
func (y *YouTubeService) Exchange(ctx context.Context, code string) (*oauth2.Token, error) {
	token, err := y.config.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", shared.ErrAuthFailed, err)
	}
	return token, nil
}

// SetRedirectURL changes the redirect URI, used when the CLI login picks its own callback port.
func (y *YouTubeService) SetRedirectURL(u string) {
	y.config.RedirectURL = u
}

// client returns the authenticated HTTP client for API calls.
func (y *YouTubeService) client(ctx context.Context) (*http.Client, error) {
	if y.httpClient != nil {
		return y.httpClient, nil
	}
	if y.refreshToken == "" {
		return nil, shared.ErrNoRefreshToken
	}
	return y.config.Client(ctx, &oauth2.Token{RefreshToken: y.refreshToken}), nil
}

func (y *YouTubeService) service(ctx context.Context) (*youtube.Service, error) {
	client, err := y.client(ctx)
	if err != nil {
		return nil, err
	}

	opts := []option.ClientOption{option.WithHTTPClient(client)}
	if y.endpoint != "" {
		opts = append(opts, option.WithEndpoint(y.endpoint))
	}

	svc, err := youtube.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create YouTube service: %w", err)
	}
	return svc, nil
}

// Upload inserts media as a new video and returns its id.
func (y *YouTubeService) Upload(ctx context.Context, media io.Reader, meta VideoMetadata) (string, error) {
	return y.UploadWithOptions(ctx, media,
		WithTitle(meta.Title),
		WithDescription(meta.Description),
		WithCategory(y.categoryID),
		WithPrivacy(y.privacy),
	)
}

// UploadWithOptions inserts media with the configured defaults adjusted by opts.
func (y *YouTubeService) UploadWithOptions(ctx context.Context, media io.Reader, opts ...VideoUploadOption) (string, error) {
	video := &youtube.Video{
		Snippet: &youtube.VideoSnippet{CategoryId: y.categoryID},
		Status:  &youtube.VideoStatus{PrivacyStatus: y.privacy},
	}
	for _, opt := range opts {
		if err := opt(video); err != nil {
			return "", fmt.Errorf("failed to apply option: %w", err)
		}
	}

	svc, err := y.service(ctx)
	if err != nil {
		return "", err
	}

	inserted, err := svc.Videos.Insert([]string{"snippet", "status"}, video).Media(media).Context(ctx).Do()
	if err != nil {
		return "", uploadError(err)
	}
	if inserted.Id == "" {
		return "", fmt.Errorf("%w: upload returned no video id", shared.ErrUpstream)
	}
	return inserted.Id, nil
}

func uploadError(err error) error {
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		msg := apiErr.Message
		if msg == "" {
			msg = http.StatusText(apiErr.Code)
		}
		return fmt.Errorf("%w: youtube upload: %d %s", shared.ErrUpstream, apiErr.Code, msg)
	}

	var retrieveErr *oauth2.RetrieveError
	if errors.As(err, &retrieveErr) {
		return fmt.Errorf("%w: refresh token rejected: %v", shared.ErrAuthFailed, err)
	}
	return fmt.Errorf("%w: youtube upload: %v", shared.ErrUpstream, err)
}
