package services

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"golang.org/x/oauth2"
	"google.golang.org/api/youtube/v3"

	"github.com/desertthunder/ytsched/internal/shared"
)

func testConfig() shared.YouTubeConfig {
	return shared.YouTubeConfig{
		ClientID:     "test_client_id",
		ClientSecret: "test_client_secret",
		RedirectURI:  "http://localhost:3000/api/auth/callback",
		RefreshToken: "test_refresh_token",
	}
}

// fakeYouTube records the metadata and media of a videos.insert call.
type fakeYouTube struct {
	t         *testing.T
	status    int
	metadata  youtube.Video
	media     string
	query     url.Values
	authHdr   string
	tokenHits int
}

func (f *fakeYouTube) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path == "/token" {
		f.tokenHits++
		r.ParseForm()
		if r.Form.Get("refresh_token") != "test_refresh_token" {
			w.WriteHeader(http.StatusBadRequest)
			w.Write([]byte(`{"error":"invalid_grant"}`))
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"access_token":"fresh-access","token_type":"Bearer","expires_in":3600}`))
		return
	}

	if !strings.HasSuffix(r.URL.Path, "/youtube/v3/videos") {
		f.t.Errorf("unexpected path %s", r.URL.Path)
		http.NotFound(w, r)
		return
	}

	f.query = r.URL.Query()
	f.authHdr = r.Header.Get("Authorization")

	_, params, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if err != nil {
		f.t.Errorf("bad content type: %v", err)
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	mr := multipart.NewReader(r.Body, params["boundary"])

	part, err := mr.NextPart()
	if err != nil {
		f.t.Errorf("missing metadata part: %v", err)
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	json.NewDecoder(part).Decode(&f.metadata)

	part, err = mr.NextPart()
	if err != nil {
		f.t.Errorf("missing media part: %v", err)
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	media, _ := io.ReadAll(part)
	f.media = string(media)

	if f.status != 0 {
		w.WriteHeader(f.status)
		w.Write([]byte(`{"error":{"code":403,"message":"quota exceeded","errors":[{"reason":"quotaExceeded"}]}}`))
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Write([]byte(`{"id":"dQw4w9WgXcQ","snippet":{"title":"` + f.metadata.Snippet.Title + `"}}`))
}

func TestNewYouTubeService(t *testing.T) {
	t.Run("defaults", func(t *testing.T) {
		srv, err := NewYouTubeService(testConfig())
		if err != nil {
			t.Fatalf("NewYouTubeService() error = %v", err)
		}
		if srv.categoryID != "22" || srv.privacy != "public" {
			t.Errorf("defaults = %q/%q", srv.categoryID, srv.privacy)
		}
	})

	t.Run("missing client id", func(t *testing.T) {
		cfg := testConfig()
		cfg.ClientID = ""
		if _, err := NewYouTubeService(cfg); !errors.Is(err, shared.ErrMissingCredentials) {
			t.Errorf("expected ErrMissingCredentials, got %v", err)
		}
	})

	t.Run("missing client secret", func(t *testing.T) {
		cfg := testConfig()
		cfg.ClientSecret = ""
		if _, err := NewYouTubeService(cfg); !errors.Is(err, shared.ErrMissingCredentials) {
			t.Errorf("expected ErrMissingCredentials, got %v", err)
		}
	})
}

func TestAuthURL(t *testing.T) {
	srv, _ := NewYouTubeService(testConfig())
	raw := srv.AuthURL("state-123")

	u, err := url.Parse(raw)
	if err != nil {
		t.Fatalf("invalid auth url: %v", err)
	}
	q := u.Query()

	checks := map[string]string{
		"client_id":     "test_client_id",
		"redirect_uri":  "http://localhost:3000/api/auth/callback",
		"scope":         "https://www.googleapis.com/auth/youtube.upload",
		"access_type":   "offline",
		"prompt":        "consent",
		"state":         "state-123",
		"response_type": "code",
	}
	for k, want := range checks {
		if got := q.Get(k); got != want {
			t.Errorf("%s = %q, want %q", k, got, want)
		}
	}
	if !strings.HasPrefix(raw, "https://accounts.google.com/") {
		t.Errorf("auth url should target Google, got %s", raw)
	}
}

func TestExchange(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		r.ParseForm()
		if r.Form.Get("code") != "good-code" {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusBadRequest)
			w.Write([]byte(`{"error":"invalid_grant","error_description":"Bad Request"}`))
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"access_token":"at","refresh_token":"rt","token_type":"Bearer","expires_in":3599}`))
	}))
	defer server.Close()

	srv, _ := NewYouTubeService(testConfig(), WithOAuthEndpoint(oauth2.Endpoint{
		AuthURL:  server.URL + "/auth",
		TokenURL: server.URL + "/token",
	}))

	t.Run("success", func(t *testing.T) {
		token, err := srv.Exchange(context.Background(), "good-code")
		if err != nil {
			t.Fatalf("Exchange() error = %v", err)
		}
		if token.RefreshToken != "rt" || token.AccessToken != "at" {
			t.Errorf("unexpected token %+v", token)
		}
	})

	t.Run("rejected code", func(t *testing.T) {
		if _, err := srv.Exchange(context.Background(), "bad-code"); !errors.Is(err, shared.ErrAuthFailed) {
			t.Errorf("expected ErrAuthFailed, got %v", err)
		}
	})
}

func TestUpload(t *testing.T) {
	newService := func(t *testing.T, fake *fakeYouTube, cfg shared.YouTubeConfig) *YouTubeService {
		t.Helper()
		server := httptest.NewServer(fake)
		t.Cleanup(server.Close)

		srv, err := NewYouTubeService(cfg,
			WithEndpoint(server.URL+"/"),
			WithOAuthEndpoint(oauth2.Endpoint{AuthURL: server.URL + "/auth", TokenURL: server.URL + "/token"}),
		)
		if err != nil {
			t.Fatalf("NewYouTubeService() error = %v", err)
		}
		return srv
	}

	t.Run("inserts snippet and status", func(t *testing.T) {
		fake := &fakeYouTube{t: t}
		srv := newService(t, fake, testConfig())

		id, err := srv.Upload(context.Background(), strings.NewReader("video-bytes"), VideoMetadata{Title: "Launch", Description: "Day one"})
		if err != nil {
			t.Fatalf("Upload() error = %v", err)
		}
		if id != "dQw4w9WgXcQ" {
			t.Errorf("id = %q", id)
		}

		if got := fake.query.Get("part"); got != "snippet,status" {
			t.Errorf("part = %q", got)
		}
		if fake.metadata.Snippet.Title != "Launch" || fake.metadata.Snippet.Description != "Day one" {
			t.Errorf("snippet = %+v", fake.metadata.Snippet)
		}
		if fake.metadata.Snippet.CategoryId != "22" {
			t.Errorf("categoryId = %q", fake.metadata.Snippet.CategoryId)
		}
		if fake.metadata.Status.PrivacyStatus != "public" {
			t.Errorf("privacyStatus = %q", fake.metadata.Status.PrivacyStatus)
		}
		if fake.media != "video-bytes" {
			t.Errorf("media = %q", fake.media)
		}
		if fake.tokenHits != 1 || fake.authHdr != "Bearer fresh-access" {
			t.Errorf("expected refreshed access token, hits=%d auth=%q", fake.tokenHits, fake.authHdr)
		}
	})

	t.Run("configured category and privacy", func(t *testing.T) {
		fake := &fakeYouTube{t: t}
		cfg := testConfig()
		cfg.CategoryID = "Education"
		cfg.PrivacyStatus = "unlisted"
		srv := newService(t, fake, cfg)

		if _, err := srv.Upload(context.Background(), strings.NewReader("x"), VideoMetadata{Title: "T"}); err != nil {
			t.Fatalf("Upload() error = %v", err)
		}
		if fake.metadata.Snippet.CategoryId != "27" || fake.metadata.Status.PrivacyStatus != "unlisted" {
			t.Errorf("metadata = %+v %+v", fake.metadata.Snippet, fake.metadata.Status)
		}
	})

	t.Run("api error", func(t *testing.T) {
		fake := &fakeYouTube{t: t, status: http.StatusForbidden}
		srv := newService(t, fake, testConfig())

		_, err := srv.Upload(context.Background(), strings.NewReader("x"), VideoMetadata{Title: "T"})
		if !errors.Is(err, shared.ErrUpstream) {
			t.Fatalf("expected ErrUpstream, got %v", err)
		}
		if !strings.Contains(err.Error(), "quota exceeded") {
			t.Errorf("error should carry API message: %v", err)
		}
	})

	t.Run("missing refresh token", func(t *testing.T) {
		cfg := testConfig()
		cfg.RefreshToken = ""
		srv, _ := NewYouTubeService(cfg)

		_, err := srv.Upload(context.Background(), strings.NewReader("x"), VideoMetadata{Title: "T"})
		if !errors.Is(err, shared.ErrNoRefreshToken) {
			t.Errorf("expected ErrNoRefreshToken, got %v", err)
		}
	})

	t.Run("empty title", func(t *testing.T) {
		srv, _ := NewYouTubeService(testConfig())
		_, err := srv.Upload(context.Background(), strings.NewReader("x"), VideoMetadata{})
		if !errors.Is(err, shared.ErrInvalidInput) {
			t.Errorf("expected ErrInvalidInput, got %v", err)
		}
	})
}

func TestUploadOptions(t *testing.T) {
	t.Run("CategoryID", func(t *testing.T) {
		tc := map[string]string{"22": "22", "People & Blogs": "22", "Music": "10", "99": "", "": ""}
		for in, want := range tc {
			if got := CategoryID(in); got != want {
				t.Errorf("CategoryID(%q) = %q, want %q", in, got, want)
			}
		}
	})

	t.Run("WithPrivacy rejects unknown", func(t *testing.T) {
		video := &youtube.Video{Snippet: &youtube.VideoSnippet{}, Status: &youtube.VideoStatus{}}
		if err := WithPrivacy("friends-only")(video); err == nil {
			t.Error("expected error")
		}
		if err := WithPrivacy("private")(video); err != nil || video.Status.PrivacyStatus != "private" {
			t.Errorf("WithPrivacy(private) = %v, %q", err, video.Status.PrivacyStatus)
		}
	})
}
