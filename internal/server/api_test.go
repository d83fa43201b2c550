package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/charmbracelet/log"
	"golang.org/x/oauth2"

	"github.com/desertthunder/ytsched/internal/models"
	"github.com/desertthunder/ytsched/internal/repositories"
	"github.com/desertthunder/ytsched/internal/shared"
	"github.com/desertthunder/ytsched/internal/tasks"
	th "github.com/desertthunder/ytsched/internal/testing"
)

type fakeAuth struct {
	token *oauth2.Token
	err   error
	state string
	code  string
}

func (f *fakeAuth) AuthURL(state string) string {
	f.state = state
	return "https://accounts.example/auth?state=" + state
}

func (f *fakeAuth) Exchange(_ context.Context, code string) (*oauth2.Token, error) {
	f.code = code
	return f.token, f.err
}

type countingRunner struct {
	calls  int
	report models.BatchReport
	err    error
}

func (c *countingRunner) Run(context.Context, chan<- tasks.ProgressUpdate) (models.BatchReport, error) {
	c.calls++
	return c.report, c.err
}

const secret = "s3cret"

func quietLogger() *log.Logger {
	return log.New(io.Discard)
}

type apiFixture struct {
	blobs  *th.MemoryBlobStore
	kv     *th.MemoryKV
	auth   *fakeAuth
	runner tasks.BatchRunner
	cfg    shared.ServerConfig
}

func newAPIFixture() *apiFixture {
	return &apiFixture{
		blobs:  th.NewMemoryBlobStore(),
		kv:     th.NewMemoryKV(),
		auth:   &fakeAuth{token: &oauth2.Token{AccessToken: "at", RefreshToken: "rt"}},
		runner: &countingRunner{report: models.BatchReport{Results: []models.DispatchResult{}}},
		cfg:    shared.ServerConfig{CronSecret: secret, MaxUploadMB: 1},
	}
}

func (f *apiFixture) handler(opts ...APIOption) http.Handler {
	videos := repositories.NewVideoRepository(f.kv, quietLogger())
	intake := tasks.NewIntake(f.blobs, videos, quietLogger())
	return NewAPI(f.cfg, f.auth, intake, f.runner, quietLogger(), opts...).Handler()
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("invalid JSON body %q: %v", rec.Body.String(), err)
	}
	return body
}

func multipartRequest(t *testing.T, fields map[string]string, filename string, content []byte) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, v := range fields {
		if err := mw.WriteField(k, v); err != nil {
			t.Fatal(err)
		}
	}
	if filename != "" {
		part, err := mw.CreateFormFile("video", filename)
		if err != nil {
			t.Fatal(err)
		}
		part.Write(content)
	}
	mw.Close()

	req := httptest.NewRequest(http.MethodPost, "/api/schedule", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func TestAuthRoutes(t *testing.T) {
	t.Run("auth url", func(t *testing.T) {
		f := newAPIFixture()
		rec := httptest.NewRecorder()
		f.handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/auth/url", nil))

		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", rec.Code)
		}
		body := decode(t, rec)
		if f.auth.state == "" || body["authUrl"] != "https://accounts.example/auth?state="+f.auth.state {
			t.Errorf("unexpected body %v", body)
		}
	})

	t.Run("auth url without credentials", func(t *testing.T) {
		f := newAPIFixture()
		videos := repositories.NewVideoRepository(f.kv, quietLogger())
		h := NewAPI(f.cfg, nil, tasks.NewIntake(f.blobs, videos, quietLogger()), f.runner, quietLogger()).Handler()

		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/auth/url", nil))
		if rec.Code != http.StatusInternalServerError {
			t.Errorf("expected 500, got %d", rec.Code)
		}
		if _, ok := decode(t, rec)["error"]; !ok {
			t.Error("expected error body")
		}
	})

	t.Run("callback returns tokens", func(t *testing.T) {
		f := newAPIFixture()
		rec := httptest.NewRecorder()
		f.handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/auth/callback?code=abc", nil))

		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
		}
		body := decode(t, rec)
		if body["success"] != true || body["refresh_token"] != "rt" || body["access_token"] != "at" {
			t.Errorf("unexpected body %v", body)
		}
		if body["message"] != CallbackMessage {
			t.Errorf("unexpected message %v", body["message"])
		}
		if f.auth.code != "abc" {
			t.Errorf("expected code to be exchanged, got %q", f.auth.code)
		}
	})

	t.Run("callback without code", func(t *testing.T) {
		f := newAPIFixture()
		rec := httptest.NewRecorder()
		f.handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/auth/callback", nil))

		if rec.Code != http.StatusBadRequest {
			t.Fatalf("expected 400, got %d", rec.Code)
		}
		if decode(t, rec)["error"] != "No code provided" {
			t.Errorf("unexpected body %s", rec.Body.String())
		}
	})

	t.Run("callback exchange failure", func(t *testing.T) {
		f := newAPIFixture()
		f.auth.err = errors.New("invalid_grant")
		rec := httptest.NewRecorder()
		f.handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/auth/callback?code=abc", nil))

		if rec.Code != http.StatusInternalServerError {
			t.Errorf("expected 500, got %d", rec.Code)
		}
	})
}

func TestScheduleRoute(t *testing.T) {
	fields := map[string]string{"title": "Hello", "description": "desc", "scheduledDate": "2025-03-06"}

	t.Run("stores submission", func(t *testing.T) {
		f := newAPIFixture()
		rec := httptest.NewRecorder()
		f.handler().ServeHTTP(rec, multipartRequest(t, fields, "clip.mp4", []byte("video")))

		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
		}
		body := decode(t, rec)
		if body["success"] != true || body["scheduledDate"] != "2025-03-06" {
			t.Errorf("unexpected body %v", body)
		}
		blobURL, _ := body["blobUrl"].(string)
		if !strings.HasPrefix(blobURL, th.URLFor("videos/clip")) {
			t.Errorf("unexpected blob url %q", blobURL)
		}
		if f.blobs.Len() != 1 || len(f.kv.Keys()) != 1 {
			t.Errorf("expected one blob and one record, got %d and %v", f.blobs.Len(), f.kv.Keys())
		}
	})

	t.Run("missing fields", func(t *testing.T) {
		cases := []struct {
			name     string
			fields   map[string]string
			filename string
		}{
			{"no video", fields, ""},
			{"no title", map[string]string{"scheduledDate": "2025-03-06"}, "clip.mp4"},
			{"no date", map[string]string{"title": "Hello"}, "clip.mp4"},
		}
		for _, tc := range cases {
			t.Run(tc.name, func(t *testing.T) {
				f := newAPIFixture()
				rec := httptest.NewRecorder()
				f.handler().ServeHTTP(rec, multipartRequest(t, tc.fields, tc.filename, []byte("video")))

				if rec.Code != http.StatusBadRequest {
					t.Fatalf("expected 400, got %d", rec.Code)
				}
				if msg, _ := decode(t, rec)["error"].(string); !strings.Contains(msg, "missing required fields") {
					t.Errorf("unexpected error %q", msg)
				}
				if f.blobs.Len() != 0 || f.kv.Calls != 0 {
					t.Error("expected no writes on validation failure")
				}
			})
		}
	})

	t.Run("malformed date", func(t *testing.T) {
		f := newAPIFixture()
		bad := map[string]string{"title": "Hello", "scheduledDate": "next week"}
		rec := httptest.NewRecorder()
		f.handler().ServeHTTP(rec, multipartRequest(t, bad, "clip.mp4", []byte("video")))
		if rec.Code != http.StatusBadRequest {
			t.Errorf("expected 400, got %d", rec.Code)
		}
	})

	t.Run("not multipart", func(t *testing.T) {
		f := newAPIFixture()
		req := httptest.NewRequest(http.MethodPost, "/api/schedule", strings.NewReader(`{"title":"x"}`))
		req.Header.Set("Content-Type", "application/json")
		rec := httptest.NewRecorder()
		f.handler().ServeHTTP(rec, req)
		if rec.Code != http.StatusBadRequest {
			t.Errorf("expected 400, got %d", rec.Code)
		}
	})

	t.Run("too large", func(t *testing.T) {
		f := newAPIFixture()
		rec := httptest.NewRecorder()
		f.handler().ServeHTTP(rec, multipartRequest(t, fields, "clip.mp4", bytes.Repeat([]byte("x"), 2<<20)))
		if rec.Code != http.StatusRequestEntityTooLarge {
			t.Errorf("expected 413, got %d", rec.Code)
		}
	})

	t.Run("store failure", func(t *testing.T) {
		f := newAPIFixture()
		f.kv.SetErr = errors.New("kv down")
		rec := httptest.NewRecorder()
		f.handler().ServeHTTP(rec, multipartRequest(t, fields, "clip.mp4", []byte("video")))

		if rec.Code != http.StatusInternalServerError {
			t.Fatalf("expected 500, got %d", rec.Code)
		}
		if f.blobs.Len() != 0 {
			t.Error("expected compensating blob delete")
		}
	})

	t.Run("wrong method", func(t *testing.T) {
		f := newAPIFixture()
		rec := httptest.NewRecorder()
		f.handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/schedule", nil))
		if rec.Code != http.StatusMethodNotAllowed {
			t.Errorf("expected 405, got %d", rec.Code)
		}
		if rec.Header().Get("Allow") != http.MethodPost {
			t.Errorf("unexpected Allow %q", rec.Header().Get("Allow"))
		}
	})
}

func TestTriggerRoutes(t *testing.T) {
	cron := func(auth string) *http.Request {
		req := httptest.NewRequest(http.MethodGet, "/api/cron/upload", nil)
		if auth != "" {
			req.Header.Set("Authorization", auth)
		}
		return req
	}
	manual := func(body string) *http.Request {
		return httptest.NewRequest(http.MethodPost, "/api/trigger", strings.NewReader(body))
	}

	t.Run("rejects bad credentials before touching stores", func(t *testing.T) {
		cases := map[string]*http.Request{
			"no header":    cron(""),
			"wrong secret": cron("Bearer nope"),
			"wrong scheme": cron("Basic " + secret),
			"bare secret":  cron(secret),
			"wrong body":   manual(`{"secret":"nope"}`),
			"empty object": manual(`{}`),
			"empty body":   manual(``),
			"not json":     manual(`not json`),
			"wrong type":   manual(`{"secret":42}`),
		}
		for name, req := range cases {
			t.Run(name, func(t *testing.T) {
				f := newAPIFixture()
				runner := f.runner.(*countingRunner)
				rec := httptest.NewRecorder()
				f.handler().ServeHTTP(rec, req)

				if rec.Code != http.StatusUnauthorized {
					t.Fatalf("expected 401, got %d", rec.Code)
				}
				if decode(t, rec)["error"] != "Unauthorized" {
					t.Errorf("unexpected body %s", rec.Body.String())
				}
				if runner.calls != 0 || f.kv.Calls != 0 {
					t.Error("expected no dispatch before authorization")
				}
			})
		}
	})

	t.Run("empty configured secret rejects everything", func(t *testing.T) {
		f := newAPIFixture()
		f.cfg.CronSecret = ""
		h := f.handler()

		for _, req := range []*http.Request{cron("Bearer "), manual(`{"secret":""}`)} {
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)
			if rec.Code != http.StatusUnauthorized {
				t.Errorf("%s: expected 401, got %d", req.URL.Path, rec.Code)
			}
		}
	})

	t.Run("nothing due", func(t *testing.T) {
		f := newAPIFixture()
		rec := httptest.NewRecorder()
		f.handler().ServeHTTP(rec, cron("Bearer "+secret))

		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", rec.Code)
		}
		body := decode(t, rec)
		if body["success"] != true || body["message"] != "No videos scheduled for today" || body["uploaded"] != float64(0) {
			t.Errorf("unexpected body %v", body)
		}
		if _, ok := body["results"]; ok {
			t.Error("expected no results for an empty run")
		}
	})

	t.Run("end to end dispatch", func(t *testing.T) {
		f := newAPIFixture()
		videos := repositories.NewVideoRepository(f.kv, quietLogger())
		now := time.Date(2025, 3, 5, 9, 0, 0, 0, time.UTC)
		sel := tasks.NewSelector(f.blobs, videos, quietLogger(), tasks.WithClock(func() time.Time { return now }))
		uploader := &th.FakeUploader{Errs: map[string]error{"B": errors.New("quota exceeded")}}
		f.runner = tasks.NewDispatcher(sel, f.blobs, videos, uploader, time.Minute, quietLogger())

		for _, v := range []struct{ path, title string }{{"videos/a.mp4", "A"}, {"videos/b.mp4", "B"}} {
			b := f.blobs.Seed(v.path, []byte(v.title))
			rec := &models.ScheduledVideo{URL: b.URL, BlobURL: b.URL, Pathname: v.path, Title: v.title, ScheduledDate: "2025-03-05"}
			if err := videos.Save(context.Background(), rec); err != nil {
				t.Fatal(err)
			}
		}

		rec := httptest.NewRecorder()
		f.handler().ServeHTTP(rec, manual(`{"secret":"`+secret+`"}`))

		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
		}
		body := decode(t, rec)
		if body["message"] != "Processed 2 videos, 1 uploaded successfully" || body["uploaded"] != float64(1) {
			t.Errorf("unexpected body %v", body)
		}
		results := body["results"].([]any)
		first := results[0].(map[string]any)
		second := results[1].(map[string]any)
		if first["success"] != true || first["youtubeUrl"] != "https://www.youtube.com/watch?v=vid-1" {
			t.Errorf("unexpected first result %v", first)
		}
		if second["success"] != false || second["error"] != "quota exceeded" {
			t.Errorf("unexpected second result %v", second)
		}
	})

	t.Run("selection failure", func(t *testing.T) {
		f := newAPIFixture()
		f.runner = &countingRunner{err: shared.ErrUpstream}
		rec := httptest.NewRecorder()
		f.handler().ServeHTTP(rec, cron("Bearer "+secret))
		if rec.Code != http.StatusInternalServerError {
			t.Errorf("expected 500, got %d", rec.Code)
		}
	})

	t.Run("rate limited", func(t *testing.T) {
		f := newAPIFixture()
		f.cfg.TriggerRate = 0.001
		h := f.handler()

		first := httptest.NewRecorder()
		h.ServeHTTP(first, cron("Bearer "+secret))
		second := httptest.NewRecorder()
		h.ServeHTTP(second, manual(`{"secret":"`+secret+`"}`))

		if first.Code != http.StatusOK || second.Code != http.StatusTooManyRequests {
			t.Errorf("expected 200 then 429, got %d and %d", first.Code, second.Code)
		}
	})
}

func TestOptionalRoutes(t *testing.T) {
	f := newAPIFixture()
	page := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) { io.WriteString(w, "form") })
	files := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { io.WriteString(w, r.URL.Path) })
	h := f.handler(WithPage(page), WithBlobFiles("/blobs", files))

	cases := []struct {
		path   string
		status int
		body   string
	}{
		{"/", http.StatusOK, "form"},
		{"/blobs/videos/a.mp4", http.StatusOK, "/videos/a.mp4"},
		{"/healthz", http.StatusOK, `{"status":"ok"}` + "\n"},
		{"/nope", http.StatusNotFound, ""},
	}
	for _, tc := range cases {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, tc.path, nil))
		if rec.Code != tc.status {
			t.Errorf("%s: expected %d, got %d", tc.path, tc.status, rec.Code)
		}
		if tc.body != "" && rec.Body.String() != tc.body {
			t.Errorf("%s: unexpected body %q", tc.path, rec.Body.String())
		}
	}
}

func TestStatusFor(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{nil, http.StatusOK},
		{shared.ErrValidation, http.StatusBadRequest},
		{shared.ErrInvalidInput, http.StatusBadRequest},
		{shared.ErrUnauthorized, http.StatusUnauthorized},
		{shared.ErrRateLimited, http.StatusTooManyRequests},
		{shared.ErrUpstream, http.StatusInternalServerError},
		{errors.New("other"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		if got := StatusFor(tc.err); got != tc.want {
			t.Errorf("StatusFor(%v) = %d, want %d", tc.err, got, tc.want)
		}
	}
}
