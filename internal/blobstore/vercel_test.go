package blobstore

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/desertthunder/ytsched/internal/shared"
)

func TestVercelStore(t *testing.T) {
	t.Run("Put", func(t *testing.T) {
		var server *httptest.Server
		server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method != http.MethodPut {
				t.Errorf("expected PUT, got %s", r.Method)
			}
			if got := r.URL.Query().Get("pathname"); got != "videos/clip.mp4" {
				t.Errorf("pathname = %q", got)
			}
			for header, want := range map[string]string{
				"Authorization":       "Bearer tok",
				"x-api-version":       "7",
				"x-add-random-suffix": "1",
				"x-content-type":      "video/mp4",
			} {
				if got := r.Header.Get(header); got != want {
					t.Errorf("%s = %q, want %q", header, got, want)
				}
			}
			body, _ := io.ReadAll(r.Body)
			if string(body) != "payload" {
				t.Errorf("body = %q", body)
			}

			json.NewEncoder(w).Encode(map[string]string{
				"url":         server.URL + "/videos/clip-Xy12.mp4",
				"downloadUrl": server.URL + "/videos/clip-Xy12.mp4?download=1",
				"pathname":    "videos/clip-Xy12.mp4",
				"contentType": "video/mp4",
			})
		}))
		defer server.Close()

		store := NewVercelStore("tok", WithAPIURL(server.URL))
		blob, err := store.Put(context.Background(), "videos/clip.mp4", strings.NewReader("payload"), PutOptions{ContentType: "video/mp4", Size: 7})
		if err != nil {
			t.Fatalf("Put() error = %v", err)
		}
		if blob.Pathname != "videos/clip-Xy12.mp4" {
			t.Errorf("Pathname = %q", blob.Pathname)
		}
		if blob.Size != 7 {
			t.Errorf("Size = %d", blob.Size)
		}
	})

	t.Run("Put surfaces API errors", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusForbidden)
			w.Write([]byte(`{"error":{"code":"forbidden","message":"Access denied"}}`))
		}))
		defer server.Close()

		store := NewVercelStore("bad", WithAPIURL(server.URL))
		_, err := store.Put(context.Background(), "videos/a.mp4", strings.NewReader("x"), PutOptions{})
		if !errors.Is(err, shared.ErrUpstream) {
			t.Fatalf("expected ErrUpstream, got %v", err)
		}
		if !strings.Contains(err.Error(), "Access denied") {
			t.Errorf("error should carry API message: %v", err)
		}
	})

	t.Run("List follows cursors", func(t *testing.T) {
		calls := 0
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			calls++
			if r.URL.Query().Get("prefix") != "videos/" {
				t.Errorf("prefix = %q", r.URL.Query().Get("prefix"))
			}
			switch r.URL.Query().Get("cursor") {
			case "":
				w.Write([]byte(`{"blobs":[{"url":"https://b/videos/a.mp4","pathname":"videos/a.mp4","size":1,"uploadedAt":"2025-03-01T10:00:00.000Z"}],"cursor":"next","hasMore":true}`))
			case "next":
				w.Write([]byte(`{"blobs":[{"url":"https://b/videos/b.mp4","pathname":"videos/b.mp4","size":2,"uploadedAt":"2025-03-01T11:00:00.000Z"}],"hasMore":false}`))
			default:
				t.Errorf("unexpected cursor %q", r.URL.Query().Get("cursor"))
			}
		}))
		defer server.Close()

		store := NewVercelStore("tok", WithAPIURL(server.URL))
		blobs, err := store.List(context.Background(), "videos/")
		if err != nil {
			t.Fatalf("List() error = %v", err)
		}
		if calls != 2 {
			t.Errorf("expected 2 pages, got %d", calls)
		}
		if len(blobs) != 2 || blobs[0].Pathname != "videos/a.mp4" || blobs[1].Pathname != "videos/b.mp4" {
			t.Errorf("unexpected blobs %+v", blobs)
		}
		if blobs[0].UploadedAt.IsZero() {
			t.Error("uploadedAt should be parsed")
		}
	})

	t.Run("Delete", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method != http.MethodPost || r.URL.Path != "/delete" {
				t.Errorf("unexpected %s %s", r.Method, r.URL.Path)
			}
			var body struct{ URLs []string }
			json.NewDecoder(r.Body).Decode(&body)
			if len(body.URLs) != 1 || body.URLs[0] != "https://b/videos/a.mp4" {
				t.Errorf("urls = %v", body.URLs)
			}
		}))
		defer server.Close()

		store := NewVercelStore("tok", WithAPIURL(server.URL))
		if err := store.Delete(context.Background(), "https://b/videos/a.mp4"); err != nil {
			t.Errorf("Delete() error = %v", err)
		}
	})

	t.Run("Open", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path == "/missing.mp4" {
				http.NotFound(w, r)
				return
			}
			w.Write([]byte("video-bytes"))
		}))
		defer server.Close()

		store := NewVercelStore("tok", WithHTTPClient(server.Client()))
		rc, err := store.Open(context.Background(), server.URL+"/videos/a.mp4")
		if err != nil {
			t.Fatalf("Open() error = %v", err)
		}
		defer rc.Close()
		data, _ := io.ReadAll(rc)
		if string(data) != "video-bytes" {
			t.Errorf("Open() data = %q", data)
		}

		if _, err := store.Open(context.Background(), server.URL+"/missing.mp4"); !errors.Is(err, shared.ErrNotFound) {
			t.Errorf("expected ErrNotFound, got %v", err)
		}
	})
}
