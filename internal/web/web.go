// Package web renders the browser upload form served at "/".
//
// The page posts a multipart form to /api/schedule with the fields video, title, description and
// scheduledDate, then shows the JSON reply. It carries no session state; everything it needs is
// passed to [NewPage] once at startup.
package web

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"net/http"
	"time"

	"github.com/desertthunder/ytsched/internal/models"
)

//go:embed templates/*.html
var templates embed.FS

// PageData is the template input.
type PageData struct {
	Today       string
	MaxUploadMB int64
	CronEnabled bool
	CronSpec    string
	Variables   []string
}

// EnvVariables lists the settings an operator has to provide, shown in the setup box.
var EnvVariables = []string{
	"YOUTUBE_CLIENT_ID",
	"YOUTUBE_CLIENT_SECRET",
	"YOUTUBE_REDIRECT_URI",
	"YOUTUBE_REFRESH_TOKEN",
	"BLOB_READ_WRITE_TOKEN",
	"KV_REST_API_URL",
	"KV_REST_API_TOKEN",
	"CRON_SECRET",
}

// Page serves the upload form.
type Page struct {
	tmpl *template.Template
	data PageData
	now  func() time.Time
}

// NewPage parses the embedded template.
func NewPage(data PageData) (*Page, error) {
	tmpl, err := template.ParseFS(templates, "templates/index.html")
	if err != nil {
		return nil, fmt.Errorf("failed to parse templates: %w", err)
	}
	if data.Variables == nil {
		data.Variables = EnvVariables
	}
	return &Page{tmpl: tmpl, data: data, now: time.Now}, nil
}

func (p *Page) ServeHTTP(w http.ResponseWriter, _ *http.Request) {
	data := p.data
	data.Today = models.DateOf(p.now())

	var buf bytes.Buffer
	if err := p.tmpl.ExecuteTemplate(&buf, "index.html", data); err != nil {
		http.Error(w, "failed to render page", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	buf.WriteTo(w)
}
