package server

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/charmbracelet/log"

	"github.com/desertthunder/ytsched/internal/models"
	"github.com/desertthunder/ytsched/internal/services"
	"github.com/desertthunder/ytsched/internal/shared"
	"github.com/desertthunder/ytsched/internal/tasks"
)

// CallbackMessage accompanies the refresh token returned by the auth callback.
const CallbackMessage = "Successfully authenticated! Save this refresh token to your environment variables:"

// multipartMemory is the part of a submission kept in memory before spilling to disk.
const multipartMemory = 32 << 20

// Scheduler accepts video submissions. [tasks.Intake] implements it.
type Scheduler interface {
	Schedule(ctx context.Context, sub tasks.Submission) (*tasks.Receipt, error)
}

// API serves the JSON routes.
type API struct {
	auth        services.Authenticator
	scheduler   Scheduler
	runner      tasks.BatchRunner
	cronSecret  string
	maxUpload   int64
	triggerRate float64
	page        http.Handler
	blobPrefix  string
	blobs       http.Handler
	logger      *log.Logger
}

// APIOption configures optional routes on an [API].
type APIOption func(*API)

// WithPage serves h at "/".
func WithPage(h http.Handler) APIOption {
	return func(a *API) { a.page = h }
}

// WithBlobFiles serves h under prefix for the local blob backend. h sees paths with prefix stripped.
func WithBlobFiles(prefix string, h http.Handler) APIOption {
	return func(a *API) {
		a.blobPrefix = "/" + strings.Trim(prefix, "/") + "/"
		a.blobs = http.StripPrefix(strings.TrimSuffix(a.blobPrefix, "/"), h)
	}
}

// NewAPI creates the API. auth may be nil when no OAuth client is configured.
func NewAPI(cfg shared.ServerConfig, auth services.Authenticator, scheduler Scheduler, runner tasks.BatchRunner, logger *log.Logger, opts ...APIOption) *API {
	if logger == nil {
		logger = shared.NewLogger(nil)
	}
	a := &API{
		auth:        auth,
		scheduler:   scheduler,
		runner:      runner,
		cronSecret:  cfg.CronSecret,
		maxUpload:   cfg.MaxUploadBytes(),
		triggerRate: cfg.TriggerRate,
		logger:      shared.WithLogger(logger, "component", "api"),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Register adds every route to r.
func (a *API) Register(r Router) {
	limit := RateLimitMiddleware(a.triggerRate)

	if a.page != nil {
		r.Handle(http.MethodGet, "/{$}", a.page)
	}
	if a.blobs != nil {
		r.Handle(http.MethodGet, a.blobPrefix, a.blobs)
	}
	r.Handle(http.MethodGet, "/healthz", http.HandlerFunc(a.health))
	r.Handle(http.MethodGet, "/api/auth/url", http.HandlerFunc(a.authURL))
	r.Handle(http.MethodGet, "/api/auth/callback", http.HandlerFunc(a.authCallback))
	r.Handle(http.MethodPost, "/api/schedule", http.HandlerFunc(a.schedule))
	r.Handle(http.MethodGet, "/api/cron/upload", wrap(http.HandlerFunc(a.cronUpload), limit))
	r.Handle(http.MethodPost, "/api/trigger", wrap(http.HandlerFunc(a.trigger), limit))
}

// Handler returns a router with the standard middleware and every route registered.
func (a *API) Handler() http.Handler {
	r := NewBasicRouter()
	r.Use(RecoverMiddleware(a.logger), RequestIDMiddleware(), LoggingMiddleware(a.logger))
	a.Register(r)
	return r
}

func (a *API) health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type authURLResponse struct {
	AuthURL string `json:"authUrl"`
}

func (a *API) authURL(w http.ResponseWriter, _ *http.Request) {
	if a.auth == nil {
		fail(w, fmt.Errorf("%w: youtube client id and secret", shared.ErrMissingCredentials))
		return
	}
	state, err := shared.GenerateState()
	if err != nil {
		fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, authURLResponse{AuthURL: a.auth.AuthURL(state)})
}

type callbackResponse struct {
	Success      bool   `json:"success"`
	Message      string `json:"message"`
	RefreshToken string `json:"refresh_token"`
	AccessToken  string `json:"access_token"`
}

func (a *API) authCallback(w http.ResponseWriter, r *http.Request) {
	code := r.URL.Query().Get("code")
	if code == "" {
		writeError(w, http.StatusBadRequest, "No code provided")
		return
	}
	if a.auth == nil {
		fail(w, fmt.Errorf("%w: youtube client id and secret", shared.ErrMissingCredentials))
		return
	}

	token, err := a.auth.Exchange(r.Context(), code)
	if err != nil {
		a.logger.Error("token exchange failed", "error", err)
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if token.RefreshToken == "" {
		a.logger.Warn("token response carried no refresh token; revoke access and retry consent")
	}

	writeJSON(w, http.StatusOK, callbackResponse{
		Success:      true,
		Message:      CallbackMessage,
		RefreshToken: token.RefreshToken,
		AccessToken:  token.AccessToken,
	})
}

type scheduleResponse struct {
	Success       bool   `json:"success"`
	BlobURL       string `json:"blobUrl"`
	ScheduledDate string `json:"scheduledDate"`
}

func (a *API) schedule(w http.ResponseWriter, r *http.Request) {
	tooLarge := fmt.Sprintf("video exceeds %d MB", a.maxUpload>>20)
	if r.ContentLength > a.maxUpload {
		writeError(w, http.StatusRequestEntityTooLarge, tooLarge)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, a.maxUpload)
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			writeError(w, http.StatusRequestEntityTooLarge, tooLarge)
			return
		}
		fail(w, fmt.Errorf("%w: expected multipart/form-data: %v", shared.ErrInvalidInput, err))
		return
	}
	defer r.MultipartForm.RemoveAll()

	sub := tasks.Submission{
		Title:         r.FormValue("title"),
		Description:   r.FormValue("description"),
		ScheduledDate: r.FormValue("scheduledDate"),
	}

	file, header, err := r.FormFile("video")
	switch {
	case errors.Is(err, http.ErrMissingFile):
	case err != nil:
		fail(w, fmt.Errorf("%w: video: %v", shared.ErrInvalidInput, err))
		return
	default:
		defer file.Close()
		sub.Content = file
		sub.Filename = header.Filename
		sub.Size = header.Size
		sub.ContentType = header.Header.Get("Content-Type")
	}

	receipt, err := a.scheduler.Schedule(r.Context(), sub)
	if err != nil {
		if StatusFor(err) >= 500 {
			a.logger.Error("failed to schedule video", "error", err)
		}
		fail(w, err)
		return
	}

	writeJSON(w, http.StatusOK, scheduleResponse{
		Success:       true,
		BlobURL:       receipt.BlobURL,
		ScheduledDate: receipt.ScheduledDate,
	})
}

// checkSecret compares got to the configured secret in constant time. An unset secret matches nothing.
func (a *API) checkSecret(got string) bool {
	if a.cronSecret == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(got), []byte(a.cronSecret)) == 1
}

func (a *API) cronUpload(w http.ResponseWriter, r *http.Request) {
	token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
	if !ok || !a.checkSecret(token) {
		writeError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}
	a.dispatch(w, r)
}

type triggerRequest struct {
	Secret string `json:"secret"`
}

func (a *API) trigger(w http.ResponseWriter, r *http.Request) {
	// An unreadable body carries no secret, so it is rejected like a wrong one.
	var req triggerRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, 1<<20)).Decode(&req); err != nil {
		a.logger.Debug("unreadable trigger body", "error", err, "request_id", RequestID(r.Context()))
		writeError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}
	if !a.checkSecret(req.Secret) {
		writeError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}
	a.dispatch(w, r)
}

type dispatchResponse struct {
	Success  bool                    `json:"success"`
	Message  string                  `json:"message"`
	Uploaded int                     `json:"uploaded"`
	Results  []models.DispatchResult `json:"results,omitempty"`
}

func (a *API) dispatch(w http.ResponseWriter, r *http.Request) {
	report, err := a.runner.Run(r.Context(), nil)
	if err != nil {
		a.logger.Error("dispatch failed", "error", err, "request_id", RequestID(r.Context()))
		fail(w, err)
		return
	}

	writeJSON(w, http.StatusOK, dispatchResponse{
		Success:  true,
		Message:  report.Message(),
		Uploaded: report.Uploaded,
		Results:  report.Results,
	})
}
