package service

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/mmynk/receiptsplit/internal/auth"
	"github.com/mmynk/receiptsplit/internal/blob"
	"github.com/mmynk/receiptsplit/internal/calculator"
	"github.com/mmynk/receiptsplit/internal/metrics"
	"github.com/mmynk/receiptsplit/internal/middleware"
	"github.com/mmynk/receiptsplit/internal/models"
	"github.com/mmynk/receiptsplit/internal/splitter"
)

const maxBodyBytes = 1 << 20

// ErrNoComputer is returned by the analyze endpoint when no model is set up.
var ErrNoComputer = errors.New("receipt analysis is not configured")

// API serves the REST endpoints: login, logout, receipt analysis and image
// uploads.
type API struct {
	authn    *auth.Authenticator
	computer splitter.Computer
	images   blob.Store
	metrics  *metrics.Metrics
	logger   *slog.Logger
}

// NewAPI creates the REST handlers. computer and images may be nil, in which
// case their endpoints answer 500.
func NewAPI(authn *auth.Authenticator, computer splitter.Computer, opts Options) *API {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &API{
		authn:    authn,
		computer: computer,
		images:   opts.Images,
		metrics:  opts.Metrics,
		logger:   logger,
	}
}

// Register mounts the endpoints on mux.
func (a *API) Register(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/login", a.Login)
	mux.HandleFunc("POST /api/logout", a.Logout)
	mux.Handle("POST /api/analyze-receipt", middleware.RequireSessionHTTP(a.authn, http.HandlerFunc(a.AnalyzeReceipt)))
	mux.Handle("POST /api/upload", middleware.RequireSessionHTTP(a.authn, http.HandlerFunc(a.Upload)))
	mux.HandleFunc("GET /healthz", Healthz)
}

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Warn("failed to write response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) error {
	return json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(v)
}

type loginRequest struct {
	Password string `json:"password"`
}

type loginResponse struct {
	Success   bool      `json:"success"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Login exchanges the password for a session cookie.
func (a *API) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	password := strings.TrimSpace(req.Password)
	if password == "" {
		writeError(w, http.StatusBadRequest, "Password is required")
		return
	}

	token, session, err := a.authn.Login(password)
	if errors.Is(err, auth.ErrInvalidCredentials) {
		a.logger.Warn("Login rejected", "remote_addr", r.RemoteAddr)
		writeError(w, http.StatusUnauthorized, "Invalid password")
		return
	}
	if err != nil {
		a.logger.Error("Login failed", "error", err)
		writeError(w, http.StatusInternalServerError, "Failed to log in")
		return
	}

	http.SetCookie(w, a.authn.SessionCookie(token, session))
	a.logger.Info("Login succeeded", "session_id", session.ID)
	writeJSON(w, http.StatusOK, loginResponse{Success: true, ExpiresAt: session.ExpiresAt})
}

// Logout clears the session cookie.
func (a *API) Logout(w http.ResponseWriter, r *http.Request) {
	http.SetCookie(w, a.authn.ClearCookie())
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

type analyzeRequest struct {
	ImageURL string `json:"imageUrl"`
	Prompt   string `json:"prompt"`
}

type analyzeResponse struct {
	Success     bool                         `json:"success"`
	Items       []models.SplitLine           `json:"items"`
	Explanation string                       `json:"explanation"`
	Warnings    []calculator.ValidationIssue `json:"warnings,omitempty"`
}

// AnalyzeReceipt computes a split for a receipt image and a free-text
// instruction. Upstream failures answer 500 with the upstream message.
func (a *API) AnalyzeReceipt(w http.ResponseWriter, r *http.Request) {
	if a.computer == nil {
		writeError(w, http.StatusInternalServerError, ErrNoComputer.Error())
		return
	}

	var req analyzeRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if strings.TrimSpace(req.ImageURL) == "" {
		writeError(w, http.StatusBadRequest, "Image URL is required")
		return
	}
	if strings.TrimSpace(req.Prompt) == "" {
		writeError(w, http.StatusBadRequest, "Prompt is required")
		return
	}

	start := time.Now()
	result, err := a.computer.Compute(r.Context(), splitter.Request{ImageURL: req.ImageURL, Instruction: req.Prompt})
	a.metrics.ObserveSplit("model", result, err)
	if err != nil {
		a.logger.Error("Receipt analysis failed",
			"session_id", middleware.GetSessionID(r.Context()),
			"error", err,
			"duration_ms", time.Since(start).Milliseconds(),
		)
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	a.logger.Info("Receipt analyzed",
		"people", len(result.People),
		"warnings", len(result.Warnings),
		"duration_ms", time.Since(start).Milliseconds(),
	)
	writeJSON(w, http.StatusOK, analyzeResponse{
		Success:     true,
		Items:       models.SplitLines(result),
		Explanation: result.Explanation,
		Warnings:    result.Warnings,
	})
}

type uploadRequest struct {
	Filename    string `json:"filename"`
	ContentType string `json:"contentType"`
}

// Upload returns a presigned URL the browser PUTs the receipt image to.
func (a *API) Upload(w http.ResponseWriter, r *http.Request) {
	if a.images == nil {
		writeError(w, http.StatusInternalServerError, blob.ErrNotConfigured.Error())
		return
	}

	var req uploadRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.Filename == "" || req.ContentType == "" {
		writeError(w, http.StatusBadRequest, "Missing filename or contentType")
		return
	}

	upload, err := a.images.PresignUpload(r.Context(), req.Filename, req.ContentType)
	if err != nil {
		a.logger.Error("Failed to create upload URL", "filename", req.Filename, "error", err)
		writeError(w, http.StatusInternalServerError, "Failed to create upload URL")
		return
	}
	writeJSON(w, http.StatusOK, upload)
}

// Healthz reports liveness.
func Healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
