package web

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/cvandijck/card-generator/internal/card"
	"github.com/cvandijck/card-generator/internal/gemini"
	"github.com/cvandijck/card-generator/internal/preset"
	"github.com/cvandijck/card-generator/pkg/metrics"
)

const maxUploadBytes = 64 << 20

type Options struct {
	Generator *card.Generator
	Presets   *preset.Catalog
	Results   *ResultStore
	Timeout   time.Duration
	Logger    *slog.Logger
}

type Server struct {
	gen     *card.Generator
	presets *preset.Catalog
	results *ResultStore
	timeout time.Duration
	logger  *slog.Logger
}

type apiError struct {
	Error string `json:"error"`
}

type cardResponse struct {
	ID          string `json:"id"`
	Image       string `json:"image"`
	DownloadURL string `json:"download_url"`
}

type presetOption struct {
	Name    string `json:"name"`
	Text    string `json:"text"`
	Default bool   `json:"default,omitempty"`
}

type presetsResponse struct {
	Scenes   []presetOption `json:"scenes"`
	Styles   []presetOption `json:"styles"`
	Overlays []presetOption `json:"overlays"`
}

type enhanceRequest struct {
	Kind         string `json:"kind"`
	Instructions string `json:"instructions"`
	Constraints  string `json:"constraints"`
	Scene        string `json:"scene"`
	Style        string `json:"style"`
	Profiles     string `json:"profiles"`
}

type enhanceResponse struct {
	Text string `json:"text"`
}

func NewServer(opts Options) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 240 * time.Second
	}
	results := opts.Results
	if results == nil {
		results = NewResultStore(0)
	}

	return &Server{
		gen:     opts.Generator,
		presets: opts.Presets,
		results: results,
		timeout: timeout,
		logger:  logger,
	}
}

// Routes registers the API handlers on mux.
func (s *Server) Routes(mux *http.ServeMux) {
	mux.HandleFunc("/api/cards", s.handleGenerate)
	mux.HandleFunc("/api/cards/", s.handleDownload)
	mux.HandleFunc("/api/presets", s.handlePresets)
	mux.HandleFunc("/api/enhance", s.handleEnhance)
	mux.HandleFunc("/healthz", s.handleHealth)
}

func (s *Server) handleGenerate(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, apiError{Error: "method not allowed"})
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		writeJSON(w, http.StatusBadRequest, apiError{Error: "invalid multipart form"})
		return
	}

	files := r.MultipartForm.File["photo"]
	names := r.MultipartForm.Value["name"]
	descriptions := r.MultipartForm.Value["description"]

	members := make([]card.Profile, 0, len(files))
	for i, header := range files {
		data, mimeType, err := readUpload(header)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, apiError{Error: "failed to read photo"})
			return
		}
		member := card.Profile{Photo: data, PhotoMime: mimeType}
		if i < len(names) {
			member.Name = strings.TrimSpace(names[i])
		}
		if i < len(descriptions) {
			member.Description = strings.TrimSpace(descriptions[i])
		}
		members = append(members, member)
	}

	req := card.Request{
		Members:    members,
		Topic:      strings.TrimSpace(r.FormValue("topic")),
		Scene:      strings.TrimSpace(r.FormValue("scene")),
		Style:      strings.TrimSpace(r.FormValue("style")),
		Overlay:    strings.TrimSpace(r.FormValue("overlay")),
		Expand:     parseBool(r.FormValue("expand")),
		Resolution: strings.TrimSpace(r.FormValue("resolution")),
	}

	ctx, cancel := context.WithTimeout(r.Context(), s.timeout)
	defer cancel()

	start := time.Now()
	result, err := s.gen.Generate(ctx, req)
	metrics.GenerationDuration.WithLabelValues("web").Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.CardGenerations.WithLabelValues("web", "error").Inc()
		s.logger.Error("card generation failed", "error", err)
		writeJSON(w, statusForError(err), apiError{Error: err.Error()})
		return
	}
	metrics.CardGenerations.WithLabelValues("web", "success").Inc()

	id := s.results.Put(result.PNG)
	writeJSON(w, http.StatusOK, cardResponse{
		ID:          id,
		Image:       "data:image/png;base64," + base64.StdEncoding.EncodeToString(result.PNG),
		DownloadURL: "/api/cards/" + id + "/download",
	})
}

func (s *Server) handleDownload(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeJSON(w, http.StatusMethodNotAllowed, apiError{Error: "method not allowed"})
		return
	}

	rest := strings.TrimPrefix(r.URL.Path, "/api/cards/")
	id, action, ok := strings.Cut(rest, "/")
	if !ok || id == "" || action != "download" {
		writeJSON(w, http.StatusNotFound, apiError{Error: "not found"})
		return
	}

	png, ok := s.results.Get(id)
	if !ok {
		writeJSON(w, http.StatusNotFound, apiError{Error: "card not found or expired"})
		return
	}

	w.Header().Set("content-type", "image/png")
	w.Header().Set("content-disposition", `attachment; filename="holiday_card.png"`)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(png)
}

func (s *Server) handlePresets(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeJSON(w, http.StatusMethodNotAllowed, apiError{Error: "method not allowed"})
		return
	}

	writeJSON(w, http.StatusOK, presetsResponse{
		Scenes:   toOptions(s.presets.Scenes),
		Styles:   toOptions(s.presets.Styles),
		Overlays: toOptions(s.presets.Overlays),
	})
}

func (s *Server) handleEnhance(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, apiError{Error: "method not allowed"})
		return
	}

	var req enhanceRequest
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, apiError{Error: "invalid request body"})
		return
	}
	if strings.TrimSpace(req.Instructions) == "" {
		writeJSON(w, http.StatusBadRequest, apiError{Error: "instructions are required"})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), s.timeout)
	defer cancel()

	var text string
	var err error
	switch req.Kind {
	case "scene":
		text, err = s.gen.Enhancer().EnhanceScene(ctx, card.SceneContext{
			Instructions: req.Instructions,
			Constraints:  req.Constraints,
			Style:        req.Style,
			Profiles:     req.Profiles,
		})
	case "style":
		text, err = s.gen.Enhancer().EnhanceStyle(ctx, card.StyleContext{
			Instructions: req.Instructions,
			Scene:        req.Scene,
			Profiles:     req.Profiles,
		})
	default:
		writeJSON(w, http.StatusBadRequest, apiError{Error: "kind must be scene or style"})
		return
	}
	if err != nil {
		metrics.EnhancementFailures.WithLabelValues(req.Kind).Inc()
		s.logger.Error("enhancement failed", "kind", req.Kind, "error", err)
		writeJSON(w, statusForError(err), apiError{Error: err.Error()})
		return
	}

	writeJSON(w, http.StatusOK, enhanceResponse{Text: text})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func statusForError(err error) int {
	var blocked *gemini.BlockedError
	var status *gemini.StatusError
	switch {
	case errors.Is(err, card.ErrNoMembers), errors.Is(err, card.ErrMissingPhoto):
		return http.StatusBadRequest
	case errors.As(err, &blocked):
		return http.StatusUnprocessableEntity
	case errors.As(err, &status):
		return http.StatusBadGateway
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	}
	return http.StatusInternalServerError
}

func readUpload(header *multipart.FileHeader) ([]byte, string, error) {
	file, err := header.Open()
	if err != nil {
		return nil, "", err
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		return nil, "", err
	}
	return data, sniffMime(header.Header.Get("Content-Type"), data), nil
}

// sniffMime trusts the declared content type when it is a usable image type,
// otherwise falls back to sniffing the bytes.
func sniffMime(declared string, data []byte) string {
	mimeType := strings.TrimSpace(declared)
	if strings.Contains(mimeType, ";") {
		mimeType = strings.TrimSpace(strings.SplitN(mimeType, ";", 2)[0])
	}
	if mimeType == "" || mimeType == "application/octet-stream" {
		mimeType = http.DetectContentType(data)
	}
	if strings.Contains(mimeType, ";") {
		mimeType = strings.TrimSpace(strings.SplitN(mimeType, ";", 2)[0])
	}
	if mimeType == "" || mimeType == "application/octet-stream" {
		mimeType = "image/jpeg"
	}
	return mimeType
}

func toOptions(list []preset.Preset) []presetOption {
	out := make([]presetOption, len(list))
	for i, p := range list {
		out[i] = presetOption{Name: p.Name, Text: p.Text, Default: p.Default}
	}
	return out
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("content-type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func parseBool(value string) bool {
	value = strings.TrimSpace(strings.ToLower(value))
	return value == "1" || value == "true" || value == "yes" || value == "on"
}

// WithLogging logs one line per request the way the rest of the process logs.
func WithLogging(next http.Handler, logger *slog.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		logger.Info("http", "method", r.Method, "path", r.URL.Path, "dur_ms", time.Since(start).Milliseconds())
	})
}
