package handler

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"path"
	"strconv"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/rs/zerolog/log"

	"github.com/coproportal/imageopt/internal/optimizer"
	"github.com/coproportal/imageopt/internal/storage"
	"github.com/coproportal/imageopt/pkg/metrics"
)

const (
	maxMemory = 32 << 20 // 32MB max in-memory for multipart parsing
	// retries while the worker pool queue is full
	poolRetries = 3
)

// Config holds the handler settings that do not belong to the pipeline
type Config struct {
	MaxUploadMB int
	Bucket      string
	BaseFolder  string
}

// Handler serves the optimization and upload endpoints
type Handler struct {
	optimizer *optimizer.Optimizer
	pool      *optimizer.WorkerPool
	uploader  storage.Uploader
	cfg       Config
	now       func() time.Time
}

// New creates a new Handler. pool and uploader may be nil: without a pool
// optimizations run on the request goroutine, without an uploader /upload
// answers 503.
func New(opt *optimizer.Optimizer, pool *optimizer.WorkerPool, uploader storage.Uploader, cfg Config) *Handler {
	if cfg.MaxUploadMB <= 0 {
		cfg.MaxUploadMB = 20
	}
	return &Handler{
		optimizer: opt,
		pool:      pool,
		uploader:  uploader,
		cfg:       cfg,
		now:       time.Now,
	}
}

// Optimize handles the /optimize endpoint
func (h *Handler) Optimize(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	src, ok := h.readSource(w, r)
	if !ok {
		return
	}

	query := r.URL.Query()
	res, err := h.process(r.Context(), src, query.Get("force") == "1", query.Get("placeholder") == "1")
	if err != nil {
		h.handleError(w, src, err)
		return
	}

	if query.Get("format") == "json" {
		report := optimizer.NewReport(src, res)
		h.sendJSONResponse(w, http.StatusOK, struct {
			optimizer.Report
			Data string `json:"data"`
		}{report, dataURI(report.ContentType, blobOf(src, res))})
		return
	}

	h.sendImageResponse(w, src, res)
}

// Upload handles the /upload endpoint: optimize when needed, then store the
// result and return its public URL
func (h *Handler) Upload(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}
	if h.uploader == nil {
		writeError(w, http.StatusServiceUnavailable, "Storage is not configured")
		return
	}

	src, ok := h.readSource(w, r)
	if !ok {
		return
	}

	query := r.URL.Query()
	res, err := h.process(r.Context(), src, query.Get("force") == "1", query.Get("placeholder") == "1")
	if err != nil {
		h.handleError(w, src, err)
		return
	}

	report := optimizer.NewReport(src, res)
	objectPath := storage.ObjectPath(
		h.cfg.BaseFolder,
		sanitizeFolder(r.FormValue("folder")),
		storage.ExtensionFromContentType(report.ContentType),
		h.now(),
	)

	url, err := h.uploader.Upload(r.Context(), h.cfg.Bucket, objectPath, blobOf(src, res), report.ContentType)
	if err != nil {
		metrics.RecordUpload("error")
		log.Error().Err(err).Str("path", objectPath).Msg("upload failed")
		writeError(w, http.StatusBadGateway, "Upload failed")
		return
	}
	metrics.RecordUpload("success")

	report.URL = url
	log.Info().
		Str("url", url).
		Str("format", report.Format).
		Int("reduction", report.ReductionPercent).
		Msg("image uploaded")

	h.sendJSONResponse(w, http.StatusCreated, report)
}

// Capabilities handles the /capabilities endpoint
func (h *Handler) Capabilities(w http.ResponseWriter, r *http.Request) {
	opts := h.optimizer.Options()
	formats := h.optimizer.Formats()
	names := make([]string, 0, len(formats))
	for _, f := range formats {
		names = append(names, string(f))
	}

	supported := make(map[string]bool, len(formats))
	for f, ok := range h.optimizer.Capabilities() {
		supported[string(f)] = ok
	}

	h.sendJSONResponse(w, http.StatusOK, map[string]any{
		"formats":   names,
		"supported": supported,
		"maxWidth":  opts.MaxWidth,
		"maxHeight": opts.MaxHeight,
		"quality":   opts.Quality,
		"threshold": opts.Threshold,
	})
}

// Health handles the /health endpoint for readiness/liveness probes
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"status":"ok"}`))
}

// readSource parses the multipart body and returns the uploaded file. On
// failure the response has already been written.
func (h *Handler) readSource(w http.ResponseWriter, r *http.Request) (optimizer.Source, bool) {
	limit := int64(h.cfg.MaxUploadMB) << 20
	r.Body = http.MaxBytesReader(w, r.Body, limit+maxMultipartOverhead)

	if err := r.ParseMultipartForm(maxMemory); err != nil {
		switch {
		case errors.Is(err, http.ErrNotMultipart), errors.Is(err, http.ErrMissingBoundary):
			writeError(w, http.StatusBadRequest, "Content-Type must be multipart/form-data")
		case isTooLarge(err):
			writeError(w, http.StatusRequestEntityTooLarge, "Request too large")
		default:
			writeError(w, http.StatusBadRequest, "Malformed multipart body")
		}
		return optimizer.Source{}, false
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "No file provided")
		return optimizer.Source{}, false
	}
	defer file.Close()

	if header.Size > limit {
		writeError(w, http.StatusRequestEntityTooLarge, "File too large")
		return optimizer.Source{}, false
	}

	data, err := io.ReadAll(file)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Could not read file")
		return optimizer.Source{}, false
	}

	return optimizer.Source{
		Name:     header.Filename,
		MIMEType: declaredType(header, data),
		Data:     data,
	}, true
}

// maxMultipartOverhead leaves room for boundaries and form fields
const maxMultipartOverhead = 1 << 20

// process runs the pipeline unless the file is already small and modern.
// A nil result means the original should be served as is.
func (h *Handler) process(ctx context.Context, src optimizer.Source, force, placeholder bool) (*optimizer.Result, error) {
	opt := h.optimizer
	opts := opt.Options()

	if !force && !optimizer.NeedsOptimization(src.Size(), src.MIMEType, opts.Threshold) {
		log.Debug().Str("name", src.Name).Int64("size", src.Size()).Msg("optimization not needed")
		return nil, nil
	}

	if placeholder && !opts.Placeholder {
		opts.Placeholder = true
		opt = opt.WithOptions(opts)
	}

	if h.pool == nil {
		return opt.Optimize(ctx, src)
	}
	return h.pool.SubmitWithRetryWith(ctx, opt, src, poolRetries)
}

func (h *Handler) handleError(w http.ResponseWriter, src optimizer.Source, err error) {
	status, msg := classify(err)
	event := log.Warn()
	if status >= http.StatusInternalServerError {
		event = log.Error()
	}
	event.Err(err).Str("name", src.Name).Int("status", status).Msg("optimization failed")

	if status == http.StatusServiceUnavailable {
		w.Header().Set("Retry-After", "1")
	}
	writeError(w, status, msg)
}

// classify maps pipeline errors onto HTTP statuses
func classify(err error) (int, string) {
	var (
		validationErr *optimizer.ValidationError
		decodeErr     *optimizer.DecodeError
		encodeErr     *optimizer.EncodeError
	)

	switch {
	case errors.As(err, &validationErr):
		if errors.Is(err, optimizer.ErrImageTooLarge) {
			return http.StatusRequestEntityTooLarge, "File too large"
		}
		return http.StatusBadRequest, validationErr.Error()
	case errors.As(err, &decodeErr):
		if errors.Is(err, optimizer.ErrImageTooLarge) {
			return http.StatusRequestEntityTooLarge, "Image dimensions too large"
		}
		return http.StatusUnsupportedMediaType, "Unsupported or corrupt image"
	case errors.As(err, &encodeErr):
		return http.StatusInternalServerError, "Encoding failed"
	case errors.Is(err, optimizer.ErrPoolBusy), errors.Is(err, optimizer.ErrPoolClosed):
		return http.StatusServiceUnavailable, "Service busy, please try again"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return http.StatusRequestTimeout, "Request cancelled"
	default:
		return http.StatusInternalServerError, "Optimization failed"
	}
}

func (h *Handler) sendImageResponse(w http.ResponseWriter, src optimizer.Source, res *optimizer.Result) {
	report := optimizer.NewReport(src, res)
	blob := blobOf(src, res)

	w.Header().Set("Content-Type", report.ContentType)
	w.Header().Set("Content-Length", strconv.Itoa(len(blob)))
	w.Header().Set("X-Optimized", strconv.FormatBool(report.Optimized))
	w.Header().Set("X-Original-Size", strconv.FormatInt(report.OriginalSize, 10))
	w.Header().Set("X-Optimized-Size", strconv.FormatInt(report.OptimizedSize, 10))
	w.Header().Set("X-Reduction-Percent", strconv.Itoa(report.ReductionPercent))
	if report.Placeholder != "" {
		w.Header().Set("X-Placeholder", report.Placeholder)
	}
	w.WriteHeader(http.StatusOK)
	w.Write(blob)
}

func (h *Handler) sendJSONResponse(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("failed to write json response")
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}

func blobOf(src optimizer.Source, res *optimizer.Result) []byte {
	if res == nil {
		return src.Data
	}
	return res.Blob
}

func dataURI(contentType string, blob []byte) string {
	return "data:" + contentType + ";base64," + base64.StdEncoding.EncodeToString(blob)
}

// declaredType trusts the client's part header unless it is missing or generic
func declaredType(header *multipart.FileHeader, data []byte) string {
	ct := header.Header.Get("Content-Type")
	if ct == "" || strings.HasPrefix(ct, "application/octet-stream") {
		return mimetype.Detect(data).String()
	}
	return ct
}

func isTooLarge(err error) bool {
	var maxErr *http.MaxBytesError
	return errors.As(err, &maxErr) || strings.Contains(err.Error(), "request body too large")
}

// sanitizeFolder keeps folder inside the configured base
func sanitizeFolder(folder string) string {
	folder = strings.TrimSpace(folder)
	if folder == "" {
		return ""
	}
	return strings.TrimPrefix(path.Clean("/"+folder), "/")
}
