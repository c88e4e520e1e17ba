package httpserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"sync/atomic"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"

	appcontracts "github.com/bryanwahyu/contract-analysis/internal/application/contracts"
	domai "github.com/bryanwahyu/contract-analysis/internal/domain/ai"
	domain "github.com/bryanwahyu/contract-analysis/internal/domain/contracts"
	"github.com/bryanwahyu/contract-analysis/internal/logging"
	"github.com/bryanwahyu/contract-analysis/internal/middleware"
)

// Options wires the HTTP surface. Service is required; the rest is optional.
type Options struct {
	Service           *appcontracts.Service
	Metrics           *middleware.Metrics
	Limiter           *middleware.RateLimiter
	APIKeys           map[string]string
	CORSOrigins       []string
	Health            map[string]middleware.HealthChecker
	Ready             *atomic.Bool
	AllowPrivateHosts bool
	MaxUploadBytes    int64
	Logger            *slog.Logger
}

type Router struct {
	svc          *appcontracts.Service
	allowPrivate bool
	maxUpload    int64
	logger       *slog.Logger
}

func NewRouter(opts Options) http.Handler {
	r := &Router{
		svc:          opts.Service,
		allowPrivate: opts.AllowPrivateHosts,
		maxUpload:    opts.MaxUploadBytes,
		logger:       opts.Logger,
	}
	if r.logger == nil {
		r.logger = slog.Default()
	}
	if r.maxUpload <= 0 {
		r.maxUpload = 32 << 20
	}
	metrics := opts.Metrics
	if metrics == nil {
		metrics = middleware.NewMetrics()
	}
	ready := opts.Ready
	if ready == nil {
		ready = new(atomic.Bool)
		ready.Store(true)
	}
	origins := opts.CORSOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}

	mux := chi.NewRouter()
	mux.Use(middleware.RequestID)
	mux.Use(middleware.LoggingMiddleware(r.logger))
	mux.Use(middleware.Recovery(r.logger))
	mux.Use(metrics.Middleware)
	mux.Use(cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type", middleware.RequestIDHeader},
		ExposedHeaders: []string{middleware.RequestIDHeader},
		MaxAge:         300,
	}))
	if opts.Limiter != nil {
		mux.Use(opts.Limiter.Middleware)
	}
	mux.Use(middleware.APIKeyAuth(opts.APIKeys))

	mux.Get("/health", middleware.HealthHandler(opts.Health))
	mux.Get("/ready", middleware.ReadinessHandler(ready))
	mux.Get("/live", middleware.LivenessHandler)
	mux.Get("/metrics", metrics.Handler)

	mux.Route("/v1", func(rt chi.Router) {
		rt.Post("/contracts/upload", r.wrap(r.handleUpload))
		rt.Post("/contracts/analyze", r.wrap(r.handleAnalyze))
		rt.Post("/contracts/detect-type", r.wrap(r.handleDetectType))
		rt.Get("/contracts", r.wrap(r.handleListAll))
		rt.Get("/contracts/export.xlsx", r.wrap(r.handleExport))
		rt.Get("/contracts/failures", r.wrap(r.handleFailures))
		rt.Get("/contracts/{id}", r.wrap(r.handleGet))
		rt.Get("/users/{userId}/contracts", r.wrap(r.handleListByOwner))
	})

	mux.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		middleware.WriteError(w, http.StatusNotFound, "", "route not found", false)
	})
	return mux
}

type handlerFunc func(http.ResponseWriter, *http.Request) error

func (r *Router) wrap(h handlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		if err := h(w, req); err != nil {
			status, stage, msg, retryable := classify(err)
			if status >= 500 {
				logging.FromContext(req.Context(), r.logger).Error("request.failed",
					"path", req.URL.Path, "status", status, "stage", stage,
				"client", middleware.ClientFromContext(req.Context()), "err", err)
			}
			middleware.WriteError(w, status, stage, msg, retryable)
		}
	}
}

// classify maps an error to a status code and a short public message.
// Backend reasons are not echoed to callers.
func classify(err error) (status int, stage, msg string, retryable bool) {
	stage = string(domain.StageOf(err))
	var se *domain.StageError
	if errors.As(err, &se) {
		retryable = se.Retryable()
	}
	prefix := ""
	if stage != "" {
		prefix = stage + ": "
	}

	switch {
	case errors.Is(err, domain.ErrInvalidInput):
		return http.StatusBadRequest, stage, err.Error(), false
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound, stage, "analysis not found", false
	case errors.Is(err, domai.ErrQuotaExceeded):
		return http.StatusTooManyRequests, stage, prefix + "ai quota exceeded", true
	case errors.Is(err, domain.ErrBackendUnavailable):
		return http.StatusServiceUnavailable, stage, prefix + "ai backend unavailable", true
	case errors.Is(err, domain.ErrExtraction):
		return http.StatusUnprocessableEntity, stage, err.Error(), false
	case errors.Is(err, domain.ErrClassification), errors.Is(err, domain.ErrSchema):
		return http.StatusBadGateway, stage, err.Error(), retryable
	case errors.Is(err, domain.ErrStorageDisabled):
		return http.StatusServiceUnavailable, stage, err.Error(), false
	case errors.Is(err, domain.ErrPersistence):
		return http.StatusInternalServerError, stage, prefix + "storage error", retryable
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, stage, prefix + "timed out", true
	case errors.Is(err, context.Canceled):
		return http.StatusServiceUnavailable, stage, prefix + "request canceled", true
	}
	return http.StatusInternalServerError, stage, prefix + "internal error", false
}

func badRequest(format string, args ...any) error {
	return &domain.StageError{Stage: domain.StageInput, Err: domain.Invalid(format, args...)}
}

func decodeJSON(req *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(nil, req.Body, 1<<20))
	if err := dec.Decode(v); err != nil {
		return badRequest("malformed JSON body: %v", err)
	}
	return nil
}

// POST /v1/contracts/upload (multipart: file, userId)
func (r *Router) handleUpload(w http.ResponseWriter, req *http.Request) error {
	req.Body = http.MaxBytesReader(w, req.Body, r.maxUpload)
	if err := req.ParseMultipartForm(r.maxUpload); err != nil {
		return badRequest("invalid multipart form: %v", err)
	}
	defer func() {
		if req.MultipartForm != nil {
			_ = req.MultipartForm.RemoveAll()
		}
	}()

	userID := middleware.SanitizeString(req.FormValue("userId"))
	if err := middleware.ValidateUserID(userID); err != nil {
		return badRequest("%v", err)
	}
	file, header, err := req.FormFile("file")
	if err != nil {
		return badRequest("file is required")
	}
	defer file.Close()

	att, err := r.svc.Upload(req.Context(), appcontracts.UploadCommand{
		UserID:      userID,
		FileName:    header.Filename,
		ContentType: header.Header.Get("Content-Type"),
		Size:        header.Size,
		Body:        file,
	})
	if err != nil {
		return err
	}
	middleware.WriteJSON(w, http.StatusCreated, att)
	return nil
}

// POST /v1/contracts/analyze
// Body: {"fileUrl": "...", "fileName": "...", "userId": "...", "contractType": "..."}
func (r *Router) handleAnalyze(w http.ResponseWriter, req *http.Request) error {
	var body struct {
		FileURL      string `json:"fileUrl"`
		FileName     string `json:"fileName"`
		UserID       string `json:"userId"`
		ContractType string `json:"contractType"`
	}
	if err := decodeJSON(req, &body); err != nil {
		return err
	}
	if err := middleware.ValidateURL(body.FileURL, r.allowPrivate); err != nil {
		return badRequest("fileUrl: %v", err)
	}
	if err := middleware.ValidateUserID(body.UserID); err != nil {
		return badRequest("userId: %v", err)
	}
	if err := middleware.ValidateContractType(body.ContractType); err != nil {
		return badRequest("contractType: %v", err)
	}

	rec, err := r.svc.Analyze(req.Context(), appcontracts.AnalyzeCommand{
		FileURL:      body.FileURL,
		FileName:     middleware.SanitizeString(body.FileName),
		UserID:       body.UserID,
		ContractType: body.ContractType,
	})
	if err != nil {
		return err
	}
	w.Header().Set("Location", "/v1/contracts/"+string(rec.ID))
	middleware.WriteJSON(w, http.StatusCreated, rec)
	return nil
}

// POST /v1/contracts/detect-type
// Body: {"fileUrl": "..."} or {"text": "..."}
func (r *Router) handleDetectType(w http.ResponseWriter, req *http.Request) error {
	var body struct {
		FileURL string `json:"fileUrl"`
		Text    string `json:"text"`
	}
	if err := decodeJSON(req, &body); err != nil {
		return err
	}
	if strings.TrimSpace(body.Text) == "" {
		if err := middleware.ValidateURL(body.FileURL, r.allowPrivate); err != nil {
			return badRequest("fileUrl: %v", err)
		}
	}
	ct, err := r.svc.DetectType(req.Context(), appcontracts.DetectCommand{FileURL: body.FileURL, Text: body.Text})
	if err != nil {
		return err
	}
	middleware.WriteJSON(w, http.StatusOK, map[string]string{"contractType": string(ct)})
	return nil
}

// GET /v1/contracts/{id}
func (r *Router) handleGet(w http.ResponseWriter, req *http.Request) error {
	id := chi.URLParam(req, "id")
	if err := middleware.ValidateAnalysisID(id); err != nil {
		return badRequest("%v", err)
	}
	rec, err := r.svc.Get(req.Context(), domain.AnalysisID(id))
	if err != nil {
		return err
	}
	middleware.WriteJSON(w, http.StatusOK, rec)
	return nil
}

// GET /v1/users/{userId}/contracts?page=&page_size=
func (r *Router) handleListByOwner(w http.ResponseWriter, req *http.Request) error {
	userID := chi.URLParam(req, "userId")
	if err := middleware.ValidateUserID(userID); err != nil {
		return badRequest("%v", err)
	}
	page, size := pagination(req)
	list, err := r.svc.ListByOwner(req.Context(), userID, page, size)
	if err != nil {
		return err
	}
	middleware.WriteJSON(w, http.StatusOK, list)
	return nil
}

// GET /v1/contracts?page=&page_size=
func (r *Router) handleListAll(w http.ResponseWriter, req *http.Request) error {
	page, size := pagination(req)
	list, err := r.svc.ListAll(req.Context(), page, size)
	if err != nil {
		return err
	}
	middleware.WriteJSON(w, http.StatusOK, list)
	return nil
}

// GET /v1/contracts/export.xlsx
func (r *Router) handleExport(w http.ResponseWriter, req *http.Request) error {
	data, err := r.svc.ExportXLSX(req.Context())
	if err != nil {
		return err
	}
	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", `attachment; filename="contract-analyses.xlsx"`)
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	_, err = w.Write(data)
	return err
}

// GET /v1/contracts/failures?limit=
func (r *Router) handleFailures(w http.ResponseWriter, req *http.Request) error {
	limit, _ := strconv.Atoi(req.URL.Query().Get("limit"))
	list, err := r.svc.ListFailures(req.Context(), middleware.ValidateLimit(limit))
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrPersistence, err)
	}
	middleware.WriteJSON(w, http.StatusOK, list)
	return nil
}

func pagination(req *http.Request) (page, size int) {
	q := req.URL.Query()
	page, _ = strconv.Atoi(q.Get("page"))
	size, _ = strconv.Atoi(q.Get("page_size"))
	return middleware.ValidatePage(page), middleware.ValidateLimit(size)
}
