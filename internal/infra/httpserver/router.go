package httpserver

import (
	"database/sql"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	appanalysis "github.com/AZEINMU1911/CVATS-Vibe/internal/application/analysis"
	appdocs "github.com/AZEINMU1911/CVATS-Vibe/internal/application/documents"
	domain "github.com/AZEINMU1911/CVATS-Vibe/internal/domain/analysis"
	docs "github.com/AZEINMU1911/CVATS-Vibe/internal/domain/documents"
	"github.com/AZEINMU1911/CVATS-Vibe/internal/middleware"
)

type Router struct {
	docsSvc     *appdocs.Service
	analysisSvc *appanalysis.Service
	logger      *zap.Logger
}

// Deps collects everything the HTTP surface needs wired in.
type Deps struct {
	Documents *appdocs.Service
	Analysis  *appanalysis.Service
	Limiter   *middleware.SlidingWindow
	APIKeys   map[string]string
	Checkers  map[string]middleware.HealthChecker
	Logger    *zap.Logger
}

func NewRouter(d Deps) http.Handler {
	r := &Router{docsSvc: d.Documents, analysisSvc: d.Analysis, logger: d.Logger}
	mux := chi.NewRouter()

	mux.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type", "X-API-Key"},
		MaxAge:         300,
	}))
	mux.Use(middleware.LoggingMiddleware(d.Logger))
	mux.Use(middleware.MetricsMiddleware)
	mux.Use(middleware.APIKeyAuth(d.APIKeys))
	mux.Use(middleware.RateLimitMiddleware(d.Limiter))

	mux.Get("/health", middleware.HealthHandler(d.Checkers))
	mux.Get("/metrics", middleware.MetricsHandler)

	mux.Route("/v1/documents", func(rt chi.Router) {
		rt.Post("/", r.wrap(r.handleUpload))
		rt.Get("/", r.wrap(r.handleList))
		rt.Get("/{id}", r.wrap(r.handleGet))
		rt.Post("/{id}/analyze", r.wrap(r.handleAnalyze))
		rt.Get("/{id}/analyses", r.wrap(r.handleAnalysisHistory))
		rt.Get("/{id}/analyses/latest", r.wrap(r.handleLatestAnalysis))
	})

	return mux
}

type handlerFunc func(http.ResponseWriter, *http.Request) error

// httpError carries an explicit status chosen by a handler.
type httpError struct {
	status int
	msg    string
}

func (e *httpError) Error() string { return e.msg }

func badRequest(msg string) error { return &httpError{status: http.StatusBadRequest, msg: msg} }

func (r *Router) wrap(h handlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		err := h(w, req)
		if err == nil {
			return
		}

		var he *httpError
		if errors.As(err, &he) {
			writeError(w, he.status, he.msg)
			return
		}

		switch {
		case errors.Is(err, domain.ErrDocumentNotFound), errors.Is(err, sql.ErrNoRows):
			writeError(w, http.StatusNotFound, "document not found")
		case errors.Is(err, domain.ErrInvalidInlineData):
			writeError(w, http.StatusBadRequest, "invalid inline data")
		case errors.Is(err, domain.ErrRateLimited):
			w.Header().Set("Retry-After", "60")
			writeError(w, http.StatusTooManyRequests, "rate limit exceeded")
		case errors.Is(err, domain.ErrFileTooLarge):
			writeError(w, http.StatusRequestEntityTooLarge, "file too large")
		case errors.Is(err, domain.ErrFetchFailed):
			writeError(w, http.StatusBadGateway, "could not fetch document")
		default:
			r.logger.Error("request failed", zap.Error(err))
			writeError(w, http.StatusInternalServerError, "internal error")
		}
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}

func writeJSON(w http.ResponseWriter, status int, v any) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	return json.NewEncoder(w).Encode(v)
}

// POST /v1/documents (multipart, field "file")
func (r *Router) handleUpload(w http.ResponseWriter, req *http.Request) error {
	owner := middleware.GetOwnerFromContext(req.Context())
	if owner == "" {
		return &httpError{status: http.StatusUnauthorized, msg: "unauthorized"}
	}

	if err := req.ParseMultipartForm(32 << 20); err != nil {
		return badRequest("invalid multipart body")
	}
	file, header, err := req.FormFile("file")
	if err != nil {
		return badRequest("file field is required")
	}
	defer file.Close()

	mimeType := header.Header.Get("Content-Type")
	if err := middleware.ValidateMimeType(mimeType); err != nil {
		return badRequest(err.Error())
	}

	doc, err := r.docsSvc.Upload(req.Context(), appdocs.UploadCommand{
		OwnerID:  owner,
		FileName: middleware.SanitizeString(header.Filename),
		MimeType: mimeType,
		Size:     header.Size,
		Body:     file,
	})
	if err != nil {
		return err
	}
	return writeJSON(w, http.StatusCreated, doc)
}

// GET /v1/documents?page=&page_size=
func (r *Router) handleList(w http.ResponseWriter, req *http.Request) error {
	owner := middleware.GetOwnerFromContext(req.Context())
	if owner == "" {
		return &httpError{status: http.StatusUnauthorized, msg: "unauthorized"}
	}

	page, _ := strconv.Atoi(req.URL.Query().Get("page"))
	size, _ := strconv.Atoi(req.URL.Query().Get("page_size"))

	list, err := r.docsSvc.List(req.Context(), owner, middleware.ValidatePage(page), middleware.ValidatePageSize(size))
	if err != nil {
		return err
	}
	return writeJSON(w, http.StatusOK, list)
}

// GET /v1/documents/{id}
func (r *Router) handleGet(w http.ResponseWriter, req *http.Request) error {
	owner := middleware.GetOwnerFromContext(req.Context())
	if owner == "" {
		return &httpError{status: http.StatusUnauthorized, msg: "unauthorized"}
	}

	id := chi.URLParam(req, "id")
	if err := middleware.ValidateDocumentID(id); err != nil {
		return badRequest(err.Error())
	}

	doc, err := r.docsSvc.Get(req.Context(), owner, docs.DocumentID(id))
	if err != nil {
		return err
	}
	return writeJSON(w, http.StatusOK, doc)
}

// POST /v1/documents/{id}/analyze
// Body: {"keywords": [...], "data": "<base64>", "mimeType": "..."} (all optional)
func (r *Router) handleAnalyze(w http.ResponseWriter, req *http.Request) error {
	owner := middleware.GetOwnerFromContext(req.Context())
	if owner == "" {
		return &httpError{status: http.StatusUnauthorized, msg: "unauthorized"}
	}

	id := chi.URLParam(req, "id")
	if err := middleware.ValidateDocumentID(id); err != nil {
		return badRequest(err.Error())
	}

	var body struct {
		Keywords []string `json:"keywords"`
		Data     string   `json:"data"`
		MimeType string   `json:"mimeType"`
	}
	if req.Body != nil && req.ContentLength != 0 {
		if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
			return badRequest("invalid request body")
		}
	}
	if err := middleware.ValidateKeywords(body.Keywords); err != nil {
		return badRequest(err.Error())
	}

	outcome, err := r.analysisSvc.Analyze(req.Context(), appanalysis.AnalyzeCommand{
		OwnerID:    owner,
		DocumentID: id,
		Keywords:   body.Keywords,
		InlineData: body.Data,
		InlineMime: body.MimeType,
	})
	if err != nil {
		middleware.IncrementAnalysesFailed()
		return err
	}

	middleware.IncrementAnalyses()
	if outcome.UsedFallback {
		middleware.IncrementAnalysesFallback()
	}
	return writeJSON(w, http.StatusOK, outcome)
}

// GET /v1/documents/{id}/analyses?page=&page_size=
func (r *Router) handleAnalysisHistory(w http.ResponseWriter, req *http.Request) error {
	owner := middleware.GetOwnerFromContext(req.Context())
	if owner == "" {
		return &httpError{status: http.StatusUnauthorized, msg: "unauthorized"}
	}

	id := chi.URLParam(req, "id")
	if err := middleware.ValidateDocumentID(id); err != nil {
		return badRequest(err.Error())
	}

	page, _ := strconv.Atoi(req.URL.Query().Get("page"))
	size, _ := strconv.Atoi(req.URL.Query().Get("page_size"))

	list, err := r.analysisSvc.History(req.Context(), owner, id, middleware.ValidatePage(page), middleware.ValidatePageSize(size))
	if err != nil {
		return err
	}
	return writeJSON(w, http.StatusOK, list)
}

// GET /v1/documents/{id}/analyses/latest
func (r *Router) handleLatestAnalysis(w http.ResponseWriter, req *http.Request) error {
	owner := middleware.GetOwnerFromContext(req.Context())
	if owner == "" {
		return &httpError{status: http.StatusUnauthorized, msg: "unauthorized"}
	}

	id := chi.URLParam(req, "id")
	if err := middleware.ValidateDocumentID(id); err != nil {
		return badRequest(err.Error())
	}

	outcome, err := r.analysisSvc.Latest(req.Context(), owner, id)
	if err != nil {
		return err
	}
	if outcome == nil {
		return &httpError{status: http.StatusNotFound, msg: "no analysis recorded"}
	}
	return writeJSON(w, http.StatusOK, outcome)
}
