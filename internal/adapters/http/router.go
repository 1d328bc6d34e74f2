package httpadapter

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/oapi-codegen/runtime"

	"github.com/kirillkom/coaching-kb/internal/config"
	"github.com/kirillkom/coaching-kb/internal/core/domain"
	"github.com/kirillkom/coaching-kb/internal/core/ports"
	"github.com/kirillkom/coaching-kb/internal/observability/metrics"
)

const defaultMaxUploadBytes = 20 << 20

type Router struct {
	cfg         config.Config
	ingest      ports.DocumentIngestor
	knowledge   ports.KnowledgeReader
	suggestions ports.SuggestionFilter
	metrics     *metrics.HTTPServerMetrics
	now         func() time.Time
}

func NewRouter(
	cfg config.Config,
	ingest ports.DocumentIngestor,
	knowledge ports.KnowledgeReader,
	suggestions ports.SuggestionFilter,
) *Router {
	if cfg.APIMaxUploadBytes <= 0 {
		cfg.APIMaxUploadBytes = defaultMaxUploadBytes
	}
	return &Router{
		cfg:         cfg,
		ingest:      ingest,
		knowledge:   knowledge,
		suggestions: suggestions,
		now:         func() time.Time { return time.Now().UTC() },
	}
}

func (rt *Router) WithMetrics(m *metrics.HTTPServerMetrics) *Router {
	rt.metrics = m
	return rt
}

func (rt *Router) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", rt.healthz)
	mux.HandleFunc("GET /openapi.json", rt.openAPIDocument)
	if rt.metrics != nil {
		mux.Handle("GET /metrics", rt.metrics.Handler())
	}
	mux.HandleFunc("POST /v1/documents", rt.uploadDocument)
	mux.HandleFunc("GET /v1/documents", rt.listDocuments)
	mux.HandleFunc("GET /v1/documents/{document_id}", rt.getDocument)
	mux.HandleFunc("DELETE /v1/documents/{document_id}", rt.deleteDocument)
	mux.HandleFunc("GET /v1/documents/{document_id}/analysis", rt.getAnalysis)
	mux.HandleFunc("POST /v1/documents/{document_id}/reprocess", rt.reprocessDocument)
	mux.HandleFunc("POST /v1/knowledge/search", rt.searchKnowledge)
	mux.HandleFunc("GET /v1/knowledge/stats", rt.knowledgeStats)
	mux.HandleFunc("POST /v1/suggestions", rt.submitSuggestion)

	var handler http.Handler = mux
	if _, specRouter, err := loadSpec(); err != nil {
		slog.Error("openapi_spec_invalid", "error", err)
	} else {
		handler = openAPIValidationMiddleware(specRouter, handler)
	}
	if rt.cfg.APIMaxInFlight > 0 {
		handler = backpressureMiddleware(handler, rt.cfg.APIMaxInFlight, rt.cfg.APIBackpressureWait)
	}
	if rt.cfg.APIRateLimitRPS > 0 {
		handler = rateLimitMiddleware(handler, rt.cfg.APIRateLimitRPS, rt.cfg.APIRateLimitBurst)
	}
	if rt.metrics != nil {
		handler = rt.metrics.Middleware("api", handler)
	}
	return requestIDMiddleware(accessLogMiddleware(handler))
}

func (rt *Router) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (rt *Router) openAPIDocument(w http.ResponseWriter, _ *http.Request) {
	doc, _, err := loadSpec()
	if err != nil {
		writeError(w, http.StatusInternalServerError, "openapi document unavailable")
		return
	}
	writeJSON(w, http.StatusOK, doc)
}

type documentResponse struct {
	ID           string                `json:"id"`
	Filename     string                `json:"filename"`
	MimeType     string                `json:"mime_type,omitempty"`
	ContentChars int                   `json:"content_chars"`
	CreatedAt    time.Time             `json:"created_at"`
	Run          *domain.ProcessingRun `json:"run,omitempty"`
}

func toDocumentResponse(doc domain.Document, run *domain.ProcessingRun) documentResponse {
	return documentResponse{
		ID:           doc.ID,
		Filename:     doc.Filename,
		MimeType:     doc.MimeType,
		ContentChars: utf8.RuneCountInString(doc.RawContent),
		CreatedAt:    doc.CreatedAt,
		Run:          run,
	}
}

func (rt *Router) uploadDocument(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, rt.cfg.APIMaxUploadBytes)

	file, fileHeader, err := r.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, "upload exceeds size limit")
			return
		}
		writeError(w, http.StatusBadRequest, "multipart field 'file' is required")
		return
	}
	defer file.Close()

	priority := priorityFromForm(r)
	doc, err := rt.ingest.Upload(
		r.Context(),
		fileHeader.Filename,
		fileHeader.Header.Get("Content-Type"),
		file,
		priority,
	)
	if rt.metrics != nil {
		rt.metrics.RecordUpload(err)
	}
	if err != nil {
		rt.writeDomainError(w, r, err)
		return
	}

	writeJSON(w, http.StatusAccepted, toDocumentResponse(*doc, &domain.ProcessingRun{
		DocumentID: doc.ID,
		Status:     domain.StatusUploaded,
		UpdatedAt:  doc.CreatedAt,
	}))
}

func priorityFromForm(r *http.Request) *domain.PriorityContext {
	pctx := domain.PriorityContext{
		CriticalTerms:     config.SplitCSV(r.FormValue("critical_terms")),
		HighPriorityTerms: config.SplitCSV(r.FormValue("high_priority_terms")),
		CoreProblem:       strings.TrimSpace(r.FormValue("core_problem")),
	}
	if pctx.IsZero() {
		return nil
	}
	return &pctx
}

func (rt *Router) listDocuments(w http.ResponseWriter, r *http.Request) {
	var limit int
	if err := runtime.BindQueryParameter("form", true, false, "limit", r.URL.Query(), &limit); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	docs, err := rt.knowledge.ListDocuments(r.Context())
	if err != nil {
		rt.writeDomainError(w, r, err)
		return
	}
	if limit > 0 && len(docs) > limit {
		docs = docs[:limit]
	}
	out := make([]documentResponse, 0, len(docs))
	for _, doc := range docs {
		out = append(out, toDocumentResponse(doc, nil))
	}
	writeJSON(w, http.StatusOK, map[string]any{"documents": out})
}

func (rt *Router) getDocument(w http.ResponseWriter, r *http.Request) {
	id, ok := documentIDParam(w, r)
	if !ok {
		return
	}
	doc, run, err := rt.knowledge.GetDocument(r.Context(), id)
	if err != nil {
		rt.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toDocumentResponse(*doc, run))
}

func (rt *Router) deleteDocument(w http.ResponseWriter, r *http.Request) {
	id, ok := documentIDParam(w, r)
	if !ok {
		return
	}
	removed, err := rt.knowledge.RemoveDocument(r.Context(), id)
	if err != nil {
		rt.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"document_id": id, "removed": removed})
}

func (rt *Router) getAnalysis(w http.ResponseWriter, r *http.Request) {
	id, ok := documentIDParam(w, r)
	if !ok {
		return
	}
	result, err := rt.knowledge.GetAnalysis(r.Context(), id)
	if err != nil {
		rt.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (rt *Router) reprocessDocument(w http.ResponseWriter, r *http.Request) {
	id, ok := documentIDParam(w, r)
	if !ok {
		return
	}

	var priority *domain.PriorityContext
	raw, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
	if err != nil {
		writeError(w, http.StatusBadRequest, "read request body")
		return
	}
	if len(strings.TrimSpace(string(raw))) > 0 {
		var pctx domain.PriorityContext
		if err := json.Unmarshal(raw, &pctx); err != nil {
			writeError(w, http.StatusBadRequest, "invalid json")
			return
		}
		priority = &pctx
	}

	if err := rt.ingest.Reprocess(r.Context(), id, priority); err != nil {
		rt.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]any{"document_id": id, "status": domain.StatusUploaded})
}

func (rt *Router) searchKnowledge(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Query string `json:"query"`
		Limit int    `json:"limit"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}
	if strings.TrimSpace(req.Query) == "" {
		writeError(w, http.StatusBadRequest, "query is required")
		return
	}

	hits, err := rt.knowledge.Search(r.Context(), req.Query, req.Limit)
	if err != nil {
		rt.writeDomainError(w, r, err)
		return
	}
	if rt.metrics != nil {
		rt.metrics.RecordSearch(len(hits))
	}
	if hits == nil {
		hits = []domain.SearchHit{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"query": req.Query, "hits": hits})
}

func (rt *Router) knowledgeStats(w http.ResponseWriter, r *http.Request) {
	stats, err := rt.knowledge.Stats(r.Context())
	if err != nil {
		rt.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (rt *Router) submitSuggestion(w http.ResponseWriter, r *http.Request) {
	var suggestion domain.Suggestion
	if err := json.NewDecoder(r.Body).Decode(&suggestion); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}
	if strings.TrimSpace(suggestion.Text) == "" {
		writeError(w, http.StatusBadRequest, "suggestion_text is required")
		return
	}
	if suggestion.ID == "" {
		suggestion.ID = uuid.NewString()
	}
	if suggestion.StreamID == "" {
		suggestion.StreamID = "default"
	}
	if suggestion.Timestamp.IsZero() {
		suggestion.Timestamp = rt.now()
	}

	verdict := rt.suggestions.Submit(suggestion.StreamID, suggestion)
	writeJSON(w, http.StatusOK, map[string]any{
		"verdict":    verdict.State,
		"accepted":   verdict.Accepted,
		"reason":     verdict.Reason,
		"matched_id": verdict.MatchedID,
		"suggestion": suggestion,
	})
}

func documentIDParam(w http.ResponseWriter, r *http.Request) (string, bool) {
	var id string
	err := runtime.BindStyledParameterWithOptions("simple", "document_id", r.PathValue("document_id"), &id, runtime.BindStyledParameterOptions{
		ParamLocation: runtime.ParamLocationPath,
		Explode:       false,
		Required:      true,
	})
	if err != nil || strings.TrimSpace(id) == "" {
		writeError(w, http.StatusBadRequest, "document id is required")
		return "", false
	}
	return id, true
}

func (rt *Router) writeDomainError(w http.ResponseWriter, r *http.Request, err error) {
	status := mapErrorToHTTPStatus(err)
	if status >= http.StatusInternalServerError {
		slog.Error("http_handler_failed", "request_id", requestIDFromContext(r.Context()), "path", r.URL.Path, "error", err)
	}
	writeError(w, status, errorMessage(status, err))
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
