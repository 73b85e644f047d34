package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.temporal.io/sdk/client"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/crestonhq/researchd/internal/db"
	"github.com/crestonhq/researchd/internal/metrics"
	"github.com/crestonhq/researchd/internal/research"
	"github.com/crestonhq/researchd/internal/statuscache"
	"github.com/crestonhq/researchd/internal/workflows"
)

const (
	// DefaultUserID is assigned when a request carries no user id
	DefaultUserID = "anonymous"

	// Workflow type names registered by the worker
	ResearchWorkflowName = "ResearchWorkflow"
	DocumentWorkflowName = "DocumentWorkflow"

	defaultMaxUploadBytes = 25 << 20
)

// ResearchHandler serves the session lifecycle endpoints. Create endpoints
// write the row first, then enqueue exactly one workflow and return without
// waiting for execution.
type ResearchHandler struct {
	tclient        client.Client
	dbClient       *db.Client
	statusCache    *statuscache.Cache
	limiter        *rate.Limiter
	taskQueue      string
	uploadDir      string
	maxUploadBytes int64
	retryAttempts  int
	retryBaseDelay int
	logger         *zap.Logger
}

// ResearchHandlerConfig wires the handler's dependencies. RetryAttempts and
// RetryBaseDelaySeconds are forwarded to each research workflow; zero means
// the workflow defaults apply.
type ResearchHandlerConfig struct {
	TaskQueue             string
	UploadDir             string
	MaxUploadBytes        int64
	RateLimit             rate.Limit
	RateBurst             int
	RetryAttempts         int
	RetryBaseDelaySeconds int
}

func NewResearchHandler(tc client.Client, dbc *db.Client, cache *statuscache.Cache, cfg ResearchHandlerConfig, logger *zap.Logger) *ResearchHandler {
	if cfg.MaxUploadBytes <= 0 {
		cfg.MaxUploadBytes = defaultMaxUploadBytes
	}
	if cfg.RateLimit <= 0 {
		cfg.RateLimit = rate.Limit(5)
	}
	if cfg.RateBurst <= 0 {
		cfg.RateBurst = 10
	}
	return &ResearchHandler{
		tclient:        tc,
		dbClient:       dbc,
		statusCache:    cache,
		limiter:        rate.NewLimiter(cfg.RateLimit, cfg.RateBurst),
		taskQueue:      cfg.TaskQueue,
		uploadDir:      cfg.UploadDir,
		maxUploadBytes: cfg.MaxUploadBytes,
		retryAttempts:  cfg.RetryAttempts,
		retryBaseDelay: cfg.RetryBaseDelaySeconds,
		logger:         logger,
	}
}

func (h *ResearchHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/research/start", h.handleStart)
	mux.HandleFunc("POST /api/research/{id}/continue", h.handleContinue)
	mux.HandleFunc("POST /api/research/{id}/upload", h.handleUpload)
	mux.HandleFunc("GET /api/research/history", h.handleHistory)
	mux.HandleFunc("GET /api/research/{id}", h.handleDetail)
	mux.HandleFunc("GET /api/research/{id}/status", h.handleStatus)
}

type startRequest struct {
	Query  string `json:"query"`
	UserID string `json:"user_id"`
}

type startResponse struct {
	SessionID string `json:"session_id"`
	Status    string `json:"status"`
	TraceID   string `json:"trace_id"`
}

type uploadResponse struct {
	DocumentID string `json:"document_id"`
	FileName   string `json:"file_name"`
	FileType   string `json:"file_type"`
}

type statusResponse struct {
	SessionID    string `json:"session_id"`
	Status       string `json:"status"`
	ErrorMessage string `json:"error_message,omitempty"`
}

// handleStart: POST /api/research/start {query, user_id}
func (h *ResearchHandler) handleStart(w http.ResponseWriter, r *http.Request) {
	if !h.allow(w, "start") {
		return
	}
	var req startRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, "start", http.StatusBadRequest, "invalid JSON body")
		return
	}
	h.createSession(w, r, "start", req, nil, "")
}

// handleContinue: POST /api/research/{id}/continue {query, user_id}.
// The new session copies the parent's summary so the engine can be told
// what not to repeat; sessions without a stored summary fall back to the
// parent's summary record.
func (h *ResearchHandler) handleContinue(w http.ResponseWriter, r *http.Request) {
	if !h.allow(w, "continue") {
		return
	}
	parentID, ok := h.pathSessionID(w, r, "continue")
	if !ok {
		return
	}
	var req startRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, "continue", http.StatusBadRequest, "invalid JSON body")
		return
	}

	ctx := r.Context()
	parent, err := h.dbClient.GetSession(ctx, parentID)
	if err != nil {
		h.notFoundOr500(w, "continue", err, "parent session not found")
		return
	}

	parentSummary := parent.Summary
	if strings.TrimSpace(parentSummary) == "" {
		if record, err := h.dbClient.GetSummaryRecord(ctx, parentID); err == nil {
			parentSummary = record.Content
		} else if !errors.Is(err, db.ErrNotFound) {
			h.writeError(w, "continue", http.StatusInternalServerError, "failed to load parent summary")
			return
		}
	}

	h.createSession(w, r, "continue", req, &parent.ID, parentSummary)
}

func (h *ResearchHandler) createSession(w http.ResponseWriter, r *http.Request, endpoint string, req startRequest, parentID *uuid.UUID, parentSummary string) {
	query := strings.TrimSpace(req.Query)
	if query == "" {
		h.writeValidationError(w, endpoint, research.NewValidationError("query", "must not be empty"))
		return
	}
	userID := strings.TrimSpace(req.UserID)
	if userID == "" {
		userID = DefaultUserID
	}

	session := &db.ResearchSession{
		ID:            uuid.New(),
		UserID:        userID,
		ParentID:      parentID,
		Query:         query,
		Status:        db.StatusPending,
		TraceID:       uuid.NewString(),
		ParentSummary: parentSummary,
	}

	ctx := r.Context()
	if err := h.dbClient.CreateSession(ctx, session); err != nil {
		h.logger.Error("Failed to create session", zap.Error(err))
		h.writeError(w, endpoint, http.StatusInternalServerError, "failed to create session")
		return
	}
	if h.statusCache != nil {
		h.statusCache.Set(ctx, session.ID.String(), db.StatusPending, "")
	}

	_, err := h.tclient.ExecuteWorkflow(ctx, client.StartWorkflowOptions{
		ID:        sessionWorkflowID(session.ID),
		TaskQueue: h.taskQueue,
	}, ResearchWorkflowName, workflows.ResearchWorkflowInput{
		SessionID:        session.ID.String(),
		TraceID:          session.TraceID,
		MaxAttempts:      h.retryAttempts,
		BaseDelaySeconds: h.retryBaseDelay,
	})
	if err != nil {
		h.logger.Error("Failed to enqueue research workflow",
			zap.String("session_id", session.ID.String()),
			zap.Error(err),
		)
		h.writeError(w, endpoint, http.StatusInternalServerError, "failed to enqueue research")
		return
	}

	metrics.SessionsStarted.Inc()
	h.logger.Info("Research session enqueued",
		zap.String("session_id", session.ID.String()),
		zap.String("user_id", userID),
		zap.Bool("continuation", parentID != nil),
	)
	h.writeJSON(w, endpoint, http.StatusCreated, startResponse{
		SessionID: session.ID.String(),
		Status:    db.StatusPending,
		TraceID:   session.TraceID,
	})
}

// handleUpload: POST /api/research/{id}/upload, multipart field "file".
// Only .pdf and .txt are accepted; the file is stored on disk and a
// document workflow is enqueued to extract and summarize it.
func (h *ResearchHandler) handleUpload(w http.ResponseWriter, r *http.Request) {
	if !h.allow(w, "upload") {
		return
	}
	sessionID, ok := h.pathSessionID(w, r, "upload")
	if !ok {
		return
	}

	ctx := r.Context()
	if _, err := h.dbClient.GetSession(ctx, sessionID); err != nil {
		h.notFoundOr500(w, "upload", err, "session not found")
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadBytes)
	file, header, err := r.FormFile("file")
	if err != nil {
		h.writeError(w, "upload", http.StatusBadRequest, "multipart field 'file' is required")
		return
	}
	defer file.Close()

	fileType, verr := fileTypeFromName(header.Filename)
	if verr != nil {
		h.writeValidationError(w, "upload", verr)
		return
	}

	documentID := uuid.New()
	dir := filepath.Join(h.uploadDir, sessionID.String())
	if err := os.MkdirAll(dir, 0o755); err != nil {
		h.logger.Error("Failed to create upload dir", zap.Error(err))
		h.writeError(w, "upload", http.StatusInternalServerError, "failed to store file")
		return
	}
	path := filepath.Join(dir, documentID.String()+"."+fileType)
	out, err := os.Create(path)
	if err != nil {
		h.logger.Error("Failed to create upload file", zap.Error(err))
		h.writeError(w, "upload", http.StatusInternalServerError, "failed to store file")
		return
	}
	size, err := io.Copy(out, file)
	closeErr := out.Close()
	if err != nil || closeErr != nil {
		os.Remove(path)
		h.writeError(w, "upload", http.StatusBadRequest, "failed to read uploaded file")
		return
	}

	doc := &db.UploadedDocument{
		ID:        documentID,
		SessionID: sessionID,
		FileName:  filepath.Base(header.Filename),
		FileType:  fileType,
		FilePath:  path,
		FileSize:  size,
	}
	if err := h.dbClient.CreateDocument(ctx, doc); err != nil {
		os.Remove(path)
		h.logger.Error("Failed to create document row", zap.Error(err))
		h.writeError(w, "upload", http.StatusInternalServerError, "failed to record upload")
		return
	}

	_, err = h.tclient.ExecuteWorkflow(ctx, client.StartWorkflowOptions{
		ID:        documentWorkflowID(documentID),
		TaskQueue: h.taskQueue,
	}, DocumentWorkflowName, workflows.DocumentWorkflowInput{
		SessionID:  sessionID.String(),
		DocumentID: documentID.String(),
	})
	if err != nil {
		h.logger.Error("Failed to enqueue document workflow",
			zap.String("document_id", documentID.String()),
			zap.Error(err),
		)
		h.writeError(w, "upload", http.StatusInternalServerError, "failed to enqueue document processing")
		return
	}

	h.logger.Info("Document uploaded",
		zap.String("session_id", sessionID.String()),
		zap.String("document_id", documentID.String()),
		zap.String("file_type", fileType),
		zap.Int64("size", size),
	)
	h.writeJSON(w, "upload", http.StatusCreated, uploadResponse{
		DocumentID: documentID.String(),
		FileName:   doc.FileName,
		FileType:   fileType,
	})
}

// handleHistory: GET /api/research/history?user_id=&limit=
func (h *ResearchHandler) handleHistory(w http.ResponseWriter, r *http.Request) {
	userID := strings.TrimSpace(r.URL.Query().Get("user_id"))
	if userID == "" {
		userID = DefaultUserID
	}
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 {
			h.writeValidationError(w, "history", research.NewValidationError("limit", "must be a positive integer"))
			return
		}
		limit = parsed
	}

	sessions, err := h.dbClient.ListSessionsByUser(r.Context(), userID, limit)
	if err != nil {
		h.logger.Error("Failed to list sessions", zap.Error(err))
		h.writeError(w, "history", http.StatusInternalServerError, "failed to list sessions")
		return
	}

	items := make([]map[string]any, 0, len(sessions))
	for i := range sessions {
		items = append(items, sessionSummaryJSON(&sessions[i]))
	}
	h.writeJSON(w, "history", http.StatusOK, map[string]any{
		"user_id":  userID,
		"sessions": items,
	})
}

// handleDetail: GET /api/research/{id}
func (h *ResearchHandler) handleDetail(w http.ResponseWriter, r *http.Request) {
	sessionID, ok := h.pathSessionID(w, r, "detail")
	if !ok {
		return
	}
	ctx := r.Context()

	session, err := h.dbClient.GetSession(ctx, sessionID)
	if err != nil {
		h.notFoundOr500(w, "detail", err, "session not found")
		return
	}

	steps, err := h.dbClient.GetReasoningSteps(ctx, sessionID)
	if err != nil {
		h.writeError(w, "detail", http.StatusInternalServerError, "failed to load reasoning steps")
		return
	}
	docs, err := h.dbClient.ListDocuments(ctx, sessionID)
	if err != nil {
		h.writeError(w, "detail", http.StatusInternalServerError, "failed to load documents")
		return
	}

	payload := sessionSummaryJSON(session)
	payload["final_report"] = session.FinalReport
	payload["parent_summary"] = session.ParentSummary
	payload["sources"] = []string(session.Sources)
	payload["error_message"] = session.ErrorMessage
	payload["trace_id"] = session.TraceID

	stepItems := make([]map[string]any, 0, len(steps))
	for _, step := range steps {
		stepItems = append(stepItems, map[string]any{
			"step_type":   step.StepType,
			"description": step.Description,
			"metadata":    map[string]interface{}(step.Metadata),
			"created_at":  step.CreatedAt,
		})
	}
	payload["reasoning_steps"] = stepItems

	docItems := make([]map[string]any, 0, len(docs))
	for _, doc := range docs {
		docItems = append(docItems, map[string]any{
			"id":            doc.ID.String(),
			"file_name":     doc.FileName,
			"file_type":     doc.FileType,
			"processed":     doc.ProcessedAt != nil,
			"summary":       doc.Summary,
			"error_message": doc.ErrorMessage,
			"uploaded_at":   doc.UploadedAt,
		})
	}
	payload["documents"] = docItems

	if cost, err := h.dbClient.GetCostRecord(ctx, sessionID); err == nil {
		payload["cost"] = map[string]any{
			"model_name":         cost.ModelName,
			"input_tokens":       cost.InputTokens,
			"output_tokens":      cost.OutputTokens,
			"total_tokens":       cost.TotalTokens,
			"estimated_cost_usd": cost.EstimatedCostUSD.String(),
		}
	} else if !errors.Is(err, db.ErrNotFound) {
		h.writeError(w, "detail", http.StatusInternalServerError, "failed to load cost record")
		return
	}

	if record, err := h.dbClient.GetSummaryRecord(ctx, sessionID); err == nil {
		payload["summary_record"] = map[string]any{
			"content":      record.Content,
			"key_findings": []string(record.KeyFindings),
		}
	} else if !errors.Is(err, db.ErrNotFound) {
		h.writeError(w, "detail", http.StatusInternalServerError, "failed to load summary record")
		return
	}

	h.writeJSON(w, "detail", http.StatusOK, payload)
}

// handleStatus: GET /api/research/{id}/status. Serves from the Redis
// cache when possible; the database remains the source of truth.
func (h *ResearchHandler) handleStatus(w http.ResponseWriter, r *http.Request) {
	sessionID, ok := h.pathSessionID(w, r, "status")
	if !ok {
		return
	}
	ctx := r.Context()

	if h.statusCache != nil {
		if entry, err := h.statusCache.Get(ctx, sessionID.String()); err == nil {
			h.writeJSON(w, "status", http.StatusOK, statusResponse{
				SessionID:    entry.SessionID,
				Status:       entry.Status,
				ErrorMessage: entry.ErrorMessage,
			})
			return
		}
	}

	session, err := h.dbClient.GetSession(ctx, sessionID)
	if err != nil {
		h.notFoundOr500(w, "status", err, "session not found")
		return
	}
	if h.statusCache != nil {
		h.statusCache.Set(ctx, sessionID.String(), session.Status, session.ErrorMessage)
	}
	h.writeJSON(w, "status", http.StatusOK, statusResponse{
		SessionID:    session.ID.String(),
		Status:       session.Status,
		ErrorMessage: session.ErrorMessage,
	})
}

func (h *ResearchHandler) allow(w http.ResponseWriter, endpoint string) bool {
	if h.limiter.Allow() {
		return true
	}
	h.writeError(w, endpoint, http.StatusTooManyRequests, "rate limit exceeded")
	return false
}

func (h *ResearchHandler) pathSessionID(w http.ResponseWriter, r *http.Request, endpoint string) (uuid.UUID, bool) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		h.writeValidationError(w, endpoint, research.NewValidationError("session id", "must be a valid uuid"))
		return uuid.Nil, false
	}
	return id, true
}

func (h *ResearchHandler) notFoundOr500(w http.ResponseWriter, endpoint string, err error, message string) {
	if errors.Is(err, db.ErrNotFound) {
		h.writeError(w, endpoint, http.StatusNotFound, message)
		return
	}
	h.logger.Error("Session lookup failed", zap.String("endpoint", endpoint), zap.Error(err))
	h.writeError(w, endpoint, http.StatusInternalServerError, "internal error")
}

func (h *ResearchHandler) writeJSON(w http.ResponseWriter, endpoint string, code int, payload any) {
	metrics.HTTPRequests.WithLabelValues(endpoint, strconv.Itoa(code)).Inc()
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(payload)
}

func (h *ResearchHandler) writeError(w http.ResponseWriter, endpoint string, code int, message string) {
	h.writeJSON(w, endpoint, code, map[string]string{"error": message})
}

func (h *ResearchHandler) writeValidationError(w http.ResponseWriter, endpoint string, verr *research.ValidationError) {
	h.writeError(w, endpoint, http.StatusBadRequest, verr.Error())
}

func sessionSummaryJSON(session *db.ResearchSession) map[string]any {
	payload := map[string]any{
		"id":         session.ID.String(),
		"user_id":    session.UserID,
		"query":      session.Query,
		"status":     session.Status,
		"summary":    session.Summary,
		"created_at": session.CreatedAt,
		"updated_at": session.UpdatedAt,
	}
	if session.ParentID != nil {
		payload["parent_id"] = session.ParentID.String()
	}
	if session.CompletedAt != nil {
		payload["completed_at"] = session.CompletedAt
	}
	return payload
}

func sessionWorkflowID(sessionID uuid.UUID) string {
	return "research-session-" + sessionID.String()
}

func documentWorkflowID(documentID uuid.UUID) string {
	return "research-document-" + documentID.String()
}

func fileTypeFromName(name string) (string, *research.ValidationError) {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".pdf":
		return db.FileTypePDF, nil
	case ".txt":
		return db.FileTypeTXT, nil
	default:
		return "", research.NewValidationError("file",
			fmt.Sprintf("unsupported file type %q, only .pdf and .txt are accepted", filepath.Ext(name)))
	}
}
