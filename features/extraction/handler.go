package extraction

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/sarvottam-bhagat/docu-ai-processor/features/session"
)

// UploadWaiter blocks until the mobile relay delivers a file for the
// session, the session expires, or the request is torn down. Satisfied
// by session.Poller.
type UploadWaiter interface {
	Wait(ctx context.Context, sessionID string) (*session.File, error)
}

type Handler struct {
	service *Service
	waiter  UploadWaiter
}

func NewHandler(service *Service, waiter UploadWaiter) *Handler {
	return &Handler{service: service, waiter: waiter}
}

type processRequest struct {
	File struct {
		Name string `json:"name"`
		Type string `json:"type"`
		Data string `json:"data"`
	} `json:"file"`
	ModelType string `json:"modelType"`
}

// ProcessDocument is the direct upload path: a JSON-wrapped file goes
// in, the engine's terminal result comes back. The envelope is fixed:
// {success: true, data: ...} or {success: false, error: ...}.
func (h *Handler) ProcessDocument(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req processRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeFailure(ctx, w, "Invalid request body", http.StatusBadRequest)
		return
	}

	doc, status, msg := h.buildDocument(&req)
	if doc == nil {
		h.writeFailure(ctx, w, msg, status)
		return
	}

	slog.InfoContext(ctx, "processing document", "file", doc.Name, "model_type", req.ModelType)

	h.process(ctx, w, *doc, req.ModelType)
}

// ProcessSession is the relayed path: it waits for the mobile hand-off
// and then feeds the file into the exact same pipeline as a direct
// upload.
func (h *Handler) ProcessSession(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	sessionID := r.PathValue("id")

	var req struct {
		ModelType string `json:"modelType"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeFailure(ctx, w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if !ValidModelType(req.ModelType) {
		h.writeFailure(ctx, w, "Unknown model type", http.StatusBadRequest)
		return
	}

	file, err := h.waiter.Wait(ctx, sessionID)
	if errors.Is(err, session.ErrInvalidSession) {
		h.writeFailure(ctx, w, "No session ID found. Please scan the QR code again.", http.StatusBadRequest)
		return
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		// The primary view went away; nothing may be delivered after
		// teardown and there is nobody left to answer.
		slog.InfoContext(ctx, "upload wait cancelled", "session_id", sessionID)
		return
	}
	if err != nil {
		slog.ErrorContext(ctx, "upload wait failed", "session_id", sessionID, "error", err)
		h.writeFailure(ctx, w, "Internal Server Error", http.StatusInternalServerError)
		return
	}
	if file == nil {
		// Session expired without an upload. Not an error: the mobile
		// user may simply never have completed the hand-off.
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(map[string]interface{}{"success": true, "status": "no_file"}); err != nil {
			slog.ErrorContext(ctx, "failed to encode response", "error", err)
		}
		return
	}

	slog.InfoContext(ctx, "relayed file received", "session_id", sessionID, "file", file.Name, "model_type", req.ModelType)

	doc := Document{Name: file.Name, ContentType: file.ContentType, Data: file.Data}
	h.process(ctx, w, doc, req.ModelType)
}

// ListModels returns the extraction model catalogue.
func (h *Handler) ListModels(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	resp := map[string]interface{}{
		"data": ModelTypes,
		"meta": map[string]int{"count": len(ModelTypes)},
	}
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		slog.ErrorContext(r.Context(), "failed to encode response", "error", err)
	}
}

func (h *Handler) buildDocument(req *processRequest) (*Document, int, string) {
	if req.File.Name == "" || req.File.Data == "" {
		return nil, http.StatusBadRequest, "File name and data are required"
	}
	if !session.ValidExtension(req.File.Name) {
		return nil, http.StatusBadRequest, "Unsupported file type"
	}
	if !ValidModelType(req.ModelType) {
		return nil, http.StatusBadRequest, "Unknown model type"
	}

	data, err := base64.StdEncoding.DecodeString(req.File.Data)
	if err != nil {
		return nil, http.StatusBadRequest, "Invalid file data"
	}

	return &Document{Name: req.File.Name, ContentType: req.File.Type, Data: data}, 0, ""
}

func (h *Handler) process(ctx context.Context, w http.ResponseWriter, doc Document, modelType string) {
	result, err := h.service.Process(ctx, doc, modelType)
	if err != nil {
		var failed *ProcessingFailedError
		switch {
		case errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded):
			slog.InfoContext(ctx, "processing cancelled", "file", doc.Name)
			return
		case errors.Is(err, ErrSubmission):
			slog.ErrorContext(ctx, "submission rejected", "error", err, "file", doc.Name)
			h.writeFailure(ctx, w, err.Error(), http.StatusInternalServerError)
		case errors.As(err, &failed):
			slog.ErrorContext(ctx, "engine reported failure", "file", doc.Name)
			h.writeFailure(ctx, w, "Document processing failed", http.StatusInternalServerError)
		case errors.Is(err, ErrTimedOut):
			slog.ErrorContext(ctx, "processing timed out", "file", doc.Name)
			h.writeFailure(ctx, w, "Document processing timed out", http.StatusInternalServerError)
		default:
			slog.ErrorContext(ctx, "processing failed", "error", err, "file", doc.Name)
			h.writeFailure(ctx, w, err.Error(), http.StatusInternalServerError)
		}
		return
	}

	w.Header().Set("Content-Type", "application/json")
	resp := map[string]interface{}{
		"success":   true,
		"data":      result.Raw,
		"modelType": modelType,
	}
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		slog.ErrorContext(ctx, "failed to encode response", "error", err)
	}
}

func (h *Handler) writeFailure(ctx context.Context, w http.ResponseWriter, message string, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	resp := map[string]interface{}{
		"success": false,
		"error":   message,
	}
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		slog.ErrorContext(ctx, "failed to encode error response", "error", err)
	}
}
