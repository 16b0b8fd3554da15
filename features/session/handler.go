package session

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/sarvottam-bhagat/docu-ai-processor/internal/middleware"
)

type Handler struct {
	store           Store
	origin          string
	maxUploadSizeMB int64
}

func NewHandler(store Store, origin string, maxUploadSizeMB int64) *Handler {
	return &Handler{store: store, origin: origin, maxUploadSizeMB: maxUploadSizeMB}
}

// Create mints a fresh session identifier for the primary device. No
// store write happens here; the session exists only as a key both
// devices agree on.
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	id, err := NewID()
	if err != nil {
		slog.ErrorContext(r.Context(), "failed to generate session id", "error", err)
		h.writeError(r.Context(), w, "INTERNAL_ERROR", "Internal Server Error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	resp := map[string]interface{}{
		"data": map[string]interface{}{
			"session_id":         id,
			"upload_url":         UploadURL(h.origin, id),
			"expires_in_seconds": int(TTL.Seconds()),
		},
	}
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		slog.ErrorContext(r.Context(), "failed to encode response", "error", err)
	}
}

// QR renders the session's upload URL as a scannable PNG.
func (h *Handler) QR(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		h.writeError(r.Context(), w, "INVALID_SESSION", "Session identifier is required", http.StatusBadRequest)
		return
	}

	png, err := QRCode(h.origin, id)
	if err != nil {
		// The identifier stays valid; only the image failed.
		slog.ErrorContext(r.Context(), "failed to render qr code", "session_id", id, "error", err)
		h.writeError(r.Context(), w, "INTERNAL_ERROR", "Failed to render QR code", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "image/png")
	if _, err := w.Write(png); err != nil {
		slog.ErrorContext(r.Context(), "failed to write qr code", "error", err)
	}
}

// Upload is the secondary-device relay endpoint. One file in, one
// store write out. Re-posting before the primary device consumes the
// payload simply overwrites it.
func (h *Handler) Upload(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	sessionID := r.PathValue("sessionId")
	if sessionID == "" {
		h.writeError(ctx, w, "INVALID_SESSION", "No session ID found. Please scan the QR code again.", http.StatusBadRequest)
		return
	}

	maxBytes := h.maxUploadSizeMB << 20
	r.Body = http.MaxBytesReader(w, r.Body, maxBytes)

	if err := r.ParseMultipartForm(maxBytes); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			h.writeError(ctx, w, "PAYLOAD_TOO_LARGE", "File too large", http.StatusRequestEntityTooLarge)
			return
		}
		h.writeError(ctx, w, "BAD_REQUEST", "Invalid multipart body", http.StatusBadRequest)
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		h.writeError(ctx, w, "BAD_REQUEST", "Unable to retrieve file", http.StatusBadRequest)
		return
	}
	defer file.Close()

	if !ValidExtension(header.Filename) {
		h.writeError(ctx, w, "BAD_REQUEST", "Unsupported file type", http.StatusBadRequest)
		return
	}

	data, err := io.ReadAll(file)
	if err != nil {
		slog.ErrorContext(ctx, "failed to read uploaded file", "error", err)
		h.writeError(ctx, w, "INTERNAL_ERROR", "Failed to read file", http.StatusInternalServerError)
		return
	}

	contentType := header.Header.Get("Content-Type")
	payload := EncodePayload(sessionID, header.Filename, contentType, data)
	if err := h.store.Put(ctx, payload); err != nil {
		slog.ErrorContext(ctx, "failed to store relay payload", "session_id", sessionID, "error", err)
		h.writeError(ctx, w, "INTERNAL_ERROR", "Failed to store upload", http.StatusInternalServerError)
		return
	}

	slog.InfoContext(ctx, "relay payload stored", "session_id", sessionID, "file", header.Filename, "bytes", len(data))

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(map[string]interface{}{"data": "uploaded"}); err != nil {
		slog.ErrorContext(ctx, "failed to encode response", "error", err)
	}
}

// Status lets a browser on the primary device ask whether a payload
// has landed. It never consumes the entry; consumption belongs to the
// Poller so a session can only deliver once.
func (h *Handler) Status(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	sessionID := r.PathValue("sessionId")
	if sessionID == "" {
		h.writeError(ctx, w, "INVALID_SESSION", "Session identifier is required", http.StatusBadRequest)
		return
	}

	p, err := h.store.Get(ctx, sessionID)
	if errors.Is(err, ErrNotFound) {
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(map[string]interface{}{"data": map[string]bool{"pending": true}}); err != nil {
			slog.ErrorContext(ctx, "failed to encode response", "error", err)
		}
		return
	}
	if err != nil {
		slog.ErrorContext(ctx, "failed to read session store", "session_id", sessionID, "error", err)
		h.writeError(ctx, w, "INTERNAL_ERROR", "Internal Server Error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	resp := map[string]interface{}{
		"data": map[string]interface{}{
			"pending":    false,
			"file_name":  p.FileName,
			"file_type":  p.FileType,
			"written_at": p.WrittenAt,
		},
	}
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		slog.ErrorContext(ctx, "failed to encode response", "error", err)
	}
}

func (h *Handler) writeError(ctx context.Context, w http.ResponseWriter, code, message string, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	resp := map[string]interface{}{
		"error": map[string]string{
			"code":    code,
			"message": message,
		},
		"correlationId": middleware.GetCorrelationID(ctx),
	}

	if err := json.NewEncoder(w).Encode(resp); err != nil {
		slog.Error("failed to encode error response", "error", err)
	}
}
