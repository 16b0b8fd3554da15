package session

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	qrcode "github.com/skip2/go-qrcode"
)

const (
	// TTL is the hard cap on a rendezvous session. Entries older than
	// this are irrelevant to readers even if they still exist.
	TTL = 5 * time.Minute

	// PollInterval is the cadence at which the primary device checks
	// the store for a relayed payload.
	PollInterval = 2 * time.Second

	idLength = 8
	idChars  = "abcdefghijklmnopqrstuvwxyz0123456789"

	qrSize = 300
)

var (
	ErrInvalidSession = errors.New("invalid session")
	ErrNotFound       = errors.New("session payload not found")
)

// Payload is the relayed file as it sits in the store: binary content
// carried as base64 so any text-safe backend can hold it.
type Payload struct {
	SessionID string    `json:"session_id"`
	FileName  string    `json:"file_name"`
	FileType  string    `json:"file_type"`
	Data      string    `json:"data"`
	WrittenAt time.Time `json:"written_at"`
}

// File is a decoded payload, indistinguishable from a direct upload.
type File struct {
	Name        string
	ContentType string
	Data        []byte
}

// NewID returns a short random session identifier. Uniqueness is
// probabilistic; collisions are accepted as negligible.
func NewID() (string, error) {
	buf := make([]byte, idLength)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to generate session id: %w", err)
	}
	for i, b := range buf {
		buf[i] = idChars[int(b)%len(idChars)]
	}
	return string(buf), nil
}

// UploadURL is the address the secondary device opens after scanning.
func UploadURL(origin, id string) string {
	return strings.TrimRight(origin, "/") + "/mobile-upload/" + id
}

// QRCode renders the upload URL as a PNG. A render failure does not
// invalidate the identifier; it can still be delivered by other means.
func QRCode(origin, id string) ([]byte, error) {
	return qrcode.Encode(UploadURL(origin, id), qrcode.Medium, qrSize)
}

// EncodePayload wraps raw file bytes into a store-ready payload.
func EncodePayload(sessionID, fileName, fileType string, data []byte) *Payload {
	return &Payload{
		SessionID: sessionID,
		FileName:  fileName,
		FileType:  fileType,
		Data:      base64.StdEncoding.EncodeToString(data),
		WrittenAt: time.Now(),
	}
}

// Decode reconstructs the original file from the transport encoding.
func (p *Payload) Decode() (*File, error) {
	data, err := base64.StdEncoding.DecodeString(p.Data)
	if err != nil {
		return nil, fmt.Errorf("corrupt payload for session %s: %w", p.SessionID, err)
	}
	return &File{
		Name:        p.FileName,
		ContentType: p.FileType,
		Data:        data,
	}, nil
}

var allowedExts = map[string]bool{
	".png": true, ".jpg": true, ".jpeg": true, ".pdf": true,
}

// ValidExtension reports whether the filename carries a supported
// extension. Validation is by name only; content is never sniffed.
func ValidExtension(name string) bool {
	return allowedExts[strings.ToLower(filepath.Ext(name))]
}
