package sessions

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/alexschlessinger/jurisearch/messages"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"google.golang.org/genai"
)

// PDFMimeType is the only document type accepted for upload
const PDFMimeType = "application/pdf"

// Sentinel errors
var (
	ErrNotPDF        = errors.New("only PDF files are supported")
	ErrFileNotFound  = errors.New("file not found")
	ErrDuplicateFile = errors.New("file already uploaded")
)

// DuplicateFileError is returned when a path is already tracked by the set
type DuplicateFileError struct {
	Path     string
	Existing *UploadedFileHandle
}

func (e *DuplicateFileError) Error() string {
	return fmt.Sprintf("file '%s' is already uploaded as '%s' (%s)", filepath.Base(e.Path), e.Existing.DisplayName, e.Existing.ID)
}

func (e *DuplicateFileError) Unwrap() error {
	return ErrDuplicateFile
}

// UploadedFileHandle is a PDF made available to the conversation. Its
// identity is the resolved absolute path.
type UploadedFileHandle struct {
	ID                 string    `json:"id"`
	AbsolutePath       string    `json:"absolute_path"`
	DisplayName        string    `json:"display_name"`
	ProviderFileID     string    `json:"provider_file_id,omitempty"`
	ProviderURI        string    `json:"provider_uri,omitempty"`
	MIMEType           string    `json:"mime_type"`
	SizeBytes          int64     `json:"size_bytes"`
	SentToConversation bool      `json:"sent_to_conversation"`
	UploadedAt         time.Time `json:"uploaded_at"`

	// Data holds the base64 body for providers without a files API
	Data string `json:"-"`
}

// Part converts the handle to a message content part
func (h *UploadedFileHandle) Part() messages.ContentPart {
	part := messages.ContentPart{
		Type:     messages.PartTypeFile,
		MimeType: h.MIMEType,
		FileName: h.DisplayName,
	}
	if h.ProviderURI != "" {
		part.FileURI = h.ProviderURI
	} else {
		part.FileData = h.Data
	}
	return part
}

// Uploader makes a local file reachable by a provider
type Uploader interface {
	Upload(ctx context.Context, h *UploadedFileHandle) error
	Delete(ctx context.Context, h *UploadedFileHandle) error
}

// ResolvePDF validates path and returns its absolute form
func ResolvePDF(path string) (string, error) {
	if !strings.EqualFold(filepath.Ext(path), ".pdf") {
		return "", fmt.Errorf("%s: %w", path, ErrNotPDF)
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("cannot resolve %s: %w", path, err)
	}
	if resolved, err := filepath.EvalSymlinks(abs); err == nil {
		abs = resolved
	}
	return abs, nil
}

// FileSet tracks the files uploaded during a session
type FileSet struct {
	mu      sync.Mutex
	handles []*UploadedFileHandle
	pending map[string]string // path -> ID reserved by an upload in flight
}

// NewFileSet creates an empty file set
func NewFileSet() *FileSet {
	return &FileSet{pending: make(map[string]string)}
}

// Add validates, uploads and tracks the PDF at path. A path already in the
// set returns the existing handle with a *DuplicateFileError.
func (s *FileSet) Add(ctx context.Context, path string, uploader Uploader) (*UploadedFileHandle, error) {
	abs, err := ResolvePDF(path)
	if err != nil {
		return nil, err
	}

	id, existing, err := s.reserve(abs)
	if err != nil {
		return existing, err
	}
	defer s.release(abs)

	info, err := os.Stat(abs)
	if err != nil || info.IsDir() {
		return nil, fmt.Errorf("%s: %w", path, ErrFileNotFound)
	}

	h := &UploadedFileHandle{
		ID:           id,
		AbsolutePath: abs,
		DisplayName:  filepath.Base(abs),
		MIMEType:     PDFMimeType,
		SizeBytes:    info.Size(),
		UploadedAt:   time.Now(),
	}

	if uploader != nil {
		if err := uploader.Upload(ctx, h); err != nil {
			return nil, fmt.Errorf("upload %s: %w", h.DisplayName, err)
		}
	}

	s.mu.Lock()
	s.handles = append(s.handles, h)
	s.mu.Unlock()

	zap.S().Debugw("file_uploaded", "id", h.ID, "path", abs, "size", h.SizeBytes, "uri", h.ProviderURI)
	out := *h
	return &out, nil
}

// Track adds a handle uploaded elsewhere, applying the same duplicate check
func (s *FileSet) Track(h *UploadedFileHandle) (*UploadedFileHandle, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if existing := s.lookup(h.AbsolutePath); existing != nil {
		return existing, &DuplicateFileError{Path: h.AbsolutePath, Existing: existing}
	}
	if h.ID == "" {
		h.ID = uuid.NewString()
	}
	tracked := *h
	s.handles = append(s.handles, &tracked)
	out := tracked
	return &out, nil
}

// reserve claims abs for an upload in flight and returns the ID the handle
// will carry. A second claim reports that ID in its DuplicateFileError.
func (s *FileSet) reserve(abs string) (string, *UploadedFileHandle, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if existing := s.lookup(abs); existing != nil {
		return "", existing, &DuplicateFileError{Path: abs, Existing: existing}
	}
	if id, ok := s.pending[abs]; ok {
		inFlight := &UploadedFileHandle{ID: id, AbsolutePath: abs, DisplayName: filepath.Base(abs), MIMEType: PDFMimeType}
		return "", inFlight, &DuplicateFileError{Path: abs, Existing: inFlight}
	}
	id := uuid.NewString()
	s.pending[abs] = id
	return id, nil, nil
}

func (s *FileSet) release(abs string) {
	s.mu.Lock()
	delete(s.pending, abs)
	s.mu.Unlock()
}

// lookup returns a copy of the handle for abs; callers hold mu
func (s *FileSet) lookup(abs string) *UploadedFileHandle {
	for _, h := range s.handles {
		if h.AbsolutePath == abs {
			out := *h
			return &out
		}
	}
	return nil
}

// List returns copies of the tracked handles in upload order
func (s *FileSet) List() []UploadedFileHandle {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]UploadedFileHandle, len(s.handles))
	for i, h := range s.handles {
		out[i] = *h
	}
	return out
}

// Len returns the number of tracked files
func (s *FileSet) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.handles)
}

// PendingParts returns the parts of files not yet sent and marks them sent
func (s *FileSet) PendingParts() []messages.ContentPart {
	s.mu.Lock()
	defer s.mu.Unlock()

	var parts []messages.ContentPart
	for _, h := range s.handles {
		if h.SentToConversation {
			continue
		}
		parts = append(parts, h.Part())
		h.SentToConversation = true
	}
	return parts
}

// ResetSent forces every file to be included in the next request
func (s *FileSet) ResetSent() {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, h := range s.handles {
		h.SentToConversation = false
	}
}

// Remove stops tracking the file with the given id
func (s *FileSet) Remove(id string) (*UploadedFileHandle, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := slices.IndexFunc(s.handles, func(h *UploadedFileHandle) bool { return h.ID == id })
	if i < 0 {
		return nil, false
	}
	removed := s.handles[i]
	s.handles = slices.Delete(s.handles, i, i+1)
	return removed, true
}

// Clear stops tracking every file and returns what was removed
func (s *FileSet) Clear() []*UploadedFileHandle {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := s.handles
	s.handles = nil
	return removed
}

// GeminiUploader sends files through the Gemini Files API
type GeminiUploader struct {
	apiKey string
}

// NewGeminiUploader creates an uploader for the Gemini Files API
func NewGeminiUploader(apiKey string) *GeminiUploader {
	return &GeminiUploader{apiKey: apiKey}
}

func (u *GeminiUploader) client(ctx context.Context) (*genai.Client, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  u.apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}
	return client, nil
}

// Upload stores the file remotely and records its provider reference
func (u *GeminiUploader) Upload(ctx context.Context, h *UploadedFileHandle) error {
	client, err := u.client(ctx)
	if err != nil {
		return err
	}

	file, err := client.Files.UploadFromPath(ctx, h.AbsolutePath, &genai.UploadFileConfig{
		MIMEType:    h.MIMEType,
		DisplayName: h.DisplayName,
	})
	if err != nil {
		return err
	}

	h.ProviderFileID = file.Name
	h.ProviderURI = file.URI
	return nil
}

// Delete removes the remote copy of the file
func (u *GeminiUploader) Delete(ctx context.Context, h *UploadedFileHandle) error {
	if h.ProviderFileID == "" {
		return nil
	}
	client, err := u.client(ctx)
	if err != nil {
		return err
	}
	if _, err := client.Files.Delete(ctx, h.ProviderFileID, nil); err != nil {
		return fmt.Errorf("delete %s: %w", h.ProviderFileID, err)
	}
	return nil
}

// InlineUploader embeds the file body in the request as base64
type InlineUploader struct{}

func (InlineUploader) Upload(ctx context.Context, h *UploadedFileHandle) error {
	data, err := os.ReadFile(h.AbsolutePath)
	if err != nil {
		return fmt.Errorf("cannot read %s: %w", h.AbsolutePath, err)
	}
	h.Data = base64.StdEncoding.EncodeToString(data)
	return nil
}

func (InlineUploader) Delete(ctx context.Context, h *UploadedFileHandle) error {
	return nil
}

// UploaderFor picks the uploader matching the provider of a routed model
func UploaderFor(provider, geminiAPIKey string) Uploader {
	if provider == "gemini" && geminiAPIKey != "" {
		return NewGeminiUploader(geminiAPIKey)
	}
	return InlineUploader{}
}
