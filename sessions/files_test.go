package sessions

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/alexschlessinger/jurisearch/messages"
)

// recordingUploader assigns provider references without a network call
type recordingUploader struct {
	uploads int
	deleted []string
}

func (u *recordingUploader) Upload(ctx context.Context, h *UploadedFileHandle) error {
	u.uploads++
	h.ProviderFileID = "files/" + h.DisplayName
	h.ProviderURI = "https://generativelanguage.googleapis.com/v1beta/files/" + h.DisplayName
	return nil
}

func (u *recordingUploader) Delete(ctx context.Context, h *UploadedFileHandle) error {
	u.deleted = append(u.deleted, h.ID)
	return nil
}

func writePDF(t *testing.T, dir, name string, size int) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, make([]byte, size), 0644); err != nil {
		t.Fatalf("Failed to write %s: %v", name, err)
	}
	return path
}

func TestTrackDuplicatePath(t *testing.T) {
	set := NewFileSet()

	first, err := set.Track(&UploadedFileHandle{AbsolutePath: "/a/b.pdf", DisplayName: "b.pdf", MIMEType: PDFMimeType})
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	existing, err := set.Track(&UploadedFileHandle{AbsolutePath: "/a/b.pdf", DisplayName: "b.pdf"})
	var dup *DuplicateFileError
	if !errors.As(err, &dup) {
		t.Fatalf("Expected *DuplicateFileError, got %v", err)
	}
	if dup.Existing.ID != first.ID {
		t.Errorf("Expected existing ID %s, got %s", first.ID, dup.Existing.ID)
	}
	if existing == nil || existing.ID != first.ID {
		t.Errorf("Expected the original handle returned, got %v", existing)
	}
	if !errors.Is(err, ErrDuplicateFile) {
		t.Error("Expected error to match ErrDuplicateFile")
	}
	if set.Len() != 1 {
		t.Errorf("Expected 1 tracked file, got %d", set.Len())
	}
}

func TestAddDuplicateDoesNotUpload(t *testing.T) {
	dir := t.TempDir()
	path := writePDF(t, dir, "contrat.pdf", 128)
	uploader := &recordingUploader{}
	set := NewFileSet()

	first, err := set.Add(context.Background(), path, uploader)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if first.SizeBytes != 128 {
		t.Errorf("Expected size 128, got %d", first.SizeBytes)
	}

	// same file through a relative-looking path
	again := filepath.Join(dir, ".", "contrat.pdf")
	existing, err := set.Add(context.Background(), again, uploader)
	var dup *DuplicateFileError
	if !errors.As(err, &dup) {
		t.Fatalf("Expected *DuplicateFileError, got %v", err)
	}
	if existing.ID != first.ID {
		t.Errorf("Expected existing ID %s, got %s", first.ID, existing.ID)
	}
	if uploader.uploads != 1 {
		t.Errorf("Expected 1 upload, got %d", uploader.uploads)
	}
}

func TestAddRejectsInvalidFiles(t *testing.T) {
	dir := t.TempDir()
	txt := filepath.Join(dir, "notes.txt")
	if err := os.WriteFile(txt, []byte("x"), 0644); err != nil {
		t.Fatalf("Failed to write file: %v", err)
	}
	set := NewFileSet()

	if _, err := set.Add(context.Background(), txt, nil); !errors.Is(err, ErrNotPDF) {
		t.Errorf("Expected ErrNotPDF, got %v", err)
	}
	if _, err := set.Add(context.Background(), filepath.Join(dir, "absent.pdf"), nil); !errors.Is(err, ErrFileNotFound) {
		t.Errorf("Expected ErrFileNotFound, got %v", err)
	}
	if set.Len() != 0 {
		t.Errorf("Expected no tracked files, got %d", set.Len())
	}
}

func TestPendingPartsOnlyNewFiles(t *testing.T) {
	dir := t.TempDir()
	set := NewFileSet()
	uploader := &recordingUploader{}

	if _, err := set.Add(context.Background(), writePDF(t, dir, "a.pdf", 10), uploader); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	parts := set.PendingParts()
	if len(parts) != 1 {
		t.Fatalf("Expected 1 part, got %d", len(parts))
	}
	if parts[0].Type != messages.PartTypeFile || parts[0].FileURI == "" {
		t.Errorf("Expected file part with URI, got %+v", parts[0])
	}

	if _, err := set.Add(context.Background(), writePDF(t, dir, "b.pdf", 10), uploader); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	parts = set.PendingParts()
	if len(parts) != 1 || parts[0].FileName != "b.pdf" {
		t.Fatalf("Expected only b.pdf pending, got %+v", parts)
	}

	if got := set.PendingParts(); len(got) != 0 {
		t.Errorf("Expected nothing pending, got %d", len(got))
	}

	set.ResetSent()
	if got := set.PendingParts(); len(got) != 2 {
		t.Errorf("Expected 2 parts after reset, got %d", len(got))
	}
}

func TestRemoveAndClear(t *testing.T) {
	dir := t.TempDir()
	set := NewFileSet()

	a, err := set.Add(context.Background(), writePDF(t, dir, "a.pdf", 10), nil)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if _, err := set.Add(context.Background(), writePDF(t, dir, "b.pdf", 10), nil); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	if _, ok := set.Remove(a.ID); !ok {
		t.Fatal("Expected Remove to find the handle")
	}
	if _, ok := set.Remove(a.ID); ok {
		t.Error("Expected second Remove to fail")
	}
	if set.Len() != 1 {
		t.Errorf("Expected 1 tracked file, got %d", set.Len())
	}

	// a removed file can be uploaded again
	if _, err := set.Add(context.Background(), a.AbsolutePath, nil); err != nil {
		t.Errorf("Expected re-add to succeed, got %v", err)
	}

	if removed := set.Clear(); len(removed) != 2 {
		t.Errorf("Expected 2 removed, got %d", len(removed))
	}
	if set.Len() != 0 {
		t.Errorf("Expected empty set, got %d", set.Len())
	}
}

func TestInlineUploader(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "doc.pdf")
	if err := os.WriteFile(path, []byte("%PDF-1.4"), 0644); err != nil {
		t.Fatalf("Failed to write file: %v", err)
	}

	set := NewFileSet()
	h, err := set.Add(context.Background(), path, InlineUploader{})
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	part := h.Part()
	if part.FileData != "JVBERi0xLjQ=" {
		t.Errorf("Expected base64 body, got '%s'", part.FileData)
	}
	if part.FileURI != "" {
		t.Errorf("Expected no URI, got '%s'", part.FileURI)
	}
}

func TestAddWhileUploadInFlightNamesPendingID(t *testing.T) {
	dir := t.TempDir()
	path := writePDF(t, dir, "contrat.pdf", 10)
	abs, err := ResolvePDF(path)
	if err != nil {
		t.Fatal(err)
	}

	set := NewFileSet()
	id, _, err := set.reserve(abs)
	if err != nil {
		t.Fatalf("reserve failed: %v", err)
	}
	if id == "" {
		t.Fatal("Expected reserve to assign an ID")
	}

	existing, err := set.Add(context.Background(), path, nil)
	var dup *DuplicateFileError
	if !errors.As(err, &dup) {
		t.Fatalf("Expected DuplicateFileError, got %v", err)
	}
	if existing == nil || existing.ID != id {
		t.Errorf("Expected in-flight handle with ID %s, got %+v", id, existing)
	}
	if strings.HasSuffix(err.Error(), "()") {
		t.Errorf("Expected error to name the in-flight ID, got %q", err.Error())
	}

	set.release(abs)
	h, err := set.Add(context.Background(), path, nil)
	if err != nil {
		t.Fatalf("Expected add after release to succeed, got %v", err)
	}
	if h.ID == "" || h.ID == id {
		t.Errorf("Expected a fresh ID after release, got %q", h.ID)
	}
}
