package sessions

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/alexschlessinger/jurisearch/messages"
	"github.com/gofrs/flock"
	"go.uber.org/zap"
)

// lockTimeout bounds how long Get waits for another process holding a context
const lockTimeout = 10 * time.Second

// FileSession implements a file-based persistent session
type FileSession struct {
	ID       string                 `json:"id"`
	History  []messages.ChatMessage `json:"history"`
	Created  time.Time              `json:"created"`
	Updated  time.Time              `json:"updated"`
	Metadata *Metadata              `json:"metadata"`
	path     string
	lock     *flock.Flock // File lock using flock
	mu       sync.RWMutex
}

// FileSessionStore keeps one JSON file per named context
type FileSessionStore struct {
	baseDir  string
	defaults *Metadata // Default values for new contexts
}

// NewFileSessionStore creates a new file-based session store
func NewFileSessionStore(baseDir string, defaults *Metadata) (*FileSessionStore, error) {
	if defaults == nil {
		defaults = &Metadata{}
	}

	if baseDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("failed to get home directory: %w", err)
		}
		baseDir = filepath.Join(homeDir, ".jurisearch", "contexts")
	}

	if err := os.MkdirAll(baseDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create context directory: %w", err)
	}

	return &FileSessionStore{
		baseDir:  baseDir,
		defaults: defaults,
	}, nil
}

// ValidateContextName checks if a context name is valid for filesystem use
func ValidateContextName(name string) error {
	if name == "" {
		return fmt.Errorf("context name cannot be empty")
	}

	if strings.ContainsAny(name, "/\\:*?\"<>|") {
		return fmt.Errorf("context name contains invalid characters (/, \\, :, *, ?, \", <, >, |)")
	}

	if name == "." || name == ".." {
		return fmt.Errorf("context name cannot be '.' or '..'")
	}

	if strings.HasPrefix(name, " ") || strings.HasSuffix(name, " ") {
		return fmt.Errorf("context name cannot start or end with spaces")
	}
	if strings.HasPrefix(name, ".") || strings.HasSuffix(name, ".") {
		return fmt.Errorf("context name cannot start or end with dots")
	}

	for _, r := range name {
		if r < 32 || r == 127 {
			return fmt.Errorf("context name contains control characters")
		}
	}

	return nil
}

func (s *FileSessionStore) pathFor(name string) string {
	return filepath.Join(s.baseDir, name+".json")
}

// Get loads or creates a session and holds its file lock until Close
func (s *FileSessionStore) Get(name string) (Session, error) {
	if err := ValidateContextName(name); err != nil {
		return nil, fmt.Errorf("invalid context name '%s': %w", name, err)
	}

	sessionPath := s.pathFor(name)

	// Lock the session file itself (no separate .lock file)
	fileLock := flock.New(sessionPath)

	ctx, cancel := context.WithTimeout(context.Background(), lockTimeout)
	defer cancel()

	locked, err := fileLock.TryLockContext(ctx, 100*time.Millisecond)
	if err != nil {
		return nil, fmt.Errorf("failed to acquire lock: %w", err)
	}
	if !locked {
		return nil, fmt.Errorf("could not acquire lock within %v", lockTimeout)
	}

	if data, err := os.ReadFile(sessionPath); err == nil && len(data) > 0 {
		var session FileSession
		if err := json.Unmarshal(data, &session); err == nil {
			session.path = sessionPath
			session.lock = fileLock
			session.Updated = time.Now()
			if session.Metadata == nil {
				session.Metadata = newMetadata(name, s.defaults)
				session.Metadata.Created = session.Created
			} else {
				session.Metadata.LastUsed = time.Now()
			}
			if err := session.save(); err != nil {
				zap.S().Debugw("session_save_failed", "name", name, "error", err)
			}
			return &session, nil
		}
		zap.S().Warnw("session_file_corrupt", "name", name, "path", sessionPath)
	}

	now := time.Now()
	md := newMetadata(name, s.defaults)
	session := &FileSession{
		ID:       name,
		History:  InitializeWithSystemPrompt(md.SystemPrompt),
		Created:  now,
		Updated:  now,
		Metadata: md,
		path:     sessionPath,
		lock:     fileLock,
	}
	if err := session.save(); err != nil {
		fileLock.Unlock()
		return nil, fmt.Errorf("failed to save session: %w", err)
	}
	return session, nil
}

// Delete removes a session
func (s *FileSessionStore) Delete(name string) {
	// Unlink even if another process holds it; its open FD keeps the data alive
	_ = os.Remove(s.pathFor(name))
}

// List returns all available context names
func (s *FileSessionStore) List() ([]string, error) {
	entries, err := os.ReadDir(s.baseDir)
	if err != nil {
		return nil, err
	}

	var contexts []string
	for _, entry := range entries {
		if filepath.Ext(entry.Name()) == ".json" {
			contexts = append(contexts, strings.TrimSuffix(entry.Name(), ".json"))
		}
	}
	return contexts, nil
}

// GetLast returns the last used context name based on file modification time
func (s *FileSessionStore) GetLast() string {
	entries, err := os.ReadDir(s.baseDir)
	if err != nil {
		return ""
	}

	var lastFile string
	var lastTime time.Time

	for _, entry := range entries {
		if filepath.Ext(entry.Name()) != ".json" {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		if info.ModTime().After(lastTime) {
			lastTime = info.ModTime()
			lastFile = strings.TrimSuffix(entry.Name(), ".json")
		}
	}

	return lastFile
}

// GetAllMetadata returns information about all contexts without locking them
func (s *FileSessionStore) GetAllMetadata() map[string]*Metadata {
	result := make(map[string]*Metadata)

	names, err := s.List()
	if err != nil {
		return result
	}

	for _, name := range names {
		data, err := os.ReadFile(s.pathFor(name))
		if err != nil {
			continue
		}
		var session FileSession
		if err := json.Unmarshal(data, &session); err == nil && session.Metadata != nil {
			result[name] = session.Metadata
		}
	}

	return result
}

// Exists checks if a context with the given name exists
func (s *FileSessionStore) Exists(name string) bool {
	_, err := os.Stat(s.pathFor(name))
	return err == nil
}

// BaseDir returns the directory holding the context files
func (s *FileSessionStore) BaseDir() string {
	return s.baseDir
}

// GetHistory returns a copy of the session history
func (s *FileSession) GetHistory() []messages.ChatMessage {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return CopyHistory(s.History)
}

// AddMessage adds a message to the session history and persists it
func (s *FileSession) AddMessage(msg messages.ChatMessage) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.History = TrimHistory(append(s.History, msg), s.Metadata.MaxHistory)
	s.Updated = time.Now()
	if err := s.save(); err != nil {
		zap.S().Debugw("session_save_failed", "name", s.ID, "error", err)
	}
}

// Clear resets the history to the system prompt
func (s *FileSession) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.History = InitializeWithSystemPrompt(s.Metadata.SystemPrompt)
	s.Updated = time.Now()
	if err := s.save(); err != nil {
		zap.S().Debugw("session_save_failed", "name", s.ID, "error", err)
	}
}

// GetName returns the session name
func (s *FileSession) GetName() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.ID
}

// GetMetadata returns a copy of the context metadata
func (s *FileSession) GetMetadata() *Metadata {
	s.mu.RLock()
	defer s.mu.RUnlock()
	md := *s.Metadata
	return &md
}

// UpdateMetadata applies a partial update to the context metadata
func (s *FileSession) UpdateMetadata(update *Metadata) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.Metadata = MergeMetadata(s.Metadata, update)
	s.Updated = time.Now()
	return s.save()
}

// GetLastUsed returns when the session was last accessed
func (s *FileSession) GetLastUsed() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.Updated
}

// save persists the session to disk; callers hold mu
func (s *FileSession) save() error {
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(s.path, data, 0644)
}

// Close releases the file lock on the session file
func (s *FileSession) Close() {
	if s.lock != nil {
		s.lock.Unlock()
		s.lock = nil
	}
}
