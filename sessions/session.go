package sessions

import (
	"sync"
	"time"

	"github.com/alexschlessinger/jurisearch/messages"
)

// LocalSession implements an in-memory session
type LocalSession struct {
	history  []messages.ChatMessage
	last     time.Time
	name     string
	mu       sync.RWMutex
	metadata *Metadata
}

// SyncMapSessionStore implements a thread-safe in-memory session store
type SyncMapSessionStore struct {
	sync.Map
	defaults *Metadata // Default values for new contexts
}

// NewSyncMapSessionStore creates a new thread-safe in-memory session store
func NewSyncMapSessionStore(defaults *Metadata) SessionStore {
	if defaults == nil {
		defaults = &Metadata{}
	}
	return &SyncMapSessionStore{defaults: defaults}
}

// Get retrieves or creates a session
func (s *SyncMapSessionStore) Get(id string) (Session, error) {
	if value, ok := s.Load(id); ok {
		session := value.(*LocalSession)
		session.mu.Lock()
		session.last = time.Now()
		session.mu.Unlock()
		return session, nil
	}

	session := &LocalSession{
		name:     id,
		last:     time.Now(),
		metadata: newMetadata(id, s.defaults),
	}
	session.Clear()
	actual, _ := s.LoadOrStore(id, session)
	return actual.(*LocalSession), nil
}

// Delete removes a session
func (s *SyncMapSessionStore) Delete(id string) {
	s.Map.Delete(id)
}

// List returns all session names
func (s *SyncMapSessionStore) List() ([]string, error) {
	var names []string
	s.Range(func(key, value any) bool {
		names = append(names, key.(string))
		return true
	})
	return names, nil
}

// Exists checks if a session exists without creating it
func (s *SyncMapSessionStore) Exists(id string) bool {
	_, ok := s.Load(id)
	return ok
}

// GetAllMetadata returns metadata for all contexts
func (s *SyncMapSessionStore) GetAllMetadata() map[string]*Metadata {
	result := make(map[string]*Metadata)
	s.Range(func(key, value any) bool {
		result[key.(string)] = value.(*LocalSession).GetMetadata()
		return true
	})
	return result
}

// GetLast returns the name of the most recently used session
func (s *SyncMapSessionStore) GetLast() string {
	var lastContext string
	var lastTime time.Time

	s.Range(func(key, value any) bool {
		if t := value.(*LocalSession).GetLastUsed(); t.After(lastTime) {
			lastTime = t
			lastContext = key.(string)
		}
		return true
	})

	return lastContext
}

// GetHistory returns a copy of the session history
func (s *LocalSession) GetHistory() []messages.ChatMessage {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return CopyHistory(s.history)
}

// AddMessage adds a message to the session history
func (s *LocalSession) AddMessage(msg messages.ChatMessage) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.history = TrimHistory(append(s.history, msg), s.metadata.MaxHistory)
	s.last = time.Now()
}

// Clear resets the history to the system prompt
func (s *LocalSession) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.history = InitializeWithSystemPrompt(s.metadata.SystemPrompt)
	s.last = time.Now()
}

// GetName returns the session name
func (s *LocalSession) GetName() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.name
}

// GetMetadata returns a copy of the context metadata
func (s *LocalSession) GetMetadata() *Metadata {
	s.mu.RLock()
	defer s.mu.RUnlock()
	md := *s.metadata
	return &md
}

// UpdateMetadata applies a partial update to the context metadata
func (s *LocalSession) UpdateMetadata(update *Metadata) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.metadata = MergeMetadata(s.metadata, update)
	s.last = time.Now()
	return nil // LocalSession has no persistence errors
}

// GetLastUsed returns when the session was last accessed
func (s *LocalSession) GetLastUsed() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.last
}

// Close is a no-op for LocalSession (no resources to clean up)
func (s *LocalSession) Close() {}
