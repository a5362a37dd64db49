package sessions

import (
	"context"
	"errors"
	"sync"

	"github.com/alexschlessinger/jurisearch/cost"
	"github.com/alexschlessinger/jurisearch/messages"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// maxParallelUploads bounds UploadAll
const maxParallelUploads = 4

// SessionContext owns the state of one conversation: its history, uploaded
// files, the ledger of the turn in progress and the cumulative cost.
type SessionContext struct {
	ID       string
	Session  Session
	Files    *FileSet
	Uploader Uploader

	mu         sync.Mutex
	table      cost.Table
	turn       *cost.Ledger
	cumulative float64
}

// NewSessionContext wraps session. Cost carried in its metadata seeds the
// cumulative total.
func NewSessionContext(session Session, uploader Uploader, table cost.Table) *SessionContext {
	if table == nil {
		table = cost.DefaultTable()
	}
	if uploader == nil {
		uploader = InlineUploader{}
	}

	c := &SessionContext{
		ID:       uuid.NewString(),
		Session:  session,
		Files:    NewFileSet(),
		Uploader: uploader,
		table:    table,
	}
	if md := session.GetMetadata(); md != nil {
		c.cumulative = md.TotalCost
	}
	return c
}

// BeginTurn returns the ledger of the turn in progress, opening one if needed
func (c *SessionContext) BeginTurn() *cost.Ledger {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.turn == nil {
		c.turn = cost.NewLedger(c.table)
	}
	return c.turn
}

// Ledger is an alias of BeginTurn for callers that only price into the turn
func (c *SessionContext) Ledger() *cost.Ledger {
	return c.BeginTurn()
}

// EndTurn closes the turn ledger, adds it to the cumulative cost and returns it
func (c *SessionContext) EndTurn() *cost.Ledger {
	c.mu.Lock()
	ledger := c.turn
	c.turn = nil
	if ledger == nil {
		c.mu.Unlock()
		return cost.NewLedger(c.table)
	}
	c.cumulative += ledger.Total()
	total := c.cumulative
	c.mu.Unlock()

	md := c.Session.GetMetadata()
	update := &Metadata{TotalCost: total, Turns: md.Turns + 1}
	if err := c.Session.UpdateMetadata(update); err != nil {
		zap.S().Debugw("session_metadata_update_failed", "error", err)
	}
	return ledger
}

// CumulativeCost returns the cost of every closed turn of the session
func (c *SessionContext) CumulativeCost() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cumulative
}

// History returns the conversation so far
func (c *SessionContext) History() []messages.ChatMessage {
	return c.Session.GetHistory()
}

// UserMessage builds the next user message, attaching files not yet sent
func (c *SessionContext) UserMessage(text string) messages.ChatMessage {
	parts := c.Files.PendingParts()
	if len(parts) == 0 {
		return messages.ChatMessage{Role: messages.MessageRoleUser, Content: text}
	}

	parts = append(parts, messages.ContentPart{Type: messages.PartTypeText, Text: text})
	return messages.ChatMessage{Role: messages.MessageRoleUser, Parts: parts}
}

// Record appends messages to the session history
func (c *SessionContext) Record(msgs ...messages.ChatMessage) {
	for _, msg := range msgs {
		c.Session.AddMessage(msg)
	}
}

// Upload adds one PDF and prices it into the turn ledger
func (c *SessionContext) Upload(ctx context.Context, path string) (*UploadedFileHandle, error) {
	h, err := c.Files.Add(ctx, path, c.Uploader)
	if err != nil {
		return h, err
	}
	c.BeginTurn().Record(cost.TierPDF, int(h.SizeBytes), 0, 0)
	return h, nil
}

// UploadAll uploads several PDFs concurrently. Handles are returned in the
// order of paths; failed entries are nil and their errors are joined.
func (c *SessionContext) UploadAll(ctx context.Context, paths []string) ([]*UploadedFileHandle, error) {
	handles := make([]*UploadedFileHandle, len(paths))
	errs := make([]error, len(paths))

	var g errgroup.Group
	g.SetLimit(maxParallelUploads)
	for i, path := range paths {
		g.Go(func() error {
			h, err := c.Upload(ctx, path)
			if err != nil {
				errs[i] = err
				return nil
			}
			handles[i] = h
			return nil
		})
	}
	_ = g.Wait()

	return handles, errors.Join(errs...)
}

// RemoveFile stops tracking a file and deletes its remote copy
func (c *SessionContext) RemoveFile(ctx context.Context, id string) bool {
	h, ok := c.Files.Remove(id)
	if !ok {
		return false
	}
	if err := c.Uploader.Delete(ctx, h); err != nil {
		zap.S().Debugw("file_delete_failed", "id", id, "error", err)
	}
	return true
}

// Clear resets the conversation and drops every uploaded file. Cost already
// spent stays in the cumulative total.
func (c *SessionContext) Clear(ctx context.Context) {
	for _, h := range c.Files.Clear() {
		if err := c.Uploader.Delete(ctx, h); err != nil {
			zap.S().Debugw("file_delete_failed", "id", h.ID, "error", err)
		}
	}
	c.Session.Clear()

	c.mu.Lock()
	c.turn = nil
	c.mu.Unlock()
}
