package sessions

import (
	"time"

	"dario.cat/mergo"
)

// DefaultMaxHistory bounds the messages kept after the system prompt
const DefaultMaxHistory = 100

// Metadata describes a named conversation context
type Metadata struct {
	Name         string    `json:"name"`
	Model        string    `json:"model,omitempty"`
	SystemPrompt string    `json:"system_prompt,omitempty"`
	Temperature  float64   `json:"temperature,omitempty"`
	MaxTokens    int       `json:"max_tokens,omitempty"`
	MaxHistory   int       `json:"max_history,omitempty"`
	TotalCost    float64   `json:"total_cost,omitempty"`
	Turns        int       `json:"turns,omitempty"`
	Created      time.Time `json:"created"`
	LastUsed     time.Time `json:"last_used"`
}

// MergeMetadata merges non-zero fields from 'in' into a copy of 'existing'.
// Zero values in 'in' do not overwrite existing values.
func MergeMetadata(existing *Metadata, in *Metadata) *Metadata {
	if existing == nil {
		existing = &Metadata{}
	}
	out := *existing
	if in == nil {
		return &out
	}

	if err := mergo.Merge(&out, *in, mergo.WithOverride); err != nil {
		return existing
	}
	if out.LastUsed.IsZero() {
		out.LastUsed = time.Now()
	}
	return &out
}

// newMetadata initializes metadata for a new context from store defaults
func newMetadata(name string, defaults *Metadata) *Metadata {
	now := time.Now()
	md := MergeMetadata(&Metadata{MaxHistory: DefaultMaxHistory}, defaults)
	md.Name = name
	md.Created = now
	md.LastUsed = now
	md.TotalCost = 0
	md.Turns = 0
	return md
}
