package llm

import (
	"context"
	"time"

	"github.com/alexschlessinger/jurisearch/messages"
	"github.com/alexschlessinger/jurisearch/tools"
)

// LLM interface defines the contract for language model implementations.
// The returned channel carries text, tool invocations and search errors in
// stream order, then exactly one OutputComplete or OutputError, then closes.
type LLM interface {
	ChatCompletionStream(context.Context, *CompletionRequest) <-chan messages.Output
}

// CompletionRequest contains all parameters for a completion request
type CompletionRequest struct {
	APIKey      string
	BaseURL     string
	Timeout     time.Duration
	Temperature float32
	Model       string
	MaxTokens   int
	Messages    []messages.ChatMessage // Message history
	Tools       []tools.Tool           // Available tools

	// ArgumentField names the argument extracted from a tool's streamed input
	ArgumentField func(toolName string) string
}

// fieldFor returns the request's argument field resolver
func (r *CompletionRequest) fieldFor() func(string) string {
	if r == nil {
		return nil
	}
	return r.ArgumentField
}

// closedWithError returns a channel holding a single fatal error
func closedWithError(err error) <-chan messages.Output {
	ch := make(chan messages.Output, 1)
	ch <- messages.Output{Kind: messages.OutputError, Err: err}
	close(ch)
	return ch
}
