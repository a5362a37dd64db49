package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/alexschlessinger/jurisearch/cost"
	"github.com/alexschlessinger/jurisearch/llm"
	"github.com/alexschlessinger/jurisearch/messages"
	"github.com/alexschlessinger/jurisearch/sessions"
)

const (
	// maxToolArgDisplay bounds the argument echoed when a tool starts
	maxToolArgDisplay = 80
	// searchProgressStep is the streamed sub-agent text per progress dot
	searchProgressStep = 200
)

// Printer renders a turn as it streams
type Printer struct {
	w       io.Writer
	errW    io.Writer
	quiet   bool
	started bool

	searchChars int
	dots        bool
}

// NewPrinter creates a printer writing answers to w and progress to errW
func NewPrinter(w, errW io.Writer, quiet bool) *Printer {
	return &Printer{w: w, errW: errW, quiet: quiet}
}

// Callbacks wires the printer into the agent loop
func (p *Printer) Callbacks() *llm.AgentCallbacks {
	return &llm.AgentCallbacks{
		OnContent: p.Content,
		OnToolStart: func(inv messages.ToolInvocation) {
			if p.quiet || inv.IsSearchQuery {
				return
			}
			p.breakLine()
			fmt.Fprintln(p.errW, toolStyle.Styled(formatToolStart(inv)))
		},
		OnToolResult: func(result messages.ToolResult) {
			if p.dots {
				fmt.Fprintln(p.errW)
				p.dots = false
				p.searchChars = 0
			}
			if p.quiet || !result.IsError {
				return
			}
			fmt.Fprintln(p.errW, errorStyle.Styled(fmt.Sprintf("  %s: %s", result.Name, truncate(result.Output, maxToolArgDisplay))))
		},
		OnSearchError: func(callID, message string) {
			if p.quiet {
				return
			}
			fmt.Fprintln(p.errW, errorStyle.Styled("  recherche web: "+message))
		},
	}
}

// Content prints streamed answer text
func (p *Printer) Content(text string) {
	if text == "" {
		return
	}
	p.started = true
	fmt.Fprint(p.w, text)
}

// SubAgentDelta shows progress while a sub-agent answer streams
func (p *Printer) SubAgentDelta(text string) {
	if p.quiet {
		return
	}
	p.searchChars += len(text)
	for p.searchChars >= searchProgressStep {
		fmt.Fprint(p.errW, dimStyle.Styled("·"))
		p.searchChars -= searchProgressStep
		p.dots = true
	}
}

// Finish prints what the stream did not show: a direct answer, citations
// and the cost summary
func (p *Printer) Finish(resp *llm.AgentResponse, ledger *cost.Ledger, cumulative float64) {
	if resp != nil && resp.Message != nil {
		if isDirectAnswer(resp) {
			p.breakLine()
			fmt.Fprint(p.w, resp.Message.Content)
			p.started = true
		}
		p.breakLine()
		if len(resp.Message.Citations) > 0 {
			fmt.Fprintln(p.w)
			fmt.Fprint(p.w, formatCitations(resp.Message.Citations))
		}
	}

	if p.quiet {
		return
	}
	fmt.Fprintln(p.errW)
	cost.WriteSummary(p.errW, ledger)
	fmt.Fprintf(p.errW, "%s %s $\n", dimStyle.Styled("Session:"), cost.FormatDollars(cumulative))
}

func (p *Printer) breakLine() {
	if p.started {
		fmt.Fprintln(p.w)
		p.started = false
	}
}

// isDirectAnswer reports whether the final message came from a direct search
// rather than from the primary stream
func isDirectAnswer(resp *llm.AgentResponse) bool {
	n := len(resp.AllMessages)
	if n < 2 {
		return false
	}
	prev := resp.AllMessages[n-2]
	return prev.Role == messages.MessageRoleUser && strings.HasPrefix(prev.Content, llm.DirectContextPrefix)
}

// formatCitations renders citations one per line as "[n] title: url"
func formatCitations(citations []messages.Citation) string {
	var sb strings.Builder
	for _, c := range citations {
		sb.WriteString(citationStyle.Styled(c.String()))
		sb.WriteString("\n")
	}
	return sb.String()
}

// formatToolStart describes a tool call as it is dispatched
func formatToolStart(inv messages.ToolInvocation) string {
	if inv.Argument.HasValue {
		return fmt.Sprintf("→ %s: %s", inv.Name, truncate(inv.Argument.Value, maxToolArgDisplay))
	}
	return "→ " + inv.Name
}

// formatFiles lists uploaded files for /files
func formatFiles(handles []sessions.UploadedFileHandle) string {
	if len(handles) == 0 {
		return "Aucun fichier.\n"
	}
	var sb strings.Builder
	for _, h := range handles {
		state := "nouveau"
		if h.SentToConversation {
			state = "envoyé"
		}
		fmt.Fprintf(&sb, "%s  %s  %.1f Ko  [%s]\n", shortID(h.ID), h.DisplayName, float64(h.SizeBytes)/1024, state)
	}
	return sb.String()
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func truncate(s string, n int) string {
	s = strings.ReplaceAll(s, "\n", " ")
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n]) + "…"
}
