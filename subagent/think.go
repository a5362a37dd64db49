package subagent

import "strings"

const (
	thinkOpen  = "<think>"
	thinkClose = "</think>"
)

// ThinkFilter removes <think>...</think> blocks that reasoning sonar models
// stream ahead of their answer. Tags split across chunks are held back
// until they can be decided.
type ThinkFilter struct {
	inThink bool
	pending string
}

// Process filters one streamed chunk and returns the visible text
func (f *ThinkFilter) Process(chunk string) string {
	var out strings.Builder
	s := f.pending + chunk
	f.pending = ""

	for s != "" {
		tag := thinkOpen
		if f.inThink {
			tag = thinkClose
		}

		if i := strings.Index(s, tag); i >= 0 {
			if !f.inThink {
				out.WriteString(s[:i])
			}
			f.inThink = !f.inThink
			s = s[i+len(tag):]
			continue
		}

		// keep a possible partial tag at the end for the next chunk
		keep := partialSuffix(s, tag)
		if !f.inThink {
			out.WriteString(s[:len(s)-keep])
		}
		f.pending = s[len(s)-keep:]
		break
	}

	return out.String()
}

// Flush returns text held back at the end of the stream
func (f *ThinkFilter) Flush() string {
	rest := f.pending
	f.pending = ""
	if f.inThink {
		return ""
	}
	return rest
}

// Thinking reports whether the filter is inside a think block
func (f *ThinkFilter) Thinking() bool {
	return f.inThink
}

// StripThink removes complete think blocks from a whole answer
func StripThink(text string) string {
	var f ThinkFilter
	return strings.TrimSpace(f.Process(text) + f.Flush())
}

// partialSuffix is the length of the longest suffix of s that prefixes tag
func partialSuffix(s, tag string) int {
	max := len(tag) - 1
	if len(s) < max {
		max = len(s)
	}
	for n := max; n > 0; n-- {
		if strings.HasSuffix(s, tag[:n]) {
			return n
		}
	}
	return 0
}
