// Package toolargs rebuilds tool arguments from streamed JSON fragments and
// detects in-band error payloads hidden in them.
package toolargs

import (
	"bytes"
	"encoding/json"
	"strings"

	"github.com/alexschlessinger/jurisearch/messages"
	"go.uber.org/zap"
)

// Reconstruct joins the fragments of one tool block and extracts field from
// them. It never fails: unusable input yields an Argument with HasValue false.
func Reconstruct(fragments []string, field string) (arg messages.Argument) {
	raw := strings.Join(fragments, "")
	arg.Raw = raw

	defer func() {
		if r := recover(); r != nil {
			zap.S().Warnw("argument_reconstruction_panic", "recovered", r, "raw_length", len(raw))
			arg = messages.Argument{Raw: raw}
		}
	}()

	if obj, ok := parseObject(raw); ok {
		arg.Object = obj
		if field != "" {
			arg.Value, arg.HasValue = fieldValue(obj, field)
		}
		return arg
	}

	if field != "" {
		arg.Value, arg.HasValue = salvageField(raw, field)
	}
	if !arg.HasValue {
		zap.S().Debugw("argument_not_reconstructed", "field", field, "raw_length", len(raw))
	}
	return arg
}

// ExtractField returns the value of field from a possibly incomplete JSON
// object. Complete objects are parsed strictly; anything else is salvaged
// from the raw text.
func ExtractField(text, field string) (string, bool) {
	if obj, ok := parseObject(text); ok {
		return fieldValue(obj, field)
	}
	return salvageField(text, field)
}

// parseObject succeeds only for text that is a complete JSON object
func parseObject(text string) (map[string]any, bool) {
	trimmed := strings.TrimSpace(text)
	if !strings.HasPrefix(trimmed, "{") || !strings.HasSuffix(trimmed, "}") {
		return nil, false
	}
	var obj map[string]any
	if err := json.Unmarshal([]byte(trimmed), &obj); err != nil || obj == nil {
		return nil, false
	}
	return obj, true
}

// fieldValue renders a parsed field: strings verbatim, anything else as JSON
func fieldValue(obj map[string]any, field string) (string, bool) {
	v, ok := obj[field]
	if !ok {
		return "", false
	}
	if s, ok := v.(string); ok {
		return s, true
	}
	encoded, err := json.Marshal(v)
	if err != nil {
		return "", false
	}
	return string(encoded), true
}

// salvageField scans raw text for "field": and reads the value that follows.
// Quoted values are decoded up to the closing quote (or end of input).
// Object values end at their matching brace; an unclosed object is returned
// verbatim from the opening brace.
func salvageField(text, field string) (string, bool) {
	key := `"` + field + `"`
	idx := strings.Index(text, key)
	if idx == -1 {
		return "", false
	}

	pos := skipSpace(text, idx+len(key))
	if pos >= len(text) || text[pos] != ':' {
		return "", false
	}
	pos = skipSpace(text, pos+1)
	if pos >= len(text) {
		return "", false
	}

	switch text[pos] {
	case '"':
		return readString(text[pos+1:]), true
	case '{':
		return readObject(text[pos:]), true
	default:
		return "", false
	}
}

// readObject cuts body after the brace that closes its first object and
// compacts it when it is valid JSON
func readObject(body string) string {
	depth, inString := 0, false
	for i := 0; i < len(body); i++ {
		c := body[i]
		if inString {
			switch c {
			case '\\':
				i++
			case '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				var buf bytes.Buffer
				if err := json.Compact(&buf, []byte(body[:i+1])); err == nil {
					return buf.String()
				}
				return body[:i+1]
			}
		}
	}
	return body
}

func skipSpace(text string, pos int) int {
	for pos < len(text) {
		switch text[pos] {
		case ' ', '\t', '\n', '\r':
			pos++
		default:
			return pos
		}
	}
	return pos
}

// readString decodes a JSON string body that starts after the opening quote.
// An unterminated body yields whatever was received so far.
func readString(body string) string {
	end := -1
	for i := 0; i < len(body); i++ {
		if body[i] == '\\' {
			i++
			continue
		}
		if body[i] == '"' {
			end = i
			break
		}
	}
	if end != -1 {
		body = body[:end]
	}
	return decodeString(body)
}

// decodeString resolves JSON escapes, dropping a trailing escape that was
// cut mid-sequence
func decodeString(body string) string {
	if s, ok := unquote(body); ok {
		return s
	}
	// a fragment boundary can split "\" from its escape, or a \uXXXX sequence
	if i := strings.LastIndex(body, `\`); i != -1 && len(body)-i <= 6 {
		if s, ok := unquote(body[:i]); ok {
			return s
		}
	}
	return body
}

func unquote(body string) (string, bool) {
	var s string
	if err := json.Unmarshal([]byte(`"`+body+`"`), &s); err != nil {
		return "", false
	}
	return s, true
}
