package toolargs

import (
	"encoding/json"
	"fmt"
	"strings"

	"go.uber.org/zap"
)

// searchErrorType is the content type of a failed provider web search
const searchErrorType = "web_search_tool_result_error"

// Known search error codes, in scan order
var searchErrorCodes = []string{
	"too_many_requests",
	"invalid_input",
	"max_uses_exceeded",
	"query_too_long",
	"unavailable",
}

var searchErrorMessages = map[string]string{
	"too_many_requests": "Limite de requêtes dépassée. Veuillez réessayer plus tard.",
	"invalid_input":     "Requête de recherche invalide. Veuillez vérifier vos paramètres.",
	"max_uses_exceeded": "Nombre maximum de recherches web dépassé.",
	"query_too_long":    "La requête dépasse la longueur maximale autorisée.",
	"unavailable":       "Une erreur interne s'est produite. Veuillez réessayer ultérieurement.",
}

// SearchErrorMessage maps a provider search error code to a user-facing message
func SearchErrorMessage(code string) string {
	if msg, ok := searchErrorMessages[code]; ok {
		return msg
	}
	return fmt.Sprintf("Erreur inconnue: %s", code)
}

// ClassifyErrorPayload decides whether the joined text of a search block is
// an in-band error rather than a query. Ambiguous payloads are reported as
// non-errors.
func ClassifyErrorPayload(text string) (isError bool, message string) {
	defer func() {
		if r := recover(); r != nil {
			zap.S().Warnw("error_classifier_panic", "recovered", r)
			isError, message = false, ""
		}
	}()

	if !strings.Contains(text, "error_code") {
		return false, ""
	}

	var payload map[string]any
	if err := json.Unmarshal([]byte(strings.TrimSpace(text)), &payload); err == nil {
		code, ok := errorCode(payload)
		if !ok {
			return false, ""
		}
		return true, SearchErrorMessage(code)
	}

	for _, code := range searchErrorCodes {
		if strings.Contains(text, code) {
			return true, SearchErrorMessage(code)
		}
	}
	return false, ""
}

// errorCode finds the error code in either {"content":{"type":...}} or a
// bare {"type":...} error object
func errorCode(payload map[string]any) (string, bool) {
	if content, ok := payload["content"].(map[string]any); ok && isSearchError(content) {
		return stringField(content, "error_code"), true
	}
	if isSearchError(payload) {
		return stringField(payload, "error_code"), true
	}
	return "", false
}

func isSearchError(obj map[string]any) bool {
	t, _ := obj["type"].(string)
	return t == searchErrorType
}

func stringField(obj map[string]any, key string) string {
	s, _ := obj[key].(string)
	return s
}
