package tools

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/jsonschema-go/jsonschema"
	"go.uber.org/zap"
	"golang.org/x/oauth2/clientcredentials"
)

// Légifrance PISTE endpoints
const (
	LegifranceBaseURL  = "https://sandbox-api.piste.gouv.fr/dila/legifrance/lf-engine-app"
	LegifranceTokenURL = "https://sandbox-oauth.piste.gouv.fr/api/oauth/token"
)

// Légifrance tool names
const (
	ConsultJuriTool = "consult_multiple_juri_text"
	CodeSearchTool  = "multiple_code_search_api"
)

const (
	legifranceAttempts   = 3
	legifranceRetryDelay = time.Second
)

// LegifranceClient posts JSON to the Légifrance API with retries
type LegifranceClient struct {
	BaseURL    string
	HTTPClient *http.Client
	Attempts   int
	RetryDelay time.Duration
}

// NewLegifranceClient creates a client authenticated with OAuth2 client credentials
func NewLegifranceClient(ctx context.Context, clientID, clientSecret string) *LegifranceClient {
	cfg := &clientcredentials.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		TokenURL:     LegifranceTokenURL,
		Scopes:       []string{"openid"},
	}
	return &LegifranceClient{
		BaseURL:    LegifranceBaseURL,
		HTTPClient: cfg.Client(ctx),
		Attempts:   legifranceAttempts,
		RetryDelay: legifranceRetryDelay,
	}
}

// Post sends payload to path and decodes the JSON response into out
func (c *LegifranceClient) Post(ctx context.Context, path string, payload any, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to encode payload: %w", err)
	}
	endpoint := strings.TrimRight(c.BaseURL, "/") + path

	attempts := c.Attempts
	if attempts < 1 {
		attempts = 1
	}
	policy := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewConstantBackOff(c.RetryDelay), uint64(attempts-1)),
		ctx,
	)

	attempt := 0
	op := func() error {
		attempt++
		err := c.post(ctx, endpoint, body, out)
		if err != nil {
			zap.S().Debugw("legifrance_request_failed", "endpoint", path, "attempt", attempt, "error", err)
		}
		return err
	}
	return backoff.Retry(op, policy)
}

func (c *LegifranceClient) post(ctx context.Context, endpoint string, body []byte, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return backoff.Permanent(fmt.Errorf("failed to create request: %w", err))
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	client := c.HTTPClient
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &HTTPError{Endpoint: endpoint, StatusCode: resp.StatusCode, Body: string(data)}
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

type juriArgs struct {
	IDList []string `json:"id_list" jsonschema:"description=Liste des identifiants de décisions commençant par JURITEXT"`
}

// JuriTextTool fetches the text of court decisions by JURITEXT id
type JuriTextTool struct {
	client *LegifranceClient
}

// NewJuriTextTool creates the decision text tool
func NewJuriTextTool(client *LegifranceClient) *JuriTextTool {
	return &JuriTextTool{client: client}
}

// GetType returns "http" for remote API tools
func (t *JuriTextTool) GetType() string {
	return string(KindHTTP)
}

func (t *JuriTextTool) GetSchema() *jsonschema.Schema {
	return ReflectSchema[juriArgs](ConsultJuriTool,
		"Récupère le texte de plusieurs décisions de justice à partir de leurs identifiants JURITEXT")
}

// Execute returns the non-empty decision texts as a JSON array
func (t *JuriTextTool) Execute(ctx context.Context, args map[string]any) (string, error) {
	parsed, err := decodeArgs[juriArgs](args)
	if err != nil {
		return "", err
	}

	texts := make([]string, 0, len(parsed.IDList))
	for _, id := range parsed.IDList {
		var resp struct {
			Text string `json:"text"`
		}
		if err := t.client.Post(ctx, "/consult/juri", map[string]string{"textId": id}, &resp); err != nil {
			zap.S().Debugw("juri_text_unavailable", "id", id, "error", err)
			continue
		}
		if resp.Text != "" {
			texts = append(texts, resp.Text)
		}
	}

	out, err := json.Marshal(texts)
	if err != nil {
		return "", fmt.Errorf("failed to encode texts: %w", err)
	}
	return string(out), nil
}

type codeArticle struct {
	Numero  string `json:"numero" jsonschema:"description=Numéro de l'article (ex. L121-2)"`
	NomCode string `json:"nom_code" jsonschema:"description=Nom du code (ex. Code de commerce)"`
}

type codeArgs struct {
	ListeArticles []codeArticle `json:"liste_articles" jsonschema:"description=Articles à rechercher"`
}

// CodeArticleTool searches code articles by number within a named code
type CodeArticleTool struct {
	client *LegifranceClient
}

// NewCodeArticleTool creates the code article search tool
func NewCodeArticleTool(client *LegifranceClient) *CodeArticleTool {
	return &CodeArticleTool{client: client}
}

// GetType returns "http" for remote API tools
func (t *CodeArticleTool) GetType() string {
	return string(KindHTTP)
}

func (t *CodeArticleTool) GetSchema() *jsonschema.Schema {
	return ReflectSchema[codeArgs](CodeSearchTool,
		"Recherche plusieurs articles de codes sur Légifrance à partir de leur numéro et du nom du code")
}

// Execute returns a JSON object keyed "<nom_code>-<numero>". Failed lookups
// map to null; if every lookup fails the tool fails.
func (t *CodeArticleTool) Execute(ctx context.Context, args map[string]any) (string, error) {
	parsed, err := decodeArgs[codeArgs](args)
	if err != nil {
		return "", err
	}

	results := make(map[string]json.RawMessage, len(parsed.ListeArticles))
	var lastErr error
	succeeded := 0
	for _, article := range parsed.ListeArticles {
		key := fmt.Sprintf("%s-%s", article.NomCode, article.Numero)

		var data json.RawMessage
		if err := t.client.Post(ctx, "/search", codeSearchPayload(article.Numero, article.NomCode), &data); err != nil {
			lastErr = err
			results[key] = json.RawMessage("null")
			continue
		}
		succeeded++
		results[key] = data
	}

	if succeeded == 0 && lastErr != nil {
		return "", fmt.Errorf("all Légifrance searches failed: %w", lastErr)
	}

	out, err := json.Marshal(results)
	if err != nil {
		return "", fmt.Errorf("failed to encode results: %w", err)
	}
	return string(out), nil
}

func codeSearchPayload(numero, nomCode string) map[string]any {
	return map[string]any{
		"recherche": map[string]any{
			"champs": []any{
				map[string]any{
					"typeChamp": "NUM_ARTICLE",
					"criteres": []any{
						map[string]any{
							"typeRecherche": "TOUS_LES_MOTS_DANS_UN_CHAMP",
							"valeur":        numero,
							"operateur":     "ET",
							"proximite":     5,
						},
					},
					"operateur": "ET",
				},
			},
			"filtres": []any{
				map[string]any{
					"facette": "NOM_CODE",
					"valeurs": []string{nomCode},
				},
			},
			"pageNumber":     1,
			"pageSize":       2,
			"operateur":      "ET",
			"sort":           "PERTINENCE",
			"typePagination": "ARTICLE",
		},
		"fond": "CODE_DATE",
	}
}

// decodeArgs converts validated tool arguments into an argument struct
func decodeArgs[T any](args map[string]any) (T, error) {
	var out T
	data, err := json.Marshal(args)
	if err != nil {
		return out, &ValidationError{Reason: "arguments are not JSON encodable", Err: err}
	}
	if err := json.Unmarshal(data, &out); err != nil {
		return out, &ValidationError{Reason: err.Error(), Err: ErrInvalidArguments}
	}
	return out, nil
}
