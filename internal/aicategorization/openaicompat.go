package aicategorization

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"
)

const requestTimeout = 60 * time.Second

// OpenAICompatClient implements Categorizer against any OpenAI-compatible
// chat-completions endpoint (OpenAI itself, a local Ollama `/v1` shim,
// OpenRouter, ...), the concrete instantiation of spec.md §6's opaque
// `categorize(batch, categories) -> suggestions[]` collaborator. Grounded on
// original_source/src/services/ai_client.rs's categorize_with_openai_compatible.
type OpenAICompatClient struct {
	BaseURL string
	APIKey  string
	Model   string

	httpClient *http.Client
}

// NewOpenAICompatClient constructs a client. baseURL is used verbatim
// (trailing slash trimmed); apiKey may be empty for providers that don't
// require one.
func NewOpenAICompatClient(baseURL, apiKey, model string) *OpenAICompatClient {
	return &OpenAICompatClient{
		BaseURL:    strings.TrimRight(baseURL, "/"),
		APIKey:     apiKey,
		Model:      model,
		httpClient: &http.Client{Timeout: requestTimeout},
	}
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model          string        `json:"model"`
	Messages       []chatMessage `json:"messages"`
	Temperature    float64       `json:"temperature"`
	ResponseFormat struct {
		Type string `json:"type"`
	} `json:"response_format"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

type suggestionsPayload struct {
	Suggestions []struct {
		TransactionID int64   `json:"transaction_id"`
		CategoryID    *int64  `json:"category_id"`
		Confidence    float64 `json:"confidence"`
		Reasoning     string  `json:"reasoning"`
	} `json:"suggestions"`
}

// Categorize builds the system/user prompt pair §4.9 describes, posts a
// chat-completion request, and parses the JSON suggestion list out of the
// response — tolerating surrounding prose by extracting the outermost
// {...} span, same as the original client.
func (c *OpenAICompatClient) Categorize(batch []TransactionCandidate, categories []CategoryOption) ([]Suggestion, error) {
	if len(batch) == 0 {
		return nil, nil
	}

	req := chatRequest{
		Model: c.Model,
		Messages: []chatMessage{
			{Role: "system", Content: buildSystemPrompt(categories)},
			{Role: "user", Content: buildUserPrompt(batch)},
		},
		Temperature: 0.3,
	}
	req.ResponseFormat.Type = "json_object"

	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshal categorization request: %w", err)
	}

	httpReq, err := http.NewRequest(http.MethodPost, c.BaseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build categorization request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if c.APIKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.APIKey)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("categorization request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read categorization response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("provider returned %d: %s", resp.StatusCode, string(respBody))
	}

	var chat chatResponse
	if err := json.Unmarshal(respBody, &chat); err != nil {
		return nil, fmt.Errorf("parse provider response envelope: %w", err)
	}
	if len(chat.Choices) == 0 {
		return nil, fmt.Errorf("provider response contained no choices")
	}

	return parseSuggestions(chat.Choices[0].Message.Content, batch)
}

// buildSystemPrompt lists categories as "ID: path" and states the response
// contract, per §4.9's literal wording.
func buildSystemPrompt(categories []CategoryOption) string {
	var b strings.Builder
	b.WriteString("You are a financial transaction categorization assistant. ")
	b.WriteString("Analyze each transaction's description and suggest the most appropriate category.\n\n")
	b.WriteString("Available categories:\n")
	for _, c := range categories {
		b.WriteString("- ID ")
		b.WriteString(strconv.FormatInt(c.ID, 10))
		b.WriteString(": ")
		b.WriteString(c.Path)
		b.WriteString("\n")
	}
	b.WriteString("\nRules:\n")
	b.WriteString("1. If no category fits well, set category_id to null.\n")
	b.WriteString("2. Provide a confidence score between 0.0 and 1.0.\n")
	b.WriteString("3. Keep reasoning brief (1-2 sentences).\n\n")
	b.WriteString(`You MUST respond with valid JSON in this exact format: ` +
		`{"suggestions": [{"transaction_id": <id>, "category_id": <id or null>, "confidence": <0.0-1.0>, "reasoning": "<brief explanation>"}]}`)
	return b.String()
}

// buildUserPrompt lists transactions as `ID: "description" (amount currency)`.
func buildUserPrompt(batch []TransactionCandidate) string {
	var b strings.Builder
	b.WriteString("Categorize these transactions:\n\n")
	for _, t := range batch {
		b.WriteString("- ID ")
		b.WriteString(strconv.FormatInt(t.TransactionID, 10))
		b.WriteString(": \"")
		b.WriteString(t.Description)
		b.WriteString("\" (")
		b.WriteString(strconv.FormatInt(t.AmountCents, 10))
		b.WriteString(" ")
		b.WriteString(t.Currency)
		b.WriteString(")\n")
	}
	b.WriteString("\nRespond with JSON only.")
	return b.String()
}

// parseSuggestions extracts the outermost {...} span (tolerating a model
// that wraps its JSON in prose or a markdown fence), decodes it, drops any
// suggestion for a transaction not in batch, and clamps confidence to
// [0,1] — mirroring the original client's parse_ai_response.
func parseSuggestions(content string, batch []TransactionCandidate) ([]Suggestion, error) {
	start := strings.IndexByte(content, '{')
	end := strings.LastIndexByte(content, '}')
	if start < 0 || end < start {
		return nil, fmt.Errorf("no JSON object found in provider response")
	}

	var payload suggestionsPayload
	if err := json.Unmarshal([]byte(content[start:end+1]), &payload); err != nil {
		return nil, fmt.Errorf("parse provider suggestions: %w", err)
	}

	valid := make(map[int64]bool, len(batch))
	for _, t := range batch {
		valid[t.TransactionID] = true
	}

	out := make([]Suggestion, 0, len(payload.Suggestions))
	for _, s := range payload.Suggestions {
		if !valid[s.TransactionID] {
			continue
		}
		confidence := s.Confidence
		if confidence < 0 {
			confidence = 0
		} else if confidence > 1 {
			confidence = 1
		}
		out = append(out, Suggestion{
			TransactionID: s.TransactionID,
			CategoryID:    s.CategoryID,
			Confidence:    confidence,
			Reasoning:     s.Reasoning,
		})
	}
	return out, nil
}
