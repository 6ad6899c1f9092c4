package nlp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// OllamaClassifier asks a local Ollama model to label text
type OllamaClassifier struct {
	baseURL string
	model   string
	client  *http.Client
}

// NewOllamaClassifier creates a classifier against baseURL (default localhost:11434)
func NewOllamaClassifier(baseURL, model string) *OllamaClassifier {
	if baseURL == "" {
		baseURL = "http://localhost:11434"
	}
	if model == "" {
		model = "llama3.2"
	}
	return &OllamaClassifier{
		baseURL: strings.TrimRight(baseURL, "/"),
		model:   model,
		client:  &http.Client{Timeout: 30 * time.Second},
	}
}

type generateRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
	Stream bool   `json:"stream"`
	Format string `json:"format,omitempty"`
}

type generateResponse struct {
	Response string `json:"response"`
	Done     bool   `json:"done"`
}

type labelsPayload struct {
	Labels []Label `json:"labels"`
}

var taskPrompts = map[Task]string{
	TaskSentiment: `Classify the sentiment of the user message as POSITIVE, NEGATIVE or NEUTRAL.`,
	TaskIntent:    `Classify the intent of the user message as statement, question, command or greeting.`,
}

func buildPrompt(text string, task Task) string {
	return fmt.Sprintf(`%s
Reply with JSON only, in the form {"labels":[{"label":"...","score":0.0}]}, scores between 0 and 1, best first.

Message: %q`, taskPrompts[task], text)
}

// Classify implements TextClassifier
func (c *OllamaClassifier) Classify(ctx context.Context, text string, task Task) ([]Label, error) {
	if _, ok := taskPrompts[task]; !ok {
		return nil, fmt.Errorf("unsupported task %q", task)
	}

	body, err := json.Marshal(generateRequest{
		Model:  c.model,
		Prompt: buildPrompt(text, task),
		Stream: false,
		Format: "json",
	})
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/generate", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("ollama request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("ollama error (status %d): %s", resp.StatusCode, string(msg))
	}

	var gen generateResponse
	if err := json.NewDecoder(resp.Body).Decode(&gen); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}

	labels, err := parseLabels(gen.Response)
	if err != nil {
		return nil, err
	}
	return labels, nil
}

// parseLabels accepts {"labels":[...]}, a bare array, or a single {"label","score"} object
func parseLabels(raw string) ([]Label, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, fmt.Errorf("empty model response")
	}

	var wrapped labelsPayload
	if err := json.Unmarshal([]byte(raw), &wrapped); err == nil && len(wrapped.Labels) > 0 {
		return nonEmpty(cleanLabels(wrapped.Labels))
	}

	var list []Label
	if err := json.Unmarshal([]byte(raw), &list); err == nil && len(list) > 0 {
		return nonEmpty(cleanLabels(list))
	}

	var single Label
	if err := json.Unmarshal([]byte(raw), &single); err == nil && single.Label != "" {
		return nonEmpty(cleanLabels([]Label{single}))
	}

	return nil, fmt.Errorf("unparseable model response: %.80s", raw)
}

func nonEmpty(labels []Label) ([]Label, error) {
	if len(labels) == 0 {
		return nil, fmt.Errorf("model returned no labels")
	}
	return labels, nil
}
