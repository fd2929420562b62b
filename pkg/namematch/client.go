package namematch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"
)

// DefaultBaseURL is the OpenRouter OpenAI-compatible API root.
const DefaultBaseURL = "https://openrouter.ai/api/v1"

// ErrDisabled is returned when no API key is configured.
var ErrDisabled = errors.New("namematch: model matching disabled")

// Config controls the chat completion call.
type Config struct {
	// BaseURL is the API root; "/chat/completions" is appended by the client.
	BaseURL     string
	APIKey      string
	Model       string
	Timeout     time.Duration
	Temperature float32
	MaxTokens   int
}

// Result is the model's pick for a misspelled name.
type Result struct {
	MatchedName string  `json:"matched_name"`
	Confidence  float64 `json:"confidence"`
	Reasoning   string  `json:"reasoning"`
}

// Client calls an OpenAI-compatible chat completion endpoint.
type Client struct {
	cfg    Config
	api    *openai.Client
	logger *zap.Logger
}

// NewClient builds a client with sane defaults for missing settings.
func NewClient(cfg Config, logger *zap.Logger) *Client {
	cfg.BaseURL = strings.TrimSuffix(strings.TrimRight(cfg.BaseURL, "/"), "/chat/completions")
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Model == "" {
		cfg.Model = "anthropic/claude-3.5-sonnet"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.Temperature <= 0 {
		cfg.Temperature = 0.1
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = 200
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	apiCfg := openai.DefaultConfig(cfg.APIKey)
	apiCfg.BaseURL = cfg.BaseURL
	apiCfg.HTTPClient = &http.Client{Timeout: cfg.Timeout}
	return &Client{cfg: cfg, api: openai.NewClientWithConfig(apiCfg), logger: logger}
}

// Enabled reports whether an API key is configured.
func (c *Client) Enabled() bool {
	return c != nil && c.cfg.APIKey != ""
}

type rawResult struct {
	MatchedName *string `json:"matched_name"`
	Confidence  float64 `json:"confidence"`
	Reasoning   string  `json:"reasoning"`
}

// MatchName asks the model which candidate the misspelled name refers to.
// A model answer of "no match" yields a Result with an empty MatchedName.
func (c *Client) MatchName(ctx context.Context, name string, candidates []string) (*Result, error) {
	if !c.Enabled() {
		return nil, ErrDisabled
	}

	start := time.Now()
	resp, err := c.api.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: c.cfg.Model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: buildPrompt(name, candidates)},
		},
		Temperature: c.cfg.Temperature,
		MaxTokens:   c.cfg.MaxTokens,
	})
	if err != nil {
		return nil, fmt.Errorf("chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, errors.New("chat completion returned no choices")
	}

	result, err := ParseAnswer(resp.Choices[0].Message.Content)
	if err != nil {
		return nil, err
	}
	c.logger.Debug("model name match",
		zap.String("name", name),
		zap.String("matched", result.MatchedName),
		zap.Float64("confidence", result.Confidence),
		zap.Duration("took", time.Since(start)),
	)
	return result, nil
}

// ParseAnswer decodes the JSON object in a model reply, tolerating markdown fences.
func ParseAnswer(content string) (*Result, error) {
	content = stripFences(content)
	var raw rawResult
	if err := json.Unmarshal([]byte(content), &raw); err != nil {
		return nil, fmt.Errorf("decode model answer: %w", err)
	}
	result := &Result{Confidence: raw.Confidence, Reasoning: raw.Reasoning}
	if raw.MatchedName != nil {
		result.MatchedName = strings.TrimSpace(*raw.MatchedName)
	}
	return result, nil
}

func stripFences(content string) string {
	content = strings.TrimSpace(content)
	if idx := strings.Index(content, "```json"); idx >= 0 {
		content = content[idx+len("```json"):]
	} else if idx := strings.Index(content, "```"); idx >= 0 {
		content = content[idx+3:]
	} else {
		return content
	}
	if end := strings.Index(content, "```"); end >= 0 {
		content = content[:end]
	}
	return strings.TrimSpace(content)
}

func buildPrompt(name string, candidates []string) string {
	var b strings.Builder
	b.WriteString("You are a Thai name matching expert. Given a potentially misspelled Thai teacher name and a list of valid teacher names, find the best match.\n\n")
	fmt.Fprintf(&b, "Misspelled name: %q\n\nValid teacher names:\n", name)
	for _, candidate := range candidates {
		b.WriteString("- ")
		b.WriteString(candidate)
		b.WriteString("\n")
	}
	b.WriteString("\nRespond with JSON only:\n")
	b.WriteString(`{"matched_name": "<one of the valid names>", "confidence": 0.95, "reasoning": "<short explanation>"}`)
	b.WriteString("\n\nIf no reasonable match exists, set matched_name to null and confidence to 0.")
	return b.String()
}
