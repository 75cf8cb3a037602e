// Package gemini implements an eino chat model backed by the Gemini
// generateContent REST endpoint.
package gemini

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"github.com/go-resty/resty/v2"
	"github.com/tidwall/gjson"
)

const (
	DefaultBaseURL = "https://generativelanguage.googleapis.com/v1beta"
	DefaultModel   = "gemini-2.0-flash"

	answerPath      = "candidates.0.content.parts.0.text"
	maxErrorSnippet = 256
)

var (
	// ErrMalformedResponse marks a 2xx reply whose body lacks the answer text.
	ErrMalformedResponse = errors.New("malformed gemini response")
	// ErrMissingAPIKey is returned by NewChatModel without a credential.
	ErrMissingAPIKey = errors.New("gemini api key is required")
)

// StatusError reports a non-2xx reply.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("gemini returned status %d: %s", e.StatusCode, e.Body)
}

// Config configures the chat model.
type Config struct {
	APIKey  string
	Model   string
	BaseURL string

	Temperature     *float32
	TopP            *float32
	MaxOutputTokens *int

	// HTTPClient overrides the transport, mainly for tests. Timeouts are
	// expected to come from the request context.
	HTTPClient *http.Client
}

// ChatModel calls generateContent once per Generate.
type ChatModel struct {
	client *resty.Client
	apiKey string
	model  string

	temperature     *float32
	topP            *float32
	maxOutputTokens *int
}

var _ model.BaseChatModel = (*ChatModel)(nil)

// NewChatModel validates cfg and builds the HTTP client.
func NewChatModel(_ context.Context, cfg *Config) (*ChatModel, error) {
	if cfg == nil || strings.TrimSpace(cfg.APIKey) == "" {
		return nil, ErrMissingAPIKey
	}

	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	modelName := strings.TrimSpace(cfg.Model)
	if modelName == "" {
		modelName = DefaultModel
	}

	var client *resty.Client
	if cfg.HTTPClient != nil {
		client = resty.NewWithClient(cfg.HTTPClient)
	} else {
		client = resty.New()
	}
	client.SetBaseURL(baseURL).
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "application/json")

	return &ChatModel{
		client:          client,
		apiKey:          strings.TrimSpace(cfg.APIKey),
		model:           modelName,
		temperature:     cfg.Temperature,
		topP:            cfg.TopP,
		maxOutputTokens: cfg.MaxOutputTokens,
	}, nil
}

type part struct {
	Text string `json:"text"`
}

type content struct {
	Role  string `json:"role,omitempty"`
	Parts []part `json:"parts"`
}

type generationConfig struct {
	Temperature     *float32 `json:"temperature,omitempty"`
	TopP            *float32 `json:"topP,omitempty"`
	MaxOutputTokens *int     `json:"maxOutputTokens,omitempty"`
	StopSequences   []string `json:"stopSequences,omitempty"`
}

type generateRequest struct {
	Contents          []content         `json:"contents"`
	SystemInstruction *content          `json:"systemInstruction,omitempty"`
	GenerationConfig  *generationConfig `json:"generationConfig,omitempty"`
}

// Generate sends the conversation and returns the first candidate's text.
func (m *ChatModel) Generate(ctx context.Context, input []*schema.Message, opts ...model.Option) (*schema.Message, error) {
	options := model.GetCommonOptions(&model.Options{
		Temperature: m.temperature,
		TopP:        m.topP,
		MaxTokens:   m.maxOutputTokens,
		Model:       &m.model,
	}, opts...)

	modelName := m.model
	if options.Model != nil && *options.Model != "" {
		modelName = *options.Model
	}

	body := buildRequest(input, options)
	if len(body.Contents) == 0 {
		return nil, errors.New("gemini request has no user content")
	}

	resp, err := m.client.R().
		SetContext(ctx).
		SetQueryParam("key", m.apiKey).
		SetBody(body).
		Post("/models/" + modelName + ":generateContent")
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, fmt.Errorf("gemini request aborted: %w", ctxErr)
		}
		return nil, fmt.Errorf("gemini request failed: %w", err)
	}

	if resp.StatusCode() < http.StatusOK || resp.StatusCode() >= http.StatusMultipleChoices {
		return nil, &StatusError{StatusCode: resp.StatusCode(), Body: snippet(resp.Body())}
	}

	text, err := ExtractAnswer(resp.Body())
	if err != nil {
		return nil, err
	}

	msg := schema.AssistantMessage(text, nil)
	msg.ResponseMeta = &schema.ResponseMeta{
		FinishReason: gjson.GetBytes(resp.Body(), "candidates.0.finishReason").String(),
	}
	if usage := gjson.GetBytes(resp.Body(), "usageMetadata"); usage.Exists() {
		msg.ResponseMeta.Usage = &schema.TokenUsage{
			PromptTokens:     int(usage.Get("promptTokenCount").Int()),
			CompletionTokens: int(usage.Get("candidatesTokenCount").Int()),
			TotalTokens:      int(usage.Get("totalTokenCount").Int()),
		}
	}
	return msg, nil
}

// Stream generates the whole answer and yields it as a single chunk.
func (m *ChatModel) Stream(ctx context.Context, input []*schema.Message, opts ...model.Option) (*schema.StreamReader[*schema.Message], error) {
	msg, err := m.Generate(ctx, input, opts...)
	if err != nil {
		return nil, err
	}
	return schema.StreamReaderFromArray([]*schema.Message{msg}), nil
}

// ExtractAnswer reads candidates[0].content.parts[0].text from a
// generateContent body. Anything else is ErrMalformedResponse.
func ExtractAnswer(body []byte) (string, error) {
	if !gjson.ValidBytes(body) {
		return "", fmt.Errorf("%w: invalid json", ErrMalformedResponse)
	}
	result := gjson.GetBytes(body, answerPath)
	if !result.Exists() {
		return "", fmt.Errorf("%w: %s missing", ErrMalformedResponse, answerPath)
	}
	if result.Type != gjson.String {
		return "", fmt.Errorf("%w: %s is %s", ErrMalformedResponse, answerPath, result.Type)
	}
	if strings.TrimSpace(result.Str) == "" {
		return "", fmt.Errorf("%w: empty answer", ErrMalformedResponse)
	}
	return result.Str, nil
}

func buildRequest(input []*schema.Message, options *model.Options) generateRequest {
	var req generateRequest
	var system []part

	for _, msg := range input {
		if msg == nil {
			continue
		}
		switch msg.Role {
		case schema.System:
			system = append(system, part{Text: msg.Content})
		case schema.Assistant:
			req.Contents = append(req.Contents, content{Role: "model", Parts: []part{{Text: msg.Content}}})
		default:
			req.Contents = append(req.Contents, content{Role: "user", Parts: []part{{Text: msg.Content}}})
		}
	}

	if len(system) > 0 {
		req.SystemInstruction = &content{Parts: system}
	}

	if options.Temperature != nil || options.TopP != nil || options.MaxTokens != nil || len(options.Stop) > 0 {
		req.GenerationConfig = &generationConfig{
			Temperature:     options.Temperature,
			TopP:            options.TopP,
			MaxOutputTokens: options.MaxTokens,
			StopSequences:   options.Stop,
		}
	}
	return req
}

func snippet(body []byte) string {
	if msg := gjson.GetBytes(body, "error.message"); msg.Exists() {
		return msg.String()
	}
	s := strings.TrimSpace(string(body))
	if len(s) > maxErrorSnippet {
		s = s[:maxErrorSnippet] + "..."
	}
	return s
}
