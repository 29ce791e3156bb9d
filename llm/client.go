// Package llm runs stored message batches through an OpenAI-compatible chat
// completion endpoint.
package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"discord-harvester/models"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Analyzer is the analysis capability used by the analysis service.
type Analyzer interface {
	Analyze(ctx context.Context, model, promptKey string, messages []string) (*models.AnalysisOutput, error)
}

// Client implements Analyzer on openai-go.
type Client struct {
	openai  openai.Client
	catalog *Catalog
	log     zerolog.Logger
}

// New builds a client from configuration. Requests are not retried.
func New(cfg models.LLMConfig) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("API key is required")
	}

	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithMaxRetries(0),
	}
	if cfg.BaseURL != "" {
		// Accept either the API root or the full completions URL.
		base := strings.TrimSuffix(strings.TrimRight(cfg.BaseURL, "/"), "/chat/completions")
		opts = append(opts, option.WithBaseURL(base+"/"))
	}
	if cfg.Timeout > 0 {
		opts = append(opts, option.WithRequestTimeout(cfg.Timeout))
	}

	return &Client{
		openai:  openai.NewClient(opts...),
		catalog: NewCatalog(cfg),
		log:     log.With().Str("component", "llm").Logger(),
	}, nil
}

// Catalog exposes the configured models and prompts.
func (c *Client) Catalog() *Catalog {
	return c.catalog
}

// Analyze renders promptKey over messages and sends it to model. Every
// failure is returned as *models.AnalysisError.
func (c *Client) Analyze(ctx context.Context, model, promptKey string, messages []string) (*models.AnalysisOutput, error) {
	fail := func(err error) (*models.AnalysisOutput, error) {
		return nil, &models.AnalysisError{Model: model, Prompt: promptKey, Err: err}
	}

	m, err := c.catalog.Model(model)
	if err != nil {
		return fail(err)
	}
	p, err := c.catalog.Prompt(promptKey)
	if err != nil {
		return fail(err)
	}
	params, err := buildParams(m, p, messages)
	if err != nil {
		return fail(err)
	}

	start := time.Now()
	resp, err := c.openai.Chat.Completions.New(ctx, params)
	if err != nil {
		var apiErr *openai.Error
		if errors.As(err, &apiErr) {
			return fail(fmt.Errorf("endpoint returned %d: %w", apiErr.StatusCode, err))
		}
		return fail(fmt.Errorf("openai chat: %w", err))
	}
	if len(resp.Choices) == 0 {
		return fail(fmt.Errorf("no choices in response"))
	}

	c.log.Debug().
		Str("model", m.Name).
		Str("prompt", promptKey).
		Int64("duration_ms", time.Since(start).Milliseconds()).
		Int64("prompt_tokens", resp.Usage.PromptTokens).
		Int64("completion_tokens", resp.Usage.CompletionTokens).
		Msg("llm analysis completed")

	out := &models.AnalysisOutput{
		Model:            resp.Model,
		Content:          resp.Choices[0].Message.Content,
		PromptTokens:     resp.Usage.PromptTokens,
		CompletionTokens: resp.Usage.CompletionTokens,
	}
	if out.Model == "" {
		out.Model = m.Name
	}
	if wantsJSON(p.ResponseFormat) {
		var parsed any
		if err := json.Unmarshal([]byte(out.Content), &parsed); err == nil {
			out.Parsed = parsed
		} else {
			c.log.Warn().Err(err).Str("prompt", promptKey).Msg("response is not valid JSON, keeping raw content")
		}
	}
	return out, nil
}

func buildParams(m models.LLMModel, p models.PromptConfig, content []string) (openai.ChatCompletionNewParams, error) {
	s := resolveSettings(m, p)

	rendered := renderMessages(p, content)
	msgs := make([]openai.ChatCompletionMessageParamUnion, 0, len(rendered))
	for _, msg := range rendered {
		switch msg.Role {
		case "system":
			msgs = append(msgs, openai.SystemMessage(msg.Content))
		case "user":
			msgs = append(msgs, openai.UserMessage(msg.Content))
		case "assistant":
			msgs = append(msgs, openai.AssistantMessage(msg.Content))
		default:
			return openai.ChatCompletionNewParams{}, fmt.Errorf("unsupported prompt role %q", msg.Role)
		}
	}
	if len(msgs) == 0 {
		return openai.ChatCompletionNewParams{}, fmt.Errorf("prompt has no messages")
	}

	params := openai.ChatCompletionNewParams{
		Model:       m.Name,
		Messages:    msgs,
		MaxTokens:   openai.Int(s.MaxTokens),
		Temperature: openai.Float(s.Temperature),
		TopP:        openai.Float(s.TopP),
	}
	format, err := responseFormat(p.ResponseFormat)
	if err != nil {
		return openai.ChatCompletionNewParams{}, err
	}
	if format != nil {
		params.ResponseFormat = *format
	}
	return params, nil
}

func wantsJSON(format map[string]any) bool {
	t, _ := format["type"].(string)
	return t == "json_object" || t == "json_schema"
}

// responseFormat maps the prompt's response_format block onto the SDK union.
func responseFormat(format map[string]any) (*openai.ChatCompletionNewParamsResponseFormatUnion, error) {
	if len(format) == 0 {
		return nil, nil
	}
	t, _ := format["type"].(string)
	switch t {
	case "", "text":
		return nil, nil
	case "json_object":
		return &openai.ChatCompletionNewParamsResponseFormatUnion{
			OfJSONObject: &openai.ResponseFormatJSONObjectParam{},
		}, nil
	case "json_schema":
		spec, _ := format["json_schema"].(map[string]any)
		name, _ := spec["name"].(string)
		if name == "" {
			return nil, fmt.Errorf("response_format json_schema needs a name")
		}
		schema := openai.ResponseFormatJSONSchemaJSONSchemaParam{
			Name:   name,
			Schema: spec["schema"],
		}
		if strict, ok := spec["strict"].(bool); ok {
			schema.Strict = openai.Bool(strict)
		}
		return &openai.ChatCompletionNewParamsResponseFormatUnion{
			OfJSONSchema: &openai.ResponseFormatJSONSchemaParam{JSONSchema: schema},
		}, nil
	default:
		return nil, fmt.Errorf("unsupported response_format type %q", t)
	}
}
