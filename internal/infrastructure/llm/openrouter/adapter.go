package openrouter

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"net/http"

	"github.com/sashabaranov/go-openai"

	"browser-pilot/internal/application/port/output"
	"browser-pilot/internal/domain/entity"
	"browser-pilot/internal/infrastructure/prompts"
)

var (
	_ output.DecisionPolicyPort = (*OpenRouterAdapter)(nil)
	_ output.VisualJudgePort    = (*OpenRouterAdapter)(nil)
)

// OpenRouterAdapter is the LLM-backed decision policy. It also carries the
// visual-judgement capability when the configured model accepts images.
type OpenRouterAdapter struct {
	client        *openai.Client
	model         string
	visionCapable bool
	logger        output.LoggerPort
}

type Config struct {
	APIKey        string
	Model         string
	BaseURL       string
	VisionCapable bool
	Logger        output.LoggerPort
}

func DefaultConfig(apiKey, model string) Config {
	return Config{
		APIKey:  apiKey,
		Model:   model,
		BaseURL: "https://openrouter.ai/api/v1",
	}
}

type loggingTransport struct {
	base   http.RoundTripper
	logger output.LoggerPort
}

func (t *loggingTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if t.logger != nil {
		var bodyBytes []byte
		if req.Body != nil {
			bodyBytes, _ = io.ReadAll(req.Body)
			req.Body = io.NopCloser(bytes.NewBuffer(bodyBytes))
		}
		t.logger.Debug("HTTP Request",
			"method", req.Method,
			"url", req.URL.String(),
			"body_size", len(bodyBytes),
		)
	}

	resp, err := t.base.RoundTrip(req)

	if t.logger != nil && resp != nil {
		t.logger.Debug("HTTP Response",
			"status", resp.Status,
			"statusCode", resp.StatusCode,
		)
	}

	return resp, err
}

func NewOpenRouterAdapter(cfg Config) *OpenRouterAdapter {
	config := openai.DefaultConfig(cfg.APIKey)
	config.BaseURL = cfg.BaseURL

	if cfg.Logger != nil {
		config.HTTPClient = &http.Client{
			Transport: &loggingTransport{
				base:   http.DefaultTransport,
				logger: cfg.Logger,
			},
		}
	}

	return &OpenRouterAdapter{
		client:        openai.NewClientWithConfig(config),
		model:         cfg.Model,
		visionCapable: cfg.VisionCapable,
		logger:        cfg.Logger,
	}
}

// Decide renders the observation and asks the model for one action.
func (a *OpenRouterAdapter) Decide(ctx context.Context, obs entity.Observation) (entity.Action, error) {
	userPrompt, err := prompts.RenderObservation(obs)
	if err != nil {
		return entity.Action{}, fmt.Errorf("render observation: %w", err)
	}

	resp, err := a.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: a.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: prompts.DecideSystemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: userPrompt},
		},
		Temperature: 0.0,
	})
	if err != nil {
		return entity.Action{}, fmt.Errorf("chat completion failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return entity.Action{}, fmt.Errorf("no choices in response")
	}

	action, err := parseAction(resp.Choices[0].Message.Content)
	if err != nil {
		return entity.Action{}, fmt.Errorf("parse action: %w", err)
	}
	return action, nil
}

// Judge submits the before/after screenshot pair for a visual verdict.
// Returns an error when the adapter is not vision-capable; the verifier
// downgrades that to a neutral verdict.
func (a *OpenRouterAdapter) Judge(ctx context.Context, action entity.Action, before, after []byte) (entity.Verdict, error) {
	if !a.visionCapable {
		return entity.Verdict{}, fmt.Errorf("model %s is not vision capable", a.model)
	}

	describe := fmt.Sprintf("Action performed: %s", action.Type)
	if action.Selector != "" {
		describe += fmt.Sprintf(" on %s", action.Selector)
	}
	if action.Value != "" {
		describe += fmt.Sprintf(" with value %q", action.Value)
	}

	resp, err := a.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: a.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: prompts.JudgeSystemPrompt},
			{
				Role: openai.ChatMessageRoleUser,
				MultiContent: []openai.ChatMessagePart{
					{Type: openai.ChatMessagePartTypeText, Text: describe + "\nFirst image: before. Second image: after."},
					imagePart(before),
					imagePart(after),
				},
			},
		},
		Temperature: 0.0,
	})
	if err != nil {
		return entity.Verdict{}, fmt.Errorf("judge completion failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return entity.Verdict{}, fmt.Errorf("no choices in response")
	}

	verdict, err := parseVerdict(resp.Choices[0].Message.Content)
	if err != nil {
		return entity.Verdict{}, fmt.Errorf("parse verdict: %w", err)
	}
	return verdict, nil
}

func imagePart(frame []byte) openai.ChatMessagePart {
	return openai.ChatMessagePart{
		Type: openai.ChatMessagePartTypeImageURL,
		ImageURL: &openai.ChatMessageImageURL{
			URL:    "data:image/jpeg;base64," + base64.StdEncoding.EncodeToString(frame),
			Detail: openai.ImageURLDetailLow,
		},
	}
}
