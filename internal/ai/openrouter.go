package ai

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"

	jsoniter "github.com/json-iterator/go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/spec-kit/helpdesk-service/internal/config"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Client calls the OpenRouter chat-completions API.
type Client struct {
	cfg        config.AIConfig
	httpClient *http.Client
	tracer     trace.Tracer
}

// NewClient builds a client. A nil httpClient selects http.DefaultClient.
func NewClient(cfg config.AIConfig, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Client{
		cfg:        cfg,
		httpClient: httpClient,
		tracer:     otel.Tracer("github.com/spec-kit/helpdesk-service/ai"),
	}
}

// Available reports whether a usable API key is configured.
func (c *Client) Available() bool {
	return c.cfg.Configured()
}

type completionRequest struct {
	Model       string    `json:"model"`
	Messages    []Message `json:"messages"`
	Temperature float64   `json:"temperature"`
	MaxTokens   int       `json:"max_tokens"`
	TopP        float64   `json:"top_p"`
}

type completionResponse struct {
	ID      string `json:"id"`
	Model   string `json:"model"`
	Choices []struct {
		Message struct {
			Role    string `json:"role"`
			Content string `json:"content"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
	Usage Usage `json:"usage"`
}

type errorResponse struct {
	Error struct {
		Message string `json:"message"`
	} `json:"error"`
}

func (c *Client) Complete(ctx context.Context, messages []Message, opts Options) (*Completion, error) {
	if !c.Available() {
		return nil, NotConfigured()
	}

	req := c.buildRequest(messages, opts)
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = c.cfg.Timeout
	}

	ctx, span := c.tracer.Start(ctx, "ai.complete", trace.WithAttributes(
		attribute.String("ai.model", req.Model),
		attribute.Int("ai.max_tokens", req.MaxTokens),
		attribute.Int("ai.messages", len(messages)),
	))
	defer span.End()

	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	completion, err := c.do(ctx, req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, string(KindOf(err)))
		return nil, err
	}
	span.SetAttributes(attribute.Int("ai.total_tokens", completion.Usage.TotalTokens))
	return completion, nil
}

func (c *Client) buildRequest(messages []Message, opts Options) completionRequest {
	req := completionRequest{
		Model:       c.cfg.Model,
		Messages:    messages,
		Temperature: c.cfg.Temperature,
		MaxTokens:   c.cfg.MaxTokens,
		TopP:        c.cfg.TopP,
	}
	if opts.Model != "" {
		req.Model = opts.Model
	}
	if opts.Temperature != nil {
		req.Temperature = *opts.Temperature
	}
	if opts.MaxTokens > 0 {
		req.MaxTokens = opts.MaxTokens
	}
	if opts.TopP != nil {
		req.TopP = *opts.TopP
	}
	return req
}

func (c *Client) do(ctx context.Context, body completionRequest) (*Completion, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, &ProviderError{Kind: KindProvider, Message: "encode request", Err: err}
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+"/chat/completions", bytes.NewReader(payload))
	if err != nil {
		return nil, &ProviderError{Kind: KindProvider, Message: "build request", Err: err}
	}
	httpReq.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	httpReq.Header.Set("Content-Type", "application/json")
	if c.cfg.Referer != "" {
		httpReq.Header.Set("HTTP-Referer", c.cfg.Referer)
	}
	if c.cfg.Title != "" {
		httpReq.Header.Set("X-Title", c.cfg.Title)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, transportError(ctx, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, transportError(ctx, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var apiErr errorResponse
		_ = json.Unmarshal(raw, &apiErr)
		return nil, errorForStatus(resp.StatusCode, apiErr.Error.Message)
	}

	var decoded completionResponse
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return nil, &ProviderError{
			Kind:       KindProvider,
			StatusCode: resp.StatusCode,
			Message:    "malformed completion response",
			Err:        err,
		}
	}

	completion := &Completion{ID: decoded.ID, Model: decoded.Model, Usage: decoded.Usage}
	if len(decoded.Choices) > 0 {
		completion.Text = decoded.Choices[0].Message.Content
		completion.FinishReason = decoded.Choices[0].FinishReason
	}
	return completion, nil
}

func transportError(ctx context.Context, err error) error {
	var netErr net.Error
	switch {
	case errors.Is(err, context.DeadlineExceeded), errors.As(err, &netErr) && netErr.Timeout():
		return &ProviderError{Kind: KindTimeout, Message: "the provider took too long to respond", Err: err}
	case errors.Is(ctx.Err(), context.Canceled):
		return &ProviderError{Kind: KindNetwork, Message: "request canceled", Err: err}
	default:
		return &ProviderError{Kind: KindNetwork, Message: fmt.Sprintf("unable to reach provider: %v", err), Err: err}
	}
}
