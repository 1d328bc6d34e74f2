package openrouter

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/kirillkom/coaching-kb/internal/core/domain"
	"github.com/kirillkom/coaching-kb/internal/infrastructure/resilience"
)

const (
	DefaultBaseURL      = "https://openrouter.ai/api/v1/"
	defaultProbeTimeout = 3 * time.Second
)

type Options struct {
	APIKey       string
	Timeout      time.Duration
	ProbeTimeout time.Duration
	Executor     *resilience.Executor
	// Referer and Title are sent as the attribution headers OpenRouter shows on its dashboard.
	Referer string
	Title   string
}

// Enhancer implements chunk enhancement over an OpenAI-compatible chat completions endpoint.
type Enhancer struct {
	client       *openai.Client
	model        string
	probeTimeout time.Duration
	executor     *resilience.Executor
}

func New(baseURL, model string, opts Options) *Enhancer {
	if strings.TrimSpace(baseURL) == "" {
		baseURL = DefaultBaseURL
	}
	if !strings.HasSuffix(baseURL, "/") {
		baseURL += "/"
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 120 * time.Second
	}
	if opts.ProbeTimeout <= 0 {
		opts.ProbeTimeout = defaultProbeTimeout
	}

	reqOpts := []option.RequestOption{
		option.WithBaseURL(baseURL),
		option.WithAPIKey(opts.APIKey),
		option.WithMaxRetries(0),
		option.WithHTTPClient(&http.Client{Timeout: opts.Timeout}),
	}
	if opts.Referer != "" {
		reqOpts = append(reqOpts, option.WithHeader("HTTP-Referer", opts.Referer))
	}
	if opts.Title != "" {
		reqOpts = append(reqOpts, option.WithHeader("X-Title", opts.Title))
	}
	client := openai.NewClient(reqOpts...)

	return &Enhancer{
		client:       &client,
		model:        model,
		probeTimeout: opts.ProbeTimeout,
		executor:     opts.Executor,
	}
}

// Ping lists models. Any failure is reported as ErrServiceUnavailable.
func (e *Enhancer) Ping(ctx context.Context) error {
	probeCtx, cancel := context.WithTimeout(ctx, e.probeTimeout)
	defer cancel()

	if _, err := e.client.Models.List(probeCtx); err != nil {
		return domain.WrapError(domain.ErrServiceUnavailable, "openrouter ping", err)
	}
	return nil
}

func (e *Enhancer) Generate(ctx context.Context, prompt string, opts domain.GenerateOptions) (domain.Generation, error) {
	params := openai.ChatCompletionNewParams{
		Model: openai.ChatModel(e.model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.UserMessage(prompt),
		},
	}
	if opts.Temperature > 0 {
		params.Temperature = openai.Float(opts.Temperature)
	}
	if opts.TopP > 0 {
		params.TopP = openai.Float(opts.TopP)
	}
	if opts.MaxTokens > 0 {
		params.MaxTokens = openai.Int(int64(opts.MaxTokens))
	}

	var resp *openai.ChatCompletion
	call := func(callCtx context.Context) error {
		out, err := e.client.Chat.Completions.New(callCtx, params)
		if err != nil {
			return err
		}
		resp = out
		return nil
	}

	var err error
	if e.executor != nil {
		err = e.executor.Execute(ctx, "openrouter.enhance", call, classifyError)
	} else {
		err = call(ctx)
	}
	if err != nil {
		return domain.Generation{}, wrapError("openrouter enhance", err)
	}
	if resp == nil || len(resp.Choices) == 0 {
		return domain.Generation{}, domain.WrapError(domain.ErrTemporary, "openrouter enhance", errors.New("empty choices"))
	}

	return domain.Generation{
		Text:             strings.TrimSpace(resp.Choices[0].Message.Content),
		PromptTokens:     int(resp.Usage.PromptTokens),
		CompletionTokens: int(resp.Usage.CompletionTokens),
	}, nil
}

func classifyError(err error) resilience.ErrorClassification {
	if err == nil {
		return resilience.ErrorClassification{}
	}
	if errors.Is(err, resilience.ErrAttemptTimeout) || resilience.IsCircuitOpen(err) {
		return resilience.ErrorClassification{Retryable: true, RecordFailure: true}
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return resilience.ErrorClassification{}
	}

	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		switch apiErr.StatusCode {
		case http.StatusTooManyRequests:
			return resilience.ErrorClassification{Retryable: true, RecordFailure: true, RateLimited: true}
		case http.StatusRequestTimeout, http.StatusInternalServerError,
			http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
			return resilience.ErrorClassification{Retryable: true, RecordFailure: true}
		}
		return resilience.ErrorClassification{}
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return resilience.ErrorClassification{Retryable: true, RecordFailure: true}
	}
	return resilience.ErrorClassification{RecordFailure: true}
}

func wrapError(operation string, err error) error {
	var apiErr *openai.Error
	if errors.As(err, &apiErr) && (apiErr.StatusCode == http.StatusUnauthorized || apiErr.StatusCode == http.StatusForbidden) {
		return domain.WrapError(domain.ErrUnauthorized, operation, fmt.Errorf("status %d: %w", apiErr.StatusCode, err))
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) && opErr.Op == "dial" {
		return domain.WrapError(domain.ErrServiceUnavailable, operation, err)
	}
	if classifyError(err).Retryable {
		return domain.WrapError(domain.ErrTemporary, operation, err)
	}
	return err
}
