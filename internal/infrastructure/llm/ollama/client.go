package ollama

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/kirillkom/coaching-kb/internal/core/domain"
	"github.com/kirillkom/coaching-kb/internal/infrastructure/resilience"
)

const defaultProbeTimeout = 2 * time.Second

type Options struct {
	Timeout      time.Duration
	ProbeTimeout time.Duration
	Executor     *resilience.Executor
}

type Client struct {
	baseURL      string
	model        string
	httpClient   *http.Client
	probeTimeout time.Duration
	executor     *resilience.Executor
}

func New(baseURL, model string, opts Options) *Client {
	if opts.Timeout <= 0 {
		opts.Timeout = 120 * time.Second
	}
	if opts.ProbeTimeout <= 0 {
		opts.ProbeTimeout = defaultProbeTimeout
	}
	return &Client{
		baseURL:      strings.TrimRight(baseURL, "/"),
		model:        model,
		httpClient:   &http.Client{Timeout: opts.Timeout},
		probeTimeout: opts.ProbeTimeout,
		executor:     opts.Executor,
	}
}

// Ping lists local models. Any failure is reported as ErrServiceUnavailable.
func (c *Client) Ping(ctx context.Context) error {
	probeCtx, cancel := context.WithTimeout(ctx, c.probeTimeout)
	defer cancel()

	var tags struct {
		Models []struct {
			Name string `json:"name"`
		} `json:"models"`
	}
	if err := c.getJSON(probeCtx, "/api/tags", &tags, "tags"); err != nil {
		return domain.WrapError(domain.ErrServiceUnavailable, "ollama ping", err)
	}
	return nil
}

type generateRequest struct {
	Model   string          `json:"model"`
	Prompt  string          `json:"prompt"`
	Stream  bool            `json:"stream"`
	Format  string          `json:"format,omitempty"`
	Options generateOptions `json:"options"`
}

type generateOptions struct {
	Temperature float64 `json:"temperature,omitempty"`
	TopP        float64 `json:"top_p,omitempty"`
	NumPredict  int     `json:"num_predict,omitempty"`
}

type generateResponse struct {
	Response        string `json:"response"`
	PromptEvalCount int    `json:"prompt_eval_count"`
	EvalCount       int    `json:"eval_count"`
}

func (c *Client) generate(ctx context.Context, operation string, req generateRequest) (generateResponse, error) {
	req.Model = c.model
	req.Stream = false

	var resp generateResponse
	call := func(callCtx context.Context) error {
		return c.postJSON(callCtx, "/api/generate", req, &resp, operation)
	}

	var err error
	if c.executor != nil {
		err = c.executor.Execute(ctx, "ollama."+operation, call, classifyOllamaError)
	} else {
		err = call(ctx)
	}
	if err != nil {
		return generateResponse{}, wrapTemporaryIfNeeded("ollama "+operation, err)
	}
	resp.Response = strings.TrimSpace(resp.Response)
	return resp, nil
}

// Extractor implements the knowledge extraction service over /api/generate in JSON mode.
type Extractor struct {
	client *Client
}

func NewExtractor(client *Client) *Extractor {
	return &Extractor{client: client}
}

func (e *Extractor) Ping(ctx context.Context) error {
	return e.client.Ping(ctx)
}

func (e *Extractor) Analyze(ctx context.Context, content, instructions string) (domain.ExtractionResponse, error) {
	resp, err := e.client.generate(ctx, "analyze", generateRequest{
		Prompt:  buildAnalyzePrompt(content, instructions),
		Format:  "json",
		Options: generateOptions{Temperature: 0.1},
	})
	if err != nil {
		return domain.ExtractionResponse{}, err
	}
	// The reply is kept as a JSON string; parsing belongs to the extraction adapter.
	analysis, err := json.Marshal(resp.Response)
	if err != nil {
		return domain.ExtractionResponse{}, fmt.Errorf("encode analysis text: %w", err)
	}
	return domain.ExtractionResponse{Success: true, Analysis: analysis}, nil
}

func buildAnalyzePrompt(content, instructions string) string {
	return strings.TrimSpace(instructions) + "\n\nContent:\n" + content
}

// Enhancer implements chunk enhancement over /api/generate.
type Enhancer struct {
	client *Client
}

func NewEnhancer(client *Client) *Enhancer {
	return &Enhancer{client: client}
}

func (e *Enhancer) Ping(ctx context.Context) error {
	return e.client.Ping(ctx)
}

func (e *Enhancer) Generate(ctx context.Context, prompt string, opts domain.GenerateOptions) (domain.Generation, error) {
	resp, err := e.client.generate(ctx, "enhance", generateRequest{
		Prompt: prompt,
		Options: generateOptions{
			Temperature: opts.Temperature,
			TopP:        opts.TopP,
			NumPredict:  opts.MaxTokens,
		},
	})
	if err != nil {
		return domain.Generation{}, err
	}
	return domain.Generation{
		Text:             resp.Response,
		PromptTokens:     resp.PromptEvalCount,
		CompletionTokens: resp.EvalCount,
	}, nil
}
