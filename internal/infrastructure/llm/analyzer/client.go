package analyzer

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/kirillkom/coaching-kb/internal/core/domain"
	"github.com/kirillkom/coaching-kb/internal/infrastructure/resilience"
)

// Client talks to a remote analysis service exposing POST /analyze and GET /health.
type Client struct {
	baseURL      string
	apiKey       string
	httpClient   *http.Client
	probeTimeout time.Duration
	executor     *resilience.Executor
}

type Options struct {
	APIKey       string
	Timeout      time.Duration
	ProbeTimeout time.Duration
	Executor     *resilience.Executor
}

func New(baseURL string, opts Options) *Client {
	if opts.Timeout <= 0 {
		opts.Timeout = 120 * time.Second
	}
	if opts.ProbeTimeout <= 0 {
		opts.ProbeTimeout = 2 * time.Second
	}
	return &Client{
		baseURL:      strings.TrimRight(baseURL, "/"),
		apiKey:       opts.APIKey,
		httpClient:   &http.Client{Timeout: opts.Timeout},
		probeTimeout: opts.ProbeTimeout,
		executor:     opts.Executor,
	}
}

type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("analyzer status %d", e.StatusCode)
	}
	return fmt.Sprintf("analyzer status %d: %s", e.StatusCode, e.Body)
}

func (c *Client) Ping(ctx context.Context) error {
	probeCtx, cancel := context.WithTimeout(ctx, c.probeTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(probeCtx, http.MethodGet, c.baseURL+"/health", nil)
	if err != nil {
		return domain.WrapError(domain.ErrServiceUnavailable, "analyzer ping", err)
	}
	c.authorize(req)
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return domain.WrapError(domain.ErrServiceUnavailable, "analyzer ping", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
	if resp.StatusCode >= 300 {
		return domain.WrapError(domain.ErrServiceUnavailable, "analyzer ping", &StatusError{StatusCode: resp.StatusCode})
	}
	return nil
}

type analyzeRequest struct {
	Content      string `json:"content"`
	Instructions string `json:"instructions"`
}

func (c *Client) Analyze(ctx context.Context, content, instructions string) (domain.ExtractionResponse, error) {
	body, err := json.Marshal(analyzeRequest{Content: content, Instructions: instructions})
	if err != nil {
		return domain.ExtractionResponse{}, fmt.Errorf("marshal analyze request: %w", err)
	}

	var out domain.ExtractionResponse
	call := func(callCtx context.Context) error {
		req, err := http.NewRequestWithContext(callCtx, http.MethodPost, c.baseURL+"/analyze", bytes.NewReader(body))
		if err != nil {
			return fmt.Errorf("create analyze request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")
		c.authorize(req)

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return fmt.Errorf("analyzer request: %w", err)
		}
		defer resp.Body.Close()
		if resp.StatusCode >= 300 {
			raw, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
			return &StatusError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(raw))}
		}
		if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
			return domain.WrapError(domain.ErrParseFailure, "decode analyze response", err)
		}
		return nil
	}

	if c.executor != nil {
		err = c.executor.Execute(ctx, "analyzer.analyze", call, classifyError)
	} else {
		err = call(ctx)
	}
	if err != nil {
		return domain.ExtractionResponse{}, wrapError(err)
	}
	return out, nil
}

func (c *Client) authorize(req *http.Request) {
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}
}

func classifyError(err error) resilience.ErrorClassification {
	if errors.Is(err, resilience.ErrAttemptTimeout) {
		return resilience.ErrorClassification{Retryable: true, RecordFailure: true}
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return resilience.ErrorClassification{}
	}
	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		limited := statusErr.StatusCode == http.StatusTooManyRequests
		retryable := limited || statusErr.StatusCode >= 500
		return resilience.ErrorClassification{Retryable: retryable, RecordFailure: retryable, RateLimited: limited}
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return resilience.ErrorClassification{Retryable: true, RecordFailure: true}
	}
	return resilience.ErrorClassification{Retryable: false, RecordFailure: true}
}

func wrapError(err error) error {
	var opErr *net.OpError
	switch {
	case errors.As(err, &opErr) && opErr.Op == "dial":
		return domain.WrapError(domain.ErrServiceUnavailable, "analyzer analyze", err)
	case resilience.IsCircuitOpen(err), classifyError(err).Retryable:
		return domain.WrapError(domain.ErrTemporary, "analyzer analyze", err)
	default:
		return err
	}
}
