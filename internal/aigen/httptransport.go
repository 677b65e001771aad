package aigen

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/sony/gobreaker"
)

// HTTPTransport is the production Transport: a plain HTTP/JSON POST against
// a remote chat-completion endpoint, guarded by a circuit breaker so a
// struggling backend doesn't starve the worker pool with hung calls
// (spec §4.2, §7).
type HTTPTransport struct {
	client  *http.Client
	baseURL string
	apiKey  string
	breaker *gobreaker.CircuitBreaker
}

// NewHTTPTransport builds a transport against baseURL, authenticating with
// apiKey (env REMOTE_API_KEY, REMOTE_API_BASE_URL per spec §6).
func NewHTTPTransport(baseURL, apiKey string) *HTTPTransport {
	st := gobreaker.Settings{
		Name:        "remote-completion",
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
	}
	return &HTTPTransport{
		client:  &http.Client{Timeout: 300 * time.Second},
		baseURL: baseURL,
		apiKey:  apiKey,
		breaker: gobreaker.NewCircuitBreaker(st),
	}
}

type wireRequest struct {
	Model       string    `json:"model"`
	Messages    []Message `json:"messages"`
	Temperature *float64  `json:"temperature,omitempty"`
	TopP        *float64  `json:"top_p,omitempty"`
	MaxTokens   *int      `json:"max_tokens,omitempty"`
}

type wireResponse struct {
	Text  string `json:"text"`
	Usage struct {
		PromptTokens     int64 `json:"prompt_tokens"`
		CompletionTokens int64 `json:"completion_tokens"`
	} `json:"usage"`
}

// Complete implements Transport.
func (t *HTTPTransport) Complete(ctx context.Context, req CompletionRequest) (CompletionResponse, error) {
	if t.apiKey == "" {
		return CompletionResponse{}, configErr("transport", fmt.Errorf("REMOTE_API_KEY is not configured"))
	}

	wire := wireRequest{Model: req.Model, Messages: req.Messages}
	if req.Params != nil {
		wire.Temperature = req.Params.Temperature
		wire.TopP = req.Params.TopP
		wire.MaxTokens = req.Params.MaxTokens
	}

	body, err := json.Marshal(wire)
	if err != nil {
		return CompletionResponse{}, configErr("transport", fmt.Errorf("marshal request: %w", err))
	}

	result, err := t.breaker.Execute(func() (any, error) {
		return t.doRequest(ctx, body)
	})
	if err != nil {
		if err == gobreaker.ErrOpenState || err == gobreaker.ErrTooManyRequests {
			return CompletionResponse{}, transportErr("transport", err)
		}
		return CompletionResponse{}, err
	}
	return result.(CompletionResponse), nil
}

func (t *HTTPTransport) doRequest(ctx context.Context, body []byte) (CompletionResponse, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, t.baseURL+"/v1/completions", bytes.NewReader(body))
	if err != nil {
		return CompletionResponse{}, transportErr("transport", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+t.apiKey)

	resp, err := t.client.Do(httpReq)
	if err != nil {
		return CompletionResponse{}, transportErr("transport", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return CompletionResponse{}, transportErr("transport", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return CompletionResponse{}, remoteErr("transport", resp.StatusCode, fmt.Errorf("%s", string(respBody)))
	}

	var wire wireResponse
	if err := json.Unmarshal(respBody, &wire); err != nil {
		return CompletionResponse{}, remoteErr("transport", resp.StatusCode, fmt.Errorf("decode response: %w", err))
	}

	return CompletionResponse{
		Text:         wire.Text,
		InputTokens:  wire.Usage.PromptTokens,
		OutputTokens: wire.Usage.CompletionTokens,
	}, nil
}
