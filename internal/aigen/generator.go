// Package aigen implements C2: the uniform contract around a remote
// chat-completion call shared by all nine task generators in internal/tasks.
package aigen

import (
	"context"
	"log/slog"
	"time"

	"github.com/sessionwave/orchestrator/internal/modeltier"
)

// Message roles, matching the remote completion endpoint's wire contract.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message is one chat message sent to the remote endpoint.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Spec is the polymorphic capability set each task generator in
// internal/tasks implements atop this base (spec §4.2).
type Spec interface {
	TaskName() string
	BuildMessages(input any) ([]Message, error)
	ParseResult(rawText string) (any, error)
}

// FallbackSpec is implemented by task generators that have a fallback
// result to use when ParseResult fails (spec §4.2).
type FallbackSpec interface {
	FallbackResult() any
}

// OptionalParamsSpec is implemented by task generators that opt in to
// sending temperature/top-p/max-tokens (spec §9: most tasks must not).
type OptionalParamsSpec interface {
	SupportsOptionalParams() bool
	OptionalParams() OptionalParams
}

// OptionalParams are never sent unless a task generator opts in.
type OptionalParams struct {
	Temperature *float64
	TopP        *float64
	MaxTokens   *int
}

// Opts carries per-call overrides (spec §4.2).
type Opts struct {
	OverrideModel string
	SessionID     string
	PatientID     string
	ExtraMetadata map[string]any
	Timeout       time.Duration
}

// Result is the generate() return value: the parsed task result plus its
// cost accounting (spec §4.2).
type Result struct {
	Value        any
	Model        string
	InputTokens  int64
	OutputTokens int64
	CostUSD      float64
	DurationMs   int64
	Fallback     bool
}

// CostRecorder persists a GenerationCostEntry; failures are logged by the
// caller and never propagated (spec §4.2: "persistence is best-effort").
type CostRecorder interface {
	Record(ctx context.Context, entry CostEntryInput) error
}

// CostEntryInput mirrors store.NewCostEntryInput without importing the
// store package here, keeping aigen storage-agnostic.
type CostEntryInput struct {
	Task         string
	Model        string
	InputTokens  int64
	OutputTokens int64
	CostUSD      float64
	DurationMs   int64
	SessionID    *string
	PatientID    *string
}

// Transport is the remote chat-completion call itself (spec §4.2). A
// concrete Transport wraps the HTTP client plus circuit breaker.
type Transport interface {
	Complete(ctx context.Context, req CompletionRequest) (CompletionResponse, error)
}

// CompletionRequest is deliberately minimal: only {model, messages} unless
// a task generator opts in to optional params (spec §9).
type CompletionRequest struct {
	Model    string
	Messages []Message
	Params   *OptionalParams
}

// CompletionResponse carries the reported (never estimated) usage counts
// (spec §9: "tokens are reported, not estimated").
type CompletionResponse struct {
	Text         string
	InputTokens  int64
	OutputTokens int64
}

// Base is the shared generate() implementation every task generator calls
// into (spec §4.2).
type Base struct {
	Transport Transport
	Resolver  *modeltier.Resolver
	Costs     CostRecorder
	Now       func() time.Time
}

// NewBase wires a Base from its collaborators.
func NewBase(transport Transport, resolver *modeltier.Resolver, costs CostRecorder) *Base {
	return &Base{Transport: transport, Resolver: resolver, Costs: costs, Now: time.Now}
}

// Generate implements generate(input, opts) → {result, cost} (spec §4.2).
func (b *Base) Generate(ctx context.Context, spec Spec, input any, opts Opts) (Result, error) {
	task := spec.TaskName()
	start := b.Now()

	model, err := b.Resolver.ResolveModel(task, opts.OverrideModel)
	if err != nil {
		return Result{}, configErr(task, err)
	}

	messages, err := spec.BuildMessages(input)
	if err != nil {
		return Result{}, configErr(task, err)
	}

	req := CompletionRequest{Model: model, Messages: messages}
	if ops, ok := spec.(OptionalParamsSpec); ok && ops.SupportsOptionalParams() {
		p := ops.OptionalParams()
		req.Params = &p
	}

	callCtx := ctx
	var cancel context.CancelFunc
	if opts.Timeout > 0 {
		callCtx, cancel = context.WithTimeout(ctx, opts.Timeout)
		defer cancel()
	}

	resp, callErr := b.Transport.Complete(callCtx, req)
	duration := b.Now().Sub(start)

	if callErr != nil {
		b.recordCost(ctx, task, model, 0, 0, 0, duration, opts)
		return Result{}, callErr
	}

	parsed, fallback, parseErrResult := b.parse(spec, resp.Text)
	if parseErrResult != nil {
		b.recordCost(ctx, task, model, resp.InputTokens, resp.OutputTokens, 0, duration, opts)
		return Result{}, parseErrResult
	}

	cost, costErr := b.Resolver.CostOf(model, resp.InputTokens, resp.OutputTokens)
	if costErr != nil {
		cost = 0
	}
	b.recordCost(ctx, task, model, resp.InputTokens, resp.OutputTokens, cost, duration, opts)

	return Result{
		Value:        parsed,
		Model:        model,
		InputTokens:  resp.InputTokens,
		OutputTokens: resp.OutputTokens,
		CostUSD:      cost,
		DurationMs:   duration.Milliseconds(),
		Fallback:     fallback,
	}, nil
}

func (b *Base) parse(spec Spec, rawText string) (any, bool, error) {
	parsed, err := spec.ParseResult(rawText)
	if err == nil {
		return parsed, false, nil
	}
	if fs, ok := spec.(FallbackSpec); ok {
		return fs.FallbackResult(), true, nil
	}
	return nil, false, parseErr(spec.TaskName(), err)
}

func (b *Base) recordCost(ctx context.Context, task, model string, inTok, outTok int64, cost float64, duration time.Duration, opts Opts) {
	if b.Costs == nil {
		return
	}
	var sessionID, patientID *string
	if opts.SessionID != "" {
		sessionID = &opts.SessionID
	}
	if opts.PatientID != "" {
		patientID = &opts.PatientID
	}
	if err := b.Costs.Record(ctx, CostEntryInput{
		Task: task, Model: model, InputTokens: inTok, OutputTokens: outTok,
		CostUSD: cost, DurationMs: duration.Milliseconds(),
		SessionID: sessionID, PatientID: patientID,
	}); err != nil {
		slog.Warn("record generation cost", "task", task, "error", err)
	}
}
