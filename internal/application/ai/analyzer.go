package ai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/santhosh-tekuri/jsonschema/v5"

	domai "github.com/bryanwahyu/contract-analysis/internal/domain/ai"
	"github.com/bryanwahyu/contract-analysis/internal/domain/contracts"
	"github.com/bryanwahyu/contract-analysis/internal/infra/ai/prompt"
)

// DefaultMaxTextChars bounds the contract text sent for a full analysis.
const DefaultMaxTextChars = 60000

// Analyzer turns contract text into a validated payload. It never writes to storage.
type Analyzer struct {
	client       domai.Client
	schema       *jsonschema.Schema
	maxTextChars int
	logger       *slog.Logger
}

func NewAnalyzer(client domai.Client, maxTextChars int, logger *slog.Logger) (*Analyzer, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if maxTextChars <= 0 {
		maxTextChars = DefaultMaxTextChars
	}
	schema, err := compileSchema(AnalysisJSONSchema())
	if err != nil {
		return nil, err
	}
	return &Analyzer{client: client, schema: schema, maxTextChars: maxTextChars, logger: logger}, nil
}

// Analyze implements contracts.Analyzer.
func (a *Analyzer) Analyze(ctx context.Context, text string, ct contracts.ContractType) (*contracts.Payload, error) {
	if strings.TrimSpace(text) == "" {
		return nil, contracts.Invalid("contract text is empty")
	}
	if !ct.Valid() {
		return nil, contracts.Invalid("unknown contract type %q", ct)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	start := time.Now()
	resp, err := a.client.Complete(ctx, domai.Request{
		System: prompt.AnalysisSystemPrompt(ct),
		User:   prompt.AnalysisUserPrompt(text, a.maxTextChars),
		JSON:   true,
	})
	if err != nil {
		if errors.Is(err, domai.ErrEmptyResponse) {
			return nil, fmt.Errorf("%w: %v", contracts.ErrSchema, err)
		}
		return nil, backendError(ctx, err)
	}

	payload, err := a.parse([]byte(resp.Content), ct)
	if err != nil {
		a.logger.Warn("llm.analyze.invalid",
			"contract_type", ct,
			"model", resp.Model,
			"raw", prompt.Truncate(resp.Content, 500),
			"err", err,
		)
		return nil, err
	}
	payload.AIModel = resp.Model

	a.logger.Info("llm.analyze.ok",
		"contract_type", ct,
		"model", resp.Model,
		"risks", len(payload.Risks),
		"score", payload.OverallScore,
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return payload, nil
}

// parse runs clean -> normalize -> schema validation -> typed decode.
func (a *Analyzer) parse(raw []byte, ct contracts.ContractType) (*contracts.Payload, error) {
	var m map[string]any
	if err := json.Unmarshal(cleanJSON(raw), &m); err != nil {
		return nil, fmt.Errorf("%w: reply is not a JSON object", contracts.ErrSchema)
	}
	if changed := normalizeAnalysis(m, ct); len(changed) > 0 {
		a.logger.Debug("llm.analyze.normalize", "changed", changed)
	}

	var doc any
	b, err := json.Marshal(m)
	if err == nil {
		err = json.Unmarshal(b, &doc)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", contracts.ErrSchema, err)
	}
	if err := a.schema.Validate(doc); err != nil {
		return nil, fmt.Errorf("%w: %s", contracts.ErrSchema, schemaMessage(err))
	}

	var p contracts.Payload
	if err := json.Unmarshal(b, &p); err != nil {
		return nil, fmt.Errorf("%w: %v", contracts.ErrSchema, err)
	}
	return &p, nil
}

// schemaMessage shortens a validation error to its first leaf cause.
func schemaMessage(err error) string {
	var ve *jsonschema.ValidationError
	if !errors.As(err, &ve) {
		return err.Error()
	}
	for len(ve.Causes) > 0 {
		ve = ve.Causes[0]
	}
	loc := ve.InstanceLocation
	if loc == "" {
		loc = "/"
	}
	return loc + ": " + ve.Message
}

// backendError keeps cancellation as is and marks everything else as a
// retryable backend failure. The provider error stays in the chain.
func backendError(ctx context.Context, err error) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}
	return fmt.Errorf("%w: %w", contracts.ErrBackendUnavailable, err)
}
