package ai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	domai "github.com/bryanwahyu/contract-analysis/internal/domain/ai"
	"github.com/bryanwahyu/contract-analysis/internal/domain/contracts"
	"github.com/bryanwahyu/contract-analysis/internal/infra/ai/prompt"
)

// DefaultClassifySampleChars bounds the prefix sent for type detection.
const DefaultClassifySampleChars = 6000

type Classifier struct {
	client      domai.Client
	sampleChars int
	logger      *slog.Logger
}

func NewClassifier(client domai.Client, sampleChars int, logger *slog.Logger) *Classifier {
	if logger == nil {
		logger = slog.Default()
	}
	if sampleChars <= 0 {
		sampleChars = DefaultClassifySampleChars
	}
	return &Classifier{client: client, sampleChars: sampleChars, logger: logger}
}

// DetectType implements contracts.TypeClassifier. The result is always a
// member of the closed set; unmatched answers become contracts.DefaultType.
func (c *Classifier) DetectType(ctx context.Context, text string) (contracts.ContractType, error) {
	if strings.TrimSpace(text) == "" {
		return "", contracts.Invalid("contract text is empty")
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}

	start := time.Now()
	resp, err := c.client.Complete(ctx, domai.Request{
		System: prompt.ClassifySystemPrompt(),
		User:   prompt.ClassifyUserPrompt(text, c.sampleChars),
		JSON:   true,
	})
	if err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		if errors.Is(err, domai.ErrEmptyResponse) {
			return "", fmt.Errorf("%w: no usable label", contracts.ErrClassification)
		}
		return "", fmt.Errorf("%w: %w", contracts.ErrClassification, backendError(ctx, err))
	}

	label := labelFrom(resp.Content)
	if label == "" {
		return "", fmt.Errorf("%w: no usable label", contracts.ErrClassification)
	}
	ct := contracts.NormalizeType(label)

	c.logger.Info("llm.classify.ok",
		"label", prompt.Truncate(label, 80),
		"contract_type", ct,
		"model", resp.Model,
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return ct, nil
}

// labelFrom accepts {"contractType": "..."} and a few key variants, or plain text.
func labelFrom(content string) string {
	raw := cleanJSON([]byte(content))
	var m map[string]any
	if err := json.Unmarshal(raw, &m); err == nil {
		for _, k := range []string{"contractType", "contract_type", "type", "label", "category"} {
			if s, ok := m[k].(string); ok {
				return strings.TrimSpace(s)
			}
		}
		return ""
	}
	return strings.TrimSpace(content)
}
