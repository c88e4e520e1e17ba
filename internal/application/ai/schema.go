package ai

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/bryanwahyu/contract-analysis/internal/domain/contracts"
)

// AnalysisJSONSchema describes a normalized analyzer reply. Optional narrative
// fields are defaulted before validation, so only structural fields are required.
func AnalysisJSONSchema() map[string]any {
	levels := contracts.Levels()
	str := map[string]any{"type": "string"}
	strList := map[string]any{"type": "array", "items": str}

	props := map[string]any{
		"contractType": map[string]any{"type": "string", "enum": contracts.TypeNames()},
		"risks": map[string]any{
			"type":  "array",
			"items": itemSchema("severity", levels),
		},
		"opportunities": map[string]any{
			"type":  "array",
			"items": itemSchema("impact", levels),
		},
		"summary":               map[string]any{"type": "string", "minLength": 1},
		"recommendations":       strList,
		"keyClauses":            strList,
		"legalCompliance":       str,
		"negotiationPoints":     strList,
		"contractDuration":      str,
		"terminationConditions": str,
		"overallScore": map[string]any{
			"type":    "integer",
			"minimum": contracts.MinScore,
			"maximum": contracts.MaxScore,
		},
		"language": map[string]any{"type": "string", "minLength": 2},
		"financialTerms": map[string]any{
			"type":                 "object",
			"additionalProperties": false,
			"properties": map[string]any{
				"description": str,
				"details":     strList,
			},
			"required": []string{"description", "details"},
		},
		"performanceMetrics": strList,
		"specificClauses":    str,
	}

	return map[string]any{
		"type":                 "object",
		"additionalProperties": false,
		"properties":           props,
		"required":             []string{"contractType", "risks", "opportunities", "summary", "overallScore"},
	}
}

func itemSchema(levelKey string, levels []string) map[string]any {
	return map[string]any{
		"type":                 "object",
		"additionalProperties": false,
		"properties": map[string]any{
			"description": map[string]any{"type": "string", "minLength": 1},
			"explanation": map[string]any{"type": "string"},
			levelKey:      map[string]any{"type": "string", "enum": levels},
		},
		"required": []string{"description", "explanation", levelKey},
	}
}

func compileSchema(schemaMap map[string]any) (*jsonschema.Schema, error) {
	b, err := json.Marshal(schemaMap)
	if err != nil {
		return nil, fmt.Errorf("marshal schema: %w", err)
	}
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("analysis.json", bytes.NewReader(b)); err != nil {
		return nil, fmt.Errorf("add schema: %w", err)
	}
	schema, err := compiler.Compile("analysis.json")
	if err != nil {
		return nil, fmt.Errorf("compile schema: %w", err)
	}
	return schema, nil
}
