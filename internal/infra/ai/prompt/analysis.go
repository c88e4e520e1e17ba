package prompt

import (
	"fmt"
	"strings"

	"github.com/bryanwahyu/contract-analysis/internal/domain/contracts"
)

// AnalysisSystemPrompt returns the fixed instructions for a full analysis of
// one contract type. Every field except identity and provenance is requested.
func AnalysisSystemPrompt(ct contracts.ContractType) string {
	levels := strings.Join(contracts.Levels(), "|")
	return fmt.Sprintf(`You are a senior contract lawyer and financial analyst reviewing a %[1]s contract. You must produce one valid JSON object only (no markdown, no commentary). Do not include code fences.

Requirements:
- Output must be a single JSON object with exactly the keys in the schema below.
- "contractType" must be "%[1]s".
- "severity" and "impact" must be one of the lowercase strings: %[2]s.
- "overallScore" must be an integer between %[3]d and %[4]d inclusive, where %[4]d means very favourable and low risk for the reviewing party.
- "summary" must be a non-empty plain-language summary.
- "language" is the ISO 639-1 code of the contract text (default "en").
- Use empty strings or empty arrays when the contract says nothing about a field. Never use null.
- Base every statement on the contract text provided by the user.

Schema (example with empty values):
{
  "contractType": "%[1]s",
  "risks": [{"description": "<string>", "explanation": "<string>", "severity": "<%[2]s>"}],
  "opportunities": [{"description": "<string>", "explanation": "<string>", "impact": "<%[2]s>"}],
  "summary": "<string>",
  "recommendations": ["<string>"],
  "keyClauses": ["<string>"],
  "legalCompliance": "<string>",
  "negotiationPoints": ["<string>"],
  "contractDuration": "<string>",
  "terminationConditions": "<string>",
  "overallScore": 0,
  "language": "en",
  "financialTerms": {"description": "<string>", "details": ["<string>"]},
  "performanceMetrics": ["<string>"],
  "specificClauses": "<string>"
}`, ct, levels, contracts.MinScore, contracts.MaxScore)
}

// AnalysisUserPrompt wraps the contract text. Text longer than maxChars runes
// is cut; maxChars <= 0 disables the cap.
func AnalysisUserPrompt(text string, maxChars int) string {
	return "Analyze the following contract and respond with the JSON per schema.\n\nCONTRACT TEXT:\n" + Truncate(text, maxChars)
}

// Truncate returns at most n runes of s. n <= 0 returns s unchanged.
func Truncate(s string, n int) string {
	if n <= 0 {
		return s
	}
	i := 0
	for pos := range s {
		if i == n {
			return s[:pos]
		}
		i++
	}
	return s
}
