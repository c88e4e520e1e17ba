package ai

import (
	"bytes"
	"encoding/json"
	"maps"
	"math"
	"strconv"
	"strings"
	"unicode"

	"github.com/bryanwahyu/contract-analysis/internal/domain/contracts"
)

// cleanJSON strips markdown fences and any prose around the outermost object.
func cleanJSON(data []byte) []byte {
	s := bytes.TrimSpace(data)
	if len(s) == 0 {
		return s
	}

	if bytes.HasPrefix(s, []byte("```")) {
		// Strip opening fence line
		if idx := bytes.IndexByte(s, '\n'); idx >= 0 {
			s = s[idx+1:]
		}
		// Strip closing fence
		if i := bytes.LastIndex(s, []byte("```")); i >= 0 {
			s = s[:i]
		}
		s = bytes.TrimSpace(s)
	}

	if start, end := bytes.IndexByte(s, '{'), bytes.LastIndexByte(s, '}'); start >= 0 && end > start {
		s = s[start : end+1]
	}
	return s
}

var (
	optionalStrings = []string{"legalCompliance", "contractDuration", "terminationConditions", "specificClauses"}
	optionalLists   = []string{"recommendations", "keyClauses", "negotiationPoints", "performanceMetrics"}
	analysisKeys    = []string{
		"contractType", "risks", "opportunities", "summary", "recommendations", "keyClauses",
		"legalCompliance", "negotiationPoints", "contractDuration", "terminationConditions",
		"overallScore", "language", "financialTerms", "performanceMetrics", "specificClauses",
	}
	levelSynonyms = map[string]contracts.Level{
		"low":        contracts.LevelLow,
		"minor":      contracts.LevelLow,
		"minimal":    contracts.LevelLow,
		"negligible": contracts.LevelLow,
		"very low":   contracts.LevelLow,
		"medium":     contracts.LevelMedium,
		"med":        contracts.LevelMedium,
		"moderate":   contracts.LevelMedium,
		"mid":        contracts.LevelMedium,
		"high":       contracts.LevelHigh,
		"very high":  contracts.LevelHigh,
		"severe":     contracts.LevelHigh,
		"critical":   contracts.LevelHigh,
		"major":      contracts.LevelHigh,
	}
)

// normalizeAnalysis rewrites a decoded reply in place so that small
// deviations from the prompt contract still validate:
//   - snake_case keys are renamed to their camelCase form
//   - severity/impact are lowercased and mapped from common synonyms
//   - a numeric or numeric-string score is rounded to an integer
//   - risk/opportunity items with a blank description are dropped
//   - missing or null optional fields get empty defaults
//   - unknown keys are removed
//
// Required fields are never invented. It returns what it changed, for logs.
func normalizeAnalysis(m map[string]any, ct contracts.ContractType) []string {
	var changed []string

	for _, k := range analysisKeys {
		if snake := toSnake(k); snake != k {
			if rename(m, snake, k) {
				changed = append(changed, snake+"->"+k)
			}
		}
	}
	if rename(m, "score", "overallScore") {
		changed = append(changed, "score->overallScore")
	}

	m["contractType"] = string(ct)

	for _, k := range []string{"risks", "opportunities"} {
		if m[k] == nil {
			delete(m, k)
		}
	}
	changed = append(changed, normalizeItems(m, "risks", "severity")...)
	changed = append(changed, normalizeItems(m, "opportunities", "impact")...)

	if s, ok := m["summary"].(string); ok {
		m["summary"] = strings.TrimSpace(s)
	} else if m["summary"] == nil {
		delete(m, "summary")
	}

	switch v := m["overallScore"].(type) {
	case float64:
		if v != math.Trunc(v) {
			m["overallScore"] = math.Round(v)
			changed = append(changed, "overallScore(round)")
		}
	case string:
		if f, err := strconv.ParseFloat(strings.TrimSuffix(strings.TrimSpace(v), "%"), 64); err == nil {
			m["overallScore"] = math.Round(f)
			changed = append(changed, "overallScore(string)")
		}
	case nil:
		delete(m, "overallScore")
	}

	for _, k := range optionalStrings {
		if s, ok := m[k].(string); ok {
			m[k] = strings.TrimSpace(s)
		} else if m[k] == nil {
			m[k] = ""
		}
	}
	for _, k := range optionalLists {
		m[k] = stringList(m[k])
	}

	if s, ok := m["language"].(string); !ok || strings.TrimSpace(s) == "" {
		m["language"] = contracts.DefaultLanguage
	} else {
		m["language"] = strings.ToLower(strings.TrimSpace(s))
	}

	ft, _ := m["financialTerms"].(map[string]any)
	if ft == nil {
		ft = map[string]any{}
	}
	desc, _ := ft["description"].(string)
	m["financialTerms"] = map[string]any{
		"description": strings.TrimSpace(desc),
		"details":     stringList(ft["details"]),
	}

	allowed := make(map[string]struct{}, len(analysisKeys))
	for _, k := range analysisKeys {
		allowed[k] = struct{}{}
	}
	for k := range maps.Clone(m) {
		if _, ok := allowed[k]; !ok {
			delete(m, k)
			changed = append(changed, k+"(unknown)")
		}
	}
	return changed
}

func normalizeItems(m map[string]any, listKey, levelKey string) []string {
	items, ok := m[listKey].([]any)
	if !ok {
		return nil
	}
	var changed []string
	kept := items[:0]
	for _, it := range items {
		obj, ok := it.(map[string]any)
		if !ok {
			kept = append(kept, it)
			continue
		}
		if d, isStr := obj["description"].(string); obj["description"] == nil || (isStr && strings.TrimSpace(d) == "") {
			changed = append(changed, listKey+"(blank item)")
			continue
		}
		kept = append(kept, it)
		if _, ok := obj[levelKey]; !ok {
			for _, alt := range []string{"level", "rating", "priority"} {
				if rename(obj, alt, levelKey) {
					changed = append(changed, alt+"->"+levelKey)
					break
				}
			}
		}
		if s, ok := obj[levelKey].(string); ok {
			key := strings.ToLower(strings.TrimSpace(s))
			if l, ok := levelSynonyms[key]; ok && string(l) != s {
				obj[levelKey] = string(l)
				changed = append(changed, levelKey+"("+s+")")
			}
		}
		if s, ok := obj["description"].(string); ok {
			obj["description"] = strings.TrimSpace(s)
		}
		if s, ok := obj["explanation"].(string); ok {
			obj["explanation"] = strings.TrimSpace(s)
		} else if obj["explanation"] == nil {
			obj["explanation"] = ""
		}
		for k := range maps.Clone(obj) {
			if k != "description" && k != "explanation" && k != levelKey {
				delete(obj, k)
				changed = append(changed, k+"(unknown)")
			}
		}
	}
	m[listKey] = kept
	return changed
}

// stringList keeps non-empty strings, wraps a lone string, and turns null into [].
func stringList(v any) []any {
	out := []any{}
	switch t := v.(type) {
	case string:
		if s := strings.TrimSpace(t); s != "" {
			out = append(out, s)
		}
	case []any:
		for _, e := range t {
			switch x := e.(type) {
			case string:
				if s := strings.TrimSpace(x); s != "" {
					out = append(out, s)
				}
			case float64, bool:
				out = append(out, strings.TrimSpace(jsonString(x)))
			}
		}
	}
	return out
}

func jsonString(v any) string {
	b, _ := json.Marshal(v)
	return string(b)
}

func rename(m map[string]any, from, to string) bool {
	v, ok := m[from]
	if !ok {
		return false
	}
	if _, exists := m[to]; !exists {
		m[to] = v
	}
	delete(m, from)
	return true
}

func toSnake(s string) string {
	var b strings.Builder
	for i, r := range s {
		if unicode.IsUpper(r) {
			if i > 0 {
				b.WriteByte('_')
			}
			b.WriteRune(unicode.ToLower(r))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}
