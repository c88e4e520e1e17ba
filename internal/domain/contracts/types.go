package contracts

import (
	"strings"
	"unicode"
)

// ContractType is a label from a closed set shared by detection, analysis and storage.
type ContractType string

const (
	TypeEmployment   ContractType = "Employment"
	TypeService      ContractType = "Service"
	TypeLease        ContractType = "Lease"
	TypeNDA          ContractType = "NDA"
	TypeSales        ContractType = "Sales"
	TypePurchase     ContractType = "Purchase"
	TypePartnership  ContractType = "Partnership"
	TypeConstruction ContractType = "Construction"
	TypeOther        ContractType = "Other"
)

// DefaultType is used when a label cannot be matched to a known type.
const DefaultType = TypeOther

var allTypes = []ContractType{
	TypeEmployment,
	TypeService,
	TypeLease,
	TypeNDA,
	TypeSales,
	TypePurchase,
	TypePartnership,
	TypeConstruction,
	TypeOther,
}

// synonyms maps lowercase phrases that show up in free-text answers to labels.
var synonyms = map[string]ContractType{
	"nda":                TypeNDA,
	"non-disclosure":     TypeNDA,
	"non disclosure":     TypeNDA,
	"nondisclosure":      TypeNDA,
	"confidentiality":    TypeNDA,
	"employment":         TypeEmployment,
	"employee":           TypeEmployment,
	"labor":              TypeEmployment,
	"labour":             TypeEmployment,
	"rental":             TypeLease,
	"tenancy":            TypeLease,
	"rent":               TypeLease,
	"lease":              TypeLease,
	"services":           TypeService,
	"service":            TypeService,
	"consulting":         TypeService,
	"sale":               TypeSales,
	"sales":              TypeSales,
	"purchase":           TypePurchase,
	"procurement":        TypePurchase,
	"supply":             TypePurchase,
	"partnership":        TypePartnership,
	"joint venture":      TypePartnership,
	"construction":       TypeConstruction,
	"subcontract":        TypeConstruction,
	"building":           TypeConstruction,
	"general contractor": TypeConstruction,
}

// Types returns every known contract type.
func Types() []ContractType {
	out := make([]ContractType, len(allTypes))
	copy(out, allTypes)
	return out
}

// TypeNames returns the labels as plain strings, in declaration order.
func TypeNames() []string {
	out := make([]string, len(allTypes))
	for i, t := range allTypes {
		out[i] = string(t)
	}
	return out
}

// Valid reports whether t is a member of the closed set.
func (t ContractType) Valid() bool {
	for _, k := range allTypes {
		if k == t {
			return true
		}
	}
	return false
}

// ParseType accepts an exact or case-insensitive label. It does not guess.
func ParseType(s string) (ContractType, bool) {
	s = strings.TrimSpace(s)
	for _, k := range allTypes {
		if string(k) == s {
			return k, true
		}
	}
	for _, k := range allTypes {
		if strings.EqualFold(string(k), s) {
			return k, true
		}
	}
	return "", false
}

// NormalizeType maps free text to the closest known label and falls back to
// DefaultType. The result is always a member of the closed set. Synonym
// phrases are tried before partial label matches. When several phrases
// match, the one appearing first in s wins, then the longer phrase.
func NormalizeType(s string) ContractType {
	s = strings.Trim(strings.TrimSpace(s), `"'.`+"`")
	if t, ok := ParseType(s); ok {
		return t
	}
	words := wordsOf(s)
	if strings.TrimSpace(words) == "" {
		return DefaultType
	}
	best, bestAt, bestKey := DefaultType, -1, ""
	for k, t := range synonyms {
		at := strings.Index(words, " "+k+" ")
		if at < 0 {
			continue
		}
		if bestAt < 0 || at < bestAt ||
			(at == bestAt && (len(k) > len(bestKey) || (len(k) == len(bestKey) && k < bestKey))) {
			best, bestAt, bestKey = t, at, k
		}
	}
	if bestAt >= 0 {
		return best
	}
	return partialLabel(words)
}

// partialLabel matches words against label fragments: "employ" for
// Employment, "subleases" or "leasing" for Lease. Labels and words shorter
// than five letters only match whole.
func partialLabel(words string) ContractType {
	for _, w := range strings.Fields(words) {
		if len(w) < 5 {
			continue
		}
		for _, t := range allTypes {
			if t == DefaultType {
				continue
			}
			label := strings.ToLower(string(t))
			if len(label) < 5 {
				continue
			}
			stem := strings.TrimSuffix(label, "e")
			if strings.HasPrefix(label, w) || strings.Contains(w, label) || strings.HasPrefix(w, stem) {
				return t
			}
		}
	}
	return DefaultType
}

// wordsOf lowercases s and keeps letters, digits and hyphens, separating
// words by single spaces and padding both ends so phrases can be matched
// on word boundaries.
func wordsOf(s string) string {
	var b strings.Builder
	b.WriteByte(' ')
	space := true
	for _, r := range strings.ToLower(s) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || r == '-' {
			b.WriteRune(r)
			space = false
			continue
		}
		if !space {
			b.WriteByte(' ')
			space = true
		}
	}
	if !space {
		b.WriteByte(' ')
	}
	return b.String()
}
