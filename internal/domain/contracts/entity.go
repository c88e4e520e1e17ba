package contracts

import "time"

// AnalysisID identifier type
type AnalysisID string

// Level is the closed scale used for risk severity and opportunity impact.
type Level string

const (
	LevelLow    Level = "low"
	LevelMedium Level = "medium"
	LevelHigh   Level = "high"
)

// Levels returns the accepted level values in ascending order.
func Levels() []string {
	return []string{string(LevelLow), string(LevelMedium), string(LevelHigh)}
}

// Valid reports whether l is one of low, medium or high.
func (l Level) Valid() bool {
	switch l {
	case LevelLow, LevelMedium, LevelHigh:
		return true
	}
	return false
}

const (
	DefaultLanguage = "en"
	MinScore        = 0
	MaxScore        = 100
)

type RiskItem struct {
	Description string `json:"description"`
	Explanation string `json:"explanation"`
	Severity    Level  `json:"severity"`
}

type OpportunityItem struct {
	Description string `json:"description"`
	Explanation string `json:"explanation"`
	Impact      Level  `json:"impact"`
}

type FinancialTerms struct {
	Description string   `json:"description"`
	Details     []string `json:"details"`
}

// Attachment references the source file an analysis was produced from.
type Attachment struct {
	FileName string `json:"fileName"`
	FileURL  string `json:"fileUrl"`
}

// Payload is the validated analyzer output before provenance is attached.
type Payload struct {
	ContractType          ContractType      `json:"contractType"`
	Risks                 []RiskItem        `json:"risks"`
	Opportunities         []OpportunityItem `json:"opportunities"`
	Summary               string            `json:"summary"`
	Recommendations       []string          `json:"recommendations"`
	KeyClauses            []string          `json:"keyClauses"`
	LegalCompliance       string            `json:"legalCompliance"`
	NegotiationPoints     []string          `json:"negotiationPoints"`
	ContractDuration      string            `json:"contractDuration"`
	TerminationConditions string            `json:"terminationConditions"`
	OverallScore          int               `json:"overallScore"`
	Language              string            `json:"language"`
	FinancialTerms        FinancialTerms    `json:"financialTerms"`
	PerformanceMetrics    []string          `json:"performanceMetrics"`
	SpecificClauses       string            `json:"specificClauses"`
	AIModel               string            `json:"aiModel"`
}

// ContractAnalysis is the persisted record. Records are never updated once created.
type ContractAnalysis struct {
	ID           AnalysisID   `json:"id"`
	UserID       string       `json:"userId"`
	ContractText string       `json:"contractText"`
	Attachments  []Attachment `json:"attachments"`
	Payload
	CreatedAt time.Time `json:"createdAt"`
}

// OwnedAnalysis is a record joined with its owner's display name.
type OwnedAnalysis struct {
	ContractAnalysis
	UserName string `json:"userName"`
}

// UnknownUserName is shown when the owner's display name cannot be resolved.
const UnknownUserName = "Unknown"

// NewAnalysis merges analyzer output with provenance. ID and CreatedAt are
// assigned by the caller at write time.
func NewAnalysis(userID string, ct ContractType, text string, att Attachment, p Payload) *ContractAnalysis {
	p.ContractType = ct
	if p.Language == "" {
		p.Language = DefaultLanguage
	}
	return &ContractAnalysis{
		UserID:       userID,
		ContractText: text,
		Attachments:  []Attachment{att},
		Payload:      p,
	}
}
