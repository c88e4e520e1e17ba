package prompt

import (
	"fmt"
	"strings"

	"github.com/bryanwahyu/contract-analysis/internal/domain/contracts"
)

// ClassifySystemPrompt asks for exactly one label from the closed set.
func ClassifySystemPrompt() string {
	labels := contracts.TypeNames()
	return fmt.Sprintf(`You classify legal agreements. Choose exactly one contract type from this list based on the document content: %s.
If none fits, answer "%s".
Respond with one JSON object only, no commentary: {"contractType": "<one label from the list>"}`,
		strings.Join(labels, ", "), contracts.DefaultType)
}

// ClassifyUserPrompt wraps a bounded prefix of the document.
func ClassifyUserPrompt(text string, sampleChars int) string {
	return "Which contract type is this document?\n\nDOCUMENT:\n" + Truncate(text, sampleChars)
}
