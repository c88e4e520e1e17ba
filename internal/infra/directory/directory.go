// Package directory resolves user display names from configuration.
package directory

import (
	"context"
	"strings"

	"github.com/bryanwahyu/contract-analysis/internal/config"
)

// Static is an in-memory user directory.
type Static struct {
	names map[string]string
}

func New(users []config.User) *Static {
	names := make(map[string]string, len(users))
	for _, u := range users {
		names[u.ID] = strings.TrimSpace(u.DisplayName)
	}
	return &Static{names: names}
}

// DisplayName reports ok=false for unknown users and for users without a name.
func (s *Static) DisplayName(_ context.Context, userID string) (string, bool, error) {
	name, ok := s.names[userID]
	if !ok || name == "" {
		return "", false, nil
	}
	return name, true, nil
}
