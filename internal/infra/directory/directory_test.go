package directory

import (
	"context"
	"testing"

	"github.com/bryanwahyu/contract-analysis/internal/config"
)

func TestDisplayName(t *testing.T) {
	d := New([]config.User{
		{ID: "u1", DisplayName: "Alice"},
		{ID: "u2", DisplayName: "  "},
	})
	tests := []struct {
		id     string
		want   string
		wantOK bool
	}{
		{"u1", "Alice", true},
		{"u2", "", false},
		{"ghost", "", false},
	}
	for _, tt := range tests {
		got, ok, err := d.DisplayName(context.Background(), tt.id)
		if err != nil {
			t.Fatalf("%s: %v", tt.id, err)
		}
		if got != tt.want || ok != tt.wantOK {
			t.Errorf("DisplayName(%q) = %q, %v; want %q, %v", tt.id, got, ok, tt.want, tt.wantOK)
		}
	}
}
