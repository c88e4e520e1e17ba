package middleware

import (
	"fmt"
	"net"
	"net/url"
	"regexp"
	"strings"

	"github.com/bryanwahyu/contract-analysis/internal/domain/contracts"
)

var (
	userIDPattern     = regexp.MustCompile(`^[a-zA-Z0-9_.@-]{1,128}$`)
	analysisIDPattern = regexp.MustCompile(`^[a-zA-Z0-9_-]{1,64}$`)
)

// ValidateURL checks the scheme and, unless allowPrivate is set, refuses
// loopback, private and link-local hosts (SSRF protection).
func ValidateURL(rawURL string, allowPrivate bool) error {
	if rawURL == "" {
		return fmt.Errorf("URL cannot be empty")
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("invalid URL format: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("invalid URL scheme: %s (allowed: http, https)", u.Scheme)
	}
	host := strings.ToLower(u.Hostname())
	if host == "" {
		return fmt.Errorf("URL has no host")
	}
	if allowPrivate {
		return nil
	}
	if host == "localhost" || strings.HasSuffix(host, ".localhost") {
		return fmt.Errorf("localhost/internal IPs are not allowed")
	}
	if ip := net.ParseIP(host); ip != nil {
		if ip.IsLoopback() || ip.IsUnspecified() {
			return fmt.Errorf("localhost/internal IPs are not allowed")
		}
		if ip.IsPrivate() || ip.IsLinkLocalUnicast() || ip.IsLinkLocalMulticast() {
			return fmt.Errorf("private IP ranges are not allowed")
		}
	}
	return nil
}

// SanitizeString removes dangerous characters from strings
func SanitizeString(input string) string {
	input = strings.ReplaceAll(input, "\x00", "")

	var result strings.Builder
	for _, r := range input {
		if r >= 32 || r == '\t' || r == '\n' {
			result.WriteRune(r)
		}
	}
	return strings.TrimSpace(result.String())
}

// ValidateUserID validates user ID format
func ValidateUserID(userID string) error {
	if userID == "" {
		return fmt.Errorf("user ID cannot be empty")
	}
	if !userIDPattern.MatchString(userID) {
		return fmt.Errorf("invalid user ID format (letters, digits, . _ @ - only, max 128 chars)")
	}
	return nil
}

// ValidateAnalysisID validates analysis ID format
func ValidateAnalysisID(id string) error {
	if id == "" {
		return fmt.Errorf("analysis ID cannot be empty")
	}
	if !analysisIDPattern.MatchString(id) {
		return fmt.Errorf("invalid analysis ID format")
	}
	return nil
}

// ValidateContractType accepts "" (detect) or a known label in any case.
func ValidateContractType(ct string) error {
	if strings.TrimSpace(ct) == "" {
		return nil
	}
	if _, ok := contracts.ParseType(ct); !ok {
		return fmt.Errorf("invalid contract type: %s (allowed: %s)", ct, strings.Join(contracts.TypeNames(), ", "))
	}
	return nil
}

// ValidateLimit validates pagination limit
func ValidateLimit(limit int) int {
	if limit <= 0 {
		return 20 // default
	}
	if limit > 100 {
		return 100 // max limit
	}
	return limit
}

// ValidatePage clamps a 1-based page number.
func ValidatePage(page int) int {
	if page < 1 {
		return 1
	}
	return page
}
