package contracts

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"unicode"

	domain "github.com/bryanwahyu/contract-analysis/internal/domain/contracts"
)

// UploadCommand is a PDF the caller wants hosted before analysis.
type UploadCommand struct {
	UserID      string
	FileName    string
	ContentType string
	Size        int64
	Body        io.Reader
}

// Upload stores the document and returns the attachment to pass to Analyze.
func (s *Service) Upload(ctx context.Context, cmd UploadCommand) (*domain.Attachment, error) {
	if s.Files == nil {
		return nil, domain.ErrStorageDisabled
	}
	userID := strings.TrimSpace(cmd.UserID)
	if userID == "" {
		return nil, domain.Invalid("userId is required")
	}
	if cmd.Body == nil || cmd.Size <= 0 {
		return nil, domain.Invalid("file is empty")
	}
	if !isPDF(cmd.FileName, cmd.ContentType) {
		return nil, domain.Invalid("only PDF files are accepted")
	}

	name := sanitizeFileName(cmd.FileName)
	key := fmt.Sprintf("contracts/%s/%s-%s", sanitizeFileName(userID), s.ids().NewID(), name)
	u, err := s.Files.Upload(ctx, key, cmd.Body, cmd.Size, "application/pdf")
	if err != nil {
		s.logger(ctx).Error("upload.failed", "user_id", userID, "key", key, "err", err)
		return nil, err
	}
	s.logger(ctx).Info("upload.ok", "user_id", userID, "key", key, "bytes", cmd.Size)
	return &domain.Attachment{FileName: name, FileURL: u}, nil
}

func isPDF(name, contentType string) bool {
	ct := strings.ToLower(strings.TrimSpace(contentType))
	if i := strings.IndexByte(ct, ';'); i >= 0 {
		ct = strings.TrimSpace(ct[:i])
	}
	return ct == "application/pdf" || strings.EqualFold(filepath.Ext(name), ".pdf")
}

// sanitizeFileName keeps letters, digits, dot, dash and underscore.
func sanitizeFileName(name string) string {
	name = filepath.Base(strings.ReplaceAll(name, `\`, "/"))
	var b strings.Builder
	for _, r := range name {
		switch {
		case r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r)), r == '.', r == '-', r == '_':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	out := strings.Trim(b.String(), "._")
	if out == "" {
		return "contract.pdf"
	}
	return out
}
