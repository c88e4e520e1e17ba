package contracts

import (
	"context"
	"fmt"
	"time"
	"unicode/utf8"

	"github.com/xuri/excelize/v2"

	domain "github.com/bryanwahyu/contract-analysis/internal/domain/contracts"
)

const exportSheet = "Analyses"

// ExportXLSX returns every stored analysis as an XLSX workbook, newest first.
func (s *Service) ExportXLSX(ctx context.Context) ([]byte, error) {
	start := time.Now()

	var rows []*domain.OwnedAnalysis
	for page := 1; ; page++ {
		recs, err := s.Repo.ListAll(ctx, page, MaxPageSize)
		if err != nil {
			return nil, fmt.Errorf("query analyses: %w", err)
		}
		rows = append(rows, s.withNames(ctx, recs)...)
		if len(recs) < MaxPageSize {
			break
		}
	}

	f := excelize.NewFile()
	defer f.Close()
	if err := f.SetSheetName("Sheet1", exportSheet); err != nil {
		return nil, err
	}

	headers := []string{
		"Created At",
		"Owner",
		"Contract Type",
		"Score",
		"Summary",
		"Risks",
		"File Name",
		"File URL",
	}
	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		_ = f.SetCellValue(exportSheet, cell, h)
	}

	for i, r := range rows {
		row := i + 2
		write := func(col int, v any) {
			cell, _ := excelize.CoordinatesToCellName(col, row)
			_ = f.SetCellValue(exportSheet, cell, v)
		}
		write(1, r.CreatedAt.UTC().Format(time.RFC3339))
		write(2, r.UserName)
		write(3, string(r.ContractType))
		write(4, r.OverallScore)
		write(5, truncate(r.Summary, 200))
		write(6, len(r.Risks))
		var name, link string
		if len(r.Attachments) > 0 {
			name, link = r.Attachments[0].FileName, r.Attachments[0].FileURL
		}
		write(7, name)
		write(8, link)
	}

	_ = f.SetColWidth(exportSheet, "A", "A", 22)
	_ = f.SetColWidth(exportSheet, "B", "C", 18)
	_ = f.SetColWidth(exportSheet, "E", "E", 60)
	_ = f.SetColWidth(exportSheet, "G", "G", 28)
	_ = f.SetColWidth(exportSheet, "H", "H", 60)

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("xlsx write: %w", err)
	}
	s.logger(ctx).Info("export.xlsx.ok",
		"rows", len(rows),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return buf.Bytes(), nil
}

func truncate(s string, n int) string {
	if n <= 0 || utf8.RuneCountInString(s) <= n {
		return s
	}
	r := []rune(s)
	return string(r[:n-1]) + "…"
}
