package pipeline

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"

	"wikignome/internal"
)

func ExportEditReportToXLSX(rows []internal.EditReportRow, outputPath string) error {
	f := excelize.NewFile()
	sheet := f.GetSheetName(0)

	headers := []string{
		"title", "kind", "edit_summary", "fired_rules",
		"old_hash", "new_hash", "dry_run", "created_at",
	}

	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		_ = f.SetCellValue(sheet, cell, h)
	}

	for i, row := range rows {
		r := i + 2
		set := func(col int, value any) {
			cell, _ := excelize.CoordinatesToCellName(col, r)
			_ = f.SetCellValue(sheet, cell, value)
		}

		set(1, row.Title)
		set(2, row.Kind)
		set(3, row.Summary)
		set(4, strings.Join(row.Fired, " | "))
		set(5, row.OldHash)
		set(6, row.NewHash)
		set(7, row.DryRun)
		set(8, row.CreatedAt)
	}

	if err := os.MkdirAll(filepath.Dir(outputPath), 0o755); err != nil {
		return err
	}
	return f.SaveAs(outputPath)
}
