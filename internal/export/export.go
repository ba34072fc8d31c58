// Package export writes leaderboards to an XLSX workbook, one sheet per scope.
package export

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/edgard/chattop/internal/leaderboard"
)

// ErrEmpty is returned when no scope has any counted message.
var ErrEmpty = errors.New("nothing to export")

// MIMEType is the content type of the produced workbook.
const MIMEType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

var header = []any{"Rank", "User ID", "Name", "Messages"}

// Computer computes one leaderboard.
type Computer interface {
	Compute(ctx context.Context, chatID int64, scope leaderboard.Scope, requesterID int64) (*leaderboard.Result, error)
}

// Exporter builds leaderboard workbooks.
type Exporter struct {
	computer Computer
	scopes   []leaderboard.Scope
	logger   *slog.Logger
}

// NewExporter creates an Exporter over every leaderboard scope.
func NewExporter(computer Computer, logger *slog.Logger) *Exporter {
	if logger == nil {
		logger = slog.Default()
	}
	return &Exporter{
		computer: computer,
		scopes:   leaderboard.Scopes,
		logger:   logger.With("component", "export"),
	}
}

// FileName returns the attachment name for chatID's export taken at now.
func FileName(chatID int64, now time.Time) string {
	return fmt.Sprintf("leaderboard_%d_%s.xlsx", chatID, now.UTC().Format("20060102_150405"))
}

// Export computes every scope for chatID and returns the workbook bytes.
func (e *Exporter) Export(ctx context.Context, chatID int64) ([]byte, error) {
	results := make([]*leaderboard.Result, 0, len(e.scopes))
	var total int64
	for _, scope := range e.scopes {
		res, err := e.computer.Compute(ctx, chatID, scope, 0)
		if err != nil {
			return nil, fmt.Errorf("failed to compute %s leaderboard: %w", scope, err)
		}
		results = append(results, res)
		total += res.Total
	}
	if total == 0 {
		return nil, ErrEmpty
	}

	f := excelize.NewFile()
	defer func() {
		if err := f.Close(); err != nil {
			e.logger.WarnContext(ctx, "Failed to close workbook", "error", err)
		}
	}()

	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return nil, fmt.Errorf("failed to create header style: %w", err)
	}

	for i, res := range results {
		sheet := res.Scope.Label()
		if i == 0 {
			if err := f.SetSheetName("Sheet1", sheet); err != nil {
				return nil, fmt.Errorf("failed to rename sheet: %w", err)
			}
		} else if _, err := f.NewSheet(sheet); err != nil {
			return nil, fmt.Errorf("failed to create sheet %q: %w", sheet, err)
		}
		if err := writeSheet(f, sheet, res, bold); err != nil {
			return nil, fmt.Errorf("failed to write sheet %q: %w", sheet, err)
		}
	}
	f.SetActiveSheet(0)

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("failed to write workbook: %w", err)
	}
	e.logger.InfoContext(ctx, "Leaderboard export built", "chat_id", chatID, "sheets", len(results), "bytes", buf.Len())
	return buf.Bytes(), nil
}

func writeSheet(f *excelize.File, sheet string, res *leaderboard.Result, headerStyle int) error {
	if err := f.SetSheetRow(sheet, "A1", &[]any{res.Title, res.Scope.Label()}); err != nil {
		return err
	}
	if err := f.SetSheetRow(sheet, "A2", &header); err != nil {
		return err
	}
	if err := f.SetCellStyle(sheet, "A1", "D2", headerStyle); err != nil {
		return err
	}

	row := 3
	for _, r := range res.Rows {
		cell, err := excelize.CoordinatesToCellName(1, row)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(sheet, cell, &[]any{r.Rank, r.UserID, r.Name, r.Count}); err != nil {
			return err
		}
		row++
	}

	cell, err := excelize.CoordinatesToCellName(3, row+1)
	if err != nil {
		return err
	}
	if err := f.SetSheetRow(sheet, cell, &[]any{"Total", res.Total}); err != nil {
		return err
	}

	if err := f.SetColWidth(sheet, "B", "B", 14); err != nil {
		return err
	}
	return f.SetColWidth(sheet, "C", "C", 30)
}
