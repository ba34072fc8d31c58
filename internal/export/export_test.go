package export_test

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/edgard/chattop/internal/export"
	"github.com/edgard/chattop/internal/leaderboard"
)

type fakeComputer struct {
	results map[leaderboard.Scope]*leaderboard.Result
	err     error
}

func (f fakeComputer) Compute(_ context.Context, chatID int64, scope leaderboard.Scope, _ int64) (*leaderboard.Result, error) {
	if f.err != nil {
		return nil, f.err
	}
	if res, ok := f.results[scope]; ok {
		return res, nil
	}
	return &leaderboard.Result{Title: "Chat", Scope: scope, ChatID: chatID}, nil
}

func TestExportWritesEveryScope(t *testing.T) {
	t.Parallel()

	computer := fakeComputer{results: map[leaderboard.Scope]*leaderboard.Result{
		leaderboard.Daily: {
			Title: "Chat", Scope: leaderboard.Daily, Total: 8,
			Rows: []leaderboard.Row{
				{Rank: 1, UserID: 10, Name: "@alice", Count: 5},
				{Rank: 2, UserID: 20, Name: "Bob", Count: 3},
			},
		},
	}}

	data, err := export.NewExporter(computer, nil).Export(context.Background(), -100)
	if err != nil {
		t.Fatalf("Export() error = %v", err)
	}

	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("OpenReader() error = %v", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) != len(leaderboard.Scopes) {
		t.Fatalf("sheets = %v, want %d", sheets, len(leaderboard.Scopes))
	}
	if sheets[0] != leaderboard.Daily.Label() {
		t.Errorf("first sheet = %q, want %q", sheets[0], leaderboard.Daily.Label())
	}

	rows, err := f.GetRows(leaderboard.Daily.Label())
	if err != nil {
		t.Fatalf("GetRows() error = %v", err)
	}
	if len(rows) < 4 {
		t.Fatalf("rows = %v", rows)
	}
	if rows[1][0] != "Rank" || rows[2][2] != "@alice" || rows[3][3] != "3" {
		t.Errorf("unexpected rows %v", rows)
	}
}

func TestExportEmptyAndErrors(t *testing.T) {
	t.Parallel()

	if _, err := export.NewExporter(fakeComputer{}, nil).Export(context.Background(), 1); !errors.Is(err, export.ErrEmpty) {
		t.Errorf("Export() error = %v, want ErrEmpty", err)
	}

	failing := fakeComputer{err: leaderboard.ErrUnavailable}
	if _, err := export.NewExporter(failing, nil).Export(context.Background(), 1); !errors.Is(err, leaderboard.ErrUnavailable) {
		t.Errorf("Export() error = %v, want ErrUnavailable", err)
	}
}

func TestFileName(t *testing.T) {
	t.Parallel()

	got := export.FileName(-100, time.Date(2024, 3, 5, 7, 8, 9, 0, time.UTC))
	if got != "leaderboard_-100_20240305_070809.xlsx" {
		t.Errorf("FileName() = %q", got)
	}
}
