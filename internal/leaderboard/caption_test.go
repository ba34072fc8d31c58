package leaderboard_test

import (
	"strings"
	"testing"

	"github.com/edgard/chattop/internal/leaderboard"
)

func sampleResult() *leaderboard.Result {
	return &leaderboard.Result{
		Title: "Dev_Chat (main)",
		Scope: leaderboard.Daily,
		Rows: []leaderboard.Row{
			{Rank: 1, UserID: 10, Name: "*bold*", Count: 5},
			{Rank: 2, UserID: 30, Name: "carol", Count: 5},
			{Rank: 3, UserID: 20, Name: `back\slash`, Count: 3},
			{Rank: 4, UserID: 40, Name: "💥💥", Count: 1},
		},
		Total:     14,
		Requester: &leaderboard.RequesterStat{Rank: 2, Count: 5},
	}
}

func TestEscapeMarkdownV2(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   string
		want string
	}{
		{"plain", "plain"},
		{"*bold*", `\*bold\*`},
		{"a_b.c!", `a\_b\.c\!`},
		{`back\slash`, `back\\slash`},
		{"[link](x)", `\[link\]\(x\)`},
	}
	for _, tt := range tests {
		if got := leaderboard.EscapeMarkdownV2(tt.in); got != tt.want {
			t.Errorf("EscapeMarkdownV2(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestCaptionEscapesUserContent(t *testing.T) {
	t.Parallel()

	caption := leaderboard.Caption(sampleResult())

	for _, want := range []string{`\*bold\*`, `back\\slash`, `Dev\_Chat \(main\)`, "🥇", "🥈", "🥉", `4\.`} {
		if !strings.Contains(caption, want) {
			t.Errorf("caption missing %q:\n%s", want, caption)
		}
	}
	if strings.Contains(caption, " *bold* ") {
		t.Errorf("caption contains unescaped user markup:\n%s", caption)
	}
	// A name without letters or digits is replaced by the user id.
	if !strings.Contains(caption, "40") || strings.Contains(caption, "💥") {
		t.Errorf("caption should show user id instead of symbol-only name:\n%s", caption)
	}
	if !strings.Contains(caption, `Your rank: \#2 with 5 messages`) {
		t.Errorf("caption missing requester line:\n%s", caption)
	}
}

func TestCaptionIsIdempotent(t *testing.T) {
	t.Parallel()

	res := sampleResult()
	if a, b := leaderboard.Caption(res), leaderboard.Caption(res); a != b {
		t.Errorf("Caption() not idempotent:\n%s\n---\n%s", a, b)
	}
}

func TestCaptionEmpty(t *testing.T) {
	t.Parallel()

	caption := leaderboard.Caption(&leaderboard.Result{Title: "Global", Scope: leaderboard.Global})
	if !strings.Contains(caption, "No messages in this period yet") {
		t.Errorf("empty caption = %q", caption)
	}
	if strings.Contains(caption, "Your rank") {
		t.Errorf("empty caption should not include a requester line")
	}
}

func TestDisplayName(t *testing.T) {
	t.Parallel()

	tests := []struct {
		row  leaderboard.Row
		want string
	}{
		{leaderboard.Row{UserID: 1, Name: "alice"}, "alice"},
		{leaderboard.Row{UserID: 2, Name: "😀😀"}, "2"},
		{leaderboard.Row{UserID: 3, Name: ""}, "3"},
		{leaderboard.Row{UserID: 4, Name: "abcdefghijklmnopqrstuvwxyz"}, "abcdefghijklmnopqrstuv…"},
		{leaderboard.Row{UserID: 5, Name: "ÀÉÎÕÜàéîõüÀÉÎÕÜàéîõüÀÉ"}, "ÀÉÎÕÜàéîõüÀÉÎÕÜàéîõüÀÉ"},
	}
	for _, tt := range tests {
		if got := leaderboard.DisplayName(tt.row); got != tt.want {
			t.Errorf("DisplayName(%+v) = %q, want %q", tt.row, got, tt.want)
		}
	}
}
