package leaderboard

import (
	"fmt"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/go-telegram/bot"
)

// maxNameRunes is the display budget for a name before it is truncated.
const maxNameRunes = 22

var medals = [...]string{"🥇", "🥈", "🥉"}

// EscapeMarkdownV2 escapes every MarkdownV2 metacharacter in s, including
// the backslash itself. All user-controlled text goes through it.
func EscapeMarkdownV2(s string) string {
	parts := strings.Split(s, `\`)
	for i, p := range parts {
		parts[i] = bot.EscapeMarkdown(p)
	}
	return strings.Join(parts, `\\`)
}

// DisplayName is the label shown for a row: the stored name truncated to the
// display budget, or the numeric user id when the name has no letter or digit.
func DisplayName(r Row) string {
	if !hasAlnum(r.Name) {
		return strconv.FormatInt(r.UserID, 10)
	}
	return truncate(r.Name, maxNameRunes)
}

func hasAlnum(s string) bool {
	for _, r := range s {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			return true
		}
	}
	return false
}

func truncate(s string, limit int) string {
	if utf8.RuneCountInString(s) <= limit {
		return s
	}
	return string([]rune(s)[:limit]) + "…"
}

// Caption renders res as a MarkdownV2 photo caption.
func Caption(res *Result) string {
	var b strings.Builder
	esc := EscapeMarkdownV2

	fmt.Fprintf(&b, "🏆 *%s*\n", esc(res.Title))
	fmt.Fprintf(&b, "_%s_\n\n", esc(res.Scope.Label()+" leaderboard"))

	if len(res.Rows) == 0 {
		b.WriteString(esc("No messages in this period yet."))
		b.WriteString("\n")
	}
	for _, r := range res.Rows {
		prefix := esc(fmt.Sprintf("%d.", r.Rank))
		if r.Rank >= 1 && r.Rank <= len(medals) {
			prefix = medals[r.Rank-1]
		}
		fmt.Fprintf(&b, "%s %s %s\n", prefix, esc(DisplayName(r)), esc(fmt.Sprintf("- %d", r.Count)))
	}

	fmt.Fprintf(&b, "\n%s *%s*", esc("Total messages:"), esc(strconv.FormatInt(res.Total, 10)))
	if res.Requester != nil {
		fmt.Fprintf(&b, "\n%s", esc(fmt.Sprintf("Your rank: #%d with %d messages", res.Requester.Rank, res.Requester.Count)))
	}
	return b.String()
}
