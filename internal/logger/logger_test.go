package logger

import (
	"log/slog"
	"testing"

	"github.com/go-telegram/bot/models"
)

func TestSummarize(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		update *models.Update
		want   UpdateSummary
	}{
		{
			name:   "nil update",
			update: nil,
			want:   UpdateSummary{Type: "nil"},
		},
		{
			name: "text message",
			update: &models.Update{Message: &models.Message{
				Chat: models.Chat{ID: -100},
				From: &models.User{ID: 7},
				Text: "hello",
			}},
			want: UpdateSummary{Type: "message", ChatID: -100, UserID: 7, Text: "hello"},
		},
		{
			name: "message without sender uses caption",
			update: &models.Update{Message: &models.Message{
				Chat:    models.Chat{ID: -100},
				Caption: "photo",
			}},
			want: UpdateSummary{Type: "message", ChatID: -100, Text: "photo"},
		},
		{
			name: "callback with accessible message",
			update: &models.Update{CallbackQuery: &models.CallbackQuery{
				From:    models.User{ID: 9},
				Data:    "lb:weekly:-100",
				Message: models.MaybeInaccessibleMessage{Message: &models.Message{Chat: models.Chat{ID: -100}}},
			}},
			want: UpdateSummary{Type: "callback_query", ChatID: -100, UserID: 9, Text: "lb:weekly:-100"},
		},
		{
			name: "callback with no message at all",
			update: &models.Update{CallbackQuery: &models.CallbackQuery{
				From: models.User{ID: 9},
				Data: "lb:daily:1",
			}},
			want: UpdateSummary{Type: "callback_query", UserID: 9, Text: "lb:daily:1"},
		},
		{
			name: "callback with inaccessible message",
			update: &models.Update{CallbackQuery: &models.CallbackQuery{
				From:    models.User{ID: 9},
				Message: models.MaybeInaccessibleMessage{InaccessibleMessage: &models.InaccessibleMessage{Chat: models.Chat{ID: -5}}},
			}},
			want: UpdateSummary{Type: "callback_query", ChatID: -5, UserID: 9},
		},
		{
			name:   "unknown update",
			update: &models.Update{ID: 1},
			want:   UpdateSummary{Type: "other"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := Summarize(tt.update); got != tt.want {
				t.Errorf("Summarize() = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestTruncateString(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in     string
		maxLen int
		want   string
	}{
		{"short", 10, "short"},
		{"exactly ten", 11, "exactly ten"},
		{"this is a long line", 10, "this is..."},
		{"héllo wörld", 8, "héllo..."},
		{"abcdef", 2, "..."},
	}

	for _, tt := range tests {
		if got := truncateString(tt.in, tt.maxLen); got != tt.want {
			t.Errorf("truncateString(%q, %d) = %q, want %q", tt.in, tt.maxLen, got, tt.want)
		}
	}
}

func TestParseLevel(t *testing.T) {
	t.Parallel()

	tests := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"info":    slog.LevelInfo,
		"warn":    slog.LevelWarn,
		"error":   slog.LevelError,
		"unknown": slog.LevelInfo,
	}
	for in, want := range tests {
		if got := ParseLevel(in); got != want {
			t.Errorf("ParseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}
