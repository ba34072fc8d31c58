package telegram_test

import (
	"errors"
	"fmt"
	"testing"

	"github.com/go-telegram/bot"

	"github.com/edgard/chattop/internal/telegram"
)

func TestIsPermanent(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"forbidden", fmt.Errorf("%w, Forbidden: bot was blocked by the user", bot.ErrorForbidden), true},
		{"chat not found", fmt.Errorf("%w, Bad Request: chat not found", bot.ErrorBadRequest), true},
		{"user deactivated", fmt.Errorf("%w, Bad Request: user is deactivated", bot.ErrorBadRequest), true},
		{"migrated group", &bot.MigrateError{Message: "group upgraded", MigrateToChatID: -1001}, true},
		{"other bad request", fmt.Errorf("%w, Bad Request: message to delete not found", bot.ErrorBadRequest), false},
		{"network", errors.New("dial tcp: i/o timeout"), false},
		{"too many requests", &bot.TooManyRequestsError{Message: "slow down", RetryAfter: 5}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := telegram.IsPermanent(tt.err); got != tt.want {
				t.Errorf("IsPermanent(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}

func TestCommandPatterns(t *testing.T) {
	t.Parallel()

	if got := telegram.CommandPatterns("leaderboard", ""); len(got) != 1 || got[0] != "leaderboard" {
		t.Errorf("CommandPatterns without username = %v", got)
	}
	got := telegram.CommandPatterns("leaderboard", "chattop_bot")
	if len(got) != 2 || got[1] != "leaderboard@chattop_bot" {
		t.Errorf("CommandPatterns with username = %v", got)
	}
}
