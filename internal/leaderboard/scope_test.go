package leaderboard_test

import (
	"errors"
	"testing"
	"time"

	"github.com/edgard/chattop/internal/leaderboard"
)

func TestParseScope(t *testing.T) {
	t.Parallel()

	for _, scope := range leaderboard.Scopes {
		got, err := leaderboard.ParseScope(scope.Key())
		if err != nil || got != scope {
			t.Errorf("ParseScope(%q) = %v, %v; want %v", scope.Key(), got, err, scope)
		}
	}

	aliases := map[string]leaderboard.Scope{
		"all-time":       leaderboard.AllTime,
		" Weekly ":       leaderboard.Weekly,
		"global_alltime": leaderboard.Global,
	}
	for in, want := range aliases {
		if got, err := leaderboard.ParseScope(in); err != nil || got != want {
			t.Errorf("ParseScope(%q) = %v, %v; want %v", in, got, err, want)
		}
	}

	if _, err := leaderboard.ParseScope("yearly"); !errors.Is(err, leaderboard.ErrUnknownScope) {
		t.Errorf("ParseScope(yearly) error = %v, want ErrUnknownScope", err)
	}
}

func TestScopeFilter(t *testing.T) {
	t.Parallel()

	now := time.Date(2024, 6, 15, 12, 0, 0, 0, time.FixedZone("BRT", -3*3600))
	const chatID = int64(-100)

	tests := []struct {
		scope     leaderboard.Scope
		wantChat  int64
		wantAll   bool
		wantSince time.Time
	}{
		{leaderboard.Daily, chatID, false, now.UTC().Add(-24 * time.Hour)},
		{leaderboard.Weekly, chatID, false, now.UTC().Add(-7 * 24 * time.Hour)},
		{leaderboard.Monthly, chatID, false, now.UTC().Add(-30 * 24 * time.Hour)},
		{leaderboard.AllTime, chatID, false, time.Time{}},
		{leaderboard.GlobalDaily, 0, true, now.UTC().Add(-24 * time.Hour)},
		{leaderboard.Global, 0, true, time.Time{}},
	}

	for _, tt := range tests {
		f := tt.scope.Filter(chatID, now)
		if f.ChatID != tt.wantChat || f.AllChats != tt.wantAll || !f.Since.Equal(tt.wantSince) {
			t.Errorf("%v.Filter() = %+v, want chat=%d all=%v since=%v", tt.scope, f, tt.wantChat, tt.wantAll, tt.wantSince)
		}
		if !f.Since.IsZero() && f.Since.Location() != time.UTC {
			t.Errorf("%v.Filter() since is not UTC", tt.scope)
		}
	}
}

func TestCallbackRoundTrip(t *testing.T) {
	t.Parallel()

	for _, scope := range leaderboard.Scopes {
		data := leaderboard.EncodeCallback(scope, -1001234567890)
		if len(data) > 64 {
			t.Errorf("callback %q exceeds Telegram's 64 byte limit", data)
		}
		gotScope, gotChat, err := leaderboard.DecodeCallback(data)
		if err != nil {
			t.Fatalf("DecodeCallback(%q) error = %v", data, err)
		}
		if gotScope != scope || gotChat != -1001234567890 {
			t.Errorf("DecodeCallback(%q) = %v, %d", data, gotScope, gotChat)
		}
	}
}

func TestDecodeCallbackErrors(t *testing.T) {
	t.Parallel()

	for _, data := range []string{"", "quiz:1", "lb:daily", "lb:yearly:1", "lb:daily:abc"} {
		if _, _, err := leaderboard.DecodeCallback(data); err == nil {
			t.Errorf("DecodeCallback(%q) expected error", data)
		}
	}
}
