package leaderboard

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/edgard/chattop/internal/database"
)

// Scope selects which message events a leaderboard aggregates.
type Scope int

const (
	Daily Scope = iota
	Weekly
	Monthly
	AllTime
	GlobalDaily
	Global
)

// Scopes lists every scope in keyboard order.
var Scopes = []Scope{Daily, Weekly, Monthly, AllTime, GlobalDaily, Global}

// ErrUnknownScope is returned when parsing an unrecognised scope key.
var ErrUnknownScope = errors.New("unknown leaderboard scope")

type scopeSpec struct {
	key    string
	label  string
	window time.Duration
	global bool
}

var scopeSpecs = map[Scope]scopeSpec{
	Daily:       {key: "daily", label: "Daily", window: 24 * time.Hour},
	Weekly:      {key: "weekly", label: "Weekly", window: 7 * 24 * time.Hour},
	Monthly:     {key: "monthly", label: "Monthly", window: 30 * 24 * time.Hour},
	AllTime:     {key: "alltime", label: "All-Time"},
	GlobalDaily: {key: "global_daily", label: "Global Daily", window: 24 * time.Hour, global: true},
	Global:      {key: "global", label: "Global All-Time", global: true},
}

var scopeAliases = map[string]Scope{
	"all_time":        AllTime,
	"all-time":        AllTime,
	"global_alltime":  Global,
	"global_all_time": Global,
}

// ParseScope resolves a scope key such as "daily" or "global".
func ParseScope(s string) (Scope, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	for scope, spec := range scopeSpecs {
		if spec.key == s {
			return scope, nil
		}
	}
	if scope, ok := scopeAliases[s]; ok {
		return scope, nil
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownScope, s)
}

// Key is the stable identifier used in callback data and exports.
func (s Scope) Key() string { return scopeSpecs[s].key }

// Label is the human-readable scope name.
func (s Scope) Label() string { return scopeSpecs[s].label }

// IsGlobal reports whether the scope spans every chat.
func (s Scope) IsGlobal() bool { return scopeSpecs[s].global }

// Window is the rolling time window, or zero for no time predicate.
func (s Scope) Window() time.Duration { return scopeSpecs[s].window }

// Valid reports whether s is one of the defined scopes.
func (s Scope) Valid() bool {
	_, ok := scopeSpecs[s]
	return ok
}

func (s Scope) String() string {
	if !s.Valid() {
		return fmt.Sprintf("scope(%d)", int(s))
	}
	return s.Key()
}

// Filter builds the store predicate for this scope. Windows are rolling
// durations ending at now, in UTC.
func (s Scope) Filter(chatID int64, now time.Time) database.MessageFilter {
	f := database.MessageFilter{ChatID: chatID}
	if s.IsGlobal() {
		f = database.MessageFilter{AllChats: true}
	}
	if w := s.Window(); w > 0 {
		f.Since = now.UTC().Add(-w)
	}
	return f
}

// CallbackPrefix starts every leaderboard callback payload.
const CallbackPrefix = "lb:"

// EncodeCallback builds the inline button payload "lb:<scope>:<chat_id>".
func EncodeCallback(scope Scope, chatID int64) string {
	return CallbackPrefix + scope.Key() + ":" + strconv.FormatInt(chatID, 10)
}

// DecodeCallback parses a payload built by EncodeCallback.
func DecodeCallback(data string) (Scope, int64, error) {
	rest, ok := strings.CutPrefix(data, CallbackPrefix)
	if !ok {
		return 0, 0, fmt.Errorf("not a leaderboard callback: %q", data)
	}
	key, chat, ok := strings.Cut(rest, ":")
	if !ok {
		return 0, 0, fmt.Errorf("malformed leaderboard callback: %q", data)
	}
	scope, err := ParseScope(key)
	if err != nil {
		return 0, 0, err
	}
	chatID, err := strconv.ParseInt(chat, 10, 64)
	if err != nil {
		return 0, 0, fmt.Errorf("malformed chat id in leaderboard callback %q: %w", data, err)
	}
	return scope, chatID, nil
}
