package spam_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/edgard/chattop/internal/database"
	"github.com/edgard/chattop/internal/spam"
)

var testConfig = spam.Config{
	MessageLimit:  5,
	Window:        5 * time.Second,
	BlockDuration: 60 * time.Second,
}

// memStore keeps spam state in memory with the same read-modify-write contract.
type memStore struct {
	mu     sync.Mutex
	states map[int64]database.SpamState
	err    error
}

func newMemStore() *memStore {
	return &memStore{states: make(map[int64]database.SpamState)}
}

func (m *memStore) UpdateSpamState(_ context.Context, userID int64, fn func(*database.SpamState) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	state := m.states[userID]
	state.UserID = userID
	if err := fn(&state); err != nil {
		return err
	}
	m.states[userID] = state
	return nil
}

func TestGuardFloodScenario(t *testing.T) {
	t.Parallel()

	store := newMemStore()
	guard := spam.NewGuard(store, testConfig, time.Second, nil)
	ctx := context.Background()
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	at := func(sec int) time.Time { return base.Add(time.Duration(sec) * time.Second) }

	want := []spam.Verdict{spam.Allow, spam.Allow, spam.Allow, spam.Allow, spam.Block}
	for i, w := range want {
		got, err := guard.Check(ctx, 1, at(i))
		if err != nil {
			t.Fatalf("Check(t=%d) error = %v", i, err)
		}
		if got != w {
			t.Fatalf("Check(t=%d) = %v, want %v", i, got, w)
		}
	}

	if got, _ := guard.Check(ctx, 1, at(5)); got != spam.Suppress {
		t.Fatalf("Check(t=5) while blocked = %v, want suppress", got)
	}
	if got, _ := guard.Check(ctx, 1, at(63)); got != spam.Suppress {
		t.Fatalf("Check(t=63) while blocked = %v, want suppress", got)
	}

	// Blocked until t=64; the next message afterwards is counted normally.
	if got, _ := guard.Check(ctx, 1, at(64)); got != spam.Allow {
		t.Fatalf("Check(t=64) after block = %v, want allow", got)
	}
	state := store.states[1]
	if state.BlockedUntil.Valid {
		t.Errorf("BlockedUntil still set after expiry: %v", state.BlockedUntil.Time)
	}
	if len(state.Recent) != 1 {
		t.Errorf("window has %d entries after unblock, want 1", len(state.Recent))
	}
}

func TestGuardUsersAreIndependent(t *testing.T) {
	t.Parallel()

	store := newMemStore()
	guard := spam.NewGuard(store, testConfig, time.Second, nil)
	ctx := context.Background()
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	for i := range 5 {
		_, _ = guard.Check(ctx, 1, now.Add(time.Duration(i)*time.Millisecond))
	}
	if got, _ := guard.Check(ctx, 2, now); got != spam.Allow {
		t.Errorf("other user verdict = %v, want allow", got)
	}
}

func TestEvaluateSlidingWindow(t *testing.T) {
	t.Parallel()

	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	state := &database.SpamState{}

	// Four messages two seconds apart never hold five inside a five second window.
	for i := range 20 {
		if v := spam.Evaluate(state, base.Add(time.Duration(2*i)*time.Second), testConfig); v != spam.Allow {
			t.Fatalf("message %d verdict = %v, want allow", i, v)
		}
	}
	if len(state.Recent) > testConfig.MessageLimit-1 {
		t.Errorf("window holds %d entries, want at most %d", len(state.Recent), testConfig.MessageLimit-1)
	}
}

func TestEvaluateBlockClearsWindow(t *testing.T) {
	t.Parallel()

	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	state := &database.SpamState{}
	for range 4 {
		spam.Evaluate(state, now, testConfig)
	}
	if v := spam.Evaluate(state, now, testConfig); v != spam.Block {
		t.Fatalf("fifth message verdict = %v, want block", v)
	}
	if len(state.Recent) != 0 {
		t.Errorf("window has %d entries after block, want 0", len(state.Recent))
	}
	if !state.BlockedUntil.Valid || !state.BlockedUntil.Time.Equal(now.Add(testConfig.BlockDuration)) {
		t.Errorf("BlockedUntil = %+v, want %v", state.BlockedUntil, now.Add(testConfig.BlockDuration))
	}
}

func TestGuardFailsOpen(t *testing.T) {
	t.Parallel()

	store := newMemStore()
	store.err = errors.New("database down")
	guard := spam.NewGuard(store, testConfig, time.Second, nil)

	got, err := guard.Check(context.Background(), 1, time.Now())
	if err == nil {
		t.Fatal("Check() expected error from store")
	}
	if got != spam.Allow {
		t.Errorf("Check() = %v on store failure, want allow", got)
	}
}

func TestVerdictCounted(t *testing.T) {
	t.Parallel()

	if !spam.Allow.Counted() || spam.Block.Counted() || spam.Suppress.Counted() {
		t.Error("only Allow should be counted")
	}
}
