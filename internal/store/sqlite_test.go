package store

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/ashureev/chatflow/internal/domain"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := NewSQLite(filepath.Join(t.TempDir(), "chat.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestAppendMessage_AssignsIDAndTimestamp(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	before := time.Now().Add(-time.Second)
	first, err := s.AppendMessage(ctx, "hello", "alice")
	require.NoError(t, err)
	second, err := s.AppendMessage(ctx, "hi there", domain.SyntheticSender)
	require.NoError(t, err)

	require.Equal(t, int64(1), first.ID)
	require.Equal(t, int64(2), second.ID)
	require.Equal(t, "hello", first.Content)
	require.Equal(t, "alice", first.Sender)
	require.Equal(t, domain.DefaultChatID, first.ChatID)
	require.True(t, first.Timestamp.After(before))
	require.False(t, second.Timestamp.Before(first.Timestamp))
}

func TestAppendMessage_TimestampNeverGoesBackwards(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	base := time.Now()
	clock := []time.Time{base, base.Add(-time.Minute), base.Add(time.Second)}
	i := 0
	s.now = func() time.Time {
		ts := clock[i]
		i++
		return ts
	}

	var got []domain.Message
	for n := range clock {
		msg, err := s.AppendMessage(ctx, fmt.Sprintf("m%d", n), "bob")
		require.NoError(t, err)
		got = append(got, msg)
	}

	require.Equal(t, got[0].Timestamp, got[1].Timestamp, "skewed clock must be clamped to the previous timestamp")
	require.True(t, got[2].Timestamp.After(got[1].Timestamp))
}

func TestListMessages_Ordered(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	empty, err := s.ListMessages(ctx)
	require.NoError(t, err)
	require.NotNil(t, empty)
	require.Empty(t, empty)

	for i := 0; i < 5; i++ {
		_, err := s.AppendMessage(ctx, fmt.Sprintf("message %d", i), "carol")
		require.NoError(t, err)
	}

	msgs, err := s.ListMessages(ctx)
	require.NoError(t, err)
	require.Len(t, msgs, 5)
	for i := 1; i < len(msgs); i++ {
		require.False(t, msgs[i].Timestamp.Before(msgs[i-1].Timestamp))
		require.Greater(t, msgs[i].ID, msgs[i-1].ID)
	}
	require.Equal(t, "message 0", msgs[0].Content)
}

func TestAppendMessage_ConcurrentIDsUnique(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	const n = 20
	var wg sync.WaitGroup
	ids := make(chan int64, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			msg, err := s.AppendMessage(ctx, fmt.Sprintf("c%d", i), "dave")
			if err != nil {
				t.Errorf("append %d: %v", i, err)
				return
			}
			ids <- msg.ID
		}(i)
	}
	wg.Wait()
	close(ids)

	seen := make(map[int64]bool)
	for id := range ids {
		require.False(t, seen[id], "duplicate id %d", id)
		seen[id] = true
	}
	require.Len(t, seen, n)

	msgs, err := s.ListMessages(ctx)
	require.NoError(t, err)
	for i := 1; i < len(msgs); i++ {
		require.Greater(t, msgs[i].ID, msgs[i-1].ID, "timestamp order must match id order")
	}
}

func TestReopenKeepsLog(t *testing.T) {
	path := filepath.Join(t.TempDir(), "chat.db")
	ctx := context.Background()

	s, err := NewSQLite(path)
	require.NoError(t, err)
	first, err := s.AppendMessage(ctx, "persisted", "erin")
	require.NoError(t, err)
	require.NoError(t, s.Close())

	s, err = NewSQLite(path)
	require.NoError(t, err)
	defer func() { _ = s.Close() }()

	second, err := s.AppendMessage(ctx, "after reopen", "erin")
	require.NoError(t, err)
	require.Greater(t, second.ID, first.ID)
	require.False(t, second.Timestamp.Before(first.Timestamp))
}

func TestClosedStoreIsUnavailable(t *testing.T) {
	s, err := NewSQLite(filepath.Join(t.TempDir(), "chat.db"))
	require.NoError(t, err)
	require.NoError(t, s.Close())

	ctx := context.Background()
	_, err = s.AppendMessage(ctx, "lost", "frank")
	require.True(t, errors.Is(err, ErrStorageUnavailable), "got %v", err)

	_, err = s.ListMessages(ctx)
	require.True(t, errors.Is(err, ErrStorageUnavailable), "got %v", err)

	require.ErrorIs(t, s.Ping(ctx), ErrStorageUnavailable)
}

func TestIsBusy(t *testing.T) {
	if IsBusy(nil) {
		t.Error("nil error must not be busy")
	}
	if !IsBusy(errors.New("database is locked (5) (SQLITE_BUSY)")) {
		t.Error("expected SQLITE_BUSY to be detected")
	}
	if IsBusy(errors.New("no such table")) {
		t.Error("unrelated error must not be busy")
	}
}
