package session

import (
	"context"
	"regexp"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/studymesh/core"
)

func TestInMemoryStore_GetOrCreateIsIdempotent(t *testing.T) {
	ctx := context.Background()
	s := NewInMemoryStore()

	first, err := s.GetOrCreate(ctx, "alice")
	require.NoError(t, err)
	again, err := s.GetOrCreate(ctx, "alice")
	require.NoError(t, err)
	other, err := s.GetOrCreate(ctx, "bob")
	require.NoError(t, err)

	assert.Equal(t, first, again)
	assert.NotEqual(t, first, other)
	assert.Regexp(t, regexp.MustCompile(`^session_[0-9a-f]{8}$`), first)
	assert.Equal(t, 2, s.Len())

	sess, err := s.Get(ctx, first)
	require.NoError(t, err)
	assert.Equal(t, DefaultAppName, sess.AppName)
	assert.Equal(t, "alice", sess.UserID)

	_, err = s.GetOrCreate(ctx, "")
	assert.Error(t, err)
}

func TestInMemoryStore_ConcurrentGetOrCreate(t *testing.T) {
	ctx := context.Background()
	s := NewInMemoryStore()

	ids := make([]string, 32)
	var wg sync.WaitGroup
	for i := range ids {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ids[i], _ = s.GetOrCreate(ctx, "alice")
		}()
	}
	wg.Wait()

	for _, id := range ids {
		assert.Equal(t, ids[0], id)
	}
	assert.Equal(t, 1, s.Len())
}

func TestInMemoryStore_AppendAndHistory(t *testing.T) {
	ctx := context.Background()
	s := NewInMemoryStore(func(o *Options) { o.AppName = "planner_test" })

	id, err := s.GetOrCreate(ctx, "alice")
	require.NoError(t, err)

	require.NoError(t, s.Append(ctx, id, core.NewUserMessageEvent("run-1", "hello")))
	require.NoError(t, s.Append(ctx, id, core.NewMessageEvent("orchestrator", "hi Alice")))
	require.NoError(t, s.ApplyDelta(ctx, id, map[string]any{"name": "Alice"}))

	history, err := s.History(ctx, id)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, "hello", history[0].Text())
	assert.Equal(t, "hi Alice", history[1].Text())

	sess, err := s.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "planner_test", sess.AppName)
	name, _ := sess.GetState("name")
	assert.Equal(t, "Alice", name)

	_, err = s.History(ctx, "session_missing")
	assert.ErrorIs(t, err, core.ErrSessionNotFound)
	assert.ErrorIs(t, s.Append(ctx, "session_missing", core.Event{}), core.ErrSessionNotFound)
}

func TestInMemoryStore_LockSerializesSameUser(t *testing.T) {
	ctx := context.Background()
	s := NewInMemoryStore()

	unlock, err := s.Lock(ctx, "alice")
	require.NoError(t, err)

	acquired := make(chan struct{})
	go func() {
		u, err := s.Lock(ctx, "alice")
		if err == nil {
			close(acquired)
			u()
		}
	}()

	select {
	case <-acquired:
		t.Fatal("second lock for the same user acquired while held")
	case <-time.After(30 * time.Millisecond):
	}

	// a different user is not blocked
	unlockBob, err := s.Lock(ctx, "bob")
	require.NoError(t, err)
	unlockBob()

	unlock()
	unlock() // idempotent

	select {
	case <-acquired:
	case <-time.After(time.Second):
		t.Fatal("lock not released")
	}
}

func TestInMemoryStore_LockHonoursContext(t *testing.T) {
	s := NewInMemoryStore()
	unlock, err := s.Lock(context.Background(), "alice")
	require.NoError(t, err)
	defer unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err = s.Lock(ctx, "alice")
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestInMemoryStore_LockReentrancy(t *testing.T) {
	s := NewInMemoryStore()
	ctx := core.WithHeldUser(context.Background(), "alice")

	_, err := s.Lock(ctx, "alice")
	assert.ErrorIs(t, err, core.ErrReentrancyViolation)

	unlock, err := s.Lock(ctx, "bob")
	require.NoError(t, err)
	unlock()
}

func TestInMemoryStore_AppendsAreNotInterleavedUnderLock(t *testing.T) {
	ctx := context.Background()
	s := NewInMemoryStore()
	id, err := s.GetOrCreate(ctx, "alice")
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			unlock, err := s.Lock(ctx, "alice")
			if err != nil {
				return
			}
			defer unlock()
			run := core.NewID()
			_ = s.Append(ctx, id, core.NewUserMessageEvent(run, "q"))
			time.Sleep(time.Millisecond)
			ev := core.NewMessageEvent("bot", "a")
			ev.InvocationID = run
			_ = s.Append(ctx, id, ev)
		}(i)
	}
	wg.Wait()

	history, err := s.History(ctx, id)
	require.NoError(t, err)
	require.Len(t, history, 16)
	for i := 0; i < len(history); i += 2 {
		assert.Equal(t, history[i].InvocationID, history[i+1].InvocationID)
	}
}
