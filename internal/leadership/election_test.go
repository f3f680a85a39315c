/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package leadership

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestElection(t *testing.T, mr *miniredis.Miniredis, id string) *Election {
	t.Helper()
	cfg := DefaultConfig()
	cfg.RedisAddr = mr.Addr()
	cfg.InstanceID = id
	cfg.LeaseDuration = time.Second
	cfg.RenewalInterval = 20 * time.Millisecond

	e, err := NewElection(cfg, zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = e.Stop() })
	return e
}

func TestSingleLeader(t *testing.T) {
	mr := miniredis.RunT(t)
	a := newTestElection(t, mr, "a")
	b := newTestElection(t, mr, "b")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	a.Start(ctx)
	require.Eventually(t, a.IsLeader, 2*time.Second, 10*time.Millisecond)

	b.Start(ctx)
	time.Sleep(100 * time.Millisecond)
	assert.False(t, b.IsLeader())

	leader, err := b.Leader(ctx)
	require.NoError(t, err)
	assert.Equal(t, "a", leader)

	require.NoError(t, a.Stop())
	assert.False(t, a.IsLeader())
	require.Eventually(t, b.IsLeader, 2*time.Second, 10*time.Millisecond)
}

func TestStopReleasesOnlyOwnLock(t *testing.T) {
	mr := miniredis.RunT(t)
	e := newTestElection(t, mr, "a")

	require.NoError(t, mr.Set(defaultElectionKey, "someone-else"))
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	e.Start(ctx)
	time.Sleep(60 * time.Millisecond)
	assert.False(t, e.IsLeader())

	require.NoError(t, e.Stop())
	got, err := mr.Get(defaultElectionKey)
	require.NoError(t, err)
	assert.Equal(t, "someone-else", got)
	assert.NoError(t, e.Stop(), "second stop is a no-op")
}

func TestNewElectionFailsWithoutRedis(t *testing.T) {
	mr := miniredis.RunT(t)
	addr := mr.Addr()
	mr.Close()

	cfg := DefaultConfig()
	cfg.RedisAddr = addr
	_, err := NewElection(cfg, zerolog.Nop())
	assert.Error(t, err)
}

func TestRunnerFollowsLeadership(t *testing.T) {
	mr := miniredis.RunT(t)
	e := newTestElection(t, mr, "a")

	var running atomic.Int32
	loop := func(ctx context.Context) error {
		running.Add(1)
		defer running.Add(-1)
		<-ctx.Done()
		return ctx.Err()
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- NewRunner(e, loop, zerolog.Nop()).Run(ctx) }()

	require.Eventually(t, func() bool { return running.Load() == 1 }, 2*time.Second, 10*time.Millisecond)

	// Another instance takes over once our lock disappears.
	mr.Del(defaultElectionKey)
	require.NoError(t, mr.Set(defaultElectionKey, "b"))
	require.Eventually(t, func() bool { return running.Load() == 0 }, 2*time.Second, 10*time.Millisecond)

	mr.Del(defaultElectionKey)
	require.Eventually(t, func() bool { return running.Load() == 1 }, 2*time.Second, 10*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("runner did not stop")
	}
	assert.Equal(t, int32(0), running.Load())
}
