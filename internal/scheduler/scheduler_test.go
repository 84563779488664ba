package scheduler

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestNew_InvalidTime(t *testing.T) {
	for _, tc := range []struct{ hour, minute int }{{24, 0}, {-1, 0}, {9, 60}} {
		_, err := New(tc.hour, tc.minute, func(context.Context) error { return nil }, nil)
		assert.Error(t, err)
	}
}

func TestScheduler_Next(t *testing.T) {
	s, err := New(9, 30, func(context.Context) error { return nil }, nil)
	require.NoError(t, err)

	before := time.Date(2024, 1, 15, 8, 0, 0, 0, time.Local)
	assert.Equal(t, time.Date(2024, 1, 15, 9, 30, 0, 0, time.Local), s.Next(before))

	after := time.Date(2024, 1, 15, 10, 0, 0, 0, time.Local)
	assert.Equal(t, time.Date(2024, 1, 16, 9, 30, 0, 0, time.Local), s.Next(after))
}

func TestScheduler_RunsImmediatelyAndStops(t *testing.T) {
	ran := make(chan struct{}, 1)
	s, err := New(3, 0, func(context.Context) error {
		ran <- struct{}{}
		return nil
	}, nil)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	select {
	case <-ran:
	case <-time.After(2 * time.Second):
		t.Fatal("job did not run on start")
	}

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("scheduler did not stop")
	}
}

func TestScheduler_NoOverlap(t *testing.T) {
	var running, maxRunning, total int32
	release := make(chan struct{})
	s, err := New(9, 0, func(context.Context) error {
		n := atomic.AddInt32(&running, 1)
		for {
			m := atomic.LoadInt32(&maxRunning)
			if n <= m || atomic.CompareAndSwapInt32(&maxRunning, m, n) {
				break
			}
		}
		<-release
		atomic.AddInt32(&running, -1)
		atomic.AddInt32(&total, 1)
		return nil
	}, nil)
	require.NoError(t, err)

	job := s.wrap(context.Background())
	var wg sync.WaitGroup
	for i := 0; i < 3; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			job.Run()
		}()
	}

	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()

	assert.Equal(t, int32(1), atomic.LoadInt32(&maxRunning))
	assert.Equal(t, int32(3), atomic.LoadInt32(&total))
}

func TestScheduler_FailuresDoNotStopLoop(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	calls := 0
	s, err := New(9, 0, func(context.Context) error {
		calls++
		switch calls {
		case 1:
			panic("boom")
		case 2:
			return errors.New("imap down")
		}
		return nil
	}, zap.New(core))
	require.NoError(t, err)

	job := s.wrap(context.Background())
	assert.NotPanics(t, job.Run)
	assert.NotPanics(t, job.Run)
	assert.NotPanics(t, job.Run)

	assert.Equal(t, 3, calls)
	assert.Equal(t, 1, logs.FilterMessage("任务执行失败").Len())
	assert.Equal(t, 1, logs.FilterMessage("panic").Len())
}

func TestScheduler_SkipsAfterCancel(t *testing.T) {
	calls := 0
	s, err := New(9, 0, func(context.Context) error {
		calls++
		return nil
	}, nil)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	s.wrap(ctx).Run()
	assert.Zero(t, calls)
}
