package runtime

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGoRejectsDuplicateNames(t *testing.T) {
	tm := NewTaskManager(context.Background())
	require.NoError(t, tm.Go("watcher", func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	}))
	assert.Error(t, tm.Go("watcher", func(context.Context) error { return nil }))

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, tm.Shutdown(ctx))
}

func TestShutdownCancelsTasks(t *testing.T) {
	tm := NewTaskManager(context.Background())
	started := make(chan struct{})
	require.NoError(t, tm.Go("sweep", func(ctx context.Context) error {
		close(started)
		<-ctx.Done()
		return ctx.Err()
	}))
	<-started
	assert.Equal(t, 1, tm.Running())

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, tm.Shutdown(ctx))
	assert.Equal(t, 0, tm.Running())
}

func TestPanicIsContained(t *testing.T) {
	tm := NewTaskManager(context.Background())
	require.NoError(t, tm.Go("boom", func(context.Context) error {
		panic("unexpected")
	}))

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, tm.Shutdown(ctx))
}

func TestTaskErrorIsRecorded(t *testing.T) {
	tm := NewTaskManager(context.Background())
	errDone := errors.New("done")
	require.NoError(t, tm.Go("oneshot", func(context.Context) error { return errDone }))

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, tm.Shutdown(ctx))

	tm.mu.Lock()
	defer tm.mu.Unlock()
	assert.Equal(t, taskFailed, tm.tasks["oneshot"].state)
}
