package scheduler

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type backupFake struct {
	calls int
	key   string
	err   error
}

func (f *backupFake) Backup(context.Context) (string, error) {
	f.calls++
	return f.key, f.err
}

func TestNewBackupSchedulerRejectsBadSpec(t *testing.T) {
	_, err := NewBackupScheduler("", &backupFake{}, 0, nil)
	assert.Error(t, err)

	_, err = NewBackupScheduler("every tuesday", &backupFake{}, 0, nil)
	assert.Error(t, err)
}

func TestBackupSchedulerNext(t *testing.T) {
	s, err := NewBackupScheduler("0 3 * * *", &backupFake{}, 0, nil)
	require.NoError(t, err)

	from := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	assert.Equal(t, time.Date(2024, 5, 2, 3, 0, 0, 0, time.UTC), s.Next(from))
}

func TestBackupSchedulerRunOnceReportsResult(t *testing.T) {
	fake := &backupFake{key: "backups/history_20240501_030000.json"}
	s, err := NewBackupScheduler("@daily", fake, time.Second, nil)
	require.NoError(t, err)

	var gotKey string
	var gotErr error
	s.OnResult(func(key string, err error) { gotKey, gotErr = key, err })

	s.runOnce()
	assert.Equal(t, 1, fake.calls)
	assert.Equal(t, fake.key, gotKey)
	assert.NoError(t, gotErr)

	fake.err = errors.New("disk full")
	s.runOnce()
	assert.EqualError(t, gotErr, "disk full")
}

func TestBackupSchedulerRunStopsOnCancel(t *testing.T) {
	s, err := NewBackupScheduler("@hourly", &backupFake{}, 0, nil)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		s.Run(ctx)
		close(done)
	}()
	cancel()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("scheduler did not stop")
	}
}
