package watcher

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/conneroisu/ssrgate/internal/logging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestEventTypeString(t *testing.T) {
	testCases := []struct {
		eventType EventType
		expected  string
	}{
		{EventTypeCreated, "created"},
		{EventTypeModified, "modified"},
		{EventTypeDeleted, "deleted"},
		{EventTypeRenamed, "renamed"},
		{EventType(42), "unknown"},
	}

	for _, tc := range testCases {
		t.Run(tc.expected, func(t *testing.T) {
			assert.Equal(t, tc.expected, tc.eventType.String())
		})
	}
}

func TestPathFilter(t *testing.T) {
	dir := t.TempDir()
	shell := filepath.Join(dir, "index.html")
	filter := PathFilter(shell)

	assert.True(t, filter(shell))
	assert.True(t, filter(filepath.Join(dir, ".", "index.html")))
	assert.False(t, filter(filepath.Join(dir, "other.html")))
}

func TestDebouncerCoalesces(t *testing.T) {
	d := &Debouncer{delay: 20 * time.Millisecond, output: make(chan []ChangeEvent, 1)}

	d.add(ChangeEvent{Type: EventTypeCreated, Path: "b"})
	d.add(ChangeEvent{Type: EventTypeModified, Path: "a"})
	d.add(ChangeEvent{Type: EventTypeModified, Path: "b"})

	select {
	case events := <-d.output:
		require.Len(t, events, 2)
		assert.Equal(t, "a", events[0].Path)
		assert.Equal(t, "b", events[1].Path)
		assert.Equal(t, EventTypeModified, events[1].Type)
	case <-time.After(2 * time.Second):
		t.Fatal("debouncer never flushed")
	}
}

// countingReloader counts reloads and can be told to fail.
type countingReloader struct {
	calls atomic.Int32
	err   error
}

func (c *countingReloader) Reload() error {
	c.calls.Add(1)
	return c.err
}

func TestReloadHandler(t *testing.T) {
	r := &countingReloader{}
	h := ReloadHandler(r, logging.Discard())

	require.NoError(t, h([]ChangeEvent{{Type: EventTypeDeleted, Path: "x"}}))
	assert.Equal(t, int32(0), r.calls.Load())

	require.NoError(t, h([]ChangeEvent{{Type: EventTypeModified, Path: "x"}, {Type: EventTypeCreated, Path: "y"}}))
	assert.Equal(t, int32(1), r.calls.Load())

	r.err = errors.New("unreadable")
	assert.Error(t, h([]ChangeEvent{{Type: EventTypeModified, Path: "x"}}))
}

func TestWatchFileTriggersHandler(t *testing.T) {
	defer goleak.VerifyNone(t)

	dir := t.TempDir()
	shell := filepath.Join(dir, "index.html")
	require.NoError(t, os.WriteFile(shell, []byte("v1"), 0o644))

	fw, err := NewFileWatcher(20*time.Millisecond, logging.Discard())
	require.NoError(t, err)
	require.NoError(t, fw.WatchFile(shell))

	got := make(chan []ChangeEvent, 4)
	fw.AddHandler(func(events []ChangeEvent) error {
		got <- events
		return nil
	})

	require.NoError(t, fw.Start(context.Background()))

	// unrelated files in the same directory are ignored
	require.NoError(t, os.WriteFile(filepath.Join(dir, "other.txt"), []byte("x"), 0o644))
	require.NoError(t, os.WriteFile(shell, []byte("v2"), 0o644))

	select {
	case events := <-got:
		require.NotEmpty(t, events)
		for _, ev := range events {
			assert.Equal(t, shell, ev.Path)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("no change event received")
	}

	require.NoError(t, fw.Stop())
	assert.NoError(t, fw.Stop(), "second stop is a no-op")
}

func TestStopWithoutStart(t *testing.T) {
	fw, err := NewFileWatcher(10*time.Millisecond, nil)
	require.NoError(t, err)
	assert.NoError(t, fw.Close())
}
