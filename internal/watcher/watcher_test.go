package watcher

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestWatcher(t *testing.T, dir string) *Watcher {
	t.Helper()

	w, err := New(dir, slog.New(slog.DiscardHandler), Options{
		SettleDelay: 50 * time.Millisecond,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = w.Stop() })
	return w
}

func waitForEvent(t *testing.T, w *Watcher) Event {
	t.Helper()

	select {
	case ev := <-w.Events():
		return ev
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for event")
		return Event{}
	}
}

func TestWatcher_ReportsSettledFile(t *testing.T) {
	dir := t.TempDir()
	w := newTestWatcher(t, dir)
	require.NoError(t, w.Start(context.Background()))

	path := filepath.Join(dir, "french-basics.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"pack_id":"p1"}`), 0o600))

	ev := waitForEvent(t, w)
	assert.Equal(t, path, ev.Path)
}

func TestWatcher_IgnoresNonMatching(t *testing.T) {
	dir := t.TempDir()
	w := newTestWatcher(t, dir)
	require.NoError(t, w.Start(context.Background()))

	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".hidden.json"), []byte("{}"), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "pack.json"), []byte("{}"), 0o600))

	ev := waitForEvent(t, w)
	assert.Equal(t, "pack.json", filepath.Base(ev.Path))

	select {
	case ev := <-w.Events():
		t.Fatalf("unexpected event for %s", ev.Path)
	case <-time.After(200 * time.Millisecond):
	}
}

func TestWatcher_ReportsPreexistingFiles(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "dropped-while-down.json")
	require.NoError(t, os.WriteFile(path, []byte("{}"), 0o600))

	w := newTestWatcher(t, dir)
	require.NoError(t, w.Start(context.Background()))

	ev := waitForEvent(t, w)
	assert.Equal(t, path, ev.Path)
}

func TestWatcher_CreatesMissingDir(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "packs")
	_ = newTestWatcher(t, dir)

	info, err := os.Stat(dir)
	require.NoError(t, err)
	assert.True(t, info.IsDir())
}
