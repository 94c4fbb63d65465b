package watch

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWatcherReportsChangedDirectoryOnce(t *testing.T) {
	dir := t.TempDir()
	w, err := New(100*time.Millisecond, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = w.Close() })
	w.Watch(dir)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = w.Run(ctx) }()

	for i := range 5 {
		require.NoError(t, os.WriteFile(filepath.Join(dir, string(rune('a'+i))), []byte("x"), 0o644))
	}

	select {
	case got := <-w.Changes():
		assert.Equal(t, filepath.Clean(dir), got)
	case <-time.After(5 * time.Second):
		t.Fatal("no change reported")
	}

	select {
	case extra := <-w.Changes():
		t.Fatalf("burst should be coalesced, got extra event for %s", extra)
	case <-time.After(200 * time.Millisecond):
	}
}

func TestWatchReplacesWatchedSet(t *testing.T) {
	a, b := t.TempDir(), t.TempDir()
	w, err := New(0, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = w.Close() })

	w.Watch(a, b)
	assert.Len(t, w.Watched(), 2)
	w.Watch(b, filepath.Join(a, "missing"))
	assert.Equal(t, []string{filepath.Clean(b)}, w.Watched())
}
