package watcher

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
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

func TestNewFileWatcher(t *testing.T) {
	watcher, err := NewFileWatcher(100*time.Millisecond, nil)
	require.NoError(t, err)
	defer watcher.Stop()

	assert.NotNil(t, watcher.watcher)
	assert.NotNil(t, watcher.debouncer)
	assert.Empty(t, watcher.filters)
	assert.Empty(t, watcher.handlers)
}

func TestFileWatcherAddPath(t *testing.T) {
	watcher, err := NewFileWatcher(100*time.Millisecond, nil)
	require.NoError(t, err)
	defer watcher.Stop()

	assert.NoError(t, watcher.AddPath(t.TempDir()))
	assert.Error(t, watcher.AddPath(""))
	assert.Error(t, watcher.AddPath("../outside"))
	assert.Error(t, watcher.AddPath(filepath.Join(t.TempDir(), "missing")))
}

func TestFileWatcherWatchFiles(t *testing.T) {
	dir := t.TempDir()
	doc := filepath.Join(dir, "page.yml")
	other := filepath.Join(dir, "other.yml")
	require.NoError(t, os.WriteFile(doc, []byte("template: a"), 0o644))

	watcher, err := NewFileWatcher(50*time.Millisecond, nil)
	require.NoError(t, err)
	defer watcher.Stop()
	require.NoError(t, watcher.WatchFiles(doc))

	var mu sync.Mutex
	var got []ChangeEvent
	watcher.AddHandler(func(_ context.Context, events []ChangeEvent) error {
		mu.Lock()
		defer mu.Unlock()
		got = append(got, events...)
		return nil
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, watcher.Start(ctx))
	time.Sleep(50 * time.Millisecond)

	require.NoError(t, os.WriteFile(other, []byte("x"), 0o644))
	require.NoError(t, os.WriteFile(doc, []byte("template: b"), 0o644))

	assert.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(got) > 0
	}, 2*time.Second, 20*time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	for _, ev := range got {
		assert.Equal(t, doc, ev.Path)
	}
}

func TestDebouncer(t *testing.T) {
	debouncer := newDebouncer(50 * time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go debouncer.start(ctx)

	debouncer.events <- ChangeEvent{Path: "b.yml", Type: EventTypeModified}
	debouncer.events <- ChangeEvent{Path: "a.yml", Type: EventTypeCreated}
	debouncer.events <- ChangeEvent{Path: "a.yml", Type: EventTypeModified}

	select {
	case events := <-debouncer.output:
		require.Len(t, events, 2)
		assert.Equal(t, "a.yml", events[0].Path)
		assert.Equal(t, EventTypeModified, events[0].Type)
		assert.Equal(t, "b.yml", events[1].Path)
	case <-time.After(time.Second):
		t.Fatal("no debounced batch")
	}
}

func TestFilters(t *testing.T) {
	ext := ExtensionFilter(".yml", ".HTML")
	assert.True(t, ext("page.yml"))
	assert.True(t, ext("page.html"))
	assert.False(t, ext("page.go"))

	paths := PathFilter("docs/page.yml")
	assert.True(t, paths("docs/../docs/page.yml"))
	assert.False(t, paths("docs/other.yml"))

	assert.False(t, NoEditorFilter("page.yml~"))
	assert.False(t, NoEditorFilter(".page.yml.swp"))
	assert.False(t, NoEditorFilter("dir/.#page.yml"))
	assert.True(t, NoEditorFilter("page.yml"))

	assert.False(t, NoGitFilter("repo/.git/HEAD"))
	assert.True(t, NoGitFilter("repo/page.yml"))
}
