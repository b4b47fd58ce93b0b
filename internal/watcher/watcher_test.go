package watcher

import (
	"os"
	"path/filepath"
	"strconv"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/untillpro/goutils/logger"
)

func watch(t *testing.T, debounce time.Duration) (string, *atomic.Int32) {
	t.Helper()
	logger.SetLogLevel(logger.LogLevelNone)

	path := filepath.Join(t.TempDir(), "data.db")
	require.NoError(t, os.WriteFile(path, []byte("initial"), 0o644))

	fw, err := NewFileWatcher()
	require.NoError(t, err)
	t.Cleanup(func() { fw.Close() })

	var calls atomic.Int32
	require.NoError(t, fw.Watch(path, func(string) { calls.Add(1) }, debounce))
	fw.Start()
	time.Sleep(100 * time.Millisecond)
	return path, &calls
}

func TestFileWatcher_NoDebounce(t *testing.T) {
	path, calls := watch(t, 0)

	require.NoError(t, os.WriteFile(path, []byte("changed"), 0o644))
	assert.Eventually(t, func() bool { return calls.Load() >= 1 }, 2*time.Second, 20*time.Millisecond)
}

func TestFileWatcher_Debounce(t *testing.T) {
	path, calls := watch(t, 300*time.Millisecond)

	for i := range 3 {
		require.NoError(t, os.WriteFile(path, []byte("change "+strconv.Itoa(i)), 0o644))
		time.Sleep(50 * time.Millisecond)
	}
	assert.Equal(t, int32(0), calls.Load(), "nothing fires inside the debounce window")
	assert.Eventually(t, func() bool { return calls.Load() == 1 }, 2*time.Second, 20*time.Millisecond)

	time.Sleep(500 * time.Millisecond)
	assert.Equal(t, int32(1), calls.Load(), "rapid writes are reported once")
}

func TestFileWatcher_SameContent(t *testing.T) {
	path, calls := watch(t, 100*time.Millisecond)

	require.NoError(t, os.WriteFile(path, []byte("initial"), 0o644))
	time.Sleep(400 * time.Millisecond)
	assert.Equal(t, int32(0), calls.Load())
}

func TestFileWatcher_Unwatch(t *testing.T) {
	logger.SetLogLevel(logger.LogLevelNone)
	path := filepath.Join(t.TempDir(), "data.db")
	require.NoError(t, os.WriteFile(path, []byte("initial"), 0o644))

	fw, err := NewFileWatcher()
	require.NoError(t, err)
	defer fw.Close()

	var calls atomic.Int32
	require.NoError(t, fw.Watch(path, func(string) { calls.Add(1) }, 0))
	fw.Start()
	require.NoError(t, fw.Unwatch(path))

	require.NoError(t, os.WriteFile(path, []byte("changed"), 0o644))
	time.Sleep(300 * time.Millisecond)
	assert.Equal(t, int32(0), calls.Load())
}

func TestFileWatcher_MissingFile(t *testing.T) {
	fw, err := NewFileWatcher()
	require.NoError(t, err)
	defer fw.Close()

	err = fw.Watch(filepath.Join(t.TempDir(), "missing.db"), func(string) {}, 0)
	assert.Error(t, err)
}
