package assets

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gocloud.dev/blob"
	_ "gocloud.dev/blob/memblob"
)

func newBucket(t *testing.T, objects map[string]string) *blob.Bucket {
	t.Helper()
	ctx := context.Background()

	bucket, err := blob.OpenBucket(ctx, "mem://")
	require.NoError(t, err)
	t.Cleanup(func() { bucket.Close() })

	for key, content := range objects {
		require.NoError(t, bucket.WriteAll(ctx, key, []byte(content), nil))
	}
	return bucket
}

func TestSyncCopiesAll(t *testing.T) {
	bucket := newBucket(t, map[string]string{
		"session-1/behavior.json":  `{"trials": 10}`,
		"session-1/sub/frames.csv": "t,x\n1,2\n",
	})

	dest := t.TempDir()
	summary, err := Sync(context.Background(), bucket, dest, Options{Logger: zerolog.Nop()})
	require.NoError(t, err)

	assert.Equal(t, 2, summary.Synced)
	assert.Equal(t, 0, summary.Failed)

	data, err := os.ReadFile(filepath.Join(dest, "session-1", "behavior.json"))
	require.NoError(t, err)
	assert.Equal(t, `{"trials": 10}`, string(data))

	data, err = os.ReadFile(filepath.Join(dest, "session-1", "sub", "frames.csv"))
	require.NoError(t, err)
	assert.Equal(t, "t,x\n1,2\n", string(data))
}

func TestSyncExcludes(t *testing.T) {
	bucket := newBucket(t, map[string]string{
		"session-1/behavior.json":           "{}",
		"Behavior-Videos/cam0.avi":          "videodata",
		"Behavior-Videos/nested/cam1.avi":   "videodata",
		"session-1/Behavior-Videos-log.txt": "keep me",
	})

	dest := t.TempDir()
	summary, err := Sync(context.Background(), bucket, dest, Options{
		Exclude: []string{"Behavior-Videos/*"},
		Logger:  zerolog.Nop(),
	})
	require.NoError(t, err)

	assert.Equal(t, 2, summary.Synced)
	assert.Equal(t, 2, summary.Excluded)

	_, err = os.Stat(filepath.Join(dest, "Behavior-Videos"))
	assert.True(t, os.IsNotExist(err), "excluded prefix must not be created")
}

func TestSyncSkipsPresentSameSize(t *testing.T) {
	bucket := newBucket(t, map[string]string{
		"a.txt": "hello",
		"b.txt": "world!",
	})

	dest := t.TempDir()

	// First pass copies everything, second pass finds it all present.
	summary, err := Sync(context.Background(), bucket, dest, Options{Logger: zerolog.Nop()})
	require.NoError(t, err)
	assert.Equal(t, 2, summary.Synced)

	summary, err = Sync(context.Background(), bucket, dest, Options{Logger: zerolog.Nop()})
	require.NoError(t, err)
	assert.Equal(t, 0, summary.Synced)
	assert.Equal(t, 2, summary.Present)
}

func TestSyncRefreshesChangedSize(t *testing.T) {
	bucket := newBucket(t, map[string]string{"a.txt": "new longer content"})

	dest := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dest, "a.txt"), []byte("old"), 0o644))

	summary, err := Sync(context.Background(), bucket, dest, Options{Logger: zerolog.Nop()})
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Synced)

	data, err := os.ReadFile(filepath.Join(dest, "a.txt"))
	require.NoError(t, err)
	assert.Equal(t, "new longer content", string(data))
}

func TestExcludedKey(t *testing.T) {
	tests := []struct {
		key      string
		patterns []string
		want     bool
	}{
		{"Behavior-Videos/cam0.avi", []string{"Behavior-Videos/*"}, true},
		{"Behavior-Videos/a/b/cam0.avi", []string{"Behavior-Videos/*"}, true},
		{"Behavior-Videos.txt", []string{"Behavior-Videos/*"}, false},
		{"data.tmp", []string{"*.tmp"}, true},
		{"sub/data.tmp", []string{"*.tmp"}, false},
		{"anything", nil, false},
	}

	for _, tt := range tests {
		if got := excludedKey(tt.key, tt.patterns); got != tt.want {
			t.Errorf("excludedKey(%q, %v) = %v, want %v", tt.key, tt.patterns, got, tt.want)
		}
	}
}
