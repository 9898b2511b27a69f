package assets

import (
	"context"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"
	"sync/atomic"

	"github.com/rs/zerolog"
	"gocloud.dev/blob"
	"golang.org/x/sync/errgroup"
)

// Options configures a sync pass.
type Options struct {
	// Workers is the number of parallel transfers.
	// Default: 4
	Workers int

	// Exclude lists patterns of keys to skip. A pattern ending in "/*"
	// excludes everything under that prefix; otherwise path.Match rules
	// apply.
	Exclude []string

	// Logger for per-object diagnostics.
	Logger zerolog.Logger
}

// Summary aggregates the outcome of one sync pass.
type Summary struct {
	Synced   int
	Excluded int
	Present  int
	Failed   int
	Bytes    int64
}

// Sync copies every object in bucket to destRoot. Objects matching an
// exclude pattern are skipped, as are objects whose local copy already has
// the listed size. Per-object failures are logged and counted, never fatal;
// only a listing failure aborts the pass.
func Sync(ctx context.Context, bucket *blob.Bucket, destRoot string, opts Options) (Summary, error) {
	if opts.Workers <= 0 {
		opts.Workers = 4
	}

	var synced, excluded, present, failed, bytes atomic.Int64

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(opts.Workers)

	iter := bucket.List(nil)
	for {
		obj, err := iter.Next(ctx)
		if err == io.EOF {
			break
		}
		if err != nil {
			// Let in-flight transfers finish before reporting.
			g.Wait()
			return summarize(&synced, &excluded, &present, &failed, &bytes),
				fmt.Errorf("list bucket: %w", err)
		}
		if obj.IsDir {
			continue
		}

		key, size := obj.Key, obj.Size

		if excludedKey(key, opts.Exclude) {
			opts.Logger.Debug().Str("key", key).Msg("excluded by pattern")
			excluded.Add(1)
			continue
		}

		dest := filepath.Join(destRoot, filepath.FromSlash(key))
		if info, err := os.Stat(dest); err == nil && info.Size() == size {
			present.Add(1)
			continue
		}

		g.Go(func() error {
			n, err := fetchObject(ctx, bucket, key, dest)
			if err != nil {
				opts.Logger.Error().Str("key", key).Err(err).Msg("sync failed")
				failed.Add(1)
				return nil
			}
			synced.Add(1)
			bytes.Add(n)
			return nil
		})
	}

	g.Wait()
	return summarize(&synced, &excluded, &present, &failed, &bytes), nil
}

func summarize(synced, excluded, present, failed, bytes *atomic.Int64) Summary {
	return Summary{
		Synced:   int(synced.Load()),
		Excluded: int(excluded.Load()),
		Present:  int(present.Load()),
		Failed:   int(failed.Load()),
		Bytes:    bytes.Load(),
	}
}

// fetchObject copies one object to dest, returning the bytes written.
func fetchObject(ctx context.Context, bucket *blob.Bucket, key, dest string) (int64, error) {
	r, err := bucket.NewReader(ctx, key, nil)
	if err != nil {
		return 0, fmt.Errorf("open object: %w", err)
	}
	defer r.Close()

	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return 0, fmt.Errorf("create parent dirs: %w", err)
	}

	f, err := os.Create(dest)
	if err != nil {
		return 0, fmt.Errorf("create file: %w", err)
	}
	defer f.Close()

	n, err := io.Copy(f, r)
	if err != nil {
		return n, fmt.Errorf("copy: %w", err)
	}
	if err := f.Close(); err != nil {
		return n, fmt.Errorf("close file: %w", err)
	}
	return n, nil
}

// excludedKey reports whether key matches any exclude pattern.
func excludedKey(key string, patterns []string) bool {
	for _, p := range patterns {
		if prefix, ok := strings.CutSuffix(p, "/*"); ok {
			if strings.HasPrefix(key, prefix+"/") {
				return true
			}
			continue
		}
		if ok, _ := path.Match(p, key); ok {
			return true
		}
	}
	return false
}
