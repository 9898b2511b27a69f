package downloader

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/AllenNeuralDynamics/cosync/internal/codeocean"
	"github.com/AllenNeuralDynamics/cosync/internal/progress"
)

// Status is the lifecycle state of one download task.
type Status int

const (
	StatusPending Status = iota
	StatusFetchingURL
	StatusDownloading
	StatusDone
	StatusError
)

func (s Status) String() string {
	switch s {
	case StatusPending:
		return "pending"
	case StatusFetchingURL:
		return "fetching_url"
	case StatusDownloading:
		return "downloading"
	case StatusDone:
		return "done"
	case StatusError:
		return "error"
	default:
		return fmt.Sprintf("status(%d)", int(s))
	}
}

// Task is one file to download. It is mutated only by the worker that owns
// it.
type Task struct {
	Object codeocean.FolderItem
	Dest   string
	Status Status
	Bytes  int64
	Err    error
}

// URLSource resolves a time-limited download URL for one result file. It is
// satisfied by *codeocean.Client.
type URLSource interface {
	ResultDownloadURL(ctx context.Context, computationID, path string) (string, error)
}

// Options configures the download engine.
type Options struct {
	// Workers is the number of parallel download workers.
	// Default: 4
	Workers int

	// ChunkSize is the copy buffer size; task byte counts advance once per
	// chunk. Default: 128KB
	ChunkSize int64

	// Timeout bounds the response-header wait of each request.
	// Default: 30s
	Timeout time.Duration

	// HTTPClient overrides the default client (for tests).
	HTTPClient *http.Client

	// Progress is an optional progress reporter.
	Progress *progress.Reporter

	// Logger for per-task diagnostics.
	Logger zerolog.Logger
}

// Summary aggregates the outcome of one engine run. NotStarted counts
// tasks a cancelled run never attempted; they are neither done nor failed.
type Summary struct {
	Done       int
	Failed     int
	NotStarted int
	Bytes      int64
}

// Run downloads every task with a fixed worker pool and returns the
// aggregate summary. Task failures never abort sibling tasks; each failed
// task carries its cause. Cancellation is honored before each task and at
// every chunk boundary.
func Run(ctx context.Context, src URLSource, computationID string, tasks []*Task, opts Options) Summary {
	if opts.Workers <= 0 {
		opts.Workers = 4
	}
	if opts.ChunkSize <= 0 {
		opts.ChunkSize = 128 * 1024
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}
	client := opts.HTTPClient
	if client == nil {
		// No overall client timeout: large transfers may legitimately take
		// longer than any per-request bound. The header wait is bounded.
		client = &http.Client{
			Transport: &http.Transport{ResponseHeaderTimeout: opts.Timeout},
		}
	}

	var wg sync.WaitGroup
	for w := 0; w < opts.Workers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := w; i < len(tasks); i += opts.Workers {
				if ctx.Err() != nil {
					return
				}
				runTask(ctx, client, src, computationID, tasks[i], opts)
			}
		}(w)
	}
	wg.Wait()

	var summary Summary
	for _, t := range tasks {
		switch t.Status {
		case StatusDone:
			summary.Done++
		case StatusPending:
			summary.NotStarted++
		default:
			summary.Failed++
		}
		summary.Bytes += t.Bytes
	}
	return summary
}

// runTask downloads a single file.
func runTask(ctx context.Context, client *http.Client, src URLSource, computationID string, t *Task, opts Options) {
	if opts.Progress != nil {
		opts.Progress.TaskStarted()
	}

	t.Status = StatusFetchingURL
	url, err := src.ResultDownloadURL(ctx, computationID, t.Object.Path)
	if err != nil {
		fail(t, fmt.Errorf("resolve download url: %w", err), opts)
		return
	}

	t.Status = StatusDownloading
	if err := fetch(ctx, client, url, t, opts); err != nil {
		fail(t, err, opts)
		return
	}

	t.Status = StatusDone
	opts.Logger.Info().Str("path", t.Object.Path).Int64("bytes", t.Bytes).Msg("downloaded")
	if opts.Progress != nil {
		opts.Progress.TaskCompleted()
	}
}

func fail(t *Task, err error, opts Options) {
	t.Status = StatusError
	t.Err = err
	opts.Logger.Error().Str("path", t.Object.Path).Err(err).Msg("download failed")
	if opts.Progress != nil {
		opts.Progress.TaskFailed()
	}
}

// fetch streams the body of url to t.Dest in fixed-size chunks. On error a
// partial file is left on disk; the filter policy's force flag is the
// documented way to overwrite it.
func fetch(ctx context.Context, client *http.Client, url string, t *Task, opts Options) error {
	if err := os.MkdirAll(filepath.Dir(t.Dest), 0o755); err != nil {
		return fmt.Errorf("create parent dirs: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("fetch: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("fetch: unexpected status %d %s", resp.StatusCode, resp.Status)
	}

	f, err := os.Create(t.Dest)
	if err != nil {
		return fmt.Errorf("create file: %w", err)
	}
	defer f.Close()

	buf := make([]byte, opts.ChunkSize)
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		n, readErr := resp.Body.Read(buf)
		if n > 0 {
			if _, writeErr := f.Write(buf[:n]); writeErr != nil {
				return fmt.Errorf("write: %w", writeErr)
			}
			t.Bytes += int64(n)
			if opts.Progress != nil {
				opts.Progress.AddBytes(int64(n))
			}
		}
		if readErr == io.EOF {
			break
		}
		if readErr != nil {
			return fmt.Errorf("read body: %w", readErr)
		}
	}

	if err := f.Close(); err != nil {
		return fmt.Errorf("close file: %w", err)
	}
	return nil
}
