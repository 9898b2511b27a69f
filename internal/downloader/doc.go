// Package downloader fetches a computation's result files to local disk
// with bounded concurrency.
//
// A fixed pool of workers (default 4) shares the task list by static
// assignment: task i belongs to worker i mod workers, so no task is ever
// owned by two workers and the task's own fields need no locking. Each
// worker resolves a time-limited download URL for its task, streams the
// body to disk in fixed-size chunks, and records done or error on the task.
//
// Workers do not retry. A failed task is surfaced in the summary and the
// caller decides whether to re-run; re-running is safe because completed
// files are skipped by the filter policy. A partially written file from an
// aborted transfer is left on disk and is not validated by size or
// checksum.
package downloader
