// Package progress provides console progress reporting for result downloads.
//
// The reporter prints completion percentage, transfer speed, ETA, and task
// counts on a fixed interval while the download engine runs.
//
// # Usage
//
//	reporter := progress.NewReporter(progress.Options{
//	    TotalBytes: planBytes,
//	    TotalTasks: len(tasks),
//	    Workers:    4,
//	})
//
//	reporter.Start()
//	defer reporter.Stop()
//
//	// Engine workers report as they go
//	reporter.TaskStarted()
//	reporter.AddBytes(n)
//	reporter.TaskCompleted()
//
// # Output Format
//
//	[cosync] Downloading results: 2a66df60
//	[cosync] Total size: 312.40 MB | Files: 48 | Workers: 4
//	[cosync] Progress: 45.2% | 141.21 MB / 312.40 MB | Speed: 11.02 MB/s | ETA: 15s
//	[cosync] Files: 21 done | 4 in-progress | 23 pending
package progress
