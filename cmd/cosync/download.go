package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/rs/zerolog"

	"github.com/AllenNeuralDynamics/cosync/internal/codeocean"
	"github.com/AllenNeuralDynamics/cosync/internal/config"
	"github.com/AllenNeuralDynamics/cosync/internal/downloader"
	"github.com/AllenNeuralDynamics/cosync/internal/manifest"
	"github.com/AllenNeuralDynamics/cosync/internal/progress"
	"github.com/AllenNeuralDynamics/cosync/internal/results"
)

func runDownload(args []string) int {
	fs := flag.NewFlagSet("download", flag.ExitOnError)

	configPath := fs.String("config", "", "Path to config file")
	jobID := fs.String("job-id", "", "Single computation ID to download")
	jobsFile := fs.String("jobs-file", "", "Batch manifest listing computations to download")
	maxSizeMB := fs.Float64("max-size-mb", -1, "Skip files larger than this (0 = no limit, -1 = config default)")
	force := fs.Bool("force", false, "Re-download files that already exist locally")
	yes := fs.Bool("yes", false, "Skip the confirmation prompt")
	concurrency := fs.Int("concurrency", 0, "Number of parallel download workers (default from config)")
	dest := fs.String("dest", "", "Destination root directory (default from config)")
	verbose := fs.Bool("v", false, "Verbose logging")

	fs.Usage = func() {
		fmt.Fprintln(os.Stderr, `Usage: cosync download [options]

Download the result files of finished computations. For each computation
the result tree is listed recursively, files over the size limit or
already on disk are skipped, and the remaining files are fetched in
parallel. One computation's failure never aborts the rest of a batch.

Options:`)
		fs.PrintDefaults()
	}

	if err := fs.Parse(args); err != nil {
		return ExitInvalidArgs
	}

	if (*jobsFile == "") == (*jobID == "") {
		fmt.Fprintln(os.Stderr, "Error: exactly one of -job-id or -jobs-file is required")
		fs.Usage()
		return ExitInvalidArgs
	}

	log := newLogger(*verbose)

	cfg, err := loadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return ExitConfigError
	}
	if cfg.Domain == "" {
		fmt.Fprintln(os.Stderr, "Error: domain is required (config file or COSYNC_DOMAIN)")
		return ExitConfigError
	}
	if *maxSizeMB >= 0 {
		cfg.MaxSizeMB = *maxSizeMB
	}
	if *force {
		cfg.Force = true
	}
	if *concurrency > 0 {
		cfg.Concurrency = *concurrency
	}
	if *dest != "" {
		cfg.DownloadRoot = *dest
	}

	// Resolve the job set before touching the network.
	type job struct {
		key string
		id  string
	}
	var batch []job
	if *jobsFile != "" {
		m, err := manifest.Load(*jobsFile)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			return ExitConfigError
		}
		for _, key := range m.Keys() {
			e := m.Jobs[key]
			if e.ComputationID == "" {
				log.Warn().Str("job", key).Msg("no computation id recorded, skipping")
				continue
			}
			batch = append(batch, job{key: key, id: e.ComputationID})
		}
		if len(batch) == 0 {
			fmt.Fprintln(os.Stderr, "Error: manifest has no computations to download")
			return ExitConfigError
		}
	} else {
		batch = []job{{key: *jobID, id: *jobID}}
	}

	client, err := newClient(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return ExitConfigError
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		fmt.Fprintln(os.Stderr, "\n[cosync] Received interrupt, shutting down...")
		cancel()
	}()

	confirm := func(plan results.Plan) bool {
		if *yes {
			return true
		}
		return promptYesNo(fmt.Sprintf("Download %d file(s) (%s)?",
			len(plan.Download), progress.FormatBytes(plan.DownloadBytes())))
	}

	failed := 0
	for _, j := range batch {
		if ctx.Err() != nil {
			return ExitGeneralError
		}
		if err := downloadJob(ctx, client, cfg, j.key, j.id, confirm, log); err != nil {
			log.Error().Str("job", j.key).Err(err).Msg("download failed")
			failed++
		}
	}

	if failed > 0 {
		fmt.Fprintf(os.Stderr, "[cosync] %d of %d job(s) failed\n", failed, len(batch))
		return ExitPartialFailure
	}
	return ExitSuccess
}

// downloadJob runs the full pipeline for one computation: probe gate,
// listing, partition, confirmation, transfer.
func downloadJob(ctx context.Context, client *codeocean.Client, cfg config.Config,
	key, id string, confirm func(results.Plan) bool, log zerolog.Logger) error {

	comp, err := client.GetComputation(ctx, id)
	if err != nil {
		return fmt.Errorf("look up computation: %w", err)
	}
	if !comp.State.Terminal() {
		return fmt.Errorf("computation is %s, not terminal", comp.State)
	}
	if !comp.HasResults {
		return fmt.Errorf("computation has no results")
	}

	objects := results.NewEnumerator(client, log).List(ctx, id)
	if err := ctx.Err(); err != nil {
		return err
	}

	// The per-job subdirectory is named by computation ID, so batch and
	// single-job invocations land results in the same place.
	destRoot := results.DestPath(cfg.DownloadRoot, id)
	plan := results.Partition(objects, destRoot, cfg.MaxSizeMB, cfg.Force, log)

	writePlanSummary(os.Stderr, key, plan)

	if len(plan.Download) == 0 {
		return nil
	}
	if !confirm(plan) {
		fmt.Fprintf(os.Stderr, "[cosync] %s: skipped\n", key)
		return nil
	}

	tasks := make([]*downloader.Task, len(plan.Download))
	for i, obj := range plan.Download {
		tasks[i] = &downloader.Task{
			Object: obj,
			Dest:   results.DestPath(destRoot, obj.Path),
		}
	}

	reporter := progress.NewReporter(progress.Options{
		TotalBytes: plan.DownloadBytes(),
		TotalTasks: len(tasks),
		Workers:    cfg.Concurrency,
		Label:      key,
	})
	reporter.Start()

	summary := downloader.Run(ctx, client, id, tasks, downloader.Options{
		Workers:   cfg.Concurrency,
		ChunkSize: cfg.ChunkSize,
		Progress:  reporter,
		Logger:    log,
	})
	reporter.Stop()

	if err := ctx.Err(); err != nil {
		return err
	}
	if summary.Failed > 0 {
		return fmt.Errorf("%d of %d file(s) failed", summary.Failed, len(tasks))
	}
	return nil
}

// Plan listing limits, per category.
const (
	planPreviewDownload = 20
	planPreviewSkipped  = 10
)

// writePlanSummary prints the category counts followed by the first paths
// of each category, so the user sees what a confirmation commits to.
func writePlanSummary(w io.Writer, key string, plan results.Plan) {
	fmt.Fprintf(w, "[cosync] %s: %d file(s) to download (%s), %d over size limit, %d already present\n",
		key, len(plan.Download), progress.FormatBytes(plan.DownloadBytes()),
		len(plan.SkippedBySize), len(plan.AlreadyPresent))

	writePlanSection(w, "To download", plan.Download, planPreviewDownload)
	writePlanSection(w, "Skipped (over size limit)", plan.SkippedBySize, planPreviewSkipped)
	writePlanSection(w, "Already present", plan.AlreadyPresent, planPreviewSkipped)
}

func writePlanSection(w io.Writer, label string, items []codeocean.FolderItem, limit int) {
	if len(items) == 0 {
		return
	}
	fmt.Fprintf(w, "  %s:\n", label)
	n := len(items)
	if n > limit {
		n = limit
	}
	for _, item := range items[:n] {
		fmt.Fprintf(w, "    %s (%s)\n", item.Path, progress.FormatBytes(item.Size))
	}
	if len(items) > n {
		fmt.Fprintf(w, "    ... and %d more\n", len(items)-n)
	}
}

func promptYesNo(question string) bool {
	fmt.Fprintf(os.Stderr, "%s [y/N]: ", question)
	scanner := bufio.NewScanner(os.Stdin)
	if !scanner.Scan() {
		return false
	}
	answer := strings.ToLower(strings.TrimSpace(scanner.Text()))
	return answer == "y" || answer == "yes"
}
