package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/AllenNeuralDynamics/cosync/internal/codeocean"
	"github.com/AllenNeuralDynamics/cosync/internal/manifest"
	"github.com/AllenNeuralDynamics/cosync/internal/track"
)

func runWatch(args []string) int {
	fs := flag.NewFlagSet("watch", flag.ExitOnError)

	configPath := fs.String("config", "", "Path to config file")
	manifestPath := fs.String("manifest", "", "Batch manifest to watch")
	jobID := fs.String("job-id", "", "Single computation ID to watch")
	interval := fs.Duration("interval", 0, "Poll interval (default from config)")
	verbose := fs.Bool("v", false, "Verbose logging")

	fs.Usage = func() {
		fmt.Fprintln(os.Stderr, `Usage: cosync watch [options]

Poll the state of submitted computations every interval until all of them
reach a terminal state (completed, failed or stopped). State transitions
are printed as they are observed. With -manifest, final statuses are
written back to the manifest file.

Options:`)
		fs.PrintDefaults()
	}

	if err := fs.Parse(args); err != nil {
		return ExitInvalidArgs
	}

	if (*manifestPath == "") == (*jobID == "") {
		fmt.Fprintln(os.Stderr, "Error: exactly one of -manifest or -job-id is required")
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
	if *interval <= 0 {
		*interval = cfg.PollInterval
	}

	var m *manifest.Manifest
	var jobs []*track.Job
	if *manifestPath != "" {
		m, err = manifest.Load(*manifestPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			return ExitConfigError
		}
		for _, key := range m.Keys() {
			e := m.Jobs[key]
			jobs = append(jobs, &track.Job{
				ID:        e.ComputationID,
				Key:       key,
				LastError: e.Error,
			})
		}
		if len(jobs) == 0 {
			fmt.Fprintln(os.Stderr, "Error: manifest has no jobs")
			return ExitConfigError
		}
	} else {
		jobs = []*track.Job{{ID: *jobID, Key: *jobID}}
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

	tracker := track.New(track.NewProbe(client, log), jobs, track.Options{
		Logger: log,
		OnTransition: func(tr track.Transition) {
			fmt.Fprintf(os.Stderr, "[cosync] %s: %s -> %s\n", tr.Key, tr.From, tr.To)
		},
	})

	start := time.Now()
	fmt.Fprintf(os.Stderr, "[cosync] Watching %d job(s), polling every %s\n", len(jobs), *interval)

	runErr := tracker.Run(ctx, *interval)

	printStateCounts(tracker, time.Since(start))

	if m != nil {
		for _, j := range tracker.Jobs() {
			m.SetStatus(j.Key, string(j.State), j.LastError)
		}
		if err := m.Save(*manifestPath); err != nil {
			fmt.Fprintf(os.Stderr, "Error updating manifest: %v\n", err)
			return ExitGeneralError
		}
	}

	if runErr != nil && !errors.Is(runErr, context.Canceled) {
		fmt.Fprintf(os.Stderr, "Error: %v\n", runErr)
		return ExitGeneralError
	}
	if runErr != nil {
		return ExitGeneralError
	}

	counts := tracker.StateCounts()
	if counts[codeocean.StateFailed] > 0 || counts[codeocean.StateStopped] > 0 {
		return ExitPartialFailure
	}
	return ExitSuccess
}

func printStateCounts(t *track.Tracker, elapsed time.Duration) {
	counts := t.StateCounts()
	order := []codeocean.State{
		codeocean.StateCompleted,
		codeocean.StateFailed,
		codeocean.StateStopped,
		codeocean.StateRunning,
		codeocean.StatePending,
		codeocean.StateUnknown,
	}
	fmt.Fprintf(os.Stderr, "[cosync] Done after %s:", elapsed.Round(time.Second))
	for _, s := range order {
		if counts[s] > 0 {
			fmt.Fprintf(os.Stderr, " %d %s", counts[s], s)
		}
	}
	fmt.Fprintln(os.Stderr)
}
