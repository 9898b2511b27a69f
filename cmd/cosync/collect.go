package main

import (
	"context"
	"flag"
	"fmt"
	"net/url"
	"os"
	"os/signal"
	"path"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/rs/zerolog"
	"gocloud.dev/blob"
	_ "gocloud.dev/blob/s3blob"

	"github.com/AllenNeuralDynamics/cosync/internal/assets"
	"github.com/AllenNeuralDynamics/cosync/internal/progress"
)

// multiFlag collects repeated -exclude values.
type multiFlag []string

func (m *multiFlag) String() string {
	return strings.Join(*m, ",")
}

func (m *multiFlag) Set(value string) error {
	*m = append(*m, value)
	return nil
}

func runCollect(args []string) int {
	fs := flag.NewFlagSet("collect", flag.ExitOnError)

	configPath := fs.String("config", "", "Path to config file")
	dest := fs.String("dest", "", "Destination root directory (required)")
	concurrency := fs.Int("concurrency", 0, "Number of parallel transfers (default from config)")
	verbose := fs.Bool("v", false, "Verbose logging")
	var excludes multiFlag
	fs.Var(&excludes, "exclude", "Key pattern to skip (repeatable; 'prefix/*' skips a whole subtree)")

	fs.Usage = func() {
		fmt.Fprintln(os.Stderr, `Usage: cosync collect -dest <dir> [options] s3://bucket/prefix ...

Sync every object under each S3 prefix to a subdirectory of -dest.
Objects matching an exclude pattern are skipped, as are files already on
disk with the same size. Credentials come from the standard AWS
environment.

Options:`)
		fs.PrintDefaults()
	}

	if err := fs.Parse(args); err != nil {
		return ExitInvalidArgs
	}

	if *dest == "" {
		fmt.Fprintln(os.Stderr, "Error: -dest is required")
		fs.Usage()
		return ExitInvalidArgs
	}
	uris := fs.Args()
	if len(uris) == 0 {
		fmt.Fprintln(os.Stderr, "Error: at least one s3:// URL is required")
		fs.Usage()
		return ExitInvalidArgs
	}

	log := newLogger(*verbose)

	cfg, err := loadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return ExitConfigError
	}
	if *concurrency > 0 {
		cfg.Concurrency = *concurrency
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

	failed := 0
	for _, uri := range uris {
		if ctx.Err() != nil {
			return ExitGeneralError
		}
		if err := collectPrefix(ctx, uri, *dest, excludes, cfg.Concurrency, log); err != nil {
			log.Error().Str("source", uri).Err(err).Msg("collect failed")
			failed++
		}
	}

	if failed > 0 {
		fmt.Fprintf(os.Stderr, "[cosync] %d of %d source(s) failed\n", failed, len(uris))
		return ExitPartialFailure
	}
	return ExitSuccess
}

// collectPrefix syncs one s3://bucket/prefix source into a subdirectory of
// destRoot named after the prefix (or the bucket, for a bare bucket URL).
func collectPrefix(ctx context.Context, uri, destRoot string, excludes []string,
	workers int, log zerolog.Logger) error {

	bucketName, prefix, err := parseS3URI(uri)
	if err != nil {
		return err
	}

	bucket, err := blob.OpenBucket(ctx, "s3://"+bucketName)
	if err != nil {
		return fmt.Errorf("open bucket: %w", err)
	}
	defer bucket.Close()

	src := bucket
	subdir := bucketName
	if prefix != "" {
		src = blob.PrefixedBucket(bucket, prefix+"/")
		subdir = path.Base(prefix)
	}

	dest := filepath.Join(destRoot, subdir)
	fmt.Fprintf(os.Stderr, "[cosync] Collecting %s -> %s\n", uri, dest)

	summary, err := assets.Sync(ctx, src, dest, assets.Options{
		Workers: workers,
		Exclude: excludes,
		Logger:  log,
	})
	if err != nil {
		return err
	}

	fmt.Fprintf(os.Stderr, "[cosync] %s: %d synced (%s), %d excluded, %d already present, %d failed\n",
		uri, summary.Synced, progress.FormatBytes(summary.Bytes),
		summary.Excluded, summary.Present, summary.Failed)

	if summary.Failed > 0 {
		return fmt.Errorf("%d object(s) failed", summary.Failed)
	}
	return nil
}

// parseS3URI splits s3://bucket/prefix into bucket and trimmed prefix.
func parseS3URI(uri string) (bucket, prefix string, err error) {
	u, err := url.Parse(uri)
	if err != nil {
		return "", "", fmt.Errorf("parse %s: %w", uri, err)
	}
	if u.Scheme != "s3" || u.Host == "" {
		return "", "", fmt.Errorf("not an s3://bucket/prefix URL: %s", uri)
	}
	return u.Host, strings.Trim(u.Path, "/"), nil
}
