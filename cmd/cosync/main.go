package main

import (
	"fmt"
	"os"

	"github.com/rs/zerolog"

	"github.com/AllenNeuralDynamics/cosync/internal/codeocean"
	"github.com/AllenNeuralDynamics/cosync/internal/config"
)

// Exit codes
const (
	ExitSuccess        = 0
	ExitGeneralError   = 1
	ExitInvalidArgs    = 2
	ExitConfigError    = 3
	ExitAPIError       = 4
	ExitPartialFailure = 5
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	if len(args) == 0 {
		printUsage()
		return ExitInvalidArgs
	}

	command := args[0]
	cmdArgs := args[1:]

	switch command {
	case "submit":
		return runSubmit(cmdArgs)
	case "watch":
		return runWatch(cmdArgs)
	case "download":
		return runDownload(cmdArgs)
	case "collect":
		return runCollect(cmdArgs)
	case "help", "-h", "--help":
		printUsage()
		return ExitSuccess
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", command)
		printUsage()
		return ExitInvalidArgs
	}
}

func printUsage() {
	fmt.Fprintln(os.Stderr, `Usage: cosync <command> [options]

Commands:
  submit    Submit capsule runs and record them in a batch manifest
  watch     Poll submitted computations until all reach a terminal state
  download  Download result files of finished computations, with size filter
  collect   Bulk-sync S3 asset folders to local disk

Run 'cosync <command> -h' for command-specific help.`)
}

// newLogger builds the console logger shared by all commands.
func newLogger(verbose bool) zerolog.Logger {
	level := zerolog.InfoLevel
	if verbose {
		level = zerolog.DebugLevel
	}
	return zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).
		Level(level).
		With().Timestamp().Logger()
}

// loadConfig resolves effective configuration: defaults, then the optional
// config file, then environment overrides.
func loadConfig(path string) (config.Config, error) {
	cfg := config.Default()

	if path != "" {
		fileCfg, err := config.LoadFromFile(path)
		if err != nil {
			return config.Config{}, err
		}
		cfg = cfg.Merge(fileCfg)
	}

	if err := cfg.LoadFromEnv(); err != nil {
		return config.Config{}, err
	}
	return cfg, nil
}

// newClient resolves the API token and builds a client from cfg. The token
// value itself is never logged.
func newClient(cfg config.Config) (*codeocean.Client, error) {
	token, err := config.ResolveToken(cfg.TokenFile)
	if err != nil {
		return nil, err
	}

	opts := codeocean.DefaultOptions()
	opts.RetryAttempts = cfg.Retry.Attempts
	opts.RetryBackoff = cfg.Retry.Backoff
	opts.RetryMaxBackoff = cfg.Retry.MaxBackoff

	return codeocean.NewClient(cfg.Domain, token, opts), nil
}
