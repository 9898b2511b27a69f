package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/AllenNeuralDynamics/cosync/internal/codeocean"
	"github.com/AllenNeuralDynamics/cosync/internal/manifest"
)

func runSubmit(args []string) int {
	fs := flag.NewFlagSet("submit", flag.ExitOnError)

	configPath := fs.String("config", "", "Path to config file")
	capsule := fs.String("capsule", "", "Capsule ID to run (required)")
	paramsPath := fs.String("params", "", "YAML file mapping job keys to run parameters (required)")
	manifestPath := fs.String("manifest", "jobs.json", "Manifest file to write")
	verbose := fs.Bool("v", false, "Verbose logging")

	fs.Usage = func() {
		fmt.Fprintln(os.Stderr, `Usage: cosync submit [options]

Submit one capsule run per entry of the params file and record every
outcome, including failed submissions, in the batch manifest.

The params file maps unique job keys to named run parameters:

  subject-01:
    input_path: /data/subject-01
    threshold: "0.5"

Options:`)
		fs.PrintDefaults()
	}

	if err := fs.Parse(args); err != nil {
		return ExitInvalidArgs
	}

	if *capsule == "" || *paramsPath == "" {
		fmt.Fprintln(os.Stderr, "Error: -capsule and -params are required")
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

	jobs, err := loadParams(*paramsPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return ExitConfigError
	}
	if len(jobs) == 0 {
		fmt.Fprintln(os.Stderr, "Error: params file has no jobs")
		return ExitConfigError
	}

	client, err := newClient(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return ExitConfigError
	}

	ctx := context.Background()

	m := manifest.New()
	submitted, failed := 0, 0

	keys := make([]string, 0, len(jobs))
	for k := range jobs {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, key := range keys {
		settings := jobs[key]
		entry := manifest.Entry{
			RunSettings: toSettings(settings),
			Status:      "pending",
		}

		comp, err := client.RunCapsule(ctx, codeocean.RunParams{
			CapsuleID: *capsule,
			Params:    toNamedParams(settings),
		})
		if err != nil {
			log.Error().Str("job", key).Err(err).Msg("submission failed")
			entry.Status = "failed"
			entry.Error = err.Error()
			failed++
		} else {
			entry.ComputationID = comp.ID
			submitted++
			log.Info().Str("job", key).Str("computation_id", comp.ID).Msg("submitted")
		}

		if err := m.Add(key, entry); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			return ExitGeneralError
		}
	}

	if err := m.Save(*manifestPath); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return ExitGeneralError
	}

	fmt.Fprintf(os.Stderr, "[cosync] Batch %s: %d submitted, %d failed (%s)\n",
		m.BatchID, submitted, failed, *manifestPath)

	if failed > 0 {
		return ExitPartialFailure
	}
	return ExitSuccess
}

// loadParams reads the params file: a map of job key to named parameters.
func loadParams(path string) (map[string]map[string]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read params: %w", err)
	}
	var jobs map[string]map[string]string
	if err := yaml.Unmarshal(data, &jobs); err != nil {
		return nil, fmt.Errorf("parse params: %w", err)
	}
	return jobs, nil
}

func toNamedParams(settings map[string]string) []codeocean.NamedParam {
	names := make([]string, 0, len(settings))
	for n := range settings {
		names = append(names, n)
	}
	sort.Strings(names)

	params := make([]codeocean.NamedParam, 0, len(names))
	for _, n := range names {
		params = append(params, codeocean.NamedParam{Name: n, Value: settings[n]})
	}
	return params
}

func toSettings(settings map[string]string) map[string]any {
	out := make(map[string]any, len(settings))
	for k, v := range settings {
		out[k] = v
	}
	return out
}
