package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rs/zerolog"

	"github.com/AllenNeuralDynamics/cosync/internal/codeocean"
	"github.com/AllenNeuralDynamics/cosync/internal/config"
	"github.com/AllenNeuralDynamics/cosync/internal/results"
)

func TestWritePlanSummary(t *testing.T) {
	plan := results.Plan{
		Download: []codeocean.FolderItem{
			{Path: "/a.bin", Size: 1024, Kind: codeocean.KindFile},
			{Path: "/sub/b.bin", Size: 2048, Kind: codeocean.KindFile},
		},
		SkippedBySize: []codeocean.FolderItem{
			{Path: "/huge.avi", Size: 100 << 20, Kind: codeocean.KindFile},
		},
		AlreadyPresent: []codeocean.FolderItem{
			{Path: "/done.txt", Size: 5, Kind: codeocean.KindFile},
		},
	}

	var buf bytes.Buffer
	writePlanSummary(&buf, "job-1", plan)
	out := buf.String()

	if !strings.Contains(out, "job-1: 2 file(s) to download (3.00 KB), 1 over size limit, 1 already present") {
		t.Errorf("missing count line:\n%s", out)
	}
	for _, want := range []string{
		"To download:",
		"/a.bin (1.00 KB)",
		"/sub/b.bin (2.00 KB)",
		"Skipped (over size limit):",
		"/huge.avi (100.00 MB)",
		"Already present:",
		"/done.txt (5 B)",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("missing %q in plan summary:\n%s", want, out)
		}
	}
}

func TestWritePlanSummaryTruncatesLongCategories(t *testing.T) {
	var plan results.Plan
	for i := 0; i < planPreviewDownload+5; i++ {
		plan.Download = append(plan.Download, codeocean.FolderItem{
			Path: fmt.Sprintf("/f%03d.bin", i),
			Size: 10,
			Kind: codeocean.KindFile,
		})
	}

	var buf bytes.Buffer
	writePlanSummary(&buf, "job-1", plan)
	out := buf.String()

	if !strings.Contains(out, fmt.Sprintf("/f%03d.bin", planPreviewDownload-1)) {
		t.Errorf("last previewed path missing:\n%s", out)
	}
	if strings.Contains(out, fmt.Sprintf("/f%03d.bin", planPreviewDownload)) {
		t.Errorf("paths beyond the preview limit should not be listed:\n%s", out)
	}
	if !strings.Contains(out, "... and 5 more") {
		t.Errorf("missing truncation line:\n%s", out)
	}
}

func TestWritePlanSummaryOmitsEmptyCategories(t *testing.T) {
	plan := results.Plan{
		Download: []codeocean.FolderItem{{Path: "/a.bin", Size: 10, Kind: codeocean.KindFile}},
	}

	var buf bytes.Buffer
	writePlanSummary(&buf, "job-1", plan)
	out := buf.String()

	if strings.Contains(out, "Skipped") || strings.Contains(out, "Already present") {
		t.Errorf("empty categories should not be listed:\n%s", out)
	}
}

// Files land under the computation ID, not the manifest key, so batch and
// single-job invocations resolve to the same local paths.
func TestDownloadJobDestNamedByComputationID(t *testing.T) {
	const compID = "comp-42"

	mux := http.NewServeMux()
	var server *httptest.Server
	mux.HandleFunc("/api/v1/computations/"+compID, func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(codeocean.Computation{
			ID: compID, State: codeocean.StateCompleted, HasResults: true,
		})
	})
	mux.HandleFunc("/api/v1/computations/"+compID+"/results", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"items":[{"path":"/a.txt","size":5}]}`)
	})
	mux.HandleFunc("/api/v1/computations/"+compID+"/results/download_url", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]string{"url": server.URL + "/files/a.txt"})
	})
	mux.HandleFunc("/files/a.txt", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("hello"))
	})
	server = httptest.NewServer(mux)
	defer server.Close()

	cfg := config.Default()
	cfg.Domain = server.URL
	cfg.DownloadRoot = t.TempDir()

	client := codeocean.NewClient(server.URL, "token", codeocean.DefaultOptions())
	always := func(results.Plan) bool { return true }

	err := downloadJob(context.Background(), client, cfg, "subject-01", compID, always, zerolog.Nop())
	if err != nil {
		t.Fatalf("downloadJob: %v", err)
	}

	data, err := os.ReadFile(filepath.Join(cfg.DownloadRoot, compID, "a.txt"))
	if err != nil {
		t.Fatalf("file not at computation-id path: %v", err)
	}
	if string(data) != "hello" {
		t.Errorf("unexpected content: %q", data)
	}

	if _, err := os.Stat(filepath.Join(cfg.DownloadRoot, "subject-01")); err == nil {
		t.Error("manifest key must not name the destination subdirectory")
	}
}
