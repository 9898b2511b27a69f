package results

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"

	"github.com/AllenNeuralDynamics/cosync/internal/codeocean"
)

// Plan is the outcome of partitioning a file listing against the local
// destination: every input file lands in exactly one slice, in listing
// order, or is dropped (with a warning) when it carries no usable size.
type Plan struct {
	Download       []codeocean.FolderItem
	SkippedBySize  []codeocean.FolderItem
	AlreadyPresent []codeocean.FolderItem
}

// Total returns the number of files across all three sets.
func (p Plan) Total() int {
	return len(p.Download) + len(p.SkippedBySize) + len(p.AlreadyPresent)
}

// DownloadBytes returns the total size of the files to download.
func (p Plan) DownloadBytes() int64 {
	var total int64
	for _, item := range p.Download {
		total += item.Size
	}
	return total
}

// DestPath returns the local destination for an object path under root:
// the leading separator is stripped and the remainder preserved.
func DestPath(root, objectPath string) string {
	return filepath.Join(root, filepath.FromSlash(strings.TrimPrefix(objectPath, "/")))
}

// Partition splits objects into download / skipped-by-size / already-present.
// maxSizeMB <= 0 means no size limit; force routes existing files back into
// the download set. The size check runs before the existence check so that
// an oversized file keeps its size-skip audit trail even when a copy is
// already on disk.
func Partition(objects []codeocean.FolderItem, destRoot string, maxSizeMB float64, force bool, log zerolog.Logger) Plan {
	var plan Plan

	for _, obj := range objects {
		if obj.Size <= 0 {
			log.Warn().Str("path", obj.Path).Msg("file has no size information, skipping")
			continue
		}

		sizeMB := float64(obj.Size) / (1 << 20)
		if maxSizeMB > 0 && sizeMB > maxSizeMB {
			log.Info().Str("path", obj.Path).Float64("size_mb", sizeMB).Float64("limit_mb", maxSizeMB).
				Msg("skipping file over size limit")
			plan.SkippedBySize = append(plan.SkippedBySize, obj)
			continue
		}

		dest := DestPath(destRoot, obj.Path)
		if !force {
			if _, err := os.Stat(dest); err == nil {
				log.Debug().Str("path", obj.Path).Msg("file already exists locally")
				plan.AlreadyPresent = append(plan.AlreadyPresent, obj)
				continue
			}
		}

		plan.Download = append(plan.Download, obj)
	}

	return plan
}
