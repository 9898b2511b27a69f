package results

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/AllenNeuralDynamics/cosync/internal/codeocean"
)

// Lister lists one directory level of a computation's result tree. It is
// satisfied by *codeocean.Client.
type Lister interface {
	ListResults(ctx context.Context, computationID, path string) (*codeocean.Folder, error)
}

// Enumerator flattens a computation's result tree into a list of files.
type Enumerator struct {
	lister Lister
	log    zerolog.Logger
}

// NewEnumerator creates an enumerator over lister.
func NewEnumerator(lister Lister, log zerolog.Logger) *Enumerator {
	return &Enumerator{lister: lister, log: log}
}

// List walks the result tree of computationID breadth-first from the root
// and returns every file entry with its path and size. Containers are
// descended into; a listing failure logs the sub-path and omits that
// subtree. The remote namespace is tree-shaped by the store's own
// invariants, so no visited-path guard is needed.
func (e *Enumerator) List(ctx context.Context, computationID string) []codeocean.FolderItem {
	var files []codeocean.FolderItem

	queue := []string{""}
	for len(queue) > 0 {
		if ctx.Err() != nil {
			e.log.Warn().Str("computation_id", computationID).Err(ctx.Err()).
				Msg("enumeration cancelled, returning partial listing")
			return files
		}

		path := queue[0]
		queue = queue[1:]

		folder, err := e.lister.ListResults(ctx, computationID, path)
		if err != nil {
			e.log.Warn().Str("computation_id", computationID).Str("path", path).Err(err).
				Msg("listing failed, omitting subtree")
			continue
		}

		for _, item := range folder.Items {
			if item.Kind == codeocean.KindContainer {
				queue = append(queue, item.Path)
			} else {
				files = append(files, item)
			}
		}
	}

	return files
}
