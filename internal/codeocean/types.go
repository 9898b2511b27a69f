package codeocean

import "encoding/json"

// State is the lifecycle state of a computation.
type State string

// Known computation states. Anything the API reports that is not one of
// the terminal states is treated as non-terminal; StateUnknown is used
// locally when a status lookup fails and is never terminal.
const (
	StatePending   State = "pending"
	StateRunning   State = "running"
	StateCompleted State = "completed"
	StateFailed    State = "failed"
	StateStopped   State = "stopped"
	StateUnknown   State = "unknown"
)

// Terminal reports whether no further transition is expected from s.
func (s State) Terminal() bool {
	switch s {
	case StateCompleted, StateFailed, StateStopped:
		return true
	}
	return false
}

// Computation is the status record for one computation.
type Computation struct {
	ID         string `json:"id"`
	Name       string `json:"name,omitempty"`
	State      State  `json:"state"`
	HasResults bool   `json:"has_results"`
}

// NamedParam is a single named run parameter.
type NamedParam struct {
	Name  string `json:"param_name"`
	Value string `json:"value"`
}

// RunParams describes a capsule run submission.
type RunParams struct {
	CapsuleID string       `json:"capsule_id"`
	Params    []NamedParam `json:"named_parameters,omitempty"`
}

// EntryKind distinguishes downloadable files from containers in a result
// listing.
type EntryKind int

const (
	KindFile EntryKind = iota
	KindContainer
)

// FolderItem is one entry of a result listing. Kind is resolved once, when
// the listing response is parsed: an entry with no size (or size zero) is a
// container. The listing API gives no explicit kind flag, so a genuine
// zero-byte file is indistinguishable from a folder and will be walked as
// one; its (empty) children simply do not exist.
type FolderItem struct {
	Path string
	Size int64
	Kind EntryKind
}

// Folder is one directory level of a computation's result tree.
type Folder struct {
	Items []FolderItem `json:"items"`
}

type folderItemJSON struct {
	Path string `json:"path"`
	Size *int64 `json:"size,omitempty"`
}

// UnmarshalJSON resolves the size heuristic into a tagged kind.
func (f *FolderItem) UnmarshalJSON(data []byte) error {
	var raw folderItemJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	f.Path = raw.Path
	if raw.Size == nil || *raw.Size <= 0 {
		f.Size = 0
		f.Kind = KindContainer
	} else {
		f.Size = *raw.Size
		f.Kind = KindFile
	}
	return nil
}

// MarshalJSON emits the wire form (size omitted for containers).
func (f FolderItem) MarshalJSON() ([]byte, error) {
	raw := folderItemJSON{Path: f.Path}
	if f.Kind == KindFile {
		size := f.Size
		raw.Size = &size
	}
	return json.Marshal(raw)
}

// FileURLs is the response to a download URL request.
type FileURLs struct {
	DownloadURL string `json:"url"`
}
