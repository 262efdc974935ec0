package transfer

import (
	"iter"
	"strings"
	"time"

	"ferry/internal/catalog"
	"ferry/internal/textutil"
)

// WorkItem is one leaf scheduled for transfer. It is never mutated after
// creation.
type WorkItem struct {
	ArtifactID  string
	DisplayName string
	Kind        catalog.Kind
	// SourceRef is a content hash for catalog videos and a URL otherwise.
	SourceRef  string
	FolderPath string
}

// FromLeaf converts a walked catalog leaf into a work item.
func FromLeaf(leaf catalog.Leaf) WorkItem {
	return WorkItem{
		ArtifactID:  leaf.ID,
		DisplayName: leaf.DisplayName,
		Kind:        leaf.Kind,
		SourceRef:   leaf.ContentRef,
		FolderPath:  leaf.FolderPath,
	}
}

// FromLeaves adapts a walker sequence into work items.
func FromLeaves(leaves iter.Seq[catalog.Leaf]) iter.Seq[WorkItem] {
	return func(yield func(WorkItem) bool) {
		for leaf := range leaves {
			if !yield(FromLeaf(leaf)) {
				return
			}
		}
	}
}

// StagedFileName is the file name an item is staged and uploaded under:
// "<id>_<name><ext>". Sinks key objects by file name, so the id prefix keeps
// items that share a display name in one folder apart. A display name that
// already ends in ext is not given a second copy.
func (w WorkItem) StagedFileName(ext string) string {
	name := strings.TrimSpace(w.DisplayName)
	if ext != "" && len(name) > len(ext) && strings.EqualFold(name[len(name)-len(ext):], ext) {
		name = name[:len(name)-len(ext)]
	}
	id := textutil.SanitizeToken(w.ArtifactID)
	return strings.TrimRight(textutil.SafeFileName(id+"_"+name, id), "_ .") + ext
}

func (w WorkItem) isURL() bool {
	ref := strings.ToLower(w.SourceRef)
	return strings.HasPrefix(ref, "http://") || strings.HasPrefix(ref, "https://")
}

// isManifest reports whether a URL source points at an HLS playlist.
func (w WorkItem) isManifest() bool {
	ref := strings.ToLower(w.SourceRef)
	if i := strings.IndexAny(ref, "?#"); i >= 0 {
		ref = ref[:i]
	}
	return strings.HasSuffix(ref, ".m3u8")
}

// Stage names emitted while an item moves through the pipeline.
const (
	StagePending     = "pending"
	StageSelecting   = "selecting"
	StageDownloading = "downloading"
	StageChunking    = "chunking"
	StageUploading   = "uploading"
	StageCompleted   = "completed"
	StageFailed      = "failed"
)

// Outcome is the terminal result of processing one item in this run.
type Outcome string

const (
	// OutcomeCompleted means every part was uploaded.
	OutcomeCompleted Outcome = "completed"
	// OutcomeSkipped means the ledger already held an uploaded record.
	OutcomeSkipped Outcome = "skipped"
	// OutcomeFailed means the item failed and was recorded as such.
	OutcomeFailed Outcome = "failed"
	// OutcomeAbandoned means the run was cancelled before the item finished;
	// nothing was written to the ledger.
	OutcomeAbandoned Outcome = "abandoned"
)

// Result describes how one item ended.
type Result struct {
	Item       WorkItem
	Outcome    Outcome
	Parts      int
	RemoteRefs []string
	Bytes      int64
	Err        error
	// Inconsistent is set when uploads succeeded but the ledger write did not.
	Inconsistent bool
	Elapsed      time.Duration
}

// Succeeded reports whether the item counts as done for this run.
func (r Result) Succeeded() bool {
	return r.Outcome == OutcomeCompleted || r.Outcome == OutcomeSkipped
}
