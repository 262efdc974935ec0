package catalog

import (
	"context"
	"iter"
	"log/slog"
	"path"
	"sync/atomic"

	"ferry/internal/logging"
	"ferry/internal/metrics"
)

// DefaultMaxDepth bounds folder nesting when no limit is configured.
const DefaultMaxDepth = 32

// Leaf is a transferable node annotated with its folder context.
type Leaf struct {
	Node
	// FolderPath is the "/"-joined folder names below the root; empty at the root.
	FolderPath string
	// DisplayName is "<folder>_<name>" below the root and the plain name at it.
	DisplayName string
}

// Walker enumerates the leaves of a catalog tree.
type Walker struct {
	fetcher  Fetcher
	courseID string
	maxDepth int
	logger   *slog.Logger

	folders  atomic.Int64
	failures atomic.Int64
}

// NewWalker constructs a walker over courseID.
func NewWalker(fetcher Fetcher, courseID string, maxDepth int, logger *slog.Logger) *Walker {
	if maxDepth <= 0 {
		maxDepth = DefaultMaxDepth
	}
	return &Walker{
		fetcher:  fetcher,
		courseID: courseID,
		maxDepth: maxDepth,
		logger:   logging.NewComponentLogger(logger, "catalog"),
	}
}

// Folders returns the number of folder listings fetched successfully.
func (w *Walker) Folders() int64 { return w.folders.Load() }

// Failures returns the number of folders skipped because they could not be
// fetched or were nested too deeply.
func (w *Walker) Failures() int64 { return w.failures.Load() }

type frame struct {
	name     string
	path     string
	depth    int
	children []Node
	next     int
}

// Walk returns a depth-first pre-order sequence of the leaves under
// rootFolderID. Children are visited in listing order and a subfolder is
// descended into at its position in the listing. Breaking out of the loop
// stops all further fetches. The sequence is not restartable.
func (w *Walker) Walk(ctx context.Context, rootFolderID string) iter.Seq[Leaf] {
	return func(yield func(Leaf) bool) {
		root, ok := w.fetch(ctx, rootFolderID, "", "")
		if !ok {
			return
		}
		stack := []frame{{depth: 0, children: root.Children}}
		for len(stack) > 0 {
			if ctx.Err() != nil {
				return
			}
			top := &stack[len(stack)-1]
			if top.next >= len(top.children) {
				stack = stack[:len(stack)-1]
				continue
			}
			child := top.children[top.next]
			top.next++
			child.ParentPath = top.path

			if child.Kind == KindFolder {
				depth := top.depth + 1
				childPath := path.Join(top.path, child.Name)
				if depth > w.maxDepth {
					w.skip("depth")
					logging.WarnWithContext(w.logger, "folder skipped: nesting too deep", "catalog_depth_exceeded",
						logging.String("folder", childPath),
						logging.Int("max_depth", w.maxDepth),
						logging.String(logging.FieldErrorHint, "raise catalog.max_depth if the nesting is intentional"),
						logging.String(logging.FieldImpact, "subtree not transferred"),
					)
					continue
				}
				listing, ok := w.fetch(ctx, child.ID, child.Name, childPath)
				if !ok {
					continue
				}
				stack = append(stack, frame{
					name:     child.Name,
					path:     childPath,
					depth:    depth,
					children: listing.Children,
				})
				continue
			}

			leaf := Leaf{Node: child, FolderPath: top.path, DisplayName: child.Name}
			if top.depth > 0 {
				leaf.DisplayName = top.name + "_" + child.Name
			}
			if !yield(leaf) {
				return
			}
		}
	}
}

func (w *Walker) fetch(ctx context.Context, folderID, name, folderPath string) (Listing, bool) {
	listing, err := w.fetcher.FetchFolder(ctx, w.courseID, folderID)
	if err != nil {
		if ctx.Err() != nil {
			return Listing{}, false
		}
		w.skip("fetch")
		logging.WarnWithContext(w.logger, "folder fetch failed; skipping subtree", "catalog_fetch_failed",
			logging.String("folder", folderPath),
			logging.String("folder_id", folderID),
			logging.String("folder_name", name),
			logging.Error(err),
			logging.ErrorKind(err),
			logging.String(logging.FieldErrorHint, "check catalog credentials and folder id"),
			logging.String(logging.FieldImpact, "subtree not transferred; siblings continue"),
		)
		return Listing{}, false
	}
	w.folders.Add(1)
	w.logger.Debug("folder listed",
		logging.String("folder", folderPath),
		logging.String("folder_id", folderID),
		logging.Int("children", len(listing.Children)),
	)
	return listing, true
}

func (w *Walker) skip(reason string) {
	w.failures.Add(1)
	metrics.RecordCatalogFailure(reason)
}
