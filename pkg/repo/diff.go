package repo

import (
	"fmt"
	"sort"

	"github.com/odvcencio/mdv/pkg/object"
)

// ChangeKind classifies a whole-file difference between two trees.
type ChangeKind string

const (
	ChangeAdded    ChangeKind = "added"
	ChangeRemoved  ChangeKind = "removed"
	ChangeModified ChangeKind = "modified"
)

// FileChange is one path that differs between two trees. OldHash is empty
// for additions, NewHash for removals.
type FileChange struct {
	Path    string
	Kind    ChangeKind
	OldHash object.Hash
	NewHash object.Hash
}

// Diff lists the files that differ between two revisions, sorted by path.
// Either argument may be anything Resolve accepts.
func (r *Repo) Diff(rev1, rev2 string) ([]FileChange, error) {
	from, err := r.resolvedTree(rev1)
	if err != nil {
		return nil, fmt.Errorf("diff: %w", err)
	}
	to, err := r.resolvedTree(rev2)
	if err != nil {
		return nil, fmt.Errorf("diff: %w", err)
	}
	return diffTrees(from, to), nil
}

func (r *Repo) resolvedTree(ref string) (map[string]TreeFileEntry, error) {
	h, err := r.Resolve(ref)
	if err != nil {
		return nil, err
	}
	return r.revisionTree(h)
}

// diffTrees compares two expanded trees. A mode change alone counts as a
// modification.
func diffTrees(from, to map[string]TreeFileEntry) []FileChange {
	var changes []FileChange
	for p, old := range from {
		next, ok := to[p]
		switch {
		case !ok:
			changes = append(changes, FileChange{Path: p, Kind: ChangeRemoved, OldHash: old.Hash})
		case old.Hash != next.Hash || normalizeFileMode(old.Mode) != normalizeFileMode(next.Mode):
			changes = append(changes, FileChange{Path: p, Kind: ChangeModified, OldHash: old.Hash, NewHash: next.Hash})
		}
	}
	for p, next := range to {
		if _, ok := from[p]; !ok {
			changes = append(changes, FileChange{Path: p, Kind: ChangeAdded, NewHash: next.Hash})
		}
	}
	sort.Slice(changes, func(i, j int) bool { return changes[i].Path < changes[j].Path })
	return changes
}

func sortedKeys(m map[string]TreeFileEntry) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
