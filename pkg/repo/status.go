package repo

import (
	"fmt"
	"sort"
)

// FileStatus is the state of a working-tree file relative to HEAD.
type FileStatus int

const (
	StatusClean     FileStatus = iota // matches HEAD
	StatusModified                    // tracked, content differs from HEAD
	StatusDeleted                     // tracked, missing from disk
	StatusUntracked                   // on disk, not in HEAD
)

func (s FileStatus) String() string {
	switch s {
	case StatusClean:
		return "clean"
	case StatusModified:
		return "modified"
	case StatusDeleted:
		return "deleted"
	case StatusUntracked:
		return "untracked"
	default:
		return fmt.Sprintf("FileStatus(%d)", int(s))
	}
}

// StatusEntry records the status of a single path.
type StatusEntry struct {
	Path       string     // repo-relative path
	Staged     bool       // path is in the staging area
	WorkStatus FileStatus // working tree vs HEAD
}

// Status reports every path that is staged or whose working copy differs
// from HEAD, sorted by path. Clean unstaged paths are omitted.
func (r *Repo) Status() ([]StatusEntry, error) {
	stg, err := r.ReadStaging()
	if err != nil {
		return nil, fmt.Errorf("status: %w", err)
	}
	headFiles, err := r.headTreeFiles()
	if err != nil {
		return nil, fmt.Errorf("status: %w", err)
	}
	workFiles, err := r.walkWorkingFiles(r.RootDir)
	if err != nil {
		return nil, fmt.Errorf("status: %w", err)
	}

	result := make(map[string]*StatusEntry)
	for _, p := range workFiles {
		if _, tracked := headFiles[p]; !tracked {
			result[p] = &StatusEntry{Path: p, WorkStatus: StatusUntracked}
		}
	}
	for p, entry := range headFiles {
		h, exists, err := r.workingHash(p)
		if err != nil {
			return nil, fmt.Errorf("status: %w", err)
		}
		switch {
		case !exists:
			result[p] = &StatusEntry{Path: p, WorkStatus: StatusDeleted}
		case h != entry.Hash:
			result[p] = &StatusEntry{Path: p, WorkStatus: StatusModified}
		}
	}
	for _, p := range stg.List() {
		e, ok := result[p]
		if !ok {
			e = &StatusEntry{Path: p, WorkStatus: StatusClean}
			result[p] = e
		}
		e.Staged = true
	}

	entries := make([]StatusEntry, 0, len(result))
	for _, e := range result {
		entries = append(entries, *e)
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Path < entries[j].Path })
	return entries, nil
}
