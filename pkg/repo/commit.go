package repo

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/odvcencio/mdv/pkg/object"
	"go.uber.org/zap"
)

// LogEntry pairs a revision with its hash.
type LogEntry struct {
	Hash   object.Hash
	Commit *object.CommitObj
}

// Commit records every staged path as a new revision on the current branch
// (or detached HEAD) and returns its hash.
func (r *Repo) Commit(message, author string) (object.Hash, error) {
	stg, err := r.ReadStaging()
	if err != nil {
		return "", fmt.Errorf("commit: %w", err)
	}
	return r.CommitPaths(stg.List(), message, author)
}

// CommitPaths creates a revision from the given staged paths.
//
//  1. Fail with ErrNothingStaged if paths is empty
//  2. Fail with *UntrackedFileError for any path that is not staged, and
//     with ErrInvalidAuthor for an author containing a line break
//  3. Overlay each path's on-disk content onto HEAD's tree; a path missing
//     from disk drops out of the tree
//  4. Write the revision with HEAD's revision as main parent
//  5. Advance the current branch (or detached HEAD) with a CAS
//  6. Unstage the committed paths
//
// After step 2 the only possible failures are storage errors and a staged
// path that is no longer a regular file.
func (r *Repo) CommitPaths(paths []string, message, author string) (object.Hash, error) {
	if len(paths) == 0 {
		return "", fmt.Errorf("commit: %w", ErrNothingStaged)
	}

	stg, err := r.ReadStaging()
	if err != nil {
		return "", fmt.Errorf("commit: %w", err)
	}
	rels := make([]string, 0, len(paths))
	for _, p := range paths {
		rel, err := r.repoRelPath(p)
		if err != nil || !stg.Contains(rel) {
			return "", fmt.Errorf("commit: %w", &UntrackedFileError{Path: p})
		}
		rels = append(rels, rel)
	}

	if strings.TrimSpace(author) == "" {
		author = r.DefaultAuthor()
	}
	if err := object.ValidateAuthor(author); err != nil {
		return "", fmt.Errorf("commit: %w", err)
	}

	state, err := r.HeadState()
	if err != nil {
		return "", fmt.Errorf("commit: %w", err)
	}
	files, err := r.revisionTree(state.Revision)
	if err != nil {
		return "", storageErr("commit: read HEAD tree", err)
	}

	for _, rel := range rels {
		if err := r.overlayWorkingFile(files, rel); err != nil {
			return "", err
		}
	}

	treeHash, err := r.BuildTree(files)
	if err != nil {
		return "", storageErr("commit: build tree", err)
	}

	var parents []object.Hash
	if state.Revision != "" {
		parents = append(parents, state.Revision)
	}
	commitObj := &object.CommitObj{
		TreeHash:  treeHash,
		Parents:   parents,
		Author:    author,
		Timestamp: r.now().Unix(),
		Message:   message,
	}

	// The revision and everything it references are durable before any
	// pointer is moved.
	commitHash, err := r.Store.WriteCommit(commitObj)
	if err != nil {
		return "", storageErr("commit: write revision", err)
	}

	reason := "commit: " + firstLine(message)
	if err := r.advanceHead(state, commitHash, reason); err != nil {
		return "", fmt.Errorf("commit: %w", err)
	}

	for _, rel := range rels {
		stg.delete(rel)
	}
	if err := r.WriteStaging(stg); err != nil {
		return "", fmt.Errorf("commit: %w", err)
	}

	r.logger.Debug("committed",
		zap.String("revision", string(commitHash)),
		zap.String("tree", string(treeHash)),
		zap.Int("paths", len(rels)),
	)
	return commitHash, nil
}

func (r *Repo) overlayWorkingFile(files map[string]TreeFileEntry, rel string) error {
	absPath := filepath.Join(r.RootDir, filepath.FromSlash(rel))
	info, err := os.Lstat(absPath)
	if err != nil {
		if os.IsNotExist(err) {
			delete(files, rel)
			return nil
		}
		return storageErr(fmt.Sprintf("commit: stat %q", rel), err)
	}
	if !info.Mode().IsRegular() {
		return fmt.Errorf("commit: %w", &NotRegularFileError{Path: rel})
	}

	content, err := os.ReadFile(absPath)
	if err != nil {
		return storageErr(fmt.Sprintf("commit: read %q", rel), err)
	}
	h, err := r.Store.Put(content)
	if err != nil {
		return storageErr(fmt.Sprintf("commit: write blob %q", rel), err)
	}
	files[rel] = TreeFileEntry{Path: rel, Hash: h, Mode: modeFromFileInfo(info)}
	return nil
}

// advanceHead moves whatever HEAD designates from state.Revision to next.
func (r *Repo) advanceHead(state HeadState, next object.Hash, reason string) error {
	var err error
	if state.Detached() {
		err = r.updateRefCAS("HEAD", next, reason, state.Revision)
	} else {
		err = r.updateRefCAS(headsPrefix+state.Branch, next, reason, state.Revision)
	}
	if errors.Is(err, ErrRefUpdatedButReflogAppendFailed) {
		r.logger.Warn("reflog append failed", zap.Error(err))
		return nil
	}
	return err
}

// Log walks the history starting from the given hash, following main-line
// parents, and returns up to limit revisions newest first. A limit <= 0
// means no limit. The walk ends at a root revision.
func (r *Repo) Log(start object.Hash, limit int) ([]LogEntry, error) {
	var entries []LogEntry
	current := start

	for current != "" && (limit <= 0 || len(entries) < limit) {
		c, err := r.Store.ReadCommit(current)
		if err != nil {
			return nil, fmt.Errorf("log: read revision %s: %w", current, err)
		}
		entries = append(entries, LogEntry{Hash: current, Commit: c})
		current = c.MainParent()
	}

	return entries, nil
}

// ReadRevision resolves ref and reads the revision it names.
func (r *Repo) ReadRevision(ref string) (object.Hash, *object.CommitObj, error) {
	h, err := r.Resolve(ref)
	if err != nil {
		return "", nil, err
	}
	c, err := r.Store.ReadCommit(h)
	if err != nil {
		return "", nil, fmt.Errorf("read revision %s: %w", h, err)
	}
	return h, c, nil
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}
