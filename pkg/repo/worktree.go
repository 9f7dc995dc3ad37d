package repo

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/odvcencio/mdv/pkg/object"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

func modeFromFileInfo(info os.FileInfo) string {
	if info.Mode()&0o111 != 0 {
		return object.TreeModeExecutable
	}
	return object.TreeModeFile
}

func normalizeFileMode(mode string) string {
	if mode == object.TreeModeExecutable {
		return mode
	}
	return object.TreeModeFile
}

func permForMode(mode string) os.FileMode {
	if normalizeFileMode(mode) == object.TreeModeExecutable {
		return 0o755
	}
	return 0o644
}

// workingHash hashes the on-disk content of a repo-relative path as a blob.
// exists is false when the path is absent or is a directory.
func (r *Repo) workingHash(rel string) (h object.Hash, exists bool, err error) {
	absPath := filepath.Join(r.RootDir, filepath.FromSlash(rel))
	info, err := os.Stat(absPath)
	if err != nil {
		if os.IsNotExist(err) {
			return "", false, nil
		}
		return "", false, storageErr(fmt.Sprintf("stat %q", rel), err)
	}
	if info.IsDir() {
		return "", false, nil
	}
	data, err := os.ReadFile(absPath)
	if err != nil {
		return "", false, storageErr(fmt.Sprintf("read %q", rel), err)
	}
	return object.HashObject(object.TypeBlob, data), true, nil
}

// ensureClean fails with ErrUncommittedChanges when anything is staged or
// when a file tracked by HEAD differs from (or is missing against) the
// content recorded in HEAD's tree. Untracked files are not considered.
func (r *Repo) ensureClean() error {
	stg, err := r.ReadStaging()
	if err != nil {
		return err
	}
	if stg.Len() > 0 {
		return fmt.Errorf("%w: %d staged path(s)", ErrUncommittedChanges, stg.Len())
	}

	headFiles, err := r.headTreeFiles()
	if err != nil {
		return err
	}
	for _, p := range sortedKeys(headFiles) {
		h, exists, err := r.workingHash(p)
		if err != nil {
			return err
		}
		if !exists || h != headFiles[p].Hash {
			return fmt.Errorf("%w: %q differs from HEAD", ErrUncommittedChanges, p)
		}
	}
	return nil
}

// checkTransition refuses a transition that would clobber anything the
// source tree does not track: an untracked file with different content at
// a path to be written, an untracked directory or a directory holding
// untracked entries at such a path, or an untracked file or symlink where
// the path needs a parent directory. It runs before anything is written.
func (r *Repo) checkTransition(from map[string]TreeFileEntry, changes []FileChange) error {
	var trackedDirs map[string]bool
	for _, c := range changes {
		if c.Kind == ChangeRemoved {
			continue
		}
		if err := r.checkParents(from, c.Path); err != nil {
			return err
		}

		absPath := filepath.Join(r.RootDir, filepath.FromSlash(c.Path))
		info, err := os.Lstat(absPath)
		switch {
		case os.IsNotExist(err):
			continue
		case err != nil:
			return storageErr(fmt.Sprintf("stat %q", c.Path), err)
		case info.IsDir():
			if trackedDirs == nil {
				trackedDirs = dirsOf(from)
			}
			if err := r.checkDirGivesWay(from, trackedDirs, c.Path); err != nil {
				return err
			}
			continue
		}

		if _, tracked := from[c.Path]; tracked {
			continue
		}
		h, exists, err := r.workingHash(c.Path)
		if err != nil {
			return err
		}
		if exists && h != c.NewHash {
			return fmt.Errorf("%w: untracked file %q would be overwritten", ErrUncommittedChanges, c.Path)
		}
	}
	return nil
}

// checkParents makes sure every existing parent of rel is a directory, or
// a tracked file that the transition removes.
func (r *Repo) checkParents(from map[string]TreeFileEntry, rel string) error {
	parts := strings.Split(rel, "/")
	for i := 1; i < len(parts); i++ {
		parent := strings.Join(parts[:i], "/")
		info, err := os.Lstat(filepath.Join(r.RootDir, filepath.FromSlash(parent)))
		switch {
		case os.IsNotExist(err):
			return nil
		case err != nil:
			return storageErr(fmt.Sprintf("stat %q", parent), err)
		case info.IsDir():
			continue
		}
		if _, tracked := from[parent]; !tracked {
			return fmt.Errorf("%w: untracked %q is in the way of %q", ErrUncommittedChanges, parent, rel)
		}
	}
	return nil
}

// checkDirGivesWay accepts a directory at a path that becomes a file only
// when everything under it is tracked, so the removals empty it out.
func (r *Repo) checkDirGivesWay(from map[string]TreeFileEntry, trackedDirs map[string]bool, rel string) error {
	root := filepath.Join(r.RootDir, filepath.FromSlash(rel))
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return storageErr("walk working tree", walkErr)
		}
		sub, err := filepath.Rel(r.RootDir, path)
		if err != nil {
			return err
		}
		sub = filepath.ToSlash(sub)
		if d.IsDir() {
			if !trackedDirs[sub] {
				return fmt.Errorf("%w: untracked directory %q would be overwritten", ErrUncommittedChanges, sub)
			}
			return nil
		}
		if _, tracked := from[sub]; !tracked {
			return fmt.Errorf("%w: untracked file %q would be removed", ErrUncommittedChanges, sub)
		}
		return nil
	})
	return err
}

// dirsOf returns every directory that holds a file of files.
func dirsOf(files map[string]TreeFileEntry) map[string]bool {
	dirs := make(map[string]bool)
	for p := range files {
		for i := strings.LastIndexByte(p, '/'); i > 0; i = strings.LastIndexByte(p[:i], '/') {
			if dirs[p[:i]] {
				break
			}
			dirs[p[:i]] = true
		}
	}
	return dirs
}

// applyTransition moves the working directory from one tree to another,
// touching only the paths in changes. Each written file is staged under a
// temporary name in its destination directory and renamed into place, so
// an interrupted run never leaves a half-written file behind.
func (r *Repo) applyTransition(changes []FileChange, to map[string]TreeFileEntry) error {
	var created, removed, overwritten int

	// Removals go first so a directory can give way to a file of the same
	// name and vice versa.
	for _, c := range changes {
		if c.Kind != ChangeRemoved {
			continue
		}
		absPath := filepath.Join(r.RootDir, filepath.FromSlash(c.Path))
		if err := os.Remove(absPath); err != nil && !os.IsNotExist(err) {
			return storageErr(fmt.Sprintf("remove %q", c.Path), err)
		}
		r.removeEmptyParents(filepath.Dir(absPath))
		removed++
	}

	for _, c := range changes {
		if c.Kind == ChangeRemoved {
			continue
		}
		if err := r.writeWorkingFile(to[c.Path]); err != nil {
			return err
		}
		if c.Kind == ChangeAdded {
			created++
		} else {
			overwritten++
		}
	}

	r.logger.Debug("working tree updated",
		zap.Int("created", created),
		zap.Int("removed", removed),
		zap.Int("overwritten", overwritten),
	)
	return nil
}

func (r *Repo) writeWorkingFile(entry TreeFileEntry) error {
	op := fmt.Sprintf("write %q", entry.Path)
	data, err := r.Store.Get(entry.Hash)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	absPath := filepath.Join(r.RootDir, filepath.FromSlash(entry.Path))
	dir := filepath.Dir(absPath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return storageErr(op, err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(absPath)+".mdv-tmp-*")
	if err != nil {
		return storageErr(op, err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		return storageErr(op, multierr.Combine(err, tmp.Close(), os.Remove(tmpName)))
	}
	if err := tmp.Close(); err != nil {
		return storageErr(op, multierr.Append(err, os.Remove(tmpName)))
	}
	if err := os.Chmod(tmpName, permForMode(entry.Mode)); err != nil {
		return storageErr(op, multierr.Append(err, os.Remove(tmpName)))
	}
	if err := os.Rename(tmpName, absPath); err != nil {
		return storageErr(op, multierr.Append(err, os.Remove(tmpName)))
	}
	return nil
}

// removeEmptyParents removes empty directories up to (but not including)
// the repository root.
func (r *Repo) removeEmptyParents(dir string) {
	for {
		if dir == r.RootDir || !strings.HasPrefix(dir, r.RootDir+string(filepath.Separator)) {
			return
		}
		entries, err := os.ReadDir(dir)
		if err != nil || len(entries) > 0 {
			return
		}
		if err := os.Remove(dir); err != nil {
			return
		}
		dir = filepath.Dir(dir)
	}
}
