package repo

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// Staging is the set of repo-relative paths queued for the next commit.
// Paths are kept in insertion order and never repeated.
type Staging struct {
	Paths []string `json:"paths"`
}

// Contains reports whether p is staged.
func (s *Staging) Contains(p string) bool {
	for _, sp := range s.Paths {
		if sp == p {
			return true
		}
	}
	return false
}

// List returns a copy of the staged paths in insertion order.
func (s *Staging) List() []string {
	out := make([]string, len(s.Paths))
	copy(out, s.Paths)
	return out
}

// Len returns the number of staged paths.
func (s *Staging) Len() int {
	return len(s.Paths)
}

// Clear empties the staging area.
func (s *Staging) Clear() {
	s.Paths = nil
}

func (s *Staging) insert(p string) {
	if !s.Contains(p) {
		s.Paths = append(s.Paths, p)
	}
}

func (s *Staging) delete(p string) {
	kept := s.Paths[:0]
	for _, sp := range s.Paths {
		if sp != p {
			kept = append(kept, sp)
		}
	}
	s.Paths = kept
}

// indexPath returns the filesystem path to the staging index file.
func (r *Repo) indexPath() string {
	return filepath.Join(r.MdvDir, "index")
}

// ReadStaging loads the staging area from .mdv/index. If the file does not
// exist, an empty Staging is returned (no error).
func (r *Repo) ReadStaging() (*Staging, error) {
	data, err := os.ReadFile(r.indexPath())
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return &Staging{}, nil
		}
		return nil, storageErr("read staging", err)
	}

	var stg Staging
	if err := json.Unmarshal(data, &stg); err != nil {
		return nil, fmt.Errorf("read staging: unmarshal: %w", err)
	}
	// Tolerate hand-edited duplicates.
	deduped := &Staging{}
	for _, p := range stg.Paths {
		deduped.insert(p)
	}
	return deduped, nil
}

// WriteStaging atomically writes the staging area to .mdv/index.
func (r *Repo) WriteStaging(s *Staging) error {
	if s.Paths == nil {
		s.Paths = []string{}
	}
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return fmt.Errorf("write staging: marshal: %w", err)
	}
	if err := writeFileAtomic(r.indexPath(), data, 0o644); err != nil {
		return storageErr("write staging", err)
	}
	return nil
}

// Add stages the given paths. Adding an already staged path is a no-op.
// A directory stages every file below it. A path that no longer exists on
// disk may be staged only when HEAD tracks it; committing it then removes
// it from the tree.
func (r *Repo) Add(paths ...string) error {
	stg, err := r.ReadStaging()
	if err != nil {
		return fmt.Errorf("add: %w", err)
	}

	var headFiles map[string]TreeFileEntry
	for _, p := range paths {
		relPath, err := r.repoRelPath(p)
		if err != nil {
			return fmt.Errorf("add: resolve path %q: %w", p, err)
		}

		absPath := filepath.Join(r.RootDir, filepath.FromSlash(relPath))
		info, err := os.Lstat(absPath)
		switch {
		case err == nil && info.IsDir():
			files, err := r.walkWorkingFiles(absPath)
			if err != nil {
				return fmt.Errorf("add: %w", err)
			}
			for _, f := range files {
				stg.insert(f)
			}
		case err == nil && !info.Mode().IsRegular():
			return fmt.Errorf("add: %w", &NotRegularFileError{Path: relPath})
		case err == nil:
			stg.insert(relPath)
		case errors.Is(err, fs.ErrNotExist):
			if headFiles == nil {
				if headFiles, err = r.headTreeFiles(); err != nil {
					return fmt.Errorf("add: %w", err)
				}
			}
			if _, tracked := headFiles[relPath]; !tracked {
				return fmt.Errorf("add: %q: %w", relPath, fs.ErrNotExist)
			}
			stg.insert(relPath)
		default:
			return storageErr("add", err)
		}
	}

	if err := r.WriteStaging(stg); err != nil {
		return fmt.Errorf("add: %w", err)
	}
	return nil
}

// Remove unstages the given paths. It fails with ErrNotTracked, changing
// nothing, if any of them is not staged.
func (r *Repo) Remove(paths ...string) error {
	stg, err := r.ReadStaging()
	if err != nil {
		return fmt.Errorf("remove: %w", err)
	}

	rels := make([]string, 0, len(paths))
	for _, p := range paths {
		relPath, err := r.repoRelPath(p)
		if err != nil {
			return fmt.Errorf("remove: resolve path %q: %w", p, err)
		}
		if !stg.Contains(relPath) {
			return fmt.Errorf("remove: %q: %w", relPath, ErrNotTracked)
		}
		rels = append(rels, relPath)
	}
	for _, p := range rels {
		stg.delete(p)
	}

	if err := r.WriteStaging(stg); err != nil {
		return fmt.Errorf("remove: %w", err)
	}
	return nil
}

// walkWorkingFiles lists regular files below dir as sorted repo-relative
// paths, skipping the metadata directory.
func (r *Repo) walkWorkingFiles(dir string) ([]string, error) {
	var files []string
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if d.IsDir() {
			if d.Name() == DirName {
				return filepath.SkipDir
			}
			return nil
		}
		if !d.Type().IsRegular() {
			return nil
		}
		rel, err := filepath.Rel(r.RootDir, path)
		if err != nil {
			return err
		}
		files = append(files, filepath.ToSlash(rel))
		return nil
	})
	if err != nil {
		return nil, storageErr("walk working tree", err)
	}
	sort.Strings(files)
	return files, nil
}

// repoRelPath converts a path (absolute, or relative to CWD) into a path
// relative to the repository root. If the path is already relative and does
// not start with the repo root, it is assumed to already be repo-relative.
func (r *Repo) repoRelPath(p string) (string, error) {
	rel, err := r.rawRelPath(p)
	if err != nil {
		return "", err
	}
	if rel == "." || rel == "" {
		return ".", nil
	}
	if rel == ".." || strings.HasPrefix(rel, "../") {
		return "", fmt.Errorf("%q is outside the repository", p)
	}
	if rel == DirName || strings.HasPrefix(rel, DirName+"/") {
		return "", fmt.Errorf("%q is inside the repository metadata directory", p)
	}
	return rel, nil
}

func (r *Repo) rawRelPath(p string) (string, error) {
	if filepath.IsAbs(p) {
		rel, err := filepath.Rel(r.RootDir, p)
		if err != nil {
			return "", fmt.Errorf("cannot make %q relative to %q: %w", p, r.RootDir, err)
		}
		return filepath.ToSlash(rel), nil
	}

	// Try to resolve via CWD.
	cwd, err := os.Getwd()
	if err != nil {
		return filepath.ToSlash(filepath.Clean(p)), nil
	}

	abs := filepath.Join(cwd, p)
	rel, err := filepath.Rel(r.RootDir, abs)
	if err != nil {
		return filepath.ToSlash(filepath.Clean(p)), nil
	}

	// If the relative path starts with "..", p is outside the repo.
	// In that case, treat the original p as already repo-relative.
	if len(rel) >= 2 && rel[:2] == ".." {
		return filepath.ToSlash(filepath.Clean(p)), nil
	}

	return filepath.ToSlash(rel), nil
}
