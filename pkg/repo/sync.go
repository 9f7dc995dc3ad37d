package repo

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/odvcencio/mdv/pkg/object"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

// Clone copies the repository rooted at src, working files included, into
// dst and records src as the "origin" remote of the copy. dst must not
// exist or be an empty directory.
func Clone(src, dst string, opts ...Option) (*Repo, error) {
	srcRepo, err := openRoot(src, opts)
	if err != nil {
		return nil, fmt.Errorf("clone: %w", err)
	}
	if missing, err := srcRepo.Verify(); err != nil {
		return nil, fmt.Errorf("clone: %w", err)
	} else if len(missing) > 0 {
		return nil, fmt.Errorf("clone: source is missing %d object(s): %w", len(missing), ErrNotFound)
	}

	absDst, err := filepath.Abs(dst)
	if err != nil {
		return nil, fmt.Errorf("clone: %w", err)
	}
	if rootsOverlap(srcRepo.RootDir, absDst) {
		return nil, fmt.Errorf("clone: destination %s overlaps source %s", dst, srcRepo.RootDir)
	}

	entries, err := os.ReadDir(dst)
	switch {
	case err == nil && len(entries) > 0:
		return nil, fmt.Errorf("clone: destination %s is not empty", dst)
	case err != nil && !errors.Is(err, fs.ErrNotExist):
		return nil, storageErr("clone", err)
	}

	if err := copyRepoTree(srcRepo.RootDir, dst); err != nil {
		return nil, fmt.Errorf("clone: %w", err)
	}

	cloned, err := openRoot(dst, opts)
	if err != nil {
		return nil, fmt.Errorf("clone: %w", err)
	}
	if err := cloned.SetRemote("origin", srcRepo.RootDir); err != nil {
		return nil, fmt.Errorf("clone: %w", err)
	}
	cloned.logger.Debug("cloned", zap.String("from", srcRepo.RootDir), zap.String("to", cloned.RootDir))
	return cloned, nil
}

// Pull copies the repository at from (a path or configured remote name)
// over this one. The local repository must be clean and the source
// complete.
func (r *Repo) Pull(from string) error {
	src, err := r.openRemote(from)
	if err != nil {
		return fmt.Errorf("pull: %w", err)
	}
	if err := r.ensureClean(); err != nil {
		return fmt.Errorf("pull: %w", err)
	}
	if err := requireComplete(src); err != nil {
		return fmt.Errorf("pull: %w", err)
	}
	if err := copyRepoTree(src.RootDir, r.RootDir); err != nil {
		return fmt.Errorf("pull: %w", err)
	}
	r.logger.Debug("pulled", zap.String("from", src.RootDir))
	return nil
}

// Push copies this repository over the one at to (a path or configured
// remote name). Both sides must be clean and this one complete.
func (r *Repo) Push(to string) error {
	dst, err := r.openRemote(to)
	if err != nil {
		return fmt.Errorf("push: %w", err)
	}
	if err := r.ensureClean(); err != nil {
		return fmt.Errorf("push: %w", err)
	}
	if err := dst.ensureClean(); err != nil {
		return fmt.Errorf("push: destination: %w", err)
	}
	if err := requireComplete(r); err != nil {
		return fmt.Errorf("push: %w", err)
	}
	if err := copyRepoTree(r.RootDir, dst.RootDir); err != nil {
		return fmt.Errorf("push: %w", err)
	}
	r.logger.Debug("pushed", zap.String("to", dst.RootDir))
	return nil
}

// Verify returns the objects reachable from any branch or HEAD that are
// missing from the store.
func (r *Repo) Verify() ([]object.Hash, error) {
	heads, err := r.Heads()
	if err != nil {
		return nil, fmt.Errorf("verify: %w", err)
	}
	roots := make([]object.Hash, 0, len(heads)+1)
	for _, h := range heads {
		roots = append(roots, h)
	}
	state, err := r.HeadState()
	if err != nil {
		return nil, fmt.Errorf("verify: %w", err)
	}
	if state.Revision != "" {
		roots = append(roots, state.Revision)
	}

	missing, err := r.Store.MissingObjects(roots)
	if err != nil {
		return nil, fmt.Errorf("verify: %w", err)
	}
	return missing, nil
}

func requireComplete(r *Repo) error {
	missing, err := r.Verify()
	if err != nil {
		return err
	}
	if len(missing) > 0 {
		return fmt.Errorf("%s is missing %d object(s), first %s: %w",
			r.RootDir, len(missing), missing[0].Short(), ErrNotFound)
	}
	return nil
}

// openRemote opens the repository named by a configured remote or, failing
// that, by a filesystem path.
func (r *Repo) openRemote(nameOrPath string) (*Repo, error) {
	location := nameOrPath
	if url, err := r.RemoteURL(nameOrPath); err == nil {
		location = url
	}
	other, err := openRoot(location, []Option{WithLogger(r.logger), WithClock(r.now)})
	if err != nil {
		return nil, err
	}
	if rootsOverlap(other.RootDir, r.RootDir) {
		return nil, fmt.Errorf("%s overlaps this repository", nameOrPath)
	}
	return other, nil
}

// openRoot opens the repository whose root is exactly path, without
// searching parent directories.
func openRoot(path string, opts []Option) (*Repo, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	info, err := os.Stat(filepath.Join(abs, DirName))
	if err != nil || !info.IsDir() {
		return nil, fmt.Errorf("open %s: not an mdv repository", path)
	}
	return newRepo(abs, filepath.Join(abs, DirName), opts), nil
}

// rootsOverlap reports whether two absolute roots are the same directory
// or one lies inside the other. Copying between such roots never ends.
func rootsOverlap(a, b string) bool {
	return within(a, b) || within(b, a)
}

func within(parent, child string) bool {
	rel, err := filepath.Rel(filepath.Clean(parent), filepath.Clean(child))
	if err != nil {
		return false
	}
	return rel == "." || (rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)))
}

// skipInCopy reports whether a repo-relative path stays local to its
// repository: the process lock, ref lock files and the config.
func skipInCopy(rel string) bool {
	switch rel {
	case DirName + "/lock", DirName + "/config.toml":
		return true
	}
	return strings.HasPrefix(rel, DirName+"/") && strings.HasSuffix(rel, ".lock")
}

// copyRepoTree recursively copies src over dst, creating dst as needed.
// Existing files in dst are replaced; files only in dst are left alone.
func copyRepoTree(src, dst string) error {
	return filepath.WalkDir(src, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return storageErr("copy", walkErr)
		}
		rel, err := filepath.Rel(src, path)
		if err != nil {
			return err
		}
		relSlash := filepath.ToSlash(rel)
		if skipInCopy(relSlash) {
			return nil
		}
		target := filepath.Join(dst, rel)

		info, err := d.Info()
		if err != nil {
			return storageErr("copy", err)
		}
		switch {
		case d.IsDir():
			if err := os.MkdirAll(target, info.Mode().Perm()|0o700); err != nil {
				return storageErr("copy", err)
			}
			return nil
		case info.Mode().IsRegular():
			return copyFile(path, target, info.Mode().Perm())
		default:
			return nil
		}
	})
}

func copyFile(src, dst string, perm os.FileMode) (retErr error) {
	in, err := os.Open(src)
	if err != nil {
		return storageErr("copy", err)
	}
	defer func() {
		retErr = multierr.Append(retErr, in.Close())
	}()

	tmp, err := os.CreateTemp(filepath.Dir(dst), "."+filepath.Base(dst)+".mdv-tmp-*")
	if err != nil {
		return storageErr("copy", err)
	}
	tmpName := tmp.Name()
	if _, err := io.Copy(tmp, in); err != nil {
		return storageErr("copy", multierr.Combine(err, tmp.Close(), os.Remove(tmpName)))
	}
	if err := tmp.Sync(); err != nil {
		return storageErr("copy", multierr.Combine(err, tmp.Close(), os.Remove(tmpName)))
	}
	if err := tmp.Close(); err != nil {
		return storageErr("copy", multierr.Append(err, os.Remove(tmpName)))
	}
	if err := os.Chmod(tmpName, perm); err != nil {
		return storageErr("copy", multierr.Append(err, os.Remove(tmpName)))
	}
	if err := os.Rename(tmpName, dst); err != nil {
		return storageErr("copy", multierr.Append(err, os.Remove(tmpName)))
	}
	return nil
}
