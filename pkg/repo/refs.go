package repo

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/odvcencio/mdv/pkg/object"
)

// ListRefs lists references under .mdv/refs, keyed relative to the refs
// root (e.g. "heads/main"). Lock files left by interrupted updates are
// skipped.
func (r *Repo) ListRefs(prefix string) (map[string]object.Hash, error) {
	root := filepath.Join(r.MdvDir, "refs")
	dir := root
	if strings.TrimSpace(prefix) != "" {
		dir = filepath.Join(root, filepath.FromSlash(prefix))
	}

	refs := make(map[string]object.Hash)
	err := filepath.WalkDir(dir, func(path string, d os.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if d.IsDir() || strings.HasSuffix(d.Name(), ".lock") {
			return nil
		}

		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		h, err := readRefHash(path)
		if err != nil {
			return err
		}
		refs[filepath.ToSlash(rel)] = h
		return nil
	})
	if os.IsNotExist(err) {
		return refs, nil
	}
	if err != nil {
		return nil, storageErr("list refs", fmt.Errorf("walk %s: %w", dir, err))
	}
	return refs, nil
}
