package repo

import (
	"fmt"
	"path"
	"sort"
	"strings"

	"github.com/odvcencio/mdv/pkg/object"
)

// TreeFileEntry represents a single file in a flattened tree.
type TreeFileEntry struct {
	Path string
	Hash object.Hash
	Mode string
}

// BuildTree converts flat file entries into a hierarchical tree structure,
// writing TreeObj objects to the store and returning the root hash. The
// result depends only on the (path -> entry) mapping, never on map order.
//
// Paths use forward slashes (e.g. "pkg/util/util.go"). BuildTree groups
// them by directory, recursively creates subtrees, and returns the root
// tree hash. An empty mapping yields the empty tree.
func (r *Repo) BuildTree(files map[string]TreeFileEntry) (object.Hash, error) {
	return r.buildTreeDir(files, "")
}

// BuildTreeFromContent stores each file's content as a blob and then builds
// the tree over the resulting hashes.
func (r *Repo) BuildTreeFromContent(contents map[string][]byte) (object.Hash, error) {
	files := make(map[string]TreeFileEntry, len(contents))
	for p, data := range contents {
		h, err := r.Store.Put(data)
		if err != nil {
			return "", storageErr(fmt.Sprintf("build tree: write blob %q", p), err)
		}
		files[p] = TreeFileEntry{Path: p, Hash: h, Mode: object.TreeModeFile}
	}
	return r.BuildTree(files)
}

// buildTreeDir builds a TreeObj for the given directory prefix and writes it
// to the store. It returns the tree's hash.
func (r *Repo) buildTreeDir(all map[string]TreeFileEntry, prefix string) (object.Hash, error) {
	files := make(map[string]TreeFileEntry) // name -> entry
	subdirs := make(map[string]struct{})    // immediate child dir names

	for p, entry := range all {
		var rel string
		if prefix == "" {
			rel = p
		} else {
			if !strings.HasPrefix(p, prefix+"/") {
				continue
			}
			rel = p[len(prefix)+1:]
		}

		slash := strings.IndexByte(rel, '/')
		if slash < 0 {
			files[rel] = entry
		} else {
			subdirs[rel[:slash]] = struct{}{}
		}
	}

	names := make([]string, 0, len(files)+len(subdirs))
	for name := range files {
		if _, isDir := subdirs[name]; isDir {
			return "", fmt.Errorf("build tree: %q is both a file and a directory", path.Join(prefix, name))
		}
		names = append(names, name)
	}
	for name := range subdirs {
		names = append(names, name)
	}
	sort.Strings(names)

	entries := make([]object.TreeEntry, 0, len(names))
	for _, name := range names {
		if entry, isFile := files[name]; isFile {
			entries = append(entries, object.TreeEntry{
				Name: name,
				Mode: normalizeFileMode(entry.Mode),
				Hash: entry.Hash,
			})
			continue
		}

		childPrefix := name
		if prefix != "" {
			childPrefix = prefix + "/" + name
		}
		subHash, err := r.buildTreeDir(all, childPrefix)
		if err != nil {
			return "", err
		}
		entries = append(entries, object.TreeEntry{
			Name:  name,
			IsDir: true,
			Mode:  object.TreeModeDir,
			Hash:  subHash,
		})
	}

	h, err := r.Store.WriteTree(&object.TreeObj{Entries: entries})
	if err != nil {
		return "", storageErr(fmt.Sprintf("write tree (prefix=%q)", prefix), err)
	}
	return h, nil
}

// FlattenTree walks a tree object recursively, returning all file entries
// with their full paths (using forward slashes), sorted by path. An empty
// hash flattens to nothing.
func (r *Repo) FlattenTree(h object.Hash) ([]TreeFileEntry, error) {
	if h == "" {
		return nil, nil
	}
	return r.flattenTreeRec(h, "")
}

func (r *Repo) flattenTreeRec(h object.Hash, prefix string) ([]TreeFileEntry, error) {
	treeObj, err := r.Store.ReadTree(h)
	if err != nil {
		return nil, fmt.Errorf("flatten tree: read %s: %w", h, err)
	}

	var result []TreeFileEntry
	for _, entry := range treeObj.Entries {
		fullPath := entry.Name
		if prefix != "" {
			fullPath = path.Join(prefix, entry.Name)
		}

		if entry.IsDir {
			sub, err := r.flattenTreeRec(entry.Hash, fullPath)
			if err != nil {
				return nil, err
			}
			result = append(result, sub...)
		} else {
			result = append(result, TreeFileEntry{
				Path: fullPath,
				Hash: entry.Hash,
				Mode: normalizeFileMode(entry.Mode),
			})
		}
	}
	return result, nil
}

// ExpandTree is FlattenTree keyed by path.
func (r *Repo) ExpandTree(h object.Hash) (map[string]TreeFileEntry, error) {
	files, err := r.FlattenTree(h)
	if err != nil {
		return nil, err
	}
	return indexByPath(files), nil
}

// revisionTree expands the tree of a revision. An empty revision hash means
// "no commits yet" and expands to an empty map.
func (r *Repo) revisionTree(rev object.Hash) (map[string]TreeFileEntry, error) {
	if rev == "" {
		return map[string]TreeFileEntry{}, nil
	}
	c, err := r.Store.ReadCommit(rev)
	if err != nil {
		return nil, fmt.Errorf("read revision %s: %w", rev, err)
	}
	return r.ExpandTree(c.TreeHash)
}

// headTreeFiles expands the tree HEAD currently points at.
func (r *Repo) headTreeFiles() (map[string]TreeFileEntry, error) {
	state, err := r.HeadState()
	if err != nil {
		return nil, err
	}
	return r.revisionTree(state.Revision)
}

func indexByPath(files []TreeFileEntry) map[string]TreeFileEntry {
	m := make(map[string]TreeFileEntry, len(files))
	for _, f := range files {
		m[f.Path] = f
	}
	return m
}

// treeEntryAtPath descends from treeHash one path component at a time and
// returns the file entry at relPath. Directories never match.
func (r *Repo) treeEntryAtPath(treeHash object.Hash, relPath string) (object.TreeEntry, bool, error) {
	parts := strings.Split(relPath, "/")
	current := treeHash

	for i, part := range parts {
		treeObj, err := r.Store.ReadTree(current)
		if err != nil {
			return object.TreeEntry{}, false, fmt.Errorf("read tree %s: %w", current, err)
		}
		entries := treeObj.Entries
		idx := sort.Search(len(entries), func(j int) bool { return entries[j].Name >= part })
		if idx == len(entries) || entries[idx].Name != part {
			return object.TreeEntry{}, false, nil
		}
		entry := entries[idx]

		if i == len(parts)-1 {
			return entry, !entry.IsDir, nil
		}
		if !entry.IsDir {
			return object.TreeEntry{}, false, nil
		}
		current = entry.Hash
	}
	return object.TreeEntry{}, false, nil
}
