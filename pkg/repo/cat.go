package repo

import (
	"fmt"

	"github.com/odvcencio/mdv/pkg/object"
)

// Cat returns the content of path as recorded in revision rev. An empty
// rev means HEAD. A path the revision does not contain is ErrNotFound.
func (r *Repo) Cat(path, rev string) ([]byte, error) {
	if rev == "" {
		rev = "HEAD"
	}
	h, err := r.Resolve(rev)
	if err != nil {
		return nil, fmt.Errorf("cat: %w", err)
	}
	c, err := r.Store.ReadCommit(h)
	if err != nil {
		return nil, fmt.Errorf("cat: %w", err)
	}
	rel, err := r.repoRelPath(path)
	if err != nil {
		return nil, fmt.Errorf("cat: %w", err)
	}

	entry, ok, err := r.treeEntryAtPath(c.TreeHash, rel)
	if err != nil {
		return nil, fmt.Errorf("cat: %w", err)
	}
	if !ok || entry.IsDir {
		return nil, fmt.Errorf("cat: %q at %s: %w", rel, h.Short(), ErrNotFound)
	}
	data, err := r.Store.Get(entry.Hash)
	if err != nil {
		return nil, fmt.Errorf("cat: %q: %w", rel, err)
	}
	return data, nil
}

// ObjectInfo describes a stored object for inspection.
type ObjectInfo struct {
	Hash object.Hash
	Type object.ObjectType
	Size int
	Data []byte
}

// CatObject reads a raw object by full id or unique prefix.
func (r *Repo) CatObject(ref string) (*ObjectInfo, error) {
	h := object.Hash(ref)
	if !object.IsValidHash(ref) {
		resolved, err := r.Store.ResolvePrefix(ref)
		if err != nil {
			return nil, fmt.Errorf("cat object: %w", err)
		}
		h = resolved
	}
	typ, data, err := r.Store.Read(h)
	if err != nil {
		return nil, fmt.Errorf("cat object: %w", err)
	}
	return &ObjectInfo{Hash: h, Type: typ, Size: len(data), Data: data}, nil
}
