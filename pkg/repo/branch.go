package repo

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/odvcencio/mdv/pkg/object"
	"go.uber.org/zap"
)

// CreateBranch binds name to the current HEAD revision and switches HEAD to
// the new branch. It fails with ErrBranchExists if the name is taken and
// with ErrNoCommitsYet before the first commit.
func (r *Repo) CreateBranch(name string) error {
	state, err := r.HeadState()
	if err != nil {
		return fmt.Errorf("create branch %q: %w", name, err)
	}
	if state.Revision == "" {
		return fmt.Errorf("create branch %q: %w", name, ErrNoCommitsYet)
	}
	if err := r.CreateBranchAt(name, state.Revision); err != nil {
		return err
	}
	if err := r.setHeadBranch(name); err != nil {
		return fmt.Errorf("create branch %q: %w", name, err)
	}
	return nil
}

// CreateBranchAt writes refs/heads/<name> pointing at target without
// touching HEAD. Returns ErrBranchExists if the branch already exists.
func (r *Repo) CreateBranchAt(name string, target object.Hash) error {
	if err := validateBranchName(name); err != nil {
		return fmt.Errorf("create branch: %w", err)
	}
	if !r.Store.Has(target) {
		return fmt.Errorf("create branch %q: revision %s: %w", name, target, ErrNotFound)
	}
	err := r.updateRefCAS(headsPrefix+name, target, "branch: created from "+string(target), "")
	switch {
	case err == nil:
	case errors.Is(err, ErrRefCASMismatch):
		return fmt.Errorf("create branch %q: %w", name, ErrBranchExists)
	case errors.Is(err, ErrRefUpdatedButReflogAppendFailed):
		r.logger.Warn("reflog append failed", zap.Error(err))
	default:
		return fmt.Errorf("create branch %q: %w", name, err)
	}
	return nil
}

// DeleteBranch removes refs/heads/<name> and its reflog. The branch HEAD
// points at cannot be deleted.
func (r *Repo) DeleteBranch(name string) error {
	current, err := r.CurrentBranch()
	if err != nil {
		return fmt.Errorf("delete branch: %w", err)
	}
	if current == name {
		return fmt.Errorf("delete branch: cannot delete current branch %q", name)
	}
	if err := validateBranchName(name); err != nil {
		return fmt.Errorf("delete branch: %w", err)
	}

	if err := os.Remove(r.refPath(headsPrefix + name)); err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("delete branch %q: %w", name, ErrUnknownReference)
		}
		return storageErr(fmt.Sprintf("delete branch %q", name), err)
	}
	if err := os.Remove(r.reflogPath(headsPrefix + name)); err != nil && !os.IsNotExist(err) {
		r.logger.Warn("remove reflog", zap.String("branch", name), zap.Error(err))
	}
	return nil
}

// ListBranches returns branch names sorted alphabetically.
func (r *Repo) ListBranches() ([]string, error) {
	heads, err := r.Heads()
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(heads))
	for name := range heads {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

// Heads returns a snapshot of every branch and its tip.
func (r *Repo) Heads() (map[string]object.Hash, error) {
	refs, err := r.ListRefs("heads")
	if err != nil {
		return nil, fmt.Errorf("heads: %w", err)
	}
	heads := make(map[string]object.Hash, len(refs))
	for name, h := range refs {
		heads[strings.TrimPrefix(name, "heads/")] = h
	}
	return heads, nil
}

// CurrentBranch returns the branch HEAD names, or "" when detached.
func (r *Repo) CurrentBranch() (string, error) {
	head, err := r.Head()
	if err != nil {
		return "", fmt.Errorf("current branch: %w", err)
	}
	if strings.HasPrefix(head, headsPrefix) {
		return strings.TrimPrefix(head, headsPrefix), nil
	}
	return "", nil
}

// Resolve turns a user-supplied reference into a revision id. It tries, in
// order: "HEAD", a branch name, a full revision id, then a unique id prefix
// of at least four characters. Anything else is ErrUnknownReference.
func (r *Repo) Resolve(ref string) (object.Hash, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return "", fmt.Errorf("resolve: empty reference: %w", ErrUnknownReference)
	}
	if ref == "HEAD" {
		return r.ResolveRef("HEAD")
	}

	if validateBranchName(ref) == nil {
		h, err := r.ResolveRef(headsPrefix + ref)
		if err == nil {
			return h, nil
		}
		if !errors.Is(err, ErrUnknownReference) {
			return "", err
		}
	}

	if object.IsValidHash(ref) {
		h := object.Hash(ref)
		if _, err := r.Store.ReadCommit(h); err == nil {
			return h, nil
		}
		return "", fmt.Errorf("resolve %q: %w", ref, ErrUnknownReference)
	}

	if h, err := r.Store.ResolvePrefix(ref); err == nil {
		if _, err := r.Store.ReadCommit(h); err == nil {
			return h, nil
		}
	} else if errors.Is(err, object.ErrAmbiguousPrefix) {
		return "", fmt.Errorf("resolve %q: %w: %w", ref, ErrUnknownReference, err)
	}
	return "", fmt.Errorf("resolve %q: %w", ref, ErrUnknownReference)
}

// isBranch reports whether name is an existing branch.
func (r *Repo) isBranch(name string) bool {
	if validateBranchName(name) != nil {
		return false
	}
	h, err := readRefHash(r.refPath(headsPrefix + name))
	return err == nil && h != ""
}

func (r *Repo) refPath(name string) string {
	return filepath.Join(r.MdvDir, filepath.FromSlash(name))
}

func validateBranchName(name string) error {
	switch {
	case name == "", name == "HEAD":
		return fmt.Errorf("invalid branch name %q", name)
	case strings.HasPrefix(name, "-"), strings.HasPrefix(name, "/"), strings.HasSuffix(name, "/"):
		return fmt.Errorf("invalid branch name %q", name)
	case strings.HasSuffix(name, ".lock"), strings.Contains(name, ".."), strings.Contains(name, "//"):
		return fmt.Errorf("invalid branch name %q", name)
	case strings.ContainsAny(name, " \t\n\\:~^?*[\x00"):
		return fmt.Errorf("invalid branch name %q", name)
	}
	for _, part := range strings.Split(name, "/") {
		if part == "." || strings.HasPrefix(part, ".") {
			return fmt.Errorf("invalid branch name %q", name)
		}
	}
	return nil
}
