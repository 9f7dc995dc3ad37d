package repo

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/odvcencio/mdv/pkg/object"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

var ErrRefCASMismatch = errors.New("ref compare-and-swap mismatch")
var ErrRefUpdatedButReflogAppendFailed = errors.New("ref updated but reflog append failed")

// RefUpdateReflogError indicates the ref file update succeeded, but appending
// the corresponding reflog entry failed.
type RefUpdateReflogError struct {
	Ref     string
	OldHash object.Hash
	NewHash object.Hash
	Err     error
}

func (e *RefUpdateReflogError) Error() string {
	if e == nil {
		return "<nil>"
	}
	return fmt.Sprintf(
		"update ref %q: %s (old=%s new=%s): %v",
		e.Ref,
		ErrRefUpdatedButReflogAppendFailed,
		e.OldHash,
		e.NewHash,
		e.Err,
	)
}

func (e *RefUpdateReflogError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

func (e *RefUpdateReflogError) Is(target error) bool {
	return target == ErrRefUpdatedButReflogAppendFailed
}

const (
	refLockRetryDelay = 5 * time.Millisecond
	refLockWaitLimit  = 2 * time.Second

	headsPrefix  = "refs/heads/"
	symrefPrefix = "ref: "
)

// Init creates a new repository at path. It creates the .mdv/ directory
// structure: HEAD, objects/, refs/heads/ and an empty staging area. Returns
// an error if a .mdv/ directory already exists.
func Init(path string, opts ...Option) (*Repo, error) {
	mdvDir := filepath.Join(path, DirName)

	// Fail if .mdv/ already exists.
	if _, err := os.Stat(mdvDir); err == nil {
		return nil, fmt.Errorf("init: repository already exists at %s", mdvDir)
	}

	dirs := []string{
		filepath.Join(mdvDir, "objects"),
		filepath.Join(mdvDir, "refs", "heads"),
		filepath.Join(mdvDir, "logs", "refs", "heads"),
	}
	for _, d := range dirs {
		if err := os.MkdirAll(d, 0o755); err != nil {
			return nil, storageErr("init", fmt.Errorf("mkdir %s: %w", d, err))
		}
	}

	r := newRepo(path, mdvDir, opts)
	if err := r.writeHead(symrefPrefix + headsPrefix + DefaultBranch); err != nil {
		return nil, fmt.Errorf("init: %w", err)
	}
	if err := r.WriteStaging(&Staging{}); err != nil {
		return nil, fmt.Errorf("init: %w", err)
	}
	r.logger.Debug("repository initialized", zap.String("root", path))
	return r, nil
}

// Open searches upward from path for a .mdv/ directory and opens the
// repository. Returns an error if no .mdv/ directory is found.
func Open(path string, opts ...Option) (*Repo, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("open: abs path: %w", err)
	}

	cur := abs
	for {
		mdvDir := filepath.Join(cur, DirName)
		info, err := os.Stat(mdvDir)
		if err == nil && info.IsDir() {
			return newRepo(cur, mdvDir, opts), nil
		}

		parent := filepath.Dir(cur)
		if parent == cur {
			return nil, fmt.Errorf("open: not an mdv repository (or any parent up to /)")
		}
		cur = parent
	}
}

// HeadState is the decoded content of HEAD.
type HeadState struct {
	Branch   string      // set when HEAD names a branch
	Revision object.Hash // tip revision; empty before the first commit
}

// Detached reports whether HEAD points at a revision rather than a branch.
func (h HeadState) Detached() bool {
	return h.Branch == ""
}

// Head reads .mdv/HEAD. If the content starts with "ref: ", it returns the
// ref path (e.g., "refs/heads/main"). Otherwise it returns the raw content
// as a detached hash string.
func (r *Repo) Head() (string, error) {
	data, err := os.ReadFile(filepath.Join(r.MdvDir, "HEAD"))
	if err != nil {
		return "", storageErr("head", err)
	}
	content := strings.TrimRight(string(data), "\n")

	if strings.HasPrefix(content, symrefPrefix) {
		return strings.TrimPrefix(content, symrefPrefix), nil
	}
	return content, nil
}

// HeadState decodes HEAD and resolves it to a revision. A branch without
// commits yields an empty Revision and no error.
func (r *Repo) HeadState() (HeadState, error) {
	head, err := r.Head()
	if err != nil {
		return HeadState{}, err
	}
	if strings.HasPrefix(head, headsPrefix) {
		tip, err := readRefHash(filepath.Join(r.MdvDir, filepath.FromSlash(head)))
		if err != nil {
			return HeadState{}, storageErr("head", err)
		}
		return HeadState{Branch: strings.TrimPrefix(head, headsPrefix), Revision: tip}, nil
	}
	return HeadState{Revision: object.Hash(head)}, nil
}

// ResolveRef resolves a ref name to an object hash.
//
// Resolution order:
//  1. If name is "HEAD", read HEAD. If HEAD is symbolic, resolve the target ref.
//  2. If name starts with "refs/", read .mdv/<name>.
//  3. Otherwise, try "refs/heads/<name>".
//
// A ref that does not exist yields an error wrapping ErrUnknownReference,
// except HEAD on an unborn branch which wraps ErrNoCommitsYet.
func (r *Repo) ResolveRef(name string) (object.Hash, error) {
	if name == "HEAD" {
		state, err := r.HeadState()
		if err != nil {
			return "", err
		}
		if state.Revision == "" {
			return "", fmt.Errorf("resolve ref HEAD: %w", ErrNoCommitsYet)
		}
		return state.Revision, nil
	}

	var refPath string
	if strings.HasPrefix(name, "refs/") {
		refPath = filepath.Join(r.MdvDir, filepath.FromSlash(name))
	} else {
		refPath = filepath.Join(r.MdvDir, "refs", "heads", filepath.FromSlash(name))
	}

	h, err := readRefHash(refPath)
	if err != nil {
		return "", storageErr(fmt.Sprintf("resolve ref %q", name), err)
	}
	if h == "" {
		return "", fmt.Errorf("resolve ref %q: %w", name, ErrUnknownReference)
	}
	return h, nil
}

// UpdateRef writes a hash to the named ref file under .mdv/. Parent
// directories are created as needed.
func (r *Repo) UpdateRef(name string, h object.Hash) error {
	return r.UpdateRefCAS(name, h)
}

// UpdateRefCAS writes a hash to the named ref file under .mdv/ using
// lockfile + rename atomic semantics. If expectedOld is provided, the
// update only succeeds when the current ref hash matches it; an empty
// expectedOld means the ref must not exist yet.
//
// Reflog append happens after the ref rename; if reflog append fails, the ref
// update remains committed and a RefUpdateReflogError is returned.
func (r *Repo) UpdateRefCAS(name string, h object.Hash, expectedOld ...object.Hash) error {
	return r.updateRefCAS(name, h, "update", expectedOld...)
}

func (r *Repo) updateRefCAS(name string, h object.Hash, reason string, expectedOld ...object.Hash) error {
	if len(expectedOld) > 1 {
		return fmt.Errorf("update ref %q: expected at most one old hash", name)
	}
	hasExpectedOld := len(expectedOld) == 1
	wantOldHash := object.Hash("")
	if hasExpectedOld {
		wantOldHash = expectedOld[0]
	}

	refPath := filepath.Join(r.MdvDir, filepath.FromSlash(name))

	dir := filepath.Dir(refPath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return storageErr(fmt.Sprintf("update ref %q", name), fmt.Errorf("mkdir: %w", err))
	}

	lockPath := refPath + ".lock"
	lockFile, err := acquireRefLock(lockPath)
	if err != nil {
		return storageErr(fmt.Sprintf("update ref %q", name), fmt.Errorf("lock: %w", err))
	}
	cleanupLock := true
	defer func() {
		if lockFile != nil {
			_ = lockFile.Close()
		}
		if cleanupLock {
			_ = os.Remove(lockPath)
		}
	}()

	oldHash, err := readRefHash(refPath)
	if err != nil {
		return storageErr(fmt.Sprintf("update ref %q", name), fmt.Errorf("read old hash: %w", err))
	}
	if name == "HEAD" && strings.HasPrefix(string(oldHash), symrefPrefix) {
		oldHash = ""
	}
	if hasExpectedOld && oldHash != wantOldHash {
		return fmt.Errorf(
			"update ref %q: %w (expected %s, found %s)",
			name,
			ErrRefCASMismatch,
			wantOldHash,
			oldHash,
		)
	}

	op := fmt.Sprintf("update ref %q", name)
	if _, err := lockFile.WriteString(string(h) + "\n"); err != nil {
		return storageErr(op, fmt.Errorf("write: %w", err))
	}
	if err := lockFile.Sync(); err != nil {
		return storageErr(op, fmt.Errorf("sync: %w", err))
	}
	if err := lockFile.Close(); err != nil {
		lockFile = nil
		return storageErr(op, fmt.Errorf("close: %w", err))
	}
	lockFile = nil

	if err := os.Rename(lockPath, refPath); err != nil {
		return storageErr(op, fmt.Errorf("rename: %w", err))
	}
	cleanupLock = false
	if err := object.SyncDir(dir); err != nil {
		return storageErr(op, fmt.Errorf("sync dir: %w", err))
	}

	r.logger.Debug("ref updated",
		zap.String("ref", name),
		zap.String("old", string(oldHash)),
		zap.String("new", string(h)),
		zap.String("reason", reason),
	)

	if err := r.appendReflog(name, oldHash, h, reason); err != nil {
		return &RefUpdateReflogError{
			Ref:     name,
			OldHash: oldHash,
			NewHash: h,
			Err:     err,
		}
	}

	return nil
}

// setHeadBranch points HEAD at refs/heads/<branch>.
func (r *Repo) setHeadBranch(branch string) error {
	return r.writeHead(symrefPrefix + headsPrefix + branch)
}

// setHeadDetached points HEAD directly at a revision.
func (r *Repo) setHeadDetached(h object.Hash) error {
	return r.writeHead(string(h))
}

func (r *Repo) writeHead(content string) error {
	if err := writeFileAtomic(filepath.Join(r.MdvDir, "HEAD"), []byte(content+"\n"), 0o644); err != nil {
		return storageErr("write HEAD", err)
	}
	return nil
}

func acquireRefLock(lockPath string) (*os.File, error) {
	deadline := time.Now().Add(refLockWaitLimit)
	for {
		f, err := os.OpenFile(lockPath, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
		if err == nil {
			return f, nil
		}
		if os.IsExist(err) {
			if time.Now().After(deadline) {
				return nil, fmt.Errorf("timeout waiting for lock %q", lockPath)
			}
			time.Sleep(refLockRetryDelay)
			continue
		}
		return nil, err
	}
}

func readRefHash(refPath string) (object.Hash, error) {
	data, err := os.ReadFile(refPath)
	if err != nil {
		if os.IsNotExist(err) {
			return "", nil
		}
		return "", err
	}
	return object.Hash(strings.TrimSpace(string(data))), nil
}

// writeFileAtomic replaces path with data via a synced temp file in the same
// directory followed by a rename, so readers see either the old or the new
// content.
func writeFileAtomic(path string, data []byte, perm os.FileMode) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+"-tmp-*")
	if err != nil {
		return fmt.Errorf("tmpfile: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		return fmt.Errorf("write: %w", multierr.Combine(err, tmp.Close(), os.Remove(tmpName)))
	}
	if err := tmp.Sync(); err != nil {
		return fmt.Errorf("sync: %w", multierr.Combine(err, tmp.Close(), os.Remove(tmpName)))
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("close: %w", err)
	}
	if err := os.Chmod(tmpName, perm); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("chmod: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("rename: %w", err)
	}
	return object.SyncDir(dir)
}
