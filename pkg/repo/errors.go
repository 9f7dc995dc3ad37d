package repo

import (
	"errors"
	"fmt"
	"strings"

	"github.com/odvcencio/mdv/pkg/object"
)

// ErrNotFound reports an object or path lookup miss. It is the same value
// as object.ErrNotFound so either can be used with errors.Is.
var ErrNotFound = object.ErrNotFound

// ErrInvalidAuthor is object.ErrInvalidAuthor.
var ErrInvalidAuthor = object.ErrInvalidAuthor

var (
	ErrUnknownReference   = errors.New("unknown reference")
	ErrNothingStaged      = errors.New("nothing staged")
	ErrUntrackedFile      = errors.New("file is not staged")
	ErrNotTracked         = errors.New("path is not tracked")
	ErrUncommittedChanges = errors.New("uncommitted changes")
	ErrBranchExists       = errors.New("branch already exists")
	ErrNoCommitsYet       = errors.New("no commits yet")
	ErrUnrelated          = errors.New("histories are unrelated")
	ErrMergeConflict      = errors.New("merge conflict")
	ErrStorageFailure     = errors.New("storage failure")
)

// UntrackedFileError is returned by commit when a requested path is not in
// the staging area.
type UntrackedFileError struct {
	Path string
}

func (e *UntrackedFileError) Error() string {
	return fmt.Sprintf("%s: %q", ErrUntrackedFile, e.Path)
}

func (e *UntrackedFileError) Is(target error) bool {
	return target == ErrUntrackedFile
}

// NotRegularFileError is returned when a path to stage or commit is a
// symlink, device or other non-regular file.
type NotRegularFileError struct {
	Path string
}

func (e *NotRegularFileError) Error() string {
	return fmt.Sprintf("%q is not a regular file", e.Path)
}

// Conflict records a path that changed differently on both sides of a
// merge. An empty hash means the side deleted the path.
type Conflict struct {
	Path       string
	SourceHash object.Hash
	TargetHash object.Hash
}

// MergeConflictError lists every conflicting path of a refused merge.
type MergeConflictError struct {
	Conflicts []Conflict
}

// Paths returns the conflicting paths in sorted order.
func (e *MergeConflictError) Paths() []string {
	paths := make([]string, len(e.Conflicts))
	for i, c := range e.Conflicts {
		paths[i] = c.Path
	}
	return paths
}

func (e *MergeConflictError) Error() string {
	return fmt.Sprintf("%s in %s", ErrMergeConflict, strings.Join(e.Paths(), ", "))
}

func (e *MergeConflictError) Is(target error) bool {
	return target == ErrMergeConflict
}

// StorageError wraps an underlying I/O failure. It is always fatal to the
// operation that produced it.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	if e == nil {
		return "<nil>"
	}
	return fmt.Sprintf("%s: %s: %v", e.Op, ErrStorageFailure, e.Err)
}

func (e *StorageError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

func (e *StorageError) Is(target error) bool {
	return target == ErrStorageFailure
}

func storageErr(op string, err error) error {
	if err == nil {
		return nil
	}
	var se *StorageError
	if errors.As(err, &se) {
		return err
	}
	return &StorageError{Op: op, Err: err}
}
