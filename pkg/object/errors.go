package object

import (
	"errors"
	"fmt"
)

// ErrNotFound is returned when no object with the requested hash was ever
// stored. Outside of user-supplied lookups it signals a dangling reference.
var ErrNotFound = errors.New("object not found")

// ErrAmbiguousPrefix is returned by ResolvePrefix when more than one object
// matches.
var ErrAmbiguousPrefix = errors.New("ambiguous object prefix")

// ErrInvalidAuthor is returned for an author containing a line break or NUL.
var ErrInvalidAuthor = errors.New("invalid author")

// CorruptObjectError reports an object whose stored bytes do not hash back
// to the name it is stored under, or cannot be decoded.
type CorruptObjectError struct {
	Hash   Hash
	Reason string
}

func (e *CorruptObjectError) Error() string {
	return fmt.Sprintf("object %s is corrupt: %s", e.Hash, e.Reason)
}
