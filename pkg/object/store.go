package object

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/klauspost/compress/zstd"
	"go.uber.org/multierr"
)

// Store is a content-addressed object store with a 2-character fan-out
// directory layout: objects/ab/cdef0123... Each file holds the zstd
// compressed envelope "type len\0content"; the hash is always taken over the
// uncompressed envelope.
type Store struct {
	root string

	codecOnce sync.Once
	codecErr  error
	encoder   *zstd.Encoder
	decoder   *zstd.Decoder
}

// NewStore creates a Store rooted at the given directory. The objects/
// subdirectory is created lazily on first write.
func NewStore(root string) *Store {
	return &Store{root: root}
}

func (s *Store) codec() (*zstd.Encoder, *zstd.Decoder, error) {
	s.codecOnce.Do(func() {
		s.encoder, s.codecErr = zstd.NewWriter(nil)
		if s.codecErr != nil {
			return
		}
		s.decoder, s.codecErr = zstd.NewReader(nil)
	})
	return s.encoder, s.decoder, s.codecErr
}

// objectPath returns the filesystem path for a given hash.
func (s *Store) objectPath(h Hash) string {
	return filepath.Join(s.root, "objects", string(h[:2]), string(h[2:]))
}

// Has reports whether the store contains an object with the given hash.
func (s *Store) Has(h Hash) bool {
	if !IsValidHash(string(h)) {
		return false
	}
	_, err := os.Stat(s.objectPath(h))
	return err == nil
}

// Put stores data as a blob and returns its hash. Storing the same bytes
// twice is a no-op that returns the same hash.
func (s *Store) Put(data []byte) (Hash, error) {
	return s.Write(TypeBlob, data)
}

// Get returns the bytes of the blob stored under h. It fails with
// ErrNotFound when no such object exists.
func (s *Store) Get(h Hash) ([]byte, error) {
	b, err := s.ReadBlob(h)
	if err != nil {
		return nil, err
	}
	return b.Data, nil
}

// Write stores an object and returns its content hash. The object file is
// written to a temp file, fsynced and renamed into place, and the fan-out
// directory is fsynced, so the object is durable once Write returns.
func (s *Store) Write(objType ObjectType, data []byte) (Hash, error) {
	h := HashObject(objType, data)

	// Fast path: already exists.
	if s.Has(h) {
		return h, nil
	}

	enc, _, err := s.codec()
	if err != nil {
		return "", fmt.Errorf("object write: init codec: %w", err)
	}
	raw := append(envelopeHeader(objType, len(data)), data...)
	compressed := enc.EncodeAll(raw, nil)

	dir := filepath.Join(s.root, "objects", string(h[:2]))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("object write mkdir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return "", fmt.Errorf("object write tmpfile: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(compressed); err != nil {
		return "", fmt.Errorf("object write: %w", multierr.Append(err, discardTemp(tmp)))
	}
	if err := tmp.Sync(); err != nil {
		return "", fmt.Errorf("object write sync: %w", multierr.Append(err, discardTemp(tmp)))
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return "", fmt.Errorf("object write close: %w", err)
	}

	if err := os.Rename(tmpName, s.objectPath(h)); err != nil {
		os.Remove(tmpName)
		return "", fmt.Errorf("object write rename: %w", err)
	}
	if err := SyncDir(dir); err != nil {
		return "", fmt.Errorf("object write sync dir: %w", err)
	}

	return h, nil
}

func discardTemp(f *os.File) error {
	return multierr.Append(f.Close(), os.Remove(f.Name()))
}

// SyncDir fsyncs a directory so that a preceding rename inside it survives
// a crash.
func SyncDir(dir string) (retErr error) {
	d, err := os.Open(dir)
	if err != nil {
		return err
	}
	defer func() {
		retErr = multierr.Append(retErr, d.Close())
	}()
	return d.Sync()
}

// Read retrieves an object by hash, returning its type and raw content.
// Missing objects yield an error wrapping ErrNotFound; objects whose bytes
// do not hash back to h yield a *CorruptObjectError.
func (s *Store) Read(h Hash) (ObjectType, []byte, error) {
	if !IsValidHash(string(h)) {
		return "", nil, fmt.Errorf("object read %q: %w", h, ErrNotFound)
	}
	compressed, err := os.ReadFile(s.objectPath(h))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", nil, fmt.Errorf("object read %s: %w", h, ErrNotFound)
		}
		return "", nil, fmt.Errorf("object read %s: %w", h, err)
	}

	_, dec, err := s.codec()
	if err != nil {
		return "", nil, fmt.Errorf("object read %s: init codec: %w", h, err)
	}
	raw, err := dec.DecodeAll(compressed, nil)
	if err != nil {
		return "", nil, &CorruptObjectError{Hash: h, Reason: err.Error()}
	}

	// Parse envelope: "type len\0content"
	nulIdx := bytes.IndexByte(raw, 0)
	if nulIdx < 0 {
		return "", nil, &CorruptObjectError{Hash: h, Reason: "invalid format (no NUL)"}
	}
	header := string(raw[:nulIdx])
	content := raw[nulIdx+1:]

	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 {
		return "", nil, &CorruptObjectError{Hash: h, Reason: fmt.Sprintf("invalid header %q", header)}
	}
	objType := ObjectType(parts[0])
	length, err := strconv.Atoi(parts[1])
	if err != nil {
		return "", nil, &CorruptObjectError{Hash: h, Reason: fmt.Sprintf("invalid length %q", parts[1])}
	}
	if len(content) != length {
		return "", nil, &CorruptObjectError{Hash: h, Reason: fmt.Sprintf("length mismatch (header=%d, actual=%d)", length, len(content))}
	}
	if got := HashObject(objType, content); got != h {
		return "", nil, &CorruptObjectError{Hash: h, Reason: fmt.Sprintf("content hashes to %s", got)}
	}

	return objType, content, nil
}

// ResolvePrefix returns the single stored object whose hash starts with
// prefix. The prefix must be at least 4 lowercase hex characters.
func (s *Store) ResolvePrefix(prefix string) (Hash, error) {
	prefix = strings.ToLower(strings.TrimSpace(prefix))
	if len(prefix) < 4 || len(prefix) > 64 || !isLowerHex(prefix) {
		return "", fmt.Errorf("resolve prefix %q: %w", prefix, ErrNotFound)
	}
	if len(prefix) == 64 {
		if s.Has(Hash(prefix)) {
			return Hash(prefix), nil
		}
		return "", fmt.Errorf("resolve prefix %q: %w", prefix, ErrNotFound)
	}

	entries, err := os.ReadDir(filepath.Join(s.root, "objects", prefix[:2]))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", fmt.Errorf("resolve prefix %q: %w", prefix, ErrNotFound)
		}
		return "", fmt.Errorf("resolve prefix %q: %w", prefix, err)
	}

	var matches []Hash
	rest := prefix[2:]
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || strings.HasPrefix(name, ".tmp-") {
			continue
		}
		if strings.HasPrefix(name, rest) {
			matches = append(matches, Hash(prefix[:2]+name))
		}
	}
	switch len(matches) {
	case 0:
		return "", fmt.Errorf("resolve prefix %q: %w", prefix, ErrNotFound)
	case 1:
		return matches[0], nil
	default:
		sort.Slice(matches, func(i, j int) bool { return matches[i] < matches[j] })
		return "", fmt.Errorf("resolve prefix %q: %w (%d candidates)", prefix, ErrAmbiguousPrefix, len(matches))
	}
}

// ---------------------------------------------------------------------------
// Typed convenience methods
// ---------------------------------------------------------------------------

func (s *Store) readTyped(h Hash, want ObjectType) ([]byte, error) {
	objType, data, err := s.Read(h)
	if err != nil {
		return nil, err
	}
	if objType != want {
		return nil, fmt.Errorf("object %s: type mismatch: got %q, want %q", h, objType, want)
	}
	return data, nil
}

// WriteBlob serializes and stores a Blob.
func (s *Store) WriteBlob(b *Blob) (Hash, error) {
	return s.Write(TypeBlob, MarshalBlob(b))
}

// ReadBlob reads and deserializes a Blob.
func (s *Store) ReadBlob(h Hash) (*Blob, error) {
	data, err := s.readTyped(h, TypeBlob)
	if err != nil {
		return nil, err
	}
	return UnmarshalBlob(data)
}

// WriteTree serializes and stores a TreeObj.
func (s *Store) WriteTree(tr *TreeObj) (Hash, error) {
	if err := validateTree(tr); err != nil {
		return "", fmt.Errorf("write tree: %w", err)
	}
	return s.Write(TypeTree, MarshalTree(tr))
}

// ReadTree reads and deserializes a TreeObj.
func (s *Store) ReadTree(h Hash) (*TreeObj, error) {
	data, err := s.readTyped(h, TypeTree)
	if err != nil {
		return nil, err
	}
	return UnmarshalTree(data)
}

// WriteCommit serializes and stores a CommitObj.
func (s *Store) WriteCommit(c *CommitObj) (Hash, error) {
	if err := validateCommit(c); err != nil {
		return "", fmt.Errorf("write commit: %w", err)
	}
	return s.Write(TypeCommit, MarshalCommit(c))
}

// ReadCommit reads and deserializes a CommitObj.
func (s *Store) ReadCommit(h Hash) (*CommitObj, error) {
	data, err := s.readTyped(h, TypeCommit)
	if err != nil {
		return nil, err
	}
	return UnmarshalCommit(data)
}
