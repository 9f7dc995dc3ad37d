package object

import (
	"bytes"
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// ---------------------------------------------------------------------------
// Blob
// ---------------------------------------------------------------------------

// MarshalBlob serializes a Blob to raw bytes (identity).
func MarshalBlob(b *Blob) []byte {
	out := make([]byte, len(b.Data))
	copy(out, b.Data)
	return out
}

// UnmarshalBlob deserializes raw bytes into a Blob.
func UnmarshalBlob(data []byte) (*Blob, error) {
	out := make([]byte, len(data))
	copy(out, data)
	return &Blob{Data: out}, nil
}

// ---------------------------------------------------------------------------
// TreeObj
// ---------------------------------------------------------------------------

// MarshalTree serializes a TreeObj. Entries are sorted by Name for
// deterministic output. Each entry is one line:
//
//	mode hash "name"
//
// The name is Go-quoted so that any byte sequence, newlines included, reads
// back unchanged.
func MarshalTree(tr *TreeObj) []byte {
	sorted := make([]TreeEntry, len(tr.Entries))
	copy(sorted, tr.Entries)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].Name < sorted[j].Name
	})

	var buf bytes.Buffer
	for _, e := range sorted {
		fmt.Fprintf(&buf, "%s %s %s\n", treeModeOrDefault(e), e.Hash, strconv.Quote(e.Name))
	}
	return buf.Bytes()
}

// UnmarshalTree parses a TreeObj from its serialized form.
func UnmarshalTree(data []byte) (*TreeObj, error) {
	tr := &TreeObj{}
	text := strings.TrimRight(string(data), "\n")
	if text == "" {
		return tr, nil
	}
	for _, line := range strings.Split(text, "\n") {
		parts := strings.SplitN(line, " ", 3)
		if len(parts) != 3 || parts[2] == "" {
			return nil, fmt.Errorf("unmarshal tree: malformed entry %q", line)
		}
		isDir, mode, err := parseTreeMode(parts[0])
		if err != nil {
			return nil, fmt.Errorf("unmarshal tree: %w", err)
		}
		if !IsValidHash(parts[1]) {
			return nil, fmt.Errorf("unmarshal tree: bad hash in entry %q", line)
		}
		name, err := strconv.Unquote(parts[2])
		if err != nil {
			return nil, fmt.Errorf("unmarshal tree: bad name in entry %q: %w", line, err)
		}
		if err := validateEntryName(name); err != nil {
			return nil, fmt.Errorf("unmarshal tree: %w", err)
		}
		tr.Entries = append(tr.Entries, TreeEntry{
			Name:  name,
			IsDir: isDir,
			Mode:  mode,
			Hash:  Hash(parts[1]),
		})
	}
	return tr, nil
}

// validateEntryName rejects names that cannot be a single path component.
func validateEntryName(name string) error {
	switch {
	case name == "", name == ".", name == "..":
		return fmt.Errorf("invalid entry name %q", name)
	case strings.ContainsAny(name, "/\x00"):
		return fmt.Errorf("invalid entry name %q", name)
	}
	return nil
}

func validateTree(tr *TreeObj) error {
	seen := make(map[string]struct{}, len(tr.Entries))
	for _, e := range tr.Entries {
		if err := validateEntryName(e.Name); err != nil {
			return err
		}
		if _, dup := seen[e.Name]; dup {
			return fmt.Errorf("duplicate entry name %q", e.Name)
		}
		seen[e.Name] = struct{}{}
		if !IsValidHash(string(e.Hash)) {
			return fmt.Errorf("entry %q: invalid hash %q", e.Name, e.Hash)
		}
	}
	return nil
}

func treeModeOrDefault(e TreeEntry) string {
	if e.IsDir {
		return TreeModeDir
	}
	if strings.TrimSpace(e.Mode) == "" {
		return TreeModeFile
	}
	return e.Mode
}

func parseTreeMode(mode string) (bool, string, error) {
	switch mode {
	case TreeModeDir:
		return true, TreeModeDir, nil
	case TreeModeFile:
		return false, TreeModeFile, nil
	case TreeModeExecutable:
		return false, TreeModeExecutable, nil
	default:
		return false, "", fmt.Errorf("unknown mode %q", mode)
	}
}

// ---------------------------------------------------------------------------
// CommitObj
// ---------------------------------------------------------------------------

// MarshalCommit serializes a CommitObj:
//
//	tree H
//	parent H     (zero, one or two; main-line parent first)
//	author A
//	timestamp T
//
//	message
func MarshalCommit(c *CommitObj) []byte {
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "tree %s\n", string(c.TreeHash))
	for _, p := range c.Parents {
		fmt.Fprintf(&buf, "parent %s\n", string(p))
	}
	fmt.Fprintf(&buf, "author %s\n", c.Author)
	fmt.Fprintf(&buf, "timestamp %d\n", c.Timestamp)
	buf.WriteByte('\n')
	buf.WriteString(c.Message)
	return buf.Bytes()
}

// UnmarshalCommit parses a CommitObj from its serialized form.
func UnmarshalCommit(data []byte) (*CommitObj, error) {
	idx := bytes.Index(data, []byte("\n\n"))
	if idx < 0 {
		return nil, fmt.Errorf("unmarshal commit: missing header/message separator")
	}
	header := string(data[:idx])
	message := string(data[idx+2:])

	c := &CommitObj{Message: message}
	for _, line := range strings.Split(header, "\n") {
		key, val, ok := strings.Cut(line, " ")
		if !ok {
			return nil, fmt.Errorf("unmarshal commit: malformed header line %q", line)
		}
		switch key {
		case "tree":
			c.TreeHash = Hash(val)
		case "parent":
			c.Parents = append(c.Parents, Hash(val))
		case "author":
			c.Author = val
		case "timestamp":
			ts, err := strconv.ParseInt(val, 10, 64)
			if err != nil {
				return nil, fmt.Errorf("unmarshal commit: bad timestamp %q: %w", val, err)
			}
			c.Timestamp = ts
		default:
			return nil, fmt.Errorf("unmarshal commit: unknown header key %q", key)
		}
	}
	if err := validateParents(c.Parents); err != nil {
		return nil, fmt.Errorf("unmarshal commit: %w", err)
	}
	return c, nil
}

// ValidateAuthor rejects author strings that would not survive the
// line-oriented revision header.
func ValidateAuthor(author string) error {
	if strings.ContainsAny(author, "\r\n\x00") {
		return fmt.Errorf("%w: %q", ErrInvalidAuthor, author)
	}
	return nil
}

func validateCommit(c *CommitObj) error {
	if !IsValidHash(string(c.TreeHash)) {
		return fmt.Errorf("invalid tree hash %q", c.TreeHash)
	}
	if err := ValidateAuthor(c.Author); err != nil {
		return err
	}
	return validateParents(c.Parents)
}

func validateParents(parents []Hash) error {
	if len(parents) > 2 {
		return fmt.Errorf("revision has %d parents, at most 2 allowed", len(parents))
	}
	for _, p := range parents {
		if !IsValidHash(string(p)) {
			return fmt.Errorf("invalid parent hash %q", p)
		}
	}
	return nil
}
