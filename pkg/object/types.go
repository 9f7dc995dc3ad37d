package object

// Hash is a 64-character hex-encoded SHA-256 digest.
type Hash string

// Short returns the first 8 characters of the hash, or the whole hash when
// it is shorter.
func (h Hash) Short() string {
	if len(h) > 8 {
		return string(h[:8])
	}
	return string(h)
}

// ObjectType identifies the kind of object stored.
type ObjectType string

const (
	TypeBlob   ObjectType = "blob"
	TypeTree   ObjectType = "tree"
	TypeCommit ObjectType = "commit"
)

const (
	// Tree mode constants compatible with Git's canonical mode strings.
	TreeModeDir        = "40000"
	TreeModeFile       = "100644"
	TreeModeExecutable = "100755"
)

// Blob holds raw file data.
type Blob struct {
	Data []byte
}

// TreeEntry is one entry in a tree object. Hash names a blob for files and
// a nested tree for directories.
type TreeEntry struct {
	Name  string
	IsDir bool
	Mode  string
	Hash  Hash
}

// TreeObj holds a sorted list of tree entries.
type TreeObj struct {
	Entries []TreeEntry // sorted by Name
}

// CommitObj is a revision: a root tree plus up to two parents. Parents[0]
// is the main-line parent, Parents[1] (merges only) the merged-in tip.
type CommitObj struct {
	TreeHash  Hash
	Parents   []Hash
	Author    string
	Timestamp int64
	Message   string
}

// MainParent returns the main-line parent, or "" for a root revision.
func (c *CommitObj) MainParent() Hash {
	if len(c.Parents) == 0 {
		return ""
	}
	return c.Parents[0]
}

// MergeParent returns the merged-in parent, or "" for non-merge revisions.
func (c *CommitObj) MergeParent() Hash {
	if len(c.Parents) < 2 {
		return ""
	}
	return c.Parents[1]
}

// IsMerge reports whether the revision has a merge parent.
func (c *CommitObj) IsMerge() bool {
	return c.MergeParent() != ""
}
