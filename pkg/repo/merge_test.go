package repo

import (
	"errors"
	"fmt"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/odvcencio/mdv/pkg/object"
)

// divergedRepo commits a.txt="x" on main, branches feature and returns the
// repository with HEAD on main.
func divergedRepo(t *testing.T) (*Repo, object.Hash) {
	t.Helper()
	r := newTestRepo(t)
	base := commitFiles(t, r, "base", map[string]string{"a.txt": "x"})
	if err := r.CreateBranch("feature"); err != nil {
		t.Fatalf("CreateBranch: %v", err)
	}
	if err := r.Checkout("main"); err != nil {
		t.Fatalf("Checkout(main): %v", err)
	}
	return r, base
}

func TestMerge_SelfMerge(t *testing.T) {
	r := newTestRepo(t)
	tip := commitFiles(t, r, "base", map[string]string{"a.txt": "x", "d/b.txt": "y"})
	c, err := r.Store.ReadCommit(tip)
	if err != nil {
		t.Fatal(err)
	}

	res, err := r.Merge("main", "main")
	if err != nil {
		t.Fatalf("Merge(main, main): %v", err)
	}
	if !res.UpToDate || res.TreeHash != c.TreeHash {
		t.Fatalf("result = %+v, want up to date with tree %s", res, c.TreeHash)
	}
	if got, _ := r.ResolveRef("main"); got != tip {
		t.Fatalf("self-merge moved main to %s", got)
	}
}

func TestMerge_ConflictWhenBothSidesDiverge(t *testing.T) {
	r, _ := divergedRepo(t)

	if err := r.Checkout("feature"); err != nil {
		t.Fatalf("Checkout(feature): %v", err)
	}
	commitFiles(t, r, "feature edit", map[string]string{"a.txt": "y"})
	if err := r.Checkout("main"); err != nil {
		t.Fatalf("Checkout(main): %v", err)
	}
	mainTip := commitFiles(t, r, "main edit", map[string]string{"a.txt": "z"})

	_, err := r.Merge("feature", "main")
	if !errors.Is(err, ErrMergeConflict) {
		t.Fatalf("Merge err = %v, want ErrMergeConflict", err)
	}
	var conflict *MergeConflictError
	if !errors.As(err, &conflict) {
		t.Fatalf("err = %T, want *MergeConflictError", err)
	}
	if diff := cmp.Diff([]string{"a.txt"}, conflict.Paths()); diff != "" {
		t.Fatalf("conflict paths mismatch (-want +got):\n%s", diff)
	}
	c := conflict.Conflicts[0]
	if c.SourceHash != object.HashObject(object.TypeBlob, []byte("y")) ||
		c.TargetHash != object.HashObject(object.TypeBlob, []byte("z")) {
		t.Fatalf("conflict hashes = %+v", c)
	}

	// Nothing changed.
	if got, _ := r.ResolveRef("main"); got != mainTip {
		t.Fatalf("main moved to %s after conflicting merge", got)
	}
	if got := readWorkFile(t, r, "a.txt"); got != "z" {
		t.Fatalf("a.txt = %q after conflicting merge", got)
	}
}

func TestMerge_CleanMergeTakesSourceChange(t *testing.T) {
	r, _ := divergedRepo(t)

	if err := r.Checkout("feature"); err != nil {
		t.Fatalf("Checkout(feature): %v", err)
	}
	featureTip := commitFiles(t, r, "feature edit", map[string]string{"a.txt": "y"})
	if err := r.Checkout("main"); err != nil {
		t.Fatalf("Checkout(main): %v", err)
	}
	mainTip, err := r.ResolveRef("main")
	if err != nil {
		t.Fatal(err)
	}

	res, err := r.Merge("feature", "main")
	if err != nil {
		t.Fatalf("Merge: %v", err)
	}
	if res.UpToDate || res.Revision == "" {
		t.Fatalf("result = %+v, want a merge revision", res)
	}

	c, err := r.Store.ReadCommit(res.Revision)
	if err != nil {
		t.Fatalf("ReadCommit: %v", err)
	}
	if diff := cmp.Diff([]object.Hash{mainTip, featureTip}, c.Parents); diff != "" {
		t.Fatalf("merge parents mismatch (-want +got):\n%s", diff)
	}
	data, err := r.Cat("a.txt", string(res.Revision))
	if err != nil {
		t.Fatalf("Cat: %v", err)
	}
	if string(data) != "y" {
		t.Fatalf("merged a.txt = %q, want y", data)
	}

	if got, _ := r.ResolveRef("main"); got != res.Revision {
		t.Fatalf("main = %s, want merge revision %s", got, res.Revision)
	}
	if branch, _ := r.CurrentBranch(); branch != "main" {
		t.Fatalf("HEAD on %q, want main", branch)
	}
	if got := readWorkFile(t, r, "a.txt"); got != "y" {
		t.Fatalf("working a.txt = %q, want y", got)
	}
}

func TestMerge_CombinesIndependentChanges(t *testing.T) {
	r := newTestRepo(t)
	commitFiles(t, r, "base", map[string]string{"keep.txt": "k", "gone.txt": "g", "edit.txt": "1"})
	if err := r.CreateBranch("feature"); err != nil {
		t.Fatal(err)
	}
	commitFiles(t, r, "feature", map[string]string{"edit.txt": "2", "both.txt": "same", "f.txt": "f"})
	if err := r.Checkout("main"); err != nil {
		t.Fatal(err)
	}
	if err := removeAndStage(r, "gone.txt"); err != nil {
		t.Fatal(err)
	}
	commitFiles(t, r, "main", map[string]string{"both.txt": "same", "m.txt": "m"})

	res, err := r.Merge("feature", "main")
	if err != nil {
		t.Fatalf("Merge: %v", err)
	}
	files, err := r.ExpandTree(res.TreeHash)
	if err != nil {
		t.Fatal(err)
	}
	got := make(map[string]string)
	for p := range files {
		data, err := r.Cat(p, "main")
		if err != nil {
			t.Fatalf("Cat(%s): %v", p, err)
		}
		got[p] = string(data)
	}
	want := map[string]string{
		"keep.txt": "k",
		"edit.txt": "2",
		"both.txt": "same",
		"f.txt":    "f",
		"m.txt":    "m",
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("merged tree mismatch (-want +got):\n%s", diff)
	}
}

func TestMerge_DeleteVersusEditConflicts(t *testing.T) {
	r, _ := divergedRepo(t)
	if err := r.Checkout("feature"); err != nil {
		t.Fatal(err)
	}
	if err := removeAndStage(r, "a.txt"); err != nil {
		t.Fatal(err)
	}
	if _, err := r.Commit("delete a", "tester"); err != nil {
		t.Fatal(err)
	}
	if err := r.Checkout("main"); err != nil {
		t.Fatal(err)
	}
	commitFiles(t, r, "edit a", map[string]string{"a.txt": "edited"})

	_, err := r.Merge("feature", "main")
	var conflict *MergeConflictError
	if !errors.As(err, &conflict) {
		t.Fatalf("err = %v, want *MergeConflictError", err)
	}
	if conflict.Conflicts[0].SourceHash != "" {
		t.Fatalf("deleted side hash = %q, want empty", conflict.Conflicts[0].SourceHash)
	}
}

func TestMerge_SourceAlreadyMerged(t *testing.T) {
	r, base := divergedRepo(t)
	commitFiles(t, r, "main moves on", map[string]string{"b.txt": "b"})

	res, err := r.Merge("feature", "main")
	if err != nil {
		t.Fatalf("Merge: %v", err)
	}
	if !res.UpToDate || res.Base != base {
		t.Fatalf("result = %+v, want up to date with base %s", res, base)
	}
}

func TestMerge_UpToDateSwitchesToTarget(t *testing.T) {
	r, _ := divergedRepo(t)
	commitFiles(t, r, "main moves on", map[string]string{"b.txt": "b"})
	if err := r.Checkout("feature"); err != nil {
		t.Fatalf("Checkout(feature): %v", err)
	}

	res, err := r.Merge("feature", "main")
	if err != nil {
		t.Fatalf("Merge: %v", err)
	}
	if !res.UpToDate {
		t.Fatalf("result = %+v, want up to date", res)
	}
	if branch, _ := r.CurrentBranch(); branch != "main" {
		t.Fatalf("HEAD on %q, want main", branch)
	}
	if got := readWorkFile(t, r, "b.txt"); got != "b" {
		t.Fatalf("b.txt = %q, want main's content", got)
	}
	if entries, err := r.Status(); err != nil || len(entries) != 0 {
		t.Fatalf("Status = %+v, %v; want clean", entries, err)
	}
}

func TestMerge_RequiresBranchesAndCleanTree(t *testing.T) {
	r, base := divergedRepo(t)
	if _, err := r.Merge(string(base), "main"); !errors.Is(err, ErrUnknownReference) {
		t.Fatalf("merge of a raw hash: err = %v, want ErrUnknownReference", err)
	}
	if _, err := r.Merge("feature", "nope"); !errors.Is(err, ErrUnknownReference) {
		t.Fatalf("merge into missing branch: err = %v, want ErrUnknownReference", err)
	}

	writeWorkFile(t, r, "a.txt", "dirty")
	if _, err := r.Merge("feature", "main"); !errors.Is(err, ErrUncommittedChanges) {
		t.Fatalf("merge with dirty tree: err = %v, want ErrUncommittedChanges", err)
	}
}

func TestMerge_UnrelatedHistories(t *testing.T) {
	r := newTestRepo(t)
	commitFiles(t, r, "main root", map[string]string{"a.txt": "x"})

	orphan := writeTestRevision(t, r, "orphan root")
	if err := r.CreateBranchAt("orphan", orphan); err != nil {
		t.Fatal(err)
	}
	if _, err := r.Merge("orphan", "main"); !errors.Is(err, ErrUnrelated) {
		t.Fatalf("err = %v, want ErrUnrelated", err)
	}
}

func TestFindMergeBase(t *testing.T) {
	r := newTestRepo(t)

	//   root - a1 - a2
	//      \
	//       b1 - b2 - m (merges a1)
	root := writeTestRevision(t, r, "root")
	a1 := writeTestRevision(t, r, "a1", root)
	a2 := writeTestRevision(t, r, "a2", a1)
	b1 := writeTestRevision(t, r, "b1", root)
	b2 := writeTestRevision(t, r, "b2", b1)
	m := writeTestRevision(t, r, "m", b2, a1)

	tests := []struct {
		name string
		a, b object.Hash
		want object.Hash
	}{
		{"same", a2, a2, a2},
		{"ancestor", a1, a2, a1},
		{"descendant", a2, a1, a1},
		{"fork", a2, b2, root},
		{"through merge parent", a2, m, a1},
		{"symmetric", m, a2, a1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := r.FindMergeBase(tt.a, tt.b)
			if err != nil {
				t.Fatalf("FindMergeBase: %v", err)
			}
			if got != tt.want {
				t.Fatalf("FindMergeBase = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestIsAncestor(t *testing.T) {
	r := newTestRepo(t)
	root := writeTestRevision(t, r, "root")
	a := writeTestRevision(t, r, "a", root)
	b := writeTestRevision(t, r, "b", root)
	m := writeTestRevision(t, r, "m", a, b)

	tests := []struct {
		ancestor, descendant object.Hash
		want                 bool
	}{
		{root, root, true},
		{root, m, true},
		{b, m, true},
		{m, a, false},
		{a, b, false},
	}
	for _, tt := range tests {
		got, err := r.IsAncestor(tt.ancestor, tt.descendant)
		if err != nil {
			t.Fatalf("IsAncestor(%s, %s): %v", tt.ancestor.Short(), tt.descendant.Short(), err)
		}
		if got != tt.want {
			t.Errorf("IsAncestor(%s, %s) = %v, want %v", tt.ancestor.Short(), tt.descendant.Short(), got, tt.want)
		}
	}
}

func TestFindMergeBase_TieBreaksOnSmallerHash(t *testing.T) {
	r := newTestRepo(t)

	// Criss-cross: x and y are both at combined distance 2 from p and q.
	x := writeTestRevision(t, r, "x")
	y := writeTestRevision(t, r, "y")
	p := writeTestRevision(t, r, "p", x, y)
	q := writeTestRevision(t, r, "q", y, x)

	want := x
	if y < x {
		want = y
	}
	for i := 0; i < 3; i++ {
		got, err := r.FindMergeBase(p, q)
		if err != nil {
			t.Fatalf("FindMergeBase: %v", err)
		}
		if got != want {
			t.Fatalf("FindMergeBase = %s, want smaller id %s", got, want)
		}
	}
}

func TestFindMergeBase_LongHistory(t *testing.T) {
	r := newTestRepo(t)
	base := writeTestRevision(t, r, "base")
	left, right := base, base
	for i := 0; i < 200; i++ {
		left = writeTestRevision(t, r, fmt.Sprintf("left %d", i), left)
		if i%4 == 0 {
			right = writeTestRevision(t, r, fmt.Sprintf("right %d", i), right)
		}
	}
	got, err := r.FindMergeBase(left, right)
	if err != nil {
		t.Fatalf("FindMergeBase: %v", err)
	}
	if got != base {
		t.Fatalf("FindMergeBase = %s, want %s", got, base)
	}
}

func TestFindMergeBase_StepLimit(t *testing.T) {
	r := newTestRepo(t)
	a := writeTestRevision(t, r, "a root")
	b := writeTestRevision(t, r, "b root")
	for i := 0; i < 20; i++ {
		a = writeTestRevision(t, r, fmt.Sprintf("a %d", i), a)
		b = writeTestRevision(t, r, fmt.Sprintf("b %d", i), b)
	}

	old := mergeBaseBFSStepsLimit
	mergeBaseBFSStepsLimit = 5
	t.Cleanup(func() { mergeBaseBFSStepsLimit = old })

	if _, err := r.FindMergeBase(a, b); err == nil || errors.Is(err, ErrUnrelated) {
		t.Fatalf("err = %v, want step limit error", err)
	}
}

func TestMergeTrees(t *testing.T) {
	h := func(s string) object.Hash { return object.HashObject(object.TypeBlob, []byte(s)) }
	e := func(p, s string) TreeFileEntry { return TreeFileEntry{Path: p, Hash: h(s), Mode: object.TreeModeFile} }

	base := map[string]TreeFileEntry{"same": e("same", "0"), "src": e("src", "0"), "tgt": e("tgt", "0"), "del": e("del", "0")}
	source := map[string]TreeFileEntry{"same": e("same", "0"), "src": e("src", "1"), "tgt": e("tgt", "0"), "new": e("new", "n")}
	target := map[string]TreeFileEntry{"same": e("same", "0"), "src": e("src", "0"), "tgt": e("tgt", "2"), "del": e("del", "0")}

	merged, conflicts := mergeTrees(base, source, target)
	if len(conflicts) != 0 {
		t.Fatalf("conflicts = %+v", conflicts)
	}
	got := make(map[string]object.Hash)
	for p, entry := range merged {
		got[p] = entry.Hash
	}
	want := map[string]object.Hash{"same": h("0"), "src": h("1"), "tgt": h("2"), "new": h("n")}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("merged mismatch (-want +got):\n%s", diff)
	}
}

func writeTestRevision(t *testing.T, r *Repo, msg string, parents ...object.Hash) object.Hash {
	t.Helper()
	tree, err := r.BuildTreeFromContent(map[string][]byte{"msg.txt": []byte(msg)})
	if err != nil {
		t.Fatal(err)
	}
	h, err := r.Store.WriteCommit(&object.CommitObj{
		TreeHash:  tree,
		Parents:   parents,
		Author:    "tester",
		Timestamp: 1,
		Message:   msg,
	})
	if err != nil {
		t.Fatalf("WriteCommit(%s): %v", msg, err)
	}
	return h
}

func removeAndStage(r *Repo, rel string) error {
	if err := removeWorkFile(r, rel); err != nil {
		return err
	}
	return r.Add(rel)
}
