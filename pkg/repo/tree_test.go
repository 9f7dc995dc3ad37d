package repo

import (
	"errors"
	"fmt"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/odvcencio/mdv/pkg/object"
)

func TestBuildTree_OrderIndependent(t *testing.T) {
	r := newTestRepo(t)
	paths := []string{"z.txt", "a.txt", "dir/b.txt", "dir/sub/c.txt", "m.txt"}

	build := func(order []string) object.Hash {
		t.Helper()
		contents := make(map[string][]byte)
		for _, p := range order {
			contents[p] = []byte("content of " + p)
		}
		h, err := r.BuildTreeFromContent(contents)
		if err != nil {
			t.Fatalf("BuildTreeFromContent: %v", err)
		}
		return h
	}

	forward := build(paths)
	reversed := make([]string, len(paths))
	for i, p := range paths {
		reversed[len(paths)-1-i] = p
	}
	for i := 0; i < 5; i++ {
		if got := build(reversed); got != forward {
			t.Fatalf("tree hash differs by insertion order: %s vs %s", got, forward)
		}
	}
}

func TestBuildTree_ContentChangesHash(t *testing.T) {
	r := newTestRepo(t)
	h1, err := r.BuildTreeFromContent(map[string][]byte{"dir/a.txt": []byte("x")})
	if err != nil {
		t.Fatal(err)
	}
	h2, err := r.BuildTreeFromContent(map[string][]byte{"dir/a.txt": []byte("y")})
	if err != nil {
		t.Fatal(err)
	}
	if h1 == h2 {
		t.Fatal("different content produced the same tree hash")
	}
}

func TestBuildTree_SharesIdenticalSubtrees(t *testing.T) {
	r := newTestRepo(t)
	h, err := r.BuildTreeFromContent(map[string][]byte{
		"left/f.txt":  []byte("same"),
		"right/f.txt": []byte("same"),
	})
	if err != nil {
		t.Fatalf("BuildTreeFromContent: %v", err)
	}
	root, err := r.Store.ReadTree(h)
	if err != nil {
		t.Fatalf("ReadTree: %v", err)
	}
	if len(root.Entries) != 2 {
		t.Fatalf("root entries = %d, want 2", len(root.Entries))
	}
	if root.Entries[0].Hash != root.Entries[1].Hash {
		t.Fatalf("identical directories got different tree ids")
	}
}

func TestExpandTree_RoundTrip(t *testing.T) {
	r := newTestRepo(t)
	contents := map[string][]byte{
		"README":         []byte("readme"),
		"cmd/main.go":    []byte("package main"),
		"pkg/a/a.go":     []byte("package a"),
		"pkg/a/b/b.go":   []byte("package b"),
		"with space.txt": []byte("spaces are fine"),
	}
	h, err := r.BuildTreeFromContent(contents)
	if err != nil {
		t.Fatalf("BuildTreeFromContent: %v", err)
	}

	files, err := r.ExpandTree(h)
	if err != nil {
		t.Fatalf("ExpandTree: %v", err)
	}
	got := make(map[string]object.Hash, len(files))
	for p, f := range files {
		got[p] = f.Hash
		if f.Path != p {
			t.Fatalf("entry keyed %q has Path %q", p, f.Path)
		}
	}
	want := make(map[string]object.Hash, len(contents))
	for p, data := range contents {
		want[p] = object.HashObject(object.TypeBlob, data)
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("expanded tree mismatch (-want +got):\n%s", diff)
	}

	flat, err := r.FlattenTree(h)
	if err != nil {
		t.Fatalf("FlattenTree: %v", err)
	}
	for i := 1; i < len(flat); i++ {
		if flat[i-1].Path >= flat[i].Path {
			t.Fatalf("FlattenTree not sorted: %q before %q", flat[i-1].Path, flat[i].Path)
		}
	}
}

func TestBuildTree_EmptyTree(t *testing.T) {
	r := newTestRepo(t)
	h, err := r.BuildTree(nil)
	if err != nil {
		t.Fatalf("BuildTree(nil): %v", err)
	}
	files, err := r.ExpandTree(h)
	if err != nil {
		t.Fatalf("ExpandTree: %v", err)
	}
	if len(files) != 0 {
		t.Fatalf("empty tree expanded to %d files", len(files))
	}
}

func TestBuildTree_FileDirectoryCollision(t *testing.T) {
	r := newTestRepo(t)
	_, err := r.BuildTreeFromContent(map[string][]byte{
		"a":     []byte("file"),
		"a/b.c": []byte("nested"),
	})
	if err == nil {
		t.Fatal("expected an error when a path is both a file and a directory")
	}
}

func TestExpandTree_MissingObject(t *testing.T) {
	r := newTestRepo(t)
	missing := object.Hash(fmt.Sprintf("%064x", 42))
	h, err := r.Store.WriteTree(&object.TreeObj{Entries: []object.TreeEntry{
		{Name: "sub", IsDir: true, Mode: object.TreeModeDir, Hash: missing},
	}})
	if err != nil {
		t.Fatalf("WriteTree: %v", err)
	}
	if _, err := r.ExpandTree(h); !errors.Is(err, ErrNotFound) {
		t.Fatalf("ExpandTree with dangling subtree: err = %v, want ErrNotFound", err)
	}
}

func TestTreeEntryAtPath(t *testing.T) {
	r := newTestRepo(t)
	h, err := r.BuildTreeFromContent(map[string][]byte{
		"a/b/c.txt": []byte("deep"),
		"a/d.txt":   []byte("shallow"),
	})
	if err != nil {
		t.Fatalf("BuildTreeFromContent: %v", err)
	}

	tests := []struct {
		path  string
		found bool
	}{
		{"a/b/c.txt", true},
		{"a/d.txt", true},
		{"a/b", false},
		{"a/missing.txt", false},
		{"a/d.txt/x", false},
	}
	for _, tt := range tests {
		entry, ok, err := r.treeEntryAtPath(h, tt.path)
		if err != nil {
			t.Fatalf("treeEntryAtPath(%q): %v", tt.path, err)
		}
		if ok != tt.found {
			t.Fatalf("treeEntryAtPath(%q) found = %v, want %v", tt.path, ok, tt.found)
		}
		if ok && entry.IsDir {
			t.Fatalf("treeEntryAtPath(%q) returned a directory", tt.path)
		}
	}
}
