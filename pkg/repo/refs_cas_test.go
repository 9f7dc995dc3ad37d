package repo

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/odvcencio/mdv/pkg/object"
)

func TestUpdateRefCAS_ConcurrentSingleWinner(t *testing.T) {
	dir := t.TempDir()
	r, err := Init(dir)
	if err != nil {
		t.Fatalf("Init: %v", err)
	}

	base := object.Hash("aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa")
	if err := r.UpdateRef("refs/heads/main", base); err != nil {
		t.Fatalf("UpdateRef(base): %v", err)
	}

	const workers = 16
	var wg sync.WaitGroup
	wg.Add(workers)

	successCh := make(chan object.Hash, workers)
	errCh := make(chan error, workers)

	for i := 0; i < workers; i++ {
		i := i
		go func() {
			defer wg.Done()
			next := object.Hash(fmt.Sprintf("%064x", i+1))
			err := r.UpdateRefCAS("refs/heads/main", next, base)
			if err != nil {
				errCh <- err
				return
			}
			successCh <- next
		}()
	}

	wg.Wait()
	close(successCh)
	close(errCh)

	var winner object.Hash
	successes := 0
	for h := range successCh {
		successes++
		winner = h
	}
	if successes != 1 {
		t.Fatalf("successful CAS updates = %d, want 1", successes)
	}

	casMismatches := 0
	for err := range errCh {
		if errors.Is(err, ErrRefCASMismatch) {
			casMismatches++
			continue
		}
		t.Fatalf("unexpected error type: %v", err)
	}
	if casMismatches != workers-1 {
		t.Fatalf("CAS mismatches = %d, want %d", casMismatches, workers-1)
	}

	got, err := r.ResolveRef("refs/heads/main")
	if err != nil {
		t.Fatalf("ResolveRef(main): %v", err)
	}
	if got != winner {
		t.Fatalf("refs/heads/main = %s, want winner %s", got, winner)
	}
}

func TestUpdateRefCAS_CleansLockOnMismatch(t *testing.T) {
	dir := t.TempDir()
	r, err := Init(dir)
	if err != nil {
		t.Fatalf("Init: %v", err)
	}

	current := object.Hash("bbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb")
	if err := r.UpdateRef("refs/heads/main", current); err != nil {
		t.Fatalf("UpdateRef(current): %v", err)
	}

	err = r.UpdateRefCAS(
		"refs/heads/main",
		object.Hash("cccccccccccccccccccccccccccccccccccccccccccccccccccccccccccccccc"),
		object.Hash("dddddddddddddddddddddddddddddddddddddddddddddddddddddddddddddddd"),
	)
	if !errors.Is(err, ErrRefCASMismatch) {
		t.Fatalf("expected CAS mismatch, got: %v", err)
	}

	lockPath := filepath.Join(r.MdvDir, "refs", "heads", "main.lock")
	if _, statErr := os.Stat(lockPath); !os.IsNotExist(statErr) {
		t.Fatalf("expected no lingering lockfile at %q, stat err=%v", lockPath, statErr)
	}
}

func TestCommit_CASDetectsMovedBranchRef(t *testing.T) {
	r := newTestRepo(t)
	commitFiles(t, r, "first", map[string]string{"main.go": "package main\n"})

	// Another writer moves main between HEAD being read and the new tip
	// being published.
	movedHash := object.Hash("eeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeee")
	state, err := r.HeadState()
	if err != nil {
		t.Fatalf("HeadState: %v", err)
	}
	if err := r.UpdateRef("refs/heads/main", movedHash); err != nil {
		t.Fatalf("UpdateRef: %v", err)
	}

	err = r.advanceHead(state, object.Hash("ffffffffffffffffffffffffffffffffffffffffffffffffffffffffffffffff"), "commit: second")
	if !errors.Is(err, ErrRefCASMismatch) {
		t.Fatalf("expected CAS mismatch, got: %v", err)
	}

	head, err := r.ResolveRef("refs/heads/main")
	if err != nil {
		t.Fatalf("ResolveRef(main): %v", err)
	}
	if head != movedHash {
		t.Fatalf("main ref = %s, want moved hash %s", head, movedHash)
	}
}

func TestCreateBranchAt_ConcurrentSingleWinner(t *testing.T) {
	r := newTestRepo(t)
	headHash := commitFiles(t, r, "initial", map[string]string{"main.go": "package main\n"})

	const workers = 12
	var wg sync.WaitGroup
	wg.Add(workers)

	successCh := make(chan struct{}, workers)
	errCh := make(chan error, workers)

	for i := 0; i < workers; i++ {
		go func() {
			defer wg.Done()
			if err := r.CreateBranchAt("feature", headHash); err != nil {
				errCh <- err
				return
			}
			successCh <- struct{}{}
		}()
	}

	wg.Wait()
	close(successCh)
	close(errCh)

	if successes := len(successCh); successes != 1 {
		t.Fatalf("CreateBranchAt successes = %d, want 1", successes)
	}

	duplicates := 0
	for err := range errCh {
		if errors.Is(err, ErrBranchExists) {
			duplicates++
			continue
		}
		t.Fatalf("unexpected CreateBranchAt error: %v", err)
	}
	if duplicates != workers-1 {
		t.Fatalf("duplicate errors = %d, want %d", duplicates, workers-1)
	}

	got, err := r.ResolveRef("refs/heads/feature")
	if err != nil {
		t.Fatalf("ResolveRef(feature): %v", err)
	}
	if got != headHash {
		t.Fatalf("feature ref = %s, want %s", got, headHash)
	}
}
