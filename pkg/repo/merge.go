package repo

import (
	"fmt"
	"sort"

	"github.com/odvcencio/mdv/pkg/object"
	"go.uber.org/zap"
)

// MergeResult is the outcome of a successful merge.
type MergeResult struct {
	Base     object.Hash // nearest common ancestor
	Source   object.Hash // source tip
	Target   object.Hash // target tip before the merge
	TreeHash object.Hash // merged tree
	Revision object.Hash // merge revision; empty when UpToDate
	UpToDate bool        // source was already contained in target
}

// Merge reconciles branch source into branch target.
//
// Algorithm:
//  1. Resolve both branch tips; ErrUnknownReference if either is missing.
//  2. Require a clean working tree.
//  3. Find the merge base; ErrUnrelated for disjoint histories. If the
//     source tip is already an ancestor of the target, nothing changes.
//  4. Classify every path of the three trees against the base. Paths that
//     diverged differently on both sides fail the whole merge with a
//     *MergeConflictError and no state change.
//  5. Write the merged tree and a revision whose main parent is the target
//     tip and whose merge parent is the source tip.
//  6. Advance the target branch, materialize the merged tree and point HEAD
//     at the target branch.
func (r *Repo) Merge(source, target string) (*MergeResult, error) {
	if !r.isBranch(source) {
		return nil, fmt.Errorf("merge: source %q: %w", source, ErrUnknownReference)
	}
	if !r.isBranch(target) {
		return nil, fmt.Errorf("merge: target %q: %w", target, ErrUnknownReference)
	}
	sourceTip, err := r.ResolveRef(headsPrefix + source)
	if err != nil {
		return nil, fmt.Errorf("merge: %w", err)
	}
	targetTip, err := r.ResolveRef(headsPrefix + target)
	if err != nil {
		return nil, fmt.Errorf("merge: %w", err)
	}

	if err := r.ensureClean(); err != nil {
		return nil, fmt.Errorf("merge: %w", err)
	}
	author := r.DefaultAuthor()
	if err := object.ValidateAuthor(author); err != nil {
		return nil, fmt.Errorf("merge: %w", err)
	}

	base, err := r.FindMergeBase(sourceTip, targetTip)
	if err != nil {
		return nil, fmt.Errorf("merge: %w", err)
	}

	targetCommit, err := r.Store.ReadCommit(targetTip)
	if err != nil {
		return nil, fmt.Errorf("merge: read target: %w", err)
	}
	result := &MergeResult{Base: base, Source: sourceTip, Target: targetTip}
	if base == sourceTip {
		if err := r.switchToBranch(target, targetCommit.TreeHash); err != nil {
			return nil, fmt.Errorf("merge: %w", err)
		}
		result.TreeHash = targetCommit.TreeHash
		result.UpToDate = true
		return result, nil
	}

	baseFiles, err := r.revisionTree(base)
	if err != nil {
		return nil, fmt.Errorf("merge: base tree: %w", err)
	}
	sourceFiles, err := r.revisionTree(sourceTip)
	if err != nil {
		return nil, fmt.Errorf("merge: source tree: %w", err)
	}
	targetFiles, err := r.ExpandTree(targetCommit.TreeHash)
	if err != nil {
		return nil, fmt.Errorf("merge: target tree: %w", err)
	}

	merged, conflicts := mergeTrees(baseFiles, sourceFiles, targetFiles)
	if len(conflicts) > 0 {
		return nil, fmt.Errorf("merge %s into %s: %w", source, target, &MergeConflictError{Conflicts: conflicts})
	}

	// Everything that can be refused is checked before the first write.
	state, err := r.HeadState()
	if err != nil {
		return nil, fmt.Errorf("merge: %w", err)
	}
	current, err := r.revisionTree(state.Revision)
	if err != nil {
		return nil, fmt.Errorf("merge: current tree: %w", err)
	}
	changes := diffTrees(current, merged)
	if err := r.checkTransition(current, changes); err != nil {
		return nil, fmt.Errorf("merge: %w", err)
	}

	treeHash, err := r.BuildTree(merged)
	if err != nil {
		return nil, storageErr("merge: build tree", err)
	}
	revision, err := r.Store.WriteCommit(&object.CommitObj{
		TreeHash:  treeHash,
		Parents:   []object.Hash{targetTip, sourceTip},
		Author:    author,
		Timestamp: r.now().Unix(),
		Message:   fmt.Sprintf("Merge branch '%s' into %s", source, target),
	})
	if err != nil {
		return nil, storageErr("merge: write revision", err)
	}

	reason := fmt.Sprintf("merge %s: merged into %s", source, target)
	if err := r.advanceHead(HeadState{Branch: target, Revision: targetTip}, revision, reason); err != nil {
		return nil, fmt.Errorf("merge: %w", err)
	}
	if err := r.applyTransition(changes, merged); err != nil {
		return nil, fmt.Errorf("merge: %w", err)
	}
	if err := r.setHeadBranch(target); err != nil {
		return nil, fmt.Errorf("merge: %w", err)
	}

	r.logger.Debug("merged",
		zap.String("source", source),
		zap.String("target", target),
		zap.String("base", string(base)),
		zap.String("revision", string(revision)),
	)
	result.TreeHash = treeHash
	result.Revision = revision
	return result, nil
}

// switchToBranch leaves HEAD on target with its tree checked out, as every
// merge does, when there was nothing to merge.
func (r *Repo) switchToBranch(target string, treeHash object.Hash) error {
	state, err := r.HeadState()
	if err != nil {
		return err
	}
	if state.Branch == target {
		return nil
	}
	current, err := r.revisionTree(state.Revision)
	if err != nil {
		return fmt.Errorf("current tree: %w", err)
	}
	targetFiles, err := r.ExpandTree(treeHash)
	if err != nil {
		return fmt.Errorf("target tree: %w", err)
	}
	changes := diffTrees(current, targetFiles)
	if err := r.checkTransition(current, changes); err != nil {
		return err
	}
	if err := r.applyTransition(changes, targetFiles); err != nil {
		return err
	}
	return r.setHeadBranch(target)
}

// mergeTrees classifies each path by comparing content hashes against the
// base; an absent path has the empty hash, so additions and deletions
// follow the same rules as edits.
//
//	source == target -> either (unchanged in both, or the same change)
//	source == base   -> target
//	target == base   -> source
//	otherwise        -> conflict
func mergeTrees(base, source, target map[string]TreeFileEntry) (map[string]TreeFileEntry, []Conflict) {
	merged := make(map[string]TreeFileEntry)
	var conflicts []Conflict

	for _, p := range unionPaths(base, source, target) {
		b, s, t := base[p].Hash, source[p].Hash, target[p].Hash

		var pick TreeFileEntry
		switch {
		case s == t, s == b:
			pick = target[p]
		case t == b:
			pick = source[p]
		default:
			conflicts = append(conflicts, Conflict{Path: p, SourceHash: s, TargetHash: t})
			continue
		}
		if pick.Hash != "" {
			merged[p] = pick
		}
	}
	return merged, conflicts
}

func unionPaths(trees ...map[string]TreeFileEntry) []string {
	seen := make(map[string]struct{})
	for _, tree := range trees {
		for p := range tree {
			seen[p] = struct{}{}
		}
	}
	paths := make([]string, 0, len(seen))
	for p := range seen {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	return paths
}
