package repo

import (
	"fmt"

	"go.uber.org/zap"
)

// Checkout switches the working directory to the state of target, which
// can be anything Resolve accepts.
//
// Algorithm:
//  1. Resolve target; ErrUnknownReference if it names nothing.
//  2. Refuse with ErrUncommittedChanges if anything is staged or a tracked
//     file differs from HEAD.
//  3. Diff HEAD's tree against the target tree and apply only the
//     differences: create, delete, overwrite. Unchanged files are left
//     alone.
//  4. Update HEAD: symbolic for a branch name, detached otherwise.
func (r *Repo) Checkout(target string) error {
	targetHash, err := r.Resolve(target)
	if err != nil {
		return fmt.Errorf("checkout: %w", err)
	}
	isBranch := target != "HEAD" && r.isBranch(target)

	if err := r.ensureClean(); err != nil {
		return fmt.Errorf("checkout: %w", err)
	}

	state, err := r.HeadState()
	if err != nil {
		return fmt.Errorf("checkout: %w", err)
	}
	from, err := r.revisionTree(state.Revision)
	if err != nil {
		return fmt.Errorf("checkout: current tree: %w", err)
	}
	to, err := r.revisionTree(targetHash)
	if err != nil {
		return fmt.Errorf("checkout: target tree: %w", err)
	}

	changes := diffTrees(from, to)
	if err := r.checkTransition(from, changes); err != nil {
		return fmt.Errorf("checkout: %w", err)
	}
	if err := r.applyTransition(changes, to); err != nil {
		return fmt.Errorf("checkout: %w", err)
	}

	if isBranch {
		err = r.setHeadBranch(target)
	} else if target == "HEAD" && !state.Detached() {
		err = nil
	} else {
		err = r.setHeadDetached(targetHash)
	}
	if err != nil {
		return fmt.Errorf("checkout: %w", err)
	}

	reason := fmt.Sprintf("checkout: moving from %s to %s", describeHead(state), target)
	if err := r.appendReflog("HEAD", state.Revision, targetHash, reason); err != nil {
		r.logger.Warn("reflog append failed", zap.String("ref", "HEAD"), zap.Error(err))
	}
	r.logger.Debug("checked out",
		zap.String("target", target),
		zap.String("revision", string(targetHash)),
		zap.Int("changes", len(changes)),
	)
	return nil
}

func describeHead(state HeadState) string {
	if state.Branch != "" {
		return state.Branch
	}
	if state.Revision == "" {
		return "nothing"
	}
	return state.Revision.Short()
}
