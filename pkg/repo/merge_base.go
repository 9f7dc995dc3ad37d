package repo

import (
	"fmt"

	"github.com/odvcencio/mdv/pkg/object"
	"go.uber.org/zap"
)

const maxMergeBaseBFSSteps = 1_000_000

// mergeBaseBFSStepsLimit lets tests tighten the traversal bound.
var mergeBaseBFSStepsLimit = maxMergeBaseBFSSteps

func mergeBaseStepsLimit() int {
	if mergeBaseBFSStepsLimit <= 0 || mergeBaseBFSStepsLimit > maxMergeBaseBFSSteps {
		return maxMergeBaseBFSSteps
	}
	return mergeBaseBFSStepsLimit
}

// revisionCache memoizes revision reads during one traversal.
type revisionCache struct {
	r       *Repo
	commits map[object.Hash]*object.CommitObj
}

func newRevisionCache(r *Repo) *revisionCache {
	return &revisionCache{r: r, commits: make(map[object.Hash]*object.CommitObj)}
}

func (c *revisionCache) parents(h object.Hash) ([]object.Hash, error) {
	if commit, ok := c.commits[h]; ok {
		return commit.Parents, nil
	}
	commit, err := c.r.Store.ReadCommit(h)
	if err != nil {
		return nil, fmt.Errorf("read revision %s: %w", h, err)
	}
	c.commits[h] = commit
	return commit.Parents, nil
}

// bfsSide is one direction of the bidirectional ancestor search.
type bfsSide struct {
	dist     map[object.Hash]int
	frontier []object.Hash
	depth    int
}

func newBFSSide(tip object.Hash) *bfsSide {
	return &bfsSide{
		dist:     map[object.Hash]int{tip: 0},
		frontier: []object.Hash{tip},
	}
}

// FindMergeBase returns the nearest common ancestor of a and b: the
// revision reachable from both (over main and merge parents) with the
// lowest combined distance, ties going to the smaller id. A revision is its
// own ancestor. Disjoint histories yield ErrUnrelated.
//
// Both tips are walked backwards one level at a time, always advancing the
// shallower side. The search stops once no undiscovered revision can beat
// the best candidate.
func (r *Repo) FindMergeBase(a, b object.Hash) (object.Hash, error) {
	if a == "" || b == "" {
		return "", fmt.Errorf("find merge base: %w", ErrUnrelated)
	}
	if a == b {
		return a, nil
	}

	cache := newRevisionCache(r)
	sides := [2]*bfsSide{newBFSSide(a), newBFSSide(b)}
	limit := mergeBaseStepsLimit()
	steps := 0

	best := object.Hash("")
	bestDist := -1
	consider := func(h object.Hash, d int) {
		if bestDist < 0 || d < bestDist || (d == bestDist && h < best) {
			best, bestDist = h, d
		}
	}

	for {
		// Every revision neither side has reached yet is at least this far
		// from the side that still has to find it.
		bound := -1
		next := -1
		for i, s := range sides {
			if len(s.frontier) == 0 {
				continue
			}
			if bound < 0 || s.depth+1 < bound {
				bound = s.depth + 1
				next = i
			}
		}
		if next < 0 || (bestDist >= 0 && bestDist < bound) {
			break
		}

		side, other := sides[next], sides[1-next]
		var frontier []object.Hash
		for _, h := range side.frontier {
			steps++
			if steps > limit {
				return "", fmt.Errorf("find merge base: traversal exceeded maximum steps (%d)", limit)
			}
			parents, err := cache.parents(h)
			if err != nil {
				return "", fmt.Errorf("find merge base: %w", err)
			}
			for _, p := range parents {
				if _, seen := side.dist[p]; seen {
					continue
				}
				side.dist[p] = side.depth + 1
				frontier = append(frontier, p)
				if d, ok := other.dist[p]; ok {
					consider(p, side.depth+1+d)
				}
			}
		}
		side.frontier = frontier
		side.depth++
	}

	if bestDist < 0 {
		return "", fmt.Errorf("find merge base %s %s: %w", a.Short(), b.Short(), ErrUnrelated)
	}
	r.logger.Debug("merge base found",
		zap.String("base", string(best)),
		zap.Int("distance", bestDist),
		zap.Int("steps", steps),
	)
	return best, nil
}

// IsAncestor reports whether ancestor is reachable from descendant. A
// revision is its own ancestor.
func (r *Repo) IsAncestor(ancestor, descendant object.Hash) (bool, error) {
	if ancestor == descendant {
		return true, nil
	}
	cache := newRevisionCache(r)
	seen := map[object.Hash]bool{descendant: true}
	queue := []object.Hash{descendant}
	limit := mergeBaseStepsLimit()

	for steps := 0; len(queue) > 0; steps++ {
		if steps > limit {
			return false, fmt.Errorf("is ancestor: traversal exceeded maximum steps (%d)", limit)
		}
		h := queue[0]
		queue = queue[1:]
		parents, err := cache.parents(h)
		if err != nil {
			return false, fmt.Errorf("is ancestor: %w", err)
		}
		for _, p := range parents {
			if p == ancestor {
				return true, nil
			}
			if !seen[p] {
				seen[p] = true
				queue = append(queue, p)
			}
		}
	}
	return false, nil
}
