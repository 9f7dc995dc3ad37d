package repo

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"
)

const (
	repoLockRetryDelay = 10 * time.Millisecond
	repoLockTimeout    = 5 * time.Second
)

// Unlocker releases a repository lock.
type Unlocker func() error

// Lock takes the advisory repository-wide write lock at .mdv/lock. Callers
// that mutate the repository from the command line hold it for the whole
// command. The lock is not reentrant: taking it twice from one process
// blocks until ctx is done.
func (r *Repo) Lock(ctx context.Context) (Unlocker, error) {
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, repoLockTimeout)
		defer cancel()
	}

	lockPath := filepath.Join(r.MdvDir, "lock")
	fl := flock.New(lockPath)
	locked, err := fl.TryLockContext(ctx, repoLockRetryDelay)
	if err != nil {
		return nil, storageErr("lock repository", fmt.Errorf("%s: %w", lockPath, err))
	}
	if !locked {
		return nil, storageErr("lock repository", fmt.Errorf("could not lock %s", lockPath))
	}
	return fl.Unlock, nil
}
