package main

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/odvcencio/mdv/pkg/repo"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

var verbose bool

func newLogger() *zap.Logger {
	if !verbose {
		return zap.NewNop()
	}
	logger, err := zap.NewDevelopment()
	if err != nil {
		return zap.NewNop()
	}
	return logger
}

func openRepo() (*repo.Repo, error) {
	return repo.Open(".", repo.WithLogger(newLogger()))
}

// withLock runs fn while holding the repository lock.
func withLock(ctx context.Context, r *repo.Repo, fn func() error) (err error) {
	if ctx == nil {
		ctx = context.Background()
	}
	unlock, err := r.Lock(ctx)
	if err != nil {
		return err
	}
	defer func() {
		err = multierr.Append(err, unlock())
	}()
	return fn()
}

// openLocked opens the repository in the working directory and runs fn under
// its lock.
func openLocked(ctx context.Context, fn func(r *repo.Repo) error) error {
	r, err := openRepo()
	if err != nil {
		return err
	}
	return withLock(ctx, r, func() error { return fn(r) })
}

// absPaths makes command-line paths absolute so they resolve against the
// working directory rather than the repository root.
func absPaths(paths []string) ([]string, error) {
	out := make([]string, len(paths))
	for i, p := range paths {
		abs, err := filepath.Abs(p)
		if err != nil {
			return nil, fmt.Errorf("resolve path %q: %w", p, err)
		}
		out[i] = abs
	}
	return out, nil
}
