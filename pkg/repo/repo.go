package repo

import (
	"time"

	"github.com/odvcencio/mdv/pkg/object"
	"go.uber.org/zap"
)

// DirName is the name of the repository metadata directory.
const DirName = ".mdv"

// DefaultBranch is the branch HEAD points at in a fresh repository.
const DefaultBranch = "main"

// Repo represents an opened mdv repository.
type Repo struct {
	RootDir string        // working directory root
	MdvDir  string        // .mdv/ directory
	Store   *object.Store // content-addressed object store

	logger *zap.Logger
	now    func() time.Time
}

// Option configures a Repo returned by Init or Open.
type Option func(*Repo)

// WithLogger sets the logger used for debug output. The default discards
// everything.
func WithLogger(logger *zap.Logger) Option {
	return func(r *Repo) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// WithClock overrides the time source used for revision timestamps.
func WithClock(now func() time.Time) Option {
	return func(r *Repo) {
		if now != nil {
			r.now = now
		}
	}
}

func newRepo(rootDir, mdvDir string, opts []Option) *Repo {
	r := &Repo{
		RootDir: rootDir,
		MdvDir:  mdvDir,
		Store:   object.NewStore(mdvDir),
		logger:  zap.NewNop(),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}
