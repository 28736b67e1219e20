// Package build runs oro bootstrap scripts, once or every time the scripts
// under the root directory change.
package build

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dshills/oro/internal/config"
	"github.com/dshills/oro/internal/hostenv"
	"github.com/dshills/oro/internal/logging"
	"github.com/dshills/oro/internal/lua"
	"github.com/dshills/oro/internal/process"
	"github.com/dshills/oro/internal/watch"
)

// ErrMissingOption is returned by New when a required path is empty.
var ErrMissingOption = errors.New("missing required option")

// Options configures a Runner.
type Options struct {
	// RootDir is the project root; package.path and watching start here.
	RootDir string
	// BinDir is the build output directory.
	BinDir string
	// Bootstrap is the Lua file executed on every run.
	Bootstrap string
	// BuildScript is the user build script, passed to the bootstrap.
	BuildScript string
	// Args are the remaining command line arguments.
	Args []string

	// Config supplies search, Lua and watch settings. Nil uses defaults.
	Config *config.Config
	// Logger receives runner, spawner and watcher logs. Nil discards them.
	Logger *logging.Logger
	// Env is the environment published to scripts. Nil captures the
	// process environment once in New.
	Env *hostenv.Snapshot
	// Backend overrides how subprocesses are created.
	Backend process.Backend
}

// Runner executes the bootstrap script.
type Runner struct {
	opts    Options
	cfg     *config.Config
	log     *logging.Logger
	spawner *process.Spawner

	// afterRun is called after every run in watch mode.
	afterRun func(run int, err error)
}

// New validates opts and creates a Runner.
func New(opts Options) (*Runner, error) {
	for _, req := range []struct{ name, value string }{
		{"root directory", opts.RootDir},
		{"bin directory", opts.BinDir},
		{"bootstrap script", opts.Bootstrap},
	} {
		if req.value == "" {
			return nil, fmt.Errorf("%w: %s", ErrMissingOption, req.name)
		}
	}

	r := &Runner{
		opts: opts,
		cfg:  opts.Config,
		log:  opts.Logger,
	}
	if r.cfg == nil {
		r.cfg = config.Default()
	}
	if r.log == nil {
		r.log = logging.Nop()
	}
	if r.opts.Env == nil {
		r.opts.Env = hostenv.Capture()
	}

	spawnOpts := []process.Option{process.WithLogger(r.log)}
	if opts.Backend != nil {
		spawnOpts = append(spawnOpts, process.WithBackend(opts.Backend))
	}
	r.spawner = process.NewSpawner(spawnOpts...)
	r.log = r.log.WithComponent("build")

	return r, nil
}

// Run executes the bootstrap once in a fresh Lua state. The script is
// aborted when ctx is done.
func (r *Runner) Run(ctx context.Context) error {
	state := lua.NewState(lua.WithContext(ctx))
	defer state.Close()

	host := &lua.Host{
		Spawner:     r.spawner,
		Env:         r.opts.Env,
		RootDir:     r.opts.RootDir,
		BinDir:      r.opts.BinDir,
		BuildScript: r.opts.BuildScript,
		Args:        r.opts.Args,
		Delimiter:   r.cfg.Search.Delimiter,
		PackagePath: r.cfg.Lua.PackagePath,
		Logger:      r.log,
	}
	if err := host.Install(state); err != nil {
		return err
	}

	log := r.log.With(logging.Fields(logging.FieldPath, r.opts.Bootstrap))
	log.Debug("running bootstrap")
	start := time.Now()

	if err := state.DoFile(r.opts.Bootstrap); err != nil {
		log.Debug("bootstrap failed", logging.Fields(logging.FieldError, err))
		return err
	}

	log.Debug("bootstrap finished", logging.Fields(
		logging.FieldDuration, time.Since(start).Milliseconds(),
	))
	return nil
}

// Watch runs the bootstrap, then runs it again after every batch of script
// changes below the root directory until ctx is done. Failed runs are
// logged and do not stop watching.
func (r *Runner) Watch(ctx context.Context) error {
	w, err := watch.New(
		watch.WithFilter(watch.Filter{
			Include: r.cfg.Watch.Include,
			Ignore:  r.cfg.Watch.Ignore,
		}),
		watch.WithLogger(r.log),
	)
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}

	if err := w.WatchTree(r.opts.RootDir); err != nil {
		_ = w.Close()
		return fmt.Errorf("watch %s: %w", r.opts.RootDir, err)
	}

	d := watch.NewDebouncer(w, time.Duration(r.cfg.Watch.Debounce))
	defer d.Close()

	return r.watchLoop(ctx, d.Batches(), d.Errors())
}

func (r *Runner) watchLoop(ctx context.Context, batches <-chan watch.Batch, errs <-chan error) error {
	run := 0
	r.runWatched(ctx, &run)

	for {
		select {
		case <-ctx.Done():
			r.log.Info("watch stopped")
			return nil

		case batch, ok := <-batches:
			if !ok {
				return nil
			}
			r.log.Info("scripts changed", logging.Fields("paths", batch.Paths()))
			r.runWatched(ctx, &run)

		case err, ok := <-errs:
			if !ok {
				errs = nil
				continue
			}
			r.log.Warn("watcher error", logging.Fields(logging.FieldError, err))
		}
	}
}

func (r *Runner) runWatched(ctx context.Context, run *int) {
	*run++
	err := r.Run(ctx)
	if err != nil {
		r.log.Error("build failed", logging.Fields("run", *run, logging.FieldError, err))
	} else {
		r.log.Info("build succeeded", logging.Fields("run", *run))
	}
	if r.afterRun != nil {
		r.afterRun(*run, err)
	}
}
