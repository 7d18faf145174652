package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"warden/internal/config"
	"warden/internal/daemonize"
	"warden/internal/identity"
	"warden/internal/journal"
	"warden/internal/logging"
	"warden/internal/paths"
	"warden/internal/pidfile"
	"warden/internal/preflight"
)

// Options configures a Controller.
type Options struct {
	Config *config.Config
	Worker Worker

	// ConfigPath, when set, enables log-level hot reload in the detached
	// process.
	ConfigPath string

	// RunArgs are the CLI arguments that re-invoke this binary into the
	// detach ladder (for example: "run", "--config", path).
	RunArgs []string

	// Launcher overrides process creation; tests use this to observe the
	// ladder without spawning anything.
	Launcher daemonize.Launcher

	PreArgs, WorkerArgs, PostArgs Args
}

// Controller drives the daemon lifecycle against a frozen identity and path
// layout. Identity and paths are resolved once at construction, before any
// process creation, so account or layout problems surface synchronously.
type Controller struct {
	cfg        *config.Config
	worker     Worker
	configPath string
	launcher   daemonize.Launcher

	paths paths.Paths
	id    identity.Identity
	umask int

	preArgs    Args
	workerArgs Args
	postArgs   Args
}

// NewController resolves identity and layout and returns a ready controller.
func NewController(opts Options) (*Controller, error) {
	if opts.Config == nil {
		return nil, errors.New("lifecycle controller requires config")
	}
	if opts.Worker == nil {
		return nil, errors.New("lifecycle controller requires a worker")
	}

	id, baseDir, err := identity.NewResolver(opts.Config.Paths.BaseDir).Resolve()
	if err != nil {
		return nil, err
	}
	layout, err := paths.Derive(baseDir, opts.Config.Daemon.Name)
	if err != nil {
		return nil, err
	}
	umask, err := opts.Config.UmaskBits()
	if err != nil {
		return nil, err
	}

	launcher := opts.Launcher
	if launcher == nil {
		exe, err := os.Executable()
		if err != nil {
			return nil, fmt.Errorf("resolve executable: %w", err)
		}
		launcher = daemonize.ExecLauncher{Executable: exe, Args: opts.RunArgs}
	}

	return &Controller{
		cfg:        opts.Config,
		worker:     opts.Worker,
		configPath: opts.ConfigPath,
		launcher:   launcher,
		paths:      layout,
		id:         id,
		umask:      umask,
		preArgs:    opts.PreArgs,
		workerArgs: opts.WorkerArgs,
		postArgs:   opts.PostArgs,
	}, nil
}

// Paths exposes the frozen daemon layout.
func (c *Controller) Paths() paths.Paths { return c.paths }

// Identity exposes the frozen daemon identity.
func (c *Controller) Identity() identity.Identity { return c.id }

// Status reports the pid of the running instance, or 0 when none is alive.
func (c *Controller) Status() int {
	return pidfile.Status(c.paths.PidFile)
}

// Start launches the detach ladder from the original calling process.
//
// It is a no-op when an instance is already running. Otherwise the preflight
// checks run here, before any process is created, and a violation aborts the
// whole sequence. On success the caller lingers briefly -- long enough for
// the shell to get its prompt back while the ladder settles -- and returns
// with no verdict; only the pid file knows how detachment went.
func (c *Controller) Start() error {
	if c.Status() != 0 {
		return nil
	}
	if err := preflight.Err(preflight.RunAll(c.paths, c.id)); err != nil {
		return err
	}

	d := &daemonize.Daemonizer{
		Paths:    c.paths,
		Identity: c.id,
		Umask:    c.umask,
		Launcher: c.launcher,
	}
	if _, err := d.Detach(); err != nil {
		return err
	}
	time.Sleep(c.cfg.StartDelay())
	return nil
}

// RunDetached executes the current process's stage of the detach ladder.
// Intermediate stages return immediately after spawning their successor; the
// final stage becomes the daemon body and runs the worker chain.
func (c *Controller) RunDetached(ctx context.Context) error {
	levelVar := new(slog.LevelVar)
	levelVar.Set(logging.ParseLevel(c.cfg.Logging.Level))

	var env *Environment
	d := &daemonize.Daemonizer{
		Paths:    c.paths,
		Identity: c.id,
		Umask:    c.umask,
		Launcher: c.launcher,
		BindLogs: func() error {
			logger, stdout, stderr, err := logging.Bind(c.cfg.Daemon.Name, c.paths.LogFile, c.paths.ErrFile, levelVar)
			if err != nil {
				return err
			}
			env = &Environment{
				Logger:   logger,
				Stdout:   stdout,
				Stderr:   stderr,
				Paths:    c.paths,
				Identity: c.id,
			}
			return nil
		},
	}

	outcome, err := d.Detach()
	if err != nil {
		return err
	}
	if outcome.Role != daemonize.RoleDaemon {
		return nil
	}
	if !outcome.Acquired {
		// Another instance won the exclusive create. Stand down without
		// side effects; the winner's pid file stays untouched.
		return nil
	}
	defer pidfile.Release(c.paths.PidFile, env.Logger)

	logging.CleanupOldLogs(env.Logger, c.cfg.Logging.RetentionDays,
		logging.RetentionTarget{Dir: c.paths.LogDir, Pattern: "stdout_*.txt.*"},
		logging.RetentionTarget{Dir: c.paths.LogDir, Pattern: "stderr_*.txt.*"},
	)

	if store, journalErr := journal.Open(c.paths.VarDir); journalErr != nil {
		env.Logger.Warn("lifecycle journal unavailable", logging.Error(journalErr))
	} else {
		env.Journal = store
		defer store.Close()
	}

	if c.configPath != "" {
		if watcher, watchErr := config.WatchLevel(c.configPath, levelVar, env.Logger); watchErr != nil {
			env.Logger.Warn("config watcher unavailable", logging.Error(watchErr))
		} else {
			defer watcher.Close()
		}
	}

	signalCtx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	env.Logger.Info("daemon detached",
		logging.String("user", c.id.Username),
		logging.Int("pid", os.Getpid()),
		logging.String("workdir", c.paths.VarDir),
	)
	c.record(env, journal.TypeStarted, "")

	c.runWorkers(signalCtx, env)

	c.record(env, journal.TypeStopped, "")
	env.Logger.Info("daemon exiting")

	if c.cfg.Daemon.KeepResident {
		<-signalCtx.Done()
	}
	return nil
}

// runWorkers drives preworker, worker, and postworker with the original
// failure semantics: a preworker or worker failure skips the rest of the
// chain, an interrupt during worker is routine and postworker still runs,
// and nothing escapes past this method.
func (c *Controller) runWorkers(ctx context.Context, env *Environment) {
	defer func() {
		if r := recover(); r != nil {
			env.Logger.Error("worker chain panicked", logging.String("panic", fmt.Sprint(r)))
		}
	}()

	env.Logger.Info("starting preworker")
	if err := c.worker.Preworker(env, c.preArgs); err != nil {
		env.Logger.Error("preworker failed", logging.Error(err))
		c.record(env, journal.TypeWorkerFailed, "preworker: "+err.Error())
		return
	}

	env.Logger.Info("starting worker")
	err := c.worker.Worker(ctx, env, c.workerArgs)
	switch {
	case err == nil && ctx.Err() == nil:
		// Worker finished of its own accord.
	case ctx.Err() != nil || errors.Is(err, context.Canceled):
		env.Logger.Info("worker received interrupt")
		c.record(env, journal.TypeInterrupted, "worker received interrupt")
	default:
		env.Logger.Error("worker failed", logging.Error(err))
		c.record(env, journal.TypeWorkerFailed, err.Error())
		return
	}

	env.Logger.Info("starting postworker")
	if err := c.worker.Postworker(env, c.postArgs); err != nil {
		env.Logger.Error("postworker failed", logging.Error(err))
	}
}

// Stop signals the running instance and polls until it clears or attempts
// run out. The return value is the final observed pid: 0 means confirmed
// stopped, nonzero means stop did not converge -- which is the caller's
// signal to escalate, not an error here.
func (c *Controller) Stop(attempts int) int {
	if attempts <= 0 {
		attempts = c.cfg.Daemon.StopAttempts
	}
	pid := c.Status()
	for pid != 0 && attempts > 0 {
		if proc, err := os.FindProcess(pid); err == nil {
			_ = proc.Signal(syscall.SIGINT)
		}
		time.Sleep(c.cfg.PollInterval())
		pid = c.Status()
		attempts--
	}
	return pid
}

func (c *Controller) record(env *Environment, eventType, detail string) {
	if env.Journal == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := env.Journal.Record(ctx, eventType, detail); err != nil {
		env.Logger.Warn("journal write failed", logging.Error(err))
	}
}
