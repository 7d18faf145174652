package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"reflect"
	"strings"
	"syscall"
	"testing"
	"time"

	"golang.org/x/sys/unix"

	"warden/internal/config"
	"warden/internal/daemonize"
	"warden/internal/logging"
)

type fakeLauncher struct {
	calls      int
	lastStage  daemonize.Stage
	lastSetsid bool
	err        error
}

func (l *fakeLauncher) Launch(next daemonize.Stage, setsid bool) error {
	l.calls++
	l.lastStage = next
	l.lastSetsid = setsid
	return l.err
}

type stubWorker struct {
	calls   []string
	preErr  error
	workErr error
	postErr error
	workFn  func(ctx context.Context) error
}

func (w *stubWorker) Preworker(env *Environment, args Args) error {
	w.calls = append(w.calls, "preworker")
	return w.preErr
}

func (w *stubWorker) Worker(ctx context.Context, env *Environment, args Args) error {
	w.calls = append(w.calls, "worker")
	if w.workFn != nil {
		return w.workFn(ctx)
	}
	return w.workErr
}

func (w *stubWorker) Postworker(env *Environment, args Args) error {
	w.calls = append(w.calls, "postworker")
	return w.postErr
}

func newTestController(t *testing.T, name string, launcher daemonize.Launcher, worker Worker) *Controller {
	t.Helper()
	root := t.TempDir()
	for _, dir := range []string{"lib", "log", "var"} {
		if err := os.Mkdir(filepath.Join(root, dir), 0o755); err != nil {
			t.Fatal(err)
		}
	}
	cfg := &config.Config{
		Paths: config.Paths{BaseDir: filepath.Join(root, "lib")},
		Daemon: config.Daemon{
			Name:           name,
			Umask:          "0133",
			StopAttempts:   5,
			PollIntervalMS: 10,
			StartDelayMS:   1,
		},
		Logging: config.Logging{Level: "debug", RetentionDays: 7},
	}
	ctrl, err := NewController(Options{Config: cfg, Worker: worker, Launcher: launcher})
	if err != nil {
		t.Fatal(err)
	}
	return ctrl
}

func unsetStage(t *testing.T) {
	t.Helper()
	t.Setenv(daemonize.StageEnv, "")
	os.Unsetenv(daemonize.StageEnv)
}

func guardProcessState(t *testing.T) {
	t.Helper()
	oldMask := unix.Umask(0o022)
	unix.Umask(oldMask)
	t.Cleanup(func() { unix.Umask(oldMask) })

	cwd, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { os.Chdir(cwd) }) //nolint:errcheck
}

func TestNewControllerRequiresConfigAndWorker(t *testing.T) {
	if _, err := NewController(Options{Worker: &stubWorker{}}); err == nil {
		t.Fatal("expected error without config")
	}
	if _, err := NewController(Options{Config: &config.Config{}}); err == nil {
		t.Fatal("expected error without worker")
	}
}

func TestStatusZeroWithoutPidFile(t *testing.T) {
	ctrl := newTestController(t, "StatusNone", &fakeLauncher{}, &stubWorker{})
	if pid := ctrl.Status(); pid != 0 {
		t.Fatalf("status = %d, want 0", pid)
	}
}

func TestStartNoOpWhenAlreadyRunning(t *testing.T) {
	unsetStage(t)

	launcher := &fakeLauncher{}
	ctrl := newTestController(t, "StartRunning", launcher, &stubWorker{})

	// Our own pid always passes the liveness probe.
	pidData := fmt.Sprintf("%d\n", os.Getpid())
	if err := os.WriteFile(ctrl.Paths().PidFile, []byte(pidData), 0o644); err != nil {
		t.Fatal(err)
	}

	if err := ctrl.Start(); err != nil {
		t.Fatalf("Start returned error: %v", err)
	}
	if launcher.calls != 0 {
		t.Fatalf("launcher ran %d times for an already-running daemon", launcher.calls)
	}
}

func TestStartBlockedByPreflight(t *testing.T) {
	unsetStage(t)

	launcher := &fakeLauncher{}
	ctrl := newTestController(t, "StartBlocked", launcher, &stubWorker{})

	logDir := ctrl.Paths().LogDir
	if err := os.Chmod(logDir, 0o100); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { os.Chmod(logDir, 0o755) }) //nolint:errcheck

	err := ctrl.Start()
	if err == nil {
		t.Fatal("expected preflight failure")
	}
	if !strings.Contains(err.Error(), "preflight") {
		t.Fatalf("unexpected error: %v", err)
	}
	if launcher.calls != 0 {
		t.Fatalf("launcher ran %d times despite preflight failure", launcher.calls)
	}
}

func TestStartLaunchesDetachLadder(t *testing.T) {
	unsetStage(t)

	launcher := &fakeLauncher{}
	ctrl := newTestController(t, "StartLaunch", launcher, &stubWorker{})

	if err := ctrl.Start(); err != nil {
		t.Fatalf("Start returned error: %v", err)
	}
	if launcher.calls != 1 {
		t.Fatalf("launch calls = %d, want 1", launcher.calls)
	}
	if launcher.lastStage != daemonize.StageSession || !launcher.lastSetsid {
		t.Fatalf("unexpected launch: stage=%v setsid=%v", launcher.lastStage, launcher.lastSetsid)
	}
}

func TestStopWithNothingRunning(t *testing.T) {
	ctrl := newTestController(t, "StopIdle", &fakeLauncher{}, &stubWorker{})
	if pid := ctrl.Stop(3); pid != 0 {
		t.Fatalf("stop of idle daemon = %d, want 0", pid)
	}
}

func TestStopConvergesOnLiveProcess(t *testing.T) {
	ctrl := newTestController(t, "StopLive", &fakeLauncher{}, &stubWorker{})

	cmd := exec.Command("sleep", "30")
	if err := cmd.Start(); err != nil {
		t.Fatal(err)
	}
	reaped := make(chan struct{})
	go func() {
		cmd.Wait() //nolint:errcheck
		close(reaped)
	}()
	t.Cleanup(func() {
		cmd.Process.Signal(syscall.SIGKILL) //nolint:errcheck
		<-reaped
	})

	pidData := fmt.Sprintf("%d\n", cmd.Process.Pid)
	if err := os.WriteFile(ctrl.Paths().PidFile, []byte(pidData), 0o644); err != nil {
		t.Fatal(err)
	}

	if pid := ctrl.Stop(100); pid != 0 {
		t.Fatalf("stop did not converge, final pid = %d", pid)
	}
}

func TestRunWorkersFullChain(t *testing.T) {
	worker := &stubWorker{}
	ctrl := newTestController(t, "ChainFull", &fakeLauncher{}, worker)
	env := &Environment{Logger: logging.NewNop()}

	ctrl.runWorkers(context.Background(), env)

	want := []string{"preworker", "worker", "postworker"}
	if !reflect.DeepEqual(worker.calls, want) {
		t.Fatalf("calls = %v, want %v", worker.calls, want)
	}
}

func TestRunWorkersPreworkerFailureSkipsRest(t *testing.T) {
	worker := &stubWorker{preErr: errors.New("setup failed")}
	ctrl := newTestController(t, "ChainPreFail", &fakeLauncher{}, worker)
	env := &Environment{Logger: logging.NewNop()}

	ctrl.runWorkers(context.Background(), env)

	want := []string{"preworker"}
	if !reflect.DeepEqual(worker.calls, want) {
		t.Fatalf("calls = %v, want %v", worker.calls, want)
	}
}

func TestRunWorkersWorkerFailureSkipsPostworker(t *testing.T) {
	worker := &stubWorker{workErr: errors.New("body failed")}
	ctrl := newTestController(t, "ChainWorkFail", &fakeLauncher{}, worker)
	env := &Environment{Logger: logging.NewNop()}

	ctrl.runWorkers(context.Background(), env)

	want := []string{"preworker", "worker"}
	if !reflect.DeepEqual(worker.calls, want) {
		t.Fatalf("calls = %v, want %v", worker.calls, want)
	}
}

func TestRunWorkersInterruptStillRunsPostworker(t *testing.T) {
	worker := &stubWorker{workFn: func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	}}
	ctrl := newTestController(t, "ChainInterrupt", &fakeLauncher{}, worker)
	env := &Environment{Logger: logging.NewNop()}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	ctrl.runWorkers(ctx, env)

	want := []string{"preworker", "worker", "postworker"}
	if !reflect.DeepEqual(worker.calls, want) {
		t.Fatalf("calls = %v, want %v", worker.calls, want)
	}
}

func TestRunWorkersPanicIsContained(t *testing.T) {
	worker := &stubWorker{workFn: func(ctx context.Context) error {
		panic("worker blew up")
	}}
	ctrl := newTestController(t, "ChainPanic", &fakeLauncher{}, worker)
	env := &Environment{Logger: logging.NewNop()}

	ctrl.runWorkers(context.Background(), env)
}

func TestRunDetachedCallerStageOnlySpawns(t *testing.T) {
	unsetStage(t)

	launcher := &fakeLauncher{}
	ctrl := newTestController(t, "DetachCaller", launcher, &stubWorker{})

	if err := ctrl.RunDetached(context.Background()); err != nil {
		t.Fatalf("RunDetached returned error: %v", err)
	}
	if launcher.calls != 1 {
		t.Fatalf("launch calls = %d, want 1", launcher.calls)
	}
	if pid := ctrl.Status(); pid != 0 {
		t.Fatalf("pid file appeared in caller stage: %d", pid)
	}
}

func TestRunDetachedFinalStageRunsChainAndReleases(t *testing.T) {
	t.Setenv(daemonize.StageEnv, "2")
	guardProcessState(t)

	worker := &stubWorker{}
	ctrl := newTestController(t, "DetachFinal", &fakeLauncher{}, worker)

	if err := ctrl.RunDetached(context.Background()); err != nil {
		t.Fatalf("RunDetached returned error: %v", err)
	}

	want := []string{"preworker", "worker", "postworker"}
	if !reflect.DeepEqual(worker.calls, want) {
		t.Fatalf("calls = %v, want %v", worker.calls, want)
	}
	if pid := ctrl.Status(); pid != 0 {
		t.Fatalf("pid file survived shutdown: %d", pid)
	}

	data, err := os.ReadFile(ctrl.Paths().LogFile)
	if err != nil {
		t.Fatalf("log file missing after run: %v", err)
	}
	for _, msg := range []string{"daemon detached", "starting worker", "daemon exiting"} {
		if !strings.Contains(string(data), msg) {
			t.Fatalf("log file missing %q:\n%s", msg, data)
		}
	}

	if _, err := os.Stat(filepath.Join(ctrl.Paths().VarDir, "warden.db")); err != nil {
		t.Fatalf("journal database missing: %v", err)
	}
}

func TestRunDetachedFinalStageLosesRaceQuietly(t *testing.T) {
	t.Setenv(daemonize.StageEnv, "2")
	guardProcessState(t)

	worker := &stubWorker{}
	ctrl := newTestController(t, "DetachLost", &fakeLauncher{}, worker)

	if err := os.WriteFile(ctrl.Paths().PidFile, []byte("424242\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	if err := ctrl.RunDetached(context.Background()); err != nil {
		t.Fatalf("losing the race must not error, got: %v", err)
	}
	if len(worker.calls) != 0 {
		t.Fatalf("worker chain ran after losing the pid race: %v", worker.calls)
	}

	data, err := os.ReadFile(ctrl.Paths().PidFile)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "424242\n" {
		t.Fatalf("pid file was disturbed: %q", data)
	}
}

func TestStopSignalsRepeatedlyUntilAttemptsExhausted(t *testing.T) {
	ctrl := newTestController(t, "StopStuck", &fakeLauncher{}, &stubWorker{})

	// A child that ignores SIGINT long enough to exhaust the attempts.
	cmd := exec.Command("sh", "-c", "trap '' INT; sleep 30")
	if err := cmd.Start(); err != nil {
		t.Fatal(err)
	}
	reaped := make(chan struct{})
	go func() {
		cmd.Wait() //nolint:errcheck
		close(reaped)
	}()
	t.Cleanup(func() {
		cmd.Process.Signal(syscall.SIGKILL) //nolint:errcheck
		<-reaped
	})

	// Give the shell a beat to install the trap.
	time.Sleep(50 * time.Millisecond)

	pidData := fmt.Sprintf("%d\n", cmd.Process.Pid)
	if err := os.WriteFile(ctrl.Paths().PidFile, []byte(pidData), 0o644); err != nil {
		t.Fatal(err)
	}

	if pid := ctrl.Stop(3); pid != cmd.Process.Pid {
		t.Fatalf("stop reported pid %d, want stuck pid %d", pid, cmd.Process.Pid)
	}
}
