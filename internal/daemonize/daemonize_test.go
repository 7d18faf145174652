package daemonize

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"golang.org/x/sys/unix"

	"warden/internal/identity"
	"warden/internal/paths"
	"warden/internal/pidfile"
)

type fakeLauncher struct {
	calls []launchCall
	err   error
}

type launchCall struct {
	next   Stage
	setsid bool
}

func (l *fakeLauncher) Launch(next Stage, setsid bool) error {
	l.calls = append(l.calls, launchCall{next: next, setsid: setsid})
	return l.err
}

func testDaemonizer(t *testing.T, launcher Launcher) *Daemonizer {
	t.Helper()
	root := t.TempDir()
	for _, dir := range []string{"lib", "log", "var"} {
		if err := os.Mkdir(filepath.Join(root, dir), 0o755); err != nil {
			t.Fatal(err)
		}
	}
	p, err := paths.Derive(filepath.Join(root, "lib"), "Test")
	if err != nil {
		t.Fatal(err)
	}
	return &Daemonizer{
		Paths:    p,
		Identity: identity.Identity{UID: os.Getuid(), GID: os.Getgid()},
		Umask:    0o133,
		Launcher: launcher,
	}
}

func TestCurrentStageDefaultsToCaller(t *testing.T) {
	t.Setenv(StageEnv, "")
	os.Unsetenv(StageEnv)
	if got := CurrentStage(); got != StageCaller {
		t.Fatalf("stage = %v, want caller", got)
	}

	t.Setenv(StageEnv, "garbage")
	if got := CurrentStage(); got != StageCaller {
		t.Fatalf("stage = %v, want caller for garbage value", got)
	}

	t.Setenv(StageEnv, "7")
	if got := CurrentStage(); got != StageCaller {
		t.Fatalf("stage = %v, want caller for out-of-range value", got)
	}
}

func TestDetachCallerLaunchesSessionLeader(t *testing.T) {
	t.Setenv(StageEnv, "")
	os.Unsetenv(StageEnv)

	launcher := &fakeLauncher{}
	d := testDaemonizer(t, launcher)

	outcome, err := d.Detach()
	if err != nil {
		t.Fatalf("Detach returned error: %v", err)
	}
	if outcome.Role != RoleParent {
		t.Fatalf("role = %v, want parent", outcome.Role)
	}
	if len(launcher.calls) != 1 {
		t.Fatalf("launch calls = %d, want 1", len(launcher.calls))
	}
	if call := launcher.calls[0]; call.next != StageSession || !call.setsid {
		t.Fatalf("unexpected launch call: %+v", call)
	}
	// The parent never touches the pid file.
	if pid := pidfile.Status(d.Paths.PidFile); pid != 0 {
		t.Fatalf("pid file appeared in parent stage: %d", pid)
	}
}

func TestDetachSessionLeaderLaunchesFinalStage(t *testing.T) {
	t.Setenv(StageEnv, "1")

	launcher := &fakeLauncher{}
	d := testDaemonizer(t, launcher)

	outcome, err := d.Detach()
	if err != nil {
		t.Fatalf("Detach returned error: %v", err)
	}
	if outcome.Role != RoleSessionLeader {
		t.Fatalf("role = %v, want session leader", outcome.Role)
	}
	if call := launcher.calls[0]; call.next != StageDetached || call.setsid {
		t.Fatalf("unexpected launch call: %+v", call)
	}
}

func TestDetachLaunchFailurePropagates(t *testing.T) {
	t.Setenv(StageEnv, "")
	os.Unsetenv(StageEnv)

	boom := errors.New("spawn failed")
	d := testDaemonizer(t, &fakeLauncher{err: boom})

	if _, err := d.Detach(); !errors.Is(err, boom) {
		t.Fatalf("expected launch error, got: %v", err)
	}
}

func TestDetachFinalStageAcquiresPidFile(t *testing.T) {
	t.Setenv(StageEnv, "2")

	var bound bool
	d := testDaemonizer(t, &fakeLauncher{})
	d.BindLogs = func() error {
		bound = true
		return nil
	}

	oldMask := unix.Umask(0o022)
	unix.Umask(oldMask)
	defer unix.Umask(oldMask)

	cwd, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	defer os.Chdir(cwd) //nolint:errcheck

	outcome, err := d.Detach()
	if err != nil {
		t.Fatalf("Detach returned error: %v", err)
	}
	if outcome.Role != RoleDaemon {
		t.Fatalf("role = %v, want daemon", outcome.Role)
	}
	if !outcome.Acquired {
		t.Fatal("expected pid file acquisition")
	}
	if !bound {
		t.Fatal("expected BindLogs to run")
	}
	if pid := pidfile.Status(d.Paths.PidFile); pid != os.Getpid() {
		t.Fatalf("pid file pid = %d, want %d", pid, os.Getpid())
	}
	wd, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	if wd != d.Paths.VarDir {
		t.Fatalf("working directory = %s, want %s", wd, d.Paths.VarDir)
	}
}

func TestDetachFinalStageLosesRaceQuietly(t *testing.T) {
	t.Setenv(StageEnv, "2")

	d := testDaemonizer(t, &fakeLauncher{})

	oldMask := unix.Umask(0o022)
	unix.Umask(oldMask)
	defer unix.Umask(oldMask)

	cwd, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	defer os.Chdir(cwd) //nolint:errcheck

	// Another instance already holds the pid file.
	if err := os.WriteFile(d.Paths.PidFile, []byte("12345\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	outcome, err := d.Detach()
	if err != nil {
		t.Fatalf("losing the race must not error, got: %v", err)
	}
	if outcome.Role != RoleDaemon || outcome.Acquired {
		t.Fatalf("unexpected outcome: %+v", outcome)
	}

	// The existing file is untouched.
	data, err := os.ReadFile(d.Paths.PidFile)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "12345\n" {
		t.Fatalf("pid file was disturbed: %q", data)
	}
}
