package pidfile

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"testing"

	"warden/internal/logging"
)

func TestAcquireWritesOwnPid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pid_Test.txt")

	ok, err := Acquire(path)
	if err != nil {
		t.Fatalf("Acquire returned error: %v", err)
	}
	if !ok {
		t.Fatal("expected first acquire to win")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if want := fmt.Sprintf("%d\n", os.Getpid()); string(data) != want {
		t.Fatalf("pid file contents = %q, want %q", data, want)
	}
}

func TestAcquireLosesRaceSilently(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pid_Test.txt")
	if _, err := Acquire(path); err != nil {
		t.Fatal(err)
	}

	ok, err := Acquire(path)
	if err != nil {
		t.Fatalf("losing acquire must not error, got: %v", err)
	}
	if ok {
		t.Fatal("second acquire must not win")
	}

	// The existing file must be untouched.
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if want := fmt.Sprintf("%d\n", os.Getpid()); string(data) != want {
		t.Fatalf("pid file was disturbed: %q", data)
	}
}

func TestStatusAbsentFile(t *testing.T) {
	if pid := Status(filepath.Join(t.TempDir(), "missing")); pid != 0 {
		t.Fatalf("Status = %d, want 0", pid)
	}
}

func TestStatusLiveProcess(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pid_Test.txt")
	if _, err := Acquire(path); err != nil {
		t.Fatal(err)
	}
	if pid := Status(path); pid != os.Getpid() {
		t.Fatalf("Status = %d, want %d", pid, os.Getpid())
	}
}

func TestStatusStaleFileReportsZeroAndKeepsFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pid_Test.txt")

	cmd := exec.Command("true")
	if err := cmd.Run(); err != nil {
		t.Skipf("cannot run helper process: %v", err)
	}
	deadPid := cmd.Process.Pid

	if err := os.WriteFile(path, []byte(fmt.Sprintf("%d\n", deadPid)), 0o644); err != nil {
		t.Fatal(err)
	}
	if pid := Status(path); pid != 0 {
		t.Fatalf("Status = %d, want 0 for dead pid", pid)
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("stale pid file must not be deleted: %v", err)
	}
}

func TestStatusGarbageContents(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pid_Test.txt")
	if err := os.WriteFile(path, []byte("not-a-pid\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if pid := Status(path); pid != 0 {
		t.Fatalf("Status = %d, want 0 for garbage contents", pid)
	}
}

func TestReleaseRemovesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pid_Test.txt")
	if _, err := Acquire(path); err != nil {
		t.Fatal(err)
	}

	Release(path, logging.NewNop())
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Fatalf("expected pid file to be removed, stat err: %v", err)
	}

	// Releasing again must be a quiet no-op.
	Release(path, logging.NewNop())
}
