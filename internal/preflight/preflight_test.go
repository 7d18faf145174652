package preflight

import (
	"os"
	"path/filepath"
	"testing"

	"warden/internal/identity"
	"warden/internal/paths"
)

func TestCheckDirectoryOK(t *testing.T) {
	dir := t.TempDir()
	result := CheckDirectory("test", dir, os.Getuid())
	if !result.Passed {
		t.Fatalf("expected pass for temp dir, got: %s", result.Detail)
	}
}

func TestCheckDirectoryMissing(t *testing.T) {
	result := CheckDirectory("test", filepath.Join(t.TempDir(), "nope"), os.Getuid())
	if result.Passed {
		t.Fatal("expected failure for missing dir")
	}
	if result.Detail == "" {
		t.Fatal("expected non-empty detail")
	}
}

func TestCheckDirectoryWrongOwner(t *testing.T) {
	result := CheckDirectory("test", t.TempDir(), os.Getuid()+1)
	if result.Passed {
		t.Fatal("expected failure for mismatched owner")
	}
}

func TestCheckFileAbsentPasses(t *testing.T) {
	result := CheckFile("test", filepath.Join(t.TempDir(), "stdout_X.txt"), os.Getuid())
	if !result.Passed {
		t.Fatalf("expected absent file to pass, got: %s", result.Detail)
	}
}

func TestCheckFileModeDeniesOwnerWrite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "stdout_X.txt")
	if err := os.WriteFile(path, []byte("x"), 0o400); err != nil {
		t.Fatal(err)
	}
	result := CheckFile("test", path, os.Getuid())
	if result.Passed {
		t.Fatal("expected failure for read-only file")
	}
}

func TestRunAllAndErr(t *testing.T) {
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
	id := identity.Identity{UID: os.Getuid(), GID: os.Getgid()}

	if err := Err(RunAll(p, id)); err != nil {
		t.Fatalf("expected clean preflight, got: %v", err)
	}

	// A read-only log file must fail the run.
	if err := os.WriteFile(p.LogFile, nil, 0o400); err != nil {
		t.Fatal(err)
	}
	if err := Err(RunAll(p, id)); err == nil {
		t.Fatal("expected preflight failure for read-only log file")
	}
}
