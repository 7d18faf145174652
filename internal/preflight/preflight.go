package preflight

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"syscall"

	"warden/internal/identity"
	"warden/internal/paths"
)

// Result reports the outcome of a single preflight check.
type Result struct {
	Name   string
	Passed bool
	Detail string
}

const ownerReadWrite = 0o600

// RunAll verifies every path the daemon will touch. Directories must exist
// and be owned by the resolved identity; the log, error, and pid files may
// be absent (the daemon creates them) but when present must carry the same
// ownership and owner read/write bits.
func RunAll(p paths.Paths, id identity.Identity) []Result {
	results := []Result{
		CheckDirectory("Base directory", p.BaseDir, id.UID),
		CheckDirectory("Log directory", p.LogDir, id.UID),
		CheckDirectory("Var directory", p.VarDir, id.UID),
		CheckFile("Log file", p.LogFile, id.UID),
		CheckFile("Error file", p.ErrFile, id.UID),
	}
	return results
}

// Err collapses results into a single error naming the first failure, or nil
// when every check passed.
func Err(results []Result) error {
	for _, r := range results {
		if !r.Passed {
			return fmt.Errorf("preflight: %s: %s", r.Name, r.Detail)
		}
	}
	return nil
}

// CheckDirectory verifies that path exists, is a directory, and is owned by
// uid with owner read/write access.
func CheckDirectory(name, path string, uid int) Result {
	info, err := os.Stat(path)
	if err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s: %v", path, err)}
	}
	if !info.IsDir() {
		return Result{Name: name, Detail: fmt.Sprintf("%s is not a directory", path)}
	}
	return checkOwnerMode(name, path, info, uid)
}

// CheckFile verifies ownership and owner read/write mode on path. A missing
// file passes: the detached process creates it on first write.
func CheckFile(name, path string, uid int) Result {
	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return Result{Name: name, Passed: true, Detail: "absent (will be created)"}
		}
		return Result{Name: name, Detail: fmt.Sprintf("%s: %v", path, err)}
	}
	return checkOwnerMode(name, path, info, uid)
}

func checkOwnerMode(name, path string, info fs.FileInfo, uid int) Result {
	st, ok := info.Sys().(*syscall.Stat_t)
	if !ok {
		return Result{Name: name, Detail: fmt.Sprintf("%s: no unix ownership info", path)}
	}
	if int(st.Uid) != uid {
		return Result{Name: name, Detail: fmt.Sprintf("%s owned by uid %d, want %d", path, st.Uid, uid)}
	}
	if mode := info.Mode().Perm(); mode&ownerReadWrite != ownerReadWrite {
		return Result{Name: name, Detail: fmt.Sprintf("%s mode %04o denies owner read/write", path, mode)}
	}
	return Result{Name: name, Passed: true}
}
