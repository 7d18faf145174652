// Package paths derives the on-disk layout for a managed daemon from its
// base directory and name.
//
// The layout is fixed relative to the base directory: log output and the pid
// file live in a sibling log directory, and the detached process runs with a
// sibling var directory as its working directory. Callers derive the layout
// once at construction and treat it as immutable afterwards.
package paths

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
)

// Paths describes every filesystem location a managed daemon touches.
type Paths struct {
	BaseDir string
	LogDir  string
	VarDir  string
	LogFile string
	ErrFile string
	PidFile string
}

// Derive computes the daemon layout for the given base directory and daemon
// name. The name becomes part of each filename so multiple daemons can share
// one log directory without colliding.
func Derive(baseDir, name string) (Paths, error) {
	baseDir = strings.TrimSpace(baseDir)
	if baseDir == "" {
		return Paths{}, errors.New("base directory must be set")
	}
	name = sanitizeName(name)
	if name == "" {
		return Paths{}, errors.New("daemon name must contain at least one letter or digit")
	}

	base, err := filepath.Abs(baseDir)
	if err != nil {
		return Paths{}, fmt.Errorf("resolve base directory: %w", err)
	}

	parent := filepath.Dir(base)
	logDir := filepath.Join(parent, "log")
	varDir := filepath.Join(parent, "var")

	return Paths{
		BaseDir: base,
		LogDir:  logDir,
		VarDir:  varDir,
		LogFile: filepath.Join(logDir, "stdout_"+name+".txt"),
		ErrFile: filepath.Join(logDir, "stderr_"+name+".txt"),
		PidFile: filepath.Join(logDir, "pid_"+name+".txt"),
	}, nil
}

// sanitizeName strips characters that have no business in a filename.
func sanitizeName(name string) string {
	var b strings.Builder
	for _, r := range strings.TrimSpace(name) {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == '-' || r == '_':
			b.WriteRune(r)
		}
	}
	return b.String()
}
