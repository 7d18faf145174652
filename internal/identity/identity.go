// Package identity resolves the user and group a managed daemon should run
// as, based on who launched it and who owns the daemon's base directory.
package identity

import (
	"fmt"
	"os"
	"os/user"
	"strconv"
	"sync"
	"syscall"
)

// Identity is the resolved owner for the daemon's working files and the
// privilege-drop target for the detached process.
type Identity struct {
	UID      int
	GID      int
	Username string
}

// Resolver computes an Identity exactly once per process. Resolution happens
// before any process creation so account problems surface synchronously to
// the invoking shell.
type Resolver struct {
	baseDir string

	once    sync.Once
	id      Identity
	effBase string
	err     error
}

// NewResolver prepares a resolver for the given base directory.
func NewResolver(baseDir string) *Resolver {
	return &Resolver{baseDir: baseDir}
}

// Resolve returns the daemon identity and the effective base directory.
//
// When the launching user is root, or already owns the base directory, the
// identity is the base directory's owner and the base directory is kept.
// Any other user falls back to their home directory and their own uid/gid,
// so unprivileged invocations stay inside territory they can write to.
// The result is cached; repeated calls return the first outcome.
func (r *Resolver) Resolve() (Identity, string, error) {
	r.once.Do(func() {
		r.id, r.effBase, r.err = resolve(r.baseDir)
	})
	return r.id, r.effBase, r.err
}

func resolve(baseDir string) (Identity, string, error) {
	info, err := os.Stat(baseDir)
	if err != nil {
		return Identity{}, "", fmt.Errorf("stat base directory: %w", err)
	}
	st, ok := info.Sys().(*syscall.Stat_t)
	if !ok {
		return Identity{}, "", fmt.Errorf("base directory %s: no unix ownership info", baseDir)
	}

	id := Identity{UID: int(st.Uid), GID: int(st.Gid)}
	effBase := baseDir

	uid := os.Getuid()
	if uid != 0 && uid != id.UID {
		home, homeErr := os.UserHomeDir()
		if homeErr != nil {
			return Identity{}, "", fmt.Errorf("resolve home directory: %w", homeErr)
		}
		id = Identity{UID: uid, GID: os.Getgid()}
		effBase = home
	}

	account, err := user.LookupId(strconv.Itoa(id.UID))
	if err != nil {
		return Identity{}, "", fmt.Errorf("resolve account for uid %d: %w", id.UID, err)
	}
	id.Username = account.Username

	return id, effBase, nil
}
