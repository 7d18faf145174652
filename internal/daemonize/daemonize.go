package daemonize

import (
	"fmt"
	"os"

	"golang.org/x/sys/unix"

	"warden/internal/identity"
	"warden/internal/paths"
	"warden/internal/pidfile"
)

// Role describes which branch of the detach ladder the current process took.
type Role int

const (
	// RoleParent is the original caller after launching the ladder. It
	// must do no further daemon work.
	RoleParent Role = iota
	// RoleSessionLeader is the intermediate process. It exits immediately
	// after spawning the final stage.
	RoleSessionLeader
	// RoleDaemon is the fully detached body.
	RoleDaemon
)

// Outcome reports what Detach did in this process. Acquired is only
// meaningful for RoleDaemon: false means another instance won the pid file
// race and this process must exit without side effects.
type Outcome struct {
	Role     Role
	Acquired bool
}

// Daemonizer drives one process through its stage of the detach ladder.
type Daemonizer struct {
	Paths    paths.Paths
	Identity identity.Identity
	Umask    int
	Launcher Launcher

	// BindLogs runs in the detached stage after the identity drop and
	// before the pid file attempt, so log sinks exist by the time the
	// daemon has anything to say. Optional.
	BindLogs func() error
}

// Detach advances the ladder by exactly one stage.
//
// In the caller it launches the session leader and returns RoleParent; in
// the session leader it launches the final stage and returns
// RoleSessionLeader; in the final stage it completes detachment and reports
// whether this process now owns the pid file. Callers decide process exit --
// this package never calls os.Exit.
func (d *Daemonizer) Detach() (Outcome, error) {
	switch CurrentStage() {
	case StageCaller:
		if err := d.Launcher.Launch(StageSession, true); err != nil {
			return Outcome{}, err
		}
		return Outcome{Role: RoleParent}, nil
	case StageSession:
		if err := d.Launcher.Launch(StageDetached, false); err != nil {
			return Outcome{}, err
		}
		return Outcome{Role: RoleSessionLeader}, nil
	default:
		if err := d.settle(); err != nil {
			return Outcome{}, err
		}
		acquired, err := pidfile.Acquire(d.Paths.PidFile)
		if err != nil {
			return Outcome{}, err
		}
		return Outcome{Role: RoleDaemon, Acquired: acquired}, nil
	}
}

// settle finishes detachment inside the final stage: drop group before user
// (the gid change needs the privilege the uid change gives up), move into
// the var directory, and install the file-creation mask. Descriptor hygiene
// is inherent to the re-exec ladder -- every stage starts with a fresh
// descriptor table whose standard streams point at the null device -- so
// there is no inherited-descriptor sweep to run.
func (d *Daemonizer) settle() error {
	if gid := d.Identity.GID; os.Getgid() != gid {
		if err := unix.Setgid(gid); err != nil {
			return fmt.Errorf("setgid %d: %w", gid, err)
		}
	}
	if uid := d.Identity.UID; os.Getuid() != uid {
		if err := unix.Setuid(uid); err != nil {
			return fmt.Errorf("setuid %d: %w", uid, err)
		}
	}
	if err := os.Chdir(d.Paths.VarDir); err != nil {
		return fmt.Errorf("chdir %s: %w", d.Paths.VarDir, err)
	}
	unix.Umask(d.Umask)

	if d.BindLogs != nil {
		if err := d.BindLogs(); err != nil {
			return fmt.Errorf("bind logs: %w", err)
		}
	}
	return nil
}
