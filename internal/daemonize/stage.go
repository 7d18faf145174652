package daemonize

import (
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"syscall"
)

// StageEnv carries the detach ladder position between the re-exec'd
// processes. Absent or unparsable means the original calling process.
const StageEnv = "WARDEN_DETACH_STAGE"

// Stage identifies a process's position in the detach ladder.
type Stage int

const (
	// StageCaller is the original foreground process.
	StageCaller Stage = iota
	// StageSession is the intermediate session leader. It exists only to
	// sever the controlling terminal and spawn the final stage.
	StageSession
	// StageDetached is the daemon body: no controlling terminal and no
	// way to reacquire one.
	StageDetached
)

// CurrentStage reads the ladder position from the environment.
func CurrentStage() Stage {
	value, ok := os.LookupEnv(StageEnv)
	if !ok {
		return StageCaller
	}
	n, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil || n < int(StageCaller) || n > int(StageDetached) {
		return StageCaller
	}
	return Stage(n)
}

// Launcher spawns the next stage of the detach ladder. It is the only
// process-creation primitive in the package.
type Launcher interface {
	Launch(next Stage, setsid bool) error
}

// ExecLauncher re-executes the current binary with the stage variable
// advanced. Standard streams are parked on the null device: the previous
// stage's descriptors must not leak into the daemon, and the daemon's real
// output surface is the log sinks bound later.
type ExecLauncher struct {
	Executable string
	Args       []string
}

// Launch starts the next stage and releases it immediately; the ladder
// never waits on its children.
func (l ExecLauncher) Launch(next Stage, setsid bool) error {
	if strings.TrimSpace(l.Executable) == "" {
		return fmt.Errorf("launch stage %d: executable path is empty", next)
	}

	devnull, err := os.OpenFile(os.DevNull, os.O_RDWR, 0)
	if err != nil {
		return fmt.Errorf("open %s: %w", os.DevNull, err)
	}
	defer devnull.Close()

	cmd := exec.Command(l.Executable, l.Args...)
	cmd.Stdin = devnull
	cmd.Stdout = devnull
	cmd.Stderr = devnull
	cmd.Env = append(environWithout(StageEnv), fmt.Sprintf("%s=%d", StageEnv, next))
	if setsid {
		cmd.SysProcAttr = &syscall.SysProcAttr{Setsid: true}
	}

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("launch stage %d: %w", next, err)
	}
	return cmd.Process.Release()
}

func environWithout(key string) []string {
	prefix := key + "="
	env := os.Environ()
	out := env[:0]
	for _, kv := range env {
		if !strings.HasPrefix(kv, prefix) {
			out = append(out, kv)
		}
	}
	return out
}
