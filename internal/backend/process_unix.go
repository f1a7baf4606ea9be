//go:build unix

package backend

import (
	"errors"
	"os/exec"
	"syscall"
)

// setupProcessGroup puts the backend in its own process group so a timeout
// reaches the tools it spawned as well.
func setupProcessGroup(cmd *exec.Cmd) {
	if cmd.SysProcAttr == nil {
		cmd.SysProcAttr = &syscall.SysProcAttr{}
	}
	cmd.SysProcAttr.Setpgid = true
}

// killProcessGroup sends SIGTERM to the whole group. Stragglers are killed by
// exec once WaitDelay expires.
func killProcessGroup(cmd *exec.Cmd) error {
	if cmd.Process == nil {
		return nil
	}
	err := syscall.Kill(-cmd.Process.Pid, syscall.SIGTERM)
	if errors.Is(err, syscall.ESRCH) {
		return nil
	}
	return err
}
