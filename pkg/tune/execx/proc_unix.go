//go:build unix

package execx

import (
	"os/exec"
	"syscall"

	"golang.org/x/sys/unix"
)

// setProcessGroup places the child in its own process group so the whole
// tree can be signalled at once.
func setProcessGroup(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
}

// killTree sends SIGKILL to the child's process group. Falls back to
// killing just the child when the group signal fails.
func killTree(cmd *exec.Cmd) {
	if cmd.Process == nil {
		return
	}
	pgid, err := unix.Getpgid(cmd.Process.Pid)
	if err == nil {
		if err := unix.Kill(-pgid, unix.SIGKILL); err == nil {
			return
		}
	}
	_ = cmd.Process.Kill()
}
