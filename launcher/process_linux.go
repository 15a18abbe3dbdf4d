package launcher

import (
	"os/exec"
	"syscall"

	"golang.org/x/sys/unix"
)

// configureProcess makes the kernel kill the worker if the launcher dies.
func configureProcess(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{
		Pdeathsig: unix.SIGKILL,
	}
}
