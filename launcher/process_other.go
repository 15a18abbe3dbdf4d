//go:build !linux

package launcher

import "os/exec"

func configureProcess(_ *exec.Cmd) {}
