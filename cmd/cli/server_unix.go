//go:build !windows

package main

import (
	"os/exec"
	"syscall"
)

// setSysProcAttr puts the auto-started server in its own process group so Ctrl-C in the CLI does not reach it
func setSysProcAttr(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
}
