//go:build !windows

package process

import (
	"os"
	"os/exec"
	"syscall"
)

func configureSysProc(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
}

// interruptProcess sends SIGINT so ffmpeg can flush and exit on its own.
func interruptProcess(p *os.Process) error {
	return p.Signal(syscall.SIGINT)
}
