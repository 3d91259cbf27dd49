//go:build windows

package process

import (
	"os"
	"os/exec"
)

func configureSysProc(_ *exec.Cmd) {}

// interruptProcess kills the process; Windows has no SIGINT for child processes.
func interruptProcess(p *os.Process) error {
	return p.Kill()
}
