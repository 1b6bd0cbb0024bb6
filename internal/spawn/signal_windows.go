//go:build windows

package spawn

import (
	"os"
	"os/exec"
	"syscall"
)

const createNewProcessGroup = 0x00000200

func configureSysProcAttr(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{CreationFlags: createNewProcessGroup}
}

// Windows has no graceful group signal for console-less children; both paths
// terminate the process directly.
func terminateGroup(pid int) error { return killByPID(pid) }
func killGroup(pid int) error      { return killByPID(pid) }

func killByPID(pid int) error {
	if pid <= 0 {
		return nil
	}
	p, err := os.FindProcess(pid)
	if err != nil {
		return nil
	}
	return p.Kill()
}

func exitedBySignal(_ *exec.ExitError) bool { return false }
