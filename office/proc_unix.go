//go:build unix

package office

import (
	"os/exec"
	"syscall"
)

// killTree makes cancellation kill soffice with every process it spawned.
// soffice forks oosplash and soffice.bin, which a plain Kill would orphan.
func killTree(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	cmd.Cancel = func() error {
		return syscall.Kill(-cmd.Process.Pid, syscall.SIGKILL)
	}
}
