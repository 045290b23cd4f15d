//go:build !unix

package runner

import (
	"os/exec"
)

func configureProcAttr(*exec.Cmd) {}

// Without process groups there is no graceful signal to send; both steps kill
// the process itself.
func interruptProcess(cmd *exec.Cmd) error {
	return cmd.Process.Kill()
}

func killProcess(cmd *exec.Cmd) error {
	return cmd.Process.Kill()
}
