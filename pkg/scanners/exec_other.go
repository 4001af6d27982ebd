//go:build !unix

package scanners

import "os/exec"

// setProcessGroup is a no-op here; exec.CommandContext kills the direct child on cancel.
func setProcessGroup(cmd *exec.Cmd) {}
