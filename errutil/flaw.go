package errutil

import (
	"errors"
	"os/exec"

	"github.com/xeptore/flaw/v8"
)

func IsFlaw(err error) bool {
	if flawErr := new(flaw.Flaw); errors.As(err, &flawErr) {
		return true
	}
	return false
}

// CmdFlawPayload describes a subprocess invocation. stderr may be empty.
func CmdFlawPayload(cmd *exec.Cmd, stderr string) flaw.P {
	out := flaw.P{
		"cmd":    cmd.String(),
		"stderr": stderr,
	}
	if state := cmd.ProcessState; nil != state {
		out["exit_code"] = state.ExitCode()
		out["pid"] = state.Pid()
	}
	return out
}
