// Package system provides host integrations of the updater.
package system

import (
	"context"
	"fmt"
	"os/exec"

	"github.com/golang/glog"
)

// DefaultRebootCommand restarts the host into the new image.
var DefaultRebootCommand = []string{"systemctl", "reboot"}

// Rebooter implements ota.Restarter by running a command.
type Rebooter struct {
	Command []string
	// DryRun only logs the command.
	DryRun bool

	run func(ctx context.Context, name string, args ...string) ([]byte, error)
}

// NewRebooter creates a Rebooter running command, DefaultRebootCommand if empty.
func NewRebooter(command []string, dryRun bool) *Rebooter {
	if len(command) == 0 {
		command = DefaultRebootCommand
	}
	return &Rebooter{Command: command, DryRun: dryRun}
}

// Restart implements ota.Restarter.
func (r *Rebooter) Restart(ctx context.Context) error {
	if len(r.Command) == 0 {
		return fmt.Errorf("no restart command")
	}
	if r.DryRun {
		glog.Infof("dry-run: skip restart %q", r.Command)
		return nil
	}
	glog.Infof("restarting: %q", r.Command)
	run := r.run
	if run == nil {
		run = runCommand
	}
	if out, err := run(ctx, r.Command[0], r.Command[1:]...); err != nil {
		return fmt.Errorf("restart %q: %w: %s", r.Command, err, out)
	}
	return nil
}

func runCommand(ctx context.Context, name string, args ...string) ([]byte, error) {
	return exec.CommandContext(ctx, name, args...).CombinedOutput()
}
