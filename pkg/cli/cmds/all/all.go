// Package all registers all shell commands.
package all

import (
	// register commands
	_ "github.com/robotalks/robofw/pkg/cli/cmds/ota"
)
