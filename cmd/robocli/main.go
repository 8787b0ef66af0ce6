package main

import (
	"github.com/robotalks/robofw/pkg/cli/sh"
	env "github.com/robotalks/robofw/pkg/l1/env/connector"

	_ "github.com/robotalks/robofw/pkg/cli/cmds/all"
)

//go-build: CGO_ENABLED=0

func init() {
	if conf := env.Default(); conf.Ref.Type == "" {
		conf.Ref.Type = "robofw"
	}
	env.SetupFlags()
}

func main() {
	sh.Main()
}
