package main

//go-build: CGO_ENABLED=0

import (
	"context"
	"flag"
	"log"

	"github.com/golang/glog"

	fx "github.com/robotalks/robofw/pkg/framework"
	"github.com/robotalks/robofw/pkg/l1"
	env "github.com/robotalks/robofw/pkg/l1/env/controller"
	"github.com/robotalks/robofw/pkg/updater"
)

func init() {
	env.SetControllerType("robofw", l1.ControllerMeta{Description: "Firmware Update Controller"})
	env.SetupFlags()
	updater.SetupFlags()
}

func main() {
	flag.Parse()
	defer glog.Flush()

	conf := updater.NewConfig()
	if conf.ConfigFile != "" {
		if err := conf.LoadFile(conf.ConfigFile); err != nil {
			log.Fatalln(err)
		}
	}

	ctx := context.Background()
	runner := fx.NewRunnerWith(ctx).HandleSignals()
	e := env.NewConfig().MustNewEnv()
	svc, err := conf.NewService(ctx, e.Registrar)
	if err != nil {
		log.Fatalln(err)
	}
	defer svc.Close()

	loop := fx.NewLoop().Add(e, svc)
	runner.Go(fx.NamedRun("loop", loop))
	if err := runner.Wait(); err != nil && err != context.Canceled {
		glog.Errorf("%v", err)
	}
}
