package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	forgecmd "github.com/louisbranch/espritforge/internal/cmd/forge"
	"github.com/louisbranch/espritforge/internal/platform/config"
)

func main() {
	cfg, err := forgecmd.ParseConfig(flag.CommandLine, os.Args[1:])
	if err != nil {
		config.Exitf("forge", "parse flags: %v", err)
	}
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := forgecmd.Run(ctx, cfg); err != nil {
		stop()
		config.Exitf("forge", "%v", err)
	}
}
