// cmd/slashid/main.go
package main

import (
	"errors"
	"flag"
	"fmt"
	"os"

	"slashid/pkg/config"
	"slashid/pkg/logger"
	"slashid/pkg/slashid"
)

func main() {
	cfg := config.Load()
	log := logger.New(cfg.Env)
	defer func() { _ = log.Sync() }()

	c := &cli{
		out: os.Stdout,
		log: log,
		connect: func() (*slashid.SDK, error) {
			return slashid.FromConfig(cfg, log, nil)
		},
	}
	reg := NewCommandRegistry(os.Stdout)
	c.register(reg)

	if err := reg.Execute(os.Args[1:]); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return
		}
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
