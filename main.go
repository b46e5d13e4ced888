package main

import (
	"context"
	"os"

	"github.com/mattn/go-isatty"
	"github.com/sirupsen/logrus"

	"cfront/pkg/driver"
)

func newLogger() *logrus.Logger {
	log := logrus.New()
	log.SetOutput(os.Stderr)
	fd := os.Stderr.Fd()
	colors := isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
	log.SetFormatter(&logrus.TextFormatter{
		DisableTimestamp: true,
		ForceColors:      colors,
		DisableColors:    !colors,
	})
	return log
}

func main() {
	d := &driver.Driver{
		Stdin:  os.Stdin,
		Stdout: os.Stdout,
		Stderr: os.Stderr,
		Runner: driver.ExecRunner{},
		Log:    newLogger(),
	}
	if path := os.Getenv("CFRONT_CONFIG"); path != "" {
		cfg := driver.DefaultConfig()
		if err := cfg.LoadFile(path); err != nil {
			d.Log.WithError(err).Error("loading CFRONT_CONFIG")
			os.Exit(1)
		}
		d.Config = cfg
	}
	os.Exit(d.Run(context.Background(), os.Args[1:]))
}
