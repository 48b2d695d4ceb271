package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/indigo-web/responder"
	"github.com/indigo-web/responder/config"
	"github.com/indigo-web/responder/internal/logging"
)

// logEnv overrides the default log level. The -log-level flag still wins over it
const logEnv = "RESPONDER_LOG"

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	cfg, err := configure(flag.NewFlagSet("responder", flag.ContinueOnError), args, os.Getenv)
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}

		fmt.Fprintln(os.Stderr, err)
		return 2
	}

	log, err := logging.New(cfg.Log)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 2
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	err = responder.New(cfg).
		Logger(log).
		Serve(ctx)
	if err != nil {
		log.WithError(err).Error("server failed")
		return 1
	}

	return 0
}

// configure builds the config in the following order: defaults, the config file,
// the environment and finally the explicitly set flags.
func configure(fs *flag.FlagSet, args []string, getenv func(string) string) (*config.Config, error) {
	var (
		host      = fs.String("host", config.DefaultHost, "address to bind to")
		port      = fs.Uint("port", config.DefaultPort, "port to listen on")
		htmlDir   = fs.String("html-dir", "", "directory with the html files. Embedded ones are used if empty")
		path      = fs.String("config", "", "path to the JSON config")
		sleep     = fs.Duration("sleep", config.DefaultSleep, "delay of the delayed routes")
		logLevel  = fs.String("log-level", "info", "log level: trace, debug, info, warn, error")
		logFormat = fs.String("log-format", "text", "log format: text or json")
		logOutput = fs.String("log-output", "stderr", "stderr, stdout or a file path")
		blocking  = fs.Bool("blocking", false, "serve connections one at a time on the accepting goroutine")
	)

	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	if fs.NArg() > 0 {
		return nil, fmt.Errorf("unexpected arguments: %v", fs.Args())
	}

	cfg := config.Default()
	if *path != "" {
		var err error
		if cfg, err = config.Load(*path); err != nil {
			return nil, err
		}
	}

	if level := getenv(logEnv); level != "" {
		cfg.Log.Level = level
	}

	var err error
	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "host":
			cfg.NET.Host = *host
		case "port":
			if *port > 65535 {
				err = fmt.Errorf("port out of range: %d", *port)
				return
			}

			cfg.NET.Port = uint16(*port)
		case "html-dir":
			cfg.Content.Dir = *htmlDir
		case "sleep":
			if *sleep < 0 {
				err = fmt.Errorf("negative sleep: %s", *sleep)
				return
			}

			cfg.Routes.SetDelay(*sleep)
		case "log-level":
			cfg.Log.Level = *logLevel
		case "log-format":
			cfg.Log.Format = *logFormat
		case "log-output":
			cfg.Log.Output = *logOutput
		case "blocking":
			cfg.NET.Blocking = *blocking
		}
	})
	if err != nil {
		return nil, err
	}

	if err = cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}
