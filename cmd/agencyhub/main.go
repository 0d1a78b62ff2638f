// agencyhub serves the agency hub HTTP API.
//
// Configuration is read from the YAML file given with --config (or
// AGENCYHUB_CONFIG) and AGENCYHUB_* environment variables. Flags override
// both.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/pflag"

	"github.com/hupe1980/agencyhub"
	"github.com/hupe1980/agencyhub/config"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	var (
		configPath string
		addr       string
		provider   string
		storage    string
		logLevel   string
		validate   bool
	)

	flagSet := pflag.NewFlagSet("agencyhub", pflag.ContinueOnError)
	flagSet.StringVarP(&configPath, "config", "c", os.Getenv("AGENCYHUB_CONFIG"), "path to the YAML configuration file")
	flagSet.StringVar(&addr, "addr", "", "listen address (overrides server.addr)")
	flagSet.StringVar(&provider, "provider", "", "LLM provider: openai, anthropic, bedrock or mock (overrides llm.provider)")
	flagSet.StringVar(&storage, "storage", "", "storage driver: memory or sqlite (overrides storage.driver)")
	flagSet.StringVar(&logLevel, "log-level", "", "log level: debug, info, warn or error (overrides logger.level)")
	flagSet.BoolVar(&validate, "validate", false, "validate the configuration and exit")
	flagSet.BoolP("help", "h", false, "show help")

	if err := flagSet.Parse(os.Args[1:]); err != nil {
		if err == pflag.ErrHelp {
			printHelp(flagSet)
			return nil
		}
		return err
	}
	if help, _ := flagSet.GetBool("help"); help {
		printHelp(flagSet)
		return nil
	}
	if args := flagSet.Args(); len(args) > 0 {
		return fmt.Errorf("unexpected argument: %s", args[0])
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	overrides := map[*string]string{
		&cfg.Server.Addr:    addr,
		&cfg.LLM.Provider:   provider,
		&cfg.Storage.Driver: storage,
		&cfg.Logger.Level:   logLevel,
	}
	for dst, v := range overrides {
		if v != "" {
			*dst = v
		}
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	if validate {
		fmt.Fprintln(os.Stdout, "configuration ok")
		return nil
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	hub, err := agencyhub.New(ctx, cfg)
	if err != nil {
		return err
	}
	return hub.Run(ctx)
}

func printHelp(flagSet *pflag.FlagSet) {
	fmt.Fprintf(os.Stderr, "Usage: agencyhub [flags]\n\nServe the agency hub HTTP API.\n\nFlags:\n")
	flagSet.PrintDefaults()
}
