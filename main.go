package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/localflix/localflix/internal"
	"github.com/localflix/localflix/pkg/logger"
)

var log = logger.Get("Main")

// main is the entry point to the program. From here we load the user's
// Localflix configuration (YAML file overlaid with the environment) and run
// the server until an interrupt arrives or a service crashes.
func main() {
	configPath := flag.String("config", "localflix.yaml", "path to the YAML configuration file")
	flag.Parse()

	_ = godotenv.Load(".env")

	config := internal.LocalflixConfig{}
	if err := config.LoadFromFile(*configPath); err != nil {
		log.Emit(logger.FATAL, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	level, err := logger.ParseLogLevel(config.LogLevel)
	if err != nil {
		log.Emit(logger.FATAL, "Failed to apply configuration: %v\n", err)
		os.Exit(1)
	}
	logger.SetMinLoggingLevel(level)

	ctx, ctxCancel := context.WithCancel(context.Background())
	exitChannel := make(chan os.Signal, 1)
	signal.Notify(exitChannel, os.Interrupt, syscall.SIGTERM)
	go func() {
		sig := <-exitChannel
		log.Emit(logger.STOP, "Interrupt (%s) detected!\n", sig)
		ctxCancel()
	}()

	if err := internal.New(config).Run(ctx); err != nil {
		log.Emit(logger.FATAL, "Localflix exited with error: %v\n", err)
		os.Exit(1)
	}

	log.Emit(logger.STOP, "Localflix shutdown complete\n")
}
