package main

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/Tyrowin/gochat-tcp/internal/logging"
	"github.com/Tyrowin/gochat-tcp/internal/server"
)

func main() {
	config := server.NewConfigFromEnv()

	host := flag.String("host", config.Host, "address to listen on")
	port := flag.Int("port", config.Port, "TCP port to listen on")
	flag.Parse()

	config.Host = *host
	config.Port = *port

	logger, closer, err := logging.New(logging.ConfigFromEnv())
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to set up logging: %s\n", err)
		os.Exit(1)
	}
	defer closer.Close()

	srv := server.NewServer(*config, logger)

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigs
		logger.Info().Str("signal", sig.String()).Msg("Shutting down")
		if err := srv.Close(); err != nil {
			logger.Error().Err(err).Msg("Error closing server")
		}
	}()

	fmt.Println("Starting GoChat server...")
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, server.ErrServerClosed) {
		logger.Error().Err(err).Msg("Server stopped")
		closer.Close()
		os.Exit(1)
	}
}
