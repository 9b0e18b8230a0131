// Package main provides the GridGuard LEOP server's entry point and CLI.
package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/gridguard/leop/internal/config"
)

var configPath string

func main() {
	root := &cobra.Command{
		Use:           "leop",
		Short:         "GridGuard LEOP — low-latency energy optimization planner",
		Long:          "GridGuard LEOP answers `forecast <location> <region>` TCP requests with a deterministic energy-dispatch plan, computed from live weather and spot-price feeds.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&configPath, "config", "config.toml", "Configuration file path")

	root.AddCommand(serveCmd(), versionCmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the GridGuard LEOP server",
		RunE:  runServe,
	}
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the server version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Println("leop 0.1.0")
		},
	}
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	logger := log.New(os.Stdout, "[LEOP] ", log.LstdFlags)
	logger.Printf("starting GridGuard LEOP: %d worker thread(s) x %d client(s), queue capacity %d",
		cfg.Server.MaxThreads, cfg.Server.MaxClientsPerThread, cfg.Pipeline.QueueCapacity)

	srv, err := NewServer(cfg, logger)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Run(ctx) }()

	logger.Printf("server started, press Ctrl+C to stop")

	var runErr error
	select {
	case <-sigChan:
		logger.Printf("shutdown signal received, stopping server...")
		cancel()
		<-errCh
	case runErr = <-errCh:
		if runErr != nil {
			logger.Printf("server error: %v", runErr)
		}
	}

	srv.Stop()
	if runErr != nil {
		return runErr
	}
	logger.Printf("server stopped successfully")
	return nil
}
