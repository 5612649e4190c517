package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/solatis/experiences/internal/core/server"
)

const Version = "0.1.0"

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP and gRPC decision APIs",
	RunE:  runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().String("host", "0.0.0.0", "listen host")
	serveCmd.Flags().Int("http-port", 8080, "HTTP API port")
	serveCmd.Flags().Int("grpc-port", 50051, "gRPC API port")
	serveCmd.Flags().String("experiences", "", "experiences file (YAML)")
	serveCmd.Flags().Bool("debug", false, "log every decision at debug level")
	serveCmd.Flags().Bool("consent-required", false, "block evaluations until consent is granted")
	serveCmd.Flags().Bool("event-log", false, "persist lifecycle events (SQL storage only)")
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	flags := cmd.Flags()
	if flags.Changed("host") {
		cfg.Server.Host, _ = flags.GetString("host")
	}
	if flags.Changed("http-port") {
		cfg.Server.HTTPPort, _ = flags.GetInt("http-port")
	}
	if flags.Changed("grpc-port") {
		cfg.Server.GRPCPort, _ = flags.GetInt("grpc-port")
	}
	if flags.Changed("experiences") {
		cfg.Engine.ExperiencesFile, _ = flags.GetString("experiences")
	}
	if flags.Changed("debug") {
		cfg.Engine.Debug, _ = flags.GetBool("debug")
	}
	if flags.Changed("consent-required") {
		cfg.Engine.ConsentRequired, _ = flags.GetBool("consent-required")
	}
	if flags.Changed("event-log") {
		cfg.Engine.EventLog, _ = flags.GetBool("event-log")
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	rt, err := openRuntime(cfg, true)
	if err != nil {
		return err
	}
	defer rt.Close()

	grpcServer, err := server.NewGRPCServer(&cfg.Server, rt.service, slog.Default())
	if err != nil {
		return fmt.Errorf("failed to create grpc server: %w", err)
	}
	httpServer, err := server.NewHTTPServer(&cfg.Server, rt.service, slog.Default())
	if err != nil {
		return fmt.Errorf("failed to create http server: %w", err)
	}

	slog.Info("starting experiences",
		"version", Version,
		"storage", cfg.Storage.Redacted(),
		"http_port", cfg.Server.HTTPPort,
		"grpc_port", cfg.Server.GRPCPort)

	errChan := make(chan error, 2)
	go func() {
		errChan <- grpcServer.Start(ctx)
	}()
	go func() {
		errChan <- httpServer.Start(ctx)
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	var serveErr error
	select {
	case serveErr = <-errChan:
		slog.Error("server stopped", "err", serveErr)
	case <-sigChan:
		slog.Info("shutting down gracefully")
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		slog.Warn("http shutdown failed", "err", err)
	}
	if err := grpcServer.Shutdown(shutdownCtx); err != nil {
		slog.Warn("grpc shutdown failed", "err", err)
	}
	return serveErr
}
