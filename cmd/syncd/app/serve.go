package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/aaronkwan/synced-object/internal/api"
	"github.com/aaronkwan/synced-object/pkg/backend"
	"github.com/aaronkwan/synced-object/pkg/config"
	"github.com/aaronkwan/synced-object/pkg/registry"
)

const (
	defaultGracefulTimeout = 30 * time.Second
	serverReadTimeout      = 10 * time.Second
	serverWriteTimeout     = 15 * time.Second
	serverIdleTimeout      = 60 * time.Second
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the synced-object status server",
	Long: `Start the status server. Objects listed in the manifest (--manifest)
are registered at startup and persisted under the state directory
(--state-dir). The HTTP surface is read-only.`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().String("address", ":8080", "Address to listen on")
	serveCmd.Flags().String("manifest", "", "Path to the object manifest (YAML)")
	serveCmd.Flags().String("state-dir", "./state", "Directory for the file-backed store")

	for _, flag := range []string{"address", "manifest", "state-dir"} {
		if err := viper.BindPFlag(flag, serveCmd.Flags().Lookup(flag)); err != nil {
			panic(fmt.Sprintf("failed to bind %s flag: %v", flag, err))
		}
	}
}

func newLogger() (*zap.Logger, error) {
	if viper.GetBool("debug") {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}

func runServe(cmd *cobra.Command, _ []string) error {
	logger, err := newLogger()
	if err != nil {
		return fmt.Errorf("failed to build logger: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	stateDir := viper.GetString("state-dir")
	reg := registry.New(
		registry.WithStore(backend.NewFileStore(stateDir)),
		registry.WithLogger(logger),
	)

	if path := viper.GetString("manifest"); path != "" {
		manifest, err := config.Load(path)
		if err != nil {
			return err
		}
		if err := manifest.Apply(reg); err != nil {
			return err
		}
		logger.Info("object manifest applied",
			zap.String("path", path),
			zap.Int("objects", len(manifest.Objects)))
	}

	address := viper.GetString("address")
	server := &http.Server{
		Addr:         address,
		Handler:      api.NewServer(reg),
		ReadTimeout:  serverReadTimeout,
		WriteTimeout: serverWriteTimeout,
		IdleTimeout:  serverIdleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("status server listening", zap.String("address", address))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return fmt.Errorf("server error: %w", err)
	case sig := <-stop:
		logger.Info("shutting down", zap.String("signal", sig.String()))
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), defaultGracefulTimeout)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.Warn("http shutdown failed", zap.Error(err))
	}
	if err := reg.Shutdown(ctx); err != nil {
		// A veto from an UnloadBlock object: surface it, then force stop.
		logger.Warn("registry shutdown vetoed", zap.Error(err))
		return err
	}
	return nil
}
