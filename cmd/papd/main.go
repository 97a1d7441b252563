package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/twizmwazin/pap/pkg/common/config"
	"github.com/twizmwazin/pap/pkg/common/metrics"
	"github.com/twizmwazin/pap/pkg/executors"
	"github.com/twizmwazin/pap/pkg/executors/wasmexec"
	"github.com/twizmwazin/pap/pkg/registry"
	"github.com/twizmwazin/pap/pkg/server"
	"github.com/twizmwazin/pap/pkg/store"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	cfgFile string
	logger  *zap.Logger
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "papd",
	Short: "Program Analysis Pipeline daemon",
	Long: `papd accepts pipeline submissions, persists their state, and
drives registered step executors through each job's steps in order.`,
	RunE: run,
}

func init() {
	cobra.OnInitialize(initConfig)
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: papd.yaml in /etc/pap/, $HOME/.pap/, or .)")
}

func initConfig() {
	var err error
	logger, err = zap.NewProduction()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
}

func run(cmd *cobra.Command, args []string) error {
	defer logger.Sync()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cfg, err := config.LoadDaemonConfig(cfgFile)
	if err != nil {
		logger.Fatal("failed to load configuration", zap.Error(err))
	}

	logger.Info("starting papd",
		zap.String("bind_addr", cfg.BindAddr),
		zap.String("database_dsn", cfg.DatabaseDSN),
	)

	db, err := store.NewSQLiteStore(ctx, cfg.DatabaseDSN)
	if err != nil {
		logger.Fatal("failed to open store", zap.Error(err))
	}
	defer db.Close()

	reg := registry.New(logger)
	reg.Register(executors.HelloExecutor{})

	wasmProbe, err := wasmexec.New(logger)
	if err != nil {
		logger.Fatal("failed to initialize wasm_probe executor", zap.Error(err))
	}
	defer wasmProbe.Close()
	reg.Register(wasmProbe)

	collector := metrics.NewCollector("papd")

	srv := server.New(db, reg, collector, logger, cfg.BindAddr)

	serveErr := make(chan error, 1)
	go func() {
		serveErr <- srv.Run(ctx)
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-sigCh:
		logger.Info("received shutdown signal, stopping papd...")
		cancel()
		if err := <-serveErr; err != nil {
			logger.Error("error during shutdown", zap.Error(err))
			return err
		}
	case err := <-serveErr:
		if err != nil {
			logger.Error("server exited with error", zap.Error(err))
			return err
		}
	}

	logger.Info("papd stopped successfully")
	return nil
}
