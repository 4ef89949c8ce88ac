package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/estmator/estmator/config"
	"github.com/estmator/estmator/internal/adminapi"
	"github.com/estmator/estmator/internal/app"
	"github.com/estmator/estmator/internal/webserver"
)

var cfgFile string

func main() {
	if err := rootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "estmator",
		Short:         "Moving estimate quoting service",
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file (default estmator.yml)")
	root.AddCommand(serveCmd(), initdbCmd(), calcCmd())
	return root
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.LoadConfig(cfgFile)
			application := app.NewApplication(cfg)
			application.Init(cfg)
			defer application.Release()

			webserver.Init(application)
			adminapi.Init()

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			g, ctx := errgroup.WithContext(ctx)
			g.Go(webserver.Start)
			g.Go(func() error {
				<-ctx.Done()
				zap.S().Info("shutting down web server")
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
				defer cancel()
				return webserver.Shutdown(shutdownCtx)
			})
			return g.Wait()
		},
	}
}

func initdbCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "initdb",
		Short: "Drop all tables and seed a fresh database",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.LoadConfig(cfgFile)
			application := app.NewApplication(cfg)
			application.Init(cfg)
			defer application.Release()
			application.InitDb()
			zap.S().Info("database initialized")
			return nil
		},
	}
}
