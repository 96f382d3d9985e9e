package main

import (
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"biasmeter/app/client/llm"
	"biasmeter/app/config"
	"biasmeter/app/server"
	"biasmeter/app/service/agent"
	"biasmeter/app/service/chart"
	"biasmeter/app/service/diagnosis"
	"biasmeter/app/service/session"
	"biasmeter/app/util/mylog"

	"github.com/samber/do"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

// version is set at build time via -ldflags.
var version = "dev"

var configPath string

var rootCmd = &cobra.Command{
	Use:   "biasmeter",
	Short: "Political bias diagnosis of short statements",
	Long:  "biasmeter asks a language model to score a short political statement\nfor leaning and intensity and plots the result.",
	CompletionOptions: cobra.CompletionOptions{
		HiddenDefaultCmd: true,
	},
	SilenceUsage: true,
	RunE:         runServe,
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the web interface",
	RunE:  runServe,
}

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Serve the diagnose tool over MCP stdio",
	RunE:  runMCP,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", config.DefaultPath, "path to the YAML config")
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(mcpCmd)
	rootCmd.Version = version
}

func main() {
	mylog.Preinit()

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func bootstrap() (*do.Injector, error) {
	di := do.New()

	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("config load failed: %w", err)
	}
	do.ProvideValue(di, cfg)

	if err = mylog.Init(cfg); err != nil {
		return nil, fmt.Errorf("logging init failed: %w", err)
	}

	do.Provide(di, llm.NewClient)
	do.Provide(di, session.NewStore)
	do.Provide(di, diagnosis.New)
	do.Provide(di, chart.New)
	do.Provide(di, server.New)
	do.Provide(di, agent.New)

	return di, nil
}

func runServe(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	di, err := bootstrap()
	if err != nil {
		return err
	}
	defer di.Shutdown()

	srv, err := do.Invoke[*server.Server](di)
	if err != nil {
		return fmt.Errorf("server init failed: %w", err)
	}
	store := do.MustInvoke[*session.Store](di)

	g, ctx := errgroup.WithContext(ctx)

	g.Go(srv.Listen)

	g.Go(func() error {
		store.RunCleanupLoop(ctx)
		return nil
	})

	g.Go(func() error {
		<-ctx.Done()
		slog.Info("Shutting down...")

		return srv.Shutdown()
	})

	slog.Info("Service started", "version", version)

	return g.Wait()
}

// runMCP leaves signal handling to the stdio server.
func runMCP(_ *cobra.Command, _ []string) error {
	di, err := bootstrap()
	if err != nil {
		return err
	}
	defer di.Shutdown()

	svc, err := do.Invoke[*agent.Service](di)
	if err != nil {
		return fmt.Errorf("mcp init failed: %w", err)
	}

	return svc.Serve()
}
