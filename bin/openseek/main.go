package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v5"
	chromem "github.com/philippgille/chromem-go"
	"github.com/spf13/cobra"

	"github.com/openseek/openseek/engine"
	"github.com/openseek/openseek/plugin/sourceindex"
	"github.com/openseek/openseek/plugin/websearch"
	"github.com/openseek/openseek/server/profile"
	apiv1 "github.com/openseek/openseek/server/router/api/v1"
	"github.com/openseek/openseek/store"
	"github.com/openseek/openseek/store/db"
)

var rootCmd = &cobra.Command{
	Use:   "openseek",
	Short: "Search-augmented conversational assistant server",
	RunE: func(_ *cobra.Command, _ []string) error {
		return run()
	},
}

func run() error {
	p, err := profile.Load()
	if err != nil {
		return fmt.Errorf("load profile: %w", err)
	}
	if err := os.MkdirAll(p.DataDir, 0o755); err != nil {
		return fmt.Errorf("create data dir: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	driver, err := db.NewDriver(p)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	st := store.New(driver)
	defer st.Close()
	if err := st.Migrate(ctx); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}

	searcher := websearch.NewClient(p.SearchMaxCrawl, time.Duration(p.SearchCrawlTimeoutSec)*time.Second)

	var index *sourceindex.Index
	if p.EmbeddingModel != "" && p.EmbeddingAPIKey != "" {
		embedFn := chromem.NewEmbeddingFuncOpenAICompat(p.EmbeddingURL, p.EmbeddingAPIKey, p.EmbeddingModel, nil)
		index, err = sourceindex.New(p.DataDir, embedFn)
		if err != nil {
			slog.Warn("source index unavailable", "err", err)
			index = nil
		}
	}

	strategy, err := engine.StrategyFromConfig(p.Strategy)
	if err != nil {
		return err
	}
	client := engine.NewOpenRouterClient(p.OpenRouterAPIKey, p.OpenRouterURL)
	eng := engine.New(client, st, searcher, index, p.Models, strategy)

	e := echo.New()
	apiv1.NewAPIV1Service(p, st, eng, searcher).Register(e)

	var shutdownErr error
	sc := echo.StartConfig{
		Address:         p.Addr,
		GracefulTimeout: 10 * time.Second,
		OnShutdownError: func(err error) { shutdownErr = err },
	}
	slog.Info("server listening", "addr", p.Addr, "driver", p.Driver, "mode", p.Strategy.Mode)
	if err := sc.Start(ctx, e); err != nil && err != http.ErrServerClosed {
		slog.Error("server stopped", "err", err)
		return err
	}
	slog.Info("shutting down")
	return shutdownErr
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
