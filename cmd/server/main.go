package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/philoflow/philoflow/internal/api"
	"github.com/philoflow/philoflow/internal/config"
	"github.com/philoflow/philoflow/internal/engine"
	"github.com/philoflow/philoflow/internal/library"
	"github.com/philoflow/philoflow/internal/queue"
)

func main() {
	cfg := config.Load()

	// Open the session library database.
	db, err := library.OpenSQLite(cfg.DBPath)
	if err != nil {
		log.Fatalf("open db: %v", err)
	}
	defer db.Close()

	lib, err := library.New(db)
	if err != nil {
		log.Fatalf("init library: %v", err)
	}

	// Select the remote ports.
	var analyzer engine.Analyzer
	var illustrator engine.Illustrator

	if cfg.UseStubs() {
		log.Println("no API keys set, using stub providers")
		analyzer = &engine.StubAnalyzer{}
		illustrator = &engine.StubIllustrator{}
	} else {
		switch cfg.TextProvider {
		case config.ProviderOpenAI:
			analyzer = engine.NewOpenAIAnalyzer(engine.ProviderConfig{
				APIKey:  cfg.TextAPIKey,
				Model:   cfg.TextModel,
				BaseURL: cfg.TextBaseURL,
			})
		default:
			analyzer = engine.NewGeminiAnalyzer(engine.ProviderConfig{
				APIKey: cfg.TextAPIKey,
				Model:  cfg.TextModel,
			}, cfg.HTTPTimeout)
		}

		switch cfg.ImageProvider {
		case config.ProviderOpenAI:
			illustrator = engine.NewOpenAIIllustrator(engine.ProviderConfig{
				APIKey:  cfg.ImageAPIKey,
				Model:   cfg.ImageModel,
				BaseURL: cfg.ImageBaseURL,
			})
		default:
			illustrator = engine.NewGeminiIllustrator(engine.ProviderConfig{
				APIKey: cfg.ImageAPIKey,
				Model:  cfg.ImageModel,
			}, cfg.ImageModelHD, cfg.HTTPTimeout)
		}
		log.Printf("providers: text=%s image=%s", cfg.TextProvider, cfg.ImageProvider)
	}

	// Assemble the pipeline core.
	store := queue.NewStore()
	monitor := queue.NewMonitor()
	retry := engine.RetryPolicy{
		BaseDelay:    cfg.RetryBaseDelay,
		MaxDelay:     cfg.RetryMaxDelay,
		PollInterval: cfg.PausePollInterval,
	}
	scheduler := queue.NewScheduler(store, analyzer, illustrator, monitor, retry, cfg.InterRequestDelay, cfg.PausePollInterval)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go monitor.Start(ctx)

	importer := engine.NewURLImporter(cfg.HTTPTimeout)

	srv := api.New(ctx, scheduler, store, monitor, lib, importer, cfg.CORSOrigin)
	httpServer := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: srv.Handler(),
	}

	// Graceful shutdown.
	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh
		log.Println("shutting down...")
		cancel()
		httpServer.Shutdown(context.Background())
	}()

	fmt.Printf("philoflow server listening on http://localhost:%s\n", cfg.Port)
	if err := httpServer.ListenAndServe(); err != http.ErrServerClosed {
		log.Fatalf("server error: %v", err)
	}
}
