package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/Constyk20/zika-malaria-backend/internal/config"
	"github.com/Constyk20/zika-malaria-backend/internal/scoring"
	"github.com/Constyk20/zika-malaria-backend/internal/server"
	"github.com/Constyk20/zika-malaria-backend/internal/store"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	gin.SetMode(cfg.GinMode)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	db, err := store.Connect(ctx, cfg.MongoURI, cfg.MongoDB)
	cancel()
	if err != nil {
		log.Fatalf("failed to connect to MongoDB: %v", err)
	}
	log.Printf("connected to MongoDB database %q", cfg.MongoDB)

	remote := scoring.NewRemoteClient(cfg.ScoringURL, cfg.ScoringTimeout)
	orchestrator := scoring.NewOrchestrator(scoring.Config{
		MaxAttempts:    cfg.MaxAttempts,
		RetryDelay:     cfg.RetryDelay,
		RateLimitDelay: cfg.RateLimitDelay,
		AgeMin:         cfg.AgeMin,
		AgeMax:         cfg.AgeMax,
	}, remote, db)

	api := server.New(cfg, orchestrator, db)
	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           api.Router(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		// Long enough for a prediction that burns its whole retry budget.
		WriteTimeout: 2 * time.Minute,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Printf("triage api listening on :%s (scoring service %s)", cfg.Port, cfg.ScoringURL)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("http server failed: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("forced shutdown: %v", err)
	}
	if err := db.Close(shutdownCtx); err != nil {
		log.Printf("failed to disconnect from MongoDB: %v", err)
	}
	log.Println("stopped")
}
