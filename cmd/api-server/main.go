package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"novelhub/internal/events"
	"novelhub/internal/ingest"
	"novelhub/internal/job"
	"novelhub/internal/normalize"
	"novelhub/internal/novel"
	"novelhub/internal/spider"
	"novelhub/pkg/database"
	"novelhub/pkg/utils"
)

func main() {
	dbCfg := database.DefaultConfig()
	db := database.MustOpen(dbCfg)
	defer db.Close()

	if err := database.Migrate(db); err != nil {
		log.Fatalf("db migrate failed: %v", err)
	}

	cfg := utils.LoadPipelineConfig()

	router := gin.Default()
	_ = router.SetTrustedProxies([]string{"127.0.0.1"})

	hub := events.NewHub()
	router.GET("/ws", events.WSHandler(hub))

	registry := spider.NewRegistry()
	registry.Register(spider.NewRoyalRoad(), "royalroad.com", "www.royalroad.com")
	registry.Register(spider.NewPixiv(), "pixiv.net", "www.pixiv.net")

	metrics := ingest.NewMetrics()
	router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(metrics.Registry, promhttp.HandlerOpts{})))

	jobRepo := job.NewRepo(db)
	novelRepo := novel.NewRepo(db)
	queue := ingest.NewQueue(cfg.QueueSize)

	dispatcher := &ingest.Dispatcher{
		Jobs:    jobRepo,
		Spiders: registry,
		Queue:   queue,
		Hub:     hub,
		Metrics: metrics,
	}

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "db": dbCfg.Path})
	})

	router.GET("/ready", func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()

		if err := db.PingContext(ctx); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"status":   "not_ready",
				"db_error": err.Error(),
			})
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"status":      "ready",
			"db":          "ok",
			"queue_depth": queue.Len(),
			"ws_clients":  hub.Stats().Clients,
		})
	})

	api := router.Group("/api")
	novel.NewHandler(novelRepo).RegisterRoutes(api)
	ingest.NewHandler(jobRepo, novelRepo, dispatcher).RegisterRoutes(api)

	workerCtx, stopWorkers := context.WithCancel(context.Background())
	var workers sync.WaitGroup
	for i := 0; i < cfg.Workers; i++ {
		w := &ingest.Worker{
			Jobs:         jobRepo,
			Novels:       novelRepo,
			Spiders:      registry,
			Normalizer:   normalize.New(),
			Queue:        queue,
			Hub:          hub,
			Metrics:      metrics,
			CrawlTimeout: cfg.CrawlTimeout,
		}
		workers.Add(1)
		go w.Run(workerCtx, &workers)
	}
	log.Printf("started %d ingestion worker(s)", cfg.Workers)

	// recover jobs stranded queued by a previous run, then keep sweeping
	dispatcher.StartSweeper(workerCtx, cfg.SweepEvery)

	httpSrv := &http.Server{
		Addr:    cfg.Addr,
		Handler: router,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Printf("HTTP API server listening on %s", cfg.Addr)
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		log.Printf("shutdown signal received: %s", sig)
	case err := <-errCh:
		log.Printf("server error: %v", err)
	}

	log.Println("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		log.Printf("http shutdown error: %v", err)
	}

	dispatcher.Stop()
	stopWorkers()
	workers.Wait()
	log.Println("stopped")
}
