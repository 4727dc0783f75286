package utils

import (
	"os"
	"strconv"
	"time"
)

// PipelineConfig holds the tunables for the ingestion pipeline, all
// overridable from the environment.
type PipelineConfig struct {
	Addr         string
	Workers      int
	QueueSize    int
	CrawlTimeout time.Duration
	SweepEvery   time.Duration
}

func LoadPipelineConfig() PipelineConfig {
	return PipelineConfig{
		Addr:         envString("NOVELHUB_ADDR", ":8080"),
		Workers:      envInt("NOVELHUB_WORKERS", 4),
		QueueSize:    envInt("NOVELHUB_QUEUE_SIZE", 100),
		CrawlTimeout: time.Duration(envInt("NOVELHUB_CRAWL_TIMEOUT_MIN", 60)) * time.Minute,
		SweepEvery:   time.Duration(envInt("NOVELHUB_SWEEP_EVERY_MIN", 5)) * time.Minute,
	}
}

func envString(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envInt(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return def
	}
	return n
}
