package main

import (
	"context"
	"errors"
	"log"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"comanda-system/internal/printworker"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	logger, err := zap.NewProduction()
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer logger.Sync()

	token := os.Getenv("PRINT_WORKER_TOKEN")
	if token == "" {
		logger.Fatal("PRINT_WORKER_TOKEN must be set")
	}

	hostname, _ := os.Hostname()
	cfg := printworker.Config{
		BaseURL:      getEnv("GATEWAY_URL", "http://localhost:8080"),
		Token:        token,
		WorkerID:     getEnv("WORKER_ID", hostname),
		PollInterval: time.Duration(getEnvInt("POLL_INTERVAL_SECONDS", 2)) * time.Second,
		Limit:        getEnvInt("POLL_LIMIT", 10),
	}

	device := &printworker.FileDevice{Dir: getEnv("SPOOL_DIR", "/var/spool/comanda")}
	client := printworker.NewClient(cfg, device, logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger.Info("Print worker started",
		zap.String("gateway", cfg.BaseURL),
		zap.String("worker_id", cfg.WorkerID))

	if err := client.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Fatal("Worker stopped", zap.Error(err))
	}
	logger.Info("Print worker shut down")
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return defaultValue
}
