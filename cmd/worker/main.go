package main

import (
	"context"
	"os/signal"
	"sync"
	"syscall"

	"github.com/wb-go/wbf/dbpg"
	"github.com/wb-go/wbf/retry"
	"github.com/wb-go/wbf/zlog"

	"github.com/openconv/convertor/internal/config"
	"github.com/openconv/convertor/internal/converter"
	"github.com/openconv/convertor/internal/infra/kafka/consumer"
	taskmsg "github.com/openconv/convertor/internal/kafka/handlers/task"
	taskrepo "github.com/openconv/convertor/internal/repository/task"
	"github.com/openconv/convertor/internal/storage/file"
	"github.com/openconv/convertor/internal/worker"
	"github.com/openconv/convertor/internal/worker/pool"
)

func main() {
	// Context & signals: used for graceful shutdown on system interrupts.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Initialize logger and load application configuration.
	zlog.Init()
	cfg := config.MustLoad("./config/config.yml")

	// Connect to PostgreSQL (master and slaves).
	opts := &dbpg.Options{
		MaxOpenConns:    cfg.Database.MaxOpenConns,
		MaxIdleConns:    cfg.Database.MaxIdleConns,
		ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
	}

	// Collect slave DSNs for replica connections.
	slaveDSNs := make([]string, 0, len(cfg.Database.Slaves))
	for _, s := range cfg.Database.Slaves {
		slaveDSNs = append(slaveDSNs, s.DSN())
	}

	db, err := dbpg.New(cfg.Database.Master.DSN(), slaveDSNs, opts)
	if err != nil {
		zlog.Logger.Fatal().Err(err).Msg("failed to connect to database")
	}

	// Retry strategy for Kafka fetch/commit.
	strategy := retry.Strategy{
		Attempts: cfg.Retry.Attempts,
		Delay:    cfg.Retry.Delay,
		Backoff:  cfg.Retry.Backoff,
	}

	// Initialize blob storage (MinIO).
	storage, err := file.NewStorage(ctx, cfg.Storage.Endpoint, cfg.Storage.AccessKey, cfg.Storage.SecretKey, cfg.Storage.ImageBucket, cfg.Storage.UseSSL)
	if err != nil {
		zlog.Logger.Fatal().Err(err).Msg("failed to connect to storage")
	}

	// Initialize repository, converter, task handler and execution pool.
	repo := taskrepo.NewRepository(db, cfg.Server.MaxPageSize)
	conv := converter.New(cfg.Converter.QemuImgPath)
	handler := worker.NewHandler(repo, storage, conv, cfg.Worker.WorkDir)
	execPool := pool.New(cfg.Worker.PoolSize, handler)

	// Kafka message handler for launch commands.
	launchHandler := taskmsg.NewLaunchHandler(execPool)

	// Kafka consumer for the worker group's control topic.
	c := consumer.New(&cfg.Kafka, strategy, launchHandler)

	// Start Kafka consumer in a separate goroutine.
	var wg sync.WaitGroup
	wg.Add(1)
	go c.Consume(ctx, &wg)

	// Block until context is canceled (SIGINT/SIGTERM).
	<-ctx.Done()
	zlog.Logger.Info().Msg("context done")

	// Wait for Kafka consumer goroutine to finish, then drain the pool.
	wg.Wait()
	execPool.Wait()

	// Close Kafka consumer client.
	if err := c.Client.Close(); err != nil {
		zlog.Logger.Error().Err(err).Msg("failed to close kafka consumer client")
	}

	// Close master and slave databases.
	if err := db.Master.Close(); err != nil {
		zlog.Logger.Printf("failed to close master DB: %v", err)
	}
	for i, slave := range db.Slaves {
		if err := slave.Close(); err != nil {
			zlog.Logger.Printf("failed to close slave DB %d: %v", i, err)
		}
	}
}
