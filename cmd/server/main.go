// The server binary exposes the analyst HTTP surface: listings, incident and
// report operations, ingestion triggers and export retrieval.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/alejandrogutier/claro-data-ai-sub003/internal/api"
	"github.com/alejandrogutier/claro-data-ai-sub003/internal/auth"
	"github.com/alejandrogutier/claro-data-ai-sub003/internal/config"
	"github.com/alejandrogutier/claro-data-ai-sub003/internal/pkg/logger"
	"github.com/alejandrogutier/claro-data-ai-sub003/internal/pkg/secrets"
	"github.com/alejandrogutier/claro-data-ai-sub003/internal/queue"
	"github.com/alejandrogutier/claro-data-ai-sub003/internal/store"
	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/redis/go-redis/v9"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logger.Error("config_load_failed", "error", err.Error())
		os.Exit(1)
	}
	logger.SetLevel(logger.ParseLevel(cfg.LogLevel))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.AWSRegion))
	if err != nil {
		logger.Error("aws_config_failed", "error", err.Error())
		os.Exit(1)
	}

	smClient := secretsmanager.NewFromConfig(awsCfg)
	cache := secrets.New(func(ctx context.Context, name string) (string, error) {
		out, err := smClient.GetSecretValue(ctx, &secretsmanager.GetSecretValueInput{
			SecretId: aws.String(name),
		})
		if err != nil {
			return "", err
		}
		return aws.ToString(out.SecretString), nil
	})

	dsn, err := cfg.ResolveDSN(ctx, cache)
	if err != nil {
		logger.Error("db_config_failed", "error", err.Error())
		os.Exit(1)
	}
	db, err := store.Open(dsn)
	if err != nil {
		logger.Error("db_open_failed", "error", err.Error())
		os.Exit(1)
	}
	defer db.Close()
	st := store.New(db)

	sqsClient := sqs.NewFromConfig(awsCfg)
	s3Client := s3.NewFromConfig(awsCfg)

	var redisClient *redis.Client
	if cfg.RedisURL != "" {
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			logger.Error("redis_config_failed", "error", err.Error())
			os.Exit(1)
		}
		redisClient = redis.NewClient(opts)
		defer redisClient.Close()
	}

	presigner := api.NewPresigner(s3.NewPresignClient(s3Client),
		cfg.ExportBucketName, cfg.ExportSignedURLSeconds)
	handlers := api.NewHandlers(st,
		queue.NewPublisher(sqsClient, cfg.IngestionQueueURL),
		queue.NewPublisher(sqsClient, cfg.ReportQueueURL),
		queue.NewPublisher(sqsClient, cfg.ExportQueueURL),
		presigner)
	router := api.SetupRoutes(handlers, api.NewHealthChecker(db, redisClient),
		auth.NewVerifier(cfg.JWTSecret), nil)

	server := api.NewServer(fmt.Sprintf(":%d", cfg.ServerPort), router)
	errCh := make(chan error, 1)
	go func() { errCh <- server.Start() }()

	select {
	case err := <-errCh:
		if err != nil {
			logger.Error("server_failed", "error", err.Error())
			os.Exit(1)
		}
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("server_shutdown_failed", "error", err.Error())
		}
	}
}
