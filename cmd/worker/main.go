// The worker binary runs the queue-driven pipeline stages: ingestion fan-out,
// LLM classification and report materialization.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/alejandrogutier/claro-data-ai-sub003/internal/classification"
	"github.com/alejandrogutier/claro-data-ai-sub003/internal/config"
	"github.com/alejandrogutier/claro-data-ai-sub003/internal/ingestion"
	"github.com/alejandrogutier/claro-data-ai-sub003/internal/pkg/logger"
	"github.com/alejandrogutier/claro-data-ai-sub003/internal/pkg/secrets"
	"github.com/alejandrogutier/claro-data-ai-sub003/internal/providers"
	"github.com/alejandrogutier/claro-data-ai-sub003/internal/queue"
	"github.com/alejandrogutier/claro-data-ai-sub003/internal/reports"
	"github.com/alejandrogutier/claro-data-ai-sub003/internal/store"
	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
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

	ingestWorker := ingestion.NewWorker(st,
		providers.BuildRegistry(cfg.Providers),
		ingestion.NewSnapshotWriter(s3Client, cfg.RawBucketName),
		cfg.DefaultQueryTerms)

	classifyWorker := classification.NewWorker(st,
		classification.NewInvoker(bedrockruntime.NewFromConfig(awsCfg), cfg.BedrockModelID))

	// Report mail can go out through a dedicated SES account.
	sesCfg := awsCfg
	if cfg.SESAccessKey != "" && cfg.SESSecretKey != "" {
		sesCfg, err = awsconfig.LoadDefaultConfig(ctx,
			awsconfig.WithRegion(cfg.AWSRegion),
			awsconfig.WithCredentialsProvider(
				credentials.NewStaticCredentialsProvider(cfg.SESAccessKey, cfg.SESSecretKey, "")))
		if err != nil {
			logger.Error("ses_config_failed", "error", err.Error())
			os.Exit(1)
		}
	}

	reportWorker := reports.NewWorker(st,
		queue.NewPublisher(sqsClient, cfg.ExportQueueURL),
		reports.NewMailer(sesv2.NewFromConfig(sesCfg), cfg.ReportEmailSender),
		cfg.ReportConfidenceThreshold)

	consumers := []*queue.Consumer{
		queue.NewConsumer(sqsClient, cfg.IngestionQueueURL, "ingestion", 2, ingestWorker.Handle),
		queue.NewConsumer(sqsClient, cfg.ClassificationQueueURL, "classification", 4, classifyWorker.Handle),
		queue.NewConsumer(sqsClient, cfg.ReportQueueURL, "reports", 2, reportWorker.Handle),
	}
	for _, c := range consumers {
		c.Start(ctx)
	}
	logger.Info("worker_started", "consumers", len(consumers))

	<-ctx.Done()
	for _, c := range consumers {
		c.Stop()
	}
	logger.Info("worker_stopped")
}
