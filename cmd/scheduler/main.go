// The scheduler binary drives the periodic passes: scheduled ingestion
// dispatch, classification backlog scan, incident evaluation, report schedule
// scan and social CSV ingestion. When Redis is configured each pass is
// single-flighted across replicas with a short-lived lock.
package main

import (
	"context"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/alejandrogutier/claro-data-ai-sub003/internal/classification"
	"github.com/alejandrogutier/claro-data-ai-sub003/internal/config"
	"github.com/alejandrogutier/claro-data-ai-sub003/internal/domain"
	"github.com/alejandrogutier/claro-data-ai-sub003/internal/incidents"
	"github.com/alejandrogutier/claro-data-ai-sub003/internal/pkg/distlock"
	"github.com/alejandrogutier/claro-data-ai-sub003/internal/pkg/logger"
	"github.com/alejandrogutier/claro-data-ai-sub003/internal/pkg/secrets"
	"github.com/alejandrogutier/claro-data-ai-sub003/internal/queue"
	"github.com/alejandrogutier/claro-data-ai-sub003/internal/reports"
	"github.com/alejandrogutier/claro-data-ai-sub003/internal/social"
	"github.com/alejandrogutier/claro-data-ai-sub003/internal/store"
	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const (
	ingestionInterval      = 30 * time.Minute
	classificationInterval = 5 * time.Minute
	incidentInterval       = 10 * time.Minute
	reportScanInterval     = time.Minute
	socialInterval         = 15 * time.Minute
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

	ingestionPub := queue.NewPublisher(sqsClient, cfg.IngestionQueueURL)
	classPub := queue.NewPublisher(sqsClient, cfg.ClassificationQueueURL)
	reportPub := queue.NewPublisher(sqsClient, cfg.ReportQueueURL)

	classScheduler := classification.NewScheduler(st, classPub,
		cfg.ClassificationPromptVersion, cfg.BedrockModelID,
		cfg.ClassificationWindow(), cfg.ClassificationSchedulerLimit)
	evaluator := incidents.NewEvaluator(st, cfg.ClassificationWindowDays,
		cfg.AlertCooldownMinutes, cfg.AlertSignalVersion)
	scanner := reports.NewScanner(st, reportPub, cfg.ReportDefaultTimezone)

	// A social volume spike feeds straight into the incident evaluator
	// rather than waiting for the next scheduled pass.
	spike := func(ctx context.Context, channel string, agg domain.SocialAggregate) {
		reqID := uuid.New().String()
		logger.Info("social_spike_evaluation", "channel", channel,
			"post_count", agg.PostCount, "request_id", reqID)
		if err := evaluator.Evaluate(ctx, domain.TriggerScheduled, reqID); err != nil {
			logger.Error("spike_evaluation_failed", "channel", channel, "error", err.Error())
		}
	}
	socialIngester := social.NewIngester(s3Client, st, cfg.SocialBucketName,
		cfg.SocialChannelList(), cfg.SocialSpikeThreshold, spike)

	var wg sync.WaitGroup
	run := func(name string, interval time.Duration, task func(ctx context.Context, requestID string) error) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			loop(ctx, redisClient, name, interval, task)
		}()
	}

	run("ingestion_dispatch", ingestionInterval, func(ctx context.Context, reqID string) error {
		now := time.Now().UTC()
		return ingestionPub.Publish(ctx, queue.IngestionDispatch{
			TriggerType: string(domain.TriggerScheduled),
			RequestID:   reqID,
			RequestedAt: &now,
		})
	})
	run("classification_scan", classificationInterval, func(ctx context.Context, reqID string) error {
		n, err := classScheduler.Schedule(ctx, string(domain.TriggerScheduled), reqID)
		if err == nil && n > 0 {
			logger.Info("classification_jobs_enqueued", "count", n)
		}
		return err
	})
	run("incident_evaluation", incidentInterval, func(ctx context.Context, reqID string) error {
		return evaluator.Evaluate(ctx, domain.TriggerScheduled, reqID)
	})
	run("report_schedule_scan", reportScanInterval, func(ctx context.Context, reqID string) error {
		n, err := scanner.Scan(ctx, reqID)
		if err == nil && n > 0 {
			logger.Info("report_runs_enqueued", "count", n)
		}
		return err
	})
	run("social_ingest", socialInterval, func(ctx context.Context, reqID string) error {
		socialIngester.IngestAll(ctx, reqID)
		return nil
	})

	logger.Info("scheduler_started")
	<-ctx.Done()
	wg.Wait()
	logger.Info("scheduler_stopped")
}

// loop fires task once at startup and then on every tick. With Redis wired
// the pass is skipped when another replica holds the task lock.
func loop(ctx context.Context, rc *redis.Client, name string, interval time.Duration,
	task func(ctx context.Context, requestID string) error) {

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		runOnce(ctx, rc, name, interval, task)
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func runOnce(ctx context.Context, rc *redis.Client, name string, interval time.Duration,
	task func(ctx context.Context, requestID string) error) {

	if ctx.Err() != nil {
		return
	}
	if rc != nil {
		lock := distlock.NewRedisLock(rc, "scheduler:"+name, interval)
		ok, err := lock.Acquire(ctx)
		if err != nil {
			logger.Warn("task_lock_failed", "task", name, "error", err.Error())
			return
		}
		if !ok {
			logger.Debug("task_skipped", "task", name, "reason", "lock_held")
			return
		}
		defer func() {
			if err := lock.Release(context.WithoutCancel(ctx)); err != nil {
				logger.Warn("task_lock_release_failed", "task", name, "error", err.Error())
			}
		}()
	}

	reqID := uuid.New().String()
	if err := task(ctx, reqID); err != nil {
		logger.Error("task_failed", "task", name, "request_id", reqID, "error", err.Error())
	}
}
