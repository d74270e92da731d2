// Command consumer drains SES feedback notifications from SQS into the
// configured suppression store. Under AWS Lambda each invocation is one
// drain; elsewhere it drains once within LOCAL_TIME_BUDGET and exits.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/altcatalin/ses-monitor/config"
	"github.com/altcatalin/ses-monitor/consumer"
	"github.com/altcatalin/ses-monitor/internal/store"
	"github.com/altcatalin/ses-monitor/logging"
	"github.com/altcatalin/ses-monitor/sqs"
	"github.com/aws/aws-lambda-go/lambda"
	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/joho/godotenv"
	"github.com/slackmgr/types"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	logger := logging.New(cfg.LogLevel, cfg.Development())

	if err := run(cfg, logger); err != nil {
		logger.Fatalf("Consumer failed: %v", err)
	}
}

func run(cfg *config.Config, logger types.Logger) error {
	// Background work started here (visibility extension, connection pools)
	// outlives individual Lambda invocations.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	awsCfg, err := loadAWSConfig(ctx, cfg)
	if err != nil {
		return err
	}

	source, err := sqs.New(&awsCfg, cfg.QueueURL, logger).Init(ctx)
	if err != nil {
		return fmt.Errorf("failed to initialize SQS client: %w", err)
	}

	recorder, closeStore, err := store.Open(ctx, cfg, &awsCfg, logger)
	if err != nil {
		return err
	}
	defer closeStore()

	c, err := consumer.New(source, recorder, logger,
		consumer.WithBatchSize(source.BatchSize()),
		consumer.WithAckIgnored(cfg.AckIgnoredNotifications),
	)
	if err != nil {
		return err
	}

	if _, ok := os.LookupEnv("AWS_LAMBDA_RUNTIME_API"); ok {
		lambda.StartWithOptions(handler(c), lambda.WithEnableSIGTERM(stop))
		return nil
	}

	runCtx, cancel := context.WithTimeout(ctx, cfg.LocalTimeBudget)
	defer cancel()

	summary, err := c.Run(runCtx)
	if err != nil {
		return err
	}

	logger.WithField("polls", summary.Polls).WithField("created", summary.Created).Info("Drain completed")

	return nil
}

// handler adapts one consumer drain to a Lambda invocation. The invocation
// context carries the Lambda deadline used for the continuation decision.
func handler(c *consumer.Consumer) func(ctx context.Context) (*consumer.Summary, error) {
	return func(ctx context.Context) (*consumer.Summary, error) {
		return c.Run(ctx)
	}
}

func loadAWSConfig(ctx context.Context, cfg *config.Config) (aws.Config, error) {
	var opts []func(*awsconfig.LoadOptions) error

	if cfg.AWSRegion != "" {
		opts = append(opts, awsconfig.WithRegion(cfg.AWSRegion))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return aws.Config{}, fmt.Errorf("failed to load AWS config: %w", err)
	}

	return awsCfg, nil
}
