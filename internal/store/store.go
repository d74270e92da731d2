// Package store opens the suppression backend selected by the configuration.
package store

import (
	"context"
	"fmt"

	"github.com/altcatalin/ses-monitor/config"
	"github.com/altcatalin/ses-monitor/dynamodb"
	"github.com/altcatalin/ses-monitor/feedback"
	"github.com/altcatalin/ses-monitor/postgres"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/slackmgr/types"
)

// Store is the suppression backend used by the commands.
type Store interface {
	Record(ctx context.Context, s *feedback.Suppression) (feedback.Outcome, error)
	FindSuppression(ctx context.Context, recipient string) (*feedback.Suppression, error)
	ListSuppressions(ctx context.Context, limit int) ([]*feedback.Suppression, error)
}

// Open connects and initializes the backend named by cfg.Store. The returned
// close function releases its resources and is never nil.
func Open(ctx context.Context, cfg *config.Config, awsCfg *aws.Config, logger types.Logger) (Store, func(), error) {
	switch cfg.Store {
	case config.StoreDynamoDB:
		client := dynamodb.New(awsCfg, cfg.TableName, logger)

		if err := client.Connect(); err != nil {
			return nil, func() {}, fmt.Errorf("failed to connect to DynamoDB: %w", err)
		}

		if err := client.Init(ctx, cfg.SkipSchemaValidation); err != nil {
			return nil, func() {}, fmt.Errorf("failed to initialize DynamoDB table: %w", err)
		}

		return client, func() {}, nil

	case config.StorePostgres:
		client := postgres.New(
			postgres.WithHost(cfg.PostgresHost),
			postgres.WithPort(cfg.PostgresPort),
			postgres.WithUser(cfg.PostgresUser),
			postgres.WithPassword(cfg.PostgresPassword),
			postgres.WithDatabase(cfg.PostgresDatabase),
			postgres.WithSSLMode(postgres.SSLMode(cfg.PostgresSSLMode)),
			postgres.WithSuppressionsTable(cfg.PostgresTable),
		)

		if err := client.Connect(ctx); err != nil {
			return nil, func() {}, fmt.Errorf("failed to connect to Postgres: %w", err)
		}

		closeFn := func() { _ = client.Close(context.Background()) }

		if err := client.Init(ctx, cfg.SkipSchemaValidation); err != nil {
			closeFn()
			return nil, func() {}, fmt.Errorf("failed to initialize Postgres schema: %w", err)
		}

		logger.WithField("plugin", "postgres").WithField("table", cfg.PostgresTable).Debug("Postgres store ready")

		return client, closeFn, nil

	default:
		return nil, func() {}, fmt.Errorf("unknown store %q", cfg.Store)
	}
}
