package store_test

import (
	"testing"

	"github.com/altcatalin/ses-monitor/config"
	"github.com/altcatalin/ses-monitor/internal/store"
	"github.com/altcatalin/ses-monitor/logging"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpen(t *testing.T) {
	t.Parallel()

	logger := logging.New("error", false)
	awsCfg := &aws.Config{Region: "eu-west-1"}

	t.Run("dynamodb without schema validation", func(t *testing.T) {
		t.Parallel()

		cfg := &config.Config{Store: config.StoreDynamoDB, TableName: "suppressions", SkipSchemaValidation: true}

		s, closeFn, err := store.Open(t.Context(), cfg, awsCfg, logger)

		require.NoError(t, err)
		require.NotNil(t, closeFn)
		assert.NotNil(t, s)
		closeFn()
	})

	t.Run("dynamodb without table", func(t *testing.T) {
		t.Parallel()

		cfg := &config.Config{Store: config.StoreDynamoDB}

		_, closeFn, err := store.Open(t.Context(), cfg, awsCfg, logger)

		require.ErrorContains(t, err, "table name cannot be empty")
		require.NotNil(t, closeFn)
	})

	t.Run("postgres with invalid options", func(t *testing.T) {
		t.Parallel()

		cfg := &config.Config{Store: config.StorePostgres, PostgresPort: 5432, PostgresSSLMode: "prefer", PostgresTable: "suppressions"}

		_, _, err := store.Open(t.Context(), cfg, awsCfg, logger)

		require.ErrorContains(t, err, "user is required")
	})

	t.Run("unknown store", func(t *testing.T) {
		t.Parallel()

		_, _, err := store.Open(t.Context(), &config.Config{Store: "redis"}, awsCfg, logger)

		require.ErrorContains(t, err, "unknown store")
	})
}
