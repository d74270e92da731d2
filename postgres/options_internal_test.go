package postgres

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateStatements(t *testing.T) {
	t.Parallel()

	o := &options{suppressionsTable: "test_suppressions"}

	statements := o.createStatements()

	require.Len(t, statements, 2)

	t.Run("suppressions table creation", func(t *testing.T) {
		t.Parallel()

		assert.Contains(t, statements[0], "CREATE TABLE IF NOT EXISTS test_suppressions")
		assert.Contains(t, statements[0], "recipient text PRIMARY KEY")
		assert.Contains(t, statements[0], "version SMALLINT NOT NULL")
		assert.Contains(t, statements[0], "message_id text NOT NULL")
		assert.Contains(t, statements[0], "sent_at text NOT NULL")
		assert.Contains(t, statements[0], "status SMALLINT NOT NULL")
		assert.Contains(t, statements[0], "created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT now()")
	})

	t.Run("listing index", func(t *testing.T) {
		t.Parallel()

		assert.Contains(t, statements[1], "CREATE INDEX IF NOT EXISTS test_suppressions_status_sent_at_idx")
		assert.Contains(t, statements[1], "ON test_suppressions (status, sent_at DESC)")
	})
}

func TestDropStatements(t *testing.T) {
	t.Parallel()

	o := &options{suppressionsTable: "test_suppressions"}

	statements := o.dropStatements()

	require.Len(t, statements, 1)
	assert.Equal(t, "DROP TABLE IF EXISTS test_suppressions CASCADE;", statements[0])
}

func TestVerifyCurrentDatabaseVersion(t *testing.T) {
	t.Parallel()

	o := &options{suppressionsTable: "suppressions"}

	validSchema := map[string]*dbRow{
		"suppressions.recipient":  {DataType: "text", IsNullable: "NO"},
		"suppressions.version":    {DataType: "smallint", IsNullable: "NO"},
		"suppressions.message_id": {DataType: "text", IsNullable: "NO"},
		"suppressions.sent_at":    {DataType: "text", IsNullable: "NO"},
		"suppressions.status":     {DataType: "smallint", IsNullable: "NO"},
		"suppressions.created_at": {DataType: "timestamp with time zone", IsNullable: "NO"},
	}

	t.Run("valid schema passes verification", func(t *testing.T) {
		t.Parallel()

		assert.NoError(t, o.verifyCurrentDatabaseVersion(validSchema))
	})

	t.Run("case insensitive data type comparison", func(t *testing.T) {
		t.Parallel()

		schema := copySchema(validSchema)
		schema["suppressions.recipient"].DataType = "TEXT"
		schema["suppressions.status"].DataType = "SMALLINT"

		assert.NoError(t, o.verifyCurrentDatabaseVersion(schema))
	})

	t.Run("missing column returns error", func(t *testing.T) {
		t.Parallel()

		schema := copySchema(validSchema)
		delete(schema, "suppressions.message_id")

		err := o.verifyCurrentDatabaseVersion(schema)

		require.Error(t, err)
		assert.Contains(t, err.Error(), "not found in current database schema")
		assert.Contains(t, err.Error(), "suppressions.message_id")
	})

	t.Run("wrong data type returns error", func(t *testing.T) {
		t.Parallel()

		schema := copySchema(validSchema)
		schema["suppressions.status"].DataType = "text"

		err := o.verifyCurrentDatabaseVersion(schema)

		require.Error(t, err)
		assert.Contains(t, err.Error(), "data type mismatch")
		assert.Contains(t, err.Error(), "suppressions.status")
	})

	t.Run("wrong nullability returns error", func(t *testing.T) {
		t.Parallel()

		schema := copySchema(validSchema)
		schema["suppressions.recipient"].IsNullable = "YES"

		err := o.verifyCurrentDatabaseVersion(schema)

		require.Error(t, err)
		assert.Contains(t, err.Error(), "nullability mismatch")
	})

	t.Run("empty schema returns error", func(t *testing.T) {
		t.Parallel()

		err := o.verifyCurrentDatabaseVersion(map[string]*dbRow{})

		require.Error(t, err)
		assert.Contains(t, err.Error(), "not found in current database schema")
	})
}

func copySchema(src map[string]*dbRow) map[string]*dbRow {
	dst := make(map[string]*dbRow, len(src))

	for k, v := range src {
		dst[k] = &dbRow{
			DataType:   v.DataType,
			IsNullable: v.IsNullable,
		}
	}

	return dst
}
