//nolint:nilnil
package dynamodb

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strconv"
	"time"

	"github.com/altcatalin/ses-monitor/feedback"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/aws/retry"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	dynamodbtypes "github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/aws/smithy-go"
	"github.com/slackmgr/types"
)

const (
	// GSITimestamp is the name of the Global Secondary Index used to list
	// suppressions newest first. Partition key: s, sort key: t.
	GSITimestamp = "timestamp"

	// RecipientAttr is the partition key attribute holding the suppressed
	// recipient address.
	RecipientAttr = "r"

	// MessageIDAttr holds the SES message ID of the bounce that caused the
	// suppression.
	MessageIDAttr = "m"

	// TimestampAttr holds the send timestamp of the bounced mail. It is the
	// sort key of [GSITimestamp].
	TimestampAttr = "t"

	// StatusAttr holds the numeric suppression status. It is the partition
	// key of [GSITimestamp].
	StatusAttr = "s"

	// maxBackoff is the maximum backoff duration for retry loops.
	maxBackoff = 2 * time.Second
)

// item is the on-table shape of a suppression record.
type item struct {
	Recipient string `dynamodbav:"r"`
	MessageID string `dynamodbav:"m"`
	Timestamp string `dynamodbav:"t"`
	Status    int    `dynamodbav:"s"`
}

// Client is a DynamoDB-backed suppression store. Each recipient is written
// at most once; later writes for the same recipient are rejected by a
// conditional expression and reported as [feedback.AlreadyExists].
//
// Use [New] to create a Client, [Client.Connect] to initialize the underlying
// DynamoDB connection, and [Client.Init] to validate the table schema.
type Client struct {
	client    API
	tableName string
	awsCfg    *aws.Config
	opts      *Options
	logger    types.Logger
}

// New creates a new Client configured with the given AWS config, table name,
// and optional options. Call [Client.Connect] on the returned client before use.
func New(awsCfg *aws.Config, tableName string, logger types.Logger, opts ...Option) *Client {
	options := newOptions()

	for _, o := range opts {
		o(options)
	}

	return &Client{
		awsCfg:    awsCfg,
		tableName: tableName,
		opts:      options,
		logger:    logger.WithField("plugin", "dynamodb").WithField("table", tableName),
	}
}

// Connect initializes the DynamoDB client from the AWS config provided to [New].
// It must be called before any other Client methods, and must complete before
// the Client is used concurrently.
func (c *Client) Connect() error {
	if c.tableName == "" {
		return errors.New("the DynamoDB table name cannot be empty")
	}

	if err := c.opts.validate(); err != nil {
		return fmt.Errorf("invalid DynamoDB options: %w", err)
	}

	// Use injected DynamoDB API if provided (useful for testing).
	if c.opts.dynamoDBAPI != nil {
		c.client = c.opts.dynamoDBAPI
	} else {
		c.client = dynamodb.NewFromConfig(*c.awsCfg, func(o *dynamodb.Options) {
			o.Retryer = retry.AddWithMaxBackoffDelay(o.Retryer, c.opts.apiMaxRetryBackoffDelay)
			o.Retryer = retry.AddWithMaxAttempts(o.Retryer, c.opts.apiMaxRetryAttempts)
		})
	}

	return nil
}

// Init validates the DynamoDB table schema. It checks that the table exists,
// is active, has the simple primary key r, and that the listing index
// ([GSITimestamp] unless overridden with [WithListIndex]) is present with
// partition key s and sort key t.
//
// Pass skipSchemaValidation true to skip all checks and return immediately,
// which is useful when schema validation is managed separately.
func (c *Client) Init(ctx context.Context, skipSchemaValidation bool) error {
	if skipSchemaValidation {
		return nil
	}

	input := &dynamodb.DescribeTableInput{
		TableName: aws.String(c.tableName),
	}

	response, err := c.client.DescribeTable(ctx, input)
	if err != nil {
		var notFoundError *dynamodbtypes.ResourceNotFoundException
		if errors.As(err, &notFoundError) {
			return fmt.Errorf("table %s does not exist", c.tableName)
		}
		return fmt.Errorf("failed to describe table %s: %w", c.tableName, err)
	}

	if response.Table == nil || len(response.Table.KeySchema) < 1 {
		return fmt.Errorf("table %s has no key schema", c.tableName)
	}

	if aws.ToString(response.Table.KeySchema[0].AttributeName) != RecipientAttr {
		return fmt.Errorf("table %s has partition key %s, expected %s", c.tableName, aws.ToString(response.Table.KeySchema[0].AttributeName), RecipientAttr)
	}

	if len(response.Table.KeySchema) > 1 {
		return fmt.Errorf("table %s has a composite primary key, expected a simple primary key", c.tableName)
	}

	if response.Table.TableStatus != dynamodbtypes.TableStatusActive {
		return fmt.Errorf("table %s is not active (status: %s)", c.tableName, response.Table.TableStatus)
	}

	if c.opts.listIndex == "" {
		return nil
	}

	// Listing index.
	// Partition key: s
	// Sort key: t
	return verifySecondaryIndex(response.Table, c.opts.listIndex, StatusAttr, TimestampAttr)
}

// Record writes the suppression unless a record for the same recipient
// already exists. The first record for a recipient is never overwritten.
//
// It returns [feedback.Created] when the record was written and
// [feedback.AlreadyExists] when the conditional check rejected the write.
// Any other failure is returned as an error with the zero Outcome.
func (c *Client) Record(ctx context.Context, s *feedback.Suppression) (feedback.Outcome, error) {
	if s == nil {
		return 0, errors.New("suppression cannot be nil")
	}

	if s.Recipient == "" {
		return 0, errors.New("suppression recipient cannot be empty")
	}

	attributes, err := attributevalue.MarshalMap(toItem(s))
	if err != nil {
		return 0, fmt.Errorf("failed to marshal suppression: %w", err)
	}

	input := &dynamodb.PutItemInput{
		TableName:           &c.tableName,
		Item:                attributes,
		ConditionExpression: aws.String("attribute_not_exists(" + RecipientAttr + ")"),
	}

	if _, err := c.client.PutItem(ctx, input); err != nil {
		var conditionalCheckFailed *dynamodbtypes.ConditionalCheckFailedException
		if errors.As(err, &conditionalCheckFailed) {
			return feedback.AlreadyExists, nil
		}

		logger := c.logger
		var apiErr smithy.APIError
		if errors.As(err, &apiErr) {
			logger = logger.WithField("error_code", apiErr.ErrorCode())
		}
		logger.Debugf("Conditional put failed: %v", err)

		return 0, fmt.Errorf("failed to write suppression to DynamoDB table %s: %w", c.tableName, err)
	}

	return feedback.Created, nil
}

// FindSuppression returns the suppression recorded for the given recipient,
// or nil if there is none. The read is strongly consistent.
func (c *Client) FindSuppression(ctx context.Context, recipient string) (*feedback.Suppression, error) {
	if recipient == "" {
		return nil, errors.New("recipient cannot be empty")
	}

	input := &dynamodb.GetItemInput{
		TableName: &c.tableName,
		Key: map[string]dynamodbtypes.AttributeValue{
			RecipientAttr: &dynamodbtypes.AttributeValueMemberS{Value: recipient},
		},
		ConsistentRead: aws.Bool(true),
	}

	output, err := c.client.GetItem(ctx, input)
	if err != nil {
		return nil, fmt.Errorf("failed to read suppression from DynamoDB table %s: %w", c.tableName, err)
	}

	if len(output.Item) == 0 {
		return nil, nil
	}

	var it item
	if err := attributevalue.UnmarshalMap(output.Item, &it); err != nil {
		return nil, fmt.Errorf("failed to unmarshal suppression: %w", err)
	}

	return it.toSuppression(), nil
}

// ListSuppressions returns recorded suppressions ordered by timestamp, newest
// first. A limit of zero or less returns every record. Listing requires the
// index configured with [WithListIndex].
func (c *Client) ListSuppressions(ctx context.Context, limit int) ([]*feedback.Suppression, error) {
	if c.opts.listIndex == "" {
		return nil, errors.New("listing is disabled: no list index configured")
	}

	input := &dynamodb.QueryInput{
		TableName:              &c.tableName,
		IndexName:              aws.String(c.opts.listIndex),
		KeyConditionExpression: aws.String(StatusAttr + " = :s"),
		ExpressionAttributeValues: map[string]dynamodbtypes.AttributeValue{
			":s": &dynamodbtypes.AttributeValueMemberN{Value: strconv.Itoa(feedback.StatusSuppressed)},
		},
		ScanIndexForward: aws.Bool(false),
		Limit:            aws.Int32(c.opts.queryPageSize),
	}

	result := []*feedback.Suppression{}
	paginator := dynamodb.NewQueryPaginator(c.client, input)

	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to query DynamoDB index %s: %w", c.opts.listIndex, err)
		}

		var items []item
		if err := attributevalue.UnmarshalListOfMaps(page.Items, &items); err != nil {
			return nil, fmt.Errorf("failed to unmarshal suppressions: %w", err)
		}

		for i := range items {
			result = append(result, items[i].toSuppression())

			if limit > 0 && len(result) >= limit {
				return result, nil
			}
		}
	}

	return result, nil
}

// DropAllData deletes every item from the DynamoDB table. It scans the table
// in pages and removes each page using BatchWriteItem with exponential backoff
// for unprocessed items.
//
// This method is intended for use in tests only. Do not call it in production.
func (c *Client) DropAllData(ctx context.Context) error {
	input := &dynamodb.ScanInput{
		TableName:            aws.String(c.tableName),
		ProjectionExpression: aws.String(RecipientAttr),
	}

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		output, err := c.client.Scan(ctx, input)
		if err != nil {
			return fmt.Errorf("failed to scan DynamoDB table %s: %w", c.tableName, err)
		}

		// Process items in batches of 25 (DynamoDB BatchWriteItem limit).
		for i := 0; i < len(output.Items); i += 25 {
			end := min(i+25, len(output.Items))

			if err := c.batchDelete(ctx, output.Items[i:end]); err != nil {
				return err
			}
		}

		if output.LastEvaluatedKey == nil {
			break
		}

		input.ExclusiveStartKey = output.LastEvaluatedKey
	}

	return nil
}

func (c *Client) batchDelete(ctx context.Context, batch []map[string]dynamodbtypes.AttributeValue) error {
	requestItems := make([]dynamodbtypes.WriteRequest, 0, len(batch))

	for _, it := range batch {
		requestItems = append(requestItems, dynamodbtypes.WriteRequest{
			DeleteRequest: &dynamodbtypes.DeleteRequest{
				Key: map[string]dynamodbtypes.AttributeValue{
					RecipientAttr: it[RecipientAttr],
				},
			},
		})
	}

	batchInput := &dynamodb.BatchWriteItemInput{
		RequestItems: map[string][]dynamodbtypes.WriteRequest{
			c.tableName: requestItems,
		},
	}

	// Retry with exponential backoff for unprocessed items.
	const maxRetries = 5
	backoff := 50 * time.Millisecond

	for attempt := 0; attempt <= maxRetries; attempt++ {
		batchResult, err := c.client.BatchWriteItem(ctx, batchInput)
		if err != nil {
			return fmt.Errorf("failed to batch delete items from DynamoDB table %s: %w", c.tableName, err)
		}

		if len(batchResult.UnprocessedItems) == 0 {
			return nil
		}

		if attempt == maxRetries {
			return fmt.Errorf("%d unprocessed items after %d retries in DropAllData",
				len(batchResult.UnprocessedItems[c.tableName]), maxRetries)
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}

		backoff = min(backoff*2, maxBackoff)
		batchInput.RequestItems = batchResult.UnprocessedItems
	}

	return nil
}

func toItem(s *feedback.Suppression) item {
	status := s.Status
	if status == 0 {
		status = feedback.StatusSuppressed
	}

	return item{
		Recipient: s.Recipient,
		MessageID: s.MessageID,
		Timestamp: s.Timestamp,
		Status:    status,
	}
}

func (it item) toSuppression() *feedback.Suppression {
	return &feedback.Suppression{
		Recipient: it.Recipient,
		MessageID: it.MessageID,
		Timestamp: it.Timestamp,
		Status:    it.Status,
	}
}

func verifySecondaryIndex(table *dynamodbtypes.TableDescription, indexName, partitionKey, sortKey string) error {
	for _, index := range table.GlobalSecondaryIndexes {
		if aws.ToString(index.IndexName) != indexName {
			continue
		}

		if len(index.KeySchema) == 0 || aws.ToString(index.KeySchema[0].AttributeName) != partitionKey {
			return fmt.Errorf("global secondary index %s has partition key %s, expected %s", indexName, firstKey(index.KeySchema), partitionKey)
		}

		if len(index.KeySchema) != 2 {
			return fmt.Errorf("global secondary index %s has a simple primary key, expected a composite primary key", indexName)
		}

		if aws.ToString(index.KeySchema[1].AttributeName) != sortKey {
			return fmt.Errorf("global secondary index %s has sort key %s, expected %s", indexName, aws.ToString(index.KeySchema[1].AttributeName), sortKey)
		}

		if index.IndexStatus != dynamodbtypes.IndexStatusActive {
			return fmt.Errorf("global secondary index %s is not active (status: %s)", indexName, index.IndexStatus)
		}

		if index.Projection == nil || index.Projection.ProjectionType != dynamodbtypes.ProjectionTypeAll {
			if !projects(index.Projection, RecipientAttr, MessageIDAttr) {
				return fmt.Errorf("global secondary index %s must project attributes %s and %s", indexName, RecipientAttr, MessageIDAttr)
			}
		}

		return nil
	}

	return fmt.Errorf("global secondary index %s not found", indexName)
}

// projects reports whether an INCLUDE or KEYS_ONLY projection carries the
// given non-key attributes. The table key r is always projected.
func projects(p *dynamodbtypes.Projection, attrs ...string) bool {
	if p == nil {
		return false
	}

	for _, attr := range attrs {
		if attr == RecipientAttr {
			continue
		}

		if !slices.Contains(p.NonKeyAttributes, attr) {
			return false
		}
	}

	return true
}

func firstKey(schema []dynamodbtypes.KeySchemaElement) string {
	if len(schema) == 0 {
		return ""
	}

	return aws.ToString(schema[0].AttributeName)
}
