package dynamodb

import (
	"errors"
	"time"
)

// Option is a functional option for configuring a [Client].
type Option func(*Options)

// Options holds the configuration for a [Client]. Use [Option] functions
// (such as [WithListIndex] or [WithAPIMaxRetryAttempts]) to customise the
// defaults.
type Options struct {
	listIndex               string
	queryPageSize           int32
	apiMaxRetryAttempts     int
	apiMaxRetryBackoffDelay time.Duration
	dynamoDBAPI             API
}

func newOptions() *Options {
	return &Options{
		listIndex:               GSITimestamp,
		queryPageSize:           100,
		apiMaxRetryAttempts:     5,
		apiMaxRetryBackoffDelay: 5 * time.Second,
	}
}

func (o *Options) validate() error {
	if o.queryPageSize < 1 || o.queryPageSize > 1000 {
		return errors.New("query page size must be between 1 and 1000")
	}

	if o.apiMaxRetryAttempts < 0 || o.apiMaxRetryAttempts > 10 {
		return errors.New("max DynamoDB API retry attempts must be between 0 and 10")
	}

	if o.apiMaxRetryBackoffDelay < 100*time.Millisecond || o.apiMaxRetryBackoffDelay > 30*time.Second {
		return errors.New("max DynamoDB API retry backoff delay must be between 100 milliseconds and 30 seconds")
	}

	return nil
}

// WithListIndex sets the name of the Global Secondary Index used by
// [Client.ListSuppressions]. The default is [GSITimestamp]. An empty name
// disables listing and skips the index check in [Client.Init].
func WithListIndex(name string) Option {
	return func(o *Options) {
		o.listIndex = name
	}
}

// WithQueryPageSize sets the Limit applied to each Query page issued by
// [Client.ListSuppressions]. Must be between 1 and 1000. Default: 100.
func WithQueryPageSize(n int32) Option {
	return func(o *Options) {
		o.queryPageSize = n
	}
}

// WithAPIMaxRetryAttempts sets the maximum number of attempts for failed
// DynamoDB API calls. Must be between 0 and 10. Default: 5.
func WithAPIMaxRetryAttempts(n int) Option {
	return func(o *Options) {
		o.apiMaxRetryAttempts = n
	}
}

// WithAPIMaxRetryBackoffDelay sets the maximum backoff delay between
// consecutive DynamoDB API retry attempts. Default: 5 seconds.
func WithAPIMaxRetryBackoffDelay(d time.Duration) Option {
	return func(o *Options) {
		o.apiMaxRetryBackoffDelay = d
	}
}

// WithAPI sets a custom [API] implementation. This is useful when a custom
// DynamoDB configuration is required, or for injecting mocks in tests.
func WithAPI(api API) Option {
	return func(o *Options) {
		o.dynamoDBAPI = api
	}
}
