// Command suppressions prints recorded suppressions from the configured store
// as JSON lines, newest first.
//
// Usage:
//
//	suppressions [-limit n] [-recipient address]
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/altcatalin/ses-monitor/config"
	"github.com/altcatalin/ses-monitor/feedback"
	"github.com/altcatalin/ses-monitor/internal/store"
	"github.com/altcatalin/ses-monitor/logging"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/joho/godotenv"
	"github.com/slackmgr/types"
)

func main() {
	limit := flag.Int("limit", 100, "Maximum number of suppressions to print, 0 for all")
	recipient := flag.String("recipient", "", "Print only the suppression for this address")
	flag.Parse()

	_ = godotenv.Load()

	cfg, err := config.LoadStore()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	logger := logging.New(cfg.LogLevel, cfg.Development())

	if err := run(cfg, logger, *recipient, *limit); err != nil {
		logger.Fatalf("Failed to list suppressions: %v", err)
	}
}

func run(cfg *config.Config, logger types.Logger, recipient string, limit int) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var opts []func(*awsconfig.LoadOptions) error
	if cfg.AWSRegion != "" {
		opts = append(opts, awsconfig.WithRegion(cfg.AWSRegion))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return fmt.Errorf("failed to load AWS config: %w", err)
	}

	s, closeStore, err := store.Open(ctx, cfg, &awsCfg, logger)
	if err != nil {
		return err
	}
	defer closeStore()

	return list(ctx, s, os.Stdout, recipient, limit)
}

// list writes one JSON object per suppression. A recipient narrows the output
// to that address, printing nothing if it was never suppressed.
func list(ctx context.Context, s store.Store, w io.Writer, recipient string, limit int) error {
	var suppressions []*feedback.Suppression

	if recipient != "" {
		found, err := s.FindSuppression(ctx, recipient)
		if err != nil {
			return err
		}

		if found != nil {
			suppressions = append(suppressions, found)
		}
	} else {
		all, err := s.ListSuppressions(ctx, limit)
		if err != nil {
			return err
		}

		suppressions = all
	}

	enc := json.NewEncoder(w)

	for _, sup := range suppressions {
		if err := enc.Encode(sup); err != nil {
			return fmt.Errorf("failed to write suppression: %w", err)
		}
	}

	return nil
}
