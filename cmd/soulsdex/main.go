package main

import (
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"soulsdex/internal/config"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:          "soulsdex",
		Short:        "Constant-product token pool engine",
		SilenceUsage: true,
	}

	root.PersistentFlags().String("config", "", "config file path")
	root.PersistentFlags().String("env-file", ".env", "dotenv file with deployment addresses (ignored when missing)")

	applyCmd := &cobra.Command{
		Use:   "apply",
		Short: "Replay an operations file against a fresh deployment",
		RunE:  runApply,
	}

	applyCmd.Flags().String("genesis", "", "genesis YAML (defaults to the local two-token deployment)")
	applyCmd.Flags().String("ops", "", "input operations JSONL")
	applyCmd.Flags().String("out", "./data/journal.jsonl", "output journal JSONL")
	applyCmd.Flags().String("results", "./data/results.jsonl", "output results JSONL")
	applyCmd.Flags().String("pg-dsn", "", "optional Postgres DSN for journal and results")
	applyCmd.Flags().Uint64("batch-size", 500, "operations per write batch")
	applyCmd.Flags().String("checkpoint", "./data/checkpoint.json", "checkpoint file path")
	applyCmd.Flags().Bool("checkpoint-enabled", true, "enable checkpointing")
	applyCmd.Flags().Bool("reset-checkpoint", false, "ignore an existing checkpoint and apply from the first operation")
	applyCmd.Flags().Int("max-retries", 5, "maximum retry attempts for sink writes")
	applyCmd.Flags().Duration("retry-backoff", 500*time.Millisecond, "initial retry backoff")
	applyCmd.Flags().Bool("stop-on-error", false, "stop at the first failed or malformed operation")
	applyCmd.Flags().String("metrics-addr", "", "serve Prometheus metrics on this address while applying (e.g. :9102)")
	applyCmd.Flags().StringSlice("alias", nil, "extra account aliases (comma-separated name=address)")
	applyCmd.Flags().String("log-level", "info", "log level (debug, info, warn, error)")

	root.AddCommand(applyCmd)

	decodeCmd := &cobra.Command{
		Use:   "decode",
		Short: "Decode a journal into typed events",
		RunE:  runDecode,
	}

	decodeCmd.Flags().String("genesis", "", "genesis YAML used to label pool events")
	decodeCmd.Flags().String("in", "./data/journal.jsonl", "input journal JSONL")
	decodeCmd.Flags().String("out", "./data/typed_events.jsonl", "output typed events JSONL")
	decodeCmd.Flags().String("errors", "./data/decode_errors.jsonl", "decode errors JSONL")
	decodeCmd.Flags().String("log-level", "info", "log level (debug, info, warn, error)")

	root.AddCommand(decodeCmd)

	aggregateCmd := &cobra.Command{
		Use:   "aggregate",
		Short: "Aggregate typed events into per-pool window statistics",
		RunE:  runAggregate,
	}

	aggregateCmd.Flags().String("genesis", "", "genesis YAML with token decimals")
	aggregateCmd.Flags().String("in", "./data/typed_events.jsonl", "input typed events JSONL")
	aggregateCmd.Flags().String("window", "5m", "aggregation window (e.g. 1m, 5m, 1h)")
	aggregateCmd.Flags().String("pg-dsn", "", "Postgres DSN")
	aggregateCmd.Flags().Int("batch-size", 1000, "batch size for DB writes")
	aggregateCmd.Flags().String("state-file", "", "optional local state file for progress tracking")
	aggregateCmd.Flags().String("recompute-from", "", "recompute from timestamp (unix seconds or RFC3339)")
	aggregateCmd.Flags().String("log-level", "info", "log level (debug, info, warn, error)")

	root.AddCommand(aggregateCmd)

	quoteCmd := &cobra.Command{
		Use:   "quote",
		Short: "Compute a swap output for given reserves",
		Args:  cobra.NoArgs,
		RunE:  runQuote,
	}

	quoteCmd.Flags().String("reserve-in", "", "reserve of the input token")
	quoteCmd.Flags().String("reserve-out", "", "reserve of the output token")
	quoteCmd.Flags().String("amount-in", "", "input amount")

	root.AddCommand(quoteCmd)

	return root
}

// loadEnv exports the --env-file variables before any config is read.
func loadEnv(cmd *cobra.Command) error {
	envFile, _ := cmd.Flags().GetString("env-file")
	return config.LoadEnvFile(envFile)
}

func newLogger(level string) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevel()
	if err := cfg.Level.UnmarshalText([]byte(level)); err != nil {
		return nil, err
	}

	cfg.EncoderConfig.TimeKey = "ts"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	return cfg.Build()
}

func redactDSN(dsn string) string {
	if dsn == "" {
		return dsn
	}
	return "***"
}
