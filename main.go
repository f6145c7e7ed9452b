package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/lmittmann/tint"
	"github.com/mattn/go-isatty"
	"github.com/sandeepkandula/objsync/journal"
	"github.com/sandeepkandula/objsync/source"
	"github.com/sandeepkandula/objsync/sync"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// flag name -> config key
var flagKeys = map[string]string{
	"src":                          "src",
	"bucket":                       "s3.bucket",
	"prefix":                       "s3.prefix",
	"region":                       "s3.region",
	"endpoint":                     "s3.endpoint",
	"access-key":                   "s3.access_key",
	"secret-key":                   "s3.secret_key",
	"storage-class":                "s3.storage_class",
	"object-prefix":                "s3.object_prefix",
	"root":                         "root",
	"object-space":                 "object_space",
	"target-checksum":              "target_checksum",
	"segment-size":                 "segment_size",
	"no-update":                    "no_update",
	"force":                        "force",
	"include-retention-expiration": "include_retention_expiration",
	"retention-delay-window":       "retention_delay_window",
	"workers":                      "workers",
	"journal":                      "journal",
	"dry-run":                      "dry_run",
	"delete":                       "delete",
	"log-level":                    "log_level",
}

func newRootCmd() *cobra.Command {
	v := viper.New()
	cmd := &cobra.Command{
		Use:   "objsync",
		Short: "Sync a directory tree into an object store",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd, v)
			if err != nil {
				return err
			}
			cmd.SilenceUsage = true
			level, _ := cfg.logLevel()
			setupLogging(level)
			return run(cmd.Context(), cmd.OutOrStdout(), cfg)
		},
	}

	f := cmd.Flags()
	f.SortFlags = false
	f.String("src", "", "source directory, or a single file when root names an object (required)")
	f.String("bucket", "", "S3 destination bucket (required)")
	f.String("prefix", "", "key prefix within the bucket")
	f.String("region", "us-east-1", "AWS region")
	f.String("endpoint", "", "custom S3 endpoint, e.g. http://localhost:9000 for MinIO")
	f.String("access-key", "", "static access key (default AWS credential chain)")
	f.String("secret-key", "", "static secret key")
	f.String("storage-class", "GLACIER_IR",
		"S3 storage class: GLACIER_IR (cheapest, instant access), STANDARD_IA, STANDARD")
	f.String("object-prefix", "objects/", "key prefix of the object space")
	f.String("root", "/", "destination root; a trailing slash syncs under it, otherwise it names a single object")
	f.Bool("object-space", false, "address objects by target-assigned id instead of path")
	f.String("target-checksum", "", "write checksummed segments: MD5, SHA1 or SHA256")
	f.String("segment-size", "1MiB", "segment size of checksummed transfers")
	f.Bool("no-update", false, "create missing objects but never update existing ones")
	f.Bool("force", false, "rewrite objects even when they look up to date")
	f.Bool("include-retention-expiration", false, "apply source retention and expiration dates")
	f.Duration("retention-delay-window", sync.DefaultRetentionDelay, "retention start delay window")
	f.Int("workers", 4, "objects synced concurrently")
	f.String("journal", "", "SQLite journal of target ids (enables resuming object-space runs)")
	f.Bool("dry-run", false, "print actions without making changes")
	f.Bool("delete", false, "delete objects under root absent from src")
	f.String("log-level", "info", "debug, info, warn or error")
	cmd.PersistentFlags().StringP("config", "c", "", "config file (yaml)")

	return cmd
}

func main() {
	setupLogging(slog.LevelInfo)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

func setupLogging(level slog.Level) {
	slog.SetDefault(slog.New(tint.NewHandler(os.Stderr, &tint.Options{
		Level:      level,
		TimeFormat: "2006-01-02T15:04:05.000Z07:00",
		NoColor:    !isatty.IsTerminal(os.Stderr.Fd()),
	})))
}

func loadConfig(cmd *cobra.Command, v *viper.Viper) (*Config, error) {
	if path, _ := cmd.Flags().GetString("config"); path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("config read '%s': %w", path, err)
		}
	}

	for name, key := range flagKeys {
		if err := v.BindPFlag(key, cmd.Flags().Lookup(name)); err != nil {
			return nil, fmt.Errorf("bind flag %s: %w", name, err)
		}
	}

	v.SetEnvPrefix("OBJSYNC")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func run(ctx context.Context, out io.Writer, cfg *Config) error {
	syncCfg, err := cfg.SyncConfig()
	if err != nil {
		return err
	}

	src, err := source.New(cfg.Src)
	if err != nil {
		return err
	}
	dst, err := sync.NewS3DestinationFromConfig(ctx, &cfg.S3)
	if err != nil {
		return err
	}

	timings := sync.NewTimings()
	opts := sync.Options{
		Src:      src,
		Dst:      dst,
		Config:   syncCfg,
		Workers:  cfg.Workers,
		Recorder: timings,
		DryRun:   cfg.DryRun,
		Delete:   cfg.Delete,
	}
	var jrnl *journal.Journal
	if cfg.Journal != "" {
		if jrnl, err = journal.Open(journal.WithPath(cfg.Journal)); err != nil {
			return err
		}
		defer jrnl.Close()
		opts.Tracker = jrnl
	}

	if syncCfg.NoUpdate {
		slog.Info("updates disabled, existing objects will not be modified")
	}
	if syncCfg.Retention {
		slog.Info("applying retention/expiration", "retentionStartDelay", syncCfg.RetentionDelay)
	}
	slog.Info("sync started", "src", cfg.Src, "bucket", cfg.S3.Bucket, "addressing", syncCfg.Addressing, "dryRun", cfg.DryRun)

	start := time.Now()
	summary, err := sync.Sync(ctx, opts)
	if summary != nil {
		printSummary(out, summary, timings, time.Since(start))
	}
	if jrnl != nil {
		if n, err := jrnl.Count(context.WithoutCancel(ctx)); err == nil {
			slog.Info("journal", "path", cfg.Journal, "entries", n)
		}
	}
	if err != nil {
		return err
	}
	if n := summary.Failed(); n > 0 {
		return fmt.Errorf("%d object(s) failed", n)
	}
	return nil
}

func printSummary(out io.Writer, s *sync.Summary, timings *sync.Timings, elapsed time.Duration) {
	fmt.Fprintf(out, "\n%s objects in %s\n", humanize.Comma(int64(s.Total())), elapsed.Round(time.Millisecond))
	for _, action := range []sync.Action{
		sync.ActionCreated,
		sync.ActionUpdated,
		sync.ActionMetadataUpdated,
		sync.ActionUnchanged,
		sync.ActionSkipped,
	} {
		if n := s.Actions[action]; n > 0 {
			fmt.Fprintf(out, "  %-17s %s\n", action, humanize.Comma(int64(n)))
		}
	}
	if s.Deleted > 0 {
		fmt.Fprintf(out, "  %-17s %s\n", "deleted", humanize.Comma(int64(s.Deleted)))
	}
	if s.PolicyErrors > 0 {
		fmt.Fprintf(out, "  %-17s %s\n", "policy errors", humanize.Comma(int64(s.PolicyErrors)))
	}
	if n := s.Failed(); n > 0 {
		fmt.Fprintf(out, "  %-17s %s\n", "failed", humanize.Comma(int64(n)))
	}

	stats := timings.Snapshot()
	if len(stats) == 0 {
		return
	}
	fmt.Fprintln(out)
	tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "OPERATION\tCALLS\tFAILED\tTOTAL\tAVERAGE")
	for _, st := range stats {
		fmt.Fprintf(tw, "%s\t%s\t%d\t%s\t%s\n", st.Op, humanize.Comma(st.Count), st.Failures,
			st.Total.Round(time.Millisecond), st.Average().Round(time.Microsecond))
	}
	tw.Flush()
}
