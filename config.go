package main

import (
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/sandeepkandula/objsync/sync"
)

// Config is the command configuration, decoded from flags, the environment
// (OBJSYNC_*) and an optional config file.
type Config struct {
	Src            string        `mapstructure:"src"`
	S3             sync.S3Config `mapstructure:"s3"`
	Root           string        `mapstructure:"root"`
	ObjectSpace    bool          `mapstructure:"object_space"`
	Checksum       string        `mapstructure:"target_checksum"`
	SegmentSize    string        `mapstructure:"segment_size"`
	NoUpdate       bool          `mapstructure:"no_update"`
	Force          bool          `mapstructure:"force"`
	Retention      bool          `mapstructure:"include_retention_expiration"`
	RetentionDelay time.Duration `mapstructure:"retention_delay_window"`
	Workers        int           `mapstructure:"workers"`
	Journal        string        `mapstructure:"journal"`
	DryRun         bool          `mapstructure:"dry_run"`
	Delete         bool          `mapstructure:"delete"`
	LogLevel       string        `mapstructure:"log_level"`
}

func (c *Config) Validate() error {
	if c.Src == "" {
		return fmt.Errorf("src required")
	}
	if err := c.validateSrc(); err != nil {
		return err
	}
	if err := c.S3.Validate(); err != nil {
		return fmt.Errorf("s3: %w", err)
	}
	if c.ObjectSpace && c.Root != "" && c.Root != "/" {
		return fmt.Errorf("root cannot be used with object space addressing")
	}
	if c.Delete && (c.ObjectSpace || !strings.HasSuffix(c.Root, "/")) {
		return fmt.Errorf("delete requires path addressing under a directory root")
	}
	if c.Workers < 1 {
		return fmt.Errorf("workers must be at least 1")
	}
	if _, err := c.logLevel(); err != nil {
		return err
	}
	_, err := c.SyncConfig()
	return err
}

// validateSrc matches the kind of src against the root: a root without a
// trailing slash names one object and takes a single file, any other path
// root takes a directory.
func (c *Config) validateSrc() error {
	info, err := os.Stat(c.Src)
	if err != nil {
		return fmt.Errorf("src: %w", err)
	}
	if c.ObjectSpace {
		return nil
	}
	single := c.Root != "" && !strings.HasSuffix(c.Root, "/")
	switch {
	case single && !info.Mode().IsRegular():
		return fmt.Errorf("root %q names a single object, src must be a file", c.Root)
	case !single && !info.IsDir():
		return fmt.Errorf("src %q is not a directory, root must name the target object", c.Src)
	}
	return nil
}

// SyncConfig converts c into the engine configuration.
func (c *Config) SyncConfig() (sync.Config, error) {
	cfg := sync.Config{
		Addressing:     sync.AddressPath,
		Root:           c.Root,
		Checksum:       sync.ChecksumAlgorithm(c.Checksum),
		NoUpdate:       c.NoUpdate,
		Force:          c.Force,
		Retention:      c.Retention,
		RetentionDelay: c.RetentionDelay,
	}
	if c.ObjectSpace {
		cfg.Addressing = sync.AddressOpaque
		cfg.Root = ""
	}
	if c.SegmentSize != "" {
		n, err := humanize.ParseBytes(c.SegmentSize)
		if err != nil {
			return cfg, fmt.Errorf("segment size: %w", err)
		}
		cfg.SegmentSize = int(n)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func (c *Config) logLevel() (slog.Level, error) {
	var level slog.Level
	if c.LogLevel == "" {
		return slog.LevelInfo, nil
	}
	if err := level.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return level, fmt.Errorf("log level: %w", err)
	}
	return level, nil
}
