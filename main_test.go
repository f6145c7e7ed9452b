package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/sandeepkandula/objsync/sync"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func parse(t *testing.T, args ...string) (*Config, error) {
	t.Helper()
	cmd := newRootCmd()
	require.NoError(t, cmd.ParseFlags(args))
	return loadConfig(cmd, viper.New())
}

func TestLoadConfig_flags(t *testing.T) {
	src := t.TempDir()
	cfg, err := parse(t,
		"--src", src,
		"--bucket", "backups",
		"--endpoint", "http://localhost:9000",
		"--root", "/data/",
		"--target-checksum", "sha256",
		"--segment-size", "8MiB",
		"--no-update",
		"--include-retention-expiration",
		"--retention-delay-window", "30s",
		"--workers", "8",
	)
	require.NoError(t, err)

	assert.Equal(t, src, cfg.Src)
	assert.Equal(t, "backups", cfg.S3.Bucket)
	assert.Equal(t, "us-east-1", cfg.S3.Region)
	assert.Equal(t, "GLACIER_IR", cfg.S3.StorageClass)
	assert.Equal(t, "http://localhost:9000", cfg.S3.Endpoint)
	assert.Equal(t, 8, cfg.Workers)

	syncCfg, err := cfg.SyncConfig()
	require.NoError(t, err)
	assert.Equal(t, sync.AddressPath, syncCfg.Addressing)
	assert.Equal(t, "/data/", syncCfg.Root)
	assert.Equal(t, sync.ChecksumSHA256, syncCfg.Checksum)
	assert.Equal(t, 8*1024*1024, syncCfg.SegmentSize)
	assert.True(t, syncCfg.NoUpdate)
	assert.True(t, syncCfg.Retention)
	assert.Equal(t, 30*time.Second, syncCfg.RetentionDelay)
}

func TestLoadConfig_defaults(t *testing.T) {
	cfg, err := parse(t, "--src", t.TempDir(), "--bucket", "b")
	require.NoError(t, err)

	syncCfg, err := cfg.SyncConfig()
	require.NoError(t, err)
	assert.Equal(t, "/", syncCfg.Root)
	assert.Equal(t, sync.DefaultSegmentSize, syncCfg.SegmentSize)
	assert.Equal(t, sync.DefaultRetentionDelay, syncCfg.RetentionDelay)
	assert.Empty(t, string(syncCfg.Checksum))
}

func TestLoadConfig_objectSpace(t *testing.T) {
	cfg, err := parse(t, "--src", t.TempDir(), "--bucket", "b", "--object-space")
	require.NoError(t, err)

	syncCfg, err := cfg.SyncConfig()
	require.NoError(t, err)
	assert.Equal(t, sync.AddressOpaque, syncCfg.Addressing)
}

func TestLoadConfig_env(t *testing.T) {
	t.Setenv("OBJSYNC_S3_BUCKET", "from-env")
	t.Setenv("OBJSYNC_FORCE", "true")

	cfg, err := parse(t, "--src", t.TempDir())
	require.NoError(t, err)
	assert.Equal(t, "from-env", cfg.S3.Bucket)
	assert.True(t, cfg.Force)
}

func TestLoadConfig_file(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "objsync.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
src: `+dir+`
s3:
  bucket: from-file
  region: eu-west-1
  storage_class: STANDARD
target_checksum: MD5
`), 0644))

	cfg, err := parse(t, "--config", path)
	require.NoError(t, err)
	assert.Equal(t, "from-file", cfg.S3.Bucket)
	assert.Equal(t, "eu-west-1", cfg.S3.Region)
	assert.Equal(t, "STANDARD", cfg.S3.StorageClass)
	assert.Equal(t, "MD5", cfg.Checksum)
}

func TestLoadConfig_singleFile(t *testing.T) {
	file := filepath.Join(t.TempDir(), "report.pdf")
	require.NoError(t, os.WriteFile(file, []byte("%PDF"), 0644))

	cfg, err := parse(t, "--src", file, "--bucket", "b", "--root", "/reports/latest.pdf")
	require.NoError(t, err)

	syncCfg, err := cfg.SyncConfig()
	require.NoError(t, err)
	assert.Equal(t, "/reports/latest.pdf", syncCfg.Root)
}

func TestLoadConfig_invalid(t *testing.T) {
	src := t.TempDir()
	file := filepath.Join(src, "a.txt")
	require.NoError(t, os.WriteFile(file, []byte("a"), 0644))
	for name, args := range map[string][]string{
		"missing src":      {"--bucket", "b"},
		"missing bucket":   {"--src", src},
		"bad checksum":     {"--src", src, "--bucket", "b", "--target-checksum", "SHA0"},
		"bad segment size": {"--src", src, "--bucket", "b", "--segment-size", "lots"},
		"relative root":    {"--src", src, "--bucket", "b", "--root", "data/"},
		"root with ids":    {"--src", src, "--bucket", "b", "--object-space", "--root", "/data/"},
		"no workers":       {"--src", src, "--bucket", "b", "--workers", "0"},
		"bad log level":    {"--src", src, "--bucket", "b", "--log-level", "loud"},
		"missing src dir":  {"--src", filepath.Join(src, "missing"), "--bucket", "b"},
		"dir to object":    {"--src", src, "--bucket", "b", "--root", "/foo"},
		"file to dir root": {"--src", file, "--bucket", "b", "--root", "/data/"},
		"missing config":   {"--src", src, "--bucket", "b", "--config", filepath.Join(src, "nope.yaml")},
	} {
		_, err := parse(t, args...)
		assert.Error(t, err, name)
	}
}

func TestPrintSummary(t *testing.T) {
	timings := sync.NewTimings()
	timings.Record(sync.OpCreateObjectOnPath, 2*time.Millisecond, nil)
	timings.Record(sync.OpTotal, 3*time.Millisecond, nil)

	s := &sync.Summary{
		Actions:      map[sync.Action]int{sync.ActionCreated: 1200, sync.ActionUnchanged: 3},
		PolicyErrors: 1,
	}

	var buf bytes.Buffer
	printSummary(&buf, s, timings, time.Second)
	out := buf.String()

	assert.Contains(t, out, "1,203 objects in 1s")
	assert.Contains(t, out, "created")
	assert.Contains(t, out, "1,200")
	assert.Contains(t, out, "policy errors")
	assert.NotContains(t, out, "failed ")
	assert.Contains(t, out, "OPERATION")
	assert.Contains(t, out, sync.OpCreateObjectOnPath)
}
