package sync

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfig_defaults(t *testing.T) {
	cfg := Config{Checksum: "sha1"}
	require.NoError(t, cfg.Validate())
	assert.Equal(t, AddressPath, cfg.Addressing)
	assert.Equal(t, "/", cfg.Root)
	assert.Equal(t, ChecksumSHA1, cfg.Checksum)
	assert.Equal(t, DefaultSegmentSize, cfg.SegmentSize)
	assert.Equal(t, DefaultRetentionDelay, cfg.RetentionDelay)
}

func TestConfig_invalid(t *testing.T) {
	for name, cfg := range map[string]Config{
		"addressing": {Addressing: "tree"},
		"root":       {Root: "data/"},
		"checksum":   {Checksum: "SHA0"},
		"segment":    {SegmentSize: -1},
		"retention":  {RetentionDelay: -1},
	} {
		assert.Error(t, cfg.Validate(), name)
	}
}

func TestConfig_opaqueIgnoresRoot(t *testing.T) {
	cfg := Config{Addressing: AddressOpaque, Root: "relative"}
	assert.NoError(t, cfg.Validate())
}
