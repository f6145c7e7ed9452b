package sync

import (
	"crypto/sha256"
	"encoding/hex"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseChecksumAlgorithm(t *testing.T) {
	for _, name := range []string{"", "md5", "SHA1", "sha256"} {
		_, err := ParseChecksumAlgorithm(name)
		assert.NoError(t, err, name)
	}
	_, err := ParseChecksumAlgorithm("SHA0")
	assert.Error(t, err)
}

func TestRunningChecksum(t *testing.T) {
	ck, err := NewRunningChecksum(ChecksumSHA256)
	require.NoError(t, err)

	ck.Update([]byte("hello "))
	first := ck.Sum()
	ck.Update([]byte("world"))
	final := ck.Sum()

	assert.Equal(t, int64(6), first.Offset)
	assert.Equal(t, int64(11), final.Offset)
	assert.Equal(t, int64(11), ck.Offset())
	assert.Equal(t, ChecksumSHA256, ck.Algorithm())

	want := sha256.Sum256([]byte("hello world"))
	assert.Equal(t, hex.EncodeToString(want[:]), final.Value)
	assert.NotEqual(t, first.Value, final.Value)
	assert.Equal(t, "SHA256/11/"+final.Value, final.String())
}

func TestNewRunningChecksum_unsupported(t *testing.T) {
	_, err := NewRunningChecksum("CRC32")
	assert.Error(t, err)
}
