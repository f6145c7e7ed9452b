package sync

import (
	"crypto/md5"
	"crypto/sha1"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"hash"
	"strings"
)

// ChecksumAlgorithm names a content checksum algorithm.
type ChecksumAlgorithm string

const (
	ChecksumMD5    ChecksumAlgorithm = "MD5"
	ChecksumSHA1   ChecksumAlgorithm = "SHA1"
	ChecksumSHA256 ChecksumAlgorithm = "SHA256"
)

// ParseChecksumAlgorithm validates an algorithm name. The empty string means
// no checksum.
func ParseChecksumAlgorithm(name string) (ChecksumAlgorithm, error) {
	switch alg := ChecksumAlgorithm(strings.ToUpper(name)); alg {
	case "", ChecksumMD5, ChecksumSHA1, ChecksumSHA256:
		return alg, nil
	default:
		return "", fmt.Errorf("unsupported checksum algorithm %q", name)
	}
}

// RunningChecksum is a streaming checksum over an object's content. It must
// be fed chunks in offset order.
type RunningChecksum struct {
	alg    ChecksumAlgorithm
	h      hash.Hash
	offset int64
}

// NewRunningChecksum starts a checksum for the given algorithm.
func NewRunningChecksum(alg ChecksumAlgorithm) (*RunningChecksum, error) {
	var h hash.Hash
	switch alg {
	case ChecksumMD5:
		h = md5.New()
	case ChecksumSHA1:
		h = sha1.New()
	case ChecksumSHA256:
		h = sha256.New()
	default:
		return nil, fmt.Errorf("unsupported checksum algorithm %q", alg)
	}
	return &RunningChecksum{alg: alg, h: h}, nil
}

// Update feeds the next chunk.
func (c *RunningChecksum) Update(p []byte) {
	c.h.Write(p)
	c.offset += int64(len(p))
}

// Algorithm returns the checksum algorithm.
func (c *RunningChecksum) Algorithm() ChecksumAlgorithm { return c.alg }

// Offset returns the number of bytes fed so far.
func (c *RunningChecksum) Offset() int64 { return c.offset }

// Sum returns the checksum of everything fed so far. Feeding continues from
// the same state afterwards.
func (c *RunningChecksum) Sum() *Checksum {
	return &Checksum{
		Algorithm: c.alg,
		Offset:    c.offset,
		Value:     hex.EncodeToString(c.h.Sum(nil)),
	}
}

// Checksum is a point-in-time value of a RunningChecksum.
type Checksum struct {
	Algorithm ChecksumAlgorithm
	Offset    int64
	Value     string
}

// String renders the checksum as ALG/offset/digest.
func (c *Checksum) String() string {
	return fmt.Sprintf("%s/%d/%s", c.Algorithm, c.Offset, c.Value)
}
