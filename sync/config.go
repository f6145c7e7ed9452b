package sync

import (
	"fmt"
	"strings"
	"time"
)

const (
	// DefaultSegmentSize is the chunk size of checksummed transfers.
	DefaultSegmentSize = 1024 * 1024
	// DefaultRetentionDelay is the minimum retention start delay window.
	DefaultRetentionDelay = time.Second
)

// Config is the read-only configuration of a reconciliation run.
type Config struct {
	Addressing     AddressingMode
	Root           string            // destination root; path addressing only
	Checksum       ChecksumAlgorithm // empty disables segmented checksummed transfers
	SegmentSize    int
	NoUpdate       bool
	Force          bool
	Retention      bool // apply retention/expiration policy after writes
	RetentionDelay time.Duration
}

// Validate checks the configuration and fills in defaults.
func (c *Config) Validate() error {
	switch c.Addressing {
	case "":
		c.Addressing = AddressPath
	case AddressPath, AddressOpaque:
	default:
		return fmt.Errorf("invalid addressing mode %q", c.Addressing)
	}
	if c.Addressing == AddressPath {
		if c.Root == "" {
			c.Root = "/"
		}
		if !strings.HasPrefix(c.Root, "/") {
			return fmt.Errorf("destination root %q must start with /", c.Root)
		}
	}
	alg, err := ParseChecksumAlgorithm(string(c.Checksum))
	if err != nil {
		return err
	}
	c.Checksum = alg
	if c.SegmentSize < 0 {
		return fmt.Errorf("segment size must not be negative")
	}
	if c.SegmentSize == 0 {
		c.SegmentSize = DefaultSegmentSize
	}
	if c.RetentionDelay < 0 {
		return fmt.Errorf("retention delay window must not be negative")
	}
	if c.RetentionDelay == 0 {
		c.RetentionDelay = DefaultRetentionDelay
	}
	return nil
}
