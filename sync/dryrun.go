package sync

import (
	"context"
	"errors"
	"io"
	"log/slog"

	"github.com/google/uuid"
)

// DryRun wraps a Destination so that probes reach the real backend while
// writes are only logged.
type DryRun struct {
	Destination
}

// NewDryRun returns a dry-run view of dst.
func NewDryRun(dst Destination) *DryRun {
	return &DryRun{Destination: dst}
}

// MinSegmentSize reports the wrapped destination's minimum, so dry runs
// segment content the way a real run would.
func (d *DryRun) MinSegmentSize() int {
	if s, ok := d.Destination.(SegmentSizer); ok {
		return s.MinSegmentSize()
	}
	return 0
}

func (d *DryRun) Create(_ context.Context, req *CreateRequest) (Identity, error) {
	id := req.Identity
	if id.IsZero() {
		id = OpaqueIdentity("dry-run-" + uuid.NewString())
	}
	n, err := drain(req.Content)
	if err != nil {
		return Identity{}, err
	}
	slog.Info("dry-run", "op", "create", "target", id, "bytes", n, "checksum", req.Checksum)
	return id, nil
}

func (d *DryRun) Update(_ context.Context, req *UpdateRequest) error {
	n, err := drain(req.Content)
	if err != nil {
		return err
	}
	if req.Range != nil {
		slog.Info("dry-run", "op", "update", "target", req.Identity, "range", req.Range.String())
		return nil
	}
	slog.Info("dry-run", "op", "update", "target", req.Identity, "bytes", n)
	return nil
}

func (d *DryRun) SetUserMetadata(_ context.Context, id Identity, meta UserMetadata) error {
	slog.Info("dry-run", "op", "set-metadata", "target", id, "keys", len(meta))
	return nil
}

func (d *DryRun) SetACL(_ context.Context, id Identity, _ *ACL) error {
	slog.Info("dry-run", "op", "set-acl", "target", id)
	return nil
}

func (d *DryRun) Delete(_ context.Context, id Identity) error {
	slog.Info("dry-run", "op", "delete", "target", id)
	return nil
}

// drain consumes r so dry runs still read and checksum the source. Read
// failures are reported the way a real transfer reports them.
func drain(r io.Reader) (int64, error) {
	if r == nil {
		return 0, nil
	}
	n, err := io.Copy(io.Discard, r)
	var re *readError
	if err != nil && !errors.As(err, &re) {
		err = &readError{err}
	}
	return n, err
}
