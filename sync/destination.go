package sync

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"
)

// ErrNotFound is returned by Destination probes when the object does not exist.
var ErrNotFound = errors.New("object not found")

// ObjectMeta holds metadata about a stored object.
type ObjectMeta struct {
	Size        int64
	ModTime     time.Time // last content write
	ChangeTime  time.Time // last write of any kind
	ContentType string
	Metadata    map[string]string
}

// Range is an inclusive byte range within an object.
type Range struct {
	Start int64
	End   int64
}

func (r Range) String() string { return fmt.Sprintf("bytes=%d-%d", r.Start, r.End) }

// CreateRequest describes a new object. A zero Identity asks the destination
// to assign one; Content may be nil for an empty object.
type CreateRequest struct {
	Identity     Identity
	Content      io.Reader
	Length       int64 // -1 when unknown
	ContentType  string
	ACL          *ACL
	UserMetadata UserMetadata
	Checksum     *Checksum
}

// UpdateRequest rewrites content of an existing object. When Range is set
// the content is written at that byte range; otherwise it replaces the object.
type UpdateRequest struct {
	Identity     Identity
	Content      io.Reader
	Length       int64
	Range        *Range
	ContentType  string
	ACL          *ACL
	UserMetadata UserMetadata
	Checksum     *Checksum
}

// Destination is a write target for synced objects.
type Destination interface {
	// Stat returns metadata for an existing object, or ErrNotFound if absent.
	Stat(ctx context.Context, id Identity) (*ObjectMeta, error)
	// SystemMetadata returns the system metadata map (ctime, mtime, size) of an
	// object, or ErrNotFound if absent.
	SystemMetadata(ctx context.Context, id Identity) (map[string]string, error)
	// Create writes a new object and returns its identity.
	Create(ctx context.Context, req *CreateRequest) (Identity, error)
	// Update rewrites the content of an existing object.
	Update(ctx context.Context, req *UpdateRequest) error
	// SetUserMetadata adds or replaces the given keys on an object.
	SetUserMetadata(ctx context.Context, id Identity, meta UserMetadata) error
	// SetACL replaces the access control list of an object.
	SetACL(ctx context.Context, id Identity, acl *ACL) error
	// Delete removes an object.
	Delete(ctx context.Context, id Identity) error
}

// SegmentSizer is implemented by destinations that cannot accept ranged
// writes smaller than a minimum segment size.
type SegmentSizer interface {
	MinSegmentSize() int
}

// Probe is the outcome of looking an object up on the destination.
type Probe struct {
	Found bool
	Meta  ObjectMeta
}

// CodedError is implemented by destination errors that carry a
// backend-specific error code.
type CodedError interface {
	ErrorCode() string
}

// HTTPError is implemented by destination errors that carry an HTTP status.
type HTTPError interface {
	HTTPStatusCode() int
}

// parseTime parses an ISO-8601 timestamp, returning the zero time on failure.
func parseTime(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}
	}
	return t
}

// formatTime formats t the way system metadata maps carry timestamps.
func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}
