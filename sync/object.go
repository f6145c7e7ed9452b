package sync

import (
	"io"
	"time"
)

// SystemMetadata holds the source-side clocks and content type of an object.
type SystemMetadata struct {
	CTime       time.Time // metadata change time; zero if the source does not track it
	MTime       time.Time // content modification time
	ContentType string
}

// changeTime returns the clock used to detect metadata-only changes.
// Sources without a ctime fall back to mtime.
func (m SystemMetadata) changeTime() time.Time {
	if m.CTime.IsZero() {
		return m.MTime
	}
	return m.CTime
}

// MetaValue is a single user metadata value.
type MetaValue struct {
	Value    string
	Listable bool
}

// UserMetadata maps user metadata keys to values. Order is irrelevant.
type UserMetadata map[string]MetaValue

// Permission is an access level granted by an ACL entry.
type Permission string

const (
	PermissionNone        Permission = "NONE"
	PermissionRead        Permission = "READ"
	PermissionWrite       Permission = "WRITE"
	PermissionFullControl Permission = "FULL_CONTROL"
)

// ACL is the access control list of an object in the target's native model.
type ACL struct {
	Users  map[string]Permission
	Groups map[string]Permission
}

// Metadata exposes a source object's metadata model. Sources whose metadata
// is native to the target return their ACL from NativeACL; generic sources
// report false and no ACL is pushed.
type Metadata interface {
	System() SystemMetadata
	UserMetadata() UserMetadata
	NativeACL() (*ACL, bool)
}

// GenericMetadata is the metadata of sources with a foreign model. User
// metadata is carried as plain key/value pairs and never listable.
type GenericMetadata struct {
	Sys  SystemMetadata
	User map[string]string
}

func (m *GenericMetadata) System() SystemMetadata { return m.Sys }

func (m *GenericMetadata) UserMetadata() UserMetadata {
	out := make(UserMetadata, len(m.User))
	for k, v := range m.User {
		out[k] = MetaValue{Value: v}
	}
	return out
}

func (m *GenericMetadata) NativeACL() (*ACL, bool) { return nil, false }

// NativeMetadata is the metadata of sources sharing the target's model.
type NativeMetadata struct {
	Sys  SystemMetadata
	User UserMetadata
	ACL  *ACL
}

func (m *NativeMetadata) System() SystemMetadata     { return m.Sys }
func (m *NativeMetadata) UserMetadata() UserMetadata { return m.User }
func (m *NativeMetadata) NativeACL() (*ACL, bool)    { return m.ACL, true }

// Opener opens the content stream of a source object.
type Opener func() (io.ReadCloser, error)

// SourceObject is one object handed to the reconciler by the sync pipeline.
type SourceObject struct {
	RelativePath string
	Container    bool   // directory-like object with children
	Content      Opener // nil when the object carries no data
	Size         int64
	Metadata     Metadata

	RetentionEnd time.Time // zero when no retention is set
	Expiration   time.Time // zero when no expiration is set

	targetID string
}

// HasContent reports whether the object carries a content stream.
func (o *SourceObject) HasContent() bool { return o.Content != nil }

// TargetID returns the destination identifier recorded for this object.
func (o *SourceObject) TargetID() string { return o.targetID }

// SetTargetID records the destination identifier, e.g. from a prior run.
func (o *SourceObject) SetTargetID(id string) { o.targetID = id }

func (o *SourceObject) metadata() Metadata {
	if o.Metadata == nil {
		return &GenericMetadata{}
	}
	return o.Metadata
}
