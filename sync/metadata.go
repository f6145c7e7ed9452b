package sync

import (
	"context"
	"errors"
	"log/slog"
)

// pushMetadata sends user metadata and the ACL to an existing object without
// touching content. Empty metadata and absent ACLs are skipped, never
// cleared. ACLs are only pushed for sources sharing the target's metadata
// model; an ACL failure is logged and recorded on res but does not fail the
// object. It reports whether any call was sent.
func (r *Reconciler) pushMetadata(ctx context.Context, obj *SourceObject, id Identity, res *Result) (bool, error) {
	meta := obj.metadata()
	pushed := false

	if um := meta.UserMetadata(); len(um) > 0 {
		slog.Debug("sync", "op", "UPDATE_META", "target", id, "keys", len(um))
		if err := measureErr(r.rec, OpSetUserMeta, func() error {
			return r.dst.SetUserMetadata(ctx, id, um)
		}); err != nil {
			return true, err
		}
		pushed = true
	}

	acl, native := meta.NativeACL()
	if !native || acl == nil {
		return pushed, nil
	}
	slog.Debug("sync", "op", "UPDATE_ACL", "target", id)
	if err := measureErr(r.rec, OpSetACL, func() error {
		return r.dst.SetACL(ctx, id, acl)
	}); err != nil {
		slog.Error("failed to set ACL", policyAttrs(id, err)...)
		res.PolicyErrs = append(res.PolicyErrs, err)
	}
	return true, nil
}

// policyAttrs builds the log attributes of a best-effort policy failure,
// including the backend error code and HTTP status when the error has them.
func policyAttrs(id Identity, err error, extra ...any) []any {
	attrs := append([]any{"target", id}, extra...)
	var coded CodedError
	if errors.As(err, &coded) {
		attrs = append(attrs, "code", coded.ErrorCode())
	}
	var httpErr HTTPError
	if errors.As(err, &httpErr) {
		attrs = append(attrs, "http", httpErr.HTTPStatusCode())
	}
	return append(attrs, "error", err)
}
