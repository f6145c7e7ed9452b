package sync

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"
)

// Retention and expiration policy keys.
const (
	MetaRetentionEnable     = "user.maui.retentionEnable"
	MetaRetentionEnd        = "user.maui.retentionEnd"
	MetaRetentionStartDelay = "user.maui.retentionStartDelay"
	MetaExpirationEnable    = "user.maui.expirationEnable"
	MetaExpirationEnd       = "user.maui.expirationEnd"
)

// PolicyError is a retention/expiration failure. It is logged and reported
// but never fails the object.
type PolicyError struct {
	Target       Identity
	RetentionEnd time.Time
	Expiration   time.Time
	Err          error
}

func (e *PolicyError) Error() string {
	return fmt.Sprintf("set retention/expiration on %s: %v", e.Target, e.Err)
}

func (e *PolicyError) Unwrap() error { return e.Err }

// retentionMetadata builds the policy entries of obj. It is empty when the
// object has neither a retention end nor an expiration date.
func retentionMetadata(obj *SourceObject, delay time.Duration) UserMetadata {
	meta := UserMetadata{}
	if !obj.RetentionEnd.IsZero() {
		meta[MetaRetentionEnable] = MetaValue{Value: "true"}
		meta[MetaRetentionEnd] = MetaValue{Value: isoTime(obj.RetentionEnd)}
		meta[MetaRetentionStartDelay] = MetaValue{Value: strconv.FormatInt(int64(delay/time.Second), 10)}
	}
	if !obj.Expiration.IsZero() {
		meta[MetaExpirationEnable] = MetaValue{Value: "true"}
		meta[MetaExpirationEnd] = MetaValue{Value: isoTime(obj.Expiration)}
	}
	return meta
}

func isoTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format("2006-01-02T15:04:05Z")
}

// applyRetention sets the retention/expiration policy of obj on id when the
// feature is enabled. Failures of any kind are logged and returned as a
// *PolicyError for the caller to record.
func (r *Reconciler) applyRetention(ctx context.Context, obj *SourceObject, id Identity) error {
	if !r.cfg.Retention {
		return nil
	}
	entries := retentionMetadata(obj, r.cfg.RetentionDelay)
	if len(entries) == 0 {
		return nil
	}

	err := measureErr(r.rec, OpSetRetentionExpiration, func() error {
		return r.dst.SetUserMetadata(ctx, id, entries)
	})
	if err == nil {
		return nil
	}

	slog.Error("failed to set retention/expiration", policyAttrs(id, err,
		"retentionEnd", isoTime(obj.RetentionEnd),
		"expiration", isoTime(obj.Expiration))...)
	return &PolicyError{
		Target:       id,
		RetentionEnd: obj.RetentionEnd,
		Expiration:   obj.Expiration,
		Err:          err,
	}
}
