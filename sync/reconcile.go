package sync

import (
	"context"
	"errors"
	"log/slog"
	"time"
)

// Action is what reconciliation did to an object.
type Action string

const (
	ActionCreated         Action = "created"
	ActionUpdated         Action = "updated"
	ActionMetadataUpdated Action = "metadata-updated"
	ActionUnchanged       Action = "unchanged"
	ActionSkipped         Action = "skipped"
)

// Result is the outcome of reconciling one object.
type Result struct {
	Source string
	Target Identity
	Plan   Plan
	Action Action
	Reason string
	// PolicyErrs holds best-effort failures (ACL, retention) that did not
	// fail the object.
	PolicyErrs []error
}

// Reconciler brings destination objects in line with their sources. It holds
// no per-object state and is safe for concurrent use on distinct objects.
type Reconciler struct {
	dst         Destination
	cfg         Config
	rec         Recorder
	segmentSize int
}

// NewReconciler validates cfg and returns a Reconciler writing to dst. rec
// may be nil.
func NewReconciler(dst Destination, cfg Config, rec Recorder) (*Reconciler, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	size := cfg.SegmentSize
	if s, ok := dst.(SegmentSizer); ok && s.MinSegmentSize() > size {
		size = s.MinSegmentSize()
	}
	return &Reconciler{dst: dst, cfg: cfg, rec: rec, segmentSize: size}, nil
}

// Reconcile reconciles obj against the destination. Failures are returned as
// *Error; the resolved target identity is recorded on obj.
func (r *Reconciler) Reconcile(ctx context.Context, obj *SourceObject) (res *Result, err error) {
	res = &Result{Source: obj.RelativePath}

	var target Identity
	if r.cfg.Addressing == AddressPath {
		target = Resolve(r.cfg.Root, obj.RelativePath, obj.Container)
		if target.IsRoot() {
			slog.Debug("sync", "op", "SKIPPED", "reason", "namespace root", "path", obj.RelativePath)
			res.Target = target
			res.Action = ActionSkipped
			res.Reason = "namespace root"
			return res, nil
		}
	}

	start := time.Now()
	defer func() {
		if r.rec != nil {
			r.rec.Record(OpTotal, time.Since(start), err)
		}
	}()

	if target.IsPath() {
		obj.SetTargetID(target.String())
		res.Target = target
		err = r.reconcilePath(ctx, obj, target, res)
	} else {
		err = r.reconcileOpaque(ctx, obj, res)
	}
	if err != nil {
		return res, asError(obj, res.Target, err)
	}

	slog.Debug("sync", "op", res.Action, "source", obj.RelativePath, "target", res.Target)
	return res, nil
}

func (r *Reconciler) reconcilePath(ctx context.Context, obj *SourceObject, id Identity, res *Result) error {
	probe, err := r.probe(ctx, id)
	if err != nil {
		return err
	}
	res.Plan = Decide(obj.metadata().System(), probe, id.IsDirectory(), &r.cfg)
	return r.apply(ctx, obj, id, res)
}

func (r *Reconciler) reconcileOpaque(ctx context.Context, obj *SourceObject, res *Result) error {
	recorded := obj.TargetID()
	if recorded == "" {
		res.Plan = PlanCreate
		return r.apply(ctx, obj, Identity{}, res)
	}

	id := OpaqueIdentity(recorded)
	res.Target = id
	probe, err := r.probe(ctx, id)
	if err != nil {
		return err
	}
	if !probe.Found {
		return newError(KindValidation, obj, id, ErrTargetIDNotFound)
	}
	res.Plan = Decide(obj.metadata().System(), probe, false, &r.cfg)
	return r.apply(ctx, obj, id, res)
}

// probe looks id up on the destination. Not-found is a valid outcome.
// Directories are probed through their system metadata.
func (r *Reconciler) probe(ctx context.Context, id Identity) (Probe, error) {
	if id.IsDirectory() {
		sys, err := measure(r.rec, OpGetSystemMeta, func() (map[string]string, error) {
			return r.dst.SystemMetadata(ctx, id)
		})
		if errors.Is(err, ErrNotFound) {
			return Probe{}, nil
		}
		if err != nil {
			return Probe{}, err
		}
		return Probe{Found: true, Meta: ObjectMeta{
			ModTime:    parseTime(sys["mtime"]),
			ChangeTime: parseTime(sys["ctime"]),
		}}, nil
	}

	meta, err := measure(r.rec, OpGetAllMeta, func() (*ObjectMeta, error) {
		return r.dst.Stat(ctx, id)
	})
	if errors.Is(err, ErrNotFound) {
		return Probe{}, nil
	}
	if err != nil {
		return Probe{}, err
	}
	return Probe{Found: true, Meta: *meta}, nil
}

// apply executes res.Plan. Any successful write is followed by the
// retention policy step.
func (r *Reconciler) apply(ctx context.Context, obj *SourceObject, id Identity, res *Result) error {
	switch res.Plan {
	case PlanNoop:
		slog.Debug("sync", "op", "UNCHANGED", "source", obj.RelativePath, "target", id)
		res.Action = ActionUnchanged
		return nil

	case PlanSkip:
		slog.Debug("sync", "op", "SKIPPED", "reason", "updates disabled", "source", obj.RelativePath, "target", id)
		res.Action = ActionSkipped
		res.Reason = "updates disabled"
		return nil

	case PlanCreate:
		created, err := r.create(ctx, obj, id)
		if err != nil {
			return err
		}
		id = created
		obj.SetTargetID(id.String())
		res.Target = id
		res.Action = ActionCreated

	case PlanUpdateContent:
		if !obj.HasContent() {
			if err := r.updateMetadata(ctx, obj, id, res); err != nil {
				return err
			}
			break
		}
		if err := r.updateContent(ctx, obj, id); err != nil {
			return err
		}
		res.Action = ActionUpdated

	case PlanUpdateMetadata:
		if err := r.updateMetadata(ctx, obj, id, res); err != nil {
			return err
		}
	}
	if res.Action == ActionUnchanged {
		return nil
	}

	if err := r.applyRetention(ctx, obj, id); err != nil {
		res.PolicyErrs = append(res.PolicyErrs, err)
	}
	return nil
}

// updateMetadata pushes metadata to an existing object. When the source has
// nothing to push the object is reported unchanged.
func (r *Reconciler) updateMetadata(ctx context.Context, obj *SourceObject, id Identity, res *Result) error {
	pushed, err := r.pushMetadata(ctx, obj, id, res)
	if err != nil {
		return err
	}
	if pushed {
		res.Action = ActionMetadataUpdated
	} else {
		slog.Debug("sync", "op", "UNCHANGED", "reason", "no metadata to push", "source", obj.RelativePath, "target", id)
		res.Action = ActionUnchanged
	}
	return nil
}
