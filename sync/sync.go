package sync

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	gosync "sync"

	"golang.org/x/sync/errgroup"
)

// Source enumerates the objects of a sync run.
type Source interface {
	Walk(ctx context.Context, fn func(*SourceObject) error) error
}

// Tracker persists the target identity resolved for each source path so a
// later run can find objects it created in an opaque object space.
type Tracker interface {
	TargetID(ctx context.Context, source string) (string, error)
	SetTargetID(ctx context.Context, source, target string) error
}

// Lister is implemented by destinations that can enumerate the
// path-addressed objects under a root.
type Lister interface {
	List(ctx context.Context, root Identity) ([]Identity, error)
}

// Options configures a sync run.
type Options struct {
	Src      Source
	Dst      Destination
	Config   Config
	Workers  int      // objects reconciled concurrently; defaults to 1
	Tracker  Tracker  // optional
	Recorder Recorder // optional
	DryRun   bool     // if true, log writes without making changes
	Delete   bool     // if true, remove destination objects absent from Src
}

// Summary holds the outcome of a sync run.
type Summary struct {
	mu           gosync.Mutex
	Actions      map[Action]int
	Deleted      int
	PolicyErrors int
	Errors       []error
}

// Failed returns the number of objects that could not be synced.
func (s *Summary) Failed() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.Errors)
}

// Total returns the number of objects processed.
func (s *Summary) Total() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := len(s.Errors)
	for _, c := range s.Actions {
		n += c
	}
	return n
}

func (s *Summary) add(res *Result, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err != nil {
		s.Errors = append(s.Errors, err)
		return
	}
	s.Actions[res.Action]++
	s.PolicyErrors += len(res.PolicyErrs)
}

// Sync reconciles every object of opts.Src against opts.Dst. A failing
// object is recorded in the summary and the run continues; only source
// enumeration failures and cancellation end the run early.
func Sync(ctx context.Context, opts Options) (*Summary, error) {
	if opts.Src == nil || opts.Dst == nil {
		return nil, fmt.Errorf("source and destination are required")
	}
	dst := opts.Dst
	if opts.DryRun {
		dst = NewDryRun(dst)
	}
	r, err := NewReconciler(dst, opts.Config, opts.Recorder)
	if err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	var lister Lister
	if opts.Delete {
		if lister, err = deleteLister(opts.Dst, r.cfg); err != nil {
			return nil, err
		}
	}

	workers := opts.Workers
	if workers < 1 {
		workers = 1
	}

	summary := &Summary{Actions: make(map[Action]int)}
	seen := make(map[string]bool)
	single := r.cfg.Addressing == AddressPath && !strings.HasSuffix(r.cfg.Root, "/")
	walked := 0
	eg, egCtx := errgroup.WithContext(ctx)
	eg.SetLimit(workers)

	walkErr := opts.Src.Walk(egCtx, func(obj *SourceObject) error {
		if err := egCtx.Err(); err != nil {
			return err
		}
		if single {
			if obj.Container || walked > 0 {
				return fmt.Errorf("root %q names a single object, source must be one file", r.cfg.Root)
			}
			walked++
		}
		if lister != nil {
			seen[Resolve(r.cfg.Root, obj.RelativePath, obj.Container).Value] = true
		}
		eg.Go(func() error {
			res, err := syncOne(egCtx, r, opts, obj)
			summary.add(res, err)
			return nil
		})
		return nil
	})
	eg.Wait()

	if walkErr != nil {
		return summary, fmt.Errorf("walk source: %w", walkErr)
	}
	if err := ctx.Err(); err != nil {
		return summary, err
	}
	if lister != nil {
		if err := deleteExtras(ctx, lister, dst, r, seen, summary); err != nil {
			return summary, err
		}
	}
	return summary, nil
}

func deleteLister(dst Destination, cfg Config) (Lister, error) {
	lister, ok := dst.(Lister)
	if !ok {
		return nil, fmt.Errorf("delete: destination cannot list objects")
	}
	if cfg.Addressing != AddressPath || !strings.HasSuffix(cfg.Root, "/") {
		return nil, fmt.Errorf("delete: requires path addressing under a directory root")
	}
	return lister, nil
}

// deleteExtras removes objects under the root that the source walk did not
// produce. It only runs after a complete walk.
func deleteExtras(ctx context.Context, lister Lister, dst Destination, r *Reconciler, seen map[string]bool, summary *Summary) error {
	ids, err := lister.List(ctx, PathIdentity(r.cfg.Root))
	if err != nil {
		return err
	}

	for _, id := range ids {
		if seen[id.Value] || id.IsRoot() || id.Value == r.cfg.Root {
			continue
		}
		slog.Info("sync", "op", "DELETE", "target", id)
		if err := measureErr(r.rec, OpDeleteObject, func() error {
			return dst.Delete(ctx, id)
		}); err != nil {
			summary.Errors = append(summary.Errors, fmt.Errorf("delete %s: %w", id, err))
			continue
		}
		summary.Deleted++
	}
	return nil
}

func syncOne(ctx context.Context, r *Reconciler, opts Options, obj *SourceObject) (*Result, error) {
	if opts.Tracker != nil && obj.TargetID() == "" && r.cfg.Addressing == AddressOpaque {
		id, err := opts.Tracker.TargetID(ctx, obj.RelativePath)
		if err != nil {
			return nil, newError(KindTransport, obj, Identity{}, fmt.Errorf("journal lookup: %w", err))
		}
		obj.SetTargetID(id)
	}

	res, err := r.Reconcile(ctx, obj)
	if err != nil {
		slog.Error("sync", "source", obj.RelativePath, "error", err)
		return res, err
	}

	if opts.Tracker != nil && !opts.DryRun && !res.Target.IsZero() && !res.Target.IsRoot() {
		if err := opts.Tracker.SetTargetID(ctx, obj.RelativePath, res.Target.String()); err != nil {
			return res, newError(KindTransport, obj, res.Target, fmt.Errorf("journal record: %w", err))
		}
	}
	return res, nil
}
