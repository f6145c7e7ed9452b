package sync

import (
	"log/slog"
	"sort"
	gosync "sync"
	"time"
)

// Timed operations.
const (
	OpGetAllMeta                    = "GetAllMeta"
	OpGetSystemMeta                 = "GetSystemMeta"
	OpCreateObject                  = "CreateObject"
	OpCreateObjectOnPath            = "CreateObjectOnPath"
	OpCreateObjectFromSegment       = "CreateObjectFromSegment"
	OpCreateObjectFromSegmentOnPath = "CreateObjectFromSegmentOnPath"
	OpUpdateObjectFromSegment       = "UpdateObjectFromSegment"
	OpCreateObjectFromStream        = "CreateObjectFromStream"
	OpCreateObjectFromStreamOnPath  = "CreateObjectFromStreamOnPath"
	OpUpdateObjectFromStream        = "UpdateObjectFromStream"
	OpDeleteObject                  = "DeleteObject"
	OpSetUserMeta                   = "SetUserMeta"
	OpSetACL                        = "SetAcl"
	OpSetRetentionExpiration        = "SetRetentionExpiration"
	OpTotal                         = "TotalTime"
)

// Recorder observes timed operations.
type Recorder interface {
	Record(op string, d time.Duration, err error)
}

// measure runs fn as the named operation and records its outcome. Errors are
// returned unchanged, tagged with the operation name.
func measure[T any](rec Recorder, op string, fn func() (T, error)) (T, error) {
	start := time.Now()
	v, err := fn()
	if rec != nil {
		rec.Record(op, time.Since(start), err)
	}
	if err != nil {
		return v, &opError{op: op, err: err}
	}
	return v, nil
}

func measureErr(rec Recorder, op string, fn func() error) error {
	_, err := measure(rec, op, func() (struct{}, error) {
		return struct{}{}, fn()
	})
	return err
}

// OpStats aggregates the calls of one operation.
type OpStats struct {
	Op       string
	Count    int64
	Failures int64
	Total    time.Duration
}

// Average returns the mean duration of a call.
func (s OpStats) Average() time.Duration {
	if s.Count == 0 {
		return 0
	}
	return s.Total / time.Duration(s.Count)
}

// Timings is a Recorder that keeps per-operation totals. It is safe for
// concurrent use.
type Timings struct {
	mu  gosync.Mutex
	ops map[string]*OpStats
}

func NewTimings() *Timings {
	return &Timings{ops: make(map[string]*OpStats)}
}

func (t *Timings) Record(op string, d time.Duration, err error) {
	if err != nil {
		slog.Debug("timer", "op", op, "duration", d, "error", err)
	} else {
		slog.Debug("timer", "op", op, "duration", d)
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	s, ok := t.ops[op]
	if !ok {
		s = &OpStats{Op: op}
		t.ops[op] = s
	}
	s.Count++
	s.Total += d
	if err != nil {
		s.Failures++
	}
}

// Snapshot returns the stats of every operation seen, sorted by name.
func (t *Timings) Snapshot() []OpStats {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]OpStats, 0, len(t.ops))
	for _, s := range t.ops {
		out = append(out, *s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Op < out[j].Op })
	return out
}
