package sync

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestDecide(t *testing.T) {
	older := t0.Add(-time.Hour)
	newer := t0.Add(time.Hour)
	found := func(mtime, ctime time.Time) Probe {
		return Probe{Found: true, Meta: ObjectMeta{ModTime: mtime, ChangeTime: ctime}}
	}

	tests := []struct {
		name      string
		src       SystemMetadata
		target    Probe
		container bool
		cfg       Config
		want      Plan
	}{
		{"missing", SystemMetadata{MTime: t0}, Probe{}, false, Config{}, PlanCreate},
		{"missing with no-update", SystemMetadata{MTime: t0}, Probe{}, false, Config{NoUpdate: true}, PlanCreate},
		{"missing container", SystemMetadata{}, Probe{}, true, Config{}, PlanCreate},
		{"content newer", SystemMetadata{MTime: newer}, found(t0, t0), false, Config{}, PlanUpdateContent},
		{"content equal", SystemMetadata{MTime: t0}, found(t0, t0), false, Config{}, PlanNoop},
		{"content older", SystemMetadata{MTime: older}, found(t0, t0), false, Config{}, PlanNoop},
		{"ctime newer", SystemMetadata{MTime: t0, CTime: newer}, found(t0, t0), false, Config{}, PlanUpdateMetadata},
		{"mtime wins over ctime", SystemMetadata{MTime: newer, CTime: newer}, found(t0, t0), false, Config{}, PlanUpdateContent},
		{"ctime falls back to mtime", SystemMetadata{MTime: newer}, found(newer, t0), false, Config{}, PlanUpdateMetadata},
		{"unknown target clock", SystemMetadata{MTime: newer}, found(time.Time{}, time.Time{}), false, Config{}, PlanNoop},
		{"force", SystemMetadata{MTime: t0}, found(t0, t0), false, Config{Force: true}, PlanUpdateContent},
		{"no-update", SystemMetadata{MTime: newer}, found(t0, t0), false, Config{NoUpdate: true}, PlanSkip},
		{"no-update noop", SystemMetadata{MTime: t0}, found(t0, t0), false, Config{NoUpdate: true}, PlanNoop},
		{"container ctime newer", SystemMetadata{CTime: newer}, found(t0, t0), true, Config{}, PlanUpdateMetadata},
		{"container mtime only", SystemMetadata{MTime: newer}, found(newer, t0), true, Config{}, PlanUpdateMetadata},
		{"container unchanged", SystemMetadata{CTime: t0}, found(t0, t0), true, Config{}, PlanNoop},
		{"container force", SystemMetadata{CTime: t0}, found(t0, t0), true, Config{Force: true}, PlanUpdateMetadata},
		{"container no-update", SystemMetadata{CTime: newer}, found(t0, t0), true, Config{NoUpdate: true}, PlanSkip},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Decide(tt.src, tt.target, tt.container, &tt.cfg))
		})
	}
}

func TestPlanString(t *testing.T) {
	assert.Equal(t, "create", PlanCreate.String())
	assert.Equal(t, "update-content", PlanUpdateContent.String())
	assert.Equal(t, "update-metadata", PlanUpdateMetadata.String())
	assert.Equal(t, "skip", PlanSkip.String())
	assert.Equal(t, "noop", PlanNoop.String())
}
