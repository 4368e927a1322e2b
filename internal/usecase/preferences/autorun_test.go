package preferences

import (
	"testing"
	"time"

	"carvana-workflows/internal/domain/entity"
	"carvana-workflows/internal/infrastructure/logger"
	"carvana-workflows/internal/infrastructure/store"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	t0   = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	href = "https://www.carvana.com/vehicle/123"
)

func lastRunAt(href string, at time.Time) *entity.LastRun {
	return &entity.LastRun{Href: href, At: at.UnixMilli()}
}

func TestShouldAutoRun(t *testing.T) {
	tests := []struct {
		name  string
		prefs entity.RunPrefs
		opts  AutoRunOptions
		want  bool
	}{
		{"auto off", entity.RunPrefs{Repeat: true}, AutoRunOptions{Now: t0, Force: true}, false},
		{"forced", entity.RunPrefs{Auto: true, LastRun: lastRunAt(href, t0)}, AutoRunOptions{Now: t0, Force: true}, true},
		{"never ran", entity.RunPrefs{Auto: true}, AutoRunOptions{Now: t0}, true},
		{"href changed", entity.RunPrefs{Auto: true, LastRun: lastRunAt(href+"?b", t0)}, AutoRunOptions{Now: t0}, true},
		{"same href no repeat", entity.RunPrefs{Auto: true, LastRun: lastRunAt(href, t0)}, AutoRunOptions{Now: t0.Add(time.Hour)}, false},
		{"repeat inside cooldown", entity.RunPrefs{Auto: true, Repeat: true, LastRun: lastRunAt(href, t0)}, AutoRunOptions{Now: t0.Add(4999 * time.Millisecond)}, false},
		{"repeat at cooldown", entity.RunPrefs{Auto: true, Repeat: true, LastRun: lastRunAt(href, t0)}, AutoRunOptions{Now: t0.Add(AutoRepeatMinInterval)}, true},
		{"custom interval", entity.RunPrefs{Auto: true, Repeat: true, LastRun: lastRunAt(href, t0)}, AutoRunOptions{Now: t0.Add(time.Second), MinInterval: time.Second}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ShouldAutoRun(tt.prefs, href, tt.opts))
		})
	}
}

func TestShouldAutoRun_Properties(t *testing.T) {
	nows := []time.Time{t0.Add(-time.Hour), t0, t0.Add(time.Second), t0.Add(5 * time.Second), t0.Add(24 * time.Hour)}
	lastRuns := []*entity.LastRun{nil, lastRunAt(href, t0), lastRunAt("https://elsewhere", t0)}

	for _, now := range nows {
		for _, lr := range lastRuns {
			for _, force := range []bool{false, true} {
				for _, repeat := range []bool{false, true} {
					off := entity.RunPrefs{Auto: false, Repeat: repeat, LastRun: lr}
					assert.False(t, ShouldAutoRun(off, href, AutoRunOptions{Now: now, Force: force}))
				}
			}
		}

		sameNoRepeat := entity.RunPrefs{Auto: true, LastRun: lastRunAt(href, t0)}
		assert.False(t, ShouldAutoRun(sameNoRepeat, href, AutoRunOptions{Now: now}))

		repeating := entity.RunPrefs{Auto: true, Repeat: true, LastRun: lastRunAt(href, t0)}
		want := now.Sub(t0) >= AutoRepeatMinInterval
		assert.Equal(t, want, ShouldAutoRun(repeating, href, AutoRunOptions{Now: now}), "now=%s", now)
	}
}

func TestMerge_RepeatImpliesAuto(t *testing.T) {
	bools := []*bool{nil, entity.Bool(false), entity.Bool(true)}
	prevs := []entity.RunPrefs{
		{},
		{Auto: true},
		{Auto: true, Repeat: true, LastRun: lastRunAt(href, t0)},
	}
	for _, prev := range prevs {
		for _, auto := range bools {
			for _, repeat := range bools {
				next := Merge(prev, RunPrefsPatch{Auto: auto, Repeat: repeat})
				assert.False(t, next.Repeat && !next.Auto, "prev=%+v auto=%v repeat=%v", prev, auto, repeat)
			}
		}
	}
}

func TestMerge_LastRun(t *testing.T) {
	prev := entity.RunPrefs{Auto: false, LastRun: lastRunAt(href, t0)}

	reenabled := Merge(prev, RunPrefsPatch{Auto: entity.Bool(true)})
	assert.Nil(t, reenabled.LastRun, "re-enabling starts fresh")

	explicit := Merge(prev, RunPrefsPatch{Auto: entity.Bool(true), LastRun: lastRunAt("x", t0)})
	require.NotNil(t, explicit.LastRun)
	assert.Equal(t, "x", explicit.LastRun.Href)

	kept := Merge(entity.RunPrefs{Auto: true, LastRun: lastRunAt(href, t0)}, RunPrefsPatch{Repeat: entity.Bool(true)})
	require.NotNil(t, kept.LastRun)
	assert.True(t, kept.Repeat)

	cleared := Merge(kept, RunPrefsPatch{ClearLastRun: true})
	assert.Nil(t, cleared.LastRun)
	assert.NotNil(t, kept.LastRun, "merge never aliases its input")
}

func TestRunPrefsStore(t *testing.T) {
	kv := newCountingStore()
	s := NewRunPrefsStore(kv, logger.Nop())

	prefs, persisted := s.Lookup("copy-vin")
	assert.False(t, persisted)
	assert.Equal(t, entity.RunPrefs{}, prefs)

	s.Update("copy-vin", RunPrefsPatch{Repeat: entity.Bool(true)})
	assert.Equal(t, entity.RunPrefs{}, s.Get("copy-vin"), "repeat alone is dropped")

	s.Update("copy-vin", RunPrefsPatch{Auto: entity.Bool(true), Repeat: entity.Bool(true)})
	got := s.RecordRun("copy-vin", href, t0)
	require.NotNil(t, got.LastRun)
	assert.Equal(t, t0.UnixMilli(), got.LastRun.At)

	// A fresh store over the same kv sees the persisted value.
	reloaded := NewRunPrefsStore(kv, logger.Nop())
	prefs, persisted = reloaded.Lookup("copy-vin")
	assert.True(t, persisted)
	assert.Equal(t, entity.RunPrefs{Auto: true, Repeat: true, LastRun: lastRunAt(href, t0)}, prefs)
}

func TestRunPrefsStore_SanitizesStoredValue(t *testing.T) {
	kv := store.NewMemoryStore()
	kv.SetRaw(RunPrefsKey("w"), `{"auto":false,"repeat":true}`)
	kv.SetRaw(RunPrefsKey("broken"), `{"auto":`)

	s := NewRunPrefsStore(kv, logger.Nop())
	assert.Equal(t, entity.RunPrefs{}, s.Get("w"))

	prefs, persisted := s.Lookup("broken")
	assert.False(t, persisted, "an undecodable value is not an operator choice")
	assert.Equal(t, entity.RunPrefs{}, prefs)

	wf := &entity.WorkflowDefinition{ID: "broken", AutoRun: &entity.AutoRunConfig{
		Auto: entity.TriggerOverride{Enabled: entity.Bool(true)},
	}}
	state := ResolveTriggers(wf, prefs, persisted)
	assert.True(t, state.Auto.Enabled)
	assert.Equal(t, entity.SourceDefinition, state.Auto.Source)
}

func TestRunPrefsStore_Restore(t *testing.T) {
	kv := newCountingStore()
	s := NewRunPrefsStore(kv, logger.Nop())

	prefs, persisted := s.Lookup("fresh")
	s.UpdateFrom("fresh", entity.RunPrefs{Auto: true}, RunPrefsPatch{LastRun: lastRunAt(href, t0)})
	s.Restore("fresh", prefs, persisted)
	_, persisted = s.Lookup("fresh")
	assert.False(t, persisted)
	_, stored := kv.Get(RunPrefsKey("fresh"))
	assert.False(t, stored)

	s.Update("saved", RunPrefsPatch{Auto: entity.Bool(true)})
	prefs, persisted = s.Lookup("saved")
	s.RecordRun("saved", href, t0)
	s.Restore("saved", prefs, persisted)
	assert.Equal(t, entity.RunPrefs{Auto: true}, NewRunPrefsStore(kv, logger.Nop()).Get("saved"))
}

func TestRunPrefsStore_FailedWriteKeepsMemory(t *testing.T) {
	kv := newCountingStore()
	kv.fail = true
	s := NewRunPrefsStore(kv, logger.Nop())

	s.Update("w", RunPrefsPatch{Auto: entity.Bool(true)})
	assert.True(t, s.Get("w").Auto)
	_, stored := kv.Get(RunPrefsKey("w"))
	assert.False(t, stored)
}

func TestRunPrefsStore_UpdateFrom(t *testing.T) {
	s := NewRunPrefsStore(newCountingStore(), logger.Nop())

	// Definition says auto is on by default; the operator only toggles repeat.
	next := s.UpdateFrom("w", entity.RunPrefs{Auto: true}, RunPrefsPatch{Repeat: entity.Bool(true)})
	assert.Equal(t, entity.RunPrefs{Auto: true, Repeat: true}, next)

	// Once persisted, the stored value wins over the base.
	next = s.UpdateFrom("w", entity.RunPrefs{}, RunPrefsPatch{})
	assert.True(t, next.Auto)
}
