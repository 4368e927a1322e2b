package preferences

import "carvana-workflows/internal/domain/entity"

// ResolveTriggers layers default availability, definition overrides and
// persisted prefs. persisted reports whether prefs came from the store;
// without it the definition's enabled defaults apply.
func ResolveTriggers(wf *entity.WorkflowDefinition, prefs entity.RunPrefs, persisted bool) entity.TriggerState {
	var cfg entity.AutoRunConfig
	if wf.AutoRun != nil {
		cfg = *wf.AutoRun
	}

	state := entity.TriggerState{
		Manual: layer(cfg.Manual, true),
		Auto:   layer(cfg.Auto, false),
		Repeat: layer(cfg.Repeat, false),
	}

	if persisted {
		state.Auto.Enabled = prefs.Auto
		state.Auto.Source = entity.SourcePrefs
		state.Repeat.Enabled = prefs.Repeat
		state.Repeat.Source = entity.SourcePrefs
	}

	if wf.Internal {
		state.Manual.Available = false
		state.Auto.Available = false
		state.Repeat.Available = false
	}
	for _, st := range []*entity.TriggerStatus{&state.Manual, &state.Auto, &state.Repeat} {
		st.Enabled = st.Enabled && st.Available
	}
	state.Repeat.Enabled = state.Repeat.Enabled && state.Auto.Enabled
	return state
}

func layer(o entity.TriggerOverride, enabledByDefault bool) entity.TriggerStatus {
	st := entity.TriggerStatus{Available: true, Enabled: enabledByDefault, Source: entity.SourceDefault}
	if o.Available != nil {
		st.Available = *o.Available
		st.Source = entity.SourceDefinition
	}
	if o.Enabled != nil {
		st.Enabled = *o.Enabled
		st.Source = entity.SourceDefinition
	}
	return st
}

// EffectiveRunPrefs is what the auto-run scheduler evaluates: the trigger
// state's enabled flags with the stored last run.
func EffectiveRunPrefs(st entity.TriggerState, prefs entity.RunPrefs) entity.RunPrefs {
	return entity.RunPrefs{
		Auto:    st.Auto.Enabled,
		Repeat:  st.Repeat.Enabled,
		LastRun: prefs.LastRun,
	}
}
