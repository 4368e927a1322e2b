// Package preferences owns everything the operator persists about
// workflows: auto-run flags, menu order and visibility, and option
// profiles. Every store updates memory first and treats a failed write as
// a warning.
package preferences

const (
	runPrefsPrefix      = "prefs:autorun:"
	menuPrefix          = "prefs:menu:"
	profilesPrefix      = "prefs:profiles:"
	legacyOptionsPrefix = "prefs:options:"
)

func RunPrefsKey(workflowID string) string { return runPrefsPrefix + workflowID }
func MenuKey(pageID string) string         { return menuPrefix + pageID }
func ProfilesKey(workflowID string) string { return profilesPrefix + workflowID }

func legacyOptionsKey(workflowID string) string { return legacyOptionsPrefix + workflowID }
