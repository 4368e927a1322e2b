package entity

import "time"

// LastRun records where and when a workflow last auto-ran. At is unix
// milliseconds.
type LastRun struct {
	Href string `json:"href"`
	At   int64  `json:"at"`
}

func (l LastRun) Time() time.Time {
	return time.UnixMilli(l.At)
}

// RunPrefs is persisted per workflow id. Repeat implies Auto; every write
// path re-derives Repeat to keep that true.
type RunPrefs struct {
	Auto    bool     `json:"auto"`
	Repeat  bool     `json:"repeat"`
	LastRun *LastRun `json:"lastRun,omitempty"`
}

// MenuPrefs is persisted per page id: the operator's workflow order and the
// ids hidden from the actions list.
type MenuPrefs struct {
	Version         int      `json:"version"`
	Order           []string `json:"order"`
	HiddenInActions []string `json:"hiddenInActions"`
}

type ProfileID string

const (
	ProfileP1 ProfileID = "p1"
	ProfileP2 ProfileID = "p2"
	ProfileP3 ProfileID = "p3"
)

// Profiles is persisted per workflow id: up to three independent option
// value bags and the active slot.
type Profiles struct {
	Active   ProfileID                    `json:"active"`
	Profiles map[ProfileID]map[string]any `json:"profiles"`
}

type TriggerSource string

const (
	SourceDefault    TriggerSource = "default"
	SourceDefinition TriggerSource = "definition"
	SourcePrefs      TriggerSource = "prefs"
)

type TriggerStatus struct {
	Available bool          `json:"available"`
	Enabled   bool          `json:"enabled"`
	Source    TriggerSource `json:"source"`
}

// TriggerState is derived on demand and never persisted.
type TriggerState struct {
	Manual TriggerStatus `json:"manual"`
	Auto   TriggerStatus `json:"auto"`
	Repeat TriggerStatus `json:"repeat"`
}
