package entity

type ActionKind string

const (
	KindWaitFor        ActionKind = "waitFor"
	KindDelay          ActionKind = "delay"
	KindClick          ActionKind = "click"
	KindType           ActionKind = "type"
	KindSelectFromList ActionKind = "selectFromList"
	KindExtract        ActionKind = "extract"
	KindExtractList    ActionKind = "extractList"
	KindCaptureData    ActionKind = "captureData"
	KindBranch         ActionKind = "branch"
	KindError          ActionKind = "error"
	KindExecute        ActionKind = "execute"
)

func (k ActionKind) String() string {
	return string(k)
}

// Action is one workflow step. The set of implementations is closed:
// every variant lives in this file.
type Action interface {
	Kind() ActionKind
	isAction()
}

// WaitSpec carries per-step wait overrides in milliseconds. Zero fields
// fall back to engine defaults.
type WaitSpec struct {
	TimeoutMs      int  `yaml:"timeoutMs,omitempty" json:"timeoutMs,omitempty"`
	PollIntervalMs int  `yaml:"pollIntervalMs,omitempty" json:"pollIntervalMs,omitempty"`
	VisibleOnly    bool `yaml:"visibleOnly,omitempty" json:"visibleOnly,omitempty"`
	MinStabilityMs int  `yaml:"minStabilityMs,omitempty" json:"minStabilityMs,omitempty"`
}

type WaitFor struct {
	Target SelectorSpec `yaml:"target"`
	Wait   WaitSpec     `yaml:",inline"`
}

type Delay struct {
	Ms int `yaml:"ms"`
}

// Click clicks the first visible match of Target. PreWait waits for the
// target first; WaitFor waits for a follow-up element after the click.
type Click struct {
	Target   SelectorSpec  `yaml:"target"`
	PreWait  *WaitSpec     `yaml:"preWait,omitempty"`
	WaitFor  *SelectorSpec `yaml:"waitFor,omitempty"`
	PostWait *WaitSpec     `yaml:"postWait,omitempty"`
}

// Type focuses Target and emits one input notification per character.
type Type struct {
	Target     SelectorSpec `yaml:"target"`
	Text       string       `yaml:"text"`
	Clear      bool         `yaml:"clear,omitempty"`
	KeyDelayMs int          `yaml:"keyDelayMs,omitempty"`
	PressEnter bool         `yaml:"pressEnter,omitempty"`
	PreWait    *WaitSpec    `yaml:"preWait,omitempty"`
}

// SelectFromList waits for the List container, then clicks the first Item
// matching inside it.
type SelectFromList struct {
	List SelectorSpec `yaml:"list"`
	Item SelectorSpec `yaml:"item"`
	Wait *WaitSpec    `yaml:"wait,omitempty"`
}

type GlobalSource string

const (
	SourceTitle     GlobalSource = "title"
	SourceURL       GlobalSource = "url"
	SourceHost      GlobalSource = "host"
	SourcePath      GlobalSource = "path"
	SourceUserAgent GlobalSource = "userAgent"
	SourceTimestamp GlobalSource = "timestamp"
)

// ExtractItem reads one named value, either from an element (text, or
// Attribute when set) or from a global page source.
type ExtractItem struct {
	Name      string        `yaml:"name"`
	From      *SelectorSpec `yaml:"from,omitempty"`
	Source    GlobalSource  `yaml:"source,omitempty"`
	Attribute string        `yaml:"attribute,omitempty"`
}

type Extract struct {
	Items   []ExtractItem `yaml:"items"`
	Copy    bool          `yaml:"copy,omitempty"`
	Present bool          `yaml:"present,omitempty"`
}

// ListField is one column of an extractList row. A nil Target reads the
// row element itself.
type ListField struct {
	Name      string        `yaml:"name"`
	Target    *SelectorSpec `yaml:"target,omitempty"`
	Attribute string        `yaml:"attribute,omitempty"`
}

type ExtractList struct {
	Name    string       `yaml:"name"`
	List    SelectorSpec `yaml:"list"`
	Fields  []ListField  `yaml:"fields"`
	Limit   int          `yaml:"limit,omitempty"`
	Copy    bool         `yaml:"copy,omitempty"`
	Format  string       `yaml:"format,omitempty"`
	Present bool         `yaml:"present,omitempty"`
}

type CaptureKind string

const (
	CaptureRegex    CaptureKind = "regex"
	CaptureSelector CaptureKind = "selector"
	CaptureSplit    CaptureKind = "split"
)

// CapturePattern pulls one variable out of captured free text (regex,
// split) or out of the page (selector).
type CapturePattern struct {
	Name      string        `yaml:"name"`
	Kind      CaptureKind   `yaml:"kind"`
	Pattern   string        `yaml:"pattern,omitempty"`
	Group     int           `yaml:"group,omitempty"`
	Separator string        `yaml:"separator,omitempty"`
	Index     int           `yaml:"index,omitempty"`
	Selector  *SelectorSpec `yaml:"selector,omitempty"`
	Attribute string        `yaml:"attribute,omitempty"`
	Required  bool          `yaml:"required,omitempty"`
}

// CaptureData asks the operator for free text (unless Text is preset) and
// extracts variables from it.
type CaptureData struct {
	Name     string           `yaml:"name,omitempty"`
	Prompt   string           `yaml:"prompt"`
	Text     string           `yaml:"text,omitempty"`
	Patterns []CapturePattern `yaml:"patterns"`
}

// Branch evaluates If and invokes Then or Else by workflow id.
type Branch struct {
	If   Condition
	Then string
	Else string
}

// Fail aborts the run with an author-supplied message.
type Fail struct {
	Message string `yaml:"message"`
}

// Execute runs a function registered with the engine under Func.
type Execute struct {
	Func string         `yaml:"func"`
	Args map[string]any `yaml:"args,omitempty"`
}

func (WaitFor) Kind() ActionKind        { return KindWaitFor }
func (Delay) Kind() ActionKind          { return KindDelay }
func (Click) Kind() ActionKind          { return KindClick }
func (Type) Kind() ActionKind           { return KindType }
func (SelectFromList) Kind() ActionKind { return KindSelectFromList }
func (Extract) Kind() ActionKind        { return KindExtract }
func (ExtractList) Kind() ActionKind    { return KindExtractList }
func (CaptureData) Kind() ActionKind    { return KindCaptureData }
func (Branch) Kind() ActionKind         { return KindBranch }
func (Fail) Kind() ActionKind           { return KindError }
func (Execute) Kind() ActionKind        { return KindExecute }

func (WaitFor) isAction()        {}
func (Delay) isAction()          {}
func (Click) isAction()          {}
func (Type) isAction()           {}
func (SelectFromList) isAction() {}
func (Extract) isAction()        {}
func (ExtractList) isAction()    {}
func (CaptureData) isAction()    {}
func (Branch) isAction()         {}
func (Fail) isAction()           {}
func (Execute) isAction()        {}
