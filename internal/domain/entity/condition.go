package entity

// Condition is a boolean expression over the element tree, used for page
// detection, branch steps and enabledWhen guards.
//
// Variants: Exists, NotExists, TextPresent, AnyOf, AllOf, Not, URLMatches.
type Condition interface {
	isCondition()
}

// Exists holds when Target matches at least one element.
type Exists struct {
	Target SelectorSpec
}

// NotExists holds when Target matches nothing.
type NotExists struct {
	Target SelectorSpec
}

// TextPresent locates one element with Where and applies Text to its content.
type TextPresent struct {
	Where SelectorSpec
	Text  TextMatcher
}

// AnyOf short-circuits on the first true condition. Empty is false.
type AnyOf struct {
	Conditions []Condition
}

// AllOf short-circuits on the first false condition. Empty is true.
type AllOf struct {
	Conditions []Condition
}

// Not negates Condition.
type Not struct {
	Condition Condition
}

// URLMatches holds when the page href matches Glob.
type URLMatches struct {
	Glob string
}

func (Exists) isCondition()      {}
func (NotExists) isCondition()   {}
func (TextPresent) isCondition() {}
func (AnyOf) isCondition()       {}
func (AllOf) isCondition()       {}
func (Not) isCondition()         {}
func (URLMatches) isCondition()  {}
