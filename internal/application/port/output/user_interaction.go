package output

import "context"

type NoticeLevel string

const (
	NoticeSuccess NoticeLevel = "success"
	NoticeFailure NoticeLevel = "failure"
	NoticeInfo    NoticeLevel = "info"
)

// Notifier delivers a transient, user-visible message.
type Notifier interface {
	Notify(ctx context.Context, level NoticeLevel, message string)
}

// Prompter asks the operator for free text (captureData steps).
type Prompter interface {
	AskQuestion(ctx context.Context, question string) (string, error)
}

type Clipboard interface {
	WriteText(text string) error
}
