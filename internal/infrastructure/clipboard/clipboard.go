package clipboard

import (
	"fmt"

	"carvana-workflows/internal/application/port/output"

	"github.com/atotto/clipboard"
)

var _ output.Clipboard = (*System)(nil)

// System writes to the OS clipboard. On hosts without a clipboard utility
// every write fails and Available reports false.
type System struct{}

func New() *System {
	return &System{}
}

func (System) Available() bool {
	return !clipboard.Unsupported
}

func (s System) WriteText(text string) error {
	if !s.Available() {
		return fmt.Errorf("clipboard unavailable on this host")
	}
	if err := clipboard.WriteAll(text); err != nil {
		return fmt.Errorf("write clipboard: %w", err)
	}
	return nil
}

func (s System) ReadText() (string, error) {
	text, err := clipboard.ReadAll()
	if err != nil {
		return "", fmt.Errorf("read clipboard: %w", err)
	}
	return text, nil
}
