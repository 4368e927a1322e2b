package userinteraction

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"carvana-workflows/internal/application/port/output"

	"github.com/fatih/color"
)

var (
	_ output.Notifier = (*Console)(nil)
	_ output.Prompter = (*Console)(nil)
)

// Console shows notices and asks captureData questions on a terminal.
type Console struct {
	mu     sync.Mutex
	out    io.Writer
	reader *bufio.Reader
}

func NewConsole() *Console {
	return NewConsoleWith(os.Stdin, color.Output)
}

func NewConsoleWith(in io.Reader, out io.Writer) *Console {
	return &Console{
		out:    out,
		reader: bufio.NewReader(in),
	}
}

func (c *Console) Notify(ctx context.Context, level output.NoticeLevel, message string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	icon, style := noticeStyle(level)
	style.Fprintf(c.out, "%s ", icon)
	fmt.Fprintln(c.out, message)
}

func noticeStyle(level output.NoticeLevel) (string, *color.Color) {
	switch level {
	case output.NoticeSuccess:
		return "✓", color.New(color.FgGreen, color.Bold)
	case output.NoticeFailure:
		return "✗", color.New(color.FgRed, color.Bold)
	}
	return "•", color.New(color.FgCyan)
}

// AskQuestion reads lines until an empty line or EOF, so pasted multi-line
// text arrives whole. A single line followed by Enter twice is the common
// case.
func (c *Console) AskQuestion(ctx context.Context, question string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	yellow := color.New(color.FgYellow, color.Bold)
	yellow.Fprintf(c.out, "\n[INPUT REQUIRED] %s\n", question)
	dim := color.New(color.Faint)
	dim.Fprintln(c.out, "(finish with an empty line)")

	answer, err := c.readBlock(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to read user input: %w", err)
	}
	return answer, nil
}

func (c *Console) readBlock(ctx context.Context) (string, error) {
	var lines []string
	for {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		fmt.Fprint(c.out, "> ")
		line, err := c.reader.ReadString('\n')
		trimmed := strings.TrimRight(line, "\r\n")
		if trimmed != "" {
			lines = append(lines, trimmed)
		}
		if err == io.EOF {
			if len(lines) == 0 {
				return "", err
			}
			break
		}
		if err != nil {
			return "", err
		}
		if trimmed == "" {
			break
		}
	}
	return strings.TrimSpace(strings.Join(lines, "\n")), nil
}
