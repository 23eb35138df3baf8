package app

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/term"

	"mdnotes/internal/notes"
)

// Account switch policies for non-interactive sessions.
const (
	PolicyAsk     = "ask"
	PolicyMerge   = "merge"
	PolicyReplace = "replace"
)

// ErrNoTerminal is returned when a prompt needs an answer and none can be
// given. The cycle is aborted and the prompt shown again next time.
var ErrNoTerminal = errors.New("confirmation needs an interactive terminal")

// TerminalConfirmer asks on the terminal. Without one it answers according
// to the configured account switch policy.
type TerminalConfirmer struct {
	in          io.Reader
	out         io.Writer
	interactive bool
	policy      string
}

var _ notes.Confirmer = (*TerminalConfirmer)(nil)

// NewTerminalConfirmer reads from stdin and prompts on stderr.
func NewTerminalConfirmer(policy string) *TerminalConfirmer {
	return &TerminalConfirmer{
		in:          os.Stdin,
		out:         os.Stderr,
		interactive: term.IsTerminal(int(os.Stdin.Fd())),
		policy:      policy,
	}
}

func (c *TerminalConfirmer) Confirm(ctx context.Context, p notes.Prompt) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	if !c.interactive {
		switch c.policy {
		case PolicyReplace:
			return true, nil
		case PolicyMerge:
			return false, nil
		default:
			return false, fmt.Errorf("%s: %w", p.Title, ErrNoTerminal)
		}
	}

	ok := strings.ToLower(p.OKLabel)
	cancel := strings.ToLower(p.CancelLabel)
	fmt.Fprintf(c.out, "%s\n%s\n[%s/%s] (default %s): ", p.Title, p.Message, ok, cancel, cancel)

	line, err := bufio.NewReader(c.in).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return false, fmt.Errorf("reading answer: %w", err)
	}

	return matchesLabel(strings.ToLower(strings.TrimSpace(line)), ok), nil
}

// matchesLabel accepts the full label or its first letter.
func matchesLabel(answer, label string) bool {
	if answer == "" || label == "" {
		return false
	}
	return answer == label || answer == label[:1]
}
