package cli

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/term"
)

// Prompter asks the operator for input on stdin/stdout.
type Prompter struct {
	in      *bufio.Reader
	out     io.Writer
	fd      int
	console bool
}

// NewPrompter constructs a prompter referencing stdio. Secrets are read with
// echo disabled when in is a terminal.
func NewPrompter(in io.Reader, out io.Writer) *Prompter {
	if in == nil {
		in = os.Stdin
	}
	if out == nil {
		out = os.Stdout
	}
	p := &Prompter{in: bufio.NewReader(in), out: out, fd: -1}
	if file, ok := in.(*os.File); ok && term.IsTerminal(int(file.Fd())) {
		p.fd = int(file.Fd())
		p.console = true
	}
	return p
}

// Interactive reports whether the prompter is attached to a terminal.
func (p *Prompter) Interactive() bool {
	return p.console
}

// Confirm asks a yes/no question; anything but y/yes declines.
func (p *Prompter) Confirm(question string) (bool, error) {
	fmt.Fprintf(p.out, "%s [y/N]: ", question)
	line, err := p.in.ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return false, err
	}
	line = strings.ToLower(strings.TrimSpace(line))
	return line == "y" || line == "yes", nil
}

// Secret reads a value without echoing it.
func (p *Prompter) Secret(label string) (string, error) {
	fmt.Fprintf(p.out, "%s: ", label)
	if p.console {
		raw, err := term.ReadPassword(p.fd)
		fmt.Fprintln(p.out)
		if err != nil {
			return "", fmt.Errorf("read %s: %w", strings.ToLower(label), err)
		}
		return string(raw), nil
	}
	line, err := p.in.ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", err
	}
	return strings.TrimRight(line, "\r\n"), nil
}
