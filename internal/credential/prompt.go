package credential

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"
)

// Prompter asks the user to enter a key by hand. Implementations block until
// a non-empty key is submitted; there is no cancel path.
type Prompter interface {
	Prompt(ctx context.Context) (string, error)
}

// TerminalPrompter reads the key from a terminal. In must be the same reader
// every other consumer of the terminal uses, so that nothing typed after the
// key is lost.
type TerminalPrompter struct {
	In  *bufio.Reader
	Out io.Writer
}

// Prompt keeps asking until a non-empty line is entered. It only returns an
// error when the input is closed or ctx is done before a read.
func (p *TerminalPrompter) Prompt(ctx context.Context) (string, error) {
	fmt.Fprintln(p.Out, "Enter Google Gemini API Key")
	fmt.Fprintln(p.Out, "To use this Plant Identifier, you need a Google Gemini API key.")
	fmt.Fprintln(p.Out, "Get a free key at https://ai.google.dev/")

	for {
		if err := ctx.Err(); err != nil {
			return "", err
		}

		fmt.Fprint(p.Out, "API key: ")

		line, err := p.In.ReadString('\n')
		if key := strings.TrimSpace(line); key != "" {
			return key, nil
		}
		if err != nil {
			return "", fmt.Errorf("no API key entered: %w", err)
		}
		fmt.Fprintln(p.Out, "Please enter a valid API key")
	}
}
