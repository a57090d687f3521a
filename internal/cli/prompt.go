package cli

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/term"
)

// TerminalPasswordPrompt reads a password from in without echo when in is
// a terminal, or a single line otherwise.
func TerminalPasswordPrompt(in *os.File) PasswordPrompt {
	return func(prompt string, out io.Writer) (string, error) {
		_, _ = fmt.Fprint(out, prompt)
		defer func() { _, _ = fmt.Fprintln(out) }()

		fd := int(in.Fd())
		if term.IsTerminal(fd) {
			secret, err := term.ReadPassword(fd)
			if err != nil {
				return "", err
			}
			return string(secret), nil
		}
		line, err := bufio.NewReader(in).ReadString('\n')
		if err != nil && err != io.EOF {
			return "", err
		}
		return strings.TrimRight(line, "\r\n"), nil
	}
}
