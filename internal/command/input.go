package command

import (
	"bufio"
	"context"
	"io"
	"strings"
)

// readLines feeds trimmed non-empty lines from r until EOF or ctx is done.
func readLines(ctx context.Context, r io.Reader) <-chan string {
	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(r)
		for scanner.Scan() {
			line := strings.TrimSpace(scanner.Text())
			if line == "" {
				continue
			}
			select {
			case lines <- line:
			case <-ctx.Done():
				return
			}
		}
	}()
	return lines
}

// splitCommand returns the verb and the remaining argument of an input line.
func splitCommand(line string) (string, string) {
	verb, arg, _ := strings.Cut(line, " ")
	return strings.ToLower(verb), strings.TrimSpace(arg)
}
