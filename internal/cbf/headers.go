package cbf

import (
	"bufio"
	"fmt"
	"strings"
)

// readHeaders consumes the MIME-style header block that precedes a
// binary section, up to and including the blank separator line.
// Continuation lines (leading space or tab) are folded into the
// previous field; fully quoted field bodies are unquoted.
func readHeaders(r *bufio.Reader) (map[string]string, error) {
	headers := make(map[string]string)
	var lastKey string

	for {
		line, err := r.ReadString('\n')
		if err != nil {
			return nil, fmt.Errorf("read header line: %w", err)
		}
		line = strings.TrimRight(line, "\r\n")
		if line == "" {
			return headers, nil
		}

		if line[0] == ' ' || line[0] == '\t' {
			if lastKey == "" {
				return nil, fmt.Errorf("header continuation without a field")
			}
			headers[lastKey] += unquote(strings.TrimLeft(line, " \t"))
			continue
		}

		key, value, found := strings.Cut(line, ":")
		if !found {
			return nil, fmt.Errorf("malformed header line %q", line)
		}
		lastKey = strings.ToLower(strings.TrimSpace(key))
		headers[lastKey] = unquote(strings.TrimSpace(value))
	}
}

func unquote(s string) string {
	if len(s) >= 2 && s[0] == '"' && s[len(s)-1] == '"' {
		return s[1 : len(s)-1]
	}
	return s
}
