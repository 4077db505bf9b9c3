package proc

import (
	"bufio"
	"bytes"
	"strings"
	"unicode"
)

// findLine returns the first line of data that starts with prefix.
// The boolean is false when no line matches, which is distinct from a
// matching line that happens to be empty after the prefix.
func findLine(data []byte, prefix string) (string, bool) {
	scanner := bufio.NewScanner(bytes.NewReader(data))
	for scanner.Scan() {
		line := scanner.Text()
		if strings.HasPrefix(line, prefix) {
			return line, true
		}
	}
	return "", false
}

// firstLine returns data up to the first newline.
func firstLine(data []byte) string {
	line, _, _ := strings.Cut(string(data), "\n")
	return line
}

// fieldAt returns the whitespace-separated token at index i of line.
func fieldAt(line string, i int) (string, bool) {
	fields := strings.Fields(line)
	if i < 0 || i >= len(fields) {
		return "", false
	}
	return fields[i], true
}

func allDigits(value string) bool {
	if value == "" {
		return false
	}
	for _, r := range value {
		if !unicode.IsDigit(r) {
			return false
		}
	}
	return true
}
