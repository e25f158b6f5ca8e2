package engine

import (
	"fmt"
	"os"
	"strings"
)

// SourceLine is one line of a ViewSource response.
type SourceLine struct {
	LineNo    int
	Text      string
	IsCurrent bool
}

// ViewSource returns the lines from (current line − w) to (current line + w)
// of the current source file, each tagged with whether it is the current
// line.
func (e *Engine) ViewSource(window int) ([]SourceLine, error) {
	loc, err := e.idx.FindLocation(e.ProgramCounter())
	if err != nil {
		return nil, err
	}
	content, err := os.ReadFile(loc.File)
	if err != nil {
		return nil, fmt.Errorf("engine: reading source %s: %w", loc.File, err)
	}
	return sourceWindow(string(content), loc.Line, window), nil
}

// GetFile returns the raw contents of path as text.
func (e *Engine) GetFile(path string) (string, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("engine: reading %s: %w", path, err)
	}
	return string(content), nil
}

// sourceWindow is the pure slicing core of ViewSource: 1-indexed source
// lines, clamped to the file's bounds, tagged by distance from current.
func sourceWindow(content string, current, window int) []SourceLine {
	lines := strings.Split(content, "\n")

	lo := current - window
	if lo < 1 {
		lo = 1
	}
	hi := current + window
	if hi > len(lines) {
		hi = len(lines)
	}

	out := make([]SourceLine, 0, hi-lo+1)
	for n := lo; n <= hi; n++ {
		out = append(out, SourceLine{
			LineNo:    n,
			Text:      lines[n-1],
			IsCurrent: n == current,
		})
	}
	return out
}
