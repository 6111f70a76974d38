// Package layout breaks a title into lines that fit a pixel width.
package layout

import (
	"regexp"
	"strings"
)

// Margin is added to every measured line before it is compared to the width.
const Margin = 10

type Mode int

const (
	// Wrapped is a greedy word wrap.
	Wrapped Mode = iota
	// Delimited breaks on the first punctuation delimiter found in the title.
	Delimited
)

func (m Mode) String() string {
	switch m {
	case Delimited:
		return "delimited"
	case Wrapped:
		return "wrapped"
	default:
		return "unknown"
	}
}

// MeasureFunc returns the rendered width of s in pixels.
type MeasureFunc func(s string) int

var resolutionRe = regexp.MustCompile(`\s?\[[0-9]+\s?[xX*×]\s?[0-9]+\]`)

// StripResolution removes resolution annotations such as "[1920 x 1080]".
func StripResolution(text string) string {
	return resolutionRe.ReplaceAllString(text, "")
}

// Lines returns the non-empty lines of text for the given mode. A Delimited
// layout with a line wider than width falls back to Wrapped.
func Lines(text string, width int, mode Mode, measure MeasureFunc) []string {
	text = StripResolution(text)

	if mode == Delimited {
		return split(text, width, measure)
	}

	return wrap(text, width, measure)
}

func split(text string, width int, measure MeasureFunc) []string {
	lines := []string{""}

	var delimiter rune
	for _, c := range text {
		last := len(lines) - 1

		if c == ' ' && lines[last] == "" {
			continue
		}

		lines[last] += string(c)

		if delimiter == 0 && isDelimiter(c) {
			delimiter = c
		}

		if c == delimiter {
			lines = append(lines, "")
		}
	}

	for _, line := range lines {
		if measure(line)+Margin > width {
			return wrap(text, width, measure)
		}
	}

	return nonEmpty(lines)
}

func wrap(text string, width int, measure MeasureFunc) []string {
	lines := []string{""}

	var lineWords []string
	for _, word := range strings.Fields(text) {
		last := len(lines) - 1

		lineWords = append(lineWords, word)
		lines[last] = strings.Join(lineWords, " ")

		if measure(lines[last])+Margin > width {
			lines[last] = strings.TrimSpace(strings.TrimSuffix(lines[last], word))
			lines = append(lines, word)
			lineWords = []string{word}
		}
	}

	return nonEmpty(lines)
}

func isDelimiter(c rune) bool {
	return c == ',' || c == ';' || c == '.'
}

func nonEmpty(lines []string) []string {
	out := make([]string, 0, len(lines))
	for _, line := range lines {
		if line != "" {
			out = append(out, line)
		}
	}

	return out
}
