// Package formatting provides parsing and formatting utilities for the
// portal's domain value types: NPJ case identifiers and Brazilian-format
// calendar dates.
package formatting

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// ErrInvalidNPJ is returned when a string does not match the
// "YYYY/NNNNNNN-VVV" case identifier format.
var ErrInvalidNPJ = errors.New("invalid NPJ format")

var npjPattern = regexp.MustCompile(`^(\d{4})/(\d{1,7})-(\d{3})$`)

// NPJ is a parsed legal-process identifier.
type NPJ struct {
	Year      int
	Number    int
	Variation int
}

// ParseNPJ parses a "YYYY/NNNNNNN-VVV" identifier.
func ParseNPJ(s string) (NPJ, error) {
	matches := npjPattern.FindStringSubmatch(strings.TrimSpace(s))
	if matches == nil {
		return NPJ{}, fmt.Errorf("%w: %q", ErrInvalidNPJ, s)
	}

	year, _ := strconv.Atoi(matches[1])
	number, _ := strconv.Atoi(matches[2])
	variation, _ := strconv.Atoi(matches[3])

	return NPJ{Year: year, Number: number, Variation: variation}, nil
}

// String returns the canonical zero-padded form, e.g. "2023/0001234-001".
func (n NPJ) String() string {
	return fmt.Sprintf("%04d/%07d-%03d", n.Year, n.Number, n.Variation)
}

// PathID returns the identifier segment used by the case detail URL:
// the year concatenated with the zero-padded process number.
func (n NPJ) PathID() string {
	return fmt.Sprintf("%04d%07d", n.Year, n.Number)
}

// DirName returns a form of the identifier safe for use as a directory name.
func (n NPJ) DirName() string {
	return strings.ReplaceAll(n.String(), "/", "_")
}
