package filecheck

import (
	"fmt"
	"strings"
)

// MismatchError reports the first directive the input failed.
type MismatchError struct {
	Line      int // 1-based input line where the failure was detected
	Directive Directive
	Reason    string
}

func (e *MismatchError) Error() string {
	return fmt.Sprintf("filecheck: input line %d: %s (check line %d): %s",
		e.Line, e.Directive, e.Directive.Line, e.Reason)
}

// Check parses checkText and matches input against it.
func Check(input, checkText string) error {
	ds, err := Parse(checkText)
	if err != nil {
		return err
	}
	return Match(input, ds)
}

// Match verifies input against directives in order. It returns nil or a
// *MismatchError.
func Match(input string, directives []Directive) error {
	m := matcher{input: input}
	for _, d := range directives {
		if d.re == nil {
			re, err := compilePattern(d.Pattern)
			if err != nil {
				return fmt.Errorf("filecheck: check line %d: %w", d.Line, err)
			}
			d.re = re
		}

		if d.Kind == CheckNot {
			m.pending = append(m.pending, d)
			continue
		}
		if err := m.positive(d); err != nil {
			return err
		}
	}
	return m.checkNots(len(input))
}

type matcher struct {
	input   string
	pos     int  // end of the previous positive match
	matched bool // whether any positive directive has matched
	pending []Directive
}

func (m *matcher) positive(d Directive) error {
	loc := d.re.FindStringIndex(m.input[m.pos:])
	if loc == nil {
		return &MismatchError{
			Line:      m.lineAt(m.pos),
			Directive: d,
			Reason:    "pattern not found",
		}
	}
	start, end := m.pos+loc[0], m.pos+loc[1]

	if d.Kind == CheckNext {
		if !m.matched {
			return &MismatchError{Line: m.lineAt(start), Directive: d, Reason: "no previous match"}
		}
		want := m.lineAt(m.pos) + 1
		if got := m.lineAt(start); got != want {
			return &MismatchError{
				Line:      got,
				Directive: d,
				Reason:    fmt.Sprintf("matched on line %d, expected line %d", got, want),
			}
		}
	}

	if err := m.checkNots(start); err != nil {
		return err
	}
	m.pos = end
	m.matched = true
	return nil
}

// checkNots fails if any pending CHECK-NOT matches in input[m.pos:limit].
func (m *matcher) checkNots(limit int) error {
	region := m.input[m.pos:limit]
	for _, d := range m.pending {
		if loc := d.re.FindStringIndex(region); loc != nil {
			return &MismatchError{
				Line:      m.lineAt(m.pos + loc[0]),
				Directive: d,
				Reason:    fmt.Sprintf("excluded pattern found: %q", region[loc[0]:loc[1]]),
			}
		}
	}
	m.pending = m.pending[:0]
	return nil
}

func (m *matcher) lineAt(offset int) int {
	return strings.Count(m.input[:offset], "\n") + 1
}
