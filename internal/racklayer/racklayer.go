// Package racklayer normalizes and compares physical storage slot codes.
//
// Operators key rack-layer codes in free form: full-width digits, assorted
// dash styles, stray whitespace, compound "rack-layer" notation. Everything
// collapses to a single ASCII digit run so two codes compare by equality.
package racklayer

import (
	"regexp"
	"strings"
)

var compoundRe = regexp.MustCompile(`^([0-9]+)-([0-9]+)$`)

// Normalize collapses a free-form rack-layer code to its canonical digit run.
//
// "1-3", "013" and the full-width "１－３" all normalize to "13". An empty
// result means no digits were found; callers must treat that as "unknown",
// never as a valid zero location. Normalize is idempotent.
func Normalize(raw string) string {
	cleaned := asciiFold(raw)

	if m := compoundRe.FindStringSubmatch(cleaned); m != nil {
		return trimZeros(m[1] + m[2])
	}
	if cleaned != "" && isDigits(cleaned) {
		return trimZeros(cleaned)
	}
	return trimZeros(strings.Map(func(r rune) rune {
		if r >= '0' && r <= '9' {
			return r
		}
		return -1
	}, cleaned))
}

// Match is the result of comparing a target against a candidate location.
type Match struct {
	Mismatch  bool
	Target    string
	Candidate string
}

// Compare normalizes both sides and reports whether they disagree. A mismatch
// is never asserted when either side normalizes to empty: without data there
// is nothing to contradict.
func Compare(target, candidate string) Match {
	nt := Normalize(target)
	nc := Normalize(candidate)
	return Match{
		Mismatch:  nt != "" && nc != "" && nt != nc,
		Target:    nt,
		Candidate: nc,
	}
}

// asciiFold maps full-width digits to ASCII, collapses dash variants to "-",
// and drops whitespace (including the ideographic space).
func asciiFold(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		switch {
		case r >= '0' && r <= '9':
			b.WriteRune(r)
		case r >= '０' && r <= '９': // full-width digits
			b.WriteRune('0' + (r - '０'))
		case r == '-' || r == '－' || r == '‐' || r == '–' || r == '—' || r == '−' || r == 'ー':
			b.WriteRune('-')
		case r == ' ' || r == '\t' || r == '　':
			// drop
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}

func isDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// trimZeros strips leading zeros so "013" and "13" compare equal. An all-zero
// run trims to empty, which callers already treat as unknown.
func trimZeros(s string) string {
	return strings.TrimLeft(s, "0")
}
