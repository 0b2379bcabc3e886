// Package isbn normalizes and validates ISBNs, pulls candidates out of
// scanned text, and looks book metadata up in the Google Books catalog.
package isbn

import (
	"errors"
	"regexp"
	"strings"
)

// ErrMalformed is returned for input that is not a checksum-valid ISBN-10 or
// ISBN-13.
var ErrMalformed = errors.New("malformed ISBN")

// Normalize keeps digits and X, upper-cases, and keeps at most the last 13
// characters, the way barcode scanners report them.
func Normalize(raw string) string {
	s := digitsOf(raw)
	if len(s) > 13 {
		s = s[len(s)-13:]
	}
	return s
}

func digitsOf(raw string) string {
	var b strings.Builder
	for _, r := range raw {
		switch {
		case r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == 'x' || r == 'X':
			b.WriteByte('X')
		}
	}
	return b.String()
}

// Parse normalizes raw and checks it is a valid ISBN-10 or ISBN-13.
func Parse(raw string) (string, error) {
	s := Normalize(raw)
	if !Valid(s) {
		return "", ErrMalformed
	}
	return s, nil
}

// Valid reports whether s (already normalized) passes the ISBN-10 or ISBN-13
// checksum.
func Valid(s string) bool {
	switch len(s) {
	case 10:
		return valid10(s)
	case 13:
		return valid13(s)
	}
	return false
}

func valid10(s string) bool {
	sum := 0
	for i := 0; i < 10; i++ {
		var v int
		switch c := s[i]; {
		case c >= '0' && c <= '9':
			v = int(c - '0')
		case c == 'X' && i == 9:
			v = 10
		default:
			return false
		}
		sum += v * (10 - i)
	}
	return sum%11 == 0
}

func valid13(s string) bool {
	sum := 0
	for i := 0; i < 13; i++ {
		c := s[i]
		if c < '0' || c > '9' {
			return false
		}
		w := 1
		if i%2 == 1 {
			w = 3
		}
		sum += int(c-'0') * w
	}
	return sum%10 == 0
}

// candidates are digit runs that may be separated by single spaces or
// hyphens, as printed under barcodes ("978-0-261-10221-7").
var candidates = regexp.MustCompile(`[0-9][0-9 \-]{8,20}[0-9Xx]`)

// Extract finds the first checksum-valid ISBN in free text such as OCR
// output. Text is untrusted: nothing is returned unless it validates.
func Extract(text string) (string, bool) {
	for _, m := range candidates.FindAllString(text, -1) {
		digits := digitsOf(m)
		if Valid(digits) {
			return digits, true
		}
		// A run may glue an ISBN-13 to neighbouring digits. Only windows
		// with a Bookland prefix are tried to keep false positives down.
		for i := 0; i+13 <= len(digits); i++ {
			w := digits[i : i+13]
			if (strings.HasPrefix(w, "978") || strings.HasPrefix(w, "979")) && Valid(w) {
				return w, true
			}
		}
	}
	return "", false
}
