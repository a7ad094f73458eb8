// Package fidelity gates every enhanced artifact against the source text.
// The pipeline promise is that no character is ever altered; these checks
// are how the promise is enforced rather than assumed.
package fidelity

import (
	"errors"
	"fmt"
	"strings"

	"golang.org/x/text/unicode/norm"
)

// ErrTokenMismatch marks a token-sequence divergence between source and
// enhanced text.
var ErrTokenMismatch = errors.New("token sequence mismatch")

// ErrTextAltered marks a byte-level divergence where exact preservation was
// claimed.
var ErrTextAltered = errors.New("text altered")

// TokenError reports the first divergent token position. A missing side is
// left empty when one sequence is a prefix of the other.
type TokenError struct {
	Index    int
	Original string
	Enhanced string
}

func (e *TokenError) Error() string {
	switch {
	case e.Original == "":
		return fmt.Sprintf("token %d: enhanced adds %q past end of original", e.Index, e.Enhanced)
	case e.Enhanced == "":
		return fmt.Sprintf("token %d: original %q missing from enhanced", e.Index, e.Original)
	default:
		return fmt.Sprintf("token %d: original %q, enhanced %q", e.Index, e.Original, e.Enhanced)
	}
}

func (e *TokenError) Unwrap() error { return ErrTokenMismatch }

// Tokens splits text on runs of Unicode whitespace. Empty input yields an
// empty slice.
func Tokens(s string) []string {
	return strings.Fields(s)
}

// CheckTokens verifies that enhanced text carries exactly the same token
// sequence as the original. Formatting may move whitespace around; it may
// not add, drop or change a single word.
func CheckTokens(original, enhanced string) error {
	return checkTokens(original, enhanced, false)
}

// CheckTokensNFC compares like CheckTokens but normalizes both sides to NFC
// first, for text that crossed a boundary known to recompose combining
// characters.
func CheckTokensNFC(original, enhanced string) error {
	return checkTokens(original, enhanced, true)
}

func checkTokens(original, enhanced string, nfc bool) error {
	if nfc {
		original = norm.NFC.String(original)
		enhanced = norm.NFC.String(enhanced)
	}
	want := Tokens(original)
	got := Tokens(enhanced)
	n := len(want)
	if len(got) < n {
		n = len(got)
	}
	for i := 0; i < n; i++ {
		if want[i] != got[i] {
			return &TokenError{Index: i, Original: want[i], Enhanced: got[i]}
		}
	}
	if len(want) != len(got) {
		e := &TokenError{Index: n}
		if len(want) > len(got) {
			e.Original = want[n]
		} else {
			e.Enhanced = got[n]
		}
		return e
	}
	return nil
}

// CheckExact demands byte-for-byte equality. Used where an artifact claims
// exact character preservation, such as styled-line concatenation or the
// DocBook round trip of verbatim paragraphs.
func CheckExact(original, enhanced string) error {
	if original == enhanced {
		return nil
	}
	n := len(original)
	if len(enhanced) < n {
		n = len(enhanced)
	}
	i := 0
	for i < n && original[i] == enhanced[i] {
		i++
	}
	return fmt.Errorf("%w: first divergence at byte %d (original %d bytes, enhanced %d bytes)",
		ErrTextAltered, i, len(original), len(enhanced))
}
