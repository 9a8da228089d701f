// Package moderation sanitizes chat bodies before delivery: invisible
// character stripping and chat link validation.
package moderation

import (
	"errors"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"

	"github.com/realmchat/chat-engine/internal/chat"
)

var ErrInvalidLink = errors.New("body contains an invalid chat link")

// Policy holds the administrative switches of the filter.
type Policy struct {
	// StripInvisible collapses whitespace runs and removes zero-width and
	// control characters.
	StripInvisible bool
	// LinkSeverity enables link validation when > 0. 1 checks structure,
	// 2 and above also checks the link type against its color.
	LinkSeverity int
	// KickOnViolation asks the session layer to disconnect a sender whose
	// body fails link validation.
	KickOnViolation bool
}

// Filter is safe for concurrent use.
type Filter struct {
	policy Policy
}

func NewFilter(p Policy) *Filter {
	return &Filter{policy: p}
}

// invisible matches format characters (zero-width space, joiners, bidi
// marks) and control characters other than the whitespace handled by
// collapseSpace.
var invisible = runes.Predicate(func(r rune) bool {
	if r == '\t' || r == '\n' || r == '\a' || r == '\v' || r == '\r' {
		return false
	}
	return unicode.Is(unicode.Cf, r) || unicode.IsControl(r)
})

// Sanitize returns the body to deliver. Addon payloads pass through
// untouched.
func (f *Filter) Sanitize(body string, lang chat.Language) (string, error) {
	if lang == chat.LanguageAddon {
		return body, nil
	}

	if f.policy.StripInvisible {
		body = StripInvisible(body)
	}

	if f.policy.LinkSeverity > 0 && !ValidLinks(body, f.policy.LinkSeverity) {
		r := chat.Reject(chat.KindContentRejected, ErrInvalidLink)
		r.Kick = f.policy.KickOnViolation
		return "", r
	}
	return body, nil
}

// StripInvisible removes zero-width and control characters, collapses runs
// of spaces, tabs, bells and newlines into a single space and trims trailing
// space.
func StripInvisible(s string) string {
	cleaned, _, err := transform.String(runes.Remove(invisible), s)
	if err != nil {
		cleaned = s
	}
	return collapseSpace(cleaned)
}

func collapseSpace(s string) string {
	var b strings.Builder
	b.Grow(len(s))

	space := false
	for _, r := range s {
		switch r {
		case ' ', '\t', '\a', '\n', '\v', '\r':
			if !space {
				b.WriteByte(' ')
				space = true
			}
		default:
			b.WriteRune(r)
			space = false
		}
	}
	return strings.TrimRight(b.String(), " ")
}
