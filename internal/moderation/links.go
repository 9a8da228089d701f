package moderation

import "strings"

// A chat link is `|c<AARRGGBB>|H<type>:<data>|h[<text>]|h|r`. A literal pipe
// is written `||`. Any other escape, or a link that does not follow this
// shape, is invalid.

// linkColors maps a link type to the colors the client renders it in.
// An empty set accepts any color.
var linkColors = map[string][]string{
	"item": {
		"ff9d9d9d", // poor
		"ffffffff", // common
		"ff1eff00", // uncommon
		"ff0070dd", // rare
		"ffa335ee", // epic
		"ffff8000", // legendary
		"ffe6cc80", // artifact / heirloom
	},
	"quest":       {"ffffff00", "ff808080", "ff40c040", "ffff2020", "ffff8040"},
	"spell":       {"ff71d5ff"},
	"enchant":     {"ffffd000"},
	"talent":      {"ff4e96f7", "ff71d5ff"},
	"trade":       {"ffffd000"},
	"achievement": {"ffffff00"},
	"glyph":       {"ff66bbff"},
}

// ValidLinks reports whether every pipe escape in s is well formed.
func ValidLinks(s string, severity int) bool {
	for i := 0; i < len(s); i++ {
		if s[i] != '|' {
			continue
		}
		if i+1 >= len(s) {
			return false
		}
		switch s[i+1] {
		case '|':
			i++
		case 'c':
			n, ok := parseLink(s[i:], severity)
			if !ok {
				return false
			}
			i += n - 1
		default:
			return false
		}
	}
	return true
}

// parseLink parses one link at the start of s and returns its byte length.
func parseLink(s string, severity int) (int, bool) {
	// |c + 8 hex digits
	if len(s) < 10 {
		return 0, false
	}
	color := strings.ToLower(s[2:10])
	if !isHex(color) {
		return 0, false
	}
	pos := 10

	if !strings.HasPrefix(s[pos:], "|H") {
		return 0, false
	}
	pos += 2
	end := strings.Index(s[pos:], "|h")
	if end < 0 {
		return 0, false
	}
	ref := s[pos : pos+end]
	pos += end + 2

	kind, data, ok := strings.Cut(ref, ":")
	if !ok || kind == "" || data == "" || strings.ContainsRune(ref, '|') {
		return 0, false
	}

	if !strings.HasPrefix(s[pos:], "[") {
		return 0, false
	}
	closeText := strings.Index(s[pos:], "]|h|r")
	if closeText < 0 {
		return 0, false
	}
	text := s[pos+1 : pos+closeText]
	if text == "" || strings.ContainsAny(text, "|[]") {
		return 0, false
	}
	pos += closeText + len("]|h|r")

	if severity >= 2 && !colorMatches(kind, color) {
		return 0, false
	}
	return pos, true
}

func colorMatches(kind, color string) bool {
	colors, ok := linkColors[kind]
	if !ok {
		return false
	}
	for _, c := range colors {
		if c == color {
			return true
		}
	}
	return false
}

func isHex(s string) bool {
	for i := 0; i < len(s); i++ {
		c := s[i]
		if (c < '0' || c > '9') && (c < 'a' || c > 'f') {
			return false
		}
	}
	return true
}
