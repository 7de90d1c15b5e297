package folders

import "regexp"

// Client conversations carry a six-digit order token in their display name,
// either as a leading token followed by whitespace or anywhere in the string.
var (
	leadingTokenPattern = regexp.MustCompile(`^\d{6}\s+.+`)
	anyTokenPattern     = regexp.MustCompile(`\b\d{6}\b`)
)

// IsClientChat reports whether a display name classifies as a client
// conversation.
func IsClientChat(name DisplayName) bool {
	s := string(name)
	return leadingTokenPattern.MatchString(s) || anyTokenPattern.MatchString(s)
}
