package llms

import (
	"regexp"
	"strings"
)

// DefaultSpeakerTag is prefixed to replies that do not open with a speaker
// tag so the synthesis backend always knows which voice to use.
const DefaultSpeakerTag = "[S1]"

var speakerTagPattern = regexp.MustCompile(`^\[S\d+\]`)

// HasSpeakerTag reports whether text, ignoring leading whitespace, starts
// with a speaker tag such as [S1] or [S2].
func HasSpeakerTag(text string) bool {
	return speakerTagPattern.MatchString(strings.TrimSpace(text))
}

// EnsureSpeakerTag trims text and prefixes DefaultSpeakerTag when it does
// not already start with a speaker tag. Empty text stays empty.
func EnsureSpeakerTag(text string) string {
	text = strings.TrimSpace(text)
	if text == "" || speakerTagPattern.MatchString(text) {
		return text
	}
	return DefaultSpeakerTag + " " + text
}
