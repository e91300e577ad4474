package discord

import (
	"regexp"
	"strings"
)

var urlRegex = regexp.MustCompile(`https?://[^\s\[\]()<>]+`)

// WrapURLsNoEmbed wraps URLs in angle brackets to prevent Discord embeds.
// Trailing punctuation stays outside the brackets and already wrapped URLs are left alone.
func WrapURLsNoEmbed(text string) string {
	matches := urlRegex.FindAllStringIndex(text, -1)
	if len(matches) == 0 {
		return text
	}

	var b strings.Builder
	last := 0
	for _, m := range matches {
		b.WriteString(text[last:m[0]])
		raw := text[m[0]:m[1]]
		if m[0] > 0 && text[m[0]-1] == '<' {
			b.WriteString(raw)
			last = m[1]
			continue
		}
		url := strings.TrimRight(raw, ".,;:!?")
		b.WriteString("<" + url + ">" + raw[len(url):])
		last = m[1]
	}
	b.WriteString(text[last:])
	return b.String()
}
