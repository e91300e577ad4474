package party

import (
	"fmt"
	"html"
	"strings"
	"time"
	"unicode"

	"github.com/microcosm-cc/bluemonday"
	"github.com/stake-plus/raidparty/src/platform"
)

const (
	defaultWarningEvery  = 5
	maxLabelLength       = 32
	maxNameLength        = 64
	maxDescriptionLength = 1000
	maxChannelNameLength = 100
)

var textPolicy = bluemonday.StrictPolicy()

// cleanText strips markup and control characters, collapses whitespace and
// truncates to limit runes.
func cleanText(s string, limit int) string {
	s = html.UnescapeString(textPolicy.Sanitize(s))
	s = strings.Map(func(r rune) rune {
		if unicode.IsControl(r) && r != '\n' {
			return -1
		}
		return r
	}, s)
	s = strings.TrimSpace(s)
	if r := []rune(s); len(r) > limit {
		s = strings.TrimSpace(string(r[:limit]))
	}
	return s
}

// channelSlug converts a display name into a channel name.
func channelSlug(name string) string {
	var b strings.Builder
	dash := false
	for _, r := range strings.ToLower(name) {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			b.WriteRune(r)
			dash = false
		case !dash && b.Len() > 0:
			b.WriteByte('-')
			dash = true
		}
	}
	slug := strings.TrimRight(b.String(), "-")
	if r := []rune(slug); len(r) > maxChannelNameLength {
		slug = strings.TrimRight(string(r[:maxChannelNameLength]), "-")
	}
	if slug == "" {
		slug = "party"
	}
	return slug
}

func discordTime(t time.Time) string {
	return fmt.Sprintf("<t:%d:t>", t.Unix())
}

func statusLabel(s Status) string {
	switch s {
	case StatusInterested:
		return "Interested"
	case StatusComing:
		return "Coming"
	case StatusPresent:
		return "Here"
	case StatusCompletePending:
		return "Finishing"
	case StatusComplete:
		return "Done"
	default:
		return "Not interested"
	}
}

func deletionWarningContent(at, now time.Time) platform.Content {
	remaining := at.Sub(now).Round(time.Minute)
	body := fmt.Sprintf("This channel will be deleted at %s.", discordTime(at))
	if remaining > 0 {
		body = fmt.Sprintf("This channel will be deleted in %s (%s).", remaining, discordTime(at))
	}
	return platform.Content{
		Title: "Channel cleanup",
		Body:  body + "\nPost here to coordinate until then; nothing is kept afterwards.",
	}
}

func movedContent(previous platform.Content, region string) platform.Content {
	return platform.Content{
		Title: "Moved to " + region,
		Body:  previous.Body,
	}
}

func optionalTime(label string, t *time.Time) string {
	if t == nil {
		return ""
	}
	return fmt.Sprintf("%s: %s", label, discordTime(*t))
}

func joinNonEmpty(lines ...string) string {
	var out []string
	for _, l := range lines {
		if l != "" {
			out = append(out, l)
		}
	}
	return strings.Join(out, "\n")
}
