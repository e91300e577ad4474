package discord

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/bwmarrin/discordgo"
	"github.com/stake-plus/raidparty/src/platform"
)

const (
	MaxDiscordMessageLen = 2000
)

// StyledMessage represents a fully formatted Discord message plus optional components.
type StyledMessage struct {
	Content    string
	Components []discordgo.MessageComponent
	BoxLines   []string
}

const (
	maxLinkButtons     = 25
	maxButtonLabelRune = 80

	boxInnerWidth = 56
	boxPadding    = 1

	ansiDim   = "\u001b[2m"
	ansiReset = "\u001b[0m"

	truncatedLine = "…"
)

var (
	newlineCollapse = regexp.MustCompile(`\n{3,}`)
	wrappedURLRegex = regexp.MustCompile(`<https?://[^\s<>]+>`)
)

// Beautify normalizes line endings and bullets and wraps bare URLs.
func Beautify(text string) string {
	if text == "" {
		return text
	}

	normalized := strings.ReplaceAll(text, "\r\n", "\n")
	normalized = newlineCollapse.ReplaceAllString(normalized, "\n\n")

	lines := strings.Split(normalized, "\n")
	for i, line := range lines {
		trimmed := strings.TrimSpace(line)
		switch {
		case strings.HasPrefix(trimmed, "- "):
			lines[i] = strings.Replace(line, "- ", "• ", 1)
		case strings.HasPrefix(trimmed, "* "):
			lines[i] = strings.Replace(line, "* ", "• ", 1)
		}
	}

	return WrapURLsNoEmbed(strings.TrimSpace(strings.Join(lines, "\n")))
}

// Render turns party content into a single boxed message that always fits in
// one Discord message. Body lines that do not fit are cut and marked.
func Render(content platform.Content) StyledMessage {
	cleaned := Beautify(strings.TrimSpace(content.Body))
	if cleaned == "" {
		cleaned = "_No content_"
	}

	withoutURLs, refs := replaceURLsWithReferences(cleaned)
	bodyLines := wrapBodyLines(withoutURLs, boxInnerWidth)
	boxLines := renderBox(content.Title, bodyLines)
	for runeLen(wrapBoxLines(boxLines)) > MaxDiscordMessageLen && len(bodyLines) > 1 {
		bodyLines = append(bodyLines[:len(bodyLines)-2], truncatedLine)
		boxLines = renderBox(content.Title, bodyLines)
	}

	return StyledMessage{
		Content:    wrapBoxLines(boxLines),
		Components: buildLinkButtons(refs),
		BoxLines:   boxLines,
	}
}

type linkReference struct {
	Index   int
	URL     string
	Display string
}

func replaceURLsWithReferences(input string) (string, []linkReference) {
	matches := wrappedURLRegex.FindAllStringIndex(input, -1)
	if len(matches) == 0 {
		return input, nil
	}

	var builder strings.Builder
	builder.Grow(len(input) + len(matches)*8)

	refs := make([]linkReference, 0, len(matches))
	seen := make(map[string]int)
	last := 0

	for _, match := range matches {
		builder.WriteString(input[last:match[0]])

		urlStr := strings.Trim(input[match[0]:match[1]], "<>")
		idx, exists := seen[urlStr]
		if !exists {
			refs = append(refs, linkReference{
				Index:   len(refs) + 1,
				URL:     urlStr,
				Display: summarizeURLDisplay(urlStr),
			})
			idx = len(refs) - 1
			seen[urlStr] = idx
		}

		fmt.Fprintf(&builder, "[Link %d]", refs[idx].Index)
		last = match[1]
	}

	builder.WriteString(input[last:])
	return builder.String(), refs
}

func buildLinkButtons(refs []linkReference) []discordgo.MessageComponent {
	if len(refs) == 0 {
		return nil
	}

	limit := min(len(refs), maxLinkButtons)

	var components []discordgo.MessageComponent
	var currentRow []discordgo.MessageComponent

	for _, ref := range refs[:limit] {
		button := discordgo.Button{
			Label: truncateForDiscord(fmt.Sprintf("Link %d · %s", ref.Index, ref.Display), maxButtonLabelRune),
			Style: discordgo.LinkButton,
			URL:   ref.URL,
		}
		currentRow = append(currentRow, button)
		if len(currentRow) == 5 {
			components = append(components, discordgo.ActionsRow{Components: currentRow})
			currentRow = nil
		}
	}

	if len(currentRow) > 0 {
		components = append(components, discordgo.ActionsRow{Components: currentRow})
	}

	return components
}

func renderBox(title string, bodyLines []string) []string {
	if len(bodyLines) == 0 {
		bodyLines = []string{""}
	}

	border := strings.Repeat("─", boxInnerWidth+boxPadding*2+2)

	lines := []string{"╭" + border + "╮"}
	if trimmedTitle := strings.TrimSpace(title); trimmedTitle != "" {
		lines = append(lines, formatBoxLine(trimmedTitle), "├"+border+"┤")
	}
	for _, line := range bodyLines {
		lines = append(lines, formatBoxLine(line))
	}
	return append(lines, "╰"+border+"╯")
}

func wrapBoxLines(lines []string) string {
	if len(lines) == 0 {
		return "```ansi\n```"
	}
	return fmt.Sprintf("```ansi\n%s%s%s\n```", ansiDim, strings.Join(lines, "\n"), ansiReset)
}

func formatBoxLine(content string) string {
	pad := strings.Repeat(" ", boxPadding)
	return fmt.Sprintf("│ %s%s%s │", pad, padRight(content, boxInnerWidth), pad)
}

func wrapBodyLines(body string, width int) []string {
	var lines []string
	for _, line := range strings.Split(body, "\n") {
		line = strings.TrimRight(line, " ")
		if line == "" {
			lines = append(lines, "")
			continue
		}
		lines = append(lines, wrapLine(line, width)...)
	}
	return lines
}

func wrapLine(line string, width int) []string {
	words := strings.Fields(line)
	if len(words) == 0 {
		return []string{""}
	}

	var temp []string
	var current strings.Builder
	for _, word := range words {
		if current.Len() == 0 {
			current.WriteString(word)
			continue
		}
		if runeLen(current.String())+1+runeLen(word) > width {
			temp = append(temp, current.String())
			current.Reset()
			current.WriteString(word)
		} else {
			current.WriteByte(' ')
			current.WriteString(word)
		}
	}
	if current.Len() > 0 {
		temp = append(temp, current.String())
	}

	var lines []string
	for _, entry := range temp {
		if runeLen(entry) <= width {
			lines = append(lines, entry)
			continue
		}
		lines = append(lines, splitLongWord(entry, width)...)
	}
	return lines
}

func splitLongWord(text string, width int) []string {
	var result []string
	runes := []rune(text)
	for len(runes) > width {
		result = append(result, string(runes[:width]))
		runes = runes[width:]
	}
	if len(runes) > 0 {
		result = append(result, string(runes))
	}
	return result
}

func padRight(text string, width int) string {
	runes := []rune(text)
	if len(runes) >= width {
		return string(runes[:width])
	}
	return text + strings.Repeat(" ", width-len(runes))
}

func runeLen(value string) int {
	return utf8.RuneCountInString(value)
}

func summarizeURLDisplay(raw string) string {
	parsed, err := url.Parse(raw)
	if err != nil || parsed.Host == "" {
		return raw
	}

	host := strings.TrimPrefix(parsed.Hostname(), "www.")
	path := strings.Trim(parsed.EscapedPath(), "/")
	if path == "" {
		return host
	}
	if first, _, _ := strings.Cut(path, "/"); first != "" {
		return host + "/" + first
	}
	return host
}

func truncateForDiscord(value string, limit int) string {
	runes := []rune(value)
	if len(runes) <= limit {
		return value
	}
	if limit <= 1 {
		return string(runes[:limit])
	}
	return string(runes[:limit-1]) + "…"
}
