package processor

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

const (
	replyTemplate = "[Image with added title]({image_url})\n\n" +
		"{upscaled}---\n\n" +
		"summon me with /u/{bot_name} | " +
		"[feedback](https://reddit.com/message/compose/?to={bot_name}&subject=feedback%20{submission_id}) | " +
		"[source]({source_url})"

	upscaledNote = "(image was upscaled)\n\n"

	maxCustomTitleLength = 512
)

type Reply struct {
	ImageURL     string
	SubmissionID string
	Upscaled     bool
	BotName      string
	SourceURL    string
}

// RenderReply fills the reply template. Values are substituted in one pass,
// so placeholders inside them are left untouched.
func RenderReply(r Reply) string {
	upscaled := ""
	if r.Upscaled {
		upscaled = upscaledNote
	}

	return strings.NewReplacer(
		"{image_url}", r.ImageURL,
		"{upscaled}", upscaled,
		"{bot_name}", r.BotName,
		"{submission_id}", r.SubmissionID,
		"{source_url}", r.SourceURL,
	).Replace(replyTemplate)
}

// CustomTitleRe matches a mention of botName followed by a quoted title.
func CustomTitleRe(botName string) *regexp.Regexp {
	return regexp.MustCompile(`(?i)^.*u/` + regexp.QuoteMeta(botName) + `\s*["“”](.+)["“”]`)
}

// ExtractCustomTitle returns the quoted text matched by re in body. Titles
// longer than 512 characters are discarded.
func ExtractCustomTitle(re *regexp.Regexp, body string) (string, bool) {
	m := re.FindStringSubmatch(body)
	if m == nil {
		return "", false
	}

	title := m[1]
	if utf8.RuneCountInString(title) > maxCustomTitleLength {
		return "", false
	}

	return title, true
}
