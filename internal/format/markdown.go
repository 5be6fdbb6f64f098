package format

import (
	"regexp"
	"strings"
)

// keycap follows a digit: "1" + keycap renders as 1️⃣.
const keycap = "\uFE0F\u20E3"

// markdownSentinels mark text whose headers were already converted.
var markdownSentinels = []string{"🚀", "🔥", "⭐"}

// sectionEmojis start a converted header line.
var sectionEmojis = []string{"🔥", "⭐", "🎯", "🚀"}

var (
	tripleEmphasis = regexp.MustCompile(`\*\*\*(.*?)\*\*\*`)
	numberedItem   = regexp.MustCompile(`(?m)^(\d+)\. `)
)

// markdownRules is the agent-agnostic generic pass. Header levels are
// matched 2→3→4→1 so "## " is never mistaken for "# ".
var markdownRules = Chain{
	RuleFunc(collapseEmphasis),
	header{marker: "## ", emoji: "🔥"},
	header{marker: "### ", emoji: "⭐"},
	header{marker: "#### ", emoji: "🎯"},
	header{marker: "# ", emoji: "🚀"},
	RuleFunc(separateSections),
	RuleFunc(bulletize),
	RuleFunc(numberize),
}

// Markdown applies the generic pass. Text that already contains a header
// sentinel is returned unchanged.
func Markdown(text string) string {
	if containsAny(text, markdownSentinels) {
		return text
	}
	return markdownRules.Apply(text)
}

// collapseEmphasis turns ***x*** into **x**, repeating until no triple run
// is left so longer runs such as ****x**** settle in one call. Every round
// removes asterisks, so it terminates.
func collapseEmphasis(text string) string {
	for tripleEmphasis.MatchString(text) {
		text = tripleEmphasis.ReplaceAllString(text, "**$1**")
	}
	return text
}

// header converts "<marker>Title" lines into "<emoji> **Title**". Titles that
// already start with the emoji, and empty titles, are left alone.
type header struct {
	marker string
	emoji  string
}

func (h header) Apply(text string) string {
	return mapLines(text, func(line string) string {
		title, ok := strings.CutPrefix(line, h.marker)
		if !ok || title == "" || strings.HasPrefix(title, h.emoji) {
			return line
		}
		return h.emoji + " **" + title + "**"
	})
}

// separateSections puts a blank line before every converted header that
// does not start the text. A header already preceded by a blank line or a
// code fence is left alone.
func separateSections(text string) string {
	lines := strings.Split(text, "\n")
	out := make([]string, 0, len(lines)+4)
	for i, line := range lines {
		if i > 0 && isSectionHeader(line) && !separated(lines[i-1]) {
			out = append(out, "")
		}
		out = append(out, line)
	}
	return strings.Join(out, "\n")
}

func isSectionHeader(line string) bool {
	for _, e := range sectionEmojis {
		if strings.HasPrefix(line, e+" **") {
			return true
		}
	}
	return false
}

func separated(prev string) bool {
	prev = strings.TrimSpace(prev)
	return prev == "" || strings.HasPrefix(prev, "```")
}

// bulletize turns "- item" into "• item" unless the text already uses
// bullet glyphs or asterisk markup.
func bulletize(text string) string {
	if strings.Contains(text, "•") || strings.Contains(text, "*") {
		return text
	}
	return mapLines(text, func(line string) string {
		if item, ok := strings.CutPrefix(line, "- "); ok {
			return "• " + item
		}
		return line
	})
}

// numberize turns "1. item" into "1️⃣ item" unless keycaps are already present.
func numberize(text string) string {
	if strings.Contains(text, keycap) {
		return text
	}
	return numberedItem.ReplaceAllString(text, "${1}"+keycap+" ")
}
