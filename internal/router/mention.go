package router

import (
	"regexp"
	"strings"

	"github.com/leandrotocalini/boardroom/internal/agent"
)

// mentionPattern matches a leading @<advisor> mention, e.g. "@cfo what now?".
var mentionPattern = regexp.MustCompile(`(?i)^@(cto|cmo|cfo|architect)\b[:,]?\s*`)

// Mention reports which advisor a message is addressed to by a leading
// @mention and returns the text without it.
func Mention(text string) (agent.Identity, string, bool) {
	text = strings.TrimSpace(text)
	m := mentionPattern.FindStringSubmatch(text)
	if m == nil {
		return "", text, false
	}
	id, err := agent.Parse(m[1])
	if err != nil {
		return "", text, false
	}
	return id, strings.TrimSpace(text[len(m[0]):]), true
}
