// Package format turns raw advisor replies into display text: markdown
// normalisation followed by per-persona keyword-to-emoji annotation.
//
// Every rule-set is an ordered Chain applied as a left fold, so later rules
// see the output of earlier ones. Escape checks are plain boolean guards
// evaluated once, before a chain runs.
package format

import (
	"regexp"
	"strings"
)

// Rule rewrites text. Rules never fail.
type Rule interface {
	Apply(text string) string
}

// RuleFunc adapts a plain function to Rule.
type RuleFunc func(string) string

func (f RuleFunc) Apply(text string) string { return f(text) }

// Chain is an ordered rule-set.
type Chain []Rule

func (c Chain) Apply(text string) string {
	for _, r := range c {
		text = r.Apply(text)
	}
	return text
}

// containsAny reports whether text contains any of the sentinels.
func containsAny(text string, sentinels []string) bool {
	for _, s := range sentinels {
		if strings.Contains(text, s) {
			return true
		}
	}
	return false
}

// literal replaces every occurrence of Old with New.
type literal struct {
	Old, New string
}

func (l literal) Apply(text string) string {
	return strings.ReplaceAll(text, l.Old, l.New)
}

// keyword prefixes every match of re with an emoji and normalises the match
// to its canonical spelling, e.g. "api" → "🌐 API".
//
// When once is set a match that already carries the prefix is left alone,
// which keeps a second formatting pass a no-op.
type keyword struct {
	re     *regexp.Regexp
	prefix string // emoji + " "
	canon  string
	once   bool
}

// wordRule matches term as a whole word; caseless makes the match
// case-insensitive.
func wordRule(emoji, term string, caseless bool) keyword {
	expr := `\b` + regexp.QuoteMeta(term) + `\b`
	if caseless {
		expr = `(?i)` + expr
	}
	return keyword{re: regexp.MustCompile(expr), prefix: emoji + " ", canon: term, once: true}
}

// substringRule matches term anywhere, case-insensitively, and re-prefixes
// on every pass.
func substringRule(emoji, term string) keyword {
	return keyword{re: regexp.MustCompile(`(?i)` + regexp.QuoteMeta(term)), prefix: emoji + " ", canon: term}
}

func (k keyword) Apply(text string) string {
	locs := k.re.FindAllStringIndex(text, -1)
	if len(locs) == 0 {
		return text
	}

	var b strings.Builder
	b.Grow(len(text) + len(locs)*(len(k.prefix)+2))
	last := 0
	for _, loc := range locs {
		b.WriteString(text[last:loc[0]])
		if k.once && strings.HasSuffix(text[:loc[0]], k.prefix) {
			b.WriteString(text[loc[0]:loc[1]])
		} else {
			b.WriteString(k.prefix)
			b.WriteString(k.canon)
		}
		last = loc[1]
	}
	b.WriteString(text[last:])
	return b.String()
}

// mapLines applies fn to every line of text. A trailing "\r" is hidden from
// fn and restored afterwards so CRLF input behaves like LF input.
func mapLines(text string, fn func(line string) string) string {
	lines := strings.Split(text, "\n")
	for i, line := range lines {
		body, cr := strings.CutSuffix(line, "\r")
		body = fn(body)
		if cr {
			body += "\r"
		}
		lines[i] = body
	}
	return strings.Join(lines, "\n")
}
