package llm

import (
	"regexp"
	"strings"
)

var (
	fencedCodeRe  = regexp.MustCompile("```[a-zA-Z]*\\n?")
	inlineCodeRe  = regexp.MustCompile("`([^`]*)`")
	linkRe        = regexp.MustCompile(`\[([^\]]*)\]\(([^)]*)\)`)
	boldUnderRe   = regexp.MustCompile(`__([^_]+)__`)
	boldStarRe    = regexp.MustCompile(`\*\*([^*]+)\*\*`)
	italicUnderRe = regexp.MustCompile(`_([^_]+)_`)
	italicStarRe  = regexp.MustCompile(`\*([^*]+)\*`)
	strikeRe      = regexp.MustCompile(`~~([^~]+)~~`)
	headerRe      = regexp.MustCompile(`(?m)^#{1,6}\s*`)
	bulletRe      = regexp.MustCompile(`(?m)^\s*[-*]\s+`)
	numberedRe    = regexp.MustCompile(`(?m)^\s*\d+[.)]\s+`)
	whitespaceRe  = regexp.MustCompile(`\s+`)
)

// StripMarkdown removes formatting markup so the remaining text is safe to
// speak aloud: bold/italic, strikethrough, inline and fenced code, links,
// headers, list bullets, numbered prefixes, and collapsed whitespace.
func StripMarkdown(text string) string {
	out := fencedCodeRe.ReplaceAllString(text, "")
	out = strings.ReplaceAll(out, "```", "")
	out = inlineCodeRe.ReplaceAllString(out, "$1")
	out = linkRe.ReplaceAllString(out, "$1")
	out = strikeRe.ReplaceAllString(out, "$1")
	out = boldUnderRe.ReplaceAllString(out, "$1")
	out = boldStarRe.ReplaceAllString(out, "$1")
	out = italicUnderRe.ReplaceAllString(out, "$1")
	out = italicStarRe.ReplaceAllString(out, "$1")
	out = headerRe.ReplaceAllString(out, "")
	out = bulletRe.ReplaceAllString(out, "")
	out = numberedRe.ReplaceAllString(out, "")
	out = strings.NewReplacer("*", "", "_", "", "`", "", "[", "", "]", "", "#", "").Replace(out)
	out = whitespaceRe.ReplaceAllString(out, " ")
	return strings.TrimSpace(out)
}
