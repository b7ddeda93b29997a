// Package postprocess removes common LLM artifacts from model replies.
//
// Analysis replies (transcript, extracted and verified segments) go through
// Clean. Judge replies only go through StripThinking, since their fence
// handling is part of verdict parsing. Writer drafts are kept verbatim.
package postprocess

import (
	"regexp"
	"strings"
)

// Clean removes LLM artifacts from text in three phases and returns the
// trimmed result:
//  1. Thinking / reasoning block removal
//  2. Preamble removal ("Here is the transcript:")
//  3. Whole-reply markdown fence removal
func Clean(text string) string {
	text = StripThinking(text)
	text = removePreamble(text)
	text = removeFenceWrapping(text)
	return strings.TrimSpace(text)
}

// --- Phase 1: thinking blocks ---

// thinkingBlockRe matches complete <thinking>…</thinking> style blocks.
// RE2 has no backreferences, so each tag variant is listed.
var thinkingBlockRe = regexp.MustCompile(
	`(?is)<thinking>.*?</thinking>|<think>.*?</think>|<reasoning>.*?</reasoning>|<reflection>.*?</reflection>`,
)

// truncatedThinkingRe matches an opened thinking tag whose closing tag is
// missing (the model was cut off mid-thought).
var truncatedThinkingRe = regexp.MustCompile(
	`(?is)(?:<thinking>|<think>|<reasoning>|<reflection>).*$`,
)

// StripThinking drops reasoning blocks emitted by thinking models.
func StripThinking(text string) string {
	text = thinkingBlockRe.ReplaceAllString(text, "")
	text = truncatedThinkingRe.ReplaceAllString(text, "")
	return strings.TrimSpace(text)
}

// --- Phase 2: preambles ---

// preamblePatterns match introductory phrases prepended to an otherwise
// well-formed reply. Anchored at the start and ending in a colon.
var preamblePatterns = []*regexp.Regexp{
	// "Here is / Here's / Here are [the] [full|verified|final] transcript|segments|report:"
	regexp.MustCompile(`(?i)^here(?:'s| is| are)(?: the)? (?:full |complete |verified |final |refined )?(?:transcript(?:ion)?|segments?|viral segments|report|analysis)\s*:`),
	// "Certainly / Sure / Of course[,] here is ...:"
	regexp.MustCompile(`(?i)^(?:certainly|sure|of course)[,.!]? here(?:'s| is| are)(?: the)? (?:full |complete |verified |final |refined )?(?:transcript(?:ion)?|segments?|viral segments|report|analysis)\s*:`),
}

func removePreamble(text string) string {
	for _, re := range preamblePatterns {
		if loc := re.FindStringIndex(text); loc != nil && loc[0] == 0 {
			text = strings.TrimSpace(text[loc[1]:])
		}
	}
	return text
}

// --- Phase 3: fence wrapping ---

// removeFenceWrapping strips a ``` fence pair when it wraps the whole reply,
// e.g. "```markdown\n...\n```".
func removeFenceWrapping(text string) string {
	trimmed := strings.TrimSpace(text)
	if !strings.HasPrefix(trimmed, "```") || !strings.HasSuffix(trimmed, "```") {
		return text
	}
	lines := strings.Split(trimmed, "\n")
	if len(lines) < 3 {
		return text
	}
	return strings.TrimSpace(strings.Join(lines[1:len(lines)-1], "\n"))
}
