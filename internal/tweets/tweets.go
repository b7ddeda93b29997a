// Package tweets cuts a drafted thread into postable tweets.
package tweets

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// MaxLength is the tweet limit in code points.
const MaxLength = 280

// Split breaks a thread into tweets at blank lines.
func Split(thread string) []string {
	thread = strings.ReplaceAll(thread, "\r\n", "\n")

	var tweets []string
	for _, block := range strings.Split(thread, "\n\n") {
		if block = strings.TrimSpace(block); block != "" {
			tweets = append(tweets, block)
		}
	}
	return tweets
}

// Fit cuts every tweet longer than MaxLength at a sentence end, then at
// whitespace, and hard-cuts only when neither exists.
func Fit(tweets []string) []string {
	var out []string
	for _, t := range tweets {
		out = append(out, chunk(t, MaxLength)...)
	}
	return out
}

// Overlong returns the indexes of tweets over MaxLength.
func Overlong(tweets []string) []int {
	var idx []int
	for i, t := range tweets {
		if Length(t) > MaxLength {
			idx = append(idx, i)
		}
	}
	return idx
}

func Length(tweet string) int {
	return utf8.RuneCountInString(tweet)
}

func chunk(text string, maxChars int) []string {
	var chunks []string
	remaining := text

	for Length(remaining) > maxChars {
		split := findSplit(remaining, maxChars)
		if part := strings.TrimSpace(remaining[:split]); part != "" {
			chunks = append(chunks, part)
		}
		remaining = strings.TrimSpace(remaining[split:])
	}
	if remaining != "" {
		chunks = append(chunks, remaining)
	}
	return chunks
}

// findSplit returns the byte offset to cut text at so the head has at most
// maxChars runes.
func findSplit(text string, maxChars int) int {
	runes := []rune(text)
	candidate := runes[:maxChars]

	for i := len(candidate) - 1; i > 0; i-- {
		r := candidate[i]
		if (r == '.' || r == '!' || r == '?') && i+1 < len(runes) && unicode.IsSpace(runes[i+1]) {
			return len(string(candidate[:i+1]))
		}
	}

	for i := len(candidate) - 1; i > 0; i-- {
		if unicode.IsSpace(candidate[i]) {
			return len(string(candidate[:i]))
		}
	}

	return len(string(candidate))
}
