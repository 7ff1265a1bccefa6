package ai

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

// PromptTemplates contains the prompts sent to the model
var PromptTemplates = struct {
	NewsSummary string
}{
	NewsSummary: `You are an experienced news editor.
Summarize the following news video transcript for a reader who has not watched it.

Requirements:
1. Plain English prose, no headings, no bullet points, no markdown
2. State who, what, where and when if the transcript says so
3. Do not add facts that are not in the transcript
4. Between %d and %d words

Respond with the summary text only.

Transcript:
%s`,
}

// Input limits for summarization, in characters of transcript text.
const (
	DefaultMaxInputChars = 8000
	minSentenceBreak     = 500
)

// BuildSummaryPrompt creates the summarization prompt for a transcript
func BuildSummaryPrompt(transcript string) string {
	minWords, maxWords := TargetLength(len(transcript))
	return fmt.Sprintf(PromptTemplates.NewsSummary, minWords, maxWords, escapeForPrompt(transcript))
}

// TargetLength picks a summary word range that grows with the input.
func TargetLength(inputChars int) (minWords, maxWords int) {
	switch {
	case inputChars < 200:
		return 20, 50
	case inputChars < 500:
		return 30, 80
	case inputChars < 1000:
		return 40, 120
	default:
		return 50, 150
	}
}

// TruncateInput shortens text to at most limit bytes, preferring to cut at a
// sentence end when one is reasonably far in.
func TruncateInput(text string, limit int) string {
	if limit <= 0 || len(text) <= limit {
		return text
	}
	cut := text[:limit]
	for len(cut) > 0 && !utf8.ValidString(cut) {
		cut = cut[:len(cut)-1]
	}
	if i := strings.LastIndex(cut, "."); i > minSentenceBreak {
		return cut[:i+1]
	}
	return strings.TrimSpace(cut) + "..."
}

// escapeForPrompt flattens whitespace so the transcript stays one block
func escapeForPrompt(s string) string {
	s = strings.ReplaceAll(s, "\r", " ")
	s = strings.ReplaceAll(s, "\n", " ")
	s = strings.ReplaceAll(s, "\t", " ")
	return strings.TrimSpace(s)
}
