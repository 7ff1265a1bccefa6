package ai

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"
)

// ErrInvalidSummary is returned when model output fails validation.
var ErrInvalidSummary = errors.New("ai: invalid summary")

var (
	controlCharRegex = regexp.MustCompile(`[\x00-\x08\x0B\x0C\x0E-\x1F\x7F]`)
	htmlTagRegex     = regexp.MustCompile(`<[^>]*>`)
	scriptRegex      = regexp.MustCompile(`(?is)<(script|style|iframe|object|embed)[^>]*>.*?</(script|style|iframe|object|embed)>`)
	// models like to open with a label even when told not to
	leadInRegex = regexp.MustCompile(`(?i)^\s*(?:\*\*)?(?:summary|here is (?:a|the) summary[^:]*)(?:\*\*)?\s*:\s*(?:\*\*)?\s*`)
)

type PostProcessor struct {
	minSummaryLength int
	maxSummaryRatio  float64
}

func NewPostProcessor() *PostProcessor {
	return &PostProcessor{
		minSummaryLength: 20,
		maxSummaryRatio:  1.0,
	}
}

// ProcessSummary cleans model output and checks it against the source text.
// The summary must be non-empty and shorter than what it summarizes.
func (p *PostProcessor) ProcessSummary(summary, source string) (string, error) {
	cleaned := p.cleanText(summary)

	if cleaned == "" {
		return "", fmt.Errorf("%w: empty", ErrInvalidSummary)
	}
	if utf8.RuneCountInString(cleaned) < p.minSummaryLength {
		return "", fmt.Errorf("%w: shorter than %d characters", ErrInvalidSummary, p.minSummaryLength)
	}
	srcLen := utf8.RuneCountInString(strings.TrimSpace(source))
	if float64(utf8.RuneCountInString(cleaned)) >= float64(srcLen)*p.maxSummaryRatio {
		return "", fmt.Errorf("%w: not shorter than the transcript", ErrInvalidSummary)
	}
	return cleaned, nil
}

// cleanText strips fences, markup and labels, then normalizes whitespace
func (p *PostProcessor) cleanText(s string) string {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "```text")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")

	s = scriptRegex.ReplaceAllString(s, " ")
	s = htmlTagRegex.ReplaceAllString(s, " ")
	s = controlCharRegex.ReplaceAllString(s, " ")
	s = leadInRegex.ReplaceAllString(s, "")

	return strings.Join(strings.Fields(s), " ")
}
