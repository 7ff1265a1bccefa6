package filter

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"
)

const (
	// DefaultMinWords is the minimum number of significant tokens in a meaningful transcript.
	DefaultMinWords = 10
	// DefaultMinUniqueWords is the minimum number of distinct significant tokens.
	DefaultMinUniqueWords = 5

	minCleanedLength   = 20
	maxNoiseRatio      = 0.3
	maxDominantRatio   = 0.4
	minSignificantRune = 3
	tokenTrimSet       = ".,!?;:"
	maxRepeatWindow    = 8
)

// noiseWords are the bracket tags caption tracks use for non-speech audio.
var noiseWords = []string{
	"music",
	"applause",
	"laughter",
	"background music",
	"instrumental",
	"sound",
	"beat",
}

// liveIndicators are matched as plain substrings of the lowercased title.
var liveIndicators = []string{
	"live",
	"breaking",
	"streaming",
	"पत्रकार सम्मेलन",  // press conference
	"प्रेस कॉन्फ्रेंस", // press conference
	"सीधा प्रसारण",     // live broadcast
}

// ContentFilter decides whether transcript text is substantive and whether a
// video is a live broadcast. It holds only precompiled patterns and is safe
// for concurrent use.
type ContentFilter struct {
	noiseTagRegex *regexp.Regexp
	livePatterns  []*regexp.Regexp
}

// New returns a ContentFilter with its patterns compiled.
func New() *ContentFilter {
	return &ContentFilter{
		noiseTagRegex: regexp.MustCompile(`(?i)\[\s*(?:background music|music|applause|laughter|instrumental|sound|beat)\s*\]`),
		livePatterns: []*regexp.Regexp{
			regexp.MustCompile(`(?i)\blive\b`),
			regexp.MustCompile(`(?i)\bstreaming\b`),
			regexp.MustCompile(`(?i)\bpress conference\b`),
			regexp.MustCompile(`(?i)\bpress meet\b`),
			// RE2 word boundaries are ASCII-only, so Devanagari terms are
			// bounded by whitespace, punctuation or the string edges.
			regexp.MustCompile(`(?:^|[\s\p{P}])सीधा(?:[\s\p{P}]).*?प्रसारण`),
			regexp.MustCompile(`(?:^|[\s\p{P}])लाइव(?:[\s\p{P}]|$)`),
		},
	}
}

// Clean strips noise tags, collapses back-to-back repeated words and phrases
// and normalizes whitespace.
func (f *ContentFilter) Clean(text string) string {
	if text == "" {
		return ""
	}

	cleaned := f.noiseTagRegex.ReplaceAllString(text, " ")
	tokens := collapseRepeats(strings.Fields(cleaned))

	return strings.Join(tokens, " ")
}

// IsMeaningful applies Clean and then five independent gates: minimum
// length, minimum token count, minimum distinct tokens, noise ratio and the
// dominant-token repetition guard.
func (f *ContentFilter) IsMeaningful(text string, minWords, minUniqueWords int) bool {
	if minWords <= 0 {
		minWords = DefaultMinWords
	}
	if minUniqueWords <= 0 {
		minUniqueWords = DefaultMinUniqueWords
	}

	cleaned := f.Clean(text)
	if utf8.RuneCountInString(cleaned) < minCleanedLength {
		return false
	}

	words := significantTokens(cleaned)
	if len(words) < minWords {
		return false
	}

	counts := make(map[string]int, len(words))
	for _, w := range words {
		counts[strings.ToLower(w)]++
	}
	if len(counts) < minUniqueWords {
		return false
	}

	noisy := 0
	for _, w := range words {
		if isNoiseToken(w) {
			noisy++
		}
	}
	if float64(noisy)/float64(len(words)) > maxNoiseRatio {
		return false
	}

	dominant := 0
	for _, n := range counts {
		if n > dominant {
			dominant = n
		}
	}
	return float64(dominant)/float64(len(words)) <= maxDominantRatio
}

// IsLive reports whether the title or description looks like a live stream,
// breaking-news feed or press conference.
func (f *ContentFilter) IsLive(title, description string) bool {
	titleLower := strings.ToLower(title)
	for _, indicator := range liveIndicators {
		if strings.Contains(titleLower, indicator) {
			return true
		}
	}

	for _, pattern := range f.livePatterns {
		if pattern.MatchString(title) {
			return true
		}
		if description != "" && pattern.MatchString(description) {
			return true
		}
	}
	return false
}

// WordCount counts whitespace-separated words of already cleaned text.
func WordCount(cleaned string) int {
	return len(strings.Fields(cleaned))
}

// significantTokens trims trailing punctuation and keeps tokens longer than two runes.
func significantTokens(text string) []string {
	fields := strings.Fields(text)
	words := make([]string, 0, len(fields))
	for _, field := range fields {
		w := strings.Trim(field, tokenTrimSet)
		if utf8.RuneCountInString(w) >= minSignificantRune {
			words = append(words, w)
		}
	}
	return words
}

func isNoiseToken(word string) bool {
	lower := strings.ToLower(word)
	for _, noise := range noiseWords {
		if strings.Contains(lower, noise) {
			return true
		}
	}
	return false
}

// collapseRepeats folds words and short phrases repeated back-to-back
// ("Heat Heat Heat", "breaking news breaking news") into a single
// occurrence. Longer windows are tried first, down to a single word.
// Matching is case-insensitive on whole words; trailing punctuation on the
// last repeat is kept, as in "Heat Heat." -> "Heat.".
func collapseRepeats(tokens []string) []string {
	out := make([]string, 0, len(tokens))
	for _, tok := range tokens {
		out = append(out, tok)
		for w := min(maxRepeatWindow, len(out)/2); w >= 1; w-- {
			if tail, ok := repeatsPrevious(out, w); ok {
				out = out[:len(out)-w]
				out[len(out)-1] += tail
				break
			}
		}
	}
	return out
}

// repeatsPrevious reports whether the last w tokens of out repeat the w
// before them, returning the punctuation trailing the final token.
func repeatsPrevious(out []string, w int) (string, bool) {
	n := len(out)
	var tail string
	for i := 0; i < w; i++ {
		prev, cur := out[n-2*w+i], out[n-w+i]
		if !isWord(prev) {
			return "", false
		}
		head, rest := splitWordPrefix(cur)
		if i < w-1 && rest != "" {
			return "", false
		}
		if head == "" || !strings.EqualFold(head, prev) {
			return "", false
		}
		tail = rest
	}
	return tail, true
}

func isWordRune(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r) || unicode.IsMark(r) || r == '_'
}

func isWord(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if !isWordRune(r) {
			return false
		}
	}
	return true
}

// splitWordPrefix splits a token into its leading word-character run and the rest.
func splitWordPrefix(tok string) (string, string) {
	for i, r := range tok {
		if !isWordRune(r) {
			return tok[:i], tok[i:]
		}
	}
	return tok, ""
}
