package filter

import (
	"strings"
	"unicode"

	"github.com/bilgisen/newsbyte/internal/models"
)

type genreBucket struct {
	genre    models.Genre
	keywords []string
}

// genreBuckets are checked in order; the first bucket with a hit wins.
var genreBuckets = []genreBucket{
	{models.GenrePolitics, []string{"election", "minister", "bjp", "congress", "parliament", "cm", "pm"}},
	{models.GenreSports, []string{"match", "team", "player", "tournament"}},
	{models.GenreTechnology, []string{"ai", "technology", "smartphone", "internet"}},
	{models.GenreEntertainment, []string{"movie", "film", "actor", "celebrity", "music"}},
	{models.GenreCrime, []string{"attack", "murder", "crime", "terror", "raid"}},
}

// shortKeywordLen is the length at or below which a keyword must match a
// whole token; longer keywords match as token prefixes ("elections").
const shortKeywordLen = 3

// ClassifyGenre buckets cleaned transcript text into a genre. It is a
// best-effort keyword match and falls back to general.
func ClassifyGenre(text string) models.Genre {
	tokens := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	if len(tokens) == 0 {
		return models.GenreGeneral
	}

	for _, bucket := range genreBuckets {
		for _, kw := range bucket.keywords {
			if containsKeyword(tokens, kw) {
				return bucket.genre
			}
		}
	}
	return models.GenreGeneral
}

func containsKeyword(tokens []string, kw string) bool {
	for _, tok := range tokens {
		if len(kw) <= shortKeywordLen {
			if tok == kw {
				return true
			}
			continue
		}
		if strings.HasPrefix(tok, kw) {
			return true
		}
	}
	return false
}
