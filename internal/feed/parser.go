package feed

import (
	"fmt"
	"html"
	"regexp"
	"strings"

	"github.com/bilgisen/newsbyte/internal/youtube"
)

// Parser cleans search candidates before they enter the pipeline. Search
// snippets arrive HTML-escaped and occasionally carry markup.
type Parser struct {
	htmlTagRegex *regexp.Regexp
}

func NewParser() *Parser {
	return &Parser{
		htmlTagRegex: regexp.MustCompile(`<[^>]*>`),
	}
}

// CleanHTML removes HTML tags and normalizes whitespace
func (p *Parser) CleanHTML(input string) string {
	cleaned := p.htmlTagRegex.ReplaceAllString(input, " ")
	cleaned = html.UnescapeString(cleaned)
	return strings.Join(strings.Fields(cleaned), " ")
}

// NormalizeVideo trims and unescapes the display fields of a candidate.
func (p *Parser) NormalizeVideo(v youtube.Video) youtube.Video {
	return youtube.Video{
		ID:           strings.TrimSpace(v.ID),
		Title:        p.CleanHTML(v.Title),
		Description:  p.CleanHTML(v.Description),
		ThumbnailURL: strings.TrimSpace(v.ThumbnailURL),
		ChannelID:    strings.TrimSpace(v.ChannelID),
		ChannelTitle: p.CleanHTML(v.ChannelTitle),
		PublishedAt:  v.PublishedAt,
	}
}

// ValidateVideo checks the candidate has the fields the pipeline needs.
func (p *Parser) ValidateVideo(v youtube.Video) error {
	if v.ID == "" {
		return fmt.Errorf("missing required field: id")
	}
	if v.Title == "" {
		return fmt.Errorf("missing required field: title")
	}
	return nil
}

// NormalizeCandidates cleans and validates search results, keeping their
// order and dropping repeated IDs.
func (p *Parser) NormalizeCandidates(videos []youtube.Video) ([]youtube.Video, []error) {
	var (
		valid []youtube.Video
		errs  []error
	)
	seen := make(map[string]struct{}, len(videos))

	for _, v := range videos {
		normalized := p.NormalizeVideo(v)
		if err := p.ValidateVideo(normalized); err != nil {
			errs = append(errs, fmt.Errorf("invalid candidate %q: %w", v.ID, err))
			continue
		}
		if _, dup := seen[normalized.ID]; dup {
			continue
		}
		seen[normalized.ID] = struct{}{}
		valid = append(valid, normalized)
	}
	return valid, errs
}
