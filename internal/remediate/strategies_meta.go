package remediate

import (
	"context"
	"fmt"
	"strings"

	"github.com/JaxylViernes/Wordpress-SEO-Automated-sub001/internal/htmldoc"
	"github.com/JaxylViernes/Wordpress-SEO-Automated-sub001/internal/indexer"
	"github.com/JaxylViernes/Wordpress-SEO-Automated-sub001/internal/wpclient"
)

const (
	metaDescMin    = 120
	metaDescMax    = 160
	metaDescTarget = 135

	titleMin = 30
	titleMax = 60
)

// transformMetaDescription brings the meta description (stored as the
// excerpt) into the 120-160 character band. Overlong descriptions are
// truncated to the 135-character generation budget; short or missing ones
// are rebuilt from a deterministic template honoring the page's top
// keyword.
func transformMetaDescription(ctx context.Context, rc *RunContext, doc *wpclient.Document, issue Issue) (*transformResult, error) {
	existing := htmldoc.StripTags(doc.Excerpt.Text())
	if n := len(existing); n >= metaDescMin && n <= metaDescMax {
		return &transformResult{
			Description: fmt.Sprintf("meta description already %d chars, within %d-%d", n, metaDescMin, metaDescMax),
		}, nil
	}

	var candidate string
	if len(existing) > metaDescMax {
		candidate = htmldoc.TruncateAtWord(existing, metaDescTarget)
	} else {
		candidate = generateMetaDescription(doc)
	}

	if candidate == existing {
		return &transformResult{
			Description: "meta description unchanged after normalization",
		}, nil
	}

	return &transformResult{
		Updated:     true,
		Payload:     wpclient.UpdatePayload{Excerpt: wpclient.StringPtr(candidate)},
		Description: fmt.Sprintf("rewrote meta description to %d chars", len(candidate)),
	}, nil
}

// generateMetaDescription builds a description from the title and the
// leading body text, aiming for the 135-char budget. The top content
// keyword leads when it is not already part of the title.
func generateMetaDescription(doc *wpclient.Document) string {
	title := htmldoc.StripTags(doc.Title.Text())
	body := htmldoc.StripTags(doc.Content.Text())

	base := title
	keywords := indexer.ExtractKeywords(doc.Content.Text(), 3)
	if len(keywords) > 0 && !strings.Contains(strings.ToLower(title), keywords[0]) {
		base = capitalize(keywords[0]) + ": " + title
	}

	candidate := base
	if body != "" {
		candidate = base + " - " + body
	}
	if len(candidate) > metaDescTarget {
		candidate = htmldoc.TruncateAtWord(candidate, metaDescTarget)
	}
	return candidate
}

// transformTitleTag brings the title into the 30-60 character band.
// Overlong titles are truncated at a word boundary with an ellipsis; short
// titles are padded with the page's top keywords, and flagged unfixable
// when padding cannot reach the minimum.
func transformTitleTag(ctx context.Context, rc *RunContext, doc *wpclient.Document, issue Issue) (*transformResult, error) {
	current := htmldoc.StripTags(doc.Title.Text())
	if n := len(current); n >= titleMin && n <= titleMax {
		return &transformResult{
			Description: fmt.Sprintf("title already %d chars, within %d-%d", n, titleMin, titleMax),
		}, nil
	}

	var candidate string
	if len(current) > titleMax {
		candidate = htmldoc.TruncateAtWord(current, titleMax)
	} else {
		candidate = padTitle(current, doc)
		if len(candidate) < titleMin {
			return nil, fmt.Errorf("title %q too short to fix automatically (%d chars after padding, need %d)",
				current, len(candidate), titleMin)
		}
		if len(candidate) > titleMax {
			candidate = htmldoc.TruncateAtWord(candidate, titleMax)
		}
	}

	return &transformResult{
		Updated:     true,
		Payload:     wpclient.UpdatePayload{Title: wpclient.StringPtr(candidate)},
		Description: fmt.Sprintf("rewrote title to %d chars", len(candidate)),
	}, nil
}

// padTitle appends the page's top keywords to a short title.
func padTitle(current string, doc *wpclient.Document) string {
	keywords := indexer.ExtractKeywords(doc.Content.Text(), 3)
	var extra []string
	for _, kw := range keywords {
		if !strings.Contains(strings.ToLower(current), kw) {
			extra = append(extra, capitalize(kw))
		}
	}
	if len(extra) == 0 {
		return current
	}
	padded := current
	if padded != "" {
		padded += " | "
	}
	padded += strings.Join(extra, " ")
	return padded
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
