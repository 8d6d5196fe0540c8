// Package indexer builds a lightweight keyword index over site content to
// support internal-link suggestions.
package indexer

import (
	"context"
	"errors"
	"sort"
	"strings"
	"unicode"

	"go.uber.org/zap"

	"github.com/JaxylViernes/Wordpress-SEO-Automated-sub001/internal/htmldoc"
	"github.com/JaxylViernes/Wordpress-SEO-Automated-sub001/internal/wpclient"
)

const (
	// maxKeywords caps the keywords stored per document.
	maxKeywords = 15

	// minTokenLength filters short tokens that carry little signal.
	minTokenLength = 4

	// maxSuggestions caps FindRelevantPages results.
	maxSuggestions = 5
)

// PageEntry is the indexed form of one document.
type PageEntry struct {
	Title    string        `json:"title"`
	URL      string        `json:"url"`
	Keywords []string      `json:"keywords"`
	Kind     wpclient.Kind `json:"kind"`
}

// Index maps content id to its entry.
type Index map[int]PageEntry

// Suggestion is one internal-link candidate.
type Suggestion struct {
	ID    int
	Title string
	URL   string

	// Anchor is the first shared keyword, used as the link anchor text.
	Anchor string

	// Score is the shared-keyword count.
	Score int
}

// ContentClient is the listing surface the indexer needs.
type ContentClient interface {
	List(ctx context.Context, creds wpclient.Credentials, kind wpclient.Kind, limit int) ([]wpclient.Document, error)
}

// Indexer builds keyword indexes.
type Indexer struct {
	client ContentClient
	logger *zap.Logger
}

// New creates an indexer.
func New(client ContentClient, logger *zap.Logger) (*Indexer, error) {
	if client == nil {
		return nil, errors.New("content client is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Indexer{client: client, logger: logger}, nil
}

// BuildIndex lists all published posts and pages and extracts keywords from
// each.
func (ix *Indexer) BuildIndex(ctx context.Context, creds wpclient.Credentials) (Index, error) {
	index := Index{}

	for _, kind := range []wpclient.Kind{wpclient.KindPost, wpclient.KindPage} {
		docs, err := ix.client.List(ctx, creds, kind, 0)
		if err != nil {
			return nil, err
		}
		for _, doc := range docs {
			index[doc.ID] = PageEntry{
				Title:    htmldoc.StripTags(doc.Title.Text()),
				URL:      doc.Link,
				Keywords: ExtractKeywords(doc.Title.Text()+" "+doc.Content.Text(), maxKeywords),
				Kind:     kind,
			}
		}
	}

	ix.logger.Debug("built keyword index", zap.Int("pages", len(index)))
	return index, nil
}

// FindRelevantPages scores every other indexed document by how many
// keywords it shares with the given document and returns the top matches,
// highest score first. The anchor text is the first shared keyword in the
// document's own keyword order.
func FindRelevantPages(docID int, docKeywords []string, index Index) []Suggestion {
	docSet := make(map[string]int, len(docKeywords))
	for i, kw := range docKeywords {
		if _, seen := docSet[kw]; !seen {
			docSet[kw] = i
		}
	}

	var out []Suggestion
	for id, entry := range index {
		if id == docID {
			continue
		}

		score := 0
		anchorPos := len(docKeywords)
		anchor := ""
		for _, kw := range entry.Keywords {
			if pos, ok := docSet[kw]; ok {
				score++
				if pos < anchorPos {
					anchorPos = pos
					anchor = kw
				}
			}
		}
		if score == 0 {
			continue
		}

		out = append(out, Suggestion{
			ID:     id,
			Title:  entry.Title,
			URL:    entry.URL,
			Anchor: anchor,
			Score:  score,
		})
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		return out[i].ID < out[j].ID
	})

	if len(out) > maxSuggestions {
		out = out[:maxSuggestions]
	}
	return out
}

// ExtractKeywords tokenizes the plain text of markup, filters stop words
// and short tokens, and returns the most frequent tokens, capped at limit.
func ExtractKeywords(markup string, limit int) []string {
	text := strings.ToLower(htmldoc.StripTags(markup))

	counts := map[string]int{}
	first := map[string]int{}
	pos := 0
	for _, tok := range strings.FieldsFunc(text, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r)
	}) {
		pos++
		if len(tok) < minTokenLength || stopWords[tok] {
			continue
		}
		counts[tok]++
		if _, ok := first[tok]; !ok {
			first[tok] = pos
		}
	}

	keywords := make([]string, 0, len(counts))
	for tok := range counts {
		keywords = append(keywords, tok)
	}

	// Frequency-ranked; first occurrence breaks ties so ordering is
	// deterministic for a given text.
	sort.Slice(keywords, func(i, j int) bool {
		if counts[keywords[i]] != counts[keywords[j]] {
			return counts[keywords[i]] > counts[keywords[j]]
		}
		return first[keywords[i]] < first[keywords[j]]
	})

	if len(keywords) > limit {
		keywords = keywords[:limit]
	}
	return keywords
}

var stopWords = map[string]bool{
	"about": true, "above": true, "after": true, "again": true, "against": true,
	"because": true, "been": true, "before": true, "being": true, "below": true,
	"between": true, "both": true, "cannot": true, "could": true, "does": true,
	"doing": true, "down": true, "during": true, "each": true, "from": true,
	"further": true, "have": true, "having": true, "here": true, "how": true,
	"into": true, "itself": true, "just": true, "more": true, "most": true,
	"once": true, "only": true, "other": true, "over": true, "same": true,
	"should": true, "some": true, "such": true, "than": true, "that": true,
	"their": true, "them": true, "then": true, "there": true, "these": true,
	"they": true, "this": true, "those": true, "through": true, "under": true,
	"until": true, "very": true, "were": true, "what": true, "when": true,
	"where": true, "which": true, "while": true, "with": true, "would": true,
	"your": true, "yours": true, "will": true, "also": true, "like": true,
	"many": true, "much": true, "well": true, "even": true,
}
