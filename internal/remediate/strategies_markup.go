package remediate

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"path"
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/net/html"

	"github.com/JaxylViernes/Wordpress-SEO-Automated-sub001/internal/htmldoc"
	"github.com/JaxylViernes/Wordpress-SEO-Automated-sub001/internal/indexer"
	"github.com/JaxylViernes/Wordpress-SEO-Automated-sub001/internal/wpclient"
)

// internalLinkWordsPerLink is the density target: one internal link per
// this many words, with a minimum of one.
const internalLinkWordsPerLink = 300

// defaultImageWidth/Height are the fallback dimensions written when the
// real ones are unknown; they stop layout shift, which is what the
// auditor flags.
const (
	defaultImageWidth  = 800
	defaultImageHeight = 450
)

// transformCanonicalURL inserts a canonical link element unless one exists.
func transformCanonicalURL(ctx context.Context, rc *RunContext, doc *wpclient.Document, issue Issue) (*transformResult, error) {
	d, err := htmldoc.Parse(doc.Content.Text())
	if err != nil {
		return nil, fmt.Errorf("failed to parse content: %w", err)
	}

	existing := d.Find(func(n *html.Node) bool {
		if n.Data != "link" {
			return false
		}
		rel, _ := htmldoc.Attr(n, "rel")
		return strings.EqualFold(rel, "canonical")
	})
	if len(existing) > 0 {
		return &transformResult{Description: "canonical link already present"}, nil
	}
	if doc.Link == "" {
		return nil, fmt.Errorf("document %d has no permalink to use as canonical", doc.ID)
	}

	link := htmldoc.NewElement("link")
	htmldoc.SetAttr(link, "rel", "canonical")
	htmldoc.SetAttr(link, "href", doc.Link)
	d.PrependChild(link)

	markup, err := d.Render()
	if err != nil {
		return nil, err
	}
	return &transformResult{
		Updated:     true,
		Payload:     wpclient.UpdatePayload{Content: wpclient.StringPtr(markup)},
		Description: "added canonical link to " + doc.Link,
	}, nil
}

// transformStructuredData appends an Article JSON-LD block unless the
// document already carries one. The check is structural (a script element
// with the ld+json type), not a substring scan, so markup that merely
// mentions the type in text cannot fool it.
func transformStructuredData(ctx context.Context, rc *RunContext, doc *wpclient.Document, issue Issue) (*transformResult, error) {
	d, err := htmldoc.Parse(doc.Content.Text())
	if err != nil {
		return nil, fmt.Errorf("failed to parse content: %w", err)
	}

	existing := d.Find(func(n *html.Node) bool {
		if n.Data != "script" {
			return false
		}
		typ, _ := htmldoc.Attr(n, "type")
		return strings.EqualFold(typ, "application/ld+json")
	})
	if len(existing) > 0 {
		return &transformResult{Description: "json-ld block already present"}, nil
	}

	schema := map[string]any{
		"@context":         "https://schema.org",
		"@type":            "Article",
		"headline":         htmldoc.StripTags(doc.Title.Text()),
		"url":              doc.Link,
		"dateModified":     doc.Modified,
		"wordCount":        htmldoc.WordCount(doc.Content.Text()),
		"mainEntityOfPage": doc.Link,
	}
	payload, err := json.Marshal(schema)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal json-ld: %w", err)
	}

	script := htmldoc.NewElement("script", htmldoc.NewText(string(payload)))
	htmldoc.SetAttr(script, "type", "application/ld+json")
	d.AppendChild(script)

	markup, err := d.Render()
	if err != nil {
		return nil, err
	}
	return &transformResult{
		Updated:     true,
		Payload:     wpclient.UpdatePayload{Content: wpclient.StringPtr(markup)},
		Description: "added article json-ld block",
	}, nil
}

// transformSocialTags appends Open Graph meta tags unless any og: tag
// already exists.
func transformSocialTags(ctx context.Context, rc *RunContext, doc *wpclient.Document, issue Issue) (*transformResult, error) {
	d, err := htmldoc.Parse(doc.Content.Text())
	if err != nil {
		return nil, fmt.Errorf("failed to parse content: %w", err)
	}

	existing := d.Find(func(n *html.Node) bool {
		if n.Data != "meta" {
			return false
		}
		prop, _ := htmldoc.Attr(n, "property")
		return strings.HasPrefix(strings.ToLower(prop), "og:")
	})
	if len(existing) > 0 {
		return &transformResult{Description: "open graph tags already present"}, nil
	}

	title := htmldoc.StripTags(doc.Title.Text())
	desc := htmldoc.StripTags(doc.Excerpt.Text())
	if desc == "" {
		desc = htmldoc.TruncateAtWord(htmldoc.StripTags(doc.Content.Text()), metaDescTarget)
	}

	tags := [][2]string{
		{"og:title", title},
		{"og:description", desc},
		{"og:type", "article"},
		{"og:url", doc.Link},
	}
	for _, t := range tags {
		meta := htmldoc.NewElement("meta")
		htmldoc.SetAttr(meta, "property", t[0])
		htmldoc.SetAttr(meta, "content", t[1])
		d.PrependChild(meta)
	}

	markup, err := d.Render()
	if err != nil {
		return nil, err
	}
	return &transformResult{
		Updated:     true,
		Payload:     wpclient.UpdatePayload{Content: wpclient.StringPtr(markup)},
		Description: "added open graph tags",
	}, nil
}

// transformImageAltText fills empty or missing alt attributes. The alt is
// derived from the image filename, falling back to the document title.
// Attachments referenced with a wp-image-N class also get their media
// alt_text updated, best effort.
func transformImageAltText(ctx context.Context, rc *RunContext, doc *wpclient.Document, issue Issue) (*transformResult, error) {
	d, err := htmldoc.Parse(doc.Content.Text())
	if err != nil {
		return nil, fmt.Errorf("failed to parse content: %w", err)
	}

	title := htmldoc.StripTags(doc.Title.Text())
	fixed := 0
	for _, img := range d.FindTag("img") {
		alt, ok := htmldoc.Attr(img, "alt")
		if ok && strings.TrimSpace(alt) != "" {
			continue
		}

		src, _ := htmldoc.Attr(img, "src")
		newAlt := altFromFilename(src)
		if newAlt == "" {
			newAlt = title
		}
		htmldoc.SetAttr(img, "alt", newAlt)
		fixed++

		if mediaID := wpImageID(img); mediaID != 0 {
			if err := rc.Client.UpdateMediaAlt(ctx, rc.Creds, mediaID, newAlt); err != nil {
				rc.Logf("image_alt_text: media %d alt update failed: %v", mediaID, err)
			}
		}
	}

	if fixed == 0 {
		return &transformResult{Description: "all images already have alt text"}, nil
	}

	markup, err := d.Render()
	if err != nil {
		return nil, err
	}
	return &transformResult{
		Updated:     true,
		Payload:     wpclient.UpdatePayload{Content: wpclient.StringPtr(markup)},
		Description: fmt.Sprintf("added alt text to %d images", fixed),
	}, nil
}

// transformExternalLinks adds noopener/noreferrer rel tokens to off-site
// anchors, preserving any tokens already present.
func transformExternalLinks(ctx context.Context, rc *RunContext, doc *wpclient.Document, issue Issue) (*transformResult, error) {
	d, err := htmldoc.Parse(doc.Content.Text())
	if err != nil {
		return nil, fmt.Errorf("failed to parse content: %w", err)
	}

	siteHost := hostOf(rc.Creds.BaseURL)
	fixed := 0
	for _, a := range d.FindTag("a") {
		href, _ := htmldoc.Attr(a, "href")
		if !strings.HasPrefix(href, "http://") && !strings.HasPrefix(href, "https://") {
			continue
		}
		if h := hostOf(href); h == "" || h == siteHost {
			continue
		}

		rel, _ := htmldoc.Attr(a, "rel")
		tokens := map[string]bool{}
		for _, t := range strings.Fields(rel) {
			tokens[strings.ToLower(t)] = true
		}
		if tokens["noopener"] && tokens["noreferrer"] {
			continue
		}

		merged := strings.Fields(rel)
		if !tokens["noopener"] {
			merged = append(merged, "noopener")
		}
		if !tokens["noreferrer"] {
			merged = append(merged, "noreferrer")
		}
		htmldoc.SetAttr(a, "rel", strings.Join(merged, " "))
		fixed++
	}

	if fixed == 0 {
		return &transformResult{Description: "all external links already carry rel attributes"}, nil
	}

	markup, err := d.Render()
	if err != nil {
		return nil, err
	}
	return &transformResult{
		Updated:     true,
		Payload:     wpclient.UpdatePayload{Content: wpclient.StringPtr(markup)},
		Description: fmt.Sprintf("added rel attributes to %d external links", fixed),
	}, nil
}

// transformImageDimensions writes explicit width/height attributes on
// images that lack them.
func transformImageDimensions(ctx context.Context, rc *RunContext, doc *wpclient.Document, issue Issue) (*transformResult, error) {
	d, err := htmldoc.Parse(doc.Content.Text())
	if err != nil {
		return nil, fmt.Errorf("failed to parse content: %w", err)
	}

	fixed := 0
	for _, img := range d.FindTag("img") {
		_, hasW := htmldoc.Attr(img, "width")
		_, hasH := htmldoc.Attr(img, "height")
		if hasW && hasH {
			continue
		}
		if !hasW {
			htmldoc.SetAttr(img, "width", fmt.Sprintf("%d", defaultImageWidth))
		}
		if !hasH {
			htmldoc.SetAttr(img, "height", fmt.Sprintf("%d", defaultImageHeight))
		}
		fixed++
	}

	if fixed == 0 {
		return &transformResult{Description: "all images already have size attributes"}, nil
	}

	markup, err := d.Render()
	if err != nil {
		return nil, err
	}
	return &transformResult{
		Updated:     true,
		Payload:     wpclient.UpdatePayload{Content: wpclient.StringPtr(markup)},
		Description: fmt.Sprintf("added size attributes to %d images", fixed),
	}, nil
}

// transformInternalLinks raises internal-link density toward one link per
// 300 words by linking keyword occurrences to the most relevant other
// pages from the keyword index.
func transformInternalLinks(ctx context.Context, rc *RunContext, doc *wpclient.Document, issue Issue) (*transformResult, error) {
	d, err := htmldoc.Parse(doc.Content.Text())
	if err != nil {
		return nil, fmt.Errorf("failed to parse content: %w", err)
	}

	words := htmldoc.WordCount(doc.Content.Text())
	needed := words / internalLinkWordsPerLink
	if needed < 1 {
		needed = 1
	}

	siteHost := hostOf(rc.Creds.BaseURL)
	have := 0
	for _, a := range d.FindTag("a") {
		href, _ := htmldoc.Attr(a, "href")
		if strings.HasPrefix(href, "/") || (href != "" && hostOf(href) == siteHost) {
			have++
		}
	}
	if have >= needed {
		return &transformResult{
			Description: fmt.Sprintf("internal link density sufficient: %d links for %d words", have, words),
		}, nil
	}

	if len(rc.Index) == 0 {
		return &transformResult{
			Description: "no keyword index available, skipping internal linking",
		}, nil
	}

	keywords := indexer.ExtractKeywords(doc.Content.Text(), 15)
	added := 0
	for _, sug := range indexer.FindRelevantPages(doc.ID, keywords, rc.Index) {
		if have+added >= needed {
			break
		}
		if sug.Anchor == "" || sug.URL == "" {
			continue
		}
		if linkifyFirst(d, sug.Anchor, sug.URL) {
			added++
		}
	}

	if added == 0 {
		return &transformResult{
			Description: "no suitable internal link targets found in related pages",
		}, nil
	}

	markup, err := d.Render()
	if err != nil {
		return nil, err
	}
	return &transformResult{
		Updated:     true,
		Payload:     wpclient.UpdatePayload{Content: wpclient.StringPtr(markup)},
		Description: fmt.Sprintf("inserted %d internal links", added),
	}, nil
}

// linkifyFirst wraps the first free-standing occurrence of word in a link
// to target. Occurrences already inside an anchor are skipped.
func linkifyFirst(d *htmldoc.Doc, word, target string) bool {
	var textNodes []*html.Node
	var collect func(n *html.Node, insideAnchor bool)
	collect = func(n *html.Node, insideAnchor bool) {
		if n.Type == html.ElementNode {
			switch n.Data {
			case "a", "script", "style":
				insideAnchor = true
			}
		}
		if n.Type == html.TextNode && !insideAnchor {
			textNodes = append(textNodes, n)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			collect(c, insideAnchor)
		}
	}
	collect(d.Body(), false)

	for _, tn := range textNodes {
		start, end := indexWordFold(tn.Data, word)
		if start < 0 {
			continue
		}

		before := tn.Data[:start]
		match := tn.Data[start:end]
		after := tn.Data[end:]

		parent := tn.Parent
		link := htmldoc.NewElement("a", htmldoc.NewText(match))
		htmldoc.SetAttr(link, "href", target)

		parent.InsertBefore(htmldoc.NewText(before), tn)
		parent.InsertBefore(link, tn)
		parent.InsertBefore(htmldoc.NewText(after), tn)
		parent.RemoveChild(tn)
		return true
	}
	return false
}

// indexWordFold finds the first case-insensitive occurrence of word in s
// at a word boundary and returns its byte range in s, or (-1, -1).
// Matching is rune-wise in the original string: case folds that change
// byte length (Kelvin sign, dotted capital I) cannot shift the offsets.
func indexWordFold(s, word string) (int, int) {
	if word == "" {
		return -1, -1
	}
	for i := 0; i < len(s); {
		if n, ok := foldPrefixLen(s[i:], word); ok {
			end := i + n
			beforeOK := i == 0 || !isWordChar(s[i-1])
			afterOK := end >= len(s) || !isWordChar(s[end])
			if beforeOK && afterOK {
				return i, end
			}
		}
		_, size := utf8.DecodeRuneInString(s[i:])
		i += size
	}
	return -1, -1
}

// foldPrefixLen reports whether s starts with a case-insensitive match of
// word, and how many bytes of s the match covers.
func foldPrefixLen(s, word string) (int, bool) {
	n := 0
	for _, wr := range word {
		sr, size := utf8.DecodeRuneInString(s[n:])
		if size == 0 {
			return 0, false
		}
		if sr != wr && unicode.ToLower(sr) != unicode.ToLower(wr) {
			return 0, false
		}
		n += size
	}
	return n, true
}

func isWordChar(b byte) bool {
	return b >= 'a' && b <= 'z' || b >= 'A' && b <= 'Z' || b >= '0' && b <= '9'
}

func altFromFilename(src string) string {
	if src == "" {
		return ""
	}
	base := path.Base(src)
	if i := strings.LastIndex(base, "."); i > 0 {
		base = base[:i]
	}
	base = strings.NewReplacer("-", " ", "_", " ").Replace(base)
	base = strings.Join(strings.Fields(base), " ")
	if base == "" || isNumeric(base) {
		return ""
	}
	return capitalize(base)
}

func isNumeric(s string) bool {
	for _, r := range s {
		if (r < '0' || r > '9') && r != ' ' {
			return false
		}
	}
	return true
}

// wpImageID extracts the attachment id from a wp-image-N class.
func wpImageID(img *html.Node) int {
	class, _ := htmldoc.Attr(img, "class")
	for _, c := range strings.Fields(class) {
		if strings.HasPrefix(c, "wp-image-") {
			id := 0
			if _, err := fmt.Sscanf(c, "wp-image-%d", &id); err == nil {
				return id
			}
		}
	}
	return 0
}

func hostOf(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	return strings.TrimPrefix(u.Hostname(), "www.")
}
