package remediate

import (
	"context"
	"fmt"
	"strings"
	"time"

	"golang.org/x/net/html"

	"github.com/JaxylViernes/Wordpress-SEO-Automated-sub001/internal/htmldoc"
	"github.com/JaxylViernes/Wordpress-SEO-Automated-sub001/internal/wpclient"
)

// minTocHeadings is how many section headings a document needs before a
// table of contents is worth inserting.
const minTocHeadings = 3

// transformHeadingStructure enforces a single H1 and a hierarchy without
// level skips: every non-first H1 becomes an H2, a missing H1 is
// synthesized from the title and inserted before the first block element,
// and any heading that skips more than one level below its predecessor is
// demoted to the next level down.
func transformHeadingStructure(ctx context.Context, rc *RunContext, doc *wpclient.Document, issue Issue) (*transformResult, error) {
	d, err := htmldoc.Parse(doc.Content.Text())
	if err != nil {
		return nil, fmt.Errorf("failed to parse content: %w", err)
	}

	changed := false

	// Demote every H1 after the first.
	firstH1 := true
	for _, h := range d.Headings() {
		if htmldoc.HeadingLevel(h) != 1 {
			continue
		}
		if firstH1 {
			firstH1 = false
			continue
		}
		htmldoc.SetTag(h, "h2")
		changed = true
	}

	// Synthesize a missing H1 from the title.
	if firstH1 {
		title := htmldoc.StripTags(doc.Title.Text())
		if title == "" {
			title = "Untitled"
		}
		d.PrependChild(htmldoc.NewElement("h1", htmldoc.NewText(title)))
		changed = true
	}

	// Re-walk and close any remaining level skips.
	prev := 0
	for _, h := range d.Headings() {
		level := htmldoc.HeadingLevel(h)
		if prev > 0 && level > prev+1 {
			level = prev + 1
			htmldoc.SetTag(h, fmt.Sprintf("h%d", level))
			changed = true
		}
		prev = level
	}

	if !changed {
		return &transformResult{Description: "heading structure already well-formed"}, nil
	}

	markup, err := d.Render()
	if err != nil {
		return nil, err
	}
	return &transformResult{
		Updated:     true,
		Payload:     wpclient.UpdatePayload{Content: wpclient.StringPtr(markup)},
		Description: "normalized heading structure to a single h1 with no level skips",
	}, nil
}

// transformTableOfContents inserts a linked table of contents before the
// first section heading when the document has enough of them. An existing
// toc marker makes this a no-op.
func transformTableOfContents(ctx context.Context, rc *RunContext, doc *wpclient.Document, issue Issue) (*transformResult, error) {
	d, err := htmldoc.Parse(doc.Content.Text())
	if err != nil {
		return nil, fmt.Errorf("failed to parse content: %w", err)
	}

	if len(d.Find(func(n *html.Node) bool { return hasClass(n, "toc") })) > 0 {
		return &transformResult{Description: "table of contents already present"}, nil
	}

	var sections []*html.Node
	for _, h := range d.Headings() {
		if level := htmldoc.HeadingLevel(h); level == 2 || level == 3 {
			sections = append(sections, h)
		}
	}
	if len(sections) < minTocHeadings {
		return &transformResult{
			Description: fmt.Sprintf("only %d section headings, not enough for a table of contents", len(sections)),
		}, nil
	}

	// Every section heading needs an anchor id.
	seen := map[string]int{}
	list := htmldoc.NewElement("ul")
	for _, h := range sections {
		id, ok := htmldoc.Attr(h, "id")
		if !ok || id == "" {
			id = slugify(htmldoc.Text(h))
			if n := seen[id]; n > 0 {
				id = fmt.Sprintf("%s-%d", id, n+1)
			}
			seen[slugify(htmldoc.Text(h))]++
			htmldoc.SetAttr(h, "id", id)
		}
		link := htmldoc.NewElement("a", htmldoc.NewText(htmldoc.Text(h)))
		htmldoc.SetAttr(link, "href", "#"+id)
		list.AppendChild(htmldoc.NewElement("li", link))
	}

	nav := htmldoc.NewElement("nav",
		htmldoc.NewElement("h2", htmldoc.NewText("Table of Contents")),
		list,
	)
	htmldoc.SetAttr(nav, "class", "toc")
	sections[0].Parent.InsertBefore(nav, sections[0])

	markup, err := d.Render()
	if err != nil {
		return nil, err
	}
	return &transformResult{
		Updated:     true,
		Payload:     wpclient.UpdatePayload{Content: wpclient.StringPtr(markup)},
		Description: fmt.Sprintf("inserted table of contents with %d entries", len(sections)),
	}, nil
}

// transformFreshness prepends a "Last Updated" banner when the document
// does not already carry one.
func transformFreshness(ctx context.Context, rc *RunContext, doc *wpclient.Document, issue Issue) (*transformResult, error) {
	d, err := htmldoc.Parse(doc.Content.Text())
	if err != nil {
		return nil, fmt.Errorf("failed to parse content: %w", err)
	}

	if len(d.Find(func(n *html.Node) bool { return hasClass(n, "last-updated") })) > 0 ||
		strings.Contains(strings.ToLower(htmldoc.Text(d.Body())), "last updated") {
		return &transformResult{Description: "freshness banner already present"}, nil
	}

	banner := htmldoc.NewElement("p",
		htmldoc.NewElement("em", htmldoc.NewText("Last updated: "+time.Now().Format("January 2, 2006"))),
	)
	htmldoc.SetAttr(banner, "class", "last-updated")
	d.PrependChild(banner)

	markup, err := d.Render()
	if err != nil {
		return nil, err
	}
	return &transformResult{
		Updated:     true,
		Payload:     wpclient.UpdatePayload{Content: wpclient.StringPtr(markup)},
		Description: "added last-updated banner",
	}, nil
}

func hasClass(n *html.Node, class string) bool {
	val, ok := htmldoc.Attr(n, "class")
	if !ok {
		return false
	}
	for _, c := range strings.Fields(val) {
		if c == class {
			return true
		}
	}
	return false
}

func slugify(s string) string {
	var sb strings.Builder
	lastDash := true
	for _, r := range strings.ToLower(s) {
		switch {
		case r >= 'a' && r <= 'z' || r >= '0' && r <= '9':
			sb.WriteRune(r)
			lastDash = false
		case !lastDash:
			sb.WriteByte('-')
			lastDash = true
		}
	}
	return strings.Trim(sb.String(), "-")
}
