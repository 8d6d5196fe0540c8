// Package verify re-fetches mutated content and judges whether the stated
// defect is actually resolved, independent of what the write call reported.
package verify

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/JaxylViernes/Wordpress-SEO-Automated-sub001/internal/htmldoc"
	"github.com/JaxylViernes/Wordpress-SEO-Automated-sub001/internal/wpclient"
)

const instrumentationName = "github.com/JaxylViernes/Wordpress-SEO-Automated-sub001/internal/verify"

// Fix categories the engine knows how to check. The values match the
// canonical fix-type identifiers used by the orchestrator; anything else
// gets a "no verification available" pass.
const (
	CheckMetaDescription = "meta_description"
	CheckTitleTag        = "title_tag"
	CheckHeadingStruct   = "heading_structure"
	CheckThinContent     = "thin_content"
	CheckImageAltText    = "image_alt_text"
)

// Result is the judgment for one fix.
type Result struct {
	Verified bool   `json:"verified"`
	Details  string `json:"details"`
}

// Summary aggregates per-fix results for a session.
type Summary struct {
	TotalVerified int      `json:"totalVerified"`
	TotalFailed   int      `json:"totalFailed"`
	Details       []string `json:"details"`
}

// ContentClient is the read surface the engine needs.
type ContentClient interface {
	Get(ctx context.Context, creds wpclient.Credentials, kind wpclient.Kind, id int, opts wpclient.FetchOptions) (*wpclient.Document, error)
}

// Config configures the engine.
type Config struct {
	// SettleDelay is how long to wait before the re-fetch. Remote page
	// caches lag behind writes; verifying too early reports false
	// failures. This wait is a correctness requirement, not tunable for
	// speed.
	SettleDelay time.Duration
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() *Config {
	return &Config{SettleDelay: 3 * time.Second}
}

// Engine verifies fixes against freshly fetched content.
type Engine struct {
	config *Config
	client ContentClient
	logger *zap.Logger
	tracer trace.Tracer
}

// NewEngine creates a verification engine.
func NewEngine(cfg *Config, client ContentClient, logger *zap.Logger) (*Engine, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if client == nil {
		return nil, errors.New("content client is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Engine{
		config: cfg,
		client: client,
		logger: logger,
		tracer: otel.Tracer(instrumentationName),
	}, nil
}

// Verify waits for the settle delay, re-fetches the document with cache
// busting, and checks the post-condition for the fix type. The fetch
// prefers the raw content field over the rendered one when both exist.
func (e *Engine) Verify(ctx context.Context, creds wpclient.Credentials, contentID int, fixType string, kind wpclient.Kind) (*Result, error) {
	ctx, span := e.tracer.Start(ctx, "verify.verify")
	defer span.End()

	span.SetAttributes(
		attribute.Int("content_id", contentID),
		attribute.String("fix_type", fixType),
		attribute.String("kind", string(kind)),
	)

	select {
	case <-time.After(e.config.SettleDelay):
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	doc, err := e.client.Get(ctx, creds, kind, contentID, wpclient.FetchOptions{CacheBust: true})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("failed to re-fetch content %d: %w", contentID, err)
	}

	result := e.check(doc, fixType)

	span.SetAttributes(attribute.Bool("verified", result.Verified))
	e.logger.Debug("verified fix",
		zap.Int("content_id", contentID),
		zap.String("fix_type", fixType),
		zap.Bool("verified", result.Verified),
		zap.String("details", result.Details),
	)
	return result, nil
}

func (e *Engine) check(doc *wpclient.Document, fixType string) *Result {
	switch fixType {
	case CheckImageAltText:
		return checkAltText(doc.Content.Text())
	case CheckMetaDescription:
		return checkLengthBand("meta description", doc.Excerpt.Text(), 120, 160)
	case CheckTitleTag:
		return checkLengthBand("title", doc.Title.Text(), 30, 60)
	case CheckHeadingStruct:
		return checkHeadings(doc.Content.Text())
	case CheckThinContent:
		return checkWordCount(doc.Content.Text(), 300)
	default:
		// Unknown categories are treated as resolved; they must never
		// count toward the rollback failure rate.
		return &Result{Verified: true, Details: "no verification available for this fix type"}
	}
}

func checkAltText(content string) *Result {
	d, err := htmldoc.Parse(content)
	if err != nil {
		return &Result{Verified: false, Details: fmt.Sprintf("content not parseable: %v", err)}
	}

	missing := 0
	for _, img := range d.FindTag("img") {
		alt, ok := htmldoc.Attr(img, "alt")
		if !ok || strings.TrimSpace(alt) == "" {
			missing++
		}
	}
	if missing > 0 {
		return &Result{Verified: false, Details: fmt.Sprintf("%d images still missing alt text", missing)}
	}
	return &Result{Verified: true, Details: "all images have alt text"}
}

func checkLengthBand(what, value string, min, max int) *Result {
	stripped := htmldoc.StripTags(value)
	n := len(stripped)
	if n < min || n > max {
		return &Result{
			Verified: false,
			Details:  fmt.Sprintf("%s is %d chars, want %d-%d", what, n, min, max),
		}
	}
	return &Result{Verified: true, Details: fmt.Sprintf("%s is %d chars", what, n)}
}

func checkHeadings(content string) *Result {
	d, err := htmldoc.Parse(content)
	if err != nil {
		return &Result{Verified: false, Details: fmt.Sprintf("content not parseable: %v", err)}
	}

	headings := d.Headings()
	h1Count := 0
	prev := 0
	var skip string
	for _, h := range headings {
		level := htmldoc.HeadingLevel(h)
		if level == 1 {
			h1Count++
		}
		if prev > 0 && level > prev+1 {
			skip = fmt.Sprintf("h%d follows h%d", level, prev)
		}
		prev = level
	}

	switch {
	case h1Count != 1:
		return &Result{Verified: false, Details: fmt.Sprintf("found %d h1 elements, want exactly 1", h1Count)}
	case skip != "":
		return &Result{Verified: false, Details: "heading level skip: " + skip}
	default:
		return &Result{Verified: true, Details: "heading structure is well-formed"}
	}
}

func checkWordCount(content string, min int) *Result {
	words := htmldoc.WordCount(content)
	if words < min {
		return &Result{Verified: false, Details: fmt.Sprintf("content has %d words, want at least %d", words, min)}
	}
	return &Result{Verified: true, Details: fmt.Sprintf("content has %d words", words)}
}
