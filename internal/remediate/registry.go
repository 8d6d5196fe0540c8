package remediate

import (
	"context"
	"errors"
	"fmt"

	"github.com/JaxylViernes/Wordpress-SEO-Automated-sub001/internal/htmldoc"
	"github.com/JaxylViernes/Wordpress-SEO-Automated-sub001/internal/wpclient"
)

// Strategy remediates all issues of one fix type. Implementations must be
// idempotent: re-running on an already-fixed document reports success
// without mutating it.
type Strategy interface {
	Apply(ctx context.Context, rc *RunContext, issues []Issue) ([]FixOutcome, []string)
}

// Registry maps fix types to strategies. The map is keyed by the closed
// FixType enum; raw auditor strings go through NormalizeFixType before
// lookup.
type Registry struct {
	strategies map[FixType]Strategy
}

// NewRegistry creates a registry with all built-in strategies registered.
func NewRegistry() *Registry {
	r := &Registry{strategies: map[FixType]Strategy{}}

	r.Register(FixMetaDescription, transform(FixMetaDescription, transformMetaDescription))
	r.Register(FixTitleTag, transform(FixTitleTag, transformTitleTag))
	r.Register(FixHeadingStructure, transform(FixHeadingStructure, transformHeadingStructure))
	r.Register(FixThinContent, transform(FixThinContent, transformThinContent))
	r.Register(FixImageAltText, transform(FixImageAltText, transformImageAltText))
	r.Register(FixCanonicalURL, transform(FixCanonicalURL, transformCanonicalURL))
	r.Register(FixStructuredData, transform(FixStructuredData, transformStructuredData))
	r.Register(FixSocialTags, transform(FixSocialTags, transformSocialTags))
	r.Register(FixExternalLinks, transform(FixExternalLinks, transformExternalLinks))
	r.Register(FixInternalLinks, transform(FixInternalLinks, transformInternalLinks))
	r.Register(FixImageDimensions, transform(FixImageDimensions, transformImageDimensions))
	r.Register(FixTableOfContents, transform(FixTableOfContents, transformTableOfContents))
	r.Register(FixFreshness, transform(FixFreshness, transformFreshness))

	return r
}

// Register adds or replaces the strategy for a fix type.
func (r *Registry) Register(t FixType, s Strategy) {
	r.strategies[t] = s
}

// Resolve returns the strategy for a fix type.
func (r *Registry) Resolve(t FixType) (Strategy, bool) {
	s, ok := r.strategies[t]
	return s, ok
}

// Types returns the registered fix types.
func (r *Registry) Types() []FixType {
	out := make([]FixType, 0, len(r.strategies))
	for t := range r.strategies {
		out = append(out, t)
	}
	return out
}

// transformResult is what a transform function reports for one document.
type transformResult struct {
	// Updated is false when the document already satisfies the
	// post-condition; nothing is written and the fix counts as resolved.
	Updated bool

	// Payload carries the changed fields to write when Updated.
	Payload wpclient.UpdatePayload

	// Description explains what was done, or why nothing was needed.
	Description string
}

// transformFunc inspects one document and decides the mutation for one
// issue.
type transformFunc func(ctx context.Context, rc *RunContext, doc *wpclient.Document, issue Issue) (*transformResult, error)

// transform wraps a transform function in the shared per-issue machinery:
// resolve the target document, run the transform, write the payload only if
// something changed, and guard against silent content truncation by the
// remote.
func transform(fixType FixType, fn transformFunc) Strategy {
	return &transformStrategy{fixType: fixType, fn: fn}
}

type transformStrategy struct {
	fixType FixType
	fn      transformFunc
}

func (s *transformStrategy) Apply(ctx context.Context, rc *RunContext, issues []Issue) ([]FixOutcome, []string) {
	var outcomes []FixOutcome
	var errs []string

	for _, issue := range issues {
		outcome := s.applyOne(ctx, rc, issue)
		if outcome.Error != "" {
			errs = append(errs, fmt.Sprintf("%s: %s", s.fixType, outcome.Error))
		}
		outcomes = append(outcomes, outcome)
	}

	return outcomes, errs
}

func (s *transformStrategy) applyOne(ctx context.Context, rc *RunContext, issue Issue) FixOutcome {
	outcome := FixOutcome{
		Type:           s.fixType,
		Description:    issue.Description,
		Impact:         ImpactFromSeverity(issue.Severity),
		TrackedIssueID: issue.TrackedIssueID,
	}

	doc, res, err := s.resolve(ctx, rc, issue)
	if err != nil {
		outcome.Error = err.Error()
		return outcome
	}

	outcome.WordpressPostID = doc.ID
	outcome.Kind = doc.Kind

	if !res.Updated {
		// Idempotent no-op: the document is already in the desired
		// state, which counts as resolved without a write or a later
		// verification pass.
		verified := true
		outcome.Success = true
		outcome.Verified = &verified
		outcome.Description = res.Description
		outcome.VerificationDetails = "already optimal, no change needed"
		rc.Logf("%s: content %d already optimal: %s", s.fixType, doc.ID, res.Description)
		return outcome
	}

	// A scan-resolved target is not in the pre-run snapshot; capture it
	// before the first write so a session rollback restores it too.
	// Already-captured ids are a no-op.
	if rc.Backups != nil {
		if err := rc.Backups.Extend(ctx, rc.Creds, doc.ID, rc.SessionID); err != nil {
			outcome.Error = fmt.Sprintf("failed to snapshot content %d before write: %v", doc.ID, err)
			return outcome
		}
	}

	submittedWords := 0
	if res.Payload.Content != nil {
		submittedWords = htmldoc.WordCount(*res.Payload.Content)
	}

	if err := rc.Client.Update(ctx, rc.Creds, doc.Kind, doc.ID, res.Payload); err != nil {
		outcome.Error = fmt.Sprintf("failed to write fix: %v", err)
		return outcome
	}

	// Content-loss guard: some hosts silently truncate large writes. A
	// post-write word count below the configured ratio of what we
	// submitted is a fatal write error for this document.
	if res.Payload.Content != nil && submittedWords > 0 {
		written, err := rc.Client.Get(ctx, rc.Creds, doc.Kind, doc.ID, wpclient.FetchOptions{CacheBust: true})
		if err == nil {
			gotWords := htmldoc.WordCount(written.Content.Text())
			if float64(gotWords) < rc.ContentLossRatio*float64(submittedWords) {
				outcome.Error = fmt.Sprintf(
					"content loss detected: wrote %d words but remote now has %d", submittedWords, gotWords)
				return outcome
			}
		}
	}

	outcome.Success = true
	outcome.Description = res.Description
	outcome.contentWritten = true
	rc.Logf("%s: fixed content %d: %s", s.fixType, doc.ID, res.Description)
	return outcome
}

// resolve finds the target document and runs the transform. When the issue
// carries a content id, the id is probed as post then page. Without an id
// the most recent documents are scanned and the first one the transform
// wants to change wins; if none needs changing the content is already
// optimal.
func (s *transformStrategy) resolve(ctx context.Context, rc *RunContext, issue Issue) (*wpclient.Document, *transformResult, error) {
	if issue.TargetContentID != 0 {
		doc, err := s.fetch(ctx, rc, issue.TargetContentID)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to load content %d: %w", issue.TargetContentID, err)
		}
		res, err := s.fn(ctx, rc, doc, issue)
		if err != nil {
			return nil, nil, err
		}
		return doc, res, nil
	}

	limit := rc.ScanFallbackLimit
	if limit <= 0 {
		limit = 20
	}
	docs, err := rc.Client.List(ctx, rc.Creds, wpclient.KindPost, limit)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to scan recent documents: %w", err)
	}
	if len(docs) == 0 {
		return nil, nil, errors.New("no documents available to scan")
	}

	for i := range docs {
		doc := &docs[i]
		res, err := s.fn(ctx, rc, doc, issue)
		if err != nil {
			continue
		}
		if res.Updated {
			return doc, res, nil
		}
	}

	// Nothing in the scan window needs this fix.
	return &docs[0], &transformResult{
		Updated:     false,
		Description: fmt.Sprintf("no recent document needs a %s fix", s.fixType),
	}, nil
}

func (s *transformStrategy) fetch(ctx context.Context, rc *RunContext, id int) (*wpclient.Document, error) {
	var lastErr error
	for _, kind := range []wpclient.Kind{wpclient.KindPost, wpclient.KindPage} {
		doc, err := rc.Client.Get(ctx, rc.Creds, kind, id, wpclient.FetchOptions{})
		if err != nil {
			lastErr = err
			if errors.Is(err, wpclient.ErrNotFound) {
				continue
			}
			return nil, err
		}
		return doc, nil
	}
	return nil, lastErr
}
