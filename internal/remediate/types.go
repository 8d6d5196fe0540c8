package remediate

import (
	"strings"
	"time"

	"github.com/JaxylViernes/Wordpress-SEO-Automated-sub001/internal/verify"
	"github.com/JaxylViernes/Wordpress-SEO-Automated-sub001/internal/wpclient"
)

// FixType is the closed set of remediation categories. Auditor issue types
// are free-form strings; NormalizeFixType maps them onto this enum once at
// ingestion so dispatch never works with raw auditor spellings.
type FixType string

const (
	FixMetaDescription  FixType = "meta_description"
	FixTitleTag         FixType = "title_tag"
	FixHeadingStructure FixType = "heading_structure"
	FixThinContent      FixType = "thin_content"
	FixImageAltText     FixType = "image_alt_text"
	FixCanonicalURL     FixType = "canonical_url"
	FixStructuredData   FixType = "structured_data"
	FixSocialTags       FixType = "social_tags"
	FixExternalLinks    FixType = "external_links"
	FixInternalLinks    FixType = "internal_links"
	FixImageDimensions  FixType = "image_dimensions"
	FixTableOfContents  FixType = "table_of_contents"
	FixFreshness        FixType = "content_freshness"
)

// legacyAliases maps auditor spellings onto canonical fix types. The
// auditor has accumulated several names for the same defect over time;
// normalization happens exactly once, when issues are ingested.
var legacyAliases = map[string]FixType{
	"missing_meta_description":   FixMetaDescription,
	"meta_description_too_short": FixMetaDescription,
	"meta_description_too_long":  FixMetaDescription,
	"meta_description":           FixMetaDescription,
	"missing_title":              FixTitleTag,
	"title_too_short":            FixTitleTag,
	"title_too_long":             FixTitleTag,
	"title_tag":                  FixTitleTag,
	"missing_h1":                 FixHeadingStructure,
	"multiple_h1":                FixHeadingStructure,
	"improper_heading_hierarchy": FixHeadingStructure,
	"heading_structure":          FixHeadingStructure,
	"low_word_count":             FixThinContent,
	"thin_content":               FixThinContent,
	"content_length":             FixThinContent,
	"missing_alt_text":           FixImageAltText,
	"images_missing_alt":         FixImageAltText,
	"image_alt_text":             FixImageAltText,
	"missing_canonical":          FixCanonicalURL,
	"canonical_url":              FixCanonicalURL,
	"missing_schema":             FixStructuredData,
	"missing_structured_data":    FixStructuredData,
	"structured_data":            FixStructuredData,
	"missing_og_tags":            FixSocialTags,
	"missing_social_tags":        FixSocialTags,
	"social_tags":                FixSocialTags,
	"unsafe_external_links":      FixExternalLinks,
	"external_links":             FixExternalLinks,
	"low_internal_links":         FixInternalLinks,
	"internal_links":             FixInternalLinks,
	"missing_image_dimensions":   FixImageDimensions,
	"image_dimensions":           FixImageDimensions,
	"missing_toc":                FixTableOfContents,
	"table_of_contents":          FixTableOfContents,
	"outdated_content":           FixFreshness,
	"content_freshness":          FixFreshness,
}

// NormalizeFixType maps a raw auditor issue type onto the canonical enum.
// Unrecognized types come back as-is (lowercased, underscored) so the
// registry can report them as not implemented.
func NormalizeFixType(raw string) FixType {
	key := strings.ToLower(strings.TrimSpace(raw))
	key = strings.ReplaceAll(key, "-", "_")
	key = strings.ReplaceAll(key, " ", "_")
	if t, ok := legacyAliases[key]; ok {
		return t
	}
	return FixType(key)
}

// Impact ranks how much a fix is expected to move the score.
type Impact string

const (
	ImpactHigh   Impact = "high"
	ImpactMedium Impact = "medium"
	ImpactLow    Impact = "low"
)

// Weight is the sort key for fix ordering: high fixes run first.
func (i Impact) Weight() int {
	switch i {
	case ImpactHigh:
		return 3
	case ImpactMedium:
		return 2
	default:
		return 1
	}
}

// Multiplier scales the per-type score weight in dry-run estimation.
func (i Impact) Multiplier() float64 {
	switch i {
	case ImpactHigh:
		return 1.0
	case ImpactMedium:
		return 0.7
	default:
		return 0.4
	}
}

// ImpactFromSeverity maps auditor severity labels onto impact levels.
func ImpactFromSeverity(severity string) Impact {
	switch strings.ToLower(severity) {
	case "critical", "high", "error":
		return ImpactHigh
	case "medium", "warning":
		return ImpactMedium
	default:
		return ImpactLow
	}
}

// IssueStatus is the lifecycle state of a tracked issue.
//
// detected/reappeared -> fixing -> {fixed | detected}
//
// There is no terminal "failed" state: a failed or unverified fix returns
// the issue to detected so a future run can try again. A stale "fixing"
// left by a crashed run is swept back to detected at the start of the next
// run.
type IssueStatus string

const (
	StatusDetected   IssueStatus = "detected"
	StatusReappeared IssueStatus = "reappeared"
	StatusFixing     IssueStatus = "fixing"
	StatusFixed      IssueStatus = "fixed"
)

// Issue is one defect reported by the external auditor. Consumed
// read-only; TrackedIssueID is stable across audit runs.
type Issue struct {
	Type            string `json:"type"`
	Description     string `json:"description"`
	ElementPath     string `json:"elementPath,omitempty"`
	Severity        string `json:"severity"`
	TrackedIssueID  string `json:"trackedIssueId"`
	TargetContentID int    `json:"targetContentId,omitempty"`
}

// FixOutcome records one attempted fix. Strategies return outcomes with
// Verified left nil (or set true for idempotent no-ops); the orchestrator
// mutates each outcome exactly once to attach verification results.
type FixOutcome struct {
	Type        FixType `json:"type"`
	Description string  `json:"description"`
	Success     bool    `json:"success"`
	Impact      Impact  `json:"impact"`

	// Verified is tri-state: true, false, or nil for "no verification
	// available" / "already optimal". nil never counts as a
	// rollback-triggering failure.
	Verified            *bool  `json:"verified,omitempty"`
	VerificationDetails string `json:"verificationDetails,omitempty"`

	WordpressPostID int    `json:"wordpressPostId,omitempty"`
	Error           string `json:"error,omitempty"`

	// Correlation back to the tracked issue and the content kind that was
	// actually resolved. Not part of the result wire format.
	TrackedIssueID string        `json:"-"`
	Kind           wpclient.Kind `json:"-"`
	contentWritten bool
}

// BreakdownEntry is the per-type slice of the stats.
type BreakdownEntry struct {
	Attempted  int `json:"attempted"`
	Successful int `json:"successful"`
	Failed     int `json:"failed"`
	Verified   int `json:"verified"`
}

// Stats are aggregate counters derived from the outcome list. They are
// always recomputed, never independently mutated.
type Stats struct {
	TotalIssuesFound  int                        `json:"totalIssuesFound"`
	FixesAttempted    int                        `json:"fixesAttempted"`
	FixesSuccessful   int                        `json:"fixesSuccessful"`
	FixesFailed       int                        `json:"fixesFailed"`
	FixesVerified     int                        `json:"fixesVerified"`
	EstimatedImpact   float64                    `json:"estimatedImpact"`
	DetailedBreakdown map[string]*BreakdownEntry `json:"detailedBreakdown"`
}

// ComputeStats derives the aggregate counters from an outcome list.
func ComputeStats(totalFound int, outcomes []FixOutcome, estimated float64) Stats {
	stats := Stats{
		TotalIssuesFound:  totalFound,
		FixesAttempted:    len(outcomes),
		EstimatedImpact:   estimated,
		DetailedBreakdown: map[string]*BreakdownEntry{},
	}
	for _, o := range outcomes {
		entry := stats.DetailedBreakdown[string(o.Type)]
		if entry == nil {
			entry = &BreakdownEntry{}
			stats.DetailedBreakdown[string(o.Type)] = entry
		}
		entry.Attempted++
		if o.Success {
			stats.FixesSuccessful++
			entry.Successful++
		} else {
			stats.FixesFailed++
			entry.Failed++
		}
		if o.Verified != nil && *o.Verified {
			stats.FixesVerified++
			entry.Verified++
		}
	}
	return stats
}

// ReanalysisResult reports the post-run re-score.
type ReanalysisResult struct {
	InitialScore     float64 `json:"initialScore"`
	FinalScore       float64 `json:"finalScore"`
	ScoreImprovement float64 `json:"scoreImprovement"`
	Success          bool    `json:"success"`
	Simulated        bool    `json:"simulated,omitempty"`
}

// Options tune one remediation run.
type Options struct {
	// FixTypes restricts the run to the given types (raw auditor
	// spellings accepted). Empty means all.
	FixTypes []string `json:"fixTypes,omitempty"`

	// MaxChanges caps how many fixes are applied (0 = service default).
	MaxChanges int `json:"maxChanges,omitempty"`

	// SkipBackup skips the pre-fix snapshot. Without a snapshot there is
	// no rollback, whatever the verification failure rate.
	SkipBackup bool `json:"skipBackup,omitempty"`

	// EnableReanalysis triggers a re-score after the run.
	EnableReanalysis bool `json:"enableReanalysis,omitempty"`

	// ReanalysisDelay overrides the configured wait before re-scoring.
	ReanalysisDelay time.Duration `json:"-"`

	// InitialScore is the score from the most recent audit, used to
	// report the improvement after re-analysis.
	InitialScore float64 `json:"initialScore,omitempty"`
}

// RunRequest is the single entry contract of the orchestrator.
type RunRequest struct {
	SiteID  string
	UserID  string
	DryRun  bool
	Creds   wpclient.Credentials
	Options Options
}

// RemediationResult is the structured outcome of one run.
type RemediationResult struct {
	Success      bool              `json:"success"`
	DryRun       bool              `json:"dryRun"`
	FixesApplied []FixOutcome      `json:"fixesApplied"`
	Stats        Stats             `json:"stats"`
	Errors       []string          `json:"errors,omitempty"`
	Message      string            `json:"message"`
	FixSessionID string            `json:"fixSessionId"`
	Reanalysis   *ReanalysisResult `json:"reanalysis,omitempty"`
	Verification *verify.Summary   `json:"verification,omitempty"`
}
