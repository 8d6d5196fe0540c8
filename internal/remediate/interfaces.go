package remediate

import (
	"context"
	"time"

	"github.com/JaxylViernes/Wordpress-SEO-Automated-sub001/internal/backup"
	"github.com/JaxylViernes/Wordpress-SEO-Automated-sub001/internal/verify"
	"github.com/JaxylViernes/Wordpress-SEO-Automated-sub001/internal/wpclient"
)

// ContentClient is the content-store surface the orchestrator and the
// strategies need. Implemented by *wpclient.Client.
type ContentClient interface {
	Ping(ctx context.Context, creds wpclient.Credentials) error
	Get(ctx context.Context, creds wpclient.Credentials, kind wpclient.Kind, id int, opts wpclient.FetchOptions) (*wpclient.Document, error)
	List(ctx context.Context, creds wpclient.Credentials, kind wpclient.Kind, limit int) ([]wpclient.Document, error)
	Update(ctx context.Context, creds wpclient.Credentials, kind wpclient.Kind, id int, payload wpclient.UpdatePayload) error
	UpdateMediaAlt(ctx context.Context, creds wpclient.Credentials, mediaID int, alt string) error
}

// Backupper snapshots and restores content. Implemented by *backup.Manager.
type Backupper interface {
	Snapshot(ctx context.Context, creds wpclient.Credentials, ids []int, sessionID string) (*backup.Backup, error)

	// Extend adds one document to the session snapshot. Strategies call
	// it for targets resolved mid-run, before the first write, so a
	// rollback covers them too.
	Extend(ctx context.Context, creds wpclient.Credentials, id int, sessionID string) error

	Rollback(ctx context.Context, creds wpclient.Credentials, sessionID string) (*backup.RollbackResult, error)
	Has(sessionID string) bool
}

// Verifier re-checks a fix post-condition. Implemented by *verify.Engine.
type Verifier interface {
	Verify(ctx context.Context, creds wpclient.Credentials, contentID int, fixType string, kind wpclient.Kind) (*verify.Result, error)
}

// IssueFilter narrows the candidate issue query.
type IssueFilter struct {
	// Statuses restricts by lifecycle state.
	Statuses []IssueStatus

	// AutoFixableOnly excludes issues a human must resolve.
	AutoFixableOnly bool

	// ExcludeFixedWithin drops issues fixed more recently than this.
	ExcludeFixedWithin time.Duration
}

// StatusUpdate carries the audit fields of a status transition.
type StatusUpdate struct {
	FixMethod string
	Notes     string
	FixedAt   *time.Time
}

// IssueTracker is the external issue storage, consumed via this narrow
// interface.
type IssueTracker interface {
	ListFixableIssues(ctx context.Context, siteID, userID string, f IssueFilter) ([]Issue, error)
	BulkMarkFixing(ctx context.Context, issueIDs []string, sessionID string) error
	SetIssueStatus(ctx context.Context, issueID string, status IssueStatus, u StatusUpdate) error

	// ResetStuckFixing sweeps issues left in "fixing" by a crashed run
	// back to "detected" and returns how many were swept.
	ResetStuckFixing(ctx context.Context, siteID string) (int, error)
}

// RescoreOptions tune a re-score request.
type RescoreOptions struct {
	SkipTracking bool
	ScoreOnly    bool
}

// ScoreReport is the auditor's score for a site.
type ScoreReport struct {
	Score float64 `json:"score"`
}

// Rescorer invokes the external auditor for a fresh score.
type Rescorer interface {
	Rescore(ctx context.Context, url string, keywords []string, userID, siteID string, o RescoreOptions) (*ScoreReport, error)
}

// ActivityEntry is one activity-log record.
type ActivityEntry struct {
	UserID      string         `json:"userId"`
	SiteID      string         `json:"siteId"`
	Type        string         `json:"type"`
	Description string         `json:"description"`
	Metadata    map[string]any `json:"metadata,omitempty"`
}

// ActivityRecorder is the external activity log.
type ActivityRecorder interface {
	Record(ctx context.Context, e ActivityEntry) error
}

// ContentExpander generates expanded content for thin documents. Optional:
// when no expander is configured, thin-content fixes fail with an explicit
// error instead of fabricating text.
type ContentExpander interface {
	// Expand returns new content markup for the document, aiming for
	// targetWords words.
	Expand(ctx context.Context, doc *wpclient.Document, targetWords int) (string, error)
}
