package remediate

import (
	"fmt"

	"github.com/JaxylViernes/Wordpress-SEO-Automated-sub001/internal/indexer"
	"github.com/JaxylViernes/Wordpress-SEO-Automated-sub001/internal/wpclient"
)

// RunContext carries the per-session state every strategy call needs. It is
// created once per run and threaded explicitly; nothing in this package
// keeps process-wide mutable state.
type RunContext struct {
	SessionID string
	SiteID    string
	UserID    string
	Creds     wpclient.Credentials
	Client    ContentClient

	// Backups extends the session snapshot with targets resolved mid-run
	// so a rollback restores them too. Nil when the run skips backups.
	Backups Backupper

	// Index is the keyword index for internal-link suggestions. Built by
	// the orchestrator only when an internal-links group is in the run.
	Index indexer.Index

	// Expander is the optional generation backend for thin content.
	Expander ContentExpander

	// ScanFallbackLimit bounds the recent-document scan used when an
	// issue carries no target content id.
	ScanFallbackLimit int

	// ContentLossRatio is the minimum post-write/submitted word-count
	// ratio; below it a write is treated as silently truncated.
	ContentLossRatio float64

	log []string
}

// Logf appends one line to the session log.
func (rc *RunContext) Logf(format string, args ...any) {
	rc.log = append(rc.log, fmt.Sprintf(format, args...))
}

// Log returns the session log lines accumulated so far.
func (rc *RunContext) Log() []string {
	return rc.log
}
