package remediate

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/JaxylViernes/Wordpress-SEO-Automated-sub001/internal/indexer"
	"github.com/JaxylViernes/Wordpress-SEO-Automated-sub001/internal/verify"
)

const instrumentationName = "github.com/JaxylViernes/Wordpress-SEO-Automated-sub001/internal/remediate"

// Service runs automated remediation for one site at a time.
type Service interface {
	// Run executes one remediation session end to end: issue selection,
	// backup, fix application, verification, rollback decision, status
	// transitions, re-score and activity logging.
	Run(ctx context.Context, req *RunRequest) (*RemediationResult, error)

	// Close closes the service.
	Close() error
}

// Config holds the pipeline thresholds. The rollback and content-loss
// ratios are long-standing business rules; change them only together with
// the failure semantics that depend on them.
type Config struct {
	// RollbackFailureRate is the verification failure rate above which
	// the whole session is rolled back (default: 0.5).
	RollbackFailureRate float64

	// ContentLossRatio is the minimum post-write/submitted word-count
	// ratio before a write counts as truncated (default: 0.8).
	ContentLossRatio float64

	// RecentFixWindow excludes issues fixed within this window from
	// re-selection (default: 7 days).
	RecentFixWindow time.Duration

	// ScanFallbackLimit bounds the recent-document scan for issues with
	// no target content id (default: 20).
	ScanFallbackLimit int

	// MaxChanges is the default cap on fixes per run (default: 10).
	MaxChanges int

	// ReanalysisDelay is the default wait before the post-run re-score
	// (default: 10s).
	ReanalysisDelay time.Duration
}

// DefaultServiceConfig returns sensible defaults.
func DefaultServiceConfig() *Config {
	return &Config{
		RollbackFailureRate: 0.5,
		ContentLossRatio:    0.8,
		RecentFixWindow:     7 * 24 * time.Hour,
		ScanFallbackLimit:   20,
		MaxChanges:          10,
		ReanalysisDelay:     10 * time.Second,
	}
}

// Dependencies are the collaborators a service needs. Client, Backups,
// Verifier and Tracker are required; the rest are optional.
type Dependencies struct {
	Client   ContentClient
	Backups  Backupper
	Verifier Verifier
	Tracker  IssueTracker

	// Rescorer triggers the post-run re-score when reanalysis is enabled.
	Rescorer Rescorer

	// Activity records one summary entry per run.
	Activity ActivityRecorder

	// Expander is the generation backend for thin-content expansion.
	Expander ContentExpander

	// Indexer builds the keyword index for internal linking.
	Indexer *indexer.Indexer
}

// service implements the Service interface.
type service struct {
	config   *Config
	deps     Dependencies
	registry *Registry
	logger   *zap.Logger

	// Telemetry
	tracer          trace.Tracer
	meter           metric.Meter
	runCounter      metric.Int64Counter
	fixCounter      metric.Int64Counter
	rollbackCounter metric.Int64Counter

	mu     sync.RWMutex
	closed bool
}

// NewService creates a remediation service.
func NewService(cfg *Config, deps Dependencies, logger *zap.Logger) (Service, error) {
	if cfg == nil {
		cfg = DefaultServiceConfig()
	}
	if deps.Client == nil {
		return nil, errors.New("content client is required")
	}
	if deps.Backups == nil {
		return nil, errors.New("backup manager is required")
	}
	if deps.Verifier == nil {
		return nil, errors.New("verifier is required")
	}
	if deps.Tracker == nil {
		return nil, errors.New("issue tracker is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	s := &service{
		config:   cfg,
		deps:     deps,
		registry: NewRegistry(),
		logger:   logger,
		tracer:   otel.Tracer(instrumentationName),
		meter:    otel.Meter(instrumentationName),
	}

	s.initMetrics()

	return s, nil
}

// initMetrics initializes OpenTelemetry metrics.
func (s *service) initMetrics() {
	var err error

	s.runCounter, err = s.meter.Int64Counter(
		"seofix.remediation.runs_total",
		metric.WithDescription("Total number of remediation runs"),
		metric.WithUnit("{run}"),
	)
	if err != nil {
		s.logger.Warn("failed to create run counter", zap.Error(err))
	}

	s.fixCounter, err = s.meter.Int64Counter(
		"seofix.remediation.fixes_total",
		metric.WithDescription("Total number of fixes attempted"),
		metric.WithUnit("{fix}"),
	)
	if err != nil {
		s.logger.Warn("failed to create fix counter", zap.Error(err))
	}

	s.rollbackCounter, err = s.meter.Int64Counter(
		"seofix.remediation.rollbacks_total",
		metric.WithDescription("Total number of session rollbacks"),
		metric.WithUnit("{rollback}"),
	)
	if err != nil {
		s.logger.Warn("failed to create rollback counter", zap.Error(err))
	}
}

// Run executes one remediation session.
func (s *service) Run(ctx context.Context, req *RunRequest) (*RemediationResult, error) {
	ctx, span := s.tracer.Start(ctx, "remediate.run")
	defer span.End()

	span.SetAttributes(
		attribute.String("site_id", req.SiteID),
		attribute.String("user_id", req.UserID),
		attribute.Bool("dry_run", req.DryRun),
	)

	s.mu.RLock()
	if s.closed {
		s.mu.RUnlock()
		return nil, errors.New("service is closed")
	}
	s.mu.RUnlock()

	sessionID := uuid.New().String()
	span.SetAttributes(attribute.String("fix_session_id", sessionID))

	// Sweep stale soft locks left by a crashed run before selecting
	// candidates.
	if swept, err := s.deps.Tracker.ResetStuckFixing(ctx, req.SiteID); err != nil {
		s.logger.Warn("failed to reset stuck issues", zap.String("site_id", req.SiteID), zap.Error(err))
	} else if swept > 0 {
		s.logger.Info("reset stuck issues from prior run",
			zap.String("site_id", req.SiteID),
			zap.Int("count", swept),
		)
	}

	issues, err := s.deps.Tracker.ListFixableIssues(ctx, req.SiteID, req.UserID, IssueFilter{
		Statuses:           []IssueStatus{StatusDetected, StatusReappeared},
		AutoFixableOnly:    true,
		ExcludeFixedWithin: s.config.RecentFixWindow,
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("failed to list fixable issues: %w", err)
	}

	totalFound := len(issues)
	if totalFound == 0 {
		return &RemediationResult{
			Success:      true,
			DryRun:       req.DryRun,
			FixesApplied: []FixOutcome{},
			Stats:        ComputeStats(0, nil, 0),
			Message:      "No fixable issues found",
			FixSessionID: sessionID,
		}, nil
	}

	issues = s.selectIssues(issues, req.Options)

	if req.DryRun {
		result := s.dryRun(sessionID, totalFound, issues, req)
		s.countRun(ctx, "dry_run", true)
		return result, nil
	}

	result, err := s.liveRun(ctx, sessionID, totalFound, issues, req)
	if err != nil {
		s.countRun(ctx, "live", false)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	s.countRun(ctx, "live", result.Success)
	span.SetAttributes(
		attribute.Bool("success", result.Success),
		attribute.Int("fixes_applied", len(result.FixesApplied)),
	)
	return result, nil
}

// selectIssues filters by allowed types, sorts by descending impact and
// truncates to the change cap.
func (s *service) selectIssues(issues []Issue, opts Options) []Issue {
	if len(opts.FixTypes) > 0 {
		allowed := map[FixType]bool{}
		for _, t := range opts.FixTypes {
			allowed[NormalizeFixType(t)] = true
		}
		filtered := issues[:0]
		for _, is := range issues {
			if allowed[NormalizeFixType(is.Type)] {
				filtered = append(filtered, is)
			}
		}
		issues = filtered
	}

	sort.SliceStable(issues, func(i, j int) bool {
		return ImpactFromSeverity(issues[i].Severity).Weight() > ImpactFromSeverity(issues[j].Severity).Weight()
	})

	maxChanges := opts.MaxChanges
	if maxChanges <= 0 {
		maxChanges = s.config.MaxChanges
	}
	if len(issues) > maxChanges {
		issues = issues[:maxChanges]
	}
	return issues
}

// dryRun marks every selected issue as fixable without touching the remote
// and reports the estimated score improvement.
func (s *service) dryRun(sessionID string, totalFound int, issues []Issue, req *RunRequest) *RemediationResult {
	outcomes := make([]FixOutcome, 0, len(issues))
	for _, is := range issues {
		outcomes = append(outcomes, FixOutcome{
			Type:            NormalizeFixType(is.Type),
			Description:     "[DRY RUN] Would fix: " + is.Description,
			Success:         true,
			Impact:          ImpactFromSeverity(is.Severity),
			WordpressPostID: is.TargetContentID,
			TrackedIssueID:  is.TrackedIssueID,
		})
	}

	estimated := EstimateImprovement(outcomes)
	return &RemediationResult{
		Success:      true,
		DryRun:       true,
		FixesApplied: outcomes,
		Stats:        ComputeStats(totalFound, outcomes, estimated),
		Message:      fmt.Sprintf("Dry run: %d fixes would be applied, estimated improvement +%.1f", len(outcomes), estimated),
		FixSessionID: sessionID,
		Reanalysis: &ReanalysisResult{
			InitialScore:     req.Options.InitialScore,
			FinalScore:       req.Options.InitialScore + estimated,
			ScoreImprovement: estimated,
			Success:          true,
			Simulated:        true,
		},
	}
}

// liveRun applies the selected fixes for real.
func (s *service) liveRun(ctx context.Context, sessionID string, totalFound int, issues []Issue, req *RunRequest) (*RemediationResult, error) {
	// Access check before any mutation: an unreachable or unauthorized
	// site aborts the run outright.
	if err := s.deps.Client.Ping(ctx, req.Creds); err != nil {
		return nil, fmt.Errorf("site access check failed: %w", err)
	}

	issueIDs := make([]string, 0, len(issues))
	for _, is := range issues {
		issueIDs = append(issueIDs, is.TrackedIssueID)
	}
	if err := s.deps.Tracker.BulkMarkFixing(ctx, issueIDs, sessionID); err != nil {
		return nil, fmt.Errorf("failed to mark issues fixing: %w", err)
	}

	rc := &RunContext{
		SessionID:         sessionID,
		SiteID:            req.SiteID,
		UserID:            req.UserID,
		Creds:             req.Creds,
		Client:            s.deps.Client,
		Expander:          s.deps.Expander,
		ScanFallbackLimit: s.config.ScanFallbackLimit,
		ContentLossRatio:  s.config.ContentLossRatio,
	}

	groups := groupByType(issues)

	if !req.Options.SkipBackup {
		if err := s.snapshotTargets(ctx, rc, issues); err != nil {
			// No snapshot, no safe mutation. Put the issues back.
			s.resetIssues(ctx, issueIDs, "backup failed: "+err.Error())
			return nil, fmt.Errorf("failed to back up content: %w", err)
		}
		// Strategies extend the snapshot for targets they resolve by
		// scanning, which have no id to capture up front.
		rc.Backups = s.deps.Backups
	}

	// The internal-links group needs the keyword index; building it is
	// expensive, so only do it when that group is in the run.
	if _, ok := groups[FixInternalLinks]; ok && s.deps.Indexer != nil {
		index, err := s.deps.Indexer.BuildIndex(ctx, req.Creds)
		if err != nil {
			s.logger.Warn("failed to build keyword index", zap.Error(err))
		} else {
			rc.Index = index
		}
	}

	var outcomes []FixOutcome
	var runErrors []string
	for _, t := range groupOrder(groups) {
		group := groups[t]
		strategy, ok := s.registry.Resolve(t)
		if !ok {
			// Unmapped type: every issue of the type fails, siblings
			// continue, and nothing here feeds the rollback rate.
			for _, is := range group {
				outcomes = append(outcomes, FixOutcome{
					Type:           t,
					Description:    is.Description,
					Impact:         ImpactFromSeverity(is.Severity),
					TrackedIssueID: is.TrackedIssueID,
					Error:          fmt.Sprintf("fix strategy not implemented for type %q", t),
				})
			}
			runErrors = append(runErrors, fmt.Sprintf("strategy not implemented: %s", t))
			continue
		}

		applied, errs := strategy.Apply(ctx, rc, group)
		outcomes = append(outcomes, applied...)
		runErrors = append(runErrors, errs...)
		s.countFixes(ctx, t, applied)
	}

	summary := s.verifyOutcomes(ctx, rc, outcomes)

	// Rollback decision across the whole batch, after every fix has been
	// attempted.
	originallySuccessful := 0
	verifiedEquivalent := 0
	for i := range outcomes {
		if !outcomes[i].Success && outcomes[i].Verified != nil && !*outcomes[i].Verified {
			// Flipped by verification; still counts as originally
			// successful for the failure-rate denominator.
			originallySuccessful++
			continue
		}
		if outcomes[i].Success {
			originallySuccessful++
			if outcomes[i].Verified == nil || *outcomes[i].Verified {
				verifiedEquivalent++
			}
		}
	}

	failureRate := 0.0
	if originallySuccessful > 0 {
		failureRate = 1.0 - float64(verifiedEquivalent)/float64(originallySuccessful)
	}

	if failureRate > s.config.RollbackFailureRate && s.deps.Backups.Has(sessionID) {
		return s.rollbackSession(ctx, rc, sessionID, totalFound, failureRate, issueIDs, summary, runErrors)
	}

	// Persist the status transitions.
	now := time.Now()
	for _, o := range outcomes {
		if o.TrackedIssueID == "" {
			continue
		}
		var uerr error
		if o.Success && (o.Verified == nil || *o.Verified) {
			fixedAt := now
			uerr = s.deps.Tracker.SetIssueStatus(ctx, o.TrackedIssueID, StatusFixed, StatusUpdate{
				FixMethod: "auto",
				Notes:     o.Description,
				FixedAt:   &fixedAt,
			})
		} else {
			notes := o.Error
			if notes == "" {
				notes = o.Description
			}
			uerr = s.deps.Tracker.SetIssueStatus(ctx, o.TrackedIssueID, StatusDetected, StatusUpdate{
				FixMethod: "auto",
				Notes:     notes,
			})
		}
		if uerr != nil {
			s.logger.Warn("failed to update issue status",
				zap.String("issue_id", o.TrackedIssueID),
				zap.Error(uerr),
			)
		}
	}

	var successful []FixOutcome
	for _, o := range outcomes {
		if o.Success {
			successful = append(successful, o)
		}
	}
	estimated := EstimateImprovement(successful)
	stats := ComputeStats(totalFound, outcomes, estimated)

	message := fmt.Sprintf("Applied %d of %d fixes (%d verified)",
		stats.FixesSuccessful, stats.FixesAttempted, stats.FixesVerified)

	var reanalysis *ReanalysisResult
	if req.Options.EnableReanalysis && s.deps.Rescorer != nil {
		reanalysis = s.reanalyze(ctx, req)
		if reanalysis != nil && reanalysis.Success {
			message += fmt.Sprintf("; score %.1f -> %.1f (%+.1f)",
				reanalysis.InitialScore, reanalysis.FinalScore, reanalysis.ScoreImprovement)
		}
	}

	s.recordActivity(ctx, req, sessionID, stats, message, rc.Log())

	return &RemediationResult{
		Success:      true,
		DryRun:       false,
		FixesApplied: outcomes,
		Stats:        stats,
		Errors:       runErrors,
		Message:      message,
		FixSessionID: sessionID,
		Reanalysis:   reanalysis,
		Verification: summary,
	}, nil
}

// snapshotTargets backs up every distinct content id the run will touch.
func (s *service) snapshotTargets(ctx context.Context, rc *RunContext, issues []Issue) error {
	seen := map[int]bool{}
	var ids []int
	for _, is := range issues {
		if is.TargetContentID != 0 && !seen[is.TargetContentID] {
			seen[is.TargetContentID] = true
			ids = append(ids, is.TargetContentID)
		}
	}
	if len(ids) == 0 {
		return nil
	}
	_, err := s.deps.Backups.Snapshot(ctx, rc.Creds, ids, rc.SessionID)
	return err
}

// verifyOutcomes runs the verification engine over every mutation that was
// actually written. Only an explicit mismatch flips an outcome to failed;
// an unavailable verification leaves the tri-state unset.
func (s *service) verifyOutcomes(ctx context.Context, rc *RunContext, outcomes []FixOutcome) *verify.Summary {
	summary := &verify.Summary{}

	for i := range outcomes {
		o := &outcomes[i]
		if !o.Success || o.Verified != nil || !o.contentWritten || o.WordpressPostID == 0 {
			continue
		}

		kind := o.Kind
		if kind == "" {
			kind = "posts"
		}
		res, err := s.deps.Verifier.Verify(ctx, rc.Creds, o.WordpressPostID, string(o.Type), kind)
		if err != nil {
			// Could not verify at all: leave Verified unset so this
			// never counts toward the rollback rate.
			o.VerificationDetails = "verification unavailable: " + err.Error()
			summary.Details = append(summary.Details, fmt.Sprintf("%s #%d: %s", o.Type, o.WordpressPostID, o.VerificationDetails))
			continue
		}

		verified := res.Verified
		o.Verified = &verified
		o.VerificationDetails = res.Details
		if verified {
			summary.TotalVerified++
		} else {
			summary.TotalFailed++
			o.Success = false
			o.Error = "verification failed: " + res.Details
		}
		summary.Details = append(summary.Details, fmt.Sprintf("%s #%d: %s", o.Type, o.WordpressPostID, res.Details))
	}

	return summary
}

// rollbackSession restores every snapshotted document and reports the run
// as a single top-level failure. Per-document successes are discarded from
// the user-visible result.
func (s *service) rollbackSession(ctx context.Context, rc *RunContext, sessionID string, totalFound int, failureRate float64, issueIDs []string, summary *verify.Summary, runErrors []string) (*RemediationResult, error) {
	if s.rollbackCounter != nil {
		s.rollbackCounter.Add(ctx, 1)
	}

	rb, err := s.deps.Backups.Rollback(ctx, rc.Creds, sessionID)
	restored := 0
	if err != nil {
		runErrors = append(runErrors, "rollback failed: "+err.Error())
		s.logger.Error("rollback failed", zap.String("session_id", sessionID), zap.Error(err))
	} else {
		restored = rb.Restored
		runErrors = append(runErrors, rb.Errors...)
	}

	s.resetIssues(ctx, issueIDs, fmt.Sprintf("session rolled back: %.0f%% of fixes failed verification", failureRate*100))

	message := fmt.Sprintf(
		"Verification failure rate %.0f%% exceeded %.0f%%; rolled back session and restored %d items",
		failureRate*100, s.config.RollbackFailureRate*100, restored)

	s.logger.Warn("remediation session rolled back",
		zap.String("session_id", sessionID),
		zap.Float64("failure_rate", failureRate),
		zap.Int("restored", restored),
	)

	return &RemediationResult{
		Success:      false,
		DryRun:       false,
		FixesApplied: []FixOutcome{},
		Stats:        ComputeStats(totalFound, nil, 0),
		Errors:       runErrors,
		Message:      message,
		FixSessionID: sessionID,
		Verification: summary,
	}, nil
}

// resetIssues returns issues to detected so a future run can retry them.
func (s *service) resetIssues(ctx context.Context, issueIDs []string, notes string) {
	for _, id := range issueIDs {
		if err := s.deps.Tracker.SetIssueStatus(ctx, id, StatusDetected, StatusUpdate{
			FixMethod: "auto",
			Notes:     notes,
		}); err != nil {
			s.logger.Warn("failed to reset issue", zap.String("issue_id", id), zap.Error(err))
		}
	}
}

// reanalyze waits out the configured delay and asks the auditor for a
// fresh score.
func (s *service) reanalyze(ctx context.Context, req *RunRequest) *ReanalysisResult {
	delay := req.Options.ReanalysisDelay
	if delay <= 0 {
		delay = s.config.ReanalysisDelay
	}

	select {
	case <-time.After(delay):
	case <-ctx.Done():
		return nil
	}

	report, err := s.deps.Rescorer.Rescore(ctx, req.Creds.BaseURL, nil, req.UserID, req.SiteID, RescoreOptions{
		SkipTracking: true,
		ScoreOnly:    true,
	})
	if err != nil {
		s.logger.Warn("reanalysis failed", zap.String("site_id", req.SiteID), zap.Error(err))
		return &ReanalysisResult{
			InitialScore: req.Options.InitialScore,
			Success:      false,
		}
	}

	return &ReanalysisResult{
		InitialScore:     req.Options.InitialScore,
		FinalScore:       report.Score,
		ScoreImprovement: report.Score - req.Options.InitialScore,
		Success:          true,
	}
}

// recordActivity writes one summary entry for the run, best effort. The
// per-fix session log rides along in the metadata so the entry is
// auditable without the process logs.
func (s *service) recordActivity(ctx context.Context, req *RunRequest, sessionID string, stats Stats, message string, logLines []string) {
	if s.deps.Activity == nil {
		return
	}
	md := map[string]any{
		"fixSessionId":    sessionID,
		"fixesAttempted":  stats.FixesAttempted,
		"fixesSuccessful": stats.FixesSuccessful,
		"fixesVerified":   stats.FixesVerified,
	}
	if len(logLines) > 0 {
		md["log"] = logLines
	}
	err := s.deps.Activity.Record(ctx, ActivityEntry{
		UserID:      req.UserID,
		SiteID:      req.SiteID,
		Type:        "auto_fix",
		Description: message,
		Metadata:    md,
	})
	if err != nil {
		s.logger.Warn("failed to record activity", zap.Error(err))
	}
}

func (s *service) countRun(ctx context.Context, mode string, success bool) {
	if s.runCounter == nil {
		return
	}
	s.runCounter.Add(ctx, 1, metric.WithAttributes(
		attribute.String("mode", mode),
		attribute.Bool("success", success),
	))
}

func (s *service) countFixes(ctx context.Context, t FixType, outcomes []FixOutcome) {
	if s.fixCounter == nil {
		return
	}
	for _, o := range outcomes {
		s.fixCounter.Add(ctx, 1, metric.WithAttributes(
			attribute.String("fix_type", string(t)),
			attribute.Bool("success", o.Success),
		))
	}
}

// groupByType buckets issues by normalized fix type.
func groupByType(issues []Issue) map[FixType][]Issue {
	groups := map[FixType][]Issue{}
	for _, is := range issues {
		t := NormalizeFixType(is.Type)
		groups[t] = append(groups[t], is)
	}
	return groups
}

// groupOrder returns the group keys sorted by the impact of their first
// issue, then by name, so runs are deterministic.
func groupOrder(groups map[FixType][]Issue) []FixType {
	keys := make([]FixType, 0, len(groups))
	for t := range groups {
		keys = append(keys, t)
	}
	sort.Slice(keys, func(i, j int) bool {
		wi := ImpactFromSeverity(groups[keys[i]][0].Severity).Weight()
		wj := ImpactFromSeverity(groups[keys[j]][0].Severity).Weight()
		if wi != wj {
			return wi > wj
		}
		return keys[i] < keys[j]
	})
	return keys
}

// Close closes the service.
func (s *service) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true
	return nil
}
