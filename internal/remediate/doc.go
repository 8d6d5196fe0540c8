// Package remediate orchestrates automated SEO content fixes against a
// remote WordPress site.
//
// One call to Service.Run works through a full session: select fixable
// issues, snapshot the targeted content, apply a strategy per issue type,
// verify each written mutation against its post-condition, and either
// commit the status transitions or roll the whole session back when too
// many fixes fail verification.
//
// # Fix outcomes
//
// Every attempted fix lands in exactly one of four states:
//
//   - already fine: the document satisfied the post-condition before the
//     run; success with verified=true and no write
//   - fixed and verified: written and the re-fetch confirmed the defect is
//     gone
//   - fixed but unverifiable: written, but no verification exists for the
//     category (verified stays unset; never counts as a failure)
//   - fixed but failed verification: written, re-fetch still shows the
//     defect; the fix is flipped to failed and feeds the rollback rate
//
// # Rollback
//
// When more than half of the originally successful fixes fail verification
// the session is rolled back in full: every snapshotted document is
// restored, issues return to detected, and the result reports a single
// top-level failure with no per-document successes.
//
// # Usage
//
//	svc, err := remediate.NewService(nil, remediate.Dependencies{
//	    Client:   wp,
//	    Backups:  backups,
//	    Verifier: engine,
//	    Tracker:  tracker,
//	}, logger)
//
//	result, err := svc.Run(ctx, &remediate.RunRequest{
//	    SiteID: "site-1",
//	    UserID: "user-1",
//	    DryRun: false,
//	    Creds:  creds,
//	    Options: remediate.Options{
//	        MaxChanges:       10,
//	        EnableReanalysis: true,
//	    },
//	})
//
// Runs are single-threaded: network calls are sequential and the
// "fixing" issue status acts as a soft lock against overlapping runs for
// the same site. Stale locks from a crashed run are swept at the start of
// the next one.
package remediate
