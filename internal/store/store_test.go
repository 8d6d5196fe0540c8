package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/JaxylViernes/Wordpress-SEO-Automated-sub001/internal/backup"
	"github.com/JaxylViernes/Wordpress-SEO-Automated-sub001/internal/remediate"
)

func seedIssue(t *testing.T, s *Store, id, siteID string, status remediate.IssueStatus, autoFixable bool) {
	t.Helper()
	require.NoError(t, s.AddIssue(IssueRecord{
		Issue: remediate.Issue{
			Type:           "missing_meta_description",
			Severity:       "high",
			TrackedIssueID: id,
		},
		SiteID:      siteID,
		Status:      status,
		AutoFixable: autoFixable,
	}))
}

func TestOpenMemoryOnly(t *testing.T) {
	s, err := Open("", zap.NewNop())
	require.NoError(t, err)
	seedIssue(t, s, "i1", "site-1", remediate.StatusDetected, true)

	issues, err := s.ListFixableIssues(context.Background(), "site-1", "u1", remediate.IssueFilter{})
	require.NoError(t, err)
	assert.Len(t, issues, 1)
}

func TestOpenMissingFileStartsEmpty(t *testing.T) {
	s, err := Open(filepath.Join(t.TempDir(), "seofix.json"), zap.NewNop())
	require.NoError(t, err)
	assert.Empty(t, s.Activities())
}

func TestPersistenceAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "seofix.json")

	s, err := Open(path, zap.NewNop())
	require.NoError(t, err)
	seedIssue(t, s, "i1", "site-1", remediate.StatusDetected, true)
	require.NoError(t, s.SaveBackup(context.Background(), &backup.Backup{
		SessionID: "sess-1",
		Items:     []backup.Item{{ID: 1, Title: "t"}},
	}))
	require.NoError(t, s.Record(context.Background(), remediate.ActivityEntry{
		Type: "auto_fix",
	}))

	reopened, err := Open(path, zap.NewNop())
	require.NoError(t, err)

	rec, ok := reopened.Issue("i1")
	require.True(t, ok)
	assert.Equal(t, remediate.StatusDetected, rec.Status)

	b, err := reopened.LoadBackup(context.Background(), "sess-1")
	require.NoError(t, err)
	assert.Len(t, b.Items, 1)

	assert.Len(t, reopened.Activities(), 1)
}

func TestListFixableIssuesFilters(t *testing.T) {
	s, err := Open("", zap.NewNop())
	require.NoError(t, err)

	seedIssue(t, s, "detected", "site-1", remediate.StatusDetected, true)
	seedIssue(t, s, "reappeared", "site-1", remediate.StatusReappeared, true)
	seedIssue(t, s, "fixing", "site-1", remediate.StatusFixing, true)
	seedIssue(t, s, "manual", "site-1", remediate.StatusDetected, false)
	seedIssue(t, s, "other-site", "site-2", remediate.StatusDetected, true)

	issues, err := s.ListFixableIssues(context.Background(), "site-1", "u1", remediate.IssueFilter{
		Statuses:        []remediate.IssueStatus{remediate.StatusDetected, remediate.StatusReappeared},
		AutoFixableOnly: true,
	})
	require.NoError(t, err)

	ids := make([]string, 0, len(issues))
	for _, is := range issues {
		ids = append(ids, is.TrackedIssueID)
	}
	assert.ElementsMatch(t, []string{"detected", "reappeared"}, ids)
}

func TestListFixableIssuesExcludesRecentlyFixed(t *testing.T) {
	s, err := Open("", zap.NewNop())
	require.NoError(t, err)

	recent := time.Now().Add(-time.Hour)
	old := time.Now().Add(-30 * 24 * time.Hour)
	require.NoError(t, s.AddIssue(IssueRecord{
		Issue:       remediate.Issue{TrackedIssueID: "recent", Type: "title_tag"},
		SiteID:      "site-1",
		Status:      remediate.StatusDetected,
		AutoFixable: true,
		FixedAt:     &recent,
	}))
	require.NoError(t, s.AddIssue(IssueRecord{
		Issue:       remediate.Issue{TrackedIssueID: "old", Type: "title_tag"},
		SiteID:      "site-1",
		Status:      remediate.StatusDetected,
		AutoFixable: true,
		FixedAt:     &old,
	}))

	issues, err := s.ListFixableIssues(context.Background(), "site-1", "u1", remediate.IssueFilter{
		ExcludeFixedWithin: 7 * 24 * time.Hour,
	})
	require.NoError(t, err)
	require.Len(t, issues, 1)
	assert.Equal(t, "old", issues[0].TrackedIssueID)
}

func TestBulkMarkFixing(t *testing.T) {
	s, err := Open("", zap.NewNop())
	require.NoError(t, err)
	seedIssue(t, s, "i1", "site-1", remediate.StatusDetected, true)
	seedIssue(t, s, "i2", "site-1", remediate.StatusDetected, true)

	require.NoError(t, s.BulkMarkFixing(context.Background(), []string{"i1"}, "sess-1"))

	rec, _ := s.Issue("i1")
	assert.Equal(t, remediate.StatusFixing, rec.Status)
	assert.Equal(t, "sess-1", rec.SessionID)

	rec, _ = s.Issue("i2")
	assert.Equal(t, remediate.StatusDetected, rec.Status)
}

func TestSetIssueStatus(t *testing.T) {
	s, err := Open("", zap.NewNop())
	require.NoError(t, err)
	seedIssue(t, s, "i1", "site-1", remediate.StatusFixing, true)

	fixedAt := time.Now()
	require.NoError(t, s.SetIssueStatus(context.Background(), "i1", remediate.StatusFixed, remediate.StatusUpdate{
		FixMethod: "automatic",
		Notes:     "wrote excerpt",
		FixedAt:   &fixedAt,
	}))

	rec, ok := s.Issue("i1")
	require.True(t, ok)
	assert.Equal(t, remediate.StatusFixed, rec.Status)
	assert.Equal(t, "automatic", rec.FixMethod)
	require.NotNil(t, rec.FixedAt)

	assert.Error(t, s.SetIssueStatus(context.Background(), "ghost", remediate.StatusFixed, remediate.StatusUpdate{}))
}

func TestResetStuckFixing(t *testing.T) {
	s, err := Open("", zap.NewNop())
	require.NoError(t, err)
	seedIssue(t, s, "stuck1", "site-1", remediate.StatusFixing, true)
	seedIssue(t, s, "stuck2", "site-1", remediate.StatusFixing, true)
	seedIssue(t, s, "fine", "site-1", remediate.StatusFixed, true)
	seedIssue(t, s, "elsewhere", "site-2", remediate.StatusFixing, true)

	swept, err := s.ResetStuckFixing(context.Background(), "site-1")
	require.NoError(t, err)
	assert.Equal(t, 2, swept)

	rec, _ := s.Issue("stuck1")
	assert.Equal(t, remediate.StatusDetected, rec.Status)
	assert.Empty(t, rec.SessionID)

	rec, _ = s.Issue("elsewhere")
	assert.Equal(t, remediate.StatusFixing, rec.Status)

	swept, err = s.ResetStuckFixing(context.Background(), "site-1")
	require.NoError(t, err)
	assert.Zero(t, swept)
}

func TestLoadBackupUnknownSession(t *testing.T) {
	s, err := Open("", zap.NewNop())
	require.NoError(t, err)
	_, err = s.LoadBackup(context.Background(), "ghost")
	assert.Error(t, err)
}
