// Package store is a JSON-file-backed implementation of the persistence
// collaborators the remediation service consumes: issue tracking, durable
// backups, and the activity log.
//
// The production system keeps these in its own database; this store exists
// so the CLI and the HTTP daemon are runnable against a plain file, and so
// tests have a real implementation to exercise.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/JaxylViernes/Wordpress-SEO-Automated-sub001/internal/backup"
	"github.com/JaxylViernes/Wordpress-SEO-Automated-sub001/internal/remediate"
)

// IssueRecord is one tracked issue plus its lifecycle state.
type IssueRecord struct {
	remediate.Issue

	SiteID      string                 `json:"siteId"`
	UserID      string                 `json:"userId"`
	Status      remediate.IssueStatus  `json:"status"`
	AutoFixable bool                   `json:"autoFixable"`
	FixMethod   string                 `json:"fixMethod,omitempty"`
	Notes       string                 `json:"notes,omitempty"`
	SessionID   string                 `json:"sessionId,omitempty"`
	FixedAt     *time.Time             `json:"fixedAt,omitempty"`
}

type fileData struct {
	Issues     []IssueRecord              `json:"issues"`
	Backups    map[string]*backup.Backup  `json:"backups"`
	Activities []remediate.ActivityEntry  `json:"activities"`
}

// Store implements remediate.IssueTracker, remediate.ActivityRecorder and
// backup.Store over one JSON file. An empty path keeps everything in
// memory only.
type Store struct {
	path   string
	logger *zap.Logger

	mu   sync.Mutex
	data fileData
}

// Open loads the store from path, creating an empty one when the file
// does not exist yet.
func Open(path string, logger *zap.Logger) (*Store, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	s := &Store{
		path:   path,
		logger: logger,
		data:   fileData{Backups: map[string]*backup.Backup{}},
	}

	if path == "" {
		return s, nil
	}

	raw, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return s, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read store file: %w", err)
	}
	if err := json.Unmarshal(raw, &s.data); err != nil {
		return nil, fmt.Errorf("failed to parse store file %s: %w", path, err)
	}
	if s.data.Backups == nil {
		s.data.Backups = map[string]*backup.Backup{}
	}
	return s, nil
}

// AddIssue seeds one tracked issue into the store.
func (s *Store) AddIssue(rec IssueRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if rec.Status == "" {
		rec.Status = remediate.StatusDetected
	}
	s.data.Issues = append(s.data.Issues, rec)
	return s.flushLocked()
}

// ListFixableIssues implements remediate.IssueTracker.
func (s *Store) ListFixableIssues(ctx context.Context, siteID, userID string, f remediate.IssueFilter) ([]remediate.Issue, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	wanted := map[remediate.IssueStatus]bool{}
	for _, st := range f.Statuses {
		wanted[st] = true
	}

	var out []remediate.Issue
	for _, rec := range s.data.Issues {
		if rec.SiteID != siteID {
			continue
		}
		if f.AutoFixableOnly && !rec.AutoFixable {
			continue
		}
		if len(wanted) > 0 && !wanted[rec.Status] {
			continue
		}
		if f.ExcludeFixedWithin > 0 && rec.FixedAt != nil &&
			time.Since(*rec.FixedAt) < f.ExcludeFixedWithin {
			continue
		}
		out = append(out, rec.Issue)
	}
	return out, nil
}

// BulkMarkFixing implements remediate.IssueTracker.
func (s *Store) BulkMarkFixing(ctx context.Context, issueIDs []string, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	ids := map[string]bool{}
	for _, id := range issueIDs {
		ids[id] = true
	}
	for i := range s.data.Issues {
		if ids[s.data.Issues[i].TrackedIssueID] {
			s.data.Issues[i].Status = remediate.StatusFixing
			s.data.Issues[i].SessionID = sessionID
		}
	}
	return s.flushLocked()
}

// SetIssueStatus implements remediate.IssueTracker.
func (s *Store) SetIssueStatus(ctx context.Context, issueID string, status remediate.IssueStatus, u remediate.StatusUpdate) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.data.Issues {
		if s.data.Issues[i].TrackedIssueID != issueID {
			continue
		}
		s.data.Issues[i].Status = status
		s.data.Issues[i].FixMethod = u.FixMethod
		s.data.Issues[i].Notes = u.Notes
		if u.FixedAt != nil {
			s.data.Issues[i].FixedAt = u.FixedAt
		}
		return s.flushLocked()
	}
	return fmt.Errorf("issue not found: %s", issueID)
}

// ResetStuckFixing implements remediate.IssueTracker.
func (s *Store) ResetStuckFixing(ctx context.Context, siteID string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	swept := 0
	for i := range s.data.Issues {
		if s.data.Issues[i].SiteID == siteID && s.data.Issues[i].Status == remediate.StatusFixing {
			s.data.Issues[i].Status = remediate.StatusDetected
			s.data.Issues[i].SessionID = ""
			swept++
		}
	}
	if swept > 0 {
		return swept, s.flushLocked()
	}
	return 0, nil
}

// Issue returns a copy of the record for one tracked issue id.
func (s *Store) Issue(issueID string) (IssueRecord, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, rec := range s.data.Issues {
		if rec.TrackedIssueID == issueID {
			return rec, true
		}
	}
	return IssueRecord{}, false
}

// SaveBackup implements backup.Store.
func (s *Store) SaveBackup(ctx context.Context, b *backup.Backup) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data.Backups[b.SessionID] = b
	return s.flushLocked()
}

// LoadBackup implements backup.Store.
func (s *Store) LoadBackup(ctx context.Context, sessionID string) (*backup.Backup, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.data.Backups[sessionID]
	if !ok {
		return nil, fmt.Errorf("no backup for session %s", sessionID)
	}
	return b, nil
}

// Record implements remediate.ActivityRecorder.
func (s *Store) Record(ctx context.Context, e remediate.ActivityEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data.Activities = append(s.data.Activities, e)
	return s.flushLocked()
}

// Activities returns all recorded activity entries.
func (s *Store) Activities() []remediate.ActivityEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]remediate.ActivityEntry, len(s.data.Activities))
	copy(out, s.data.Activities)
	return out
}

// flushLocked writes the store file. Callers hold s.mu.
func (s *Store) flushLocked() error {
	if s.path == "" {
		return nil
	}
	raw, err := json.MarshalIndent(&s.data, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal store: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0o700); err != nil {
		return fmt.Errorf("failed to create store directory: %w", err)
	}
	// Write-then-rename keeps the file intact if the process dies mid-write.
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, raw, 0o600); err != nil {
		return fmt.Errorf("failed to write store file: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("failed to replace store file: %w", err)
	}
	return nil
}
