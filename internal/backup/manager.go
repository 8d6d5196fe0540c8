// Package backup snapshots content before remediation and restores it on
// rollback.
//
// Snapshots live in a per-session in-memory map for the duration of a run
// and are also written to the durable store so a rollback is still possible
// after a process restart. A completed run simply abandons its snapshot;
// nothing deletes it.
package backup

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/JaxylViernes/Wordpress-SEO-Automated-sub001/internal/wpclient"
)

const instrumentationName = "github.com/JaxylViernes/Wordpress-SEO-Automated-sub001/internal/backup"

// Item is one document captured before mutation. Exactly these four content
// fields are written back on restore.
type Item struct {
	ID       int           `json:"id"`
	Kind     wpclient.Kind `json:"kind"`
	Title    string        `json:"title"`
	Content  string        `json:"content"`
	Excerpt  string        `json:"excerpt"`
	Modified string        `json:"modified"`
}

// Backup groups the items captured for one fix session.
type Backup struct {
	SessionID string    `json:"session_id"`
	CreatedAt time.Time `json:"created_at"`
	Items     []Item    `json:"items"`
}

// RollbackResult reports a restoration attempt.
type RollbackResult struct {
	// Success is true iff at least one item was restored.
	Success bool `json:"success"`

	// Restored counts items written back.
	Restored int `json:"restored"`

	// Errors holds per-item failures; they do not abort the rest of the
	// restoration.
	Errors []string `json:"errors,omitempty"`
}

// Store durably records snapshots for recovery across process restarts.
type Store interface {
	SaveBackup(ctx context.Context, b *Backup) error
	LoadBackup(ctx context.Context, sessionID string) (*Backup, error)
}

// ContentClient is the slice of the wpclient surface the manager needs.
type ContentClient interface {
	Get(ctx context.Context, creds wpclient.Credentials, kind wpclient.Kind, id int, opts wpclient.FetchOptions) (*wpclient.Document, error)
	Update(ctx context.Context, creds wpclient.Credentials, kind wpclient.Kind, id int, payload wpclient.UpdatePayload) error
}

// Manager snapshots and restores content.
type Manager struct {
	client ContentClient
	store  Store
	logger *zap.Logger
	tracer trace.Tracer

	mu       sync.Mutex
	sessions map[string]*Backup
}

// NewManager creates a backup manager. store may be nil, in which case
// snapshots are memory-only and do not survive a restart.
func NewManager(client ContentClient, store Store, logger *zap.Logger) (*Manager, error) {
	if client == nil {
		return nil, errors.New("content client is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Manager{
		client:   client,
		store:    store,
		logger:   logger,
		tracer:   otel.Tracer(instrumentationName),
		sessions: make(map[string]*Backup),
	}, nil
}

// Snapshot captures the current state of the given content ids for one
// session. Each id is probed as a post first, then as a page; the first
// successful probe wins. A missing document is an error: remediation must
// not proceed without a complete snapshot.
func (m *Manager) Snapshot(ctx context.Context, creds wpclient.Credentials, ids []int, sessionID string) (*Backup, error) {
	ctx, span := m.tracer.Start(ctx, "backup.snapshot")
	defer span.End()

	span.SetAttributes(
		attribute.String("session_id", sessionID),
		attribute.Int("content_count", len(ids)),
	)

	b := &Backup{
		SessionID: sessionID,
		CreatedAt: time.Now(),
	}

	for _, id := range ids {
		item, err := m.captureItem(ctx, creds, id)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return nil, fmt.Errorf("failed to snapshot content %d: %w", id, err)
		}
		b.Items = append(b.Items, *item)
	}

	m.mu.Lock()
	m.sessions[sessionID] = b
	m.mu.Unlock()

	if m.store != nil {
		if err := m.store.SaveBackup(ctx, b); err != nil {
			// The in-memory copy still covers this run; durable recovery
			// across a restart is degraded, which is worth a warning but
			// not an abort.
			m.logger.Warn("failed to persist backup",
				zap.String("session_id", sessionID),
				zap.Error(err),
			)
		}
	}

	m.logger.Info("snapshotted content",
		zap.String("session_id", sessionID),
		zap.Int("items", len(b.Items)),
	)
	return b, nil
}

// captureItem probes posts first, then pages.
func (m *Manager) captureItem(ctx context.Context, creds wpclient.Credentials, id int) (*Item, error) {
	var lastErr error
	for _, kind := range []wpclient.Kind{wpclient.KindPost, wpclient.KindPage} {
		doc, err := m.client.Get(ctx, creds, kind, id, wpclient.FetchOptions{})
		if err != nil {
			lastErr = err
			if errors.Is(err, wpclient.ErrNotFound) {
				continue
			}
			return nil, err
		}
		return &Item{
			ID:       doc.ID,
			Kind:     kind,
			Title:    doc.Title.Text(),
			Content:  doc.Content.Text(),
			Excerpt:  doc.Excerpt.Text(),
			Modified: doc.Modified,
		}, nil
	}
	return nil, lastErr
}

// Extend captures one additional document into the session snapshot,
// creating the snapshot if none exists yet. Targets resolved mid-run must
// be captured before their first write so a rollback restores them with
// the rest of the session. Extending with an already-captured id is a
// no-op.
func (m *Manager) Extend(ctx context.Context, creds wpclient.Credentials, id int, sessionID string) error {
	m.mu.Lock()
	if b := m.sessions[sessionID]; b != nil {
		for _, item := range b.Items {
			if item.ID == id {
				m.mu.Unlock()
				return nil
			}
		}
	}
	m.mu.Unlock()

	item, err := m.captureItem(ctx, creds, id)
	if err != nil {
		return fmt.Errorf("failed to snapshot content %d: %w", id, err)
	}

	m.mu.Lock()
	b := m.sessions[sessionID]
	if b == nil {
		b = &Backup{SessionID: sessionID, CreatedAt: time.Now()}
		m.sessions[sessionID] = b
	}
	b.Items = append(b.Items, *item)
	snapshot := *b
	m.mu.Unlock()

	if m.store != nil {
		if err := m.store.SaveBackup(ctx, &snapshot); err != nil {
			m.logger.Warn("failed to persist backup",
				zap.String("session_id", sessionID),
				zap.Error(err),
			)
		}
	}

	m.logger.Info("extended snapshot",
		zap.String("session_id", sessionID),
		zap.Int("content_id", id),
	)
	return nil
}

// Has reports whether a snapshot exists for the session.
func (m *Manager) Has(sessionID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.sessions[sessionID]
	return ok && len(b.Items) > 0
}

// Rollback restores every snapshotted item for the session. Individual
// failures are collected and do not stop the remaining items; the result is
// successful iff at least one item was restored.
func (m *Manager) Rollback(ctx context.Context, creds wpclient.Credentials, sessionID string) (*RollbackResult, error) {
	ctx, span := m.tracer.Start(ctx, "backup.rollback")
	defer span.End()

	span.SetAttributes(attribute.String("session_id", sessionID))

	m.mu.Lock()
	b := m.sessions[sessionID]
	m.mu.Unlock()

	if b == nil && m.store != nil {
		loaded, err := m.store.LoadBackup(ctx, sessionID)
		if err == nil {
			b = loaded
		}
	}
	if b == nil || len(b.Items) == 0 {
		return nil, fmt.Errorf("no backup found for session %s", sessionID)
	}

	result := &RollbackResult{}
	for _, item := range b.Items {
		payload := wpclient.UpdatePayload{
			Title:    wpclient.StringPtr(item.Title),
			Content:  wpclient.StringPtr(item.Content),
			Excerpt:  wpclient.StringPtr(item.Excerpt),
			Modified: wpclient.StringPtr(item.Modified),
		}
		if err := m.client.Update(ctx, creds, item.Kind, item.ID, payload); err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("content %d: %v", item.ID, err))
			m.logger.Warn("failed to restore content",
				zap.String("session_id", sessionID),
				zap.Int("content_id", item.ID),
				zap.Error(err),
			)
			continue
		}
		result.Restored++
	}

	result.Success = result.Restored > 0

	span.SetAttributes(
		attribute.Int("restored", result.Restored),
		attribute.Int("errors", len(result.Errors)),
	)
	m.logger.Info("rollback complete",
		zap.String("session_id", sessionID),
		zap.Int("restored", result.Restored),
		zap.Int("failed", len(result.Errors)),
	)
	return result, nil
}
