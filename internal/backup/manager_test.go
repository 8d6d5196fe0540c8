package backup

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/JaxylViernes/Wordpress-SEO-Automated-sub001/internal/wpclient"
)

// fakeClient serves a fixed set of documents keyed by kind/id and records
// every update it receives.
type fakeClient struct {
	docs    map[string]*wpclient.Document
	updates []updateCall
	failIDs map[int]bool
}

type updateCall struct {
	kind    wpclient.Kind
	id      int
	payload wpclient.UpdatePayload
}

func newFakeClient() *fakeClient {
	return &fakeClient{
		docs:    make(map[string]*wpclient.Document),
		failIDs: make(map[int]bool),
	}
}

func (f *fakeClient) add(kind wpclient.Kind, doc *wpclient.Document) {
	doc.Kind = kind
	f.docs[fmt.Sprintf("%s/%d", kind, doc.ID)] = doc
}

func (f *fakeClient) Get(ctx context.Context, creds wpclient.Credentials, kind wpclient.Kind, id int, opts wpclient.FetchOptions) (*wpclient.Document, error) {
	doc, ok := f.docs[fmt.Sprintf("%s/%d", kind, id)]
	if !ok {
		return nil, fmt.Errorf("%s/%d: %w", kind, id, wpclient.ErrNotFound)
	}
	return doc, nil
}

func (f *fakeClient) Update(ctx context.Context, creds wpclient.Credentials, kind wpclient.Kind, id int, payload wpclient.UpdatePayload) error {
	if f.failIDs[id] {
		return errors.New("remote write failed")
	}
	f.updates = append(f.updates, updateCall{kind: kind, id: id, payload: payload})
	return nil
}

// memStore is an in-memory backup.Store.
type memStore struct {
	saved   map[string]*Backup
	saveErr error
}

func newMemStore() *memStore {
	return &memStore{saved: make(map[string]*Backup)}
}

func (s *memStore) SaveBackup(ctx context.Context, b *Backup) error {
	if s.saveErr != nil {
		return s.saveErr
	}
	s.saved[b.SessionID] = b
	return nil
}

func (s *memStore) LoadBackup(ctx context.Context, sessionID string) (*Backup, error) {
	b, ok := s.saved[sessionID]
	if !ok {
		return nil, fmt.Errorf("no backup for session %s", sessionID)
	}
	return b, nil
}

func postDoc(id int, title, content string) *wpclient.Document {
	return &wpclient.Document{
		ID:       id,
		Title:    wpclient.RenderedField{Raw: title},
		Content:  wpclient.RenderedField{Raw: content},
		Excerpt:  wpclient.RenderedField{Raw: "excerpt of " + title},
		Modified: "2026-08-01T00:00:00",
	}
}

func TestNewManagerRequiresClient(t *testing.T) {
	_, err := NewManager(nil, nil, zap.NewNop())
	assert.Error(t, err)
}

func TestSnapshotCapturesPostsAndPages(t *testing.T) {
	client := newFakeClient()
	client.add(wpclient.KindPost, postDoc(1, "Post One", "<p>one</p>"))
	client.add(wpclient.KindPage, postDoc(2, "Page Two", "<p>two</p>"))

	store := newMemStore()
	m, err := NewManager(client, store, zap.NewNop())
	require.NoError(t, err)

	b, err := m.Snapshot(context.Background(), wpclient.Credentials{}, []int{1, 2}, "sess-1")
	require.NoError(t, err)
	require.Len(t, b.Items, 2)

	assert.Equal(t, wpclient.KindPost, b.Items[0].Kind)
	assert.Equal(t, "Post One", b.Items[0].Title)
	assert.Equal(t, wpclient.KindPage, b.Items[1].Kind)
	assert.Equal(t, "<p>two</p>", b.Items[1].Content)

	assert.True(t, m.Has("sess-1"))
	assert.Contains(t, store.saved, "sess-1")
}

func TestExtendAddsToExistingSnapshot(t *testing.T) {
	client := newFakeClient()
	client.add(wpclient.KindPost, postDoc(1, "Post One", "<p>one</p>"))
	client.add(wpclient.KindPost, postDoc(2, "Post Two", "<p>two</p>"))

	store := newMemStore()
	m, err := NewManager(client, store, zap.NewNop())
	require.NoError(t, err)

	_, err = m.Snapshot(context.Background(), wpclient.Credentials{}, []int{1}, "sess-1")
	require.NoError(t, err)

	require.NoError(t, m.Extend(context.Background(), wpclient.Credentials{}, 2, "sess-1"))

	// Extending with an already-captured id changes nothing.
	require.NoError(t, m.Extend(context.Background(), wpclient.Credentials{}, 1, "sess-1"))

	saved := store.saved["sess-1"]
	require.NotNil(t, saved)
	require.Len(t, saved.Items, 2)
	assert.Equal(t, "Post Two", saved.Items[1].Title)

	// A rollback restores the extended item too.
	rb, err := m.Rollback(context.Background(), wpclient.Credentials{}, "sess-1")
	require.NoError(t, err)
	assert.Equal(t, 2, rb.Restored)
}

func TestExtendStartsSnapshotForScanOnlySessions(t *testing.T) {
	client := newFakeClient()
	client.add(wpclient.KindPost, postDoc(3, "Post Three", "<p>three</p>"))

	m, err := NewManager(client, nil, zap.NewNop())
	require.NoError(t, err)
	assert.False(t, m.Has("sess-9"))

	require.NoError(t, m.Extend(context.Background(), wpclient.Credentials{}, 3, "sess-9"))
	assert.True(t, m.Has("sess-9"))
}

func TestExtendMissingDocumentFails(t *testing.T) {
	m, err := NewManager(newFakeClient(), nil, zap.NewNop())
	require.NoError(t, err)

	err = m.Extend(context.Background(), wpclient.Credentials{}, 404, "sess-1")
	assert.Error(t, err)
	assert.False(t, m.Has("sess-1"))
}

func TestSnapshotMissingDocumentAborts(t *testing.T) {
	client := newFakeClient()
	client.add(wpclient.KindPost, postDoc(1, "Post One", "<p>one</p>"))

	m, err := NewManager(client, nil, zap.NewNop())
	require.NoError(t, err)

	_, err = m.Snapshot(context.Background(), wpclient.Credentials{}, []int{1, 99}, "sess-2")
	require.Error(t, err)
	assert.False(t, m.Has("sess-2"))
}

func TestSnapshotStoreFailureIsNotFatal(t *testing.T) {
	client := newFakeClient()
	client.add(wpclient.KindPost, postDoc(1, "Post One", "<p>one</p>"))

	store := newMemStore()
	store.saveErr = errors.New("disk full")

	m, err := NewManager(client, store, zap.NewNop())
	require.NoError(t, err)

	_, err = m.Snapshot(context.Background(), wpclient.Credentials{}, []int{1}, "sess-3")
	require.NoError(t, err)
	assert.True(t, m.Has("sess-3"))
}

func TestHasUnknownSession(t *testing.T) {
	client := newFakeClient()
	m, err := NewManager(client, nil, zap.NewNop())
	require.NoError(t, err)
	assert.False(t, m.Has("nope"))
}

func TestRollbackRestoresAllItems(t *testing.T) {
	client := newFakeClient()
	client.add(wpclient.KindPost, postDoc(1, "Original", "<p>original body</p>"))

	m, err := NewManager(client, nil, zap.NewNop())
	require.NoError(t, err)

	_, err = m.Snapshot(context.Background(), wpclient.Credentials{}, []int{1}, "sess-4")
	require.NoError(t, err)

	res, err := m.Rollback(context.Background(), wpclient.Credentials{}, "sess-4")
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Equal(t, 1, res.Restored)
	assert.Empty(t, res.Errors)

	require.Len(t, client.updates, 1)
	up := client.updates[0]
	assert.Equal(t, 1, up.id)
	require.NotNil(t, up.payload.Title)
	assert.Equal(t, "Original", *up.payload.Title)
	require.NotNil(t, up.payload.Content)
	assert.Equal(t, "<p>original body</p>", *up.payload.Content)
	require.NotNil(t, up.payload.Excerpt)
	require.NotNil(t, up.payload.Modified)
	assert.Nil(t, up.payload.Status)
}

func TestRollbackCollectsPartialFailures(t *testing.T) {
	client := newFakeClient()
	client.add(wpclient.KindPost, postDoc(1, "One", "<p>1</p>"))
	client.add(wpclient.KindPost, postDoc(2, "Two", "<p>2</p>"))
	client.failIDs[1] = true

	m, err := NewManager(client, nil, zap.NewNop())
	require.NoError(t, err)

	_, err = m.Snapshot(context.Background(), wpclient.Credentials{}, []int{1, 2}, "sess-5")
	require.NoError(t, err)

	res, err := m.Rollback(context.Background(), wpclient.Credentials{}, "sess-5")
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Equal(t, 1, res.Restored)
	require.Len(t, res.Errors, 1)
	assert.Contains(t, res.Errors[0], "content 1")
}

func TestRollbackUnknownSession(t *testing.T) {
	client := newFakeClient()
	m, err := NewManager(client, nil, zap.NewNop())
	require.NoError(t, err)

	_, err = m.Rollback(context.Background(), wpclient.Credentials{}, "ghost")
	assert.Error(t, err)
}

func TestRollbackFallsBackToStore(t *testing.T) {
	client := newFakeClient()
	client.add(wpclient.KindPost, postDoc(1, "One", "<p>1</p>"))

	store := newMemStore()
	store.saved["sess-6"] = &Backup{
		SessionID: "sess-6",
		Items: []Item{{
			ID:      1,
			Kind:    wpclient.KindPost,
			Title:   "One",
			Content: "<p>1</p>",
		}},
	}

	// Fresh manager with no in-memory session, simulating a restart.
	m, err := NewManager(client, store, zap.NewNop())
	require.NoError(t, err)

	res, err := m.Rollback(context.Background(), wpclient.Credentials{}, "sess-6")
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Equal(t, 1, res.Restored)
}
