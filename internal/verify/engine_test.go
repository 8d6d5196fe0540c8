package verify

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/JaxylViernes/Wordpress-SEO-Automated-sub001/internal/wpclient"
)

// fetchFunc adapts a function to the ContentClient interface.
type fetchFunc func(ctx context.Context, creds wpclient.Credentials, kind wpclient.Kind, id int, opts wpclient.FetchOptions) (*wpclient.Document, error)

func (f fetchFunc) Get(ctx context.Context, creds wpclient.Credentials, kind wpclient.Kind, id int, opts wpclient.FetchOptions) (*wpclient.Document, error) {
	return f(ctx, creds, kind, id, opts)
}

func staticDoc(doc *wpclient.Document) fetchFunc {
	return func(ctx context.Context, creds wpclient.Credentials, kind wpclient.Kind, id int, opts wpclient.FetchOptions) (*wpclient.Document, error) {
		return doc, nil
	}
}

func newTestEngine(t *testing.T, client ContentClient) *Engine {
	t.Helper()
	e, err := NewEngine(&Config{SettleDelay: 0}, client, zap.NewNop())
	require.NoError(t, err)
	return e
}

func TestNewEngineRequiresClient(t *testing.T) {
	_, err := NewEngine(nil, nil, zap.NewNop())
	assert.Error(t, err)
}

func TestVerifyUsesCacheBust(t *testing.T) {
	var gotOpts wpclient.FetchOptions
	client := fetchFunc(func(ctx context.Context, creds wpclient.Credentials, kind wpclient.Kind, id int, opts wpclient.FetchOptions) (*wpclient.Document, error) {
		gotOpts = opts
		return &wpclient.Document{ID: id}, nil
	})

	_, err := newTestEngine(t, client).Verify(context.Background(), wpclient.Credentials{}, 1, CheckThinContent, wpclient.KindPost)
	require.NoError(t, err)
	assert.True(t, gotOpts.CacheBust)
}

func TestVerifyFetchError(t *testing.T) {
	client := fetchFunc(func(ctx context.Context, creds wpclient.Credentials, kind wpclient.Kind, id int, opts wpclient.FetchOptions) (*wpclient.Document, error) {
		return nil, errors.New("unreachable")
	})

	_, err := newTestEngine(t, client).Verify(context.Background(), wpclient.Credentials{}, 1, CheckThinContent, wpclient.KindPost)
	assert.Error(t, err)
}

func TestVerifyCancelledBeforeSettle(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	e, err := NewEngine(DefaultConfig(), staticDoc(&wpclient.Document{}), zap.NewNop())
	require.NoError(t, err)

	_, err = e.Verify(ctx, wpclient.Credentials{}, 1, CheckThinContent, wpclient.KindPost)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestVerifyAltText(t *testing.T) {
	tests := []struct {
		name     string
		content  string
		verified bool
	}{
		{"all images have alt", `<img src="a.jpg" alt="a photo"><img src="b.jpg" alt="another">`, true},
		{"missing alt", `<img src="a.jpg" alt="ok"><img src="b.jpg">`, false},
		{"blank alt", `<img src="a.jpg" alt="   ">`, false},
		{"no images at all", `<p>text only</p>`, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc := &wpclient.Document{Content: wpclient.RenderedField{Raw: tt.content}}
			res, err := newTestEngine(t, staticDoc(doc)).Verify(context.Background(), wpclient.Credentials{}, 1, CheckImageAltText, wpclient.KindPost)
			require.NoError(t, err)
			assert.Equal(t, tt.verified, res.Verified, res.Details)
		})
	}
}

func TestVerifyMetaDescriptionLengthBand(t *testing.T) {
	tests := []struct {
		name     string
		excerpt  string
		verified bool
	}{
		{"in band", strings.Repeat("a", 140), true},
		{"lower bound", strings.Repeat("a", 120), true},
		{"upper bound", strings.Repeat("a", 160), true},
		{"too short", strings.Repeat("a", 119), false},
		{"too long", strings.Repeat("a", 161), false},
		{"markup is stripped first", "<p>" + strings.Repeat("a", 140) + "</p>", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc := &wpclient.Document{Excerpt: wpclient.RenderedField{Raw: tt.excerpt}}
			res, err := newTestEngine(t, staticDoc(doc)).Verify(context.Background(), wpclient.Credentials{}, 1, CheckMetaDescription, wpclient.KindPost)
			require.NoError(t, err)
			assert.Equal(t, tt.verified, res.Verified, res.Details)
		})
	}
}

func TestVerifyTitleLengthBand(t *testing.T) {
	doc := &wpclient.Document{Title: wpclient.RenderedField{Raw: "A Perfectly Reasonable Title Length"}}
	res, err := newTestEngine(t, staticDoc(doc)).Verify(context.Background(), wpclient.Credentials{}, 1, CheckTitleTag, wpclient.KindPost)
	require.NoError(t, err)
	assert.True(t, res.Verified, res.Details)

	doc = &wpclient.Document{Title: wpclient.RenderedField{Raw: "Hi"}}
	res, err = newTestEngine(t, staticDoc(doc)).Verify(context.Background(), wpclient.Credentials{}, 1, CheckTitleTag, wpclient.KindPost)
	require.NoError(t, err)
	assert.False(t, res.Verified)
}

func TestVerifyHeadingStructure(t *testing.T) {
	tests := []struct {
		name     string
		content  string
		verified bool
	}{
		{"well formed", `<h1>a</h1><h2>b</h2><h3>c</h3>`, true},
		{"two h1", `<h1>a</h1><h1>b</h1>`, false},
		{"no h1", `<h2>a</h2>`, false},
		{"level skip", `<h1>a</h1><h3>c</h3>`, false},
		{"descending is fine", `<h1>a</h1><h2>b</h2><h3>c</h3><h2>d</h2>`, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc := &wpclient.Document{Content: wpclient.RenderedField{Raw: tt.content}}
			res, err := newTestEngine(t, staticDoc(doc)).Verify(context.Background(), wpclient.Credentials{}, 1, CheckHeadingStruct, wpclient.KindPost)
			require.NoError(t, err)
			assert.Equal(t, tt.verified, res.Verified, res.Details)
		})
	}
}

func TestVerifyThinContent(t *testing.T) {
	long := "<p>" + strings.Repeat("word ", 320) + "</p>"
	doc := &wpclient.Document{Content: wpclient.RenderedField{Raw: long}}
	res, err := newTestEngine(t, staticDoc(doc)).Verify(context.Background(), wpclient.Credentials{}, 1, CheckThinContent, wpclient.KindPost)
	require.NoError(t, err)
	assert.True(t, res.Verified, res.Details)

	doc = &wpclient.Document{Content: wpclient.RenderedField{Raw: "<p>short</p>"}}
	res, err = newTestEngine(t, staticDoc(doc)).Verify(context.Background(), wpclient.Credentials{}, 1, CheckThinContent, wpclient.KindPost)
	require.NoError(t, err)
	assert.False(t, res.Verified)
}

func TestVerifyUnknownFixTypePasses(t *testing.T) {
	doc := &wpclient.Document{Content: wpclient.RenderedField{Raw: "<p>anything</p>"}}
	res, err := newTestEngine(t, staticDoc(doc)).Verify(context.Background(), wpclient.Credentials{}, 1, "canonical_url", wpclient.KindPost)
	require.NoError(t, err)
	assert.True(t, res.Verified)
	assert.Contains(t, res.Details, "no verification available")
}

func TestVerifyPrefersRawOverRendered(t *testing.T) {
	// Rendered lags behind writes on cached sites; raw reflects the write.
	doc := &wpclient.Document{
		Content: wpclient.RenderedField{
			Raw:      "<h1>fixed</h1>",
			Rendered: "<h1>stale</h1><h1>stale</h1>",
		},
	}
	res, err := newTestEngine(t, staticDoc(doc)).Verify(context.Background(), wpclient.Credentials{}, 1, CheckHeadingStruct, wpclient.KindPost)
	require.NoError(t, err)
	assert.True(t, res.Verified, res.Details)
}
