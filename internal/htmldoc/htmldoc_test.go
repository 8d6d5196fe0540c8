package htmldoc

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseRenderRoundTrip(t *testing.T) {
	in := `<h1>Title</h1><p>Hello <strong>world</strong></p>`
	d, err := Parse(in)
	require.NoError(t, err)

	out, err := d.Render()
	require.NoError(t, err)
	assert.Equal(t, in, out)
}

func TestParseEmptyFragment(t *testing.T) {
	d, err := Parse("")
	require.NoError(t, err)

	out, err := d.Render()
	require.NoError(t, err)
	assert.Empty(t, out)
}

func TestParseKeepsHeadElementsInFragment(t *testing.T) {
	// link and meta at the top of a fragment must survive in place; a
	// full-document parse would hoist them into head and Render would
	// drop them.
	in := `<link rel="canonical" href="https://example.com/a"/><meta property="og:title" content="t"/><p>body</p>`
	d, err := Parse(in)
	require.NoError(t, err)

	assert.Len(t, d.FindTag("link"), 1)
	assert.Len(t, d.FindTag("meta"), 1)

	out, err := d.Render()
	require.NoError(t, err)
	assert.Equal(t, in, out)
}

func TestFindTag(t *testing.T) {
	d, err := Parse(`<p>one</p><p>two</p><div><p>three</p></div>`)
	require.NoError(t, err)

	ps := d.FindTag("p")
	require.Len(t, ps, 3)
	assert.Equal(t, "one", Text(ps[0]))
	assert.Equal(t, "three", Text(ps[2]))
}

func TestFindTagNonStandardElement(t *testing.T) {
	d, err := Parse(`<custom-el>x</custom-el>`)
	require.NoError(t, err)

	// atom.Lookup misses custom elements; fall back to Data matching.
	assert.Len(t, d.FindTag("custom-el"), 1)
}

func TestHeadings(t *testing.T) {
	d, err := Parse(`<h1>a</h1><p>x</p><h2>b</h2><h3>c</h3>`)
	require.NoError(t, err)

	hs := d.Headings()
	require.Len(t, hs, 3)
	assert.Equal(t, 1, HeadingLevel(hs[0]))
	assert.Equal(t, 2, HeadingLevel(hs[1]))
	assert.Equal(t, 3, HeadingLevel(hs[2]))
}

func TestHeadingLevelNonHeading(t *testing.T) {
	d, err := Parse(`<p>x</p>`)
	require.NoError(t, err)
	assert.Equal(t, 0, HeadingLevel(d.FindTag("p")[0]))
	assert.Equal(t, 0, HeadingLevel(nil))
}

func TestSetTagDemotesHeading(t *testing.T) {
	d, err := Parse(`<h1>a</h1><h1>b</h1>`)
	require.NoError(t, err)

	hs := d.Headings()
	SetTag(hs[1], "h2")

	out, err := d.Render()
	require.NoError(t, err)
	assert.Equal(t, `<h1>a</h1><h2>b</h2>`, out)
}

func TestPrependChild(t *testing.T) {
	d, err := Parse(`<p>body</p>`)
	require.NoError(t, err)

	d.PrependChild(NewElement("h1", NewText("Title")))

	out, err := d.Render()
	require.NoError(t, err)
	assert.Equal(t, `<h1>Title</h1><p>body</p>`, out)
}

func TestAttrHelpers(t *testing.T) {
	d, err := Parse(`<img src="a.jpg">`)
	require.NoError(t, err)
	img := d.FindTag("img")[0]

	_, ok := Attr(img, "alt")
	assert.False(t, ok)

	SetAttr(img, "alt", "a photo")
	v, ok := Attr(img, "alt")
	assert.True(t, ok)
	assert.Equal(t, "a photo", v)

	SetAttr(img, "alt", "replaced")
	v, _ = Attr(img, "alt")
	assert.Equal(t, "replaced", v)
}

func TestText(t *testing.T) {
	d, err := Parse(`<p>Hello   <em>there</em>
	world</p>`)
	require.NoError(t, err)
	assert.Equal(t, "Hello there world", Text(d.Body()))
}

func TestStripTags(t *testing.T) {
	assert.Equal(t, "Hello world", StripTags("<p>Hello <b>world</b></p>"))
	assert.Equal(t, "plain text", StripTags("plain   text"))
}

func TestWordCount(t *testing.T) {
	assert.Equal(t, 0, WordCount(""))
	assert.Equal(t, 5, WordCount("<p>one two</p><p>three four five</p>"))
}

func TestTruncateAtWord(t *testing.T) {
	assert.Equal(t, "short", TruncateAtWord("short", 60))

	long := strings.Repeat("word ", 50)
	got := TruncateAtWord(long, 60)
	assert.LessOrEqual(t, len(got), 60)
	assert.True(t, strings.HasSuffix(got, "..."))
	assert.NotContains(t, strings.TrimSuffix(got, "..."), "wor ")

	// Cuts at a word boundary, not mid-word.
	got = TruncateAtWord("alpha beta gamma delta", 15)
	assert.Equal(t, "alpha beta...", got)
}

func TestTruncateAtWordTinyLimit(t *testing.T) {
	assert.Equal(t, "...", TruncateAtWord("abcdef", 3))
	assert.Equal(t, "...", TruncateAtWord("abcdef", 2))
}
