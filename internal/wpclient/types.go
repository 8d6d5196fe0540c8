package wpclient

import "encoding/json"

// Kind selects a content-api collection.
type Kind string

const (
	// KindPost targets blog posts.
	KindPost Kind = "posts"
	// KindPage targets static pages.
	KindPage Kind = "pages"
	// KindMedia targets media attachments.
	KindMedia Kind = "media"
)

// Credentials identify one site and its application password.
type Credentials struct {
	// BaseURL is the site root, e.g. https://example.com.
	BaseURL string

	// Username is the WordPress user the password belongs to.
	Username string

	// AppPassword is the application password used for Basic auth.
	AppPassword string
}

// RenderedField is a WordPress field that may carry both the stored raw
// value and a cached rendered value.
type RenderedField struct {
	Raw      string `json:"raw,omitempty"`
	Rendered string `json:"rendered"`
}

// Text returns the raw value when the API exposed it, otherwise the
// rendered value. Verification must read raw where available because the
// rendered field lags behind writes on cached sites.
func (f RenderedField) Text() string {
	if f.Raw != "" {
		return f.Raw
	}
	return f.Rendered
}

// Document is a post or page as returned by the content API.
type Document struct {
	ID       int           `json:"id"`
	Title    RenderedField `json:"title"`
	Content  RenderedField `json:"content"`
	Excerpt  RenderedField `json:"excerpt"`
	Modified string        `json:"modified"`
	Link     string        `json:"link"`
	Status   string        `json:"status"`

	// Kind records which collection the document came from. Not part of
	// the wire format.
	Kind Kind `json:"-"`
}

// Media is a media attachment as returned by the content API.
type Media struct {
	ID      int           `json:"id"`
	AltText string        `json:"alt_text"`
	Title   RenderedField `json:"title"`
	Source  string        `json:"source_url"`
}

// UpdatePayload carries only the fields a mutation changes. Nil fields are
// omitted from the request body so the remote preserves their current
// values.
type UpdatePayload struct {
	Title         *string
	Content       *string
	Excerpt       *string
	Modified      *string
	Status        *string
	CommentStatus *string
	PingStatus    *string
}

// MarshalJSON emits only the set fields.
func (p UpdatePayload) MarshalJSON() ([]byte, error) {
	body := map[string]string{}
	if p.Title != nil {
		body["title"] = *p.Title
	}
	if p.Content != nil {
		body["content"] = *p.Content
	}
	if p.Excerpt != nil {
		body["excerpt"] = *p.Excerpt
	}
	if p.Modified != nil {
		body["modified"] = *p.Modified
	}
	if p.Status != nil {
		body["status"] = *p.Status
	}
	if p.CommentStatus != nil {
		body["comment_status"] = *p.CommentStatus
	}
	if p.PingStatus != nil {
		body["ping_status"] = *p.PingStatus
	}
	return json.Marshal(body)
}

// IsEmpty reports whether the payload changes nothing.
func (p UpdatePayload) IsEmpty() bool {
	return p.Title == nil && p.Content == nil && p.Excerpt == nil &&
		p.Modified == nil && p.Status == nil && p.CommentStatus == nil && p.PingStatus == nil
}

// StringPtr is a convenience for building payloads.
func StringPtr(s string) *string {
	return &s
}
