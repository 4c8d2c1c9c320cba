package domain

import "time"

const (
	DefaultSlug     = "default-slug"
	DefaultCategory = "Uncategorized"
	DefaultStatus   = "draft"
	DefaultTitle    = "Untitled"
)

// Author identifies who wrote a generated post.
type Author struct {
	Name    string `yaml:"name" json:"name"`
	Picture string `yaml:"picture" json:"picture"`
}

// Metadata is the record carried in a document's frontmatter.
type Metadata struct {
	Slug        string         `yaml:"slug"`
	Category    string         `yaml:"category"`
	CoverImage  string         `yaml:"coverImage"`
	Description string         `yaml:"description"`
	PublishedAt string         `yaml:"publishedAt"`
	Status      string         `yaml:"status"`
	Title       string         `yaml:"title"`
	Author      Author         `yaml:"author"`
	Extra       map[string]any `yaml:",inline"`
}

// ResolvedSlug returns the slug or the default sentinel when it is missing.
func (m Metadata) ResolvedSlug() string {
	if m.Slug == "" {
		return DefaultSlug
	}
	return m.Slug
}

// WithDefaults fills every missing field with its default value.
func (m Metadata) WithDefaults() Metadata {
	m.Slug = m.ResolvedSlug()
	if m.Category == "" {
		m.Category = DefaultCategory
	}
	if m.Status == "" {
		m.Status = DefaultStatus
	}
	if m.Title == "" {
		m.Title = DefaultTitle
	}
	return m
}

// OutstaticRef is the CMS bookkeeping block of an index entry.
type OutstaticRef struct {
	Path string `json:"path"`
}

// IndexEntry is one published document inside metadata.json.
// Field order defines the persisted key order.
type IndexEntry struct {
	Category    string       `json:"category"`
	Collection  string       `json:"collection"`
	CoverImage  string       `json:"coverImage"`
	Description string       `json:"description"`
	PublishedAt string       `json:"publishedAt"`
	Slug        string       `json:"slug"`
	Status      string       `json:"status"`
	Title       string       `json:"title"`
	Path        string       `json:"path"`
	Author      Author       `json:"author"`
	Outstatic   OutstaticRef `json:"__outstatic"`
}

// PublicationStatus enumerates publication outcomes.
type PublicationStatus string

const (
	StatusPublished PublicationStatus = "published"
	StatusFailed    PublicationStatus = "failed"
)

// Publication records a single attempt to publish a generated document.
type Publication struct {
	RunID         string
	Slug          string
	Title         string
	FileName      string
	CommitMessage string
	Status        PublicationStatus
	Error         string
	PublishedAt   time.Time
}

// RunRequest carries the caller-supplied parameters of a crew run.
type RunRequest struct {
	Topic            string
	AuthorName       string
	AuthorPictureURL string
	CoverImageURL    string
}
