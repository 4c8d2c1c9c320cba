package content

import (
	"errors"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"

	"CrewPublisher/internal/domain"
)

const frontMatterDelimiter = "---"

var (
	// ErrUnclosedFrontMatter indicates an opening --- without a matching closing one.
	ErrUnclosedFrontMatter = errors.New("content: unclosed frontmatter")
	// ErrMalformedFrontMatter indicates the YAML block could not be decoded.
	ErrMalformedFrontMatter = errors.New("content: malformed frontmatter")
)

// Document is a generated report prepared for publication.
type Document struct {
	// Normalized is the fence-free text, frontmatter included. It is what gets published.
	Normalized string
	Body       string
	Metadata   domain.Metadata
}

// Slug returns the publication key of the document.
func (d Document) Slug() string {
	return d.Metadata.ResolvedSlug()
}

// Prepare normalizes raw generator output and extracts its frontmatter.
func Prepare(raw string) (Document, error) {
	normalized := Normalize(raw)
	meta, body, err := ParseFrontMatter(normalized)
	if err != nil {
		return Document{}, err
	}
	return Document{Normalized: normalized, Body: body, Metadata: meta}, nil
}

// ParseFrontMatter splits normalized text into its metadata record and body.
// Text without a leading delimiter yields a defaulted record and the text unchanged.
func ParseFrontMatter(text string) (domain.Metadata, string, error) {
	if !strings.HasPrefix(text, frontMatterDelimiter) {
		return domain.Metadata{Slug: domain.DefaultSlug}, text, nil
	}

	offset := len(frontMatterDelimiter)
	end := strings.Index(text[offset:], frontMatterDelimiter)
	if end < 0 {
		return domain.Metadata{}, "", ErrUnclosedFrontMatter
	}
	end += offset

	var meta domain.Metadata
	if block := strings.TrimSpace(text[offset:end]); block != "" {
		if err := yaml.Unmarshal([]byte(block), &meta); err != nil {
			return domain.Metadata{}, "", fmt.Errorf("%w: %w", ErrMalformedFrontMatter, err)
		}
	}
	meta.Slug = meta.ResolvedSlug()

	body := strings.TrimSpace(text[end+len(frontMatterDelimiter):])
	return meta, body, nil
}
