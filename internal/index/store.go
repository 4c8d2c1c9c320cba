package index

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"sync"

	"CrewPublisher/internal/domain"
	"CrewPublisher/internal/fsutil"
	"CrewPublisher/internal/ports"
)

const (
	// FileName is the index document kept inside the metadata directory.
	FileName = "metadata.json"

	metadataKey = "metadata"
)

// ErrMalformedIndex indicates an existing index that cannot be decoded.
var ErrMalformedIndex = errors.New("index: malformed metadata index")

// Options describes where entries live and how their paths are derived.
type Options struct {
	Dir           string
	Collection    string
	ContentPrefix string
}

// Store maintains the append-only metadata.json consumed by the CMS front end.
// Prior entries are carried as raw JSON so they are rewritten unchanged.
type Store struct {
	opts Options
	mu   sync.Mutex
}

var _ ports.IndexStore = (*Store)(nil)

// NewStore builds a store rooted at opts.Dir.
func NewStore(opts Options) *Store {
	if opts.Collection == "" {
		opts.Collection = "blogs"
	}
	return &Store{opts: opts}
}

// Path returns the location of the index file.
func (s *Store) Path() string {
	return filepath.Join(s.opts.Dir, FileName)
}

// EntryFor derives the index entry for a metadata record, applying defaults.
func (s *Store) EntryFor(meta domain.Metadata) domain.IndexEntry {
	meta = meta.WithDefaults()
	entryPath := path.Join(s.opts.ContentPrefix, s.opts.Collection, meta.Slug+".md")
	return domain.IndexEntry{
		Category:    meta.Category,
		Collection:  s.opts.Collection,
		CoverImage:  meta.CoverImage,
		Description: meta.Description,
		PublishedAt: meta.PublishedAt,
		Slug:        meta.Slug,
		Status:      meta.Status,
		Title:       meta.Title,
		Path:        entryPath,
		Author:      meta.Author,
		Outstatic:   domain.OutstaticRef{Path: entryPath},
	}
}

// Append adds an entry for meta and rewrites the whole index.
func (s *Store) Append(ctx context.Context, meta domain.Metadata) (domain.IndexEntry, error) {
	if err := ctx.Err(); err != nil {
		return domain.IndexEntry{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	doc, entries, err := s.load()
	if err != nil {
		return domain.IndexEntry{}, err
	}

	entry := s.EntryFor(meta)
	raw, err := marshalCompact(entry)
	if err != nil {
		return domain.IndexEntry{}, fmt.Errorf("encode entry: %w", err)
	}
	entries = append(entries, raw)

	if err := s.save(doc, entries); err != nil {
		return domain.IndexEntry{}, err
	}
	return entry, nil
}

// Entries returns the decoded entries currently stored.
func (s *Store) Entries() ([]domain.IndexEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, raw, err := s.load()
	if err != nil {
		return nil, err
	}

	entries := make([]domain.IndexEntry, 0, len(raw))
	for i, item := range raw {
		var entry domain.IndexEntry
		if err := json.Unmarshal(item, &entry); err != nil {
			return nil, fmt.Errorf("%w: entry %d: %w", ErrMalformedIndex, i, err)
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

func (s *Store) load() (map[string]json.RawMessage, []json.RawMessage, error) {
	data, err := os.ReadFile(s.Path())
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return map[string]json.RawMessage{}, []json.RawMessage{}, nil
		}
		return nil, nil, fmt.Errorf("read index: %w", err)
	}

	var doc map[string]json.RawMessage
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, nil, fmt.Errorf("%w: %w", ErrMalformedIndex, err)
	}

	rawEntries, ok := doc[metadataKey]
	if !ok {
		return nil, nil, fmt.Errorf("%w: missing %q array", ErrMalformedIndex, metadataKey)
	}

	var entries []json.RawMessage
	if err := json.Unmarshal(rawEntries, &entries); err != nil {
		return nil, nil, fmt.Errorf("%w: %w", ErrMalformedIndex, err)
	}
	if entries == nil {
		entries = []json.RawMessage{}
	}
	return doc, entries, nil
}

func (s *Store) save(doc map[string]json.RawMessage, entries []json.RawMessage) error {
	rawEntries, err := marshalCompact(entries)
	if err != nil {
		return fmt.Errorf("encode entries: %w", err)
	}
	doc[metadataKey] = rawEntries

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(doc); err != nil {
		return fmt.Errorf("encode index: %w", err)
	}

	if err := os.MkdirAll(s.opts.Dir, 0o755); err != nil {
		return fmt.Errorf("ensure index dir: %w", err)
	}
	if err := fsutil.WriteFileAtomic(s.Path(), buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("write index: %w", err)
	}
	return nil
}

func marshalCompact(v any) (json.RawMessage, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}
