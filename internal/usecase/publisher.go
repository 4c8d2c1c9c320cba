package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"text/template"
	"time"

	"github.com/goliatone/go-slug"
	"github.com/google/uuid"

	"CrewPublisher/internal/content"
	"CrewPublisher/internal/domain"
	"CrewPublisher/internal/fsutil"
	"CrewPublisher/internal/ports"
)

// DefaultCommitMessageTemplate mirrors the CMS convention for new posts.
const DefaultCommitMessageTemplate = "Add {{.Filename}} to outstatic/content/blogs"

// PublisherDeps wires the publication pipeline to its adapters.
type PublisherDeps struct {
	ReportPath            string
	RepoPath              string
	CommitMessageTemplate string
	// StageIndex also commits the metadata index when it lives inside the working copy.
	StageIndex bool

	Index      ports.IndexStore
	VCS        ports.VersionControl
	Repository ports.PublicationRepository
	Notifier   ports.Notifier
	Logger     *slog.Logger
	Clock      func() time.Time
}

// PublishResult describes a completed publication.
type PublishResult struct {
	RunID         string
	Slug          string
	FileName      string
	FilePath      string
	CommitMessage string
	Entry         domain.IndexEntry
}

// CommitMessageData is exposed to the commit message template.
type CommitMessageData struct {
	Filename   string
	Slug       string
	Title      string
	Collection string
}

// Publisher turns the generated report into a committed and pushed post.
// Publications are serialized: the index and the working copy have a single writer.
type Publisher struct {
	reportPath string
	repoPath   string
	stageIndex bool
	message    *template.Template

	index      ports.IndexStore
	vcs        ports.VersionControl
	repository ports.PublicationRepository
	notifier   ports.Notifier
	logger     *slog.Logger
	clock      func() time.Time

	mu sync.Mutex
}

// NewPublisher validates deps and compiles the commit message template.
func NewPublisher(deps PublisherDeps) (*Publisher, error) {
	if deps.ReportPath == "" || deps.RepoPath == "" {
		return nil, fmt.Errorf("publisher: report and repository paths are required")
	}
	if deps.Index == nil || deps.VCS == nil {
		return nil, fmt.Errorf("publisher: index store and version control are required")
	}

	text := deps.CommitMessageTemplate
	if text == "" {
		text = DefaultCommitMessageTemplate
	}
	tmpl, err := template.New("commit").Option("missingkey=error").Parse(text)
	if err != nil {
		return nil, fmt.Errorf("publisher: parse commit message template: %w", err)
	}

	logger := deps.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}

	return &Publisher{
		reportPath: deps.ReportPath,
		repoPath:   deps.RepoPath,
		stageIndex: deps.StageIndex,
		message:    tmpl,
		index:      deps.Index,
		vcs:        deps.VCS,
		repository: deps.Repository,
		notifier:   deps.Notifier,
		logger:     logger,
		clock:      clock,
	}, nil
}

// Publish normalizes the report, records it in the index, moves it into the
// working copy and commits and pushes it. Steps run strictly in order and the
// first failure stops the rest; completed steps are not rolled back.
func (p *Publisher) Publish(ctx context.Context, runID string) (result PublishResult, err error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if runID == "" {
		runID = uuid.NewString()
	}
	logger := p.logger.With("run_id", runID)
	result.RunID = runID

	defer func() {
		p.record(ctx, logger, result, err)
	}()

	raw, err := os.ReadFile(p.reportPath)
	if err != nil {
		return result, fmt.Errorf("read report: %w", err)
	}

	doc, err := content.Prepare(string(raw))
	if err != nil {
		return result, fmt.Errorf("prepare document: %w", err)
	}

	meta := doc.Metadata
	meta.Slug = safeSlug(doc.Slug())
	if meta.Slug != doc.Slug() {
		logger.Warn("slug normalized", "from", doc.Slug(), "to", meta.Slug)
	}
	result.Slug = meta.Slug
	result.FileName = meta.Slug + ".md"
	result.FilePath = filepath.Join(p.repoPath, result.FileName)
	p.warnOnReuse(ctx, logger, result)

	entry, err := p.index.Append(ctx, meta)
	if err != nil {
		return result, fmt.Errorf("update index: %w", err)
	}
	result.Entry = entry
	logger.Debug("index updated", "slug", entry.Slug, "path", entry.Path)

	result.CommitMessage, err = p.commitMessage(CommitMessageData{
		Filename:   result.FileName,
		Slug:       meta.Slug,
		Title:      entry.Title,
		Collection: entry.Collection,
	})
	if err != nil {
		return result, err
	}

	if err := p.relocate(doc.Normalized, result.FilePath); err != nil {
		return result, fmt.Errorf("relocate %s: %w", result.FileName, err)
	}

	paths, err := p.stagePaths(result.FileName)
	if err != nil {
		return result, err
	}
	if err := p.vcs.Add(ctx, paths...); err != nil {
		return result, err
	}
	if err := p.vcs.Commit(ctx, result.CommitMessage); err != nil {
		return result, err
	}
	if err := p.vcs.Push(ctx); err != nil {
		return result, err
	}

	logger.Info("document published", "slug", result.Slug, "file", result.FilePath)
	p.announce(ctx, logger, entry)
	return result, nil
}

func (p *Publisher) commitMessage(data CommitMessageData) (string, error) {
	var b strings.Builder
	if err := p.message.Execute(&b, data); err != nil {
		return "", fmt.Errorf("render commit message: %w", err)
	}
	return b.String(), nil
}

// relocate writes the normalized document to target and consumes the report.
func (p *Publisher) relocate(normalized, target string) error {
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return fmt.Errorf("ensure target dir: %w", err)
	}
	if err := fsutil.WriteFileAtomic(target, []byte(normalized), 0o644); err != nil {
		return fmt.Errorf("write target: %w", err)
	}
	if err := os.Remove(p.reportPath); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove report: %w", err)
	}
	return nil
}

func (p *Publisher) stagePaths(fileName string) ([]string, error) {
	paths := []string{fileName}
	if !p.stageIndex {
		return paths, nil
	}

	rel, err := filepath.Rel(p.repoPath, p.index.Path())
	if err != nil {
		return nil, fmt.Errorf("locate index in repository: %w", err)
	}
	return append(paths, filepath.ToSlash(rel)), nil
}

func (p *Publisher) warnOnReuse(ctx context.Context, logger *slog.Logger, result PublishResult) {
	if _, err := os.Stat(result.FilePath); err == nil {
		logger.Warn("overwriting existing document", "file", result.FilePath)
	}
	if p.repository == nil {
		return
	}
	exists, err := p.repository.SlugExists(ctx, result.Slug)
	if err != nil {
		logger.Warn("publication log lookup failed", "error", err)
		return
	}
	if exists {
		logger.Warn("slug already published", "slug", result.Slug)
	}
}

func (p *Publisher) record(ctx context.Context, logger *slog.Logger, result PublishResult, err error) {
	if err != nil {
		logger.Error("publication failed", "slug", result.Slug, "error", err)
	}
	if p.repository == nil {
		return
	}

	publication := domain.Publication{
		RunID:         result.RunID,
		Slug:          result.Slug,
		Title:         result.Entry.Title,
		FileName:      result.FileName,
		CommitMessage: result.CommitMessage,
		Status:        domain.StatusPublished,
		PublishedAt:   p.clock().UTC(),
	}
	if err != nil {
		publication.Status = domain.StatusFailed
		publication.Error = err.Error()
	}
	if saveErr := p.repository.SavePublication(ctx, publication); saveErr != nil {
		logger.Warn("publication log write failed", "error", saveErr)
	}
}

func (p *Publisher) announce(ctx context.Context, logger *slog.Logger, entry domain.IndexEntry) {
	if p.notifier == nil {
		return
	}
	message := fmt.Sprintf("Published *%s*\n%s", entry.Title, entry.Path)
	if err := p.notifier.Announce(ctx, message); err != nil {
		logger.Warn("announcement failed", "error", err)
	}
}

// safeSlug keeps URL-safe slugs as they are and normalizes anything else,
// so a slug can never escape the content directory.
func safeSlug(value string) string {
	if slug.IsValid(value) {
		return value
	}
	normalized, err := slug.Normalize(value)
	if err != nil || normalized == "" || strings.ContainsAny(normalized, `/\`) {
		return domain.DefaultSlug
	}
	return normalized
}
