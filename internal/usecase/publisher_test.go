package usecase

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
	"time"

	"CrewPublisher/internal/content"
	"CrewPublisher/internal/domain"
	"CrewPublisher/internal/index"
)

type fakeVCS struct {
	calls []string
	added []string
	fail  map[string]error
}

func (f *fakeVCS) Add(_ context.Context, paths ...string) error {
	f.calls = append(f.calls, "add")
	f.added = append(f.added, paths...)
	return f.fail["add"]
}

func (f *fakeVCS) Commit(_ context.Context, message string) error {
	f.calls = append(f.calls, "commit:"+message)
	return f.fail["commit"]
}

func (f *fakeVCS) Push(context.Context) error {
	f.calls = append(f.calls, "push")
	return f.fail["push"]
}

type fakeRepository struct {
	saved    []domain.Publication
	existing map[string]bool
}

func (f *fakeRepository) SlugExists(_ context.Context, slug string) (bool, error) {
	return f.existing[slug], nil
}

func (f *fakeRepository) SavePublication(_ context.Context, p domain.Publication) error {
	f.saved = append(f.saved, p)
	return nil
}

type fakeNotifier struct {
	messages []string
}

func (f *fakeNotifier) Announce(_ context.Context, message string) error {
	f.messages = append(f.messages, message)
	return nil
}

type fixture struct {
	report   string
	repoPath string
	index    *index.Store
	vcs      *fakeVCS
	repo     *fakeRepository
	notifier *fakeNotifier
	pub      *Publisher
}

func newFixture(t *testing.T, report string, stageIndex bool) *fixture {
	t.Helper()

	root := t.TempDir()
	contentDir := filepath.Join(root, "site", "outstatic", "content")
	f := &fixture{
		report:   filepath.Join(root, "work", "report.md"),
		repoPath: filepath.Join(contentDir, "blogs"),
		index: index.NewStore(index.Options{
			Dir:           contentDir,
			Collection:    "blogs",
			ContentPrefix: "outstatic/content",
		}),
		vcs:      &fakeVCS{fail: map[string]error{}},
		repo:     &fakeRepository{existing: map[string]bool{}},
		notifier: &fakeNotifier{},
	}

	if err := os.MkdirAll(filepath.Dir(f.report), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(f.report, []byte(report), 0o644); err != nil {
		t.Fatalf("write report: %v", err)
	}

	pub, err := NewPublisher(PublisherDeps{
		ReportPath: f.report,
		RepoPath:   f.repoPath,
		StageIndex: stageIndex,
		Index:      f.index,
		VCS:        f.vcs,
		Repository: f.repo,
		Notifier:   f.notifier,
		Clock:      func() time.Time { return time.Date(2025, time.May, 1, 12, 0, 0, 0, time.UTC) },
	})
	if err != nil {
		t.Fatalf("NewPublisher: %v", err)
	}
	f.pub = pub
	return f
}

func TestPublishEndToEnd(t *testing.T) {
	t.Parallel()

	f := newFixture(t, "```markdown\n---\nslug: hello-world\ntitle: Hello\n---\nBody text\n```", false)

	result, err := f.pub.Publish(context.Background(), "run-1")
	if err != nil {
		t.Fatalf("Publish returned error: %v", err)
	}

	if result.FileName != "hello-world.md" {
		t.Fatalf("unexpected file name: %s", result.FileName)
	}
	if result.Entry.Path != "outstatic/content/blogs/hello-world.md" {
		t.Fatalf("unexpected index path: %s", result.Entry.Path)
	}

	published, err := os.ReadFile(filepath.Join(f.repoPath, "hello-world.md"))
	if err != nil {
		t.Fatalf("read published file: %v", err)
	}
	if string(published) != "---\nslug: hello-world\ntitle: Hello\n---\nBody text" {
		t.Fatalf("unexpected published content: %q", published)
	}
	if _, err := os.Stat(f.report); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("report should have been consumed, stat err = %v", err)
	}

	entries, err := f.index.Entries()
	if err != nil {
		t.Fatalf("Entries: %v", err)
	}
	if len(entries) != 1 || entries[0].Slug != "hello-world" || entries[0].Title != "Hello" {
		t.Fatalf("unexpected entries: %+v", entries)
	}

	wantCalls := []string{"add", "commit:Add hello-world.md to outstatic/content/blogs", "push"}
	if !reflect.DeepEqual(f.vcs.calls, wantCalls) {
		t.Fatalf("unexpected git calls: %v", f.vcs.calls)
	}
	if !reflect.DeepEqual(f.vcs.added, []string{"hello-world.md"}) {
		t.Fatalf("unexpected staged paths: %v", f.vcs.added)
	}

	if len(f.repo.saved) != 1 || f.repo.saved[0].Status != domain.StatusPublished || f.repo.saved[0].RunID != "run-1" {
		t.Fatalf("unexpected publication log: %+v", f.repo.saved)
	}
	if len(f.notifier.messages) != 1 || !strings.Contains(f.notifier.messages[0], "Hello") {
		t.Fatalf("unexpected announcements: %v", f.notifier.messages)
	}
}

func TestPublishDefaultsWithoutFrontMatter(t *testing.T) {
	t.Parallel()

	f := newFixture(t, "  Just a body.  \n", false)

	result, err := f.pub.Publish(context.Background(), "")
	if err != nil {
		t.Fatalf("Publish returned error: %v", err)
	}
	if result.RunID == "" {
		t.Fatalf("expected a generated run id")
	}
	if result.Slug != domain.DefaultSlug {
		t.Fatalf("unexpected slug: %s", result.Slug)
	}

	data, err := os.ReadFile(filepath.Join(f.repoPath, "default-slug.md"))
	if err != nil {
		t.Fatalf("read published file: %v", err)
	}
	if string(data) != "Just a body." {
		t.Fatalf("unexpected content: %q", data)
	}
	if result.Entry.Title != domain.DefaultTitle || result.Entry.Status != domain.DefaultStatus {
		t.Fatalf("defaults not applied: %+v", result.Entry)
	}
}

func TestPublishUnclosedFrontMatterStopsEarly(t *testing.T) {
	t.Parallel()

	f := newFixture(t, "---\nslug: broken\ntitle: Oops\nBody", false)

	_, err := f.pub.Publish(context.Background(), "run-2")
	if !errors.Is(err, content.ErrUnclosedFrontMatter) {
		t.Fatalf("expected unclosed frontmatter error, got %v", err)
	}

	if len(f.vcs.calls) != 0 {
		t.Fatalf("git must not run, got %v", f.vcs.calls)
	}
	if _, err := os.Stat(filepath.Join(f.repoPath, "broken.md")); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("document must not be relocated")
	}
	if _, err := os.Stat(f.report); err != nil {
		t.Fatalf("report must be left in place: %v", err)
	}
	if _, err := os.Stat(f.index.Path()); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("index must not be written")
	}
	if len(f.repo.saved) != 1 || f.repo.saved[0].Status != domain.StatusFailed {
		t.Fatalf("expected failed publication to be logged: %+v", f.repo.saved)
	}
}

func TestPublishPushFailureKeepsLocalChanges(t *testing.T) {
	t.Parallel()

	f := newFixture(t, "---\nslug: partial\n---\nBody", false)
	f.vcs.fail["push"] = errors.New("git push: exit status 1")

	_, err := f.pub.Publish(context.Background(), "run-3")
	if err == nil || !strings.Contains(err.Error(), "git push") {
		t.Fatalf("expected push error, got %v", err)
	}

	if _, err := os.Stat(filepath.Join(f.repoPath, "partial.md")); err != nil {
		t.Fatalf("relocated file should remain after push failure: %v", err)
	}
	entries, err := f.index.Entries()
	if err != nil || len(entries) != 1 {
		t.Fatalf("index entry should remain after push failure: %v %v", entries, err)
	}
	if len(f.notifier.messages) != 0 {
		t.Fatalf("failed publication must not be announced")
	}
}

func TestPublishStagesIndex(t *testing.T) {
	t.Parallel()

	f := newFixture(t, "---\nslug: with-index\n---\nBody", true)
	if _, err := f.pub.Publish(context.Background(), "run-4"); err != nil {
		t.Fatalf("Publish returned error: %v", err)
	}
	if !reflect.DeepEqual(f.vcs.added, []string{"with-index.md", "../metadata.json"}) {
		t.Fatalf("unexpected staged paths: %v", f.vcs.added)
	}
}

func TestPublishMissingReport(t *testing.T) {
	t.Parallel()

	f := newFixture(t, "x", false)
	if err := os.Remove(f.report); err != nil {
		t.Fatalf("remove report: %v", err)
	}
	_, err := f.pub.Publish(context.Background(), "run-5")
	if !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("expected not-exist error, got %v", err)
	}
}

func TestPublishRepeatedSlugAppends(t *testing.T) {
	t.Parallel()

	f := newFixture(t, "---\nslug: same\ntitle: First\n---\nOne", false)
	ctx := context.Background()
	if _, err := f.pub.Publish(ctx, "a"); err != nil {
		t.Fatalf("first publish: %v", err)
	}
	if err := os.WriteFile(f.report, []byte("---\nslug: same\ntitle: Second\n---\nTwo"), 0o644); err != nil {
		t.Fatalf("rewrite report: %v", err)
	}
	f.repo.existing["same"] = true
	if _, err := f.pub.Publish(ctx, "b"); err != nil {
		t.Fatalf("second publish: %v", err)
	}

	data, _ := os.ReadFile(filepath.Join(f.repoPath, "same.md"))
	if !strings.HasSuffix(string(data), "Two") {
		t.Fatalf("expected last write to win, got %q", data)
	}
	entries, _ := f.index.Entries()
	if len(entries) != 2 || entries[0].Title != "First" || entries[1].Title != "Second" {
		t.Fatalf("expected two appended entries, got %+v", entries)
	}
}

func TestNewPublisherRejectsBadTemplate(t *testing.T) {
	t.Parallel()

	_, err := NewPublisher(PublisherDeps{
		ReportPath:            "report.md",
		RepoPath:              "repo",
		CommitMessageTemplate: "Add {{.Filename",
		Index:                 index.NewStore(index.Options{Dir: t.TempDir()}),
		VCS:                   &fakeVCS{},
	})
	if err == nil {
		t.Fatalf("expected template error")
	}
}

func TestSafeSlug(t *testing.T) {
	t.Parallel()

	if got := safeSlug("hello-world"); got != "hello-world" {
		t.Fatalf("valid slug changed: %s", got)
	}
	if got := safeSlug("../../etc/passwd"); strings.ContainsAny(got, `/\`) || strings.Contains(got, "..") {
		t.Fatalf("unsafe slug survived: %s", got)
	}
}
