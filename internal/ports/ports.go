package ports

import (
	"context"

	"CrewPublisher/internal/domain"
)

// ChatClient produces completions from OpenAI-compatible LLM APIs.
type ChatClient interface {
	Complete(ctx context.Context, messages []domain.ChatMessage) (string, error)
}

// Tool gathers extra context for an agent before it answers (web search, etc.).
type Tool interface {
	Name() string
	Run(ctx context.Context, inputs map[string]string) (string, error)
}

// IndexStore maintains the metadata index of published documents.
type IndexStore interface {
	Append(ctx context.Context, meta domain.Metadata) (domain.IndexEntry, error)
	Path() string
}

// VersionControl stages, commits and pushes changes of the content repository.
type VersionControl interface {
	Add(ctx context.Context, paths ...string) error
	Commit(ctx context.Context, message string) error
	Push(ctx context.Context) error
}

// PublicationRepository keeps an audit log of publication attempts.
type PublicationRepository interface {
	SlugExists(ctx context.Context, slug string) (bool, error)
	SavePublication(ctx context.Context, publication domain.Publication) error
}

// Notifier announces finished publications to Telegram or other channels.
type Notifier interface {
	Announce(ctx context.Context, message string) error
}
