package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"CrewPublisher/internal/domain"
)

// Crew is the sequential multi-agent pipeline started for each request.
type Crew interface {
	Kickoff(ctx context.Context, inputs map[string]string) (string, error)
}

type runIDKey struct{}

// WithRunID attaches a run identifier to ctx.
func WithRunID(ctx context.Context, runID string) context.Context {
	return context.WithValue(ctx, runIDKey{}, runID)
}

// RunIDFrom returns the run identifier stored in ctx, if any.
func RunIDFrom(ctx context.Context) string {
	id, _ := ctx.Value(runIDKey{}).(string)
	return id
}

// AgentRunner starts crew runs on behalf of API callers.
type AgentRunner struct {
	crew   Crew
	logger *slog.Logger
	clock  func() time.Time
}

// NewAgentRunner constructs the run use case.
func NewAgentRunner(crew Crew, logger *slog.Logger, clock func() time.Time) *AgentRunner {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	if clock == nil {
		clock = time.Now
	}
	return &AgentRunner{crew: crew, logger: logger, clock: clock}
}

// Run validates req, kicks off the crew and returns its final output.
// The call blocks until every task, publication included, has finished.
func (r *AgentRunner) Run(ctx context.Context, req domain.RunRequest) (string, error) {
	if r.crew == nil {
		return "", fmt.Errorf("crew is not configured")
	}
	if strings.TrimSpace(req.Topic) == "" {
		return "", fmt.Errorf("topic is required")
	}

	runID := RunIDFrom(ctx)
	if runID == "" {
		runID = uuid.NewString()
		ctx = WithRunID(ctx, runID)
	}
	logger := r.logger.With("run_id", runID)

	started := r.clock()
	logger.Info("crew run started", "topic", req.Topic, "author", req.AuthorName)

	result, err := r.crew.Kickoff(ctx, BuildInputs(req, started))
	if err != nil {
		logger.Error("crew run failed", "error", err)
		return "", err
	}

	logger.Info("crew run finished", "elapsed", r.clock().Sub(started).Round(time.Millisecond))
	return result, nil
}

// BuildInputs derives the template inputs handed to agents and tasks.
func BuildInputs(req domain.RunRequest, now time.Time) map[string]string {
	utc := now.UTC()
	return map[string]string{
		"topic":              req.Topic,
		"current_year":       strconv.Itoa(utc.Year()),
		"current_date_iso":   utc.Format("2006-01-02T15:04:05.000000") + "Z",
		"author_name":        req.AuthorName,
		"author_picture_url": req.AuthorPictureURL,
		"cover_image_url":    req.CoverImageURL,
	}
}
