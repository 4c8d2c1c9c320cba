package crew

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"CrewPublisher/internal/domain"
	"CrewPublisher/internal/ports"
)

// Agent is a persona that answers tasks through the chat client.
type Agent struct {
	Name      string
	Role      string
	Goal      string
	Backstory string
	Tools     []string
}

// Task is a unit of work assigned to an agent.
type Task struct {
	Name           string
	Description    string
	ExpectedOutput string
	Agent          string
	OutputFile     string
}

// TaskOutput is what an agent produced for a task.
type TaskOutput struct {
	Task  string
	Agent string
	Raw   string
}

// Callback runs after a task completes. A returned error aborts the run.
type Callback func(ctx context.Context, out TaskOutput) error

// Deps wires the crew to its driven adapters.
type Deps struct {
	Chat   ports.ChatClient
	Tools  *Registry
	Logger *slog.Logger
}

// Crew runs its tasks sequentially, feeding earlier outputs to later tasks.
type Crew struct {
	agents    map[string]Agent
	tasks     []Task
	chat      ports.ChatClient
	tools     *Registry
	logger    *slog.Logger
	callbacks map[string]Callback

	// runs share output files, so only one kickoff proceeds at a time
	mu sync.Mutex
}

// New validates that every task references a known agent.
func New(agents map[string]Agent, tasks []Task, deps Deps) (*Crew, error) {
	if len(tasks) == 0 {
		return nil, fmt.Errorf("crew: no tasks defined")
	}
	for _, task := range tasks {
		if _, ok := agents[task.Agent]; !ok {
			return nil, fmt.Errorf("crew: task %s references unknown agent %q", task.Name, task.Agent)
		}
	}

	return &Crew{
		agents:    agents,
		tasks:     append([]Task(nil), tasks...),
		chat:      deps.Chat,
		tools:     deps.Tools,
		logger:    deps.Logger,
		callbacks: map[string]Callback{},
	}, nil
}

// Load builds a crew from agent and task YAML files.
func Load(agentsPath, tasksPath string, deps Deps) (*Crew, error) {
	agents, err := LoadAgents(agentsPath)
	if err != nil {
		return nil, err
	}
	tasks, err := LoadTasks(tasksPath)
	if err != nil {
		return nil, err
	}
	return New(agents, tasks, deps)
}

// OnTaskComplete registers cb for the named task.
func (c *Crew) OnTaskComplete(task string, cb Callback) error {
	if _, ok := c.task(task); !ok {
		return fmt.Errorf("crew: unknown task %s", task)
	}
	c.callbacks[task] = cb
	return nil
}

// SetOutputFile makes the named task write its output to path.
func (c *Crew) SetOutputFile(task, path string) error {
	for i := range c.tasks {
		if c.tasks[i].Name == task {
			c.tasks[i].OutputFile = path
			return nil
		}
	}
	return fmt.Errorf("crew: unknown task %s", task)
}

// Kickoff runs every task in order and returns the final task's output.
func (c *Crew) Kickoff(ctx context.Context, inputs map[string]string) (string, error) {
	if c.chat == nil {
		return "", fmt.Errorf("crew: chat client is not configured")
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	interpolate := replacerFor(inputs)
	var (
		outputs []TaskOutput
		last    TaskOutput
	)

	for _, task := range c.tasks {
		if err := ctx.Err(); err != nil {
			return "", err
		}

		agent := c.agents[task.Agent]
		c.debug("task started", "task", task.Name, "agent", agent.Name)

		toolResults, err := c.runTools(ctx, agent, inputs)
		if err != nil {
			return "", fmt.Errorf("task %s: %w", task.Name, err)
		}

		messages := []domain.ChatMessage{
			{Role: domain.RoleSystem, Content: systemPrompt(agent, interpolate)},
			{Role: domain.RoleUser, Content: taskPrompt(task, interpolate, outputs, toolResults)},
		}
		raw, err := c.chat.Complete(ctx, messages)
		if err != nil {
			return "", fmt.Errorf("task %s: %w", task.Name, err)
		}

		last = TaskOutput{Task: task.Name, Agent: agent.Name, Raw: raw}
		outputs = append(outputs, last)

		if task.OutputFile != "" {
			if err := writeOutput(task.OutputFile, raw); err != nil {
				return "", fmt.Errorf("task %s: %w", task.Name, err)
			}
		}

		if cb := c.callbacks[task.Name]; cb != nil {
			if err := cb(ctx, last); err != nil {
				return "", fmt.Errorf("task %s callback: %w", task.Name, err)
			}
		}
		c.debug("task finished", "task", task.Name, "chars", len(raw))
	}

	return last.Raw, nil
}

func (c *Crew) runTools(ctx context.Context, agent Agent, inputs map[string]string) (map[string]string, error) {
	if len(agent.Tools) == 0 {
		return nil, nil
	}

	results := make(map[string]string, len(agent.Tools))
	for _, name := range agent.Tools {
		tool, err := c.tools.Resolve(name)
		if err != nil {
			return nil, err
		}
		out, err := tool.Run(ctx, inputs)
		if err != nil {
			return nil, fmt.Errorf("tool %s: %w", name, err)
		}
		results[name] = out
	}
	return results, nil
}

func (c *Crew) task(name string) (Task, bool) {
	for _, task := range c.tasks {
		if task.Name == name {
			return task, true
		}
	}
	return Task{}, false
}

func (c *Crew) debug(msg string, args ...any) {
	if c.logger != nil {
		c.logger.Debug(msg, args...)
	}
}

func replacerFor(inputs map[string]string) *strings.Replacer {
	pairs := make([]string, 0, len(inputs)*2)
	for key, value := range inputs {
		pairs = append(pairs, "{"+key+"}", value)
	}
	return strings.NewReplacer(pairs...)
}

func systemPrompt(agent Agent, r *strings.Replacer) string {
	var b strings.Builder
	fmt.Fprintf(&b, "You are %s.", r.Replace(agent.Role))
	if agent.Backstory != "" {
		b.WriteString("\n")
		b.WriteString(r.Replace(agent.Backstory))
	}
	if agent.Goal != "" {
		fmt.Fprintf(&b, "\n\nYour personal goal is: %s", r.Replace(agent.Goal))
	}
	return b.String()
}

func taskPrompt(task Task, r *strings.Replacer, previous []TaskOutput, tools map[string]string) string {
	var b strings.Builder
	b.WriteString(r.Replace(task.Description))
	if task.ExpectedOutput != "" {
		fmt.Fprintf(&b, "\n\nThis is the expected criteria for your final answer: %s", r.Replace(task.ExpectedOutput))
		b.WriteString("\nYou MUST return the actual complete content as the final answer, not a summary.")
	}

	if len(tools) > 0 {
		names := make([]string, 0, len(tools))
		for name := range tools {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			fmt.Fprintf(&b, "\n\nResults from %s:\n%s", name, tools[name])
		}
	}

	if len(previous) > 0 {
		parts := make([]string, 0, len(previous))
		for _, out := range previous {
			parts = append(parts, out.Raw)
		}
		fmt.Fprintf(&b, "\n\nThis is the context you're working with:\n%s", strings.Join(parts, "\n\n----------\n\n"))
	}
	return b.String()
}

func writeOutput(path, content string) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("ensure output dir: %w", err)
		}
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		return fmt.Errorf("write output file: %w", err)
	}
	return nil
}
