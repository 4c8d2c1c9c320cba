package crew

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

type agentSpec struct {
	Role      string   `yaml:"role"`
	Goal      string   `yaml:"goal"`
	Backstory string   `yaml:"backstory"`
	Tools     []string `yaml:"tools"`
}

type taskSpec struct {
	Description    string `yaml:"description"`
	ExpectedOutput string `yaml:"expected_output"`
	Agent          string `yaml:"agent"`
	OutputFile     string `yaml:"output_file"`
}

// LoadAgents reads an agents YAML file keyed by agent name.
func LoadAgents(path string) (map[string]Agent, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read agents: %w", err)
	}
	return ParseAgents(raw)
}

// ParseAgents decodes agent definitions.
func ParseAgents(raw []byte) (map[string]Agent, error) {
	var specs map[string]agentSpec
	if err := yaml.Unmarshal(raw, &specs); err != nil {
		return nil, fmt.Errorf("parse agents: %w", err)
	}

	agents := make(map[string]Agent, len(specs))
	for name, spec := range specs {
		agents[name] = Agent{
			Name:      name,
			Role:      strings.TrimSpace(spec.Role),
			Goal:      strings.TrimSpace(spec.Goal),
			Backstory: strings.TrimSpace(spec.Backstory),
			Tools:     append([]string(nil), spec.Tools...),
		}
	}
	return agents, nil
}

// LoadTasks reads a tasks YAML file. Tasks run in file order.
func LoadTasks(path string) ([]Task, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read tasks: %w", err)
	}
	return ParseTasks(raw)
}

// ParseTasks decodes task definitions, keeping their declaration order.
func ParseTasks(raw []byte) ([]Task, error) {
	var root yaml.Node
	if err := yaml.Unmarshal(raw, &root); err != nil {
		return nil, fmt.Errorf("parse tasks: %w", err)
	}
	if len(root.Content) == 0 {
		return nil, fmt.Errorf("parse tasks: empty document")
	}

	mapping := root.Content[0]
	if mapping.Kind != yaml.MappingNode {
		return nil, fmt.Errorf("parse tasks: expected a mapping of task names")
	}

	tasks := make([]Task, 0, len(mapping.Content)/2)
	for i := 0; i+1 < len(mapping.Content); i += 2 {
		name := mapping.Content[i].Value
		var spec taskSpec
		if err := mapping.Content[i+1].Decode(&spec); err != nil {
			return nil, fmt.Errorf("parse task %s: %w", name, err)
		}
		tasks = append(tasks, Task{
			Name:           name,
			Description:    strings.TrimSpace(spec.Description),
			ExpectedOutput: strings.TrimSpace(spec.ExpectedOutput),
			Agent:          spec.Agent,
			OutputFile:     spec.OutputFile,
		})
	}
	return tasks, nil
}
