package config

import (
	"log"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	configPathEnv     = "CREW_PUBLISHER_CONFIG"
	serverAddrEnv     = "CREW_PUBLISHER_ADDR"
	gitTokenEnv       = "GIT_TOKEN"
	databaseDSNEnv    = "DATABASE_DSN"
	chatGPTAPIKeyEnv  = "CHATGPT_API_KEY"
	chatGPTModelEnv   = "CHATGPT_MODEL"
	telegramTokenEnv  = "TELEGRAM_BOT_TOKEN"
	telegramChatIDEnv = "TELEGRAM_CHAT_ID"
)

// Config holds high-level settings required across the application.
type Config struct {
	Logging       LoggingConfig      `yaml:"logging"`
	Server        ServerConfig       `yaml:"server"`
	Database      DatabaseConfig     `yaml:"database"`
	Crew          CrewConfig         `yaml:"crew"`
	ChatGPT       ChatGPTConfig      `yaml:"chatgpt"`
	Research      ResearchConfig     `yaml:"research"`
	Publication   PublicationConfig  `yaml:"publication"`
	Notifications NotificationConfig `yaml:"notifications"`
}

// LoggingConfig selects verbosity and output format.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// ServerConfig describes the HTTP listener.
type ServerConfig struct {
	Name              string        `yaml:"name"`
	Addr              string        `yaml:"addr"`
	ReadHeaderTimeout time.Duration `yaml:"readHeaderTimeout"`
}

// DatabaseConfig describes Postgres connection details for the publication log.
// An empty DSN disables the log.
type DatabaseConfig struct {
	DSN string `yaml:"dsn"`
}

// CrewConfig points at the agent and task definitions.
type CrewConfig struct {
	AgentsPath  string `yaml:"agentsPath"`
	TasksPath   string `yaml:"tasksPath"`
	ReportPath  string `yaml:"reportPath"`
	ReportTask  string `yaml:"reportTask"`
	PublishTask string `yaml:"publishTask"`
}

// ChatGPTConfig defines how to contact the ChatGPT API.
type ChatGPTConfig struct {
	Endpoint string        `yaml:"endpoint"`
	Model    string        `yaml:"model"`
	APIKey   string        `yaml:"apiKey"`
	Timeout  time.Duration `yaml:"timeout"`
}

// ResearchConfig configures the web_search tool. An empty SearchURL disables it.
type ResearchConfig struct {
	SearchURL       string `yaml:"searchUrl"`
	QueryParam      string `yaml:"queryParam"`
	ResultSelector  string `yaml:"resultSelector"`
	TitleSelector   string `yaml:"titleSelector"`
	SnippetSelector string `yaml:"snippetSelector"`
	MaxResults      int    `yaml:"maxResults"`
}

// PublicationConfig describes the target content repository.
type PublicationConfig struct {
	RepoPath              string `yaml:"repoPath"`
	MetadataDir           string `yaml:"metadataDir"`
	RemoteURL             string `yaml:"remoteUrl"`
	AuthToken             string `yaml:"authToken"`
	Branch                string `yaml:"branch"`
	CommitMessageTemplate string `yaml:"commitMessageTemplate"`
	Collection            string `yaml:"collection"`
	ContentPrefix         string `yaml:"contentPrefix"`
	StageIndex            bool   `yaml:"stageIndex"`
}

// NotificationConfig encapsulates outbound channels (Telegram, etc.).
type NotificationConfig struct {
	Telegram TelegramConfig `yaml:"telegram"`
}

// TelegramConfig wires all data required to send messages.
type TelegramConfig struct {
	BotToken string `yaml:"botToken"`
	ChatID   string `yaml:"chatId"`
}

// Load reads YAML configuration (if present) and applies environment overrides.
// path takes precedence over CREW_PUBLISHER_CONFIG.
func Load(path string) Config {
	cfg := defaultConfig()

	if path == "" {
		path = os.Getenv(configPathEnv)
	}
	if path != "" {
		if raw, err := os.ReadFile(path); err != nil {
			log.Printf("config: cannot read %s: %v (falling back to defaults)", path, err)
		} else {
			var fileCfg Config
			if err := yaml.Unmarshal(raw, &fileCfg); err != nil {
				log.Printf("config: cannot parse %s: %v (falling back to defaults)", path, err)
			} else {
				cfg = mergeConfig(cfg, fileCfg)
			}
		}
	}

	cfg.applyEnvOverrides()
	return cfg
}

func (c *Config) applyEnvOverrides() {
	if v := os.Getenv(serverAddrEnv); v != "" {
		c.Server.Addr = v
	}

	if v := os.Getenv(gitTokenEnv); v != "" {
		c.Publication.AuthToken = v
	}

	if v := os.Getenv(databaseDSNEnv); v != "" {
		c.Database.DSN = v
	}

	if v := os.Getenv(telegramTokenEnv); v != "" {
		c.Notifications.Telegram.BotToken = v
	}

	if v := os.Getenv(telegramChatIDEnv); v != "" {
		c.Notifications.Telegram.ChatID = v
	}

	if v := os.Getenv(chatGPTAPIKeyEnv); v != "" {
		c.ChatGPT.APIKey = v
	}

	if v := os.Getenv(chatGPTModelEnv); v != "" {
		c.ChatGPT.Model = v
	}
}

func mergeConfig(base, override Config) Config {
	if override.Logging.Level != "" {
		base.Logging.Level = override.Logging.Level
	}
	if override.Logging.Format != "" {
		base.Logging.Format = override.Logging.Format
	}

	if override.Server.Name != "" {
		base.Server.Name = override.Server.Name
	}
	if override.Server.Addr != "" {
		base.Server.Addr = override.Server.Addr
	}
	if override.Server.ReadHeaderTimeout > 0 {
		base.Server.ReadHeaderTimeout = override.Server.ReadHeaderTimeout
	}

	if override.Database.DSN != "" {
		base.Database = override.Database
	}

	base.Crew = mergeCrew(base.Crew, override.Crew)

	if override.ChatGPT.Endpoint != "" {
		base.ChatGPT.Endpoint = override.ChatGPT.Endpoint
	}
	if override.ChatGPT.Model != "" {
		base.ChatGPT.Model = override.ChatGPT.Model
	}
	if override.ChatGPT.APIKey != "" {
		base.ChatGPT.APIKey = override.ChatGPT.APIKey
	}
	if override.ChatGPT.Timeout > 0 {
		base.ChatGPT.Timeout = override.ChatGPT.Timeout
	}

	base.Research = mergeResearch(base.Research, override.Research)
	base.Publication = mergePublication(base.Publication, override.Publication)

	if override.Notifications.Telegram.BotToken != "" {
		base.Notifications.Telegram.BotToken = override.Notifications.Telegram.BotToken
	}
	if override.Notifications.Telegram.ChatID != "" {
		base.Notifications.Telegram.ChatID = override.Notifications.Telegram.ChatID
	}

	return base
}

func mergeCrew(base, override CrewConfig) CrewConfig {
	if override.AgentsPath != "" {
		base.AgentsPath = override.AgentsPath
	}
	if override.TasksPath != "" {
		base.TasksPath = override.TasksPath
	}
	if override.ReportPath != "" {
		base.ReportPath = override.ReportPath
	}
	if override.ReportTask != "" {
		base.ReportTask = override.ReportTask
	}
	if override.PublishTask != "" {
		base.PublishTask = override.PublishTask
	}
	return base
}

func mergeResearch(base, override ResearchConfig) ResearchConfig {
	if override.SearchURL != "" {
		base.SearchURL = override.SearchURL
	}
	if override.QueryParam != "" {
		base.QueryParam = override.QueryParam
	}
	if override.ResultSelector != "" {
		base.ResultSelector = override.ResultSelector
	}
	if override.TitleSelector != "" {
		base.TitleSelector = override.TitleSelector
	}
	if override.SnippetSelector != "" {
		base.SnippetSelector = override.SnippetSelector
	}
	if override.MaxResults > 0 {
		base.MaxResults = override.MaxResults
	}
	return base
}

func mergePublication(base, override PublicationConfig) PublicationConfig {
	if override.RepoPath != "" {
		base.RepoPath = override.RepoPath
	}
	if override.MetadataDir != "" {
		base.MetadataDir = override.MetadataDir
	}
	if override.RemoteURL != "" {
		base.RemoteURL = override.RemoteURL
	}
	if override.AuthToken != "" {
		base.AuthToken = override.AuthToken
	}
	if override.Branch != "" {
		base.Branch = override.Branch
	}
	if override.CommitMessageTemplate != "" {
		base.CommitMessageTemplate = override.CommitMessageTemplate
	}
	if override.Collection != "" {
		base.Collection = override.Collection
	}
	if override.ContentPrefix != "" {
		base.ContentPrefix = override.ContentPrefix
	}
	if override.StageIndex {
		base.StageIndex = true
	}
	return base
}

func defaultConfig() Config {
	return Config{
		Logging: LoggingConfig{Level: "info", Format: "text"},
		Server: ServerConfig{
			Name:              "Crew AI Bot API",
			Addr:              "0.0.0.0:8000",
			ReadHeaderTimeout: 10 * time.Second,
		},
		Crew: CrewConfig{
			AgentsPath:  "config/agents.yaml",
			TasksPath:   "config/tasks.yaml",
			ReportPath:  "report.md",
			ReportTask:  "write_blog_post_task",
			PublishTask: "git_push_task",
		},
		ChatGPT: ChatGPTConfig{
			Endpoint: "https://api.openai.com/v1/chat/completions",
			Model:    "gpt-4o-mini",
			Timeout:  2 * time.Minute,
		},
		Research: ResearchConfig{
			QueryParam:      "q",
			ResultSelector:  ".result",
			TitleSelector:   ".result__a",
			SnippetSelector: ".result__snippet",
			MaxResults:      5,
		},
		Publication: PublicationConfig{
			RepoPath:              "portfolio/outstatic/content/blogs",
			MetadataDir:           "portfolio/outstatic/content",
			Branch:                "main",
			CommitMessageTemplate: "Add {{.Filename}} to outstatic/content/blogs",
			Collection:            "blogs",
			ContentPrefix:         "outstatic/content",
		},
	}
}
