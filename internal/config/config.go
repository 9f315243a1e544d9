package config

import (
	_ "embed"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

//go:embed default.yaml
var DefaultConfigYAML []byte

type Config struct {
	Categories    []string      `yaml:"categories"`
	Source        string        `yaml:"source"`
	MaxResults    int           `yaml:"max_results"`
	Summarization Summarization `yaml:"summarization"`
	Report        Report        `yaml:"report"`
	Output        Output        `yaml:"output"`
	Server        Server        `yaml:"server"`
}

type Summarization struct {
	Backend        string `yaml:"backend"`
	Model          string `yaml:"model"`
	OllamaURL      string `yaml:"ollama_url"`
	OpenAIModel    string `yaml:"openai_model"`
	OpenAIBaseURL  string `yaml:"openai_base_url"`
	APIKeyEnv      string `yaml:"api_key_env"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
	MaxTokens      int    `yaml:"max_tokens"`
}

type Report struct {
	Classifiers      []string          `yaml:"classifiers"`
	ExcludedSections []string          `yaml:"excluded_sections"`
	SuperSections    map[string]string `yaml:"super_sections"`
	CatchAllSection  string            `yaml:"catch_all_section"`
}

type Output struct {
	DataDir string `yaml:"data_dir"`
}

type Server struct {
	Port int `yaml:"port"`
}

// ConfigDir returns the XDG config directory for arxivdigest.
func ConfigDir() string {
	return filepath.Join(homeDir(), ".config", "arxivdigest")
}

// DataDir returns the XDG data directory for arxivdigest.
func DataDir() string {
	return filepath.Join(homeDir(), ".local", "share", "arxivdigest")
}

// ResolveConfigPath finds the config file following priority:
// explicit path > ~/.config/arxivdigest/config.yaml > ./config.yaml
func ResolveConfigPath(explicit string) (string, error) {
	if explicit != "" {
		if _, err := os.Stat(explicit); err != nil {
			return "", fmt.Errorf("config file not found: %s", explicit)
		}
		return explicit, nil
	}

	xdgConfig := filepath.Join(ConfigDir(), "config.yaml")
	if _, err := os.Stat(xdgConfig); err == nil {
		return xdgConfig, nil
	}

	cwdConfig := "config.yaml"
	if _, err := os.Stat(cwdConfig); err == nil {
		return cwdConfig, nil
	}

	return "", fmt.Errorf(
		"no config file found; searched:\n  %s\n  ./config.yaml\n\nRun 'arxivdigest init' to create a default config",
		xdgConfig,
	)
}

// Load reads and parses a config YAML file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}
	return parse(data)
}

// parse parses YAML bytes into a Config. Defaults come from the embedded
// default.yaml, so a partial user config inherits the full classifier
// vocabulary and grouping tables.
func parse(data []byte) (*Config, error) {
	cfg := &Config{}
	if err := yaml.Unmarshal(DefaultConfigYAML, cfg); err != nil {
		return nil, fmt.Errorf("parsing default config: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	return cfg, nil
}

// GetDataDir returns the effective data directory from config or XDG default.
func (c *Config) GetDataDir() string {
	if c.Output.DataDir != "" {
		return c.Output.DataDir
	}
	return DataDir()
}

func homeDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return home
}
