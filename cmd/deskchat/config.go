package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"dario.cat/mergo"
	"github.com/alexschlessinger/deskchat/client"
	"github.com/alexschlessinger/deskchat/llm"
	"github.com/alexschlessinger/deskchat/messages"
	"github.com/alexschlessinger/deskchat/server"
	"github.com/urfave/cli/v3"
	"gopkg.in/yaml.v3"
)

const (
	defaultTimeout  = 30 * time.Second
	configEnvVar    = "DESKCHAT_CONFIG"
	configFileName  = "config.yaml"
	dataDirName     = ".deskchat"
	conversationDir = "conversations"
)

// knownProviders get their API key from DESKCHAT_<PROVIDER>_KEY even when the
// config file does not mention them
var knownProviders = []string{"openai", "anthropic", "gemini", "ollama", "xai"}

// Config is the resolved CLI configuration
type Config struct {
	Server  string        `yaml:"server"`
	Model   string        `yaml:"model"`
	Mode    string        `yaml:"mode"`
	Timeout time.Duration `yaml:"timeout"`
	Addr    string        `yaml:"addr"`
	DataDir string        `yaml:"data_dir"`
	// MaxHistory caps the messages kept per stored conversation; 0 keeps all
	MaxHistory int `yaml:"max_history"`

	Models    []messages.Model              `yaml:"models"`
	Providers map[string]llm.ProviderConfig `yaml:"providers"`

	Debug bool `yaml:"debug"`
}

// defaultConfig returns the values used when nothing else sets them
func defaultConfig() Config {
	dataDir := dataDirName
	if home, err := os.UserHomeDir(); err == nil {
		dataDir = filepath.Join(home, dataDirName)
	}
	return Config{
		Server:  client.DefaultBaseURL,
		Mode:    string(messages.ModeChat),
		Timeout: defaultTimeout,
		Addr:    server.DefaultAddr,
		DataDir: dataDir,
	}
}

// resolveConfig layers the sources: flags win over the environment, which
// wins over the config file, which wins over defaults
func resolveConfig(flags, env, file Config) (*Config, error) {
	out := flags
	out.Providers = nil
	for _, src := range []Config{env, file, defaultConfig()} {
		src.Providers = nil
		if err := mergo.Merge(&out, src); err != nil {
			return nil, fmt.Errorf("merging config: %w", err)
		}
	}
	providers, err := mergeProviders(flags.Providers, env.Providers, file.Providers)
	if err != nil {
		return nil, err
	}
	out.Providers = providers
	if _, ok := messages.ParseMode(out.Mode); !ok {
		return nil, fmt.Errorf("unknown mode %q (valid: %s)", out.Mode, modeNames())
	}
	if out.MaxHistory < 0 {
		return nil, fmt.Errorf("max_history must not be negative, got %d", out.MaxHistory)
	}
	return &out, nil
}

// mergeProviders combines provider settings field by field, earlier layers
// winning, so a key from the environment keeps a base_url from the file
func mergeProviders(layers ...map[string]llm.ProviderConfig) (map[string]llm.ProviderConfig, error) {
	var out map[string]llm.ProviderConfig
	for _, layer := range layers {
		for name, cfg := range layer {
			if out == nil {
				out = make(map[string]llm.ProviderConfig)
			}
			name = strings.ToLower(name)
			merged := out[name]
			if err := mergo.Merge(&merged, cfg); err != nil {
				return nil, fmt.Errorf("merging provider %s: %w", name, err)
			}
			out[name] = merged
		}
	}
	return out, nil
}

// loadConfigFile reads a YAML config file. A missing file is only an error
// when required is set.
func loadConfigFile(path string, required bool) (Config, error) {
	var cfg Config
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) && !required {
		return cfg, nil
	}
	if err != nil {
		return cfg, fmt.Errorf("failed to read config file %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return cfg, nil
}

// envConfig reads DESKCHAT_* variables through lookup
func envConfig(lookup func(string) (string, bool)) (Config, error) {
	get := func(key string) string {
		v, _ := lookup(key)
		return strings.TrimSpace(v)
	}

	cfg := Config{
		Server:  get("DESKCHAT_SERVER"),
		Model:   get("DESKCHAT_MODEL"),
		Mode:    get("DESKCHAT_MODE"),
		Addr:    get("DESKCHAT_ADDR"),
		DataDir: get("DESKCHAT_DATA_DIR"),
		Debug:   get("DESKCHAT_DEBUG") == "1" || get("DESKCHAT_DEBUG") == "true",
	}
	if v := get("DESKCHAT_TIMEOUT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return cfg, fmt.Errorf("invalid DESKCHAT_TIMEOUT %q: %w", v, err)
		}
		cfg.Timeout = d
	}
	if v := get("DESKCHAT_MAX_HISTORY"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return cfg, fmt.Errorf("invalid DESKCHAT_MAX_HISTORY %q: %w", v, err)
		}
		cfg.MaxHistory = n
	}

	for _, name := range knownProviders {
		if key := get(llm.EnvVarForProvider(name)); key != "" {
			if cfg.Providers == nil {
				cfg.Providers = make(map[string]llm.ProviderConfig)
			}
			cfg.Providers[name] = llm.ProviderConfig{APIKey: key}
		}
	}
	return cfg, nil
}

// flagConfig collects the flags that were given on the command line
func flagConfig(cmd *cli.Command) Config {
	var cfg Config
	if cmd.IsSet("server") {
		cfg.Server = cmd.String("server")
	}
	if cmd.IsSet("model") {
		cfg.Model = cmd.String("model")
	}
	if cmd.IsSet("mode") {
		cfg.Mode = cmd.String("mode")
	}
	if cmd.IsSet("timeout") {
		cfg.Timeout = cmd.Duration("timeout")
	}
	if cmd.IsSet("addr") {
		cfg.Addr = cmd.String("addr")
	}
	if cmd.IsSet("data-dir") {
		cfg.DataDir = cmd.String("data-dir")
	}
	if cmd.IsSet("max-history") {
		cfg.MaxHistory = cmd.Int("max-history")
	}
	cfg.Debug = cmd.Bool("debug")
	return cfg
}

// configPath returns the config file to read and whether the user named it
func configPath(cmd *cli.Command, lookup func(string) (string, bool)) (string, bool) {
	if cmd.IsSet("config") {
		return cmd.String("config"), true
	}
	if v, ok := lookup(configEnvVar); ok && v != "" {
		return v, true
	}
	return filepath.Join(defaultConfig().DataDir, configFileName), false
}

// loadConfig resolves the configuration for cmd from every source
func loadConfig(cmd *cli.Command) (*Config, error) {
	path, required := configPath(cmd, os.LookupEnv)
	file, err := loadConfigFile(path, required)
	if err != nil {
		return nil, err
	}
	env, err := envConfig(os.LookupEnv)
	if err != nil {
		return nil, err
	}
	return resolveConfig(flagConfig(cmd), env, file)
}

func modeNames() string {
	names := make([]string, len(messages.Modes))
	for i, m := range messages.Modes {
		names[i] = string(m)
	}
	return strings.Join(names, ", ")
}
