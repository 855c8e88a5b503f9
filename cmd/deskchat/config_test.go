package main

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/alexschlessinger/deskchat/client"
	"github.com/alexschlessinger/deskchat/llm"
	"github.com/alexschlessinger/deskchat/messages"
	"github.com/google/go-cmp/cmp"
)

func lookupMap(m map[string]string) func(string) (string, bool) {
	return func(key string) (string, bool) {
		v, ok := m[key]
		return v, ok
	}
}

func TestResolveConfigPrecedence(t *testing.T) {
	flags := Config{Model: "flag/model"}
	env := Config{Model: "env/model", Server: "http://env:1"}
	file := Config{Server: "http://file:1", Mode: "code", Addr: "0.0.0.0:1", Model: "file/model"}

	cfg, err := resolveConfig(flags, env, file)
	if err != nil {
		t.Fatalf("resolveConfig failed: %v", err)
	}

	if cfg.Model != "flag/model" {
		t.Errorf("Model = %q, flags should win", cfg.Model)
	}
	if cfg.Server != "http://env:1" {
		t.Errorf("Server = %q, env should win over file", cfg.Server)
	}
	if cfg.Mode != "code" || cfg.Addr != "0.0.0.0:1" {
		t.Errorf("file values lost: mode=%q addr=%q", cfg.Mode, cfg.Addr)
	}
	if cfg.Timeout != defaultTimeout {
		t.Errorf("Timeout = %v, want default %v", cfg.Timeout, defaultTimeout)
	}
	if filepath.Base(cfg.DataDir) != dataDirName {
		t.Errorf("DataDir = %q", cfg.DataDir)
	}
}

func TestResolveConfigDefaults(t *testing.T) {
	cfg, err := resolveConfig(Config{}, Config{}, Config{})
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Server != client.DefaultBaseURL || cfg.Mode != string(messages.ModeChat) || cfg.Model != "" {
		t.Errorf("defaults = %+v", cfg)
	}
}

func TestResolveConfigRejectsUnknownMode(t *testing.T) {
	_, err := resolveConfig(Config{Mode: "poetry"}, Config{}, Config{})
	if err == nil || !strings.Contains(err.Error(), `unknown mode "poetry"`) {
		t.Errorf("err = %v", err)
	}
}

func TestResolveConfigMergesProviders(t *testing.T) {
	env := Config{Providers: map[string]llm.ProviderConfig{
		"openai": {APIKey: "env-key"},
	}}
	file := Config{Providers: map[string]llm.ProviderConfig{
		"OpenAI": {APIKey: "file-key", BaseURL: "https://example.test/v1"},
		"ollama": {BaseURL: "http://gpu:11434"},
	}}

	cfg, err := resolveConfig(Config{}, env, file)
	if err != nil {
		t.Fatal(err)
	}

	want := map[string]llm.ProviderConfig{
		"openai": {APIKey: "env-key", BaseURL: "https://example.test/v1"},
		"ollama": {BaseURL: "http://gpu:11434"},
	}
	if diff := cmp.Diff(want, cfg.Providers); diff != "" {
		t.Errorf("providers mismatch (-want +got):\n%s", diff)
	}
	if _, ok := file.Providers["openai"]; ok {
		t.Error("resolveConfig must not modify its inputs")
	}
}

func TestEnvConfig(t *testing.T) {
	cfg, err := envConfig(lookupMap(map[string]string{
		"DESKCHAT_SERVER":        "http://box:9720",
		"DESKCHAT_MODEL":         " anthropic/claude-sonnet-4-5 ",
		"DESKCHAT_TIMEOUT":       "5s",
		"DESKCHAT_DEBUG":         "1",
		"DESKCHAT_MAX_HISTORY":   "40",
		"DESKCHAT_ANTHROPIC_KEY": "sk-ant",
	}))
	if err != nil {
		t.Fatalf("envConfig failed: %v", err)
	}

	want := Config{
		Server:     "http://box:9720",
		Model:      "anthropic/claude-sonnet-4-5",
		Timeout:    5 * time.Second,
		Debug:      true,
		MaxHistory: 40,
		Providers: map[string]llm.ProviderConfig{
			"anthropic": {APIKey: "sk-ant"},
		},
	}
	if diff := cmp.Diff(want, cfg); diff != "" {
		t.Errorf("config mismatch (-want +got):\n%s", diff)
	}
}

func TestEnvConfigBadTimeout(t *testing.T) {
	_, err := envConfig(lookupMap(map[string]string{"DESKCHAT_TIMEOUT": "soon"}))
	if err == nil || !strings.Contains(err.Error(), "DESKCHAT_TIMEOUT") {
		t.Errorf("err = %v", err)
	}
}

func TestEnvConfigBadMaxHistory(t *testing.T) {
	_, err := envConfig(lookupMap(map[string]string{"DESKCHAT_MAX_HISTORY": "lots"}))
	if err == nil || !strings.Contains(err.Error(), "DESKCHAT_MAX_HISTORY") {
		t.Errorf("err = %v", err)
	}
}

func TestResolveConfigRejectsNegativeMaxHistory(t *testing.T) {
	if _, err := resolveConfig(Config{}, Config{}, Config{MaxHistory: -1}); err == nil {
		t.Error("expected an error for a negative max_history")
	}
}

func TestLoadConfigFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, configFileName)
	content := `server: http://10.0.0.2:9720
mode: translate
timeout: 45s
max_history: 100
models:
  - id: echo/echo
    name: Echo
    provider: deskchat
providers:
  openai:
    api_key: sk-test
    base_url: https://example.test/v1
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := loadConfigFile(path, true)
	if err != nil {
		t.Fatalf("loadConfigFile failed: %v", err)
	}

	want := Config{
		Server:     "http://10.0.0.2:9720",
		Mode:       "translate",
		Timeout:    45 * time.Second,
		MaxHistory: 100,
		Models:     []messages.Model{{ID: "echo/echo", Name: "Echo", Provider: "deskchat"}},
		Providers: map[string]llm.ProviderConfig{
			"openai": {APIKey: "sk-test", BaseURL: "https://example.test/v1"},
		},
	}
	if diff := cmp.Diff(want, cfg); diff != "" {
		t.Errorf("config mismatch (-want +got):\n%s", diff)
	}
}

func TestLoadConfigFileMissing(t *testing.T) {
	path := filepath.Join(t.TempDir(), "absent.yaml")

	if _, err := loadConfigFile(path, false); err != nil {
		t.Errorf("optional missing file should be ignored, got %v", err)
	}
	if _, err := loadConfigFile(path, true); err == nil {
		t.Error("a config file named by the user must exist")
	}
}

func TestLoadConfigFileInvalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), configFileName)
	if err := os.WriteFile(path, []byte("timeout: [not a duration"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := loadConfigFile(path, false); err == nil {
		t.Error("expected a parse error")
	}
}
