package config

import (
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/text/language"
	"gopkg.in/yaml.v3"

	"codex-history/internal/logger"
)

const (
	DefaultGlamourStyle = "dark"
	appName             = "codex-history"
	settingsFileName    = "config.yaml"
)

type AppConfig struct {
	CodexHome    string
	SessionsRoot string
	// ConfigPath is the settings file in use, or the explicit --config value.
	ConfigPath string
	ExportDir  string
	LogPath    string
}

// Resolve fills an AppConfig from command-line values, falling back to the
// environment and the user's home directory.
func Resolve(codexHome, configPath, exportDir string) (AppConfig, error) {
	var cfg AppConfig

	home, err := DetectCodexHome(codexHome)
	if err != nil {
		return cfg, err
	}
	cfg.CodexHome = home
	cfg.SessionsRoot = SessionsRoot(home)

	cfg.ConfigPath = strings.TrimSpace(configPath)
	if cfg.ConfigPath == "" {
		cfg.ConfigPath = FindSettingsFile()
	}

	cfg.ExportDir = strings.TrimSpace(exportDir)
	if cfg.ExportDir == "" {
		cfg.ExportDir = filepath.Join("docs", "codex")
	}

	cfg.LogPath, err = DefaultLogPath()
	if err != nil {
		return cfg, err
	}
	return cfg, nil
}

func DetectCodexHome(explicit string) (string, error) {
	if explicit = strings.TrimSpace(explicit); explicit != "" {
		return filepath.Clean(explicit), nil
	}
	if fromEnv := strings.TrimSpace(os.Getenv("CODEX_HOME")); fromEnv != "" {
		return filepath.Clean(fromEnv), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve home directory: %w", err)
	}
	return filepath.Join(home, ".codex"), nil
}

func SessionsRoot(codexHome string) string {
	return filepath.Join(codexHome, "sessions")
}

func DefaultLogPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve home directory: %w", err)
	}
	return filepath.Join(home, ".local", "share", appName, appName+".log"), nil
}

// Settings are the user options for the history browser.
type Settings struct {
	// MaxHistoryCount caps the index to the newest turns. Zero means no cap.
	MaxHistoryCount  int
	IncludeReasoning bool
	Locale           language.Tag
}

// fileSettings mirrors the YAML file. Values are kept loosely typed so a
// wrong type degrades to the default instead of failing the load.
type fileSettings struct {
	MaxHistoryCount  any    `yaml:"max_history_count"`
	IncludeReasoning any    `yaml:"include_reasoning_message"`
	Locale           string `yaml:"locale"`
}

func DefaultSettings() Settings {
	return Settings{Locale: language.Und}
}

// FindSettingsFile returns the first existing settings file from
// $XDG_CONFIG_HOME/codex-history and ~/.config/codex-history, or "".
func FindSettingsFile() string {
	var paths []string
	if xdg := strings.TrimSpace(os.Getenv("XDG_CONFIG_HOME")); xdg != "" {
		paths = append(paths, filepath.Join(xdg, appName, settingsFileName))
	}
	if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths, filepath.Join(home, ".config", appName, settingsFileName))
	}
	for _, p := range paths {
		if st, err := os.Stat(p); err == nil && !st.IsDir() {
			return p
		}
	}
	return ""
}

// LoadSettings reads path. An empty path or a missing file yields the
// defaults.
func LoadSettings(path string) (Settings, error) {
	if path == "" {
		return DefaultSettings(), nil
	}
	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return DefaultSettings(), nil
		}
		return DefaultSettings(), fmt.Errorf("read settings: %w", err)
	}
	return ParseSettings(data)
}

func ParseSettings(data []byte) (Settings, error) {
	var raw fileSettings
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return DefaultSettings(), fmt.Errorf("parse settings: %w", err)
	}

	includeReasoning, _ := raw.IncludeReasoning.(bool)
	s := Settings{
		MaxHistoryCount:  normalizeCount(raw.MaxHistoryCount),
		IncludeReasoning: includeReasoning,
		Locale:           language.Und,
	}
	if loc := strings.TrimSpace(raw.Locale); loc != "" {
		tag, err := language.Parse(loc)
		if err != nil {
			logger.Logger.Warn().Err(err).Str("locale", loc).Msg("ignore invalid locale")
		} else {
			s.Locale = tag
		}
	}
	return s, nil
}

// ReadSettings loads the configured settings file, logging failures and
// returning defaults instead of an error. Used on every panel (re)open.
func (c AppConfig) ReadSettings() Settings {
	s, err := LoadSettings(c.ConfigPath)
	if err != nil {
		logger.Logger.Warn().Err(err).Str("path", c.ConfigPath).Msg("using default settings")
	}
	return s
}

// normalizeCount floors numeric values and maps anything that is not a
// positive number to zero.
func normalizeCount(v any) int {
	var f float64
	switch n := v.(type) {
	case int:
		f = float64(n)
	case int64:
		f = float64(n)
	case uint64:
		f = float64(n)
	case float64:
		f = n
	default:
		return 0
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0
	}
	f = math.Floor(f)
	if f < 1 {
		return 0
	}
	if f > math.MaxInt32 {
		return math.MaxInt32
	}
	return int(f)
}
