package config

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

const (
	DirName  = ".telepathic"
	FileName = "config.yaml"
)

type Config struct {
	DataDir      string `mapstructure:"data_dir"`
	DBPath       string `mapstructure:"db_path"`
	SnapshotPath string `mapstructure:"snapshot_path"`

	AI       AIConfig       `mapstructure:"ai"`
	Places   PlacesConfig   `mapstructure:"places"`
	Location LocationConfig `mapstructure:"location"`
	Calendar CalendarConfig `mapstructure:"calendar"`
	Priority PriorityConfig `mapstructure:"priority"`
	Notify   NotifyConfig   `mapstructure:"notify"`
	Server   ServerConfig   `mapstructure:"server"`

	// Sources lists the config files that were merged, in order.
	Sources []string `mapstructure:"-"`

	settings map[string]any
}

type AIConfig struct {
	APIKey             string `mapstructure:"api_key"`
	Model              string `mapstructure:"model"`
	BaseURL            string `mapstructure:"base_url"`
	TranscriptionModel string `mapstructure:"transcription_model"`
}

type PlacesConfig struct {
	APIKey  string `mapstructure:"api_key"`
	BaseURL string `mapstructure:"base_url"`
}

type LocationConfig struct {
	Latitude        *float64 `mapstructure:"latitude"`
	Longitude       *float64 `mapstructure:"longitude"`
	ThresholdMeters float64  `mapstructure:"threshold_meters"`
}

type CalendarConfig struct {
	Provider              string   `mapstructure:"provider"`
	GoogleCredentialsFile string   `mapstructure:"google_credentials_file"`
	GoogleCalendarIDs     []string `mapstructure:"google_calendar_ids"`
}

type PriorityConfig struct {
	RecheckInterval time.Duration `mapstructure:"recheck_interval"`
	MaxTasks        int           `mapstructure:"max_tasks"`
	Schedule        string        `mapstructure:"schedule"`
	DigestTime      string        `mapstructure:"digest_time"`
}

type NotifyConfig struct {
	TelegramToken    string `mapstructure:"telegram_token"`
	TelegramChatID   int64  `mapstructure:"telegram_chat_id"`
	DiscordToken     string `mapstructure:"discord_token"`
	DiscordChannelID string `mapstructure:"discord_channel_id"`
}

type ServerConfig struct {
	Port           string   `mapstructure:"port"`
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

// defaults is the single source for viper defaults and the file written by WriteDefault.
func defaults() map[string]any {
	return map[string]any{
		"data_dir":      DirName,
		"db_path":       "",
		"snapshot_path": "",
		"ai": map[string]any{
			"api_key":             "",
			"model":               "gpt-4o-mini",
			"base_url":            "",
			"transcription_model": "whisper-1",
		},
		"places": map[string]any{
			"api_key":  "",
			"base_url": "https://maps.googleapis.com/maps/api/place/nearbysearch/json",
		},
		"location": map[string]any{
			"threshold_meters": 100,
		},
		"calendar": map[string]any{
			"provider":                "local",
			"google_credentials_file": "",
			"google_calendar_ids":     []string{},
		},
		"priority": map[string]any{
			"recheck_interval": "4h",
			"max_tasks":        3,
			"schedule":         "",
			"digest_time":      "",
		},
		"notify": map[string]any{
			"telegram_token":     "",
			"telegram_chat_id":   0,
			"discord_token":      "",
			"discord_channel_id": "",
		},
		"server": map[string]any{
			"port":            "8000",
			"allowed_origins": []string{"*"},
		},
	}
}

func setDefaults(v *viper.Viper, prefix string, m map[string]any) {
	for k, val := range m {
		key := k
		if prefix != "" {
			key = prefix + "." + k
		}
		if nested, ok := val.(map[string]any); ok {
			setDefaults(v, key, nested)
			continue
		}
		v.SetDefault(key, val)
	}
}

// GlobalConfigPath returns the path to the global config file
func GlobalConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, DirName, FileName)
}

// ProjectConfigPath returns the path to the project config file
func ProjectConfigPath() string {
	cwd, err := os.Getwd()
	if err != nil {
		return ""
	}
	return filepath.Join(cwd, DirName, FileName)
}

// Load merges defaults, the global file, the project file, an optional
// explicit file and TELEPATHIC_* environment variables, in that order.
// A .env file in the working directory is loaded first.
func Load(explicitPath string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	v := viper.New()
	v.SetConfigType("yaml")
	v.SetEnvPrefix("TELEPATHIC")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v, "", defaults())
	// Keys without a default still need binding for TELEPATHIC_* to reach them.
	v.BindEnv("location.latitude")
	v.BindEnv("location.longitude")

	cfg := &Config{}
	for _, path := range []string{GlobalConfigPath(), ProjectConfigPath(), explicitPath} {
		if path == "" {
			continue
		}
		if _, err := os.Stat(path); err != nil {
			if os.IsNotExist(err) && path != explicitPath {
				continue
			}
			return nil, fmt.Errorf("failed to read config %s: %w", path, err)
		}
		v.SetConfigFile(path)
		if err := v.MergeInConfig(); err != nil {
			return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
		}
		cfg.Sources = append(cfg.Sources, path)
	}

	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	cfg.settings = v.AllSettings()
	cfg.applyFallbacks()

	return cfg, nil
}

// applyFallbacks fills derived paths and the conventional provider variables.
func (c *Config) applyFallbacks() {
	if c.DataDir == "" {
		c.DataDir = DirName
	}
	if c.DBPath == "" {
		c.DBPath = filepath.Join(c.DataDir, "telepathic.db")
	}
	if c.SnapshotPath == "" {
		c.SnapshotPath = filepath.Join(c.DataDir, "snapshot.jsonl")
	}
	if c.AI.APIKey == "" {
		c.AI.APIKey = os.Getenv("OPENAI_API_KEY")
	}
	if c.Places.APIKey == "" {
		c.Places.APIKey = os.Getenv("GOOGLE_PLACES_API_KEY")
	}
	if c.Priority.RecheckInterval <= 0 {
		c.Priority.RecheckInterval = 4 * time.Hour
	}
	if c.Priority.MaxTasks <= 0 {
		c.Priority.MaxTasks = 3
	}
	if c.Location.ThresholdMeters <= 0 {
		c.Location.ThresholdMeters = 100
	}
}

// LogPath is where logs go while the terminal UI is running.
func (c *Config) LogPath() string {
	return filepath.Join(c.DataDir, "telepathic.log")
}

// HasFixedLocation reports whether coordinates were configured.
func (c *Config) HasFixedLocation() bool {
	return c.Location.Latitude != nil && c.Location.Longitude != nil
}

// Redacted renders the merged settings as YAML with secrets masked.
func (c *Config) Redacted() (string, error) {
	masked := redact(c.settings)
	out, err := yaml.Marshal(masked)
	if err != nil {
		return "", fmt.Errorf("failed to render config: %w", err)
	}
	return string(out), nil
}

func redact(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		switch val := m[k].(type) {
		case map[string]any:
			out[k] = redact(val)
		case string:
			if val != "" && (strings.Contains(k, "key") || strings.Contains(k, "token")) {
				out[k] = "****"
			} else {
				out[k] = val
			}
		default:
			out[k] = val
		}
	}
	return out
}

// WriteDefault writes the default configuration to path. It refuses to
// overwrite an existing file.
func WriteDefault(path string) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config already exists: %s", path)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	out, err := yaml.Marshal(defaults())
	if err != nil {
		return fmt.Errorf("failed to render default config: %w", err)
	}
	if err := os.WriteFile(path, out, 0600); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}
