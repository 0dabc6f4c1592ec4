// Package config resolves memegen settings. Values are layered, later layers
// winning:
//
//	defaults → YAML file → environment (MEMEGEN_*, optionally from .env) → flags
//
// Flags are applied by the commands themselves.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/tomasbasham/memegen/internal/operation"
)

// Config holds the resolved settings.
type Config struct {
	// APIURL is the root of the meme generation service.
	APIURL string

	// LatestPath lists generated memes; "/get_all_memes" or "/get_memes".
	LatestPath string

	PollInterval   time.Duration
	RequestTimeout time.Duration

	// OutDir receives local copies of memes and snapshots.
	OutDir string

	// Bucket, when set, receives copies in GCS instead of OutDir.
	Bucket string

	LogLevel  string
	LogFormat string
}

type configFile struct {
	API struct {
		URL            string `yaml:"url"`
		LatestPath     string `yaml:"latest_path"`
		PollInterval   string `yaml:"poll_interval"`
		RequestTimeout string `yaml:"request_timeout"`
	} `yaml:"api"`
	Storage struct {
		OutDir string `yaml:"out_dir"`
		Bucket string `yaml:"bucket"`
	} `yaml:"storage"`
	Log struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"`
	} `yaml:"log"`
}

// Default returns the built-in settings.
func Default() Config {
	return Config{
		APIURL:         "http://127.0.0.1:5000",
		LatestPath:     "/get_all_memes",
		PollInterval:   operation.DefaultInterval,
		RequestTimeout: 5 * time.Minute,
		OutDir:         "memes",
		LogLevel:       "warn",
		LogFormat:      "console",
	}
}

// DefaultPath returns the per-user config file location.
func DefaultPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return ""
	}
	return filepath.Join(dir, "memegen", "config.yaml")
}

// LoadDotEnv loads variables from a .env file in the working directory into
// the environment without overriding variables that are already set. A
// missing file is not an error.
func LoadDotEnv() error {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("load .env: %w", err)
	}
	return nil
}

// Load resolves settings from the YAML file at path, if it exists, and the
// environment. An explicitly named file that does not exist is an error;
// pass required=false for the default location.
func Load(path string, required bool) (Config, error) {
	cfg := Default()

	if path != "" {
		raw, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := applyFile(&cfg, raw); err != nil {
				return Config{}, fmt.Errorf("parse config file %q: %w", path, err)
			}
		case errors.Is(err, fs.ErrNotExist) && !required:
		default:
			return Config{}, fmt.Errorf("read config file: %w", err)
		}
	}

	if err := applyEnv(&cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func applyFile(cfg *Config, raw []byte) error {
	var f configFile
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return err
	}

	setString(&cfg.APIURL, f.API.URL)
	setString(&cfg.LatestPath, f.API.LatestPath)
	setString(&cfg.OutDir, f.Storage.OutDir)
	setString(&cfg.Bucket, f.Storage.Bucket)
	setString(&cfg.LogLevel, f.Log.Level)
	setString(&cfg.LogFormat, f.Log.Format)

	if err := setDuration(&cfg.PollInterval, "api.poll_interval", f.API.PollInterval); err != nil {
		return err
	}
	return setDuration(&cfg.RequestTimeout, "api.request_timeout", f.API.RequestTimeout)
}

func applyEnv(cfg *Config) error {
	setString(&cfg.APIURL, os.Getenv("MEMEGEN_API_URL"))
	setString(&cfg.LatestPath, os.Getenv("MEMEGEN_LATEST_PATH"))
	setString(&cfg.OutDir, os.Getenv("MEMEGEN_OUT_DIR"))
	setString(&cfg.Bucket, os.Getenv("MEMEGEN_BUCKET"))
	setString(&cfg.LogLevel, os.Getenv("MEMEGEN_LOG_LEVEL"))
	setString(&cfg.LogFormat, os.Getenv("MEMEGEN_LOG_FORMAT"))

	if err := setDuration(&cfg.PollInterval, "MEMEGEN_POLL_INTERVAL", os.Getenv("MEMEGEN_POLL_INTERVAL")); err != nil {
		return err
	}
	return setDuration(&cfg.RequestTimeout, "MEMEGEN_REQUEST_TIMEOUT", os.Getenv("MEMEGEN_REQUEST_TIMEOUT"))
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

func setDuration(dst *time.Duration, name, v string) error {
	if v == "" {
		return nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fmt.Errorf("invalid %s %q: %w", name, v, err)
	}
	if d <= 0 {
		return fmt.Errorf("invalid %s %q: must be positive", name, v)
	}
	*dst = d
	return nil
}
