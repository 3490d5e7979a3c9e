package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

const (
	BackendSQLite = "sqlite"
	BackendCSV    = "csv"
)

type Config struct {
	DBPath       string `koanf:"db_path"`
	StoreBackend string `koanf:"store_backend"`
	DataDir      string `koanf:"data_dir"`
	OutputDir    string `koanf:"output_dir"`
	DownloadDir  string `koanf:"download_dir"`

	LogLevel  string `koanf:"log_level"`
	LogFormat string `koanf:"log_format"`

	ImportIncremental bool   `koanf:"import_incremental"`
	HTTPAddr          string `koanf:"http_addr"`

	ResultsRateLimitRPS int `koanf:"results_rate_limit_rps"`
	ResultsTimeoutMs    int `koanf:"results_timeout_ms"`

	ListenerIndexURL    string `koanf:"listener_index_url"`
	ListenerIntervalSec int    `koanf:"listener_interval_sec"`
	ListenerAutoExport  bool   `koanf:"listener_auto_export"`
	ListenerCompetition string `koanf:"listener_competition"`
	ListenerSeason      string `koanf:"listener_season"`
}

func Defaults(cwd string) Config {
	return Config{
		DBPath:       filepath.Join(cwd, "data", "app.db"),
		StoreBackend: BackendSQLite,
		DataDir:      filepath.Join(cwd, "data"),
		OutputDir:    filepath.Join(cwd, "out"),
		DownloadDir:  filepath.Join(cwd, "data", "protocols"),

		LogLevel:  "info",
		LogFormat: "text",

		HTTPAddr: ":8000",

		ResultsRateLimitRPS: 2,
		ResultsTimeoutMs:    30000,

		ListenerIntervalSec: 300,
		ListenerAutoExport:  true,
	}
}

// Load layers defaults, the YAML file named by SKATESCORE_CONFIG and the
// environment (a .env file in the working directory is read first).
func Load() (Config, error) {
	_ = godotenv.Load()

	cwd, err := os.Getwd()
	if err != nil {
		return Config{}, err
	}
	cfg := Defaults(cwd)

	k := koanf.New(".")
	if path := os.Getenv("SKATESCORE_CONFIG"); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return Config{}, fmt.Errorf("load %s: %w", path, err)
		}
	}

	known := knownKeys()
	envProvider := env.Provider("", ".", func(s string) string {
		key := strings.ToLower(s)
		if _, ok := known[key]; !ok {
			return ""
		}
		return key
	})
	if err := k.Load(envProvider, nil); err != nil {
		return Config{}, err
	}

	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	switch c.StoreBackend {
	case BackendSQLite, BackendCSV:
	default:
		return fmt.Errorf("store_backend must be %s or %s, got %q", BackendSQLite, BackendCSV, c.StoreBackend)
	}
	if c.ResultsRateLimitRPS < 1 {
		return fmt.Errorf("results_rate_limit_rps must be positive")
	}
	if c.ListenerIntervalSec < 1 {
		return fmt.Errorf("listener_interval_sec must be positive")
	}
	return nil
}

func (c Config) Require(name, value string) error {
	if strings.TrimSpace(value) == "" {
		return fmt.Errorf("missing required setting: %s", name)
	}
	return nil
}

func knownKeys() map[string]struct{} {
	keys := map[string]struct{}{}
	for _, k := range []string{
		"db_path", "store_backend", "data_dir", "output_dir", "download_dir",
		"log_level", "log_format", "import_incremental", "http_addr",
		"results_rate_limit_rps", "results_timeout_ms",
		"listener_index_url", "listener_interval_sec", "listener_auto_export",
		"listener_competition", "listener_season",
	} {
		keys[k] = struct{}{}
	}
	return keys
}
