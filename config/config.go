package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	EnvModel          = "LM_MODEL"
	EnvBaseURL        = "LM_PROVIDER_BASE_URL"
	EnvAPIKey         = "LM_API_KEY"
	EnvMaxRetries     = "LM_MAX_RETRIES"
	EnvRequestTimeout = "LM_REQUEST_TIMEOUT_SEC"
	EnvServerPort     = "LM_SERVER_PORT"
	EnvDataDir        = "LM_DATA_DIR"
)

type Config struct {
	Server struct {
		Port int `yaml:"port"`
	} `yaml:"server"`
	LM struct {
		Model             string `yaml:"model"`
		BaseURL           string `yaml:"base_url"`
		APIKey            string `yaml:"-"`
		RequestTimeoutSec int    `yaml:"request_timeout_sec"`
		MaxRetries        int    `yaml:"max_retries"`
	} `yaml:"lm"`
	Data struct {
		Dir string `yaml:"dir"`
	} `yaml:"data"`
}

// Load reads .env (overriding the process environment), then the optional
// YAML file at path, then the LM_* environment variables.
func Load(path string) (Config, error) {
	var cfg Config
	if err := godotenv.Overload(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return cfg, fmt.Errorf("load .env: %w", err)
	}
	if path != "" {
		b, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := yaml.Unmarshal(b, &cfg); err != nil {
				return cfg, fmt.Errorf("parse config %s: %w", path, err)
			}
		case !errors.Is(err, fs.ErrNotExist):
			return cfg, err
		}
	}
	if err := applyEnv(&cfg); err != nil {
		return cfg, err
	}
	cfg.LM.Model = strings.TrimSpace(cfg.LM.Model)
	cfg.LM.BaseURL = strings.TrimSpace(cfg.LM.BaseURL)
	if cfg.LM.Model == "" {
		return cfg, fmt.Errorf("%s is not set in the environment variables", EnvModel)
	}
	if cfg.LM.MaxRetries == 0 {
		cfg.LM.MaxRetries = 4
	}
	if cfg.LM.RequestTimeoutSec == 0 {
		cfg.LM.RequestTimeoutSec = 120
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Data.Dir == "" {
		cfg.Data.Dir = "data_files"
	}
	return cfg, nil
}

// EnsureDataDir creates the data directory if it does not exist yet.
func EnsureDataDir(cfg Config) error {
	return os.MkdirAll(cfg.Data.Dir, 0o755)
}

func applyEnv(cfg *Config) error {
	if v, ok := lookup(EnvModel); ok {
		cfg.LM.Model = v
	}
	if v, ok := lookup(EnvBaseURL); ok {
		cfg.LM.BaseURL = v
	}
	if v, ok := lookup(EnvAPIKey); ok {
		cfg.LM.APIKey = v
	}
	if v, ok := lookup(EnvDataDir); ok {
		cfg.Data.Dir = v
	}
	ints := []struct {
		name string
		dst  *int
	}{
		{EnvMaxRetries, &cfg.LM.MaxRetries},
		{EnvRequestTimeout, &cfg.LM.RequestTimeoutSec},
		{EnvServerPort, &cfg.Server.Port},
	}
	for _, it := range ints {
		v, ok := lookup(it.name)
		if !ok {
			continue
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid %s %q: %w", it.name, v, err)
		}
		*it.dst = n
	}
	return nil
}

// lookup treats a variable that is set but blank the same as an unset one.
func lookup(name string) (string, bool) {
	v := strings.TrimSpace(os.Getenv(name))
	return v, v != ""
}
