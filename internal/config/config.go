package config

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/pbaille/nutriscan/internal/match"
	"github.com/pbaille/nutriscan/internal/mealgen"
	"github.com/pbaille/nutriscan/internal/suggest"
	"gopkg.in/yaml.v3"
)

const (
	ModelTree   = "tree"
	ModelRemote = "remote"

	ScorerEmbedding = "embedding"
)

// Config holds runtime settings. Precedence: defaults, then the YAML
// file, then the environment (a .env file included), then CLI flags.
type Config struct {
	DBPath         string        `yaml:"db_path"`
	Addr           string        `yaml:"addr"`
	CatalogSource  string        `yaml:"catalog_source"`
	ModelKind      string        `yaml:"model_kind"`
	ModelPath      string        `yaml:"model_path"`
	ModelURL       string        `yaml:"model_url"`
	ModelAPIKey    string        `yaml:"model_api_key"`
	Scorer         string        `yaml:"scorer"`
	MatchThreshold int           `yaml:"match_threshold"`
	LogDays        int           `yaml:"log_days"`
	JWTSecret      string        `yaml:"jwt_secret"`
	TokenTTL       time.Duration `yaml:"token_ttl"`
	VoyageAPIKey   string        `yaml:"voyage_api_key"`
	Suggestions    suggest.Table `yaml:"suggestions"`
}

// Default returns the built-in settings
func Default() *Config {
	home, _ := os.UserHomeDir()
	return &Config{
		DBPath:         filepath.Join(home, ".nutriscan", "nutriscan.db"),
		Addr:           ":8080",
		ModelKind:      ModelTree,
		Scorer:         "weighted",
		MatchThreshold: match.DefaultThreshold,
		LogDays:        mealgen.DefaultDays,
		TokenTTL:       72 * time.Hour,
	}
}

// Load builds the configuration. path may be empty; a missing .env is fine.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() error {
	strs := map[string]*string{
		"NUTRISCAN_DB":            &c.DBPath,
		"NUTRISCAN_ADDR":          &c.Addr,
		"NUTRISCAN_CATALOG":       &c.CatalogSource,
		"NUTRISCAN_MODEL_KIND":    &c.ModelKind,
		"NUTRISCAN_MODEL_PATH":    &c.ModelPath,
		"NUTRISCAN_MODEL_URL":     &c.ModelURL,
		"NUTRISCAN_MODEL_API_KEY": &c.ModelAPIKey,
		"NUTRISCAN_SCORER":        &c.Scorer,
		"NUTRISCAN_JWT_SECRET":    &c.JWTSecret,
		"VOYAGE_API_KEY":          &c.VoyageAPIKey,
	}
	for key, dst := range strs {
		if v, ok := os.LookupEnv(key); ok {
			*dst = v
		}
	}

	ints := map[string]*int{
		"NUTRISCAN_MATCH_THRESHOLD": &c.MatchThreshold,
		"NUTRISCAN_LOG_DAYS":        &c.LogDays,
	}
	for key, dst := range ints {
		v, ok := os.LookupEnv(key)
		if !ok {
			continue
		}
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return fmt.Errorf("%s: %w", key, err)
		}
		*dst = n
	}

	if v, ok := os.LookupEnv("NUTRISCAN_TOKEN_TTL"); ok {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("NUTRISCAN_TOKEN_TTL: %w", err)
		}
		c.TokenTTL = d
	}
	return nil
}

// Validate checks settings that would otherwise fail late
func (c *Config) Validate() error {
	switch c.ModelKind {
	case ModelTree:
	case ModelRemote:
		if c.ModelURL == "" {
			return fmt.Errorf("model_kind remote needs model_url")
		}
	default:
		return fmt.Errorf("unknown model_kind %q", c.ModelKind)
	}

	if c.Scorer == ScorerEmbedding {
		if c.VoyageAPIKey == "" {
			return fmt.Errorf("scorer embedding needs voyage_api_key")
		}
	} else if _, ok := match.ByName(c.Scorer); !ok {
		return fmt.Errorf("unknown scorer %q", c.Scorer)
	}

	if c.MatchThreshold < 0 || c.MatchThreshold > 100 {
		return fmt.Errorf("match_threshold must be within 0..100, got %d", c.MatchThreshold)
	}
	if c.LogDays <= 0 || c.LogDays > mealgen.MaxDays {
		return fmt.Errorf("log_days must be within 1..%d, got %d", mealgen.MaxDays, c.LogDays)
	}
	if c.TokenTTL <= 0 {
		return fmt.Errorf("token_ttl must be positive")
	}
	return nil
}

// SuggestionTable returns the built-in advice with configured overrides
func (c *Config) SuggestionTable() suggest.Table {
	return suggest.DefaultTable.Merge(c.Suggestions)
}

// EnsureSecret fills JWTSecret from a file next to the database,
// creating one on first use, so CLI tokens survive between runs
func (c *Config) EnsureSecret() error {
	if c.JWTSecret != "" {
		return nil
	}

	path := filepath.Join(filepath.Dir(c.DBPath), "jwt.secret")
	if data, err := os.ReadFile(path); err == nil {
		c.JWTSecret = strings.TrimSpace(string(data))
		return nil
	} else if !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("read secret: %w", err)
	}

	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return fmt.Errorf("generate secret: %w", err)
	}
	secret := hex.EncodeToString(buf)

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create secret dir: %w", err)
	}
	if err := os.WriteFile(path, []byte(secret+"\n"), 0600); err != nil {
		return fmt.Errorf("write secret: %w", err)
	}
	c.JWTSecret = secret
	return nil
}
