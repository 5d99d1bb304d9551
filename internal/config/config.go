package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

type Config struct {
	DBPath    string
	OutputDir string

	WikiAPIURL       string
	WikiAPIToken     string
	WikiUserAgent    string
	WikiRateLimitRPS int
	WikiTimeoutMs    int

	NormalizeBatch int

	SpriteSourceBaseURL string
	SpriteIndexURL      string
	SpriteNamePrefix    string
}

func Load() (Config, error) {
	_ = godotenv.Load()

	cwd, err := os.Getwd()
	if err != nil {
		return Config{}, err
	}

	cfg := Config{
		DBPath:    getEnv("DB_PATH", filepath.Join(cwd, "data", "app.db")),
		OutputDir: getEnv("OUTPUT_DIR", filepath.Join(cwd, "out")),

		WikiAPIURL:       getEnv("WIKI_API_URL", "https://liquipedia.net/pokemon/api.php"),
		WikiAPIToken:     getEnv("WIKI_API_TOKEN", ""),
		WikiUserAgent:    getEnv("WIKI_USER_AGENT", "wikignome/1.0"),
		WikiRateLimitRPS: getEnvInt("WIKI_RATE_LIMIT_RPS", 1),
		WikiTimeoutMs:    getEnvInt("WIKI_TIMEOUT_MS", 30000),

		NormalizeBatch: getEnvInt("NORMALIZE_BATCH", 50),

		SpriteSourceBaseURL: getEnv("SPRITE_SOURCE_BASE_URL", "https://raw.githubusercontent.com/msikma/pokesprite/master/pokemon-gen8/regular/"),
		SpriteIndexURL:      getEnv("SPRITE_INDEX_URL", ""),
		SpriteNamePrefix:    getEnv("SPRITE_NAME_PREFIX", "pkmn-"),
	}

	return cfg, nil
}

func (c Config) Require(name, value string) error {
	if strings.TrimSpace(value) == "" {
		return fmt.Errorf("missing required env var: %s", name)
	}
	return nil
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	value := getEnv(key, "")
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}
