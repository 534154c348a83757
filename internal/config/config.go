package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds the configuration for the pipeline. Credentials for the
// optional food sources may be absent; the corresponding provider is then
// simply unavailable.
type Config struct {
	GeminiAPIKey string
	GroqAPIKey   string // optional secondary model for substitution

	// Food data sources. At least one must be configured.
	FoodDBPath        string // local SQLite food database
	FDCAPIKey         string // USDA FoodData Central
	BrandedFoodAPIURL string
	BrandedFoodAPIKey string

	DraftStorePath string
	MetricsDBPath  string

	// Per-stage deadlines. Zero means the built-in default.
	ProfileStageTimeout    time.Duration
	GenerationStageTimeout time.Duration
	RenderStageTimeout     time.Duration
}

// NewFromEnv creates a new Config object from environment variables.
// Validation is itemized: every missing or malformed value is reported in
// a single error rather than one at a time.
func NewFromEnv() (*Config, error) {
	cfg := &Config{
		GeminiAPIKey:      os.Getenv("GEMINI_API_KEY"),
		GroqAPIKey:        os.Getenv("GROQ_API_KEY"),
		FoodDBPath:        os.Getenv("FOOD_DB_PATH"),
		FDCAPIKey:         os.Getenv("FDC_API_KEY"),
		BrandedFoodAPIURL: os.Getenv("BRANDED_FOOD_API_URL"),
		BrandedFoodAPIKey: os.Getenv("BRANDED_FOOD_API_KEY"),
		DraftStorePath:    os.Getenv("DRAFT_STORE_PATH"),
		MetricsDBPath:     os.Getenv("METRICS_DB_PATH"),
	}

	if cfg.DraftStorePath == "" {
		cfg.DraftStorePath = "data/drafts"
	}
	if cfg.MetricsDBPath == "" {
		cfg.MetricsDBPath = "data/metrics.db"
	}

	var problems []string

	if cfg.GeminiAPIKey == "" {
		problems = append(problems, "GEMINI_API_KEY is not set")
	}

	if !cfg.HasFoodSource() {
		problems = append(problems, "no food data source configured: set at least one of FOOD_DB_PATH, FDC_API_KEY, BRANDED_FOOD_API_URL")
	}
	if cfg.BrandedFoodAPIURL != "" && !strings.HasPrefix(cfg.BrandedFoodAPIURL, "http") {
		problems = append(problems, fmt.Sprintf("BRANDED_FOOD_API_URL %q is not a URL", cfg.BrandedFoodAPIURL))
	}

	var err error
	if cfg.ProfileStageTimeout, err = durationEnv("PROFILE_STAGE_TIMEOUT"); err != nil {
		problems = append(problems, err.Error())
	}
	if cfg.GenerationStageTimeout, err = durationEnv("GENERATION_STAGE_TIMEOUT"); err != nil {
		problems = append(problems, err.Error())
	}
	if cfg.RenderStageTimeout, err = durationEnv("RENDER_STAGE_TIMEOUT"); err != nil {
		problems = append(problems, err.Error())
	}

	if len(problems) > 0 {
		return nil, fmt.Errorf("invalid configuration:\n  - %s", strings.Join(problems, "\n  - "))
	}

	return cfg, nil
}

// HasFoodSource reports whether at least one food data source is configured.
func (c *Config) HasFoodSource() bool {
	return c.FoodDBPath != "" || c.FDCAPIKey != "" || c.BrandedFoodAPIURL != ""
}

// durationEnv parses an optional duration variable given either as a Go
// duration string ("90s") or a plain number of seconds.
func durationEnv(key string) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return 0, nil
	}
	if secs, err := strconv.Atoi(v); err == nil {
		return time.Duration(secs) * time.Second, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s %q is not a duration", key, v)
	}
	return d, nil
}
