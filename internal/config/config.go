package config

import (
	_ "embed"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/kozaktomas/face-attendance/internal/constants"
	"gopkg.in/yaml.v3"
)

//go:embed thresholds.yaml
var thresholdsYAML []byte

const (
	defaultCameraURL      = "http://192.168.1.6:8080/shot.jpg"
	defaultEmbeddingModel = "dlib"
	defaultMetric         = "euclidean"
	defaultThreshold      = 0.6
)

type Config struct {
	Camera     CameraConfig
	Embedding  EmbeddingConfig
	Matching   MatchingConfig
	Ledger     LedgerConfig
	Roster     RosterConfig
	Database   DatabaseConfig
	MariaDB    MariaDBConfig
	Web        WebConfig
	Log        LogConfig
	Report     ReportConfig
	Thresholds ThresholdsConfig
}

type CameraConfig struct {
	URL           string        // snapshot endpoint, e.g. IP Webcam's /shot.jpg
	Timeout       time.Duration // per-request timeout
	RetryInterval time.Duration // wait between failed acquisitions
	AlertAfter    int           // consecutive failures before a warning is logged
}

type EmbeddingConfig struct {
	URL   string // defaults to http://localhost:8000
	Model string // selects the default metric and threshold
}

type MatchingConfig struct {
	Threshold       float64
	Metric          string // euclidean or cosine
	TieBreak        string // first or closest
	IndexMinEntries int    // roster size at which the HNSW accelerator kicks in (0 disables it)
	Workers         int    // observations matched concurrently per frame
}

type LedgerConfig struct {
	Path         string // attendance.xlsx or attendance.csv when Backend is "file"
	Backend      string // file, postgres or mariadb
	FlushRetries int
	Timezone     string // IANA name; empty means the local wall clock
}

type RosterConfig struct {
	Path string // yaml roster file used when no database is configured
}

type DatabaseConfig struct {
	URL          string // PostgreSQL connection URL
	MaxOpenConns int    // Maximum open connections (default 10)
	MaxIdleConns int    // Maximum idle connections (default 2)
}

type MariaDBConfig struct {
	DSN string // e.g. attendance:attendance@tcp(mariadb:3306)/attendance?parseTime=true
}

type WebConfig struct {
	Host           string
	Port           int      // 0 disables the web server
	AllowedOrigins []string // CORS whitelist in addition to localhost
}

type LogConfig struct {
	Level  string
	Format string // console or json
}

type ReportConfig struct {
	At string // daily summary time, HH:MM (empty disables it)
}

type ThresholdsConfig struct {
	Models map[string]ModelThreshold `yaml:"models"`
}

type ModelThreshold struct {
	Metric    string  `yaml:"metric"`
	Threshold float64 `yaml:"threshold"`
}

// envInt reads an environment variable and parses it as a positive integer.
// Returns the default value if the env var is unset, empty, or invalid.
func envInt(key string, defaultVal int) int {
	s := os.Getenv(key)
	if s == "" {
		return defaultVal
	}
	if n, err := strconv.Atoi(s); err == nil && n > 0 {
		return n
	}
	return defaultVal
}

// envFloat reads a positive float from the environment, falling back to defaultVal.
func envFloat(key string, defaultVal float64) float64 {
	s := os.Getenv(key)
	if s == "" {
		return defaultVal
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil && f > 0 {
		return f
	}
	return defaultVal
}

func envString(key, defaultVal string) string {
	if s := strings.TrimSpace(os.Getenv(key)); s != "" {
		return s
	}
	return defaultVal
}

// envList splits a comma-separated variable, dropping empty items.
func envList(key string) []string {
	var out []string
	for item := range strings.SplitSeq(os.Getenv(key), ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

func Load() *Config {
	var thresholds ThresholdsConfig
	if err := yaml.Unmarshal(thresholdsYAML, &thresholds); err != nil {
		// Embedded file, so this can only fail on a broken build.
		panic("failed to unmarshal embedded thresholds.yaml: " + err.Error())
	}

	cfg := &Config{
		Camera: CameraConfig{
			URL:           envString("CAMERA_URL", defaultCameraURL),
			Timeout:       time.Duration(envInt("CAMERA_TIMEOUT_SECONDS", 5)) * time.Second,
			RetryInterval: time.Duration(envInt("CAMERA_RETRY_INTERVAL_MS", int(constants.DefaultRetryInterval/time.Millisecond))) * time.Millisecond,
			AlertAfter:    envInt("CAMERA_ALERT_AFTER", constants.DefaultAlertAfter),
		},
		Embedding: EmbeddingConfig{
			URL:   os.Getenv("EMBEDDING_URL"),
			Model: envString("EMBEDDING_MODEL", defaultEmbeddingModel),
		},
		Ledger: LedgerConfig{
			Path:         envString("LEDGER_PATH", "attendance.xlsx"),
			Backend:      envString("LEDGER_BACKEND", "file"),
			FlushRetries: envInt("LEDGER_FLUSH_RETRIES", constants.DefaultFlushRetries),
			Timezone:     os.Getenv("LEDGER_TIMEZONE"),
		},
		Roster: RosterConfig{
			Path: envString("ROSTER_PATH", "roster.yaml"),
		},
		Database: DatabaseConfig{
			URL:          os.Getenv("DATABASE_URL"),
			MaxOpenConns: envInt("DATABASE_MAX_OPEN_CONNS", 10),
			MaxIdleConns: envInt("DATABASE_MAX_IDLE_CONNS", 2),
		},
		MariaDB: MariaDBConfig{
			DSN: os.Getenv("MARIADB_DSN"),
		},
		Web: WebConfig{
			Host:           envString("WEB_HOST", "0.0.0.0"),
			Port:           envInt("WEB_PORT", 0),
			AllowedOrigins: envList("WEB_ALLOWED_ORIGINS"),
		},
		Log: LogConfig{
			Level:  envString("LOG_LEVEL", "info"),
			Format: envString("LOG_FORMAT", "console"),
		},
		Report: ReportConfig{
			At: envString("REPORT_AT", "23:55"),
		},
		Thresholds: thresholds,
	}

	model := cfg.ModelThreshold(cfg.Embedding.Model)
	cfg.Matching = MatchingConfig{
		Threshold:       envFloat("MATCH_THRESHOLD", model.Threshold),
		Metric:          envString("MATCH_METRIC", model.Metric),
		TieBreak:        envString("MATCH_TIE_BREAK", "first"),
		IndexMinEntries: envInt("MATCH_INDEX_MIN_ENTRIES", 0),
		Workers:         envInt("MATCH_WORKERS", 1),
	}
	return cfg
}

// ModelThreshold returns the default metric and threshold for an embedding model,
// falling back to the dlib convention (euclidean, 0.6) for unknown models.
func (c *Config) ModelThreshold(model string) ModelThreshold {
	if t, ok := c.Thresholds.Models[strings.ToLower(model)]; ok {
		if t.Metric == "" {
			t.Metric = defaultMetric
		}
		return t
	}
	return ModelThreshold{Metric: defaultMetric, Threshold: defaultThreshold}
}

// Location resolves the ledger timezone. An empty name means time.Local;
// an unknown one is an error so days are never cut on the wrong clock.
func (c *LedgerConfig) Location() (*time.Location, error) {
	if c.Timezone == "" {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("LEDGER_TIMEZONE %q: %w", c.Timezone, err)
	}
	return loc, nil
}
