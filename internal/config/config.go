package config

import (
	"errors"
	"fmt"
	"os"
	"runtime"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/example/visit-trip-linker/internal/matcher"
)

// ServerConfig captures all tunable parameters of the linker processes.
// Values come from an optional YAML file (LINKER_CONFIG) overlaid with
// environment variables, with defaults that let the binaries run locally.
type ServerConfig struct {
	HTTPAddr        string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration

	RedisAddr      string
	RedisPassword  string
	RedisKeyPrefix string
	RedisResultTTL time.Duration

	KafkaBrokers       []string
	KafkaVisitsTopic   string
	KafkaTripsTopic    string
	KafkaResultsTopic  string
	KafkaGroup         string
	ConsumerFlushEvery time.Duration

	PGDSN     string
	SourceDSN string

	Match         matcher.Config
	DistanceModel string
	Workers       int

	InputPaths FilePaths
	OutputPath string

	LogLevel      string
	LogFormat     string
	RunMigrations bool
}

// FilePaths holds one input workbook location per host OS.
type FilePaths struct {
	Windows string
	Mac     string
	Linux   string
}

// Resolve picks the path for goos; unknown systems fall back to Linux.
func (p FilePaths) Resolve(goos string) string {
	switch goos {
	case "windows":
		return p.Windows
	case "darwin":
		return p.Mac
	default:
		return p.Linux
	}
}

// InputPath resolves the input workbook for the running host.
func (c ServerConfig) InputPath() string { return c.InputPaths.Resolve(runtime.GOOS) }

var envKeys = map[string]string{
	"http.addr":                  "HTTP_ADDR",
	"http.read_timeout":          "HTTP_READ_TIMEOUT",
	"http.write_timeout":         "HTTP_WRITE_TIMEOUT",
	"http.idle_timeout":          "HTTP_IDLE_TIMEOUT",
	"http.shutdown_timeout":      "HTTP_SHUTDOWN_TIMEOUT",
	"redis.addr":                 "REDIS_ADDR",
	"redis.password":             "REDIS_PASSWORD",
	"redis.key_prefix":           "REDIS_KEY_PREFIX",
	"redis.result_ttl":           "REDIS_RESULT_TTL",
	"kafka.brokers":              "KAFKA_BROKERS",
	"kafka.visits_topic":         "KAFKA_VISITS_TOPIC",
	"kafka.trips_topic":          "KAFKA_TRIPS_TOPIC",
	"kafka.results_topic":        "KAFKA_RESULTS_TOPIC",
	"kafka.group":                "KAFKA_GROUP",
	"consumer.flush_interval":    "CONSUMER_FLUSH_INTERVAL",
	"postgres.dsn":               "PG_DSN",
	"source.dsn":                 "SOURCE_DSN",
	"match.distance_threshold_m": "MATCH_DISTANCE_THRESHOLD_M",
	"match.window_before_tight":  "MATCH_WINDOW_BEFORE_TIGHT",
	"match.window_after_tight":   "MATCH_WINDOW_AFTER_TIGHT",
	"match.window_loose":         "MATCH_WINDOW_LOOSE",
	"match.distance_buckets":     "MATCH_DISTANCE_BUCKETS",
	"match.start_time_buckets":   "MATCH_START_TIME_BUCKETS",
	"match.no_match_distance_m":  "MATCH_NO_MATCH_DISTANCE_M",
	"match.distance_model":       "MATCH_DISTANCE_MODEL",
	"match.workers":              "MATCH_WORKERS",
	"file_paths.windows":         "INPUT_PATH_WINDOWS",
	"file_paths.mac":             "INPUT_PATH_MAC",
	"file_paths.linux":           "INPUT_PATH_LINUX",
	"output_path":                "OUTPUT_PATH",
	"log.level":                  "LOG_LEVEL",
	"log.format":                 "LOG_FORMAT",
	"migrate":                    "MIGRATE",
}

func setDefaults(v *viper.Viper) {
	m := matcher.DefaultConfig()
	v.SetDefault("http.addr", ":8080")
	v.SetDefault("http.read_timeout", "5s")
	v.SetDefault("http.write_timeout", "30s")
	v.SetDefault("http.idle_timeout", "120s")
	v.SetDefault("http.shutdown_timeout", "15s")
	v.SetDefault("redis.key_prefix", "linker")
	v.SetDefault("redis.result_ttl", "168h")
	v.SetDefault("kafka.visits_topic", "care-visits")
	v.SetDefault("kafka.trips_topic", "vehicle-trip-legs")
	v.SetDefault("kafka.results_topic", "visit-trip-matches")
	v.SetDefault("kafka.group", "visit-trip-linker")
	v.SetDefault("consumer.flush_interval", "1h")
	v.SetDefault("match.distance_threshold_m", m.DistanceThresholdMeters)
	v.SetDefault("match.window_before_tight", m.WindowBeforeTight.String())
	v.SetDefault("match.window_after_tight", m.WindowAfterTight.String())
	v.SetDefault("match.window_loose", m.WindowLoose.String())
	v.SetDefault("match.distance_buckets", m.DistanceBucketCount)
	v.SetDefault("match.start_time_buckets", m.StartTimeBucketCount)
	v.SetDefault("match.no_match_distance_m", m.NoMatchDistanceSentinel)
	v.SetDefault("match.distance_model", "geodesic")
	v.SetDefault("match.workers", 1)
	v.SetDefault("output_path", "matches.xlsx")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("migrate", "false")
}

func LoadServerConfig() (ServerConfig, error) {
	return load(viper.New(), os.Getenv("LINKER_CONFIG"))
}

func load(v *viper.Viper, path string) (ServerConfig, error) {
	setDefaults(v)
	for key, env := range envKeys {
		if err := v.BindEnv(key, env); err != nil {
			return ServerConfig{}, fmt.Errorf("bind %s: %w", env, err)
		}
	}
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return ServerConfig{}, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	var cfg ServerConfig
	var errs []error

	cfg.HTTPAddr = strings.TrimSpace(v.GetString("http.addr"))
	cfg.ReadTimeout = durationOf(v, "http.read_timeout", &errs)
	cfg.WriteTimeout = durationOf(v, "http.write_timeout", &errs)
	cfg.IdleTimeout = durationOf(v, "http.idle_timeout", &errs)
	cfg.ShutdownTimeout = durationOf(v, "http.shutdown_timeout", &errs)

	cfg.RedisAddr = strings.TrimSpace(v.GetString("redis.addr"))
	cfg.RedisPassword = v.GetString("redis.password")
	cfg.RedisKeyPrefix = v.GetString("redis.key_prefix")
	cfg.RedisResultTTL = durationOf(v, "redis.result_ttl", &errs)

	cfg.KafkaBrokers = splitAndTrim(v.GetString("kafka.brokers"))
	cfg.KafkaVisitsTopic = v.GetString("kafka.visits_topic")
	cfg.KafkaTripsTopic = v.GetString("kafka.trips_topic")
	cfg.KafkaResultsTopic = v.GetString("kafka.results_topic")
	cfg.KafkaGroup = v.GetString("kafka.group")
	cfg.ConsumerFlushEvery = durationOf(v, "consumer.flush_interval", &errs)

	cfg.PGDSN = v.GetString("postgres.dsn")
	cfg.SourceDSN = v.GetString("source.dsn")

	cfg.Match = matcher.Config{
		DistanceThresholdMeters: intOf(v, "match.distance_threshold_m", &errs),
		WindowBeforeTight:       durationOf(v, "match.window_before_tight", &errs),
		WindowAfterTight:        durationOf(v, "match.window_after_tight", &errs),
		WindowLoose:             durationOf(v, "match.window_loose", &errs),
		DistanceBucketCount:     intOf(v, "match.distance_buckets", &errs),
		StartTimeBucketCount:    intOf(v, "match.start_time_buckets", &errs),
		NoMatchDistanceSentinel: intOf(v, "match.no_match_distance_m", &errs),
	}
	cfg.DistanceModel = strings.ToLower(strings.TrimSpace(v.GetString("match.distance_model")))
	cfg.Workers = intOf(v, "match.workers", &errs)

	cfg.InputPaths = FilePaths{
		Windows: v.GetString("file_paths.windows"),
		Mac:     v.GetString("file_paths.mac"),
		Linux:   v.GetString("file_paths.linux"),
	}
	cfg.OutputPath = v.GetString("output_path")

	cfg.LogLevel = strings.ToLower(v.GetString("log.level"))
	cfg.LogFormat = strings.ToLower(v.GetString("log.format"))
	cfg.RunMigrations = strings.EqualFold(v.GetString("migrate"), "true")

	if err := cfg.Match.Validate(); err != nil {
		errs = append(errs, err)
	}
	if cfg.Workers <= 0 {
		errs = append(errs, fmt.Errorf("MATCH_WORKERS must be > 0"))
	}
	if cfg.ConsumerFlushEvery <= 0 {
		errs = append(errs, fmt.Errorf("CONSUMER_FLUSH_INTERVAL must be > 0"))
	}

	return cfg, errors.Join(errs...)
}

func durationOf(v *viper.Viper, key string, errs *[]error) time.Duration {
	raw := strings.TrimSpace(v.GetString(key))
	if raw == "" {
		return 0
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		*errs = append(*errs, fmt.Errorf("invalid %s: %w", envKeys[key], err))
		return 0
	}
	return d
}

func intOf(v *viper.Viper, key string, errs *[]error) int {
	raw := strings.TrimSpace(v.GetString(key))
	i, err := strconv.Atoi(raw)
	if err != nil {
		*errs = append(*errs, fmt.Errorf("invalid %s: %w", envKeys[key], err))
		return 0
	}
	return i
}

func splitAndTrim(v string) []string {
	raw := strings.Split(v, ",")
	out := make([]string, 0, len(raw))
	for _, r := range raw {
		r = strings.TrimSpace(r)
		if r == "" {
			continue
		}
		out = append(out, r)
	}
	return out
}
