package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/02loveslollipop/printer-page-counter/internal/series"
)

const (
	defaultDataDir     = "dados"
	defaultSchedule    = "@every 1h"
	defaultWorkers     = 4
	defaultReadTimeout = 10 * time.Second
	defaultSNMPTimeout = 2 * time.Second
	defaultSNMPRetries = 1
	defaultSNMPPort    = 161
	defaultMetricsAddr = ":9102"
)

// Config holds runtime configuration for the collector service.
type Config struct {
	StoreDriver string
	DataDir     string
	DatabaseURL string

	FleetFile string
	Sources   string

	SNMPCommunity string
	SNMPPort      uint16
	SNMPTimeout   time.Duration
	SNMPRetries   int
	SNMPSimulate  bool

	Workers           int
	ReadTimeout       time.Duration
	Schedule          string
	PeriodGranularity string
	PeriodTimezone    *time.Location

	MetricsAddr string
	DryRun      bool
	LogLevel    string
	LogFormat   string
}

// Load reads configuration from environment variables (optionally .env).
func Load() (Config, error) {
	_ = godotenv.Load(".env")

	cfg := Config{
		StoreDriver:   series.DriverCSV,
		DataDir:       defaultDataDir,
		SNMPCommunity: "public",
		SNMPPort:      defaultSNMPPort,
		SNMPTimeout:   defaultSNMPTimeout,
		SNMPRetries:   defaultSNMPRetries,
		Workers:       defaultWorkers,
		ReadTimeout:   defaultReadTimeout,
		Schedule:      defaultSchedule,
		MetricsAddr:   defaultMetricsAddr,
	}

	if v := env("STORE_DRIVER"); v != "" {
		cfg.StoreDriver = strings.ToLower(v)
	}
	switch cfg.StoreDriver {
	case series.DriverCSV, series.DriverPostgres, series.DriverMemory:
	default:
		return cfg, fmt.Errorf("invalid STORE_DRIVER: %q", cfg.StoreDriver)
	}
	if v := env("DATA_DIR"); v != "" {
		cfg.DataDir = v
	}
	cfg.DatabaseURL = env("DATABASE_URL")
	if cfg.StoreDriver == series.DriverPostgres && cfg.DatabaseURL == "" {
		return cfg, errors.New("DATABASE_URL is required when STORE_DRIVER=postgres")
	}

	cfg.FleetFile = env("FLEET_FILE")
	cfg.Sources = env("COLLECTOR_SOURCES")

	if v := env("SNMP_COMMUNITY"); v != "" {
		cfg.SNMPCommunity = v
	}
	if v := env("SNMP_PORT"); v != "" {
		p, err := strconv.ParseUint(v, 10, 16)
		if err != nil || p == 0 {
			return cfg, fmt.Errorf("invalid SNMP_PORT: %s", v)
		}
		cfg.SNMPPort = uint16(p)
	}
	var err error
	if cfg.SNMPTimeout, err = duration("SNMP_TIMEOUT", cfg.SNMPTimeout); err != nil {
		return cfg, err
	}
	if v := env("SNMP_RETRIES"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return cfg, fmt.Errorf("invalid SNMP_RETRIES: %s", v)
		}
		cfg.SNMPRetries = n
	}
	cfg.SNMPSimulate = boolean(env("SNMP_SIMULATE"))

	if v := env("COLLECTOR_WORKERS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			return cfg, fmt.Errorf("invalid COLLECTOR_WORKERS: %s", v)
		}
		cfg.Workers = n
	}
	if cfg.ReadTimeout, err = duration("COLLECTOR_READ_TIMEOUT", cfg.ReadTimeout); err != nil {
		return cfg, err
	}
	if v := env("COLLECTOR_SCHEDULE"); v != "" {
		cfg.Schedule = v
	}

	cfg.PeriodGranularity = env("PERIOD_GRANULARITY")
	// Legacy series bucket months in the collector host's zone.
	cfg.PeriodTimezone = time.Local
	if v := env("PERIOD_TIMEZONE"); v != "" {
		loc, err := time.LoadLocation(v)
		if err != nil {
			return cfg, fmt.Errorf("invalid PERIOD_TIMEZONE: %w", err)
		}
		cfg.PeriodTimezone = loc
	}

	if v, ok := os.LookupEnv("METRICS_ADDR"); ok {
		cfg.MetricsAddr = strings.TrimSpace(v)
	}
	cfg.DryRun = boolean(env("DRY_RUN"))
	cfg.LogLevel = env("LOG_LEVEL")
	cfg.LogFormat = env("LOG_FORMAT")

	return cfg, nil
}

func env(key string) string {
	return strings.TrimSpace(os.Getenv(key))
}

func duration(key string, def time.Duration) (time.Duration, error) {
	v := env(key)
	if v == "" {
		return def, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return def, fmt.Errorf("invalid %s: %w", key, err)
	}
	if d <= 0 {
		return def, fmt.Errorf("invalid %s: must be positive", key)
	}
	return d, nil
}

func boolean(v string) bool {
	return v == "1" || strings.EqualFold(v, "true")
}
