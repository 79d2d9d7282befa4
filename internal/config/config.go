package config

import (
	"errors"
	"fmt"
	"os"
	"runtime"
	"strconv"
	"strings"
	"time"

	sharedcfg "github.com/couchcryptid/storm-data-shared/config"
	"github.com/joho/godotenv"

	"github.com/couchcryptid/heatwave-tracker/internal/domain"
)

// Config holds all run settings, populated from an optional definitions file
// and environment variables. Environment variables win.
type Config struct {
	Dataset   string
	Region    string
	StartYear int
	EndYear   int

	SeasonStartMonth time.Month
	SeasonEndMonth   time.Month

	// Threshold stage.
	Percentile         float64
	PercentileMethod   domain.PercentileMethod
	MinConsecutiveDays int
	ActualPath         string
	ClimatologyPath    string
	ProcessedPath      string
	TemperatureVar     string
	LatVar             string
	LonVar             string
	KelvinToCelsius    bool

	// Detection stage.
	Periodic           bool
	MinClusterAreaKm2  float64
	IntensityStatistic domain.IntensityStatistic
	ClustersBasePath   string
	ClustersDir        string
	Workers            int

	// Tracking stage.
	OverlapMetric        domain.OverlapMetric
	MinEventDurationDays int
	TrackBestEffort      bool
	TrackDiscoverDates   bool
	EventsOutputPath     string
	EventsDBPath         string
	EventsPlotPath       string

	KafkaEnabled     bool
	KafkaBrokers     []string
	KafkaEventsTopic string

	HTTPAddr        string
	LogLevel        string
	LogFormat       string
	ShutdownTimeout time.Duration

	// Mapbox geocoding configuration.
	MapboxToken     string
	MapboxEnabled   bool
	MapboxTimeout   time.Duration
	MapboxCacheSize int
}

// Season returns the analysis window used to select detection dates.
func (c *Config) Season() domain.Season {
	return domain.Season{
		StartYear:  c.StartYear,
		EndYear:    c.EndYear,
		StartMonth: c.SeasonStartMonth,
		EndMonth:   c.SeasonEndMonth,
	}
}

// Load reads configuration from a .env file (if present), the YAML file named
// by DEFINITIONS_FILE (if set), and environment variables, applying defaults
// where unset.
func Load() (*Config, error) {
	_ = godotenv.Load() // ignore missing file

	defs, err := loadDefinitions(os.Getenv("DEFINITIONS_FILE"))
	if err != nil {
		return nil, err
	}

	shutdownTimeout, err := sharedcfg.ParseShutdownTimeout()
	if err != nil {
		return nil, err
	}

	mapboxTimeoutStr := sharedcfg.EnvOrDefault("MAPBOX_TIMEOUT", "5s")
	mapboxTimeout, err := time.ParseDuration(mapboxTimeoutStr)
	if err != nil || mapboxTimeout <= 0 {
		return nil, errors.New("invalid MAPBOX_TIMEOUT")
	}

	var p parser
	cfg := &Config{
		Dataset:   p.getString("DATASET", defs.Dataset, "ERA5"),
		Region:    p.getString("REGION", defs.Region, "global"),
		StartYear: p.getInt("START_YEAR", defs.StartYear, 2011),
		EndYear:   p.getInt("END_YEAR", defs.EndYear, 2020),

		SeasonStartMonth: time.Month(p.getInt("SEASON_START_MONTH", 0, int(time.May))),
		SeasonEndMonth:   time.Month(p.getInt("SEASON_END_MONTH", 0, int(time.September))),

		Percentile:         p.getFloat("PERCENTILE", 0, 90),
		MinConsecutiveDays: p.getInt("MIN_CONSECUTIVE_DAYS", 0, domain.DefaultMinConsecutiveDays),
		ActualPath:         p.getString("ACTUAL_PATH", defs.metricPath(), ""),
		ClimatologyPath:    p.getString("CLIMATOLOGY_PATH", "", ""),
		ProcessedPath:      p.getString("PROCESSED_PATH", "", "./data/processed/heatwave-processed.nc"),
		TemperatureVar:     p.getString("TEMPERATURE_VAR", "", "t2m"),
		LatVar:             p.getString("LAT_VAR", defs.LatVar, "latitude"),
		LonVar:             p.getString("LON_VAR", defs.LonVar, "longitude"),
		KelvinToCelsius:    p.getBool("KELVIN_TO_CELSIUS", true),

		Periodic:          p.getBool("PERIODIC", defs.Periodic),
		MinClusterAreaKm2: p.getFloat("MIN_CLUSTER_AREA_KM2", defs.MinimumArea, 0),
		ClustersBasePath:  p.getString("CLUSTERS_BASE_PATH", defs.ClustersPartialPath, "./data/clusters"),
		Workers:           p.getInt("WORKERS", 0, runtime.NumCPU()),

		MinEventDurationDays: p.getInt("MIN_EVENT_DURATION_DAYS", 0, 1),
		TrackBestEffort:      p.getBool("TRACK_BEST_EFFORT", false),
		TrackDiscoverDates:   p.getBool("TRACK_DISCOVER_DATES", false),
		EventsDBPath:         p.getString("EVENTS_DB_PATH", "", ""),
		EventsPlotPath:       p.getString("EVENTS_PLOT_PATH", "", ""),

		KafkaEnabled:     p.getBool("KAFKA_ENABLED", false),
		KafkaBrokers:     sharedcfg.ParseBrokers(sharedcfg.EnvOrDefault("KAFKA_BROKERS", "localhost:9092")),
		KafkaEventsTopic: sharedcfg.EnvOrDefault("KAFKA_EVENTS_TOPIC", "heatwave-events"),

		HTTPAddr:        os.Getenv("HTTP_ADDR"),
		LogLevel:        sharedcfg.EnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:       sharedcfg.EnvOrDefault("LOG_FORMAT", "json"),
		ShutdownTimeout: shutdownTimeout,

		MapboxToken:     os.Getenv("MAPBOX_TOKEN"),
		MapboxTimeout:   mapboxTimeout,
		MapboxCacheSize: parseMapboxCacheSize(),
	}

	cfg.PercentileMethod, err = domain.ParsePercentileMethod(sharedcfg.EnvOrDefault("PERCENTILE_METHOD", string(domain.PercentileLinear)))
	p.record("PERCENTILE_METHOD", err)
	cfg.IntensityStatistic, err = domain.ParseIntensityStatistic(sharedcfg.EnvOrDefault("INTENSITY_STATISTIC", string(domain.IntensityMean)))
	p.record("INTENSITY_STATISTIC", err)
	cfg.OverlapMetric, err = domain.ParseOverlapMetric(sharedcfg.EnvOrDefault("OVERLAP_METRIC", string(domain.OverlapCells)))
	p.record("OVERLAP_METRIC", err)
	if p.err != nil {
		return nil, p.err
	}

	cfg.ClustersDir = expandClustersDir(
		sharedcfg.EnvOrDefault("CLUSTERS_PATH_TEMPLATE", "{base}/{dataset}/{region}/heatwave/{percentile}p"), cfg)
	cfg.EventsOutputPath = sharedcfg.EnvOrDefault("EVENTS_OUTPUT_PATH", cfg.ClustersDir+"/heatwave-events.json")

	cfg.MapboxEnabled = cfg.MapboxToken != ""
	if v := os.Getenv("MAPBOX_ENABLED"); v != "" {
		cfg.MapboxEnabled = v == "true"
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.Dataset == "" {
		return errors.New("DATASET is required")
	}
	if c.Region == "" {
		return errors.New("REGION is required")
	}
	if c.EndYear < c.StartYear {
		return fmt.Errorf("END_YEAR %d is before START_YEAR %d", c.EndYear, c.StartYear)
	}
	if c.SeasonStartMonth < time.January || c.SeasonStartMonth > time.December {
		return errors.New("SEASON_START_MONTH must be between 1 and 12")
	}
	if c.SeasonEndMonth < time.January || c.SeasonEndMonth > time.December {
		return errors.New("SEASON_END_MONTH must be between 1 and 12")
	}
	if c.Percentile <= 0 || c.Percentile >= 100 {
		return errors.New("PERCENTILE must be between 0 and 100 exclusive")
	}
	if c.MinConsecutiveDays < 1 {
		return errors.New("MIN_CONSECUTIVE_DAYS must be at least 1")
	}
	if c.MinClusterAreaKm2 < 0 {
		return errors.New("MIN_CLUSTER_AREA_KM2 must not be negative")
	}
	if c.MinEventDurationDays < 1 {
		return errors.New("MIN_EVENT_DURATION_DAYS must be at least 1")
	}
	if c.Workers < 1 {
		return errors.New("WORKERS must be at least 1")
	}
	if c.KafkaEnabled && len(c.KafkaBrokers) == 0 {
		return errors.New("KAFKA_BROKERS is required")
	}
	if c.KafkaEnabled && c.KafkaEventsTopic == "" {
		return errors.New("KAFKA_EVENTS_TOPIC is required")
	}
	if c.MapboxEnabled && c.MapboxToken == "" {
		return errors.New("MAPBOX_ENABLED is true but MAPBOX_TOKEN is not set")
	}
	return nil
}

// expandClustersDir fills the {base}, {dataset}, {region} and {percentile}
// placeholders of the artifact directory template.
func expandClustersDir(template string, c *Config) string {
	return strings.NewReplacer(
		"{base}", strings.TrimRight(c.ClustersBasePath, "/"),
		"{dataset}", c.Dataset,
		"{region}", c.Region,
		"{percentile}", strconv.FormatFloat(c.Percentile, 'f', -1, 64),
	).Replace(template)
}

func parseMapboxCacheSize() int {
	if s := os.Getenv("MAPBOX_CACHE_SIZE"); s != "" {
		if n, err := strconv.Atoi(s); err == nil && n > 0 {
			return n
		}
	}
	return 1000
}

// parser reads typed values and keeps the first error, naming its variable.
type parser struct {
	err error
}

func (p *parser) record(key string, err error) {
	if err != nil && p.err == nil {
		p.err = fmt.Errorf("invalid %s: %w", key, err)
	}
}

func (p *parser) getString(key, fromFile, def string) string {
	if fromFile != "" {
		def = fromFile
	}
	return sharedcfg.EnvOrDefault(key, def)
}

func (p *parser) getInt(key string, fromFile, def int) int {
	if fromFile != 0 {
		def = fromFile
	}
	s := os.Getenv(key)
	if s == "" {
		return def
	}
	n, err := strconv.Atoi(s)
	p.record(key, err)
	return n
}

func (p *parser) getFloat(key string, fromFile, def float64) float64 {
	if fromFile != 0 {
		def = fromFile
	}
	s := os.Getenv(key)
	if s == "" {
		return def
	}
	f, err := strconv.ParseFloat(s, 64)
	p.record(key, err)
	return f
}

func (p *parser) getBool(key string, def bool) bool {
	s := os.Getenv(key)
	if s == "" {
		return def
	}
	b, err := strconv.ParseBool(s)
	p.record(key, err)
	return b
}
