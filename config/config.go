package config

import (
	"errors"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// ErrInvalidConfig is returned when a required setting is missing or malformed.
var ErrInvalidConfig = errors.New("invalid configuration")

type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Redis    RedisConfig
	Kafka    KafkaConfig
	Observ   ObservabilityConfig
	Scraper  ScraperConfig
	Retailer RetailerConfig
}

type ServerConfig struct {
	Port string
	Env  string
}

type DatabaseConfig struct {
	URL           string
	RunMigrations bool
}

// RedisConfig is optional; an empty Addr disables the sweep lock and department cache.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// KafkaConfig is optional; no brokers disables event publishing and sweep requests.
type KafkaConfig struct {
	Brokers            []string
	TopicPriceEvents   string
	TopicSweepRequests string
	ConsumerGroup      string
}

type ObservabilityConfig struct {
	JaegerEndpoint string
	PrometheusPort string
}

type ScraperConfig struct {
	CatalogAPIURL     string
	MaxProductsScrape int
	PageSize          int
	SweepInterval     time.Duration
	PassTimeout       time.Duration
	FetchConcurrency  int
	RequestsPerSecond float64
	// BackoffMaxAttempts of 0 retries forever.
	BackoffMaxAttempts int
}

// RetailerConfig identifies the store whose prices are recorded.
type RetailerConfig struct {
	Name       string
	Brand      string
	Location   string
	LocationID string
}

func (c *Config) RedisEnabled() bool { return c.Redis.Addr != "" }

func (c *Config) KafkaEnabled() bool { return len(c.Kafka.Brokers) > 0 }

func (c *Config) TracingEnabled() bool { return c.Observ.JaegerEndpoint != "" }

// Load reads .env (if present) and the environment. It fails when DATABASE_URL
// is missing or a numeric setting does not parse.
func Load() (*Config, error) {
	_ = godotenv.Load()

	p := &parser{}

	cfg := &Config{
		Server: ServerConfig{
			Port: getEnv("PORT", "8080"),
			Env:  getEnv("ENV", "development"),
		},
		Database: DatabaseConfig{
			URL:           getEnv("DATABASE_URL", ""),
			RunMigrations: p.getBool("DB_RUN_MIGRATIONS", true),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", ""),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       p.getInt("REDIS_DB", 0),
		},
		Kafka: KafkaConfig{
			Brokers:            splitList(getEnv("KAFKA_BROKERS", "")),
			TopicPriceEvents:   getEnv("KAFKA_TOPIC_PRICE_EVENTS", "price-events"),
			TopicSweepRequests: getEnv("KAFKA_TOPIC_SWEEP_REQUESTS", "sweep-requests"),
			ConsumerGroup:      getEnv("KAFKA_CONSUMER_GROUP", "scraper-group"),
		},
		Observ: ObservabilityConfig{
			JaegerEndpoint: getEnv("JAEGER_ENDPOINT", ""),
			PrometheusPort: getEnv("PROMETHEUS_PORT", "9090"),
		},
		Scraper: ScraperConfig{
			CatalogAPIURL:      getEnv("CATALOG_API_URL", "https://www.countdown.co.nz/api/v1/products"),
			MaxProductsScrape:  p.getInt("MAX_PRODUCTS_SCRAPE", 30000),
			PageSize:           p.getInt("PAGE_SIZE", 120),
			SweepInterval:      time.Duration(p.getInt("SWEEP_INTERVAL_SECONDS", 30)) * time.Second,
			PassTimeout:        time.Duration(p.getInt("PASS_TIMEOUT_SECONDS", 3600)) * time.Second,
			FetchConcurrency:   p.getInt("FETCH_CONCURRENCY", 1),
			RequestsPerSecond:  p.getFloat("REQUESTS_PER_SECOND", 2),
			BackoffMaxAttempts: p.getInt("BACKOFF_MAX_ATTEMPTS", 0),
		},
		Retailer: RetailerConfig{
			Name:       getEnv("RETAILER_NAME", "Countdown Online"),
			Brand:      getEnv("RETAILER_BRAND", "Countdown"),
			Location:   getEnv("RETAILER_LOCATION", "Online"),
			LocationID: getEnv("RETAILER_LOCATION_ID", "online"),
		},
	}

	if p.err != nil {
		return nil, p.err
	}
	if err := validate(cfg); err != nil {
		return nil, err
	}

	log.Printf("Config loaded: env=%s, port=%s, retailer=%s/%s",
		cfg.Server.Env, cfg.Server.Port, cfg.Retailer.Brand, cfg.Retailer.LocationID)
	return cfg, nil
}

func validate(cfg *Config) error {
	if cfg.Database.URL == "" {
		return fmt.Errorf("%w: DATABASE_URL is required", ErrInvalidConfig)
	}
	if cfg.Scraper.CatalogAPIURL == "" {
		return fmt.Errorf("%w: CATALOG_API_URL is required", ErrInvalidConfig)
	}
	if cfg.Scraper.MaxProductsScrape < 1 {
		return fmt.Errorf("%w: MAX_PRODUCTS_SCRAPE must be positive", ErrInvalidConfig)
	}
	if cfg.Scraper.PageSize < 1 {
		return fmt.Errorf("%w: PAGE_SIZE must be positive", ErrInvalidConfig)
	}
	if cfg.Scraper.FetchConcurrency < 1 {
		return fmt.Errorf("%w: FETCH_CONCURRENCY must be positive", ErrInvalidConfig)
	}
	if cfg.Retailer.Brand == "" || cfg.Retailer.LocationID == "" {
		return fmt.Errorf("%w: RETAILER_BRAND and RETAILER_LOCATION_ID are required", ErrInvalidConfig)
	}
	return nil
}

// parser keeps the first conversion error so Load can report it once.
type parser struct {
	err error
}

func (p *parser) getInt(key string, defaultValue int) int {
	raw := getEnv(key, strconv.Itoa(defaultValue))
	v, err := strconv.Atoi(raw)
	if err != nil {
		p.fail(key, raw)
		return defaultValue
	}
	return v
}

func (p *parser) getFloat(key string, defaultValue float64) float64 {
	raw := getEnv(key, strconv.FormatFloat(defaultValue, 'f', -1, 64))
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		p.fail(key, raw)
		return defaultValue
	}
	return v
}

func (p *parser) getBool(key string, defaultValue bool) bool {
	raw := getEnv(key, strconv.FormatBool(defaultValue))
	v, err := strconv.ParseBool(raw)
	if err != nil {
		p.fail(key, raw)
		return defaultValue
	}
	return v
}

func (p *parser) fail(key, raw string) {
	if p.err == nil {
		p.err = fmt.Errorf("%w: %s=%q is not valid", ErrInvalidConfig, key, raw)
	}
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}
