package config

import (
	"fmt"
	"strings"
	"sync"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Server   ServerConfig
	Blob     BlobConfig
	Database DatabaseConfig
	Influx   InfluxConfig
	Pipeline PipelineConfig
	Cache    CacheConfig
}

type ServerConfig struct {
	Port string
	Mode string
}

// BlobConfig describes the S3-compatible source collection. Bucket holds the
// change-feed source objects, ArchiveBucket the archived export files that get
// classified and counted.
type BlobConfig struct {
	Endpoint          string
	AccessKey         string
	SecretKey         string
	Bucket            string
	ArchiveBucket     string
	Region            string
	UseSSL            bool
	ProcessHistorical bool
}

type DatabaseConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
	SSLMode  string
	Schema   string
	Table    string
}

type InfluxConfig struct {
	Protocol      string
	Host          string
	Port          int
	Database      string
	Token         string
	QueryTemplate string
	SkipTLSVerify bool
}

type PipelineConfig struct {
	PollIntervalSeconds int
	MinAgeMinutes       int
	MaxRetries          int
	RetryBaseSeconds    int
}

type CacheConfig struct {
	Enabled          bool
	RedisURL         string
	RedisHost        string
	RedisPort        string
	RedisPassword    string
	RedisDB          int
	CursorTTLSeconds int
}

var (
	once     sync.Once
	instance *Config
)

func Load() *Config {
	once.Do(func() {
		// Load .env file if it exists
		_ = godotenv.Load()

		// Set default values
		viper.SetDefault("SERVER_PORT", "8080")
		viper.SetDefault("SERVER_MODE", "release")
		viper.SetDefault("BLOB_REGION", "us-east-1")
		viper.SetDefault("BLOB_USE_SSL", true)
		viper.SetDefault("BLOB_PROCESS_HISTORICAL", false)
		viper.SetDefault("DB_HOST", "localhost")
		viper.SetDefault("DB_PORT", "5432")
		viper.SetDefault("DB_SSLMODE", "disable")
		viper.SetDefault("DB_SCHEMA", "public")
		viper.SetDefault("DB_TABLE", "blob_changes")
		viper.SetDefault("INFLUX_PROTOCOL", "https")
		viper.SetDefault("INFLUX_PORT", 8086)
		viper.SetDefault("INFLUX_SKIP_TLS_VERIFY", false)
		viper.SetDefault("POLL_INTERVAL_SECONDS", 60)
		viper.SetDefault("MIN_AGE_MINUTES", 10)
		viper.SetDefault("MAX_RETRIES", 3)
		viper.SetDefault("RETRY_BASE_SECONDS", 1)
		viper.SetDefault("CACHE_ENABLED", false)
		viper.SetDefault("REDIS_URL", "")
		viper.SetDefault("REDIS_HOST", "127.0.0.1")
		viper.SetDefault("REDIS_PORT", "6379")
		viper.SetDefault("REDIS_PASSWORD", "")
		viper.SetDefault("REDIS_DB", 0)
		viper.SetDefault("CACHE_CURSOR_TTL_SECONDS", 0)

		// Read from environment variables
		viper.AutomaticEnv()

		instance = &Config{
			Server: ServerConfig{
				Port: viper.GetString("SERVER_PORT"),
				Mode: viper.GetString("SERVER_MODE"),
			},
			Blob: BlobConfig{
				Endpoint:          viper.GetString("BLOB_ENDPOINT"),
				AccessKey:         viper.GetString("BLOB_ACCESS_KEY"),
				SecretKey:         viper.GetString("BLOB_SECRET_KEY"),
				Bucket:            viper.GetString("BLOB_BUCKET"),
				ArchiveBucket:     viper.GetString("BLOB_ARCHIVE_BUCKET"),
				Region:            viper.GetString("BLOB_REGION"),
				UseSSL:            viper.GetBool("BLOB_USE_SSL"),
				ProcessHistorical: viper.GetBool("BLOB_PROCESS_HISTORICAL"),
			},
			Database: DatabaseConfig{
				Host:     viper.GetString("DB_HOST"),
				Port:     viper.GetString("DB_PORT"),
				User:     viper.GetString("DB_USER"),
				Password: viper.GetString("DB_PASSWORD"),
				DBName:   viper.GetString("DB_NAME"),
				SSLMode:  viper.GetString("DB_SSLMODE"),
				Schema:   viper.GetString("DB_SCHEMA"),
				Table:    viper.GetString("DB_TABLE"),
			},
			Influx: InfluxConfig{
				Protocol:      viper.GetString("INFLUX_PROTOCOL"),
				Host:          viper.GetString("INFLUX_HOST"),
				Port:          viper.GetInt("INFLUX_PORT"),
				Database:      viper.GetString("INFLUX_DATABASE"),
				Token:         viper.GetString("INFLUX_TOKEN"),
				QueryTemplate: viper.GetString("INFLUX_QUERY_TEMPLATE"),
				SkipTLSVerify: viper.GetBool("INFLUX_SKIP_TLS_VERIFY"),
			},
			Pipeline: PipelineConfig{
				PollIntervalSeconds: viper.GetInt("POLL_INTERVAL_SECONDS"),
				MinAgeMinutes:       viper.GetInt("MIN_AGE_MINUTES"),
				MaxRetries:          viper.GetInt("MAX_RETRIES"),
				RetryBaseSeconds:    viper.GetInt("RETRY_BASE_SECONDS"),
			},
			Cache: CacheConfig{
				Enabled:          viper.GetBool("CACHE_ENABLED"),
				RedisURL:         viper.GetString("REDIS_URL"),
				RedisHost:        viper.GetString("REDIS_HOST"),
				RedisPort:        viper.GetString("REDIS_PORT"),
				RedisPassword:    viper.GetString("REDIS_PASSWORD"),
				RedisDB:          viper.GetInt("REDIS_DB"),
				CursorTTLSeconds: viper.GetInt("CACHE_CURSOR_TTL_SECONDS"),
			},
		}
	})

	return instance
}

// ValidateDatabase checks the settings every command needs.
func (c *Config) ValidateDatabase() error {
	var missing []string
	if c.Database.Host == "" {
		missing = append(missing, "DB_HOST")
	}
	if c.Database.DBName == "" {
		missing = append(missing, "DB_NAME")
	}
	if c.Database.User == "" {
		missing = append(missing, "DB_USER")
	}
	if c.Database.Password == "" {
		missing = append(missing, "DB_PASSWORD")
	}
	return missingErr(missing)
}

// ValidateBlob checks the object-storage settings. Archive is required only
// for the processing loop, which reads export files from the archive bucket.
func (c *Config) ValidateBlob(requireArchive bool) error {
	var missing []string
	if c.Blob.Endpoint == "" {
		missing = append(missing, "BLOB_ENDPOINT")
	}
	if c.Blob.AccessKey == "" {
		missing = append(missing, "BLOB_ACCESS_KEY")
	}
	if c.Blob.SecretKey == "" {
		missing = append(missing, "BLOB_SECRET_KEY")
	}
	if c.Blob.Bucket == "" {
		missing = append(missing, "BLOB_BUCKET")
	}
	if requireArchive && c.Blob.ArchiveBucket == "" {
		missing = append(missing, "BLOB_ARCHIVE_BUCKET")
	}
	return missingErr(missing)
}

// ValidateInflux checks the query-service settings used by verification.
func (c *Config) ValidateInflux() error {
	var missing []string
	if c.Influx.Host == "" {
		missing = append(missing, "INFLUX_HOST")
	}
	if c.Influx.Database == "" {
		missing = append(missing, "INFLUX_DATABASE")
	}
	if c.Influx.Token == "" {
		missing = append(missing, "INFLUX_TOKEN")
	}
	if c.Influx.QueryTemplate == "" {
		missing = append(missing, "INFLUX_QUERY_TEMPLATE")
	}
	return missingErr(missing)
}

func missingErr(keys []string) error {
	if len(keys) == 0 {
		return nil
	}
	return fmt.Errorf("missing required configuration: %s", strings.Join(keys, ", "))
}
