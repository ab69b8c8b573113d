package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

type Config struct {
	ServiceID string // GITTER_SERVICE_ID (required)
	LogLevel  string // GITTER_LOG_LEVEL (default "info")

	GRPCAddr  string // GITTER_GRPC_ADDR (default ":9090")
	HTTPAddr  string // GITTER_HTTP_ADDR (default ":8080")
	AuthToken string // GITTER_AUTH_TOKEN (optional, empty = auth disabled)

	// Event bus
	NATSURL      string   // GITTER_NATS_URL (optional, empty = no bus unless embedded)
	EmbeddedNATS bool     // GITTER_NATS_EMBEDDED (run an in-process server)
	NATSPort     int      // GITTER_NATS_PORT (embedded server port, default 4222)
	Subject      string   // GITTER_SUBJECT (inbound raw events, default "gitter.message.received")
	KafkaBrokers []string // GITTER_KAFKA_BROKERS (comma-separated, enables Kafka publishing)

	DatabaseURL string // GITTER_DATABASE_URL (optional, empty = in-memory store)

	// Sync settings
	SyncInterval   time.Duration // GITTER_SYNC_INTERVAL (default 3m; 0 = disabled)
	SyncS3Bucket   string        // GITTER_SYNC_S3_BUCKET (enables S3 when set)
	SyncS3Endpoint string        // GITTER_SYNC_S3_ENDPOINT (custom endpoint for MinIO)
	SyncS3Region   string        // GITTER_SYNC_S3_REGION (default "us-east-1")
	SyncS3Key      string        // GITTER_SYNC_S3_KEY (default "gitter/activities.jsonl")
	SyncGitRepo    string        // GITTER_SYNC_GIT_REPO (enables git when set; path to clone)
	SyncGitFile    string        // GITTER_SYNC_GIT_FILE (default "activities.jsonl")
	SyncGitBranch  string        // GITTER_SYNC_GIT_BRANCH (default "main")
}

// fileConfig mirrors Config in the TOML file layout. Unset keys keep their
// defaults.
type fileConfig struct {
	ServiceID string `toml:"service_id"`
	LogLevel  string `toml:"log_level"`
	GRPCAddr  string `toml:"grpc_addr"`
	HTTPAddr  string `toml:"http_addr"`
	AuthToken string `toml:"auth_token"`

	NATS struct {
		URL      string `toml:"url"`
		Embedded *bool  `toml:"embedded"`
		Port     int    `toml:"port"`
		Subject  string `toml:"subject"`
	} `toml:"nats"`

	Kafka struct {
		Brokers []string `toml:"brokers"`
	} `toml:"kafka"`

	Database struct {
		URL string `toml:"url"`
	} `toml:"database"`

	Sync struct {
		Interval   string `toml:"interval"`
		S3Bucket   string `toml:"s3_bucket"`
		S3Endpoint string `toml:"s3_endpoint"`
		S3Region   string `toml:"s3_region"`
		S3Key      string `toml:"s3_key"`
		GitRepo    string `toml:"git_repo"`
		GitFile    string `toml:"git_file"`
		GitBranch  string `toml:"git_branch"`
	} `toml:"sync"`
}

// Default returns a Config populated with defaults only.
func Default() *Config {
	return &Config{
		LogLevel:      "info",
		GRPCAddr:      ":9090",
		HTTPAddr:      ":8080",
		NATSPort:      4222,
		Subject:       "gitter.message.received",
		SyncInterval:  3 * time.Minute,
		SyncS3Region:  "us-east-1",
		SyncS3Key:     "gitter/activities.jsonl",
		SyncGitFile:   "activities.jsonl",
		SyncGitBranch: "main",
	}
}

// Load builds the configuration from defaults, then the TOML file at path
// (or GITTER_CONFIG when path is empty), then GITTER_* environment variables.
// Environment values win over the file.
func Load(path string) (*Config, error) {
	c := Default()

	if path == "" {
		path = os.Getenv("GITTER_CONFIG")
	}
	if path != "" {
		if err := c.applyFile(path); err != nil {
			return nil, err
		}
	}
	if err := c.applyEnv(); err != nil {
		return nil, err
	}

	if c.ServiceID == "" {
		return nil, fmt.Errorf("GITTER_SERVICE_ID is required")
	}
	return c, nil
}

func (c *Config) applyFile(path string) error {
	var fc fileConfig
	if _, err := toml.DecodeFile(path, &fc); err != nil {
		return fmt.Errorf("reading config file %s: %w", path, err)
	}

	setString(&c.ServiceID, fc.ServiceID)
	setString(&c.LogLevel, fc.LogLevel)
	setString(&c.GRPCAddr, fc.GRPCAddr)
	setString(&c.HTTPAddr, fc.HTTPAddr)
	setString(&c.AuthToken, fc.AuthToken)

	setString(&c.NATSURL, fc.NATS.URL)
	if fc.NATS.Embedded != nil {
		c.EmbeddedNATS = *fc.NATS.Embedded
	}
	if fc.NATS.Port != 0 {
		c.NATSPort = fc.NATS.Port
	}
	setString(&c.Subject, fc.NATS.Subject)
	if len(fc.Kafka.Brokers) > 0 {
		c.KafkaBrokers = fc.Kafka.Brokers
	}

	setString(&c.DatabaseURL, fc.Database.URL)

	if fc.Sync.Interval != "" {
		d, err := time.ParseDuration(fc.Sync.Interval)
		if err != nil {
			return fmt.Errorf("%s: sync.interval: %w", path, err)
		}
		c.SyncInterval = d
	}
	setString(&c.SyncS3Bucket, fc.Sync.S3Bucket)
	setString(&c.SyncS3Endpoint, fc.Sync.S3Endpoint)
	setString(&c.SyncS3Region, fc.Sync.S3Region)
	setString(&c.SyncS3Key, fc.Sync.S3Key)
	setString(&c.SyncGitRepo, fc.Sync.GitRepo)
	setString(&c.SyncGitFile, fc.Sync.GitFile)
	setString(&c.SyncGitBranch, fc.Sync.GitBranch)
	return nil
}

func (c *Config) applyEnv() error {
	setString(&c.ServiceID, os.Getenv("GITTER_SERVICE_ID"))
	setString(&c.LogLevel, os.Getenv("GITTER_LOG_LEVEL"))
	setString(&c.GRPCAddr, os.Getenv("GITTER_GRPC_ADDR"))
	setString(&c.HTTPAddr, os.Getenv("GITTER_HTTP_ADDR"))
	setString(&c.AuthToken, os.Getenv("GITTER_AUTH_TOKEN"))
	setString(&c.NATSURL, os.Getenv("GITTER_NATS_URL"))
	setString(&c.Subject, os.Getenv("GITTER_SUBJECT"))
	setString(&c.DatabaseURL, os.Getenv("GITTER_DATABASE_URL"))

	if v := os.Getenv("GITTER_NATS_EMBEDDED"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("GITTER_NATS_EMBEDDED: %w", err)
		}
		c.EmbeddedNATS = b
	}
	if v := os.Getenv("GITTER_NATS_PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("GITTER_NATS_PORT: %w", err)
		}
		c.NATSPort = port
	}
	if v := os.Getenv("GITTER_KAFKA_BROKERS"); v != "" {
		c.KafkaBrokers = splitList(v)
	}

	if v := os.Getenv("GITTER_SYNC_INTERVAL"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("GITTER_SYNC_INTERVAL: %w", err)
		}
		c.SyncInterval = d
	}
	setString(&c.SyncS3Bucket, os.Getenv("GITTER_SYNC_S3_BUCKET"))
	setString(&c.SyncS3Endpoint, os.Getenv("GITTER_SYNC_S3_ENDPOINT"))
	setString(&c.SyncS3Region, os.Getenv("GITTER_SYNC_S3_REGION"))
	setString(&c.SyncS3Key, os.Getenv("GITTER_SYNC_S3_KEY"))
	setString(&c.SyncGitRepo, os.Getenv("GITTER_SYNC_GIT_REPO"))
	setString(&c.SyncGitFile, os.Getenv("GITTER_SYNC_GIT_FILE"))
	setString(&c.SyncGitBranch, os.Getenv("GITTER_SYNC_GIT_BRANCH"))
	return nil
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
