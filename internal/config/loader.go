package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/DEFRA/clean-air-zones-api-sub008/internal/db"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const envPrefix = "CAZ"

// Config is the complete service configuration.
type Config struct {
	Database DatabaseConfig `mapstructure:"database"`
	HTTP     HTTPConfig     `mapstructure:"http"`
	Log      LogConfig      `mapstructure:"log"`
	AWS      AWSConfig      `mapstructure:"aws"`
	Register RegisterConfig `mapstructure:"register"`
	Export   ExportConfig   `mapstructure:"export"`
	Redis    RedisConfig    `mapstructure:"redis"`
	Kafka    KafkaConfig    `mapstructure:"kafka"`
}

type DatabaseConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	DBName          string        `mapstructure:"dbname"`
	SSLMode         string        `mapstructure:"sslmode"`
	MaxConns        int32         `mapstructure:"max_conns"`
	MinConns        int32         `mapstructure:"min_conns"`
	MaxConnLifetime time.Duration `mapstructure:"max_conn_lifetime"`
	MaxConnIdleTime time.Duration `mapstructure:"max_conn_idle_time"`
}

type HTTPConfig struct {
	Addr            string        `mapstructure:"addr"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	AllowedOrigins  []string      `mapstructure:"allowed_origins"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	File   string `mapstructure:"file"`
}

type AWSConfig struct {
	Region       string `mapstructure:"region"`
	Endpoint     string `mapstructure:"endpoint"`
	UsePathStyle bool   `mapstructure:"use_path_style"`
}

type RegisterConfig struct {
	MaxErrors     int           `mapstructure:"max_errors"`
	MaxLineLength int           `mapstructure:"max_line_length"`
	JobTimeout    time.Duration `mapstructure:"job_timeout"`
}

type ExportConfig struct {
	Destination   string        `mapstructure:"destination"`
	Bucket        string        `mapstructure:"bucket"`
	Directory     string        `mapstructure:"directory"`
	PresignExpiry time.Duration `mapstructure:"presign_expiry"`
	FlushBytes    int           `mapstructure:"flush_bytes"`
}

type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	Channel  string `mapstructure:"channel"`
}

// Enabled reports whether job completions should be published to redis.
func (c RedisConfig) Enabled() bool { return strings.TrimSpace(c.Addr) != "" }

type KafkaConfig struct {
	Brokers []string `mapstructure:"brokers"`
	Topic   string   `mapstructure:"topic"`
}

// Enabled reports whether job completions should be published to kafka.
func (c KafkaConfig) Enabled() bool { return len(c.Brokers) > 0 }

// DB converts the database section to the pool configuration.
func (c DatabaseConfig) DB() db.Config {
	return db.Config{
		Host:            c.Host,
		Port:            c.Port,
		User:            c.User,
		Password:        c.Password,
		DBName:          c.DBName,
		SSLMode:         c.SSLMode,
		MaxConns:        c.MaxConns,
		MinConns:        c.MinConns,
		MaxConnLifetime: c.MaxConnLifetime,
		MaxConnIdleTime: c.MaxConnIdleTime,
	}
}

func setDefaults(v *viper.Viper) {
	dbDefaults := db.DefaultConfig()
	v.SetDefault("database.host", dbDefaults.Host)
	v.SetDefault("database.port", dbDefaults.Port)
	v.SetDefault("database.user", dbDefaults.User)
	v.SetDefault("database.password", dbDefaults.Password)
	v.SetDefault("database.dbname", dbDefaults.DBName)
	v.SetDefault("database.sslmode", dbDefaults.SSLMode)
	v.SetDefault("database.max_conns", dbDefaults.MaxConns)
	v.SetDefault("database.min_conns", dbDefaults.MinConns)
	v.SetDefault("database.max_conn_lifetime", dbDefaults.MaxConnLifetime)
	v.SetDefault("database.max_conn_idle_time", dbDefaults.MaxConnIdleTime)

	v.SetDefault("http.addr", ":8080")
	v.SetDefault("http.read_timeout", 15*time.Second)
	v.SetDefault("http.write_timeout", 60*time.Second)
	v.SetDefault("http.shutdown_timeout", 30*time.Second)
	v.SetDefault("http.allowed_origins", []string{"*"})

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
	v.SetDefault("log.file", "")

	v.SetDefault("aws.region", "eu-west-2")
	v.SetDefault("aws.endpoint", "")
	v.SetDefault("aws.use_path_style", false)

	v.SetDefault("register.max_errors", 10)
	v.SetDefault("register.max_line_length", 210)
	v.SetDefault("register.job_timeout", 30*time.Minute)

	v.SetDefault("export.destination", "file")
	v.SetDefault("export.bucket", "")
	v.SetDefault("export.directory", "exports")
	v.SetDefault("export.presign_expiry", 24*time.Hour)
	v.SetDefault("export.flush_bytes", 1<<20)

	v.SetDefault("redis.addr", "")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.channel", "register-jobs")

	v.SetDefault("kafka.brokers", []string{})
	v.SetDefault("kafka.topic", "register-jobs")
}

// Load reads config.yaml from configPath when present, then applies CAZ_* environment
// overrides (CAZ_DATABASE_HOST, CAZ_EXPORT_BUCKET, ...). A .env file in the working directory is
// loaded first if one exists.
func Load(configPath string) (Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	setDefaults(v)
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	if configPath != "" {
		v.AddConfigPath(configPath)
	}
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return Config{}, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("failed to decode config: %w", err)
	}
	// Comma separated lists arrive as one string from the environment.
	cfg.Kafka.Brokers = splitList(cfg.Kafka.Brokers)
	cfg.HTTP.AllowedOrigins = splitList(cfg.HTTP.AllowedOrigins)

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func splitList(values []string) []string {
	out := make([]string, 0, len(values))
	for _, value := range values {
		for _, part := range strings.Split(value, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}

// Validate reports every configuration problem at once.
func (c Config) Validate() error {
	var problems []string
	if c.Database.Host == "" {
		problems = append(problems, "database.host is required")
	}
	if c.Database.Port <= 0 {
		problems = append(problems, "database.port must be positive")
	}
	if c.HTTP.Addr == "" {
		problems = append(problems, "http.addr is required")
	}
	if c.Register.MaxErrors <= 0 {
		problems = append(problems, "register.max_errors must be positive")
	}
	if c.Register.MaxLineLength <= 0 {
		problems = append(problems, "register.max_line_length must be positive")
	}
	if c.Register.JobTimeout <= 0 {
		problems = append(problems, "register.job_timeout must be positive")
	}
	switch c.Export.Destination {
	case "s3":
		if c.Export.Bucket == "" {
			problems = append(problems, "export.bucket is required for the s3 destination")
		}
	case "file":
		if c.Export.Directory == "" {
			problems = append(problems, "export.directory is required for the file destination")
		}
	default:
		problems = append(problems, fmt.Sprintf("export.destination %q must be s3 or file", c.Export.Destination))
	}
	if c.Export.FlushBytes <= 0 {
		problems = append(problems, "export.flush_bytes must be positive")
	}
	if c.Kafka.Enabled() && c.Kafka.Topic == "" {
		problems = append(problems, "kafka.topic is required when brokers are set")
	}
	if c.Redis.Enabled() && c.Redis.Channel == "" {
		problems = append(problems, "redis.channel is required when addr is set")
	}
	if len(problems) == 0 {
		return nil
	}
	return fmt.Errorf("invalid configuration: %s", strings.Join(problems, "; "))
}
