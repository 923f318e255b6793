package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server  ServerConfig  `mapstructure:"server"`
	DB      DBConfig      `mapstructure:"db"`
	JWT     JWTConfig     `mapstructure:"jwt"`
	Storage StorageConfig `mapstructure:"storage"`
	Shares  SharesConfig  `mapstructure:"shares"`
	Log     LogConfig     `mapstructure:"log"`
}

type ServerConfig struct {
	Addr           string        `mapstructure:"addr"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
	CORSOrigins    []string      `mapstructure:"cors_origins"`
}

type DBConfig struct {
	// Driver is "postgres" or "memory".
	Driver string `mapstructure:"driver"`
	Source string `mapstructure:"source"`
}

type JWTConfig struct {
	Secret string        `mapstructure:"secret"`
	TTL    time.Duration `mapstructure:"ttl"`
}

type StorageConfig struct {
	// Type is "local" or "s3".
	Type string   `mapstructure:"type"`
	Path string   `mapstructure:"path"`
	S3   S3Config `mapstructure:"s3"`
}

type S3Config struct {
	Endpoint       string `mapstructure:"endpoint"`
	Region         string `mapstructure:"region"`
	Bucket         string `mapstructure:"bucket"`
	AccessKey      string `mapstructure:"access_key"`
	SecretKey      string `mapstructure:"secret_key"`
	Prefix         string `mapstructure:"prefix"`
	ForcePathStyle bool   `mapstructure:"force_path_style"`
}

type SharesConfig struct {
	MaxFileBytes      int64    `mapstructure:"max_file_bytes"`
	MaxTextBytes      int64    `mapstructure:"max_text_bytes"`
	AllowedExtensions []string `mapstructure:"allowed_extensions"`
	MaxCodeAttempts   int      `mapstructure:"max_code_attempts"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

const MinSecretLength = 32

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.addr", ":8080")
	v.SetDefault("server.request_timeout", 60*time.Second)
	v.SetDefault("server.cors_origins", []string{"http://localhost:3000", "http://localhost:5173"})

	v.SetDefault("db.driver", "postgres")
	v.SetDefault("db.source", "")

	v.SetDefault("jwt.secret", "")
	v.SetDefault("jwt.ttl", 24*time.Hour)

	v.SetDefault("storage.type", "local")
	v.SetDefault("storage.path", "./data/uploads")
	v.SetDefault("storage.s3.endpoint", "")
	v.SetDefault("storage.s3.region", "us-east-1")
	v.SetDefault("storage.s3.bucket", "")
	v.SetDefault("storage.s3.access_key", "")
	v.SetDefault("storage.s3.secret_key", "")
	v.SetDefault("storage.s3.prefix", "")
	v.SetDefault("storage.s3.force_path_style", false)

	v.SetDefault("shares.max_file_bytes", int64(100<<20))
	v.SetDefault("shares.max_text_bytes", int64(1<<20))
	v.SetDefault("shares.allowed_extensions", []string{})
	v.SetDefault("shares.max_code_attempts", 5)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
}

// Load reads settings.yml from ./configs or /configs, or the file at path
// when it is not empty. Environment variables override file values, with
// dots replaced by underscores (JWT_SECRET, DB_SOURCE, ...).
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.AddConfigPath("./configs")
		v.AddConfigPath("/configs")
		v.SetConfigName("settings")
		v.SetConfigType("yml")
	}

	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) || path != "" {
			return nil, err
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	if len(c.JWT.Secret) < MinSecretLength {
		return fmt.Errorf("jwt.secret must be at least %d characters", MinSecretLength)
	}
	if c.JWT.TTL <= 0 {
		return errors.New("jwt.ttl must be positive")
	}

	switch c.DB.Driver {
	case "memory":
	case "postgres":
		if c.DB.Source == "" {
			return errors.New("db.source is required for the postgres driver")
		}
	default:
		return fmt.Errorf("unknown db.driver %q", c.DB.Driver)
	}

	switch c.Storage.Type {
	case "local":
		if c.Storage.Path == "" {
			return errors.New("storage.path is required for local storage")
		}
	case "s3":
		if c.Storage.S3.Bucket == "" {
			return errors.New("storage.s3.bucket is required for s3 storage")
		}
	default:
		return fmt.Errorf("unknown storage.type %q", c.Storage.Type)
	}

	if c.Shares.MaxFileBytes <= 0 || c.Shares.MaxTextBytes <= 0 {
		return errors.New("shares size limits must be positive")
	}
	if c.Shares.MaxCodeAttempts < 1 {
		return errors.New("shares.max_code_attempts must be at least 1")
	}
	return nil
}
