package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
)

const (
	// ConfigName file name, without extension, looked up in the config dir
	ConfigName = "0chain_assembler"

	StorageDisk  = "disk"
	StorageMinio = "minio"

	MB = 1024 * 1024
)

// SetupDefaultConfig - setup the default config options that can be overridden via the config file
func SetupDefaultConfig() {
	viper.SetDefault("logging.level", "info")
	viper.SetDefault("logging.console", false)

	viper.SetDefault("port", 5000)

	viper.SetDefault("storage.backend", StorageDisk)
	viper.SetDefault("storage.base_dir", "./uploads")
	viper.SetDefault("storage.temp_dir", "temp")
	viper.SetDefault("storage.disk_update_interval", time.Minute)

	viper.SetDefault("minio.use_ssl", false)
	viper.SetDefault("minio.bucket", "assembler")
	viper.SetDefault("minio.region", "us-east-1")

	viper.SetDefault("upload.max_file_size", 50*MB)
	viper.SetDefault("upload.allowed_file_types", []string{"png", "jpg", "jpeg", "tiff", "pdf"})
	viper.SetDefault("upload.max_file_id_length", 120)

	viper.SetDefault("retired.size", 10000)
	viper.SetDefault("retired.ttl", 24*time.Hour)

	viper.SetDefault("lock_cleaner.frequency", 10*time.Minute)
	viper.SetDefault("lock_cleaner.idle", 30*time.Minute)

	viper.SetDefault("stale_cleaner.frequency", 10*time.Minute)
	viper.SetDefault("stale_cleaner.tolerance", 24*time.Hour)
	viper.SetDefault("stale_cleaner.num_workers", 5)

	viper.SetDefault("rate_limiters.upload_rps", 50)
	viper.SetDefault("rate_limiters.general_rps", 10)
	viper.SetDefault("rate_limiters.proxy", false)
	viper.SetDefault("rate_limiters.default_token_expire_duration", 5*time.Minute)

	viper.SetDefault("server.read_timeout", 60*time.Second)
}

/*SetupConfig - setup the configuration system */
func SetupConfig(configPath string) {
	replacer := strings.NewReplacer(".", "_")
	viper.SetEnvKeyReplacer(replacer)
	viper.AutomaticEnv()
	viper.SetConfigName(ConfigName)

	if configPath == "" {
		viper.AddConfigPath("./config")
	} else {
		viper.AddConfigPath(configPath)
	}

	err := viper.ReadInConfig() // Find and read the config file
	var notFound viper.ConfigFileNotFoundError
	if err != nil && !errors.As(err, &notFound) { // Handle errors reading the config file
		panic(fmt.Errorf("fatal error config file: %s", err))
	}
}

// ReadConfig decodes viper settings into Configuration.
func ReadConfig(deploymentMode int) error {
	var c Config
	err := viper.Unmarshal(&c, viper.DecodeHook(mapstructure.ComposeDecodeHookFunc(
		mapstructure.StringToTimeDurationHookFunc(),
		mapstructure.StringToSliceHookFunc(","),
	)))
	if err != nil {
		return fmt.Errorf("decode config: %w", err)
	}
	c.DeploymentMode = byte(deploymentMode)

	if err := c.Validate(); err != nil {
		return err
	}

	Configuration = c
	return nil
}

const (
	DeploymentDevelopment = 0
	DeploymentTestNet     = 1
	DeploymentMainNet     = 2
)

type StorageConfig struct {
	Backend string `mapstructure:"backend"`
	// BaseDir holds merged artifacts; TempDir, relative to it, holds staged chunks
	BaseDir            string        `mapstructure:"base_dir"`
	TempDir            string        `mapstructure:"temp_dir"`
	DiskUpdateInterval time.Duration `mapstructure:"disk_update_interval"`
}

type MinioConfig struct {
	StorageURL string `mapstructure:"storage_url"`
	AccessID   string `mapstructure:"access_id"`
	SecretKey  string `mapstructure:"secret_key" json:"-"`
	Bucket     string `mapstructure:"bucket"`
	Region     string `mapstructure:"region"`
	UseSSL     bool   `mapstructure:"use_ssl"`
}

type UploadConfig struct {
	MaxFileSize      int64    `mapstructure:"max_file_size"`
	AllowedFileTypes []string `mapstructure:"allowed_file_types"`
	MaxFileIDLength  int      `mapstructure:"max_file_id_length"`
}

type RetiredConfig struct {
	Size int           `mapstructure:"size"`
	TTL  time.Duration `mapstructure:"ttl"`
}

type LockCleanerConfig struct {
	Frequency time.Duration `mapstructure:"frequency"`
	Idle      time.Duration `mapstructure:"idle"`
}

type StaleCleanerConfig struct {
	Frequency  time.Duration `mapstructure:"frequency"`
	Tolerance  time.Duration `mapstructure:"tolerance"`
	NumWorkers int           `mapstructure:"num_workers"`
}

type RateLimitersConfig struct {
	UploadRPS                  float64       `mapstructure:"upload_rps"`
	GeneralRPS                 float64       `mapstructure:"general_rps"`
	Proxy                      bool          `mapstructure:"proxy"`
	DefaultTokenExpireDuration time.Duration `mapstructure:"default_token_expire_duration"`
}

type ServerConfig struct {
	ReadTimeout time.Duration `mapstructure:"read_timeout"`
}

type Config struct {
	DeploymentMode byte `mapstructure:"-"`
	Port           int  `mapstructure:"port"`

	Storage      StorageConfig      `mapstructure:"storage"`
	Minio        MinioConfig        `mapstructure:"minio"`
	Upload       UploadConfig       `mapstructure:"upload"`
	Retired      RetiredConfig      `mapstructure:"retired"`
	LockCleaner  LockCleanerConfig  `mapstructure:"lock_cleaner"`
	StaleCleaner StaleCleanerConfig `mapstructure:"stale_cleaner"`
	RateLimiters RateLimitersConfig `mapstructure:"rate_limiters"`
	Server       ServerConfig       `mapstructure:"server"`
}

// Validate rejects settings the service cannot start with.
func (c *Config) Validate() error {
	switch c.Storage.Backend {
	case StorageDisk:
		if c.Storage.BaseDir == "" {
			return errors.New("storage.base_dir is required for the disk backend")
		}
	case StorageMinio:
		if c.Minio.StorageURL == "" || c.Minio.Bucket == "" {
			return errors.New("minio.storage_url and minio.bucket are required for the minio backend")
		}
	default:
		return fmt.Errorf("unknown storage.backend %q", c.Storage.Backend)
	}
	if c.Storage.TempDir == "" {
		return errors.New("storage.temp_dir must not be empty")
	}
	if c.Upload.MaxFileSize <= 0 {
		return errors.New("upload.max_file_size must be positive")
	}
	if c.Upload.MaxFileIDLength <= 0 {
		return errors.New("upload.max_file_id_length must be positive")
	}
	if c.StaleCleaner.NumWorkers <= 0 {
		c.StaleCleaner.NumWorkers = 1
	}
	return nil
}

/*Configuration of the system */
var Configuration Config

/*TestNet is the program running in TestNet mode? */
func TestNet() bool {
	return Configuration.DeploymentMode == DeploymentTestNet
}

/*Development - is the programming running in development mode? */
func Development() bool {
	return Configuration.DeploymentMode == DeploymentDevelopment
}
