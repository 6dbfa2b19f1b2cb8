package device

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/viper"

	"github.com/deploymenttheory/go-squashfs/internal/types"
)

// Config holds configuration for opening archive images
type Config struct {
	AutoDetectOffset bool   `mapstructure:"auto_detect_offset"`
	DefaultOffset    int64  `mapstructure:"default_offset"`
	CacheEnabled     bool   `mapstructure:"cache_enabled"`
	CacheSize        int    `mapstructure:"cache_size"`
	CompressorFlags  uint16 `mapstructure:"compressor_flags"`
	TestDataPath     string `mapstructure:"test_data_path"`
}

// DefaultConfig returns the configuration used when no file or environment overrides exist
func DefaultConfig() *Config {
	return &Config{
		AutoDetectOffset: true,
		DefaultOffset:    0,
		CacheEnabled:     true,
		CacheSize:        16,
		CompressorFlags:  uint16(types.CompFlagUncompress),
		TestDataPath:     "./testdata",
	}
}

// LoadConfig loads image configuration using Viper
func LoadConfig() (*Config, error) {
	return LoadConfigFile("")
}

// LoadConfigFile loads image configuration from an explicit file. An empty
// path searches the default locations, where a missing file is not an error.
func LoadConfigFile(path string) (*Config, error) {
	v := viper.New()
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("squashfs-config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
		v.AddConfigPath("$HOME/.squashfs")
		v.AddConfigPath("/etc/squashfs")
	}

	defaults := DefaultConfig()
	v.SetDefault("auto_detect_offset", defaults.AutoDetectOffset)
	v.SetDefault("default_offset", defaults.DefaultOffset)
	v.SetDefault("cache_enabled", defaults.CacheEnabled)
	v.SetDefault("cache_size", defaults.CacheSize)
	v.SetDefault("compressor_flags", defaults.CompressorFlags)
	v.SetDefault("test_data_path", defaults.TestDataPath)

	// SQUASHFS_CACHE_SIZE and friends override the file
	v.SetEnvPrefix("SQUASHFS")
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok || path != "" {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}
	if config.CacheSize < 0 {
		return nil, fmt.Errorf("invalid cache_size %d: must not be negative", config.CacheSize)
	}
	if config.DefaultOffset < 0 {
		return nil, fmt.Errorf("invalid default_offset %d: must not be negative", config.DefaultOffset)
	}

	return &config, nil
}

// TestImagePath returns a path to a test image based on configuration
func TestImagePath(filename string, config *Config) string {
	return filepath.Join(config.TestDataPath, filename)
}
