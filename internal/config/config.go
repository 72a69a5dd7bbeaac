package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/openixwty/imagewty/internal/utils/fsutil"
	"github.com/openixwty/imagewty/internal/utils/osutil"
	"github.com/spf13/viper"
)

const (
	// AppName is the application name used for config files and directories.
	AppName = "imagewty"

	// EnvPrefix is the prefix for environment variables.
	EnvPrefix = "IMAGEWTY"
)

// AppConfig holds the application configuration.
type AppConfig struct {
	// Core settings
	Debug     bool   `mapstructure:"debug"`
	LogFormat string `mapstructure:"log_format"`
	LogFile   string `mapstructure:"log_file"`

	// Unpack settings
	Unpack struct {
		DefaultFormat string `mapstructure:"default_format"` // "unimg" or "imgrepacker"
		OutputDir     string `mapstructure:"output_dir"`
		Archive       string `mapstructure:"archive"` // "", "tar.gz", "tar.bz2", "tar.xz"
	} `mapstructure:"unpack"`

	// Pack settings
	Pack struct {
		TempDir      string `mapstructure:"temp_dir"`
		NoEncrypt    bool   `mapstructure:"no_encrypt"`
	} `mapstructure:"pack"`

	// Scan (VirusTotal) settings
	Scan struct {
		Enabled bool   `mapstructure:"enabled"`
		APIKey  string `mapstructure:"api_key"`
	} `mapstructure:"scan"`
}

var (
	// Instance is the global configuration instance.
	Instance AppConfig

	// ConfigLoaded reports whether a config file was found and read.
	ConfigLoaded bool
	// ConfigFile holds the path of the config file actually used, if any.
	ConfigFile string

	v        *viper.Viper
	initOnce sync.Once
)

// Initialize sets up the configuration system. Safe to call multiple
// times; only the first call takes effect.
func Initialize(cfgFile string) error {
	var err error

	initOnce.Do(func() {
		v = viper.New()
		setDefaults(v)

		if cfgFile != "" {
			v.SetConfigFile(cfgFile)
		} else {
			v.SetConfigName(AppName)
			v.SetConfigType("yaml")
			addSearchPaths(v)
		}

		v.SetEnvPrefix(EnvPrefix)
		v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
		v.AutomaticEnv()

		if readErr := v.ReadInConfig(); readErr != nil {
			if _, ok := readErr.(viper.ConfigFileNotFoundError); !ok {
				err = fmt.Errorf("error reading config file: %w", readErr)
			}
			ConfigLoaded = false
			ConfigFile = ""
		} else {
			ConfigLoaded = true
			ConfigFile = v.ConfigFileUsed()
		}

		if unmarshalErr := v.Unmarshal(&Instance); unmarshalErr != nil {
			err = fmt.Errorf("error parsing config: %w", unmarshalErr)
			return
		}

		ensureDirectories()
	})

	return err
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("debug", false)
	v.SetDefault("log_format", "human")

	logDir, err := fsutil.GetLogDir(AppName)
	if err == nil {
		v.SetDefault("log_file", filepath.Join(logDir, "imagewty.log"))
	} else {
		v.SetDefault("log_file", "logs/imagewty.log")
	}

	v.SetDefault("unpack.default_format", "unimg")
	v.SetDefault("unpack.output_dir", "")
	v.SetDefault("unpack.archive", "")

	tempDir, err := fsutil.GetTempDir(AppName)
	if err == nil {
		v.SetDefault("pack.temp_dir", tempDir)
	} else {
		v.SetDefault("pack.temp_dir", "temp")
	}
	v.SetDefault("pack.no_encrypt", false)

	v.SetDefault("scan.enabled", false)
	v.SetDefault("scan.api_key", "")
}

func addSearchPaths(v *viper.Viper) {
	v.AddConfigPath(".")

	if osutil.IsDevEnvironment() {
		configDir, err := fsutil.GetConfigDir(AppName)
		if err == nil {
			v.AddConfigPath(configDir)
		}
		return
	}

	if isRunningInPipeline() {
		v.AddConfigPath("/etc/" + AppName)
		return
	}

	configDir, err := fsutil.GetConfigDir(AppName)
	if err == nil {
		v.AddConfigPath(configDir)
	}

	systemConfigDir, err := fsutil.GetSystemConfigDir(AppName)
	if err == nil {
		v.AddConfigPath(systemConfigDir)
	}
}

func ensureDirectories() {
	if isRunningInPipeline() && os.Getenv("CREATE_DIRS") != "true" {
		return
	}

	if Instance.LogFile != "" {
		logDir := filepath.Dir(Instance.LogFile)
		_ = fsutil.CreateDirIfNotExists(logDir)
	}

	if Instance.Pack.TempDir != "" {
		_ = fsutil.CreateDirIfNotExists(Instance.Pack.TempDir)
	}
}

func isRunningInPipeline() bool {
	return os.Getenv("CI") == "true" ||
		os.Getenv("PIPELINE") == "true" ||
		os.Getenv("GITHUB_ACTIONS") == "true" ||
		os.Getenv("JENKINS_URL") != ""
}
