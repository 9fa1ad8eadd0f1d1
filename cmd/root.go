package cmd

import (
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/spigell/liqa/internal/logger"
)

const (
	app            = "liqa"
	envPrefix      = "LIQA"
	defaultHostURL = "https://www.linkedin.com/talent/"
)

type Config struct {
	HostURL     string         `mapstructure:"host-url"`
	MetricsAddr string         `mapstructure:"metrics-addr"`
	Storage     *StorageConfig `mapstructure:"storage"`
	AI          *AIConfig      `mapstructure:"ai"`
	Browser     *BrowserConfig `mapstructure:"browser"`
}

type StorageConfig struct {
	Backend     string `mapstructure:"backend"`
	Dir         string `mapstructure:"dir"`
	PostgresURL string `mapstructure:"postgres-url"`
}

type AIConfig struct {
	Provider     string `mapstructure:"provider"`
	BaseURL      string `mapstructure:"base-url"`
	APIKeyFile   string `mapstructure:"api-key-file"`
	MaxRetries   int    `mapstructure:"max-retries"`
	MaxLogLength int    `mapstructure:"max-log-length"`
	Gemini       *struct {
		Model string `mapstructure:"model"`
	} `mapstructure:"gemini"`
}

type BrowserConfig struct {
	Headless    bool   `mapstructure:"headless"`
	UserDataDir string `mapstructure:"user-data-dir"`
	ExecPath    string `mapstructure:"exec-path"`
}

var (
	// Used for flags.
	cfgFile string

	rootCmd = &cobra.Command{
		Use:           app,
		Short:         "liqa adds keyboard navigation and AI candidate scoring to LinkedIn Recruiter",
		SilenceUsage:  true,
		SilenceErrors: false,
	}
)

// Execute executes the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "a config file (default is liqa.yaml in current directory)")
	rootCmd.PersistentFlags().BoolP("debug", "d", false, "verbose/debug output")
	rootCmd.PersistentFlags().BoolP("json", "j", false, "json format for logging")
	rootCmd.PersistentFlags().String("storage-dir", "", "directory of the file storage backend")

	viper.BindPFlag("debug", rootCmd.PersistentFlags().Lookup("debug"))
	viper.BindPFlag("json", rootCmd.PersistentFlags().Lookup("json"))
	viper.BindPFlag("storage.dir", rootCmd.PersistentFlags().Lookup("storage-dir"))

	viper.SetDefault("host-url", defaultHostURL)
	viper.SetDefault("storage.backend", "file")
	viper.SetDefault("storage.dir", defaultStorageDir())
	viper.SetDefault("ai.provider", "openai")
	viper.SetDefault("ai.max-retries", 2)
	viper.SetDefault("ai.max-log-length", 200)
	viper.SetDefault("browser.headless", false)
}

func initConfig() {
	// .env is optional
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Printf("loading .env: %v", err)
	}

	viper.SetEnvPrefix(envPrefix)
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	viper.AutomaticEnv()

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.AddConfigPath(".")
		viper.SetConfigName(app)
		viper.SetConfigType("yaml")
	}

	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		// Without an explicit file the defaults are enough.
		if cfgFile != "" || !errors.As(err, &notFound) {
			log.Fatal(err)
		}
	}
}

func getConfig() (*Config, error) {
	var config *Config
	err := viper.Unmarshal(&config)
	if err != nil {
		return config, err
	}

	if config == nil {
		return nil, errors.New("empty configuration")
	}
	if config.Storage == nil {
		config.Storage = &StorageConfig{}
	}
	if config.AI == nil {
		config.AI = &AIConfig{}
	}
	if config.Browser == nil {
		config.Browser = &BrowserConfig{}
	}

	return config, nil
}

func newLogger() (*zap.Logger, error) {
	l, err := logger.New(viper.GetBool("json"), viper.GetBool("debug"))
	if err != nil {
		return nil, fmt.Errorf("creating a logger: %w", err)
	}
	return l, nil
}

func defaultStorageDir() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "." + app
	}
	return filepath.Join(dir, app)
}
