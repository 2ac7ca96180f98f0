package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/ppiankov/sixc/internal/logging"
	"github.com/ppiankov/sixc/internal/model"
)

const version = "0.1.0"

var (
	cfgFile   string
	verbose   bool
	logFormat string
	logLevel  string
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "sixc",
	Short: "sixc - footnote recovery & corroboration scoring for long documents (non-normative)",
	Long: `sixc reads the extracted pages of a long report, rebuilds its footnote
apparatus and scores how well each attributed claim is corroborated by the
sources it cites.

Missing footnotes are recovered from neighbouring pages or, when configured,
from a text-resolution oracle. Every recovered text must be proven on the page
before it is kept.

It does not determine whether a claim is true. Scores describe support,
independence and agreement of the cited evidence, nothing more.`,
	SilenceErrors: true,
	SilenceUsage:  true,
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

// versionCmd represents the version command
var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Long:  `Display the version number of sixc.`,
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "sixc v%s\n", version)
	},
}

func init() {
	cobra.OnInitialize(initConfig)

	// Global flags
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: $HOME/.sixc/config.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output and debug logging")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "console", "log format (console, json)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level (debug, info, warn, error)")

	_ = viper.BindPFlag("output.verbose", rootCmd.PersistentFlags().Lookup("verbose"))

	rootCmd.AddCommand(versionCmd)
}

// initConfig reads in config file and ENV variables
func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error finding home directory: %v\n", err)
			return
		}
		viper.AddConfigPath(filepath.Join(home, ".sixc"))
		viper.SetConfigType("yaml")
		viper.SetConfigName("config")
	}

	// SIXC_ORACLE_MODEL overrides oracle.model
	viper.SetEnvPrefix("SIXC")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()
	_ = viper.BindEnv("oracle.provider")
	_ = viper.BindEnv("oracle.model")
	_ = viper.BindEnv("search.provider")
	_ = viper.BindEnv("search.base_url")
	_ = viper.BindEnv("cache.backend")
	_ = viper.BindEnv("cache.redis_addr")

	if err := viper.ReadInConfig(); err == nil && verbose {
		fmt.Fprintf(os.Stderr, "Using config file: %s\n", viper.ConfigFileUsed())
	}
}

// loadConfig layers the config file and SIXC_* env over the defaults
func loadConfig() (model.Config, error) {
	cfg := model.DefaultConfig()
	if err := viper.Unmarshal(&cfg); err != nil {
		return cfg, fmt.Errorf("decode config: %w", err)
	}
	cfg.Output.Verbose = cfg.Output.Verbose || verbose
	return cfg, nil
}

// newLogger builds the process logger from the global flags
func newLogger() (*zap.Logger, error) {
	level := logLevel
	if verbose {
		level = "debug"
	}
	return logging.New(level, logFormat)
}

// applyOracleEnv fills provider credentials from the conventional env vars
func applyOracleEnv(cfg *model.OracleConfig) error {
	switch cfg.Provider {
	case "":
		return nil
	case "openai":
		if key := os.Getenv("OPENAI_API_KEY"); key != "" {
			cfg.APIKey = key
		}
		if cfg.APIKey == "" {
			return fmt.Errorf("OPENAI_API_KEY environment variable not set")
		}
	case "anthropic", "claude":
		cfg.Provider = "anthropic"
		if key := os.Getenv("ANTHROPIC_API_KEY"); key != "" {
			cfg.APIKey = key
		}
		if cfg.APIKey == "" {
			return fmt.Errorf("ANTHROPIC_API_KEY environment variable not set")
		}
	case "ollama":
		if baseURL := os.Getenv("OLLAMA_BASE_URL"); baseURL != "" {
			cfg.BaseURL = baseURL
		}
	default:
		return fmt.Errorf("unknown oracle provider: %s (supported: openai, anthropic, ollama)", cfg.Provider)
	}
	return nil
}
