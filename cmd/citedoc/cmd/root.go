package cmd

import (
	"log/slog"
	"os"
	"strings"

	"github.com/mfenderov/citedoc/internal/config"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	cfgFile string
	verbose bool
	cfg     config.Config
)

// envKeys are the nested keys that can be set from CITEDOC_* variables.
var envKeys = []string{
	"server.addr",
	"server.user_header",
	"server.max_upload_bytes",
	"oracle.provider",
	"oracle.model",
	"oracle.api_key",
	"oracle.base_url",
	"oracle.socket_path",
	"oracle.timeout",
	"qa.max_document_chars",
	"qa.max_tokens",
	"database.driver",
	"database.path",
	"database.url",
	"storage.endpoint",
	"storage.bucket",
	"storage.access_key_id",
	"storage.secret_access_key",
	"storage.use_ssl",
	"elasticsearch.enabled",
	"elasticsearch.index",
	"elasticsearch.username",
	"elasticsearch.password",
	"embeddings.enabled",
	"embeddings.socket_path",
	"embeddings.model",
	"mcp.name",
	"mcp.version",
	"watch.dir",
	"watch.debounce",
	"log.format",
	"owner",
}

// GetConfig returns the loaded configuration.
func GetConfig() config.Config {
	return cfg
}

var rootCmd = &cobra.Command{
	Use:   "citedoc",
	Short: "citedoc: question answering over your documents, with citations",
	Long: `citedoc stores PDF and Word documents, summarizes them, and answers
questions about them with citations pointing back into the source pages.

Commands:
  serve    Start the HTTP API
  mcp      Start the MCP server on stdio
  upload   Upload documents and print their summaries
  ask      Ask a question about a document
  read     Open a document in the terminal reader
  watch    Upload documents as they appear in a directory`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return cfg.Validate()
	},
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig, initLogger)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./config/config.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose logging")
}

func initLogger() {
	level := slog.LevelWarn
	if verbose {
		level = slog.LevelDebug
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler = slog.NewTextHandler(os.Stderr, opts)
	if cfg.Log.Format == "json" {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	}
	slog.SetDefault(slog.New(handler))
}

func initConfig() {
	cfg = config.Defaults()

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
		viper.AddConfigPath("./config")
		viper.AddConfigPath("/etc/citedoc")
		viper.AddConfigPath(".")
	}

	// CITEDOC_STORAGE_ENDPOINT -> storage.endpoint
	viper.SetEnvPrefix("CITEDOC")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()
	for _, key := range envKeys {
		viper.BindEnv(key)
	}

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			slog.Warn("config file error", "error", err)
		}
	}

	if err := viper.Unmarshal(&cfg); err != nil {
		slog.Warn("failed to parse config", "error", err)
	}

	if addrs := os.Getenv("CITEDOC_ELASTICSEARCH_ADDRESSES"); addrs != "" {
		cfg.Elasticsearch.Addresses = strings.Split(addrs, ",")
	}
	if cfg.Oracle.APIKey == "" {
		cfg.Oracle.APIKey = providerKeyFromEnv(cfg.Oracle.Provider)
	}
}

// providerKeyFromEnv falls back to the provider's conventional variable.
func providerKeyFromEnv(provider string) string {
	switch provider {
	case "openai":
		return os.Getenv("OPENAI_API_KEY")
	case "anthropic", "":
		return os.Getenv("ANTHROPIC_API_KEY")
	}
	return ""
}
