package config

import (
	"fmt"
	"time"
)

// Config holds all application configuration.
type Config struct {
	Server        Server        `mapstructure:"server"`
	Oracle        Oracle        `mapstructure:"oracle"`
	QA            QA            `mapstructure:"qa"`
	Database      Database      `mapstructure:"database"`
	Storage       Storage       `mapstructure:"storage"`
	Elasticsearch Elasticsearch `mapstructure:"elasticsearch"`
	Embeddings    Embeddings    `mapstructure:"embeddings"`
	MCP           MCP           `mapstructure:"mcp"`
	Watch         Watch         `mapstructure:"watch"`
	Log           Log           `mapstructure:"log"`
	Owner         string        `mapstructure:"owner"` // identity for CLI, MCP and watch
}

// Server holds HTTP API configuration.
type Server struct {
	Addr           string        `mapstructure:"addr"`
	UserHeader     string        `mapstructure:"user_header"`
	MaxUploadBytes int64         `mapstructure:"max_upload_bytes"`
	ReadTimeout    time.Duration `mapstructure:"read_timeout"`
	WriteTimeout   time.Duration `mapstructure:"write_timeout"`
}

// Oracle selects the language model that answers questions.
type Oracle struct {
	Provider   string        `mapstructure:"provider"` // anthropic, openai, dmr
	Model      string        `mapstructure:"model"` // empty selects the provider default
	APIKey     string        `mapstructure:"api_key"`
	BaseURL    string        `mapstructure:"base_url"`
	SocketPath string        `mapstructure:"socket_path"`
	Timeout    time.Duration `mapstructure:"timeout"`
}

// QA holds prompt limits.
type QA struct {
	MaxDocumentChars int `mapstructure:"max_document_chars"`
	MaxTokens        int `mapstructure:"max_tokens"`
}

// Database selects the metadata repository.
type Database struct {
	Driver string `mapstructure:"driver"` // sqlite, postgres
	Path   string `mapstructure:"path"`   // sqlite file
	URL    string `mapstructure:"url"`    // postgres connection string
}

// Storage holds S3/MinIO storage configuration.
type Storage struct {
	Endpoint        string `mapstructure:"endpoint"`
	Bucket          string `mapstructure:"bucket"`
	AccessKeyID     string `mapstructure:"access_key_id"`
	SecretAccessKey string `mapstructure:"secret_access_key"`
	UseSSL          bool   `mapstructure:"use_ssl"`
}

// Elasticsearch holds library search configuration.
type Elasticsearch struct {
	Enabled   bool     `mapstructure:"enabled"`
	Addresses []string `mapstructure:"addresses"`
	Index     string   `mapstructure:"index"`
	Username  string   `mapstructure:"username"`
	Password  string   `mapstructure:"password"`
}

// Embeddings holds embeddings generation configuration.
type Embeddings struct {
	Enabled    bool   `mapstructure:"enabled"`
	SocketPath string `mapstructure:"socket_path"`
	Model      string `mapstructure:"model"`
}

// MCP holds MCP server configuration.
type MCP struct {
	Name    string `mapstructure:"name"`
	Version string `mapstructure:"version"`
}

// Watch holds directory watcher configuration.
type Watch struct {
	Dir      string        `mapstructure:"dir"`
	Debounce time.Duration `mapstructure:"debounce"`
}

// Log holds logging configuration.
type Log struct {
	Format string `mapstructure:"format"` // text, json
}

// Defaults returns a Config with sensible default values.
func Defaults() Config {
	return Config{
		Server: Server{
			Addr:           ":8080",
			UserHeader:     "X-User-ID",
			MaxUploadBytes: 200 << 20,
			ReadTimeout:    5 * time.Minute, // large uploads
			WriteTimeout:   5 * time.Minute, // one oracle round trip
		},
		Oracle: Oracle{
			Provider: "anthropic",
			Timeout:  2 * time.Minute,
		},
		QA: QA{
			MaxDocumentChars: 100000,
			MaxTokens:        4096,
		},
		Database: Database{
			Driver: "sqlite",
			Path:   "data/citedoc.db",
		},
		Storage: Storage{
			Endpoint:        "localhost:9000",
			Bucket:          "citedoc",
			AccessKeyID:     "minioadmin",
			SecretAccessKey: "minioadmin",
			UseSSL:          false,
		},
		Elasticsearch: Elasticsearch{
			Enabled:   false,
			Addresses: []string{"http://localhost:9200"},
			Index:     "citedoc-documents",
		},
		Embeddings: Embeddings{
			Enabled:    false, // Disabled by default, requires DMR setup
			SocketPath: "",    // User must provide their Docker socket path
			Model:      "ai/embeddinggemma",
		},
		MCP: MCP{
			Name:    "citedoc",
			Version: "1.0.0",
		},
		Watch: Watch{
			Debounce: 2 * time.Second,
		},
		Log: Log{
			Format: "text",
		},
		Owner: "local",
	}
}

// Validate reports configuration that cannot work.
func (c Config) Validate() error {
	switch c.Oracle.Provider {
	case "anthropic", "openai", "":
	case "dmr":
		if c.Oracle.SocketPath == "" {
			return fmt.Errorf("oracle.socket_path is required for the dmr provider")
		}
	default:
		return fmt.Errorf("unknown oracle.provider %q", c.Oracle.Provider)
	}

	switch c.Database.Driver {
	case "sqlite":
		if c.Database.Path == "" {
			return fmt.Errorf("database.path is required for sqlite")
		}
	case "postgres":
		if c.Database.URL == "" {
			return fmt.Errorf("database.url is required for postgres")
		}
	default:
		return fmt.Errorf("unknown database.driver %q", c.Database.Driver)
	}

	if c.Server.MaxUploadBytes <= 0 {
		return fmt.Errorf("server.max_upload_bytes must be positive")
	}
	if c.QA.MaxTokens <= 0 {
		return fmt.Errorf("qa.max_tokens must be positive")
	}
	if c.Embeddings.Enabled && c.Embeddings.SocketPath == "" {
		return fmt.Errorf("embeddings.socket_path is required when embeddings are enabled")
	}
	if c.Log.Format != "text" && c.Log.Format != "json" {
		return fmt.Errorf("unknown log.format %q", c.Log.Format)
	}
	return nil
}
