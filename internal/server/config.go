package server

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"os"
	"strings"

	"github.com/spf13/pflag"
)

const (
	SourceCSV      = "csv"
	SourcePostgres = "postgres"
)

// Config is the runtime configuration of the HTTP service. Values come from
// the environment first and command-line flags override them.
type Config struct {
	Addr          string
	Source        string
	DataDir       string
	DatabaseURL   string
	AllowlistPath string
	LogLevel      string
	LogFormat     string
}

func ConfigFromEnv() Config {
	addr := getenvDefault("HTTP_ADDR", "")
	if addr == "" {
		addr = net.JoinHostPort(getenvDefault("SERVER_HOST", "127.0.0.1"), getenvDefault("SERVER_PORT", "8080"))
	}
	return Config{
		Addr:          addr,
		Source:        strings.ToLower(getenvDefault("ORGCHART_SOURCE", SourceCSV)),
		DataDir:       getenvDefault("ORGCHART_DATA_DIR", "./data"),
		DatabaseURL:   databaseURLFromEnv(),
		AllowlistPath: getenvDefault("ALLOWLIST_PATH", ""),
		LogLevel:      getenvDefault("LOG_LEVEL", "info"),
		LogFormat:     getenvDefault("LOG_FORMAT", "text"),
	}
}

// BindFlags registers flags whose defaults are the current values of c.
func (c *Config) BindFlags(fs *pflag.FlagSet) {
	fs.StringVar(&c.Addr, "addr", c.Addr, "listen address (host:port)")
	fs.StringVar(&c.Source, "source", c.Source, "record source: csv or postgres")
	fs.StringVar(&c.DataDir, "data-dir", c.DataDir, "directory holding Mailboxes.csv and Departments.csv")
	fs.StringVar(&c.LogLevel, "log-level", c.LogLevel, "log level")
	fs.StringVar(&c.LogFormat, "log-format", c.LogFormat, "log format: text or json")
}

func (c Config) Validate() error {
	if strings.TrimSpace(c.Addr) == "" {
		return errors.New("server: empty listen address")
	}
	switch c.Source {
	case SourceCSV:
		if strings.TrimSpace(c.DataDir) == "" {
			return errors.New("server: csv source needs a data dir")
		}
	case SourcePostgres:
	default:
		return fmt.Errorf("server: unknown source %q", c.Source)
	}
	switch c.LogFormat {
	case "text", "json":
	default:
		return fmt.Errorf("server: unknown log format %q", c.LogFormat)
	}
	return nil
}

// databaseURLFromEnv prefers DATABASE_URL and otherwise assembles a
// postgres URL from the DB_* parts.
func databaseURLFromEnv() string {
	if v := os.Getenv("DATABASE_URL"); v != "" {
		return v
	}
	u := &url.URL{
		Scheme: "postgres",
		User:   url.UserPassword(getenvDefault("DB_USER", "app"), getenvDefault("DB_PASSWORD", "app")),
		Host:   net.JoinHostPort(getenvDefault("DB_HOST", "127.0.0.1"), getenvDefault("DB_PORT", "5432")),
		Path:   "/" + getenvDefault("DB_NAME", "orgchart"),
	}
	u.RawQuery = url.Values{"sslmode": {getenvDefault("DB_SSLMODE", "disable")}}.Encode()
	return u.String()
}

func getenvDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
