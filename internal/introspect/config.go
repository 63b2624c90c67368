package introspect

import (
	"fmt"
	"net/url"
	"os"
	"sort"
	"strconv"
	"time"

	"github.com/go-viper/mapstructure/v2"
)

// Config holds connection settings for one introspected source.
// Parsed from the introspection.connections section of leapbi.yaml.
type Config struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	// Database overrides the source's database.
	Database string `mapstructure:"database"`
	// Options are driver parameters, e.g. sslmode or encrypt.
	Options map[string]string `mapstructure:"options"`
	// Timeout bounds a single discovery call.
	Timeout time.Duration `mapstructure:"timeout"`
}

// ConfigFromMap decodes a connection map. Numbers and durations may be given
// as strings.
func ConfigFromMap(m map[string]any) (Config, error) {
	var cfg Config
	if m == nil {
		return cfg, nil
	}
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		WeaklyTypedInput: true,
		ErrorUnused:      true,
		DecodeHook:       mapstructure.StringToTimeDurationHookFunc(),
		Result:           &cfg,
	})
	if err != nil {
		return cfg, err
	}
	if err := dec.Decode(m); err != nil {
		return cfg, fmt.Errorf("invalid introspection connection: %w", err)
	}
	return cfg, nil
}

// expand substitutes ${VAR} references in credentials.
func (c Config) expand() Config {
	c.Host = os.ExpandEnv(c.Host)
	c.User = os.ExpandEnv(c.User)
	c.Password = os.ExpandEnv(c.Password)
	c.Database = os.ExpandEnv(c.Database)
	return c
}

func (c Config) withDatabase(db string) Config {
	if c.Database == "" {
		c.Database = db
	}
	return c
}

// postgresDSN builds a key=value connection string for pgx.
func postgresDSN(cfg Config) string {
	host := cfg.Host
	if host == "" {
		host = "localhost"
	}
	port := cfg.Port
	if port == 0 {
		port = 5432
	}
	sslmode := "disable"
	if mode, ok := cfg.Options["sslmode"]; ok {
		sslmode = mode
	}

	dsn := fmt.Sprintf("host=%s port=%d dbname=%s sslmode=%s", host, port, cfg.Database, sslmode)
	if cfg.User != "" {
		dsn += fmt.Sprintf(" user=%s", cfg.User)
	}
	if cfg.Password != "" {
		dsn += fmt.Sprintf(" password=%s", cfg.Password)
	}
	return dsn
}

// sqlserverURL builds a sqlserver:// URL for go-mssqldb.
func sqlserverURL(cfg Config) string {
	host := cfg.Host
	if host == "" {
		host = "localhost"
	}
	port := cfg.Port
	if port == 0 {
		port = 1433
	}

	query := url.Values{}
	if cfg.Database != "" {
		query.Set("database", cfg.Database)
	}
	keys := make([]string, 0, len(cfg.Options))
	for k := range cfg.Options {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		query.Set(k, cfg.Options[k])
	}

	u := url.URL{
		Scheme:   "sqlserver",
		Host:     host + ":" + strconv.Itoa(port),
		RawQuery: query.Encode(),
	}
	if cfg.User != "" {
		u.User = url.UserPassword(cfg.User, cfg.Password)
	}
	return u.String()
}
