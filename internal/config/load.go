package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// EnvPrefix is prepended to every environment override (bench.amount is
// read from DBBENCH_BENCH_AMOUNT).
const EnvPrefix = "DBBENCH"

// DefaultConfigFile is read when present and no --config flag is given.
const DefaultConfigFile = "dbbench.yaml"

// ErrMissingDSN is returned when a networked backend is selected but no
// connection string is configured.
var ErrMissingDSN = errors.New("postgres connection string is not set (POSTGRES_URL or DBBENCH_POSTGRES_URL)")

// Load initializes the configuration from .env, the config file and
// environment variables. A missing default config file is not an error; a
// missing or unreadable explicit one is.
func Load(cfgFile string) error {
	// .env is optional
	_ = godotenv.Load()

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.AddConfigPath(".")
		viper.SetConfigType("yaml")
		viper.SetConfigName(strings.TrimSuffix(DefaultConfigFile, ".yaml"))
	}

	viper.SetEnvPrefix(EnvPrefix)
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	SetDefaults()

	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if cfgFile != "" || !errors.As(err, &notFound) {
			return fmt.Errorf("failed to read config file: %w", err)
		}
	} else {
		slog.Debug("using config file", "path", viper.ConfigFileUsed())
	}
	return nil
}

// SetDefaults registers every default value with viper.
func SetDefaults() {
	viper.SetDefault("verbose", false)
	viper.SetDefault("log_file", "")
	viper.SetDefault("metrics_file", "")
	viper.SetDefault("metrics_addr", "")

	// A bare POSTGRES_URL is honoured when the prefixed variable is unset.
	if os.Getenv(EnvPrefix+"_POSTGRES_URL") == "" && os.Getenv("POSTGRES_URL") != "" {
		viper.SetDefault("postgres_url", os.Getenv("POSTGRES_URL"))
	} else {
		viper.SetDefault("postgres_url", "")
	}
	viper.SetDefault("sqlite_dsn", ":memory:")

	// 0 selects the suite's own amount.
	viper.SetDefault("bench.amount", 0)
	viper.SetDefault("bench.width", 20)
	viper.SetDefault("bench.read_limit", 10)
	viper.SetDefault("bench.history_file", ".dbbench/history.json")
	viper.SetDefault("bench.threshold", 10.0)

	viper.SetDefault("profile.mode", "off")
	viper.SetDefault("profile.dir", ".")
	viper.SetDefault("profile.format", "folded")

	viper.SetDefault("histogram.file", "movie_dataset.csv")
	viper.SetDefault("histogram.column", "vote_count")
	viper.SetDefault("histogram.scale", 20)
	viper.SetDefault("histogram.bounds", "")
}

// PostgresURL returns the configured networked DSN or ErrMissingDSN.
func PostgresURL() (string, error) {
	dsn := strings.TrimSpace(viper.GetString("postgres_url"))
	if dsn == "" {
		return "", ErrMissingDSN
	}
	return dsn, nil
}
