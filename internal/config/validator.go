package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

var (
	profileModes   = []string{"off", "run", "operation"}
	profileFormats = []string{"folded", "pprof"}
)

// Validate checks configuration values and returns a single error listing
// every problem found. It must be called after Load.
func Validate() error {
	var errors []string

	positive := func(key string) {
		if v := viper.GetInt(key); v <= 0 {
			errors = append(errors, fmt.Sprintf("%s must be positive, got: %d", key, v))
		}
	}
	positive("bench.width")
	positive("bench.read_limit")
	positive("histogram.scale")

	if v := viper.GetInt("bench.amount"); v < 0 {
		errors = append(errors, fmt.Sprintf("bench.amount must not be negative, got: %d", v))
	}

	if v := viper.GetFloat64("bench.threshold"); v < 0 {
		errors = append(errors, fmt.Sprintf("bench.threshold must not be negative, got: %v", v))
	}

	if v := strings.ToLower(viper.GetString("profile.mode")); !contains(profileModes, v) {
		errors = append(errors, fmt.Sprintf("profile.mode must be one of %s, got: %q", strings.Join(profileModes, ", "), v))
	}
	if v := strings.ToLower(viper.GetString("profile.format")); !contains(profileFormats, v) {
		errors = append(errors, fmt.Sprintf("profile.format must be one of %s, got: %q", strings.Join(profileFormats, ", "), v))
	}

	if strings.TrimSpace(viper.GetString("histogram.column")) == "" {
		errors = append(errors, "histogram.column must not be empty")
	}

	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed:\n  %s", strings.Join(errors, "\n  "))
	}
	return nil
}

func contains(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}
