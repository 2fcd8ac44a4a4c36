package config

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/AngelCh415/mediaplan/internal/buying"
	"github.com/AngelCh415/mediaplan/internal/models"
)

const envPrefix = "MEDIAPLAN"

type Config struct {
	SourceURL   string
	SinkURL     string
	SinkSecret  string
	Port        string
	HTTPTimeout time.Duration
	LogLevel    slog.Level

	RateLimit float64
	RateBurst int
	// TrustProxy keys rate limiting on the proxy-supplied client address.
	TrustProxy bool

	// Benchmarks apply to plans that carry none of their own.
	Benchmarks      models.Benchmarks
	CostTolerance   float64
	ExcludeStatuses []string

	MCPEnabled bool
}

// Variables are MEDIAPLAN_<KEY>, nested keys joined by "_", e.g.
// MEDIAPLAN_BENCHMARKS_CTR_SEARCH.
func newViper() *viper.Viper {
	v := viper.New()
	v.SetConfigType("yaml")
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("port", "8080")
	v.SetDefault("source_url", "")
	v.SetDefault("sink_url", "")
	v.SetDefault("sink_secret", "")
	v.SetDefault("http_timeout_seconds", 15)
	v.SetDefault("log_level", "info")
	v.SetDefault("rate_limit_rps", 20.0)
	v.SetDefault("rate_limit_burst", 40)
	v.SetDefault("trust_proxy", false)
	v.SetDefault("benchmarks.ctr_display", buying.DefaultBenchmarks.CtrDisplay)
	v.SetDefault("benchmarks.ctr_search", buying.DefaultBenchmarks.CtrSearch)
	v.SetDefault("benchmarks.vtr_video", buying.DefaultBenchmarks.VtrVideo)
	v.SetDefault("benchmarks.conversion_rate", buying.DefaultBenchmarks.ConversionRate)
	v.SetDefault("cost_tolerance", 0.01)
	v.SetDefault("exclude_statuses", []string{"cancelled"})
	v.SetDefault("mcp_enabled", false)
	return v
}

func FromEnv() Config {
	return build(newViper())
}

// Load reads a YAML file; environment variables still win over it.
func Load(path string) (Config, error) {
	v := newViper()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return Config{}, fmt.Errorf("read config %q: %w", path, err)
	}
	return build(v), nil
}

func build(v *viper.Viper) Config {
	to := time.Duration(v.GetInt("http_timeout_seconds")) * time.Second
	if to <= 0 {
		to = 15 * time.Second
	}
	return Config{
		SourceURL:   v.GetString("source_url"),
		SinkURL:     v.GetString("sink_url"),
		SinkSecret:  v.GetString("sink_secret"),
		Port:        envOr(v.GetString("port"), "8080"),
		HTTPTimeout: to,
		LogLevel:    parseLevel(v.GetString("log_level")),
		RateLimit:   v.GetFloat64("rate_limit_rps"),
		RateBurst:   v.GetInt("rate_limit_burst"),
		TrustProxy:  v.GetBool("trust_proxy"),
		Benchmarks: models.Benchmarks{
			CtrDisplay:     v.GetFloat64("benchmarks.ctr_display"),
			CtrSearch:      v.GetFloat64("benchmarks.ctr_search"),
			VtrVideo:       v.GetFloat64("benchmarks.vtr_video"),
			ConversionRate: v.GetFloat64("benchmarks.conversion_rate"),
		},
		CostTolerance:   v.GetFloat64("cost_tolerance"),
		ExcludeStatuses: splitList(v.GetStringSlice("exclude_statuses")),
		MCPEnabled:      v.GetBool("mcp_enabled"),
	}
}

func parseLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	}
	return slog.LevelInfo
}

// splitList accepts both YAML lists and a comma separated env value.
func splitList(in []string) []string {
	var out []string
	for _, s := range in {
		for _, p := range strings.Split(s, ",") {
			if p = strings.TrimSpace(p); p != "" {
				out = append(out, p)
			}
		}
	}
	return out
}

func envOr(v, def string) string {
	if v == "" {
		return def
	}
	return v
}
