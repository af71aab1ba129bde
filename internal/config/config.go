package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config represents the application configuration
type Config struct {
	ArchivePath     string          `yaml:"archive_path"`
	LogSuffix       string          `yaml:"log_suffix"`
	LogFormat       string          `yaml:"log_format"` // "auto", "tsv" or "json"
	LogLevel        string          `yaml:"log_level"`
	AnalysisConfig  AnalysisConfig  `yaml:"analysis"`
	ReportConfig    ReportConfig    `yaml:"report"`
	WatchConfig     WatchConfig     `yaml:"watch"`
	DashboardConfig DashboardConfig `yaml:"dashboard"`
}

// AnalysisConfig contains the counter rule settings
type AnalysisConfig struct {
	UserAgentSignature string   `yaml:"user_agent_signature"`
	BannedHosts        []string `yaml:"banned_hosts"`
	HostSubstring      string   `yaml:"host_substring"`
	NoDomainPattern    string   `yaml:"no_domain_pattern"`
	Verbose            bool     `yaml:"verbose"`
}

// ReportConfig contains output settings
type ReportConfig struct {
	OutputPath   string `yaml:"output_path"`
	BarChartPath string `yaml:"bar_chart_path"`
	PieChartPath string `yaml:"pie_chart_path"`
	SummaryJSON  string `yaml:"summary_json"`
	KeepImages   bool   `yaml:"keep_images"`
	Title        string `yaml:"title"`
	Description  string `yaml:"description"`
}

// WatchConfig contains archive watch settings
type WatchConfig struct {
	Enabled    bool `yaml:"enabled"`
	DebounceMS int  `yaml:"debounce_ms"`
}

// DashboardConfig contains web dashboard settings
type DashboardConfig struct {
	Enabled bool   `yaml:"enabled"`
	Port    int    `yaml:"port"`
	Host    string `yaml:"host"`
}

// Debounce returns the watch debounce as a duration
func (w WatchConfig) Debounce() time.Duration {
	return time.Duration(w.DebounceMS) * time.Millisecond
}

// Addr returns the dashboard listen address
func (d DashboardConfig) Addr() string {
	return fmt.Sprintf("%s:%d", d.Host, d.Port)
}

// LoadConfig loads configuration from a YAML file, then applies
// environment overrides (including a local .env file).
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	case errors.Is(err, os.ErrNotExist):
		// defaults
	default:
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}

	_ = godotenv.Load() // optional
	applyEnv(cfg)

	return cfg, nil
}

func applyEnv(cfg *Config) {
	cfg.ArchivePath = getenv("ZEEKREPORT_ARCHIVE", cfg.ArchivePath)
	cfg.LogLevel = getenv("ZEEKREPORT_LOG_LEVEL", cfg.LogLevel)
	cfg.ReportConfig.OutputPath = getenv("ZEEKREPORT_OUTPUT", cfg.ReportConfig.OutputPath)
	cfg.DashboardConfig.Port = getenvInt("ZEEKREPORT_DASHBOARD_PORT", cfg.DashboardConfig.Port)
	if v := os.Getenv("ZEEKREPORT_BANNED_HOSTS"); v != "" {
		hosts := strings.Split(v, ",")
		cfg.AnalysisConfig.BannedHosts = cfg.AnalysisConfig.BannedHosts[:0]
		for _, h := range hosts {
			if h = strings.TrimSpace(h); h != "" {
				cfg.AnalysisConfig.BannedHosts = append(cfg.AnalysisConfig.BannedHosts, h)
			}
		}
	}
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

// Validate checks the settings a run cannot do without
func (c *Config) Validate() error {
	if c.ArchivePath == "" {
		return errors.New("archive_path is required")
	}
	if c.LogSuffix == "" {
		return errors.New("log_suffix is required")
	}
	if c.ReportConfig.OutputPath == "" {
		return errors.New("report.output_path is required")
	}
	if c.ReportConfig.BarChartPath == "" || c.ReportConfig.PieChartPath == "" {
		return errors.New("report chart paths are required")
	}
	switch c.LogFormat {
	case "", "auto", "tsv", "ascii", "json":
	default:
		return fmt.Errorf("unknown log_format %q", c.LogFormat)
	}
	if c.DashboardConfig.Enabled && (c.DashboardConfig.Port <= 0 || c.DashboardConfig.Port > 65535) {
		return fmt.Errorf("invalid dashboard port %d", c.DashboardConfig.Port)
	}
	if c.WatchConfig.DebounceMS < 0 {
		return fmt.Errorf("invalid watch debounce %dms", c.WatchConfig.DebounceMS)
	}
	return nil
}

// DefaultConfig returns a default configuration
func DefaultConfig() *Config {
	return &Config{
		ArchivePath: "c.zip",
		LogSuffix:   "http.log",
		LogFormat:   "auto",
		LogLevel:    "info",
		AnalysisConfig: AnalysisConfig{
			UserAgentSignature: "Mozilla/4.0",
			BannedHosts:        []string{"sharql.com", "linguaflair.de"},
			HostSubstring:      "google.com",
			NoDomainPattern:    `\d{1,3}\.\d{1,3}\.\d{1,3}\.\d{1,3}`,
		},
		ReportConfig: ReportConfig{
			OutputPath:   "analysis_report.pdf",
			BarChartPath: "plot1.png",
			PieChartPath: "plot2.png",
			KeepImages:   true,
			Title:        "Log Analysis Report",
			Description:  "This is a report that explains what kind of data was found from the logs found in the malware file.",
		},
		WatchConfig: WatchConfig{
			Enabled:    false,
			DebounceMS: 500,
		},
		DashboardConfig: DashboardConfig{
			Enabled: false,
			Port:    8080,
			Host:    "localhost",
		},
	}
}
