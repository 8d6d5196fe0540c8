package config

import (
	"fmt"
	"strings"
	"time"
)

// Config is the root configuration for seofix.
type Config struct {
	// Site holds the target WordPress site and its credentials.
	Site SiteConfig `koanf:"site"`

	// Remediation tunes the auto-fix pipeline.
	Remediation RemediationConfig `koanf:"remediation"`

	// Server configures the HTTP API surface.
	Server ServerConfig `koanf:"server"`

	// Logging configures structured logging output.
	Logging LoggingConfig `koanf:"logging"`

	// Telemetry configures OpenTelemetry export.
	Telemetry TelemetryConfig `koanf:"telemetry"`
}

// SiteConfig identifies the remote content store and how to authenticate.
type SiteConfig struct {
	// ID is the tracked-site identifier used by the issue store.
	ID string `koanf:"id"`

	// URL is the site base URL, e.g. https://example.com.
	URL string `koanf:"url"`

	// Username is the WordPress user the application password belongs to.
	Username string `koanf:"username"`

	// AppPassword is the WordPress application password. Redacted in logs.
	AppPassword Secret `koanf:"app_password"`
}

// RemediationConfig holds the pipeline thresholds. The rollback and
// content-loss ratios are established business rules and should not be
// changed without reviewing the failure semantics around them.
type RemediationConfig struct {
	// MaxChanges caps how many fixes a single run may apply (0 = default).
	MaxChanges int `koanf:"max_changes"`

	// RecentFixWindow excludes issues fixed within this window from
	// re-selection.
	RecentFixWindow Duration `koanf:"recent_fix_window"`

	// RollbackFailureRate is the verification failure rate above which the
	// whole session is rolled back.
	RollbackFailureRate float64 `koanf:"rollback_failure_rate"`

	// ContentLossRatio is the minimum post-write/pre-write word-count ratio
	// below which a mutation is treated as a fatal write error.
	ContentLossRatio float64 `koanf:"content_loss_ratio"`

	// VerifySettleDelay is how long verification waits before re-fetching,
	// to let remote caches catch up.
	VerifySettleDelay Duration `koanf:"verify_settle_delay"`

	// ScanFallbackLimit is how many recent documents to scan when an issue
	// carries no target content id.
	ScanFallbackLimit int `koanf:"scan_fallback_limit"`

	// PageDelay is the pause between paginated listing requests.
	PageDelay Duration `koanf:"page_delay"`

	// ReanalysisDelay is the pause before triggering a post-run re-score.
	ReanalysisDelay Duration `koanf:"reanalysis_delay"`
}

// ServerConfig configures the HTTP API listener.
type ServerConfig struct {
	Host string `koanf:"host"`
	Port int    `koanf:"port"`
}

// LoggingConfig configures zap output.
type LoggingConfig struct {
	// Level is one of debug, info, warn, error.
	Level string `koanf:"level"`

	// Format is json or console.
	Format string `koanf:"format"`
}

// TelemetryConfig configures OTLP trace and metric export. Disabled by
// default so the tool runs without a collector.
type TelemetryConfig struct {
	Enabled bool `koanf:"enabled"`

	// Endpoint is the OTLP collector address, host:port.
	Endpoint string `koanf:"endpoint"`

	// Protocol is grpc or http/protobuf.
	Protocol string `koanf:"protocol"`

	// Insecure disables TLS. Only allowed for local endpoints.
	Insecure bool `koanf:"insecure"`

	// SampleRate is the trace sampling ratio in [0,1].
	SampleRate float64 `koanf:"sample_rate"`

	// MetricsEnabled toggles the periodic metric exporter.
	MetricsEnabled bool `koanf:"metrics_enabled"`

	// MetricsInterval is the metric export period.
	MetricsInterval Duration `koanf:"metrics_interval"`

	// ShutdownTimeout bounds the final telemetry flush.
	ShutdownTimeout Duration `koanf:"shutdown_timeout"`
}

// IsLocalEndpoint reports whether the telemetry endpoint is a loopback
// address, where an insecure connection is acceptable.
func (t TelemetryConfig) IsLocalEndpoint() bool {
	host := t.Endpoint
	if strings.HasPrefix(host, "[") {
		if idx := strings.Index(host, "]:"); idx != -1 {
			host = host[1:idx]
		} else {
			host = strings.Trim(host, "[]")
		}
	} else if strings.Count(host, ":") == 1 {
		host = host[:strings.LastIndex(host, ":")]
	}
	return host == "localhost" || host == "::1" || strings.HasPrefix(host, "127.")
}

// applyDefaults fills zero values with defaults.
func applyDefaults(cfg *Config) {
	if cfg.Remediation.MaxChanges == 0 {
		cfg.Remediation.MaxChanges = 10
	}
	if cfg.Remediation.RecentFixWindow == 0 {
		cfg.Remediation.RecentFixWindow = Duration(7 * 24 * time.Hour)
	}
	if cfg.Remediation.RollbackFailureRate == 0 {
		cfg.Remediation.RollbackFailureRate = 0.5
	}
	if cfg.Remediation.ContentLossRatio == 0 {
		cfg.Remediation.ContentLossRatio = 0.8
	}
	if cfg.Remediation.VerifySettleDelay == 0 {
		cfg.Remediation.VerifySettleDelay = Duration(3 * time.Second)
	}
	if cfg.Remediation.ScanFallbackLimit == 0 {
		cfg.Remediation.ScanFallbackLimit = 20
	}
	if cfg.Remediation.PageDelay == 0 {
		cfg.Remediation.PageDelay = Duration(500 * time.Millisecond)
	}
	if cfg.Remediation.ReanalysisDelay == 0 {
		cfg.Remediation.ReanalysisDelay = Duration(10 * time.Second)
	}
	if cfg.Server.Host == "" {
		cfg.Server.Host = "localhost"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 9190
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}
	if cfg.Telemetry.Endpoint == "" {
		cfg.Telemetry.Endpoint = "localhost:4317"
		cfg.Telemetry.Insecure = true
	}
	if cfg.Telemetry.Protocol == "" {
		cfg.Telemetry.Protocol = "grpc"
	}
	if cfg.Telemetry.SampleRate == 0 {
		cfg.Telemetry.SampleRate = 1.0
	}
	if cfg.Telemetry.MetricsInterval == 0 {
		cfg.Telemetry.MetricsInterval = Duration(15 * time.Second)
	}
	if cfg.Telemetry.ShutdownTimeout == 0 {
		cfg.Telemetry.ShutdownTimeout = Duration(5 * time.Second)
	}
}

// Validate checks configuration consistency.
func (c *Config) Validate() error {
	if c.Site.URL != "" && !strings.HasPrefix(c.Site.URL, "http://") && !strings.HasPrefix(c.Site.URL, "https://") {
		return fmt.Errorf("site.url must start with http:// or https://, got %q", c.Site.URL)
	}
	if c.Remediation.RollbackFailureRate < 0 || c.Remediation.RollbackFailureRate > 1 {
		return fmt.Errorf("remediation.rollback_failure_rate must be in [0,1], got %v", c.Remediation.RollbackFailureRate)
	}
	if c.Remediation.ContentLossRatio < 0 || c.Remediation.ContentLossRatio > 1 {
		return fmt.Errorf("remediation.content_loss_ratio must be in [0,1], got %v", c.Remediation.ContentLossRatio)
	}
	if c.Remediation.MaxChanges < 0 {
		return fmt.Errorf("remediation.max_changes cannot be negative")
	}
	if c.Server.Port < 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be in [0,65535], got %d", c.Server.Port)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level must be one of debug, info, warn, error, got %q", c.Logging.Level)
	}
	switch c.Logging.Format {
	case "json", "console":
	default:
		return fmt.Errorf("logging.format must be json or console, got %q", c.Logging.Format)
	}
	if c.Telemetry.Enabled {
		if c.Telemetry.Endpoint == "" {
			return fmt.Errorf("telemetry.endpoint is required when telemetry is enabled")
		}
		switch c.Telemetry.Protocol {
		case "grpc", "http/protobuf":
		default:
			return fmt.Errorf("telemetry.protocol must be grpc or http/protobuf, got %q", c.Telemetry.Protocol)
		}
		if c.Telemetry.SampleRate < 0 || c.Telemetry.SampleRate > 1 {
			return fmt.Errorf("telemetry.sample_rate must be in [0,1], got %v", c.Telemetry.SampleRate)
		}
		if c.Telemetry.Insecure && !c.Telemetry.IsLocalEndpoint() {
			return fmt.Errorf("telemetry.insecure is only allowed for local endpoints, got %q", c.Telemetry.Endpoint)
		}
	}
	return nil
}
