package config

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/sparkly-dev/sparkly-server/internal/flagx"
	"github.com/sparkly-dev/sparkly-server/internal/timex"
)

// JsonConfig is the on-disk shape of the configuration file. Durations may
// be written as "15m" or as integer nanoseconds.
type JsonConfig struct {
	EndpointAddrGRPC             string         `json:"endpoint_addr_grpc"`
	EndpointAddrHTTP             string         `json:"endpoint_addr_http"`
	DatabaseDriver               string         `json:"database_driver"`
	DatabaseDSN                  string         `json:"database_dsn"`
	SecretKey                    string         `json:"secret_key"`
	Issuer                       string         `json:"issuer"`
	Audience                     string         `json:"audience"`
	AccessTokenValidityDuration  timex.Duration `json:"access_token_validity_duration"`
	RefreshTokenValidityDuration timex.Duration `json:"refresh_token_validity_duration"`
	RefreshTokenPolicy           string         `json:"refresh_token_policy"`
	MaxConcurrentHashes          int            `json:"max_concurrent_hashes"`
	LogLevel                     string         `json:"log_level"`
	LogFormat                    string         `json:"log_format"`
	TracingEnabled               *bool          `json:"tracing_enabled"`
	OTLPEndpoint                 string         `json:"otlp_endpoint"`
	TraceSampleRate              *float64       `json:"trace_sample_rate"`
	TrustProxyHeaders            *bool          `json:"trust_proxy_headers"`
}

// parseJson loads the file named by -c/-config, if any, and copies every
// field present in it onto config. Absent fields keep their current value.
func parseJson(config *Config) error {
	path := flagx.ConfigFileFlag()
	if path == "" {
		return nil
	}

	file, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config %s: %w", path, err)
	}

	c := &JsonConfig{}
	if err := json.Unmarshal(file, c); err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}

	setString(&config.EndpointAddrGRPC, c.EndpointAddrGRPC)
	setString(&config.EndpointAddrHTTP, c.EndpointAddrHTTP)
	setString(&config.DatabaseDriver, c.DatabaseDriver)
	setString(&config.DatabaseDSN, c.DatabaseDSN)
	setString(&config.SecretKey, c.SecretKey)
	setString(&config.Issuer, c.Issuer)
	setString(&config.Audience, c.Audience)
	setString(&config.RefreshTokenPolicy, c.RefreshTokenPolicy)
	setString(&config.LogLevel, c.LogLevel)
	setString(&config.LogFormat, c.LogFormat)
	setString(&config.OTLPEndpoint, c.OTLPEndpoint)

	if c.AccessTokenValidityDuration.Duration != 0 {
		config.AccessTokenValidityDuration = c.AccessTokenValidityDuration.Duration
	}
	if c.RefreshTokenValidityDuration.Duration != 0 {
		config.RefreshTokenValidityDuration = c.RefreshTokenValidityDuration.Duration
	}
	if c.MaxConcurrentHashes != 0 {
		config.MaxConcurrentHashes = c.MaxConcurrentHashes
	}
	if c.TracingEnabled != nil {
		config.TracingEnabled = *c.TracingEnabled
	}
	if c.TraceSampleRate != nil {
		config.TraceSampleRate = *c.TraceSampleRate
	}
	if c.TrustProxyHeaders != nil {
		config.TrustProxyHeaders = *c.TrustProxyHeaders
	}
	return nil
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}
