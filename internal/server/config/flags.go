package config

import (
	"flag"
	"io"
	"os"
	"time"

	"github.com/sparkly-dev/sparkly-server/internal/flagx"
)

// ValueFlags lists every flag parseFlags understands. All of them take a value.
var ValueFlags = []string{"-a", "-w", "-b", "-d", "-s", "-t", "-r", "-p", "-l", "-c", "-config"}

// parseFlags populates Config fields from command-line flags.
//
// Supported flags (short forms):
//
//	-a string   gRPC bind address (e.g., ":50051")
//	-w string   HTTP bind address for health and metrics
//	-b string   database driver: pgx or sqlite
//	-d string   database DSN
//	-s string   access token HMAC key
//	-t int      access token validity, minutes
//	-r int      refresh token validity, minutes
//	-p string   refresh token policy: reuse or rotate
//	-l string   log level
//
// Positional arguments (authctl sub-commands) are ignored.
func parseFlags(config *Config) error {
	args := flagx.FilterArgs(os.Args[1:], []string{"-a", "-w", "-b", "-d", "-s", "-t", "-r", "-p", "-l"})

	fs := flag.NewFlagSet("main", flag.ContinueOnError)
	fs.SetOutput(io.Discard)

	fs.StringVar(&config.EndpointAddrGRPC, "a", config.EndpointAddrGRPC, "gRPC address and port")
	fs.StringVar(&config.EndpointAddrHTTP, "w", config.EndpointAddrHTTP, "HTTP address and port")
	fs.StringVar(&config.DatabaseDriver, "b", config.DatabaseDriver, "database driver")
	fs.StringVar(&config.DatabaseDSN, "d", config.DatabaseDSN, "database DSN")
	fs.StringVar(&config.SecretKey, "s", config.SecretKey, "secret key")

	accessTokenValidityDuration := fs.Int("t", int(config.AccessTokenValidityDuration.Minutes()), "access_token_validity_duration (in minutes)")
	refreshTokenValidityDuration := fs.Int("r", int(config.RefreshTokenValidityDuration.Minutes()), "refresh_token_validity_duration (in minutes)")

	fs.StringVar(&config.RefreshTokenPolicy, "p", config.RefreshTokenPolicy, "refresh token policy")
	fs.StringVar(&config.LogLevel, "l", config.LogLevel, "log level")

	if err := fs.Parse(args); err != nil {
		return err
	}

	// Minute granularity would truncate sub-minute values from other
	// sources, so durations are only touched when given explicitly.
	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "t":
			config.AccessTokenValidityDuration = time.Duration(*accessTokenValidityDuration) * time.Minute
		case "r":
			config.RefreshTokenValidityDuration = time.Duration(*refreshTokenValidityDuration) * time.Minute
		}
	})
	return nil
}
