package config

import (
	"os"
	"strconv"
	"time"
)

// parseEnv overlays configuration values from environment variables. Unset
// variables leave the current value in place. Duration variables accept
// time.ParseDuration syntax ("15m", "168h"); invalid values are a startup
// failure and panic.
//
// Variables:
//
//	ADDR                  HTTP bind address
//	DATABASE_DSN          PostgreSQL DSN
//	ACCESS_TOKEN_SECRET   HMAC secret for access tokens
//	REFRESH_TOKEN_SECRET  HMAC secret for refresh tokens
//	ACCESS_TOKEN_TTL      access token lifetime
//	REFRESH_TOKEN_TTL     refresh token lifetime
//	CORS_ORIGINS          comma-separated allowed origins
//	S3_ROOT_USER / S3_ROOT_PASSWORD / S3_BUCKET / S3_REGION / S3_BASE_ENDPOINT
//	NATS_URL              broker URL for fan-out events
//	SESSION_SWEEP_INTERVAL  expired-session cleanup cadence
//	SECURE_COOKIES        "true" to set Secure on auth cookies
func parseEnv(config *Config) {
	setString := func(key string, dst *string) {
		if v, ok := os.LookupEnv(key); ok {
			*dst = v
		}
	}
	setDuration := func(key string, dst *time.Duration) {
		if v, ok := os.LookupEnv(key); ok {
			d, err := time.ParseDuration(v)
			if err != nil {
				panic(err)
			}
			*dst = d
		}
	}

	setString("ADDR", &config.Addr)
	setString("DATABASE_DSN", &config.DatabaseDSN)
	setString("ACCESS_TOKEN_SECRET", &config.AccessTokenSecret)
	setString("REFRESH_TOKEN_SECRET", &config.RefreshTokenSecret)
	setDuration("ACCESS_TOKEN_TTL", &config.AccessTokenTTL)
	setDuration("REFRESH_TOKEN_TTL", &config.RefreshTokenTTL)

	if v, ok := os.LookupEnv("CORS_ORIGINS"); ok {
		config.AllowedOrigins = splitOrigins(v)
	}

	setString("S3_ROOT_USER", &config.S3RootUser)
	setString("S3_ROOT_PASSWORD", &config.S3RootPassword)
	setString("S3_BUCKET", &config.S3Bucket)
	setString("S3_REGION", &config.S3Region)
	setString("S3_BASE_ENDPOINT", &config.S3BaseEndpoint)
	setString("NATS_URL", &config.NATSURL)
	setDuration("SESSION_SWEEP_INTERVAL", &config.SessionSweepInterval)

	if v, ok := os.LookupEnv("SECURE_COOKIES"); ok {
		b, err := strconv.ParseBool(v)
		if err != nil {
			panic(err)
		}
		config.SecureCookies = b
	}
}
