package config

import (
	"encoding/json"
	"os"
	"strings"
	"time"

	"github.com/dmitrijs2005/chatter/internal/flagx"
	"github.com/dmitrijs2005/chatter/internal/timex"
)

// JsonConfig is an intermediate DTO used only for reading JSON configuration
// files. Interval fields use timex.Duration, which accepts both string values
// such as "15m" and integer nanoseconds. After unmarshalling, its fields are
// copied into the runtime Config.
type JsonConfig struct {
	Addr                 string         `json:"addr"`
	DatabaseDSN          string         `json:"database_dsn"`
	AccessTokenSecret    string         `json:"access_token_secret"`
	RefreshTokenSecret   string         `json:"refresh_token_secret"`
	AccessTokenTTL       timex.Duration `json:"access_token_ttl"`
	RefreshTokenTTL      timex.Duration `json:"refresh_token_ttl"`
	AllowedOrigins       string         `json:"allowed_origins"`
	S3RootUser           string         `json:"s3_root_user"`
	S3RootPassword       string         `json:"s3_root_password"`
	S3Bucket             string         `json:"s3_bucket"`
	S3Region             string         `json:"s3_region"`
	S3BaseEndpoint       string         `json:"s3_base_endpoint"`
	NATSURL              string         `json:"nats_url"`
	SessionSweepInterval timex.Duration `json:"session_sweep_interval"`
	SecureCookies        bool           `json:"secure_cookies"`
}

// parseJson loads configuration values from a JSON file into the provided
// Config. The file path comes from the -c or -config command-line flags; if
// neither is set, no JSON file is loaded. An unreadable or invalid file is a
// startup failure, so the function panics.
func parseJson(config *Config) {

	jsonConfigFile := flagx.JsonConfigFlags()

	// nothing to load
	if jsonConfigFile == "" {
		return
	}

	c := &JsonConfig{}

	file, err := os.ReadFile(jsonConfigFile)
	if err != nil {
		panic(err)
	}

	if err := json.Unmarshal(file, c); err != nil {
		panic(err)
	}

	config.Addr = c.Addr
	config.DatabaseDSN = c.DatabaseDSN
	config.AccessTokenSecret = c.AccessTokenSecret
	config.RefreshTokenSecret = c.RefreshTokenSecret
	config.AccessTokenTTL = time.Duration(c.AccessTokenTTL.Duration)
	config.RefreshTokenTTL = time.Duration(c.RefreshTokenTTL.Duration)
	if c.AllowedOrigins != "" {
		config.AllowedOrigins = splitOrigins(c.AllowedOrigins)
	}
	config.S3RootUser = c.S3RootUser
	config.S3RootPassword = c.S3RootPassword
	config.S3Bucket = c.S3Bucket
	config.S3Region = c.S3Region
	config.S3BaseEndpoint = c.S3BaseEndpoint
	config.NATSURL = c.NATSURL
	config.SessionSweepInterval = time.Duration(c.SessionSweepInterval.Duration)
	config.SecureCookies = c.SecureCookies
}

// splitOrigins turns a comma-separated origin list into a slice, trimming
// whitespace and dropping empty entries.
func splitOrigins(s string) []string {
	parts := strings.Split(s, ",")
	origins := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			origins = append(origins, trimmed)
		}
	}
	return origins
}
