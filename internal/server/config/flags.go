package config

import (
	"flag"
	"os"
	"time"

	"github.com/dmitrijs2005/chatter/internal/flagx"
)

// parseFlags populates selected server Config fields from command-line flags.
//
// Supported flags (short forms):
//
//	-a string   HTTP bind address (e.g., ":4001")
//	-d string   PostgreSQL DSN
//	-s string   access-token HMAC secret
//	-x string   refresh-token HMAC secret
//	-t int      access token lifetime, minutes
//	-r int      refresh token lifetime, minutes
//	-o string   comma-separated allowed CORS origins
//	-u string   S3 root user
//	-p string   S3 root password
//	-b string   S3 bucket name
//	-g string   S3 region
//	-e string   S3 base endpoint (e.g., "http://127.0.0.1:9000/")
//	-n string   NATS URL for fan-out events
//	-w int      expired-session sweep interval, minutes
//	-k          set the Secure attribute on auth cookies
//
// The function first filters os.Args to only the flags it recognizes using
// flagx.FilterArgs, avoiding collisions with other components. Duration flags
// are accepted as integers in minutes.
func parseFlags(config *Config) {
	args := flagx.FilterArgs(os.Args[1:], []string{"-a", "-d", "-s", "-x", "-t", "-r", "-o", "-u", "-p", "-b", "-g", "-e", "-n", "-w", "-k"})

	fs := flag.NewFlagSet("main", flag.ContinueOnError)

	fs.StringVar(&config.Addr, "a", config.Addr, "address and port to run server")
	fs.StringVar(&config.DatabaseDSN, "d", config.DatabaseDSN, "database DSN")
	fs.StringVar(&config.AccessTokenSecret, "s", config.AccessTokenSecret, "access token secret")
	fs.StringVar(&config.RefreshTokenSecret, "x", config.RefreshTokenSecret, "refresh token secret")

	accessTTL := fs.Int("t", int(config.AccessTokenTTL.Minutes()), "access_token_ttl (in minutes)")
	refreshTTL := fs.Int("r", int(config.RefreshTokenTTL.Minutes()), "refresh_token_ttl (in minutes)")

	origins := fs.String("o", "", "comma-separated allowed CORS origins")

	fs.StringVar(&config.S3RootUser, "u", config.S3RootUser, "S3 root user")
	fs.StringVar(&config.S3RootPassword, "p", config.S3RootPassword, "S3 root password")
	fs.StringVar(&config.S3Bucket, "b", config.S3Bucket, "S3 bucket")
	fs.StringVar(&config.S3Region, "g", config.S3Region, "S3 region")
	fs.StringVar(&config.S3BaseEndpoint, "e", config.S3BaseEndpoint, "S3 base endpoint")
	fs.StringVar(&config.NATSURL, "n", config.NATSURL, "NATS URL")

	sweep := fs.Int("w", int(config.SessionSweepInterval.Minutes()), "session_sweep_interval (in minutes)")

	fs.BoolVar(&config.SecureCookies, "k", config.SecureCookies, "set Secure on auth cookies")

	if err := fs.Parse(args); err != nil {
		panic(err)
	}

	config.AccessTokenTTL = time.Duration(*accessTTL) * time.Minute
	config.RefreshTokenTTL = time.Duration(*refreshTTL) * time.Minute
	config.SessionSweepInterval = time.Duration(*sweep) * time.Minute

	if *origins != "" {
		config.AllowedOrigins = splitOrigins(*origins)
	}
}
