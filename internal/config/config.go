package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"
)

// Identity provider modes.
const (
	IdentityRemote = "remote"
	IdentityLocal  = "local"
)

// Config holds runtime configuration sourced from env vars.
type Config struct {
	Port        string
	DatabaseURL string
	RedisURL    string

	IdentityMode       string
	IdentityURL        string
	IdentityAPIKey     string
	IdentityJWTSecret  string
	IdentitySessionTTL time.Duration

	SiteURL           string
	RecoveryPath      string
	HomePath          string
	MinPasswordLength int
	RecoveryRedirect  time.Duration

	ProfileFetchTimeout time.Duration
	VisitorCacheSize    int
	CookieSecure        bool

	CORSOrigins        []string
	TrustProxy         bool
	RateLimitPerSecond float64
	RateLimitBurst     int
}

// Load reads configuration from the environment and performs minimal validation.
func Load() (Config, error) {
	cfg := Config{
		Port:              fallback(os.Getenv("PORT"), "8080"),
		DatabaseURL:       strings.TrimSpace(os.Getenv("DATABASE_URL")),
		RedisURL:          strings.TrimSpace(os.Getenv("REDIS_URL")),
		IdentityMode:      strings.ToLower(fallback(os.Getenv("IDENTITY_MODE"), IdentityRemote)),
		IdentityURL:       strings.TrimRight(strings.TrimSpace(os.Getenv("IDENTITY_URL")), "/"),
		IdentityAPIKey:    strings.TrimSpace(os.Getenv("IDENTITY_API_KEY")),
		IdentityJWTSecret: strings.TrimSpace(os.Getenv("IDENTITY_JWT_SECRET")),
		SiteURL:           strings.TrimRight(fallback(os.Getenv("SITE_URL"), "http://localhost:5173"), "/"),
		RecoveryPath:      fallback(os.Getenv("RECOVERY_PATH"), "/reset-password"),
		HomePath:          fallback(os.Getenv("HOME_PATH"), "/"),
		CookieSecure:      parseBool(os.Getenv("COOKIE_SECURE"), false),
		TrustProxy:        parseBool(os.Getenv("TRUST_PROXY"), false),
	}
	// Credentialed CORS defaults to the site itself.
	cfg.CORSOrigins = parseCSV(fallback(os.Getenv("CORS_ALLOWED_ORIGINS"), siteOrigin(cfg.SiteURL)))

	cfg.MinPasswordLength = positiveInt(os.Getenv("MIN_PASSWORD_LENGTH"), 6)
	cfg.RecoveryRedirect = time.Duration(positiveInt(os.Getenv("RECOVERY_REDIRECT_SECONDS"), 2)) * time.Second
	cfg.ProfileFetchTimeout = time.Duration(positiveInt(os.Getenv("PROFILE_FETCH_TIMEOUT_SECONDS"), 10)) * time.Second
	cfg.IdentitySessionTTL = time.Duration(positiveInt(os.Getenv("IDENTITY_SESSION_TTL_HOURS"), 24*7)) * time.Hour
	cfg.VisitorCacheSize = positiveInt(os.Getenv("VISITOR_CACHE_SIZE"), 10000)
	cfg.RateLimitBurst = positiveInt(os.Getenv("RATE_LIMIT_BURST"), 10)

	rps := fallback(os.Getenv("RATE_LIMIT_PER_SECOND"), "5")
	if v, err := strconv.ParseFloat(rps, 64); err == nil && v > 0 {
		cfg.RateLimitPerSecond = v
	} else {
		cfg.RateLimitPerSecond = 5
	}

	if !strings.HasPrefix(cfg.RecoveryPath, "/") {
		cfg.RecoveryPath = "/" + cfg.RecoveryPath
	}

	switch cfg.IdentityMode {
	case IdentityRemote:
		if cfg.IdentityURL == "" || cfg.IdentityAPIKey == "" {
			return Config{}, errors.New("IDENTITY_URL and IDENTITY_API_KEY are required")
		}
		if cfg.DatabaseURL == "" {
			return Config{}, errors.New("DATABASE_URL is required")
		}
	case IdentityLocal:
		if cfg.IdentityJWTSecret == "" {
			return Config{}, errors.New("IDENTITY_JWT_SECRET is required in local mode")
		}
	default:
		return Config{}, fmt.Errorf("IDENTITY_MODE must be %q or %q", IdentityRemote, IdentityLocal)
	}

	return cfg, nil
}

// HTTPAddress returns the host:port pair for the HTTP server to bind to.
func (c Config) HTTPAddress() string {
	return fmt.Sprintf(":%s", c.Port)
}

// RecoveryRedirectURL is where password-reset emails send the user.
func (c Config) RecoveryRedirectURL() string {
	return c.SiteURL + c.RecoveryPath
}

// siteOrigin strips any path from the site URL.
func siteOrigin(site string) string {
	u, err := url.Parse(site)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return site
	}
	return u.Scheme + "://" + u.Host
}

func fallback(value, def string) string {
	if strings.TrimSpace(value) == "" {
		return def
	}
	return strings.TrimSpace(value)
}

func positiveInt(value string, def int) int {
	if n, err := strconv.Atoi(strings.TrimSpace(value)); err == nil && n > 0 {
		return n
	}
	return def
}

func parseBool(value string, def bool) bool {
	if b, err := strconv.ParseBool(strings.TrimSpace(value)); err == nil {
		return b
	}
	return def
}

func parseCSV(input string) []string {
	parts := strings.Split(input, ",")
	var out []string
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			out = append(out, trimmed)
		}
	}
	if len(out) == 0 {
		return []string{"*"}
	}
	return out
}
