package config

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// DefaultAddr is the address the application listener binds when APP_ADDR is unset.
const DefaultAddr = ":3030"

type Config struct {
	Env             string        `env:"APP_ENV"          envDefault:"development"`
	Addr            string        `env:"APP_ADDR"         envDefault:":3030"`
	OpsAddr         string        `env:"OPS_ADDR"         envDefault:":9090"`
	WebOrigin       string        `env:"WEB_ORIGIN"       envDefault:"http://localhost:5173"`
	BodyLimit       int64         `env:"BODY_LIMIT"       envDefault:"102400"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"10s"`

	Log      Log
	Database Database
	Auth     Auth
}

type Log struct {
	Level  string `env:"LOG_LEVEL"  envDefault:"info"`
	Format string `env:"LOG_FORMAT" envDefault:"console"`
}

// Database holds the MongoDB settings. URI is not validated here;
// a missing DB_ACCESS surfaces as a connect failure.
type Database struct {
	URI            string        `env:"DB_ACCESS"`
	Name           string        `env:"DB_NAME"            envDefault:"userauth"`
	ConnectTimeout time.Duration `env:"DB_CONNECT_TIMEOUT" envDefault:"10s"`
}

type Auth struct {
	TokenSecret     string        `env:"TOKEN_SECRET"`
	AccessTokenTTL  time.Duration `env:"ACCESS_TOKEN_TTL"  envDefault:"15m"`
	RefreshTokenTTL time.Duration `env:"REFRESH_TOKEN_TTL" envDefault:"168h"`
	RateLimit       float64       `env:"AUTH_RATE_LIMIT"   envDefault:"5"`
	RateBurst       int           `env:"AUTH_RATE_BURST"   envDefault:"10"`

	// EphemeralSecret is set when TOKEN_SECRET was empty and a random key was generated.
	EphemeralSecret bool
}

// EnvFile returns the dotenv file path, ENV_FILE or ".env".
func EnvFile() string {
	return getenv("ENV_FILE", ".env")
}

// LoadEnvFile copies the key-value pairs of a dotenv file into the process
// environment. Variables already present in the environment win.
func LoadEnvFile(path string) error {
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("load %s: %w", path, err)
	}
	return nil
}

// Load decodes the process environment into a Config.
func Load() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}

	if cfg.Auth.TokenSecret == "" {
		secret, err := randomSecret()
		if err != nil {
			return Config{}, err
		}
		cfg.Auth.TokenSecret = secret
		cfg.Auth.EphemeralSecret = true
	}

	return cfg, nil
}

// IsProduction reports whether APP_ENV selects the production profile.
func (c Config) IsProduction() bool {
	return c.Env == "production"
}

func randomSecret() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate token secret: %w", err)
	}
	return hex.EncodeToString(buf), nil
}

func getenv(key string, fallback string) string {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	return value
}
