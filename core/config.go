package core

import (
	"fmt"
	"net/mail"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kat-co/vala"
	"github.com/pkg/errors"
	"github.com/spf13/viper"
)

// defaultSecretKey is for local development ONLY; it is public by virtue of living in
// this repository and must be overridden via the SECRETKEY env var in QA/PROD.
const defaultSecretKey = "w8&bjam#-3x)o27b*yrh$ef8u_0=d7hy63&7cr5xsg^1ne8-vy"

type (
	Config struct {
		Debug    bool
		TestMode bool
		Env      string // DEV (default), TEST, QA, PROD
		AppName  string
		Build    string

		SecretKey            string
		TokenLifetime        time.Duration
		PasswordResetTimeout time.Duration

		DefaultFromEmail mail.Address
		SendgridAPIKey   string
		RollbarToken     string
		FrontendBaseURL  string

		Server   ServerConfig
		Database DatabaseConfig
	}

	ServerConfig struct {
		Host            string
		Port            int
		DebugHost       string
		ShutdownTimeout time.Duration
	}

	DatabaseConfig struct {
		Engine        string
		Name          string
		Host          string
		Port          int
		User          string
		Password      string
		AdminUser     string
		AdminPassword string
		DisableTLS    bool
	}
)

func (c ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

func (c DatabaseConfig) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

func NewConfig() (*Config, error) {
	v := viper.New()

	// defaults
	v.SetTypeByDefaultValue(true)
	v.SetDefault("debug", true)
	v.SetDefault("appName", "Academia")
	v.SetDefault("build", "dev")
	v.SetDefault("secretKey", defaultSecretKey)
	v.SetDefault("tokenLifetime", "7 days")
	v.SetDefault("passwordResetTimeoutDelta", 3*24*time.Hour)
	v.SetDefault("defaultFromEmail", "noreply@localhost")
	v.SetDefault("frontendBaseUrl", "http://localhost:3000")

	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8000)
	v.SetDefault("server.debugHost", "0.0.0.0:4000")
	v.SetDefault("server.shutdownTimeout", 5*time.Second)

	v.SetDefault("database.engine", "postgres")
	v.SetDefault("database.name", "academia")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "academia")
	v.SetDefault("database.password", "academia")
	v.SetDefault("database.disableTls", true)

	env := strings.ToUpper(os.Getenv("ENV"))
	if env == "" {
		env = "DEV"
	}

	// load .env if it exists (ignore if it does not)
	dotEnvPath := filepath.Join("config", ".env."+strings.ToLower(env))
	if _, err := os.Stat(dotEnvPath); err == nil {
		if err := godotenv.Load(dotEnvPath); err != nil {
			return nil, errors.Wrapf(err, "loading %s", dotEnvPath)
		}
	}
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	lifetime, err := ParseTokenLifetime(v.GetString("tokenLifetime"))
	if err != nil {
		return nil, errors.Wrap(err, "parsing tokenLifetime")
	}

	conf := &Config{
		Debug:                v.GetBool("debug"),
		TestMode:             env == "TEST",
		Env:                  env,
		AppName:              v.GetString("appName"),
		Build:                v.GetString("build"),
		SecretKey:            v.GetString("secretKey"),
		TokenLifetime:        lifetime,
		PasswordResetTimeout: v.GetDuration("passwordResetTimeoutDelta"),
		DefaultFromEmail:     mail.Address{Name: v.GetString("appName"), Address: v.GetString("defaultFromEmail")},
		SendgridAPIKey:       v.GetString("sendgridApiKey"),
		RollbarToken:         v.GetString("rollbarToken"),
		FrontendBaseURL:      v.GetString("frontendBaseUrl"),
		Server: ServerConfig{
			Host:            v.GetString("server.host"),
			Port:            v.GetInt("server.port"),
			DebugHost:       v.GetString("server.debugHost"),
			ShutdownTimeout: v.GetDuration("server.shutdownTimeout"),
		},
		Database: DatabaseConfig{
			Engine:        v.GetString("database.engine"),
			Name:          v.GetString("database.name"),
			Host:          v.GetString("database.host"),
			Port:          v.GetInt("database.port"),
			User:          v.GetString("database.user"),
			Password:      v.GetString("database.password"),
			AdminUser:     v.GetString("database.adminUser"),
			AdminPassword: v.GetString("database.adminPassword"),
			DisableTLS:    v.GetBool("database.disableTls"),
		},
	}
	if err := conf.validate(); err != nil {
		return nil, err
	}
	return conf, nil
}

func (c *Config) validate() error {
	return vala.BeginValidation().Validate(
		vala.StringNotEmpty(c.SecretKey, "secretKey"),
		vala.StringNotEmpty(c.Database.Engine, "database.engine"),
		vala.StringNotEmpty(c.Database.Name, "database.name"),
		vala.GreaterThan(int(c.TokenLifetime), 0, "tokenLifetime"),
	).Check()
}

var lifetimeUnits = map[string]time.Duration{
	"second": time.Second, "seconds": time.Second,
	"minute": time.Minute, "minutes": time.Minute,
	"hour": time.Hour, "hours": time.Hour,
	"day": 24 * time.Hour, "days": 24 * time.Hour,
	"week": 7 * 24 * time.Hour, "weeks": 7 * 24 * time.Hour,
}

// ParseTokenLifetime resolves the configured token lifetime expression.
// A value containing only digits is a raw magnitude in hours; anything else is handed
// to the duration parsers unmodified ("7 days", "20 hours", "90m"). A literal such as
// "7d" is therefore never reinterpreted as "7d hours": it either parses as a duration
// expression or fails outright.
func ParseTokenLifetime(expr string) (time.Duration, error) {
	expr = strings.TrimSpace(expr)
	if expr == "" {
		return 0, errors.New("empty token lifetime")
	}

	if n, err := strconv.Atoi(expr); err == nil {
		return time.Duration(n) * time.Hour, nil
	}

	if fields := strings.Fields(expr); len(fields) == 2 {
		if unit, ok := lifetimeUnits[strings.ToLower(fields[1])]; ok {
			n, err := strconv.ParseFloat(fields[0], 64)
			if err != nil {
				return 0, errors.Wrapf(err, "invalid token lifetime %q", expr)
			}
			return time.Duration(n * float64(unit)), nil
		}
	}

	d, err := time.ParseDuration(expr)
	if err != nil {
		return 0, errors.Wrapf(err, "invalid token lifetime %q", expr)
	}
	return d, nil
}
