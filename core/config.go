package core

import (
	"errors"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kat-co/vala"
	"github.com/spf13/viper"
)

type (
	Config struct {
		Debug    bool
		TestMode bool
		Env      string // DEV (default), TEST, QA, PROD
		Build    string
		AppName  string

		SecretKey        string
		DefaultFromEmail string
		FoundationEmail  string
		SendgridAPIKey   string
		RollbarToken     string

		Server      ServerConfig
		Database    DatabaseConfig
		ProfitShare ProfitShareConfig
		Operators   []Operator
	}

	ServerConfig struct {
		Host               string
		Port               string
		JWTExpirationDelta time.Duration
	}

	DatabaseConfig struct {
		Engine        string
		Name          string
		Host          string
		Port          string
		User          string
		Password      string
		AdminUser     string
		AdminPassword string
		DisableTLS    bool
	}

	// ProfitShareConfig holds the default entity split used by the
	// aggregate mode when the caller does not provide one.
	ProfitShareConfig struct {
		FoundationPct  int64
		CooperativePct int64
	}

	// Operator is an API user defined in configuration. PasswordHash is a
	// bcrypt hash; see `admin hashpassword`.
	Operator struct {
		Username     string
		Email        string
		PasswordHash string
		Admin        bool
	}
)

func (c ServerConfig) Address() string {
	return c.Host + ":" + c.Port
}

func (c DatabaseConfig) Address() string {
	return c.Host + ":" + c.Port
}

func (c *Config) Validate() error {
	err := vala.BeginValidation().Validate(
		vala.StringNotEmpty(c.AppName, "appName"),
		vala.StringNotEmpty(c.SecretKey, "secretKey"),
		vala.StringNotEmpty(c.Database.Engine, "database.engine"),
		vala.StringNotEmpty(c.Database.Name, "database.name"),
	).Check()
	if err != nil {
		return err
	}
	if c.ProfitShare.FoundationPct+c.ProfitShare.CooperativePct != 100 {
		return errors.New("config: profitShare percentages must sum to 100")
	}
	return nil
}

// NewConfig loads the application configuration from defaults, an optional
// `config/.env.<env>` file and the environment.
func NewConfig() *Config {
	conf := viper.New()

	// defaults
	conf.SetTypeByDefaultValue(true)
	conf.SetDefault("debug", true)
	conf.SetDefault("appName", "Pondok")
	conf.SetDefault("build", "dev")
	conf.SetDefault("secretKey", "jx2m&0s)d+v!w7d9q#bw=a(7lq%ep#5r^$u8mzy4^_f&4hqe+0")
	conf.SetDefault("defaultFromEmail", "noreply@localhost")
	conf.SetDefault("foundationEmail", "")
	conf.SetDefault("jwtExpirationDelta", 7*24*time.Hour)

	conf.SetDefault("server.host", "0.0.0.0")
	conf.SetDefault("server.port", "8080")

	conf.SetDefault("database.engine", "postgres")
	conf.SetDefault("database.name", "pondok")
	conf.SetDefault("database.host", "localhost")
	conf.SetDefault("database.port", "5432")
	conf.SetDefault("database.user", "pondok")
	conf.SetDefault("database.disableTLS", true)

	conf.SetDefault("profitShare.foundationPct", int64(50))
	conf.SetDefault("profitShare.cooperativePct", int64(50))

	env := os.Getenv("ENV")
	if env == "" {
		env = "DEV"
	}
	conf.SetEnvPrefix(env)
	conf.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// load .env if it exists (ignore if it does not)
	dotEnvPath := filepath.Join(Getwd(), "config", ".env."+strings.ToLower(env))
	if _, err := os.Stat(dotEnvPath); err == nil {
		if err := godotenv.Load(dotEnvPath); err != nil {
			log.Fatalf("config.godotenv(%s): %v", dotEnvPath, err)
		}
	} else if !os.IsNotExist(err) {
		log.Fatalf("config.os.Stat(%s): %v", dotEnvPath, err)
	}
	conf.AutomaticEnv()

	c := &Config{
		Debug:            conf.GetBool("debug"),
		TestMode:         strings.ToUpper(env) == "TEST",
		Env:              env,
		Build:            conf.GetString("build"),
		AppName:          conf.GetString("appName"),
		SecretKey:        conf.GetString("secretKey"),
		DefaultFromEmail: conf.GetString("defaultFromEmail"),
		FoundationEmail:  conf.GetString("foundationEmail"),
		SendgridAPIKey:   conf.GetString("sendgridApiKey"),
		RollbarToken:     conf.GetString("rollbarToken"),
		Server: ServerConfig{
			Host:               conf.GetString("server.host"),
			Port:               conf.GetString("server.port"),
			JWTExpirationDelta: conf.GetDuration("jwtExpirationDelta"),
		},
		Database: DatabaseConfig{
			Engine:        conf.GetString("database.engine"),
			Name:          conf.GetString("database.name"),
			Host:          conf.GetString("database.host"),
			Port:          conf.GetString("database.port"),
			User:          conf.GetString("database.user"),
			Password:      conf.GetString("database.password"),
			AdminUser:     conf.GetString("database.adminUser"),
			AdminPassword: conf.GetString("database.adminPassword"),
			DisableTLS:    conf.GetBool("database.disableTLS"),
		},
		ProfitShare: ProfitShareConfig{
			FoundationPct:  conf.GetInt64("profitShare.foundationPct"),
			CooperativePct: conf.GetInt64("profitShare.cooperativePct"),
		},
	}
	if err := conf.UnmarshalKey("operators", &c.Operators); err != nil {
		log.Fatalf("config.operators: %v", err)
	}
	return c
}
