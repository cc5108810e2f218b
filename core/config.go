package core

import (
	"log"
	"net/mail"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type (
	DatabaseConfig struct {
		Engine        string
		Host          string
		Port          string
		Name          string
		User          string
		Password      string
		AdminUser     string
		AdminPassword string
		DisableTLS    bool
	}

	ServerConfig struct {
		Host                      string
		DebugHost                 string
		ShutdownTimeout           time.Duration
		DisableReqLogs            bool
		JWTExpirationDelta        time.Duration
		JWTRefreshExpirationDelta time.Duration
	}

	TwilioConfig struct {
		AccountSID        string
		AuthToken         string
		From              string // WhatsApp sender, E.164
		StatusCallbackURL string
		WebhookBaseURL    string // public base URL used to verify X-Twilio-Signature
		ValidateWebhooks  bool
	}

	QueueConfig struct {
		RedisURL    string // empty: messages are delivered inline
		Name        string
		Concurrency int
		MaxRetry    int
	}

	MessagingConfig struct {
		DefaultCountryCode string
		NotifyEmails       []string
	}

	Config struct {
		Env             string
		Build           string
		Debug           bool
		TestMode        bool
		AppName         string
		SecretKey       string
		FrontendBaseURL string
		WorkDir         string
		RollbarToken    string
		SendgridApiKey  string

		defaultFromEmail string

		Server    ServerConfig
		Database  DatabaseConfig
		Twilio    TwilioConfig
		Queue     QueueConfig
		Messaging MessagingConfig
	}
)

func (c DatabaseConfig) Address() string {
	return c.Host + ":" + c.Port
}

// DefaultFromEmail parses the configured sender; falls back to the raw value as address.
func (c *Config) DefaultFromEmail() mail.Address {
	addr, err := mail.ParseAddress(c.defaultFromEmail)
	if err != nil {
		return mail.Address{Name: c.AppName, Address: c.defaultFromEmail}
	}
	if addr.Name == "" {
		addr.Name = c.AppName
	}
	return *addr
}

func setDefaults(v *viper.Viper) {
	v.SetTypeByDefaultValue(true)

	v.SetDefault("debug", true)
	v.SetDefault("testMode", false)
	v.SetDefault("build", "develop")
	v.SetDefault("appName", "Masomo")
	v.SetDefault("secretKey", "poq5-wer)enb$+57=dz&uoxh2(h!x)#*c2(#yg4h^$cegm2emy")
	v.SetDefault("frontendBaseURL", "http://localhost:8080")
	v.SetDefault("defaultFromEmail", "Masomo <noreply@localhost>")
	v.SetDefault("rollbarToken", "")
	v.SetDefault("sendgridApiKey", "")

	v.SetDefault("server.host", ":8000")
	v.SetDefault("server.debugHost", ":4000")
	v.SetDefault("server.shutdownTimeout", 5*time.Second)
	v.SetDefault("server.disableReqLogs", false)
	v.SetDefault("server.jwtExpirationDelta", 7*24*time.Hour)
	v.SetDefault("server.jwtRefreshExpirationDelta", 4*time.Hour)

	v.SetDefault("database.engine", "postgres")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", "5432")
	v.SetDefault("database.name", "masomo_connect")
	v.SetDefault("database.user", "masomo")
	v.SetDefault("database.password", "masomo")
	v.SetDefault("database.adminUser", "postgres")
	v.SetDefault("database.adminPassword", "postgres")
	v.SetDefault("database.disableTLS", true)

	v.SetDefault("twilio.accountSid", "")
	v.SetDefault("twilio.authToken", "")
	v.SetDefault("twilio.from", "")
	v.SetDefault("twilio.statusCallbackURL", "")
	v.SetDefault("twilio.webhookBaseURL", "")
	v.SetDefault("twilio.validateWebhooks", false)

	v.SetDefault("queue.redisURL", "")
	v.SetDefault("queue.name", "messaging")
	v.SetDefault("queue.concurrency", 10)
	v.SetDefault("queue.maxRetry", 5)

	v.SetDefault("messaging.defaultCountryCode", "243")
	v.SetDefault("messaging.notifyEmails", []string{})
}

// NewConfig loads the app configuration from defaults, `config/.env.<env>` and the environment.
// Env vars are prefixed with the uppercased env name, e.g. DEV_TWILIO_AUTHTOKEN.
func NewConfig() *Config {
	v := viper.New()
	setDefaults(v)

	env := strings.ToUpper(os.Getenv("ENV")) // DEV (local; default), TEST, QA, PROD
	switch env {
	case "":
		env = "DEV"
	case "TEST":
		v.SetDefault("testMode", true)
	}
	v.SetEnvPrefix(env)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	wd := Getwd()

	// load .env if it exists (ignore if it does not)
	dotEnvPath := filepath.Join(wd, "config", ".env."+strings.ToLower(env))
	if _, err := os.Stat(dotEnvPath); err == nil {
		if err := godotenv.Load(dotEnvPath); err != nil {
			log.Fatalf("config.godotenv(%s): %v", dotEnvPath, err)
		}
	} else if !os.IsNotExist(err) {
		log.Fatalf("config.os.Stat(%s): %v", dotEnvPath, err)
	}
	v.AutomaticEnv()

	return &Config{
		Env:              env,
		Build:            v.GetString("build"),
		Debug:            v.GetBool("debug"),
		TestMode:         v.GetBool("testMode"),
		AppName:          v.GetString("appName"),
		SecretKey:        v.GetString("secretKey"),
		FrontendBaseURL:  v.GetString("frontendBaseURL"),
		WorkDir:          wd,
		RollbarToken:     v.GetString("rollbarToken"),
		SendgridApiKey:   v.GetString("sendgridApiKey"),
		defaultFromEmail: v.GetString("defaultFromEmail"),
		Server: ServerConfig{
			Host:                      v.GetString("server.host"),
			DebugHost:                 v.GetString("server.debugHost"),
			ShutdownTimeout:           v.GetDuration("server.shutdownTimeout"),
			DisableReqLogs:            v.GetBool("server.disableReqLogs"),
			JWTExpirationDelta:        v.GetDuration("server.jwtExpirationDelta"),
			JWTRefreshExpirationDelta: v.GetDuration("server.jwtRefreshExpirationDelta"),
		},
		Database: DatabaseConfig{
			Engine:        v.GetString("database.engine"),
			Host:          v.GetString("database.host"),
			Port:          v.GetString("database.port"),
			Name:          v.GetString("database.name"),
			User:          v.GetString("database.user"),
			Password:      v.GetString("database.password"),
			AdminUser:     v.GetString("database.adminUser"),
			AdminPassword: v.GetString("database.adminPassword"),
			DisableTLS:    v.GetBool("database.disableTLS"),
		},
		Twilio: TwilioConfig{
			AccountSID:        v.GetString("twilio.accountSid"),
			AuthToken:         v.GetString("twilio.authToken"),
			From:              v.GetString("twilio.from"),
			StatusCallbackURL: v.GetString("twilio.statusCallbackURL"),
			WebhookBaseURL:    v.GetString("twilio.webhookBaseURL"),
			ValidateWebhooks:  v.GetBool("twilio.validateWebhooks"),
		},
		Queue: QueueConfig{
			RedisURL:    v.GetString("queue.redisURL"),
			Name:        v.GetString("queue.name"),
			Concurrency: v.GetInt("queue.concurrency"),
			MaxRetry:    v.GetInt("queue.maxRetry"),
		},
		Messaging: MessagingConfig{
			DefaultCountryCode: v.GetString("messaging.defaultCountryCode"),
			NotifyEmails:       v.GetStringSlice("messaging.notifyEmails"),
		},
	}
}
