package config

import (
	"errors"
	"log"
	"os"
	"strings"

	"github.com/joho/godotenv"
)

// Config holds everything read from the environment (or .env) at startup.
type Config struct {
	Port string

	MongoURI string
	MongoDB  string

	RedisAddr     string
	RedisPassword string

	// AMQPURL is optional; when set, status events are also queued on RabbitMQ.
	AMQPURL string

	SiteURL  string
	Currency string

	MercadoPagoToken   string
	MercadoPagoBaseURL string

	SMTPHost     string
	SMTPPort     string
	SMTPUser     string
	SMTPPass     string
	MailFromName string

	JWTSecret         []byte
	AdminPasswordHash string

	AllowedOrigins []string
}

var ErrMissingSiteURL = errors.New("SITE_URL is required")

// Load reads .env if present, then the process environment.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found; using system environment")
	}
	return FromEnv(os.Getenv)
}

// FromEnv builds a Config from a lookup function.
func FromEnv(getenv func(string) string) (*Config, error) {
	get := func(key, def string) string {
		if v := strings.TrimSpace(getenv(key)); v != "" {
			return v
		}
		return def
	}

	port := get("PORT", ":8080")
	if port[0] != ':' {
		port = ":" + port
	}

	cfg := &Config{
		Port:               port,
		MongoURI:           get("MONGO_URI", "mongodb://localhost:27017"),
		MongoDB:            get("MONGO_DB", "talentostore"),
		RedisAddr:          get("REDIS_ADDR", "localhost:6379"),
		RedisPassword:      get("REDIS_PASSWORD", ""),
		AMQPURL:            get("AMQP_URL", ""),
		SiteURL:            strings.TrimRight(get("SITE_URL", ""), "/"),
		Currency:           strings.ToUpper(get("CURRENCY", "BRL")),
		MercadoPagoToken:   get("MERCADO_PAGO_ACCESS_TOKEN", ""),
		MercadoPagoBaseURL: strings.TrimRight(get("MERCADO_PAGO_BASE_URL", "https://api.mercadopago.com"), "/"),
		SMTPHost:           get("SMTP_HOST", ""),
		SMTPPort:           get("SMTP_PORT", "587"),
		SMTPUser:           get("SMTP_USER", ""),
		SMTPPass:           get("SMTP_PASS", ""),
		MailFromName:       get("MAIL_FROM_NAME", "Talentostore"),
		JWTSecret:          []byte(get("JWT_SECRET", "")),
		AdminPasswordHash:  get("ADMIN_PASSWORD_HASH", ""),
		AllowedOrigins:     splitList(get("CORS_ALLOWED_ORIGINS", "*")),
	}

	if cfg.SiteURL == "" {
		return nil, ErrMissingSiteURL
	}
	if len(cfg.JWTSecret) == 0 {
		log.Println("JWT_SECRET not set; admin routes will reject every token")
	}
	return cfg, nil
}

// MailEnabled reports whether SMTP delivery is configured.
func (c *Config) MailEnabled() bool {
	return c.SMTPHost != "" && c.SMTPUser != ""
}

func splitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
