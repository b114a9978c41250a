package config

import (
	"os"
	"strings"
)

type Config struct {
	// Database
	DBUser     string
	DBPassword string
	DBHost     string
	DBPort     string
	DBName     string

	// Security
	JWTSecret string

	// Server
	Port           string
	TrustedProxies []string

	// Collaborators
	AmqpURL        string // empty disables event publishing
	VisionURL      string // empty disables AI pre-fill
	GeocoderURL    string // empty disables reverse geocoding
	EventsExchange string
}

func Load() *Config {
	cfg := &Config{
		DBUser:         getEnv("DB_USER", "root"),
		DBPassword:     getEnv("DB_PASSWORD", "password"),
		DBHost:         getEnv("DB_HOST", "localhost"),
		DBPort:         getEnv("DB_PORT", "3306"),
		DBName:         getEnv("DB_NAME", "kavaach"),
		JWTSecret:      getEnv("JWT_SECRET", "your-secret-key-here"),
		Port:           getEnv("PORT", "8080"),
		AmqpURL:        getEnv("AMQP_URL", ""),
		VisionURL:      getEnv("VISION_API_URL", ""),
		GeocoderURL:    getEnv("GEOCODER_URL", ""),
		EventsExchange: getEnv("EVENTS_EXCHANGE", "kavaach-events"),
	}

	trustedProxies := os.Getenv("TRUSTED_PROXIES")
	if trustedProxies != "" {
		cfg.TrustedProxies = strings.Split(trustedProxies, ",")
		for i, proxy := range cfg.TrustedProxies {
			cfg.TrustedProxies[i] = strings.TrimSpace(proxy)
		}
	}

	return cfg
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
