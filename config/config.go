package config

import (
	"log"
	"os"
	"strings"

	"github.com/joho/godotenv"
)

type Config struct {
	Server   ServerConfig
	Webhook  WebhookConfig
	CORS     CORSConfig
	Supabase SupabaseConfig
	WhatsApp WhatsAppConfig
	Observ   ObservabilityConfig
}

type ServerConfig struct {
	Port string
	Env  string
}

type WebhookConfig struct {
	// SecretToken guards POST /webhook/shopify. When empty, the
	// token check is skipped (dev mode).
	SecretToken string
}

type CORSConfig struct {
	Origins []string
}

type SupabaseConfig struct {
	URL        string
	ServiceKey string
}

type WhatsAppConfig struct {
	APIBaseURL       string
	PhoneNumberID    string
	AccessToken      string
	TemplateName     string
	TemplateLanguage string
}

type ObservabilityConfig struct {
	JaegerEndpoint string
}

func Load() *Config {
	_ = godotenv.Load()

	cfg := &Config{
		Server: ServerConfig{
			Port: getEnv("PORT", "8080"),
			Env:  getEnv("ENV", "development"),
		},
		Webhook: WebhookConfig{
			SecretToken: getEnv("WEBHOOK_SECRET_TOKEN", ""),
		},
		CORS: CORSConfig{
			Origins: strings.Split(getEnv("CORS_ORIGINS", "http://localhost:5173"), ","),
		},
		Supabase: SupabaseConfig{
			URL:        getEnv("SUPABASE_URL", ""),
			ServiceKey: getEnv("SUPABASE_SERVICE_KEY", ""),
		},
		WhatsApp: WhatsAppConfig{
			APIBaseURL:       getEnv("WHATSAPP_API_URL", "https://graph.facebook.com/v18.0"),
			PhoneNumberID:    getEnv("WHATSAPP_PHONE_NUMBER_ID", ""),
			AccessToken:      getEnv("WHATSAPP_ACCESS_TOKEN", ""),
			TemplateName:     getEnv("WHATSAPP_TEMPLATE_NAME", "order_confirmation"),
			TemplateLanguage: getEnv("WHATSAPP_TEMPLATE_LANGUAGE", "es"),
		},
		Observ: ObservabilityConfig{
			JaegerEndpoint: getEnv("JAEGER_ENDPOINT", "http://localhost:14268/api/traces"),
		},
	}

	log.Printf("Config loaded: env=%s, port=%s", cfg.Server.Env, cfg.Server.Port)
	return cfg
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}
