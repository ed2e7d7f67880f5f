package config

import (
	"errors"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
)

type Config struct {
	Env       string
	Port      int
	APIPrefix string

	Database      DatabaseConfig
	Redis         RedisConfig
	JWT           JWTConfig
	CORS          CORSConfig
	Log           LogConfig
	School        SchoolConfig
	Cache         CacheConfig
	Notifications NotificationsConfig
}

type DatabaseConfig struct {
	Host         string
	Port         int
	User         string
	Password     string
	Name         string
	SSLMode      string
	MaxOpenConns int
	MaxIdleConns int
}

type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

type JWTConfig struct {
	Secret            string
	Expiration        time.Duration
	RefreshExpiration time.Duration
}

type CORSConfig struct {
	AllowedOrigins []string
}

type LogConfig struct {
	Level  string
	Format string
}

// SchoolConfig carries the letterhead printed on every receipt and the
// signature appended to notification messages.
type SchoolConfig struct {
	Name     string
	Subtitle string
	Location string
	Phone    string
}

// CacheConfig governs the fee-schedule read cache.
type CacheConfig struct {
	Enabled        bool
	FeeScheduleTTL time.Duration
}

// NotificationsConfig selects the SMS and WhatsApp providers and holds their
// credentials. A channel with an empty provider name is disabled.
type NotificationsConfig struct {
	Enabled          bool
	Workers          int
	Timeout          time.Duration
	CountryCode      string
	SMSProvider      string
	WhatsAppProvider string

	Twilio           TwilioConfig
	TextLocal        TextLocalConfig
	MSG91            MSG91Config
	TextBee          TextBeeConfig
	WhatsAppBusiness WhatsAppBusinessConfig
	UltraMsg         UltraMsgConfig
	CallMeBot        CallMeBotConfig
}

// TwilioConfig serves both the SMS and WhatsApp channels.
type TwilioConfig struct {
	AccountSID  string
	AuthToken   string
	PhoneNumber string
}

type TextLocalConfig struct {
	APIKey string
	Sender string
}

type MSG91Config struct {
	APIKey   string
	SenderID string
	Route    string
}

type TextBeeConfig struct {
	APIKey   string
	DeviceID string
}

type WhatsAppBusinessConfig struct {
	AccessToken   string
	PhoneNumberID string
}

type UltraMsgConfig struct {
	Token      string
	InstanceID string
}

type CallMeBotConfig struct {
	APIKey string
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigFile(".env")
	v.SetConfigType("env")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, err
		}
	}

	cfg := &Config{}

	cfg.Env = v.GetString("ENV")
	cfg.Port = v.GetInt("PORT")
	cfg.APIPrefix = v.GetString("API_PREFIX")

	cfg.Database = DatabaseConfig{
		Host:         v.GetString("DB_HOST"),
		Port:         v.GetInt("DB_PORT"),
		User:         v.GetString("DB_USER"),
		Password:     v.GetString("DB_PASSWORD"),
		Name:         v.GetString("DB_NAME"),
		SSLMode:      v.GetString("DB_SSL_MODE"),
		MaxOpenConns: v.GetInt("DB_MAX_OPEN_CONNS"),
		MaxIdleConns: v.GetInt("DB_MAX_IDLE_CONNS"),
	}

	cfg.Redis = RedisConfig{
		Host:     v.GetString("REDIS_HOST"),
		Port:     v.GetInt("REDIS_PORT"),
		Password: v.GetString("REDIS_PASSWORD"),
		DB:       v.GetInt("REDIS_DB"),
	}

	cfg.JWT = JWTConfig{
		Secret:            v.GetString("JWT_SECRET"),
		Expiration:        parseDuration(v.GetString("JWT_EXPIRATION"), 24*time.Hour),
		RefreshExpiration: parseDuration(v.GetString("REFRESH_TOKEN_EXPIRATION"), 7*24*time.Hour),
	}

	cfg.CORS = CORSConfig{AllowedOrigins: splitAndTrim(v.GetString("ALLOWED_ORIGINS"))}

	cfg.Log = LogConfig{
		Level:  v.GetString("LOG_LEVEL"),
		Format: v.GetString("LOG_FORMAT"),
	}

	cfg.School = SchoolConfig{
		Name:     v.GetString("SCHOOL_NAME"),
		Subtitle: v.GetString("SCHOOL_SUBTITLE"),
		Location: v.GetString("SCHOOL_LOCATION"),
		Phone:    v.GetString("SCHOOL_PHONE"),
	}

	cfg.Cache = CacheConfig{
		Enabled:        v.GetBool("ENABLE_CACHE"),
		FeeScheduleTTL: parseDuration(v.GetString("FEE_SCHEDULE_CACHE_TTL"), 10*time.Minute),
	}

	cfg.Notifications = NotificationsConfig{
		Enabled:          v.GetBool("ENABLE_NOTIFICATIONS"),
		Workers:          v.GetInt("NOTIFICATION_WORKERS"),
		Timeout:          parseDuration(v.GetString("NOTIFICATION_TIMEOUT"), 10*time.Second),
		CountryCode:      v.GetString("NOTIFICATION_COUNTRY_CODE"),
		SMSProvider:      v.GetString("SMS_PROVIDER"),
		WhatsAppProvider: v.GetString("WHATSAPP_PROVIDER"),
		Twilio: TwilioConfig{
			AccountSID:  v.GetString("TWILIO_ACCOUNT_SID"),
			AuthToken:   v.GetString("TWILIO_AUTH_TOKEN"),
			PhoneNumber: v.GetString("TWILIO_PHONE_NUMBER"),
		},
		TextLocal: TextLocalConfig{
			APIKey: v.GetString("TEXTLOCAL_API_KEY"),
			Sender: v.GetString("TEXTLOCAL_SENDER"),
		},
		MSG91: MSG91Config{
			APIKey:   v.GetString("MSG91_API_KEY"),
			SenderID: v.GetString("MSG91_SENDER_ID"),
			Route:    v.GetString("MSG91_ROUTE"),
		},
		TextBee: TextBeeConfig{
			APIKey:   v.GetString("TEXTBEE_API_KEY"),
			DeviceID: v.GetString("TEXTBEE_DEVICE_ID"),
		},
		WhatsAppBusiness: WhatsAppBusinessConfig{
			AccessToken:   v.GetString("WA_BUSINESS_ACCESS_TOKEN"),
			PhoneNumberID: v.GetString("WA_BUSINESS_PHONE_NUMBER_ID"),
		},
		UltraMsg: UltraMsgConfig{
			Token:      v.GetString("ULTRAMSG_TOKEN"),
			InstanceID: v.GetString("ULTRAMSG_INSTANCE_ID"),
		},
		CallMeBot: CallMeBotConfig{
			APIKey: v.GetString("CALLMEBOT_API_KEY"),
		},
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("ENV", EnvDevelopment)
	v.SetDefault("PORT", 8080)
	v.SetDefault("API_PREFIX", "/api/v1")

	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", 5432)
	v.SetDefault("DB_USER", "postgres")
	v.SetDefault("DB_PASSWORD", "postgres")
	v.SetDefault("DB_NAME", "school_fees")
	v.SetDefault("DB_SSL_MODE", "disable")
	v.SetDefault("DB_MAX_OPEN_CONNS", 10)
	v.SetDefault("DB_MAX_IDLE_CONNS", 5)

	v.SetDefault("REDIS_HOST", "localhost")
	v.SetDefault("REDIS_PORT", 6379)
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)

	v.SetDefault("JWT_SECRET", "dev_secret")
	v.SetDefault("JWT_EXPIRATION", "24h")
	v.SetDefault("REFRESH_TOKEN_EXPIRATION", "168h")

	v.SetDefault("ALLOWED_ORIGINS", "")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")

	v.SetDefault("SCHOOL_NAME", "Sarvodaya School")
	v.SetDefault("SCHOOL_SUBTITLE", "Fee Payment Receipt")
	v.SetDefault("SCHOOL_LOCATION", "")
	v.SetDefault("SCHOOL_PHONE", "")

	v.SetDefault("ENABLE_CACHE", false)
	v.SetDefault("FEE_SCHEDULE_CACHE_TTL", "10m")

	v.SetDefault("ENABLE_NOTIFICATIONS", false)
	v.SetDefault("NOTIFICATION_WORKERS", 2)
	v.SetDefault("NOTIFICATION_TIMEOUT", "10s")
	v.SetDefault("NOTIFICATION_COUNTRY_CODE", "91")
	v.SetDefault("SMS_PROVIDER", "")
	v.SetDefault("WHATSAPP_PROVIDER", "")
	v.SetDefault("TEXTLOCAL_SENDER", "SCHOOL")
	v.SetDefault("MSG91_SENDER_ID", "SCHOOL")
	v.SetDefault("MSG91_ROUTE", "4")
}

func parseDuration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}

	d, err := time.ParseDuration(raw)
	if err != nil {
		return fallback
	}

	return d
}

func splitAndTrim(raw string) []string {
	if raw == "" {
		return nil
	}

	parts := strings.Split(raw, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}

	return result
}
